package breakpad

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

const sampleSymbolFile = `FILE 0 d:/src/foo.c
FILE 1 d:/src/bar.c
FUNC 1000 50 DoTheThing
1000 10 10 0
1010 10 11 0
1020 30 12 1
FUNC 2000 20 bar baz
2000 20 7 1
STACK WIN 4 1000 50 8 0 0 4 0 40 $eip
`

func TestParseRoundTripFunctionsAndLines(t *testing.T) {
	m := NewModule("foo.pdb")
	require.NoError(t, m.LoadFromReader(strings.NewReader(sampleSymbolFile)))

	f, _ := m.Lookup(0x1005)
	require.Equal(t, "DoTheThing", f.FunctionName)
	require.Equal(t, "d:/src/foo.c", f.SourceFile)
	require.Equal(t, 10, f.SourceLine)

	f, _ = m.Lookup(0x1025)
	require.Equal(t, "DoTheThing", f.FunctionName)
	require.Equal(t, "d:/src/bar.c", f.SourceFile)
	require.Equal(t, 12, f.SourceLine)

	f, _ = m.Lookup(0x2010)
	require.Equal(t, "bar baz", f.FunctionName)
	require.Equal(t, "d:/src/bar.c", f.SourceFile)
	require.Equal(t, 7, f.SourceLine)

	_, u := m.Lookup(0x1001)
	require.True(t, u.Valid)
	require.Equal(t, "$eip", u.ProgramString)
}

// TestParseRejectsUnrecognizedTopLevelPrefix documents that a line
// beginning with "MODULE" — a real breakpad record this resolver does
// not need — is treated the same as any other unrecognized prefix: it
// doesn't start with a hex address, so it can't even be mistaken for an
// orphaned LINE record, and aborts the load as ErrOrphanLine. Symbol-file
// producers that emit a MODULE header must have their callers skip it
// before handing the reader to LoadFromReader.
func TestParseRejectsUnrecognizedTopLevelPrefix(t *testing.T) {
	withHeader := "MODULE windows x86 0123456789ABCDEF0123456789ABCDEF0 foo.pdb\n" + sampleSymbolFile
	m := NewModule("withheader.pdb")
	err := m.LoadFromReader(strings.NewReader(withHeader))
	require.Error(t, err)
	require.ErrorIs(t, err, ErrOrphanLine)
}

func TestParseFileDuplicateIDOverwrites(t *testing.T) {
	sym := "FILE 1 /src/old.c\nFILE 1 /src/new.c\nFUNC 1000 10 f\n1000 5 1 1\n"
	m := NewModule("dup.pdb")
	require.NoError(t, m.LoadFromReader(strings.NewReader(sym)))
	require.Error(t, m.Warnings())

	f, _ := m.Lookup(0x1000)
	require.Equal(t, "/src/new.c", f.SourceFile)
}

func TestParseFileMissingPathIsTolerable(t *testing.T) {
	sym := "FILE 1\nFUNC 1000 10 f\n1000 5 1 1\n"
	m := NewModule("missingpath.pdb")
	require.NoError(t, m.LoadFromReader(strings.NewReader(sym)))
	require.Error(t, m.Warnings())

	f, _ := m.Lookup(0x1000)
	require.True(t, f.FunctionFound)
	require.False(t, f.SourceFileOK)
}

func TestParseEquivalentModulesCompareEqual(t *testing.T) {
	sym := "FILE 1 /src/foo.c\nFUNC 1000 100 foo\n1000 20 42 1\n"

	a := NewModule("a.pdb")
	require.NoError(t, a.LoadFromReader(strings.NewReader(sym)))
	b := NewModule("b.pdb")
	require.NoError(t, b.LoadFromReader(strings.NewReader(sym)))

	fa, ua := a.Lookup(0x1005)
	fb, ub := b.Lookup(0x1005)

	require.Empty(t, cmp.Diff(fa, fb))
	require.Empty(t, cmp.Diff(ua, ub))
}
