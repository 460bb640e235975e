package breakpad

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTokenizeBasic(t *testing.T) {
	tokens, ok := Tokenize([]byte("FUNC 1000 20 my func name\n"), 4)
	require.True(t, ok)
	require.Equal(t, []string{"FUNC", "1000", "20", "my func name"}, tokens)
}

func TestTokenizePreservesInteriorSpaces(t *testing.T) {
	tokens, ok := Tokenize([]byte("STACK WIN 4 1000 20 5 0 0 0 0 100 $eip $T0 4 = $eip\r\n"), 12)
	require.True(t, ok)
	require.Equal(t, "$eip $T0 4 = $eip", tokens[11])
}

func TestTokenizeStripsTrailingCRLF(t *testing.T) {
	tokens, ok := Tokenize([]byte("1 /src/foo.c\r\n"), 2)
	require.True(t, ok)
	require.Equal(t, "/src/foo.c", tokens[1])
}

func TestTokenizeInsufficientFields(t *testing.T) {
	_, ok := Tokenize([]byte("1000 20\n"), 4)
	require.False(t, ok)
}

func TestTokenizeExactlyEnoughFields(t *testing.T) {
	tokens, ok := Tokenize([]byte("1000 20 42 1\n"), 4)
	require.True(t, ok)
	require.Equal(t, []string{"1000", "20", "42", "1"}, tokens)
}

func TestTokenizeEmptyLine(t *testing.T) {
	_, ok := Tokenize([]byte(""), 1)
	require.False(t, ok)

	_, ok = Tokenize([]byte("\r\n"), 1)
	require.False(t, ok)
}

func TestTokenizeSingleMaxToken(t *testing.T) {
	tokens, ok := Tokenize([]byte("  hello world\n"), 1)
	require.True(t, ok)
	require.Equal(t, []string{"hello world"}, tokens)
}
