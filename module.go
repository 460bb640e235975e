package breakpad

import (
	"io"

	"github.com/go-kit/log"
	"github.com/hashicorp/go-multierror"

	"github.com/mikewied/breakpad/rangemap"
)

// Module holds everything parsed from one binary's symbol file: its file
// table, its disjoint function ranges (each owning a disjoint set of line
// ranges), and its per-type unwind indices. A Module is mutated only
// during LoadFromReader; afterward it is safe for unsynchronized
// concurrent Lookup calls.
type Module struct {
	Name string

	files     map[int]string
	functions *rangemap.RangeMap[Addr, *Function]
	unwind    [numUnwindTypes]*rangemap.ContainedRangeMap[Addr, UnwindInfo]

	warnings *multierror.Error
	loaded   bool
}

// NewModule returns an empty, unloaded Module named name.
func NewModule(name string) *Module {
	m := &Module{
		Name:  name,
		files: make(map[int]string),
	}
	for i := range m.unwind {
		m.unwind[i] = rangemap.NewContained[Addr, UnwindInfo]()
	}
	return m
}

// LoadOption configures a single LoadFromReader (or Parse) call.
type LoadOption func(*loadOptions)

type loadOptions struct {
	logger  log.Logger
	lineCap int
}

// WithLoadLogger sets the logger used for this load's diagnostics. The
// default is a no-op logger.
func WithLoadLogger(logger log.Logger) LoadOption {
	return func(o *loadOptions) { o.logger = logger }
}

// WithLineCap overrides the maximum length, in bytes, of a single
// symbol-file record. The default is 1024, matching the fixed-size
// buffer the original breakpad reader used.
func WithLineCap(n int) LoadOption {
	return func(o *loadOptions) { o.lineCap = n }
}

// Warnings returns the tolerable anomalies accumulated during the most
// recent LoadFromReader call, if any. A nil return means the load was
// entirely clean.
func (m *Module) Warnings() error {
	if m.warnings == nil {
		return nil
	}
	return m.warnings.ErrorOrNil()
}

// LoadFromReader parses r as a symbol file and populates the Module. It
// must be called at most once per Module; calling it again after a
// successful load returns ErrModuleExists without touching the loaded
// state. Tolerable anomalies (an unrecognized STACK platform or other
// malformed STACK record, a malformed or duplicate FILE record, a
// rejected overlapping range) are logged through the configured logger (a nil
// logger, the default, discards them) and recorded in Warnings(), but do
// not fail the load. Fatal conditions (orphan LINE, missing current
// FUNC, unparsable mandatory field) return an error and leave the Module
// only partially populated — callers must discard it.
func (m *Module) LoadFromReader(r io.Reader, opts ...LoadOption) error {
	if m.loaded {
		return ErrModuleExists
	}
	o := loadOptions{lineCap: defaultLineCap}
	for _, opt := range opts {
		opt(&o)
	}
	err := parseInto(m, r, o.logger, o.lineCap)
	m.loaded = err == nil
	return err
}

// Parse reads a symbol file from r and returns a populated, unnamed
// Module. It is a convenience wrapper equivalent to calling
// NewModule("") followed by LoadFromReader; callers that need the
// Module registered under a name should use Resolver.LoadModule
// instead, or set Module.Name themselves.
func Parse(r io.Reader, logger log.Logger) (*Module, error) {
	m := NewModule("")
	if err := m.LoadFromReader(r, WithLoadLogger(logger)); err != nil {
		return nil, err
	}
	return m, nil
}

// Lookup resolves an RVA within this Module, returning the matching
// FrameSymbol and, if present, an UnwindInfo whose Valid field is true.
// Unwind indices are checked in FRAME_DATA, FPO, STANDARD priority order,
// independently of whether a function/line match is found.
func (m *Module) Lookup(rva Addr) (FrameSymbol, UnwindInfo) {
	var unwind UnwindInfo
	if u, ok := m.unwind[UnwindFrameData].RetrieveRange(rva); ok {
		unwind = u
	} else if u, ok := m.unwind[UnwindFPO].RetrieveRange(rva); ok {
		unwind = u
	} else if u, ok := m.unwind[UnwindStandard].RetrieveRange(rva); ok {
		unwind = u
	}

	var sym FrameSymbol

	fn, ok := m.functions.RetrieveRange(rva)
	if !ok {
		return sym, unwind
	}
	sym.FunctionName = fn.Name
	sym.FunctionFound = true

	line, ok := fn.Lines.RetrieveRange(rva)
	if !ok {
		return sym, unwind
	}
	sym.SourceLine = line.LineNumber
	sym.SourceLineOK = true

	if path, ok := m.files[line.FileID]; ok {
		sym.SourceFile = path
		sym.SourceFileOK = true
	}

	return sym, unwind
}
