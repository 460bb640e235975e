package breakpad

import "github.com/mikewied/breakpad/rangemap"

// Addr is a module-relative virtual address (RVA).
type Addr = uint64

// Unwind type codes, matching the STACK record's <type> field. Codes
// outside [0, numUnwindTypes) are rejected at parse time.
const (
	UnwindFPO = iota
	UnwindTrap
	UnwindTSS
	UnwindStandard
	UnwindFrameData

	numUnwindTypes
)

// UnwindInfo describes how to locate the previous frame on the stack
// from within a given code range. It mirrors the fields of a STACK WIN
// record.
type UnwindInfo struct {
	PrologSize        uint32
	EpilogSize        uint32
	ParameterSize     uint32
	SavedRegisterSize uint32
	LocalSize         uint32
	MaxStackSize      uint32
	ProgramString     string
	Valid             bool
}

// Line is one source-line record within a Function.
type Line struct {
	Base, Size Addr
	FileID     int
	LineNumber int
}

// Function is one FUNC record: a named code range with its own disjoint
// set of line ranges.
type Function struct {
	Name       string
	Base, Size Addr
	Lines      *rangemap.RangeMap[Addr, Line]
}

// FrameSymbol is the output of resolving an instruction address to a
// function and source location. Unset fields are reported as the empty
// string / zero, and the FunctionFound, SourceFileOK and SourceLineOK
// flags tell the caller which parts matched.
type FrameSymbol struct {
	FunctionName  string
	FunctionFound bool
	SourceFile    string
	SourceFileOK  bool
	SourceLine    int
	SourceLineOK  bool
}

// FrameIn is the query input supplied by the minidump reader: a frame's
// module, the module's load base, and the frame's absolute instruction
// pointer.
type FrameIn struct {
	ModuleName  string
	ModuleBase  Addr
	Instruction Addr
}
