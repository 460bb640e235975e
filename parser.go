package breakpad

import (
	"bufio"
	"fmt"
	"io"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	"github.com/mikewied/breakpad/rangemap"
)

// defaultLineCap caps a single symbol-file record, matching the
// 1024-byte buffer the original line-oriented reader used. Override with
// WithLineCap.
const defaultLineCap = 1024

// recognizedPlatform is the only STACK platform tag this parser
// understands; every other tag is a tolerable anomaly: the record is
// skipped with a warning.
const recognizedPlatform = "WIN"

func firstWord(line []byte) string {
	i := 0
	for i < len(line) && isTokenSep(line[i]) {
		i++
	}
	start := i
	for i < len(line) && !isTokenSep(line[i]) {
		i++
	}
	return string(line[start:i])
}

// parseInto reads r record by record and populates m. It returns a
// non-nil error only for fatal conditions; tolerable anomalies are
// logged and appended to m.warnings. lineCap bounds the length of a
// single record; Tokenize's own field limits bound record structure.
func parseInto(m *Module, r io.Reader, logger log.Logger, lineCap int) error {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	if lineCap <= 0 {
		lineCap = defaultLineCap
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, lineCap), lineCap)

	m.functions = rangemap.New[Addr, *Function]()

	var (
		curFunc    *Function
		discarding bool
		lineNo     int
	)

	warn := func(format string, args ...interface{}) {
		msg := fmt.Sprintf(format, args...)
		level.Warn(logger).Log("msg", msg, "module", m.Name, "record", lineNo)
		m.warnings = multierror.Append(m.warnings, errors.New(msg))
	}

	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()

		// A blank line has no recognized prefix, so it falls through to
		// the default case below like any unknown top-level prefix.
		switch firstWord(line) {
		case "FILE":
			parseFile(m, line, warn)

		case "FUNC":
			fn, err := parseFunc(line)
			if err != nil {
				return errors.Wrapf(err, "record %d", lineNo)
			}
			if m.functions.StoreRange(fn.Base, fn.Size, fn) {
				curFunc = fn
				discarding = false
			} else {
				warn("FUNC %s [%x,%x) overlaps an existing function; discarding it and its lines", fn.Name, fn.Base, fn.Base+fn.Size)
				curFunc = nil
				discarding = true
			}

		case "STACK":
			parseStack(m, line, warn)

		default:
			if _, hexErr := strconv.ParseUint(firstWord(line), 16, 64); hexErr != nil {
				// A blank line or an unrecognized top-level prefix
				// (e.g. a MODULE header this resolver doesn't consume).
				return errors.Wrapf(ErrOrphanLine, "record %d", lineNo)
			}
			if curFunc == nil {
				if discarding {
					continue
				}
				// Starts with a hex address, so it's shaped like a
				// LINE record; it's just missing its FUNC.
				return errors.Wrapf(ErrNoCurrentFunction, "record %d", lineNo)
			}
			tokens, ok := Tokenize(line, 4)
			if !ok {
				return errors.Wrapf(ErrMalformedRecord, "record %d", lineNo)
			}
			ln, err := parseLineTokens(tokens)
			if err != nil {
				return errors.Wrapf(err, "record %d", lineNo)
			}
			if !curFunc.Lines.StoreRange(ln.Base, ln.Size, ln) {
				warn("line [%x,%x) in function %s overlaps an existing line; dropping it", ln.Base, ln.Base+ln.Size, curFunc.Name)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return errors.Wrap(err, "reading symbol file")
	}

	level.Debug(logger).Log(
		"msg", "module loaded",
		"module", m.Name,
		"functions", m.functions.Len(),
		"records", lineNo,
		"bytes_per_record_cap", humanize.Bytes(uint64(lineCap)),
	)
	return nil
}

func parseFile(m *Module, line []byte, warn func(string, ...interface{})) {
	tokens, ok := Tokenize(line, 3)
	if !ok || len(tokens) < 3 {
		warn("malformed FILE record")
		return
	}
	id, err := strconv.Atoi(tokens[1])
	if err != nil || id < 0 {
		warn("FILE record has an unparsable or negative id %q", tokens[1])
		return
	}
	if _, exists := m.files[id]; exists {
		warn("duplicate FILE id %d, overwriting", id)
	}
	m.files[id] = tokens[2]
}

func parseFunc(line []byte) (*Function, error) {
	tokens, ok := Tokenize(line, 4)
	if !ok {
		return nil, errors.Wrap(ErrMalformedRecord, "FUNC record")
	}
	base, err := strconv.ParseUint(tokens[1], 16, 64)
	if err != nil {
		return nil, errors.Wrap(err, "FUNC address")
	}
	size, err := strconv.ParseUint(tokens[2], 16, 64)
	if err != nil {
		return nil, errors.Wrap(err, "FUNC size")
	}
	return &Function{
		Name:  tokens[3],
		Base:  base,
		Size:  size,
		Lines: rangemap.New[Addr, Line](),
	}, nil
}

func parseLineTokens(tokens []string) (Line, error) {
	base, err := strconv.ParseUint(tokens[0], 16, 64)
	if err != nil {
		return Line{}, errors.Wrap(err, "LINE address")
	}
	size, err := strconv.ParseUint(tokens[1], 16, 64)
	if err != nil {
		return Line{}, errors.Wrap(err, "LINE size")
	}
	lineNumber, err := strconv.Atoi(tokens[2])
	if err != nil {
		return Line{}, errors.Wrap(err, "LINE line number")
	}
	if lineNumber <= 0 {
		return Line{}, errors.Wrap(ErrInvalidLine, "LINE line number must be positive")
	}
	fileID, err := strconv.Atoi(tokens[3])
	if err != nil {
		return Line{}, errors.Wrap(err, "LINE file id")
	}
	return Line{Base: base, Size: size, LineNumber: lineNumber, FileID: fileID}, nil
}

func parseStack(m *Module, line []byte, warn func(string, ...interface{})) {
	tokens, ok := Tokenize(line, 12)
	if !ok {
		warn("malformed STACK record")
		return
	}
	platform := tokens[1]
	if platform != recognizedPlatform {
		warn("unrecognized STACK platform %q, skipping", platform)
		return
	}

	typ, err := strconv.ParseInt(tokens[2], 16, 32)
	if err != nil || typ < 0 || int(typ) >= numUnwindTypes {
		warn("STACK record has out-of-range type %q", tokens[2])
		return
	}

	rva, err := strconv.ParseUint(tokens[3], 16, 64)
	if err != nil {
		warn("STACK record has an unparsable rva %q", tokens[3])
		return
	}
	codeSize, err := strconv.ParseUint(tokens[4], 16, 64)
	if err != nil {
		warn("STACK record has an unparsable code_size %q", tokens[4])
		return
	}

	var fields [6]uint32
	names := [6]string{"prolog", "epilog", "params", "saved", "locals", "max_stack"}
	for i := 0; i < 6; i++ {
		v, err := strconv.ParseUint(tokens[5+i], 16, 32)
		if err != nil {
			warn("STACK record has an unparsable %s field %q", names[i], tokens[5+i])
			return
		}
		fields[i] = uint32(v)
	}

	info := UnwindInfo{
		PrologSize:        fields[0],
		EpilogSize:        fields[1],
		ParameterSize:     fields[2],
		SavedRegisterSize: fields[3],
		LocalSize:         fields[4],
		MaxStackSize:      fields[5],
		ProgramString:     tokens[11],
		Valid:             true,
	}

	if !m.unwind[typ].StoreRange(rva, codeSize, info) {
		warn("STACK type %d range [%x,%x) partially overlaps an existing one; dropping", typ, rva, rva+codeSize)
	}
}
