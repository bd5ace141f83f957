// Package kfmt provides the kernel's allocation-free formatted output
// primitives. Output produced before the boot sequence registers a sink is
// buffered in a small in-memory ring and replayed once a sink shows up.
package kfmt

import (
	"io"
	"unsafe"
)

// maxIntWidth bounds the formatted width of a single integer argument,
// padding included, leaving one slot for a sign.
const maxIntWidth = 32

var (
	missingArgText = []byte("(MISSING)")
	wrongTypeText  = []byte("%!(WRONGTYPE)")
	noVerbText     = []byte("%!(NOVERB)")
	extraArgText   = []byte("%!(EXTRA)")
	trueText       = []byte("true")
	falseText      = []byte("false")

	// intFmtBuf is the scratch space where writeInt assembles digits.
	intFmtBuf [maxIntWidth]byte

	// oneByte ferries single characters to doWrite; format and string
	// bytes are emitted one at a time because slicing a string value
	// allocates.
	oneByte = []byte{0}

	// earlyLog buffers the output emitted while outputSink is nil.
	earlyLog logRing

	// outputSink is where Printf sends its output.
	outputSink io.Writer
)

// SetOutputSink registers w as the target for Printf output and drains any
// output buffered while no sink was registered into it.
func SetOutputSink(w io.Writer) {
	outputSink = w
	if w != nil {
		io.Copy(w, &earlyLog)
	}
}

// Printf formats its arguments without allocating memory, which makes it
// safe to call at any point of the boot sequence. It understands a subset
// of the fmt verbs:
//
//	%s	string or byte slice
//	%d	integer, base 10
//	%x	integer, base 16 with lower-case digits
//	%o	integer, base 8
//	%t	boolean
//
// A decimal width may precede the verb. Strings and base-10 integers
// shorter than the width are left-padded with spaces; base-8 and base-16
// integers are left-padded with zeroes. All built-in integer types are
// accepted. %p is deliberately unsupported: formatting pointers requires
// reflect, whose interface conversions allocate.
//
// Output goes to the sink registered via SetOutputSink; while no sink is
// registered it accumulates in a ring buffer instead.
func Printf(format string, args ...interface{}) {
	Fprintf(outputSink, format, args...)
}

// Fprintf behaves like Printf but writes to w instead of the registered
// sink.
func Fprintf(w io.Writer, format string, args ...interface{}) {
	var (
		argIndex int
		width    int
	)

	for pos := 0; pos < len(format); pos++ {
		ch := format[pos]
		if ch != '%' {
			oneByte[0] = ch
			doWrite(w, oneByte)
			continue
		}

		width = 0
	scanVerb:
		for pos++; pos < len(format); pos++ {
			switch ch = format[pos]; {
			case ch == '%':
				oneByte[0] = '%'
				doWrite(w, oneByte)
				break scanVerb
			case ch >= '0' && ch <= '9':
				width = width*10 + int(ch-'0')
			case ch == 'd' || ch == 'x' || ch == 'o' || ch == 's' || ch == 't':
				if argIndex >= len(args) {
					doWrite(w, missingArgText)
					break scanVerb
				}

				switch ch {
				case 'd':
					writeInt(w, args[argIndex], 10, width)
				case 'x':
					writeInt(w, args[argIndex], 16, width)
				case 'o':
					writeInt(w, args[argIndex], 8, width)
				case 's':
					writeString(w, args[argIndex], width)
				case 't':
					writeBool(w, args[argIndex])
				}

				argIndex++
				break scanVerb
			default:
				doWrite(w, noVerbText)
				break scanVerb
			}
		}
	}

	for ; argIndex < len(args); argIndex++ {
		doWrite(w, extraArgText)
	}
}

// writeBool emits "true" or "false". Booleans ignore any width.
func writeBool(w io.Writer, v interface{}) {
	val, ok := v.(bool)
	if !ok {
		doWrite(w, wrongTypeText)
		return
	}

	if val {
		doWrite(w, trueText)
	} else {
		doWrite(w, falseText)
	}
}

// writeString emits a string or byte slice value, left-padding it with
// spaces up to width.
func writeString(w io.Writer, v interface{}, width int) {
	switch val := v.(type) {
	case string:
		writePad(w, ' ', width-len(val))
		for i := 0; i < len(val); i++ {
			oneByte[0] = val[i]
			doWrite(w, oneByte)
		}
	case []byte:
		writePad(w, ' ', width-len(val))
		doWrite(w, val)
	default:
		doWrite(w, wrongTypeText)
	}
}

// writePad emits count copies of ch; a non-positive count is a no-op.
func writePad(w io.Writer, ch byte, count int) {
	oneByte[0] = ch
	for i := 0; i < count; i++ {
		doWrite(w, oneByte)
	}
}

// writeInt emits an integer value in the requested base, left-padding it up
// to width with the pad character of the base: spaces for base 10, zeroes
// for bases 8 and 16. All built-in signed and unsigned integer types are
// accepted. Digits are assembled right to left in intFmtBuf so no reversal
// pass is needed.
func writeInt(w io.Writer, v interface{}, base uint64, width int) {
	var (
		uval     uint64
		sval     int64
		unsigned = true
	)

	switch val := v.(type) {
	case uint8:
		uval = uint64(val)
	case uint16:
		uval = uint64(val)
	case uint32:
		uval = uint64(val)
	case uint64:
		uval = val
	case uintptr:
		uval = uint64(val)
	case int8:
		sval, unsigned = int64(val), false
	case int16:
		sval, unsigned = int64(val), false
	case int32:
		sval, unsigned = int64(val), false
	case int64:
		sval, unsigned = val, false
	case int:
		sval, unsigned = int64(val), false
	default:
		doWrite(w, wrongTypeText)
		return
	}

	negative := false
	if !unsigned {
		if sval < 0 {
			negative = true
			uval = uint64(-sval)
		} else {
			uval = uint64(sval)
		}
	}

	if width >= maxIntWidth {
		width = maxIntWidth - 1
	}

	padCh := byte('0')
	if base == 10 {
		padCh = ' '
	}

	pos := maxIntWidth
	for {
		pos--
		digit := byte(uval % base)
		if digit < 10 {
			intFmtBuf[pos] = '0' + digit
		} else {
			intFmtBuf[pos] = 'a' + digit - 10
		}

		if uval /= base; uval == 0 {
			break
		}
	}

	digitStart := pos
	for maxIntWidth-pos < width {
		pos--
		intFmtBuf[pos] = padCh
	}

	if negative {
		// The sign replaces the space pad next to the digits; with
		// zero padding or no padding it is prepended instead.
		if padCh == ' ' && pos < digitStart {
			intFmtBuf[digitStart-1] = '-'
		} else {
			pos--
			intFmtBuf[pos] = '-'
		}
	}

	doWrite(w, intFmtBuf[pos:])
}

// doWrite hides p from the compiler's escape analysis before handing it to
// the sink. The sink is an arbitrary io.Writer so without this hack the
// compiler flags p as escaping, and the resulting interface conversions in
// every caller would allocate, crashing any Printf call made before the Go
// allocator is up.
func doWrite(w io.Writer, p []byte) {
	sinkWrite(w, noEscape(unsafe.Pointer(&p)))
}

func sinkWrite(w io.Writer, bufPtr unsafe.Pointer) {
	p := *(*[]byte)(bufPtr)
	if w != nil {
		w.Write(p)
	} else {
		earlyLog.Write(p)
	}
}

// noEscape hides a pointer from escape analysis. This function is copied
// over from runtime/stubs.go
//go:nosplit
func noEscape(p unsafe.Pointer) unsafe.Pointer {
	x := uintptr(p)
	return unsafe.Pointer(x ^ 0)
}
