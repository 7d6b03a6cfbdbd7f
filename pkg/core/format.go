package core

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// TimestampLayout is the default entry timestamp (MySQL datetime).
const TimestampLayout = "2006-01-02 15:04:05"

// Body prefixes, one per rendering rule.
const (
	PrefixJSON       = "JSON String => Decoded:\n"
	PrefixString     = "String:\n"
	PrefixStructured = "Array/Object:\n"
	PrefixScalar     = "Scalar "
)

// EntrySeparator terminates every entry.
const EntrySeparator = "\n\n"

// Entry is one log call: timestamp, level and payload.
type Entry struct {
	Time    time.Time
	Level   Level
	Payload Payload
}

// Format renders an entry as "[<ts>] <LEVEL>: <body>\n\n".
// An empty layout uses TimestampLayout.
func Format(e Entry, layout string) string {
	if layout == "" {
		layout = TimestampLayout
	}
	return "[" + e.Time.Format(layout) + "] " + e.Level.String() + ": " + FormatBody(e.Payload) + EntrySeparator
}

// FormatBody renders the payload. It never panics; encoding failures are
// rendered as a description of the failure.
func FormatBody(p Payload) (body string) {
	defer func() {
		if r := recover(); r != nil {
			body = encodingFailure(p.kind, fmt.Errorf("panic: %v", r))
		}
	}()

	switch p.kind {
	case KindText:
		if decoded, ok := decodeStructuredText(p.text); ok {
			out, err := pretty(decoded)
			if err != nil {
				return encodingFailure(KindText, err)
			}
			return PrefixJSON + out
		}
		return PrefixString + p.text
	case KindStructured:
		out, err := pretty(p.value)
		if err != nil {
			return encodingFailure(KindStructured, err)
		}
		return PrefixStructured + out
	default:
		return PrefixScalar + "(" + scalarType(p.value) + "): " + scalarLiteral(p.value)
	}
}

func encodingFailure(kind PayloadKind, err error) string {
	prefix := PrefixStructured
	if kind == KindText {
		prefix = PrefixJSON
	}
	return prefix + "<encoding failed: " + err.Error() + ">"
}

// decodeStructuredText reports whether s is exactly one JSON object or array.
func decodeStructuredText(s string) (any, bool) {
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, false
	}
	var extra json.RawMessage
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		return nil, false
	}

	switch v.(type) {
	case map[string]any, []any:
		return v, true
	default:
		return nil, false
	}
}

func pretty(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func scalarType(v any) string {
	if v == nil {
		return "nil"
	}
	if _, ok := v.(error); ok {
		return "error"
	}
	return fmt.Sprintf("%T", v)
}

func scalarLiteral(v any) string {
	if v == nil {
		return "nil"
	}
	switch v := v.(type) {
	case error:
		return v.Error()
	case fmt.Stringer:
		return v.String()
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Bool:
		return strconv.FormatBool(rv.Bool())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return strconv.FormatUint(rv.Uint(), 10)
	case reflect.Float32:
		return strconv.FormatFloat(rv.Float(), 'g', -1, 32)
	case reflect.Float64:
		return strconv.FormatFloat(rv.Float(), 'g', -1, 64)
	case reflect.String:
		return strconv.Quote(rv.String())
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		if rv.IsNil() {
			return "nil"
		}
	}
	return fmt.Sprintf("%#v", v)
}

var (
	headerRe     = regexp.MustCompile(`^\[([^\]\n]+)\] ([^:\n]+): `)
	lineHeaderRe = regexp.MustCompile(`(?m)^\[[^\]\n]+\] [^:\n]+: `)
)

// ParseHeader splits an entry header off the start of s.
func ParseHeader(s string) (ts string, level Level, rest string, ok bool) {
	m := headerRe.FindStringSubmatchIndex(s)
	if m == nil {
		return "", "", s, false
	}
	return s[m[2]:m[3]], Level(s[m[4]:m[5]]), s[m[1]:], true
}

// CountEntries counts entry headers that start the contents or directly
// follow a blank line.
func CountEntries(contents string) int {
	n := 0
	for _, loc := range lineHeaderRe.FindAllStringIndex(contents, -1) {
		if loc[0] == 0 || strings.HasSuffix(contents[:loc[0]], EntrySeparator) {
			n++
		}
	}
	return n
}
