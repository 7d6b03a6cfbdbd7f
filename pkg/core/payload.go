package core

import (
	"encoding/json"
	"reflect"
	"time"
)

// PayloadKind identifies which rendering rule applies to a Payload.
type PayloadKind int

const (
	KindText PayloadKind = iota
	KindStructured
	KindScalar
)

func (k PayloadKind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindStructured:
		return "structured"
	case KindScalar:
		return "scalar"
	default:
		return "unknown"
	}
}

// Payload is the value being logged. It is one of Text, Structured or Scalar
// and can only be built through those constructors.
type Payload struct {
	kind  PayloadKind
	text  string
	value any
}

// Text wraps a string. It is rendered as decoded JSON when the string holds a
// JSON object or array, and verbatim otherwise.
func Text(s string) Payload {
	return Payload{kind: KindText, text: s}
}

// Structured wraps a map, slice, array or struct.
func Structured(v any) Payload {
	return Payload{kind: KindStructured, value: v}
}

// Scalar wraps a number, bool, nil or any other single value.
func Scalar(v any) Payload {
	return Payload{kind: KindScalar, value: v}
}

// Kind reports the variant.
func (p Payload) Kind() PayloadKind { return p.kind }

// PayloadOf classifies an arbitrary value.
//
// Strings and byte slices become Text; maps, slices, arrays and structs (or
// pointers to them) become Structured; everything else is a Scalar.
func PayloadOf(v any) Payload {
	switch v := v.(type) {
	case Payload:
		return v
	case string:
		return Text(v)
	case json.RawMessage:
		return Text(string(v))
	case []byte:
		return Text(string(v))
	case nil:
		return Scalar(nil)
	case error, time.Time, time.Duration:
		return Scalar(v)
	}

	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return Scalar(v)
		}
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Map, reflect.Slice, reflect.Array, reflect.Struct:
		return Structured(v)
	default:
		return Scalar(v)
	}
}
