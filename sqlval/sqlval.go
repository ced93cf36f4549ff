package sqlval

import (
	"encoding/hex"
	"fmt"
	"reflect"
	"strings"
	"time"
)

// Kind is the literal shape a value renders as.
type Kind int

const (
	KindOther Kind = iota
	KindNull
	KindBool
	KindNumber
	KindDate
	KindBinary
	KindSequence
	KindString
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindDate:
		return "date"
	case KindBinary:
		return "binary"
	case KindSequence:
		return "sequence"
	case KindString:
		return "string"
	default:
		return "other"
	}
}

// Undefined stands for a value that was never supplied. It is distinct from
// nil, which renders as NULL; ToSQL rejects Undefined.
var Undefined = undefined{}

type undefined struct{}

func (undefined) String() string { return "undefined" }

var timeType = reflect.TypeOf(time.Time{})

// Classify reports which literal shape v renders as. Pointers and
// interfaces are followed; a nil pointer is KindNull.
func Classify(v any) Kind {
	kind, _ := classify(v)
	return kind
}

// classify matches v against the recognized shapes in precedence order:
// null, bool, number, date, binary, sequence, string. The first match wins.
func classify(v any) (Kind, reflect.Value) {
	if v == nil {
		return KindNull, reflect.Value{}
	}

	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return KindNull, rv
		}
		rv = rv.Elem()
	}

	switch rv.Kind() {
	case reflect.Bool:
		return KindBool, rv
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return KindNumber, rv
	}

	if rv.Type() == timeType {
		return KindDate, rv
	}

	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return KindBinary, rv
		}
		return KindSequence, rv
	case reflect.String:
		return KindString, rv
	}

	return KindOther, rv
}

// ToSQL renders v as a SQL literal.
//
//	nil, nil pointer      NULL
//	bool                  TRUE / FALSE
//	integers, floats      123, 1.11, 1e+21
//	time.Time             '2021-01-01T00:00:00.000Z', '+010000-01-01T00:00:00.000Z'
//	[]byte, [N]byte       X'68656c6c6f'
//	other slices, arrays  [1, 'a', TRUE]
//	string                'it''s'
//
// Any other value returns an *UnsupportedTypeError.
func ToSQL(v any) (string, error) {
	kind, rv := classify(v)

	switch kind {
	case KindNull:
		return "NULL", nil

	case KindBool:
		if rv.Bool() {
			return "TRUE", nil
		}
		return "FALSE", nil

	case KindNumber:
		return formatNumber(rv), nil

	case KindDate:
		return "'" + formatTime(rv.Interface().(time.Time)) + "'", nil

	case KindBinary:
		return "X'" + hex.EncodeToString(bytesOf(rv)) + "'", nil

	case KindSequence:
		return formatSequence(rv)

	case KindString:
		return quoteString(rv.String()), nil
	}

	return "", unsupported(v, rv)
}

func formatSequence(rv reflect.Value) (string, error) {
	var b strings.Builder
	b.WriteByte('[')
	for i := 0; i < rv.Len(); i++ {
		if i > 0 {
			b.WriteString(", ")
		}
		lit, err := ToSQL(rv.Index(i).Interface())
		if err != nil {
			return "", err
		}
		b.WriteString(lit)
	}
	b.WriteByte(']')
	return b.String(), nil
}

func bytesOf(rv reflect.Value) []byte {
	if rv.Kind() == reflect.Slice {
		return rv.Bytes()
	}
	out := make([]byte, rv.Len())
	for i := range out {
		out[i] = byte(rv.Index(i).Uint())
	}
	return out
}

func quoteString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func unsupported(v any, rv reflect.Value) error {
	if _, ok := v.(undefined); ok {
		return &UnsupportedTypeError{TypeName: "undefined", Value: "undefined"}
	}

	name := rv.Kind().String()
	switch rv.Kind() {
	case reflect.Struct, reflect.Map:
		name = "object"
	case reflect.Func:
		name = "function"
	}
	return &UnsupportedTypeError{TypeName: name, Value: fmt.Sprintf("%v", v)}
}
