// Package record defines the attribute value model shared by the vector
// readers, the enricher and the table loader.
//
// Attribute values in vector files are loosely typed: one column can hold
// strings, numbers, dates and booleans. Value keeps the kind explicit so that
// downstream code (column type inference, driver binding, string comparison)
// switches on Kind instead of type-asserting interface{} values.
package record

import (
	"strconv"
	"strings"
	"time"
)

// Kind discriminates the payload carried by a Value.
type Kind uint8

const (
	Null Kind = iota
	String
	Int
	Float
	Bool
	Time
)

// String returns the lower-case kind name.
func (k Kind) String() string {
	switch k {
	case Null:
		return "null"
	case String:
		return "string"
	case Int:
		return "int"
	case Float:
		return "float"
	case Bool:
		return "bool"
	case Time:
		return "time"
	default:
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Value is a tagged union over the attribute kinds. Only the field matching
// Kind is meaningful. The zero Value is Null.
type Value struct {
	Kind  Kind
	Str   string
	Int   int64
	Float float64
	Bool  bool
	Time  time.Time
}

// NullValue returns the Null value.
func NullValue() Value { return Value{} }

// StringValue wraps s.
func StringValue(s string) Value { return Value{Kind: String, Str: s} }

// IntValue wraps n.
func IntValue(n int64) Value { return Value{Kind: Int, Int: n} }

// FloatValue wraps f.
func FloatValue(f float64) Value { return Value{Kind: Float, Float: f} }

// BoolValue wraps b.
func BoolValue(b bool) Value { return Value{Kind: Bool, Bool: b} }

// TimeValue wraps t.
func TimeValue(t time.Time) Value { return Value{Kind: Time, Time: t} }

// IsNull reports whether v carries no value.
func (v Value) IsNull() bool { return v.Kind == Null }

// IsBlank reports whether v is Null or a string that is empty after trimming.
func (v Value) IsBlank() bool {
	switch v.Kind {
	case Null:
		return true
	case String:
		return strings.TrimSpace(v.Str) == ""
	default:
		return false
	}
}

// String renders the value the way it is compared and written as text.
// Null renders as the empty string.
func (v Value) String() string {
	switch v.Kind {
	case String:
		return v.Str
	case Int:
		return strconv.FormatInt(v.Int, 10)
	case Float:
		return strconv.FormatFloat(v.Float, 'f', -1, 64)
	case Bool:
		return strconv.FormatBool(v.Bool)
	case Time:
		return v.Time.Format(time.RFC3339Nano)
	default:
		return ""
	}
}

// Any returns the value as a database/sql bind argument. Null maps to nil.
func (v Value) Any() any {
	switch v.Kind {
	case String:
		return v.Str
	case Int:
		return v.Int
	case Float:
		return v.Float
	case Bool:
		return v.Bool
	case Time:
		return v.Time
	default:
		return nil
	}
}

// Equal reports whether v and o have the same kind and payload.
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case Null:
		return true
	case String:
		return v.Str == o.Str
	case Int:
		return v.Int == o.Int
	case Float:
		return v.Float == o.Float
	case Bool:
		return v.Bool == o.Bool
	case Time:
		return v.Time.Equal(o.Time)
	default:
		return false
	}
}

// FromAny converts a decoded Go value into a Value. Unsupported types map to
// Null.
func FromAny(x any) Value {
	switch t := x.(type) {
	case nil:
		return NullValue()
	case Value:
		return t
	case string:
		return StringValue(t)
	case bool:
		return BoolValue(t)
	case int:
		return IntValue(int64(t))
	case int32:
		return IntValue(int64(t))
	case int64:
		return IntValue(t)
	case float32:
		return FloatValue(float64(t))
	case float64:
		return FloatValue(t)
	case time.Time:
		return TimeValue(t)
	case []byte:
		return StringValue(string(t))
	default:
		return NullValue()
	}
}

// Layouts accepted by ParseDateTime, tried in order. Values without a zone
// are read as UTC.
var dateTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// ParseDateTime parses s as a timestamp with a time of day. Plain dates are
// rejected.
func ParseDateTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if len(s) < len("2006-01-02T15:04:05") {
		return time.Time{}, false
	}
	for _, layout := range dateTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ParseTime is ParseDateTime that also accepts a plain 2006-01-02 date.
func ParseTime(s string) (time.Time, bool) {
	if t, ok := ParseDateTime(s); ok {
		return t, true
	}
	t, err := time.Parse("2006-01-02", strings.TrimSpace(s))
	return t, err == nil
}
