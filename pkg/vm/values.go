package vm

import (
	"strconv"
	"strings"

	"glacia/pkg/store"
)

// Kind is the runtime type of a value.
type Kind string

const (
	KindInt       Kind = "int"
	KindFloat     Kind = "float"
	KindBool      Kind = "bool"
	KindString    Kind = "string"
	KindList      Kind = "list"
	KindGenerator Kind = "generator"
)

// IsReferenceType reports whether values of kind k are passed by sharing
// their Address rather than by copying it.
func IsReferenceType(k Kind) bool {
	return k == KindList || k == KindGenerator
}

// Value is an evaluated operand. Addr is the Address the value was read
// from, if any; for reference kinds it is the identity of the value.
type Value struct {
	Kind Kind
	I    int64
	F    float64
	B    bool
	S    string
	Addr string
}

func intValue(i int64) Value     { return Value{Kind: KindInt, I: i} }
func floatValue(f float64) Value { return Value{Kind: KindFloat, F: f} }
func boolValue(b bool) Value     { return Value{Kind: KindBool, B: b} }
func stringValue(s string) Value { return Value{Kind: KindString, S: s} }

func (v Value) isNumeric() bool { return v.Kind == KindInt || v.Kind == KindFloat }

func (v Value) float() float64 {
	if v.Kind == KindInt {
		return float64(v.I)
	}
	return v.F
}

// encode returns the Address cell text for a primitive value.
func (v Value) encode() string {
	switch v.Kind {
	case KindInt:
		return strconv.FormatInt(v.I, 10)
	case KindFloat:
		return strconv.FormatFloat(v.F, 'g', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.B)
	}
	return v.S
}

// decode turns an Address back into a value.
func decode(a *store.Address) (Value, error) {
	v := Value{Kind: Kind(a.Type), Addr: a.ID}
	var err error
	switch v.Kind {
	case KindInt:
		v.I, err = strconv.ParseInt(a.Value, 10, 64)
	case KindFloat:
		v.F, err = strconv.ParseFloat(a.Value, 64)
	case KindBool:
		v.B, err = strconv.ParseBool(a.Value)
	case KindString, KindList, KindGenerator:
		v.S = a.Value
	default:
		return v, runtimeErrorf("address %s has unknown type %q", a.ID, a.Type)
	}
	if err != nil {
		return v, runtimeErrorf("address %s holds malformed %s %q", a.ID, a.Type, a.Value)
	}
	return v, nil
}

// truthy is the guard interpretation of a value: bools, and ints where
// non-zero is true.
func truthy(v Value) (bool, error) {
	switch v.Kind {
	case KindBool:
		return v.B, nil
	case KindInt:
		return v.I != 0, nil
	}
	return false, runtimeErrorf("condition must be bool or int, got %s", v.Kind)
}

// render formats v the way print shows it.
func (ex *exec) render(v Value) (string, error) {
	switch v.Kind {
	case KindString:
		return v.S, nil
	case KindGenerator:
		return "<generator>", nil
	case KindList:
		items, err := ex.listValues(v)
		if err != nil {
			return "", err
		}
		parts := make([]string, len(items))
		for i, it := range items {
			if parts[i], err = ex.render(it); err != nil {
				return "", err
			}
		}
		return "[" + strings.Join(parts, ", ") + "]", nil
	}
	return v.encode(), nil
}
