package requirement

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Requirement is one named environment precondition. Version and Result
// are filled in by the evaluator; everything else comes from the list.
type Requirement struct {
	Name         string `yaml:"name" json:"name"`
	Required     string `yaml:"required" json:"required"`
	WeakRequired bool   `yaml:"weakRequired" json:"weakRequired"`
	HasNotice    string `yaml:"hasNotice" json:"hasNotice"`

	Version Value `yaml:"-" json:"version"`
	Result  bool  `yaml:"-" json:"result"`
}

// Kind identifies which variant a Value holds.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindString
)

func (k Kind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindString:
		return "string"
	default:
		return "null"
	}
}

// Value is a probed runtime value: undetermined (null), a flag or a string.
// The zero Value is null.
type Value struct {
	kind Kind
	b    bool
	s    string
}

// Null returns the undetermined value.
func Null() Value { return Value{} }

// Bool wraps a flag.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// String wraps a string.
func String(s string) Value { return Value{kind: KindString, s: s} }

// Kind returns the variant held by v.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether the value is undetermined.
func (v Value) IsNull() bool { return v.kind == KindNull }

// BoolValue returns the flag and whether v holds one.
func (v Value) BoolValue() (bool, bool) { return v.b, v.kind == KindBool }

// String renders v the way the runtime casts it to a string: true is "1",
// false and null are empty.
func (v Value) String() string {
	switch v.kind {
	case KindBool:
		if v.b {
			return "1"
		}
		return ""
	case KindString:
		return v.s
	default:
		return ""
	}
}

// Truthy applies the runtime's emptiness rules: null, false, "" and "0"
// are falsy.
func (v Value) Truthy() bool {
	switch v.kind {
	case KindBool:
		return v.b
	case KindString:
		return TruthyString(v.s)
	default:
		return false
	}
}

// MarshalJSON encodes null, bool or string.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindBool:
		return json.Marshal(v.b)
	case KindString:
		return json.Marshal(v.s)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON accepts null, bool, string and plain numbers.
func (v *Value) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	switch {
	case raw == "null":
		*v = Null()
		return nil
	case raw == "true" || raw == "false":
		*v = Bool(raw == "true")
		return nil
	case strings.HasPrefix(raw, `"`):
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = String(s)
		return nil
	default:
		if _, err := strconv.ParseFloat(raw, 64); err != nil {
			return fmt.Errorf("requirement: cannot decode %s as value", raw)
		}
		*v = String(raw)
		return nil
	}
}

// TruthyString reports whether s is non-empty and not "0".
func TruthyString(s string) bool {
	return s != "" && s != "0"
}
