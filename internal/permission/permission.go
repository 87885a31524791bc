// Package permission implements the 4-bit CRUD permission mask carried
// by core groups. The decimal value 0-15 is the canonical storage and
// wire form; at JSON boundaries the mask is represented as an object
// with exactly the keys create, read, update and delete.
package permission

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Mask packs CRUD flags into four bits. Bit order is fixed so the
// binary form reads left to right as the CRUD string: 12 -> 1100 ->
// create and read allowed.
type Mask uint8

const (
	Delete Mask = 1 << iota
	Update
	Read
	Create

	None Mask = 0
	Full Mask = Create | Read | Update | Delete
)

// OrgAdmin is the grant carried by the bootstrap organization-admin group.
const OrgAdmin = Full

// ErrInvalidKeys indicates a JSON permission object whose key set is not
// exactly {create, read, update, delete}.
var ErrInvalidKeys = errors.New("permission: object requires exactly the keys create, read, update, delete")

// Set is the structured form of a mask.
type Set struct {
	Create bool `json:"create"`
	Read   bool `json:"read"`
	Update bool `json:"update"`
	Delete bool `json:"delete"`
}

// Encode packs a structured set back into its 4-bit value.
func Encode(s Set) Mask {
	var m Mask
	if s.Create {
		m |= Create
	}
	if s.Read {
		m |= Read
	}
	if s.Update {
		m |= Update
	}
	if s.Delete {
		m |= Delete
	}
	return m
}

// Decode expands a stored integer into its structured form. Values
// above 15 are clamped to the full mask rather than rejected.
func Decode(v int) Set {
	m := Clamp(v)
	return Set{
		Create: m&Create != 0,
		Read:   m&Read != 0,
		Update: m&Update != 0,
		Delete: m&Delete != 0,
	}
}

// Clamp normalizes an integer to the valid mask range. Negative values
// collapse to None, values above 15 to Full.
func Clamp(v int) Mask {
	if v < 0 {
		return None
	}
	if v > int(Full) {
		return Full
	}
	return Mask(v)
}

// Has reports whether every flag in want is granted.
func (m Mask) Has(want Mask) bool {
	return m&want == want
}

// Set returns the structured form of the mask.
func (m Mask) Set() Set {
	return Decode(int(m))
}

// String renders the mask as its 4-character binary display form, e.g.
// "1100" for create+read.
func (m Mask) String() string {
	return fmt.Sprintf("%04b", uint8(Clamp(int(m))))
}

// MarshalJSON emits the boolean object form.
func (m Mask) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.Set())
}

// UnmarshalJSON accepts only an object whose key set is exactly
// {create, read, update, delete} with boolean values.
func (m *Mask) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return ErrInvalidKeys
	}
	if len(raw) != 4 {
		return ErrInvalidKeys
	}
	var s Set
	for key, value := range raw {
		var flag bool
		if err := json.Unmarshal(value, &flag); err != nil {
			return ErrInvalidKeys
		}
		switch key {
		case "create":
			s.Create = flag
		case "read":
			s.Read = flag
		case "update":
			s.Update = flag
		case "delete":
			s.Delete = flag
		default:
			return ErrInvalidKeys
		}
	}
	*m = Encode(s)
	return nil
}
