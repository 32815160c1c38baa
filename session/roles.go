package session

import (
	"encoding/json"
	"slices"
	"strings"
)

// RoleSet is a set of opaque role tags kept sorted and free of duplicates so
// that equality never depends on order.
type RoleSet []string

// NewRoleSet normalizes roles into a set. Blank entries are dropped.
func NewRoleSet(roles ...string) RoleSet {
	out := make(RoleSet, 0, len(roles))
	for _, r := range roles {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		out = append(out, r)
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// ParseRoles decodes a stored role column. A JSON array yields its elements;
// anything else is treated as a single role tag.
func ParseRoles(raw string) RoleSet {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return RoleSet{}
	}
	var list []string
	if err := json.Unmarshal([]byte(raw), &list); err == nil {
		return NewRoleSet(list...)
	}
	var single string
	if err := json.Unmarshal([]byte(raw), &single); err == nil {
		return ParseRoles(single)
	}
	return NewRoleSet(raw)
}

// Len returns the number of roles.
func (s RoleSet) Len() int { return len(s) }

// Has reports membership of role.
func (s RoleSet) Has(role string) bool {
	return slices.Contains(s, role)
}

// Intersects reports whether s and other share at least one role.
func (s RoleSet) Intersects(other RoleSet) bool {
	for _, r := range other {
		if s.Has(r) {
			return true
		}
	}
	return false
}

// Equal compares two sets regardless of their order.
func (s RoleSet) Equal(other RoleSet) bool {
	return slices.Equal(NewRoleSet(s...), NewRoleSet(other...))
}

// Clone returns an independent copy.
func (s RoleSet) Clone() RoleSet {
	if s == nil {
		return nil
	}
	return slices.Clone(s)
}

// String renders the set as a JSON array, the stored column format.
func (s RoleSet) String() string {
	b, _ := json.Marshal([]string(NewRoleSet(s...)))
	return string(b)
}

// MarshalJSON always emits an array, never null.
func (s RoleSet) MarshalJSON() ([]byte, error) {
	if s == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]string(NewRoleSet(s...)))
}

// UnmarshalJSON accepts an array, a JSON-encoded array inside a string or a
// bare role string.
func (s *RoleSet) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*s = NewRoleSet(list...)
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = ParseRoles(raw)
	return nil
}
