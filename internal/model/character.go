// Copyright (c) 2026 PassGuard Team
// PassGuard - password rule profile manager
// This source code is licensed under the MIT license found in the LICENSE file.

package model

import (
	"encoding/json"
	"fmt"
	"strings"
)

// CharacterType is one of the four fixed lexical classes of a password.
type CharacterType string

const (
	Uppercase CharacterType = "UPPERCASE"
	Lowercase CharacterType = "LOWERCASE"
	Digits    CharacterType = "DIGITS"
	Symbols   CharacterType = "SYMBOLS"
)

// AllCharacterTypes lists every character class in display order.
var AllCharacterTypes = []CharacterType{Uppercase, Lowercase, Digits, Symbols}

// CharacterSet returns the alphabet of the class.
func (t CharacterType) CharacterSet() string {
	switch t {
	case Uppercase:
		return "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	case Lowercase:
		return "abcdefghijklmnopqrstuvwxyz"
	case Digits:
		return "0123456789"
	case Symbols:
		return "!@#$%^&*()_+-=[]{}|;:,.<>?"
	default:
		return ""
	}
}

// LabelKey returns the i18n message id for the class label.
func (t CharacterType) LabelKey() string {
	switch t {
	case Uppercase:
		return "character_type.uppercase"
	case Lowercase:
		return "character_type.lowercase"
	case Digits:
		return "character_type.digits"
	case Symbols:
		return "character_type.symbols"
	default:
		return string(t)
	}
}

// ParseCharacterType parses a class name case-insensitively.
func ParseCharacterType(s string) (CharacterType, error) {
	for _, t := range AllCharacterTypes {
		if strings.EqualFold(s, string(t)) {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown character type %q", s)
}

// Requirement is the requirement level applied to a character class.
type Requirement string

const (
	Required  Requirement = "REQUIRED"
	Optional  Requirement = "OPTIONAL"
	Forbidden Requirement = "FORBIDDEN"
)

// Known reports whether r is one of the three defined levels.
func (r Requirement) Known() bool {
	return r == Required || r == Optional || r == Forbidden
}

// LabelKey returns the i18n message id for the requirement label.
func (r Requirement) LabelKey() string {
	switch r {
	case Required:
		return "requirement.required"
	case Optional:
		return "requirement.optional"
	case Forbidden:
		return "requirement.forbidden"
	default:
		return string(r)
	}
}

// ParseRequirement parses a requirement level case-insensitively.
func ParseRequirement(s string) (Requirement, error) {
	for _, r := range []Requirement{Required, Optional, Forbidden} {
		if strings.EqualFold(s, string(r)) {
			return r, nil
		}
	}
	return "", fmt.Errorf("unknown requirement %q (want required, optional or forbidden)", s)
}

// CharacterRules holds exactly one requirement slot per character class.
// An empty slot means the class is missing and fails validation.
type CharacterRules struct {
	Uppercase Requirement
	Lowercase Requirement
	Digits    Requirement
	Symbols   Requirement
}

// DefaultCharacterRules marks every class OPTIONAL.
func DefaultCharacterRules() CharacterRules {
	return CharacterRules{Uppercase: Optional, Lowercase: Optional, Digits: Optional, Symbols: Optional}
}

// Get returns the requirement for t.
func (r CharacterRules) Get(t CharacterType) Requirement {
	switch t {
	case Uppercase:
		return r.Uppercase
	case Lowercase:
		return r.Lowercase
	case Digits:
		return r.Digits
	case Symbols:
		return r.Symbols
	default:
		return ""
	}
}

// Set assigns the requirement for t. Unknown classes are ignored.
func (r *CharacterRules) Set(t CharacterType, req Requirement) {
	switch t {
	case Uppercase:
		r.Uppercase = req
	case Lowercase:
		r.Lowercase = req
	case Digits:
		r.Digits = req
	case Symbols:
		r.Symbols = req
	}
}

// Missing returns the classes that have no requirement level.
func (r CharacterRules) Missing() []CharacterType {
	var out []CharacterType
	for _, t := range AllCharacterTypes {
		if r.Get(t) == "" {
			out = append(out, t)
		}
	}
	return out
}

// AllForbidden reports whether every class is FORBIDDEN.
func (r CharacterRules) AllForbidden() bool {
	for _, t := range AllCharacterTypes {
		if r.Get(t) != Forbidden {
			return false
		}
	}
	return true
}

// MarshalJSON encodes the rules as {"UPPERCASE":"REQUIRED",...}, omitting
// empty slots.
func (r CharacterRules) MarshalJSON() ([]byte, error) {
	m := make(map[CharacterType]Requirement, len(AllCharacterTypes))
	for _, t := range AllCharacterTypes {
		if v := r.Get(t); v != "" {
			m[t] = v
		}
	}
	return json.Marshal(m)
}

// UnmarshalJSON resets every slot and fills only the classes present in the
// object. Unknown class keys are ignored.
func (r *CharacterRules) UnmarshalJSON(data []byte) error {
	if isJSONNull(data) {
		return nil
	}
	var m map[string]Requirement
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	*r = CharacterRules{}
	for k, v := range m {
		r.Set(CharacterType(k), v)
	}
	return nil
}

// MinimumCounts holds one minimum occurrence count per character class.
type MinimumCounts struct {
	Uppercase int
	Lowercase int
	Digits    int
	Symbols   int
}

// Get returns the count stored for t.
func (c MinimumCounts) Get(t CharacterType) int {
	switch t {
	case Uppercase:
		return c.Uppercase
	case Lowercase:
		return c.Lowercase
	case Digits:
		return c.Digits
	case Symbols:
		return c.Symbols
	default:
		return 0
	}
}

// Set stores n for t. Unknown classes are ignored.
func (c *MinimumCounts) Set(t CharacterType, n int) {
	switch t {
	case Uppercase:
		c.Uppercase = n
	case Lowercase:
		c.Lowercase = n
	case Digits:
		c.Digits = n
	case Symbols:
		c.Symbols = n
	}
}

// Effective returns the count for t when the class is REQUIRED, else 0.
func (c MinimumCounts) Effective(t CharacterType, rules CharacterRules) int {
	if rules.Get(t) != Required {
		return 0
	}
	return c.Get(t)
}

func (c MinimumCounts) MarshalJSON() ([]byte, error) {
	m := make(map[CharacterType]int, len(AllCharacterTypes))
	for _, t := range AllCharacterTypes {
		m[t] = c.Get(t)
	}
	return json.Marshal(m)
}

func (c *MinimumCounts) UnmarshalJSON(data []byte) error {
	if isJSONNull(data) {
		return nil
	}
	var m map[string]int
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	*c = MinimumCounts{}
	for k, v := range m {
		c.Set(CharacterType(k), v)
	}
	return nil
}

func isJSONNull(data []byte) bool {
	return strings.TrimSpace(string(data)) == "null"
}
