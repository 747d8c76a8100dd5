// Copyright (c) 2026 PassGuard Team
// PassGuard - password rule profile manager
// This source code is licensed under the MIT license found in the LICENSE file.

package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidProfile is returned when a profile fails validation. It is always
// wrapped together with the list of violated rules.
var ErrInvalidProfile = errors.New("invalid profile")

// Validate checks the profile invariants and returns an error wrapping
// ErrInvalidProfile that names every violation, or nil.
func (p RuleProfile) Validate() error {
	var problems []string
	if p.MinLength < 1 {
		problems = append(problems, fmt.Sprintf("minLength must be at least 1 (got %d)", p.MinLength))
	}
	if p.MaxLength < p.MinLength {
		problems = append(problems, fmt.Sprintf("maxLength %d is below minLength %d", p.MaxLength, p.MinLength))
	}
	if strings.TrimSpace(p.Name) == "" {
		problems = append(problems, "name must not be blank")
	}
	for _, t := range AllCharacterTypes {
		req := p.CharacterRules.Get(t)
		switch {
		case req == "":
			problems = append(problems, fmt.Sprintf("character rule for %s is missing", t))
		case !req.Known():
			problems = append(problems, fmt.Sprintf("character rule for %s has unknown level %q", t, req))
		}
		if n := p.MinimumCounts.Get(t); n < 0 {
			problems = append(problems, fmt.Sprintf("minimum count for %s must not be negative (got %d)", t, n))
		}
	}
	if p.CharacterRules.AllForbidden() {
		problems = append(problems, "at least one character class must not be forbidden")
	}
	if len(problems) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrInvalidProfile, strings.Join(problems, "; "))
}

// IsValid reports whether Validate returns nil.
func (p RuleProfile) IsValid() bool {
	return p.Validate() == nil
}

// UnmarshalJSON applies the defaults of a new profile to every field missing
// from data. Unknown fields are ignored.
func (p *RuleProfile) UnmarshalJSON(data []byte) error {
	type plain RuleProfile
	v := plain{
		MinLength:      DefaultMinLength,
		MaxLength:      DefaultMaxLength,
		CharacterRules: DefaultCharacterRules(),
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*p = RuleProfile(v)
	return nil
}
