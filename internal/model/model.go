// Copyright (c) 2026 PassGuard Team
// PassGuard - password rule profile manager
// This source code is licensed under the MIT license found in the LICENSE file.

// package model defines the core data structures used throughout PassGuard.
// These structs represent the rule profiles as they are persisted, exported
// and imported.
package model // import "github.com/TomPlanche/PassGuard/internal/model"

import (
	"time"

	"github.com/google/uuid"
)

// Default length bounds for a freshly created profile.
const (
	DefaultMinLength = 8
	DefaultMaxLength = 64
)

// RuleProfile is a named, persisted set of password-construction constraints.
// It is only ever replaced as a whole; there is no partial update.
type RuleProfile struct {
	// ID is assigned once at creation and never reassigned.
	ID string `json:"id"`
	// Name is the display name. Must not be blank.
	Name string `json:"name"`
	// Description is free text and may be empty.
	Description string `json:"description"`

	MinLength int `json:"minLength"`
	MaxLength int `json:"maxLength"`

	// CharacterRules holds one requirement level per character class.
	CharacterRules CharacterRules `json:"characterRules"`
	// MinimumCounts is only meaningful for classes whose rule is REQUIRED.
	MinimumCounts MinimumCounts `json:"minimumCounts"`
	// ForbiddenCharacters must never appear, independently of CharacterRules.
	ForbiddenCharacters CharSet `json:"forbiddenCharacters"`

	// Epoch milliseconds.
	CreatedAt int64 `json:"createdAt"`
	UpdatedAt int64 `json:"updatedAt"`
}

// GenerateID returns a new unique profile identifier.
func GenerateID() string {
	return uuid.NewString()
}

// NewRuleProfile creates a profile with a fresh id, both timestamps set to now
// and the default, permissive rule set.
func NewRuleProfile(name string, now time.Time) RuleProfile {
	ms := Millis(now)
	return RuleProfile{
		ID:             GenerateID(),
		Name:           name,
		MinLength:      DefaultMinLength,
		MaxLength:      DefaultMaxLength,
		CharacterRules: DefaultCharacterRules(),
		CreatedAt:      ms,
		UpdatedAt:      ms,
	}
}

// WithUpdatedTimestamp returns a copy of p with UpdatedAt set to now.
func (p RuleProfile) WithUpdatedTimestamp(now time.Time) RuleProfile {
	c := p.Clone()
	c.UpdatedAt = Millis(now)
	return c
}

// Clone returns a deep copy of p.
func (p RuleProfile) Clone() RuleProfile {
	c := p
	c.ForbiddenCharacters = p.ForbiddenCharacters.Clone()
	return c
}

// CloneAll deep-copies a slice of profiles. A nil input yields an empty,
// non-nil slice so callers can encode it as [].
func CloneAll(in []RuleProfile) []RuleProfile {
	out := make([]RuleProfile, 0, len(in))
	for _, p := range in {
		out = append(out, p.Clone())
	}
	return out
}

// Millis converts t to epoch milliseconds.
func Millis(t time.Time) int64 { return t.UnixMilli() }

// FromMillis converts epoch milliseconds to a time.Time.
func FromMillis(ms int64) time.Time { return time.UnixMilli(ms) }
