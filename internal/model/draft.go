// Copyright (c) 2026 PassGuard Team
// PassGuard - password rule profile manager
// This source code is licensed under the MIT license found in the LICENSE file.

package model

import (
	"errors"
	"strings"
	"time"
)

// ErrNameRequired is returned by Draft.Build when the name is blank.
var ErrNameRequired = errors.New("profile name is required")

// Draft is the editable form of a profile. Its setters coerce values the way
// the profile editor does, so a draft can only drift out of the valid range
// through the character rules.
type Draft struct {
	id        string
	createdAt int64

	Name                string
	Description         string
	minLength           int
	maxLength           int
	CharacterRules      CharacterRules
	MinimumCounts       MinimumCounts
	ForbiddenCharacters CharSet
}

// NewDraft returns an empty draft for a profile that does not exist yet.
func NewDraft() *Draft {
	return &Draft{
		minLength:      DefaultMinLength,
		maxLength:      DefaultMaxLength,
		CharacterRules: DefaultCharacterRules(),
	}
}

// DraftFrom loads an existing profile for editing.
func DraftFrom(p RuleProfile) *Draft {
	return &Draft{
		id:                  p.ID,
		createdAt:           p.CreatedAt,
		Name:                p.Name,
		Description:         p.Description,
		minLength:           p.MinLength,
		maxLength:           p.MaxLength,
		CharacterRules:      p.CharacterRules,
		MinimumCounts:       p.MinimumCounts,
		ForbiddenCharacters: p.ForbiddenCharacters.Clone(),
	}
}

// ID returns the id of the edited profile, or "" for a new one.
func (d *Draft) ID() string { return d.id }

func (d *Draft) MinLength() int { return d.minLength }
func (d *Draft) MaxLength() int { return d.maxLength }

// SetMinLength clamps n to [1, maxLength].
func (d *Draft) SetMinLength(n int) {
	if n > d.maxLength {
		n = d.maxLength
	}
	if n < 1 {
		n = 1
	}
	d.minLength = n
}

// SetMaxLength clamps n to at least minLength.
func (d *Draft) SetMaxLength(n int) {
	if n < d.minLength {
		n = d.minLength
	}
	d.maxLength = n
}

// SetLengths applies both bounds, widening the max first so that raising both
// at once is not clamped by the old maximum.
func (d *Draft) SetLengths(minLen, maxLen int) {
	if maxLen >= d.maxLength {
		d.SetMaxLength(maxLen)
		d.SetMinLength(minLen)
		return
	}
	d.SetMinLength(minLen)
	d.SetMaxLength(maxLen)
}

// SetRequirement sets the requirement level of one class.
func (d *Draft) SetRequirement(t CharacterType, r Requirement) {
	d.CharacterRules.Set(t, r)
}

// SetMinimumCount clamps n to at least 0.
func (d *Draft) SetMinimumCount(t CharacterType, n int) {
	if n < 0 {
		n = 0
	}
	d.MinimumCounts.Set(t, n)
}

// SetForbiddenCharacters replaces the forbidden set with the runes of s.
func (d *Draft) SetForbiddenCharacters(s string) {
	d.ForbiddenCharacters = NewCharSet(s)
}

// Build turns the draft into a validated profile. Edited profiles keep their
// id and creation time; new ones get a fresh id.
func (d *Draft) Build(now time.Time) (RuleProfile, error) {
	if strings.TrimSpace(d.Name) == "" {
		return RuleProfile{}, ErrNameRequired
	}
	ms := Millis(now)
	p := RuleProfile{
		ID:                  d.id,
		Name:                strings.TrimSpace(d.Name),
		Description:         d.Description,
		MinLength:           d.minLength,
		MaxLength:           d.maxLength,
		CharacterRules:      d.CharacterRules,
		MinimumCounts:       d.MinimumCounts,
		ForbiddenCharacters: d.ForbiddenCharacters.Clone(),
		CreatedAt:           d.createdAt,
		UpdatedAt:           ms,
	}
	if p.ID == "" {
		p.ID = GenerateID()
		p.CreatedAt = ms
	}
	if err := p.Validate(); err != nil {
		return RuleProfile{}, err
	}
	return p, nil
}
