// Copyright (c) 2026 PassGuard Team
// PassGuard - password rule profile manager
// This source code is licensed under the MIT license found in the LICENSE file.

// Package defaults holds the canonical profiles written on first start.
package defaults // import "github.com/TomPlanche/PassGuard/internal/defaults"

import (
	"strings"
	"time"

	"github.com/TomPlanche/PassGuard/internal/model"
)

type template struct {
	name        string
	description string
	minLength   int
	maxLength   int
	symbols     model.Requirement
}

// catalog is kept in seeding order.
var catalog = []template{
	{"General", "Default profile with balanced rules", 12, 32, model.Optional},
	{"Gmail", "Profile for Gmail accounts", 12, 100, model.Optional},
	{"Banking", "Profile for banking applications", 8, 16, model.Required},
	{"Gaming", "Profile for gaming platforms", 8, 32, model.Optional},
}

func (t template) build(now time.Time) model.RuleProfile {
	p := model.NewRuleProfile(t.name, now)
	p.Description = t.description
	p.MinLength = t.minLength
	p.MaxLength = t.maxLength
	p.CharacterRules = model.CharacterRules{
		Uppercase: model.Required,
		Lowercase: model.Required,
		Digits:    model.Required,
		Symbols:   t.symbols,
	}
	p.MinimumCounts = model.MinimumCounts{Uppercase: 1, Lowercase: 1, Digits: 1}
	if t.symbols == model.Required {
		p.MinimumCounts.Symbols = 1
	}
	return p
}

// Profiles returns the four default profiles, each with a fresh id and both
// timestamps set to now.
func Profiles(now time.Time) []model.RuleProfile {
	out := make([]model.RuleProfile, 0, len(catalog))
	for _, t := range catalog {
		out = append(out, t.build(now))
	}
	return out
}

// Names lists the default profile names in seeding order.
func Names() []string {
	names := make([]string, 0, len(catalog))
	for _, t := range catalog {
		names = append(names, t.name)
	}
	return names
}

// Get builds the default profile called name (case-insensitive).
func Get(name string, now time.Time) (model.RuleProfile, bool) {
	for _, t := range catalog {
		if strings.EqualFold(t.name, strings.TrimSpace(name)) {
			return t.build(now), true
		}
	}
	return model.RuleProfile{}, false
}
