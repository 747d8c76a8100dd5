// Copyright (c) 2026 PassGuard Team
// PassGuard - password rule profile manager
// This source code is licensed under the MIT license found in the LICENSE file.

package model

import (
	"encoding/json"
	"fmt"
	"sort"
	"unicode/utf8"
)

// CharSet is a set of individual characters, kept sorted and free of
// duplicates. It encodes as a JSON array of one-character strings.
type CharSet []rune

// NewCharSet builds a set from every rune of s.
func NewCharSet(s string) CharSet {
	var cs CharSet
	for _, r := range s {
		cs = cs.Add(r)
	}
	return cs
}

// Add returns the set with r inserted.
func (cs CharSet) Add(r rune) CharSet {
	i := sort.Search(len(cs), func(i int) bool { return cs[i] >= r })
	if i < len(cs) && cs[i] == r {
		return cs
	}
	cs = append(cs, 0)
	copy(cs[i+1:], cs[i:])
	cs[i] = r
	return cs
}

// Contains reports whether r is in the set.
func (cs CharSet) Contains(r rune) bool {
	i := sort.Search(len(cs), func(i int) bool { return cs[i] >= r })
	return i < len(cs) && cs[i] == r
}

// String returns the characters concatenated in order.
func (cs CharSet) String() string { return string(cs) }

// Clone returns an independent copy.
func (cs CharSet) Clone() CharSet {
	if cs == nil {
		return nil
	}
	out := make(CharSet, len(cs))
	copy(out, cs)
	return out
}

func (cs CharSet) MarshalJSON() ([]byte, error) {
	out := make([]string, 0, len(cs))
	for _, r := range cs {
		out = append(out, string(r))
	}
	return json.Marshal(out)
}

// UnmarshalJSON accepts an array of strings, each exactly one character long.
func (cs *CharSet) UnmarshalJSON(data []byte) error {
	if isJSONNull(data) {
		*cs = nil
		return nil
	}
	var raw []string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	var set CharSet
	for _, s := range raw {
		if utf8.RuneCountInString(s) != 1 {
			return fmt.Errorf("forbidden character %q must be exactly one character", s)
		}
		r, _ := utf8.DecodeRuneInString(s)
		set = set.Add(r)
	}
	*cs = set
	return nil
}
