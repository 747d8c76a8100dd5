// Copyright (c) 2026 PassGuard Team
// PassGuard - password rule profile manager
// This source code is licensed under the MIT license found in the LICENSE file.

// Package repository is the application-facing facade over the profile
// store. Presentation layers (the CLI, the HTTP API) depend on Repository
// rather than on a concrete store so tests can inject fakes.
package repository // import "github.com/TomPlanche/PassGuard/internal/repository"

import (
	"context"

	"github.com/TomPlanche/PassGuard/internal/model"
)

// ProfileStore is the minimal store surface the repository needs. It is
// satisfied by *store.Store.
type ProfileStore interface {
	LoadAll(ctx context.Context) ([]model.RuleProfile, error)
	GetByID(ctx context.Context, id string) (model.RuleProfile, bool, error)
	Upsert(ctx context.Context, p model.RuleProfile) error
	Delete(ctx context.Context, id string) (bool, error)
	DeleteAll(ctx context.Context) error
	ExportJSON(ctx context.Context) (string, error)
	ImportJSON(ctx context.Context, text string) (int, error)
	ReplaceAll(ctx context.Context, profiles []model.RuleProfile) error
	SeedDefaults(ctx context.Context) (bool, error)
	Watch(ctx context.Context) <-chan []model.RuleProfile
}

// Repository forwards every call to its store unchanged.
type Repository struct {
	store ProfileStore
}

// New creates a Repository over s.
func New(s ProfileStore) *Repository {
	return &Repository{store: s}
}

// Profiles streams the collection: the current snapshot first, then every
// committed change, until ctx ends.
func (r *Repository) Profiles(ctx context.Context) <-chan []model.RuleProfile {
	return r.store.Watch(ctx)
}

// GetProfiles returns the current collection in insertion order.
func (r *Repository) GetProfiles(ctx context.Context) ([]model.RuleProfile, error) {
	return r.store.LoadAll(ctx)
}

// GetProfileByID returns the profile with id; ok is false when none exists.
func (r *Repository) GetProfileByID(ctx context.Context, id string) (model.RuleProfile, bool, error) {
	return r.store.GetByID(ctx, id)
}

// SaveProfile creates or replaces a profile by id.
func (r *Repository) SaveProfile(ctx context.Context, p model.RuleProfile) error {
	return r.store.Upsert(ctx, p)
}

// DeleteProfile reports whether a profile with id existed.
func (r *Repository) DeleteProfile(ctx context.Context, id string) (bool, error) {
	return r.store.Delete(ctx, id)
}

// DeleteAllProfiles empties the collection.
func (r *Repository) DeleteAllProfiles(ctx context.Context) error {
	return r.store.DeleteAll(ctx)
}

// ExportProfilesToJSON returns the collection as pretty-printed JSON.
func (r *Repository) ExportProfilesToJSON(ctx context.Context) (string, error) {
	return r.store.ExportJSON(ctx)
}

// ImportProfilesFromJSON merges the profiles in text and returns how many
// valid entries were imported.
func (r *Repository) ImportProfilesFromJSON(ctx context.Context, text string) (int, error) {
	return r.store.ImportJSON(ctx, text)
}

// ReplaceProfiles swaps the whole collection for profiles.
func (r *Repository) ReplaceProfiles(ctx context.Context, profiles []model.RuleProfile) error {
	return r.store.ReplaceAll(ctx, profiles)
}

// InitializeDefaultProfiles seeds the default profiles into an empty
// collection and reports whether it did.
func (r *Repository) InitializeDefaultProfiles(ctx context.Context) (bool, error) {
	return r.store.SeedDefaults(ctx)
}

// package-level repository used by the CLI commands; tests inject their own.
var defaultRepo *Repository

// SetDefault sets the Repository returned by Default.
func SetDefault(r *Repository) {
	defaultRepo = r
}

// Default returns the package-level Repository, or nil when none was set.
func Default() *Repository {
	return defaultRepo
}

// ClearDefault clears any previously set package-level Repository.
func ClearDefault() {
	defaultRepo = nil
}
