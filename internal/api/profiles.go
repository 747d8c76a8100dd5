// Copyright (c) 2026 PassGuard Team
// PassGuard - password rule profile manager
// This source code is licensed under the MIT license found in the LICENSE file.

package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/TomPlanche/PassGuard/internal/logging"
	"github.com/TomPlanche/PassGuard/internal/model"
	"github.com/TomPlanche/PassGuard/internal/store"
)

// maxImportBytes bounds the body accepted by the import endpoint.
var maxImportBytes int64 = 8 << 20

// Profiles is the repository surface served over HTTP. It is satisfied by
// *repository.Repository.
type Profiles interface {
	GetProfiles(ctx context.Context) ([]model.RuleProfile, error)
	GetProfileByID(ctx context.Context, id string) (model.RuleProfile, bool, error)
	SaveProfile(ctx context.Context, p model.RuleProfile) error
	DeleteProfile(ctx context.Context, id string) (bool, error)
	DeleteAllProfiles(ctx context.Context) error
	ExportProfilesToJSON(ctx context.Context) (string, error)
	ImportProfilesFromJSON(ctx context.Context, text string) (int, error)
	InitializeDefaultProfiles(ctx context.Context) (bool, error)
	Profiles(ctx context.Context) <-chan []model.RuleProfile
}

// ProfileHandler serves the profile endpoints.
type ProfileHandler struct {
	repo Profiles
}

// NewProfileHandler constructs a ProfileHandler.
func NewProfileHandler(repo Profiles) *ProfileHandler {
	return &ProfileHandler{repo: repo}
}

// writeError maps repository errors onto status codes.
func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, model.ErrInvalidProfile), errors.Is(err, store.ErrImportDecode):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		logging.Errorf("api: %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "profile storage failed"})
	}
}

// List returns every profile in insertion order.
func (h *ProfileHandler) List(c *gin.Context) {
	profiles, err := h.repo.GetProfiles(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, profiles)
}

// Get returns one profile by id.
func (h *ProfileHandler) Get(c *gin.Context) {
	p, ok, err := h.repo.GetProfileByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "profile not found"})
		return
	}
	c.JSON(http.StatusOK, p)
}

// save binds the body and stores the profile, then answers with the stored
// version. A non-empty pathID overrides the id in the body.
func (h *ProfileHandler) save(c *gin.Context, pathID string, status int) {
	var p model.RuleProfile
	if errBind := c.ShouldBindJSON(&p); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if pathID != "" {
		p.ID = pathID
	}
	if strings.TrimSpace(p.ID) == "" {
		p.ID = model.GenerateID()
	}
	ctx := c.Request.Context()
	if err := h.repo.SaveProfile(ctx, p); err != nil {
		writeError(c, err)
		return
	}
	stored, ok, err := h.repo.GetProfileByID(ctx, p.ID)
	if err != nil {
		writeError(c, err)
		return
	}
	if !ok {
		// Removed by a concurrent writer between the save and the read.
		c.JSON(http.StatusConflict, gin.H{"error": "profile changed concurrently"})
		return
	}
	c.JSON(status, stored)
}

// Create stores a new profile. The body's id is honored when present.
func (h *ProfileHandler) Create(c *gin.Context) {
	h.save(c, "", http.StatusCreated)
}

// Update replaces the profile named by the path id.
func (h *ProfileHandler) Update(c *gin.Context) {
	h.save(c, c.Param("id"), http.StatusOK)
}

// Delete removes one profile.
func (h *ProfileHandler) Delete(c *gin.Context) {
	found, err := h.repo.DeleteProfile(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "profile not found"})
		return
	}
	c.Status(http.StatusNoContent)
}

// DeleteAll empties the collection.
func (h *ProfileHandler) DeleteAll(c *gin.Context) {
	if err := h.repo.DeleteAllProfiles(c.Request.Context()); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Export returns the pretty-printed collection.
func (h *ProfileHandler) Export(c *gin.Context) {
	text, err := h.repo.ExportProfilesToJSON(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", []byte(text))
}

// Import merges the JSON list in the request body.
func (h *ProfileHandler) Import(c *gin.Context) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxImportBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": fmt.Sprintf("body exceeds %d bytes", tooLarge.Limit)})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "could not read body"})
		return
	}
	n, err := h.repo.ImportProfilesFromJSON(c.Request.Context(), string(body))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"imported": n})
}

// Seed writes the default profiles into an empty collection.
func (h *ProfileHandler) Seed(c *gin.Context) {
	if _, err := h.repo.InitializeDefaultProfiles(c.Request.Context()); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Stream sends the collection as server-sent "profiles" events: the current
// snapshot first, then one event per committed change, until the client
// goes away.
func (h *ProfileHandler) Stream(c *gin.Context) {
	updates := h.repo.Profiles(c.Request.Context())
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Stream(func(w io.Writer) bool {
		profiles, ok := <-updates
		if !ok {
			return false
		}
		c.SSEvent("profiles", profiles)
		return true
	})
}
