// Copyright (c) 2026 PassGuard Team
// PassGuard - password rule profile manager
// This source code is licensed under the MIT license found in the LICENSE file.

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/TomPlanche/PassGuard/internal/i18n"
	"github.com/TomPlanche/PassGuard/internal/model"
	"github.com/TomPlanche/PassGuard/internal/repository"
)

// errNoRepository is returned when a command runs without storage.
var errNoRepository = errors.New("profile storage is not initialized")

// currentRepo returns the repository opened for the running command.
func currentRepo() (*repository.Repository, error) {
	r := repository.Default()
	if r == nil {
		return nil, errNoRepository
	}
	return r, nil
}

// requirementFlags maps each character class to its flag names.
var requirementFlags = []struct {
	class   model.CharacterType
	rule    string
	minimum string
}{
	{model.Uppercase, "upper", "min-upper"},
	{model.Lowercase, "lower", "min-lower"},
	{model.Digits, "digits", "min-digits"},
	{model.Symbols, "symbols", "min-symbols"},
}

// addProfileFlags registers the flags shared by profile create and edit.
func addProfileFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("name", "", "Profile name")
	f.String("description", "", "Profile description")
	f.Int("min", model.DefaultMinLength, "Minimum password length")
	f.Int("max", model.DefaultMaxLength, "Maximum password length")
	for _, rf := range requirementFlags {
		f.String(rf.rule, "", fmt.Sprintf("Rule for %s (required, optional, forbidden)", strings.ToLower(string(rf.class))))
		f.Int(rf.minimum, 0, fmt.Sprintf("Minimum count of %s when required", strings.ToLower(string(rf.class))))
	}
	f.String("forbidden", "", "Characters that must never appear")
}

// applyProfileFlags copies the flags the user set onto d.
func applyProfileFlags(cmd *cobra.Command, d *model.Draft) error {
	f := cmd.Flags()
	if f.Changed("name") {
		d.Name, _ = f.GetString("name")
	}
	if f.Changed("description") {
		d.Description, _ = f.GetString("description")
	}
	if f.Changed("min") || f.Changed("max") {
		minLen, maxLen := d.MinLength(), d.MaxLength()
		if f.Changed("min") {
			minLen, _ = f.GetInt("min")
		}
		if f.Changed("max") {
			maxLen, _ = f.GetInt("max")
		}
		d.SetLengths(minLen, maxLen)
	}
	for _, rf := range requirementFlags {
		if f.Changed(rf.rule) {
			s, _ := f.GetString(rf.rule)
			req, err := model.ParseRequirement(s)
			if err != nil {
				return fmt.Errorf("--%s: %w", rf.rule, err)
			}
			d.SetRequirement(rf.class, req)
		}
		if f.Changed(rf.minimum) {
			n, _ := f.GetInt(rf.minimum)
			d.SetMinimumCount(rf.class, n)
		}
	}
	if f.Changed("forbidden") {
		s, _ := f.GetString("forbidden")
		d.SetForbiddenCharacters(s)
	}
	return nil
}

// findProfile resolves ref as an id first, then as a case-insensitive name.
func findProfile(ctx context.Context, r *repository.Repository, ref string) (model.RuleProfile, error) {
	p, ok, err := r.GetProfileByID(ctx, ref)
	if err != nil {
		return model.RuleProfile{}, err
	}
	if ok {
		return p, nil
	}
	all, err := r.GetProfiles(ctx)
	if err != nil {
		return model.RuleProfile{}, err
	}
	var matches []model.RuleProfile
	for _, candidate := range all {
		if strings.EqualFold(candidate.Name, ref) {
			matches = append(matches, candidate)
		}
	}
	switch len(matches) {
	case 0:
		return model.RuleProfile{}, errors.New(i18n.T("profile.not_found", ref))
	case 1:
		return matches[0], nil
	default:
		return model.RuleProfile{}, errors.New(i18n.T("profile.ambiguous", ref))
	}
}

// ruleSummary renders the character rules on one line with localized labels.
func ruleSummary(p model.RuleProfile) string {
	parts := make([]string, 0, len(model.AllCharacterTypes))
	for _, t := range model.AllCharacterTypes {
		req := p.CharacterRules.Get(t)
		part := i18n.T(t.LabelKey()) + ": " + i18n.T(req.LabelKey())
		if n := p.MinimumCounts.Effective(t, p.CharacterRules); n > 0 {
			part += " (" + i18n.T("profile.field.minimum", n) + ")"
		}
		parts = append(parts, part)
	}
	return strings.Join(parts, ", ")
}

func formatMillis(ms int64) string {
	if ms == 0 {
		return "-"
	}
	return model.FromMillis(ms).Local().Format(time.DateTime)
}

func printProfileTable(out io.Writer, profiles []model.RuleProfile) {
	if len(profiles) == 0 {
		_, _ = fmt.Fprintln(out, i18n.T("profile.list.empty"))
		return
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
		strings.ToUpper(i18n.T("profile.field.name")),
		strings.ToUpper(i18n.T("profile.field.id")),
		strings.ToUpper(i18n.T("profile.field.length")),
		strings.ToUpper(i18n.T("profile.field.rules")))
	for _, p := range profiles {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d-%d\t%s\n", p.Name, p.ID, p.MinLength, p.MaxLength, ruleSummary(p))
	}
	_ = w.Flush()
}

func printProfile(out io.Writer, p model.RuleProfile) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	row := func(label, value string) {
		_, _ = fmt.Fprintf(w, "%s:\t%s\n", i18n.T(label), value)
	}
	row("profile.field.id", p.ID)
	row("profile.field.name", p.Name)
	if p.Description != "" {
		row("profile.field.description", p.Description)
	}
	row("profile.field.length", fmt.Sprintf("%d-%d", p.MinLength, p.MaxLength))
	for _, t := range model.AllCharacterTypes {
		value := i18n.T(p.CharacterRules.Get(t).LabelKey())
		if n := p.MinimumCounts.Effective(t, p.CharacterRules); n > 0 {
			value += ", " + i18n.T("profile.field.minimum", n)
		}
		_, _ = fmt.Fprintf(w, "  %s:\t%s\n", i18n.T(t.LabelKey()), value)
	}
	if len(p.ForbiddenCharacters) > 0 {
		row("profile.field.forbidden", p.ForbiddenCharacters.String())
	}
	row("profile.field.created", formatMillis(p.CreatedAt))
	row("profile.field.updated", formatMillis(p.UpdatedAt))
	_ = w.Flush()
}

// newProfileCmd builds the `profile` command group.
func newProfileCmd() *cobra.Command {
	profileCmd := &cobra.Command{
		Use:     "profile",
		Aliases: []string{"profiles"},
		Short:   "Manage rule profiles (list, show, create, edit, delete)",
		Long: `The 'profile' command group manages the stored rule profiles:
  - List all profiles with their length range and character rules
  - Show the details of one profile
  - Create and edit profiles
  - Delete one profile or the whole collection`,
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List all profiles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := currentRepo()
			if err != nil {
				return err
			}
			profiles, err := r.GetProfiles(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to list profiles: %w", err)
			}
			printProfileTable(cmd.OutOrStdout(), profiles)
			return nil
		},
	}

	showCmd := &cobra.Command{
		Use:   "show <id or name>",
		Short: "Show detailed profile information",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := currentRepo()
			if err != nil {
				return err
			}
			p, err := findProfile(cmd.Context(), r, args[0])
			if err != nil {
				return err
			}
			printProfile(cmd.OutOrStdout(), p)
			return nil
		},
	}

	createCmd := &cobra.Command{
		Use:   "create --name <name> [flags]",
		Short: "Create a new profile",
		Long: `Create a profile from the permissive defaults (length 8-64, every class
optional) adjusted by the given flags.

Examples:
  passguard profile create --name Work --min 12 --upper required --min-upper 2
  passguard profile create --name PIN --min 4 --max 6 --upper forbidden --lower forbidden --symbols forbidden --digits required`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := currentRepo()
			if err != nil {
				return err
			}
			d := model.NewDraft()
			if err := applyProfileFlags(cmd, d); err != nil {
				return err
			}
			return saveDraft(cmd, r, d)
		},
	}
	addProfileFlags(createCmd)

	editCmd := &cobra.Command{
		Use:   "edit <id or name> [flags]",
		Short: "Edit an existing profile",
		Long:  `Load a profile, apply only the flags that were given and save it back.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := currentRepo()
			if err != nil {
				return err
			}
			p, err := findProfile(cmd.Context(), r, args[0])
			if err != nil {
				return err
			}
			d := model.DraftFrom(p)
			if err := applyProfileFlags(cmd, d); err != nil {
				return err
			}
			return saveDraft(cmd, r, d)
		},
	}
	addProfileFlags(editCmd)

	deleteCmd := &cobra.Command{
		Use:     "delete <id or name>",
		Aliases: []string{"rm"},
		Short:   "Delete a profile",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := currentRepo()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			p, err := findProfile(ctx, r, args[0])
			if err != nil {
				return err
			}
			found, err := r.DeleteProfile(ctx, p.ID)
			if err != nil {
				return fmt.Errorf("failed to delete profile: %w", err)
			}
			if !found {
				return errors.New(i18n.T("profile.not_found", args[0]))
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), i18n.T("profile.deleted", p.Name))
			return nil
		},
	}

	deleteAllCmd := &cobra.Command{
		Use:         "delete-all",
		Short:       "Delete every profile",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{annotationSkipSeed: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			if yes, _ := cmd.Flags().GetBool("yes"); !yes {
				return errors.New(i18n.T("profile.delete_all_confirm"))
			}
			r, err := currentRepo()
			if err != nil {
				return err
			}
			if err := r.DeleteAllProfiles(cmd.Context()); err != nil {
				return fmt.Errorf("failed to delete profiles: %w", err)
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), i18n.T("profile.deleted_all"))
			return nil
		},
	}
	deleteAllCmd.Flags().BoolP("yes", "y", false, "Confirm the deletion")

	profileCmd.AddCommand(listCmd, showCmd, createCmd, editCmd, deleteCmd, deleteAllCmd)
	return profileCmd
}

// saveDraft builds d and stores the result.
func saveDraft(cmd *cobra.Command, r *repository.Repository, d *model.Draft) error {
	p, err := d.Build(time.Now())
	if err != nil {
		return err
	}
	if err := r.SaveProfile(cmd.Context(), p); err != nil {
		return fmt.Errorf("failed to save profile: %w", err)
	}
	_, _ = fmt.Fprintln(cmd.OutOrStdout(), i18n.T("profile.saved", p.Name, p.ID))
	return nil
}

// newSeedCmd builds the `seed` command.
func newSeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Seed the default profiles into an empty collection",
		Long: `Writes General, Gmail, Banking and Gaming when the collection is empty.
A non-empty collection is left untouched.`,
		Args:        cobra.NoArgs,
		Annotations: map[string]string{annotationSkipSeed: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := currentRepo()
			if err != nil {
				return err
			}
			seeded, err := r.InitializeDefaultProfiles(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to seed profiles: %w", err)
			}
			if seeded {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), i18n.T("seed.done"))
			} else {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), i18n.T("seed.skipped"))
			}
			return nil
		},
	}
}
