// Copyright (c) 2026 PassGuard Team
// PassGuard - password rule profile manager
// This source code is licensed under the MIT license found in the LICENSE file.

// i18n-linter checks the translation files against the source code. It scans
// the Go sources for i18n.T("key") calls and key-like string literals and
// reports keys that are used but undefined, keys missing from a secondary
// locale, and keys no code refers to.
package main

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	localesDir    = "internal/i18n/locales"
	primaryLocale = "en.yaml"
	projectRoot   = "."
)

var (
	// translateCallRe matches i18n.T("some.key").
	translateCallRe = regexp.MustCompile(`i18n\.T\("([^"]+)"`)
	// keyLiteralRe matches literals shaped like a key, such as the values
	// returned by the LabelKey methods.
	keyLiteralRe = regexp.MustCompile(`"([a-z_]+\.[a-z_.]+)"`)
)

// Report is the result of a lint run. Each list is sorted.
type Report struct {
	// Undefined keys are passed to i18n.T but absent from the primary locale.
	Undefined []string
	// Missing maps a secondary locale file to the primary keys it lacks.
	Missing map[string][]string
	// Orphaned keys are defined in the primary locale but never referenced.
	Orphaned []string
}

// Failed reports whether the report holds errors. Orphaned keys are only a
// warning.
func (r Report) Failed() bool {
	if len(r.Undefined) > 0 {
		return true
	}
	for _, keys := range r.Missing {
		if len(keys) > 0 {
			return true
		}
	}
	return false
}

func main() {
	report, err := lint(projectRoot)
	if err != nil {
		fmt.Printf("i18n-linter: %v\n", err)
		os.Exit(1)
	}
	printReport(os.Stdout, report)
	if report.Failed() {
		os.Exit(1)
	}
}

// lint checks the locales under root against the Go sources under root.
func lint(root string) (Report, error) {
	calls, literals, err := findUsedKeys(root)
	if err != nil {
		return Report{}, fmt.Errorf("scan sources: %w", err)
	}
	dir := filepath.Join(root, localesDir)
	primary, err := loadKeysFromLocale(filepath.Join(dir, primaryLocale))
	if err != nil {
		return Report{}, fmt.Errorf("load primary locale: %w", err)
	}

	report := Report{Missing: make(map[string][]string)}
	for key := range calls {
		if _, ok := primary[key]; !ok {
			report.Undefined = append(report.Undefined, key)
		}
	}
	for key := range primary {
		_, called := calls[key]
		_, referenced := literals[key]
		if !called && !referenced {
			report.Orphaned = append(report.Orphaned, key)
		}
	}

	files, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return Report{}, err
	}
	for _, file := range files {
		if filepath.Base(file) == primaryLocale {
			continue
		}
		secondary, err := loadKeysFromLocale(file)
		if err != nil {
			return Report{}, fmt.Errorf("load %s: %w", file, err)
		}
		var missing []string
		for key := range primary {
			if _, ok := secondary[key]; !ok {
				missing = append(missing, key)
			}
		}
		sort.Strings(missing)
		report.Missing[filepath.Base(file)] = missing
	}

	sort.Strings(report.Undefined)
	sort.Strings(report.Orphaned)
	return report, nil
}

// findUsedKeys scans the non-test .go files under root. Directories starting
// with "_" or "." and the tools directory are skipped, as the go tool does.
func findUsedKeys(root string) (calls, literals map[string]struct{}, err error) {
	calls = make(map[string]struct{})
	literals = make(map[string]struct{})
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			name := d.Name()
			if path != root && (strings.HasPrefix(name, "_") || strings.HasPrefix(name, ".") || name == "tools" || name == "testdata") {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(path, ".go") || strings.HasSuffix(path, "_test.go") {
			return nil
		}
		content, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		for _, m := range translateCallRe.FindAllStringSubmatch(string(content), -1) {
			calls[m[1]] = struct{}{}
		}
		for _, m := range keyLiteralRe.FindAllStringSubmatch(string(content), -1) {
			literals[m[1]] = struct{}{}
		}
		return nil
	})
	return calls, literals, err
}

// loadKeysFromLocale reads a YAML file and returns a flat map of its keys.
func loadKeysFromLocale(path string) (map[string]struct{}, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var data map[string]interface{}
	if err := yaml.Unmarshal(content, &data); err != nil {
		return nil, err
	}
	keys := make(map[string]struct{})
	flattenYAML("", data, keys)
	return keys, nil
}

// flattenYAML converts a nested map into a flat map with dot-separated keys.
// Flat files whose keys already contain dots pass through unchanged.
func flattenYAML(prefix string, node interface{}, keys map[string]struct{}) {
	switch v := node.(type) {
	case map[string]interface{}:
		for k, val := range v {
			next := k
			if prefix != "" {
				next = prefix + "." + k
			}
			flattenYAML(next, val, keys)
		}
	default:
		if prefix != "" {
			keys[prefix] = struct{}{}
		}
	}
}

func printReport(w io.Writer, r Report) {
	section := func(title string, keys []string) {
		_, _ = fmt.Fprintf(w, "--- %s ---\n", title)
		if len(keys) == 0 {
			_, _ = fmt.Fprintln(w, "  none")
			return
		}
		for _, k := range keys {
			_, _ = fmt.Fprintf(w, "  - %s\n", k)
		}
	}
	section("Undefined keys (used in code, missing from "+primaryLocale+")", r.Undefined)

	locales := make([]string, 0, len(r.Missing))
	for file := range r.Missing {
		locales = append(locales, file)
	}
	sort.Strings(locales)
	for _, file := range locales {
		section("Missing from "+file, r.Missing[file])
	}
	section("Orphaned keys (defined but never referenced)", r.Orphaned)

	switch {
	case r.Failed():
		_, _ = fmt.Fprintln(w, "Found issues that need to be addressed.")
	case len(r.Orphaned) > 0:
		_, _ = fmt.Fprintln(w, "Found orphaned keys. Please consider removing them.")
	default:
		_, _ = fmt.Fprintln(w, "All translation files are consistent.")
	}
}
