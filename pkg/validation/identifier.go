// Copyright (C) 2026 Keiba Labs (dev@keibalabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package validation provides input validation for user-provided
// identifiers.
//
// Run IDs end up as storage keys and URL path segments, and horse
// names are folded into outbound search queries. Validating them here
// prevents key collisions, path traversal, and query injection.
package validation

import (
	"fmt"
	"regexp"
)

// runIDPattern matches UUIDs plus the short human-assigned IDs the CLI
// accepts. Max length 64 characters.
var runIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._\-]{0,63}$`)

// horseNamePattern matches registered racehorse names. JRA names are
// at most 18 characters, but imported runners can be longer; allow up
// to 50. Letters, digits, spaces, apostrophes, and hyphens only.
var horseNamePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9 '\-]{0,49}$`)

// ValidateRunID validates a run identifier.
//
// Valid run IDs:
//   - 1-64 characters
//   - Letters, digits, dots, hyphens, underscores
//   - Must start with a letter or digit
//
// Returns an error if the ID is invalid.
func ValidateRunID(id string) error {
	if id == "" {
		return fmt.Errorf("run ID cannot be empty")
	}
	if !runIDPattern.MatchString(id) {
		return fmt.Errorf("invalid run ID: %q (must be 1-64 alphanumeric chars, dots, hyphens, or underscores)", id)
	}
	return nil
}

// ValidateHorseName validates a horse name before it is folded into an
// outbound search query.
func ValidateHorseName(name string) error {
	if name == "" {
		return fmt.Errorf("horse name cannot be empty")
	}
	if !horseNamePattern.MatchString(name) {
		return fmt.Errorf("invalid horse name: %q", name)
	}
	return nil
}
