// Copyright (C) 2026 Keiba Labs (dev@keibalabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package validation

import (
	"strings"
	"testing"
)

func TestValidateRunID(t *testing.T) {
	tests := []struct {
		name    string
		id      string
		wantErr bool
	}{
		{"uuid", "550e8400-e29b-41d4-a716-446655440000", false},
		{"short name", "my-run", false},
		{"with dots", "run.v2", false},
		{"with underscore", "run_42", false},
		{"single char", "a", false},
		{"max length", strings.Repeat("a", 64), false},

		{"empty", "", true},
		{"too long", strings.Repeat("a", 65), true},
		{"leading dot", ".hidden", true},
		{"path traversal", "../etc/passwd", true},
		{"slash", "run/7", true},
		{"whitespace", "run 7", true},
		{"null byte", "run\x007", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRunID(tt.id)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateRunID(%q) error = %v, wantErr %v", tt.id, err, tt.wantErr)
			}
		})
	}
}

func TestValidateHorseName(t *testing.T) {
	tests := []struct {
		name      string
		horseName string
		wantErr   bool
	}{
		{"simple", "Equinox", false},
		{"with space", "Deep Impact", false},
		{"with apostrophe", "Danon's Pride", false},
		{"with hyphen", "T-O Royal", false},
		{"with digit", "Admire 2", false},

		{"empty", "", true},
		{"leading space", " Equinox", true},
		{"injection chars", "x\" OR 1=1", true},
		{"too long", strings.Repeat("a", 51), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateHorseName(tt.horseName)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateHorseName(%q) error = %v, wantErr %v", tt.horseName, err, tt.wantErr)
			}
		})
	}
}
