// Copyright (C) 2026 Keiba Labs (dev@keibalabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ux

import (
	"testing"
	"time"
)

func TestSetPlain(t *testing.T) {
	defer SetPlain(false)

	SetPlain(true)
	if !Plain() {
		t.Error("Plain() = false after SetPlain(true)")
	}
	SetPlain(false)
	if Plain() {
		t.Error("Plain() = true after SetPlain(false)")
	}
}

func TestSpinner_StartStop(t *testing.T) {
	s := NewSpinner("working")
	s.Start()
	time.Sleep(10 * time.Millisecond)
	s.UpdateMessage("still working")
	s.Stop()

	// Stopping twice must not panic.
	s.Stop()
}

func TestSpinner_StartTwice(t *testing.T) {
	s := NewSpinner("working")
	s.Start()
	s.Start()
	s.Stop()
}

func TestSpinner_PlainMode(t *testing.T) {
	SetPlain(true)
	defer SetPlain(false)

	s := NewSpinner("batch job")
	s.Start()
	s.Stop()
}
