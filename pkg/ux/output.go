// Copyright (C) 2026 Keiba Labs (dev@keibalabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package ux provides terminal output styling for the oraclectl CLI.
package ux

import (
	"fmt"
	"sync/atomic"

	"github.com/charmbracelet/lipgloss"
)

// Keiba Oracle palette. Turf greens with gold accents.
var (
	ColorTurfBright  = lipgloss.Color("#3DDC84") // Bright turf, highlights and success
	ColorTurfPrimary = lipgloss.Color("#2BA36B") // Primary brand green
	ColorTurfDeep    = lipgloss.Color("#1E7A52") // Deep turf, borders
	ColorGold        = lipgloss.Color("#D4AF37") // Winner's circle gold
	ColorSlate       = lipgloss.Color("#4A5A64") // Muted text

	ColorWarning = lipgloss.Color("#F4D03F")
	ColorError   = lipgloss.Color("#E74C3C")
)

// Styles provides pre-configured lipgloss styles.
var Styles = struct {
	Title     lipgloss.Style
	Subtitle  lipgloss.Style
	Bold      lipgloss.Style
	Muted     lipgloss.Style
	Success   lipgloss.Style
	Warning   lipgloss.Style
	Error     lipgloss.Style
	Highlight lipgloss.Style
	Box       lipgloss.Style
}{
	Title:     lipgloss.NewStyle().Bold(true).Foreground(ColorTurfBright),
	Subtitle:  lipgloss.NewStyle().Foreground(ColorTurfPrimary),
	Bold:      lipgloss.NewStyle().Bold(true),
	Muted:     lipgloss.NewStyle().Foreground(ColorSlate),
	Success:   lipgloss.NewStyle().Foreground(ColorTurfBright),
	Warning:   lipgloss.NewStyle().Foreground(ColorWarning),
	Error:     lipgloss.NewStyle().Foreground(ColorError),
	Highlight: lipgloss.NewStyle().Foreground(ColorGold).Bold(true),
	Box: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorTurfDeep).
		Padding(0, 1),
}

// plain disables styling and animations for script consumption.
var plain atomic.Bool

// SetPlain toggles plain output mode.
func SetPlain(enabled bool) {
	plain.Store(enabled)
}

// Plain reports whether plain output mode is active.
func Plain() bool {
	return plain.Load()
}

// Title prints a styled heading.
func Title(text string) {
	if Plain() {
		fmt.Println(text)
		return
	}
	fmt.Println(Styles.Title.Render(text))
}

// Success prints a message with a leading check mark.
func Success(text string) {
	if Plain() {
		fmt.Println(text)
		return
	}
	fmt.Printf("%s %s\n", Styles.Success.Render("✓"), text)
}

// Warning prints a message with a leading warning sign.
func Warning(text string) {
	if Plain() {
		fmt.Println("WARNING: " + text)
		return
	}
	fmt.Printf("%s %s\n", Styles.Warning.Render("⚠"), text)
}

// Error prints a message with a leading cross.
func Error(text string) {
	if Plain() {
		fmt.Println("ERROR: " + text)
		return
	}
	fmt.Printf("%s %s\n", Styles.Error.Render("✗"), text)
}

// Muted prints de-emphasized supporting text.
func Muted(text string) {
	if Plain() {
		fmt.Println(text)
		return
	}
	fmt.Println(Styles.Muted.Render(text))
}

// Boxed prints content inside a rounded border.
func Boxed(content string) {
	if Plain() {
		fmt.Println(content)
		return
	}
	fmt.Println(Styles.Box.Render(content))
}
