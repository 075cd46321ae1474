// Copyright (C) 2026 Keiba Labs (dev@keibalabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ux

import (
	"fmt"
	"sync"
	"time"
)

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// Spinner is an animated progress indicator for long-running requests.
//
// Thread Safety: safe for concurrent use.
type Spinner struct {
	message    string
	stop       chan struct{}
	done       chan struct{}
	mu         sync.Mutex
	isRunning  bool
	frameIndex int
}

// NewSpinner creates a spinner with the given message.
func NewSpinner(message string) *Spinner {
	return &Spinner{
		message: message,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Start begins the animation. In plain mode the message is printed
// once instead.
func (s *Spinner) Start() {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = true
	s.mu.Unlock()

	if Plain() {
		fmt.Printf("PROGRESS: %s\n", s.message)
		return
	}

	go func() {
		ticker := time.NewTicker(80 * time.Millisecond)
		defer ticker.Stop()

		for {
			select {
			case <-s.stop:
				fmt.Print("\r\033[K")
				close(s.done)
				return
			case <-ticker.C:
				s.mu.Lock()
				frame := Styles.Highlight.Render(spinnerFrames[s.frameIndex])
				fmt.Printf("\r%s %s", frame, s.message)
				s.frameIndex = (s.frameIndex + 1) % len(spinnerFrames)
				s.mu.Unlock()
			}
		}
	}()
}

// Stop halts the animation and clears the spinner line.
func (s *Spinner) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = false
	s.mu.Unlock()

	if Plain() {
		return
	}

	close(s.stop)
	<-s.done
}

// UpdateMessage changes the message shown next to the spinner.
func (s *Spinner) UpdateMessage(message string) {
	s.mu.Lock()
	s.message = message
	s.mu.Unlock()
}

// StopWithSuccess stops the spinner and prints a success line.
func (s *Spinner) StopWithSuccess(message string) {
	s.Stop()
	Success(message)
}

// StopWithError stops the spinner and prints an error line.
func (s *Spinner) StopWithError(message string) {
	s.Stop()
	Error(message)
}
