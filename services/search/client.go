// Copyright (C) 2026 Keiba Labs (dev@keibalabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package search defines the search collaborator contract and its
// Tavily-backed implementation.
//
// Results are returned as formatted text embedding "Source: <URI>"
// lines; the gatherer extracts provenance from those lines rather than
// from structured fields, so any backend that honors the format can be
// substituted.
package search

import "context"

// Client is the search collaborator interface.
type Client interface {
	// SearchConditions searches for racecourse, track, and weather
	// information matching the query.
	SearchConditions(ctx context.Context, query string) (string, error)

	// SearchHorse searches for a named horse's record and history.
	SearchHorse(ctx context.Context, horseName string) (string, error)
}
