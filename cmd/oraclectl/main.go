// Copyright (C) 2026 Keiba Labs (dev@keibalabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"log"
	"os"
)

func main() {
	// Execute the root command. Cobra handles parsing the arguments.
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("Error executing command: %v", err)
	}
}

// serverURL resolves the oracle server base URL.
func serverURL() string {
	if url := os.Getenv("ORACLE_SERVER_URL"); url != "" {
		return url
	}
	return "http://localhost:12310"
}
