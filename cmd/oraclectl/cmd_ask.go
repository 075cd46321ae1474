// Copyright (C) 2026 Keiba Labs (dev@keibalabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/keibalabs/oracle/pkg/ux"
	"github.com/keibalabs/oracle/services/oracle/datatypes"
)

// askTimeout bounds a full run including revision loops.
const askTimeout = 5 * time.Minute

func runAsk(cmd *cobra.Command, args []string) {
	question := strings.Join(args, " ")

	body, err := json.Marshal(datatypes.RunRequest{
		Query: question,
		RunID: resumeRunID,
	})
	if err != nil {
		log.Fatalf("Error encoding request: %v", err)
	}

	spin := ux.NewSpinner("Consulting the oracle...")
	spin.Start()

	client := &http.Client{Timeout: askTimeout}
	resp, err := client.Post(serverURL()+"/v1/oracle/run", "application/json", bytes.NewBuffer(body))
	if err != nil {
		spin.Stop()
		log.Fatalf("Error contacting oracle server: %v", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		var apiErr datatypes.ErrorResponse
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Error != "" {
			spin.StopWithError("Oracle run failed: " + apiErr.Error)
			os.Exit(1)
		}
		spin.Stop()
		log.Fatalf("Oracle run failed: status %d", resp.StatusCode)
	}

	var run datatypes.RunResponse
	if err := json.Unmarshal(respBody, &run); err != nil {
		spin.Stop()
		log.Fatalf("Error decoding response: %v", err)
	}
	spin.Stop()

	fmt.Println(run.FinalOutput)
	ux.Muted(fmt.Sprintf("\nrun_id: %s  risk: %.0f%%  revisions: %d",
		run.RunID, run.QualityScore*100, run.RevisionCount))

	if showTrace {
		fmt.Println()
		ux.Title("Reasoning Trace")
		printTrace(run.Trace)
	}
}
