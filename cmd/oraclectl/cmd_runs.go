// Copyright (C) 2026 Keiba Labs (dev@keibalabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/keibalabs/oracle/pkg/ux"
	"github.com/keibalabs/oracle/services/engine"
	"github.com/keibalabs/oracle/services/oracle/datatypes"
)

func runListRuns(cmd *cobra.Command, args []string) {
	var list datatypes.RunListResponse
	getJSON("/v1/oracle/runs", &list)

	if len(list.Runs) == 0 {
		ux.Muted("No checkpointed runs.")
		return
	}
	for _, id := range list.Runs {
		fmt.Println(id)
	}
}

func runShowRun(cmd *cobra.Command, args []string) {
	var run datatypes.RunResponse
	getJSON("/v1/oracle/runs/"+args[0], &run)

	fmt.Printf("run_id:    %s\n", run.RunID)
	fmt.Printf("stage:     %s\n", run.ActiveStage)
	fmt.Printf("risk:      %.0f%%\n", run.QualityScore*100)
	fmt.Printf("revisions: %d\n", run.RevisionCount)
	if run.FinalOutput != "" {
		fmt.Printf("\n%s\n", run.FinalOutput)
	}
	fmt.Println()
	ux.Title("Reasoning Trace")
	printTrace(run.Trace)
}

func runDeleteRun(cmd *cobra.Command, args []string) {
	req, err := http.NewRequest(http.MethodDelete, serverURL()+"/v1/oracle/runs/"+args[0], nil)
	if err != nil {
		log.Fatalf("Error building request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Fatalf("Error contacting oracle server: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		log.Fatalf("Delete failed: status %d", resp.StatusCode)
	}
	ux.Success("Deleted " + args[0])
}

func runWatchRun(cmd *cobra.Command, args []string) {
	wsURL := strings.Replace(serverURL(), "http", "ws", 1) +
		"/v1/oracle/runs/" + args[0] + "/watch"

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		log.Fatalf("Error connecting to watch stream: %v", err)
	}
	defer conn.Close()

	for {
		var event struct {
			Type     string             `json:"type"`
			Entry    *engine.TraceEntry `json:"entry"`
			Terminal bool               `json:"terminal"`
		}
		if err := conn.ReadJSON(&event); err != nil {
			return
		}
		switch event.Type {
		case "trace":
			if event.Entry != nil {
				printTraceEntry(*event.Entry)
			}
		case "done":
			ux.Success("Run complete.")
			return
		}
	}
}

// getJSON fetches path from the server and decodes into out, exiting
// on any failure.
func getJSON(path string, out any) {
	resp, err := http.Get(serverURL() + path)
	if err != nil {
		log.Fatalf("Error contacting oracle server: %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		var apiErr datatypes.ErrorResponse
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
			log.Fatalf("Server error: %s", apiErr.Error)
		}
		log.Fatalf("Server error: status %d", resp.StatusCode)
	}
	if err := json.Unmarshal(body, out); err != nil {
		log.Fatalf("Error decoding response: %v", err)
	}
}

func printTrace(entries []engine.TraceEntry) {
	for _, e := range entries {
		printTraceEntry(e)
	}
}

func printTraceEntry(e engine.TraceEntry) {
	fmt.Printf("[%s] %-8s %s\n", e.Timestamp.Format("15:04:05"), e.Stage, e.Thought)
	if e.Action != "" {
		fmt.Printf("           > %s\n", e.Action)
	}
}
