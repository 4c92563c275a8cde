package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/orbitdesk/orbit/go-companion/internal/replay"
)

// #region main

func main() {
	fixturePath := flag.String("fixture", "", "path to fixture JSON")
	startStr := flag.String("start", "2026-01-01T00:00:00Z", "timeline origin (RFC3339)")
	jsonOut := flag.Bool("json", false, "output as JSON instead of table")
	flag.Parse()

	if *fixturePath == "" {
		fmt.Fprintln(os.Stderr, "usage: replay --fixture path/to/fixture.json [--start RFC3339] [--json]")
		os.Exit(2)
	}

	start, err := time.Parse(time.RFC3339, *startStr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "bad --start: %v\n", err)
		os.Exit(2)
	}

	f, err := replay.LoadFixture(*fixturePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load fixture: %v\n", err)
		os.Exit(2)
	}

	results, verifyErr := replay.RunFixture(f, start)
	if results == nil {
		fmt.Fprintf(os.Stderr, "replay failed: %v\n", verifyErr)
		os.Exit(2)
	}

	if *jsonOut {
		printJSON(results, verifyErr)
	} else {
		printTable(f, results, verifyErr)
	}

	if verifyErr != nil {
		os.Exit(1)
	}
}

// #endregion main

// #region output

func printTable(f *replay.Fixture, results []replay.Result, verifyErr error) {
	if f.Description != "" {
		fmt.Printf("Fixture: %s\n\n", f.Description)
	}
	fmt.Printf("%-10s| %-10s| %-16s| %-20s| %s\n", "Event", "Kind", "State", "Reason", "Admitted")
	fmt.Printf("%-10s+%-11s+%-17s+%-21s+%s\n",
		"----------", "-----------", "-----------------", "---------------------", "---------")

	for _, r := range results {
		reason, admitted := "", ""
		if r.Kind == replay.EventCandidate {
			reason = string(r.Reason)
			admitted = fmt.Sprintf("%v", r.Approved)
		}
		fmt.Printf("%-10s| %-10s| %-16s| %-20s| %s\n", r.ID, r.Kind, r.State, reason, admitted)
	}

	s := replay.Summarize(results)
	fmt.Printf("\nSummary: %d events, %d candidates, %d admitted, final state %s\n",
		s.TotalEvents, s.Candidates, s.Admissions, s.FinalState)

	if verifyErr != nil {
		fmt.Printf("DIVERGED: %v\n", verifyErr)
	} else if len(f.ExpectedResults) > 0 {
		fmt.Println("All expectations matched.")
	}
}

func printJSON(results []replay.Result, verifyErr error) {
	out := struct {
		Results []replay.Result `json:"results"`
		Summary replay.Summary  `json:"summary"`
		Error   string          `json:"error,omitempty"`
	}{
		Results: results,
		Summary: replay.Summarize(results),
	}
	if verifyErr != nil {
		out.Error = verifyErr.Error()
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "marshal json: %v\n", err)
		os.Exit(2)
	}
	fmt.Println(string(data))
}

// #endregion output
