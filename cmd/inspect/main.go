package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/orbitdesk/orbit/go-companion/internal/store"
)

// #region main

func main() {
	dbPath := flag.String("db", "", "path to companion.db")
	last := flag.Int("last", 20, "show N most recent decisions")
	stats := flag.Bool("stats", false, "show decision counts by reason")
	jsonOut := flag.Bool("json", false, "output as JSON instead of table")
	flag.Parse()

	if *dbPath == "" {
		fmt.Fprintln(os.Stderr, "usage: inspect --db path/to/companion.db [--last N] [--stats] [--json]")
		os.Exit(2)
	}

	st, err := store.New(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open db: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	if *stats {
		if err := runStats(st, *jsonOut); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}
	if err := runList(st, *last, *jsonOut); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// #endregion main

// #region list-mode

type decisionRow struct {
	ID         string  `json:"id"`
	DecidedAt  string  `json:"decided_at"`
	IntentType string  `json:"intent_type"`
	Confidence float32 `json:"confidence"`
	Adjusted   float32 `json:"adjusted_confidence"`
	Approved   bool    `json:"approved"`
	Reason     string  `json:"reason"`
	StateAfter string  `json:"state_after"`
	Message    string  `json:"message,omitempty"`
}

func runList(st *store.Store, last int, jsonOut bool) error {
	records, err := st.RecentDecisions(last)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Fprintln(os.Stderr, "no decisions found")
		return nil
	}

	rows := make([]decisionRow, len(records))
	for i, rec := range records {
		rows[i] = decisionRow{
			ID:         shortID(rec.ID),
			DecidedAt:  rec.DecidedAt.Format("2006-01-02T15:04:05Z"),
			IntentType: string(rec.IntentType),
			Confidence: rec.Confidence,
			Adjusted:   rec.AdjustedConfidence,
			Approved:   rec.Approved,
			Reason:     string(rec.Reason),
			StateAfter: string(rec.StateAfter),
			Message:    truncate(rec.Message, 40),
		}
	}

	if jsonOut {
		return printJSON(rows)
	}

	fmt.Printf("%-10s  %-20s  %-14s  %5s  %5s  %-20s  %-12s  %s\n",
		"ID", "Time", "Intent", "Conf", "Adj", "Reason", "State", "Message")
	for _, r := range rows {
		fmt.Printf("%-10s  %-20s  %-14s  %5.2f  %5.2f  %-20s  %-12s  %s\n",
			r.ID, r.DecidedAt, r.IntentType, r.Confidence, r.Adjusted, r.Reason, r.StateAfter, r.Message)
	}
	return nil
}

// #endregion list-mode

// #region stats-mode

func runStats(st *store.Store, jsonOut bool) error {
	stats, err := st.DecisionStats()
	if err != nil {
		return err
	}

	if jsonOut {
		out := make(map[string]int, len(stats))
		for reason, count := range stats {
			out[string(reason)] = count
		}
		return printJSON(out)
	}

	fmt.Printf("%-20s  %s\n", "Reason", "Count")
	total := 0
	for reason, count := range stats {
		fmt.Printf("%-20s  %d\n", reason, count)
		total += count
	}
	fmt.Printf("\nTotal: %d decisions\n", total)
	return nil
}

// #endregion stats-mode

// #region output

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

// #endregion output
