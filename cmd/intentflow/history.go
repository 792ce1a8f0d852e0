package main

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/intentflow/internal/slots"
	"github.com/ShayCichocki/intentflow/internal/state"
)

var (
	historyLimit  int
	historyUser   string
	historyIntent string
	purgeOlder    time.Duration
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect stored runs, answers and decomposition patterns",
}

var historyRunsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recent runs",
	RunE: withStore(func(cmd *cobra.Command, db *state.DB) error {
		runs, err := db.ListRuns(cmd.Context(), historyLimit)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Println("No runs recorded yet. Run 'intentflow run <request>' to start.")
			return nil
		}
		for _, r := range runs {
			displayRun(r)
		}
		return nil
	}),
}

var historyFillingsCmd = &cobra.Command{
	Use:   "fillings",
	Short: "List stored slot answers and the learned preferences",
	RunE: withStore(func(cmd *cobra.Command, db *state.DB) error {
		user := historyUser
		if user == "" {
			user = os.Getenv("USER")
		}
		records, err := db.RecentFillings(cmd.Context(), user, historyIntent, historyLimit)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			fmt.Printf("No answers recorded for %s.\n", user)
			return nil
		}
		for _, r := range records {
			fmt.Printf("%s  %-14s %s\n",
				color.HiBlackString("%s", r.Timestamp.Local().Format("2006-01-02 15:04")),
				r.IntentType, formatEntities(r.Entities))
		}

		if historyIntent != "" {
			filler := slots.New(slots.WithHistoryStore(db), slots.WithLogger(logger))
			prefs := filler.LearnUserPreference(cmd.Context(), user, historyIntent)
			if len(prefs) > 0 {
				fmt.Printf("\n%s %s\n", color.CyanString("Preferred:"), formatEntities(prefs))
			}
		}
		return nil
	}),
}

var historyPatternsCmd = &cobra.Command{
	Use:   "patterns",
	Short: "List learned decomposition patterns",
	RunE: withStore(func(cmd *cobra.Command, db *state.DB) error {
		patterns, err := db.ListPatterns(cmd.Context(), historyLimit)
		if err != nil {
			return err
		}
		if len(patterns) == 0 {
			fmt.Println("No patterns learned yet. Enable decompose.pattern_learning to record them.")
			return nil
		}
		muted := lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
		for _, p := range patterns {
			sig := p.Signature
			if len(sig) > 12 {
				sig = sig[:12]
			}
			fmt.Printf("%s %s %s\n", color.CyanString("%s", sig), p.TaskType, muted.Render(fmt.Sprintf("(%d hits)", p.Hits)))
			for i, st := range p.Subtasks {
				fmt.Printf("  %d. [%s] %s\n", i+1, st.Type, st.Description)
			}
		}
		return nil
	}),
}

var historyPurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete runs and answers older than --older-than",
	RunE: withStore(func(cmd *cobra.Command, db *state.DB) error {
		runs, err := db.PurgeOldRuns(purgeOlder)
		if err != nil {
			return err
		}
		fills, err := db.PurgeFillingHistory(purgeOlder)
		if err != nil {
			return err
		}
		printStatus("✓", fmt.Sprintf("Removed %d runs and %d answers older than %s", runs, fills, purgeOlder), color.FgGreen)
		return nil
	}),
}

func init() {
	historyCmd.PersistentFlags().IntVarP(&historyLimit, "limit", "n", 20, "maximum number of entries")
	historyFillingsCmd.Flags().StringVar(&historyUser, "user", "", "user id (default: $USER)")
	historyFillingsCmd.Flags().StringVar(&historyIntent, "intent", "", "only this intent type")
	historyPurgeCmd.Flags().DurationVar(&purgeOlder, "older-than", 30*24*time.Hour, "age threshold")

	historyCmd.AddCommand(historyRunsCmd)
	historyCmd.AddCommand(historyFillingsCmd)
	historyCmd.AddCommand(historyPatternsCmd)
	historyCmd.AddCommand(historyPurgeCmd)
}

// withStore opens the configured database around fn.
func withStore(fn func(cmd *cobra.Command, db *state.DB) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		if !cfg.Storage.Enabled {
			fmt.Println("Persistence is disabled (storage.enabled: false).")
			return nil
		}
		db, err := openStore(cfg.Storage)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer db.Close()
		return fn(cmd, db)
	}
}

func displayRun(r state.Run) {
	status := color.GreenString("✓")
	switch {
	case r.FinishedAt == nil:
		status = color.YellowString("…")
	case r.Cancelled:
		status = color.YellowString("⊘")
	case !r.Success:
		status = color.RedString("✗")
	}

	dur := ""
	if r.FinishedAt != nil {
		dur = color.HiBlackString(" (%s)", r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond))
	}
	fmt.Printf("%s %s %s%s\n", status, color.HiBlackString("%s", r.StartedAt.Local().Format("2006-01-02 15:04:05")), r.Request, dur)
	fmt.Printf("    %s  %d/%d completed, %d failed\n", color.HiBlackString("%s", r.ID), r.Completed, r.Total, r.Failed)
}

func formatEntities(m map[string]string) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + m[k]
	}
	return strings.Join(parts, " ")
}
