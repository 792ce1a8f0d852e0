package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	toolsState   string
	toolsEnable  []string
	toolsDisable []string
	toolsGroup    string
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List registered tools and their availability",
	Long: `List the tool registry with the mask applied.

The mask starts from toolmask.default_available, then the configured state
machine phase (toolmask.state_machine, toolmask.initial_state or --state).
--enable and --disable accept names or glob patterns such as 'create_*' and
are applied in that order, so you can preview a mask before using it in
config.`,
	RunE: runTools,
}

func init() {
	toolsCmd.Flags().StringVar(&toolsState, "state", "", "tool mask phase to enter")
	toolsCmd.Flags().StringSliceVar(&toolsEnable, "enable", nil, "tool names or glob patterns to enable")
	toolsCmd.Flags().StringSliceVar(&toolsDisable, "disable", nil, "tool names or glob patterns to disable")
	toolsCmd.Flags().StringVar(&toolsGroup, "group", "", "only show tools of this group")
}

func runTools(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context(), cfg, logger, appOptions{maskState: toolsState})
	if err != nil {
		return err
	}
	defer a.Close()

	for _, p := range toolsEnable {
		if _, err := a.tools.SetToolsByPattern(p, true); err != nil {
			return fmt.Errorf("--enable %s: %w", p, err)
		}
	}
	for _, p := range toolsDisable {
		if _, err := a.tools.SetToolsByPattern(p, false); err != nil {
			return fmt.Errorf("--disable %s: %w", p, err)
		}
	}

	header := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	muted := lipgloss.NewStyle().Foreground(lipgloss.Color("245"))

	if st := a.tools.CurrentState(); st != "" {
		fmt.Printf("%s %s\n\n", header.Render("Phase"), st)
	}

	groups := a.tools.Groups()
	names := make([]string, 0, len(groups))
	for g := range groups {
		if toolsGroup == "" || g == toolsGroup {
			names = append(names, g)
		}
	}
	sort.Strings(names)

	for _, g := range names {
		title := g
		if title == "" {
			title = "(ungrouped)"
		}
		fmt.Println(header.Render(title))
		for _, name := range groups[g] {
			t, _ := a.tools.Tool(name)
			if a.tools.IsAvailable(name) {
				printStatus("✓", fmt.Sprintf("%-16s %s", name, muted.Render(t.Description)), color.FgGreen)
			} else {
				printStatus("✗", fmt.Sprintf("%-16s %s", name, muted.Render(t.Description)), color.FgRed)
			}
		}
		fmt.Println()
	}

	stats := a.tools.Stats()
	fmt.Println(muted.Render(fmt.Sprintf("%d/%d tools available", stats.AvailableTools, stats.TotalTools)))
	if avail := a.tools.AvailableTools(); len(avail) > 0 && verbose {
		fmt.Println(muted.Render("available: " + strings.Join(avail, ", ")))
	}
	return nil
}
