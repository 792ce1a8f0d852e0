// Package tui provides the terminal front end of the intentflow CLI.
//
// It has three parts:
//   - a read-only bubbletea progress view fed by the executor's event bus
//   - huh prompts used as the slot filler's ask-user callback
//   - lipgloss renderers for plans and run results
//
// Usage:
//
//	program, app := tui.NewProgressProgram("intentflow run", plan.Tasks, cancel)
//	detach := tui.Attach(bus, program)
//	go func() {
//	    res, err := orch.Execute(ctx, plan)
//	    program.Send(tui.DoneMsg{Success: err == nil && res.Success, Err: err})
//	}()
//	program.Run()
//	detach()
//
// The view quits on its own when DoneMsg arrives and leaves the last frame
// on screen.
package tui
