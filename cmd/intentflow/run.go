package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/intentflow/internal/events"
	"github.com/ShayCichocki/intentflow/internal/executor"
	"github.com/ShayCichocki/intentflow/internal/orchestrator"
	"github.com/ShayCichocki/intentflow/internal/tui"
)

var (
	runNoTUI bool
	runYes   bool
)

var runCmd = &cobra.Command{
	Use:   "run <request>",
	Short: "Plan a request and execute its tasks",
	Long: `Plan a request like 'intentflow plan' and execute the resulting task graph.

Tasks run concurrently up to executor.max_concurrency, each under
executor.task_timeout and retried up to executor.max_retries times. A task
whose tool is masked fails and its dependents are skipped. Ctrl+C cancels the
run; tasks already in flight finish before the run is recorded.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRun,
}

func init() {
	addPlanFlags(runCmd)
	runCmd.Flags().BoolVar(&runNoTUI, "no-tui", false, "print plain status lines instead of the progress view")
	runCmd.Flags().BoolVarP(&runYes, "yes", "y", false, "do not show the plan before running")
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	cmd.SetContext(ctx)

	a, plan, err := buildPlan(cmd, args)
	if err != nil {
		return err
	}
	defer a.Close()

	if !runYes {
		fmt.Println(tui.RenderPlan(plan))
	}
	if !plan.Complete() {
		printStatus("✗", "Cannot run: the plan has missing parameters.", color.FgRed)
		return orchestrator.ErrIncompletePlan
	}

	var res *executor.RunResult
	if !runNoTUI && tui.IsInteractive() {
		res, err = executeWithTUI(ctx, a, plan)
	} else {
		res, err = executePlain(ctx, a, plan)
	}
	if err != nil {
		return err
	}

	fmt.Println()
	fmt.Print(tui.RenderResult(res))
	if a.db == nil {
		printStatus("⚠", "Run not recorded: persistence is disabled.", color.FgYellow)
	}
	if !res.Success {
		return errors.New("run did not complete successfully")
	}
	return nil
}

func executeWithTUI(ctx context.Context, a *app, plan *orchestrator.Plan) (*executor.RunResult, error) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	program, _ := tui.NewProgressProgram("intentflow run", plan.Tasks, cancel)
	detach := tui.Attach(a.bus, program)
	defer detach()

	type outcome struct {
		res *executor.RunResult
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := a.orch.Execute(runCtx, plan)
		done <- outcome{res, err}
		success := err == nil && res.Success
		program.Send(tui.DoneMsg{Success: success, Err: err})
	}()

	if _, err := program.Run(); err != nil {
		cancel()
		a.logger.Warn("progress view failed", "error", err)
	}
	out := <-done
	return out.res, out.err
}

func executePlain(ctx context.Context, a *app, plan *orchestrator.Plan) (*executor.RunResult, error) {
	detach := a.bus.Subscribe(func(ev events.Event) {
		switch ev.Type {
		case events.TaskStarted:
			if ev.Attempt > 1 {
				printStatus("↻", fmt.Sprintf("%s retry %d", ev.TaskID, ev.Attempt-1), color.FgYellow)
				return
			}
			printStatus("→", fmt.Sprintf("%s started", ev.TaskID), color.FgCyan)
		case events.TaskCompleted:
			printStatus("✓", fmt.Sprintf("%s %v", ev.TaskID, ev.Result), color.FgGreen)
		case events.TaskFailed:
			printStatus("✗", fmt.Sprintf("%s %v", ev.TaskID, ev.Error), color.FgRed)
		case events.ExecutionCancelled:
			printStatus("⚠", "execution cancelled", color.FgYellow)
		}
	})
	defer detach()

	return a.orch.Execute(ctx, plan)
}
