package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ShayCichocki/intentflow/internal/events"
	"github.com/ShayCichocki/intentflow/pkg/models"
)

// maxLogLines bounds the activity log shown under the task list.
const maxLogLines = 8

// EventMsg carries one bus event into the program.
type EventMsg struct {
	Event events.Event
}

// DoneMsg is sent when the execution pass returned.
type DoneMsg struct {
	Success bool
	Err     error
}

// TaskRow is the display state of one task node.
type TaskRow struct {
	ID          string
	Kind        string
	Description string
	Status      models.TaskStatus
	Attempt     int
	Error       string
}

// ProgressState is everything the progress view renders.
type ProgressState struct {
	RunID string
	// Tasks are kept in plan order.
	Tasks  []TaskRow
	Counts events.Counts
	// MaskState is the active tool mask phase, if any.
	MaskState string
}

// ProgressView renders task rows, a progress bar and a spinner.
type ProgressView struct {
	state  ProgressState
	index  map[string]int
	width  int
	height int

	spinner spinner.Model
	bar     progress.Model

	headerStyle  lipgloss.Style
	labelStyle   lipgloss.Style
	valueStyle   lipgloss.Style
	pendingStyle lipgloss.Style
	runningStyle lipgloss.Style
	doneStyle    lipgloss.Style
	failedStyle  lipgloss.Style
}

// NewProgressView creates a view for the given plan nodes.
func NewProgressView(nodes []*models.TaskNode) *ProgressView {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	v := &ProgressView{
		index:   make(map[string]int, len(nodes)),
		spinner: s,
		bar:     progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),

		headerStyle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).
			BorderForeground(lipgloss.Color("238")).
			MarginBottom(1),

		labelStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			Width(12),

		valueStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("252")).
			Bold(true),

		pendingStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
		runningStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		doneStyle:    lipgloss.NewStyle().Foreground(lipgloss.Color("34")),
		failedStyle:  lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
	}

	for _, n := range nodes {
		v.index[n.ID] = len(v.state.Tasks)
		v.state.Tasks = append(v.state.Tasks, TaskRow{
			ID:          n.ID,
			Kind:        string(n.Task.Kind),
			Description: n.Task.Description,
			Status:      models.TaskStatusPending,
		})
	}
	v.state.Counts.Total = len(nodes)
	return v
}

// Apply folds one event into the view state.
func (v *ProgressView) Apply(ev events.Event) {
	if ev.RunID != "" {
		v.state.RunID = ev.RunID
	}
	if ev.Counts != nil {
		v.state.Counts = *ev.Counts
	}

	switch ev.Type {
	case events.TaskStarted:
		v.update(ev.TaskID, func(r *TaskRow) {
			r.Status = models.TaskStatusRunning
			r.Attempt = ev.Attempt
		})
	case events.TaskCompleted:
		v.update(ev.TaskID, func(r *TaskRow) { r.Status = models.TaskStatusCompleted })
	case events.TaskFailed:
		v.update(ev.TaskID, func(r *TaskRow) {
			r.Status = models.TaskStatusFailed
			if ev.Error != nil {
				r.Error = ev.Error.Error()
			}
		})
	case events.ExecutionCancelled:
		for i := range v.state.Tasks {
			if !v.state.Tasks[i].Status.Terminal() {
				v.state.Tasks[i].Status = models.TaskStatusCancelled
			}
		}
	case events.StateChanged:
		v.state.MaskState = ev.State
	}
}

// update applies fn to the row with id, adding a row for unknown ids.
func (v *ProgressView) update(id string, fn func(*TaskRow)) {
	i, ok := v.index[id]
	if !ok {
		i = len(v.state.Tasks)
		v.index[id] = i
		v.state.Tasks = append(v.state.Tasks, TaskRow{ID: id, Status: models.TaskStatusPending})
	}
	fn(&v.state.Tasks[i])
}

// Update handles input messages.
func (v *ProgressView) Update(msg tea.Msg) (*ProgressView, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.SetSize(msg.Width, msg.Height)
	case EventMsg:
		v.Apply(msg.Event)
	case spinner.TickMsg:
		var cmd tea.Cmd
		v.spinner, cmd = v.spinner.Update(msg)
		return v, cmd
	}
	return v, nil
}

// View renders the progress display.
func (v *ProgressView) View() string {
	var b strings.Builder

	b.WriteString(v.headerStyle.Render("Execution Progress"))
	b.WriteString("\n")

	if v.state.RunID != "" {
		b.WriteString(v.labelStyle.Render("Run:"))
		b.WriteString(v.valueStyle.Render(v.state.RunID))
		b.WriteString("\n")
	}
	if v.state.MaskState != "" {
		b.WriteString(v.labelStyle.Render("Phase:"))
		b.WriteString(v.valueStyle.Render(v.state.MaskState))
		b.WriteString("\n")
	}

	c := v.state.Counts
	settled := c.Completed + c.Failed + c.Cancelled
	b.WriteString(v.labelStyle.Render("Tasks:"))
	b.WriteString(v.valueStyle.Render(fmt.Sprintf("%d/%d settled", settled, c.Total)))
	fmt.Fprintf(&b, "  %s %s",
		v.doneStyle.Render(fmt.Sprintf("%d ok", c.Completed)),
		v.failedStyle.Render(fmt.Sprintf("%d failed", c.Failed)))
	b.WriteString("\n")

	fmt.Fprintf(&b, "  %s %.0f%%\n\n", v.bar.ViewAs(v.percent()), v.percent()*100)

	for _, r := range v.state.Tasks {
		b.WriteString(v.renderRow(r))
		b.WriteString("\n")
	}
	return b.String()
}

func (v *ProgressView) renderRow(r TaskRow) string {
	var marker string
	style := v.pendingStyle
	switch r.Status {
	case models.TaskStatusRunning:
		marker = v.spinner.View()
		style = v.runningStyle
	case models.TaskStatusCompleted:
		marker = v.doneStyle.Render("✓")
		style = v.doneStyle
	case models.TaskStatusFailed:
		marker = v.failedStyle.Render("✗")
		style = v.failedStyle
	case models.TaskStatusCancelled:
		marker = v.pendingStyle.Render("-")
	default:
		marker = v.pendingStyle.Render("·")
	}

	desc := r.Description
	if limit := v.width - 30; limit > 10 && len([]rune(desc)) > limit {
		desc = string([]rune(desc)[:limit-3]) + "..."
	}
	line := fmt.Sprintf("  %s %-6s %-16s %s", marker, r.ID, style.Render(r.Kind), desc)
	if r.Attempt > 1 && r.Status == models.TaskStatusRunning {
		line += v.runningStyle.Render(fmt.Sprintf(" (attempt %d)", r.Attempt))
	}
	if r.Error != "" {
		line += "\n      " + v.failedStyle.Render(r.Error)
	}
	return line
}

func (v *ProgressView) percent() float64 {
	if v.state.Counts.Percent > 0 {
		return v.state.Counts.Percent / 100
	}
	if v.state.Counts.Total == 0 {
		return 0
	}
	c := v.state.Counts
	return float64(c.Completed+c.Failed+c.Cancelled) / float64(c.Total)
}

// SetSize sets the view dimensions.
func (v *ProgressView) SetSize(width, height int) {
	v.width = width
	v.height = height
	if w := width - 20; w > 10 && w < 60 {
		v.bar.Width = w
	}
}

// State returns the current display state.
func (v *ProgressView) State() ProgressState {
	return v.state
}

// LogEntry is one line of the activity log.
type LogEntry struct {
	Timestamp time.Time
	Kind      string
	Message   string
}

// ProgressApp is the bubbletea model for a run.
type ProgressApp struct {
	title    string
	view     *ProgressView
	logs     []LogEntry
	cancel   func()
	quitting bool
	done     bool
	success  bool
	err      error

	logStyle     lipgloss.Style
	logTimeStyle lipgloss.Style
	errorStyle   lipgloss.Style
	doneStyle    lipgloss.Style
}

// NewProgressApp creates the model. cancel is called when the user quits
// before the run is done; it may be nil.
func NewProgressApp(title string, nodes []*models.TaskNode, cancel func()) *ProgressApp {
	return &ProgressApp{
		title:  title,
		view:   NewProgressView(nodes),
		cancel: cancel,

		logStyle:     lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		logTimeStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
		errorStyle:   lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
		doneStyle:    lipgloss.NewStyle().Foreground(lipgloss.Color("34")).Bold(true),
	}
}

// Init implements tea.Model.
func (a *ProgressApp) Init() tea.Cmd {
	return a.view.spinner.Tick
}

// Update implements tea.Model.
func (a *ProgressApp) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			if !a.done && a.cancel != nil {
				a.cancel()
			}
			a.quitting = !a.done
			return a, tea.Quit
		}

	case EventMsg:
		a.view.Apply(msg.Event)
		if line := describe(msg.Event); line != "" {
			a.log(string(msg.Event.Type), line, msg.Event.Timestamp)
		}
		return a, nil

	case DoneMsg:
		a.done = true
		a.success = msg.Success
		a.err = msg.Err
		return a, tea.Quit
	}

	var cmd tea.Cmd
	a.view, cmd = a.view.Update(msg)
	return a, cmd
}

func (a *ProgressApp) log(kind, message string, ts time.Time) {
	if ts.IsZero() {
		ts = time.Now()
	}
	a.logs = append(a.logs, LogEntry{Timestamp: ts, Kind: kind, Message: message})
	if len(a.logs) > maxLogLines {
		a.logs = a.logs[len(a.logs)-maxLogLines:]
	}
}

// describe turns an event into an activity log line, or "" to skip it.
func describe(ev events.Event) string {
	switch ev.Type {
	case events.ExecutionStarted:
		return "execution started"
	case events.TaskStarted:
		if ev.Attempt > 1 {
			return fmt.Sprintf("%s retry %d", ev.TaskID, ev.Attempt-1)
		}
		return ev.TaskID + " started"
	case events.TaskCompleted:
		return ev.TaskID + " completed"
	case events.TaskFailed:
		return fmt.Sprintf("%s failed: %v", ev.TaskID, ev.Error)
	case events.ExecutionCompleted:
		return "execution completed"
	case events.ExecutionCancelled:
		return "execution cancelled"
	case events.MaskChanged:
		state := "disabled"
		if ev.Available {
			state = "enabled"
		}
		return fmt.Sprintf("tool %s %s", ev.Tool, state)
	case events.StateChanged:
		return "phase " + ev.State
	}
	return ""
}

// View implements tea.Model.
func (a *ProgressApp) View() string {
	if a.quitting {
		return "Run cancelled.\n"
	}

	var b strings.Builder
	b.WriteString(lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("205")).
		Render(a.title))
	b.WriteString("\n\n")
	b.WriteString(a.view.View())
	b.WriteString("\n")

	if len(a.logs) > 0 {
		b.WriteString(lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("252")).Render("Activity"))
		b.WriteString("\n")
		for _, e := range a.logs {
			fmt.Fprintf(&b, "  %s %s\n",
				a.logTimeStyle.Render(e.Timestamp.Format("15:04:05")),
				a.logStyle.Render(e.Message))
		}
		b.WriteString("\n")
	}

	switch {
	case !a.done:
		b.WriteString(a.logTimeStyle.Render("Press q to cancel"))
	case a.err != nil:
		b.WriteString(a.errorStyle.Render(fmt.Sprintf("Error: %v", a.err)))
	case a.success:
		b.WriteString(a.doneStyle.Render("All tasks completed."))
	default:
		b.WriteString(a.errorStyle.Render("Some tasks failed."))
	}
	b.WriteString("\n")
	return b.String()
}

// Done reports whether the run finished.
func (a *ProgressApp) Done() bool {
	return a.done
}

// Attach forwards every bus event to p until the returned func is called.
func Attach(bus *events.Bus, p *tea.Program) (detach func()) {
	return bus.Subscribe(func(ev events.Event) {
		p.Send(EventMsg{Event: ev})
	})
}

// NewProgressProgram creates a program for the progress app. The final
// frame stays on screen after the program exits.
func NewProgressProgram(title string, nodes []*models.TaskNode, cancel func(), opts ...tea.ProgramOption) (*tea.Program, *ProgressApp) {
	app := NewProgressApp(title, nodes, cancel)
	return tea.NewProgram(app, opts...), app
}
