// Package toolmask keeps a registry of tools and the subset currently
// allowed to run. Availability can be changed per tool, per group, by glob
// or wholesale through a phase state machine.
package toolmask

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/ShayCichocki/intentflow/internal/events"
	"github.com/ShayCichocki/intentflow/internal/logging"
)

var (
	// ErrUnnamedTool is returned when registering a tool without a name.
	ErrUnnamedTool = errors.New("tool name is required")
	// ErrToolNotFound is wrapped when a call names an unregistered tool.
	ErrToolNotFound = errors.New("tool not found")
	// ErrToolMasked is wrapped when a call names a disabled tool.
	ErrToolMasked = errors.New("tool masked")
	// ErrNoHandler is returned when an allowed tool has no handler.
	ErrNoHandler = errors.New("tool has no handler")
)

// Reasons reported by ValidateCall.
const (
	ReasonToolNotFound = "tool_not_found"
	ReasonToolMasked   = "tool_masked"
)

// Handler executes a tool.
type Handler func(ctx context.Context, params map[string]any) (any, error)

// Tool is a registered capability.
type Tool struct {
	Name        string
	Description string
	// Parameters describes the accepted parameters, typically a JSON schema.
	Parameters map[string]any
	Handler    Handler
}

// Config sets the initial availability of newly registered tools.
type Config struct {
	DefaultAvailable bool
}

// Stats counts registry and mask activity.
type Stats struct {
	TotalTools     int
	AvailableTools int
	MaskChanges    int
	BlockedCalls   int
	TotalCalls     int
}

// CallValidation is the verdict of ValidateCall.
type CallValidation struct {
	Allowed bool
	// Reason is ReasonToolNotFound or ReasonToolMasked when not allowed.
	Reason string
	Tool   *Tool
}

// Option configures a System.
type Option func(*System)

// WithBus sets the bus that receives mask-changed and state-changed events.
func WithBus(b *events.Bus) Option {
	return func(s *System) { s.bus = b }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *System) { s.logger = l }
}

// System is the tool registry plus its availability mask.
// Construct one per process and share it by reference.
type System struct {
	cfg    Config
	bus    *events.Bus
	logger *slog.Logger

	mu     sync.RWMutex
	tools  map[string]*Tool
	groups map[string]map[string]struct{}
	mask   map[string]struct{}
	stats  Stats

	machine      *StateMachineConfig
	currentState string
}

// New creates an empty System.
func New(cfg Config, opts ...Option) *System {
	s := &System{
		cfg:    cfg,
		tools:  make(map[string]*Tool),
		groups: make(map[string]map[string]struct{}),
		mask:   make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logging.Component(s.logger, "toolmask")
	return s
}

// Register adds or replaces a tool. Its availability is seeded from
// Config.DefaultAvailable.
func (s *System) Register(t Tool) error {
	if t.Name == "" {
		return ErrUnnamedTool
	}

	s.mu.Lock()
	s.tools[t.Name] = &t
	group := GroupOf(t.Name)
	if s.groups[group] == nil {
		s.groups[group] = make(map[string]struct{})
	}
	s.groups[group][t.Name] = struct{}{}
	if s.cfg.DefaultAvailable {
		s.mask[t.Name] = struct{}{}
	} else {
		delete(s.mask, t.Name)
	}
	s.syncStatsLocked()
	s.mu.Unlock()

	s.logger.Debug("tool registered", "tool", t.Name, "group", group, "available", s.cfg.DefaultAvailable)
	return nil
}

// Tool returns the registered tool with name.
func (s *System) Tool(name string) (*Tool, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tools[name]
	return t, ok
}

// ToolNames returns every registered tool name, sorted.
func (s *System) ToolNames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedKeys(s.tools)
}

// AvailableTools returns the names in the mask, sorted.
func (s *System) AvailableTools() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedKeys(s.mask)
}

// IsAvailable reports whether name is registered and unmasked.
func (s *System) IsAvailable(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.mask[name]
	return ok
}

// Groups returns group name to sorted member names. Ungrouped tools are under "".
func (s *System) Groups() map[string][]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string][]string, len(s.groups))
	for g, members := range s.groups {
		out[g] = sortedKeys(members)
	}
	return out
}

// SetToolAvailability enables or disables one tool. Setting the current
// value is a no-op. Unknown names are ignored and report false.
func (s *System) SetToolAvailability(name string, available bool) bool {
	s.mu.Lock()
	changed := s.setLocked(name, available)
	s.mu.Unlock()

	s.emitChanges(changed)
	return len(changed) > 0
}

// SetToolsByPrefix applies availability to every tool in group and returns
// the number of effective changes.
func (s *System) SetToolsByPrefix(group string, available bool) int {
	s.mu.Lock()
	var changed []events.Event
	for _, name := range sortedKeys(s.groups[group]) {
		changed = append(changed, s.setLocked(name, available)...)
	}
	s.mu.Unlock()

	s.emitChanges(changed)
	return len(changed)
}

// SetToolsByPattern applies availability to every tool whose name matches
// the doublestar glob pattern.
func (s *System) SetToolsByPattern(pattern string, available bool) (int, error) {
	if !doublestar.ValidatePattern(pattern) {
		return 0, fmt.Errorf("tool pattern %q: %w", pattern, doublestar.ErrBadPattern)
	}

	s.mu.Lock()
	var changed []events.Event
	for _, name := range sortedKeys(s.tools) {
		if ok, _ := doublestar.Match(pattern, name); ok {
			changed = append(changed, s.setLocked(name, available)...)
		}
	}
	s.mu.Unlock()

	s.emitChanges(changed)
	return len(changed), nil
}

// SetMask applies an arbitrary name to availability map.
func (s *System) SetMask(m map[string]bool) int {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)

	s.mu.Lock()
	var changed []events.Event
	for _, name := range names {
		changed = append(changed, s.setLocked(name, m[name])...)
	}
	s.mu.Unlock()

	s.emitChanges(changed)
	return len(changed)
}

// EnableAll makes every registered tool available.
func (s *System) EnableAll() int {
	return s.setAll(true)
}

// DisableAll masks every registered tool.
func (s *System) DisableAll() int {
	return s.setAll(false)
}

func (s *System) setAll(available bool) int {
	s.mu.Lock()
	var changed []events.Event
	for _, name := range sortedKeys(s.tools) {
		changed = append(changed, s.setLocked(name, available)...)
	}
	s.mu.Unlock()

	s.emitChanges(changed)
	return len(changed)
}

// SetOnlyAvailable makes exactly the registered names in list available.
// Unknown names are ignored.
func (s *System) SetOnlyAvailable(list []string) int {
	s.mu.Lock()
	changed := s.replaceMaskLocked(list)
	s.mu.Unlock()

	s.emitChanges(changed)
	return len(changed)
}

// replaceMaskLocked swaps the mask for the registered subset of list.
// Caller must hold s.mu.
func (s *System) replaceMaskLocked(list []string) []events.Event {
	want := make(map[string]bool, len(list))
	for _, name := range list {
		if _, ok := s.tools[name]; ok {
			want[name] = true
		}
	}
	var changed []events.Event
	for _, name := range sortedKeys(s.tools) {
		changed = append(changed, s.setLocked(name, want[name])...)
	}
	return changed
}

// setLocked changes one tool and returns the resulting event, if any.
// Caller must hold s.mu.
func (s *System) setLocked(name string, available bool) []events.Event {
	if _, ok := s.tools[name]; !ok {
		return nil
	}
	_, current := s.mask[name]
	if current == available {
		return nil
	}
	if available {
		s.mask[name] = struct{}{}
	} else {
		delete(s.mask, name)
	}
	s.stats.MaskChanges++
	s.syncStatsLocked()
	return []events.Event{{Type: events.MaskChanged, Tool: name, Available: available}}
}

func (s *System) syncStatsLocked() {
	s.stats.TotalTools = len(s.tools)
	s.stats.AvailableTools = len(s.mask)
}

func (s *System) emitChanges(evs []events.Event) {
	for _, ev := range evs {
		s.logger.Debug("tool availability changed", "tool", ev.Tool, "available", ev.Available)
		s.bus.Emit(ev)
	}
}

// ValidateCall reports whether name may be invoked. A masked call is
// counted in BlockedCalls.
func (s *System) ValidateCall(name string) CallValidation {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tools[name]
	if !ok {
		return CallValidation{Reason: ReasonToolNotFound}
	}
	if _, ok := s.mask[name]; !ok {
		s.stats.BlockedCalls++
		return CallValidation{Reason: ReasonToolMasked, Tool: t}
	}
	return CallValidation{Allowed: true, Tool: t}
}

// ExecuteWithMask validates name and invokes its handler.
func (s *System) ExecuteWithMask(ctx context.Context, name string, params map[string]any) (any, error) {
	v := s.ValidateCall(name)
	if !v.Allowed {
		s.logger.Warn("tool call blocked", "tool", name, "reason", v.Reason)
		if v.Reason == ReasonToolNotFound {
			return nil, fmt.Errorf("工具 %s 不存在: %w", name, ErrToolNotFound)
		}
		return nil, fmt.Errorf("工具 %s 被禁用: %w", name, ErrToolMasked)
	}
	if v.Tool.Handler == nil {
		return nil, fmt.Errorf("tool %s: %w", name, ErrNoHandler)
	}

	s.mu.Lock()
	s.stats.TotalCalls++
	s.mu.Unlock()

	return v.Tool.Handler(ctx, params)
}

// Stats returns a snapshot of the counters.
func (s *System) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stats
}

// Reset clears the current state and counters and reseeds the mask from
// Config.DefaultAvailable. Registrations and the state machine survive.
func (s *System) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.currentState = ""
	s.stats = Stats{}
	s.mask = make(map[string]struct{}, len(s.tools))
	if s.cfg.DefaultAvailable {
		for name := range s.tools {
			s.mask[name] = struct{}{}
		}
	}
	s.syncStatsLocked()
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
