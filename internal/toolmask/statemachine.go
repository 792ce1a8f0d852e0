package toolmask

import (
	"errors"
	"fmt"
	"os"

	"go.yaml.in/yaml/v3"

	"github.com/ShayCichocki/intentflow/internal/events"
)

var (
	// ErrStateMachineDisabled is returned by TransitionTo before ConfigureStateMachine.
	ErrStateMachineDisabled = errors.New("state machine not configured")
	// ErrUnknownState is returned when the target state is not defined.
	ErrUnknownState = errors.New("unknown state")
	// ErrTransitionNotAllowed is returned when the current state does not list the target.
	ErrTransitionNotAllowed = errors.New("transition not allowed")
)

// State is one phase of the state machine.
type State struct {
	// AvailableTools is the complete mask while the phase is active.
	AvailableTools []string `yaml:"available_tools"`
}

// StateMachineConfig defines phases and the transitions allowed between them.
type StateMachineConfig struct {
	States      map[string]State    `yaml:"states"`
	Transitions map[string][]string `yaml:"transitions"`
}

// LoadStateMachine reads a StateMachineConfig from a YAML file.
//
//	states:
//	  plan:
//	    available_tools: [file_read, search]
//	  build:
//	    available_tools: [file_read, file_write]
//	transitions:
//	  plan: [build]
func LoadStateMachine(path string) (StateMachineConfig, error) {
	var cfg StateMachineConfig
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read state machine: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse state machine %s: %w", path, err)
	}
	if len(cfg.States) == 0 {
		return cfg, fmt.Errorf("state machine %s defines no states", path)
	}
	return cfg, nil
}

// ConfigureStateMachine enables the state machine and clears the current state.
func (s *System) ConfigureStateMachine(cfg StateMachineConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.machine = &cfg
	s.currentState = ""
	s.logger.Info("state machine configured", "states", len(cfg.States))
}

// ReloadStateMachine replaces the definition but keeps the current state
// when the new definition still has it, re-applying that state's mask.
func (s *System) ReloadStateMachine(cfg StateMachineConfig) {
	s.mu.Lock()
	s.machine = &cfg
	var changed []events.Event
	if st, ok := cfg.States[s.currentState]; ok && s.currentState != "" {
		changed = s.replaceMaskLocked(st.AvailableTools)
	} else {
		s.currentState = ""
	}
	current := s.currentState
	s.mu.Unlock()

	s.logger.Info("state machine reloaded", "states", len(cfg.States), "current", current)
	s.emitChanges(changed)
}

// CurrentState returns the active phase, or "" when none is active.
func (s *System) CurrentState() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentState
}

// TransitionTo moves to the named state. From no state any defined state
// may be entered; otherwise the current state must list the target. The
// mask is replaced by exactly the target's AvailableTools.
func (s *System) TransitionTo(name string) error {
	s.mu.Lock()
	if s.machine == nil {
		s.mu.Unlock()
		return ErrStateMachineDisabled
	}
	target, ok := s.machine.States[name]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownState, name)
	}
	if s.currentState != "" && !contains(s.machine.Transitions[s.currentState], name) {
		from := s.currentState
		s.mu.Unlock()
		return fmt.Errorf("%w: %s -> %s", ErrTransitionNotAllowed, from, name)
	}

	from := s.currentState
	s.currentState = name
	changed := s.replaceMaskLocked(target.AvailableTools)
	s.mu.Unlock()

	s.logger.Info("state transition", "from", from, "to", name, "available", len(target.AvailableTools))
	s.emitChanges(changed)
	s.bus.Emit(events.Event{Type: events.StateChanged, State: name})
	return nil
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
