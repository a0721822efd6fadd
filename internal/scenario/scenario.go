package scenario

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Event names understood by triggers.
const (
	EventFramesElapsed = "frames_elapsed"
)

// Action verbs applied to objects when a phase starts.
const (
	ActionMove = "move"
	ActionHide = "hide"
	ActionShow = "show"
)

// Scenario scripts a synthetic scene: where objects start and what happens to
// them phase by phase.
type Scenario struct {
	Name        string   `yaml:"name,omitempty"`
	Description string   `yaml:"description,omitempty"`
	Objects     []Object `yaml:"objects"`
	Phases      []Phase  `yaml:"phases"`
}

// Object is one instance of the target class placed in the scene.
type Object struct {
	ID string  `yaml:"id"`
	X  float64 `yaml:"x"`
	Y  float64 `yaml:"y"`
}

// Phase describes a stage of the scenario with the actions applied on entry
// and triggers for transitions.
type Phase struct {
	Name        string    `yaml:"name"`
	Description string    `yaml:"description,omitempty"`
	Actions     []Action  `yaml:"actions,omitempty"`
	Triggers    []Trigger `yaml:"triggers,omitempty"`
}

// Action changes one object. Move uses X and Y.
type Action struct {
	Object string  `yaml:"object"`
	Action string  `yaml:"action"`
	X      float64 `yaml:"x,omitempty"`
	Y      float64 `yaml:"y,omitempty"`
}

// Trigger moves the scenario to another phase based on an event.
type Trigger struct {
	Event string `yaml:"event"`
	Value int    `yaml:"value"`
	Next  string `yaml:"next"`
}

// Event represents a runtime occurrence that may advance the scenario.
type Event struct {
	Type  string
	Value int
}

// Load reads a YAML scenario definition from disk.
func Load(path string) (*Scenario, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	var s Scenario
	if err := yaml.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}
	if err := s.Check(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Lookup resolves name against the built-in scenarios, falling back to a
// YAML file path.
func Lookup(name string) (*Scenario, error) {
	if s, ok := BuiltIn()[name]; ok {
		return &s, nil
	}
	if _, err := os.Stat(name); err == nil {
		return Load(name)
	}
	return nil, fmt.Errorf("unknown scenario %q", name)
}

// Check verifies that phases and actions refer to things that exist.
func (s *Scenario) Check() error {
	if len(s.Phases) == 0 {
		return fmt.Errorf("scenario %q: no phases", s.Name)
	}
	objects := make(map[string]bool, len(s.Objects))
	for _, o := range s.Objects {
		if objects[o.ID] {
			return fmt.Errorf("scenario %q: duplicate object %q", s.Name, o.ID)
		}
		objects[o.ID] = true
	}
	phases := make(map[string]bool, len(s.Phases))
	for _, p := range s.Phases {
		phases[p.Name] = true
	}
	for _, p := range s.Phases {
		for _, a := range p.Actions {
			if !objects[a.Object] {
				return fmt.Errorf("scenario %q phase %q: unknown object %q", s.Name, p.Name, a.Object)
			}
			switch a.Action {
			case ActionMove, ActionHide, ActionShow:
			default:
				return fmt.Errorf("scenario %q phase %q: unknown action %q", s.Name, p.Name, a.Action)
			}
		}
		for _, tr := range p.Triggers {
			if !phases[tr.Next] {
				return fmt.Errorf("scenario %q phase %q: unknown next phase %q", s.Name, p.Name, tr.Next)
			}
		}
	}
	return nil
}

// Phase returns the named phase.
func (s *Scenario) Phase(name string) (Phase, bool) {
	for _, p := range s.Phases {
		if p.Name == name {
			return p, true
		}
	}
	return Phase{}, false
}

// NextPhase returns the name of the next phase given the current phase and event.
// If no trigger matches, ok will be false.
func (s *Scenario) NextPhase(current string, ev Event) (next string, ok bool) {
	for _, p := range s.Phases {
		if p.Name != current {
			continue
		}
		for _, tr := range p.Triggers {
			if tr.Event == ev.Type && ev.Value >= tr.Value {
				return tr.Next, true
			}
		}
	}
	return "", false
}
