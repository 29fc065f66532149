package planner

import (
	"encoding/json"
	"fmt"

	"github.com/nagarbus/nagarbus/internal/network"
)

// StepKind discriminates journey steps.
type StepKind string

const (
	KindWalk     StepKind = "walk"
	KindBus      StepKind = "bus"
	KindTransfer StepKind = "transfer"
)

// Text is a rider-facing string in the default language and Hindi.
type Text struct {
	Default string
	Hindi   string
}

// Step is one leg of a route option. Implementations are WalkStep, BusStep
// and TransferStep.
type Step interface {
	Kind() StepKind
	Minutes() int
	Text() Text
}

// BusStep rides one route between two of its stops.
type BusStep struct {
	Route    network.Route
	From     network.Stop
	To       network.Stop
	Duration int
}

func (s BusStep) Kind() StepKind { return KindBus }
func (s BusStep) Minutes() int   { return s.Duration }

func (s BusStep) Text() Text {
	return Text{
		Default: fmt.Sprintf("Take Bus %s from %s to %s", s.Route.RouteNumber, s.From.Name, s.To.Name),
		Hindi:   fmt.Sprintf("बस %s से %s से %s जाएं", s.Route.RouteNumber, s.From.NameHindi, s.To.NameHindi),
	}
}

// TransferStep changes buses at a stop served by both routes.
type TransferStep struct {
	At       network.Stop
	Duration int
}

func (s TransferStep) Kind() StepKind { return KindTransfer }
func (s TransferStep) Minutes() int   { return s.Duration }

func (s TransferStep) Text() Text {
	return Text{
		Default: fmt.Sprintf("Transfer at %s", s.At.Name),
		Hindi:   fmt.Sprintf("%s पर बदलें", s.At.NameHindi),
	}
}

// WalkStep is a walk between two stops.
type WalkStep struct {
	From     network.Stop
	To       network.Stop
	Distance int
	Duration int
}

func (s WalkStep) Kind() StepKind { return KindWalk }
func (s WalkStep) Minutes() int   { return s.Duration }

func (s WalkStep) Text() Text {
	return Text{
		Default: fmt.Sprintf("Walk %d m to %s", s.Distance, s.To.Name),
		Hindi:   fmt.Sprintf("%s तक %d मीटर पैदल चलें", s.To.NameHindi, s.Distance),
	}
}

// Steps is an ordered list of steps with a tagged JSON encoding.
type Steps []Step

// TotalMinutes sums the duration of every step.
func (s Steps) TotalMinutes() int {
	total := 0
	for _, step := range s {
		total += step.Minutes()
	}
	return total
}

type stepJSON struct {
	Type             StepKind       `json:"type"`
	Description      string         `json:"description"`
	DescriptionHindi string         `json:"descriptionHindi"`
	Duration         int            `json:"duration"`
	Route            *network.Route `json:"route,omitempty"`
	FromStop         *network.Stop  `json:"fromStop,omitempty"`
	ToStop           *network.Stop  `json:"toStop,omitempty"`
	Distance         *int           `json:"distance,omitempty"`
}

// MarshalJSON writes each step with a "type" discriminator.
func (s Steps) MarshalJSON() ([]byte, error) {
	out := make([]stepJSON, 0, len(s))
	for _, step := range s {
		text := step.Text()
		raw := stepJSON{
			Type:             step.Kind(),
			Description:      text.Default,
			DescriptionHindi: text.Hindi,
			Duration:         step.Minutes(),
		}
		switch v := step.(type) {
		case BusStep:
			raw.Route, raw.FromStop, raw.ToStop = &v.Route, &v.From, &v.To
		case TransferStep:
			raw.FromStop, raw.ToStop = &v.At, &v.At
		case WalkStep:
			raw.FromStop, raw.ToStop, raw.Distance = &v.From, &v.To, &v.Distance
		default:
			return nil, fmt.Errorf("unknown step type %T", step)
		}
		out = append(out, raw)
	}
	return json.Marshal(out)
}

// UnmarshalJSON restores concrete step types from the "type" discriminator.
func (s *Steps) UnmarshalJSON(data []byte) error {
	var raws []stepJSON
	if err := json.Unmarshal(data, &raws); err != nil {
		return err
	}

	steps := make(Steps, 0, len(raws))
	for i, raw := range raws {
		switch raw.Type {
		case KindBus:
			step := BusStep{Duration: raw.Duration}
			if raw.Route != nil {
				step.Route = *raw.Route
			}
			if raw.FromStop != nil {
				step.From = *raw.FromStop
			}
			if raw.ToStop != nil {
				step.To = *raw.ToStop
			}
			steps = append(steps, step)
		case KindTransfer:
			step := TransferStep{Duration: raw.Duration}
			if raw.FromStop != nil {
				step.At = *raw.FromStop
			}
			steps = append(steps, step)
		case KindWalk:
			step := WalkStep{Duration: raw.Duration}
			if raw.FromStop != nil {
				step.From = *raw.FromStop
			}
			if raw.ToStop != nil {
				step.To = *raw.ToStop
			}
			if raw.Distance != nil {
				step.Distance = *raw.Distance
			}
			steps = append(steps, step)
		default:
			return fmt.Errorf("step %d: unknown type %q", i, raw.Type)
		}
	}
	*s = steps
	return nil
}
