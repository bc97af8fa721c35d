// Package console holds the selection state of the administration console
// and the controller that drives it against the catalog.
package console

import (
	"github.com/yourorg/calibr8/internal/catalogclient"
	"github.com/yourorg/calibr8/internal/formula"
	"github.com/yourorg/calibr8/internal/mapping"
)

// Phase is the position in the selection state machine.
type Phase int

const (
	PhaseNoSubgroup Phase = iota
	PhaseSubgroup
	PhaseTag
	PhaseFormula
)

func (p Phase) String() string {
	switch p {
	case PhaseNoSubgroup:
		return "no subgroup selected"
	case PhaseSubgroup:
		return "subgroup selected"
	case PhaseTag:
		return "tag selected"
	case PhaseFormula:
		return "formula assigned"
	}
	return "unknown"
}

// State is what the console shows. It is a value: reducers return a new
// State and never modify the one they are given.
type State struct {
	SubgroupID int64                      `json:"subgroup_id,omitempty"`
	Tag        *catalogclient.SubgroupTag `json:"tag,omitempty"`
	Formula    *formula.Formula           `json:"formula,omitempty"`
	// Mappings holds every mapping the catalog returned for Tag, including
	// those for variables outside Formula. Rows filters them.
	Mappings  mapping.Lookup `json:"mappings,omitempty"`
	LastError string         `json:"last_error,omitempty"`
}

func (s State) Phase() Phase {
	switch {
	case s.Tag == nil && s.SubgroupID == 0:
		return PhaseNoSubgroup
	case s.Tag == nil:
		return PhaseSubgroup
	case s.Formula == nil:
		return PhaseTag
	}
	return PhaseFormula
}

// TagID returns the selected subgroup tag id, or 0.
func (s State) TagID() int64 {
	if s.Tag == nil {
		return 0
	}
	return s.Tag.SubgroupTagID
}

// Variable finds a variable of the assigned formula by name.
func (s State) Variable(name string) (formula.Variable, bool) {
	if s.Formula == nil {
		return formula.Variable{}, false
	}
	for _, v := range s.Formula.Variables {
		if v.Name == name {
			return v, true
		}
	}
	return formula.Variable{}, false
}
