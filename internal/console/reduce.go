package console

import (
	"github.com/yourorg/calibr8/internal/catalogclient"
	"github.com/yourorg/calibr8/internal/formula"
	"github.com/yourorg/calibr8/internal/mapping"
)

// Action is an event applied to State by Reduce.
type Action interface{ action() }

// SelectSubgroup makes SubgroupID current and drops any selected tag.
type SelectSubgroup struct{ SubgroupID int64 }

// SelectTag makes Tag current. Its formula and mappings arrive with TagLoaded.
type SelectTag struct{ Tag catalogclient.SubgroupTag }

// DeselectTag clears the selected tag with its formula and mappings.
type DeselectTag struct{}

// TagLoaded delivers the formula and mappings of TagID.
type TagLoaded struct {
	TagID    int64
	Formula  *formula.Formula
	Mappings mapping.Lookup
}

// FormulaSet records a formula assignment; a nil Formula means cleared.
type FormulaSet struct {
	Tag      catalogclient.SubgroupTag
	Formula  *formula.Formula
	Mappings mapping.Lookup
}

type MappingBound struct {
	TagID   int64
	Mapping mapping.Mapping
}

type MappingRemoved struct {
	TagID     int64
	MappingID int64
}

// Failed records the message of a failed user action.
type Failed struct{ Message string }

func (SelectSubgroup) action() {}
func (SelectTag) action()      {}
func (DeselectTag) action()    {}
func (TagLoaded) action()      {}
func (FormulaSet) action()     {}
func (MappingBound) action()   {}
func (MappingRemoved) action() {}
func (Failed) action()         {}

// Reduce returns the state after a. Actions carrying a tag id other than the
// selected tag's are stale and leave s unchanged.
func Reduce(s State, a Action) State {
	switch a := a.(type) {
	case SelectSubgroup:
		return State{SubgroupID: a.SubgroupID}
	case SelectTag:
		tag := a.Tag
		return State{SubgroupID: s.SubgroupID, Tag: &tag}
	case DeselectTag:
		return State{SubgroupID: s.SubgroupID}
	case TagLoaded:
		if s.TagID() != a.TagID || a.TagID == 0 {
			return s
		}
		s.Formula = a.Formula
		s.Mappings = a.Mappings
		s.LastError = ""
		return s
	case FormulaSet:
		if s.TagID() != a.Tag.SubgroupTagID || a.Tag.SubgroupTagID == 0 {
			return s
		}
		tag := a.Tag
		s.Tag = &tag
		s.Formula = a.Formula
		s.Mappings = a.Mappings
		s.LastError = ""
		return s
	case MappingBound:
		if s.TagID() != a.TagID || a.TagID == 0 {
			return s
		}
		s.Mappings = s.Mappings.Put(a.Mapping)
		s.LastError = ""
		return s
	case MappingRemoved:
		if s.TagID() != a.TagID || a.TagID == 0 {
			return s
		}
		s.Mappings = s.Mappings.DeleteMapping(a.MappingID)
		s.LastError = ""
		return s
	case Failed:
		s.LastError = a.Message
		return s
	}
	return s
}
