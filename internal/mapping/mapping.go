// Package mapping models the binding of a formula variable, in the context of
// one subgroup tag, to the concrete tag supplying its value.
package mapping

import (
	"sort"
	"strings"
)

const (
	// UnknownTagName is shown when there is no mapping at all.
	UnknownTagName = "Unknown Tag"
	// FallbackTagName is shown for a mapping whose response carries no name field.
	FallbackTagName = "Assigned Tag"
)

// Mapping is a variable mapping record as returned by the catalog.
//
// ContextTagID is the subgroup tag that owns the binding; TargetTagID is the
// subgroup tag supplying the value. The name fields are optional and filled
// depending on which endpoint produced the record.
type Mapping struct {
	ID           int64  `json:"mapping_id"`
	VariableID   *int64 `json:"variable_id,omitempty"`
	ContextTagID int64  `json:"context_tag_id,omitempty"`
	TargetTagID  int64  `json:"subgroup_tag_id,omitempty"`

	MappedTagName   string       `json:"mapped_tag_name,omitempty"`
	AssignedTag     *AssignedTag `json:"assigned_tag,omitempty"`
	TagName         string       `json:"tag_name,omitempty"`
	SubgroupTagName string       `json:"subgroup_tag_name,omitempty"`
	Name            string       `json:"name,omitempty"`
}

// AssignedTag is the nested tag object some responses embed.
type AssignedTag struct {
	SubgroupTagID   int64  `json:"subgroup_tag_id,omitempty"`
	SubgroupTagName string `json:"subgroup_tag_name,omitempty"`
}

// nameSource is one entry of the display-name priority table.
type nameSource struct {
	Field string
	get   func(Mapping) string
}

// displayNameSources lists, in priority order, the fields a mapping's display
// name is resolved from. The first non-blank value wins.
var displayNameSources = []nameSource{
	{Field: "mapped_tag_name", get: func(m Mapping) string { return m.MappedTagName }},
	{Field: "assigned_tag.subgroup_tag_name", get: func(m Mapping) string {
		if m.AssignedTag == nil {
			return ""
		}
		return m.AssignedTag.SubgroupTagName
	}},
	{Field: "tag_name", get: func(m Mapping) string { return m.TagName }},
	{Field: "subgroup_tag_name", get: func(m Mapping) string { return m.SubgroupTagName }},
	{Field: "name", get: func(m Mapping) string { return m.Name }},
}

// DisplayName resolves the tag name to show for m.
func DisplayName(m *Mapping) string {
	name, _ := ResolveDisplayName(m)
	return name
}

// ResolveDisplayName returns the display name and the field it came from.
// The field is empty when a placeholder name was used.
func ResolveDisplayName(m *Mapping) (string, string) {
	if m == nil {
		return UnknownTagName, ""
	}
	for _, src := range displayNameSources {
		if v := strings.TrimSpace(src.get(*m)); v != "" {
			return v, src.Field
		}
	}
	return FallbackTagName, ""
}

// DisplayNameFields returns the resolution order, for documentation and tests.
func DisplayNameFields() []string {
	out := make([]string, 0, len(displayNameSources))
	for _, s := range displayNameSources {
		out = append(out, s.Field)
	}
	return out
}

// Lookup indexes one subgroup tag's mappings by variable id.
// Values are never mutated in place; Put and Delete return new lookups.
type Lookup map[int64]Mapping

// Index builds a Lookup from raw mapping rows. Rows without a variable id are
// dropped. If two rows share a variable id the one with the higher mapping id wins.
func Index(rows []Mapping) Lookup {
	out := make(Lookup, len(rows))
	for _, m := range rows {
		if m.VariableID == nil {
			continue
		}
		if prev, ok := out[*m.VariableID]; ok && prev.ID > m.ID {
			continue
		}
		out[*m.VariableID] = m
	}
	return out
}

// Get returns the mapping for variableID.
func (l Lookup) Get(variableID int64) (Mapping, bool) {
	m, ok := l[variableID]
	return m, ok
}

// Put returns a copy of l with m bound to its variable, replacing any previous binding.
func (l Lookup) Put(m Mapping) Lookup {
	out := l.clone()
	if m.VariableID != nil {
		out[*m.VariableID] = m
	}
	return out
}

// Delete returns a copy of l without the binding for variableID.
func (l Lookup) Delete(variableID int64) Lookup {
	out := l.clone()
	delete(out, variableID)
	return out
}

// DeleteMapping returns a copy of l without the mapping whose id is mappingID.
func (l Lookup) DeleteMapping(mappingID int64) Lookup {
	out := l.clone()
	for vid, m := range out {
		if m.ID == mappingID {
			delete(out, vid)
		}
	}
	return out
}

// Mappings returns the indexed mappings ordered by variable id.
func (l Lookup) Mappings() []Mapping {
	keys := make([]int64, 0, len(l))
	for k := range l {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	out := make([]Mapping, 0, len(keys))
	for _, k := range keys {
		out = append(out, l[k])
	}
	return out
}

func (l Lookup) clone() Lookup {
	out := make(Lookup, len(l)+1)
	for k, v := range l {
		out[k] = v
	}
	return out
}
