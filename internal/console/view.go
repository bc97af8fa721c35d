package console

import "github.com/yourorg/calibr8/internal/mapping"

// Row is one variable of the assigned formula with its binding.
type Row struct {
	VariableID int64  `json:"variable_id"`
	Variable   string `json:"variable"`
	Mapped     bool   `json:"mapped"`
	MappingID  int64  `json:"mapping_id,omitempty"`
	TagName    string `json:"tag_name"`
}

// Rows lists the assigned formula's variables in expression order. Mappings
// whose variable is not part of the formula are not shown.
func Rows(s State) []Row {
	if s.Formula == nil {
		return nil
	}
	vars := s.Formula.OrderedVariables()
	out := make([]Row, 0, len(vars))
	for _, v := range vars {
		if v.ID == nil {
			continue
		}
		row := Row{VariableID: *v.ID, Variable: v.Name, TagName: mapping.DisplayName(nil)}
		if m, ok := s.Mappings.Get(*v.ID); ok {
			row.Mapped = true
			row.MappingID = m.ID
			row.TagName = mapping.DisplayName(&m)
		}
		out = append(out, row)
	}
	return out
}
