// Package export renders a subgroup tag as an xlsx workbook.
package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

const (
	DataSheet      = "Subgroup Tag Data"
	VariablesSheet = "Variables"
	// None fills cells with no value.
	None = "None"
)

// Binding is one formula variable and the tag it is mapped to, if any.
type Binding struct {
	Variable string
	Tag      string
}

// SubgroupTag is the content of one export.
type SubgroupTag struct {
	Name       string
	Expression string
	Children   []string
	Bindings   []Binding
}

// FileName is the download name for the export of a subgroup tag.
func FileName(subgroupTagID int64) string {
	return fmt.Sprintf("subgroup_tag_%d_export.xlsx", subgroupTagID)
}

// Write renders st and writes the xlsx document to w.
func Write(w io.Writer, st SubgroupTag) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), DataSheet); err != nil {
		return err
	}
	if err := f.SetSheetRow(DataSheet, "A1", &[]any{"Parent Tag Name", "Formula Expression", "Child Tags"}); err != nil {
		return err
	}
	expr := st.Expression
	if expr == "" {
		expr = None
	}
	if err := f.SetSheetRow(DataSheet, "A2", &[]any{st.Name, expr}); err != nil {
		return err
	}
	children := st.Children
	if len(children) == 0 {
		children = []string{None}
	}
	for i, c := range children {
		cell, _ := excelize.CoordinatesToCellName(3, i+2)
		if err := f.SetCellValue(DataSheet, cell, c); err != nil {
			return err
		}
	}

	if _, err := f.NewSheet(VariablesSheet); err != nil {
		return err
	}
	if err := f.SetSheetRow(VariablesSheet, "A1", &[]any{"Variable", "Mapped Tag"}); err != nil {
		return err
	}
	for i, b := range st.Bindings {
		tag := b.Tag
		if tag == "" {
			tag = None
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(VariablesSheet, cell, &[]any{"$" + b.Variable, tag}); err != nil {
			return err
		}
	}
	return f.Write(w)
}
