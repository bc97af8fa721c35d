// Package masterlist reads tag names out of uploaded masterlist spreadsheets.
package masterlist

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	xls "github.com/extrame/xls"
	"github.com/xuri/excelize/v2"

	"github.com/yourorg/calibr8/internal/db"
)

// TagsColumn is the header of the column holding comma-separated tag names.
const TagsColumn = "tags"

var (
	ErrUnsupportedType = errors.New("invalid file type")
	ErrNoTagsColumn    = fmt.Errorf("tags column '%s' not found in the file", TagsColumn)
	ErrNoTags          = fmt.Errorf("tags column '%s' is empty in the file", TagsColumn)
)

// Supported reports whether fileName has an extension Parse understands.
func Supported(fileName string) bool {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".csv", ".xlsx", ".xls":
		return true
	}
	return false
}

// Parse reads a CSV, XLSX or XLS masterlist. The first row is the header; every
// non-blank, comma-separated entry in the tags column becomes one TagRow that
// carries the remaining cells of its row as Data.
func Parse(fileName string, r io.Reader) ([]db.TagRow, error) {
	var (
		rows [][]string
		err  error
	)
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".csv":
		rows, err = readCSV(r)
	case ".xlsx":
		rows, err = readXLSX(r)
	case ".xls":
		rows, err = readXLS(r)
	default:
		return nil, ErrUnsupportedType
	}
	if err != nil {
		return nil, err
	}
	return tagRows(rows)
}

func tagRows(rows [][]string) ([]db.TagRow, error) {
	if len(rows) == 0 {
		return nil, ErrNoTagsColumn
	}
	header := make([]string, len(rows[0]))
	idx := -1
	for i, h := range rows[0] {
		header[i] = strings.TrimSpace(h)
		if idx < 0 && strings.EqualFold(header[i], TagsColumn) {
			idx = i
		}
	}
	if idx < 0 {
		return nil, ErrNoTagsColumn
	}

	var out []db.TagRow
	for _, row := range rows[1:] {
		if idx >= len(row) {
			continue
		}
		var data map[string]string
		for i, cell := range row {
			if i == idx || i >= len(header) || header[i] == "" || strings.TrimSpace(cell) == "" {
				continue
			}
			if data == nil {
				data = make(map[string]string)
			}
			data[header[i]] = strings.TrimSpace(cell)
		}
		for _, name := range strings.Split(row[idx], ",") {
			name = strings.TrimSpace(name)
			if name == "" {
				continue
			}
			out = append(out, db.TagRow{Name: name, Data: data})
		}
	}
	if len(out) == 0 {
		return nil, ErrNoTags
	}
	return out, nil
}

func readCSV(r io.Reader) ([][]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	return reader.ReadAll()
}

// readXLSX reads the active sheet, like a spreadsheet user would expect.
func readXLSX(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	sheet := f.GetSheetName(f.GetActiveSheetIndex())
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, nil
		}
		sheet = sheets[0]
	}
	rows, err := f.Rows(sheet)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out [][]string
	for rows.Next() {
		cols, err := rows.Columns()
		if err != nil {
			return nil, err
		}
		out = append(out, cols)
	}
	return out, rows.Error()
}

func readXLS(r io.Reader) ([][]string, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	wb, err := xls.OpenReader(bytes.NewReader(b), "utf-8")
	if err != nil {
		return nil, err
	}
	if wb.NumSheets() == 0 {
		return nil, nil
	}
	sh := wb.GetSheet(0)
	if sh == nil {
		return nil, nil
	}
	out := make([][]string, 0, int(sh.MaxRow)+1)
	for i := 0; i <= int(sh.MaxRow); i++ {
		row := sh.Row(i)
		if row == nil {
			continue
		}
		cols := make([]string, 0, row.LastCol())
		for j := 0; j < row.LastCol(); j++ {
			cols = append(cols, row.Col(j))
		}
		out = append(out, cols)
	}
	return out, nil
}
