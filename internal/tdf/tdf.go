// Package tdf is the reference implementation of the tabular dataset file
// (TDF) codec that spec.md §6 specifies only as an interface the core
// consumes: loadDataset(path) and saveDataset(path, columns, rows). This
// implementation persists a dataset as a single JSON document and is not
// "the" TDF binary format — it exists so the CLI has something to read and
// write datasets with; swapping in a real binary codec later only means
// reimplementing Load and Save against the same signatures.
package tdf

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cwbudde/go-sdpl/internal/pdv"
	"github.com/cwbudde/go-sdpl/internal/value"
)

// IoError wraps a load/save failure with the operation and path that
// failed, matching spec.md §7's IoError kind.
type IoError struct {
	Op   string
	Path string
	Err  error
}

func (e *IoError) Error() string { return fmt.Sprintf("IoError: %s %s: %v", e.Op, e.Path, e.Err) }
func (e *IoError) Unwrap() error { return e.Err }

type jsonColumn struct {
	Name   string `json:"name"`
	Kind   string `json:"kind"` // "number" | "string"
	Length int    `json:"length"`
}

type jsonDoc struct {
	Meta    jsonMeta      `json:"meta"`
	Columns []jsonColumn  `json:"columns"`
	Rows    [][]*jsonCell `json:"rows"`
}

type jsonMeta struct {
	Title string `json:"title,omitempty"`
}

// jsonCell carries exactly one of Num/Str; a nil *jsonCell is a missing
// numeric value. JSON has no NaN, so the missing sentinel is represented as
// a null array element rather than as a float.
type jsonCell struct {
	Num *float64 `json:"num,omitempty"`
	Str *string  `json:"str,omitempty"`
}

func toJSONCell(v value.Value) *jsonCell {
	if v.Kind == value.String {
		s := v.Str
		return &jsonCell{Str: &s}
	}
	if value.IsMissingNumber(v) {
		return nil
	}
	n := v.Num
	return &jsonCell{Num: &n}
}

func fromJSONCell(c *jsonCell, col pdv.Column) value.Value {
	if c == nil {
		return value.Missing()
	}
	if c.Str != nil {
		return value.NewString(*c.Str, col.Length)
	}
	if c.Num != nil {
		return value.Num64(*c.Num)
	}
	return value.Missing()
}

func kindString(k value.Kind) string {
	if k == value.String {
		return "string"
	}
	return "number"
}

func kindFromString(s string) value.Kind {
	if s == "string" {
		return value.String
	}
	return value.Number
}

func toDoc(title string, columns []pdv.Column, rows []pdv.Row) jsonDoc {
	doc := jsonDoc{Meta: jsonMeta{Title: title}}
	doc.Columns = make([]jsonColumn, len(columns))
	for i, c := range columns {
		doc.Columns[i] = jsonColumn{Name: c.Name, Kind: kindString(c.Kind), Length: c.Length}
	}
	doc.Rows = make([][]*jsonCell, len(rows))
	for i, r := range rows {
		cells := make([]*jsonCell, len(r))
		for j, v := range r {
			cells[j] = toJSONCell(v)
		}
		doc.Rows[i] = cells
	}
	return doc
}

// Save writes columns and rows to path as a TDF JSON document, atomically:
// write to a temp file in the same directory, then rename over the
// destination (spec.md §6: "when overwritten, the write is atomic").
func Save(path string, title string, columns []pdv.Column, rows []pdv.Row) error {
	doc := toDoc(title, columns, rows)
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return &IoError{Op: "save", Path: path, Err: err}
	}
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tdf-tmp-*")
	if err != nil {
		return &IoError{Op: "save", Path: path, Err: err}
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return &IoError{Op: "save", Path: path, Err: err}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return &IoError{Op: "save", Path: path, Err: err}
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return &IoError{Op: "save", Path: path, Err: err}
	}
	return nil
}

// Load reads a TDF JSON document from path.
func Load(path string) ([]pdv.Column, []pdv.Row, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, &IoError{Op: "load", Path: path, Err: err}
	}
	var doc jsonDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, nil, &IoError{Op: "load", Path: path, Err: err}
	}
	columns := make([]pdv.Column, len(doc.Columns))
	for i, c := range doc.Columns {
		columns[i] = pdv.Column{Name: c.Name, Kind: kindFromString(c.Kind), Length: c.Length}
	}
	rows := make([]pdv.Row, len(doc.Rows))
	for i, cells := range doc.Rows {
		row := make(pdv.Row, len(cells))
		for j, c := range cells {
			col := pdv.Column{}
			if j < len(columns) {
				col = columns[j]
			}
			row[j] = fromJSONCell(c, col)
		}
		rows[i] = row
	}
	return columns, rows, nil
}

// LoadTitle reads just a dataset's recorded title without decoding its full
// row set.
func LoadTitle(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", &IoError{Op: "load", Path: path, Err: err}
	}
	var doc struct {
		Meta jsonMeta `json:"meta"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return "", &IoError{Op: "load", Path: path, Err: err}
	}
	return doc.Meta.Title, nil
}
