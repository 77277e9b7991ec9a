// Package votable reads the subset of the IVOA VOTable format consumed by
// the archive clients: result and meta resources, field declarations,
// TABLEDATA rows and resource-level params. It is not a schema validator.
package votable

import (
	"encoding/xml"
	"fmt"
	"io"
)

// Document is a parsed VOTable response.
type Document struct {
	XMLName   xml.Name   `xml:"VOTABLE"`
	Resources []Resource `xml:"RESOURCE"`
}

// Resource is a VOTable RESOURCE element. DataLink documents use type
// "results" for the link rows and type "meta" for service descriptors.
type Resource struct {
	Type   string  `xml:"type,attr"`
	ID     string  `xml:"ID,attr"`
	Params []Param `xml:"PARAM"`
	Tables []Table `xml:"TABLE"`
}

// Param is a named resource-level parameter such as a service accessURL.
type Param struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}

// Table holds the field declarations and data rows of one TABLE element.
type Table struct {
	ID     string  `xml:"ID,attr"`
	Fields []Field `xml:"FIELD"`
	Data   struct {
		TableData struct {
			Rows []tr `xml:"TR"`
		} `xml:"TABLEDATA"`
	} `xml:"DATA"`
}

// Field is a column declaration.
type Field struct {
	Name string `xml:"name,attr"`
}

type tr struct {
	Cells []string `xml:"TD"`
}

// Row is one data row, accessed by declared field name.
type Row struct {
	table *Table
	cells []string
}

// FieldMissingError reports an access to a field the table never declared.
// Lookups fail fast with this instead of propagating an empty value into
// later processing far from the true cause.
type FieldMissingError struct {
	Field string
}

func (e *FieldMissingError) Error() string {
	return fmt.Sprintf("votable: no field named %q declared in table", e.Field)
}

// Parse reads a VOTable document. Parsing is pure: the same bytes always
// yield the same document.
func Parse(r io.Reader) (*Document, error) {
	var doc Document
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to parse VOTable: %w", err)
	}
	return &doc, nil
}

// Results returns the first resource of type "results", or an error if the
// document has none.
func (d *Document) Results() (*Resource, error) {
	for i := range d.Resources {
		if d.Resources[i].Type == "results" {
			return &d.Resources[i], nil
		}
	}
	return nil, fmt.Errorf("votable: document contains no results resource")
}

// Meta returns the meta resource with the given ID, or nil.
func (d *Document) Meta(id string) *Resource {
	for i := range d.Resources {
		if d.Resources[i].Type == "meta" && d.Resources[i].ID == id {
			return &d.Resources[i]
		}
	}
	return nil
}

// FirstTable returns the first table of the first results resource.
func (d *Document) FirstTable() (*Table, error) {
	res, err := d.Results()
	if err != nil {
		return nil, err
	}
	if len(res.Tables) == 0 {
		return nil, fmt.Errorf("votable: results resource contains no table")
	}
	return &res.Tables[0], nil
}

// TableByID returns the table with the given ID from any resource.
func (d *Document) TableByID(id string) (*Table, error) {
	for i := range d.Resources {
		for j := range d.Resources[i].Tables {
			if d.Resources[i].Tables[j].ID == id {
				return &d.Resources[i].Tables[j], nil
			}
		}
	}
	return nil, fmt.Errorf("votable: no table with ID %q", id)
}

// Param returns the value of the named resource parameter.
func (r *Resource) Param(name string) (string, bool) {
	for _, p := range r.Params {
		if p.Name == name {
			return p.Value, true
		}
	}
	return "", false
}

// Rows returns the data rows of the table.
func (t *Table) Rows() []Row {
	rows := make([]Row, 0, len(t.Data.TableData.Rows))
	for _, tr := range t.Data.TableData.Rows {
		rows = append(rows, Row{table: t, cells: tr.Cells})
	}
	return rows
}

// column returns the positional index of a declared field.
func (t *Table) column(name string) (int, bool) {
	for i, f := range t.Fields {
		if f.Name == name {
			return i, true
		}
	}
	return -1, false
}

// Field returns the row's value for a declared field. A field the table
// never declared is an error; a declared field with an empty or short cell
// yields "".
func (r Row) Field(name string) (string, error) {
	idx, ok := r.table.column(name)
	if !ok {
		return "", &FieldMissingError{Field: name}
	}
	if idx >= len(r.cells) {
		return "", nil
	}
	return r.cells[idx], nil
}
