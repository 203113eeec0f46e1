package location

import (
	"encoding/csv"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"
)

// Lookup maps a location match value to its match value at another level of
// the hierarchy. ok is false when no unique mapping exists.
type Lookup interface {
	Resolve(matchValue, level string) (value string, ok bool)
}

// Row is one node of a location table: a value at a level and the value of
// its parent one level up. Top-level rows have no parent.
type Row struct {
	Value  string `csv:"value"`
	Level  string `csv:"level"`
	Parent string `csv:"parent,omitempty"`
}

type node struct {
	level  string
	parent string
}

// TableLookup resolves locations by walking parent links upward. Values
// below the starting level cannot be derived and never resolve.
type TableLookup struct {
	nodes map[string]node
}

// NewTableLookup indexes rows by value. A value listed twice is an error.
func NewTableLookup(rows []Row) (*TableLookup, error) {
	t := &TableLookup{nodes: make(map[string]node, len(rows))}
	for _, r := range rows {
		if r.Value == "" || r.Level == "" {
			return nil, eris.Errorf("location: row %+v is missing value or level", r)
		}
		if _, dup := t.nodes[r.Value]; dup {
			return nil, eris.Errorf("location: value %q listed twice", r.Value)
		}
		t.nodes[r.Value] = node{level: r.Level, parent: r.Parent}
	}
	return t, nil
}

// Resolve implements Lookup.
func (t *TableLookup) Resolve(matchValue, level string) (string, bool) {
	v := matchValue
	for range len(t.nodes) + 1 {
		n, ok := t.nodes[v]
		if !ok {
			return "", false
		}
		if n.level == level {
			return v, true
		}
		if n.parent == "" {
			return "", false
		}
		v = n.parent
	}
	return "", false
}

// DecodeRows reads location rows from a headed CSV stream.
func DecodeRows(r io.Reader) ([]Row, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	return decode(cr)
}

func decode(r csvutil.Reader) ([]Row, error) {
	dec, err := csvutil.NewDecoder(r)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "location: read header")
	}
	var rows []Row
	for {
		var row Row
		if err := dec.Decode(&row); errors.Is(err, io.EOF) {
			break
		} else if err != nil {
			return nil, eris.Wrap(err, "location: decode row")
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// LoadTable loads a location table from a .csv or .xlsx file.
func LoadTable(path string) (*TableLookup, error) {
	var (
		rows []Row
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		rows, err = readXLSX(path)
	case ".csv":
		var f *os.File
		if f, err = os.Open(path); err != nil {
			return nil, eris.Wrapf(err, "location: open %s", path)
		}
		defer f.Close() //nolint:errcheck
		rows, err = DecodeRows(f)
	default:
		return nil, eris.Errorf("location: unsupported table format %q", filepath.Ext(path))
	}
	if err != nil {
		return nil, eris.Wrapf(err, "location: load %s", path)
	}
	return NewTableLookup(rows)
}
