package codescheme

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
)

// schemeFile mirrors the annotation tool's scheme export.
type schemeFile struct {
	SchemeID string `json:"SchemeID"`
	Name     string `json:"Name"`
	Version  string `json:"Version"`
	Codes    []Code `json:"Codes"`
}

// Decode reads one scheme definition from r.
func Decode(r io.Reader) (*Scheme, error) {
	var f schemeFile
	if err := json.NewDecoder(r).Decode(&f); err != nil {
		return nil, eris.Wrap(err, "codescheme: decode")
	}
	return New(f.SchemeID, f.Name, f.Codes)
}

// LoadFile reads one scheme definition from path.
func LoadFile(path string) (*Scheme, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "codescheme: open %s", path)
	}
	defer f.Close() //nolint:errcheck

	s, err := Decode(f)
	if err != nil {
		return nil, eris.Wrapf(err, "codescheme: load %s", path)
	}
	return s, nil
}

// Set holds every scheme loaded for a run, keyed by scheme id and by file stem.
// It is read-only once built.
type Set struct {
	schemes map[string]*Scheme
	ids     []string
}

// NewSet indexes schemes by id. Two schemes sharing an id is a configuration error.
func NewSet(schemes ...*Scheme) (*Set, error) {
	s := &Set{schemes: make(map[string]*Scheme, len(schemes))}
	for _, sc := range schemes {
		if err := s.add(sc.ID(), sc); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Set) add(key string, sc *Scheme) error {
	if prev, dup := s.schemes[key]; dup && prev != sc {
		return NewConfigurationError("scheme set", "scheme key %q defined twice", key)
	}
	if _, dup := s.schemes[key]; !dup {
		s.ids = append(s.ids, key)
	}
	s.schemes[key] = sc
	return nil
}

// LoadDir loads every *.json file in dir. Each scheme is reachable by its
// SchemeID and by its file name without extension.
func LoadDir(dir string) (*Set, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, eris.Wrapf(err, "codescheme: read dir %s", dir)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	set := &Set{schemes: make(map[string]*Scheme, len(names)*2)}
	for _, name := range names {
		sc, err := LoadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		if err := set.add(sc.ID(), sc); err != nil {
			return nil, err
		}
		stem := strings.TrimSuffix(name, ".json")
		if stem != sc.ID() {
			if err := set.add(stem, sc); err != nil {
				return nil, err
			}
		}
	}
	return set, nil
}

// Get returns the scheme registered under key. A missing scheme means the
// registry references something that was never loaded.
func (s *Set) Get(key string) (*Scheme, error) {
	sc, ok := s.schemes[key]
	if !ok {
		return nil, NewConfigurationError("scheme set", "scheme %q was never loaded", key)
	}
	return sc, nil
}

// Keys returns every registered key in load order.
func (s *Set) Keys() []string {
	out := make([]string, len(s.ids))
	copy(out, s.ids)
	return out
}
