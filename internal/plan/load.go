package plan

import (
	"io"
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/survey-cli/internal/codescheme"
	"github.com/sells-group/survey-cli/internal/model"
)

// File is the YAML shape of a coding-plan registry.
type File struct {
	CorrectionScheme string       `yaml:"correction_scheme"`
	Fields           []string     `yaml:"fields"`
	Plans            []PlanConfig `yaml:"plans"`
}

// PlanConfig is one plan entry. Schemes are referenced by id or file stem.
type PlanConfig struct {
	RawField           string `yaml:"raw_field"`
	CodedField         string `yaml:"coded_field"`
	TimeField          string `yaml:"time_field"`
	IDField            string `yaml:"id_field"`
	CodaFilename       string `yaml:"coda_filename"`
	Category           string `yaml:"category"`
	Scheme             string `yaml:"scheme"`
	BinaryScheme       string `yaml:"binary_scheme"`
	BinaryCodedField   string `yaml:"binary_coded_field"`
	RedirectMatchValue string `yaml:"redirect_match_value"`
	LocationLevel      string `yaml:"location_level"`
}

// Decode parses a registry file and binds it against schemes.
func Decode(r io.Reader, schemes *codescheme.Set) (*Registry, error) {
	var f File
	if err := yaml.NewDecoder(r).Decode(&f); err != nil {
		return nil, eris.Wrap(err, "plan: parse registry")
	}
	return f.Build(schemes)
}

// LoadFile reads a registry file from path.
func LoadFile(path string, schemes *codescheme.Set) (*Registry, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "plan: open %s", path)
	}
	defer fh.Close() //nolint:errcheck

	reg, err := Decode(fh, schemes)
	if err != nil {
		return nil, eris.Wrapf(err, "plan: load %s", path)
	}
	return reg, nil
}

// Build resolves scheme references and constructs the registry.
func (f *File) Build(schemes *codescheme.Set) (*Registry, error) {
	correction, err := schemes.Get(f.CorrectionScheme)
	if err != nil {
		return nil, err
	}

	plans := make([]*Plan, 0, len(f.Plans))
	for _, pc := range f.Plans {
		p, err := pc.build(schemes, correction)
		if err != nil {
			return nil, err
		}
		plans = append(plans, p)
	}

	extra := make([]model.FieldKey, len(f.Fields))
	for i, k := range f.Fields {
		extra[i] = model.FieldKey(k)
	}
	return NewRegistry(correction, plans, extra...)
}

func (pc PlanConfig) build(schemes *codescheme.Set, correction *codescheme.Scheme) (*Plan, error) {
	scheme, err := schemes.Get(pc.Scheme)
	if err != nil {
		return nil, err
	}
	p := &Plan{
		RawField:         model.FieldKey(pc.RawField),
		CodedField:       model.FieldKey(pc.CodedField),
		TimeField:        model.FieldKey(pc.TimeField),
		IDField:          model.FieldKey(pc.IDField),
		CodaFilename:     pc.CodaFilename,
		Category:         Category(pc.Category),
		Scheme:           scheme,
		BinaryCodedField: model.FieldKey(pc.BinaryCodedField),
		LocationLevel:    pc.LocationLevel,
	}
	if p.IDField == "" {
		p.IDField = p.RawField + "_id"
	}
	if pc.BinaryScheme != "" {
		if p.BinaryScheme, err = schemes.Get(pc.BinaryScheme); err != nil {
			return nil, err
		}
	}
	if pc.RedirectMatchValue != "" {
		code, err := correction.ByMatchValue(pc.RedirectMatchValue)
		if err != nil {
			return nil, &codescheme.ConfigurationError{Component: "plan " + pc.CodedField, Message: "redirect match value", Err: err}
		}
		p.RedirectCode = &code
	}
	return p, nil
}
