// Package codescheme defines immutable enumerations of classification codes
// and the control-code vocabulary shared by every stage of the pipeline.
package codescheme

// CodeType distinguishes substantive codes from sentinel codes.
type CodeType string

const (
	CodeTypeNormal  CodeType = "Normal"
	CodeTypeControl CodeType = "Control"
	CodeTypeMeta    CodeType = "Meta"
)

// ControlCode is the tag carried by a Control code.
type ControlCode string

// Control vocabulary. Schemes may define additional terminal tags.
const (
	NotCoded          ControlCode = "NC"
	NotReviewed       ControlCode = "NR"
	TrueMissing       ControlCode = "NA"
	CodingError       ControlCode = "CE"
	NoiseOtherProject ControlCode = "NOP"
	Stop              ControlCode = "STOP"
	NotApplicable     ControlCode = "NS"
	NotInternational  ControlCode = "NIC"
	WrongScheme       ControlCode = "WS"
)

// Code is one entry in a Scheme.
type Code struct {
	ID           string      `json:"CodeID"`
	Type         CodeType    `json:"CodeType"`
	ControlCode  ControlCode `json:"ControlCode,omitempty"`
	MatchValues  []string    `json:"MatchValues,omitempty"`
	DisplayText  string      `json:"DisplayText,omitempty"`
	NumericValue int         `json:"NumericValue,omitempty"`
	ManualReview bool        `json:"VisibleInCoda"`
}

// MatchValue returns the canonical match value of a Normal code.
func (c Code) MatchValue() string {
	if len(c.MatchValues) == 0 {
		return ""
	}
	return c.MatchValues[0]
}

// IsControl reports whether c is a Control code.
func (c Code) IsControl() bool { return c.Type == CodeTypeControl }

// IsNormal reports whether c is a Normal code.
func (c Code) IsNormal() bool { return c.Type == CodeTypeNormal }

// Scheme is an immutable, indexed set of codes. Construct with New.
type Scheme struct {
	id    string
	name  string
	codes []Code

	byID      map[string]int
	byMatch   map[string]int
	byControl map[ControlCode]int
}

// New validates codes and returns an indexed Scheme. It fails with a
// ConfigurationError if two codes share an id, a match value, or a control tag.
func New(id, name string, codes []Code) (*Scheme, error) {
	if id == "" {
		return nil, NewConfigurationError("scheme "+name, "missing scheme id")
	}
	s := &Scheme{
		id:        id,
		name:      name,
		codes:     make([]Code, len(codes)),
		byID:      make(map[string]int, len(codes)),
		byMatch:   make(map[string]int, len(codes)),
		byControl: make(map[ControlCode]int),
	}
	copy(s.codes, codes)

	for i, c := range s.codes {
		if c.ID == "" {
			return nil, NewConfigurationError(id, "code at index %d has no id", i)
		}
		if _, dup := s.byID[c.ID]; dup {
			return nil, NewConfigurationError(id, "duplicate code id %q", c.ID)
		}
		s.byID[c.ID] = i

		switch c.Type {
		case CodeTypeNormal:
			for _, mv := range c.MatchValues {
				if prev, dup := s.byMatch[mv]; dup {
					return nil, NewConfigurationError(id, "match value %q shared by codes %q and %q", mv, s.codes[prev].ID, c.ID)
				}
				s.byMatch[mv] = i
			}
		case CodeTypeControl:
			if c.ControlCode == "" {
				return nil, NewConfigurationError(id, "control code %q has no control tag", c.ID)
			}
			if prev, dup := s.byControl[c.ControlCode]; dup {
				return nil, NewConfigurationError(id, "control tag %q shared by codes %q and %q", c.ControlCode, s.codes[prev].ID, c.ID)
			}
			s.byControl[c.ControlCode] = i
		case CodeTypeMeta:
		default:
			return nil, NewConfigurationError(id, "code %q has unknown type %q", c.ID, c.Type)
		}
	}
	return s, nil
}

// ID returns the scheme identifier.
func (s *Scheme) ID() string { return s.id }

// Name returns the human-readable scheme name.
func (s *Scheme) Name() string { return s.name }

// Codes returns a copy of the scheme's codes in definition order.
func (s *Scheme) Codes() []Code {
	out := make([]Code, len(s.codes))
	copy(out, s.codes)
	return out
}

// ByID returns the code with the given identifier.
func (s *Scheme) ByID(id string) (Code, error) {
	i, ok := s.byID[id]
	if !ok {
		return Code{}, &NotFoundError{Scheme: s.id, By: "id", Key: id}
	}
	return s.codes[i], nil
}

// ByMatchValue returns the Normal code carrying the given match value.
func (s *Scheme) ByMatchValue(v string) (Code, error) {
	i, ok := s.byMatch[v]
	if !ok {
		return Code{}, &NotFoundError{Scheme: s.id, By: "match value", Key: v}
	}
	return s.codes[i], nil
}

// ByControlCode returns the Control code carrying the given tag.
func (s *Scheme) ByControlCode(cc ControlCode) (Code, error) {
	i, ok := s.byControl[cc]
	if !ok {
		return Code{}, &NotFoundError{Scheme: s.id, By: "control code", Key: string(cc)}
	}
	return s.codes[i], nil
}

// HasControlCode reports whether the scheme defines the given control tag.
func (s *Scheme) HasControlCode(cc ControlCode) bool {
	_, ok := s.byControl[cc]
	return ok
}
