package schema

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Flow identifies one of the fixed conversational purposes. The set is
// closed: the engine routes every message to exactly one of these and
// ambiguous input resolves to GeneralQuery rather than "none".
type Flow int

const (
	// GeneralQuery covers conversational or informational messages that do
	// not accumulate a record.
	GeneralQuery Flow = iota
	// StudentLead collects a student's details for teacher matching.
	StudentLead
	// WorkshopLead collects an organization's details for advertising an
	// educational program.
	WorkshopLead
	// FeedbackEntry captures a question or suggestion for human follow-up.
	FeedbackEntry
)

// flowCount is the number of valid Flow values.
const flowCount = 4

// ErrUnknownFlow is returned when a Flow value outside the closed set is
// presented to the registry. It indicates a programming error, not user input.
var ErrUnknownFlow = errors.New("unknown flow")

// String returns the canonical snake_case name of the flow.
func (f Flow) String() string {
	switch f {
	case GeneralQuery:
		return "general_query"
	case StudentLead:
		return "student_lead"
	case WorkshopLead:
		return "workshop_lead"
	case FeedbackEntry:
		return "feedback_entry"
	default:
		return fmt.Sprintf("flow(%d)", int(f))
	}
}

// Valid reports whether f is a member of the closed flow set.
func (f Flow) Valid() bool { return f >= GeneralQuery && f < flowCount }

// ParseFlow converts a canonical flow name back into a Flow value.
func ParseFlow(s string) (Flow, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "general_query", "general":
		return GeneralQuery, nil
	case "student_lead", "student":
		return StudentLead, nil
	case "workshop_lead", "workshop":
		return WorkshopLead, nil
	case "feedback_entry", "feedback":
		return FeedbackEntry, nil
	default:
		return GeneralQuery, fmt.Errorf("%w: %q", ErrUnknownFlow, s)
	}
}

// Flows returns all members of the closed flow set in declaration order.
func Flows() []Flow {
	return []Flow{GeneralQuery, StudentLead, WorkshopLead, FeedbackEntry}
}

// FieldKind constrains how a field value is validated before it may be
// stored in a record.
type FieldKind int

const (
	// KindText accepts any non-empty string.
	KindText FieldKind = iota
	// KindEmail requires a standard address shape.
	KindEmail
	// KindEnum requires membership in the spec's allowed value set.
	KindEnum
	// KindNumber requires an integer or decimal.
	KindNumber
)

// String returns the lowercase kind name.
func (k FieldKind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindEmail:
		return "email"
	case KindEnum:
		return "enum"
	case KindNumber:
		return "number"
	default:
		return "unknown"
	}
}

// FieldSpec describes one named slot within a flow's record. Enum lists the
// allowed values for KindEnum fields (matched case-insensitively, the
// canonical casing from the spec is what gets stored).
type FieldSpec struct {
	Name     string
	Required bool
	Kind     FieldKind
	Enum     []string
}

var emailRe = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// ValidateValue checks raw against the spec's kind and returns the
// normalized value to store. The boolean is false when the value fails kind
// validation; callers drop such values silently rather than storing them
// malformed.
func ValidateValue(spec FieldSpec, raw string) (string, bool) {
	v := strings.TrimSpace(raw)
	if v == "" {
		return "", false
	}
	switch spec.Kind {
	case KindText:
		return v, true
	case KindEmail:
		v = strings.ToLower(v)
		if emailRe.MatchString(v) {
			return v, true
		}
		return "", false
	case KindNumber:
		if _, err := strconv.ParseFloat(v, 64); err == nil {
			return v, true
		}
		return "", false
	case KindEnum:
		for _, allowed := range spec.Enum {
			if strings.EqualFold(allowed, v) {
				return allowed, true
			}
		}
		return "", false
	default:
		return "", false
	}
}

// Registry is the immutable field schema registry. It is constructed once at
// startup and shared read-only by the extractor, the reconciler and the
// engine.
type Registry struct {
	fields map[Flow][]FieldSpec
}

// GradeLevels is the default allowed value set for the student grade field:
// school grades 1 through 12 plus "university".
var GradeLevels = []string{
	"1", "2", "3", "4", "5", "6", "7", "8", "9", "10", "11", "12", "university",
}

// Languages is the default allowed instruction language set.
var Languages = []string{"english", "arabic", "french", "spanish", "german"}

// ProgramTypes is the default allowed workshop program type set.
var ProgramTypes = []string{"workshop", "bootcamp", "course", "seminar"}

// FeedbackCategories is the default allowed feedback category set.
var FeedbackCategories = []string{"general", "technical", "service-specific", "billing", "partnership", "other"}

// UrgencyLevels is the default allowed feedback urgency set.
var UrgencyLevels = []string{"low", "medium", "high"}

// NewRegistry builds the registry with the built-in field sets for all four
// flows.
func NewRegistry() *Registry {
	return NewRegistryFromSpecs(map[Flow][]FieldSpec{
		StudentLead: {
			{Name: "name", Required: true, Kind: KindText},
			{Name: "email", Required: true, Kind: KindEmail},
			{Name: "grade", Required: true, Kind: KindEnum, Enum: GradeLevels},
			{Name: "location", Required: true, Kind: KindText},
			{Name: "language", Kind: KindEnum, Enum: Languages},
			{Name: "subjects", Kind: KindText},
			{Name: "contact_info", Kind: KindText},
		},
		WorkshopLead: {
			{Name: "organization_name", Required: true, Kind: KindText},
			{Name: "contact_person", Required: true, Kind: KindText},
			{Name: "email", Required: true, Kind: KindEmail},
			{Name: "program_name", Required: true, Kind: KindText},
			{Name: "phone", Kind: KindText},
			{Name: "program_type", Kind: KindEnum, Enum: ProgramTypes},
			{Name: "description", Kind: KindText},
			{Name: "target_audience", Kind: KindText},
			{Name: "duration", Kind: KindText},
			{Name: "location", Kind: KindText},
			{Name: "expected_participants", Kind: KindNumber},
		},
		FeedbackEntry: {
			{Name: "message", Required: true, Kind: KindText},
			{Name: "category", Kind: KindEnum, Enum: FeedbackCategories},
			{Name: "urgency", Kind: KindEnum, Enum: UrgencyLevels},
			{Name: "contact_info", Kind: KindText},
		},
		GeneralQuery: {},
	})
}

// NewRegistryFromSpecs builds a registry from explicit per-flow field sets.
// The provided map is copied; spec slices are not shared with the caller.
func NewRegistryFromSpecs(specs map[Flow][]FieldSpec) *Registry {
	fields := make(map[Flow][]FieldSpec, len(specs))
	for flow, fs := range specs {
		cp := make([]FieldSpec, len(fs))
		copy(cp, fs)
		fields[flow] = cp
	}
	return &Registry{fields: fields}
}

// FieldsFor returns the ordered field specs for a flow.
func (r *Registry) FieldsFor(flow Flow) ([]FieldSpec, error) {
	fs, ok := r.fields[flow]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFlow, flow)
	}
	cp := make([]FieldSpec, len(fs))
	copy(cp, fs)
	return cp, nil
}

// Spec returns the spec of a single named field within a flow.
func (r *Registry) Spec(flow Flow, name string) (FieldSpec, bool) {
	for _, fs := range r.fields[flow] {
		if fs.Name == name {
			return fs, true
		}
	}
	return FieldSpec{}, false
}

// Allows reports whether name is a declared field of the flow. Partial
// records must never contain a field outside this set.
func (r *Registry) Allows(flow Flow, name string) bool {
	_, ok := r.Spec(flow, name)
	return ok
}

// Persistable reports whether completed records of this flow are written to
// a store. GeneralQuery declares no fields and is never persisted.
func (r *Registry) Persistable(flow Flow) bool {
	for _, fs := range r.fields[flow] {
		if fs.Required {
			return true
		}
	}
	return false
}

// IsComplete reports whether every required field of the flow holds a
// non-empty, kind-valid value in values. Unknown flows are never complete.
func (r *Registry) IsComplete(flow Flow, values map[string]string) bool {
	fs, ok := r.fields[flow]
	if !ok {
		return false
	}
	if !r.Persistable(flow) {
		return false
	}
	for _, spec := range fs {
		if !spec.Required {
			continue
		}
		v, present := values[spec.Name]
		if !present {
			return false
		}
		if _, valid := ValidateValue(spec, v); !valid {
			return false
		}
	}
	return true
}

// MissingFields returns the required field names of the flow that values
// does not yet satisfy, in declaration order.
func (r *Registry) MissingFields(flow Flow, values map[string]string) []string {
	var missing []string
	for _, spec := range r.fields[flow] {
		if !spec.Required {
			continue
		}
		v, present := values[spec.Name]
		if !present {
			missing = append(missing, spec.Name)
			continue
		}
		if _, valid := ValidateValue(spec, v); !valid {
			missing = append(missing, spec.Name)
		}
	}
	return missing
}
