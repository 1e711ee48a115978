package extract

import (
	"regexp"
	"strings"

	"github.com/hupe1980/leadflow/logging"
	"github.com/hupe1980/leadflow/schema"
	"github.com/hupe1980/leadflow/session"
)

// DefaultCorrectionPhrases signal that the user is amending a previously
// given value, which permits overwriting a filled slot.
var DefaultCorrectionPhrases = []string{
	"actually", "i meant", "my mistake", "correction", "change my", "change the",
}

// Options configure extractor construction.
type Options struct {
	CorrectionPhrases []string
	Logger            logging.Logger
}

// Extractor recognizes field values in free text and merges them into a
// flow's partial record. It is stateless after construction and safe for
// concurrent use.
type Extractor struct {
	registry   *schema.Registry
	correction *regexp.Regexp
	logger     logging.Logger
}

// New builds an extractor bound to the field schema registry.
func New(registry *schema.Registry, optFns ...func(o *Options)) *Extractor {
	opts := Options{
		CorrectionPhrases: DefaultCorrectionPhrases,
		Logger:            logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	quoted := make([]string, 0, len(opts.CorrectionPhrases))
	for _, p := range opts.CorrectionPhrases {
		p = strings.TrimSpace(strings.ToLower(p))
		if p != "" {
			quoted = append(quoted, regexp.QuoteMeta(p))
		}
	}

	return &Extractor{
		registry:   registry,
		correction: regexp.MustCompile(`\b(?:` + strings.Join(quoted, "|") + `)\b`),
		logger:     opts.Logger,
	}
}

var (
	emailRe = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	nameRe  = regexp.MustCompile(`(?:\b(?i:i'm|i am|my name is|this is)\s+)([A-Z][A-Za-z'\-]+(?:\s+[A-Z][A-Za-z'\-]+)*)`)
	gradeRe = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bgrade\s*(\d{1,2})\b`),
		regexp.MustCompile(`(?i)\b(\d{1,2})(?:st|nd|rd|th)\s*grade\b`),
	}
	universityRe  = regexp.MustCompile(`(?i)\b(?:university|bachelor|master|phd|undergraduate|graduate)\b`)
	locationRe    = regexp.MustCompile(`(?:\b(?i:located in|live in|living in|based in|from|in)\s+)([A-Z][A-Za-z'\-]+(?:\s+[A-Z][A-Za-z'\-]+)?)`)
	bareTokenRe   = regexp.MustCompile(`^[A-Z][A-Za-z'\-]+(?:\s+[A-Z][A-Za-z'\-]+)?$`)
	phoneRe       = regexp.MustCompile(`\+?\d[\d\s\-]{6,}\d`)
	subjectsRe    = regexp.MustCompile(`(?i)\bhelp with\s+([^,.;!?]+)`)
	participantRe = regexp.MustCompile(`(?i)\b(\d+)\s*(?:participants|attendees|people|seats)\b`)
)

// Extract merges newly recognized field values for the flow into partial and
// returns the names of the fields it changed. Extraction of a value that
// fails kind validation leaves the field unset and never raises.
func (e *Extractor) Extract(flow schema.Flow, text string, partial *session.PartialRecord) []string {
	specs, err := e.registry.FieldsFor(flow)
	if err != nil {
		return nil
	}

	correcting := e.correction.MatchString(strings.ToLower(text))

	var changed []string
	for _, spec := range specs {
		existing := partial.Values[spec.Name]
		if existing != "" && !correcting {
			continue
		}

		raw, found := e.candidate(flow, spec, text, partial)
		if !found {
			continue
		}
		value, valid := schema.ValidateValue(spec, raw)
		if !valid {
			if spec.Kind == schema.KindEnum {
				e.logger.Warn("dropping value outside allowed set", "field", spec.Name, "value", raw)
			} else {
				e.logger.Debug("dropping kind-invalid value", "field", spec.Name, "kind", spec.Kind.String())
			}
			continue
		}
		if value == existing {
			continue
		}
		partial.Values[spec.Name] = value
		changed = append(changed, spec.Name)
	}
	return changed
}

// IsCorrection reports whether the text contains a correction phrase.
func (e *Extractor) IsCorrection(text string) bool {
	return e.correction.MatchString(strings.ToLower(text))
}

// candidate finds the most plausible raw value for one field in the text.
// The explicit "my <field> is <value>" form wins over heuristics, but its
// punctuation-bounded capture can truncate values that legitimately contain
// punctuation ("my email is a@b.com" captures "a@b"), so an assigned value
// that fails kind validation falls through to the kind-specific matchers.
func (e *Extractor) candidate(flow schema.Flow, spec schema.FieldSpec, text string, partial *session.PartialRecord) (string, bool) {
	assigned, hasAssigned := assignedValue(spec.Name, text)
	if hasAssigned {
		if _, valid := schema.ValidateValue(spec, assigned); valid {
			return assigned, true
		}
	}

	switch spec.Name {
	case "email":
		if m := emailRe.FindString(text); m != "" {
			return m, true
		}
	case "name", "contact_person":
		if m := nameRe.FindStringSubmatch(text); m != nil {
			return m[1], true
		}
	case "grade":
		for _, re := range gradeRe {
			if m := re.FindStringSubmatch(text); m != nil {
				return m[1], true
			}
		}
		if universityRe.MatchString(text) {
			return "university", true
		}
	case "location":
		// "preferably in English" matches the preposition pattern; enum
		// values of sibling fields (languages, program types) are never
		// places.
		if m := locationRe.FindStringSubmatch(text); m != nil && !e.isEnumValue(flow, m[1]) {
			return m[1], true
		}
		if v, ok := bareLocation(text, partial); ok && !e.isEnumValue(flow, v) {
			return v, true
		}
	case "phone", "contact_info":
		if m := phoneRe.FindString(text); m != "" {
			return strings.TrimSpace(m), true
		}
		// An email only counts as contact info when the flow has no
		// dedicated email field to receive it.
		if spec.Name == "contact_info" && !e.registry.Allows(flow, "email") {
			if m := emailRe.FindString(text); m != "" {
				return m, true
			}
		}
	case "subjects":
		if m := subjectsRe.FindStringSubmatch(text); m != nil {
			return strings.TrimSpace(m[1]), true
		}
	case "expected_participants":
		if m := participantRe.FindStringSubmatch(text); m != nil {
			return m[1], true
		}
	case "message":
		if flow == schema.FeedbackEntry {
			return strings.TrimSpace(text), true
		}
	}

	if spec.Kind == schema.KindEnum {
		if v, ok := enumMention(spec, text); ok {
			return v, true
		}
	}
	// Surface the invalid assigned value so the drop gets logged instead of
	// vanishing silently.
	if hasAssigned {
		return assigned, true
	}
	return "", false
}

// clauseBreakRe cuts an assigned value at a conjunction that introduces a
// new clause ("CodeCamp and the program name is ..."), while leaving value
// internal conjunctions ("math and physics") intact.
var clauseBreakRe = regexp.MustCompile(`(?i)\s+and\s+(?:the|my|our|a|an)\b.*$`)

// assignedValue matches the explicit declaration forms "my <field> is X",
// "the <field>: X" and captures everything up to the next clause boundary.
func assignedValue(field, text string) (string, bool) {
	name := regexp.QuoteMeta(strings.ReplaceAll(field, "_", " "))
	re, err := regexp.Compile(`(?i)\b(?:my|the|our)?\s*` + name + `\s*(?:is|:)\s*([^,.;!?]+)`)
	if err != nil {
		return "", false
	}
	m := re.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	v := strings.TrimSpace(clauseBreakRe.ReplaceAllString(m[1], ""))
	if v == "" {
		return "", false
	}
	return v, true
}

// bareLocation falls back to a lone capitalized comma segment, e.g. the
// "Cairo" in "I'm Ahmed, Grade 10, Cairo". Segments that duplicate an
// already extracted value are skipped.
func bareLocation(text string, partial *session.PartialRecord) (string, bool) {
	taken := make(map[string]bool, len(partial.Values))
	for _, v := range partial.Values {
		taken[strings.ToLower(v)] = true
	}
	for _, segment := range strings.Split(text, ",") {
		segment = strings.TrimSpace(strings.TrimRight(segment, ".!?"))
		if !bareTokenRe.MatchString(segment) {
			continue
		}
		// "I'm Ahmed" passes the shape check but is an introduction, not a place.
		if nameRe.MatchString(segment) {
			continue
		}
		if taken[strings.ToLower(segment)] {
			continue
		}
		return segment, true
	}
	return "", false
}

// isEnumValue reports whether v belongs to the allowed value set of any enum
// field declared by the flow.
func (e *Extractor) isEnumValue(flow schema.Flow, v string) bool {
	specs, err := e.registry.FieldsFor(flow)
	if err != nil {
		return false
	}
	for _, spec := range specs {
		for _, allowed := range spec.Enum {
			if strings.EqualFold(allowed, v) {
				return true
			}
		}
	}
	return false
}

// enumMention scans for any allowed enum value appearing as a word.
func enumMention(spec schema.FieldSpec, text string) (string, bool) {
	lowered := strings.ToLower(text)
	for _, allowed := range spec.Enum {
		re, err := regexp.Compile(`\b` + regexp.QuoteMeta(strings.ToLower(allowed)) + `\b`)
		if err != nil {
			continue
		}
		if re.MatchString(lowered) {
			return allowed, true
		}
	}
	return "", false
}
