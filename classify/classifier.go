package classify

import (
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/hupe1980/leadflow/schema"
	"github.com/hupe1980/leadflow/session"
)

// Triggers maps each persistable flow to the phrases that signal it. A
// phrase match is a strong signal; matches against the flow's own field
// names are a weak one.
type Triggers map[schema.Flow][]string

// DefaultTriggers returns the built-in trigger phrase sets. Callers may
// override them wholesale via configuration.
func DefaultTriggers() Triggers {
	return Triggers{
		schema.StudentLead: {
			"student", "tutor", "teacher", "grade", "help with",
			"math", "physics", "chemistry", "biology", "registration",
		},
		schema.WorkshopLead: {
			"workshop", "bootcamp", "course", "seminar", "advertise",
			"program", "training",
		},
		schema.FeedbackEntry: {
			"feedback", "suggestion", "complaint", "complain", "issue",
		},
	}
}

// Context is the classifier's read-only view of session state.
type Context struct {
	History    []session.Turn
	InProgress map[schema.Flow]time.Time
}

// Options configure classifier construction.
type Options struct {
	Triggers Triggers
}

// Classifier scores messages against per-flow trigger phrases and field
// names. It holds no mutable state after construction and is safe for
// concurrent use.
type Classifier struct {
	triggers map[schema.Flow][]*regexp.Regexp
	fields   map[schema.Flow][]*regexp.Regexp
}

// New builds a classifier from the registry's field names and the default
// (or overridden) trigger sets.
func New(registry *schema.Registry, optFns ...func(o *Options)) *Classifier {
	opts := Options{Triggers: DefaultTriggers()}
	for _, fn := range optFns {
		fn(&opts)
	}

	c := &Classifier{
		triggers: make(map[schema.Flow][]*regexp.Regexp),
		fields:   make(map[schema.Flow][]*regexp.Regexp),
	}
	for flow, phrases := range opts.Triggers {
		for _, phrase := range phrases {
			if re := compilePhrase(phrase); re != nil {
				c.triggers[flow] = append(c.triggers[flow], re)
			}
		}
	}
	for _, flow := range schema.Flows() {
		if !registry.Persistable(flow) {
			continue
		}
		specs, err := registry.FieldsFor(flow)
		if err != nil {
			continue
		}
		for _, spec := range specs {
			// "contact_info" matches as "contact info" in free text.
			name := strings.ReplaceAll(spec.Name, "_", " ")
			if re := compilePhrase(name); re != nil {
				c.fields[flow] = append(c.fields[flow], re)
			}
		}
	}
	return c
}

func compilePhrase(phrase string) *regexp.Regexp {
	phrase = strings.TrimSpace(strings.ToLower(phrase))
	if phrase == "" {
		return nil
	}
	re, err := regexp.Compile(`\b` + regexp.QuoteMeta(phrase) + `\b`)
	if err != nil {
		return nil
	}
	return re
}

const (
	triggerWeight   = 2
	fieldNameWeight = 1
)

// Classify resolves the message to a single flow.
//
// Policy, in order:
//  1. Score every persistable flow by trigger phrase and field name hits.
//  2. If the session has exactly one in-progress partial and no competing
//     flow scored, continue that flow (prevents keyword-free follow-ups
//     such as a bare email from bouncing the user to another flow).
//  3. Otherwise pick the highest scoring flow; ties break toward the most
//     recently updated in-progress partial, then toward flow declaration
//     order for determinism.
//  4. With no scores and in-progress partials, continue the most recently
//     updated one.
//  5. Everything else is a general query.
func (c *Classifier) Classify(text string, sctx Context) schema.Flow {
	lowered := strings.ToLower(text)

	triggerHits := map[schema.Flow]int{}
	for flow, res := range c.triggers {
		for _, re := range res {
			if re.MatchString(lowered) {
				triggerHits[flow]++
			}
		}
	}

	// Continuation: one record mid-accumulation and no competing trigger
	// phrase. Field names alone (e.g. "email", shared by several flows) do
	// not count as competition, so a bare follow-up value stays in the flow
	// it belongs to.
	if len(sctx.InProgress) == 1 {
		var current schema.Flow
		for flow := range sctx.InProgress {
			current = flow
		}
		competing := false
		for flow, hits := range triggerHits {
			if flow != current && hits > 0 {
				competing = true
				break
			}
		}
		if !competing {
			return current
		}
	}

	fieldHits := map[schema.Flow]int{}
	for flow, res := range c.fields {
		for _, re := range res {
			if re.MatchString(lowered) {
				fieldHits[flow]++
			}
		}
	}

	// Trigger phrases start or switch flows; field names only sharpen the
	// choice among flows that already triggered.
	if len(triggerHits) > 0 {
		scores := map[schema.Flow]int{}
		for flow, hits := range triggerHits {
			scores[flow] = hits*triggerWeight + fieldHits[flow]*fieldNameWeight
		}
		return c.best(scores, sctx.InProgress)
	}

	// No trigger anywhere: disambiguate among in-progress flows by field
	// name mentions, then recency.
	if len(sctx.InProgress) > 0 {
		scores := map[schema.Flow]int{}
		for flow := range sctx.InProgress {
			scores[flow] = fieldHits[flow]
		}
		return c.best(scores, sctx.InProgress)
	}

	return schema.GeneralQuery
}

// best returns the highest scoring flow with deterministic tie-breaking.
func (c *Classifier) best(scores map[schema.Flow]int, inProgress map[schema.Flow]time.Time) schema.Flow {
	flows := make([]schema.Flow, 0, len(scores))
	for flow := range scores {
		flows = append(flows, flow)
	}
	sort.Slice(flows, func(i, j int) bool {
		a, b := flows[i], flows[j]
		if scores[a] != scores[b] {
			return scores[a] > scores[b]
		}
		// Recency bias reduces flow oscillation when two records are in
		// progress at once.
		ta, aInProgress := inProgress[a]
		tb, bInProgress := inProgress[b]
		if aInProgress != bInProgress {
			return aInProgress
		}
		if aInProgress && bInProgress && !ta.Equal(tb) {
			return ta.After(tb)
		}
		return a < b
	})
	return flows[0]
}
