// Package intent implements glob-pattern + filter-predicate matching of
// events against registered bot signals, and the priority-then-
// registration-order sort the router consumes.
//
// Filter predicates are represented as data (a map[string]any), per the
// design note that activation rules should stay declarative rather than
// compiled code — the same shape the teacher's config layer uses for its
// JSON-described objects (internal/config/agents_api.go).
package intent

import (
	"path/filepath"
	"sort"
	"strings"

	"github.com/jobflow-ai/activation-core/internal/config"
	"github.com/jobflow-ai/activation-core/internal/events"
)

// Match is one signal that fired for one bot.
type Match struct {
	Bot      string
	Priority config.Priority
	Pattern  string
	order    int // registration order, for stable priority ties
}

// Registration is a bot's full set of signals, recorded in the order
// bots were registered with the matcher.
type registration struct {
	bot     string
	signals []config.Signal
	order   int
}

// Matcher matches events against every registered bot's intent signals.
type Matcher struct {
	regs []registration
}

// NewMatcher builds an empty matcher.
func NewMatcher() *Matcher {
	return &Matcher{}
}

// Register adds or replaces a bot's signal set. Re-registering a bot
// keeps its original registration order (first-seen order wins), which
// matters for priority ties.
func (m *Matcher) Register(bot string, signals []config.Signal) {
	for i, r := range m.regs {
		if r.bot == bot {
			m.regs[i].signals = signals
			return
		}
	}
	m.regs = append(m.regs, registration{bot: bot, signals: signals, order: len(m.regs)})
}

// Unregister drops a bot (used when a custom bot is deleted).
func (m *Matcher) Unregister(bot string) {
	for i, r := range m.regs {
		if r.bot == bot {
			m.regs = append(m.regs[:i], m.regs[i+1:]...)
			return
		}
	}
}

// Match returns every bot whose intent matched e, first-match-wins per
// bot (a bot's first matching signal in its registered order short-
// circuits the rest of its own signals), sorted high-priority first and
// by registration order within a priority tier.
func (m *Matcher) Match(e events.Event) []Match {
	if events.MetaEventTypes[e.Type] {
		return nil
	}

	var out []Match
	for _, r := range m.regs {
		for _, sig := range r.signals {
			if !globMatch(sig.Pattern, e.Type) {
				continue
			}
			if !filterMatches(sig.Filter, e.Payload) {
				continue
			}
			out = append(out, Match{Bot: r.bot, Priority: sig.Priority, Pattern: sig.Pattern, order: r.order})
			break // first match wins per bot
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		pi, pj := priorityRank(out[i].Priority), priorityRank(out[j].Priority)
		if pi != pj {
			return pi < pj
		}
		return out[i].order < out[j].order
	})

	return out
}

func priorityRank(p config.Priority) int {
	switch p {
	case config.PriorityHigh:
		return 0
	case config.PriorityMedium:
		return 1
	default:
		return 2
	}
}

// globMatch applies shell-style glob matching (filepath.Match semantics,
// where '*' does not cross the absence of further literal segments, but
// the patterns used here are flat strings like "bot_completed:*" rather
// than path-segmented, so '*' simply matches any run of characters after
// the colon). filepath.Match treats '*' as "any sequence of non-Separator
// characters"; since these event types contain no '/', that is exactly
// "any sequence of characters", which is what "bot_completed:*" matching
// "bot_completed:job_scout" (but not bare "bot_completed") requires.
func globMatch(pattern, eventType string) bool {
	ok, err := filepath.Match(pattern, eventType)
	if err != nil {
		return pattern == eventType
	}
	return ok
}

// filterMatches evaluates a signal's declarative filter against an
// event's payload. An empty/nil filter always matches. "tags_any" checks
// for overlap between the filter's string list and a "tags" payload
// field; "gene_type" and any other key are exact-equality checks against
// the same-named payload field.
func filterMatches(filter map[string]any, payload map[string]any) bool {
	if len(filter) == 0 {
		return true
	}
	for key, want := range filter {
		switch key {
		case "tags_any":
			if !tagsOverlap(want, payload["tags"]) {
				return false
			}
		default:
			if !fieldEquals(want, payload[key]) {
				return false
			}
		}
	}
	return true
}

func tagsOverlap(want any, have any) bool {
	wantTags := toStringSlice(want)
	haveTags := toStringSlice(have)
	if len(wantTags) == 0 {
		return true
	}
	haveSet := make(map[string]bool, len(haveTags))
	for _, t := range haveTags {
		haveSet[strings.ToLower(t)] = true
	}
	for _, t := range wantTags {
		if haveSet[strings.ToLower(t)] {
			return true
		}
	}
	return false
}

func toStringSlice(v any) []string {
	switch vv := v.(type) {
	case []string:
		return vv
	case []any:
		out := make([]string, 0, len(vv))
		for _, e := range vv {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case string:
		return []string{vv}
	default:
		return nil
	}
}

func fieldEquals(want, have any) bool {
	if want == nil {
		return have == nil
	}
	ws, wIsStr := want.(string)
	hs, hIsStr := have.(string)
	if wIsStr && hIsStr {
		return ws == hs
	}
	return want == have
}
