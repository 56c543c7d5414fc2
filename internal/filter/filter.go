// Package filter selects which bookings count against a room.
package filter

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/cpuguy83/roombar/internal/calendar"
	"github.com/cpuguy83/roombar/internal/config"
)

// MatchType specifies how a filter rule matches.
type MatchType int

const (
	MatchContains MatchType = iota
	MatchExact
	MatchPrefix
	MatchSuffix
	MatchRegex
)

// Filter keeps or drops events according to a set of rules.
type Filter struct {
	all     bool // every rule must match
	exclude bool
	rules   []rule
}

type rule struct {
	field           string
	matchType       MatchType
	pattern         string
	regex           *regexp.Regexp
	caseInsensitive bool
}

// New compiles a filter from configuration.
func New(cfg config.FilterConfig) (*Filter, error) {
	f := &Filter{exclude: cfg.Exclude}

	switch cfg.Mode {
	case "", "or":
	case "and":
		f.all = true
	default:
		return nil, fmt.Errorf("unknown filter mode %q", cfg.Mode)
	}

	for i, r := range cfg.Rules {
		compiled, err := compileRule(r)
		if err != nil {
			return nil, fmt.Errorf("rule %d: %w", i, err)
		}
		f.rules = append(f.rules, compiled)
	}
	return f, nil
}

func compileRule(r config.FilterRule) (rule, error) {
	if !knownField(r.Field) {
		return rule{}, fmt.Errorf("unknown field %q", r.Field)
	}
	compiled := rule{
		field:           r.Field,
		caseInsensitive: r.CaseInsensitive,
	}

	if r.Regex != "" {
		pattern := r.Regex
		if r.CaseInsensitive {
			pattern = "(?i)" + pattern
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return compiled, fmt.Errorf("invalid regex %q: %w", r.Regex, err)
		}
		compiled.matchType = MatchRegex
		compiled.regex = re
		return compiled, nil
	}

	switch {
	case r.Exact != "":
		compiled.matchType, compiled.pattern = MatchExact, r.Exact
	case r.Prefix != "":
		compiled.matchType, compiled.pattern = MatchPrefix, r.Prefix
	case r.Suffix != "":
		compiled.matchType, compiled.pattern = MatchSuffix, r.Suffix
	case r.Contains != "":
		compiled.matchType, compiled.pattern = MatchContains, r.Contains
	default:
		return compiled, fmt.Errorf("no match pattern specified (use contains, exact, prefix, suffix, or regex)")
	}
	if r.CaseInsensitive {
		compiled.pattern = strings.ToLower(compiled.pattern)
	}
	return compiled, nil
}

func knownField(field string) bool {
	switch field {
	case "summary", "title", "room", "room_id", "organizer", "location":
		return true
	}
	return false
}

// Apply returns the events the filter keeps. A filter without rules keeps
// everything.
func (f *Filter) Apply(events []calendar.Event) []calendar.Event {
	if f == nil || len(f.rules) == 0 {
		return events
	}

	var kept []calendar.Event
	for _, e := range events {
		if f.matches(e) != f.exclude {
			kept = append(kept, e)
		}
	}
	return kept
}

func (f *Filter) matches(e calendar.Event) bool {
	for _, r := range f.rules {
		m := r.matches(e)
		if f.all && !m {
			return false
		}
		if !f.all && m {
			return true
		}
	}
	return f.all
}

func (r *rule) matches(e calendar.Event) bool {
	value := r.fieldValue(e)
	if r.matchType == MatchRegex {
		return r.regex.MatchString(value)
	}
	if r.caseInsensitive {
		value = strings.ToLower(value)
	}

	switch r.matchType {
	case MatchExact:
		return value == r.pattern
	case MatchPrefix:
		return strings.HasPrefix(value, r.pattern)
	case MatchSuffix:
		return strings.HasSuffix(value, r.pattern)
	default:
		return strings.Contains(value, r.pattern)
	}
}

func (r *rule) fieldValue(e calendar.Event) string {
	switch r.field {
	case "summary", "title":
		return e.Summary
	case "room":
		return e.Feed.Title
	case "room_id":
		return e.Feed.ID
	case "organizer":
		return e.Organizer
	case "location":
		return e.Location
	}
	return ""
}
