package routing

import (
	"fmt"
	"strings"
)

// Upstream is a named backend server that can receive forwarded requests.
type Upstream struct {
	ID      string
	Address string
}

// Rule maps a path prefix to one or more upstream IDs. Only the first ID is
// used for selection; the rest are preserved for future failover/weighting.
type Rule struct {
	PathPrefix  string
	UpstreamIDs []string
}

// Table is the validated, immutable view of upstreams and rules.
type Table struct {
	upstreams map[string]Upstream
	rules     []Rule
}

// NewTable builds a routing table from the configured upstreams and rules.
// Structural problems (empty IDs, duplicate upstreams, rules without
// upstream IDs) are rejected here. Referential integrity is checked
// separately by Validate so callers can surface dangling references as a
// startup error.
func NewTable(upstreams []Upstream, rules []Rule) (*Table, error) {
	byID := make(map[string]Upstream, len(upstreams))
	for _, u := range upstreams {
		if u.ID == "" {
			return nil, fmt.Errorf("upstream with empty id")
		}
		if _, exists := byID[u.ID]; exists {
			return nil, fmt.Errorf("duplicate upstream id %q", u.ID)
		}
		byID[u.ID] = u
	}

	copied := make([]Rule, len(rules))
	for i, r := range rules {
		if r.PathPrefix == "" {
			return nil, fmt.Errorf("rule %d: empty path prefix", i)
		}
		if len(r.UpstreamIDs) == 0 {
			return nil, fmt.Errorf("rule %d (%s): no upstream ids", i, r.PathPrefix)
		}
		copied[i] = Rule{
			PathPrefix:  r.PathPrefix,
			UpstreamIDs: append([]string(nil), r.UpstreamIDs...),
		}
	}

	return &Table{upstreams: byID, rules: copied}, nil
}

// Validate checks that every rule references a defined upstream. A dangling
// reference is a configuration error and should abort startup before the
// listener binds; workers still guard against it defensively at request time.
func (t *Table) Validate() error {
	for i, r := range t.rules {
		for _, id := range r.UpstreamIDs {
			if _, exists := t.upstreams[id]; !exists {
				return fmt.Errorf("rule %d (%s): unknown upstream id %q", i, r.PathPrefix, id)
			}
		}
	}
	return nil
}

// Match walks the rules in declaration order and returns the first rule
// whose prefix matches path. An empty path is treated as "/", so a rule
// with prefix "/" matches everything; it must be declared last to act as
// a catch-all.
func (t *Table) Match(path string) (Rule, bool) {
	if path == "" {
		path = "/"
	}
	for _, r := range t.rules {
		if strings.HasPrefix(path, r.PathPrefix) {
			return r, true
		}
	}
	return Rule{}, false
}

// Resolve combines Match and Lookup: it returns the upstream selected by the
// first matching rule. The second return value is false when no rule matches
// or the matched rule references an unknown upstream.
func (t *Table) Resolve(path string) (Upstream, bool) {
	r, ok := t.Match(path)
	if !ok {
		return Upstream{}, false
	}
	return t.Lookup(r.UpstreamIDs[0])
}

// Lookup returns the upstream registered under id.
func (t *Table) Lookup(id string) (Upstream, bool) {
	u, ok := t.upstreams[id]
	return u, ok
}

// Upstreams returns a copy of the registered upstreams.
func (t *Table) Upstreams() []Upstream {
	out := make([]Upstream, 0, len(t.upstreams))
	for _, u := range t.upstreams {
		out = append(out, u)
	}
	return out
}

// Rules returns a copy of the rules in declaration order.
func (t *Table) Rules() []Rule {
	out := make([]Rule, len(t.rules))
	copy(out, t.rules)
	return out
}
