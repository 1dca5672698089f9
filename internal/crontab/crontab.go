// Package crontab matches wall-clock time against a list of recurrence rules
// once per distinct second.
//
// Rules are normalized to canonical "sec min hour day month dow" form at
// construction. When a rule's day-of-month field is not "*", its
// day-of-week field is ignored for that rule.
package crontab

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/adhocore/gronx"
)

// field is one cron field: a wildcard or a set of literal values.
type field struct {
	any    bool
	values []int
}

func (f field) matches(v int) bool {
	if f.any {
		return true
	}
	for _, x := range f.values {
		if x == v {
			return true
		}
	}
	return false
}

// Rule is a parsed canonical cron rule.
type Rule struct {
	Source    string // as authored
	Canonical string
	fields    [6]field
}

// Matches reports whether the rule matches the canonical time tuple
// [sec, min, hour, day, month, dow].
func (r Rule) Matches(now [6]int) bool {
	for i, f := range r.fields {
		if i == fDow && !r.fields[fDay].any {
			continue
		}
		if !f.matches(now[i]) {
			return false
		}
	}
	return true
}

// ParseRule normalizes and parses one recurrence string.
func ParseRule(s string) (Rule, error) {
	canon, err := Normalize(s)
	if err != nil {
		return Rule{}, err
	}
	parts := strings.Fields(canon)
	if len(parts) != 6 {
		return Rule{}, &ConfigError{Input: s, Reason: fmt.Sprintf("want 6 fields, got %d", len(parts))}
	}
	r := Rule{Source: s, Canonical: canon}
	for i, p := range parts {
		if p == "*" {
			r.fields[i] = field{any: true}
			continue
		}
		for _, it := range strings.Split(p, ",") {
			n, err := strconv.Atoi(it)
			if err != nil {
				return Rule{}, &ConfigError{Input: s, Reason: "non-numeric field " + strconv.Quote(it), Err: err}
			}
			r.fields[i].values = append(r.fields[i].values, n)
		}
	}
	return r, nil
}

// TimeTuple returns [sec, min, hour, day, month, weekday] for t, with
// Sunday as 0.
func TimeTuple(t time.Time) [6]int {
	return [6]int{t.Second(), t.Minute(), t.Hour(), t.Day(), int(t.Month()), int(t.Weekday())}
}

// Crontab evaluates a fixed list of rules. It is owned by the render loop.
type Crontab struct {
	rules    []Rule
	now      func() time.Time
	lastSeen time.Time
}

// New parses every recurrence string. The first invalid one aborts
// construction with a *ConfigError.
func New(specs []string) (*Crontab, error) {
	c := &Crontab{now: time.Now}
	for _, s := range specs {
		r, err := ParseRule(s)
		if err != nil {
			return nil, err
		}
		c.rules = append(c.rules, r)
	}
	return c, nil
}

// SetClock swaps the time source. Used by tests.
func (c *Crontab) SetClock(now func() time.Time) { c.now = now }

// Rules returns the parsed rules in input order.
func (c *Crontab) Rules() []Rule { return c.rules }

// Check returns the indices of all rules matching the current second. A
// second call within the same wall-clock second returns nil.
func (c *Crontab) Check() []int { return c.CheckAt(c.now()) }

// CheckAt is Check for an explicit instant.
func (c *Crontab) CheckAt(t time.Time) []int {
	sec := t.Truncate(time.Second)
	if !c.lastSeen.IsZero() && sec.Equal(c.lastSeen) {
		return nil
	}
	c.lastSeen = sec

	tuple := TimeTuple(sec)
	var out []int
	for i, r := range c.rules {
		if r.Matches(tuple) {
			out = append(out, i)
		}
	}
	return out
}

// Next returns the next instant after from at which rule i fires.
func (c *Crontab) Next(i int, from time.Time) (time.Time, error) {
	if i < 0 || i >= len(c.rules) {
		return time.Time{}, fmt.Errorf("crontab: rule %d out of range", i)
	}
	return NextAfter(c.rules[i], from)
}

// NextAfter computes the next fire time of r after from. The day-of-week
// field is blanked when day-of-month is set so the result follows the same
// override as Matches.
func NextAfter(r Rule, from time.Time) (time.Time, error) {
	parts := strings.Fields(r.Canonical)
	if parts[fDay] != "*" {
		parts[fDow] = "*"
	}
	return gronx.NextTickAfter(strings.Join(parts, " "), from, false)
}
