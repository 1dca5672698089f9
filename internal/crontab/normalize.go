package crontab

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/robfig/cron/v3"
)

// ConfigError reports a recurrence string that cannot be turned into a
// canonical rule. It is fatal at startup.
type ConfigError struct {
	Input  string
	Reason string
	Err    error
}

func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("crontab: %q: %s: %v", e.Input, e.Reason, e.Err)
	}
	return fmt.Sprintf("crontab: %q: %s", e.Input, e.Reason)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// canonicalParser validates the 6-field output. Its matching semantics are
// not used; only range and syntax checks.
var canonicalParser = cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

var dayNames = []struct {
	name string
	num  string
}{
	// Longest first so "monday" is consumed before "mon".
	{"sunday", "0"}, {"monday", "1"}, {"tuesday", "2"}, {"wednesday", "3"},
	{"thursday", "4"}, {"friday", "5"}, {"saturday", "6"},
	{"sun", "0"}, {"mon", "1"}, {"tue", "2"}, {"wed", "3"},
	{"thu", "4"}, {"fri", "5"}, {"sat", "6"},
}

const (
	fSec = iota
	fMin
	fHour
	fDay
	fMonth
	fDow
)

// Normalize converts a human-authored recurrence string into canonical
// "sec min hour day month dow" form.
//
// Accepted tokens, space-joined in any order:
//   - day-of-week list: "mon,wed,fri"
//   - time of day: "H:M" or "H:M:S" (seconds default to 0)
//   - date: "Y-M-D", "M/D" or "M/D/Y" (the year is not part of a cron rule)
//
// A string made only of cron fields ("0 0 17 * * *", or 5 fields with the
// seconds omitted) is passed through. Unset fields are "*"; a rule with a
// date or weekday but no time fires at 00:00:00.
func Normalize(s string) (string, error) {
	raw := strings.TrimSpace(s)
	if raw == "" {
		return "", &ConfigError{Input: s, Reason: "empty recurrence"}
	}
	tokens := strings.Fields(strings.ToLower(raw))

	if canon, ok := passthrough(tokens); ok {
		return validate(s, canon)
	}

	f := [6]string{"*", "*", "*", "*", "*", "*"}
	var sawTime, sawDate, sawDow bool
	for _, tok := range tokens {
		var err error
		switch {
		case strings.Contains(tok, ":"):
			if sawTime {
				return "", &ConfigError{Input: s, Reason: "more than one time of day"}
			}
			sawTime = true
			f[fHour], f[fMin], f[fSec], err = parseTime(tok)
		case strings.Contains(tok, "-"):
			if sawDate {
				return "", &ConfigError{Input: s, Reason: "more than one date"}
			}
			sawDate = true
			f[fMonth], f[fDay], err = parseDate(tok, "-", true)
		case strings.Contains(tok, "/"):
			if sawDate {
				return "", &ConfigError{Input: s, Reason: "more than one date"}
			}
			sawDate = true
			f[fMonth], f[fDay], err = parseDate(tok, "/", false)
		case hasLetter(tok):
			if sawDow {
				return "", &ConfigError{Input: s, Reason: "more than one weekday list"}
			}
			sawDow = true
			f[fDow] = replaceDayNames(tok)
		default:
			err = fmt.Errorf("unrecognized token %q", tok)
		}
		if err != nil {
			return "", &ConfigError{Input: s, Reason: "invalid shorthand", Err: err}
		}
	}
	if !sawTime && (sawDate || sawDow) {
		f[fSec], f[fMin], f[fHour] = "0", "0", "0"
	}

	canon := strings.Join(f[:], " ")
	if hasLetter(canon) {
		return "", &ConfigError{Input: s, Reason: "residual alphabetic characters in " + strconv.Quote(canon)}
	}
	return validate(s, canon)
}

func validate(input, canon string) (string, error) {
	if _, err := canonicalParser.Parse(canon); err != nil {
		return "", &ConfigError{Input: input, Reason: "invalid canonical rule " + strconv.Quote(canon), Err: err}
	}
	return canon, nil
}

// passthrough accepts strings that are already cron fields made of digits,
// commas and "*". Five fields get a leading wildcard seconds field.
func passthrough(tokens []string) (string, bool) {
	if len(tokens) != 5 && len(tokens) != 6 {
		return "", false
	}
	for _, t := range tokens {
		if strings.Trim(t, "0123456789,*") != "" {
			return "", false
		}
	}
	if len(tokens) == 5 {
		tokens = append([]string{"*"}, tokens...)
	}
	parts := make([]string, len(tokens))
	for i, t := range tokens {
		p, err := canonicalList(t)
		if err != nil {
			return "", false
		}
		parts[i] = p
	}
	return strings.Join(parts, " "), true
}

func parseTime(tok string) (h, m, sec string, err error) {
	parts := strings.Split(tok, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return "", "", "", fmt.Errorf("time %q: want H:M or H:M:S", tok)
	}
	sec = "0"
	if len(parts) == 3 {
		if sec, err = canonicalList(parts[2]); err != nil {
			return "", "", "", err
		}
	}
	if h, err = canonicalList(parts[0]); err != nil {
		return "", "", "", err
	}
	if m, err = canonicalList(parts[1]); err != nil {
		return "", "", "", err
	}
	return h, m, sec, nil
}

// parseDate handles Y-M-D (yearFirst) and M/D[/Y].
func parseDate(tok, sep string, yearFirst bool) (month, day string, err error) {
	parts := strings.Split(tok, sep)
	switch {
	case yearFirst && len(parts) == 3:
		parts = parts[1:]
	case !yearFirst && (len(parts) == 2 || len(parts) == 3):
		parts = parts[:2]
	default:
		return "", "", fmt.Errorf("date %q: unsupported layout", tok)
	}
	if month, err = canonicalList(parts[0]); err != nil {
		return "", "", err
	}
	if day, err = canonicalList(parts[1]); err != nil {
		return "", "", err
	}
	return month, day, nil
}

// canonicalList rewrites "07,30" to "7,30"; "*" stays. Letters are left in
// place so the residual check can report them.
func canonicalList(s string) (string, error) {
	if s == "" {
		return "", fmt.Errorf("empty field")
	}
	if s == "*" {
		return s, nil
	}
	items := strings.Split(s, ",")
	for i, it := range items {
		if hasLetter(it) {
			continue
		}
		n, err := strconv.Atoi(it)
		if err != nil || n < 0 {
			return "", fmt.Errorf("field %q: not a number", it)
		}
		items[i] = strconv.Itoa(n)
	}
	return strings.Join(items, ","), nil
}

func replaceDayNames(tok string) string {
	items := strings.Split(tok, ",")
	for i, it := range items {
		for _, d := range dayNames {
			if it == d.name {
				items[i] = d.num
				break
			}
		}
	}
	return strings.Join(items, ",")
}

func hasLetter(s string) bool {
	return strings.IndexFunc(s, unicode.IsLetter) >= 0
}
