package internal

import (
	"fmt"
	"regexp"
)

// RegexSet is a small collection of compiled patterns matched with OR
// semantics, used by the CLI's --pattern flag: a name is selected if it
// matches any pattern in the set, or if the set is empty.
type RegexSet struct {
	res []*regexp.Regexp
}

// NewRegexSet compiles each pattern in exprs, returning an error naming the
// first one that fails to compile.
func NewRegexSet(exprs []string) (*RegexSet, error) {
	rs := &RegexSet{res: make([]*regexp.Regexp, 0, len(exprs))}
	for _, e := range exprs {
		re, err := regexp.Compile(e)
		if err != nil {
			return nil, fmt.Errorf("compile pattern %q: %w", e, err)
		}
		rs.res = append(rs.res, re)
	}
	return rs, nil
}

// MatchAny reports whether name matches any pattern in the set. An empty
// set matches everything.
func (rs *RegexSet) MatchAny(name string) bool {
	if len(rs.res) == 0 {
		return true
	}
	for _, re := range rs.res {
		if re.MatchString(name) {
			return true
		}
	}
	return false
}
