// Package match evaluates include/exclude name filters that decide which
// subtrees a keep-alive region may cache.
package match

import (
	"regexp"
	"strings"
)

// Pattern reports whether a subtree name belongs to a set of names.
//
// Implementations must be stateless: the same Pattern value is evaluated
// repeatedly across render passes and must not carry a match cursor or any
// other mutable position between calls.
type Pattern interface {
	Match(name string) bool
}

// Exact matches a single literal name.
type Exact string

func (p Exact) Match(name string) bool {
	return string(p) == name
}

// List matches any name in a comma-delimited list.
// Whitespace around each element is ignored.
type List string

func (p List) Match(name string) bool {
	for _, part := range strings.Split(string(p), ",") {
		if strings.TrimSpace(part) == name {
			return true
		}
	}
	return false
}

// Set matches any name in an explicit set of literal names.
type Set []string

func (p Set) Match(name string) bool {
	for _, candidate := range p {
		if candidate == name {
			return true
		}
	}
	return false
}

// Regexp matches names against a compiled regular expression.
// *regexp.Regexp is safe to reuse across calls; it keeps no match state.
type Regexp struct {
	Expr *regexp.Regexp
}

func (p Regexp) Match(name string) bool {
	return p.Expr != nil && p.Expr.MatchString(name)
}

// Compile builds a Regexp pattern from an expression string.
func Compile(expr string) (Pattern, error) {
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, err
	}
	return Regexp{Expr: re}, nil
}

// Filter combines an optional allow-list with an optional deny-list.
// The zero Filter caches everything.
type Filter struct {
	// Include restricts caching to matching names. Nil means no
	// restriction.
	Include Pattern
	// Exclude forces matching names out of the cache regardless of
	// Include. Nil means nothing is excluded.
	Exclude Pattern
}

// Cacheable reports whether a subtree with the given name may occupy a cache
// slot under f.
//
// An empty name marks an anonymous subtree. Anonymous subtrees are cacheable
// by default but never when an Include pattern is set, and Exclude is not
// consulted for them. A panicking Pattern implementation is treated as not
// cacheable; never caching is always safe, wrongly caching is not.
func (f Filter) Cacheable(name string) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	if f.Include != nil && (name == "" || !f.Include.Match(name)) {
		return false
	}
	if f.Exclude != nil && name != "" && f.Exclude.Match(name) {
		return false
	}
	return true
}
