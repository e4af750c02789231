// Package checker holds the request matching interface shared by the policy
// and rate limit packages.
package checker

import (
	"net/http"
	"strings"

	"github.com/MelihcanSimsek/CaptchaGenerator/internal"
)

// Impl matches requests. Hash identifies the rule in logs.
type Impl interface {
	Check(*http.Request) (bool, error)
	Hash() string
}

// List matches when any of its checkers match.
type List []Impl

// First returns the first checker in l that matches r. It returns nil when
// nothing matches. Evaluation stops at the first error.
func (l List) First(r *http.Request) (Impl, error) {
	for _, c := range l {
		ok, err := c.Check(r)
		if err != nil {
			return nil, err
		}
		if ok {
			return c, nil
		}
	}

	return nil, nil
}

func (l List) Check(r *http.Request) (bool, error) {
	c, err := l.First(r)
	return c != nil, err
}

// Hash combines the hashes of every member, so reordering rules changes it.
func (l List) Hash() string {
	hashes := make([]string, 0, len(l))
	for _, c := range l {
		hashes = append(hashes, c.Hash())
	}

	return internal.FastHash(strings.Join(hashes, "\n"))
}
