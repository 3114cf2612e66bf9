package tempdomain

import (
	"regexp"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
)

type members map[string]struct{}

// DomainSet is a set of normalized domain names.
//
// Readers load the current member map through an atomic pointer and never
// block. Writers serialize on mu, copy the map, apply their change and
// publish the copy, so a reader sees either the whole old set or the whole
// new one.
type DomainSet struct {
	mu    sync.Mutex
	value atomic.Pointer[members]
}

// NewDomainSet returns a set seeded with the valid entries of domains.
func NewDomainSet(domains ...string) *DomainSet {
	s := &DomainSet{}
	empty := make(members)
	s.value.Store(&empty)
	s.Add(domains...)
	return s
}

func (s *DomainSet) load() members {
	return *s.value.Load()
}

// Contains reports whether domain is a member. Input that does not
// normalize to a valid domain is never a member.
func (s *DomainSet) Contains(domain string) bool {
	d, ok := Normalize(domain)
	if !ok {
		return false
	}
	_, found := s.load()[d]
	return found
}

// Add inserts the valid, not yet present entries of domains and returns how
// many were new.
func (s *DomainSet) Add(domains ...string) int {
	if len(domains) == 0 {
		return 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.load()
	var fresh []string
	seen := make(map[string]struct{})
	for _, raw := range domains {
		d, ok := Normalize(raw)
		if !ok {
			continue
		}
		if _, exists := cur[d]; exists {
			continue
		}
		if _, dup := seen[d]; dup {
			continue
		}
		seen[d] = struct{}{}
		fresh = append(fresh, d)
	}
	if len(fresh) == 0 {
		return 0
	}

	next := make(members, len(cur)+len(fresh))
	for d := range cur {
		next[d] = struct{}{}
	}
	for _, d := range fresh {
		next[d] = struct{}{}
	}
	s.value.Store(&next)
	return len(fresh)
}

// Remove deletes the given domains and returns how many were present.
func (s *DomainSet) Remove(domains ...string) int {
	if len(domains) == 0 {
		return 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.load()
	gone := make(map[string]struct{})
	for _, raw := range domains {
		d, ok := Normalize(raw)
		if !ok {
			continue
		}
		if _, exists := cur[d]; exists {
			gone[d] = struct{}{}
		}
	}
	if len(gone) == 0 {
		return 0
	}

	next := make(members, len(cur)-len(gone))
	for d := range cur {
		if _, drop := gone[d]; !drop {
			next[d] = struct{}{}
		}
	}
	s.value.Store(&next)
	return len(gone)
}

// Replace swaps the whole content for the valid entries of domains.
func (s *DomainSet) Replace(domains ...string) {
	next := make(members, len(domains))
	for _, raw := range domains {
		if d, ok := Normalize(raw); ok {
			next[d] = struct{}{}
		}
	}

	s.mu.Lock()
	s.value.Store(&next)
	s.mu.Unlock()
}

// All returns every member in lexicographic order.
func (s *DomainSet) All() []string {
	cur := s.load()
	out := make([]string, 0, len(cur))
	for d := range cur {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

// Search returns the sorted members containing substr, ignoring case.
func (s *DomainSet) Search(substr string) []string {
	needle := strings.ToLower(strings.TrimSpace(substr))
	return s.filter(func(d string) bool {
		return strings.Contains(d, needle)
	})
}

// Match returns the sorted members matched by re.
func (s *DomainSet) Match(re *regexp.Regexp) []string {
	return s.filter(re.MatchString)
}

func (s *DomainSet) filter(keep func(string) bool) []string {
	out := []string{}
	for d := range s.load() {
		if keep(d) {
			out = append(out, d)
		}
	}
	sort.Strings(out)
	return out
}

// Size returns the number of members.
func (s *DomainSet) Size() int {
	return len(s.load())
}
