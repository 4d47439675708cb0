package nickname

import (
	"golang.org/x/text/cases"
)

// Registry tracks the nicknames already assigned or suggested during one run.
// Lookups are case-insensitive. The blank nickname is always taken, since
// blank suggestions mark address-only report rows.
//
// A Registry is not safe for concurrent use.
type Registry struct {
	fold  cases.Caser
	taken map[string]struct{}
}

// NewRegistry returns a registry pre-seeded with the given nicknames.
func NewRegistry(existing ...string) *Registry {
	r := &Registry{
		fold:  cases.Fold(),
		taken: make(map[string]struct{}, len(existing)+1),
	}
	r.taken[""] = struct{}{}
	for _, s := range existing {
		r.Add(s)
	}
	return r
}

func (r *Registry) key(s string) string {
	return r.fold.String(s)
}

// Add marks s as taken.
func (r *Registry) Add(s string) {
	r.taken[r.key(s)] = struct{}{}
}

// Contains reports whether s, or a nickname differing from it only in case,
// is taken.
func (r *Registry) Contains(s string) bool {
	_, ok := r.taken[r.key(s)]
	return ok
}

// Len returns the number of taken nicknames, not counting the blank one.
func (r *Registry) Len() int {
	return len(r.taken) - 1
}
