package nickname

import (
	"math/rand/v2"
	"strconv"
	"unicode/utf8"
)

// Suffix ranges. A suffix is drawn from [SuffixMin, SuffixMax) first, then
// from the wider [WideSuffixMin, WideSuffixMax) once draws keep colliding.
// Both ranges keep a StemLength stem within MaxLength.
const (
	SuffixMin     = 101
	SuffixMax     = 999
	WideSuffixMin = 1000
	WideSuffixMax = 10000

	// DefaultMaxDraws bounds the random draws made in each range.
	DefaultMaxDraws = 32
)

// RandomSource supplies the random disambiguation suffix. *rand.Rand from
// math/rand/v2 satisfies it.
type RandomSource interface {
	// IntN returns a value in [0, n).
	IntN(n int) int
}

type globalSource struct{}

func (globalSource) IntN(n int) int { return rand.IntN(n) }

// Result describes the outcome of sanitizing one nickname.
type Result struct {
	Original    string
	Suggested   string
	WasModified bool
}

// Sanitizer suggests replacement nicknames.
type Sanitizer struct {
	rnd      RandomSource
	maxDraws int
}

// Option configures a Sanitizer.
type Option func(*Sanitizer)

// WithRandomSource sets the suffix source. Tests use it to make suffixes
// predictable.
func WithRandomSource(src RandomSource) Option {
	return func(s *Sanitizer) {
		if src != nil {
			s.rnd = src
		}
	}
}

// WithMaxDraws sets how many random suffixes are tried per range before the
// next fallback applies.
func WithMaxDraws(n int) Option {
	return func(s *Sanitizer) {
		if n > 0 {
			s.maxDraws = n
		}
	}
}

// NewSanitizer returns a Sanitizer drawing suffixes from math/rand/v2 unless
// configured otherwise.
func NewSanitizer(opts ...Option) *Sanitizer {
	s := &Sanitizer{
		rnd:      globalSource{},
		maxDraws: DefaultMaxDraws,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sanitize normalizes original and, when normalization changed it, appends a
// numeric suffix that is not yet taken in reg. An empty original is treated as
// modified so that no blank nickname is ever suggested. The suggestion is
// recorded in reg either way. Sanitize never fails.
func (s *Sanitizer) Sanitize(original string, reg *Registry) Result {
	stem := Normalize(original)
	if stem == original && original != "" {
		reg.Add(original)
		return Result{Original: original, Suggested: original}
	}

	suggested := s.disambiguate(stem, reg)
	reg.Add(suggested)
	return Result{Original: original, Suggested: suggested, WasModified: true}
}

func (s *Sanitizer) disambiguate(stem string, reg *Registry) string {
	for i := 0; i < s.maxDraws; i++ {
		if c := withSuffix(stem, SuffixMin+s.rnd.IntN(SuffixMax-SuffixMin)); !reg.Contains(c) {
			return c
		}
	}
	for i := 0; i < s.maxDraws; i++ {
		if c := withSuffix(stem, WideSuffixMin+s.rnd.IntN(WideSuffixMax-WideSuffixMin)); !reg.Contains(c) {
			return c
		}
	}
	for n := SuffixMin; n < WideSuffixMax; n++ {
		if c := withSuffix(stem, n); !reg.Contains(c) {
			return c
		}
	}

	// Every four-digit suffix is taken for this stem. Shorten the stem so
	// longer suffixes still fit in MaxLength.
	for n := WideSuffixMax; ; n++ {
		c := withSuffix(stem, n)
		if over := utf8.RuneCountInString(c) - MaxLength; over > 0 {
			c = withSuffix(truncate(stem, utf8.RuneCountInString(stem)-over), n)
		}
		if !reg.Contains(c) {
			return c
		}
	}
}

func withSuffix(stem string, n int) string {
	return stem + strconv.Itoa(n)
}
