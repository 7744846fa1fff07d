package scope

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/praxislabs/praxis/pkg/provider/enrollment"
	"github.com/praxislabs/praxis/pkg/types"
)

// ErrNotEnrolled is returned when the enrollment payload contains no active
// courses. An empty course list is always an error, never an empty scope.
var ErrNotEnrolled = errors.New("scope: no active enrollment")

// courseKeys are the normalised member keys whose string values count as
// course names.
var courseKeys = map[string]struct{}{
	"coursename":  {},
	"coursetitle": {},
}

// containerKeys are the normalised member keys whose array elements are
// course records; each record's first name-like member becomes a course name.
var containerKeys = map[string]struct{}{
	"courses":         {},
	"enrolledcourses": {},
	"enrollments":     {},
}

// nameKeys are the name-like member keys tried, in order, on a course record.
var nameKeys = []string{"coursename", "name", "title"}

// phraseKeys are the normalised member keys whose string values (or arrays of
// strings) are harvested into the allowed phrase bag.
var phraseKeys = map[string]struct{}{
	"coursename":  {},
	"coursetitle": {},
	"name":        {},
	"title":       {},
	"topic":       {},
	"topics":      {},
	"module":      {},
	"modules":     {},
	"subject":     {},
	"keyword":     {},
	"keywords":    {},
	"synonym":     {},
	"synonyms":    {},
	"sandbox":     {},
	"extratopics": {},
}

// Resolver builds a student's Scope from the enrollment vendor. It is
// stateless and safe for concurrent use.
type Resolver struct {
	client enrollment.Client
}

// NewResolver creates a Resolver backed by the given enrollment client.
func NewResolver(client enrollment.Client) *Resolver {
	return &Resolver{client: client}
}

// Resolve fetches and harvests the student's scope. Returns ErrNotEnrolled
// when the payload yields zero course names; vendor failures are wrapped and
// returned as-is.
func (r *Resolver) Resolve(ctx context.Context, email string) (types.Scope, error) {
	raw, err := r.client.Enrollments(ctx, email)
	if err != nil {
		return types.Scope{}, fmt.Errorf("scope: fetch enrollment for %q: %w", email, err)
	}

	root, err := Parse(raw)
	if err != nil {
		return types.Scope{}, err
	}

	scope := Harvest(root)
	if len(scope.Courses) == 0 {
		return types.Scope{}, fmt.Errorf("%w: %s", ErrNotEnrolled, email)
	}

	slog.Debug("scope resolved",
		"email", email,
		"courses", len(scope.Courses),
		"phrases", len(scope.Phrases),
	)
	return scope, nil
}

// Harvest walks a parsed enrollment document and builds the Scope: course
// names from course-record containers and course-name keys, allowed phrases
// from the phrase-key allowlist, plus domain synonym expansion. Both lists are
// deduplicated case-insensitively, preserving first-seen casing and order.
func Harvest(root Value) types.Scope {
	courses := newPhraseSet()
	phrases := newPhraseSet()

	Walk(root, func(key string, v Value) {
		if _, ok := courseKeys[key]; ok && v.Kind == KindString {
			courses.add(v.Str)
		}
		if _, ok := containerKeys[key]; ok && v.Kind == KindArray {
			for _, record := range v.Arr {
				if name, ok := recordName(record); ok {
					courses.add(name)
				}
			}
		}
		if _, ok := phraseKeys[key]; ok {
			for _, s := range collectStrings(v) {
				phrases.add(s)
			}
		}
	})

	// Course names are always allowed phrases, whatever key they came from.
	for _, c := range courses.items {
		phrases.add(c)
	}

	// Synonym expansion runs over the harvested phrases, not the raw document.
	for _, p := range phrases.snapshot() {
		for _, syn := range expandSynonyms(p) {
			phrases.add(syn)
		}
	}

	return types.Scope{Courses: courses.items, Phrases: phrases.items}
}

// recordName extracts the course name from one course record object.
func recordName(record Value) (string, bool) {
	if record.Kind != KindObject {
		return "", false
	}
	for _, key := range nameKeys {
		if v, ok := record.Lookup(key); ok && v.Kind == KindString {
			if s := strings.TrimSpace(v.Str); s != "" {
				return s, true
			}
		}
	}
	return "", false
}

// phraseSet is an order-preserving case-insensitive string set.
type phraseSet struct {
	seen  map[string]struct{}
	items []string
}

func newPhraseSet() *phraseSet {
	return &phraseSet{seen: make(map[string]struct{})}
}

func (s *phraseSet) add(item string) {
	item = strings.TrimSpace(item)
	if item == "" {
		return
	}
	key := strings.ToLower(item)
	if _, dup := s.seen[key]; dup {
		return
	}
	s.seen[key] = struct{}{}
	s.items = append(s.items, item)
}

// snapshot returns a copy of the current items, safe to range over while
// adding more.
func (s *phraseSet) snapshot() []string {
	out := make([]string, len(s.items))
	copy(out, s.items)
	return out
}
