package scope

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	enrollmock "github.com/praxislabs/praxis/pkg/provider/enrollment/mock"
)

func TestResolveHarvestsCoursesAndPhrases(t *testing.T) {
	payload := json.RawMessage(`{
		"student": {"email": "kim@example.com"},
		"enrolledCourses": [
			{
				"courseName": "Agile Fundamentals",
				"modules": ["Sprint Planning", "Scrum Roles"],
				"keywords": ["iteration"]
			},
			{
				"course_name": "Data Analytics 101",
				"topics": ["SQL Basics"]
			}
		]
	}`)
	r := NewResolver(&enrollmock.Client{Payload: payload})

	scope, err := r.Resolve(context.Background(), "kim@example.com")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	wantCourses := []string{"Agile Fundamentals", "Data Analytics 101"}
	if len(scope.Courses) != len(wantCourses) {
		t.Fatalf("Courses = %v, want %v", scope.Courses, wantCourses)
	}
	for i := range wantCourses {
		if scope.Courses[i] != wantCourses[i] {
			t.Errorf("Courses[%d] = %q, want %q", i, scope.Courses[i], wantCourses[i])
		}
	}

	for _, phrase := range []string{
		"Sprint Planning", "Scrum Roles", "iteration", "SQL Basics",
		// Synonym expansion from the "agile" and "data analytics" families.
		"kanban", "daily standup", "data visualization",
	} {
		if !scope.Contains(phrase) {
			t.Errorf("Phrases missing %q; got %v", phrase, scope.Phrases)
		}
	}
}

func TestResolveDeduplicatesCaseInsensitively(t *testing.T) {
	payload := json.RawMessage(`{
		"courses": [
			{"courseName": "Cloud Computing", "topics": ["AWS", "aws", "Docker"]}
		]
	}`)
	r := NewResolver(&enrollmock.Client{Payload: payload})

	scope, err := r.Resolve(context.Background(), "kim@example.com")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	seen := 0
	for _, p := range scope.Phrases {
		if p == "AWS" || p == "aws" {
			seen++
		}
	}
	if seen != 1 {
		t.Errorf("duplicate aws phrases survived dedup: %v", scope.Phrases)
	}
	// First-seen casing wins.
	if !scope.Contains("AWS") {
		t.Errorf("Phrases missing AWS: %v", scope.Phrases)
	}
}

func TestResolveNoCoursesIsError(t *testing.T) {
	payload := json.RawMessage(`{"student": {"email": "kim@example.com"}, "courses": []}`)
	r := NewResolver(&enrollmock.Client{Payload: payload})

	_, err := r.Resolve(context.Background(), "kim@example.com")
	if !errors.Is(err, ErrNotEnrolled) {
		t.Fatalf("Resolve() error = %v, want ErrNotEnrolled", err)
	}
}

func TestResolveWrapsVendorError(t *testing.T) {
	boom := errors.New("vendor down")
	r := NewResolver(&enrollmock.Client{Err: boom})

	_, err := r.Resolve(context.Background(), "kim@example.com")
	if !errors.Is(err, boom) {
		t.Fatalf("Resolve() error = %v, want wrapped vendor error", err)
	}
}

func TestResolveMalformedPayload(t *testing.T) {
	r := NewResolver(&enrollmock.Client{Payload: json.RawMessage(`{"courses": [`)})

	if _, err := r.Resolve(context.Background(), "kim@example.com"); err == nil {
		t.Fatal("Resolve() error = nil, want parse error")
	}
}

func TestHarvestRecordNameFallbacks(t *testing.T) {
	for _, tc := range []struct {
		name string
		raw  string
		want string
	}{
		{"courseName preferred", `{"courses": [{"name": "B", "courseName": "A"}]}`, "A"},
		{"name fallback", `{"courses": [{"name": "B"}]}`, "B"},
		{"title fallback", `{"courses": [{"title": "C"}]}`, "C"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			root, err := Parse([]byte(tc.raw))
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			scope := Harvest(root)
			if len(scope.Courses) != 1 || scope.Courses[0] != tc.want {
				t.Errorf("Courses = %v, want [%s]", scope.Courses, tc.want)
			}
		})
	}
}
