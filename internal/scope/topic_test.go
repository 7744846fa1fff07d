package scope

import (
	"context"
	"testing"

	"github.com/praxislabs/praxis/pkg/provider/llm"
	llmmock "github.com/praxislabs/praxis/pkg/provider/llm/mock"
	"github.com/praxislabs/praxis/pkg/types"
)

func newTestResolver(extractor llm.Provider) *TopicResolver {
	return NewTopicResolver(TopicConfig{}, extractor)
}

func TestResolveExplicit(t *testing.T) {
	scope := types.Scope{Phrases: []string{"Sprint Planning", "Kanban Boards", "SQL Basics"}}
	tr := newTestResolver(nil)

	for _, tc := range []struct {
		name    string
		message string
		want    string
	}{
		{"quoted phrase", `Can you explain "Sprint Planning"?`, "Sprint Planning"},
		{"about clause", "tell me about kanban boards", "Kanban Boards"},
		{"about with article", "what about the sql basics?", "SQL Basics"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			got := tr.Resolve(context.Background(), tc.message, scope, "")
			if got.Method != MethodExplicit {
				t.Fatalf("Method = %v, want explicit", got.Method)
			}
			if got.Topic != tc.want {
				t.Errorf("Topic = %q, want %q", got.Topic, tc.want)
			}
		})
	}
}

func TestResolveSubstringPrefersLongest(t *testing.T) {
	scope := types.Scope{Phrases: []string{"sprint", "sprint planning"}}
	tr := newTestResolver(nil)

	got := tr.Resolve(context.Background(), "where does sprint planning fit in a project", scope, "")
	if got.Method != MethodSubstring {
		t.Fatalf("Method = %v, want substring", got.Method)
	}
	if got.Topic != "sprint planning" {
		t.Errorf("Topic = %q, want %q", got.Topic, "sprint planning")
	}
}

func TestResolveExactBeatsFuzzy(t *testing.T) {
	// "kanban" occurs verbatim; the resolver must report the exact stage, not
	// a fuzzy score against a longer phrase.
	scope := types.Scope{Phrases: []string{"kanban", "kanban boards"}}
	tr := newTestResolver(nil)

	got := tr.Resolve(context.Background(), "explain kanban basics", scope, "")
	if got.Method != MethodSubstring {
		t.Fatalf("Method = %v, want substring", got.Method)
	}
	if got.Topic != "kanban" {
		t.Errorf("Topic = %q, want %q", got.Topic, "kanban")
	}
}

func TestResolveSkipsNegatedMentions(t *testing.T) {
	scope := types.Scope{Phrases: []string{"kanban", "scrum"}}
	tr := newTestResolver(nil)

	t.Run("negated substring", func(t *testing.T) {
		got := tr.Resolve(context.Background(), "forget kanban, scrum instead", scope, "")
		if got.Topic != "scrum" || got.Method != MethodSubstring {
			t.Errorf("Resolve() = %+v, want substring scrum", got)
		}
	})

	t.Run("negated about clause", func(t *testing.T) {
		got := tr.Resolve(context.Background(), "stop talking about kanban. scrum now", scope, "")
		if got.Topic != "scrum" {
			t.Errorf("Topic = %q, want scrum", got.Topic)
		}
	})
}

func TestResolveFuzzyTypo(t *testing.T) {
	scope := types.Scope{Phrases: []string{"sprint planning"}}
	tr := newTestResolver(nil)

	got := tr.Resolve(context.Background(), "how do i run sprint planing", scope, "")
	if got.Method != MethodFuzzy {
		t.Fatalf("Method = %v, want fuzzy", got.Method)
	}
	if got.Topic != "sprint planning" {
		t.Errorf("Topic = %q, want %q", got.Topic, "sprint planning")
	}
}

func TestResolveFuzzyStrongKeywordBonus(t *testing.T) {
	scope := types.Scope{Phrases: []string{"scrum ceremonies"}}

	// Half the phrase tokens match, and "scrum" carries the keyword bonus, so
	// the default threshold accepts it.
	got := newTestResolver(nil).Resolve(context.Background(), "explain scrum please", scope, "")
	if got.Method != MethodFuzzy || got.Topic != "scrum ceremonies" {
		t.Errorf("Resolve() = %+v, want fuzzy scrum ceremonies", got)
	}

	// A stricter threshold rejects the same partial match.
	strict := NewTopicResolver(TopicConfig{FuzzyThreshold: 0.7}, nil)
	got = strict.Resolve(context.Background(), "explain scrum please", scope, "")
	if got.Method != MethodNone {
		t.Errorf("strict Resolve() = %+v, want none", got)
	}
}

func TestResolveCarryover(t *testing.T) {
	scope := types.Scope{Phrases: []string{"kanban"}}
	tr := newTestResolver(nil)

	got := tr.Resolve(context.Background(), "thanks, can you elaborate more", scope, "kanban")
	if got.Method != MethodCarryover {
		t.Fatalf("Method = %v, want carryover", got.Method)
	}
	if got.Topic != "kanban" {
		t.Errorf("Topic = %q, want kanban", got.Topic)
	}
}

func TestResolveModelExtraction(t *testing.T) {
	scope := types.Scope{Phrases: []string{"algebra"}}

	t.Run("keyword accepted", func(t *testing.T) {
		extractor := &llmmock.Provider{
			CompleteResponse: &llm.CompletionResponse{Content: " Calculus.\n"},
		}
		tr := newTestResolver(extractor)

		got := tr.Resolve(context.Background(), "what's a derivative", scope, "")
		if got.Method != MethodModel {
			t.Fatalf("Method = %v, want model", got.Method)
		}
		if got.Topic != "calculus" {
			t.Errorf("Topic = %q, want calculus", got.Topic)
		}

		calls := extractor.Calls()
		if len(calls) != 1 {
			t.Fatalf("extractor calls = %d, want 1", len(calls))
		}
		if calls[0].Req.History[0].Text != "what's a derivative" {
			t.Errorf("extractor saw %q", calls[0].Req.History[0].Text)
		}
	})

	t.Run("rambling reply rejected", func(t *testing.T) {
		extractor := &llmmock.Provider{
			CompleteResponse: &llm.CompletionResponse{
				Content: "I think the student is asking about calculus",
			},
		}
		tr := newTestResolver(extractor)

		got := tr.Resolve(context.Background(), "what's a derivative", scope, "")
		if got.Method != MethodNone {
			t.Errorf("Method = %v, want none", got.Method)
		}
	})

	t.Run("no extractor", func(t *testing.T) {
		got := newTestResolver(nil).Resolve(context.Background(), "what's a derivative", scope, "")
		if got.Method != MethodNone {
			t.Errorf("Method = %v, want none", got.Method)
		}
	})
}
