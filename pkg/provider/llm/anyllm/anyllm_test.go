package anyllm

import (
	"testing"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/praxislabs/praxis/pkg/provider/llm"
	"github.com/praxislabs/praxis/pkg/types"
)

// ── buildParams ───────────────────────────────────────────────────────────────

func TestBuildParams_SystemPromptLeads(t *testing.T) {
	p := &Provider{model: "gpt-4o-mini"}
	params := p.buildParams(llm.CompletionRequest{
		SystemPrompt: "You are a tutor.",
		History: []types.Turn{
			{Role: types.RoleUser, Text: "Explain standups."},
		},
	})

	if len(params.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(params.Messages))
	}
	if params.Messages[0].Role != anyllmlib.RoleSystem {
		t.Errorf("expected leading system message, got role %q", params.Messages[0].Role)
	}
	if params.Messages[0].Content != "You are a tutor." {
		t.Errorf("unexpected system content: %q", params.Messages[0].Content)
	}
	if params.Messages[1].Role != anyllmlib.RoleUser {
		t.Errorf("expected user message, got role %q", params.Messages[1].Role)
	}
	if params.Model != "gpt-4o-mini" {
		t.Errorf("expected model gpt-4o-mini, got %q", params.Model)
	}
}

func TestBuildParams_RoleMapping(t *testing.T) {
	p := &Provider{model: "m"}
	params := p.buildParams(llm.CompletionRequest{
		History: []types.Turn{
			{Role: types.RoleUser, Text: "a"},
			{Role: types.RoleAssistant, Text: "b"},
			{Role: types.RoleUser, Text: "c"},
		},
	})

	wantRoles := []string{anyllmlib.RoleUser, anyllmlib.RoleAssistant, anyllmlib.RoleUser}
	if len(params.Messages) != len(wantRoles) {
		t.Fatalf("expected %d messages, got %d", len(wantRoles), len(params.Messages))
	}
	for i, m := range params.Messages {
		if m.Role != wantRoles[i] {
			t.Errorf("message %d: expected role %q, got %q", i, wantRoles[i], m.Role)
		}
	}
}

func TestBuildParams_Knobs(t *testing.T) {
	p := &Provider{model: "m"}

	t.Run("zero values omitted", func(t *testing.T) {
		params := p.buildParams(llm.CompletionRequest{
			History: []types.Turn{{Role: types.RoleUser, Text: "x"}},
		})
		if params.Temperature != nil {
			t.Error("expected nil temperature for zero value")
		}
		if params.MaxTokens != nil {
			t.Error("expected nil max tokens for zero value")
		}
	})

	t.Run("non-zero values set", func(t *testing.T) {
		params := p.buildParams(llm.CompletionRequest{
			History:     []types.Turn{{Role: types.RoleUser, Text: "x"}},
			Temperature: 0.4,
			MaxTokens:   256,
		})
		if params.Temperature == nil || *params.Temperature != 0.4 {
			t.Errorf("expected temperature 0.4, got %v", params.Temperature)
		}
		if params.MaxTokens == nil || *params.MaxTokens != 256 {
			t.Errorf("expected max tokens 256, got %v", params.MaxTokens)
		}
	})
}

// ── New ───────────────────────────────────────────────────────────────────────

func TestNew_Validation(t *testing.T) {
	if _, err := New("", "gpt-4o-mini"); err == nil {
		t.Error("expected error for empty provider name")
	}
	if _, err := New("openai", ""); err == nil {
		t.Error("expected error for empty model")
	}
	if _, err := New("fancyvendor", "some-model"); err == nil {
		t.Error("expected error for unsupported provider name")
	}
}
