package gemini

import (
	"testing"

	"google.golang.org/genai"

	"github.com/praxislabs/praxis/pkg/types"
)

func TestBuildContents(t *testing.T) {
	t.Run("maps roles", func(t *testing.T) {
		history := []types.Turn{
			{Role: types.RoleUser, Text: "what is a sprint?"},
			{Role: types.RoleAssistant, Text: "A sprint is a fixed iteration."},
			{Role: types.RoleUser, Text: "how long is one?"},
		}

		contents := buildContents(history)
		if len(contents) != 3 {
			t.Fatalf("expected 3 contents, got %d", len(contents))
		}
		wantRoles := []genai.Role{genai.RoleUser, genai.RoleModel, genai.RoleUser}
		for i, c := range contents {
			if genai.Role(c.Role) != wantRoles[i] {
				t.Errorf("content %d: expected role %q, got %q", i, wantRoles[i], c.Role)
			}
		}
	})

	t.Run("unknown role defaults to user", func(t *testing.T) {
		contents := buildContents([]types.Turn{{Role: "narrator", Text: "x"}})
		if len(contents) != 1 {
			t.Fatalf("expected 1 content, got %d", len(contents))
		}
		if genai.Role(contents[0].Role) != genai.RoleUser {
			t.Errorf("expected user role, got %q", contents[0].Role)
		}
	})

	t.Run("empty history", func(t *testing.T) {
		if got := buildContents(nil); len(got) != 0 {
			t.Errorf("expected no contents, got %d", len(got))
		}
	})
}

func TestNew_RequiresAPIKey(t *testing.T) {
	if _, err := New(t.Context(), ""); err == nil {
		t.Fatal("expected error for empty api key, got nil")
	}
}
