package scope

import (
	"fmt"
	"strings"
	"testing"

	"github.com/praxislabs/praxis/pkg/types"
)

func TestPromptHeader(t *testing.T) {
	scope := types.Scope{
		Courses: []string{"Agile Fundamentals", "Data Analytics 101"},
		Phrases: []string{"scrum", "sql"},
	}

	header := PromptHeader(scope, "scrum")

	for _, want := range []string{
		"Agile Fundamentals, Data Analytics 101",
		"Topics in scope: scrum, sql.",
		"The current question is about: scrum.",
		"outside their enrollment",
	} {
		if !strings.Contains(header, want) {
			t.Errorf("header missing %q:\n%s", want, header)
		}
	}
}

func TestPromptHeaderNoTopic(t *testing.T) {
	scope := types.Scope{Courses: []string{"Agile Fundamentals"}}

	header := PromptHeader(scope, "")
	if strings.Contains(header, "current question") {
		t.Errorf("header should omit the topic line:\n%s", header)
	}
}

func TestPromptHeaderCapsPhraseList(t *testing.T) {
	scope := types.Scope{Courses: []string{"Big Course"}}
	for i := 0; i < maxHeaderPhrases+10; i++ {
		scope.Phrases = append(scope.Phrases, fmt.Sprintf("phrase-%d", i))
	}

	header := PromptHeader(scope, "")
	if strings.Contains(header, fmt.Sprintf("phrase-%d", maxHeaderPhrases)) {
		t.Errorf("header lists phrases beyond the cap:\n%s", header)
	}
	if !strings.Contains(header, fmt.Sprintf("phrase-%d", maxHeaderPhrases-1)) {
		t.Errorf("header missing last in-cap phrase:\n%s", header)
	}
}
