package scope

import (
	"strings"

	"github.com/praxislabs/praxis/pkg/types"
)

// maxHeaderPhrases caps how many allowed phrases are listed in the prompt
// header. Enrollments with sprawling keyword lists would otherwise crowd out
// the actual instruction.
const maxHeaderPhrases = 40

// PromptHeader renders the advisory scope header prepended to the system
// prompt. It tells the model which courses the student is enrolled in and
// which topics are in scope, and asks it to redirect out-of-scope questions.
// The header is guidance for the model, not an enforcement mechanism; the
// matcher stages in [TopicResolver] do the actual gating.
func PromptHeader(scope types.Scope, topic string) string {
	var b strings.Builder

	b.WriteString("You are tutoring a student enrolled in: ")
	b.WriteString(strings.Join(scope.Courses, ", "))
	b.WriteString(".\n")

	if len(scope.Phrases) > 0 {
		phrases := scope.Phrases
		if len(phrases) > maxHeaderPhrases {
			phrases = phrases[:maxHeaderPhrases]
		}
		b.WriteString("Topics in scope: ")
		b.WriteString(strings.Join(phrases, ", "))
		b.WriteString(".\n")
	}

	if topic != "" {
		b.WriteString("The current question is about: ")
		b.WriteString(topic)
		b.WriteString(".\n")
	}

	b.WriteString("If the student asks about something outside these courses, briefly say it is outside their enrollment and steer them back to an in-scope topic.")
	return b.String()
}
