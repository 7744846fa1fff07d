package scope

import (
	"context"
	"log/slog"
	"regexp"
	"strings"

	"github.com/antzucaro/matchr"

	"github.com/praxislabs/praxis/internal/sanitize"
	"github.com/praxislabs/praxis/pkg/provider/llm"
	"github.com/praxislabs/praxis/pkg/types"
)

// Default fuzzy matcher tuning. The threshold and bonus are inherited
// behaviour, not derived from a documented requirement; they are exposed as
// config knobs rather than hard-coded deeper down.
const (
	DefaultFuzzyThreshold     = 0.35
	DefaultStrongKeywordBonus = 0.15
)

// Method records which stage of the precedence list produced a resolution.
// The ordering is deliberate: exact phrase evidence beats fuzzy similarity,
// which beats stateful carryover, which beats a vendor-assisted guess.
type Method string

const (
	// MethodExplicit means the student named the topic directly (quoted, or
	// "about X") and it matched an allowed phrase.
	MethodExplicit Method = "explicit"

	// MethodSubstring means an allowed phrase appeared verbatim in the message.
	MethodSubstring Method = "substring"

	// MethodFuzzy means token-overlap scoring against allowed phrases cleared
	// the acceptance threshold.
	MethodFuzzy Method = "fuzzy"

	// MethodCarryover means the last-resolved topic from session state was kept.
	MethodCarryover Method = "carryover"

	// MethodModel means the LLM extracted a keyword as a last resort.
	MethodModel Method = "model"

	// MethodNone means no topic could be resolved.
	MethodNone Method = "none"
)

// Resolution is the outcome of per-turn topic resolution.
type Resolution struct {
	// Topic is the resolved allowed phrase, or "" when Method is MethodNone.
	Topic string

	// Method is the precedence stage that produced the topic.
	Method Method
}

// TopicConfig tunes the fuzzy matcher stage.
type TopicConfig struct {
	// FuzzyThreshold is the minimum acceptance score for a fuzzy match.
	// Defaults to DefaultFuzzyThreshold when zero or negative.
	FuzzyThreshold float64

	// StrongKeywordBonus is added to a phrase's score for each strong domain
	// keyword it shares with the message. Defaults to
	// DefaultStrongKeywordBonus when zero or negative.
	StrongKeywordBonus float64
}

// TopicResolver resolves the topic of a single student message against an
// allowed-phrase scope. Safe for concurrent use; the resolver holds no
// per-session state (the carryover topic is passed in by the caller).
type TopicResolver struct {
	threshold float64
	bonus     float64

	// extractor is the optional LLM used for last-resort keyword extraction.
	// Nil disables the model stage.
	extractor llm.Provider
}

// NewTopicResolver creates a TopicResolver. extractor may be nil to disable
// the model-assisted stage.
func NewTopicResolver(cfg TopicConfig, extractor llm.Provider) *TopicResolver {
	threshold := cfg.FuzzyThreshold
	if threshold <= 0 {
		threshold = DefaultFuzzyThreshold
	}
	bonus := cfg.StrongKeywordBonus
	if bonus <= 0 {
		bonus = DefaultStrongKeywordBonus
	}
	return &TopicResolver{
		threshold: threshold,
		bonus:     bonus,
		extractor: extractor,
	}
}

// explicitTopic patterns: a quoted phrase, or the tail of "about X".
var (
	reQuoted = regexp.MustCompile(`["“']([^"”']{2,60})["”']`)
	reAbout  = regexp.MustCompile(`(?i)\babout\s+(?:the\s+)?([^.?!,;]{2,60})`)
)

// Resolve runs the precedence list against message. lastTopic is the
// session's previously resolved topic ("" when none). Model-stage failures
// are logged and treated as no match; all earlier stages are pure.
func (tr *TopicResolver) Resolve(ctx context.Context, message string, scope types.Scope, lastTopic string) Resolution {
	// Stage 1: explicit naming ("tell me about X", quoted phrase).
	if candidate := extractExplicit(message); candidate != "" {
		if phrase, ok := matchPhrase(candidate, scope.Phrases); ok {
			return Resolution{Topic: phrase, Method: MethodExplicit}
		}
	}

	// Stage 2: longest verbatim phrase occurrence, skipping negated mentions.
	if phrase, ok := longestSubstring(message, scope.Phrases); ok {
		return Resolution{Topic: phrase, Method: MethodSubstring}
	}

	// Stage 3: fuzzy token-overlap scoring.
	if phrase, ok := tr.fuzzyMatch(message, scope.Phrases); ok {
		return Resolution{Topic: phrase, Method: MethodFuzzy}
	}

	// Stage 4: carryover from session state.
	if lastTopic != "" {
		return Resolution{Topic: lastTopic, Method: MethodCarryover}
	}

	// Stage 5: model-assisted single-keyword extraction.
	if tr.extractor != nil {
		if keyword := tr.extractKeyword(ctx, message); keyword != "" {
			return Resolution{Topic: keyword, Method: MethodModel}
		}
	}

	return Resolution{Method: MethodNone}
}

// extractExplicit pulls a directly named topic out of the message: first a
// quoted phrase, then the tail of an "about X" clause. A negated "about"
// clause ("stop talking about X") names what the student does not want.
func extractExplicit(message string) string {
	if m := reQuoted.FindStringSubmatch(message); m != nil {
		return strings.TrimSpace(m[1])
	}
	if loc := reAbout.FindStringSubmatchIndex(message); loc != nil {
		// Negation is judged at the captured topic so the leading
		// "stop talking about" itself lands inside the checked prefix.
		if !sanitize.IsNegated(message, loc[2]) {
			return strings.TrimSpace(message[loc[2]:loc[3]])
		}
	}
	return ""
}

// matchPhrase checks candidate against the allowed phrases: exact
// (case-insensitive) first, then containment in either direction.
func matchPhrase(candidate string, phrases []string) (string, bool) {
	lower := strings.ToLower(candidate)
	for _, p := range phrases {
		if strings.ToLower(p) == lower {
			return p, true
		}
	}
	for _, p := range phrases {
		pl := strings.ToLower(p)
		if strings.Contains(lower, pl) || strings.Contains(pl, lower) {
			return p, true
		}
	}
	return "", false
}

// longestSubstring returns the longest allowed phrase that occurs verbatim
// (case-insensitive) in the message and is not negated at its occurrence.
func longestSubstring(message string, phrases []string) (string, bool) {
	lowerMsg := strings.ToLower(message)
	best := ""
	for _, p := range phrases {
		pl := strings.ToLower(p)
		idx := strings.Index(lowerMsg, pl)
		if idx < 0 {
			continue
		}
		if sanitize.IsNegated(message, idx) {
			continue
		}
		if len(p) > len(best) {
			best = p
		}
	}
	return best, best != ""
}

// fuzzyMatch scores each allowed phrase against the message and returns the
// best phrase if it clears the acceptance threshold.
//
// A phrase's score is the fraction of its tokens that fuzzily match some
// message token, plus StrongKeywordBonus for each matched strong domain
// keyword. Raw similarity means are useless here: Jaro-Winkler between two
// unrelated English words routinely lands around 0.5, so matching is gated
// per token and the score measures overlap.
func (tr *TopicResolver) fuzzyMatch(message string, phrases []string) (string, bool) {
	msgTokens := tokens(message)
	if len(msgTokens) == 0 {
		return "", false
	}

	best := ""
	bestScore := 0.0
	for _, p := range phrases {
		score := tr.scorePhrase(msgTokens, p)
		if score > bestScore {
			best, bestScore = p, score
		}
	}
	if bestScore >= tr.threshold {
		return best, true
	}
	return "", false
}

// tokenSimilarityFloor is the Jaro-Winkler similarity at which two tokens
// count as the same word despite a typo.
const tokenSimilarityFloor = 0.84

func (tr *TopicResolver) scorePhrase(msgTokens []string, phrase string) float64 {
	phraseTokens := tokens(phrase)
	if len(phraseTokens) == 0 {
		return 0
	}

	matched := 0
	bonus := 0.0
	for _, pt := range phraseTokens {
		for _, mt := range msgTokens {
			if !tokensMatch(pt, mt) {
				continue
			}
			matched++
			if isStrongKeyword(pt) {
				bonus += tr.bonus
			}
			break
		}
	}
	return float64(matched)/float64(len(phraseTokens)) + bonus
}

// tokensMatch reports whether two tokens name the same word: exact, close by
// Jaro-Winkler (typos), or phonetically equal by Double Metaphone
// (mishearings from the speech recognizer).
func tokensMatch(a, b string) bool {
	if a == b {
		return true
	}
	if matchr.JaroWinkler(a, b, false) >= tokenSimilarityFloor {
		return true
	}
	ap, as := matchr.DoubleMetaphone(a)
	bp, bs := matchr.DoubleMetaphone(b)
	if ap != "" && ap == bp {
		return true
	}
	return as != "" && as == bs
}

// stopwords excluded from fuzzy tokenisation; they match everything and
// nothing.
var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "can": {}, "do": {}, "does": {},
	"for": {}, "how": {}, "i": {}, "in": {}, "is": {}, "it": {}, "me": {},
	"of": {}, "on": {}, "or": {}, "tell": {}, "the": {}, "to": {}, "what": {},
	"when": {}, "where": {}, "who": {}, "why": {}, "with": {}, "you": {},
}

var reTokenSplit = regexp.MustCompile(`[^a-z0-9]+`)

// tokens lowercases and splits text into alphanumeric tokens, dropping
// stopwords and single characters.
func tokens(text string) []string {
	parts := reTokenSplit.Split(strings.ToLower(text), -1)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if len(p) < 2 {
			continue
		}
		if _, stop := stopwords[p]; stop {
			continue
		}
		out = append(out, p)
	}
	return out
}

// keywordInstruction is the last-resort extraction prompt. The model sees
// only the single message, never conversation history.
const keywordInstruction = "Extract the single subject keyword or short phrase the student is asking about. Reply with only that keyword, no punctuation, no explanation."

// extractKeyword asks the LLM for a single keyword. Failures are logged and
// swallowed; the model stage is best-effort.
func (tr *TopicResolver) extractKeyword(ctx context.Context, message string) string {
	resp, err := tr.extractor.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: keywordInstruction,
		History:      []types.Turn{{Role: types.RoleUser, Text: message}},
		MaxTokens:    16,
	})
	if err != nil {
		slog.Warn("keyword extraction failed", "error", err)
		return ""
	}
	keyword := strings.ToLower(strings.TrimSpace(resp.Content))
	keyword = strings.Trim(keyword, `."'`+"`")
	// A rambling reply is a failed extraction, not a topic.
	if keyword == "" || len(strings.Fields(keyword)) > 4 {
		return ""
	}
	return keyword
}
