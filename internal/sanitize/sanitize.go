// Package sanitize holds the regex heuristics used across Praxis: stripping
// markdown and URLs from assistant replies before speech synthesis, and
// detecting reply-format wishes and negations in student messages.
//
// Each regex family is a named matcher function with its own tests. These are
// deliberately imprecise pattern matchers, not parsers — they trade recall for
// simplicity and their misses are harmless (worst case, the TTS voice reads a
// stray asterisk or a format wish goes unnoticed).
package sanitize

import (
	"regexp"
	"strings"
)

// ── Speech sanitization ───────────────────────────────────────────────────────

var (
	reCodeFence    = regexp.MustCompile("(?s)```.*?```")
	reInlineCode   = regexp.MustCompile("`([^`]*)`")
	reMarkdownLink = regexp.MustCompile(`\[([^\]]*)\]\([^)]*\)`)
	reEmphasis     = regexp.MustCompile(`(\*\*|__|\*|_)([^*_]+)(\*\*|__|\*|_)`)
	reHeading      = regexp.MustCompile(`(?m)^#{1,6}\s+`)
	reBullet       = regexp.MustCompile(`(?m)^\s*[-*+]\s+`)
	reURL          = regexp.MustCompile(`https?://\S+|www\.\S+`)
	reWhitespace   = regexp.MustCompile(`\s+`)
)

// StripMarkdown removes markdown syntax from text, keeping the readable
// content: code fences are dropped entirely, inline code and emphasis keep
// their inner text, links keep their label, headings and bullets lose their
// markers.
func StripMarkdown(text string) string {
	text = reCodeFence.ReplaceAllString(text, " ")
	text = reInlineCode.ReplaceAllString(text, "$1")
	text = reMarkdownLink.ReplaceAllString(text, "$1")
	text = reEmphasis.ReplaceAllString(text, "$2")
	text = reHeading.ReplaceAllString(text, "")
	text = reBullet.ReplaceAllString(text, "")
	return text
}

// StripURLs removes bare http(s) and www URLs from text.
func StripURLs(text string) string {
	return reURL.ReplaceAllString(text, "")
}

// CollapseWhitespace folds runs of whitespace (including newlines) into a
// single space and trims the ends.
func CollapseWhitespace(text string) string {
	return strings.TrimSpace(reWhitespace.ReplaceAllString(text, " "))
}

// ForSpeech prepares an assistant reply for text-to-speech: markdown syntax
// and URLs are stripped and whitespace collapsed. The written transcript keeps
// the original text; only the audio path uses this.
func ForSpeech(text string) string {
	return CollapseWhitespace(StripURLs(StripMarkdown(text)))
}

// ── Format preference detection ───────────────────────────────────────────────

// Format is a detected reply-format wish.
type Format string

const (
	// FormatBullets means the student asked for a list or bullet points.
	FormatBullets Format = "bullets"

	// FormatShort means the student asked for a brief answer.
	FormatShort Format = "short"

	// FormatDetailed means the student asked for depth or step-by-step detail.
	FormatDetailed Format = "detailed"

	// FormatNone means no format wish was detected.
	FormatNone Format = ""
)

var (
	reBullets  = regexp.MustCompile(`(?i)\b(bullet points?|as a list|list (them|it|the)|point[- ]wise)\b`)
	reShort    = regexp.MustCompile(`(?i)\b(briefly|in short|short answer|one[- ]liner|quick(ly)? (answer|summary)|summari[sz]e)\b`)
	reDetailed = regexp.MustCompile(`(?i)\b(in detail|detailed|step[- ]by[- ]step|elaborate|thorough(ly)?|deep dive)\b`)
)

// DetectFormat returns the reply-format wish expressed in a student message.
// Bullets beats short beats detailed when several patterns match; messages
// asking for "a short list" are lists first.
func DetectFormat(text string) Format {
	switch {
	case reBullets.MatchString(text):
		return FormatBullets
	case reShort.MatchString(text):
		return FormatShort
	case reDetailed.MatchString(text):
		return FormatDetailed
	default:
		return FormatNone
	}
}

// ── Negation detection ────────────────────────────────────────────────────────

var reNegationLead = regexp.MustCompile(`(?i)\b(not|no longer|stop|don't|do not|never mind|forget)( (talking |asking )?about)?\s+$`)

// IsNegated reports whether the occurrence of phrase starting at index idx in
// text is preceded by a negation ("not about X", "forget X", "stop talking
// about X"). Topic resolution uses this to skip phrases the student is
// steering away from.
func IsNegated(text string, idx int) bool {
	if idx <= 0 || idx > len(text) {
		return false
	}
	prefix := text[:idx]
	// Only the tail of the prefix matters; cap the window to keep the regex cheap.
	const window = 32
	if len(prefix) > window {
		prefix = prefix[len(prefix)-window:]
	}
	return reNegationLead.MatchString(prefix)
}
