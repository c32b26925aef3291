// Package moderation gates text content before any paid work begins. All
// checks are pure string/regex matching with no I/O.
package moderation

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/cravaudio/api/internal/model"
)

type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Result reports the moderation verdict. Reason is human readable and
// safe to surface to the caller.
type Result struct {
	Allowed  bool     `json:"allowed"`
	Reason   string   `json:"reason,omitempty"`
	Severity Severity `json:"severity,omitempty"`
}

var blockedArtists = []string{
	"taylor swift",
	"beyonce",
	"drake",
	"ed sheeran",
	"ariana grande",
	"the weeknd",
	"billie eilish",
	"post malone",
	"justin bieber",
	"rihanna",
	"kanye west",
	"eminem",
	"adele",
	"lady gaga",
	"bruno mars",
}

var blockedPhrases = []string{
	"in the style of",
	"sounds like",
	"similar to",
	"copy",
	"clone",
	"imitate",
}

var hateSpeechPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(hate|kill|destroy)\s+(jews|muslims|christians|blacks|whites|asians)\b`),
	regexp.MustCompile(`(?i)\b(terrorist|terrorism)\b`),
	regexp.MustCompile(`(?i)\b(nazi|hitler|holocaust\s+denial)\b`),
}

var explicitContentPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(fuck|shit|bitch|ass|damn|hell)\b`),
}

func allowed() Result {
	return Result{Allowed: true}
}

// CheckPrompt runs the artist, style-imitation and hate-speech checks in
// order, short-circuiting on the first match.
func CheckPrompt(prompt string) Result {
	lower := strings.ToLower(prompt)

	for _, artist := range blockedArtists {
		if strings.Contains(lower, artist) {
			return Result{
				Allowed:  false,
				Reason:   fmt.Sprintf("Artist-style prompts are not allowed. Cannot reference %q.", artist),
				Severity: SeverityHigh,
			}
		}
	}

	for _, phrase := range blockedPhrases {
		if strings.Contains(lower, phrase) {
			return Result{
				Allowed:  false,
				Reason:   fmt.Sprintf("Style imitation phrases are not allowed: %q.", phrase),
				Severity: SeverityHigh,
			}
		}
	}

	for _, pattern := range hateSpeechPatterns {
		if pattern.MatchString(prompt) {
			return Result{
				Allowed:  false,
				Reason:   "Content contains prohibited hate speech or harmful language.",
				Severity: SeverityHigh,
			}
		}
	}

	return allowed()
}

// CheckLyrics runs the prompt checks plus, unless explicit content is
// allowed, a profanity screen.
func CheckLyrics(lyrics string, allowExplicit bool) Result {
	if res := CheckPrompt(lyrics); !res.Allowed {
		return res
	}

	if !allowExplicit {
		for _, pattern := range explicitContentPatterns {
			if pattern.MatchString(lyrics) {
				return Result{
					Allowed:  false,
					Reason:   "Lyrics contain explicit language. Please modify or enable explicit content.",
					Severity: SeverityLow,
				}
			}
		}
	}

	return allowed()
}

// CheckBrief moderates a brief: genre, mood and title are joined into one
// prompt; lyrics (if present) run through the full lyrics pass separately.
func CheckBrief(brief model.Brief, allowExplicit bool) Result {
	var parts []string
	for _, p := range []string{brief.Genre, brief.Mood, brief.Title} {
		if p != "" {
			parts = append(parts, p)
		}
	}

	if res := CheckPrompt(strings.Join(parts, " ")); !res.Allowed {
		return res
	}

	if brief.Lyrics != "" {
		if res := CheckLyrics(brief.Lyrics, allowExplicit); !res.Allowed {
			return res
		}
	}

	return allowed()
}
