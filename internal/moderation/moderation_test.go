package moderation

import (
	"testing"

	"github.com/cravaudio/api/internal/model"
)

func TestCheckPrompt(t *testing.T) {
	tests := []struct {
		name     string
		prompt   string
		allowed  bool
		severity Severity
	}{
		{"clean prompt", "upbeat country track for a road trip", true, ""},
		{"blocked artist", "a song like Taylor Swift would write", false, SeverityHigh},
		{"blocked artist mixed case", "DRAKE type beat", false, SeverityHigh},
		{"style phrase", "something in the style of 80s synthpop", false, SeverityHigh},
		{"copy phrase", "copy this melody", false, SeverityHigh},
		{"hate speech", "terrorist anthem", false, SeverityHigh},
		{"empty", "", true, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := CheckPrompt(tt.prompt)
			if res.Allowed != tt.allowed {
				t.Errorf("Allowed: got %v, want %v (reason=%q)", res.Allowed, tt.allowed, res.Reason)
			}
			if !tt.allowed && res.Severity != tt.severity {
				t.Errorf("Severity: got %s, want %s", res.Severity, tt.severity)
			}
			if !tt.allowed && res.Reason == "" {
				t.Error("rejections must carry a reason")
			}
		})
	}
}

func TestCheckPromptOrdering(t *testing.T) {
	// Contains both an artist name and a style phrase; the artist check
	// runs first so its reason surfaces.
	res := CheckPrompt("in the style of eminem")
	if res.Allowed {
		t.Fatal("expected rejection")
	}
	if want := `Artist-style prompts are not allowed. Cannot reference "eminem".`; res.Reason != want {
		t.Errorf("Reason: got %q, want %q", res.Reason, want)
	}
}

func TestCheckLyrics(t *testing.T) {
	tests := []struct {
		name          string
		lyrics        string
		allowExplicit bool
		allowed       bool
		severity      Severity
	}{
		{"clean lyrics", "driving down the open road tonight", false, true, ""},
		{"profanity blocked", "damn this road is long", false, false, SeverityLow},
		{"profanity allowed when explicit", "damn this road is long", true, true, ""},
		{"hate speech always blocked", "terrorism forever", true, false, SeverityHigh},
		{"artist in lyrics", "singing along to adele", false, false, SeverityHigh},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := CheckLyrics(tt.lyrics, tt.allowExplicit)
			if res.Allowed != tt.allowed {
				t.Errorf("Allowed: got %v, want %v (reason=%q)", res.Allowed, tt.allowed, res.Reason)
			}
			if !tt.allowed && res.Severity != tt.severity {
				t.Errorf("Severity: got %s, want %s", res.Severity, tt.severity)
			}
		})
	}
}

func TestCheckBrief(t *testing.T) {
	clean := model.Brief{Genre: "Country", Mood: "upbeat", DurationSec: 30, Vocals: model.VocalsNone}
	if res := CheckBrief(clean, false); !res.Allowed {
		t.Errorf("clean brief rejected: %q", res.Reason)
	}

	badTitle := clean
	badTitle.Title = "Sounds Like Summer"
	if res := CheckBrief(badTitle, false); res.Allowed {
		t.Error("title with style phrase should be rejected")
	}

	badLyrics := clean
	badLyrics.Lyrics = "oh damn the rain"
	if res := CheckBrief(badLyrics, false); res.Allowed {
		t.Error("profane lyrics should be rejected")
	} else if res.Severity != SeverityLow {
		t.Errorf("profanity severity: got %s, want low", res.Severity)
	}

	badMood := clean
	badMood.Mood = "like bruno mars"
	if res := CheckBrief(badMood, false); res.Allowed {
		t.Error("mood referencing a blocked artist should be rejected")
	}
}
