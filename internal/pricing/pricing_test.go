package pricing

import (
	"errors"
	"testing"

	"github.com/cravaudio/api/internal/model"
)

func TestCalculateCredits(t *testing.T) {
	tests := []struct {
		name      string
		trackType model.TrackType
		duration  int
		wav       bool
		stems     bool
		want      int
	}{
		{"jingle 15s", model.TrackTypeJingle, 15, false, false, 1},
		{"jingle 30s", model.TrackTypeJingle, 30, false, false, 1},
		{"jingle 60s", model.TrackTypeJingle, 60, false, false, 2},
		{"jingle 180s", model.TrackTypeJingle, 180, false, false, 2},
		{"instrumental 15s", model.TrackTypeInstrumental, 15, false, false, 1},
		{"instrumental 30s", model.TrackTypeInstrumental, 30, false, false, 2},
		{"instrumental 180s", model.TrackTypeInstrumental, 180, false, false, 4},
		{"song 30s", model.TrackTypeSong, 30, false, false, 4},
		{"song 180s", model.TrackTypeSong, 180, false, false, 8},
		{"song 180s wav", model.TrackTypeSong, 180, true, false, 12},
		{"song 180s wav+stems", model.TrackTypeSong, 180, true, true, 18},
		{"jingle 30s wav+stems", model.TrackTypeJingle, 30, true, true, 4},
		// Non-canonical durations use the clamped linear multiplier.
		{"instrumental 90s", model.TrackTypeInstrumental, 90, false, false, 2},
		{"song 360s clamped at 2x", model.TrackTypeSong, 360, false, false, 16},
		{"song 600s still clamped", model.TrackTypeSong, 600, false, false, 16},
		{"jingle 5s floor", model.TrackTypeJingle, 5, false, false, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CalculateCredits(tt.trackType, tt.duration, tt.wav, tt.stems)
			if got != tt.want {
				t.Errorf("CalculateCredits(%s, %d, %v, %v) = %d, want %d",
					tt.trackType, tt.duration, tt.wav, tt.stems, got, tt.want)
			}
		})
	}
}

func TestCalculateCreditsProperties(t *testing.T) {
	for _, trackType := range model.ValidTrackTypes {
		prev := 0
		for d := 5; d <= 600; d++ {
			got := CalculateCredits(trackType, d, false, false)
			if got < 1 {
				t.Fatalf("CalculateCredits(%s, %d) = %d, below floor", trackType, d, got)
			}
			if got < prev {
				t.Fatalf("CalculateCredits(%s) not monotone: %d credits at %ds after %d", trackType, got, d, prev)
			}
			prev = got
		}
	}
}

func TestSelectProvider(t *testing.T) {
	tests := []struct {
		name      string
		trackType model.TrackType
		vocals    model.Vocals
		flags     Flags
		want      string
		wantErr   error
	}{
		{"instrumental default", model.TrackTypeInstrumental, model.VocalsNone, Flags{}, "loudly", nil},
		{"jingle default", model.TrackTypeJingle, model.VocalsNone, Flags{}, "beatoven", nil},
		{"song no vocals default", model.TrackTypeSong, model.VocalsNone, Flags{}, "loudly", nil},
		{"vocal song eleven enabled", model.TrackTypeSong, model.VocalsMale, Flags{ElevenEnabled: true}, "eleven", nil},
		{"vocal song eleven disabled", model.TrackTypeSong, model.VocalsMale, Flags{}, "", ErrVocalsUnavailable},
		{"duet eleven disabled", model.TrackTypeSong, model.VocalsDuet, Flags{}, "", ErrVocalsUnavailable},
		{"standalone instrumental", model.TrackTypeInstrumental, model.VocalsNone, Flags{StandaloneMode: true}, "musicgen", nil},
		{"standalone jingle", model.TrackTypeJingle, model.VocalsNone, Flags{StandaloneMode: true}, "musicgen", nil},
		{"standalone vocal song still eleven", model.TrackTypeSong, model.VocalsFemale, Flags{StandaloneMode: true, ElevenEnabled: true}, "eleven", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SelectProvider(tt.trackType, tt.vocals, tt.flags)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("provider = %q, want %q", got, tt.want)
			}
		})
	}
}

// Every (type, vocals) pair must either resolve to a known provider or
// fail with the configuration error; there is no silent fallback.
func TestSelectProviderTotal(t *testing.T) {
	known := map[string]bool{"loudly": true, "beatoven": true, "musicgen": true, "eleven": true}

	for _, trackType := range model.ValidTrackTypes {
		for _, vocals := range model.ValidVocals {
			for _, flags := range []Flags{{}, {StandaloneMode: true}, {ElevenEnabled: true}, {StandaloneMode: true, ElevenEnabled: true}} {
				name, err := SelectProvider(trackType, vocals, flags)
				if err != nil {
					if !errors.Is(err, ErrVocalsUnavailable) {
						t.Errorf("(%s, %s, %+v): unexpected error %v", trackType, vocals, flags, err)
					}
					continue
				}
				if !known[name] {
					t.Errorf("(%s, %s, %+v): unknown provider %q", trackType, vocals, flags, name)
				}
			}
		}
	}
}
