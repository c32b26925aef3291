// Package pricing maps a generation request to its credit cost and to the
// provider that will render it. Everything here is pure.
package pricing

import (
	"errors"
	"math"

	"github.com/cravaudio/api/internal/model"
)

// ErrVocalsUnavailable is returned when a vocal song is requested but the
// Eleven Music integration is not enabled. Callers must surface this as a
// configuration error, never fall back to an instrumental provider.
var ErrVocalsUnavailable = errors.New("vocal songs require the Eleven Music integration, which is not enabled")

// Config lists the per-type credit prices.
type Config struct {
	BaseCredits   int
	WavUpcharge   int
	StemsUpcharge int
}

var priceTable = map[model.TrackType]Config{
	model.TrackTypeSong:         {BaseCredits: 8, WavUpcharge: 4, StemsUpcharge: 6},
	model.TrackTypeInstrumental: {BaseCredits: 4, WavUpcharge: 2, StemsUpcharge: 4},
	model.TrackTypeJingle:       {BaseCredits: 2, WavUpcharge: 1, StemsUpcharge: 2},
}

// durationMultipliers covers the canonical durations offered in the
// builder; anything else is priced on a clamped linear scale.
var durationMultipliers = map[int]float64{
	15:  0.25,
	30:  0.5,
	60:  0.75,
	180: 1.0,
}

// Bundles is the purchasable credit catalog. Prices are in cents.
var Bundles = []model.CreditBundle{
	{Name: "Starter", Credits: 100, Price: 999},
	{Name: "Pro", Credits: 500, Price: 3999, Popular: true},
	{Name: "Team", Credits: 2000, Price: 12999},
}

// CalculateCredits returns the credit cost for a generation. The result is
// always at least 1.
func CalculateCredits(trackType model.TrackType, durationSec int, includeWav, includeStems bool) int {
	cfg := priceTable[trackType]

	multiplier, ok := durationMultipliers[durationSec]
	if !ok {
		multiplier = math.Max(0.25, math.Min(2.0, float64(durationSec)/180))
	}

	credits := int(math.Ceil(float64(cfg.BaseCredits) * multiplier))

	if includeWav {
		credits += cfg.WavUpcharge
	}
	if includeStems {
		credits += cfg.StemsUpcharge
	}

	if credits < 1 {
		credits = 1
	}
	return credits
}

// Flags carries the deployment toggles that influence provider selection.
type Flags struct {
	StandaloneMode bool
	ElevenEnabled  bool
}

// SelectProvider resolves the (type, vocals) combination to a provider
// name via a fixed decision table.
func SelectProvider(trackType model.TrackType, vocals model.Vocals, flags Flags) (string, error) {
	if trackType == model.TrackTypeSong && vocals != model.VocalsNone {
		if flags.ElevenEnabled {
			return "eleven", nil
		}
		return "", ErrVocalsUnavailable
	}

	if flags.StandaloneMode && vocals == model.VocalsNone {
		return "musicgen", nil
	}

	if trackType == model.TrackTypeJingle {
		return "beatoven", nil
	}

	return "loudly", nil
}
