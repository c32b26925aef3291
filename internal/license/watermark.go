package license

import "time"

// WatermarkConfig describes the audible watermark applied to previews.
type WatermarkConfig struct {
	Enabled     bool    `json:"enabled"`
	Text        string  `json:"text,omitempty"`
	IntervalSec int     `json:"intervalSec,omitempty"`
	Volume      float64 `json:"volume,omitempty"`
}

var DefaultWatermarkConfig = WatermarkConfig{
	Enabled:     true,
	Text:        "Preview",
	IntervalSec: 8,
	Volume:      0.3,
}

// WatermarkMetadata records whether and how a watermark was applied.
type WatermarkMetadata struct {
	Applied   bool             `json:"applied"`
	Method    string           `json:"method"` // audible, inaudible or none
	Timestamp time.Time        `json:"timestamp"`
	Config    *WatermarkConfig `json:"config,omitempty"`
}

// ShouldWatermark: previews are watermarked, paid full assets are not.
func ShouldWatermark(assetType string) bool {
	return assetType == "preview"
}

func GenerateWatermarkMetadata(assetType string) WatermarkMetadata {
	if !ShouldWatermark(assetType) {
		return WatermarkMetadata{
			Applied:   false,
			Method:    "none",
			Timestamp: time.Now().UTC(),
		}
	}

	cfg := DefaultWatermarkConfig
	return WatermarkMetadata{
		Applied:   true,
		Method:    "audible",
		Timestamp: time.Now().UTC(),
		Config:    &cfg,
	}
}
