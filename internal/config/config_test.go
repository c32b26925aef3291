package config

import "testing"

// The default endpoints must match the adapter fallbacks, path included,
// or default deployments would call the APIs at the wrong prefix.
func TestDefaultProviderEndpoints(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	endpoints := []struct {
		name string
		got  string
		want string
	}{
		{"loudly", cfg.Providers.Loudly.BaseURL, "https://api.loudly.com/v1"},
		{"beatoven", cfg.Providers.Beatoven.BaseURL, "https://api.beatoven.ai"},
		{"musicgen", cfg.Providers.MusicGen.BaseURL, "http://localhost:8085/api"},
	}
	for _, e := range endpoints {
		if e.got != e.want {
			t.Errorf("%s base URL = %q, want %q", e.name, e.got, e.want)
		}
	}

	if cfg.Providers.PollInterval().Seconds() != 5 {
		t.Errorf("poll interval = %s, want 5s", cfg.Providers.PollInterval())
	}
}
