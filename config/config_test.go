package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flight-scraper/services"
)

func TestParseDestinations(t *testing.T) {
	got, err := ParseDestinations("Budapest=BUD, Praga=prg ,Viena=VIE")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"Budapest": "BUD", "Praga": "PRG", "Viena": "VIE"}, got)

	_, err = ParseDestinations("Budapest")
	assert.Error(t, err)
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DESTINATIONS", "Budapest=BUD")
	t.Setenv("START_DATE", "2026-03-29")
	t.Setenv("END_DATE", "2026-03-31")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "MAD", cfg.Origin)
	assert.Equal(t, 5, cfg.MinFlightsPerDay)
	assert.Equal(t, 8, cfg.ScrollRetries)
	assert.Equal(t, 12*time.Second, cfg.CaptureWindow)
	assert.Equal(t, services.PolicyStrict, cfg.TreeFieldPolicy)
	assert.Equal(t, services.PolicyLenient, cfg.DOMFieldPolicy)
	assert.Equal(t, 3, cfg.Days())
}

func TestLoadRejectsInvertedRange(t *testing.T) {
	t.Setenv("START_DATE", "2026-04-05")
	t.Setenv("END_DATE", "2026-03-29")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadRejectsBadPolicy(t *testing.T) {
	t.Setenv("DOM_FIELD_POLICY", "sometimes")

	_, err := Load()
	assert.Error(t, err)
}

func TestDestinationsFileOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dests.yaml")
	require.NoError(t, os.WriteFile(path, []byte("origin: bcn\ndestinations:\n  Lisboa: lis\n  Roma: FCO\n"), 0o644))
	t.Setenv("DESTINATIONS_FILE", path)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "BCN", cfg.Origin)
	assert.Equal(t, map[string]string{"Lisboa": "LIS", "Roma": "FCO"}, cfg.Destinations)
}

func TestQueryKeysCartesianProduct(t *testing.T) {
	cfg := &Config{
		Destinations: map[string]string{"Viena": "VIE", "Budapest": "BUD"},
		StartDate:    time.Date(2026, 3, 29, 0, 0, 0, 0, time.UTC),
		EndDate:      time.Date(2026, 3, 30, 0, 0, 0, 0, time.UTC),
	}

	keys := cfg.QueryKeys()
	require.Len(t, keys, 4)

	var got []string
	for _, k := range keys {
		got = append(got, k.Day()+"/"+k.DestinationCode)
	}
	assert.Equal(t, []string{"2026-03-29/BUD", "2026-03-29/VIE", "2026-03-30/BUD", "2026-03-30/VIE"}, got)
}

func TestSetDates(t *testing.T) {
	t.Setenv("START_DATE", "2026-03-29")
	t.Setenv("END_DATE", "2026-03-29")
	cfg, err := Load()
	require.NoError(t, err)

	require.NoError(t, cfg.SetDates("", "2026-04-02"))
	assert.Equal(t, 5, cfg.Days())
	assert.Error(t, cfg.SetDates("2026-05-01", ""))
}
