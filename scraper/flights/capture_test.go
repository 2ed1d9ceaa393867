package flights

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flight-scraper/utils"
)

func TestDecodePayload(t *testing.T) {
	tests := []struct {
		name string
		body string
		ok   bool
	}{
		{"object", `{"results":[]}`, true},
		{"array", `[{"price":1}]`, true},
		{"xssi prefix", ")]}'\n{\"a\":1}", true},
		{"bom", "\xef\xbb\xbf{\"a\":1}", true},
		{"scalar", `42`, false},
		{"string", `"hello"`, false},
		{"html", `<html><body>nope</body></html>`, false},
		{"truncated", `{"results":[{"price":`, false},
		{"empty", ``, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, ok := DecodePayload("https://x/poll", []byte(tt.body))
			if ok != tt.ok {
				t.Fatalf("DecodePayload(%q) ok = %v, want %v", tt.body, ok, tt.ok)
			}
			if ok && p.SourceURL != "https://x/poll" {
				t.Errorf("SourceURL = %q", p.SourceURL)
			}
		})
	}
}

func TestRelevant(t *testing.T) {
	c := NewCollector(CaptureOptions{}, utils.Discard())

	assert.True(t, c.Relevant("https://www.kayak.es/i/api/search/dynamic/flights/poll"))
	assert.True(t, c.Relevant("https://example.com/HORIZON/api"))
	assert.False(t, c.Relevant("https://www.kayak.es/static/app.css"))
	assert.False(t, c.Relevant("https://tracker.example.com/collect"))
}

func TestCollect(t *testing.T) {
	s := newFakeSession([]fakeExchange{
		flightsPayload(100),
		flightsPayload(100), // identical body under another request id
		{url: pollURL, body: "<html></html>"},
		{url: "https://cdn.example.com/fonts.json", body: `{"font":"x"}`},
		flightsPayload(200),
	})
	require.NoError(t, s.Navigate(context.Background(), ""))

	c := NewCollector(CaptureOptions{Window: 20 * time.Millisecond, PollInterval: 5 * time.Millisecond}, utils.Discard())
	payloads, err := c.Collect(context.Background(), s)
	require.NoError(t, err)
	require.Len(t, payloads, 2)
	assert.Equal(t, float64(100), payloads[0].Body.Get("results.0.price").Float())
	assert.Equal(t, float64(200), payloads[1].Body.Get("results.0.price").Float())
}

func TestCollectTimeout(t *testing.T) {
	s := newFakeSession()
	c := NewCollector(CaptureOptions{Window: 10 * time.Millisecond, PollInterval: 2 * time.Millisecond}, utils.Discard())

	start := time.Now()
	payloads, err := c.Collect(context.Background(), s)
	assert.ErrorIs(t, err, ErrCaptureTimeout)
	assert.Empty(t, payloads)
	assert.GreaterOrEqual(t, time.Since(start), 10*time.Millisecond)
}

func TestCollectLateArrival(t *testing.T) {
	// Exchanges completing mid-window are still captured.
	s := newFakeSession(nil, []fakeExchange{flightsPayload(300)})
	c := NewCollector(CaptureOptions{Window: 50 * time.Millisecond, PollInterval: 5 * time.Millisecond}, utils.Discard())

	go func() {
		time.Sleep(10 * time.Millisecond)
		_ = s.ScrollToBottom(context.Background())
	}()

	payloads, err := c.Collect(context.Background(), s)
	require.NoError(t, err)
	require.Len(t, payloads, 1)
}
