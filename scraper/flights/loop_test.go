package flights

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flight-scraper/models"
	"flight-scraper/services"
	"flight-scraper/utils"
)

func TestBuildURL(t *testing.T) {
	got := BuildURL("https://www.kayak.es/flights/", "MAD", "PRG", time.Date(2026, 4, 5, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, "https://www.kayak.es/flights/MAD-PRG/2026-04-05", got)
}

func TestLoopSatisfiedAfterScrolls(t *testing.T) {
	// Cumulative yields of 2, 4 and 6 distinct records against a quota of 5.
	s := newFakeSession(
		[]fakeExchange{flightsPayload(100, 110)},
		[]fakeExchange{flightsPayload(120, 130)},
		[]fakeExchange{flightsPayload(140, 150)},
	)

	res, err := newTestLoop(5, 3).Run(context.Background(), s, testKey)
	require.NoError(t, err)

	assert.Equal(t, StateDone, res.State)
	assert.Equal(t, 3, res.Attempts)
	require.Len(t, res.Records, 5)
	for i, r := range res.Records {
		assert.Equal(t, float64(100+10*i), r.Price)
		assert.Equal(t, "2026-03-29", r.Date)
		assert.Equal(t, "Budapest", r.Destination)
	}
	assert.Equal(t, 2, s.scrolls)
}

func TestLoopStopsEarlyOnceQuotaMet(t *testing.T) {
	s := newFakeSession(
		[]fakeExchange{flightsPayload(100, 110, 120, 130, 140, 150, 160)},
		[]fakeExchange{flightsPayload(170)},
	)

	res, err := newTestLoop(5, 8).Run(context.Background(), s, testKey)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Attempts)
	assert.Len(t, res.Records, 5)
	assert.Zero(t, s.scrolls)
}

func TestLoopShortCount(t *testing.T) {
	s := newFakeSession([]fakeExchange{flightsPayload(100, 110)})

	res, err := newTestLoop(5, 3).Run(context.Background(), s, testKey)
	require.Error(t, err)

	var insufficient *ExtractionInsufficient
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, 2, insufficient.Got)
	assert.Equal(t, 5, insufficient.Want)
	assert.Equal(t, 3, insufficient.Attempts)
	assert.Equal(t, 1, insufficient.PayloadCount)
	assert.Equal(t, []string{pollURL}, insufficient.PayloadURLs)
	assert.Equal(t, 2, insufficient.SkipReasons["capture: no usable payload"])
	assert.Equal(t, "https://www.kayak.es/flights/MAD-BUD/2026-03-29", insufficient.URL)

	assert.Equal(t, StateFailed, res.State)
	assert.Len(t, res.Records, 2)
	assert.False(t, errors.Is(err, ErrSession))
}

func TestLoopDuplicatesAcrossAttemptsCountOnce(t *testing.T) {
	// The same response replayed after every scroll never grows the set.
	s := newFakeSession(
		[]fakeExchange{flightsPayload(100, 110, 120)},
		[]fakeExchange{flightsPayload(100, 110, 120)},
		[]fakeExchange{flightsPayload(100, 110, 120)},
	)

	_, err := newTestLoop(5, 3).Run(context.Background(), s, testKey)
	var insufficient *ExtractionInsufficient
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, 3, insufficient.Got)
}

func TestLoopFallsBackToDOM(t *testing.T) {
	s := newFakeSession()
	s.html = []string{`<html><body><main>
		<div class="resultInner"><span class="price-text">89 €</span><span class="duration">2h 35m</span><span class="stops">Directo</span></div>
		<div class="resultInner"><span class="price-text">1.234 €</span><span class="duration">5h 10m</span><span class="stops">1 escala</span></div>
		<div class="resultInner"><span class="price-text">150 €</span><span class="stops">2 escalas</span></div>
	</main></body></html>`}

	res, err := newTestLoop(3, 2).Run(context.Background(), s, testKey)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Attempts)
	assert.Equal(t, []models.FlightRecord{
		{Date: "2026-03-29", Destination: "Budapest", Price: 89, DurationMinutes: 155, Stops: 0},
		{Date: "2026-03-29", Destination: "Budapest", Price: 1234, DurationMinutes: 310, Stops: 1},
		{Date: "2026-03-29", Destination: "Budapest", Price: 150, DurationMinutes: 120, Stops: 2},
	}, res.Records)
	assert.Equal(t, []int{0, 1, 2}, s.scrolledTo)
}

func TestLoopNavigationFailureIsSessionError(t *testing.T) {
	s := newFakeSession()
	s.navErrs = []error{errors.New("net::ERR_CONNECTION_RESET")}

	_, err := newTestLoop(5, 3).Run(context.Background(), s, testKey)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSession)

	var se *SessionError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "navigate", se.Op)
}

func TestLoopCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := newFakeSession([]fakeExchange{flightsPayload(100)})
	_, err := newTestLoop(5, 3).Run(ctx, s, testKey)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "SATISFIED", StateSatisfied.String())
	assert.Equal(t, "SCROLL_RETRY", StateScrollRetry.String())
	assert.Equal(t, "State(42)", State(42).String())
}

func TestLoopLogsSatisfiedTransition(t *testing.T) {
	var buf bytes.Buffer
	logger := utils.NewLoggerTo(&buf, &buf, true)
	loop := NewLoop(
		testLoopOptions(2, 3),
		NewCollector(CaptureOptions{Window: 20 * time.Millisecond, PollInterval: 5 * time.Millisecond}, logger),
		NewTreeExtractor(DefaultProbes(), services.PolicyStrict),
		NewDOMExtractor(DefaultDOMHints(), services.PolicyLenient, logger),
		logger,
	)
	s := newFakeSession([]fakeExchange{flightsPayload(100, 110, 120)})

	res, err := loop.Run(context.Background(), s, testKey)
	require.NoError(t, err)
	assert.Equal(t, StateDone, res.State)
	assert.Contains(t, buf.String(), "SATISFIED with 3 records at attempt 1, keeping first 2")
}
