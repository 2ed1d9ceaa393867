package flights

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"flight-scraper/models"
	"flight-scraper/services"
	"flight-scraper/utils"
)

// fakeExchange is a response the fake session makes available.
type fakeExchange struct {
	url  string
	body string
}

// fakeSession replays scripted network rounds: round 0 becomes visible on
// Navigate and each ScrollToBottom releases the next round.
type fakeSession struct {
	mu sync.Mutex

	rounds  [][]fakeExchange
	html    []string
	round   int
	pending []Exchange
	bodies  map[string][]byte

	navErrs     []error
	navigations int
	navTimes    []time.Time
	scrolls     int
	scrolledTo  []int
	closed      bool
}

func newFakeSession(rounds ...[]fakeExchange) *fakeSession {
	return &fakeSession{rounds: rounds, bodies: make(map[string][]byte)}
}

func (f *fakeSession) release(round int) {
	if round >= len(f.rounds) {
		return
	}
	for i, ex := range f.rounds[round] {
		id := fmt.Sprintf("r%d-%d", round, i)
		f.bodies[id] = []byte(ex.body)
		f.pending = append(f.pending, Exchange{RequestID: id, Method: "GET", URL: ex.url, MIMEType: "application/json", Status: 200})
	}
}

func (f *fakeSession) Navigate(_ context.Context, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.navigations++
	f.navTimes = append(f.navTimes, time.Now())
	if len(f.navErrs) > 0 {
		err := f.navErrs[0]
		f.navErrs = f.navErrs[1:]
		if err != nil {
			return err
		}
	}
	f.round = 0
	f.release(0)
	return nil
}

func (f *fakeSession) DismissConsent(context.Context) error { return errNoConsentButton }

func (f *fakeSession) HTML(context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.html) == 0 {
		return "<html><body><p>42 results</p></body></html>", nil
	}
	return f.html[min(f.round, len(f.html)-1)], nil
}

func (f *fakeSession) ScrollIntoView(_ context.Context, _ string, index int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scrolledTo = append(f.scrolledTo, index)
	return nil
}

func (f *fakeSession) ScrollToBottom(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scrolls++
	f.round++
	f.release(f.round)
	return nil
}

func (f *fakeSession) DrainExchanges() []Exchange {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := f.pending
	f.pending = nil
	return out
}

func (f *fakeSession) ResponseBody(_ context.Context, id string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bodies[id]
	if !ok {
		return nil, errors.New("no resource with given identifier found")
	}
	return b, nil
}

func (f *fakeSession) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

const pollURL = "https://www.kayak.es/i/api/search/dynamic/flights/poll"

// flightsPayload renders a search response holding flights with the given prices.
func flightsPayload(prices ...int) fakeExchange {
	items := make([]string, len(prices))
	for i, p := range prices {
		items[i] = fmt.Sprintf(`{"resultId":"f%d","price":%d,"durationMinutes":%d,"stops":%d}`, p, p, 100+p%60, p%2)
	}
	return fakeExchange{url: pollURL, body: `{"status":"complete","results":[` + strings.Join(items, ",") + `]}`}
}

var testKey = models.QueryKey{
	Date:            time.Date(2026, 3, 29, 0, 0, 0, 0, time.UTC),
	Destination:     "Budapest",
	DestinationCode: "BUD",
}

func testLoopOptions(quota, attempts int) LoopOptions {
	return LoopOptions{
		BaseURL:       "https://www.kayak.es/flights",
		Origin:        "MAD",
		Quota:         quota,
		MaxAttempts:   attempts,
		SignalTimeout: 100 * time.Millisecond,
		SignalPoll:    5 * time.Millisecond,
	}
}

func newTestLoop(quota, attempts int) *Loop {
	logger := utils.Discard()
	return NewLoop(
		testLoopOptions(quota, attempts),
		NewCollector(CaptureOptions{Window: 20 * time.Millisecond, PollInterval: 5 * time.Millisecond}, logger),
		NewTreeExtractor(DefaultProbes(), services.PolicyStrict),
		NewDOMExtractor(DefaultDOMHints(), services.PolicyLenient, logger),
		logger,
	)
}
