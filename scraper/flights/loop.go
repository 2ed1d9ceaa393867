package flights

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"flight-scraper/models"
	"flight-scraper/utils"
)

// State is a step of the convergence loop for one QueryKey.
type State int

const (
	StateNavigate State = iota
	StateWaitForSignal
	StateCapture
	StateScrollRetry
	StateSatisfied
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateNavigate:
		return "NAVIGATE"
	case StateWaitForSignal:
		return "WAIT_FOR_SIGNAL"
	case StateCapture:
		return "CAPTURE"
	case StateScrollRetry:
		return "SCROLL_RETRY"
	case StateSatisfied:
		return "SATISFIED"
	case StateDone:
		return "DONE"
	case StateFailed:
		return "FAILED"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Signal is one "results are probably present" condition checked against a
// DOM snapshot. Exactly one of Selector or Text is set.
type Signal struct {
	Name     string
	Selector string
	Text     string
}

// Match reports whether the signal holds for doc.
func (sig Signal) Match(doc *goquery.Document) bool {
	if sig.Selector != "" {
		return doc.Find(sig.Selector).Length() > 0
	}
	return sig.Text != "" && strings.Contains(doc.Find("body").Text(), sig.Text)
}

// DefaultSignals are tried in order; the first that holds ends the wait.
var DefaultSignals = []Signal{
	{Name: "result cards", Selector: "div[class*='result']"},
	{Name: "results text", Text: "resultados"},
	{Name: "results text", Text: "Resultados"},
	{Name: "results text", Text: "results"},
	{Name: "currency", Text: "€"},
}

// LoopOptions configures a Loop.
type LoopOptions struct {
	BaseURL       string
	Origin        string
	Quota         int
	MaxAttempts   int
	SignalTimeout time.Duration
	SignalPoll    time.Duration
	SettleDelay   time.Duration
	Signals       []Signal
}

// Result is the outcome of running the loop for one QueryKey.
type Result struct {
	Key      models.QueryKey
	URL      string
	State    State
	Attempts int
	Records  []models.FlightRecord
}

// Loop drives one QueryKey from navigation to a satisfied quota or a failure,
// merging network and DOM results. It holds no per-query state between runs.
type Loop struct {
	opts      LoopOptions
	collector *Collector
	tree      *TreeExtractor
	dom       *DOMExtractor
	logger    *utils.Logger
}

func NewLoop(opts LoopOptions, collector *Collector, tree *TreeExtractor, dom *DOMExtractor, logger *utils.Logger) *Loop {
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}
	if opts.SignalPoll <= 0 {
		opts.SignalPoll = 500 * time.Millisecond
	}
	if opts.Signals == nil {
		opts.Signals = DefaultSignals
	}
	return &Loop{opts: opts, collector: collector, tree: tree, dom: dom, logger: logger}
}

// BuildURL returns the search page URL for a route and date,
// e.g. https://www.kayak.es/flights/MAD-BUD/2026-03-29.
func BuildURL(base, origin, destCode string, date time.Time) string {
	return fmt.Sprintf("%s/%s-%s/%s", strings.TrimRight(base, "/"), origin, destCode, date.Format(models.DateLayout))
}

// Run resolves key to exactly Quota records or returns *ExtractionInsufficient.
// Session failures are returned as *SessionError so the caller may recreate
// the session and retry.
func (l *Loop) Run(ctx context.Context, s Session, key models.QueryKey) (*Result, error) {
	res := &Result{
		Key:   key,
		URL:   BuildURL(l.opts.BaseURL, l.opts.Origin, key.DestinationCode, key.Date),
		State: StateNavigate,
	}

	l.logger.Info("[loop] %s — navigating to %s", key, res.URL)
	if err := s.Navigate(ctx, res.URL); err != nil {
		return res, &SessionError{Op: "navigate", URL: res.URL, Err: err}
	}
	if err := s.DismissConsent(ctx); err != nil {
		l.logger.Debug("[loop] %s — consent overlay not dismissed: %v", key, err)
	}

	res.State = StateWaitForSignal
	if sig, err := l.waitForSignal(ctx, s); err != nil {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		l.logger.Warn("[loop] %s — no results signal within %v, extracting anyway", key, l.opts.SignalTimeout)
	} else {
		l.logger.Debug("[loop] %s — results signal: %s", key, sig)
	}

	acc := models.NewRecordSet()
	diag := newDiagnostics()
	var payloadURLs []string

	for attempt := 1; attempt <= l.opts.MaxAttempts; attempt++ {
		res.Attempts = attempt

		res.State = StateCapture
		payloads, err := l.collector.Collect(ctx, s)
		switch {
		case errors.Is(err, ErrCaptureTimeout):
			diag.Note("capture: no usable payload")
		case err != nil:
			return res, err
		}
		for _, p := range payloads {
			payloadURLs = append(payloadURLs, p.SourceURL)
		}
		fromJSON, treeDiag := l.tree.Extract(payloads, key)
		diag.Merge(treeDiag)
		added := acc.Merge(fromJSON)
		l.logger.Debug("[loop] %s — attempt %d: %d payloads, %d new records from JSON (total %d)",
			key, attempt, len(payloads), added, acc.Len())
		if acc.Len() >= l.opts.Quota {
			break
		}

		res.State = StateScrollRetry
		fromDOM, domDiag, err := l.dom.Extract(ctx, s, key, l.opts.Quota)
		diag.Merge(domDiag)
		if err != nil {
			return res, err
		}
		added = acc.Merge(fromDOM)
		l.logger.Debug("[loop] %s — attempt %d: %d new records from DOM (total %d)",
			key, attempt, added, acc.Len())
		if acc.Len() >= l.opts.Quota {
			break
		}

		if attempt < l.opts.MaxAttempts {
			if err := s.ScrollToBottom(ctx); err != nil {
				return res, &SessionError{Op: "scroll", URL: res.URL, Err: err}
			}
			if err := utils.Sleep(ctx, l.opts.SettleDelay); err != nil {
				return res, err
			}
		}
	}

	if acc.Len() >= l.opts.Quota {
		l.logger.Debug("[loop] %s — %s with %d records at attempt %d, keeping first %d",
			key, StateSatisfied, acc.Len(), res.Attempts, l.opts.Quota)
		acc.Truncate(l.opts.Quota)
		res.Records = acc.Records()
		res.State = StateDone
		l.logger.Info("[loop] %s — %d flights after %d attempt(s)", key, len(res.Records), res.Attempts)
		return res, nil
	}

	res.State = StateFailed
	res.Records = acc.Records()
	return res, &ExtractionInsufficient{
		Key:          key,
		URL:          res.URL,
		Got:          acc.Len(),
		Want:         l.opts.Quota,
		Attempts:     res.Attempts,
		PayloadCount: len(payloadURLs),
		PayloadURLs:  payloadURLs,
		SkipReasons:  diag.SkipReasons,
	}
}

// waitForSignal polls DOM snapshots until one of the signals holds.
func (l *Loop) waitForSignal(ctx context.Context, s Session) (string, error) {
	var matched string
	err := utils.WaitUntil(ctx, l.opts.SignalPoll, l.opts.SignalTimeout, func(ctx context.Context) (bool, error) {
		doc, err := snapshot(ctx, s)
		if err != nil {
			// The page may still be settling; keep polling until the deadline.
			return false, nil
		}
		for _, sig := range l.opts.Signals {
			if sig.Match(doc) {
				matched = sig.Name
				return true, nil
			}
		}
		return false, nil
	})
	return matched, err
}
