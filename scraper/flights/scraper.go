package flights

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"flight-scraper/config"
	"flight-scraper/models"
	"flight-scraper/utils"
)

// RunResult is what a scrape produced. Failed lists the keys that were
// skipped when FailFast is off.
type RunResult struct {
	Records []models.FlightRecord
	Failed  []*ExtractionInsufficient
}

// Scraper runs the convergence loop over every QueryKey of the configured
// range with a single browser session.
type Scraper struct {
	cfg     *config.Config
	logger  *utils.Logger
	factory SessionFactory
	loop    *Loop
	limiter *rate.Limiter
	retry   *utils.RetryConfig
}

// New creates a ready-to-use Scraper. factory opens the browser sessions.
func New(cfg *config.Config, logger *utils.Logger, factory SessionFactory) *Scraper {
	collector := NewCollector(CaptureOptions{
		Window:       cfg.CaptureWindow,
		PollInterval: cfg.PollInterval,
	}, logger)
	loop := NewLoop(LoopOptions{
		BaseURL:       cfg.BaseURL,
		Origin:        cfg.Origin,
		Quota:         cfg.MinFlightsPerDay,
		MaxAttempts:   cfg.ScrollRetries,
		SignalTimeout: cfg.SignalTimeout,
		SignalPoll:    500 * time.Millisecond,
		SettleDelay:   cfg.SettleDelay,
	},
		collector,
		NewTreeExtractor(DefaultProbes(), cfg.TreeFieldPolicy),
		NewDOMExtractor(DefaultDOMHints(), cfg.DOMFieldPolicy, logger),
		logger,
	)

	return &Scraper{
		cfg:     cfg,
		logger:  logger,
		factory: factory,
		loop:    loop,
		limiter: rate.NewLimiter(rate.Every(max(cfg.QueryDelay, time.Millisecond)), 1),
		retry: &utils.RetryConfig{
			MaxAttempts: cfg.MaxRetries,
			BaseDelay:   2 * time.Second,
			Logger:      logger,
			Retryable: func(err error) bool {
				return errors.Is(err, ErrSession)
			},
		},
	}
}

// Run scrapes every QueryKey in order. It returns the first
// *ExtractionInsufficient when FailFast is set. On cancellation the records
// collected so far are returned together with ctx.Err().
func (s *Scraper) Run(ctx context.Context) (*RunResult, error) {
	keys := s.cfg.QueryKeys()
	s.logger.Info("[flights] Starting scrape — %d queries (%d days × %d destinations), quota %d/query",
		len(keys), s.cfg.Days(), len(s.cfg.Destinations), s.cfg.MinFlightsPerDay)

	session, err := s.factory(ctx)
	if err != nil {
		return nil, &SessionError{Op: "open", Err: err}
	}
	defer func() {
		if err := session.Close(); err != nil {
			s.logger.Debug("[flights] Session close: %v", err)
		}
	}()

	retry := *s.retry
	retry.BeforeRetry = func(ctx context.Context, attempt int, lastErr error) error {
		s.logger.Warn("[flights] Recreating browser session after: %v", lastErr)
		_ = session.Close()
		next, err := s.factory(ctx)
		if err != nil {
			return &SessionError{Op: "reopen", Err: err}
		}
		session = next
		return nil
	}

	out := &RunResult{}
	for i, key := range keys {
		if err := s.limiter.Wait(ctx); err != nil {
			return out, ctx.Err()
		}

		var res *Result
		err := retry.Do(ctx, key.String(), func(attempt int) error {
			var err error
			res, err = s.loop.Run(ctx, session, key)
			return err
		})
		// The next query starts no sooner than QueryDelay after this one ends.
		s.limiter.Reserve()
		if ctx.Err() != nil {
			return out, ctx.Err()
		}

		if err != nil {
			insufficient := s.asInsufficient(key, res, err)
			s.dump(insufficient)
			if s.cfg.FailFast {
				return out, insufficient
			}
			s.logger.Warn("[flights] Skipping %s: %v", key, insufficient)
			out.Failed = append(out.Failed, insufficient)
			continue
		}

		out.Records = append(out.Records, res.Records...)
		s.logger.Info("[flights] %d/%d done — %d records so far", i+1, len(keys), len(out.Records))
	}

	s.logger.Info("[flights] Scrape complete — %d records, %d queries skipped", len(out.Records), len(out.Failed))
	return out, nil
}

// asInsufficient normalises a failed query into *ExtractionInsufficient. A
// session failure that survived every retry is wrapped as its cause.
func (s *Scraper) asInsufficient(key models.QueryKey, res *Result, err error) *ExtractionInsufficient {
	var insufficient *ExtractionInsufficient
	if errors.As(err, &insufficient) {
		return insufficient
	}
	out := &ExtractionInsufficient{Key: key, Want: s.cfg.MinFlightsPerDay, Cause: err}
	if res != nil {
		out.URL = res.URL
		out.Got = len(res.Records)
		out.Attempts = res.Attempts
	}
	return out
}

// dump logs the diagnostics of a failed query.
func (s *Scraper) dump(e *ExtractionInsufficient) {
	s.logger.Error("[flights] %v", e)
	if !s.logger.DebugEnabled() {
		return
	}
	s.logger.Debug("[flights] URL: %s", e.URL)
	s.logger.Debug("[flights] Payloads captured: %d", e.PayloadCount)
	for i, u := range e.PayloadURLs {
		if i == 8 {
			s.logger.Debug("[flights]   ... %d more", len(e.PayloadURLs)-i)
			break
		}
		s.logger.Debug("[flights]   %s", u)
	}
	s.logger.Debug("[flights] Skip reasons: %s", Diagnostics{SkipReasons: e.SkipReasons})
}

// Describe summarises a run for the final log line.
func (r *RunResult) Describe() string {
	return fmt.Sprintf("%d records, %d skipped queries", len(r.Records), len(r.Failed))
}
