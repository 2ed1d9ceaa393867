package flights

import (
	"bytes"
	"context"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/tidwall/gjson"

	"flight-scraper/models"
	"flight-scraper/utils"
)

// DefaultURLKeywords select the exchanges worth decoding.
var DefaultURLKeywords = []string{"flight", "flights", "horizon", "results", "search", "poll"}

// xssiPrefixes are stripped from bodies before JSON decoding.
var xssiPrefixes = [][]byte{[]byte(")]}'"), []byte("while(1);"), []byte("for(;;);")}

// CaptureOptions configures a Collector.
type CaptureOptions struct {
	Window       time.Duration
	PollInterval time.Duration
	URLKeywords  []string
}

// Collector samples a session's network log for a fixed window and keeps the
// JSON bodies of relevant exchanges.
type Collector struct {
	opts   CaptureOptions
	logger *utils.Logger
}

func NewCollector(opts CaptureOptions, logger *utils.Logger) *Collector {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 200 * time.Millisecond
	}
	if len(opts.URLKeywords) == 0 {
		opts.URLKeywords = DefaultURLKeywords
	}
	return &Collector{opts: opts, logger: logger}
}

// Collect polls the session for the whole window and returns every distinct
// JSON object or array body captured. Each request id is inspected once and
// a failed body fetch is never retried. ErrCaptureTimeout is returned when
// nothing usable arrived.
func (c *Collector) Collect(ctx context.Context, s Session) ([]models.RawPayload, error) {
	seenIDs := utils.NewSet[string]()
	seenBodies := utils.NewSet[string]()
	var payloads []models.RawPayload
	inspected := 0

	err := utils.PollFor(ctx, c.opts.PollInterval, c.opts.Window, func(ctx context.Context) error {
		for _, ex := range s.DrainExchanges() {
			if !seenIDs.Add(ex.RequestID) {
				continue
			}
			if !c.Relevant(ex.URL) {
				continue
			}
			inspected++

			body, err := s.ResponseBody(ctx, ex.RequestID)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				c.logger.Debug("[capture] Body fetch failed for %s: %v", ex.URL, err)
				continue
			}

			p, ok := DecodePayload(ex.URL, body)
			if !ok {
				c.logger.Debug("[capture] Dropping non-JSON body from %s (%s, %s)",
					ex.URL, ex.MIMEType, humanize.Bytes(uint64(len(body))))
				continue
			}
			if !seenBodies.Add(p.Body.Raw) {
				continue
			}
			c.logger.Debug("[capture] JSON payload from %s (%s)", ex.URL, humanize.Bytes(uint64(len(body))))
			payloads = append(payloads, p)
		}
		return nil
	})
	if err != nil {
		return payloads, err
	}

	c.logger.Debug("[capture] Window closed — %d exchanges inspected, %d JSON payloads",
		inspected, len(payloads))
	if len(payloads) == 0 {
		return nil, ErrCaptureTimeout
	}
	return payloads, nil
}

// Relevant reports whether url contains one of the configured keywords.
func (c *Collector) Relevant(url string) bool {
	u := strings.ToLower(url)
	for _, k := range c.opts.URLKeywords {
		if strings.Contains(u, k) {
			return true
		}
	}
	return false
}

// DecodePayload parses body as JSON regardless of its declared content type.
// Only objects and arrays are accepted.
func DecodePayload(url string, body []byte) (models.RawPayload, bool) {
	body = bytes.TrimSpace(bytes.TrimPrefix(body, []byte("\xef\xbb\xbf")))
	for _, prefix := range xssiPrefixes {
		if bytes.HasPrefix(body, prefix) {
			body = bytes.TrimSpace(body[len(prefix):])
			break
		}
	}

	if len(body) == 0 || !gjson.ValidBytes(body) {
		return models.RawPayload{}, false
	}
	v := gjson.ParseBytes(body)
	if !v.IsObject() && !v.IsArray() {
		return models.RawPayload{}, false
	}
	return models.RawPayload{SourceURL: url, Body: v}, true
}
