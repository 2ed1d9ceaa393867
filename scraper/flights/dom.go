package flights

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"flight-scraper/models"
	"flight-scraper/services"
	"flight-scraper/utils"
)

// DOMHints lists, in priority order, the selectors used to find result cards
// and the fields inside them.
type DOMHints struct {
	Cards    []string
	Price    []string
	Duration []string
	Stops    []string
	// MaxCards bounds a plausible match count; a hint matching more is
	// assumed to select something other than result cards.
	MaxCards int
}

// DefaultDOMHints returns generic selectors that match most result listings.
func DefaultDOMHints() DOMHints {
	return DOMHints{
		Cards: []string{
			"div[class*='result']",
			"li[class*='result']",
			"article",
			"[data-resultid]",
		},
		Price: []string{
			"[class*='price']",
			"span[aria-label*='€']",
			"span[class*='Price']",
		},
		Duration: []string{
			"[class*='duration']",
			"span[class*='Duration']",
		},
		Stops: []string{
			"[class*='stops']",
			"span[class*='Stops']",
		},
		MaxCards: 150,
	}
}

// DOMExtractor reads flight cards from the rendered page. It is the lossy
// fallback used when network capture under-yields.
type DOMExtractor struct {
	hints  DOMHints
	policy services.FieldPolicy
	logger *utils.Logger
}

func NewDOMExtractor(hints DOMHints, policy services.FieldPolicy, logger *utils.Logger) *DOMExtractor {
	if hints.MaxCards <= 0 {
		hints.MaxCards = 150
	}
	return &DOMExtractor{hints: hints, policy: policy, logger: logger}
}

// Extract returns up to limit distinct records read from result cards.
// Cards are scrolled into view in batches so lazily rendered content is
// present in the snapshot they are read from.
func (d *DOMExtractor) Extract(ctx context.Context, s Session, key models.QueryKey, limit int) ([]models.FlightRecord, Diagnostics, error) {
	diag := newDiagnostics()
	if limit <= 0 {
		return nil, diag, nil
	}

	doc, err := snapshot(ctx, s)
	if err != nil {
		return nil, diag, err
	}

	hint, total := d.pickCardHint(doc)
	if hint == "" {
		diag.Note("dom: no card hint matched")
		return nil, diag, nil
	}
	d.logger.Debug("[dom] %s: %d candidate cards via %q", key, total, hint)

	set := models.NewRecordSet()
	for start := 0; start < total && set.Len() < limit; start += limit {
		end := min(start+limit, total)
		for i := start; i < end; i++ {
			if err := s.ScrollIntoView(ctx, hint, i); err != nil {
				if ctx.Err() != nil {
					return set.Records(), diag, ctx.Err()
				}
				diag.Note("dom: scroll failed")
			}
		}

		if doc, err = snapshot(ctx, s); err != nil {
			return set.Records(), diag, err
		}
		cards := doc.Find(hint)
		for i := start; i < end && i < cards.Length() && set.Len() < limit; i++ {
			r, reason := d.readCard(cards.Eq(i), key)
			if reason != "" {
				diag.Note(reason)
				continue
			}
			set.Add(r)
		}
	}
	return set.Records(), diag, nil
}

func (d *DOMExtractor) pickCardHint(doc *goquery.Document) (string, int) {
	for _, h := range d.hints.Cards {
		n := doc.Find(h).Length()
		if n > 0 && n <= d.hints.MaxCards {
			return h, n
		}
	}
	return "", 0
}

// readCard builds a record from one card. A non-empty reason means the card was skipped.
func (d *DOMExtractor) readCard(card *goquery.Selection, key models.QueryKey) (models.FlightRecord, string) {
	price, err := firstParsed(card, d.hints.Price, services.ParsePrice)
	if err != nil {
		return models.FlightRecord{}, "dom: no price"
	}

	minutes, ok := d.policy.ResolveDuration(firstParsed(card, d.hints.Duration, services.ParseDuration))
	if !ok {
		return models.FlightRecord{}, "dom: no duration"
	}
	stops, ok := d.policy.ResolveStops(firstParsed(card, d.hints.Stops, services.ParseStops))
	if !ok {
		return models.FlightRecord{}, "dom: no stops"
	}

	r := models.FlightRecord{
		Date:            key.Day(),
		Destination:     key.Destination,
		Price:           price,
		DurationMinutes: minutes,
		Stops:           stops,
	}
	if !r.Valid() {
		return models.FlightRecord{}, "dom: out of range"
	}
	return r, ""
}

// firstParsed tries each selector in order and returns the first element text
// that parses. Unparseable text moves on to the next selector.
func firstParsed[T any](card *goquery.Selection, selectors []string, parse func(string) (T, error)) (T, error) {
	var lastErr error = services.ErrMissing
	for _, sel := range selectors {
		el := card.Find(sel).First()
		if el.Length() == 0 {
			continue
		}
		text := strings.TrimSpace(el.Text())
		if text == "" {
			text = el.AttrOr("aria-label", "")
		}
		v, err := parse(text)
		if err == nil {
			return v, nil
		}
		lastErr = err
	}
	var zero T
	return zero, lastErr
}

func snapshot(ctx context.Context, s Session) (*goquery.Document, error) {
	html, err := s.HTML(ctx)
	if err != nil {
		return nil, &SessionError{Op: "read DOM", Err: err}
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("dom: parse snapshot: %w", err)
	}
	return doc, nil
}
