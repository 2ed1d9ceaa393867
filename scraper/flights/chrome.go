package flights

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"flight-scraper/config"
	"flight-scraper/utils"
)

const userAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 " +
	"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// consentButtonHints are tried in order; the first visible match is clicked.
var consentButtonHints = []string{
	`//button[contains(., 'Aceptar')]`,
	`//button[contains(., 'Acepto')]`,
	`//button[contains(., 'Accept')]`,
	`button[aria-label*='Aceptar']`,
	`button[aria-label*='Accept']`,
}

var errNoConsentButton = errors.New("no consent button found")

// ChromeOptions configures a ChromeSession.
type ChromeOptions struct {
	Headless       bool
	ChromeBin      string
	PageTimeout    time.Duration
	ActionTimeout  time.Duration
	ConsentTimeout time.Duration
}

// ChromeSession is a Session backed by a single chromedp tab with the
// Network domain enabled.
type ChromeSession struct {
	opts   ChromeOptions
	logger *utils.Logger

	tabCtx      context.Context
	cancelTab   context.CancelFunc
	cancelAlloc context.CancelFunc
	closeOnce   sync.Once

	mu       sync.Mutex
	methods  map[network.RequestID]string
	pending  map[network.RequestID]Exchange
	finished []Exchange
}

// NewChromeSession starts a browser and enables network capture on its first tab.
func NewChromeSession(ctx context.Context, opts ChromeOptions, logger *utils.Logger) (*ChromeSession, error) {
	if opts.PageTimeout <= 0 {
		opts.PageTimeout = 60 * time.Second
	}
	if opts.ActionTimeout <= 0 {
		opts.ActionTimeout = 15 * time.Second
	}
	if opts.ConsentTimeout <= 0 {
		opts.ConsentTimeout = 4 * time.Second
	}

	chromeBin := opts.ChromeBin
	if chromeBin == "" {
		chromeBin = findChromeBinary()
	}
	logger.Info("[chrome] Using browser binary: %s (headless: %v)", chromeBin, opts.Headless)

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.WindowSize(1400, 900),
		chromedp.UserAgent(userAgent),
	)
	if chromeBin != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(chromeBin))
	}

	// The browser is not bound to ctx; only Close tears it down.
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), allocOpts...)
	tabCtx, cancelTab := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(format string, args ...any) {
		logger.Debug("[chrome] "+format, args...)
	}))

	s := &ChromeSession{
		opts:        opts,
		logger:      logger,
		tabCtx:      tabCtx,
		cancelTab:   cancelTab,
		cancelAlloc: cancelAlloc,
		methods:     make(map[network.RequestID]string),
		pending:     make(map[network.RequestID]Exchange),
	}
	chromedp.ListenTarget(tabCtx, s.onEvent)

	// The first Run allocates the browser and must use the undecorated tab
	// context, otherwise the browser dies with the timeout context.
	if err := chromedp.Run(tabCtx); err != nil {
		s.Close()
		return nil, fmt.Errorf("chrome: start browser: %w", err)
	}
	if err := s.run(ctx, opts.PageTimeout, network.Enable()); err != nil {
		s.Close()
		return nil, fmt.Errorf("chrome: enable network capture: %w", err)
	}
	return s, nil
}

// NewChromeSessionFactory returns a SessionFactory opening ChromeSessions configured from cfg.
func NewChromeSessionFactory(cfg *config.Config, logger *utils.Logger) SessionFactory {
	return func(ctx context.Context) (Session, error) {
		return NewChromeSession(ctx, ChromeOptions{
			Headless:    cfg.Headless,
			ChromeBin:   cfg.ChromeBin,
			PageTimeout: cfg.PageTimeout,
		}, logger)
	}
}

func (s *ChromeSession) onEvent(ev any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch ev := ev.(type) {
	case *network.EventRequestWillBeSent:
		s.methods[ev.RequestID] = ev.Request.Method
	case *network.EventResponseReceived:
		s.pending[ev.RequestID] = Exchange{
			RequestID: string(ev.RequestID),
			Method:    s.methods[ev.RequestID],
			URL:       ev.Response.URL,
			MIMEType:  ev.Response.MimeType,
			Status:    ev.Response.Status,
		}
	case *network.EventLoadingFinished:
		if ex, ok := s.pending[ev.RequestID]; ok {
			s.finished = append(s.finished, ex)
		}
		delete(s.pending, ev.RequestID)
		delete(s.methods, ev.RequestID)
	case *network.EventLoadingFailed:
		delete(s.pending, ev.RequestID)
		delete(s.methods, ev.RequestID)
	}
}

// run executes actions on the tab, bounded by timeout and cancelled with ctx.
func (s *ChromeSession) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithTimeout(s.tabCtx, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	return chromedp.Run(runCtx, actions...)
}

func (s *ChromeSession) Navigate(ctx context.Context, url string) error {
	s.DrainExchanges()
	return s.run(ctx, s.opts.PageTimeout,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
}

func (s *ChromeSession) DismissConsent(ctx context.Context) error {
	hints, _ := json.Marshal(consentButtonHints)
	script := `(function(hints) {
		for (var i = 0; i < hints.length; i++) {
			var h = hints[i], el = null;
			if (h.indexOf('//') === 0) {
				el = document.evaluate(h, document, null, XPathResult.FIRST_ORDERED_NODE_TYPE, null).singleNodeValue;
			} else {
				el = document.querySelector(h);
			}
			if (el && el.offsetParent !== null) { el.click(); return h; }
		}
		return '';
	})(` + string(hints) + `)`

	var clicked string
	err := utils.WaitUntil(ctx, 250*time.Millisecond, s.opts.ConsentTimeout, func(ctx context.Context) (bool, error) {
		if err := s.run(ctx, s.opts.ActionTimeout, chromedp.Evaluate(script, &clicked)); err != nil {
			return false, err
		}
		return clicked != "", nil
	})
	if errors.Is(err, utils.ErrDeadline) {
		return errNoConsentButton
	}
	if err != nil {
		return fmt.Errorf("chrome: dismiss consent: %w", err)
	}
	s.logger.Debug("[chrome] Consent dismissed via %s", clicked)
	return nil
}

func (s *ChromeSession) HTML(ctx context.Context) (string, error) {
	var html string
	if err := s.run(ctx, s.opts.ActionTimeout, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("chrome: read DOM: %w", err)
	}
	return html, nil
}

func (s *ChromeSession) ScrollIntoView(ctx context.Context, selector string, index int) error {
	sel, _ := json.Marshal(selector)
	script := fmt.Sprintf(`(function() {
		var els = document.querySelectorAll(%s);
		if (%d >= els.length) return false;
		els[%d].scrollIntoView({block: 'center'});
		return true;
	})()`, sel, index, index)

	var ok bool
	if err := s.run(ctx, s.opts.ActionTimeout, chromedp.Evaluate(script, &ok)); err != nil {
		return fmt.Errorf("chrome: scroll into view: %w", err)
	}
	if !ok {
		return fmt.Errorf("chrome: no element %d for %s", index, selector)
	}
	return nil
}

func (s *ChromeSession) ScrollToBottom(ctx context.Context) error {
	if err := s.run(ctx, s.opts.ActionTimeout,
		chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight)`, nil),
	); err != nil {
		return fmt.Errorf("chrome: scroll: %w", err)
	}
	return nil
}

func (s *ChromeSession) DrainExchanges() []Exchange {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.finished
	s.finished = nil
	return out
}

func (s *ChromeSession) ResponseBody(ctx context.Context, requestID string) ([]byte, error) {
	var body []byte
	err := s.run(ctx, s.opts.ActionTimeout, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		body, err = network.GetResponseBody(network.RequestID(requestID)).Do(ctx)
		return err
	}))
	if err != nil {
		return nil, fmt.Errorf("chrome: response body %s: %w", requestID, err)
	}
	return body, nil
}

func (s *ChromeSession) Close() error {
	s.closeOnce.Do(func() {
		s.cancelTab()
		s.cancelAlloc()
		s.logger.Debug("[chrome] Session closed")
	})
	return nil
}

// findChromeBinary locates Chrome/Chromium binary.
func findChromeBinary() string {
	if bin := os.Getenv("CHROME_BIN"); bin != "" {
		return bin
	}

	names := []string{"google-chrome-stable", "google-chrome", "chromium", "chromium-browser"}
	for _, name := range names {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}

	paths := []string{
		"/usr/bin/google-chrome-stable",
		"/usr/bin/google-chrome",
		"/usr/bin/chromium-browser",
		"/usr/bin/chromium",
		"/snap/bin/chromium",
		"/opt/google/chrome/google-chrome",
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	return ""
}
