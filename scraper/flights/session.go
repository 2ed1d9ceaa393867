package flights

import "context"

// Exchange is one completed network request observed by a Session.
type Exchange struct {
	RequestID string
	Method    string
	URL       string
	MIMEType  string
	Status    int64
}

// Session is the browser tab the extraction pipeline drives.
// Every blocking method takes a context and is bounded by its own timeout.
type Session interface {
	// Navigate loads url and waits for the document body.
	Navigate(ctx context.Context, url string) error
	// DismissConsent clicks a cookie/consent button if one is shown.
	DismissConsent(ctx context.Context) error
	// HTML returns a snapshot of the rendered document.
	HTML(ctx context.Context) (string, error)
	// ScrollIntoView scrolls the index-th element matching selector into the viewport.
	ScrollIntoView(ctx context.Context, selector string, index int) error
	// ScrollToBottom scrolls the window to the end of the document.
	ScrollToBottom(ctx context.Context) error
	// DrainExchanges returns the exchanges completed since the previous call.
	DrainExchanges() []Exchange
	// ResponseBody fetches the decoded body of a completed exchange.
	ResponseBody(ctx context.Context, requestID string) ([]byte, error)
	// Close terminates the session. It is safe to call more than once.
	Close() error
}

// SessionFactory opens a new Session.
type SessionFactory func(ctx context.Context) (Session, error)
