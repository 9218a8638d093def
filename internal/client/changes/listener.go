// Package changes listens to the server's change feed and asks for a sync
// whenever the account's data changed elsewhere.
package changes

import (
	"context"
	"encoding/json"
	"math"
	"math/rand"
	"net/http"
	"net/url"
	"time"

	"github.com/dmitrijs2005/mindnote/internal/common"
	"github.com/dmitrijs2005/mindnote/internal/logging"
	"github.com/gorilla/websocket"
)

// Event is one push from the server.
type Event struct {
	Version int64 `json:"version"`
}

// Backoff computes reconnect delays.
type Backoff struct {
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64
	// Jitter is the maximum deviation as a fraction of the delay.
	Jitter float64
}

func DefaultBackoff() Backoff {
	return Backoff{Initial: time.Second, Max: 30 * time.Second, Multiplier: 2, Jitter: 0.2}
}

// Delay returns the wait before reconnect attempt n (0-based).
func (b Backoff) Delay(attempt int) time.Duration {
	d := float64(b.Initial) * math.Pow(b.Multiplier, float64(attempt))
	if d > float64(b.Max) {
		d = float64(b.Max)
	}
	if b.Jitter > 0 {
		//nolint:gosec // jitter is not security sensitive
		d += d * b.Jitter * (2*rand.Float64() - 1)
	}
	if d < float64(b.Initial) {
		d = float64(b.Initial)
	}
	return time.Duration(d)
}

// Listener keeps a websocket open to the change feed.
type Listener struct {
	url      string
	token    func() string
	onChange func(ctx context.Context, ev Event)
	backoff  Backoff
	dialer   *websocket.Dialer
	logger   logging.Logger
}

// New returns a listener for feedURL. token supplies the current access
// token; onChange runs on the listener goroutine for every event.
func New(feedURL string, token func() string, onChange func(ctx context.Context, ev Event), logger logging.Logger) *Listener {
	if logger == nil {
		logger = logging.Nop{}
	}
	return &Listener{
		url:      feedURL,
		token:    token,
		onChange: onChange,
		backoff:  DefaultBackoff(),
		dialer:   websocket.DefaultDialer,
		logger:   logger.With("module", "changes"),
	}
}

// WithBackoff replaces the reconnect policy.
func (l *Listener) WithBackoff(b Backoff) *Listener {
	l.backoff = b
	return l
}

func (l *Listener) dial(ctx context.Context) (*websocket.Conn, error) {
	u, err := url.Parse(l.url)
	if err != nil {
		return nil, err
	}
	h := http.Header{}
	if tok := l.token(); tok != "" {
		h.Set(common.AuthorizationHeaderName, "Bearer "+tok)
	}
	conn, resp, err := l.dialer.DialContext(ctx, u.String(), h)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			return nil, common.ErrorUnauthorized
		}
		return nil, err
	}
	return conn, nil
}

// Run connects and reconnects until ctx is done.
func (l *Listener) Run(ctx context.Context) error {
	attempt := 0
	for {
		if l.token() != "" {
			conn, err := l.dial(ctx)
			if err == nil {
				attempt = 0
				l.logger.Debug(ctx, "change feed connected")
				err = l.read(ctx, conn)
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			l.logger.Debug(ctx, "change feed disconnected", "error", err)
		}

		delay := l.backoff.Delay(attempt)
		attempt++
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}

func (l *Listener) read(ctx context.Context, conn *websocket.Conn) error {
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
			conn.Close()
		case <-stop:
			conn.Close()
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		var ev Event
		if err := json.Unmarshal(data, &ev); err != nil {
			l.logger.Warn(ctx, "bad change event", "error", err)
			continue
		}
		l.onChange(ctx, ev)
	}
}
