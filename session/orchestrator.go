package session

import (
	"context"
	"sync"
	"time"

	"quota-scraper/models"
	"quota-scraper/scraper"
	"quota-scraper/transform"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Orchestrator runs fetches against a Scraper and owns the single live session
type Orchestrator struct {
	scraper  scraper.Scraper
	log      *zap.SugaredLogger
	now      func() time.Time
	limit    int
	timeout  time.Duration
	onSettle func(FetchSession)

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	current *FetchSession
	mode    DisplayMode
	done    chan struct{}
}

// Option configures an Orchestrator
type Option func(*Orchestrator)

// WithClock replaces time.Now for session timestamps
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// WithDisplayCap sets the maximum number of records in a View
func WithDisplayCap(limit int) Option {
	return func(o *Orchestrator) { o.limit = limit }
}

// WithTimeout bounds each fetch; zero means no bound
func WithTimeout(d time.Duration) Option {
	return func(o *Orchestrator) { o.timeout = d }
}

// WithOnSettle registers a callback run with the final session after each fetch
func WithOnSettle(fn func(FetchSession)) Option {
	return func(o *Orchestrator) { o.onSettle = fn }
}

// NewOrchestrator creates an orchestrator with no session
func NewOrchestrator(s scraper.Scraper, log *zap.SugaredLogger, opts ...Option) *Orchestrator {
	ctx, cancel := context.WithCancel(context.Background())
	o := &Orchestrator{
		scraper: s,
		log:     log,
		now:     time.Now,
		limit:   transform.DefaultDisplayCap,
		ctx:     ctx,
		cancel:  cancel,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// TriggerFetch starts a fetch in the background and returns immediately.
// The previous session's data is discarded at once. While a fetch is in
// flight new triggers are rejected with ErrFetchInFlight.
func (o *Orchestrator) TriggerFetch(wantFirst, wantSecond bool) error {
	o.mu.Lock()
	if o.ctx.Err() != nil {
		o.mu.Unlock()
		return ErrClosed
	}
	if o.current != nil && o.current.InFlight {
		id := o.current.ID
		o.mu.Unlock()
		o.log.Warnw("Ignoring fetch trigger while another fetch is running", "session", id)
		return ErrFetchInFlight
	}

	sess := &FetchSession{
		ID:             uuid.New(),
		StartedAt:      o.now(),
		WantFirst:      wantFirst,
		WantSecond:     wantSecond,
		ComparisonMode: wantFirst && wantSecond,
		InFlight:       true,
	}
	done := make(chan struct{})
	o.current = sess
	o.mode = ModeNormal
	o.done = done
	o.wg.Add(1)
	o.mu.Unlock()

	o.log.Infow("Fetch started", "session", sess.ID, "first", wantFirst, "second", wantSecond)
	go o.run(sess, done)
	return nil
}

func (o *Orchestrator) run(sess *FetchSession, done chan struct{}) {
	defer o.wg.Done()

	ctx := o.ctx
	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	data, err := o.scraper.FetchScrapData(ctx, sess.WantFirst, sess.WantSecond)

	o.mu.Lock()
	ended := o.now()
	sess.InFlight = false
	sess.EndedAt = &ended
	if err != nil {
		sess.Err = err
	} else {
		if data == nil {
			data = []models.RawResultEntry{}
		}
		sess.Data = data
	}
	final := *sess
	o.mu.Unlock()
	defer close(done)

	if err != nil {
		o.log.Errorw("Error fetching data", "session", final.ID, "error", err)
	} else {
		o.log.Infow("Fetch completed", "session", final.ID, "entries", len(final.Data), "duration", final.Duration())
	}

	if o.onSettle != nil {
		o.onSettle(final)
	}
}

// Wait blocks until the current fetch settles and its callback returns, or ctx is done
func (o *Orchestrator) Wait(ctx context.Context) error {
	o.mu.Lock()
	done := o.done
	o.mu.Unlock()

	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Snapshot returns a copy of the current session; ok is false before the first fetch
func (o *Orchestrator) Snapshot() (FetchSession, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.current == nil {
		return FetchSession{}, false
	}
	return *o.current, true
}

// Mode returns the current display mode
func (o *Orchestrator) Mode() DisplayMode {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.mode
}

// ToggleMode flips between normal and comparative display.
// It only applies to a settled comparison-mode session with data.
func (o *Orchestrator) ToggleMode() (DisplayMode, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.current == nil || !o.current.ComparisonMode || !o.current.HasData() {
		return o.mode, ErrToggleUnavailable
	}
	if o.mode == ModeNormal {
		o.mode = ModeComparative
	} else {
		o.mode = ModeNormal
	}
	return o.mode, nil
}

// View reshapes the current session for display
func (o *Orchestrator) View() View {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.current == nil {
		return View{Kind: ViewNone}
	}
	return BuildView(*o.current, o.mode, o.limit)
}

// Close cancels a running fetch and waits for it to settle
func (o *Orchestrator) Close() {
	o.mu.Lock()
	o.cancel()
	o.mu.Unlock()
	o.wg.Wait()
}
