package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"quota-scraper/logging"
	"quota-scraper/models"
	"quota-scraper/scraper"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type stubScraper struct {
	mu      sync.Mutex
	release chan struct{}
	data    []models.RawResultEntry
	err     error
	calls   [][2]bool
}

func (s *stubScraper) FetchScrapData(ctx context.Context, wantFirst, wantSecond bool) ([]models.RawResultEntry, error) {
	s.mu.Lock()
	s.calls = append(s.calls, [2]bool{wantFirst, wantSecond})
	release := s.release
	s.mu.Unlock()

	if release != nil {
		select {
		case <-release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return s.data, s.err
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

func entry(first, second *models.PagePayload) models.RawResultEntry {
	return models.RawResultEntry{FirstPageData: first, SecondPageData: second}
}

func payload(team, quota string) *models.PagePayload {
	return &models.PagePayload{Team: team, Quota: models.NewQuota(quota)}
}

func mixedEntries() []models.RawResultEntry {
	return []models.RawResultEntry{
		entry(payload("A", "1.5"), nil),
		entry(nil, payload("A", "1.2")),
		entry(payload("B", "2.0"), nil),
	}
}

func waitSettled(t *testing.T, o *Orchestrator) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, o.Wait(ctx))
}

func TestTriggerFetchLifecycle(t *testing.T) {
	stub := &stubScraper{release: make(chan struct{}), data: mixedEntries()}
	clock := &fakeClock{t: time.Date(2024, 5, 1, 20, 0, 0, 0, time.UTC)}
	o := NewOrchestrator(stub, logging.Nop(), WithClock(clock.Now))
	defer o.Close()

	_, ok := o.Snapshot()
	assert.False(t, ok)

	require.NoError(t, o.TriggerFetch(true, true))

	sess, ok := o.Snapshot()
	require.True(t, ok)
	assert.True(t, sess.InFlight)
	assert.True(t, sess.ComparisonMode)
	assert.Nil(t, sess.EndedAt)
	assert.Nil(t, sess.Data)
	assert.Equal(t, ViewNone, o.View().Kind)

	close(stub.release)
	waitSettled(t, o)

	sess, _ = o.Snapshot()
	assert.False(t, sess.InFlight)
	require.NotNil(t, sess.EndedAt)
	assert.Equal(t, time.Second, sess.Duration())
	assert.Equal(t, mixedEntries(), sess.Data)
	assert.NoError(t, sess.Err)
	assert.NotEqual(t, [16]byte{}, [16]byte(sess.ID))
}

func TestFetchFailure(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	log := zap.New(core).Sugar()

	cause := &scraper.Error{Op: "call scrape service", Cause: errors.New("connection refused")}
	stub := &stubScraper{err: cause}

	var settled []FetchSession
	var mu sync.Mutex
	o := NewOrchestrator(stub, log, WithOnSettle(func(s FetchSession) {
		mu.Lock()
		settled = append(settled, s)
		mu.Unlock()
	}))
	defer o.Close()

	require.NoError(t, o.TriggerFetch(true, false))
	waitSettled(t, o)
	o.Close()

	sess, _ := o.Snapshot()
	assert.False(t, sess.InFlight)
	assert.NotNil(t, sess.EndedAt)
	assert.Nil(t, sess.Data)
	assert.ErrorIs(t, sess.Err, scraper.ErrFetchFailure)
	assert.False(t, sess.HasData())
	assert.Equal(t, ViewNone, o.View().Kind)

	assert.Equal(t, 1, logs.FilterMessage("Error fetching data").Len(), "failure is logged once")
	assert.Len(t, stub.calls, 1, "no retry")

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, settled, 1)
	assert.Equal(t, sess.ID, settled[0].ID)
}

func TestTriggerFetchWhileInFlight(t *testing.T) {
	stub := &stubScraper{release: make(chan struct{}), data: mixedEntries()}
	o := NewOrchestrator(stub, logging.Nop())
	defer o.Close()

	require.NoError(t, o.TriggerFetch(true, false))
	first, _ := o.Snapshot()

	assert.ErrorIs(t, o.TriggerFetch(false, true), ErrFetchInFlight)
	current, _ := o.Snapshot()
	assert.Equal(t, first.ID, current.ID, "the running session is kept")

	close(stub.release)
	waitSettled(t, o)

	require.NoError(t, o.TriggerFetch(false, true))
	waitSettled(t, o)

	second, _ := o.Snapshot()
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, [][2]bool{{true, false}, {false, true}}, stub.calls)
}

func TestNewFetchDiscardsPreviousData(t *testing.T) {
	stub := &stubScraper{data: mixedEntries()}
	o := NewOrchestrator(stub, logging.Nop())
	defer o.Close()

	require.NoError(t, o.TriggerFetch(true, true))
	waitSettled(t, o)
	_, err := o.ToggleMode()
	require.NoError(t, err)

	stub.mu.Lock()
	stub.release = make(chan struct{})
	release := stub.release
	stub.mu.Unlock()

	require.NoError(t, o.TriggerFetch(true, true))
	sess, _ := o.Snapshot()
	assert.Nil(t, sess.Data, "displayed data is cleared immediately")
	assert.Equal(t, ModeNormal, o.Mode(), "a new fetch starts in normal mode")

	close(release)
	waitSettled(t, o)
}

func TestToggleMode(t *testing.T) {
	t.Run("before any fetch", func(t *testing.T) {
		o := NewOrchestrator(&stubScraper{}, logging.Nop())
		defer o.Close()
		_, err := o.ToggleMode()
		assert.ErrorIs(t, err, ErrToggleUnavailable)
	})

	t.Run("single page session", func(t *testing.T) {
		o := NewOrchestrator(&stubScraper{data: mixedEntries()}, logging.Nop())
		defer o.Close()
		require.NoError(t, o.TriggerFetch(true, false))
		waitSettled(t, o)

		_, err := o.ToggleMode()
		assert.ErrorIs(t, err, ErrToggleUnavailable)
		assert.Equal(t, ModeNormal, o.Mode())
	})

	t.Run("comparison session without data", func(t *testing.T) {
		o := NewOrchestrator(&stubScraper{err: errors.New("down")}, logging.Nop())
		defer o.Close()
		require.NoError(t, o.TriggerFetch(true, true))
		waitSettled(t, o)

		_, err := o.ToggleMode()
		assert.ErrorIs(t, err, ErrToggleUnavailable)
	})

	t.Run("flips between the two states", func(t *testing.T) {
		o := NewOrchestrator(&stubScraper{data: mixedEntries()}, logging.Nop())
		defer o.Close()
		require.NoError(t, o.TriggerFetch(true, true))
		waitSettled(t, o)

		assert.Equal(t, ModeNormal, o.Mode())
		mode, err := o.ToggleMode()
		require.NoError(t, err)
		assert.Equal(t, ModeComparative, mode)
		mode, err = o.ToggleMode()
		require.NoError(t, err)
		assert.Equal(t, ModeNormal, mode)
	})
}

func TestOrchestratorView(t *testing.T) {
	o := NewOrchestrator(&stubScraper{data: mixedEntries()}, logging.Nop())
	defer o.Close()

	assert.Equal(t, ViewNone, o.View().Kind)

	require.NoError(t, o.TriggerFetch(true, true))
	waitSettled(t, o)

	v := o.View()
	assert.Equal(t, ViewPairs, v.Kind)
	assert.True(t, v.CanToggle())
	require.Len(t, v.Pairs, 1)
	assert.Equal(t, "A", v.Pairs[0].FirstPageData.Team)

	_, err := o.ToggleMode()
	require.NoError(t, err)
	v = o.View()
	assert.Equal(t, ViewComparative, v.Kind)
	require.Len(t, v.Records, 1)
	assert.Equal(t, "0.30", v.Records[0].Difference.String())
}

func TestEmptyResultIsData(t *testing.T) {
	o := NewOrchestrator(&stubScraper{data: nil}, logging.Nop())
	defer o.Close()

	require.NoError(t, o.TriggerFetch(false, true))
	waitSettled(t, o)

	sess, _ := o.Snapshot()
	assert.True(t, sess.HasData())
	assert.NotNil(t, sess.Data)

	v := o.View()
	assert.Equal(t, ViewList, v.Kind)
	assert.Empty(t, v.Payloads)
}

func TestWithTimeout(t *testing.T) {
	stub := &stubScraper{release: make(chan struct{})}
	o := NewOrchestrator(stub, logging.Nop(), WithTimeout(20*time.Millisecond))
	defer o.Close()

	require.NoError(t, o.TriggerFetch(true, true))
	waitSettled(t, o)

	sess, _ := o.Snapshot()
	assert.ErrorIs(t, sess.Err, context.DeadlineExceeded)
}

func TestClose(t *testing.T) {
	stub := &stubScraper{release: make(chan struct{})}
	o := NewOrchestrator(stub, logging.Nop())

	require.NoError(t, o.TriggerFetch(true, true))
	o.Close()

	sess, _ := o.Snapshot()
	assert.False(t, sess.InFlight)
	assert.ErrorIs(t, sess.Err, context.Canceled)
	assert.ErrorIs(t, o.TriggerFetch(true, true), ErrClosed)
}

func TestWaitWithoutFetch(t *testing.T) {
	o := NewOrchestrator(&stubScraper{}, logging.Nop())
	defer o.Close()
	assert.NoError(t, o.Wait(context.Background()))
}
