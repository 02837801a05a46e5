package sender

import (
	"context"
	"sync"
	"time"

	"github.com/penwyp/go-optima-rum/internal/core/constants"
	"github.com/penwyp/go-optima-rum/internal/core/model"
	"github.com/penwyp/go-optima-rum/internal/util"
)

// Config carries the delivery policy knobs.
type Config struct {
	BatchSize    int
	BatchTimeout time.Duration
	Stagger      time.Duration
	UpdateGrace  time.Duration
}

func (c *Config) applyDefaults() {
	if c.BatchSize <= 0 {
		c.BatchSize = constants.DefaultBatchSize
	}
	if c.BatchTimeout <= 0 {
		c.BatchTimeout = constants.DefaultBatchTimeout
	}
	if c.Stagger <= 0 {
		c.Stagger = constants.BatchSendStagger
	}
	if c.UpdateGrace <= 0 {
		c.UpdateGrace = constants.ContinuousUpdateGrace
	}
}

// Sender implements the delivery policy: urgent triggers go out immediately
// (with one retry over the beacon path on failure), everything else batches
// up to BatchSize items or BatchTimeout, whichever first. Batched failures
// are dropped, not requeued. Immediate sends run off the caller's goroutine:
// the engine's dispatch loop must never wait on the network. Only ForceFlush
// transmits synchronously.
type Sender struct {
	cfg       Config
	transport *Transport

	mu             sync.Mutex
	queue          []*model.Payload
	flushTimer     *time.Timer
	sessionCreated map[string]bool        // view ID → initial session payload sent
	pendingUpdate  map[string]*time.Timer // view ID → delayed continuous update
	latestUpdate   map[string]*model.Payload
	inflight       sync.WaitGroup
	closed         bool

	// Delivery counters for status reporting.
	sentImmediate int
	sentBatched   int
	dropped       int
}

// NewSender creates a sender over the given transport.
func NewSender(cfg Config, transport *Transport) *Sender {
	cfg.applyDefaults()
	return &Sender{
		cfg:            cfg,
		transport:      transport,
		sessionCreated: make(map[string]bool),
		pendingUpdate:  make(map[string]*time.Timer),
		latestUpdate:   make(map[string]*model.Payload),
	}
}

// IsImmediateTrigger reports whether a trigger demands immediate delivery:
// route-change starts and completions, page-hidden/unload, and error
// conditions. Everything else batches.
func IsImmediateTrigger(trigger string) bool {
	switch trigger {
	case "route_change", "route_change_started",
		"pushState", "replaceState", "popstate", "hashchange",
		"page_hidden", "unload", "error":
		return true
	}
	return false
}

// SendView delivers a completed-view (or session-start) payload according to
// the trigger policy.
func (s *Sender) SendView(p *model.Payload, trigger string) {
	if p == nil {
		return
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if p.ViewMetadata.IsUpdate {
		s.sessionCreated[p.ViewID] = true
	} else {
		// Final payload: the view can never send again, so its
		// session-created entry would only leak.
		delete(s.sessionCreated, p.ViewID)
	}
	s.cancelPendingUpdateLocked(p.ViewID)

	if !IsImmediateTrigger(trigger) {
		s.enqueueLocked(p)
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	s.sendImmediateAsync(p)
}

// SendContinuousUpdate delivers an incremental update. The first update for
// a view goes out immediately and marks the view's session as created; later
// updates are held for the grace period and coalesced, so a burst of
// significant changes produces one send.
func (s *Sender) SendContinuousUpdate(p *model.Payload) {
	if p == nil {
		return
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}

	if !s.sessionCreated[p.ViewID] {
		s.sessionCreated[p.ViewID] = true
		s.mu.Unlock()
		s.sendImmediateAsync(p)
		return
	}

	s.latestUpdate[p.ViewID] = p
	if _, waiting := s.pendingUpdate[p.ViewID]; waiting {
		s.mu.Unlock()
		return
	}
	viewID := p.ViewID
	s.pendingUpdate[viewID] = time.AfterFunc(s.cfg.UpdateGrace, func() {
		s.mu.Lock()
		latest := s.latestUpdate[viewID]
		delete(s.latestUpdate, viewID)
		delete(s.pendingUpdate, viewID)
		closed := s.closed
		s.mu.Unlock()
		if latest != nil && !closed {
			s.sendImmediate(latest)
		}
	})
	s.mu.Unlock()
}

// SendEvent posts a discrete event (fire-and-forget).
func (s *Sender) SendEvent(ev *model.EventPayload) {
	go func() {
		if err := s.transport.Post(context.Background(), EventsPath, ev); err != nil {
			util.LogWarnf("Event send failed: %v", err)
		}
	}()
}

// Identify posts user identity and waits for the result.
func (s *Sender) Identify(ctx context.Context, id *model.IdentifyPayload) error {
	return s.transport.Post(ctx, IdentifyPath, id)
}

// ForceFlush sends every queued payload synchronously over the beacon path
// and clears the queue and any pending timers. Used on page unload, when an
// asynchronous send would never finish.
func (s *Sender) ForceFlush() {
	s.mu.Lock()
	queue := s.queue
	s.queue = nil
	if s.flushTimer != nil {
		s.flushTimer.Stop()
		s.flushTimer = nil
	}
	for id, t := range s.pendingUpdate {
		t.Stop()
		delete(s.pendingUpdate, id)
		if latest := s.latestUpdate[id]; latest != nil {
			queue = append(queue, latest)
			delete(s.latestUpdate, id)
		}
	}
	s.mu.Unlock()

	for _, p := range queue {
		p.SendStrategy = model.StrategyBeacon
		p.SendTimestamp = now().UnixMilli()
		if err := s.transport.PostBeacon(CollectPath, p); err != nil {
			util.LogWarnf("Beacon send failed for view %s: %v", p.ViewID, err)
			s.mu.Lock()
			s.dropped++
			s.mu.Unlock()
		}
	}
}

// Close stops the sender after a final flush, waiting out any in-flight
// immediate sends.
func (s *Sender) Close() {
	s.ForceFlush()
	s.inflight.Wait()
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

// Stats returns delivery counters (status reporting).
func (s *Sender) Stats() (immediate, batched, dropped, queued int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sentImmediate, s.sentBatched, s.dropped, len(s.queue)
}

// sendImmediateAsync transmits off the caller's goroutine so view completion
// never blocks signal dispatch on a slow collector.
func (s *Sender) sendImmediateAsync(p *model.Payload) {
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		s.sendImmediate(p)
	}()
}

// sendImmediate transmits now; a failure gets exactly one retry over the
// beacon path.
func (s *Sender) sendImmediate(p *model.Payload) {
	p.SendStrategy = model.StrategyImmediate
	p.SendTimestamp = now().UnixMilli()

	if err := s.transport.Post(context.Background(), CollectPath, p); err != nil {
		util.LogWarnf("Immediate send failed for view %s, retrying synchronously: %v", p.ViewID, err)
		p.SendStrategy = model.StrategyRetry
		if err := s.transport.PostBeacon(CollectPath, p); err != nil {
			util.LogErrorf("Synchronous retry failed for view %s: %v", p.ViewID, err)
			s.mu.Lock()
			s.dropped++
			s.mu.Unlock()
			return
		}
	}

	s.mu.Lock()
	s.sentImmediate++
	s.mu.Unlock()
}

// enqueueLocked adds to the batch queue, flushing on size and arming the
// timeout flush otherwise. Caller holds s.mu.
func (s *Sender) enqueueLocked(p *model.Payload) {
	p.SendStrategy = model.StrategyBatched
	s.queue = append(s.queue, p)

	if len(s.queue) >= s.cfg.BatchSize {
		queue := s.queue
		s.queue = nil
		if s.flushTimer != nil {
			s.flushTimer.Stop()
			s.flushTimer = nil
		}
		go s.sendBatch(queue)
		return
	}

	if s.flushTimer == nil {
		s.flushTimer = time.AfterFunc(s.cfg.BatchTimeout, func() {
			s.mu.Lock()
			queue := s.queue
			s.queue = nil
			s.flushTimer = nil
			s.mu.Unlock()
			s.sendBatch(queue)
		})
	}
}

// sendBatch transmits queued payloads with a small stagger between items to
// avoid bursts. Failures are logged and dropped.
func (s *Sender) sendBatch(queue []*model.Payload) {
	for i, p := range queue {
		if i > 0 {
			time.Sleep(s.cfg.Stagger)
		}
		p.SendTimestamp = now().UnixMilli()
		if err := s.transport.Post(context.Background(), CollectPath, p); err != nil {
			util.LogWarnf("Batched send failed for view %s (dropped): %v", p.ViewID, err)
			s.mu.Lock()
			s.dropped++
			s.mu.Unlock()
			continue
		}
		s.mu.Lock()
		s.sentBatched++
		s.mu.Unlock()
	}
}

// cancelPendingUpdateLocked drops a delayed continuous update once the
// view's final payload is on its way. Caller holds s.mu.
func (s *Sender) cancelPendingUpdateLocked(viewID string) {
	if t, ok := s.pendingUpdate[viewID]; ok {
		t.Stop()
		delete(s.pendingUpdate, viewID)
		delete(s.latestUpdate, viewID)
	}
}
