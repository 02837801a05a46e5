package loading

import (
	"errors"
	"sync"

	"github.com/penwyp/go-optima-rum/internal/core/model"
)

// NetworkActivityObserver is the capability interface wrapping the host
// environment's HTTP layer. A tracker acquires the observation slot for the
// lifetime of one view; release restores whatever sink was installed before,
// not a hardcoded original, so nested or sequential acquisitions compose.
type NetworkActivityObserver interface {
	// Acquire installs sink as the receiver of network activity and
	// returns a release function restoring the previous receiver.
	Acquire(sink func(*model.Signal)) (release func(), err error)
}

// ErrObserverBusy is returned when an acquisition is rejected.
var ErrObserverBusy = errors.New("network activity observer already held")

// InterceptRegistry is the default NetworkActivityObserver: the orchestrator
// feeds every network signal into Dispatch and the current holder receives
// it. It replaces global prototype patching with explicit, scoped
// acquisition.
type InterceptRegistry struct {
	mu    sync.Mutex
	sinks []*sinkEntry // acquisition stack, last is current
}

type sinkEntry struct {
	fn func(*model.Signal)
}

// NewInterceptRegistry creates an empty registry.
func NewInterceptRegistry() *InterceptRegistry {
	return &InterceptRegistry{}
}

// Acquire pushes sink onto the acquisition stack.
func (r *InterceptRegistry) Acquire(sink func(*model.Signal)) (func(), error) {
	if sink == nil {
		return nil, errors.New("nil network activity sink")
	}

	entry := &sinkEntry{fn: sink}
	r.mu.Lock()
	r.sinks = append(r.sinks, entry)
	r.mu.Unlock()

	var once sync.Once
	release := func() {
		once.Do(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			// Remove this acquisition by identity; anything acquired above
			// it stays, anything below becomes current when the stack
			// drains.
			for i, e := range r.sinks {
				if e == entry {
					r.sinks = append(r.sinks[:i], r.sinks[i+1:]...)
					break
				}
			}
		})
	}
	return release, nil
}

// Dispatch delivers a network signal to the current holder, if any.
func (r *InterceptRegistry) Dispatch(sig *model.Signal) {
	r.mu.Lock()
	var sink func(*model.Signal)
	if n := len(r.sinks); n > 0 {
		sink = r.sinks[n-1].fn
	}
	r.mu.Unlock()

	if sink != nil {
		sink(sig)
	}
}

// Held reports whether any sink currently holds the observer.
func (r *InterceptRegistry) Held() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sinks) > 0
}
