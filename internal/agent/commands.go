package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/penwyp/go-optima-rum/internal/core/model"
	"github.com/penwyp/go-optima-rum/internal/util"
)

// Command is one host-issued instruction. Commands issued before init are
// queued and replayed in order the moment init runs.
type Command struct {
	Name string                 `json:"name"`
	Args map[string]interface{} `json:"args,omitempty"`
}

const (
	CmdInit         = "init"
	CmdTrack        = "track"
	CmdIdentify     = "identify"
	CmdGetStatus    = "getStatus"
	CmdUpdateConfig = "updateConfig"
)

// Execute runs one command. Unknown commands are an error; a disabled
// engine swallows everything silently.
func (o *Orchestrator) Execute(cmd Command) error {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return fmt.Errorf("engine is shut down")
	}
	if !o.initialized {
		if cmd.Name != CmdInit {
			o.pending = append(o.pending, cmd)
			o.mu.Unlock()
			return nil
		}
		err := o.initLocked()
		queued := o.pending
		o.pending = nil
		o.mu.Unlock()
		if err != nil {
			return err
		}
		for _, q := range queued {
			if qErr := o.Execute(q); qErr != nil {
				util.LogWarnf("queued command %s failed: %v", q.Name, qErr)
			}
		}
		return nil
	}
	disabled := o.disabled
	o.mu.Unlock()

	if disabled {
		return nil
	}

	switch cmd.Name {
	case CmdInit:
		return nil // idempotent
	case CmdTrack:
		name, _ := cmd.Args["name"].(string)
		if name == "" {
			return fmt.Errorf("track: missing event name")
		}
		props, _ := cmd.Args["properties"].(map[string]interface{})
		o.Track(name, props)
		return nil
	case CmdIdentify:
		userID, _ := cmd.Args["user_id"].(string)
		if userID == "" {
			return fmt.Errorf("identify: missing user_id")
		}
		traits, _ := cmd.Args["traits"].(map[string]interface{})
		return o.Identify(context.Background(), userID, traits)
	case CmdGetStatus:
		return nil // host reads Status() directly
	case CmdUpdateConfig:
		return o.UpdateConfig(cmd.Args)
	default:
		return fmt.Errorf("unknown command %q", cmd.Name)
	}
}

// Track records a discrete event on the active view and ships it.
func (o *Orchestrator) Track(name string, props map[string]interface{}) {
	o.mu.Lock()
	ready := o.initialized && !o.disabled && !o.closed
	o.mu.Unlock()
	if !ready {
		return
	}
	o.recordEvent(name, props)
}

// Identify attaches a user identity to the session.
func (o *Orchestrator) Identify(ctx context.Context, userID string, traits map[string]interface{}) error {
	o.mu.Lock()
	ready := o.initialized && !o.disabled && !o.closed
	sessionID := o.sessionID
	o.mu.Unlock()
	if !ready {
		return nil
	}
	return o.out.Identify(ctx, &model.IdentifyPayload{
		SessionID: sessionID,
		UserID:    userID,
		Traits:    traits,
		Timestamp: time.Now().UnixMilli(),
	})
}

// UpdateConfig applies the subset of settings that are safe to change at
// runtime. Anything else is ignored.
func (o *Orchestrator) UpdateConfig(args map[string]interface{}) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if debug, ok := args["debug"].(bool); ok {
		o.cfg.Debug = debug
		level := "warn"
		if debug {
			level = "debug"
		}
		util.InitLogger(level, "", debug)
	}
	if enabled, ok := args["enable_route_change_tracking"].(bool); ok {
		o.cfg.EnableRouteChangeTracking = enabled
	}
	return nil
}

// Status is a point-in-time snapshot for the host.
type Status struct {
	Initialized   bool   `json:"initialized"`
	Disabled      bool   `json:"disabled"`
	SessionID     string `json:"session_id"`
	ActiveViewID  string `json:"active_view_id,omitempty"`
	ActiveViewURL string `json:"active_view_url,omitempty"`
	ViewType      string `json:"view_type,omitempty"`
	ViewHistory   int    `json:"view_history"`
	QueuedViews   int    `json:"queued_views"`
	SentImmediate int    `json:"sent_immediate"`
	SentBatched   int    `json:"sent_batched"`
	Dropped       int    `json:"dropped"`
}

// GetStatus reports the engine state.
func (o *Orchestrator) GetStatus() Status {
	o.mu.Lock()
	st := Status{
		Initialized: o.initialized,
		Disabled:    o.disabled,
		SessionID:   o.sessionID,
	}
	views, out := o.views, o.out
	o.mu.Unlock()

	if views == nil || out == nil {
		return st
	}
	if v := views.ActiveView(); v != nil {
		st.ActiveViewID = v.ID
		st.ActiveViewURL = v.URL
		st.ViewType = string(v.Type)
	}
	st.ViewHistory = len(views.History())
	st.SentImmediate, st.SentBatched, st.Dropped, st.QueuedViews = out.Stats()
	return st
}
