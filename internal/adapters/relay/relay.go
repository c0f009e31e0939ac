// Package relay bridges destinations that have no native Go client. An
// external relay process talks to the actual platform API and exchanges
// normalized events and actions with us over NATS.
package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/valueadders/papito/internal/platform"
)

const (
	// SubjectEvents carries inbound events from the relay process.
	SubjectEvents = "papito.relay.events"
	// SubjectActions carries outbound actions to the relay process.
	SubjectActions = "papito.relay.actions"
	// SubjectResults carries execution results back, request-scoped.
	SubjectResults = "papito.relay.results"
)

const (
	// pollInterval is the steady-state poll cadence in poll mode.
	pollInterval = 300 * time.Second
	// pollErrorBackoff replaces the cadence after a failed poll.
	pollErrorBackoff = 60 * time.Second
	// executeTimeout bounds one request/reply round trip.
	executeTimeout = 10 * time.Second
)

// Options configures the relay adapter.
type Options struct {
	URL   string
	Token string
	// Dest is the logical destination the relay fronts (defaults to relay).
	Dest platform.Destination
	// Poll enables periodic event pulls in addition to the subscription,
	// for relays that cannot push.
	Poll bool
}

// Adapter speaks to a relay process over NATS. Subscription is the
// primary event path; polling is a fallback for push-less relays.
type Adapter struct {
	opts Options
	log  zerolog.Logger

	pacer *rate.Limiter

	mu        sync.Mutex
	nc        *nats.Conn
	subs      []*nats.Subscription
	handlers  []platform.EventHandler
	connected bool
	pollStop  context.CancelFunc

	eventsIn   int
	actionsOut int
	pollErrors int
}

// New creates a relay adapter. The connection is made in Connect.
func New(opts Options, log zerolog.Logger) *Adapter {
	if opts.Dest == "" {
		opts.Dest = platform.DestRelay
	}
	return &Adapter{
		opts:  opts,
		log:   log,
		pacer: rate.NewLimiter(rate.Every(time.Second), 3),
	}
}

func (a *Adapter) Destination() platform.Destination { return a.opts.Dest }

// Connect dials NATS with retry and starts the poll loop when enabled.
func (a *Adapter) Connect(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.connected {
		return nil
	}

	natsOpts := []nats.Option{
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(60),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				a.log.Warn().Err(err).Msg("nats disconnected")
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			a.log.Info().Msg("nats reconnected")
		}),
	}
	if a.opts.Token != "" {
		natsOpts = append(natsOpts, nats.Token(a.opts.Token))
	}

	nc, err := nats.Connect(a.opts.URL, natsOpts...)
	if err != nil {
		return fmt.Errorf("nats connect: %w", err)
	}
	a.nc = nc
	a.connected = true

	if a.opts.Poll {
		pollCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		a.pollStop = cancel
		go a.pollLoop(pollCtx)
	}
	a.log.Info().Str("url", a.opts.URL).Bool("poll", a.opts.Poll).Msg("relay connected")
	return nil
}

// Disconnect unsubscribes, stops polling and closes the connection.
func (a *Adapter) Disconnect() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.connected {
		return nil
	}
	a.connected = false
	if a.pollStop != nil {
		a.pollStop()
		a.pollStop = nil
	}
	for _, sub := range a.subs {
		_ = sub.Unsubscribe()
	}
	a.subs = nil
	a.nc.Close()
	a.nc = nil
	return nil
}

func (a *Adapter) Connected() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.connected
}

// Listen subscribes to the relay's event subject.
func (a *Adapter) Listen(handler platform.EventHandler) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.handlers = append(a.handlers, handler)
	if a.nc == nil || len(a.subs) > 0 {
		return
	}

	sub, err := a.nc.Subscribe(SubjectEvents, func(msg *nats.Msg) {
		var ev platform.Event
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			a.log.Warn().Err(err).Msg("malformed relay event dropped")
			return
		}
		if ev.Destination == "" {
			ev.Destination = a.opts.Dest
		}
		ev.ReceivedAt = time.Now().UTC()
		a.deliver(ev)
	})
	if err != nil {
		a.log.Error().Err(err).Msg("relay event subscription failed")
		return
	}
	a.subs = append(a.subs, sub)
	a.log.Info().Str("subject", SubjectEvents).Msg("subscribed to relay events")
}

// StopListening drops the subscription and all handlers.
func (a *Adapter) StopListening() {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, sub := range a.subs {
		_ = sub.Unsubscribe()
	}
	a.subs = nil
	a.handlers = nil
}

func (a *Adapter) deliver(ev platform.Event) {
	a.mu.Lock()
	a.eventsIn++
	handlers := append([]platform.EventHandler(nil), a.handlers...)
	a.mu.Unlock()
	for _, h := range handlers {
		h(ev)
	}
}

// pollLoop asks the relay for pending events on a fixed cadence. A failed
// poll shortens the next wait so recovery is quick.
func (a *Adapter) pollLoop(ctx context.Context) {
	wait := pollInterval
	timer := time.NewTimer(wait)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		if err := a.pollOnce(ctx); err != nil {
			a.mu.Lock()
			a.pollErrors++
			a.mu.Unlock()
			a.log.Warn().Err(err).Msg("relay poll failed")
			wait = pollErrorBackoff
		} else {
			wait = pollInterval
		}
		timer.Reset(wait)
	}
}

// pollOnce requests buffered events over request/reply.
func (a *Adapter) pollOnce(ctx context.Context) error {
	a.mu.Lock()
	nc := a.nc
	a.mu.Unlock()
	if nc == nil {
		return fmt.Errorf("relay: not connected")
	}

	reqCtx, cancel := context.WithTimeout(ctx, executeTimeout)
	defer cancel()
	msg, err := nc.RequestWithContext(reqCtx, SubjectEvents+".poll", nil)
	if err != nil {
		return err
	}

	var events []platform.Event
	if err := json.Unmarshal(msg.Data, &events); err != nil {
		return fmt.Errorf("relay: malformed poll response: %w", err)
	}
	for _, ev := range events {
		if ev.Destination == "" {
			ev.Destination = a.opts.Dest
		}
		ev.ReceivedAt = time.Now().UTC()
		a.deliver(ev)
	}
	return nil
}

// Execute sends the action over request/reply and waits for the relay's
// result. Outbound calls are paced so a burst never floods the relay.
func (a *Adapter) Execute(ctx context.Context, action platform.Action) (platform.ActionResult, error) {
	a.mu.Lock()
	nc := a.nc
	a.mu.Unlock()
	if nc == nil {
		return platform.ActionResult{}, fmt.Errorf("relay: not connected")
	}

	if err := a.pacer.Wait(ctx); err != nil {
		return platform.ActionResult{}, err
	}

	payload, err := json.Marshal(action)
	if err != nil {
		return platform.ActionResult{}, fmt.Errorf("marshal action: %w", err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, executeTimeout)
	defer cancel()
	msg, err := nc.RequestWithContext(reqCtx, SubjectActions, payload)
	if err != nil {
		return platform.ActionResult{}, fmt.Errorf("relay execute: %w", err)
	}

	var res platform.ActionResult
	if err := json.Unmarshal(msg.Data, &res); err != nil {
		return platform.ActionResult{}, fmt.Errorf("relay: malformed result: %w", err)
	}
	if res.ActionID == "" {
		res.ActionID = action.ID
	}
	if res.Destination == "" {
		res.Destination = a.opts.Dest
	}
	if res.ExecutedAt.IsZero() {
		res.ExecutedAt = time.Now().UTC()
	}

	a.mu.Lock()
	a.actionsOut++
	a.mu.Unlock()
	return res, nil
}

// GetUser asks the relay for a user profile.
func (a *Adapter) GetUser(ctx context.Context, userID string) (map[string]any, error) {
	return a.lookup(ctx, "papito.relay.users", userID)
}

// GetContent asks the relay for a content item.
func (a *Adapter) GetContent(ctx context.Context, contentID string) (map[string]any, error) {
	return a.lookup(ctx, "papito.relay.content", contentID)
}

func (a *Adapter) lookup(ctx context.Context, subject, id string) (map[string]any, error) {
	a.mu.Lock()
	nc := a.nc
	a.mu.Unlock()
	if nc == nil {
		return nil, fmt.Errorf("relay: not connected")
	}

	reqCtx, cancel := context.WithTimeout(ctx, executeTimeout)
	defer cancel()
	msg, err := nc.RequestWithContext(reqCtx, subject, []byte(id))
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(msg.Data, &out); err != nil {
		return nil, fmt.Errorf("relay: malformed lookup response: %w", err)
	}
	return out, nil
}

func (a *Adapter) HealthCheck(_ context.Context) map[string]any {
	a.mu.Lock()
	defer a.mu.Unlock()
	status := "healthy"
	if !a.connected {
		status = "disconnected"
	} else if a.nc != nil && !a.nc.IsConnected() {
		status = "reconnecting"
	}
	return map[string]any{
		"status":          status,
		"destination":     string(a.opts.Dest),
		"poll_mode":       a.opts.Poll,
		"poll_errors":     a.pollErrors,
		"events_received": a.eventsIn,
		"actions_sent":    a.actionsOut,
	}
}
