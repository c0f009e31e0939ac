package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/valueadders/papito/internal/gate"
	"github.com/valueadders/papito/internal/platform"
	"github.com/valueadders/papito/internal/value"
)

// Priority controls how valuable an action must be before it goes out on
// a destination.
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
	PriorityDisabled Priority = "disabled"
)

// priorityBars maps a destination priority to the minimum value score an
// action needs to be dispatched there. Disabled destinations never get
// anything.
var priorityBars = map[Priority]float64{
	PriorityCritical: 50,
	PriorityHigh:     60,
	PriorityMedium:   70,
	PriorityLow:      85,
}

// ActionState tracks a coordinated action across its destinations.
type ActionState string

const (
	StatePending   ActionState = "pending"
	StatePartial   ActionState = "partial"
	StateComplete  ActionState = "complete"
	StateAbandoned ActionState = "abandoned"
)

// CoordinatedAction is one logical action fanned out to destinations.
type CoordinatedAction struct {
	ID         string           `json:"id"`
	ActionType value.ActionType `json:"action_type"`
	Content    string           `json:"content"`

	Destinations []platform.Destination                         `json:"destinations"`
	Results      map[platform.Destination]platform.ActionResult `json:"results,omitempty"`
	State        ActionState                                    `json:"state"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ErrDuplicateContent is returned when identical content already went out
// inside the dedup window.
var ErrDuplicateContent = errors.New("duplicate content inside dedup window")

// ErrNotRunning is returned for dispatch attempts before Start.
var ErrNotRunning = errors.New("coordinator is not running")

const (
	maxActionHistory = 500
	maxEventHistory  = 200
)

// dispatchInterval paces outbound calls per destination.
const dispatchInterval = 2 * time.Second

// Learner receives execution outcomes from the event-response pipeline.
// Implementations must be best-effort: a learner failure never fails the
// dispatch.
type Learner interface {
	RecordExecuted(res *gate.Result, engagement map[string]any)
	RecordFailed(res *gate.Result, errMsg string)
}

// Coordinator owns the adapters and fans gated actions out to them. All
// destination-specific behavior lives behind the Adapter interface.
type Coordinator struct {
	gate    *gate.Gate
	learner Learner
	log     zerolog.Logger

	contentDedup *deduper
	eventDedup   *deduper
	limiter      *engagementLimiter

	mu         sync.Mutex
	adapters   map[platform.Destination]platform.Adapter
	priorities map[platform.Destination]Priority
	dispatch   map[platform.Destination]*rate.Limiter
	handlers   []platform.EventHandler
	actions    []*CoordinatedAction
	events     []platform.Event
	running    bool
	cancel     context.CancelFunc

	eventsReceived  int
	eventsDuplicate int
	rateLimited     int
	dispatched      int
	byDestination   map[platform.Destination]*DestinationStats
}

// DestinationStats counts per-destination outcomes.
type DestinationStats struct {
	Executed  int `json:"executed"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Events    int `json:"events"`
}

// New creates a coordinator over the gate. Adapters are registered
// separately before Start.
func New(g *gate.Gate, log zerolog.Logger) *Coordinator {
	return &Coordinator{
		gate:          g,
		log:           log,
		contentDedup:  newDeduper(dedupWindow),
		eventDedup:    newDeduper(dedupWindow),
		limiter:       newEngagementLimiter(maxEngagementsPerHour),
		adapters:      make(map[platform.Destination]platform.Adapter),
		priorities:    make(map[platform.Destination]Priority),
		dispatch:      make(map[platform.Destination]*rate.Limiter),
		byDestination: make(map[platform.Destination]*DestinationStats),
	}
}

// SetLearner attaches the feedback loop for dispatched responses.
func (c *Coordinator) SetLearner(l Learner) {
	c.mu.Lock()
	c.learner = l
	c.mu.Unlock()
}

// RegisterAdapter adds a destination with its priority. Registering the
// same destination twice replaces the adapter.
func (c *Coordinator) RegisterAdapter(a platform.Adapter, priority Priority) {
	c.mu.Lock()
	defer c.mu.Unlock()
	dest := a.Destination()
	c.adapters[dest] = a
	c.priorities[dest] = priority
	c.dispatch[dest] = rate.NewLimiter(rate.Every(dispatchInterval), 1)
	if c.byDestination[dest] == nil {
		c.byDestination[dest] = &DestinationStats{}
	}
	c.log.Info().Str("destination", string(dest)).Str("priority", string(priority)).Msg("adapter registered")
}

// SetPriority changes a destination's priority at runtime (policy reload).
func (c *Coordinator) SetPriority(dest platform.Destination, priority Priority) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.adapters[dest]; ok {
		c.priorities[dest] = priority
	}
}

// SetEngagementCap changes the per-user hourly engagement limit.
// Non-positive values restore the default.
func (c *Coordinator) SetEngagementCap(max int) {
	c.limiter.SetMax(max)
}

// OnEvent registers a handler invoked for every non-duplicate event.
func (c *Coordinator) OnEvent(h platform.EventHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers = append(c.handlers, h)
}

// Start connects every registered adapter and begins listening. A single
// adapter failing to connect fails the whole start.
func (c *Coordinator) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return errors.New("coordinator already started")
	}
	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	adapters := make([]platform.Adapter, 0, len(c.adapters))
	for _, a := range c.adapters {
		adapters = append(adapters, a)
	}
	c.mu.Unlock()

	g, gctx := errgroup.WithContext(runCtx)
	for _, a := range adapters {
		g.Go(func() error {
			if err := a.Connect(gctx); err != nil {
				return fmt.Errorf("connect %s: %w", a.Destination(), err)
			}
			a.Listen(c.routeEvent)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		cancel()
		return err
	}

	c.mu.Lock()
	c.running = true
	c.mu.Unlock()
	c.log.Info().Int("adapters", len(adapters)).Msg("coordinator started")
	return nil
}

// Stop cancels listeners and disconnects adapters. In-flight actions keep
// whatever state they reached; nothing is promoted to complete.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	cancel := c.cancel
	adapters := make([]platform.Adapter, 0, len(c.adapters))
	for _, a := range c.adapters {
		adapters = append(adapters, a)
	}
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	for _, a := range adapters {
		a.StopListening()
		if err := a.Disconnect(); err != nil {
			c.log.Warn().Err(err).Str("destination", string(a.Destination())).Msg("disconnect failed")
		}
	}
	c.log.Info().Msg("coordinator stopped")
}

// routeEvent normalizes adapter callbacks into the handler chain. Dedup
// is keyed on content alone so the same text cross-posted by different
// adapters, or redelivered under a fresh id, collapses to one logical
// event inside the window.
func (c *Coordinator) routeEvent(ev platform.Event) {
	now := time.Now().UTC()
	if ev.ReceivedAt.IsZero() {
		ev.ReceivedAt = now
	}

	dup := ev.Content != "" && c.eventDedup.Seen(ev.Content, now)

	c.mu.Lock()
	c.eventsReceived++
	if dup {
		c.eventsDuplicate++
	} else {
		if ds := c.byDestination[ev.Destination]; ds != nil {
			ds.Events++
		}
		c.events = append(c.events, ev)
		if len(c.events) > maxEventHistory {
			c.events = c.events[len(c.events)-maxEventHistory:]
		}
	}
	handlers := append([]platform.EventHandler(nil), c.handlers...)
	c.mu.Unlock()

	if dup {
		c.log.Debug().Str("event_id", ev.ID).Msg("duplicate event dropped")
		return
	}

	c.log.Debug().
		Str("destination", string(ev.Destination)).
		Str("category", string(ev.Category)).
		Str("event_id", ev.ID).
		Msg("event routed")
	for _, h := range handlers {
		h(ev)
	}
}

// ShouldRespondOn reports whether a score clears the destination's
// priority bar.
func (c *Coordinator) ShouldRespondOn(dest platform.Destination, score float64) bool {
	c.mu.Lock()
	priority, ok := c.priorities[dest]
	c.mu.Unlock()
	if !ok || priority == PriorityDisabled {
		return false
	}
	bar, ok := priorityBars[priority]
	if !ok {
		return false
	}
	return score >= bar
}

// ExecuteAction fans already-approved content out to the given
// destinations, applying dedup, per-user pacing and content adaptation.
// The returned action reports per-destination results and a final state.
func (c *Coordinator) ExecuteAction(ctx context.Context, at value.ActionType, content string, targetUserID string, dests []platform.Destination) (*CoordinatedAction, error) {
	return c.execute(ctx, at, content, targetUserID, nil, dests)
}

// execute is the shared fan-out path. When src is non-nil the dispatched
// actions carry its native ids so reply-style actions land on the right
// message and thread.
func (c *Coordinator) execute(ctx context.Context, at value.ActionType, content string, targetUserID string, src *platform.Event, dests []platform.Destination) (*CoordinatedAction, error) {
	c.mu.Lock()
	running := c.running
	c.mu.Unlock()
	if !running {
		return nil, ErrNotRunning
	}

	now := time.Now().UTC()
	if content != "" && c.contentDedup.Seen(content, now) {
		return nil, ErrDuplicateContent
	}

	ca := &CoordinatedAction{
		ID:           value.NewActionID(),
		ActionType:   at,
		Content:      content,
		Destinations: dests,
		Results:      make(map[platform.Destination]platform.ActionResult, len(dests)),
		State:        StatePending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	succeeded := 0
	for _, dest := range dests {
		res := c.executeOn(ctx, dest, at, content, targetUserID, src, ca.ID)
		ca.Results[dest] = res
		if res.Success {
			succeeded++
		}
		ca.UpdatedAt = time.Now().UTC()

		c.mu.Lock()
		if ds := c.byDestination[dest]; ds != nil {
			ds.Executed++
			if res.Success {
				ds.Succeeded++
			} else {
				ds.Failed++
			}
		}
		c.mu.Unlock()
	}

	switch {
	case succeeded == len(dests) && len(dests) > 0:
		ca.State = StateComplete
	case succeeded > 0:
		ca.State = StatePartial
	default:
		ca.State = StateAbandoned
	}

	c.mu.Lock()
	c.dispatched++
	c.actions = append(c.actions, ca)
	if len(c.actions) > maxActionHistory {
		c.actions = c.actions[len(c.actions)-maxActionHistory:]
	}
	c.mu.Unlock()

	c.log.Info().
		Str("action_id", ca.ID).
		Str("action_type", string(at)).
		Str("state", string(ca.State)).
		Int("destinations", len(dests)).
		Msg("coordinated action finished")
	return ca, nil
}

// executeOn runs one destination leg. Failures become failed results, not
// errors: one bad destination never aborts the fan-out.
func (c *Coordinator) executeOn(ctx context.Context, dest platform.Destination, at value.ActionType, content, targetUserID string, src *platform.Event, actionID string) platform.ActionResult {
	fail := func(code, msg string) platform.ActionResult {
		return platform.ActionResult{
			ActionID:     actionID,
			Destination:  dest,
			ErrorCode:    code,
			ErrorMessage: msg,
			ExecutedAt:   time.Now().UTC(),
		}
	}

	c.mu.Lock()
	adapter, ok := c.adapters[dest]
	pacer := c.dispatch[dest]
	c.mu.Unlock()
	if !ok {
		return fail("no_adapter", "no adapter registered for destination")
	}
	if !adapter.Connected() {
		return fail("not_connected", "adapter is not connected")
	}

	now := time.Now().UTC()
	if !c.limiter.Allow(dest, targetUserID, now) {
		c.mu.Lock()
		c.rateLimited++
		c.mu.Unlock()
		c.log.Debug().Str("destination", string(dest)).Str("user_id", targetUserID).
			Msg("engagement rate limit reached, skipping")
		return fail("rate_limited", "per-user engagement limit reached")
	}

	if pacer != nil {
		if err := pacer.Wait(ctx); err != nil {
			return fail("canceled", err.Error())
		}
	}

	action := platform.Action{
		ID:           actionID,
		Destination:  dest,
		Kind:         string(at),
		Content:      adaptContent(dest, content),
		TargetUserID: targetUserID,
		CreatedAt:    now,
	}
	if src != nil {
		action.TargetContentID = src.SourceID
		action.ReplyToID = src.SourceID
		action.ConversationID = src.ConversationID
		action.TriggeredBy = src.ID
	}
	res, err := adapter.Execute(ctx, action)
	if err != nil {
		c.log.Warn().Err(err).Str("destination", string(dest)).Msg("execute failed")
		return fail("execute_error", err.Error())
	}
	if res.ActionID == "" {
		res.ActionID = actionID
	}
	if res.Destination == "" {
		res.Destination = dest
	}
	if res.Success {
		c.limiter.Record(dest, targetUserID, now)
	}
	return res
}

// RespondToEvent runs the full pipeline for one inbound event: build the
// scoring context, gate the candidate response, check the destination
// bar, dispatch and report the outcome to the learner. A nil action with
// a nil error means the gate or the priority bar said no.
func (c *Coordinator) RespondToEvent(ctx context.Context, ev platform.Event, at value.ActionType, content string, vctx value.Context) (*gate.Result, *CoordinatedAction, error) {
	if vctx.UserID == "" {
		vctx.UserID = ev.UserID
	}
	if vctx.UserName == "" {
		vctx.UserName = ev.UserName
	}
	if vctx.TheirMessage == "" {
		vctx.TheirMessage = ev.Content
	}
	if vctx.EventTime == "" && !ev.CreatedAt.IsZero() {
		vctx.EventTime = ev.CreatedAt.Format(time.RFC3339)
	}

	res := c.gate.Evaluate(at, content, vctx)
	if res.Decision != gate.DecisionPass {
		return res, nil, nil
	}
	if !c.ShouldRespondOn(ev.Destination, res.Score.TotalScore) {
		c.log.Debug().
			Str("destination", string(ev.Destination)).
			Float64("score", res.Score.TotalScore).
			Msg("score below destination priority bar")
		return res, nil, nil
	}

	ca, err := c.execute(ctx, at, content, ev.UserID, &ev, []platform.Destination{ev.Destination})

	c.mu.Lock()
	learner := c.learner
	c.mu.Unlock()
	if learner != nil && ca != nil {
		for _, leg := range ca.Results {
			if leg.Success {
				learner.RecordExecuted(res, nil)
			} else {
				learner.RecordFailed(res, leg.ErrorMessage)
			}
		}
	}
	return res, ca, err
}

// Events returns up to n most recent non-duplicate events, newest last.
func (c *Coordinator) Events(n int) []platform.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	src := c.events
	if n > 0 && len(src) > n {
		src = src[len(src)-n:]
	}
	out := make([]platform.Event, len(src))
	copy(out, src)
	return out
}

// Actions returns up to n most recent coordinated actions, newest last.
func (c *Coordinator) Actions(n int) []*CoordinatedAction {
	c.mu.Lock()
	defer c.mu.Unlock()
	src := c.actions
	if n > 0 && len(src) > n {
		src = src[len(src)-n:]
	}
	out := make([]*CoordinatedAction, len(src))
	copy(out, src)
	return out
}

// HealthCheck gathers adapter health under one map keyed by destination.
func (c *Coordinator) HealthCheck(ctx context.Context) map[platform.Destination]map[string]any {
	c.mu.Lock()
	adapters := make(map[platform.Destination]platform.Adapter, len(c.adapters))
	for d, a := range c.adapters {
		adapters[d] = a
	}
	c.mu.Unlock()

	out := make(map[platform.Destination]map[string]any, len(adapters))
	for d, a := range adapters {
		out[d] = a.HealthCheck(ctx)
	}
	return out
}

// Stats is a snapshot of coordinator counters.
type Stats struct {
	Adapters        int                               `json:"adapters"`
	Running         bool                              `json:"running"`
	EventsReceived  int                               `json:"events_received"`
	EventsDuplicate int                               `json:"events_duplicate"`
	RateLimited     int                               `json:"rate_limited"`
	Dispatched      int                               `json:"dispatched"`
	ByState         map[ActionState]int               `json:"by_state"`
	Priorities      map[platform.Destination]Priority `json:"priorities"`

	ByDestination map[platform.Destination]DestinationStats `json:"by_destination"`
}

// Stats returns current counters.
func (c *Coordinator) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := Stats{
		Adapters:        len(c.adapters),
		Running:         c.running,
		EventsReceived:  c.eventsReceived,
		EventsDuplicate: c.eventsDuplicate,
		RateLimited:     c.rateLimited,
		Dispatched:      c.dispatched,
		ByState:         make(map[ActionState]int),
		Priorities:      make(map[platform.Destination]Priority, len(c.priorities)),
	}
	for _, ca := range c.actions {
		s.ByState[ca.State]++
	}
	for d, p := range c.priorities {
		s.Priorities[d] = p
	}
	s.ByDestination = make(map[platform.Destination]DestinationStats, len(c.byDestination))
	for d, ds := range c.byDestination {
		s.ByDestination[d] = *ds
	}
	return s
}
