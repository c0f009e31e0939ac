package coordinator

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/valueadders/papito/internal/gate"
	"github.com/valueadders/papito/internal/platform"
	"github.com/valueadders/papito/internal/value"
)

func newTestCoordinator(t *testing.T) (*Coordinator, *platform.MockAdapter) {
	t.Helper()
	calc := value.NewCalculator(value.DefaultScoringConfig(), zerolog.Nop())
	g := gate.New(calc, zerolog.Nop())
	c := New(g, zerolog.Nop())

	mock := platform.NewMockAdapter(platform.DestMock)
	c.RegisterAdapter(mock, PriorityCritical)
	require.NoError(t, c.Start(context.Background()))
	t.Cleanup(c.Stop)

	unthrottle(c, platform.DestMock)
	return c, mock
}

// unthrottle removes dispatch pacing so tests do not sleep.
func unthrottle(c *Coordinator, dest platform.Destination) {
	c.mu.Lock()
	c.dispatch[dest] = rate.NewLimiter(rate.Inf, 1)
	c.mu.Unlock()
}

func TestExecuteActionCompletes(t *testing.T) {
	c, mock := newTestCoordinator(t)

	ca, err := c.ExecuteAction(context.Background(), value.ActionTweet,
		"new track out now, love to everyone", "", []platform.Destination{platform.DestMock})
	require.NoError(t, err)

	assert.Equal(t, StateComplete, ca.State)
	require.Len(t, ca.Results, 1)
	assert.True(t, ca.Results[platform.DestMock].Success)
	require.Len(t, mock.Actions(), 1)
	assert.Equal(t, string(value.ActionTweet), mock.Actions()[0].Kind)
}

func TestExecuteActionRejectsDuplicateContent(t *testing.T) {
	c, _ := newTestCoordinator(t)

	_, err := c.ExecuteAction(context.Background(), value.ActionTweet,
		"same message twice", "", []platform.Destination{platform.DestMock})
	require.NoError(t, err)

	_, err = c.ExecuteAction(context.Background(), value.ActionTweet,
		"Same  message   TWICE", "", []platform.Destination{platform.DestMock})
	assert.ErrorIs(t, err, ErrDuplicateContent)
}

func TestExecuteActionPartialOnFailure(t *testing.T) {
	calc := value.NewCalculator(value.DefaultScoringConfig(), zerolog.Nop())
	c := New(gate.New(calc, zerolog.Nop()), zerolog.Nop())

	good := platform.NewMockAdapter(platform.DestDiscord)
	bad := platform.NewMockAdapter(platform.DestRelay)
	c.RegisterAdapter(good, PriorityHigh)
	c.RegisterAdapter(bad, PriorityHigh)
	require.NoError(t, c.Start(context.Background()))
	defer c.Stop()
	unthrottle(c, platform.DestDiscord)
	unthrottle(c, platform.DestRelay)

	bad.FailNextExecute()

	ca, err := c.ExecuteAction(context.Background(), value.ActionTweet,
		"going out to two places", "",
		[]platform.Destination{platform.DestDiscord, platform.DestRelay})
	require.NoError(t, err)

	assert.Equal(t, StatePartial, ca.State)
	assert.True(t, ca.Results[platform.DestDiscord].Success)
	assert.False(t, ca.Results[platform.DestRelay].Success)
	assert.Equal(t, "execute_error", ca.Results[platform.DestRelay].ErrorCode)
}

func TestExecuteActionRequiresRunning(t *testing.T) {
	calc := value.NewCalculator(value.DefaultScoringConfig(), zerolog.Nop())
	c := New(gate.New(calc, zerolog.Nop()), zerolog.Nop())
	c.RegisterAdapter(platform.NewMockAdapter(platform.DestMock), PriorityMedium)

	_, err := c.ExecuteAction(context.Background(), value.ActionTweet, "hi", "",
		[]platform.Destination{platform.DestMock})
	assert.ErrorIs(t, err, ErrNotRunning)
}

func TestPerUserEngagementLimit(t *testing.T) {
	c, mock := newTestCoordinator(t)

	for i := 0; i < maxEngagementsPerHour; i++ {
		ca, err := c.ExecuteAction(context.Background(), value.ActionReply,
			fmt.Sprintf("reply number %d", i), "fan_1",
			[]platform.Destination{platform.DestMock})
		require.NoError(t, err)
		assert.Equal(t, StateComplete, ca.State)
	}

	ca, err := c.ExecuteAction(context.Background(), value.ActionReply,
		"one reply too many", "fan_1", []platform.Destination{platform.DestMock})
	require.NoError(t, err)
	assert.Equal(t, StateAbandoned, ca.State)
	assert.Equal(t, "rate_limited", ca.Results[platform.DestMock].ErrorCode)
	assert.Len(t, mock.Actions(), maxEngagementsPerHour)

	// A different user is unaffected.
	ca, err = c.ExecuteAction(context.Background(), value.ActionReply,
		"hello other fan", "fan_2", []platform.Destination{platform.DestMock})
	require.NoError(t, err)
	assert.Equal(t, StateComplete, ca.State)
}

func TestSetEngagementCapTakesEffect(t *testing.T) {
	c, _ := newTestCoordinator(t)
	c.SetEngagementCap(2)

	for i := 0; i < 2; i++ {
		ca, err := c.ExecuteAction(context.Background(), value.ActionReply,
			fmt.Sprintf("capped reply %d", i), "fan_1",
			[]platform.Destination{platform.DestMock})
		require.NoError(t, err)
		assert.Equal(t, StateComplete, ca.State)
	}

	ca, err := c.ExecuteAction(context.Background(), value.ActionReply,
		"over the lowered cap", "fan_1", []platform.Destination{platform.DestMock})
	require.NoError(t, err)
	assert.Equal(t, StateAbandoned, ca.State)
	assert.Equal(t, "rate_limited", ca.Results[platform.DestMock].ErrorCode)
}

func TestEventDedupDropsRepeats(t *testing.T) {
	c, mock := newTestCoordinator(t)

	var got []platform.Event
	c.OnEvent(func(ev platform.Event) { got = append(got, ev) })

	ev := platform.Event{
		ID:          "ev1",
		Destination: platform.DestMock,
		Category:    platform.EventMention,
		UserID:      "fan_1",
		Content:     "hey papito",
		CreatedAt:   time.Now().UTC(),
	}
	mock.InjectEvent(ev)
	mock.InjectEvent(ev)

	assert.Len(t, got, 1)
	s := c.Stats()
	assert.Equal(t, 2, s.EventsReceived)
	assert.Equal(t, 1, s.EventsDuplicate)
}

func TestEventDedupIsContentBased(t *testing.T) {
	calc := value.NewCalculator(value.DefaultScoringConfig(), zerolog.Nop())
	c := New(gate.New(calc, zerolog.Nop()), zerolog.Nop())

	discord := platform.NewMockAdapter(platform.DestDiscord)
	relay := platform.NewMockAdapter(platform.DestRelay)
	c.RegisterAdapter(discord, PriorityCritical)
	c.RegisterAdapter(relay, PriorityCritical)
	require.NoError(t, c.Start(context.Background()))
	t.Cleanup(c.Stop)

	var got []platform.Event
	c.OnEvent(func(ev platform.Event) { got = append(got, ev) })

	// A redelivery under a fresh id is still the same logical event.
	discord.InjectEvent(platform.Event{
		ID: "e1", Destination: platform.DestDiscord,
		Category: platform.EventMention, UserID: "fan_1",
		Content: "new track out now", CreatedAt: time.Now().UTC(),
	})
	discord.InjectEvent(platform.Event{
		ID: "e2", Destination: platform.DestDiscord,
		Category: platform.EventMention, UserID: "fan_1",
		Content: "new track out now", CreatedAt: time.Now().UTC(),
	})
	// So is the same text cross-posted through another adapter.
	relay.InjectEvent(platform.Event{
		ID: "e3", Destination: platform.DestRelay,
		Category: platform.EventMention, UserID: "fan_1",
		Content: "New  track out NOW", CreatedAt: time.Now().UTC(),
	})

	require.Len(t, got, 1)
	assert.Equal(t, "e1", got[0].ID)
	s := c.Stats()
	assert.Equal(t, 3, s.EventsReceived)
	assert.Equal(t, 2, s.EventsDuplicate)
}

func TestShouldRespondOnPriorityBars(t *testing.T) {
	calc := value.NewCalculator(value.DefaultScoringConfig(), zerolog.Nop())
	c := New(gate.New(calc, zerolog.Nop()), zerolog.Nop())

	c.RegisterAdapter(platform.NewMockAdapter(platform.DestDiscord), PriorityLow)
	c.RegisterAdapter(platform.NewMockAdapter(platform.DestRelay), PriorityDisabled)

	assert.False(t, c.ShouldRespondOn(platform.DestDiscord, 84.9))
	assert.True(t, c.ShouldRespondOn(platform.DestDiscord, 85))
	assert.False(t, c.ShouldRespondOn(platform.DestRelay, 100))
	assert.False(t, c.ShouldRespondOn(platform.DestX, 100)) // unregistered

	c.SetPriority(platform.DestDiscord, PriorityCritical)
	assert.True(t, c.ShouldRespondOn(platform.DestDiscord, 50))
}

type recordingLearner struct {
	executed []*gate.Result
	failed   []string
}

func (r *recordingLearner) RecordExecuted(res *gate.Result, _ map[string]any) {
	r.executed = append(r.executed, res)
}

func (r *recordingLearner) RecordFailed(_ *gate.Result, msg string) {
	r.failed = append(r.failed, msg)
}

func TestRespondToEventFullPipeline(t *testing.T) {
	c, mock := newTestCoordinator(t)
	rl := &recordingLearner{}
	c.SetLearner(rl)

	ev := platform.Event{
		ID:             "ev2",
		Destination:    platform.DestMock,
		Category:       platform.EventReply,
		UserID:         "fan_1",
		UserName:       "musicfan",
		Content:        "this track has been on repeat all week, love the vibes",
		SourceID:       "m42",
		ConversationID: "chan_9",
		CreatedAt:      time.Now().UTC(),
	}
	vctx := value.Context{
		FollowerCount:    250,
		RelationshipTier: "engaged_fan",
		AccountAgeDays:   400,
		DetectedIntent:   "appreciation",
		IntentConfidence: 0.9,
		PastInteractions: true,
		PastPositive:     true,
		SuccessRate:      0.8,
	}

	res, ca, err := c.RespondToEvent(context.Background(), ev, value.ActionReply,
		"So glad you love the vibes, thank you! More music coming soon", vctx)
	require.NoError(t, err)
	assert.Equal(t, gate.DecisionPass, res.Decision)
	require.NotNil(t, ca)
	assert.Equal(t, StateComplete, ca.State)
	require.Len(t, mock.Actions(), 1)
	dispatched := mock.Actions()[0]
	assert.Equal(t, "fan_1", dispatched.TargetUserID)

	// The dispatched action carries the event's native ids so the reply
	// lands on the fan's message in the right channel.
	assert.Equal(t, "m42", dispatched.ReplyToID)
	assert.Equal(t, "m42", dispatched.TargetContentID)
	assert.Equal(t, "chan_9", dispatched.ConversationID)
	assert.Equal(t, "ev2", dispatched.TriggeredBy)

	// Event context was folded into the scoring context.
	assert.Equal(t, "fan_1", res.Score.Context.UserID)
	assert.Equal(t, ev.Content, res.Score.Context.TheirMessage)

	// The execution outcome reached the learner.
	require.Len(t, rl.executed, 1)
	assert.Equal(t, res, rl.executed[0])
	assert.Empty(t, rl.failed)
}

func TestRespondToEventReportsFailureToLearner(t *testing.T) {
	c, mock := newTestCoordinator(t)
	rl := &recordingLearner{}
	c.SetLearner(rl)
	mock.FailNextExecute()

	ev := platform.Event{
		ID:          "ev4",
		Destination: platform.DestMock,
		Category:    platform.EventReply,
		UserID:      "fan_1",
		UserName:    "musicfan",
		Content:     "this track has been on repeat all week, love the vibes",
		SourceID:    "m43",
		CreatedAt:   time.Now().UTC(),
	}
	vctx := value.Context{
		FollowerCount:    250,
		RelationshipTier: "engaged_fan",
		AccountAgeDays:   400,
		DetectedIntent:   "appreciation",
		IntentConfidence: 0.9,
		PastInteractions: true,
		PastPositive:     true,
		SuccessRate:      0.8,
	}

	res, ca, err := c.RespondToEvent(context.Background(), ev, value.ActionReply,
		"So glad you love the vibes, thank you! More music coming soon", vctx)
	require.NoError(t, err)
	assert.Equal(t, gate.DecisionPass, res.Decision)
	require.NotNil(t, ca)
	assert.Equal(t, StateAbandoned, ca.State)

	assert.Empty(t, rl.executed)
	require.Len(t, rl.failed, 1)
	assert.Contains(t, rl.failed[0], "simulated execution failure")
}

func TestRespondToEventBlockedNeverDispatches(t *testing.T) {
	c, mock := newTestCoordinator(t)

	ev := platform.Event{
		ID:          "ev3",
		Destination: platform.DestMock,
		Category:    platform.EventMessage,
	}
	res, ca, err := c.RespondToEvent(context.Background(), ev, value.ActionDM, "hey", value.Context{})
	require.NoError(t, err)
	assert.Equal(t, gate.DecisionBlock, res.Decision)
	assert.Nil(t, ca)
	assert.Empty(t, mock.Actions())
}

func TestStopDisconnectsAdapters(t *testing.T) {
	c, mock := newTestCoordinator(t)

	assert.True(t, mock.Connected())
	c.Stop()
	assert.False(t, mock.Connected())
	assert.False(t, c.Stats().Running)
}

func TestActionHistoryBounded(t *testing.T) {
	c, _ := newTestCoordinator(t)

	for i := 0; i < 10; i++ {
		_, err := c.ExecuteAction(context.Background(), value.ActionTweet,
			fmt.Sprintf("post %d", i), "", []platform.Destination{platform.DestMock})
		require.NoError(t, err)
	}
	assert.Len(t, c.Actions(5), 5)
	assert.Len(t, c.Actions(0), 10)
}

func TestHealthCheckAggregates(t *testing.T) {
	c, _ := newTestCoordinator(t)

	health := c.HealthCheck(context.Background())
	require.Contains(t, health, platform.DestMock)
	assert.Equal(t, "healthy", health[platform.DestMock]["status"])
}

func TestDedupWindowExpires(t *testing.T) {
	d := newDeduper(time.Minute)
	now := time.Now()

	assert.False(t, d.Seen("hello world", now))
	assert.True(t, d.Seen("hello world", now.Add(30*time.Second)))
	assert.False(t, d.Seen("hello world", now.Add(2*time.Minute)))
}

func TestAdaptContentPerDestination(t *testing.T) {
	long := ""
	for i := 0; i < 40; i++ {
		long += "papito drops heat "
	}

	x := adaptContent(platform.DestX, long)
	assert.LessOrEqual(t, len([]rune(x)), 280)
	assert.Contains(t, x, "...")

	yt := adaptContent(platform.DestYouTube, long)
	assert.LessOrEqual(t, len([]rune(yt)), 500)

	assert.Equal(t, long, adaptContent(platform.DestDiscord, long))
	assert.Equal(t, "short", adaptContent(platform.DestX, "short"))
	assert.Equal(t, long, adaptContent("unknown", long))
}
