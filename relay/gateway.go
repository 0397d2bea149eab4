package relay

import (
	"container/heap"
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/puhovm04-code/BusinessGPT/gen"
	"github.com/puhovm04-code/BusinessGPT/history"
	"github.com/puhovm04-code/BusinessGPT/sanitize"
)

type OutcomeStatus int

const (
	StatusDelivered OutcomeStatus = iota
	StatusSkipped
	StatusFailed
)

func (s OutcomeStatus) String() string {
	switch s {
	case StatusDelivered:
		return "delivered"
	case StatusSkipped:
		return "skipped"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Outcome is the terminal state of one generation turn. Never fatal.
type Outcome struct {
	Status OutcomeStatus
	Reason string
}

func skipped(reason string) Outcome { return Outcome{Status: StatusSkipped, Reason: reason} }
func failed(reason string) Outcome  { return Outcome{Status: StatusFailed, Reason: reason} }

type GatewayConfig struct {
	Store     *history.Store
	Client    gen.Client
	Messenger Messenger
	Logger    *slog.Logger

	// DefaultPersona tags sanitized replies that carry no speaker tag of
	// their own, keeping the transcript's tag structure consistent.
	DefaultPersona  string
	GenerateTimeout time.Duration
	// Cooldown separates consecutive delivered turns so replies don't land
	// faster than users can read them.
	Cooldown time.Duration
}

// Gateway serializes all generation turns against the single slow endpoint.
// Events wait in a priority queue ordered by (class, arrival); one worker
// goroutine drains it, so no two endpoint calls ever overlap.
type Gateway struct {
	cfg GatewayConfig

	mu      sync.Mutex
	pending eventQueue
	seq     uint64
	wake    chan struct{}
	busy    atomic.Bool
}

func NewGateway(cfg GatewayConfig) *Gateway {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.GenerateTimeout <= 0 {
		cfg.GenerateTimeout = 60 * time.Second
	}
	if cfg.DefaultPersona == "" {
		cfg.DefaultPersona = "Bot"
	}
	return &Gateway{
		cfg:  cfg,
		wake: make(chan struct{}, 1),
	}
}

// Busy reports whether a turn is currently executing. The classifier uses
// this to suppress random triggers before drawing.
func (g *Gateway) Busy() bool {
	return g.busy.Load()
}

// Enqueue schedules a trigger event. Never blocks and never drops: forced
// events queue behind whatever is in flight.
func (g *Gateway) Enqueue(ev *TriggerEvent) {
	g.mu.Lock()
	ev.seq = g.seq
	g.seq++
	heap.Push(&g.pending, ev)
	g.mu.Unlock()

	select {
	case g.wake <- struct{}{}:
	default:
	}
}

func (g *Gateway) QueueLen() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.pending.Len()
}

func (g *Gateway) pop() *TriggerEvent {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.pending.Len() == 0 {
		return nil
	}
	return heap.Pop(&g.pending).(*TriggerEvent)
}

// Run drains the queue one event at a time until ctx is cancelled.
func (g *Gateway) Run(ctx context.Context) {
	for {
		ev := g.pop()
		if ev == nil {
			select {
			case <-ctx.Done():
				return
			case <-g.wake:
				continue
			}
		}

		g.busy.Store(true)
		out := g.turn(ctx, ev)
		g.busy.Store(false)

		logAttrs := []any{
			"event_id", ev.ID,
			"chat_id", ev.ConversationID,
			"class", ev.Class.String(),
			"status", out.Status.String(),
		}
		if out.Reason != "" {
			logAttrs = append(logAttrs, "reason", out.Reason)
		}
		switch out.Status {
		case StatusFailed:
			g.cfg.Logger.Warn("turn_done", logAttrs...)
		default:
			g.cfg.Logger.Info("turn_done", logAttrs...)
		}

		if out.Status == StatusDelivered && g.cfg.Cooldown > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(g.cfg.Cooldown):
			}
		}
	}
}

// turn executes one full generation turn: prompt build, endpoint call,
// sanitize, deliver, record.
func (g *Gateway) turn(ctx context.Context, ev *TriggerEvent) Outcome {
	prompt := g.cfg.Store.Prompt(ev.ConversationID)
	if prompt == "" {
		if ev.Class == TriggerRandom {
			// Nothing meaningful to continue from.
			return skipped("no_history")
		}
		// A bare mention still deserves a response: synthesize a one-line
		// prompt from the triggering message itself.
		text := ev.RecordedText
		if text == "" {
			text = history.Normalize(ev.Message.Text, 0)
		}
		prompt = history.Line{Speaker: ev.SpeakerLabel, Text: text}.Render() + "\n"
	}

	if err := g.cfg.Messenger.ShowTyping(ctx, ev.ConversationID); err != nil {
		g.cfg.Logger.Debug("typing_error", "event_id", ev.ID, "error", err.Error())
	}

	genCtx, cancel := context.WithTimeout(ctx, g.cfg.GenerateTimeout)
	res, err := g.cfg.Client.Generate(genCtx, prompt)
	cancel()
	if err != nil {
		if errors.Is(err, gen.ErrNotConfigured) {
			g.cfg.Logger.Error("generate_error", "event_id", ev.ID, "error", err.Error())
			return skipped("endpoint_not_configured")
		}
		g.cfg.Logger.Warn("generate_error", "event_id", ev.ID, "error", err.Error())
		return failed("generate_error")
	}

	rep, ok := sanitize.Extract(res.Text, prompt, g.cfg.DefaultPersona)
	if !ok {
		return failed("unusable_output")
	}

	var deliverErr error
	if ev.Class == TriggerForced {
		deliverErr = g.cfg.Messenger.Reply(ctx, ev.Message, rep.Text)
	} else {
		deliverErr = g.cfg.Messenger.Send(ctx, ev.ConversationID, rep.Text)
	}

	// Generation succeeded semantically, so the line joins the transcript
	// even when the platform send fails.
	g.cfg.Store.Record(ev.ConversationID, rep.Speaker, rep.Text)

	if deliverErr != nil {
		g.cfg.Logger.Warn("deliver_error", "event_id", ev.ID, "chat_id", ev.ConversationID, "error", deliverErr.Error())
		return failed("deliver_error")
	}
	return Outcome{Status: StatusDelivered}
}

// eventQueue orders pending events by (class priority, arrival). Forced
// events always pop before random ones; within a class, strict FIFO.
type eventQueue []*TriggerEvent

func (q eventQueue) Len() int { return len(q) }

func (q eventQueue) Less(i, j int) bool {
	if q[i].Class != q[j].Class {
		return q[i].Class < q[j].Class
	}
	return q[i].seq < q[j].seq
}

func (q eventQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *eventQueue) Push(x any) { *q = append(*q, x.(*TriggerEvent)) }

func (q *eventQueue) Pop() any {
	old := *q
	n := len(old)
	ev := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return ev
}
