package relay

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/puhovm04-code/BusinessGPT/history"
	"github.com/puhovm04-code/BusinessGPT/persona"
)

type ServiceConfig struct {
	Store     *history.Store
	Personas  *persona.Resolver
	Gateway   *Gateway
	Messenger Messenger
	Logger    *slog.Logger

	BotID     int64
	BotHandle string

	DefaultThreshold float64
	Staleness        time.Duration
	// AdminIDs may use /threshold and /reset.
	AdminIDs map[int64]bool
	// AllowedChats, when non-empty, restricts triggering to these chats.
	AllowedChats map[int64]bool

	// Rand and Now are injectable for tests; nil means math/rand and
	// time.Now.
	Rand func() float64
	Now  func() time.Time
}

// Service owns all mutable relay state (transcripts via the store, the
// threshold, allow-lists) and glues intake to the gateway. Constructed once
// at startup; no ambient globals.
type Service struct {
	cfg        ServiceConfig
	classifier *Classifier
	now        func() time.Time

	mu        sync.Mutex
	threshold float64
}

func NewService(cfg ServiceConfig) *Service {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Personas == nil {
		cfg.Personas = persona.NewResolver(nil)
	}
	if cfg.Rand == nil {
		cfg.Rand = rand.Float64
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	s := &Service{
		cfg:       cfg,
		now:       cfg.Now,
		threshold: clampUnit(cfg.DefaultThreshold),
	}
	s.classifier = &Classifier{
		BotID:        cfg.BotID,
		BotHandle:    cfg.BotHandle,
		Staleness:    cfg.Staleness,
		AllowedChats: cfg.AllowedChats,
		Threshold:    s.Threshold,
		Busy:         cfg.Gateway.Busy,
		Rand:         cfg.Rand,
		Now:          cfg.Now,
	}
	return s
}

func (s *Service) Threshold() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.threshold
}

// SetThreshold updates the random-trigger threshold. Values outside [0,1]
// (or NaN) are rejected and the prior value stands.
func (s *Service) SetThreshold(v float64) error {
	if math.IsNaN(v) || v < 0 || v > 1 {
		return fmt.Errorf("threshold must be within [0, 1], got %v", v)
	}
	s.mu.Lock()
	s.threshold = v
	s.mu.Unlock()
	return nil
}

// HandleMessage runs the per-message intake flow: command dispatch,
// eligibility filtering, transcript recording, trigger classification and
// gateway enqueue. It never blocks on generation.
func (s *Service) HandleMessage(ctx context.Context, msg Message) {
	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return
	}
	if IsCommand(text) {
		s.handleCommand(ctx, msg, text)
		return
	}
	if !msg.Kind.IsGroup() {
		return
	}

	label := s.cfg.Personas.Resolve(msg.SenderID, msg.SenderName)
	recorded := StripMentions(text, s.cfg.BotHandle)
	if recorded != "" {
		s.cfg.Store.Record(msg.ConversationID, label, recorded)
	}

	class, reason, ok := s.classifier.Classify(msg)
	if !ok {
		s.cfg.Logger.Debug("no_trigger",
			"chat_id", msg.ConversationID,
			"reason", reason,
		)
		return
	}

	ev := &TriggerEvent{
		ID:             uuid.NewString(),
		ConversationID: msg.ConversationID,
		Message:        msg,
		Class:          class,
		SpeakerLabel:   label,
		RecordedText:   recorded,
		EnqueuedAt:     s.now(),
	}
	s.cfg.Gateway.Enqueue(ev)
	s.cfg.Logger.Info("trigger_enqueued",
		"event_id", ev.ID,
		"chat_id", msg.ConversationID,
		"class", class.String(),
		"reason", reason,
	)
}

func (s *Service) isAdmin(id int64) bool {
	return s.cfg.AdminIDs[id]
}

func (s *Service) handleCommand(ctx context.Context, msg Message, text string) {
	cmdWord, args := splitCommand(text)
	switch normalizeCommand(cmdWord, s.cfg.BotHandle) {
	case "/start", "/help":
		help := "I listen to this group and occasionally join the conversation.\n" +
			"Reply to me or mention @" + s.cfg.BotHandle + " to get a guaranteed answer.\n" +
			"Admin commands: /threshold [value], /reset"
		s.send(ctx, msg.ConversationID, help)
	case "/id":
		s.send(ctx, msg.ConversationID, fmt.Sprintf("chat_id=%d type=%s", msg.ConversationID, msg.Kind))
	case "/threshold":
		s.handleThreshold(ctx, msg, args)
	case "/reset":
		if !s.isAdmin(msg.SenderID) {
			s.send(ctx, msg.ConversationID, "unauthorized")
			return
		}
		s.cfg.Store.Reset(msg.ConversationID)
		s.send(ctx, msg.ConversationID, "ok (reset)")
	default:
		// Unknown commands are for some other bot in the chat.
	}
}

func (s *Service) handleThreshold(ctx context.Context, msg Message, args string) {
	if !s.isAdmin(msg.SenderID) {
		s.send(ctx, msg.ConversationID, "unauthorized")
		return
	}
	args = strings.TrimSpace(args)
	if args == "" {
		s.send(ctx, msg.ConversationID, fmt.Sprintf("threshold=%.3f", s.Threshold()))
		return
	}
	v, err := strconv.ParseFloat(args, 64)
	if err != nil {
		s.send(ctx, msg.ConversationID, "usage: /threshold [value in 0..1]")
		return
	}
	if err := s.SetThreshold(v); err != nil {
		s.send(ctx, msg.ConversationID, err.Error())
		return
	}
	s.cfg.Logger.Info("threshold_updated", "value", v, "admin_id", msg.SenderID)
	s.send(ctx, msg.ConversationID, fmt.Sprintf("ok, threshold=%.3f", v))
}

func (s *Service) send(ctx context.Context, conversationID int64, text string) {
	if err := s.cfg.Messenger.Send(ctx, conversationID, text); err != nil {
		s.cfg.Logger.Warn("send_error", "chat_id", conversationID, "error", err.Error())
	}
}

func clampUnit(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func splitCommand(text string) (cmd, rest string) {
	text = strings.TrimSpace(text)
	i := strings.IndexAny(text, " \n\t")
	if i == -1 {
		return text, ""
	}
	return text[:i], strings.TrimSpace(text[i:])
}

// normalizeCommand lowercases a slash command and strips an "@BotName"
// suffix, so "/threshold@SomeBot 0.3" still addresses us (and commands aimed
// at other bots fall through to the default case).
func normalizeCommand(cmd, botHandle string) string {
	cmd = strings.TrimSpace(cmd)
	if !strings.HasPrefix(cmd, "/") {
		return ""
	}
	if at := strings.IndexByte(cmd, '@'); at >= 0 {
		target := cmd[at+1:]
		cmd = cmd[:at]
		if botHandle != "" && !strings.EqualFold(target, botHandle) {
			return ""
		}
	}
	return strings.ToLower(cmd)
}
