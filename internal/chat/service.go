package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/codetutor/codetutor/internal/llm"
	"github.com/codetutor/codetutor/internal/pedagogy"
	"github.com/codetutor/codetutor/internal/prompt"
	"github.com/codetutor/codetutor/internal/store"
)

// Config holds turn admission and generation settings.
type Config struct {
	// DailyTokenCap is the per-user daily token budget across input and
	// output. 0 disables the cap.
	DailyTokenCap int

	// MaxInputTokens bounds the estimated token count of message + cell
	// code + error output together.
	MaxInputTokens int

	// RequestsPerMinute and Burst configure the per-user rate limit.
	RequestsPerMinute int
	Burst             int

	// MaxResponseTokens is passed to the provider per generation.
	MaxResponseTokens int

	Temperature float64
}

// DefaultConfig returns sensible defaults for the chat service.
func DefaultConfig() Config {
	return Config{
		DailyTokenCap:     200_000,
		MaxInputTokens:    8_000,
		RequestsPerMinute: 20,
		Burst:             5,
		MaxResponseTokens: 1024,
		Temperature:       0.7,
	}
}

// TurnRequest is one incoming student message.
type TurnRequest struct {
	UserID   string
	Username string

	// SessionID is empty for a new conversation.
	SessionID string

	Message   string
	CellCode  string
	ErrorText string

	// Self-assessed levels from the user profile, used only to seed a
	// first-contact student state.
	ProgrammingLevel int
	MathsLevel       int
}

// Service runs chat turns end to end.
type Service struct {
	states   *store.StudentStateRepo
	sessions *store.SessionRepo
	usage    *store.UsageRepo
	engine   *pedagogy.Engine
	builder  *prompt.Builder
	gateway  llm.Provider
	limiters *userLimiters
	guard    *sessionGuard
	cfg      Config
	logger   *slog.Logger
}

// NewService wires the turn pipeline.
func NewService(st *store.Store, engine *pedagogy.Engine, builder *prompt.Builder, gateway llm.Provider, cfg Config, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		states:   st.StudentStates(),
		sessions: st.Sessions(),
		usage:    st.Usage(),
		engine:   engine,
		builder:  builder,
		gateway:  gateway,
		limiters: newUserLimiters(cfg.RequestsPerMinute, cfg.Burst),
		guard:    newSessionGuard(),
		cfg:      cfg,
		logger:   logger.With("component", "chat"),
	}
}

// HandleTurn runs one turn, emitting stream events as it goes. The
// returned error reports emit/transport failure only; turn-level
// problems are delivered to the client as error events.
func (s *Service) HandleTurn(ctx context.Context, req TurnRequest, emit Emitter) error {
	// Admission checks run cheapest-first, before any session or LLM
	// work.
	if !s.limiters.allow(req.UserID) {
		return emit(Event{Type: "error", Code: CodeRateLimited, Error: "too many requests, slow down a little"})
	}
	if err := s.checkDailyCap(ctx, req.UserID); err != nil {
		return emit(Event{Type: "error", Code: CodeDailyCap, Error: err.Error()})
	}
	inputEstimate := s.gateway.CountTokens(req.Message)
	if req.CellCode != "" {
		inputEstimate += s.gateway.CountTokens(req.CellCode)
	}
	if req.ErrorText != "" {
		inputEstimate += s.gateway.CountTokens(req.ErrorText)
	}
	if inputEstimate > s.cfg.MaxInputTokens {
		return emit(Event{Type: "error", Code: CodeInputTooLarge,
			Error: fmt.Sprintf("input is about %d tokens, limit is %d", inputEstimate, s.cfg.MaxInputTokens)})
	}
	if strings.TrimSpace(req.Message) == "" && req.CellCode == "" && req.ErrorText == "" {
		return emit(Event{Type: "error", Code: CodeEmptyMessage, Error: "message is empty"})
	}

	sess, err := s.sessions.GetOrCreate(ctx, req.SessionID, req.UserID)
	if err != nil {
		s.logger.ErrorContext(ctx, "session lookup failed", "error", err)
		return emit(Event{Type: "error", Code: CodeInternal, Error: "could not open session"})
	}
	if err := emit(Event{Type: "session", SessionID: sess.ID}); err != nil {
		return err
	}

	if !s.guard.acquire(sess.ID) {
		return emit(Event{Type: "error", Code: CodeBusy, Error: "a response is already being generated for this session"})
	}
	defer s.guard.release(sess.ID)

	st, err := s.states.Get(ctx, req.UserID, req.ProgrammingLevel, req.MathsLevel)
	if err != nil {
		s.logger.ErrorContext(ctx, "student state load failed", "error", err)
		return emit(Event{Type: "error", Code: CodeInternal, Error: "could not load student state"})
	}

	decision := s.engine.Decide(ctx, pedagogy.Turn{
		Message:   req.Message,
		CellCode:  req.CellCode,
		ErrorText: req.ErrorText,
		Username:  req.Username,
	}, st)

	if decision.Canned != "" {
		return s.handleCanned(ctx, sess.ID, req, decision, emit)
	}

	return s.handleGenerated(ctx, sess.ID, req, decision, st, emit)
}

// handleCanned answers filtered turns from the template table. No LLM
// call, no token spend, no state advance.
func (s *Service) handleCanned(ctx context.Context, sessionID string, req TurnRequest, d pedagogy.Decision, emit Emitter) error {
	s.persistExchange(ctx, sessionID, req, d, d.Canned, 0, false)
	return emit(Event{Type: "canned", Content: d.Canned, Filter: d.Filter})
}

func (s *Service) handleGenerated(ctx context.Context, sessionID string, req TurnRequest, d pedagogy.Decision, st *pedagogy.StudentState, emit Emitter) error {
	history, err := s.sessions.History(ctx, sessionID)
	if err != nil {
		s.logger.ErrorContext(ctx, "history load failed", "error", err)
		return emit(Event{Type: "error", Code: CodeInternal, Error: "could not load history"})
	}

	p := s.builder.Build(ctx, prompt.Input{
		Persona:      pedagogy.Persona,
		Instructions: d.Instructions,
		Message:      req.Message,
		CellCode:     req.CellCode,
		ErrorText:    req.ErrorText,
		History:      history,
	})

	llmReq := llm.Request{
		System:      p.System,
		Messages:    p.Messages,
		MaxTokens:   s.cfg.MaxResponseTokens,
		Temperature: s.cfg.Temperature,
	}

	genCtx := llm.WithPurpose(ctx, "chat")
	var reply strings.Builder
	streamErr := s.gateway.GenerateStream(genCtx, llmReq, func(ctx context.Context, chunk string) error {
		if err := emit(Event{Type: "token", Content: chunk}); err != nil {
			return err
		}
		reply.WriteString(chunk)
		return nil
	})

	inputTokens := s.gateway.CountTokens(p.System)
	for _, m := range p.Messages {
		inputTokens += s.gateway.CountTokens(m.Content)
	}
	outputTokens := s.gateway.CountTokens(reply.String())

	if streamErr != nil {
		return s.handleStreamError(ctx, sessionID, req, d, st, streamErr, reply.String(), inputTokens, outputTokens, emit)
	}

	s.persistExchange(ctx, sessionID, req, d, reply.String(), outputTokens, false)
	s.recordUsage(ctx, req.UserID, inputTokens, outputTokens)
	s.engine.RecordExchange(ctx, st, req.Message, reply.String())
	if err := s.states.Save(ctx, st); err != nil {
		s.logger.ErrorContext(ctx, "student state save failed", "error", err)
	}

	return emit(Event{
		Type:                  "done",
		HintLevel:             d.HintLevel,
		ErrorKind:             string(d.ErrorKind),
		ProgrammingDifficulty: d.ProgrammingDifficulty,
		MathsDifficulty:       d.MathsDifficulty,
		InputTokens:           inputTokens,
		OutputTokens:          outputTokens,
	})
}

// handleStreamError finishes a turn whose generation failed. Partial
// output that reached the student is persisted and marked incomplete;
// a stream that produced nothing leaves no assistant message behind.
func (s *Service) handleStreamError(ctx context.Context, sessionID string, req TurnRequest, d pedagogy.Decision, st *pedagogy.StudentState, streamErr error, partial string, inputTokens, outputTokens int, emit Emitter) error {
	if ctx.Err() != nil {
		// Client disconnected or turn timed out. Keep whatever was
		// already delivered; there is no one left to emit to beyond a
		// best-effort error event.
		if partial != "" {
			s.persistExchange(ctx, sessionID, req, d, partial, outputTokens, true)
			s.recordUsage(ctx, req.UserID, inputTokens, outputTokens)
		}
		return ctx.Err()
	}

	var interrupted *llm.ErrStreamInterrupted
	if errors.As(streamErr, &interrupted) && partial != "" {
		s.persistExchange(ctx, sessionID, req, d, partial, outputTokens, true)
		s.recordUsage(ctx, req.UserID, inputTokens, outputTokens)
		if err := s.states.Save(ctx, st); err != nil {
			s.logger.ErrorContext(ctx, "student state save failed", "error", err)
		}
		s.logger.WarnContext(ctx, "stream interrupted mid-response",
			"session_id", sessionID, "delivered_chunks", interrupted.Delivered)
		return emit(Event{Type: "error", Code: CodeInterrupted,
			Error: "the response was cut off, you can ask me to continue", Incomplete: true})
	}

	var exhausted *llm.ErrAllProvidersUnavailable
	if errors.As(streamErr, &exhausted) {
		s.logger.ErrorContext(ctx, "all providers unavailable", "session_id", sessionID, "error", streamErr)
		return emit(Event{Type: "error", Code: CodeUnavailable,
			Error: "the tutor is temporarily unavailable, please try again in a moment"})
	}

	s.logger.ErrorContext(ctx, "generation failed", "session_id", sessionID, "error", streamErr)
	return emit(Event{Type: "error", Code: CodeInternal, Error: "something went wrong generating the response"})
}

// persistExchange stores the user message and, when reply is non-empty,
// the assistant message with its turn metadata. Persistence failures
// are logged, not surfaced: the student already has the text.
func (s *Service) persistExchange(ctx context.Context, sessionID string, req TurnRequest, d pedagogy.Decision, reply string, outputTokens int, incomplete bool) {
	userMsg := &store.StoredMessage{
		SessionID: sessionID,
		Role:      llm.RoleUser,
		Content:   req.Message,
	}
	if err := s.sessions.AppendMessage(ctx, userMsg); err != nil {
		s.logger.ErrorContext(ctx, "persist user message failed", "error", err)
	}

	if reply == "" {
		return
	}
	assistantMsg := &store.StoredMessage{
		SessionID:             sessionID,
		Role:                  llm.RoleAssistant,
		Content:               reply,
		HintLevel:             d.HintLevel,
		ErrorKind:             string(d.ErrorKind),
		ProgrammingDifficulty: d.ProgrammingDifficulty,
		MathsDifficulty:       d.MathsDifficulty,
		Tokens:                outputTokens,
		Incomplete:            incomplete,
	}
	if err := s.sessions.AppendMessage(ctx, assistantMsg); err != nil {
		s.logger.ErrorContext(ctx, "persist assistant message failed", "error", err)
	}
}

func (s *Service) recordUsage(ctx context.Context, userID string, inputTokens, outputTokens int) {
	if err := s.usage.Add(ctx, userID, inputTokens, outputTokens); err != nil {
		s.logger.ErrorContext(ctx, "record usage failed", "error", err)
	}
}

// UsageSummary reports a user's consumption against the daily cap.
type UsageSummary struct {
	Day          string  `json:"day"`
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	Total        int     `json:"total"`
	Cap          int     `json:"cap"`
	Percent      float64 `json:"percent"`
}

// Usage returns today's token consumption for the user.
func (s *Service) Usage(ctx context.Context, userID string) (UsageSummary, error) {
	u, err := s.usage.Today(ctx, userID)
	if err != nil {
		return UsageSummary{}, err
	}
	sum := UsageSummary{
		Day:          u.Day,
		InputTokens:  u.InputTokens,
		OutputTokens: u.OutputTokens,
		Total:        u.Total(),
		Cap:          s.cfg.DailyTokenCap,
	}
	if sum.Cap > 0 {
		sum.Percent = 100 * float64(sum.Total) / float64(sum.Cap)
	}
	return sum, nil
}

func (s *Service) checkDailyCap(ctx context.Context, userID string) error {
	if s.cfg.DailyTokenCap <= 0 {
		return nil
	}
	u, err := s.usage.Today(ctx, userID)
	if err != nil {
		s.logger.ErrorContext(ctx, "usage lookup failed", "error", err)
		return nil // fail open on a read error
	}
	if u.Total() >= s.cfg.DailyTokenCap {
		return fmt.Errorf("daily token budget of %d used up, resets at midnight UTC", s.cfg.DailyTokenCap)
	}
	return nil
}
