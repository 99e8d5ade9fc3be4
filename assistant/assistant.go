// Package assistant answers StudyMate chat messages, preferring canned
// templates and data requests over paid model calls.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	// ErrEmptyMessage is returned for blank messages.
	ErrEmptyMessage = errors.New("message is required")
	// ErrUpstream wraps every failure of the hosted model.
	ErrUpstream = errors.New("assistant upstream failure")
)

// Reply types.
const (
	TypeAnswer         = "answer"
	TypeActionRequired = "action_required"
)

// Reply sources.
const (
	SourceTemplate = "template"
	SourceLLM      = "llm"
)

const (
	defaultMaxOutputTokens = 512
	defaultHistoryTurns    = 6
	defaultMaxLogLength    = 200

	fallbackActionResponse = "Mình cần thêm dữ liệu của bạn để trả lời câu hỏi này."
)

var actionMarker = regexp.MustCompile(`(?i)\[ACTION_REQUIRED:\s*([a-z_]+)\s*\]`)

const systemInstruction = `Bạn là trợ lý học tập của StudyMate, nền tảng giúp sinh viên Việt Nam tìm bạn học, nhóm học, diễn đàn, blog, lịch, cuộc thi và mục tiêu học tập.
Trả lời ngắn gọn bằng tiếng Việt, thân thiện, chỉ về học tập và cách dùng StudyMate.
Nếu cần dữ liệu riêng của người dùng (lịch học, nhóm, mục tiêu, bạn học, cuộc thi, hồ sơ, thông báo) để trả lời, hãy chỉ trả về đúng một dòng dạng [ACTION_REQUIRED:<action>] với <action> là một trong: fetch_schedule, fetch_events, fetch_goals, fetch_groups, fetch_partners, fetch_competitions, fetch_profile, fetch_notifications.`

// Request is one incoming chat message.
type Request struct {
	Message   string `json:"message"`
	UserID    string `json:"userId,omitempty"`
	SessionID string `json:"sessionId,omitempty"`
}

// Metadata describes how a reply was produced.
type Metadata struct {
	TokensUsed     int     `json:"tokensUsed"`
	CostEstimate   float64 `json:"costEstimate"`
	Source         string  `json:"source"`
	Category       string  `json:"category,omitempty"`
	Model          string  `json:"model,omitempty"`
	SessionID      string  `json:"sessionId"`
	ResponseTimeMs int64   `json:"responseTimeMs"`
}

// Reply is the answer to a Request.
type Reply struct {
	Response string   `json:"response"`
	Type     string   `json:"type"`
	Action   string   `json:"action,omitempty"`
	Metadata Metadata `json:"metadata"`
}

// Config tunes the model fallback.
type Config struct {
	Model           string
	MaxOutputTokens int32
	CostPer1KTokens float64
	HistoryTurns    int
	MaxLogLength    int
}

// Assistant routes messages through Classify and, when needed, one model call.
type Assistant struct {
	generator Generator
	sessions  SessionStore
	cfg       Config
	logger    *zap.Logger
	now       func() time.Time
}

// New builds an Assistant. A nil generator makes every llm_required message
// fail with ErrUpstream; a nil session store disables history.
func New(generator Generator, sessions SessionStore, cfg Config, logger *zap.Logger) *Assistant {
	if cfg.MaxOutputTokens <= 0 {
		cfg.MaxOutputTokens = defaultMaxOutputTokens
	}
	if cfg.HistoryTurns < 0 {
		cfg.HistoryTurns = 0
	}
	if cfg.MaxLogLength <= 0 {
		cfg.MaxLogLength = defaultMaxLogLength
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Assistant{generator: generator, sessions: sessions, cfg: cfg, logger: logger, now: time.Now}
}

// Reply answers one message. Template and data outcomes never reach the model.
func (a *Assistant) Reply(ctx context.Context, req Request) (*Reply, error) {
	start := a.now()

	message := strings.TrimSpace(req.Message)
	if message == "" {
		return nil, ErrEmptyMessage
	}

	sessionID := strings.TrimSpace(req.SessionID)
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	decision := Classify(message)
	logger := a.logger.With(
		zap.String("session_id", sessionID),
		zap.String("user_id", req.UserID),
		zap.String("outcome", string(decision.Outcome)),
	)

	var reply *Reply
	switch decision.Outcome {
	case OutcomeTemplate:
		reply = &Reply{
			Response: decision.Response,
			Type:     TypeAnswer,
			Metadata: Metadata{Source: SourceTemplate, Category: decision.Category},
		}
	case OutcomeDataRequired:
		reply = &Reply{
			Response: decision.Response,
			Type:     TypeActionRequired,
			Action:   decision.Action,
			Metadata: Metadata{Source: SourceTemplate, Category: decision.Category},
		}
	default:
		var err error
		reply, err = a.askModel(ctx, message, sessionID, logger)
		if err != nil {
			return nil, err
		}
	}

	reply.Metadata.SessionID = sessionID
	reply.Metadata.ResponseTimeMs = a.now().Sub(start).Milliseconds()

	a.remember(ctx, sessionID, message, reply, logger)
	logger.Debug("assistant reply",
		zap.String("type", reply.Type),
		zap.String("category", reply.Metadata.Category),
		zap.Int("tokens_used", reply.Metadata.TokensUsed),
	)
	return reply, nil
}

func (a *Assistant) askModel(ctx context.Context, message, sessionID string, logger *zap.Logger) (*Reply, error) {
	if a.generator == nil {
		logger.Error("llm requested but no generator is configured")
		return nil, fmt.Errorf("%w: no generator configured", ErrUpstream)
	}

	prompt := a.buildPrompt(ctx, message, sessionID, logger)
	logger.Debug("llm request",
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", truncateForLog(prompt, a.cfg.MaxLogLength)),
	)

	completion, err := a.generator.Generate(ctx, Prompt{
		System:          systemInstruction,
		Text:            prompt,
		MaxOutputTokens: a.cfg.MaxOutputTokens,
	})
	if err != nil {
		logger.Error("llm call failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrUpstream, err)
	}

	logger.Debug("llm response",
		zap.Int("response_length", utf8.RuneCountInString(completion.Text)),
		zap.String("response_preview", truncateForLog(completion.Text, a.cfg.MaxLogLength)),
	)

	model := completion.Model
	if model == "" {
		model = a.cfg.Model
	}

	reply := &Reply{
		Type: TypeAnswer,
		Metadata: Metadata{
			TokensUsed:   completion.TotalTokens,
			CostEstimate: float64(completion.TotalTokens) / 1000 * a.cfg.CostPer1KTokens,
			Source:       SourceLLM,
			Model:        model,
		},
	}

	text, action := extractAction(completion.Text)
	if action != "" {
		reply.Type = TypeActionRequired
		reply.Action = action
		if text == "" {
			text = fallbackActionResponse
		}
	}
	reply.Response = text
	return reply, nil
}

func (a *Assistant) buildPrompt(ctx context.Context, message, sessionID string, logger *zap.Logger) string {
	var b strings.Builder
	if a.sessions != nil && a.cfg.HistoryTurns > 0 {
		history, err := a.sessions.Recent(ctx, sessionID, a.cfg.HistoryTurns)
		if err != nil {
			logger.Warn("loading session history", zap.Error(err))
		}
		if len(history) > 0 {
			b.WriteString("Lịch sử hội thoại:\n")
			for _, t := range history {
				b.WriteString(speaker(t.Role))
				b.WriteString(": ")
				b.WriteString(t.Text)
				b.WriteString("\n")
			}
			b.WriteString("\n")
		}
	}
	b.WriteString(speaker(RoleUser))
	b.WriteString(": ")
	b.WriteString(message)
	return b.String()
}

func (a *Assistant) remember(ctx context.Context, sessionID, message string, reply *Reply, logger *zap.Logger) {
	if a.sessions == nil {
		return
	}
	now := a.now()
	err := a.sessions.Append(ctx, sessionID,
		Turn{Role: RoleUser, Text: message, At: now},
		Turn{Role: RoleAssistant, Text: reply.Response, At: now},
	)
	if err != nil {
		logger.Warn("saving session history", zap.Error(err))
	}
}

func speaker(role string) string {
	if role == RoleAssistant {
		return "StudyMate AI"
	}
	return "Người dùng"
}

// extractAction pulls the first action marker out of a model reply.
func extractAction(raw string) (string, string) {
	m := actionMarker.FindStringSubmatch(raw)
	if m == nil {
		return strings.TrimSpace(raw), ""
	}
	text := strings.TrimSpace(actionMarker.ReplaceAllString(raw, ""))
	return text, strings.ToLower(m[1])
}

// truncateForLog shortens s to limit runes, appending an ellipsis when cut.
func truncateForLog(s string, limit int) string {
	s = strings.TrimSpace(s)
	if limit <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit]) + "..."
}
