// Package assistant answers chat requests on the server: it keeps the
// session transcript, picks an agent, runs that agent's tool and then
// calls the requested provider.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/suPer8Hu/guruji-chat/internal/ai"
	"github.com/suPer8Hu/guruji-chat/internal/history"
	"github.com/suPer8Hu/guruji-chat/internal/hub"
	"github.com/suPer8Hu/guruji-chat/internal/logger"
)

const logModule = "assistant"

var ErrEmptyMessage = errors.New("assistant: empty message")

// KnowledgeBases resolves selected knowledge-base ids.
type KnowledgeBases interface {
	KnowledgeBasesByID(ctx context.Context, ids []string) ([]hub.KnowledgeBase, error)
}

type Request struct {
	SessionID   string
	Message     string
	Provider    string
	Model       string
	Temperature float64
	Timeout     time.Duration
	MaxTokens   int
	MaxRetries  int
	SelectedKBs []string
	// Agent names the agent to use; empty selects one from the message.
	Agent string
	// APIKey overrides the server key for this request.
	APIKey string
}

type Reply struct {
	Text      string
	Provider  string
	Model     string
	AgentUsed string
	ToolCalls []ToolCall
	Timestamp time.Time
}

type Service struct {
	history           history.Store
	registry          *ai.Registry
	kbs               KnowledgeBases
	contextWindowSize int
	tools             []Tool
	log               logger.Logger
	now               func() time.Time
}

func NewService(h history.Store, registry *ai.Registry, kbs KnowledgeBases, contextWindowSize int, log logger.Logger) *Service {
	if contextWindowSize <= 0 || contextWindowSize > 100 {
		contextWindowSize = 20
	}
	if log == nil {
		log = logger.NewNop()
	}
	s := &Service{
		history:           h,
		registry:          registry,
		kbs:               kbs,
		contextWindowSize: contextWindowSize,
		log:               log,
		now:               time.Now,
	}
	s.tools = builtinTools(func() time.Time { return s.now() })
	return s
}

// Tools lists the built-in tools.
func (s *Service) Tools() []Tool {
	return append([]Tool(nil), s.tools...)
}

// RunTool runs one built-in tool by name.
func (s *Service) RunTool(ctx context.Context, name string, args map[string]any) (string, error) {
	for _, t := range s.tools {
		if t.Name == name {
			return t.Run(ctx, args)
		}
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownTool, name)
}

func (s *Service) NewSession(ctx context.Context) (string, time.Time, error) {
	id := uuid.NewString()
	createdAt, err := s.history.Create(ctx, id)
	if err != nil {
		return "", time.Time{}, err
	}
	s.log.Info(logModule, "new session created", map[string]any{"session_id": id})
	return id, createdAt, nil
}

func (s *Service) History(ctx context.Context, sessionID string) ([]history.Entry, error) {
	return s.history.Get(ctx, sessionID)
}

// Reply answers one user message. Nothing is recorded when the provider
// fails; on success both turns are appended to the session.
func (s *Service) Reply(ctx context.Context, req Request) (*Reply, error) {
	if strings.TrimSpace(req.Message) == "" {
		return nil, ErrEmptyMessage
	}

	// 1) pick provider/model for this request
	provider, err := s.registry.Get(ctx, req.Provider, ai.ProviderConfig{
		Model:       req.Model,
		APIKey:      req.APIKey,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		return nil, err
	}

	// 2) agent, knowledge bases, tool run
	agent := SelectAgent(req.Message, req.Agent)
	kbNames, err := s.knowledgeBaseNames(ctx, req.SelectedKBs)
	if err != nil {
		return nil, err
	}
	// selected knowledge bases take the place of tools
	var calls []ToolCall
	if len(kbNames) == 0 {
		calls = s.runAgentTool(ctx, agent, req)
	}

	// 3) build provider messages from recent history
	past, err := s.history.Get(ctx, req.SessionID)
	if err != nil && !errors.Is(err, history.ErrNotFound) {
		return nil, err
	}
	msgs := compose(req, agent, kbNames, calls, history.Window(past, s.contextWindowSize))

	// 4) call provider
	text, err := s.call(ctx, provider, msgs, req)
	if err != nil {
		return nil, err
	}

	// 5) store both turns
	at := s.now().UTC()
	if err := s.history.Append(ctx, req.SessionID,
		history.Entry{Role: ai.RoleUser, Content: req.Message, Timestamp: at},
		history.Entry{
			Role: ai.RoleAssistant, Content: text, Provider: req.Provider, Model: req.Model,
			AgentUsed: agent.Name, ToolCalls: calls, Timestamp: at,
		},
	); err != nil {
		return nil, err
	}

	s.log.Info(logModule, "replied", map[string]any{
		"session_id": req.SessionID,
		"provider":   req.Provider,
		"model":      req.Model,
		"agent":      agent.Name,
		"tool_calls": len(calls),
	})
	if calls == nil {
		calls = []ToolCall{}
	}
	return &Reply{
		Text: text, Provider: req.Provider, Model: req.Model,
		AgentUsed: agent.Name, ToolCalls: calls, Timestamp: at,
	}, nil
}

func (s *Service) knowledgeBaseNames(ctx context.Context, ids []string) ([]string, error) {
	if len(ids) == 0 || s.kbs == nil {
		return nil, nil
	}
	kbs, err := s.kbs.KnowledgeBasesByID(ctx, ids)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(kbs))
	for _, kb := range kbs {
		names = append(names, kb.KBName)
	}
	return names, nil
}

// runAgentTool runs the agent's tool when the message calls for one. A
// failing tool is recorded with its error as the result.
func (s *Service) runAgentTool(ctx context.Context, agent Agent, req Request) []ToolCall {
	name, args, ok := planTool(agent, req.Message)
	if !ok {
		return nil
	}
	result, err := s.RunTool(ctx, name, args)
	if err != nil {
		s.log.Warn(logModule, "tool failed", map[string]any{
			"session_id": req.SessionID,
			"tool":       name,
			"error":      err.Error(),
		})
		result = "Error: " + err.Error()
	}
	return []ToolCall{{Tool: name, Args: args, Result: result}}
}

// compose orders the provider messages: agent prompt, knowledge bases,
// recent history, tool results, then the new user message.
func compose(req Request, agent Agent, kbNames []string, calls []ToolCall, past []history.Entry) []ai.Message {
	msgs := make([]ai.Message, 0, len(past)+4)
	msgs = append(msgs, ai.Message{Role: ai.RoleSystem, Content: agent.SystemPrompt})

	if len(kbNames) > 0 {
		quoted := make([]string, 0, len(kbNames))
		for _, n := range kbNames {
			quoted = append(quoted, fmt.Sprintf("%q", n))
		}
		msgs = append(msgs, ai.Message{
			Role:    ai.RoleSystem,
			Content: "Answer using the selected knowledge bases: " + strings.Join(quoted, ", ") + ".",
		})
	}

	for _, e := range past {
		msgs = append(msgs, ai.Message{Role: e.Role, Content: e.Content})
	}

	for _, c := range calls {
		msgs = append(msgs, ai.Message{
			Role:    ai.RoleSystem,
			Content: fmt.Sprintf("Tool %s returned: %s", c.Tool, c.Result),
		})
	}
	return append(msgs, ai.Message{Role: ai.RoleUser, Content: req.Message})
}

// call makes 1+MaxRetries attempts under one overall timeout.
func (s *Service) call(ctx context.Context, p ai.Provider, msgs []ai.Message, req Request) (string, error) {
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	attempts := 1 + max(req.MaxRetries, 0)
	var lastErr error
	for i := 0; i < attempts; i++ {
		text, err := p.Chat(ctx, msgs)
		if err == nil {
			return text, nil
		}
		lastErr = err
		s.log.Warn(logModule, "provider call failed", map[string]any{
			"session_id": req.SessionID,
			"provider":   req.Provider,
			"attempt":    i + 1,
			"error":      err.Error(),
		})
		if ctx.Err() != nil {
			break
		}
	}
	return "", fmt.Errorf("assistant: %s: %w", req.Provider, lastErr)
}
