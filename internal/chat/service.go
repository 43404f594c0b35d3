package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/suPer8Hu/guruji-chat/internal/backend"
	"github.com/suPer8Hu/guruji-chat/internal/logger"
	"github.com/suPer8Hu/guruji-chat/internal/settings"
)

const logModule = "chat"

var (
	ErrEmptyInput      = errors.New("chat: empty input")
	ErrNoActiveSession = errors.New("chat: no active session")
)

// Backend is the outbound chat collaborator.
type Backend interface {
	Chat(ctx context.Context, req backend.ChatRequest) (*backend.ChatResponse, error)
}

type Service struct {
	store    *Store
	settings *settings.Store
	backend  Backend
	ids      *MessageIDs
	busy     *BusySignal
	log      logger.Logger
	now      func() time.Time

	draftMu sync.Mutex
	draft   string
}

func NewService(store *Store, cfg *settings.Store, be Backend, log logger.Logger) *Service {
	if log == nil {
		log = logger.NewNop()
	}
	return &Service{
		store:    store,
		settings: cfg,
		backend:  be,
		ids:      NewMessageIDs(),
		busy:     NewBusySignal(),
		log:      log,
		now:      time.Now,
	}
}

func (s *Service) Store() *Store            { return s.store }
func (s *Service) Settings() *settings.Store { return s.settings }
func (s *Service) Busy() *BusySignal        { return s.busy }

// Exchange is one send-and-resolve cycle. The user message is already in
// the session when Submit returns; the bot message lands when Done closes.
type Exchange struct {
	SessionID   string
	UserMessage Message

	done      chan struct{}
	reply     Message
	resp      *backend.ChatResponse
	err       error
	delivered bool
}

func (e *Exchange) Done() <-chan struct{} { return e.done }

// Wait blocks until the exchange resolves and returns the bot message,
// which is FailureReply when the backend call failed.
func (e *Exchange) Wait() Message {
	<-e.done
	return e.reply
}

// Err is the backend failure behind a FailureReply, nil on success.
func (e *Exchange) Err() error {
	<-e.done
	return e.err
}

// Response is the backend's answer, nil when the call failed.
func (e *Exchange) Response() *backend.ChatResponse {
	<-e.done
	return e.resp
}

// Delivered is false when the originating session was deleted before
// the reply arrived and the reply was dropped.
func (e *Exchange) Delivered() bool {
	<-e.done
	return e.delivered
}

func (s *Service) SetDraft(text string) {
	s.draftMu.Lock()
	s.draft = text
	s.draftMu.Unlock()
}

func (s *Service) Draft() string {
	s.draftMu.Lock()
	defer s.draftMu.Unlock()
	return s.draft
}

// SubmitDraft sends the input buffer and clears it once accepted. A
// rejected draft is left in place.
func (s *Service) SubmitDraft(ctx context.Context) (*Exchange, error) {
	s.draftMu.Lock()
	defer s.draftMu.Unlock()

	ex, err := s.Submit(ctx, s.draft)
	if err != nil {
		return nil, err
	}
	s.draft = ""
	return ex, nil
}

// Submit appends the user turn to the active session and dispatches the
// request in the background. Empty input or a missing active session is
// rejected before anything is appended or sent.
func (s *Service) Submit(ctx context.Context, text string) (*Exchange, error) {
	// 1) guard
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyInput
	}
	sessionID := s.store.ActiveID()
	if sessionID == "" {
		return nil, ErrNoActiveSession
	}

	// 2) compose user message
	userMsg := newMessage(s.ids.Next(), SenderUser, text, s.now())

	// 3) optimistic append to the session captured above
	if !s.store.AppendMessage(sessionID, userMsg) {
		return nil, ErrNoActiveSession
	}
	s.busy.raise()

	// configuration is read now; later saves do not affect this request
	snap := s.settings.Snapshot()

	ex := &Exchange{
		SessionID:   sessionID,
		UserMessage: userMsg,
		done:        make(chan struct{}),
	}
	go s.dispatch(ctx, ex, snap)
	return ex, nil
}

// Send is Submit followed by Wait.
func (s *Service) Send(ctx context.Context, text string) (Message, error) {
	ex, err := s.Submit(ctx, text)
	if err != nil {
		return Message{}, err
	}
	return ex.Wait(), nil
}

// Wait blocks until every in-flight exchange has resolved.
func (s *Service) Wait() {
	s.busy.WaitIdle()
}

func (s *Service) dispatch(ctx context.Context, ex *Exchange, snap settings.Snapshot) {
	defer close(ex.done)
	defer s.busy.lower()

	// 4) one outbound request
	req := backend.ChatRequest{
		SessionID:   ex.SessionID,
		Message:     ex.UserMessage.Text,
		Provider:    string(snap.Provider),
		Model:       snap.Settings.Model,
		Temperature: snap.Settings.Temperature,
		Timeout:     snap.Settings.Timeout,
		MaxTokens:   snap.Settings.MaxTokens,
		MaxRetries:  snap.Settings.MaxRetries,
		SelectedKBs: snap.SelectedKnowledgeBaseIDs,
		SelectedDBs: snap.SelectedDatabaseIDs,
		Agent:       snap.Settings.Agent,
		APIKey:      snap.APIKey(),
	}

	start := time.Now()
	resp, err := s.backend.Chat(ctx, req)
	if err == nil && resp == nil {
		err = errors.New("chat: empty backend response")
	}

	// 5) resolve into exactly one bot message
	text := FailureReply
	if err != nil {
		ex.err = err
		s.log.Error(logModule, "failed to send message", map[string]any{
			"session_id": ex.SessionID,
			"provider":   req.Provider,
			"model":      req.Model,
			"cost":       time.Since(start).String(),
			"error":      err,
		})
	} else {
		text = resp.Reply
		ex.resp = resp
	}

	ex.reply = newMessage(ReplyTo(ex.UserMessage.ID), SenderBot, text, s.now())
	ex.delivered = s.store.AppendMessage(ex.SessionID, ex.reply)
	if !ex.delivered {
		s.log.Debug(logModule, "reply dropped, session no longer exists", map[string]any{
			"session_id": ex.SessionID,
		})
	}
}
