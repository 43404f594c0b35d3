package repl

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suPer8Hu/guruji-chat/internal/backend"
	"github.com/suPer8Hu/guruji-chat/internal/chat"
	"github.com/suPer8Hu/guruji-chat/internal/logger"
	"github.com/suPer8Hu/guruji-chat/internal/prompts"
	"github.com/suPer8Hu/guruji-chat/internal/settings"
)

type fakeBackend struct {
	mu   sync.Mutex
	reqs []backend.ChatRequest
	err  error
}

func (f *fakeBackend) Chat(_ context.Context, req backend.ChatRequest) (*backend.ChatResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reqs = append(f.reqs, req)
	if f.err != nil {
		return nil, f.err
	}
	return &backend.ChatResponse{Reply: "echo: " + req.Message}, nil
}

type fakeKBs struct {
	list    []backend.KnowledgeBase
	deleted []string
}

func (f *fakeKBs) ListKnowledgeBases(context.Context) ([]backend.KnowledgeBase, error) {
	return f.list, nil
}

func (f *fakeKBs) DeleteKnowledgeBase(_ context.Context, id string) error {
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeKBs) ListAgents(context.Context) ([]backend.Agent, error) {
	return []backend.Agent{
		{Name: "MathWhiz", Description: "math"},
		{Name: "Generalist", Description: "chat"},
	}, nil
}

// syncBuffer is written by exchange goroutines and read by the test.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func (b *syncBuffer) Reset() {
	b.mu.Lock()
	b.buf.Reset()
	b.mu.Unlock()
}

// gatedBackend holds every reply until release is closed.
type gatedBackend struct {
	started chan string
	release chan struct{}
}

func newGatedBackend() *gatedBackend {
	return &gatedBackend{started: make(chan string, 4), release: make(chan struct{})}
}

func (g *gatedBackend) Chat(ctx context.Context, req backend.ChatRequest) (*backend.ChatResponse, error) {
	g.started <- req.Message
	select {
	case <-g.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return &backend.ChatResponse{Reply: "late: " + req.Message}, nil
}

func newREPL(t *testing.T, be chat.Backend, dir Directory) (*REPL, *chat.Service, *syncBuffer) {
	t.Helper()
	svc := chat.NewService(chat.NewStore(), settings.NewStore(), be, logger.NewNop())
	out := &syncBuffer{}
	r := New(svc, prompts.NewLibrary(), dir, out)
	t.Cleanup(r.Close)
	return r, svc, out
}

func TestNew_EnsuresDefaultSession(t *testing.T) {
	_, svc, _ := newREPL(t, &fakeBackend{}, nil)
	assert.Equal(t, 1, svc.Store().Len())
	assert.NotEmpty(t, svc.Store().ActiveID())
}

func TestHandle_PlainLineSends(t *testing.T) {
	be := &fakeBackend{}
	r, svc, out := newREPL(t, be, nil)

	require.NoError(t, r.Handle(context.Background(), "Hello"))

	s, ok := svc.Store().Active()
	require.True(t, ok)
	require.Len(t, s.Messages, 2)
	assert.Equal(t, "Hello", s.Messages[0].Text)
	assert.Equal(t, "echo: Hello", s.Messages[1].Text)
	assert.Contains(t, out.String(), "echo: Hello")
	assert.Empty(t, svc.Draft())
}

func TestHandle_FailedSendShowsFailureReply(t *testing.T) {
	r, _, out := newREPL(t, &fakeBackend{err: errors.New("down")}, nil)
	require.NoError(t, r.Handle(context.Background(), "Hello"))
	assert.Contains(t, out.String(), chat.FailureReply)
}

func TestHandle_BlankLineIsIgnored(t *testing.T) {
	be := &fakeBackend{}
	r, _, out := newREPL(t, be, nil)
	require.NoError(t, r.Handle(context.Background(), "   "))
	assert.Empty(t, be.reqs)
	assert.Empty(t, out.String())
}

func TestHandle_Quit(t *testing.T) {
	r, _, _ := newREPL(t, &fakeBackend{}, nil)
	assert.ErrorIs(t, r.Handle(context.Background(), "/quit"), ErrQuit)
}

func TestHandle_SessionCommands(t *testing.T) {
	ctx := context.Background()
	r, svc, out := newREPL(t, &fakeBackend{}, nil)
	store := svc.Store()
	first := store.ActiveID()

	require.NoError(t, r.Handle(ctx, "/new"))
	assert.Equal(t, 2, store.Len())
	second := store.ActiveID()
	assert.NotEqual(t, first, second)

	// display order is newest first, so the original chat is #2
	require.NoError(t, r.Handle(ctx, "/select 2"))
	assert.Equal(t, first, store.ActiveID())

	require.NoError(t, r.Handle(ctx, "/rename Groceries | weekly list"))
	s, _ := store.Active()
	assert.Equal(t, "Groceries", s.Title)
	assert.Equal(t, "weekly list", s.Description)

	out.Reset()
	require.NoError(t, r.Handle(ctx, "/search groc"))
	assert.Contains(t, out.String(), "Groceries")
	assert.NotContains(t, out.String(), chat.DefaultTitle)

	out.Reset()
	require.NoError(t, r.Handle(ctx, "/select 9"))
	assert.Contains(t, out.String(), "no chat 9")
	assert.Equal(t, first, store.ActiveID())

	require.NoError(t, r.Handle(ctx, "/delete"))
	assert.Equal(t, 1, store.Len())
	assert.Equal(t, second, store.ActiveID())
}

func TestHandle_DeleteLastSessionRecreatesDefault(t *testing.T) {
	r, svc, _ := newREPL(t, &fakeBackend{}, nil)
	old := svc.Store().ActiveID()

	require.NoError(t, r.Handle(context.Background(), "/delete 1"))

	assert.Equal(t, 1, svc.Store().Len())
	assert.NotEqual(t, old, svc.Store().ActiveID())
	s, ok := svc.Store().Active()
	require.True(t, ok)
	assert.Equal(t, chat.DefaultTitle, s.Title)
}

func TestHandle_Clear(t *testing.T) {
	ctx := context.Background()
	r, svc, _ := newREPL(t, &fakeBackend{}, nil)
	require.NoError(t, r.Handle(ctx, "hi"))
	require.NoError(t, r.Handle(ctx, "/clear"))
	s, _ := svc.Store().Active()
	assert.Empty(t, s.Messages)
}

func TestHandle_SettingsCommands(t *testing.T) {
	ctx := context.Background()
	be := &fakeBackend{}
	r, svc, out := newREPL(t, be, nil)

	require.NoError(t, r.Handle(ctx, "/model openai gpt-4o-mini"))
	require.NoError(t, r.Handle(ctx, "/key OpenAI sk-abc"))
	require.NoError(t, r.Handle(ctx, "/temp 0.2"))
	require.NoError(t, r.Handle(ctx, "/kb kb1 kb2"))

	snap := svc.Settings().Snapshot()
	assert.Equal(t, settings.ProviderOpenAI, snap.Provider)
	assert.Equal(t, "gpt-4o-mini", snap.Settings.Model)
	assert.Equal(t, "sk-abc", snap.APIKey())
	assert.Equal(t, 0.2, snap.Settings.Temperature)
	assert.Equal(t, []string{"kb1", "kb2"}, snap.SelectedKnowledgeBaseIDs)

	require.NoError(t, r.Handle(ctx, "hi"))
	require.Len(t, be.reqs, 1)
	assert.Equal(t, "OpenAI", be.reqs[0].Provider)
	assert.Equal(t, "sk-abc", be.reqs[0].APIKey)
	assert.Equal(t, []string{"kb1", "kb2"}, be.reqs[0].SelectedKBs)

	out.Reset()
	require.NoError(t, r.Handle(ctx, "/temp 5"))
	assert.Contains(t, out.String(), "invalid settings")
	assert.Equal(t, 0.2, svc.Settings().Settings().Temperature)

	out.Reset()
	require.NoError(t, r.Handle(ctx, "/model claude"))
	assert.Contains(t, out.String(), "unknown provider")
}

func TestHandle_KnowledgeBases(t *testing.T) {
	ctx := context.Background()
	kbs := &fakeKBs{list: []backend.KnowledgeBase{{ID: "kb1", KBName: "Docs"}, {ID: "kb2", KBName: "Wiki"}}}
	r, svc, out := newREPL(t, &fakeBackend{}, kbs)

	require.NoError(t, r.Handle(ctx, "/kb kb1 kb2"))
	out.Reset()
	require.NoError(t, r.Handle(ctx, "/kb"))
	assert.Contains(t, out.String(), "* kb1  Docs")

	require.NoError(t, r.Handle(ctx, "/kb rm kb1"))
	assert.Equal(t, []string{"kb1"}, kbs.deleted)
	assert.Equal(t, []string{"kb2"}, svc.Settings().Snapshot().SelectedKnowledgeBaseIDs)
}

func TestHandle_Prompts(t *testing.T) {
	ctx := context.Background()
	r, svc, out := newREPL(t, &fakeBackend{}, nil)

	require.NoError(t, r.Handle(ctx, "/prompts"))
	assert.Contains(t, out.String(), "Summarize Text")

	require.NoError(t, r.Handle(ctx, "/prompt 1"))
	assert.Contains(t, svc.Draft(), "summarize the following text")

	out.Reset()
	require.NoError(t, r.Handle(ctx, "/prompt 7"))
	assert.Contains(t, out.String(), "no prompt")
}

func TestHandle_UnknownCommand(t *testing.T) {
	be := &fakeBackend{}
	r, _, out := newREPL(t, be, nil)
	require.NoError(t, r.Handle(context.Background(), "/frobnicate"))
	assert.Contains(t, out.String(), "unknown command /frobnicate")
	assert.Empty(t, be.reqs)
}

func TestHandle_SendsLiteralInput(t *testing.T) {
	be := &fakeBackend{}
	r, svc, _ := newREPL(t, be, nil)

	require.NoError(t, r.Handle(context.Background(), "  indented code\n"))

	require.Len(t, be.reqs, 1)
	assert.Equal(t, "  indented code", be.reqs[0].Message)
	s, _ := svc.Store().Active()
	assert.Equal(t, "  indented code", s.Messages[0].Text)
}

func TestHandle_ShowsIndicatorWhileWaiting(t *testing.T) {
	be := newGatedBackend()
	r, svc, out := newREPL(t, be, nil)

	done := make(chan error, 1)
	go func() { done <- r.Handle(context.Background(), "Hello") }()

	assert.Equal(t, "Hello", <-be.started)
	assert.True(t, svc.Busy().IsBusy())
	assert.Contains(t, out.String(), thinkingText)
	assert.NotContains(t, out.String(), clearLine)

	// a second line while waiting is refused
	require.NoError(t, r.Handle(context.Background(), "again"))
	assert.Contains(t, out.String(), "still waiting for the previous reply")

	close(be.release)
	require.NoError(t, <-done)

	assert.False(t, svc.Busy().IsBusy())
	got := out.String()
	assert.Contains(t, got, clearLine)
	assert.Contains(t, got, "late: Hello")
	assert.Less(t, strings.Index(got, clearLine), strings.Index(got, "late: Hello"))

	s, _ := svc.Store().Active()
	assert.Len(t, s.Messages, 2)
}

func TestStoreEvents_AnnounceReplyInOtherChat(t *testing.T) {
	be := newGatedBackend()
	_, svc, out := newREPL(t, be, nil)
	store := svc.Store()
	first := store.ActiveID()
	require.True(t, store.RenameSession(first, "Research", ""))

	ex, err := svc.Submit(context.Background(), "question")
	require.NoError(t, err)
	<-be.started

	store.CreateSession() // now active
	close(be.release)
	ex.Wait()

	assert.True(t, ex.Delivered())
	assert.Contains(t, out.String(), "new reply in Research")
}

func TestStoreEvents_QuietForActiveChat(t *testing.T) {
	r, _, out := newREPL(t, &fakeBackend{}, nil)
	require.NoError(t, r.Handle(context.Background(), "hi"))
	assert.NotContains(t, out.String(), "new reply in")
}

type toolBackend struct{ req backend.ChatRequest }

func (b *toolBackend) Chat(_ context.Context, req backend.ChatRequest) (*backend.ChatResponse, error) {
	b.req = req
	return &backend.ChatResponse{
		Reply:     "579",
		AgentUsed: "MathWhiz",
		ToolCalls: []backend.ToolCall{{Tool: "calculator", Result: "The result is 579"}},
	}, nil
}

func TestHandle_Agents(t *testing.T) {
	ctx := context.Background()
	be := &toolBackend{}
	r, svc, out := newREPL(t, be, &fakeKBs{})

	require.NoError(t, r.Handle(ctx, "/agent MathWhiz"))
	assert.Equal(t, "MathWhiz", svc.Settings().Settings().Agent)

	require.NoError(t, r.Handle(ctx, "/agents"))
	assert.Contains(t, out.String(), "* MathWhiz")

	require.NoError(t, r.Handle(ctx, "123 + 456"))
	assert.Equal(t, "MathWhiz", be.req.Agent)
	assert.Contains(t, out.String(), "MathWhiz used calculator: The result is 579")

	require.NoError(t, r.Handle(ctx, "/agent"))
	assert.Empty(t, svc.Settings().Settings().Agent)
}
