package assistant

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suPer8Hu/guruji-chat/internal/ai"
	"github.com/suPer8Hu/guruji-chat/internal/history"
	"github.com/suPer8Hu/guruji-chat/internal/hub"
	"github.com/suPer8Hu/guruji-chat/internal/logger"
)

type recordingProvider struct {
	mu    sync.Mutex
	last  []ai.Message
	cfg   ai.ProviderConfig
	calls int
	fails int // fail this many calls first
}

func (p *recordingProvider) Chat(ctx context.Context, messages []ai.Message) (string, error) {
	_ = ctx
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	// copy to avoid mutations
	p.last = append([]ai.Message(nil), messages...)
	if p.calls <= p.fails {
		return "", errors.New("upstream unavailable")
	}
	return "ok", nil
}

type fakeKBs map[string]hub.KnowledgeBase

func (f fakeKBs) KnowledgeBasesByID(ctx context.Context, ids []string) ([]hub.KnowledgeBase, error) {
	var out []hub.KnowledgeBase
	for _, id := range ids {
		if kb, ok := f[id]; ok {
			out = append(out, kb)
		}
	}
	return out, nil
}

func newTestService(t *testing.T, prov *recordingProvider, window int) (*Service, history.Store) {
	t.Helper()
	reg := ai.NewRegistry()
	reg.Register("fake", func(ctx context.Context, cfg ai.ProviderConfig) (ai.Provider, error) {
		_ = ctx
		prov.cfg = cfg
		return prov, nil
	})
	h := history.NewMemoryStore(time.Hour)
	kbs := fakeKBs{"kb1": {ID: "kb1", KBName: "Product docs"}}
	return NewService(h, reg, kbs, window, logger.NewNop()), h
}

func TestReply_WritesUserAndAssistant(t *testing.T) {
	prov := &recordingProvider{}
	svc, h := newTestService(t, prov, 20)
	ctx := context.Background()

	id, _, err := svc.NewSession(ctx)
	require.NoError(t, err)

	reply, err := svc.Reply(ctx, Request{
		SessionID: id, Message: "Hello", Provider: "Fake", Model: "m1",
		Temperature: 0.4, MaxTokens: 99, APIKey: "user-key",
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", reply.Text)
	assert.Equal(t, "m1", reply.Model)

	assert.Equal(t, ai.ProviderConfig{Model: "m1", APIKey: "user-key", Temperature: 0.4, MaxTokens: 99}, prov.cfg)

	entries, err := h.Get(ctx, id)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "user", entries[0].Role)
	assert.Equal(t, "Hello", entries[0].Content)
	assert.Equal(t, "assistant", entries[1].Role)
	assert.Equal(t, "ok", entries[1].Content)
}

func TestReply_UsesContextWindow(t *testing.T) {
	prov := &recordingProvider{}
	window := 3
	svc, h := newTestService(t, prov, window)
	ctx := context.Background()

	// seed 5 past entries
	for i := 0; i < 5; i++ {
		role := "user"
		if i%2 == 1 {
			role = "assistant"
		}
		require.NoError(t, h.Append(ctx, "s1", history.Entry{Role: role, Content: string(rune('a' + i))}))
	}

	_, err := svc.Reply(ctx, Request{SessionID: "s1", Message: "latest", Provider: "fake"})
	require.NoError(t, err)

	// agent prompt + window + new message
	require.Len(t, prov.last, window+2)
	assert.Equal(t, ai.RoleSystem, prov.last[0].Role)
	assert.Equal(t, "c", prov.last[1].Content)
	assert.Equal(t, "latest", prov.last[window+1].Content)
}

func TestReply_UnknownSessionIsCreated(t *testing.T) {
	prov := &recordingProvider{}
	svc, _ := newTestService(t, prov, 20)
	ctx := context.Background()

	_, err := svc.Reply(ctx, Request{SessionID: "client-made-id", Message: "hi", Provider: "fake"})
	require.NoError(t, err)

	entries, err := svc.History(ctx, "client-made-id")
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestReply_SelectedKnowledgeBasesBecomeSystemMessage(t *testing.T) {
	prov := &recordingProvider{}
	svc, _ := newTestService(t, prov, 20)

	_, err := svc.Reply(context.Background(), Request{
		SessionID: "s", Message: "what changed?", Provider: "fake",
		SelectedKBs: []string{"kb1", "unknown"},
	})
	require.NoError(t, err)

	require.Len(t, prov.last, 3)
	assert.Equal(t, ai.RoleSystem, prov.last[1].Role)
	assert.Contains(t, prov.last[1].Content, `"Product docs"`)
}

func TestReply_Retries(t *testing.T) {
	t.Run("recovers within budget", func(t *testing.T) {
		prov := &recordingProvider{fails: 2}
		svc, _ := newTestService(t, prov, 20)

		reply, err := svc.Reply(context.Background(), Request{SessionID: "s", Message: "hi", Provider: "fake", MaxRetries: 2})
		require.NoError(t, err)
		assert.Equal(t, "ok", reply.Text)
		assert.Equal(t, 3, prov.calls)
	})

	t.Run("gives up and records nothing", func(t *testing.T) {
		prov := &recordingProvider{fails: 10}
		svc, h := newTestService(t, prov, 20)

		_, err := svc.Reply(context.Background(), Request{SessionID: "s", Message: "hi", Provider: "fake", MaxRetries: 1})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "upstream unavailable")
		assert.Equal(t, 2, prov.calls)

		_, err = h.Get(context.Background(), "s")
		assert.ErrorIs(t, err, history.ErrNotFound)
	})
}

func TestReply_Rejects(t *testing.T) {
	prov := &recordingProvider{}
	svc, _ := newTestService(t, prov, 20)

	_, err := svc.Reply(context.Background(), Request{SessionID: "s", Message: "  ", Provider: "fake"})
	assert.ErrorIs(t, err, ErrEmptyMessage)

	_, err = svc.Reply(context.Background(), Request{SessionID: "s", Message: "hi", Provider: "nope"})
	assert.ErrorIs(t, err, ai.ErrUnknownProvider)
	assert.Equal(t, 0, prov.calls)
}

func TestHistory_NotFound(t *testing.T) {
	svc, _ := newTestService(t, &recordingProvider{}, 20)
	_, err := svc.History(context.Background(), "missing")
	assert.ErrorIs(t, err, history.ErrNotFound)
}

func TestReply_AgentToolCalls(t *testing.T) {
	fixed := time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC)

	tests := []struct {
		name      string
		message   string
		agent     string
		wantAgent string
		wantTool  string
		wantArgs  map[string]any
		wantRes   string
	}{
		{
			name: "arithmetic goes to the calculator", message: "what is 123 + 456?",
			wantAgent: AgentMathWhiz, wantTool: "calculator",
			wantArgs: map[string]any{"a": 123.0, "b": 456.0, "op": "add"}, wantRes: "The result is 579",
		},
		{
			name: "search request", message: "search for go generics",
			wantAgent: AgentWebResearcher, wantTool: "web_search",
			wantArgs: map[string]any{"query": "search for go generics"}, wantRes: `"search for go generics"`,
		},
		{
			name: "time question", message: "what time is it?",
			wantAgent: AgentGeneralist, wantTool: "current_time",
			wantArgs: map[string]any{}, wantRes: "2025-03-04T05:06:07Z",
		},
		{
			name: "requested agent wins", message: "what time is it?", agent: "mathwhiz",
			wantAgent: AgentMathWhiz,
		},
		{
			name: "plain chat runs no tool", message: "hello there",
			wantAgent: AgentGeneralist,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prov := &recordingProvider{}
			svc, h := newTestService(t, prov, 20)
			svc.now = func() time.Time { return fixed }
			ctx := context.Background()

			reply, err := svc.Reply(ctx, Request{SessionID: "s", Message: tt.message, Provider: "fake", Agent: tt.agent})
			require.NoError(t, err)
			assert.Equal(t, tt.wantAgent, reply.AgentUsed)
			assert.NotNil(t, reply.ToolCalls)

			entries, err := h.Get(ctx, "s")
			require.NoError(t, err)
			assert.Equal(t, tt.wantAgent, entries[1].AgentUsed)

			if tt.wantTool == "" {
				assert.Empty(t, reply.ToolCalls)
				return
			}
			require.Len(t, reply.ToolCalls, 1)
			call := reply.ToolCalls[0]
			assert.Equal(t, tt.wantTool, call.Tool)
			assert.Equal(t, tt.wantArgs, call.Args)
			assert.Contains(t, call.Result, tt.wantRes)
			assert.Equal(t, reply.ToolCalls, entries[1].ToolCalls)

			// the tool result reaches the model just before the user turn
			n := len(prov.last)
			assert.Equal(t, ai.RoleSystem, prov.last[n-2].Role)
			assert.Contains(t, prov.last[n-2].Content, call.Result)
		})
	}
}

func TestReply_KnowledgeBasesSkipTools(t *testing.T) {
	prov := &recordingProvider{}
	svc, _ := newTestService(t, prov, 20)

	reply, err := svc.Reply(context.Background(), Request{
		SessionID: "s", Message: "2 * 3", Provider: "fake", SelectedKBs: []string{"kb1"},
	})
	require.NoError(t, err)
	assert.Equal(t, AgentMathWhiz, reply.AgentUsed)
	assert.Empty(t, reply.ToolCalls)
}

func TestCalculator(t *testing.T) {
	svc, _ := newTestService(t, &recordingProvider{}, 20)
	ctx := context.Background()

	tests := []struct {
		op      string
		a, b    float64
		want    string
		wantErr bool
	}{
		{op: "add", a: 1.5, b: 2, want: "The result is 3.5"},
		{op: "subtract", a: 10, b: 4, want: "The result is 6"},
		{op: "multiply", a: 3, b: 7, want: "The result is 21"},
		{op: "divide", a: 9, b: 2, want: "The result is 4.5"},
		{op: "divide", a: 1, b: 0, want: "Error: Division by zero."},
		{op: "modulo", a: 1, b: 1, wantErr: true},
	}
	for _, tt := range tests {
		got, err := svc.RunTool(ctx, "calculator", map[string]any{"a": tt.a, "b": tt.b, "op": tt.op})
		if tt.wantErr {
			assert.Error(t, err, tt.op)
			continue
		}
		require.NoError(t, err, tt.op)
		assert.Equal(t, tt.want, got)
	}

	_, err := svc.RunTool(ctx, "shell", nil)
	assert.ErrorIs(t, err, ErrUnknownTool)
}

func TestSelectAgent(t *testing.T) {
	assert.Equal(t, AgentMathWhiz, SelectAgent("12/4", "").Name)
	assert.Equal(t, AgentWebResearcher, SelectAgent("Look up the news", "").Name)
	assert.Equal(t, AgentGeneralist, SelectAgent("sometimes I wonder", "").Name)
	assert.Equal(t, AgentWebResearcher, SelectAgent("hi", "WebResearcher").Name)
	assert.Equal(t, AgentGeneralist, SelectAgent("hi", "nobody").Name)

	names := make([]string, 0, len(Agents()))
	for _, a := range Agents() {
		names = append(names, a.Name)
	}
	assert.Equal(t, []string{AgentMathWhiz, AgentWebResearcher, AgentGeneralist}, names)
}
