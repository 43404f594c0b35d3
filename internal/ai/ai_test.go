package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

func TestOpenAIProvider_Chat(t *testing.T) {
	var got openAIChatReq
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		auth = r.Header.Get("Authorization")
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"pong"}}]}`))
	}))
	defer srv.Close()

	p := NewOpenAIProvider(srv.URL+"/", ProviderConfig{Model: "gpt-4", APIKey: "sk-test", Temperature: 0.3, MaxTokens: 50})
	reply, err := p.Chat(context.Background(), []Message{{Role: RoleUser, Content: "ping"}})
	require.NoError(t, err)

	assert.Equal(t, "pong", reply)
	assert.Equal(t, "Bearer sk-test", auth)
	assert.Equal(t, "gpt-4", got.Model)
	assert.Equal(t, 0.3, got.Temperature)
	assert.Equal(t, 50, got.MaxTokens)
	assert.False(t, got.Stream)
	assert.Equal(t, []openAIMsg{{Role: "user", Content: "ping"}}, got.Messages)
}

func TestOpenAIProvider_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`bad key`))
	}))
	defer srv.Close()

	tests := []struct {
		name    string
		cfg     ProviderConfig
		wantErr string
	}{
		{name: "missing key", cfg: ProviderConfig{Model: "gpt-4"}, wantErr: "api key is required"},
		{name: "missing model", cfg: ProviderConfig{APIKey: "k"}, wantErr: "model is required"},
		{name: "upstream status", cfg: ProviderConfig{APIKey: "k", Model: "gpt-4"}, wantErr: "openai: bad key"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewOpenAIProvider(srv.URL, tt.cfg)
			_, err := p.Chat(context.Background(), []Message{{Role: RoleUser, Content: "x"}})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestOllamaProvider_Chat(t *testing.T) {
	var got ollamaChatReq
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"message":{"role":"assistant","content":"hi"}}`))
	}))
	defer srv.Close()

	p := NewOllamaProvider(srv.URL, ProviderConfig{Temperature: 0.9, MaxTokens: 128})
	reply, err := p.Chat(context.Background(), []Message{
		{Role: RoleSystem, Content: "be brief"},
		{Role: RoleUser, Content: "hello"},
	})
	require.NoError(t, err)

	assert.Equal(t, "hi", reply)
	assert.Equal(t, "llama3:latest", got.Model)
	assert.Equal(t, 0.9, got.Options.Temperature)
	assert.Equal(t, 128, got.Options.NumPredict)
	assert.Len(t, got.Messages, 2)
}

func TestOllamaProvider_ErrorField(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"error":"model not found"}`))
	}))
	defer srv.Close()

	_, err := NewOllamaProvider(srv.URL, ProviderConfig{}).Chat(context.Background(), nil)
	assert.EqualError(t, err, "model not found")
}

func TestProviders_BoundedByContextDeadline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ollama := NewOllamaProvider(srv.URL, ProviderConfig{})
	openai := NewOpenAIProvider(srv.URL, ProviderConfig{Model: "gpt-4", APIKey: "k"})
	assert.Zero(t, ollama.Client.Timeout)
	assert.Zero(t, openai.Client.Timeout)

	for name, p := range map[string]Provider{"ollama": ollama, "openai": openai} {
		t.Run(name, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
			defer cancel()
			_, err := p.Chat(ctx, []Message{{Role: RoleUser, Content: "x"}})
			assert.ErrorIs(t, err, context.DeadlineExceeded)
		})
	}
}

type stubProvider struct{ cfg ProviderConfig }

func (s *stubProvider) Chat(context.Context, []Message) (string, error) { return s.cfg.Model, nil }

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	r.Register(" OpenAI ", func(ctx context.Context, cfg ProviderConfig) (Provider, error) {
		return &stubProvider{cfg: cfg}, nil
	})

	p, err := r.Get(context.Background(), "openai", ProviderConfig{Model: "gpt-4"})
	require.NoError(t, err)
	reply, _ := p.Chat(context.Background(), nil)
	assert.Equal(t, "gpt-4", reply)

	_, err = r.Get(context.Background(), "claude", ProviderConfig{})
	assert.EqualError(t, err, "unknown ai provider: claude")

	assert.Equal(t, []string{"openai"}, r.Names())
}

func TestGeminiContents(t *testing.T) {
	system, contents := geminiContents([]Message{
		{Role: RoleSystem, Content: "rule one"},
		{Role: RoleUser, Content: "hi"},
		{Role: RoleAssistant, Content: "hello"},
		{Role: RoleSystem, Content: "rule two"},
		{Role: RoleUser, Content: "again"},
	})

	require.NotNil(t, system)
	assert.Equal(t, "rule one\n\nrule two", system.Parts[0].Text)

	require.Len(t, contents, 3)
	assert.Equal(t, string(genai.RoleUser), contents[0].Role)
	assert.Equal(t, string(genai.RoleModel), contents[1].Role)
	assert.Equal(t, "hello", contents[1].Parts[0].Text)
	assert.Equal(t, "again", contents[2].Parts[0].Text)

	system, _ = geminiContents([]Message{{Role: RoleUser, Content: "x"}})
	assert.Nil(t, system)
}

func TestNewGeminiProvider_RequiresKey(t *testing.T) {
	_, err := NewGeminiProvider(context.Background(), ProviderConfig{Model: "gemini-pro"})
	assert.EqualError(t, err, "gemini: api key is required")
}

func TestRegisterDefaults(t *testing.T) {
	r := NewRegistry()
	RegisterDefaults(r, Defaults{
		OpenAIBaseURL: "http://openai.local/v1",
		OpenAIAPIKey:  "server-key",
		OllamaBaseURL: "http://ollama.local",
		OllamaModel:   "mistral",
	})
	ctx := context.Background()

	assert.Equal(t, []string{"gemini", "ollama", "openai"}, r.Names())

	p, err := r.Get(ctx, "OpenAI", ProviderConfig{Model: "gpt-4"})
	require.NoError(t, err)
	assert.Equal(t, "server-key", p.(*OpenAIProvider).APIKey)

	p, err = r.Get(ctx, "OpenAI", ProviderConfig{Model: "gpt-4", APIKey: "user-key"})
	require.NoError(t, err)
	assert.Equal(t, "user-key", p.(*OpenAIProvider).APIKey)

	p, err = r.Get(ctx, "Ollama", ProviderConfig{})
	require.NoError(t, err)
	assert.Equal(t, "mistral", p.(*OllamaProvider).Model)
	assert.Equal(t, "http://ollama.local", p.(*OllamaProvider).BaseURL)

	// no server key and none in the request
	_, err = r.Get(ctx, "Gemini", ProviderConfig{Model: "gemini-pro"})
	assert.Error(t, err)

	_, err = r.Get(ctx, "claude", ProviderConfig{})
	assert.ErrorIs(t, err, ErrUnknownProvider)
}
