// Package settings holds the client's mutable request configuration: the
// selected provider, per-provider API keys, generation settings and the
// knowledge-base / database selections attached to every chat request.
package settings

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

type Provider string

const (
	ProviderGemini Provider = "Gemini"
	ProviderOpenAI Provider = "OpenAI"
	ProviderOllama Provider = "Ollama"
)

var Providers = []Provider{ProviderGemini, ProviderOpenAI, ProviderOllama}

// ParseProvider matches case-insensitively against the known providers.
func ParseProvider(s string) (Provider, error) {
	s = strings.TrimSpace(s)
	for _, p := range Providers {
		if strings.EqualFold(string(p), s) {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownProvider, s)
}

var ErrUnknownProvider = errors.New("unknown provider")

// Settings are the generation parameters spread into every chat request.
type Settings struct {
	Model       string  `json:"model" yaml:"model" validate:"required"`
	Temperature float64 `json:"temperature" yaml:"temperature" validate:"gte=0,lte=2"`
	MaxTokens   int     `json:"max_tokens" yaml:"max_tokens" validate:"gt=0"`
	Timeout     int     `json:"timeout" yaml:"timeout" validate:"gt=0"`
	MaxRetries  int     `json:"max_retries" yaml:"max_retries" validate:"gte=0"`
	// Agent pins a backend agent; empty lets the backend choose.
	Agent string `json:"agent,omitempty" yaml:"agent,omitempty"`
}

func DefaultSettings() Settings {
	return Settings{
		Model:       "gemini-pro",
		Temperature: 0.7,
		Timeout:     120,
		MaxTokens:   1024,
		MaxRetries:  2,
	}
}

// DisplayTemperature renders the temperature rounded to two decimals.
func (s Settings) DisplayTemperature() string {
	return strconv.FormatFloat(s.Temperature, 'f', 2, 64)
}

// Snapshot is a deep copy of the store taken at one instant.
type Snapshot struct {
	Provider                 Provider
	APIKeys                  map[string]string
	Settings                 Settings
	SelectedKnowledgeBaseIDs []string
	SelectedDatabaseIDs      []string
}

// APIKey returns the key of the snapshot's provider, "" when unset.
func (s Snapshot) APIKey() string {
	return s.APIKeys[string(s.Provider)]
}

type Store struct {
	mu       sync.RWMutex
	validate *validator.Validate

	provider Provider
	apiKeys  map[string]string
	settings Settings
	kbs      map[string]struct{}
	dbs      map[string]struct{}
}

func NewStore() *Store {
	return &Store{
		validate: validator.New(validator.WithRequiredStructEnabled()),
		provider: ProviderGemini,
		apiKeys:  map[string]string{},
		settings: DefaultSettings(),
		kbs:      map[string]struct{}{},
		dbs:      map[string]struct{}{},
	}
}

// Save replaces provider, keys and settings together. Nothing changes
// when validation fails.
func (s *Store) Save(provider Provider, apiKeys map[string]string, settings Settings) error {
	p, err := ParseProvider(string(provider))
	if err != nil {
		return err
	}
	if err := s.validate.Struct(settings); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}

	keys := make(map[string]string, len(apiKeys))
	for k, v := range apiKeys {
		keys[k] = v
	}

	s.mu.Lock()
	s.provider = p
	s.apiKeys = keys
	s.settings = settings
	s.mu.Unlock()
	return nil
}

func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make(map[string]string, len(s.apiKeys))
	for k, v := range s.apiKeys {
		keys[k] = v
	}
	return Snapshot{
		Provider:                 s.provider,
		APIKeys:                  keys,
		Settings:                 s.settings,
		SelectedKnowledgeBaseIDs: sortedKeys(s.kbs),
		SelectedDatabaseIDs:      sortedKeys(s.dbs),
	}
}

func (s *Store) Provider() Provider {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.provider
}

func (s *Store) Settings() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

func (s *Store) APIKey(provider Provider) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.apiKeys[string(provider)]
}

// SelectKnowledgeBases replaces the selected knowledge-base set.
func (s *Store) SelectKnowledgeBases(ids ...string) {
	s.mu.Lock()
	s.kbs = toSet(ids)
	s.mu.Unlock()
}

// ToggleKnowledgeBase flips one id and reports whether it is now selected.
func (s *Store) ToggleKnowledgeBase(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.kbs[id]; ok {
		delete(s.kbs, id)
		return false
	}
	s.kbs[id] = struct{}{}
	return true
}

// RemoveKnowledgeBase prunes a deleted knowledge base from the selection.
func (s *Store) RemoveKnowledgeBase(id string) {
	s.mu.Lock()
	delete(s.kbs, id)
	s.mu.Unlock()
}

func (s *Store) SelectDatabases(ids ...string) {
	s.mu.Lock()
	s.dbs = toSet(ids)
	s.mu.Unlock()
}

// RemoveDatabase prunes a deleted database connection from the selection.
func (s *Store) RemoveDatabase(id string) {
	s.mu.Lock()
	delete(s.dbs, id)
	s.mu.Unlock()
}

func toSet(ids []string) map[string]struct{} {
	out := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			out[id] = struct{}{}
		}
	}
	return out
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
