// Package prompts is the client-side library of reusable prompt templates.
package prompts

import (
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"
)

var (
	ErrNotFound   = errors.New("prompts: not found")
	ErrEmptyTitle = errors.New("prompts: title is required")
)

type Prompt struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

// DraftSetter receives a template's text; chat.Service satisfies it.
type DraftSetter interface {
	SetDraft(text string)
}

type Library struct {
	mu      sync.Mutex
	prompts []Prompt
}

// NewLibrary starts with the built-in "Summarize Text" template.
func NewLibrary() *Library {
	return &Library{prompts: []Prompt{{
		ID:      "default-summarize",
		Title:   "Summarize Text",
		Content: "Please summarize the following text in a few concise bullet points:\n\n",
	}}}
}

func (l *Library) Create(title, content string) (Prompt, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return Prompt{}, ErrEmptyTitle
	}
	p := Prompt{ID: uuid.NewString(), Title: title, Content: content}

	l.mu.Lock()
	l.prompts = append(l.prompts, p)
	l.mu.Unlock()
	return p, nil
}

func (l *Library) Update(id, title, content string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return ErrEmptyTitle
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	i := l.indexOf(id)
	if i < 0 {
		return ErrNotFound
	}
	l.prompts[i].Title = title
	l.prompts[i].Content = content
	return nil
}

func (l *Library) Delete(id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	i := l.indexOf(id)
	if i < 0 {
		return ErrNotFound
	}
	l.prompts = append(l.prompts[:i], l.prompts[i+1:]...)
	return nil
}

func (l *Library) Get(id string) (Prompt, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	i := l.indexOf(id)
	if i < 0 {
		return Prompt{}, false
	}
	return l.prompts[i], true
}

// List returns the templates in creation order.
func (l *Library) List() []Prompt {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Prompt, len(l.prompts))
	copy(out, l.prompts)
	return out
}

// Use places the template's content in the draft.
func (l *Library) Use(id string, d DraftSetter) error {
	p, ok := l.Get(id)
	if !ok {
		return ErrNotFound
	}
	d.SetDraft(p.Content)
	return nil
}

func (l *Library) indexOf(id string) int {
	for i := range l.prompts {
		if l.prompts[i].ID == id {
			return i
		}
	}
	return -1
}
