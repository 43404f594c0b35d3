// Package repl is the terminal front end of the chat client. It turns
// slash commands into session, settings and prompt operations and plain
// lines into chat exchanges.
package repl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/suPer8Hu/guruji-chat/internal/backend"
	"github.com/suPer8Hu/guruji-chat/internal/chat"
	"github.com/suPer8Hu/guruji-chat/internal/prompts"
	"github.com/suPer8Hu/guruji-chat/internal/settings"
)

// ErrQuit is returned by Handle for /quit.
var ErrQuit = errors.New("quit")

// Directory is the part of backend.Client the REPL needs.
type Directory interface {
	ListKnowledgeBases(ctx context.Context) ([]backend.KnowledgeBase, error)
	DeleteKnowledgeBase(ctx context.Context, id string) error
	ListAgents(ctx context.Context) ([]backend.Agent, error)
}

type REPL struct {
	svc     *chat.Service
	prompts *prompts.Library
	dir     Directory

	// out is written from the input loop and from exchange goroutines.
	outMu       sync.Mutex
	out         io.Writer
	unsubscribe func()
}

const (
	thinkingText = "thinking..."
	clearLine    = "\r\033[K"
)

// New wires the REPL to the service: a waiting indicator follows the busy
// signal, and replies that land in a chat other than the active one are
// announced.
func New(svc *chat.Service, lib *prompts.Library, dir Directory, out io.Writer) *REPL {
	svc.Store().EnsureDefault()
	r := &REPL{svc: svc, prompts: lib, dir: dir, out: out}
	svc.Busy().Watch(r.showBusy)
	r.unsubscribe = svc.Store().Subscribe(r.onStoreEvent)
	return r
}

// Close detaches the REPL from the session store.
func (r *REPL) Close() {
	r.unsubscribe()
}

func (r *REPL) showBusy(busy bool) {
	r.outMu.Lock()
	defer r.outMu.Unlock()
	if busy {
		fmt.Fprint(r.out, dimStyle.Render(thinkingText))
		return
	}
	fmt.Fprint(r.out, clearLine)
}

func (r *REPL) onStoreEvent(ev chat.Event) {
	if ev.Kind != chat.EventAppended || ev.SessionID == ev.ActiveID {
		return
	}
	s, ok := r.svc.Store().Session(ev.SessionID)
	if !ok || len(s.Messages) == 0 || s.Messages[len(s.Messages)-1].Sender != chat.SenderBot {
		return
	}
	r.println(activeStyle.Render("new reply in " + s.Title))
}

const helpText = `commands:
  /new                          start a new chat
  /list                         list chats
  /select <n>                   switch to chat n
  /rename <title> [| desc]      rename the active chat
  /delete [n]                   delete chat n (default: active)
  /clear                        clear the active chat
  /search <q>                   find chats by title
  /model <provider> [model]     choose provider and model
  /key <provider> <key>         set a provider api key
  /temp <f>                     set temperature (0-2)
  /agents                       list backend agents
  /agent [name]                 pin an agent (no name: automatic)
  /kb [id...]                   list knowledge bases or select ids
  /kb rm <id>                   delete a knowledge base
  /prompts                      list prompt templates
  /prompt <n>                   load template n into the input
  /help                         this text
  /quit                         exit`

// Handle runs one input line. Errors from commands are printed and
// swallowed; only ErrQuit is returned.
func (r *REPL) Handle(ctx context.Context, input string) error {
	line := strings.TrimSpace(input)
	if line == "" {
		return nil
	}
	if !strings.HasPrefix(line, "/") {
		r.send(ctx, strings.TrimRight(input, "\r\n"))
		return nil
	}

	cmd, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)

	var err error
	switch cmd {
	case "/quit", "/exit":
		return ErrQuit
	case "/help":
		r.println(dimStyle.Render(helpText))
	case "/new":
		id := r.svc.Store().CreateSession()
		r.println(dimStyle.Render("new chat " + shortID(id)))
	case "/list":
		r.listSessions(r.svc.Store().Sessions())
	case "/select":
		err = r.selectSession(rest)
	case "/rename":
		err = r.rename(rest)
	case "/delete":
		err = r.deleteSession(rest)
	case "/clear":
		if !r.svc.Store().ClearMessages(r.svc.Store().ActiveID()) {
			err = chat.ErrNoActiveSession
		}
	case "/search":
		r.listSessions(r.svc.Store().Search(rest))
	case "/model":
		err = r.setModel(rest)
	case "/key":
		err = r.setKey(rest)
	case "/temp":
		err = r.setTemperature(rest)
	case "/agents":
		err = r.listAgents(ctx)
	case "/agent":
		err = r.setAgent(rest)
	case "/kb":
		err = r.knowledgeBases(ctx, rest)
	case "/prompts":
		for i, p := range r.prompts.List() {
			r.println(fmt.Sprintf("%2d  %s", i+1, p.Title))
		}
	case "/prompt":
		err = r.usePrompt(rest)
	default:
		err = fmt.Errorf("unknown command %s (try /help)", cmd)
	}

	if err != nil {
		r.println(errorStyle.Render("error: " + err.Error()))
	}
	return nil
}

func (r *REPL) send(ctx context.Context, text string) {
	if r.svc.Busy().IsBusy() {
		r.println(dimStyle.Render("still waiting for the previous reply"))
		return
	}
	r.svc.SetDraft(text)
	ex, err := r.svc.SubmitDraft(ctx)
	if err != nil {
		// rejected input is dropped without a message
		return
	}
	reply := ex.Wait()
	if !ex.Delivered() {
		return
	}
	r.println(botStyle.Render("bot") + dimStyle.Render(" "+reply.Timestamp) + "  " + reply.Text)
	if resp := ex.Response(); resp != nil {
		for _, call := range resp.ToolCalls {
			r.println(dimStyle.Render(fmt.Sprintf("    %s used %s: %s", resp.AgentUsed, call.Tool, call.Result)))
		}
	}
}

// PrintActive renders the active chat's transcript.
func (r *REPL) PrintActive() {
	s, ok := r.svc.Store().Active()
	if !ok {
		return
	}
	r.println(activeStyle.Render(s.Title))
	for _, m := range s.Messages {
		label := userStyle.Render("you")
		if m.Sender == chat.SenderBot {
			label = botStyle.Render("bot")
		}
		r.println(label + dimStyle.Render(" "+m.Timestamp) + "  " + m.Text)
	}
}

func (r *REPL) listSessions(list []chat.Session) {
	active := r.svc.Store().ActiveID()
	all := r.svc.Store().Sessions()
	for _, s := range list {
		n := indexOf(all, s.ID) + 1
		row := fmt.Sprintf("%2d  %s (%d messages)", n, s.Title, len(s.Messages))
		if s.ID == active {
			r.println(activeStyle.Render("* " + row))
			continue
		}
		r.println("  " + row)
	}
}

// sessionAt resolves a 1-based position in display order.
func (r *REPL) sessionAt(arg string) (chat.Session, error) {
	n, err := strconv.Atoi(arg)
	if err != nil {
		return chat.Session{}, fmt.Errorf("expected a chat number, got %q", arg)
	}
	all := r.svc.Store().Sessions()
	if n < 1 || n > len(all) {
		return chat.Session{}, fmt.Errorf("no chat %d", n)
	}
	return all[n-1], nil
}

func (r *REPL) selectSession(arg string) error {
	s, err := r.sessionAt(arg)
	if err != nil {
		return err
	}
	r.svc.Store().SelectSession(s.ID)
	r.PrintActive()
	return nil
}

func (r *REPL) rename(arg string) error {
	title, desc, _ := strings.Cut(arg, "|")
	title = strings.TrimSpace(title)
	if title == "" {
		return errors.New("usage: /rename <title> [| description]")
	}
	if !r.svc.Store().RenameSession(r.svc.Store().ActiveID(), title, strings.TrimSpace(desc)) {
		return chat.ErrNoActiveSession
	}
	return nil
}

func (r *REPL) deleteSession(arg string) error {
	id := r.svc.Store().ActiveID()
	if arg != "" {
		s, err := r.sessionAt(arg)
		if err != nil {
			return err
		}
		id = s.ID
	}
	if !r.svc.Store().DeleteSession(id) {
		return chat.ErrNoActiveSession
	}
	if _, created := r.svc.Store().EnsureDefault(); created {
		r.println(dimStyle.Render("new chat"))
	}
	return nil
}

func (r *REPL) setModel(arg string) error {
	fields := strings.Fields(arg)
	if len(fields) == 0 {
		snap := r.svc.Settings().Snapshot()
		r.println(fmt.Sprintf("%s / %s (temperature %s)", snap.Provider, snap.Settings.Model, snap.Settings.DisplayTemperature()))
		return nil
	}
	p, err := settings.ParseProvider(fields[0])
	if err != nil {
		return err
	}
	snap := r.svc.Settings().Snapshot()
	st := snap.Settings
	if len(fields) > 1 {
		st.Model = fields[1]
	}
	return r.svc.Settings().Save(p, snap.APIKeys, st)
}

func (r *REPL) setKey(arg string) error {
	fields := strings.Fields(arg)
	if len(fields) != 2 {
		return errors.New("usage: /key <provider> <key>")
	}
	p, err := settings.ParseProvider(fields[0])
	if err != nil {
		return err
	}
	snap := r.svc.Settings().Snapshot()
	snap.APIKeys[string(p)] = fields[1]
	return r.svc.Settings().Save(snap.Provider, snap.APIKeys, snap.Settings)
}

func (r *REPL) setTemperature(arg string) error {
	f, err := strconv.ParseFloat(arg, 64)
	if err != nil {
		return fmt.Errorf("expected a number, got %q", arg)
	}
	snap := r.svc.Settings().Snapshot()
	st := snap.Settings
	st.Temperature = f
	return r.svc.Settings().Save(snap.Provider, snap.APIKeys, st)
}

func (r *REPL) knowledgeBases(ctx context.Context, arg string) error {
	fields := strings.Fields(arg)
	if len(fields) == 2 && fields[0] == "rm" {
		if r.dir == nil {
			return errors.New("no backend configured")
		}
		if err := r.dir.DeleteKnowledgeBase(ctx, fields[1]); err != nil {
			return err
		}
		r.svc.Settings().RemoveKnowledgeBase(fields[1])
		return nil
	}
	if len(fields) > 0 {
		r.svc.Settings().SelectKnowledgeBases(fields...)
		return nil
	}

	if r.dir == nil {
		return errors.New("no backend configured")
	}
	list, err := r.dir.ListKnowledgeBases(ctx)
	if err != nil {
		return err
	}
	selected := map[string]bool{}
	for _, id := range r.svc.Settings().Snapshot().SelectedKnowledgeBaseIDs {
		selected[id] = true
	}
	for _, kb := range list {
		row := fmt.Sprintf("%s  %s", kb.ID, kb.KBName)
		if selected[kb.ID] {
			r.println(activeStyle.Render("* " + row))
			continue
		}
		r.println("  " + row)
	}
	return nil
}

func (r *REPL) listAgents(ctx context.Context) error {
	if r.dir == nil {
		return errors.New("no backend configured")
	}
	list, err := r.dir.ListAgents(ctx)
	if err != nil {
		return err
	}
	pinned := r.svc.Settings().Settings().Agent
	for _, a := range list {
		row := fmt.Sprintf("%-14s %s", a.Name, a.Description)
		if strings.EqualFold(a.Name, pinned) {
			r.println(activeStyle.Render("* " + row))
			continue
		}
		r.println("  " + row)
	}
	return nil
}

func (r *REPL) setAgent(name string) error {
	snap := r.svc.Settings().Snapshot()
	st := snap.Settings
	st.Agent = name
	return r.svc.Settings().Save(snap.Provider, snap.APIKeys, st)
}

func (r *REPL) usePrompt(arg string) error {
	n, err := strconv.Atoi(arg)
	list := r.prompts.List()
	if err != nil || n < 1 || n > len(list) {
		return fmt.Errorf("no prompt %q", arg)
	}
	return r.prompts.Use(list[n-1].ID, r.svc)
}

func (r *REPL) println(s string) {
	r.outMu.Lock()
	fmt.Fprintln(r.out, s)
	r.outMu.Unlock()
}

func indexOf(list []chat.Session, id string) int {
	for i := range list {
		if list[i].ID == id {
			return i
		}
	}
	return -1
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
