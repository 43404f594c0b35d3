package chat

import "time"

type Sender string

const (
	SenderUser Sender = "user"
	SenderBot  Sender = "bot"
)

const (
	DefaultTitle = "New Chat"

	// FailureReply replaces the bot turn whenever the backend call fails.
	FailureReply = "Sorry, I couldn't get a response. Please try again."

	timestampLayout = "15:04:05"
)

type Message struct {
	ID        int64  `json:"id"`
	Text      string `json:"text"`
	Sender    Sender `json:"sender"`
	Timestamp string `json:"timestamp"`
}

func newMessage(id int64, sender Sender, text string, at time.Time) Message {
	return Message{
		ID:        id,
		Text:      text,
		Sender:    sender,
		Timestamp: at.Format(timestampLayout),
	}
}

type Session struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Messages    []Message `json:"messages"`
}

func (s *Session) clone() Session {
	out := *s
	out.Messages = make([]Message, len(s.Messages))
	copy(out.Messages, s.Messages)
	return out
}
