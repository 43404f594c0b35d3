package chat

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// ReplyIDOffset separates a bot reply's id from the user message it answers.
const ReplyIDOffset = 1

func NewSessionID() string {
	return uuid.NewString()
}

// MessageIDs hands out message ids seeded from the millisecond clock.
// Ids are strictly increasing and every Next reserves the slot
// id+ReplyIDOffset for ReplyTo, so two messages never share an id even
// when created in the same millisecond.
type MessageIDs struct {
	mu   sync.Mutex
	last int64
	now  func() time.Time
}

func NewMessageIDs() *MessageIDs {
	return &MessageIDs{now: time.Now}
}

func (g *MessageIDs) Next() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()

	id := g.now().UnixMilli()
	if floor := g.last + 1; id < floor {
		id = floor
	}
	g.last = id + ReplyIDOffset
	return id
}

func ReplyTo(userMsgID int64) int64 {
	return userMsgID + ReplyIDOffset
}
