package results

import "time"

// Sender identifies who wrote a chat message.
type Sender string

const (
	SenderUser      Sender = "user"
	SenderAssistant Sender = "assistant"
)

// Message is one conversational turn.
type Message struct {
	Sender    Sender
	Content   string
	CreatedAt time.Time
}

// Transcript accumulates chat turns oldest first, independently of the
// result log.
type Transcript struct {
	messages []Message
}

// NewTranscript returns an empty transcript.
func NewTranscript() *Transcript {
	return &Transcript{}
}

// Append adds a turn to the end of the transcript.
func (t *Transcript) Append(sender Sender, content string) Message {
	message := Message{Sender: sender, Content: content, CreatedAt: time.Now()}
	t.messages = append(t.messages, message)
	return message
}

// ClearAll empties the transcript. Idempotent.
func (t *Transcript) ClearAll() {
	t.messages = nil
}

// All returns a copy of the turns, oldest first.
func (t *Transcript) All() []Message {
	return append([]Message(nil), t.messages...)
}

// Len reports the number of turns.
func (t *Transcript) Len() int {
	return len(t.messages)
}
