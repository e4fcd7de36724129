package chatbot

import "time"

// Origin identifies who authored a transcript message.
type Origin string

const (
	OriginBot  Origin = "bot"
	OriginUser Origin = "user"
)

// Message is one transcript entry. Messages are append-only.
type Message struct {
	ID        int64     `json:"id"`
	Text      string    `json:"text"`
	Origin    Origin    `json:"origin"`
	CreatedAt time.Time `json:"created_at"`
}

// IsBot reports whether the bot authored the message.
func (m Message) IsBot() bool {
	return m.Origin == OriginBot
}

// ConversationState is a snapshot of an engine.
type ConversationState struct {
	CurrentStep int       `json:"current_step"`
	Transcript  []Message `json:"transcript"`
	Options     []string  `json:"options,omitempty"`
	Opened      bool      `json:"opened"`
	Terminal    bool      `json:"terminal"`
}

// Outcome classifies how a reply was handled.
type Outcome string

const (
	OutcomeIgnored  Outcome = "ignored"
	OutcomeAdvanced Outcome = "advanced"
	OutcomeDeclined Outcome = "declined"
	OutcomeContact  Outcome = "contact"
	OutcomeClosed   Outcome = "closed"
)
