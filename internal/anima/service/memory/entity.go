package memory

import (
	"time"
)

// Role represents the role of a message sender.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single durable conversation message.
type Message struct {
	ID        int64     `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Summary is a compressed topic description created by archival.
type Summary struct {
	UUID         string    `json:"uuid"`
	Text         string    `json:"text"`
	Rounds       int       `json:"rounds"`
	MessageCount int       `json:"message_count"`
	CreatedAt    time.Time `json:"created_at"`
	EndedAt      time.Time `json:"ended_at"`
}

// StyleKind separates agent-configured styles from learned user habits.
type StyleKind string

const (
	StyleAgent StyleKind = "agent"
	StyleUser  StyleKind = "user"
)

// ExpressionStyle is a catchphrase or wording habit with its meaning.
type ExpressionStyle struct {
	UUID       string    `json:"uuid"`
	Kind       StyleKind `json:"kind"`
	Expression string    `json:"expression"`
	Meaning    string    `json:"meaning"`
	Category   string    `json:"category"`
	CreatedAt  time.Time `json:"created_at"`
}

// Metadata keys for the persistent counters. They live exclusively in the
// store so restarts never reset scheduling predicates.
const (
	MetaTotalConversations       = "total_conversations"
	MetaLastEmotionRounds        = "last_emotion_rounds"
	MetaLastExpressionLearnRound = "last_expression_learn_rounds"
)
