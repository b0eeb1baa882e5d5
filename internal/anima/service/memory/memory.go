package memory

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/kiosk404/anima/internal/anima/pkg/errno"
	"github.com/kiosk404/anima/internal/anima/service/llm"
	"github.com/kiosk404/anima/pkg/logger"
)

const ModuleName = "memory"

// Config bounds the layered memory behaviour.
type Config struct {
	// MaxShortTermRounds is the user-turn bound of the short-term log.
	MaxShortTermRounds int

	// ExtractionInterval triggers knowledge extraction every N user turns.
	ExtractionInterval int

	// SummariesInPrompt caps summaries emitted by ContextForChat.
	SummariesInPrompt int

	// ExpressionLearnInterval triggers user-habit learning every N user turns.
	ExpressionLearnInterval int
}

// Complete fills defaults.
func (c *Config) Complete() {
	if c.MaxShortTermRounds <= 0 {
		c.MaxShortTermRounds = 20
	}
	if c.ExtractionInterval <= 0 {
		c.ExtractionInterval = 5
	}
	if c.SummariesInPrompt <= 0 {
		c.SummariesInPrompt = 5
	}
	if c.ExpressionLearnInterval <= 0 {
		c.ExpressionLearnInterval = 10
	}
}

// KnowledgeSink receives statements mined from the conversation.
// The knowledge graph implements it.
type KnowledgeSink interface {
	SetDefinition(ctx context.Context, entityName, content, infoType, source string, confidence float64) error
	AddRelatedInfo(ctx context.Context, entityName, content, infoType, source string, confidence float64) error
}

// LayeredMemory maintains the bounded short-term log, the long-term summary
// layer and the turn counters that drive extraction and archival.
type LayeredMemory struct {
	repo Repository
	meta MetadataRepository
	llm  llm.Caller
	sink KnowledgeSink
	cfg  Config
}

// NewLayeredMemory creates the layered memory facade.
func NewLayeredMemory(repo Repository, meta MetadataRepository, caller llm.Caller, sink KnowledgeSink, cfg Config) *LayeredMemory {
	cfg.Complete()
	return &LayeredMemory{repo: repo, meta: meta, llm: caller, sink: sink, cfg: cfg}
}

// AddMessage appends a message and runs the scheduling predicates that hang
// off user turns: knowledge extraction, archival and expression learning.
// Trigger failures are logged and skipped; the append itself is the only
// operation whose error surfaces.
func (m *LayeredMemory) AddMessage(ctx context.Context, role Role, content string) error {
	if strings.TrimSpace(content) == "" {
		return fmt.Errorf("%w: empty message content", errno.ErrBadInput)
	}
	msg := &Message{Role: role, Content: content}
	if err := m.repo.AppendMessage(ctx, msg); err != nil {
		return err
	}
	if role != RoleUser {
		return nil
	}

	total, err := m.meta.IncrMetaInt(ctx, MetaTotalConversations, 1)
	if err != nil {
		logger.WarnX(ModuleName, "[LayeredMemory] counter increment failed: %v", err)
		return nil
	}

	if total%int64(m.cfg.ExtractionInterval) == 0 {
		m.extractKnowledge(ctx)
	}
	if m.shouldLearnExpressions(ctx, total) {
		m.learnUserExpressions(ctx, total)
	}
	if err := m.archiveIfNeeded(ctx); err != nil {
		logger.WarnX(ModuleName, "[LayeredMemory] archival failed: %v", err)
	}
	return nil
}

// TotalConversations returns the persistent user-turn counter.
func (m *LayeredMemory) TotalConversations(ctx context.Context) (int64, error) {
	return m.meta.GetMetaInt(ctx, MetaTotalConversations)
}

// RecentMessages returns the newest limit short-term messages in order.
func (m *LayeredMemory) RecentMessages(ctx context.Context, limit int) ([]*Message, error) {
	return m.repo.RecentMessages(ctx, limit)
}

// ShortTerm returns the whole short-term log.
func (m *LayeredMemory) ShortTerm(ctx context.Context) ([]*Message, error) {
	return m.repo.ListShortTerm(ctx)
}

// ContextForChat emits the last summaries as a single system block.
// Empty when no summaries exist.
func (m *LayeredMemory) ContextForChat(ctx context.Context) (string, error) {
	summaries, err := m.repo.ListSummaries(ctx, m.cfg.SummariesInPrompt)
	if err != nil {
		return "", err
	}
	if len(summaries) == 0 {
		return "", nil
	}
	var sb strings.Builder
	sb.WriteString("## Long-term memory\n")
	for _, s := range summaries {
		fmt.Fprintf(&sb, "- [%s ~ %s] %s\n",
			s.CreatedAt.Format("2006-01-02 15:04"), s.EndedAt.Format("2006-01-02 15:04"), s.Text)
	}
	return sb.String(), nil
}

// archiveIfNeeded archives the oldest MaxShortTermRounds user rounds once
// the short-term log exceeds the bound.
func (m *LayeredMemory) archiveIfNeeded(ctx context.Context) error {
	msgs, err := m.repo.ListShortTerm(ctx)
	if err != nil {
		return err
	}
	userCount := 0
	for _, msg := range msgs {
		if msg.Role == RoleUser {
			userCount++
		}
	}
	if userCount <= m.cfg.MaxShortTermRounds {
		return nil
	}

	// Archive everything up to (but excluding) the message that starts the
	// last remaining round.
	rounds := 0
	cut := len(msgs)
	for i, msg := range msgs {
		if msg.Role == RoleUser {
			rounds++
			if rounds > m.cfg.MaxShortTermRounds {
				cut = i
				break
			}
		}
	}
	archived := msgs[:cut]
	if len(archived) == 0 {
		return nil
	}

	text := m.summarize(ctx, archived)
	ids := make([]int64, 0, len(archived))
	for _, msg := range archived {
		ids = append(ids, msg.ID)
	}
	summary := &Summary{
		Text:         text,
		Rounds:       m.cfg.MaxShortTermRounds,
		MessageCount: len(archived),
		CreatedAt:    archived[0].CreatedAt,
		EndedAt:      archived[len(archived)-1].CreatedAt,
	}
	if err := m.repo.ArchiveMessages(ctx, summary, ids); err != nil {
		return err
	}
	logger.InfoX(ModuleName, "[LayeredMemory] archived %d messages (%d rounds) into summary %s",
		len(archived), summary.Rounds, summary.UUID)
	return nil
}

const summarizePrompt = `Summarize the following conversation segment into a concise topical memory (2-4 sentences). Keep names, decisions and emotional beats. Respond with the summary text only.

%s`

// summarize compresses archived messages via the Main tier. On upstream
// failure it falls back to a transcript stub so archival never blocks.
func (m *LayeredMemory) summarize(ctx context.Context, msgs []*Message) string {
	text, err := m.llm.Chat(ctx, []*schema.Message{
		schema.UserMessage(fmt.Sprintf(summarizePrompt, renderTranscript(msgs))),
	}, llm.TierMain)
	if err != nil || strings.TrimSpace(text) == "" {
		logger.WarnX(ModuleName, "[LayeredMemory] summarisation degraded to transcript head: %v", err)
		return transcriptHead(msgs)
	}
	return strings.TrimSpace(text)
}

func renderTranscript(msgs []*Message) string {
	var sb strings.Builder
	for _, msg := range msgs {
		fmt.Fprintf(&sb, "%s: %s\n", msg.Role, msg.Content)
	}
	return sb.String()
}

func transcriptHead(msgs []*Message) string {
	for _, msg := range msgs {
		if msg.Role == RoleUser {
			return fmt.Sprintf("Conversation about: %s", msg.Content)
		}
	}
	return "Archived conversation segment"
}
