package emotion

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"

	"github.com/kiosk404/anima/internal/anima/service/llm"
	"github.com/kiosk404/anima/internal/anima/service/memory"
	"github.com/kiosk404/anima/pkg/logger"
	"github.com/kiosk404/anima/pkg/utils/jsonx"
)

const ModuleName = "emotion"

// Dimensions are the five relationship scores, each in [0,100].
type Dimensions struct {
	Intimacy   int `json:"intimacy"`
	Trust      int `json:"trust"`
	Pleasure   int `json:"pleasure"`
	Resonance  int `json:"resonance"`
	Dependence int `json:"dependence"`
}

// Snapshot is a dated relationship reading. Snapshots are append-only and
// never edited in place.
type Snapshot struct {
	UUID             string     `json:"uuid"`
	RelationshipType string     `json:"relationship_type"`
	EmotionalTone    string     `json:"emotional_tone"`
	OverallScore     int        `json:"overall_score"`
	Dims             Dimensions `json:"dims"`
	AnalysisSummary  string     `json:"analysis_summary"`
	CreatedAt        time.Time  `json:"created_at"`
}

// Repository is the persistence contract for emotion snapshots.
type Repository interface {
	// InsertSnapshot stores a new snapshot and fills UUID/CreatedAt.
	InsertSnapshot(ctx context.Context, snap *Snapshot) error

	// LatestSnapshot returns the newest snapshot or errno.ErrNotFound.
	LatestSnapshot(ctx context.Context) (*Snapshot, error)
}

// Config holds the trigger policy.
type Config struct {
	// FirstRounds: first analysis once total user turns reach this (default 5).
	FirstRounds int
	// Interval: subsequent analyses every N user turns (default 15).
	Interval int
	// WindowMessages: how many recent messages the analysis consumes (default 30).
	WindowMessages int
}

// Complete fills defaults.
func (c *Config) Complete() {
	if c.FirstRounds <= 0 {
		c.FirstRounds = 5
	}
	if c.Interval <= 0 {
		c.Interval = 15
	}
	if c.WindowMessages <= 0 {
		c.WindowMessages = 30
	}
}

// Analyzer produces periodic relationship snapshots from the recent
// conversation and the character profile.
type Analyzer struct {
	repo Repository
	meta memory.MetadataRepository
	mem  *memory.LayeredMemory
	llm  llm.Caller
	cfg  Config
}

// NewAnalyzer creates the emotion analyzer.
func NewAnalyzer(repo Repository, meta memory.MetadataRepository, mem *memory.LayeredMemory, caller llm.Caller, cfg Config) *Analyzer {
	cfg.Complete()
	return &Analyzer{repo: repo, meta: meta, mem: mem, llm: caller, cfg: cfg}
}

// MaybeAnalyze runs an analysis when the trigger policy fires: once the
// total reaches FirstRounds with no prior run, then every Interval turns.
// Analysis failures are logged and skipped without advancing the counter,
// so the next eligible turn retries.
func (a *Analyzer) MaybeAnalyze(ctx context.Context, characterProfile string) {
	total, err := a.meta.GetMetaInt(ctx, memory.MetaTotalConversations)
	if err != nil {
		return
	}
	last, err := a.meta.GetMetaInt(ctx, memory.MetaLastEmotionRounds)
	if err != nil {
		return
	}

	due := (last == 0 && total >= int64(a.cfg.FirstRounds)) ||
		(last > 0 && total-last >= int64(a.cfg.Interval))
	if !due {
		return
	}

	if err := a.analyze(ctx, characterProfile); err != nil {
		logger.WarnX(ModuleName, "[Analyzer] emotion analysis skipped: %v", err)
		return
	}
	_ = a.meta.SetMeta(ctx, memory.MetaLastEmotionRounds, strconv.FormatInt(total, 10))
}

type analysisResult struct {
	RelationshipType string     `json:"relationship_type"`
	EmotionalTone    string     `json:"emotional_tone"`
	OverallScore     int        `json:"overall_score"`
	Dims             Dimensions `json:"dims"`
	AnalysisSummary  string     `json:"analysis_summary"`
}

const analysisPrompt = `You observe the relationship between an AI companion and its user.

Character profile:
%s

Recent conversation:
%s

Assess the current relationship. Respond with strict JSON, nothing else:
{"relationship_type": "...", "emotional_tone": "...", "overall_score": 0-100, "dims": {"intimacy": 0-100, "trust": 0-100, "pleasure": 0-100, "resonance": 0-100, "dependence": 0-100}, "analysis_summary": "..."}`

func (a *Analyzer) analyze(ctx context.Context, characterProfile string) error {
	msgs, err := a.mem.RecentMessages(ctx, a.cfg.WindowMessages)
	if err != nil {
		return err
	}
	if len(msgs) == 0 {
		return fmt.Errorf("no messages to analyze")
	}

	var transcript strings.Builder
	for _, msg := range msgs {
		fmt.Fprintf(&transcript, "%s: %s\n", msg.Role, msg.Content)
	}

	raw, err := a.llm.Chat(ctx, []*schema.Message{
		schema.UserMessage(fmt.Sprintf(analysisPrompt, characterProfile, transcript.String())),
	}, llm.TierTool)
	if err != nil {
		return err
	}

	var res analysisResult
	if err := jsonx.DecodeStrict(raw, &res); err != nil {
		return fmt.Errorf("unparsable analysis JSON: %w", err)
	}

	snap := &Snapshot{
		RelationshipType: res.RelationshipType,
		EmotionalTone:    res.EmotionalTone,
		OverallScore:     clampScore(res.OverallScore),
		Dims: Dimensions{
			Intimacy:   clampScore(res.Dims.Intimacy),
			Trust:      clampScore(res.Dims.Trust),
			Pleasure:   clampScore(res.Dims.Pleasure),
			Resonance:  clampScore(res.Dims.Resonance),
			Dependence: clampScore(res.Dims.Dependence),
		},
		AnalysisSummary: res.AnalysisSummary,
	}
	if err := a.repo.InsertSnapshot(ctx, snap); err != nil {
		return err
	}
	logger.InfoX(ModuleName, "[Analyzer] snapshot stored (type=%s score=%d)",
		snap.RelationshipType, snap.OverallScore)
	return nil
}

// TonePromptBlock formats the latest snapshot for prompt injection.
// Empty when no snapshot exists yet.
func (a *Analyzer) TonePromptBlock(ctx context.Context) (string, error) {
	snap, err := a.repo.LatestSnapshot(ctx)
	if err != nil {
		return "", nil
	}
	var sb strings.Builder
	sb.WriteString("## Current relationship\n")
	fmt.Fprintf(&sb, "- Relationship: %s, tone: %s, overall %d/100\n",
		snap.RelationshipType, snap.EmotionalTone, snap.OverallScore)
	fmt.Fprintf(&sb, "- intimacy %d, trust %d, pleasure %d, resonance %d, dependence %d\n",
		snap.Dims.Intimacy, snap.Dims.Trust, snap.Dims.Pleasure, snap.Dims.Resonance, snap.Dims.Dependence)
	if snap.AnalysisSummary != "" {
		fmt.Fprintf(&sb, "- %s\n", snap.AnalysisSummary)
	}
	return sb.String(), nil
}

func clampScore(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
