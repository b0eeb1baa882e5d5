package intent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"

	"github.com/kiosk404/anima/internal/anima/service/llm"
	"github.com/kiosk404/anima/pkg/logger"
	"github.com/kiosk404/anima/pkg/utils/jsonx"
)

const ModuleName = "intent"

// Classifier wraps the Tool-tier model behind the intent operations.
// Every classifier degrades to a neutral "no intent" value on upstream
// failure or unparsable output; classification never fails a caller.
type Classifier struct {
	llm llm.Caller
}

// NewClassifier creates the intent classifier.
func NewClassifier(caller llm.Caller) *Classifier {
	return &Classifier{llm: caller}
}

// ScheduleIntent is the strict schedule classification schema.
type ScheduleIntent struct {
	HasScheduleIntent bool    `json:"has_schedule_intent"`
	ScheduleType      string  `json:"schedule_type"`
	Title             string  `json:"title"`
	Description       string  `json:"description"`
	TimeExpression    string  `json:"time_expression"`
	StartTime         string  `json:"start_time"`
	EndTime           string  `json:"end_time"`
	InvolvesAgent     bool    `json:"involves_agent"`
	InvolvesUser      bool    `json:"involves_user"`
	Confidence        float64 `json:"confidence"`
	Reasoning         string  `json:"reasoning"`
}

// Schedule types the classifier may emit.
const (
	ScheduleTypeAppointment = "appointment"
	ScheduleTypeQuery       = "query"
	ScheduleTypeNone        = "none"
)

const scheduleIntentPrompt = `Classify whether this user message carries a schedule intent.

User message: %s
Current time: %s

Respond with strict JSON, nothing else:
{"has_schedule_intent": true|false, "schedule_type": "appointment|query|none", "title": "...", "description": "...", "time_expression": "...", "start_time": "RFC3339 or empty", "end_time": "RFC3339 or empty", "involves_agent": true|false, "involves_user": true|false, "confidence": 0.0-1.0, "reasoning": "..."}

"appointment" means the user wants a schedule created, "query" means the user asks about existing plans. Leave start_time empty when the message gives only a vague expression (put it in time_expression instead).`

// ClassifySchedule runs the schedule intent classifier. When the model
// leaves start_time empty but names a time expression, the deterministic
// resolver fills start/end from it.
func (c *Classifier) ClassifySchedule(ctx context.Context, userInput string, now time.Time) *ScheduleIntent {
	neutral := &ScheduleIntent{ScheduleType: ScheduleTypeNone}

	raw, err := c.llm.Chat(ctx, []*schema.Message{
		schema.UserMessage(fmt.Sprintf(scheduleIntentPrompt, userInput, now.Format("2006-01-02 15:04 Monday"))),
	}, llm.TierTool)
	if err != nil {
		logger.WarnX(ModuleName, "[Classifier] schedule intent degraded to neutral: %v", err)
		return neutral
	}

	var res ScheduleIntent
	if err := jsonx.DecodeStrict(raw, &res); err != nil {
		logger.WarnX(ModuleName, "[Classifier] schedule intent returned unparsable JSON: %v", err)
		return neutral
	}
	if !res.HasScheduleIntent {
		res.ScheduleType = ScheduleTypeNone
		return &res
	}

	if res.StartTime == "" && res.TimeExpression != "" {
		if start, end, ok := ResolveTimeExpression(res.TimeExpression, now); ok {
			res.StartTime = start.Format(timeLayout)
			res.EndTime = end.Format(timeLayout)
		}
	}
	return &res
}

// precisionKeywords mark a question as asking for exact detail.
var precisionKeywords = []string{
	"具体", "几点", "什么时候", "详细", "准确",
	"exact", "specific", "precisely", "what time", "when exactly", "detail",
}

const precisionPrompt = `Does this question ask for precise, detailed information (exact times, exact places, itemised answers) rather than a general overview?

Question: %s

Respond with strict JSON, nothing else: {"high_precision": true|false}`

// HighPrecision decides whether a query wants exact detail. Keyword hits
// short-circuit; otherwise the Tool model arbitrates. Neutral value is false.
func (c *Classifier) HighPrecision(ctx context.Context, userInput string) bool {
	lower := strings.ToLower(userInput)
	for _, kw := range precisionKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}

	raw, err := c.llm.Chat(ctx, []*schema.Message{
		schema.UserMessage(fmt.Sprintf(precisionPrompt, userInput)),
	}, llm.TierTool)
	if err != nil {
		return false
	}
	var res struct {
		HighPrecision bool `json:"high_precision"`
	}
	if err := jsonx.DecodeStrict(raw, &res); err != nil {
		return false
	}
	return res.HighPrecision
}

// SimilarityVerdict is the pairwise schedule similarity result.
type SimilarityVerdict struct {
	IsSimilar bool   `json:"isSimilar"`
	Keep      string `json:"keep"`
}

// Keep values of the similarity verdict.
const (
	KeepNew      = "new"
	KeepExisting = "existing"
	KeepNone     = "none"
)

const similarityPrompt = `Two schedules on the same day:

New: %s (%s ~ %s)
Existing: %s (%s ~ %s)

Are they essentially the same activity? If similar, which should be kept?
Respond with strict JSON, nothing else: {"isSimilar": true|false, "keep": "new|existing|none"}`

// ScheduleSimilarity compares a new schedule against an existing same-day
// peer. The error is non-nil only for upstream or parse failures; the
// schedule engine treats those as "skip the check".
func (c *Classifier) ScheduleSimilarity(ctx context.Context, newTitle, newStart, newEnd, oldTitle, oldStart, oldEnd string) (*SimilarityVerdict, error) {
	raw, err := c.llm.Chat(ctx, []*schema.Message{
		schema.UserMessage(fmt.Sprintf(similarityPrompt, newTitle, newStart, newEnd, oldTitle, oldStart, oldEnd)),
	}, llm.TierTool)
	if err != nil {
		return nil, err
	}
	var res SimilarityVerdict
	if err := jsonx.DecodeStrict(raw, &res); err != nil {
		return nil, fmt.Errorf("unparsable similarity JSON: %w", err)
	}
	return &res, nil
}
