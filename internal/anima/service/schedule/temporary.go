package schedule

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

// Band is a named segment of the day.
type Band string

const (
	BandDawn      Band = "dawn"
	BandMorning   Band = "morning"
	BandNoon      Band = "noon"
	BandAfternoon Band = "afternoon"
	BandEvening   Band = "evening"
	BandNight     Band = "night"
)

// BandOf maps an hour to its day segment: dawn [5,8), morning [8,11),
// noon [11,14), afternoon [14,18), evening [18,22), night [22,5).
func BandOf(hour int) Band {
	switch {
	case hour >= 5 && hour < 8:
		return BandDawn
	case hour >= 8 && hour < 11:
		return BandMorning
	case hour >= 11 && hour < 14:
		return BandNoon
	case hour >= 14 && hour < 18:
		return BandAfternoon
	case hour >= 18 && hour < 22:
		return BandEvening
	default:
		return BandNight
	}
}

// bandActivities seed the degraded single-entry fallback.
var bandActivities = map[Band]string{
	BandDawn:      "Early stretch and a quiet moment",
	BandMorning:   "Morning reading",
	BandNoon:      "Lunch and a short rest",
	BandAfternoon: "Afternoon hobby time",
	BandEvening:   "Evening walk",
	BandNight:     "Winding down before sleep",
}

type generatedEntry struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	StartTime   string `json:"start_time"`
	EndTime     string `json:"end_time"`
	Reason      string `json:"reason"`
}

const generatePrompt = `Plan what the character does in their free time today.

Character: %s
Personality: %s
Hobbies: %s
Date: %s
Free slots:
%s

Pick 1 to 3 activities that fit the free slots and the character. Respond with a strict JSON array, nothing else:
[{"title": "...", "description": "...", "start_time": "RFC3339", "end_time": "RFC3339", "reason": "..."}]`

// EnsureTemporaries generates 1 to 3 temporary schedules for the date when
// none exist yet. With the model unavailable it falls back to a single
// entry in the first free slot, themed by the slot's hour band.
func (e *Engine) EnsureTemporaries(ctx context.Context, date time.Time) ([]*Schedule, error) {
	dayStart := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
	occs, err := e.occurrences(ctx, dayStart, dayStart.AddDate(0, 0, 1), false, true)
	if err != nil {
		return nil, err
	}
	for _, occ := range occs {
		if occ.Kind == KindTemporary {
			return nil, nil
		}
	}

	slots, err := e.FreeSlots(ctx, date, 60)
	if err != nil {
		return nil, err
	}
	if len(slots) == 0 {
		return nil, nil
	}

	entries := e.generateEntries(ctx, date, slots)
	created := make([]*Schedule, 0, len(entries))
	for _, entry := range entries {
		s, err := e.Create(ctx, CreateRequest{
			Title:           entry.Title,
			Description:     entry.Description,
			Kind:            KindTemporary,
			StartTime:       entry.start,
			EndTime:         entry.end,
			Priority:        PriorityLow,
			GeneratedReason: entry.Reason,
			Source:          "generated",
		})
		if err != nil {
			logger.DebugX(ModuleName, "[Engine] generated entry %q dropped: %v", entry.Title, err)
			continue
		}
		created = append(created, s)
	}
	return created, nil
}

type parsedEntry struct {
	generatedEntry
	start time.Time
	end   time.Time
}

func (e *Engine) generateEntries(ctx context.Context, date time.Time, slots []FreeSlot) []parsedEntry {
	var slotLines strings.Builder
	for _, slot := range slots {
		fmt.Fprintf(&slotLines, "- %s ~ %s\n", slot.Start.Format(time.RFC3339), slot.End.Format(time.RFC3339))
	}

	raw, err := e.llm.Chat(ctx, []*schema.Message{
		schema.UserMessage(fmt.Sprintf(generatePrompt,
			e.character.Name, e.character.Personality, e.character.Hobbies,
			date.Format("2006-01-02"), slotLines.String())),
	}, llm.TierTool)
	if err != nil {
		logger.WarnX(ModuleName, "[Engine] temporary generation degraded to band fallback: %v", err)
		return []parsedEntry{e.fallbackEntry(slots[0])}
	}

	var gens []generatedEntry
	if err := jsonx.DecodeStrict(raw, &gens); err != nil {
		logger.WarnX(ModuleName, "[Engine] temporary generation returned unparsable JSON: %v", err)
		return []parsedEntry{e.fallbackEntry(slots[0])}
	}

	var parsed []parsedEntry
	for _, g := range gens {
		if len(parsed) == 3 {
			break
		}
		start, err1 := time.Parse(time.RFC3339, g.StartTime)
		end, err2 := time.Parse(time.RFC3339, g.EndTime)
		if err1 != nil || err2 != nil || !end.After(start) || strings.TrimSpace(g.Title) == "" {
			continue
		}
		parsed = append(parsed, parsedEntry{generatedEntry: g, start: start, end: end})
	}
	if len(parsed) == 0 {
		return []parsedEntry{e.fallbackEntry(slots[0])}
	}
	return parsed
}

func (e *Engine) fallbackEntry(slot FreeSlot) parsedEntry {
	band := BandOf(slot.Start.Hour())
	end := slot.Start.Add(time.Hour)
	if end.After(slot.End) {
		end = slot.End
	}
	return parsedEntry{
		generatedEntry: generatedEntry{
			Title:  bandActivities[band],
			Reason: "generated without model assistance",
		},
		start: slot.Start,
		end:   end,
	}
}
