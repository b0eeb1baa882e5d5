package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kiosk404/anima/internal/anima/pkg/errno"
	"github.com/kiosk404/anima/internal/anima/service/emotion"
	"github.com/kiosk404/anima/internal/anima/service/event"
	"github.com/kiosk404/anima/internal/anima/service/knowledge"
	"github.com/kiosk404/anima/internal/anima/service/memory"
	"github.com/kiosk404/anima/internal/anima/service/schedule"
	"github.com/kiosk404/anima/internal/anima/service/world"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestMessageAppendAndRecent(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	for _, content := range []string{"one", "two", "three"} {
		require.NoError(t, st.AppendMessage(ctx, &memory.Message{Role: memory.RoleUser, Content: content}))
	}

	all, err := st.ListShortTerm(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "one", all[0].Content)
	assert.Positive(t, all[0].ID)

	recent, err := st.RecentMessages(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	// Newest two, oldest first.
	assert.Equal(t, "two", recent[0].Content)
	assert.Equal(t, "three", recent[1].Content)
}

func TestArchiveMessagesIsTransactional(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	var ids []int64
	for _, content := range []string{"a", "b", "c", "d"} {
		msg := &memory.Message{Role: memory.RoleUser, Content: content}
		require.NoError(t, st.AppendMessage(ctx, msg))
		ids = append(ids, msg.ID)
	}

	now := time.Now().UTC()
	summary := &memory.Summary{
		Text: "two archived rounds", Rounds: 2, MessageCount: 2,
		CreatedAt: now.Add(-time.Hour), EndedAt: now,
	}
	require.NoError(t, st.ArchiveMessages(ctx, summary, ids[:2]))
	assert.NotEmpty(t, summary.UUID)

	remaining, err := st.ListShortTerm(ctx)
	require.NoError(t, err)
	require.Len(t, remaining, 2)
	assert.Equal(t, "c", remaining[0].Content)

	summaries, err := st.ListSummaries(ctx, 10)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, "two archived rounds", summaries[0].Text)
	assert.Equal(t, 2, summaries[0].Rounds)
}

func TestMetadataCounters(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	val, err := st.GetMeta(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, val)

	n, err := st.IncrMetaInt(ctx, "turns", 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	n, err = st.IncrMetaInt(ctx, "turns", 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	require.NoError(t, st.SetMeta(ctx, "turns", "10"))
	n, err = st.GetMetaInt(ctx, "turns")
	require.NoError(t, err)
	assert.Equal(t, int64(10), n)
}

func TestBaseFactImmutableInStore(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	fact := &knowledge.BaseFact{EntityName: "Anima", Content: "an archivist", Confidence: 1.0, Priority: 100}
	require.NoError(t, st.InsertBaseFact(ctx, fact))

	err := st.InsertBaseFact(ctx, &knowledge.BaseFact{EntityName: "ANIMA", Content: "someone else"})
	assert.ErrorIs(t, err, errno.ErrImmutable)

	// The fact doubles as the entity's immutable definition.
	ent, err := st.GetEntityByName(ctx, "anima")
	require.NoError(t, err)
	def, err := st.GetDefinition(ctx, ent.UUID)
	require.NoError(t, err)
	assert.True(t, def.IsBaseKnowledge)
	assert.Equal(t, "an archivist", def.Content)

	err = st.SetDefinition(ctx, &knowledge.Definition{EntityUUID: ent.UUID, Content: "overwrite attempt"})
	assert.ErrorIs(t, err, errno.ErrImmutable)
}

func TestRelatedInfoMentionCount(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	ent, err := st.EnsureEntity(ctx, "tea")
	require.NoError(t, err)

	first, err := st.AddOrIncrementRelatedInfo(ctx, &knowledge.RelatedInfo{
		EntityUUID: ent.UUID, Content: "prefers oolong", Confidence: 0.7,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, first.MentionCount)
	assert.Equal(t, knowledge.StatusSuspected, first.Status)

	second, err := st.AddOrIncrementRelatedInfo(ctx, &knowledge.RelatedInfo{
		EntityUUID: ent.UUID, Content: "Prefers  Oolong", Confidence: 0.7,
	})
	require.NoError(t, err)
	assert.Equal(t, first.UUID, second.UUID)
	assert.Equal(t, 2, second.MentionCount)
}

func TestEnsureEntityIsIdempotent(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	a, err := st.EnsureEntity(ctx, "The Lighthouse")
	require.NoError(t, err)
	b, err := st.EnsureEntity(ctx, "the lighthouse")
	require.NoError(t, err)
	assert.Equal(t, a.UUID, b.UUID)
}

func TestSingleActiveEnvironment(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	home := &world.Environment{Name: "the bookshop", IsActive: true}
	require.NoError(t, st.InsertEnvironment(ctx, home))
	beach := &world.Environment{Name: "the beach"}
	require.NoError(t, st.InsertEnvironment(ctx, beach))

	active, err := st.ActiveEnvironment(ctx)
	require.NoError(t, err)
	assert.Equal(t, home.UUID, active.UUID)

	require.NoError(t, st.ActivateEnvironment(ctx, beach.UUID))
	active, err = st.ActiveEnvironment(ctx)
	require.NoError(t, err)
	assert.Equal(t, beach.UUID, active.UUID)

	// Exactly one row stays active.
	var count int
	require.NoError(t, st.DB().QueryRow(
		`SELECT COUNT(*) FROM `+TableEnvironments+` WHERE is_active = 1`).Scan(&count))
	assert.Equal(t, 1, count)

	err = st.ActivateEnvironment(ctx, "no-such-env")
	assert.ErrorIs(t, err, errno.ErrNotFound)
}

func TestDomainMembership(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	env := &world.Environment{Name: "the pier"}
	require.NoError(t, st.InsertEnvironment(ctx, env))
	dom := &world.Domain{Name: "Seaside", DefaultEnvironmentUUID: env.UUID}
	require.NoError(t, st.InsertDomain(ctx, dom))
	require.NoError(t, st.LinkDomainEnvironment(ctx, dom.UUID, env.UUID))

	got, err := st.DomainOfEnvironment(ctx, env.UUID)
	require.NoError(t, err)
	assert.Equal(t, dom.UUID, got.UUID)

	byName, err := st.GetDomainByName(ctx, "seaside")
	require.NoError(t, err)
	assert.Equal(t, env.UUID, byName.DefaultEnvironmentUUID)

	members, err := st.EnvironmentsInDomain(ctx, dom.UUID)
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, env.UUID, members[0].UUID)
}

func TestScheduleRoundTrip(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	start := time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)
	s := &schedule.Schedule{
		Title: "gym", Kind: schedule.KindRecurring,
		StartTime: start, EndTime: start.Add(time.Hour),
		Priority: schedule.PriorityHigh, Weekday: 3,
		CollaborationStatus: schedule.CollabNone,
		IsQueryable:         true, IsActive: true, Source: "manual",
	}
	require.NoError(t, st.InsertSchedule(ctx, s))
	require.NotEmpty(t, s.UUID)

	got, err := st.GetSchedule(ctx, s.UUID)
	require.NoError(t, err)
	assert.Equal(t, schedule.KindRecurring, got.Kind)
	assert.Equal(t, schedule.PriorityHigh, got.Priority)
	assert.Equal(t, 3, got.Weekday)
	assert.True(t, got.StartTime.Equal(start))

	require.NoError(t, st.SoftDeleteSchedule(ctx, s.UUID))
	active, err := st.ListSchedules(ctx, true)
	require.NoError(t, err)
	assert.Empty(t, active)
	all, err := st.ListSchedules(ctx, false)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	err = st.SoftDeleteSchedule(ctx, "no-such-schedule")
	assert.ErrorIs(t, err, errno.ErrNotFound)
}

func TestScheduleCollaborationUpdate(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	start := time.Date(2026, 8, 24, 14, 0, 0, 0, time.UTC)
	s := &schedule.Schedule{
		Title: "picnic", Kind: schedule.KindAppointment,
		StartTime: start, EndTime: start.Add(2 * time.Hour),
		Priority: schedule.PriorityMedium, Weekday: schedule.WeekdayUnset,
		InvolvesUser:        true,
		CollaborationStatus: schedule.CollabPending,
		IsActive:            true, Source: "intent",
	}
	require.NoError(t, st.InsertSchedule(ctx, s))

	require.NoError(t, st.UpdateCollaboration(ctx, s.UUID, schedule.CollabAccepted, true, true))
	got, err := st.GetSchedule(ctx, s.UUID)
	require.NoError(t, err)
	assert.Equal(t, schedule.CollabAccepted, got.CollaborationStatus)
	assert.True(t, got.IsQueryable)
}

func TestEventRoundTripWithMetadata(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	ev := &event.Event{
		Title: "research trip", Kind: event.KindTask, Status: event.StatusPending,
		Metadata: map[string]string{
			event.MetaTaskRequirements:   "maps and notes",
			event.MetaCompletionCriteria: "a route exists",
		},
	}
	require.NoError(t, st.InsertEvent(ctx, ev))

	got, err := st.GetEvent(ctx, ev.UUID)
	require.NoError(t, err)
	assert.Equal(t, "maps and notes", got.Metadata[event.MetaTaskRequirements])
	assert.Equal(t, "medium", got.Priority)

	require.NoError(t, st.UpdateEventStatus(ctx, ev.UUID, event.StatusProcessing,
		&event.Log{Timestamp: time.Now(), Action: "processing", Content: "started"}))
	require.NoError(t, st.AppendEventLog(ctx, ev.UUID,
		&event.Log{Timestamp: time.Now(), Action: "collaboration", Content: "agent done"}))

	logs, err := st.ListEventLogs(ctx, ev.UUID)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, "processing", logs[0].Action)
	assert.Equal(t, "collaboration", logs[1].Action)

	pending, err := st.ListEvents(ctx, event.StatusPending, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
	processing, err := st.ListEvents(ctx, event.StatusProcessing, 10)
	require.NoError(t, err)
	require.Len(t, processing, 1)
	assert.Equal(t, "maps and notes", processing[0].Metadata[event.MetaTaskRequirements])
}

func TestEmotionSnapshotsAppendOnly(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	_, err := st.LatestSnapshot(ctx)
	assert.ErrorIs(t, err, errno.ErrNotFound)

	older := &emotion.Snapshot{RelationshipType: "stranger", OverallScore: 20,
		CreatedAt: time.Now().UTC().Add(-time.Hour)}
	require.NoError(t, st.InsertSnapshot(ctx, older))
	newer := &emotion.Snapshot{RelationshipType: "friend", OverallScore: 70}
	require.NoError(t, st.InsertSnapshot(ctx, newer))

	latest, err := st.LatestSnapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, "friend", latest.RelationshipType)
}

func TestExpressionStyles(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.InsertExpressionStyle(ctx, &memory.ExpressionStyle{
		Kind: memory.StyleUser, Expression: "you know", Meaning: "filler",
	}))
	require.NoError(t, st.InsertExpressionStyle(ctx, &memory.ExpressionStyle{
		Kind: memory.StyleAgent, Expression: "well then", Meaning: "transition",
	}))

	userStyles, err := st.ListExpressionStyles(ctx, memory.StyleUser, 10)
	require.NoError(t, err)
	require.Len(t, userStyles, 1)
	assert.Equal(t, "you know", userStyles[0].Expression)
}
