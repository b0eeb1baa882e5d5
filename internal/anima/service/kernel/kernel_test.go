package kernel

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kiosk404/anima/internal/anima/pkg/errno"
	"github.com/kiosk404/anima/internal/anima/service/emotion"
	"github.com/kiosk404/anima/internal/anima/service/event"
	"github.com/kiosk404/anima/internal/anima/service/intent"
	"github.com/kiosk404/anima/internal/anima/service/knowledge"
	"github.com/kiosk404/anima/internal/anima/service/llm"
	"github.com/kiosk404/anima/internal/anima/service/memory"
	"github.com/kiosk404/anima/internal/anima/service/plugin"
	"github.com/kiosk404/anima/internal/anima/service/prompt"
	"github.com/kiosk404/anima/internal/anima/service/schedule"
	"github.com/kiosk404/anima/internal/anima/service/store"
	"github.com/kiosk404/anima/internal/anima/service/taskgraph"
	"github.com/kiosk404/anima/internal/anima/service/world"
)

type scriptedCaller struct {
	fn func(prompt string, tier llm.Tier) (string, error)
}

func (s *scriptedCaller) Chat(_ context.Context, msgs []*schema.Message, tier llm.Tier) (string, error) {
	return s.fn(msgs[len(msgs)-1].Content, tier)
}

func failAll(string, llm.Tier) (string, error) {
	return "", fmt.Errorf("%w: model down", errno.ErrUpstream)
}

// mainOnly answers the Main tier and degrades every classifier call.
func mainOnly(reply string) func(string, llm.Tier) (string, error) {
	return func(_ string, tier llm.Tier) (string, error) {
		if tier == llm.TierMain {
			return reply, nil
		}
		return "", fmt.Errorf("%w: model down", errno.ErrUpstream)
	}
}

func newTestKernel(t *testing.T, fn func(prompt string, tier llm.Tier) (string, error)) (*Kernel, *store.Store) {
	t.Helper()
	st, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, prompt.CategorySystem), 0755))
	tpl := "You are {character_name}.\n{character_profile}\n{world_setting}\n" +
		"{long_term_memory}\n{relevant_knowledge}\n{environment_context}\n{emotion_relationship}"
	require.NoError(t, os.WriteFile(
		filepath.Join(dir, prompt.CategorySystem, "chat_system.md"), []byte(tpl), 0644))

	caller := &scriptedCaller{fn: fn}
	prompts := prompt.NewLibrary(dir)
	base := knowledge.NewBaseKnowledge(st)
	graph := knowledge.NewGraph(st, base, caller, knowledge.GraphConfig{})
	mem := memory.NewLayeredMemory(st, st, caller, graph.Sink(), memory.Config{})
	emo := emotion.NewAnalyzer(st, st, mem, caller, emotion.Config{})
	classifier := intent.NewClassifier(caller)
	worldModel := world.NewModel(st, caller, classifier)
	scheduler := schedule.NewEngine(st, caller, classifier, schedule.CharacterInfo{Name: "Anima"})
	invoker := plugin.NewInvoker(plugin.NewRegistry(), caller)
	tasks := taskgraph.NewEngine(caller, taskgraph.NewMemoryCheckpointer())
	events := event.NewManager(st, caller, tasks)

	k := New(Deps{
		LLM:       caller,
		Prompts:   prompts,
		Base:      base,
		Graph:     graph,
		Memory:    mem,
		Emotion:   emo,
		World:     worldModel,
		Schedules: scheduler,
		Intents:   classifier,
		Plugins:   invoker,
		Events:    events,
	}, Character{Name: "Anima", Profile: "an archivist above the bookshop"})
	return k, st
}

func TestChatRejectsEmptyInput(t *testing.T) {
	k, _ := newTestKernel(t, failAll)
	_, err := k.Chat(context.Background(), "   ")
	assert.ErrorIs(t, err, errno.ErrBadInput)
}

func TestChatRepliesAndPersistsBothTurns(t *testing.T) {
	k, st := newTestKernel(t, mainOnly("Hello there, it is good to hear from you."))

	reply, err := k.Chat(context.Background(), "hello, how have you been?")
	require.NoError(t, err)
	assert.Equal(t, "Hello there, it is good to hear from you.", reply)

	msgs, err := st.ListShortTerm(context.Background())
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, memory.RoleUser, msgs[0].Role)
	assert.Equal(t, "hello, how have you been?", msgs[0].Content)
	assert.Equal(t, memory.RoleAssistant, msgs[1].Role)
	assert.Equal(t, reply, msgs[1].Content)
}

func TestChatApologisesWhenGenerationFails(t *testing.T) {
	k, st := newTestKernel(t, failAll)

	reply, err := k.Chat(context.Background(), "tell me about your morning")
	require.NoError(t, err)
	assert.Contains(t, reply, "lost my train of thought")

	// The user turn is in memory even though generation failed.
	msgs, err := st.ListShortTerm(context.Background())
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "tell me about your morning", msgs[0].Content)
	assert.Equal(t, reply, msgs[1].Content)
}

func TestChatPropagatesCancellation(t *testing.T) {
	k, _ := newTestKernel(t, func(_ string, tier llm.Tier) (string, error) {
		if tier == llm.TierMain {
			return "", fmt.Errorf("%w: context cancelled", errno.ErrCancelled)
		}
		return "", fmt.Errorf("%w: model down", errno.ErrUpstream)
	})

	_, err := k.Chat(context.Background(), "hello out there")
	assert.ErrorIs(t, err, errno.ErrCancelled)
}

func insertPendingPlan(t *testing.T, st *store.Store, title string) *schedule.Schedule {
	t.Helper()
	start := time.Now().Add(24 * time.Hour).Truncate(time.Hour)
	s := &schedule.Schedule{
		Title: title, Kind: schedule.KindAppointment,
		StartTime: start, EndTime: start.Add(2 * time.Hour),
		Priority: schedule.PriorityMedium, Weekday: schedule.WeekdayUnset,
		InvolvesUser:        true,
		CollaborationStatus: schedule.CollabPending,
		IsActive:            true, Source: "intent",
	}
	require.NoError(t, st.InsertSchedule(context.Background(), s))
	return s
}

func TestCollaborationReplyAccepts(t *testing.T) {
	k, st := newTestKernel(t, failAll)
	ctx := context.Background()
	pending := insertPendingPlan(t, st, "picnic by the pier")

	note := k.handleCollaborationReply(ctx, "好的")
	assert.Contains(t, note, "agreed")
	assert.Contains(t, note, "picnic by the pier")

	got, err := st.GetSchedule(ctx, pending.UUID)
	require.NoError(t, err)
	assert.Equal(t, schedule.CollabAccepted, got.CollaborationStatus)
	assert.True(t, got.IsQueryable)
}

func TestCollaborationReplyDeclines(t *testing.T) {
	k, st := newTestKernel(t, failAll)
	ctx := context.Background()
	pending := insertPendingPlan(t, st, "night market run")

	note := k.handleCollaborationReply(ctx, "不行")
	assert.Contains(t, note, "declined")

	got, err := st.GetSchedule(ctx, pending.UUID)
	require.NoError(t, err)
	assert.Equal(t, schedule.CollabDeclined, got.CollaborationStatus)
	assert.False(t, got.IsActive)
}

func TestCollaborationReplyIgnoredWithoutPending(t *testing.T) {
	k, _ := newTestKernel(t, failAll)
	assert.Empty(t, k.handleCollaborationReply(context.Background(), "ok"))
}

func TestClassifyConfirmation(t *testing.T) {
	cases := []struct {
		input    string
		answer   bool
		isAnswer bool
	}{
		{"ok", true, true},
		{"sounds good", true, true},
		{"no thanks", false, true},
		// Negative words win even when an affirmative substring is present.
		{"不行", false, true},
		{"maybe later", false, false},
		// Long messages carry their own intent, never a confirmation.
		{"ok so let me tell you what happened at work today", false, false},
	}
	for _, tc := range cases {
		answer, isAnswer := classifyConfirmation(tc.input)
		assert.Equal(t, tc.isAnswer, isAnswer, tc.input)
		assert.Equal(t, tc.answer, answer, tc.input)
	}
}

const appointmentIntent = `{"has_schedule_intent": true, "schedule_type": "appointment", "title": "evening walk", "description": "", "time_expression": "", "start_time": "2026-08-25T18:00:00Z", "end_time": "2026-08-25T19:00:00Z", "involves_agent": true, "involves_user": true, "confidence": 0.9, "reasoning": ""}`

func TestChatCreatesScheduleFromIntent(t *testing.T) {
	k, st := newTestKernel(t, func(prompt string, tier llm.Tier) (string, error) {
		switch {
		case tier == llm.TierMain:
			return "An evening walk sounds lovely, shall we?", nil
		case strings.Contains(prompt, "schedule intent"):
			return appointmentIntent, nil
		default:
			return "", fmt.Errorf("%w: model down", errno.ErrUpstream)
		}
	})

	reply, err := k.Chat(context.Background(), "would you join me for a walk tomorrow evening?")
	require.NoError(t, err)
	assert.Equal(t, "An evening walk sounds lovely, shall we?", reply)

	all, err := st.ListSchedules(context.Background(), true)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "evening walk", all[0].Title)
	// A plan involving the user waits for confirmation.
	assert.Equal(t, schedule.CollabPending, all[0].CollaborationStatus)
}

func TestHandleEventExplainsNotification(t *testing.T) {
	k, st := newTestKernel(t, mainOnly("A storm warning came in; I would stay by the fire."))
	ctx := context.Background()

	ev := &event.Event{Title: "storm warning", Description: "gale expected tonight", Kind: event.KindNotification, Status: event.StatusPending}
	require.NoError(t, st.InsertEvent(ctx, ev))

	reply, err := k.HandleEvent(ctx, ev.UUID)
	require.NoError(t, err)
	assert.Contains(t, reply, "storm warning came in")

	got, err := st.GetEvent(ctx, ev.UUID)
	require.NoError(t, err)
	assert.Equal(t, event.StatusCompleted, got.Status)

	// The explanation lands in the conversation log.
	msgs, err := st.ListShortTerm(ctx)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, memory.RoleAssistant, msgs[0].Role)
	assert.Equal(t, reply, msgs[0].Content)
}
