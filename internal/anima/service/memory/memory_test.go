package memory

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kiosk404/anima/internal/anima/pkg/errno"
	"github.com/kiosk404/anima/internal/anima/service/llm"
)

type scriptedCaller struct {
	reply string
	err   error
}

func (s *scriptedCaller) Chat(_ context.Context, _ []*schema.Message, _ llm.Tier) (string, error) {
	return s.reply, s.err
}

// fakeStore implements Repository and MetadataRepository in memory.
type fakeStore struct {
	mu        sync.Mutex
	msgs      []*Message
	summaries []*Summary
	styles    []*ExpressionStyle
	meta      map[string]string
	nextID    int64
	clock     time.Time
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		meta:  make(map[string]string),
		clock: time.Date(2026, 8, 24, 9, 0, 0, 0, time.UTC),
	}
}

func (f *fakeStore) AppendMessage(_ context.Context, msg *Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	f.clock = f.clock.Add(time.Minute)
	msg.ID = f.nextID
	msg.CreatedAt = f.clock
	cp := *msg
	f.msgs = append(f.msgs, &cp)
	return nil
}

func (f *fakeStore) ListShortTerm(_ context.Context) ([]*Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*Message, len(f.msgs))
	copy(out, f.msgs)
	return out, nil
}

func (f *fakeStore) RecentMessages(_ context.Context, limit int) ([]*Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	start := len(f.msgs) - limit
	if start < 0 {
		start = 0
	}
	out := make([]*Message, len(f.msgs)-start)
	copy(out, f.msgs[start:])
	return out, nil
}

func (f *fakeStore) ArchiveMessages(_ context.Context, summary *Summary, messageIDs []int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if summary.UUID == "" {
		summary.UUID = fmt.Sprintf("sum-%d", len(f.summaries)+1)
	}
	f.summaries = append(f.summaries, summary)
	drop := make(map[int64]bool, len(messageIDs))
	for _, id := range messageIDs {
		drop[id] = true
	}
	var kept []*Message
	for _, msg := range f.msgs {
		if !drop[msg.ID] {
			kept = append(kept, msg)
		}
	}
	f.msgs = kept
	return nil
}

func (f *fakeStore) ListSummaries(_ context.Context, limit int) ([]*Summary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	start := len(f.summaries) - limit
	if start < 0 {
		start = 0
	}
	out := make([]*Summary, len(f.summaries)-start)
	copy(out, f.summaries[start:])
	return out, nil
}

func (f *fakeStore) InsertExpressionStyle(_ context.Context, style *ExpressionStyle) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *style
	f.styles = append(f.styles, &cp)
	return nil
}

func (f *fakeStore) ListExpressionStyles(_ context.Context, kind StyleKind, limit int) ([]*ExpressionStyle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*ExpressionStyle
	for i := len(f.styles) - 1; i >= 0 && len(out) < limit; i-- {
		if f.styles[i].Kind == kind {
			out = append(out, f.styles[i])
		}
	}
	return out, nil
}

func (f *fakeStore) GetMeta(_ context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.meta[key], nil
}

func (f *fakeStore) SetMeta(_ context.Context, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.meta[key] = value
	return nil
}

func (f *fakeStore) IncrMetaInt(_ context.Context, key string, delta int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cur, _ := strconv.ParseInt(f.meta[key], 10, 64)
	cur += delta
	f.meta[key] = strconv.FormatInt(cur, 10)
	return cur, nil
}

func (f *fakeStore) GetMetaInt(_ context.Context, key string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cur, _ := strconv.ParseInt(f.meta[key], 10, 64)
	return cur, nil
}

type sinkRecord struct {
	entity, content string
	isDefinition    bool
}

type fakeSink struct {
	mu      sync.Mutex
	records []sinkRecord
}

func (s *fakeSink) SetDefinition(_ context.Context, entityName, content, _, _ string, _ float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, sinkRecord{entityName, content, true})
	return nil
}

func (s *fakeSink) AddRelatedInfo(_ context.Context, entityName, content, _, _ string, _ float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, sinkRecord{entityName, content, false})
	return nil
}

func runRounds(t *testing.T, mem *LayeredMemory, n int) {
	t.Helper()
	ctx := context.Background()
	for i := 1; i <= n; i++ {
		require.NoError(t, mem.AddMessage(ctx, RoleUser, fmt.Sprintf("user line %d", i)))
		require.NoError(t, mem.AddMessage(ctx, RoleAssistant, fmt.Sprintf("assistant line %d", i)))
	}
}

func TestAddMessageRejectsEmptyContent(t *testing.T) {
	mem := NewLayeredMemory(newFakeStore(), newFakeStore(), &scriptedCaller{reply: "[]"}, nil, Config{})
	err := mem.AddMessage(context.Background(), RoleUser, "   ")
	assert.ErrorIs(t, err, errno.ErrBadInput)
}

func TestUserTurnsAdvanceCounter(t *testing.T) {
	st := newFakeStore()
	mem := NewLayeredMemory(st, st, &scriptedCaller{reply: "[]"}, nil, Config{})

	runRounds(t, mem, 3)
	total, err := mem.TotalConversations(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)

	// Assistant and system messages never advance the counter.
	require.NoError(t, mem.AddMessage(context.Background(), RoleSystem, "note"))
	total, err = mem.TotalConversations(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
}

func TestArchivalKeepsOneRoundAfterOverflow(t *testing.T) {
	st := newFakeStore()
	mem := NewLayeredMemory(st, st, &scriptedCaller{reply: "a quiet chat about daily life"}, nil, Config{})

	runRounds(t, mem, 21)

	msgs, err := mem.ShortTerm(context.Background())
	require.NoError(t, err)
	// The 21st user message plus its reply survive.
	require.Len(t, msgs, 2)
	assert.Equal(t, RoleUser, msgs[0].Role)
	assert.Equal(t, "user line 21", msgs[0].Content)

	require.Len(t, st.summaries, 1)
	assert.Equal(t, 20, st.summaries[0].Rounds)
	assert.Equal(t, 40, st.summaries[0].MessageCount)
	assert.Equal(t, "a quiet chat about daily life", st.summaries[0].Text)
	assert.True(t, st.summaries[0].EndedAt.After(st.summaries[0].CreatedAt))
}

func TestArchivalSummaryFallsBackOnModelFailure(t *testing.T) {
	st := newFakeStore()
	mem := NewLayeredMemory(st, st, &scriptedCaller{err: fmt.Errorf("%w: down", errno.ErrUpstream)}, nil, Config{MaxShortTermRounds: 2, ExtractionInterval: 100, ExpressionLearnInterval: 100})

	runRounds(t, mem, 3)

	require.Len(t, st.summaries, 1)
	assert.Equal(t, "Conversation about: user line 1", st.summaries[0].Text)
}

func TestExtractionFiresOnInterval(t *testing.T) {
	st := newFakeStore()
	sink := &fakeSink{}
	caller := &scriptedCaller{reply: `[{"entity_name": "the lighthouse", "is_definition": true, "content": "an old lighthouse on the north cliff", "type": "fact", "source": "conversation", "confidence": 0.9}]`}
	mem := NewLayeredMemory(st, st, caller, sink, Config{ExtractionInterval: 5, ExpressionLearnInterval: 100})

	runRounds(t, mem, 4)
	assert.Empty(t, sink.records)

	runRounds(t, mem, 1)
	require.Len(t, sink.records, 1)
	assert.Equal(t, "the lighthouse", sink.records[0].entity)
	assert.True(t, sink.records[0].isDefinition)
}

func TestExpressionLearningAdvancesOnlyOnSuccess(t *testing.T) {
	st := newFakeStore()
	caller := &scriptedCaller{err: fmt.Errorf("%w: down", errno.ErrUpstream)}
	mem := NewLayeredMemory(st, st, caller, nil, Config{ExtractionInterval: 100, ExpressionLearnInterval: 10})

	runRounds(t, mem, 10)
	last, err := st.GetMetaInt(context.Background(), MetaLastExpressionLearnRound)
	require.NoError(t, err)
	assert.Zero(t, last, "a failed learning pass must not advance the counter")

	caller.err = nil
	caller.reply = `[{"expression": "you know what I mean", "meaning": "seeking agreement", "category": "catchphrase"}]`
	runRounds(t, mem, 1)

	last, err = st.GetMetaInt(context.Background(), MetaLastExpressionLearnRound)
	require.NoError(t, err)
	assert.Equal(t, int64(11), last)

	block, err := mem.ExpressionPromptBlock(context.Background(), StyleUser, 5)
	require.NoError(t, err)
	assert.Contains(t, block, "you know what I mean")
}

func TestContextForChatRendersSummaries(t *testing.T) {
	st := newFakeStore()
	mem := NewLayeredMemory(st, st, &scriptedCaller{reply: "we talked about the sea"}, nil, Config{MaxShortTermRounds: 1, ExtractionInterval: 100, ExpressionLearnInterval: 100})

	block, err := mem.ContextForChat(context.Background())
	require.NoError(t, err)
	assert.Empty(t, block)

	runRounds(t, mem, 2)
	block, err = mem.ContextForChat(context.Background())
	require.NoError(t, err)
	assert.Contains(t, block, "## Long-term memory")
	assert.Contains(t, block, "we talked about the sea")
}
