package taskgraph

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kiosk404/anima/internal/anima/pkg/errno"
	"github.com/kiosk404/anima/internal/anima/service/llm"
)

// fakeCaller routes each call through fn and records tier usage.
type fakeCaller struct {
	mu    sync.Mutex
	tiers []llm.Tier
	fn    func(prompt string, tier llm.Tier) (string, error)
}

func (f *fakeCaller) Chat(_ context.Context, messages []*schema.Message, tier llm.Tier) (string, error) {
	f.mu.Lock()
	f.tiers = append(f.tiers, tier)
	f.mu.Unlock()
	return f.fn(messages[len(messages)-1].Content, tier)
}

func (f *fakeCaller) toolCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, tier := range f.tiers {
		if tier == llm.TierTool {
			n++
		}
	}
	return n
}

func testTask() TaskInput {
	return TaskInput{
		EventID:      "ev-1",
		Title:        "prepare picnic",
		Description:  "plan a picnic for the weekend",
		Requirements: "food, location",
		Criteria:     "a complete plan",
	}
}

func TestRunSimpleStrategy(t *testing.T) {
	caller := &fakeCaller{fn: func(prompt string, tier llm.Tier) (string, error) {
		return `{"complexity": "low", "execution_strategy": "simple", "reasoning": "one answer suffices", "agents": [], "direct_result": "bring sandwiches to the park"}`, nil
	}}
	eng := NewEngine(caller, NewMemoryCheckpointer())

	outcome, err := eng.Run(context.Background(), "t-simple", testTask(), "Anima")
	require.NoError(t, err)
	assert.Equal(t, "bring sandwiches to the park", outcome.FinalResult)
	assert.True(t, outcome.RequiresDeliveryConfirmation)
	assert.False(t, outcome.Failed)
	assert.Zero(t, caller.toolCalls())
}

func parallelPlan() string {
	return `{"complexity": "medium", "execution_strategy": "parallel", "reasoning": "independent work", "agents": [
		{"agent_id": "food", "role": "cook", "description": "plans food", "task": "plan the food", "dependencies": []},
		{"agent_id": "place", "role": "scout", "description": "finds a spot", "task": "find a location", "dependencies": []}
	], "direct_result": ""}`
}

func TestRunParallelAllSucceed(t *testing.T) {
	caller := &fakeCaller{fn: func(prompt string, tier llm.Tier) (string, error) {
		switch {
		case strings.Contains(prompt, "Decide how to execute"):
			return parallelPlan(), nil
		case strings.Contains(prompt, "plan the food"):
			return "sandwiches and tea", nil
		case strings.Contains(prompt, "find a location"):
			return "the hill by the lighthouse", nil
		default:
			return "picnic plan: sandwiches on the hill", nil
		}
	}}
	eng := NewEngine(caller, NewMemoryCheckpointer())

	outcome, err := eng.Run(context.Background(), "t-par", testTask(), "Anima")
	require.NoError(t, err)
	assert.Equal(t, "picnic plan: sandwiches on the hill", outcome.FinalResult)
	assert.False(t, outcome.Failed)
	assert.False(t, outcome.Partial)
	assert.Equal(t, 2, caller.toolCalls())
}

func TestRunParallelPartialFailure(t *testing.T) {
	caller := &fakeCaller{fn: func(prompt string, tier llm.Tier) (string, error) {
		switch {
		case strings.Contains(prompt, "Decide how to execute"):
			return parallelPlan(), nil
		case strings.Contains(prompt, "plan the food"):
			return "", fmt.Errorf("%w: timeout", errno.ErrUpstream)
		case strings.Contains(prompt, "find a location"):
			return "the hill by the lighthouse", nil
		default:
			return "plan with what we have", nil
		}
	}}
	eng := NewEngine(caller, NewMemoryCheckpointer())

	outcome, err := eng.Run(context.Background(), "t-partial", testTask(), "Anima")
	require.NoError(t, err)
	assert.False(t, outcome.Failed)
	assert.True(t, outcome.Partial)
	assert.Equal(t, "plan with what we have", outcome.FinalResult)

	joined := strings.Join(outcome.CollaborationLogs, "\n")
	assert.Contains(t, joined, "food (cook) failed")
	assert.Contains(t, joined, "place (scout) completed")
}

func TestRunParallelAllFail(t *testing.T) {
	caller := &fakeCaller{fn: func(prompt string, tier llm.Tier) (string, error) {
		if strings.Contains(prompt, "Decide how to execute") {
			return parallelPlan(), nil
		}
		return "", fmt.Errorf("%w: down", errno.ErrUpstream)
	}}
	eng := NewEngine(caller, NewMemoryCheckpointer())

	outcome, err := eng.Run(context.Background(), "t-allfail", testTask(), "Anima")
	require.NoError(t, err)
	assert.True(t, outcome.Failed)
}

func TestRunSequentialPassesDependencyResults(t *testing.T) {
	var secondPrompt string
	caller := &fakeCaller{fn: func(prompt string, tier llm.Tier) (string, error) {
		switch {
		case strings.Contains(prompt, "Decide how to execute"):
			return `{"complexity": "medium", "execution_strategy": "sequential", "reasoning": "ordered", "agents": [
				{"agent_id": "draft", "role": "writer", "description": "drafts", "task": "write a draft", "dependencies": []},
				{"agent_id": "review", "role": "editor", "description": "reviews", "task": "review the draft", "dependencies": ["draft"]}
			], "direct_result": ""}`, nil
		case strings.Contains(prompt, "write a draft"):
			return "first draft text", nil
		case strings.Contains(prompt, "review the draft"):
			secondPrompt = prompt
			return "polished text", nil
		default:
			return "final text", nil
		}
	}}
	eng := NewEngine(caller, NewMemoryCheckpointer())

	outcome, err := eng.Run(context.Background(), "t-seq", testTask(), "Anima")
	require.NoError(t, err)
	assert.Equal(t, "final text", outcome.FinalResult)
	assert.Contains(t, secondPrompt, "first draft text")
}

func TestRunSequentialDeadlock(t *testing.T) {
	caller := &fakeCaller{fn: func(prompt string, tier llm.Tier) (string, error) {
		if strings.Contains(prompt, "Decide how to execute") {
			return `{"complexity": "high", "execution_strategy": "sequential", "reasoning": "circular", "agents": [
				{"agent_id": "a", "role": "a", "description": "", "task": "task a", "dependencies": ["b"]},
				{"agent_id": "b", "role": "b", "description": "", "task": "task b", "dependencies": ["a"]}
			], "direct_result": ""}`, nil
		}
		return "unreachable", nil
	}}
	eng := NewEngine(caller, NewMemoryCheckpointer())

	_, err := eng.Run(context.Background(), "t-dead", testTask(), "Anima")
	require.ErrorIs(t, err, errno.ErrDependencyDeadlock)
	// The deadlock is detected before any sub-agent runs.
	assert.Zero(t, caller.toolCalls())
}

func TestRunOrchestrationFailure(t *testing.T) {
	caller := &fakeCaller{fn: func(prompt string, tier llm.Tier) (string, error) {
		return "", fmt.Errorf("%w: down", errno.ErrUpstream)
	}}
	eng := NewEngine(caller, NewMemoryCheckpointer())

	outcome, err := eng.Run(context.Background(), "t-orch", testTask(), "Anima")
	require.NoError(t, err)
	assert.True(t, outcome.Failed)
	assert.Empty(t, outcome.FinalResult)
}

func TestRunSynthesisFallsBackToConcatenation(t *testing.T) {
	synthesiseCalled := false
	caller := &fakeCaller{fn: func(prompt string, tier llm.Tier) (string, error) {
		switch {
		case strings.Contains(prompt, "Decide how to execute"):
			return parallelPlan(), nil
		case strings.Contains(prompt, "Combine these partial results"):
			synthesiseCalled = true
			return "", fmt.Errorf("%w: down", errno.ErrUpstream)
		case strings.Contains(prompt, "plan the food"):
			return "sandwiches", nil
		default:
			return "the hill", nil
		}
	}}
	eng := NewEngine(caller, NewMemoryCheckpointer())

	outcome, err := eng.Run(context.Background(), "t-synth", testTask(), "Anima")
	require.NoError(t, err)
	assert.True(t, synthesiseCalled)
	assert.Contains(t, outcome.FinalResult, "## cook\nsandwiches")
	assert.Contains(t, outcome.FinalResult, "## scout\nthe hill")
}

func TestRunDeletesCheckpointOnFinish(t *testing.T) {
	caller := &fakeCaller{fn: func(prompt string, tier llm.Tier) (string, error) {
		return `{"complexity": "low", "execution_strategy": "simple", "reasoning": "", "agents": [], "direct_result": "done"}`, nil
	}}
	cp := NewMemoryCheckpointer()
	eng := NewEngine(caller, cp)

	_, err := eng.Run(context.Background(), "t-cp", testTask(), "Anima")
	require.NoError(t, err)

	_, err = cp.Load(context.Background(), "t-cp")
	assert.ErrorIs(t, err, errno.ErrNotFound)
}

func TestRunResumesFromCheckpoint(t *testing.T) {
	cp := NewMemoryCheckpointer()
	state := &State{
		Task:     testTask(),
		Strategy: StrategyParallel,
		Agents: []*AgentRecord{
			{AgentID: "food", Role: "cook", Status: StatusCompleted, Result: "sandwiches"},
		},
		AgentResults: map[string]string{"food": "sandwiches"},
		NextAction:   ActionSynthesise,
	}
	require.NoError(t, cp.Save(context.Background(), "t-resume", state))

	orchestrated := false
	caller := &fakeCaller{fn: func(prompt string, tier llm.Tier) (string, error) {
		if strings.Contains(prompt, "Decide how to execute") {
			orchestrated = true
		}
		return "resumed answer", nil
	}}
	eng := NewEngine(caller, cp)

	outcome, err := eng.Run(context.Background(), "t-resume", testTask(), "Anima")
	require.NoError(t, err)
	assert.False(t, orchestrated, "a resumed run must not re-orchestrate")
	assert.Equal(t, "resumed answer", outcome.FinalResult)
}

func TestRunCancelledContext(t *testing.T) {
	caller := &fakeCaller{fn: func(prompt string, tier llm.Tier) (string, error) {
		return "", nil
	}}
	eng := NewEngine(caller, NewMemoryCheckpointer())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := eng.Run(ctx, "t-cancel", testTask(), "Anima")
	assert.ErrorIs(t, err, errno.ErrCancelled)
}
