package taskgraph

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/cloudwego/eino/schema"
	"golang.org/x/sync/errgroup"

	"github.com/kiosk404/anima/internal/anima/pkg/errno"
	"github.com/kiosk404/anima/internal/anima/service/llm"
	"github.com/kiosk404/anima/pkg/logger"
	"github.com/kiosk404/anima/pkg/utils/jsonx"
)

const ModuleName = "taskgraph"

// maxParallelWorkers bounds concurrent sub-agent execution.
const maxParallelWorkers = 3

// Engine drives the four-node task state machine. State is checkpointed
// at every node boundary under the run's thread id.
type Engine struct {
	llm        llm.Caller
	checkpoint Checkpointer
}

// NewEngine creates the task graph engine.
func NewEngine(caller llm.Caller, checkpoint Checkpointer) *Engine {
	return &Engine{llm: caller, checkpoint: checkpoint}
}

// Run executes the task, resuming from a checkpoint when one exists for
// the thread id. The returned error is non-nil only for hard failures
// (deadlock, checkpoint IO, cancelled context); agent-level failures are
// reported through the outcome.
func (e *Engine) Run(ctx context.Context, threadID string, task TaskInput, characterContext string) (*Outcome, error) {
	state, err := e.checkpoint.Load(ctx, threadID)
	if err != nil {
		if !errors.Is(err, errno.ErrNotFound) {
			return nil, err
		}
		state = &State{
			Task:             task,
			CharacterContext: characterContext,
			AgentResults:     make(map[string]string),
			NextAction:       ActionOrchestrate,
		}
	} else {
		logger.InfoX(ModuleName, "[Engine] resuming thread %s from node %s", threadID, state.NextAction)
	}

	for state.NextAction != ActionEnd {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %v", errno.ErrCancelled, ctx.Err())
		}
		switch state.NextAction {
		case ActionOrchestrate:
			e.orchestrate(ctx, state)
		case ActionExecuteParallel:
			e.executeParallel(ctx, state)
		case ActionExecuteSequential:
			if err := e.executeSequential(ctx, state); err != nil {
				return nil, err
			}
		case ActionSynthesise:
			e.synthesise(ctx, state)
		default:
			return nil, fmt.Errorf("%w: unknown node %q", errno.ErrBadInput, state.NextAction)
		}
		if err := e.checkpoint.Save(ctx, threadID, state); err != nil {
			return nil, err
		}
	}

	outcome := e.finish(state)
	if err := e.checkpoint.Delete(ctx, threadID); err != nil {
		logger.WarnX(ModuleName, "[Engine] checkpoint cleanup for %s failed: %v", threadID, err)
	}
	return outcome, nil
}

type orchestrationPlan struct {
	Complexity        string `json:"complexity"`
	ExecutionStrategy string `json:"execution_strategy"`
	Reasoning         string `json:"reasoning"`
	Agents            []struct {
		AgentID      string   `json:"agent_id"`
		Role         string   `json:"role"`
		Description  string   `json:"description"`
		Task         string   `json:"task"`
		Dependencies []string `json:"dependencies"`
	} `json:"agents"`
	DirectResult string `json:"direct_result"`
}

const orchestratePrompt = `You coordinate sub-agents working on a task for a character.

Character context:
%s

Task: %s
Description: %s
Requirements: %s
Success criteria: %s

Decide how to execute it. Respond with strict JSON, nothing else:
{"complexity": "low|medium|high", "execution_strategy": "simple|parallel|sequential", "reasoning": "...", "agents": [{"agent_id": "...", "role": "...", "description": "...", "task": "...", "dependencies": []}], "direct_result": "..."}

Use "simple" with a filled direct_result when one answer suffices. Use "sequential" when agents depend on each other's output, "parallel" otherwise.`

func (e *Engine) orchestrate(ctx context.Context, state *State) {
	raw, err := e.llm.Chat(ctx, []*schema.Message{
		schema.UserMessage(fmt.Sprintf(orchestratePrompt,
			state.CharacterContext, state.Task.Title, state.Task.Description,
			state.Task.Requirements, state.Task.Criteria)),
	}, llm.TierMain)
	if err != nil {
		state.Error = fmt.Sprintf("orchestration failed: %v", err)
		state.NextAction = ActionEnd
		return
	}

	var plan orchestrationPlan
	if err := jsonx.DecodeStrict(raw, &plan); err != nil {
		state.Error = fmt.Sprintf("orchestration returned unparsable JSON: %v", err)
		state.NextAction = ActionEnd
		return
	}
	state.OrchestrationPlan = plan.Reasoning
	state.Strategy = plan.ExecutionStrategy

	switch plan.ExecutionStrategy {
	case StrategySimple:
		state.FinalResult = plan.DirectResult
		state.NextAction = ActionEnd
	case StrategyParallel, StrategySequential:
		for i, a := range plan.Agents {
			id := a.AgentID
			if id == "" {
				id = fmt.Sprintf("agent_%d", i+1)
			}
			state.Agents = append(state.Agents, &AgentRecord{
				AgentID:      id,
				Role:         a.Role,
				Description:  a.Description,
				Task:         a.Task,
				Dependencies: a.Dependencies,
				Status:       StatusPending,
			})
		}
		if len(state.Agents) == 0 {
			state.Error = "orchestration produced no agents"
			state.NextAction = ActionEnd
			return
		}
		if plan.ExecutionStrategy == StrategyParallel {
			state.NextAction = ActionExecuteParallel
		} else {
			state.NextAction = ActionExecuteSequential
		}
		logger.InfoX(ModuleName, "[Engine] plan: %s with %d agents", plan.ExecutionStrategy, len(state.Agents))
	default:
		state.Error = fmt.Sprintf("unknown execution strategy %q", plan.ExecutionStrategy)
		state.NextAction = ActionEnd
	}
}

// executeParallel runs every pending agent with a worker bound of
// min(pending, 3). Agent failures are recorded, never propagated.
func (e *Engine) executeParallel(ctx context.Context, state *State) {
	pending := state.pendingAgents()
	if len(pending) == 0 {
		state.NextAction = ActionSynthesise
		return
	}

	workers := len(pending)
	if workers > maxParallelWorkers {
		workers = maxParallelWorkers
	}

	var mu sync.Mutex
	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(workers)
	for _, agent := range pending {
		agent := agent
		mu.Lock()
		agent.Status = StatusRunning
		deps := e.dependencyResults(state, agent)
		mu.Unlock()

		group.Go(func() error {
			result, err := e.runSubAgent(gctx, state, agent, deps)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				agent.Status = StatusFailed
				agent.Error = err.Error()
				state.CollaborationLogs = append(state.CollaborationLogs,
					fmt.Sprintf("%s (%s) failed: %v", agent.AgentID, agent.Role, err))
				return nil
			}
			agent.Status = StatusCompleted
			agent.Result = result
			state.AgentResults[agent.AgentID] = result
			state.CollaborationLogs = append(state.CollaborationLogs,
				fmt.Sprintf("%s (%s) completed", agent.AgentID, agent.Role))
			return nil
		})
	}
	_ = group.Wait()

	if len(state.pendingAgents()) > 0 {
		state.NextAction = ActionExecuteParallel
		return
	}
	state.NextAction = ActionSynthesise
}

// executeSequential runs the first pending agent whose dependencies have
// all completed. A pending set with no runnable agent is a deadlock.
func (e *Engine) executeSequential(ctx context.Context, state *State) error {
	pending := state.pendingAgents()
	if len(pending) == 0 {
		state.NextAction = ActionSynthesise
		return nil
	}

	var next *AgentRecord
	for _, agent := range pending {
		if e.dependenciesMet(state, agent) {
			next = agent
			break
		}
	}
	if next == nil {
		return fmt.Errorf("%w: %d agents pending with unmet dependencies", errno.ErrDependencyDeadlock, len(pending))
	}

	next.Status = StatusRunning
	result, err := e.runSubAgent(ctx, state, next, e.dependencyResults(state, next))
	if err != nil {
		next.Status = StatusFailed
		next.Error = err.Error()
		state.CollaborationLogs = append(state.CollaborationLogs,
			fmt.Sprintf("%s (%s) failed: %v", next.AgentID, next.Role, err))
	} else {
		next.Status = StatusCompleted
		next.Result = result
		state.AgentResults[next.AgentID] = result
		state.CollaborationLogs = append(state.CollaborationLogs,
			fmt.Sprintf("%s (%s) completed", next.AgentID, next.Role))
	}

	if len(state.pendingAgents()) > 0 {
		state.NextAction = ActionExecuteSequential
	} else {
		state.NextAction = ActionSynthesise
	}
	return nil
}

// dependenciesMet treats failed dependencies as unmet: the dependent agent
// stays pending and the deadlock check surfaces the stall.
func (e *Engine) dependenciesMet(state *State, agent *AgentRecord) bool {
	for _, dep := range agent.Dependencies {
		rec := state.agentByID(dep)
		if rec == nil || rec.Status != StatusCompleted {
			return false
		}
	}
	return true
}

func (e *Engine) dependencyResults(state *State, agent *AgentRecord) map[string]string {
	deps := make(map[string]string)
	for _, dep := range agent.Dependencies {
		if result, ok := state.AgentResults[dep]; ok {
			deps[dep] = result
		}
	}
	return deps
}

const subAgentPrompt = `You are %s: %s

Character context:
%s

Your task: %s
%s
Produce your result as plain text.`

func (e *Engine) runSubAgent(ctx context.Context, state *State, agent *AgentRecord, deps map[string]string) (string, error) {
	var depBlock strings.Builder
	if len(deps) > 0 {
		depBlock.WriteString("Results from agents you depend on:\n")
		for id, result := range deps {
			fmt.Fprintf(&depBlock, "- %s: %s\n", id, result)
		}
	}
	return e.llm.Chat(ctx, []*schema.Message{
		schema.UserMessage(fmt.Sprintf(subAgentPrompt,
			agent.Role, agent.Description, state.CharacterContext, agent.Task, depBlock.String())),
	}, llm.TierTool)
}

const synthesisePrompt = `Combine these partial results into one coherent answer for the task "%s".

%s
Respond with the combined answer only.`

// synthesise merges completed agent results via the Main tier, degrading
// to verbatim concatenation with role headers when the call fails.
func (e *Engine) synthesise(ctx context.Context, state *State) {
	sections := e.resultSections(state)
	if sections == "" {
		state.NextAction = ActionEnd
		return
	}

	text, err := e.llm.Chat(ctx, []*schema.Message{
		schema.UserMessage(fmt.Sprintf(synthesisePrompt, state.Task.Title, sections)),
	}, llm.TierMain)
	if err != nil || strings.TrimSpace(text) == "" {
		logger.WarnX(ModuleName, "[Engine] synthesis degraded to concatenation: %v", err)
		state.FinalResult = sections
	} else {
		state.FinalResult = strings.TrimSpace(text)
	}
	state.NextAction = ActionEnd
}

func (e *Engine) resultSections(state *State) string {
	var sb strings.Builder
	for _, agent := range state.Agents {
		if agent.Status != StatusCompleted {
			continue
		}
		fmt.Fprintf(&sb, "## %s\n%s\n\n", agent.Role, agent.Result)
	}
	return strings.TrimRight(sb.String(), "\n")
}

func (e *Engine) finish(state *State) *Outcome {
	outcome := &Outcome{
		FinalResult:       state.FinalResult,
		CollaborationLogs: state.CollaborationLogs,
	}
	if state.Strategy == StrategySimple {
		outcome.RequiresDeliveryConfirmation = true
	}
	if state.Error != "" {
		outcome.Failed = true
		return outcome
	}
	completed, failed := state.counts()
	if len(state.Agents) > 0 {
		if completed == 0 {
			outcome.Failed = true
		} else if failed > 0 {
			outcome.Partial = true
		}
	}
	return outcome
}
