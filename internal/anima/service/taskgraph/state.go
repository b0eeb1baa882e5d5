package taskgraph

// Node names of the state machine. NextAction always holds one of these
// or ActionEnd.
const (
	ActionOrchestrate       = "orchestrate"
	ActionExecuteParallel   = "execute_parallel"
	ActionExecuteSequential = "execute_sequential"
	ActionSynthesise        = "synthesise"
	ActionEnd               = "end"
)

// Agent statuses.
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Execution strategies the orchestrator may choose.
const (
	StrategySimple     = "simple"
	StrategyParallel   = "parallel"
	StrategySequential = "sequential"
)

// TaskInput is the task snapshot a run starts from.
type TaskInput struct {
	EventID      string `json:"event_id"`
	Title        string `json:"title"`
	Description  string `json:"description"`
	Requirements string `json:"requirements"`
	Criteria     string `json:"criteria"`
}

// AgentRecord tracks one sub-agent through the run.
type AgentRecord struct {
	AgentID      string   `json:"agent_id"`
	Role         string   `json:"role"`
	Description  string   `json:"description"`
	Task         string   `json:"task"`
	Dependencies []string `json:"dependencies"`
	Status       string   `json:"status"`
	Result       string   `json:"result"`
	Error        string   `json:"error"`
}

// State is the full machine state, persisted at every node boundary.
type State struct {
	Task              TaskInput         `json:"task"`
	CharacterContext  string            `json:"character_context"`
	OrchestrationPlan string            `json:"orchestration_plan"`
	Strategy          string            `json:"strategy"`
	Agents            []*AgentRecord    `json:"agents"`
	AgentResults      map[string]string `json:"agent_results"`
	CollaborationLogs []string          `json:"collaboration_logs"`
	FinalResult       string            `json:"final_result"`
	Error             string            `json:"error"`
	NextAction        string            `json:"next_action"`
}

// Outcome summarises a finished run for the caller.
type Outcome struct {
	FinalResult                  string
	Failed                       bool
	Partial                      bool
	RequiresDeliveryConfirmation bool
	CollaborationLogs            []string
}

func (s *State) pendingAgents() []*AgentRecord {
	var out []*AgentRecord
	for _, a := range s.Agents {
		if a.Status == StatusPending {
			out = append(out, a)
		}
	}
	return out
}

func (s *State) agentByID(id string) *AgentRecord {
	for _, a := range s.Agents {
		if a.AgentID == id {
			return a
		}
	}
	return nil
}

func (s *State) counts() (completed, failed int) {
	for _, a := range s.Agents {
		switch a.Status {
		case StatusCompleted:
			completed++
		case StatusFailed:
			failed++
		}
	}
	return
}
