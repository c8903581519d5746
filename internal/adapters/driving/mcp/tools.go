package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/synchronoux/internal/core/domain"
	"github.com/custodia-labs/synchronoux/internal/logger"
)

// StatusInput is the (empty) input schema for the sync_status tool.
type StatusInput struct{}

// StatusOutput is the output schema for the sync_status tool.
type StatusOutput struct {
	State    string     `json:"state"`
	Priority string     `json:"priority"`
	Pending  int        `json:"pending"`
	Running  bool       `json:"running"`
	LastRun  *RunOutput `json:"last_run,omitempty"`
}

// InitiateInput is the input schema for the sync_initiate tool.
type InitiateInput struct {
	Phase    string   `json:"phase,omitempty" jsonschema:"phase to start from: pull, push or persist (default: the whole configured plan)"`
	Folder   string   `json:"folder,omitempty" jsonschema:"middle store folder overriding the configured pull prefix"`
	Locators []string `json:"locators,omitempty" jsonschema:"objects to persist, required for the persist phase"`
	Wait     bool     `json:"wait,omitempty" jsonschema:"block until the run finishes instead of returning once it starts"`
}

// InitiateOutput is the output schema for the sync_initiate tool.
type InitiateOutput struct {
	Started bool   `json:"started"`
	Done    bool   `json:"done"`
	State   string `json:"state"`
	Error   string `json:"error,omitempty"`
}

// HistoryInput is the input schema for the sync_history tool.
type HistoryInput struct {
	Limit int `json:"limit,omitempty" jsonschema:"maximum number of runs to return (default 10)"`
}

// HistoryOutput is the output schema for the sync_history tool.
type HistoryOutput struct {
	Runs  []RunOutput `json:"runs"`
	Count int         `json:"count"`
}

// ResetInput is the (empty) input schema for the sync_reset tool.
type ResetInput struct{}

// RunOutput summarises one run.
type RunOutput struct {
	RunID           string    `json:"run_id"`
	Priority        string    `json:"priority"`
	Phases          []string  `json:"phases"`
	FailedPhases    []string  `json:"failed_phases,omitempty"`
	FinalState      string    `json:"final_state"`
	RecordsWritten  int       `json:"records_written"`
	RecordsPushed   int       `json:"records_pushed"`
	BatchesUploaded int       `json:"batches_uploaded"`
	StartedAt       time.Time `json:"started_at"`
	EndedAt         time.Time `json:"ended_at"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "sync_status",
		Description: "Report the current state of the sync engine",
	}, s.handleStatus)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "sync_initiate",
		Description: "Start a sync run, optionally from a single phase",
	}, s.handleInitiate)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "sync_history",
		Description: "List recent sync runs, most recent first",
	}, s.handleHistory)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "sync_reset",
		Description: "Return a failed sync engine to IDLE",
	}, s.handleReset)
}

// handleStatus handles the sync_status tool invocation.
func (s *Server) handleStatus(
	_ context.Context,
	_ *mcp.CallToolRequest,
	_ StatusInput,
) (*mcp.CallToolResult, StatusOutput, error) {
	return nil, s.status(), nil
}

// handleInitiate handles the sync_initiate tool invocation.
func (s *Server) handleInitiate(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input InitiateInput,
) (*mcp.CallToolResult, InitiateOutput, error) {
	run, err := s.phaseFunc(input)
	if err != nil {
		return nil, InitiateOutput{}, err
	}

	if st := s.ports.Sync.Status(); st.Running || st.State.Failed() {
		return nil, InitiateOutput{State: string(st.State)}, fmt.Errorf("%w: state %s", domain.ErrSyncInProgress, st.State)
	}

	if input.Wait {
		err := run(ctx)
		out := InitiateOutput{Started: true, Done: true, State: string(s.ports.Sync.State())}
		if err != nil {
			if errors.Is(err, domain.ErrSyncInProgress) {
				return nil, InitiateOutput{State: out.State}, err
			}
			out.Error = err.Error()
		}
		return nil, out, nil
	}

	// The run outlives the tool call.
	bg := context.WithoutCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := run(bg); err != nil {
			logger.Warn("mcp: sync run failed: %v", err)
		}
	}()
	return nil, InitiateOutput{Started: true, State: string(s.ports.Sync.State())}, nil
}

// handleHistory handles the sync_history tool invocation.
func (s *Server) handleHistory(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input HistoryInput,
) (*mcp.CallToolResult, HistoryOutput, error) {
	if s.ports.History == nil {
		return nil, HistoryOutput{Runs: []RunOutput{}}, nil
	}

	limit := input.Limit
	if limit <= 0 {
		limit = 10
	}

	runs, err := s.ports.History.ListRuns(ctx, limit)
	if err != nil {
		return nil, HistoryOutput{}, err
	}

	output := HistoryOutput{
		Runs:  make([]RunOutput, len(runs)),
		Count: len(runs),
	}
	for i := range runs {
		output.Runs[i] = runOutput(&runs[i])
	}
	return nil, output, nil
}

// handleReset handles the sync_reset tool invocation.
func (s *Server) handleReset(
	_ context.Context,
	_ *mcp.CallToolRequest,
	_ ResetInput,
) (*mcp.CallToolResult, StatusOutput, error) {
	if s.ports.Sync.Reset() {
		logger.Info("Sync instance reset over MCP")
	}
	return nil, s.status(), nil
}

// phaseFunc resolves the orchestrator call for the requested phase.
func (s *Server) phaseFunc(input InitiateInput) (func(context.Context) error, error) {
	var params domain.Params
	if input.Folder != "" {
		params = domain.Params{domain.ParamFolder: input.Folder}
	}

	orch := s.ports.Sync
	switch strings.ToUpper(strings.TrimSpace(input.Phase)) {
	case "":
		return func(ctx context.Context) error { return orch.Initiate(ctx, params) }, nil
	case string(domain.PhasePull):
		return func(ctx context.Context) error { return orch.Pull(ctx, params) }, nil
	case string(domain.PhasePush):
		return func(ctx context.Context) error { return orch.Push(ctx, params) }, nil
	case string(domain.PhasePersist):
		if len(input.Locators) == 0 {
			return nil, fmt.Errorf("%w: persist needs at least one locator", domain.ErrInvalidInput)
		}
		locators := input.Locators
		return func(ctx context.Context) error { return orch.Persist(ctx, locators, params) }, nil
	}
	return nil, fmt.Errorf("%w: unknown phase %q", domain.ErrInvalidInput, input.Phase)
}

func (s *Server) status() StatusOutput {
	st := s.ports.Sync.Status()
	out := StatusOutput{
		State:    string(st.State),
		Priority: string(st.Priority),
		Pending:  st.Pending,
		Running:  st.Running,
	}
	if st.LastRun != nil {
		run := runOutput(st.LastRun)
		out.LastRun = &run
	}
	return out
}

func runOutput(run *domain.RunSummary) RunOutput {
	return RunOutput{
		RunID:           run.RunID,
		Priority:        string(run.Priority),
		Phases:          phaseNames(run.Phases),
		FailedPhases:    phaseNames(run.FailedPhases),
		FinalState:      string(run.FinalState),
		RecordsWritten:  run.RecordsWritten,
		RecordsPushed:   run.RecordsPushed,
		BatchesUploaded: run.BatchesUploaded,
		StartedAt:       run.StartedAt,
		EndedAt:         run.EndedAt,
	}
}

func phaseNames(phases []domain.Phase) []string {
	if len(phases) == 0 {
		return nil
	}
	out := make([]string, len(phases))
	for i, p := range phases {
		out[i] = string(p)
	}
	return out
}
