package execution

import (
	"fmt"
	"strings"
	"time"

	"payguard/internal/types"

	"github.com/shopspring/decimal"
)

// Mode is fixed when a record is created.
type Mode string

const (
	ModeImmediate  Mode = "immediate"
	ModeSimulation Mode = "simulation"
	ModeScheduled  Mode = "scheduled"
)

// ParseMode accepts both the submission verbs (execute/simulate/schedule) and the mode names.
func ParseMode(raw string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "execute", "immediate":
		return ModeImmediate, nil
	case "simulate", "simulation":
		return ModeSimulation, nil
	case "schedule", "scheduled":
		return ModeScheduled, nil
	default:
		return "", fmt.Errorf("%w: unknown execution mode %q", types.ErrInvalidInput, raw)
	}
}

// Status is the lifecycle state of a record.
type Status string

const (
	StatusExecuting          Status = "executing"
	StatusSimulationComplete Status = "simulation_complete"
	StatusScheduled          Status = "scheduled"
	StatusCompleted          Status = "completed"
	StatusCancelled          Status = "cancelled"
	// StatusStopped marks an execution whose driver exited before the last step.
	StatusStopped Status = "stopped"
)

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	switch s {
	case StatusSimulationComplete, StatusCompleted, StatusCancelled, StatusStopped:
		return true
	default:
		return false
	}
}

// StepStatus tracks a single execution step.
type StepStatus string

const (
	StepPending    StepStatus = "pending"
	StepProcessing StepStatus = "processing"
	StepCompleted  StepStatus = "completed"
	StepStopped    StepStatus = "stopped"
)

// Step is one entry of an executing record's progress list.
type Step struct {
	Name        string     `json:"name"`
	Status      StepStatus `json:"status"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// StepNames is the fixed progress sequence of an execution.
var StepNames = []string{
	"validate_payroll",
	"calculate_netting",
	"prepare_transactions",
	"execute_netted_transactions",
	"confirm_settlement",
}

func newSteps(now time.Time) []Step {
	steps := make([]Step, len(StepNames))
	for i, name := range StepNames {
		steps[i] = Step{Name: name, Status: StepPending}
	}
	started := now
	steps[0].Status = StepProcessing
	steps[0].StartedAt = &started
	return steps
}

// Summary aggregates the payroll batch once, at creation.
type Summary struct {
	EmployeeCount      int             `json:"employee_count"`
	TotalAmount        decimal.Decimal `json:"total_amount"`
	NettedTransactions int             `json:"netted_transactions"`
	GasSavingsUSD      decimal.Decimal `json:"gas_savings_usd"`
}

func newSummary(batch types.PayrollBatch, netting types.NettingAnalysis) Summary {
	return Summary{
		EmployeeCount:      len(batch),
		TotalAmount:        batch.Total(),
		NettedTransactions: *netting.NettedTransactions,
		GasSavingsUSD:      *netting.GasSavingsUSD,
	}
}

// Record is an execution as seen by callers. Values returned by the Manager are copies.
type Record struct {
	ID             string             `json:"execution_id"`
	Status         Status             `json:"status"`
	Mode           Mode               `json:"mode"`
	CreatedAt      time.Time          `json:"created_at"`
	StartedAt      *time.Time         `json:"started_at,omitempty"`
	CompletedAt    *time.Time         `json:"completed_at,omitempty"`
	CancelledAt    *time.Time         `json:"cancelled_at,omitempty"`
	StoppedAt      *time.Time         `json:"stopped_at,omitempty"`
	StopReason     string             `json:"stop_reason,omitempty"`
	ScheduledFor   *time.Time         `json:"scheduled_for,omitempty"`
	ScheduleReason string             `json:"schedule_reason,omitempty"`
	CandidateID    string             `json:"candidate_id,omitempty"`
	BlockOffset    *int               `json:"block_offset,omitempty"`
	Steps          []Step             `json:"steps,omitempty"`
	Summary        Summary            `json:"summary"`
	Preview        *SimulationPreview `json:"preview,omitempty"`

	seq uint64
}

// CurrentStep returns the index of the first step not yet completed, or -1.
func (r Record) CurrentStep() int {
	for i, st := range r.Steps {
		if st.Status != StepCompleted {
			return i
		}
	}
	return -1
}

func (r *Record) clone() Record {
	out := *r
	out.StartedAt = cloneTime(r.StartedAt)
	out.CompletedAt = cloneTime(r.CompletedAt)
	out.CancelledAt = cloneTime(r.CancelledAt)
	out.StoppedAt = cloneTime(r.StoppedAt)
	out.ScheduledFor = cloneTime(r.ScheduledFor)
	if r.BlockOffset != nil {
		v := *r.BlockOffset
		out.BlockOffset = &v
	}
	if r.Steps != nil {
		out.Steps = make([]Step, len(r.Steps))
		for i, st := range r.Steps {
			st.StartedAt = cloneTime(st.StartedAt)
			st.CompletedAt = cloneTime(st.CompletedAt)
			out.Steps[i] = st
		}
	}
	if r.Preview != nil {
		p := r.Preview.clone()
		out.Preview = &p
	}
	return out
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
