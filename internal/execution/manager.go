package execution

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"payguard/internal/logger"
	"payguard/internal/types"

	"github.com/google/uuid"
)

const (
	DefaultStepDelay          = 2 * time.Second
	DefaultHistoryLimit       = 10
	DefaultScheduleHorizon    = 15 * time.Minute
	DefaultSuccessProbability = 0.95
)

// ErrClosed is returned by Submit after Close.
var ErrClosed = errors.New("execution manager closed")

// Options configures a Manager. Zero values fall back to the defaults above.
type Options struct {
	StepDelay          time.Duration
	HistoryLimit       int
	ScheduleHorizon    time.Duration
	SuccessProbability float64
	Driver             ProgressDriver
	Now                func() time.Time
	NewID              func() string
}

func (o Options) withDefaults() Options {
	if o.StepDelay <= 0 {
		o.StepDelay = DefaultStepDelay
	}
	if o.HistoryLimit <= 0 {
		o.HistoryLimit = DefaultHistoryLimit
	}
	if o.ScheduleHorizon <= 0 {
		o.ScheduleHorizon = DefaultScheduleHorizon
	}
	if o.SuccessProbability <= 0 || o.SuccessProbability > 1 {
		o.SuccessProbability = DefaultSuccessProbability
	}
	if o.Driver == nil {
		o.Driver = TimedDriver{Delay: o.StepDelay}
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.NewID == nil {
		o.NewID = uuid.NewString
	}
	return o
}

// Submission is one request to materialise an execution.
type Submission struct {
	Batch     types.PayrollBatch
	Netting   types.NettingAnalysis
	Mode      Mode
	Candidate *types.SimulationCandidate
}

// CancelResult reports the outcome of Cancel. Failure is a value, not an error.
type CancelResult struct {
	Success bool    `json:"success"`
	Message string  `json:"message"`
	Record  *Record `json:"record,omitempty"`
	Err     error   `json:"-"`
}

// Manager owns every execution record it creates. Records live in two
// collections: pending (scheduled, not started) and history (everything else).
type Manager struct {
	opts Options

	mu        sync.RWMutex
	history   []*Record
	pending   []*Record
	running   map[string]chan struct{}
	listeners []Listener
	seq       uint64
	closed    bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewManager creates a Manager. Call Close to stop in-flight drivers.
func NewManager(opts Options) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		opts:    opts.withDefaults(),
		running: make(map[string]chan struct{}),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Submit validates the submission and creates a record according to its mode.
// Immediate records start driving their steps in the background.
func (m *Manager) Submit(sub Submission) (Record, error) {
	if err := sub.Batch.Validate(); err != nil {
		return Record{}, err
	}
	if err := sub.Netting.Validate(); err != nil {
		return Record{}, err
	}
	if sub.Candidate != nil {
		if err := sub.Candidate.Validate(); err != nil {
			return Record{}, err
		}
	}
	now := m.opts.Now()
	rec := &Record{
		ID:        m.opts.NewID(),
		Mode:      sub.Mode,
		CreatedAt: now,
		Summary:   newSummary(sub.Batch, sub.Netting),
	}
	if c := sub.Candidate; c != nil {
		rec.CandidateID = c.ID
		offset := c.BlockOffset
		rec.BlockOffset = &offset
	}

	switch sub.Mode {
	case ModeSimulation:
		preview := buildPreview(sub.Batch, sub.Netting, m.opts.SuccessProbability)
		rec.Status = StatusSimulationComplete
		rec.Preview = &preview
		rec.CompletedAt = &now
	case ModeScheduled:
		at := now.Add(m.opts.ScheduleHorizon)
		rec.Status = StatusScheduled
		rec.ScheduledFor = &at
		rec.ScheduleReason = fmt.Sprintf("deferred %s to target an estimated gas price improvement window", m.opts.ScheduleHorizon)
	case ModeImmediate:
		rec.Status = StatusExecuting
		rec.StartedAt = &now
		rec.Steps = newSteps(now)
	default:
		return Record{}, fmt.Errorf("%w: unknown execution mode %q", types.ErrInvalidInput, sub.Mode)
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return Record{}, ErrClosed
	}
	m.seq++
	rec.seq = m.seq
	if rec.Mode == ModeScheduled {
		m.pending = append(m.pending, rec)
	} else {
		m.history = append(m.history, rec)
	}
	snapshot := rec.clone()
	m.mu.Unlock()

	logger.Infof("[execution] %s created mode=%s status=%s employees=%d total=%s",
		snapshot.ID, snapshot.Mode, snapshot.Status, snapshot.Summary.EmployeeCount, snapshot.Summary.TotalAmount)
	m.notify(Event{ExecutionID: snapshot.ID, To: snapshot.Status, Step: -1, At: now})
	if snapshot.Mode == ModeImmediate {
		m.start(snapshot.ID)
	}
	return snapshot, nil
}

// start spawns the driver goroutine for id, one per execution.
func (m *Manager) start(id string) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		m.stop(id, "manager closed before the driver started")
		return
	}
	if _, ok := m.running[id]; ok {
		m.mu.Unlock()
		return
	}
	done := make(chan struct{})
	m.running[id] = done
	m.wg.Add(1)
	m.mu.Unlock()
	go m.drive(id, done)
}

func (m *Manager) drive(id string, done chan struct{}) {
	defer m.wg.Done()
	defer func() {
		m.mu.Lock()
		delete(m.running, id)
		m.mu.Unlock()
		close(done)
	}()
	names := append([]string(nil), StepNames...)
	err := m.opts.Driver.Drive(m.ctx, names, func(idx int) { m.completeStep(id, idx) })
	switch {
	case err != nil && errors.Is(err, context.Canceled) && m.ctx.Err() != nil:
		m.stop(id, "manager closed while executing")
	case err != nil:
		m.stop(id, fmt.Sprintf("driver failed: %v", err))
	default:
		m.stop(id, "driver returned before the last step completed")
	}
}

// stop moves a record that is still executing to StatusStopped. Records that
// already reached a terminal state are left alone.
func (m *Manager) stop(id, reason string) {
	now := m.opts.Now()
	m.mu.Lock()
	rec := m.findLocked(m.history, id)
	if rec == nil || rec.Status != StatusExecuting {
		m.mu.Unlock()
		return
	}
	stopped := now
	rec.Status = StatusStopped
	rec.StoppedAt = &stopped
	rec.StopReason = reason
	step := rec.CurrentStep()
	if step >= 0 {
		rec.Steps[step].Status = StepStopped
	}
	m.mu.Unlock()

	logger.Warnf("[execution] %s stopped at step %d: %s", id, step, reason)
	m.notify(Event{ExecutionID: id, From: StatusExecuting, To: StatusStopped, Step: -1, Reason: reason, At: now})
}

// completeStep marks step idx done. Reports for any step other than the
// current one are dropped so steps only ever complete in order.
func (m *Manager) completeStep(id string, idx int) {
	now := m.opts.Now()
	var events []Event

	m.mu.Lock()
	rec := m.findLocked(m.history, id)
	if rec == nil || rec.Status != StatusExecuting {
		m.mu.Unlock()
		return
	}
	current := rec.CurrentStep()
	if idx != current {
		m.mu.Unlock()
		logger.Warnf("[execution] %s ignored out-of-order step %d (current=%d)", id, idx, current)
		return
	}
	done := now
	step := &rec.Steps[idx]
	step.Status = StepCompleted
	step.CompletedAt = &done
	events = append(events, Event{ExecutionID: id, From: rec.Status, To: rec.Status, Step: idx, StepName: step.Name, StepStatus: StepCompleted, At: now})
	if next := idx + 1; next < len(rec.Steps) {
		started := now
		rec.Steps[next].Status = StepProcessing
		rec.Steps[next].StartedAt = &started
		events = append(events, Event{ExecutionID: id, From: rec.Status, To: rec.Status, Step: next, StepName: rec.Steps[next].Name, StepStatus: StepProcessing, At: now})
	} else {
		rec.Status = StatusCompleted
		rec.CompletedAt = &done
		events = append(events, Event{ExecutionID: id, From: StatusExecuting, To: StatusCompleted, Step: -1, At: now})
	}
	m.mu.Unlock()

	logger.Debugf("[execution] %s step %d/%d %s completed", id, idx+1, len(StepNames), StepNames[idx])
	if events[len(events)-1].To == StatusCompleted {
		logger.Infof("[execution] %s completed", id)
	}
	for _, evt := range events {
		m.notify(evt)
	}
}

// Status returns the record from history or the pending queue.
func (m *Manager) Status(id string) (Record, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if rec := m.findLocked(m.history, id); rec != nil {
		return rec.clone(), true
	}
	if rec := m.findLocked(m.pending, id); rec != nil {
		return rec.clone(), true
	}
	return Record{}, false
}

// History returns up to HistoryLimit of the most recently created records in creation order.
func (m *Manager) History() []Record {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return recentInCreationOrder(m.history, m.opts.HistoryLimit)
}

// Pending returns scheduled records that have not started, in creation order.
func (m *Manager) Pending() []Record {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return recentInCreationOrder(m.pending, 0)
}

func recentInCreationOrder(src []*Record, limit int) []Record {
	sorted := make([]*Record, len(src))
	copy(sorted, src)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].seq < sorted[j].seq })
	if limit > 0 && len(sorted) > limit {
		sorted = sorted[len(sorted)-limit:]
	}
	out := make([]Record, 0, len(sorted))
	for _, rec := range sorted {
		out = append(out, rec.clone())
	}
	return out
}

// Cancel moves a scheduled, not yet started record to history as cancelled.
// Any other id yields a failed result; it is safe to call speculatively.
func (m *Manager) Cancel(id string) CancelResult {
	now := m.opts.Now()
	m.mu.Lock()
	idx := -1
	for i, rec := range m.pending {
		if rec.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		rec := m.findLocked(m.history, id)
		m.mu.Unlock()
		if rec != nil && rec.Status == StatusExecuting {
			return CancelResult{
				Message: fmt.Sprintf("execution %s is already executing; in-progress executions cannot be cancelled", id),
				Err:     types.ErrInvalidTransition,
			}
		}
		return CancelResult{
			Message: fmt.Sprintf("execution %s not found or already completed", id),
			Err:     types.ErrNotFound,
		}
	}
	rec := m.pending[idx]
	m.pending = append(m.pending[:idx], m.pending[idx+1:]...)
	cancelled := now
	rec.Status = StatusCancelled
	rec.CancelledAt = &cancelled
	m.history = append(m.history, rec)
	snapshot := rec.clone()
	m.mu.Unlock()

	logger.Infof("[execution] %s cancelled", id)
	m.notify(Event{ExecutionID: id, From: StatusScheduled, To: StatusCancelled, Step: -1, At: now})
	return CancelResult{
		Success: true,
		Message: fmt.Sprintf("execution %s cancelled", id),
		Record:  &snapshot,
	}
}

// PromoteDue starts every scheduled record whose target time is at or before now.
func (m *Manager) PromoteDue(now time.Time) []Record {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	var promoted []Record
	kept := m.pending[:0]
	for _, rec := range m.pending {
		if rec.ScheduledFor == nil || rec.ScheduledFor.After(now) {
			kept = append(kept, rec)
			continue
		}
		started := now
		rec.Status = StatusExecuting
		rec.StartedAt = &started
		rec.Steps = newSteps(now)
		m.history = append(m.history, rec)
		promoted = append(promoted, rec.clone())
	}
	for i := len(kept); i < len(m.pending); i++ {
		m.pending[i] = nil
	}
	m.pending = kept
	m.mu.Unlock()

	for _, rec := range promoted {
		logger.Infof("[execution] %s promoted from schedule", rec.ID)
		m.notify(Event{ExecutionID: rec.ID, From: StatusScheduled, To: StatusExecuting, Step: -1, At: now})
		m.start(rec.ID)
	}
	return promoted
}

// Done returns a channel closed when the driver for id finishes. ok is false
// when nothing is driving id.
func (m *Manager) Done(id string) (<-chan struct{}, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ch, ok := m.running[id]
	return ch, ok
}

// Close stops every driver and waits for them. Later submissions fail with ErrClosed.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	m.mu.Unlock()
	m.cancel()
	m.wg.Wait()
}

func (m *Manager) findLocked(list []*Record, id string) *Record {
	for _, rec := range list {
		if rec.ID == id {
			return rec
		}
	}
	return nil
}
