package execution

import (
	"time"

	"payguard/internal/logger"
)

// Event describes one state change. Step is -1 for record-level transitions.
type Event struct {
	ExecutionID string     `json:"execution_id"`
	From        Status     `json:"from,omitempty"`
	To          Status     `json:"to"`
	Step        int        `json:"step"`
	StepName    string     `json:"step_name,omitempty"`
	StepStatus  StepStatus `json:"step_status,omitempty"`
	Reason      string     `json:"reason,omitempty"`
	At          time.Time  `json:"at"`
}

// Listener receives events synchronously on the goroutine that caused them.
type Listener func(Event)

// AddListener registers fn for every future event.
func (m *Manager) AddListener(fn Listener) {
	if fn == nil {
		return
	}
	m.mu.Lock()
	m.listeners = append(m.listeners, fn)
	m.mu.Unlock()
}

func (m *Manager) notify(evt Event) {
	m.mu.RLock()
	listeners := append([]Listener(nil), m.listeners...)
	m.mu.RUnlock()
	for _, fn := range listeners {
		safeNotify(fn, evt)
	}
}

func safeNotify(fn Listener, evt Event) {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("[execution] listener panic for %s: %v", evt.ExecutionID, r)
		}
	}()
	fn(evt)
}
