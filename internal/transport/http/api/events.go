package apihttp

import (
	"net/http"
	"sync"
	"time"

	"payguard/internal/execution"
	"payguard/internal/logger"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	eventBuffer    = 64
	eventWriteWait = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// eventHub fans execution events out to websocket subscribers. A subscriber
// that falls behind by more than eventBuffer events loses the overflow.
type eventHub struct {
	mu     sync.Mutex
	subs   map[chan execution.Event]struct{}
	closed bool
	done   chan struct{}
}

func newEventHub() *eventHub {
	return &eventHub{subs: make(map[chan execution.Event]struct{}), done: make(chan struct{})}
}

func (h *eventHub) publish(evt execution.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- evt:
		default:
			logger.Warnf("HTTP event subscriber lagging, dropped %s event", evt.ExecutionID)
		}
	}
}

func (h *eventHub) subscribe() (chan execution.Event, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, false
	}
	ch := make(chan execution.Event, eventBuffer)
	h.subs[ch] = struct{}{}
	return ch, true
}

func (h *eventHub) unsubscribe(ch chan execution.Event) {
	h.mu.Lock()
	delete(h.subs, ch)
	h.mu.Unlock()
}

func (h *eventHub) close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	close(h.done)
}

func (h *eventHub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// handleEvents streams every execution event as a JSON text frame.
func (r *Router) handleEvents(c *gin.Context) {
	ch, ok := r.events.subscribe()
	if !ok {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "server shutting down"})
		return
	}
	defer r.events.unsubscribe(ch)

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warnf("HTTP websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-gone:
			return
		case <-r.events.done:
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutdown"), time.Now().Add(eventWriteWait))
			return
		case evt := <-ch:
			_ = conn.SetWriteDeadline(time.Now().Add(eventWriteWait))
			if err := conn.WriteJSON(evt); err != nil {
				logger.Debugf("HTTP websocket write failed: %v", err)
				return
			}
		}
	}
}
