package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/parkside-robotics/intent.report/internal/intent"
	"github.com/parkside-robotics/intent.report/internal/monitoring"
)

const (
	EventTypeJointState = "joint_state"
	EventTypeStatus     = "status"
	EventTypeUnknown    = "unknown"
)

// ClassifyLine inspects a line from the tracker link and returns a simple
// event type token. The classification is intentionally conservative.
func ClassifyLine(line string) string {
	if strings.Contains(line, `"agents"`) {
		return EventTypeJointState
	}
	if strings.Contains(line, `"status"`) {
		return EventTypeStatus
	}
	return EventTypeUnknown
}

// ParseJointState decodes one observation line into a joint state. The
// tracker emits one JSON object per line with a timestamp and the full
// agent set; an empty agent list is a valid (empty) scene.
func ParseJointState(line string) (intent.JointState, error) {
	var js intent.JointState
	if err := json.Unmarshal([]byte(line), &js); err != nil {
		return intent.JointState{}, fmt.Errorf("failed to parse joint state: %w", err)
	}

	seen := make(map[string]bool, len(js.Agents))
	for i := range js.Agents {
		a := &js.Agents[i]
		if a.ID == "" {
			return intent.JointState{}, fmt.Errorf("agent %d missing id", i)
		}
		if seen[a.ID] {
			return intent.JointState{}, fmt.Errorf("duplicate agent id %q", a.ID)
		}
		seen[a.ID] = true
		if a.Role == "" {
			a.Role = intent.RoleOther
		}
	}
	return js, nil
}

// Collector holds the most recent joint state decoded from the feed.
// Observations carry overwrite semantics: the latest snapshot wins and no
// history is kept here.
type Collector struct {
	mu        sync.Mutex
	latest    intent.JointState
	hasLatest bool

	// ParseErrors counts lines that looked like joint states but failed
	// to decode. Exposed for the status endpoint.
	parseErrors uint64
}

// NewCollector creates an empty Collector.
func NewCollector() *Collector {
	return &Collector{}
}

// Handle classifies and processes one line from the feed.
func (c *Collector) Handle(line string) {
	switch ClassifyLine(line) {
	case EventTypeJointState:
		js, err := ParseJointState(line)
		if err != nil {
			c.mu.Lock()
			c.parseErrors++
			c.mu.Unlock()
			monitoring.Logf("dropping malformed joint state: %v", err)
			return
		}
		c.mu.Lock()
		c.latest = js
		c.hasLatest = true
		c.mu.Unlock()

	case EventTypeStatus:
		monitoring.Logf("tracker status: %s", line)

	default:
		monitoring.Logf("unknown feed line: %s", line)
	}
}

// Consume processes lines from a subscription channel until the channel
// closes or the context is cancelled.
func (c *Collector) Consume(ctx context.Context, ch <-chan string) {
	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-ch:
			if !ok {
				return
			}
			c.Handle(line)
		}
	}
}

// Latest returns the most recent joint state, if any has arrived.
func (c *Collector) Latest() (intent.JointState, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.latest, c.hasLatest
}

// ParseErrors returns the number of malformed joint-state lines seen.
func (c *Collector) ParseErrors() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.parseErrors
}
