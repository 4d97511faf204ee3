package assistant

import "sync"

// ExecutionContext is the mutable state of a single turn. The parallel adds
// of a multi-title addTask share it, so every access is locked.
type ExecutionContext struct {
	mu           sync.Mutex
	lastAffected string
	addCalls     int
}

// NewExecutionContext seeds the turn with the task a previous turn of the
// same session touched last. Pass "" for a stateless turn.
func NewExecutionContext(lastAffected string) *ExecutionContext {
	return &ExecutionContext{lastAffected: lastAffected}
}

func (c *ExecutionContext) LastAffectedTaskID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastAffected
}

func (c *ExecutionContext) SetLastAffected(id string) {
	if id == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastAffected = id
}

func (c *ExecutionContext) AddCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.addCalls
}

// claimAdd increments the add counter unless it already reached max.
func (c *ExecutionContext) claimAdd(max int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.addCalls >= max {
		return false
	}
	c.addCalls++
	return true
}
