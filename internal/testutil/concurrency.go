package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/specialistvlad/graphcraft/internal/registry"
)

// SleeperModule is a shared, self-contained module for concurrency tests.
// Its "test.sleep" node waits, records when it ran and returns its id.
type SleeperModule struct {
	mu             sync.Mutex
	executionTimes map[string]*ExecutionRecord
	sleepDuration  time.Duration
	completionChan chan<- string
}

// NewSleeperModule creates a new sleeper module. completionChan, when not
// nil, receives the id of every node as it finishes.
func NewSleeperModule(completionChan chan<- string, sleep time.Duration) *SleeperModule {
	return &SleeperModule{
		executionTimes: make(map[string]*ExecutionRecord),
		sleepDuration:  sleep,
		completionChan: completionChan,
	}
}

// Register registers "test.sleep" taking an id and, in a second overload,
// an id plus a value it waits for.
func (m *SleeperModule) Register(b *registry.Builder) error {
	if err := b.Register("test.sleep", "(string) -> string", registry.Func1(m.sleep), registry.Impure()); err != nil {
		return err
	}
	return b.Register("test.sleep", "(string, string) -> string",
		registry.Func2(func(ctx context.Context, id, _ string) (string, error) { return m.sleep(ctx, id) }),
		registry.Impure())
}

func (m *SleeperModule) sleep(ctx context.Context, id string) (string, error) {
	start := time.Now()
	select {
	case <-time.After(m.sleepDuration):
	case <-ctx.Done():
		return "", ctx.Err()
	}
	end := time.Now()

	m.mu.Lock()
	m.executionTimes[id] = &ExecutionRecord{Start: start, End: end}
	m.mu.Unlock()

	if m.completionChan != nil {
		m.completionChan <- id
	}
	return id, nil
}

// Record returns the execution record of id.
func (m *SleeperModule) Record(id string) (*ExecutionRecord, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.executionTimes[id]
	return r, ok
}
