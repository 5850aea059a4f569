// Package timer implements the workout stopwatch. The clock survives
// process restarts: every transition is persisted through a small
// storage port, and a running timer keeps counting while the process
// is away because elapsed time is recomputed from the start timestamp
// on load.
package timer

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

const defaultKey = "workout-timer"

// Store persists timer state between runs. Read reports whether the
// key existed. The client's SQLite kv area satisfies it, and tests use
// an in-memory map.
type Store interface {
	Read(key string) ([]byte, bool, error)
	Write(key string, value []byte) error
	Delete(key string) error
}

// state is the persisted form of the clock.
//
// While running, elapsed time is not stored: it is derived as
// floor((now - start - pausedOffset)/1000), so wall-clock time passing
// while the process is not loaded still counts. elapsedSeconds holds
// the frozen display value while paused or stopped.
type state struct {
	IsRunning          bool       `json:"is_running"`
	ElapsedSeconds     int        `json:"elapsed_seconds"`
	StartTimestamp     *time.Time `json:"start_timestamp,omitempty"`
	PausedOffsetMillis int64      `json:"paused_offset_millis"`
}

// State is the snapshot handed to observers and display code.
type State struct {
	Running        bool
	Started        bool
	ElapsedSeconds int
}

// Timer is a persistent stopwatch for one workout. Invalid transitions
// (pausing an idle timer, starting a running one) are silent no-ops, so
// repeated CLI invocations cannot corrupt the clock. Methods return an
// error only when persisting the new state fails.
type Timer struct {
	store Store
	key   string
	now   func() time.Time

	mu        sync.Mutex
	state     state
	observers []func(State)
}

// New loads the timer for the given workout id, or the shared default
// timer when id is empty. Missing or corrupt persisted state starts a
// fresh idle clock.
func New(store Store, workoutID string) *Timer {
	key := defaultKey
	if workoutID != "" {
		key = defaultKey + "-" + workoutID
	}

	t := &Timer{
		store: store,
		key:   key,
		now:   time.Now,
	}

	raw, ok, err := store.Read(key)
	if err != nil || !ok {
		return t
	}

	var st state
	if err := json.Unmarshal(raw, &st); err != nil {
		return t
	}
	if st.IsRunning && st.StartTimestamp == nil {
		// Running without a start moment is unrecoverable.
		return t
	}

	t.state = st
	return t
}

// OnChange registers fn to be called after every persisted transition.
func (t *Timer) OnChange(fn func(State)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.observers = append(t.observers, fn)
}

// Start begins a fresh run. A running timer is left untouched, so a
// second start cannot move the start timestamp.
func (t *Timer) Start() error {
	t.mu.Lock()
	if t.state.IsRunning {
		t.mu.Unlock()
		return nil
	}

	now := t.now()
	t.state = state{
		IsRunning:      true,
		StartTimestamp: &now,
	}
	return t.finishTransition()
}

// Pause freezes the clock at the current elapsed value. No-op unless
// running.
func (t *Timer) Pause() error {
	t.mu.Lock()
	if !t.state.IsRunning {
		t.mu.Unlock()
		return nil
	}

	t.state.ElapsedSeconds = t.runningElapsed()
	t.state.IsRunning = false
	return t.finishTransition()
}

// Resume continues a paused or stopped timer from its frozen value.
// No-op while running or before the first start.
func (t *Timer) Resume() error {
	t.mu.Lock()
	if t.state.IsRunning || t.state.StartTimestamp == nil {
		t.mu.Unlock()
		return nil
	}

	// Rebuild the paused offset so the running formula yields exactly
	// the frozen value at this instant.
	sinceStart := t.now().Sub(*t.state.StartTimestamp).Milliseconds()
	offset := sinceStart - int64(t.state.ElapsedSeconds)*1000
	if offset < 0 {
		offset = 0
	}
	t.state.PausedOffsetMillis = offset
	t.state.IsRunning = true
	return t.finishTransition()
}

// Stop freezes the clock like Pause but works from any started state.
// The start timestamp is kept, so Resume can pick the session back up.
func (t *Timer) Stop() error {
	t.mu.Lock()
	if t.state.StartTimestamp == nil {
		t.mu.Unlock()
		return nil
	}

	if t.state.IsRunning {
		t.state.ElapsedSeconds = t.runningElapsed()
		t.state.IsRunning = false
	}
	return t.finishTransition()
}

// Reset returns the timer to the idle state and removes the persisted
// entry.
func (t *Timer) Reset() error {
	t.mu.Lock()
	t.state = state{}
	err := t.store.Delete(t.key)
	snap := t.snapshot()
	t.mu.Unlock()

	t.notify(snap)
	if err != nil {
		return fmt.Errorf("delete timer state: %w", err)
	}
	return nil
}

// Elapsed returns whole seconds on the clock: live while running, the
// frozen value otherwise.
func (t *Timer) Elapsed() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state.IsRunning {
		return t.runningElapsed()
	}
	return t.state.ElapsedSeconds
}

// FormattedTime renders the clock as MM:SS, or HH:MM:SS past one hour.
func (t *Timer) FormattedTime() string {
	return FormatSeconds(t.Elapsed())
}

// State returns the current snapshot.
func (t *Timer) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshot()
}

// FormatSeconds renders a second count as zero-padded MM:SS, switching
// to HH:MM:SS from one hour up.
func FormatSeconds(total int) string {
	if total < 0 {
		total = 0
	}

	hours := total / 3600
	minutes := total % 3600 / 60
	seconds := total % 60

	if hours > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, seconds)
	}
	return fmt.Sprintf("%02d:%02d", minutes, seconds)
}

// finishTransition persists the mutated state, releases the lock and
// notifies observers. Callers must hold t.mu.
func (t *Timer) finishTransition() error {
	err := t.persist()
	snap := t.snapshot()
	t.mu.Unlock()

	t.notify(snap)
	return err
}

// runningElapsed computes live elapsed seconds. Callers must hold t.mu
// and the timer must have a start timestamp.
func (t *Timer) runningElapsed() int {
	activeMillis := t.now().Sub(*t.state.StartTimestamp).Milliseconds() - t.state.PausedOffsetMillis
	if activeMillis < 0 {
		// Clock went backwards, keep what is already shown.
		return t.state.ElapsedSeconds
	}
	return int(activeMillis / 1000)
}

func (t *Timer) persist() error {
	raw, err := json.Marshal(t.state)
	if err != nil {
		return fmt.Errorf("encode timer state: %w", err)
	}
	if err := t.store.Write(t.key, raw); err != nil {
		return fmt.Errorf("persist timer state: %w", err)
	}
	return nil
}

func (t *Timer) snapshot() State {
	elapsed := t.state.ElapsedSeconds
	if t.state.IsRunning {
		elapsed = t.runningElapsed()
	}
	return State{
		Running:        t.state.IsRunning,
		Started:        t.state.StartTimestamp != nil,
		ElapsedSeconds: elapsed,
	}
}

func (t *Timer) notify(snap State) {
	t.mu.Lock()
	observers := make([]func(State), len(t.observers))
	copy(observers, t.observers)
	t.mu.Unlock()

	for _, fn := range observers {
		fn(snap)
	}
}
