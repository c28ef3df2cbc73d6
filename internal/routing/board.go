package routing

import (
	"log/slog"
	"sync"

	"linetest/internal/eventclient"
)

// StageBoard keeps the per-stage status of the serial held in a Subject.
// Events for any other serial leave it untouched.
type StageBoard struct {
	subject  *Subject
	logger   *slog.Logger
	onChange func(serial string, snap map[Stage]Status)

	// emitMu is taken before mu and held through onChange so snapshots
	// reach the callback in the order they were taken
	emitMu   sync.Mutex
	mu       sync.Mutex
	statuses map[Stage]Status

	beforeApply func() // test hook, runs after decode and before locking
}

func NewStageBoard(subject *Subject, logger *slog.Logger) *StageBoard {
	if logger == nil {
		logger = slog.Default()
	}
	b := &StageBoard{
		subject: subject,
		logger:  logger,
	}
	b.Reset()
	return b
}

// OnChange registers fn to receive the tracked serial and a snapshot after
// each accepted event, Reset or Track. Call it before the board starts
// receiving messages. fn must not call back into the board.
func (b *StageBoard) OnChange(fn func(serial string, snap map[Stage]Status)) {
	b.onChange = fn
}

// Track switches the board to serial and resets every stage in one step, so
// an event for the previous serial can never land on the new board.
func (b *StageBoard) Track(serial string) {
	b.emitMu.Lock()
	defer b.emitMu.Unlock()

	b.mu.Lock()
	b.subject.Set(serial)
	b.resetLocked()
	current, snap := b.subject.Get(), b.snapshotLocked()
	b.mu.Unlock()

	b.changed(current, snap)
}

// Reset puts every stage back to pending.
func (b *StageBoard) Reset() {
	b.emitMu.Lock()
	defer b.emitMu.Unlock()

	b.mu.Lock()
	b.resetLocked()
	current, snap := b.subject.Get(), b.snapshotLocked()
	b.mu.Unlock()

	b.changed(current, snap)
}

// HandleStageEvent is an eventclient.Handler for pcba_event messages.
func (b *StageBoard) HandleStageEvent(msg eventclient.Message) {
	if msg.Type != eventclient.TypePCBAEvent {
		return
	}

	var ev StageEvent
	if err := msg.Decode(&ev); err != nil {
		b.logger.Warn("stage_event_decode_failed", "error", err)
		return
	}
	stage, err := ParseStage(ev.Stage)
	if err != nil {
		b.logger.Warn("stage_event_rejected", "serial", ev.Serial, "error", err)
		return
	}
	status, err := ParseStatus(ev.Status)
	if err != nil {
		b.logger.Warn("stage_event_rejected", "serial", ev.Serial, "error", err)
		return
	}

	if b.beforeApply != nil {
		b.beforeApply()
	}

	b.emitMu.Lock()
	defer b.emitMu.Unlock()

	// match and write under the same lock Track switches the serial under
	b.mu.Lock()
	if !b.subject.Matches(ev.Serial) {
		current := b.subject.Get()
		b.mu.Unlock()
		b.logger.Debug("stage_event_other_serial",
			"serial", ev.Serial,
			"subject", current,
		)
		return
	}
	b.statuses[stage] = status
	current, snap := b.subject.Get(), b.snapshotLocked()
	b.mu.Unlock()

	b.logger.Info("stage_updated",
		"serial", current,
		"stage", string(stage),
		"status", string(status),
	)
	b.changed(current, snap)
}

// Status returns the current status of one stage.
func (b *StageBoard) Status(stage Stage) Status {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.statuses[stage]
}

// Snapshot returns a copy of all stage statuses.
func (b *StageBoard) Snapshot() map[Stage]Status {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.snapshotLocked()
}

// Verdict folds the board into one status, see VerdictOf.
func (b *StageBoard) Verdict() Status {
	b.mu.Lock()
	defer b.mu.Unlock()
	return VerdictOf(b.statuses)
}

// VerdictOf folds a snapshot into one status: fail if any stage failed, pass
// once every stage passed, testing while anything runs, pending otherwise.
func VerdictOf(snap map[Stage]Status) Status {
	passed := 0
	testing := false
	for _, s := range Stages {
		switch snap[s] {
		case StatusFail:
			return StatusFail
		case StatusPass:
			passed++
		case StatusTesting:
			testing = true
		}
	}
	switch {
	case passed == len(Stages):
		return StatusPass
	case testing || passed > 0:
		return StatusTesting
	default:
		return StatusPending
	}
}

func (b *StageBoard) resetLocked() {
	b.statuses = make(map[Stage]Status, len(Stages))
	for _, s := range Stages {
		b.statuses[s] = StatusPending
	}
}

func (b *StageBoard) snapshotLocked() map[Stage]Status {
	out := make(map[Stage]Status, len(b.statuses))
	for k, v := range b.statuses {
		out[k] = v
	}
	return out
}

// changed runs with emitMu held
func (b *StageBoard) changed(serial string, snap map[Stage]Status) {
	if b.onChange != nil {
		b.onChange(serial, snap)
	}
}
