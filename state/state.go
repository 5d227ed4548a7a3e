package state

import (
	"errors"
	"sync"

	"github.com/wfunc/hideseek/models"
)

// 状态机接口
type StateMachine interface {
	AddTransition(from, to models.Phase, guard Guard)
	Check(snapshot Snapshot, to models.Phase) error
}

// MinPlayers is the smallest game that may leave the lobby.
const MinPlayers = 2

var (
	// ErrTransitionNotAllowed is returned when no transition from the current phase to the target exists.
	ErrTransitionNotAllowed = errors.New("phase transition not allowed")
	ErrZoneNotSet           = errors.New("zone must be set before hiding starts")
	ErrNotEnoughPlayers     = errors.New("at least 2 players are required to start hiding")
	ErrNoWinner             = errors.New("a game completes only when a winner is committed")
)

// Snapshot is the game state a guard decides on.
type Snapshot struct {
	Game        models.Game
	PlayerCount int
}

// Guard vetoes a transition by returning an error.
type Guard func(Snapshot) error

// PhaseMachine is a table of allowed phase transitions with optional guards.
type PhaseMachine struct {
	transitions map[models.Phase]map[models.Phase]Guard // fromPhase -> toPhase -> guard
	mutex       sync.RWMutex
}

func NewBaseStateMachine() *PhaseMachine {
	return &PhaseMachine{
		transitions: make(map[models.Phase]map[models.Phase]Guard),
	}
}

// NewPhaseMachine returns the game lifecycle lobby -> hiding -> seeking -> completed.
// seeking -> seeking is registered so that repeated "start seeking" calls are accepted as no-ops.
func NewPhaseMachine() *PhaseMachine {
	sm := NewBaseStateMachine()
	sm.AddTransition(models.PhaseLobby, models.PhaseHiding, canStartHiding)
	sm.AddTransition(models.PhaseHiding, models.PhaseSeeking, nil)
	sm.AddTransition(models.PhaseSeeking, models.PhaseSeeking, nil)
	sm.AddTransition(models.PhaseSeeking, models.PhaseCompleted, hasWinner)
	return sm
}

func (sm *PhaseMachine) AddTransition(from, to models.Phase, guard Guard) {
	sm.mutex.Lock()
	defer sm.mutex.Unlock()

	if _, exists := sm.transitions[from]; !exists {
		sm.transitions[from] = make(map[models.Phase]Guard)
	}
	sm.transitions[from][to] = guard
}

// Check validates moving snapshot.Game to phase to. It never mutates anything.
func (sm *PhaseMachine) Check(snapshot Snapshot, to models.Phase) error {
	sm.mutex.RLock()
	defer sm.mutex.RUnlock()

	targets, exists := sm.transitions[snapshot.Game.Phase]
	if !exists {
		return ErrTransitionNotAllowed
	}
	guard, exists := targets[to]
	if !exists {
		return ErrTransitionNotAllowed
	}
	if guard != nil {
		return guard(snapshot)
	}
	return nil
}

// IsForward reports whether to is the same as or later than from.
func IsForward(from, to models.Phase) bool {
	return order(to) >= order(from)
}

func order(p models.Phase) int {
	switch p {
	case models.PhaseLobby:
		return 0
	case models.PhaseHiding:
		return 1
	case models.PhaseSeeking:
		return 2
	case models.PhaseCompleted:
		return 3
	}
	return -1
}

func canStartHiding(s Snapshot) error {
	if s.Game.Zone == nil {
		return ErrZoneNotSet
	}
	if s.PlayerCount < MinPlayers {
		return ErrNotEnoughPlayers
	}
	return nil
}

func hasWinner(s Snapshot) error {
	if s.Game.WinnerID == nil {
		return ErrNoWinner
	}
	return nil
}
