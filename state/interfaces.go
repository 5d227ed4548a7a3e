// state/interfaces.go
package state

import "github.com/wfunc/hideseek/models"

// Action is a player-facing operation whose legality depends on the game phase.
type Action string

const (
	ActionJoin        Action = "join"
	ActionRename      Action = "rename"
	ActionLeave       Action = "leave"
	ActionWithdraw    Action = "withdraw"
	ActionLockIn      Action = "lock_in"
	ActionSetLandmark Action = "set_landmark"
	ActionSubmit      Action = "submit"
	ActionCastHint    Action = "cast_hint"
	ActionPing        Action = "ping"
	ActionEditRules   Action = "edit_rules"
)

var inPlay = []models.Phase{models.PhaseHiding, models.PhaseSeeking}
var notCompleted = []models.Phase{models.PhaseLobby, models.PhaseHiding, models.PhaseSeeking}

var allowedPhases = map[Action][]models.Phase{
	ActionJoin:        {models.PhaseLobby},
	ActionRename:      {models.PhaseLobby},
	ActionLeave:       {models.PhaseLobby},
	ActionWithdraw:    inPlay,
	ActionLockIn:      {models.PhaseHiding},
	ActionSetLandmark: inPlay,
	ActionSubmit:      {models.PhaseSeeking},
	ActionCastHint:    notCompleted,
	ActionPing:        notCompleted,
	ActionEditRules:   notCompleted,
}

// Allows reports whether action may be performed while a game is in phase.
func Allows(phase models.Phase, action Action) bool {
	for _, p := range allowedPhases[action] {
		if p == phase {
			return true
		}
	}
	return false
}

// AllowedPhases lists the phases in which action is legal, for error messages.
func AllowedPhases(action Action) []models.Phase {
	return append([]models.Phase(nil), allowedPhases[action]...)
}
