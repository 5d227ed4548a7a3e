package services

import (
	"context"
	"errors"
	"math"
	"strings"

	"github.com/wfunc/hideseek/geo"
	"github.com/wfunc/hideseek/logger"
	"github.com/wfunc/hideseek/models"
	"github.com/wfunc/hideseek/persistence"
	"github.com/wfunc/hideseek/settings"
	"github.com/wfunc/hideseek/state"
)

// maxPlayerNameLength is the size of the players.name column.
const (
	maxGameNameLength   = 64
	maxPlayerNameLength = 40
)

// GameView is a game together with its effective settings and roster.
type GameView struct {
	Game     models.Game       `json:"game"`
	Settings settings.Resolved `json:"settings"`
	Players  []models.Player   `json:"players"`
}

// UpdateGameRequest carries the editable parts of a game. Nil fields are left alone.
type UpdateGameRequest struct {
	Name                       *string       `json:"name"`
	Zone                       *models.Zone  `json:"zone"`
	HidingDurationSeconds      *int          `json:"hidingDurationSeconds"`
	PowerupCastingSeconds      *int          `json:"powerupCastingSeconds"`
	ThermometerThresholdMeters *float64      `json:"thermometerThresholdMeters"`
	Phase                      *models.Phase `json:"phase"`
}

func (s *Service) CreateGame(ctx context.Context, name *string) (models.Game, error) {
	game := models.Game{
		ID:        s.newID(),
		Phase:     models.PhaseLobby,
		CreatedAt: s.now(),
	}
	if name != nil {
		trimmed, err := cleanName(*name, "game name", maxGameNameLength)
		if err != nil {
			return models.Game{}, err
		}
		game.Name = &trimmed
	}
	if err := s.store.CreateGame(ctx, game); err != nil {
		return models.Game{}, storageErr("create game", err)
	}
	logger.Log.Infow("game created", "game", game.ID)
	return game, nil
}

func (s *Service) GetGame(ctx context.Context, gameID string) (GameView, error) {
	game, err := s.loadGame(ctx, gameID)
	if err != nil {
		return GameView{}, err
	}
	players, err := s.store.ListPlayers(ctx, gameID)
	if err != nil {
		return GameView{}, storageErr("list players", err)
	}
	return GameView{Game: game, Settings: settings.ForGame(game), Players: players}, nil
}

// UpdateGame applies the name, zone and settings edits, then the phase change, and returns
// the resulting view. A completed game only accepts a new name.
func (s *Service) UpdateGame(ctx context.Context, gameID string, req UpdateGameRequest) (GameView, error) {
	upd, err := validateUpdate(req)
	if err != nil {
		return GameView{}, err
	}
	if upd.Empty() && req.Phase == nil {
		return GameView{}, validationf("nothing to update")
	}

	game, err := s.loadGame(ctx, gameID)
	if err != nil {
		return GameView{}, err
	}

	rulesChanged := upd.Zone != nil || upd.HidingDurationSeconds != nil ||
		upd.PowerupCastingSeconds != nil || upd.ThermometerThresholdMeters != nil
	if rulesChanged || req.Phase != nil {
		if err := requirePhase(game, state.ActionEditRules); err != nil {
			return GameView{}, err
		}
	}

	if !upd.Empty() {
		if err := s.store.UpdateGame(ctx, gameID, upd); err != nil {
			return GameView{}, storageErr("update game", err)
		}
	}

	if req.Phase != nil {
		if err := s.advancePhase(ctx, gameID, *req.Phase); err != nil {
			return GameView{}, err
		}
	}
	return s.GetGame(ctx, gameID)
}

func validateUpdate(req UpdateGameRequest) (persistence.GameUpdate, error) {
	upd := persistence.GameUpdate{
		Zone:                       req.Zone,
		HidingDurationSeconds:      req.HidingDurationSeconds,
		PowerupCastingSeconds:      req.PowerupCastingSeconds,
		ThermometerThresholdMeters: req.ThermometerThresholdMeters,
	}
	if req.Name != nil {
		name, err := cleanName(*req.Name, "game name", maxGameNameLength)
		if err != nil {
			return upd, err
		}
		upd.Name = &name
	}
	if z := req.Zone; z != nil {
		if !geo.ValidPoint(z.Center()) {
			return upd, validationf("zone center is not a valid coordinate")
		}
		if math.IsNaN(z.RadiusMeters) || math.IsInf(z.RadiusMeters, 0) || z.RadiusMeters <= 0 {
			return upd, validationf("zone radius must be a positive number of meters")
		}
	}
	if v := req.HidingDurationSeconds; v != nil && !settings.HidingDuration.Contains(*v) {
		return upd, validationf("hidingDurationSeconds must be within [%d, %d]",
			settings.HidingDuration.Min, settings.HidingDuration.Max)
	}
	if v := req.PowerupCastingSeconds; v != nil && !settings.PowerupCasting.Contains(*v) {
		return upd, validationf("powerupCastingSeconds must be within [%d, %d]",
			settings.PowerupCasting.Min, settings.PowerupCasting.Max)
	}
	if v := req.ThermometerThresholdMeters; v != nil && !settings.ThermometerThreshold.Contains(*v) {
		return upd, validationf("thermometerThresholdMeters must be within [%g, %g]",
			settings.ThermometerThreshold.Min, settings.ThermometerThreshold.Max)
	}
	if p := req.Phase; p != nil {
		if !p.Valid() {
			return upd, validationf("unknown phase %q", *p)
		}
		if *p == models.PhaseCompleted {
			return upd, validationf("a game completes only when a seeker wins")
		}
	}
	return upd, nil
}

// advancePhase checks the requested transition against the phase machine and commits it with a
// write conditional on the phase the check saw.
func (s *Service) advancePhase(ctx context.Context, gameID string, to models.Phase) error {
	game, err := s.loadGame(ctx, gameID)
	if err != nil {
		return err
	}
	count, err := s.store.CountPlayers(ctx, gameID, false)
	if err != nil {
		return storageErr("count players", err)
	}

	if !state.IsForward(game.Phase, to) {
		return preconditionf("phase cannot move back from %s to %s", game.Phase, to)
	}
	if err := s.phases.Check(state.Snapshot{Game: game, PlayerCount: int(count)}, to); err != nil {
		if errors.Is(err, state.ErrTransitionNotAllowed) {
			return preconditionf("cannot move from %s to %s", game.Phase, to)
		}
		return preconditionf("%s", err.Error())
	}

	from := []models.Phase{game.Phase}
	if to == models.PhaseSeeking {
		from = []models.Phase{models.PhaseHiding, models.PhaseSeeking}
	}
	applied, err := s.store.AdvancePhase(ctx, gameID, from, to, s.now())
	if err != nil {
		return storageErr("advance phase", err)
	}
	if !applied {
		return preconditionf("game left %s before the change could be applied", game.Phase)
	}

	if game.Phase != to {
		s.monitor.PhaseTransition(to)
		logger.Log.Infow("phase changed", "game", gameID, "from", game.Phase, "to", to)
	}
	return nil
}

func cleanName(name, field string, limit int) (string, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return "", validationf("%s must not be empty", field)
	}
	if len([]rune(trimmed)) > limit {
		return "", validationf("%s must be at most %d characters", field, limit)
	}
	return trimmed, nil
}
