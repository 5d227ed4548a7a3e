package services

import (
	"context"
	"errors"
	"strings"

	"github.com/wfunc/hideseek/geo"
	"github.com/wfunc/hideseek/logger"
	"github.com/wfunc/hideseek/models"
	"github.com/wfunc/hideseek/persistence"
	"github.com/wfunc/hideseek/state"
)

// WithdrawResult reports the withdrawn player and, if the withdrawal let a seeker win, the winner.
type WithdrawResult struct {
	Player   models.Player `json:"player"`
	WinnerID *string       `json:"winnerId,omitempty"`
}

func (s *Service) JoinGame(ctx context.Context, gameID, name string) (models.Player, error) {
	clean, err := cleanName(name, "player name", maxPlayerNameLength)
	if err != nil {
		return models.Player{}, err
	}
	game, err := s.loadGame(ctx, gameID)
	if err != nil {
		return models.Player{}, err
	}
	if err := requirePhase(game, state.ActionJoin); err != nil {
		return models.Player{}, err
	}

	player := models.Player{
		ID:        s.newID(),
		GameID:    gameID,
		Name:      clean,
		CreatedAt: s.now(),
	}
	if err := s.store.CreatePlayer(ctx, player); err != nil {
		return models.Player{}, storageErr("create player", err)
	}
	logger.Log.Infow("player joined", "game", gameID, "player", player.ID)
	return player, nil
}

func (s *Service) RenamePlayer(ctx context.Context, gameID, playerID, callerID, name string) (models.Player, error) {
	if err := requireSelf(callerID, playerID); err != nil {
		return models.Player{}, err
	}
	clean, err := cleanName(name, "player name", maxPlayerNameLength)
	if err != nil {
		return models.Player{}, err
	}
	game, err := s.loadGame(ctx, gameID)
	if err != nil {
		return models.Player{}, err
	}
	if err := requirePhase(game, state.ActionRename); err != nil {
		return models.Player{}, err
	}
	if err := s.store.RenamePlayer(ctx, gameID, playerID, clean); err != nil {
		return models.Player{}, lookupErr("player", err)
	}
	return s.loadPlayer(ctx, gameID, playerID, "player")
}

// LeaveGame removes the caller from a game that has not started yet.
func (s *Service) LeaveGame(ctx context.Context, gameID, playerID, callerID string) error {
	if err := requireSelf(callerID, playerID); err != nil {
		return err
	}
	game, err := s.loadGame(ctx, gameID)
	if err != nil {
		return err
	}
	if err := requirePhase(game, state.ActionLeave); err != nil {
		return err
	}
	if err := s.store.DeletePlayer(ctx, gameID, playerID); err != nil {
		return lookupErr("player", err)
	}
	logger.Log.Infow("player left", "game", gameID, "player", playerID)
	return nil
}

// WithdrawPlayer takes playerID out of win accounting. Any participant may withdraw anyone.
// Withdrawing can leave a seeker with nothing left to find, so winners are re-evaluated.
func (s *Service) WithdrawPlayer(ctx context.Context, gameID, playerID, callerID string) (WithdrawResult, error) {
	game, err := s.loadGame(ctx, gameID)
	if err != nil {
		return WithdrawResult{}, err
	}
	if callerID == "" {
		return WithdrawResult{}, forbiddenf("caller identity is required")
	}
	if _, err := s.store.GetPlayer(ctx, gameID, callerID); err != nil {
		if errors.Is(err, persistence.ErrRecordNotFound) {
			return WithdrawResult{}, forbiddenf("caller is not a participant of this game")
		}
		return WithdrawResult{}, storageErr("load caller", err)
	}
	if err := requirePhase(game, state.ActionWithdraw); err != nil {
		return WithdrawResult{}, err
	}
	if _, err := s.loadPlayer(ctx, gameID, playerID, "player"); err != nil {
		return WithdrawResult{}, err
	}

	applied, err := s.store.WithdrawPlayer(ctx, gameID, playerID, s.now())
	if err != nil {
		return WithdrawResult{}, storageErr("withdraw player", err)
	}
	if !applied {
		return WithdrawResult{}, preconditionf("player has already withdrawn")
	}
	logger.Log.Infow("player withdrawn", "game", gameID, "player", playerID, "by", callerID)

	winnerID, err := s.resolveAfterWithdrawal(ctx, gameID)
	if err != nil {
		return WithdrawResult{}, err
	}
	player, err := s.loadPlayer(ctx, gameID, playerID, "player")
	if err != nil {
		return WithdrawResult{}, err
	}
	return WithdrawResult{Player: player, WinnerID: winnerID}, nil
}

// LockIn fixes the caller's hiding photo. It can be set exactly once, during hiding.
func (s *Service) LockIn(ctx context.Context, gameID, playerID, callerID, photoID string) (models.Player, error) {
	if err := requireSelf(callerID, playerID); err != nil {
		return models.Player{}, err
	}
	photoID = strings.TrimSpace(photoID)
	if photoID == "" {
		return models.Player{}, validationf("photo id is required")
	}
	game, err := s.loadGame(ctx, gameID)
	if err != nil {
		return models.Player{}, err
	}
	if err := requirePhase(game, state.ActionLockIn); err != nil {
		return models.Player{}, err
	}
	player, err := s.loadPlayer(ctx, gameID, playerID, "player")
	if err != nil {
		return models.Player{}, err
	}
	if player.LockedIn() {
		return models.Player{}, preconditionf("hiding photo is already locked in")
	}

	photo, err := s.loadPhoto(ctx, photoID)
	if err != nil {
		return models.Player{}, err
	}
	pos, ok := photo.Position()
	if !ok {
		return models.Player{}, validationf("hiding photo has no coordinates")
	}
	if game.Zone != nil {
		accuracy := 0.0
		if photo.AccuracyMeters != nil {
			accuracy = *photo.AccuracyMeters
		}
		if geo.IsEntirelyOutsideZone(pos, accuracy, game.Zone.Center(), game.Zone.RadiusMeters) {
			return models.Player{}, preconditionf("hiding photo was taken outside the zone")
		}
	}

	applied, err := s.store.LockInHidingPhoto(ctx, gameID, playerID, photoID)
	if err != nil {
		return models.Player{}, storageErr("lock in", err)
	}
	if !applied {
		return models.Player{}, preconditionf("hiding photo is already locked in")
	}
	logger.Log.Infow("player locked in", "game", gameID, "player", playerID, "photo", photoID)
	return s.loadPlayer(ctx, gameID, playerID, "player")
}
