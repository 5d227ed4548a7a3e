package services

import (
	"context"
	"time"

	"github.com/wfunc/hideseek/logger"
	"github.com/wfunc/hideseek/models"
	"github.com/wfunc/hideseek/state"
)

// resolveWinner commits seekerID as the winner if they have found every other active player.
// The store's conditional write decides between concurrent qualifiers: exactly one commit
// applies and every other caller gets false.
func (s *Service) resolveWinner(ctx context.Context, gameID, seekerID string) (bool, error) {
	game, err := s.loadGame(ctx, gameID)
	if err != nil {
		return false, err
	}
	players, err := s.store.ListPlayers(ctx, gameID)
	if err != nil {
		return false, storageErr("list players", err)
	}
	active := make(map[string]bool, len(players))
	for _, p := range players {
		if p.Active() {
			active[p.ID] = true
		}
	}
	if !active[seekerID] {
		return false, nil
	}

	needed := len(active) - 1
	foundIDs, err := s.store.FoundHiderIDs(ctx, gameID, seekerID)
	if err != nil {
		return false, storageErr("count finds", err)
	}
	found := 0
	for _, id := range foundIDs {
		if id != seekerID && active[id] {
			found++
		}
	}
	if needed <= 0 || found < needed {
		return false, nil
	}

	now := s.now()
	candidate := game
	candidate.WinnerID = &seekerID
	if err := s.phases.Check(state.Snapshot{Game: candidate, PlayerCount: len(players)}, models.PhaseCompleted); err != nil {
		if game.WinnerID != nil {
			return false, s.lostRace(ctx, gameID, now)
		}
		logger.Log.Warnw("qualified seeker outside seeking", "game", gameID, "seeker", seekerID, "phase", game.Phase)
		return false, nil
	}

	committed, err := s.store.CommitWinner(ctx, gameID, seekerID, now)
	if err != nil {
		return false, storageErr("commit winner", err)
	}
	if committed {
		s.monitor.WinnerCommitted()
		s.monitor.PhaseTransition(models.PhaseCompleted)
		logger.Log.Infow("winner committed", "game", gameID, "winner", seekerID, "finds", found)
		return true, nil
	}

	return false, s.lostRace(ctx, gameID, now)
}

// lostRace repairs the phase of a game whose winner was committed by someone else.
func (s *Service) lostRace(ctx context.Context, gameID string, at time.Time) error {
	s.monitor.WinnerRaceLost()
	if err := s.store.EnsureCompleted(ctx, gameID, at); err != nil {
		return storageErr("complete game", err)
	}
	return nil
}

// resolveAfterWithdrawal re-checks every remaining active player in join order, since a
// withdrawal lowers everyone's required find count.
func (s *Service) resolveAfterWithdrawal(ctx context.Context, gameID string) (*string, error) {
	game, err := s.loadGame(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if game.WinnerID != nil {
		return game.WinnerID, nil
	}
	active, err := s.store.CountPlayers(ctx, gameID, true)
	if err != nil {
		return nil, storageErr("count players", err)
	}
	if active < state.MinPlayers {
		return nil, nil
	}
	players, err := s.store.ListPlayers(ctx, gameID)
	if err != nil {
		return nil, storageErr("list players", err)
	}
	for _, p := range players {
		if !p.Active() {
			continue
		}
		won, err := s.resolveWinner(ctx, gameID, p.ID)
		if err != nil {
			return nil, err
		}
		if won {
			id := p.ID
			return &id, nil
		}
	}
	// A concurrent commit may have landed while we were checking.
	game, err = s.loadGame(ctx, gameID)
	if err != nil {
		return nil, err
	}
	return game.WinnerID, nil
}
