// Package services implements the game operations on top of a persistence.Store.
package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/wfunc/hideseek/models"
	"github.com/wfunc/hideseek/monitor"
	"github.com/wfunc/hideseek/persistence"
	"github.com/wfunc/hideseek/state"
)

type Service struct {
	store   persistence.Store
	phases  state.StateMachine
	monitor *monitor.Monitor
	now     func() time.Time
	newID   func() string
}

type Option func(*Service)

// WithClock replaces the wall clock used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithIDGenerator(fn func() string) Option {
	return func(s *Service) { s.newID = fn }
}

func New(store persistence.Store, mon *monitor.Monitor, opts ...Option) *Service {
	s := &Service{
		store:   store,
		phases:  state.NewPhaseMachine(),
		monitor: mon,
		now:     func() time.Time { return time.Now().UTC() },
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Healthy reports whether the backing store answers.
func (s *Service) Healthy(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *Service) loadGame(ctx context.Context, gameID string) (models.Game, error) {
	if gameID == "" {
		return models.Game{}, validationf("game id is required")
	}
	game, err := s.store.GetGame(ctx, gameID)
	if err != nil {
		return models.Game{}, lookupErr("game", err)
	}
	return game, nil
}

func (s *Service) loadPlayer(ctx context.Context, gameID, playerID, role string) (models.Player, error) {
	if playerID == "" {
		return models.Player{}, validationf("%s id is required", role)
	}
	player, err := s.store.GetPlayer(ctx, gameID, playerID)
	if err != nil {
		return models.Player{}, lookupErr(role, err)
	}
	return player, nil
}

func (s *Service) loadPhoto(ctx context.Context, photoID string) (models.Photo, error) {
	photo, err := s.store.GetPhoto(ctx, photoID)
	if err != nil {
		return models.Photo{}, lookupErr("photo", err)
	}
	return photo, nil
}

// requirePhase fails with a precondition error unless action is legal in the game's phase.
func requirePhase(game models.Game, action state.Action) error {
	if game.Completed() {
		return completedErr(game.WinnerID)
	}
	if !state.Allows(game.Phase, action) {
		return preconditionf("%s is not allowed while the game is in %s (allowed: %v)",
			action, game.Phase, state.AllowedPhases(action))
	}
	return nil
}

func requireSelf(callerID, playerID string) error {
	if callerID == "" {
		return forbiddenf("caller identity is required")
	}
	if callerID != playerID {
		return forbiddenf("players may only act as themselves")
	}
	return nil
}
