package services

import (
	"context"

	"github.com/wfunc/hideseek/geo"
	"github.com/wfunc/hideseek/models"
	"github.com/wfunc/hideseek/state"
)

// RecordPing appends a location breadcrumb for the caller.
func (s *Service) RecordPing(ctx context.Context, gameID, callerID string, lat, lng float64) (models.Ping, error) {
	if callerID == "" {
		return models.Ping{}, forbiddenf("caller identity is required")
	}
	if !geo.ValidPoint(geo.Point{Lat: lat, Lng: lng}) {
		return models.Ping{}, validationf("position is not a valid coordinate")
	}
	game, err := s.loadGame(ctx, gameID)
	if err != nil {
		return models.Ping{}, err
	}
	if err := requirePhase(game, state.ActionPing); err != nil {
		return models.Ping{}, err
	}
	if _, err := s.loadPlayer(ctx, gameID, callerID, "player"); err != nil {
		return models.Ping{}, err
	}

	ping := models.Ping{
		ID:        s.newID(),
		GameID:    gameID,
		PlayerID:  callerID,
		Lat:       lat,
		Lng:       lng,
		CreatedAt: s.now(),
	}
	if err := s.store.CreatePing(ctx, ping); err != nil {
		return models.Ping{}, storageErr("record ping", err)
	}
	return ping, nil
}

// LatestPings returns the most recent ping of every player that has sent one.
func (s *Service) LatestPings(ctx context.Context, gameID string) ([]models.Ping, error) {
	if _, err := s.loadGame(ctx, gameID); err != nil {
		return nil, err
	}
	pings, err := s.store.LatestPings(ctx, gameID)
	if err != nil {
		return nil, storageErr("latest pings", err)
	}
	return pings, nil
}
