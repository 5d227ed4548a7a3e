package services

import (
	"context"
	"math"
	"strings"

	"github.com/wfunc/hideseek/geo"
	"github.com/wfunc/hideseek/logger"
	"github.com/wfunc/hideseek/models"
	"github.com/wfunc/hideseek/state"
)

type LandmarkStatus string

const (
	LandmarkAvailable   LandmarkStatus = "available"
	LandmarkUnavailable LandmarkStatus = "unavailable"
)

// Landmark is what a seeker may learn about one landmark slot of a hider.
type Landmark struct {
	Type    models.LandmarkType `json:"type"`
	Status  LandmarkStatus      `json:"status"`
	PhotoID *string             `json:"photoId,omitempty"`
	URL     *string             `json:"url,omitempty"`
}

// CreatePhotoRequest registers an image that has already been uploaded to object storage.
// Coordinates come from the device at capture time.
type CreatePhotoRequest struct {
	URL            string   `json:"url"`
	StoragePath    string   `json:"storagePath"`
	Lat            *float64 `json:"lat"`
	Lng            *float64 `json:"lng"`
	AccuracyMeters *float64 `json:"accuracyMeters"`
}

func (s *Service) CreatePhoto(ctx context.Context, req CreatePhotoRequest) (models.Photo, error) {
	url := strings.TrimSpace(req.URL)
	if url == "" {
		return models.Photo{}, validationf("photo url is required")
	}
	if (req.Lat == nil) != (req.Lng == nil) {
		return models.Photo{}, validationf("lat and lng must be given together")
	}
	if req.Lat != nil && !geo.ValidPoint(geo.Point{Lat: *req.Lat, Lng: *req.Lng}) {
		return models.Photo{}, validationf("photo coordinates are out of range")
	}
	if a := req.AccuracyMeters; a != nil && (math.IsNaN(*a) || math.IsInf(*a, 0)) {
		return models.Photo{}, validationf("accuracy must be a finite number")
	}

	photo := models.Photo{
		ID:             s.newID(),
		URL:            url,
		StoragePath:    strings.TrimSpace(req.StoragePath),
		Lat:            req.Lat,
		Lng:            req.Lng,
		AccuracyMeters: req.AccuracyMeters,
		CreatedAt:      s.now(),
	}
	if err := s.store.CreatePhoto(ctx, photo); err != nil {
		return models.Photo{}, storageErr("create photo", err)
	}
	return photo, nil
}

// SetLandmark records the caller's photo for one landmark slot, or marks the slot unavailable
// when photoID is nil.
func (s *Service) SetLandmark(ctx context.Context, gameID, playerID, callerID string, landmark models.LandmarkType, photoID *string) (models.Player, error) {
	if err := requireSelf(callerID, playerID); err != nil {
		return models.Player{}, err
	}
	if !landmark.Valid() {
		return models.Player{}, validationf("unknown landmark type %q", landmark)
	}
	game, err := s.loadGame(ctx, gameID)
	if err != nil {
		return models.Player{}, err
	}
	if err := requirePhase(game, state.ActionSetLandmark); err != nil {
		return models.Player{}, err
	}
	if _, err := s.loadPlayer(ctx, gameID, playerID, "player"); err != nil {
		return models.Player{}, err
	}
	if photoID != nil {
		if _, err := s.loadPhoto(ctx, *photoID); err != nil {
			return models.Player{}, err
		}
	}

	if err := s.store.SetLandmark(ctx, gameID, playerID, landmark, photoID); err != nil {
		return models.Player{}, storageErr("set landmark", err)
	}
	logger.Log.Infow("landmark set", "game", gameID, "player", playerID, "type", landmark, "available", photoID != nil)
	return s.loadPlayer(ctx, gameID, playerID, "player")
}

// GetLandmark returns the hider's photo for landmark, an unavailable marker if the hider declared
// they have none, or NotFound if the hider never addressed the slot.
func (s *Service) GetLandmark(ctx context.Context, gameID, hiderID string, landmark models.LandmarkType) (Landmark, error) {
	if !landmark.Valid() {
		return Landmark{}, validationf("unknown landmark type %q", landmark)
	}
	if _, err := s.loadGame(ctx, gameID); err != nil {
		return Landmark{}, err
	}
	hider, err := s.loadPlayer(ctx, gameID, hiderID, "hider")
	if err != nil {
		return Landmark{}, err
	}
	lm, addressed, err := s.landmarkOf(ctx, hider, landmark)
	if err != nil {
		return Landmark{}, err
	}
	if !addressed {
		return Landmark{}, notFoundf("hider has not provided a %s photo", landmark)
	}
	return lm, nil
}

// ListLandmarks returns every landmark slot the hider has addressed, available or not.
func (s *Service) ListLandmarks(ctx context.Context, gameID, hiderID string) ([]Landmark, error) {
	if _, err := s.loadGame(ctx, gameID); err != nil {
		return nil, err
	}
	hider, err := s.loadPlayer(ctx, gameID, hiderID, "hider")
	if err != nil {
		return nil, err
	}
	result := make([]Landmark, 0, len(models.LandmarkTypes))
	for _, t := range models.LandmarkTypes {
		lm, addressed, err := s.landmarkOf(ctx, hider, t)
		if err != nil {
			return nil, err
		}
		if addressed {
			result = append(result, lm)
		}
	}
	return result, nil
}

func (s *Service) landmarkOf(ctx context.Context, hider models.Player, t models.LandmarkType) (Landmark, bool, error) {
	if id := hider.LandmarkPhotoID(t); id != nil {
		photo, err := s.loadPhoto(ctx, *id)
		if err != nil {
			return Landmark{}, false, err
		}
		return Landmark{Type: t, Status: LandmarkAvailable, PhotoID: id, URL: &photo.URL}, true, nil
	}
	if hider.LandmarkUnavailable(t) {
		return Landmark{Type: t, Status: LandmarkUnavailable}, true, nil
	}
	return Landmark{}, false, nil
}
