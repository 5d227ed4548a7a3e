package services

import (
	"context"
	"errors"
	"math"

	"github.com/wfunc/hideseek/geo"
	"github.com/wfunc/hideseek/logger"
	"github.com/wfunc/hideseek/models"
	"github.com/wfunc/hideseek/persistence"
	"github.com/wfunc/hideseek/settings"
	"github.com/wfunc/hideseek/state"
)

// sameBandMeters is how little the distance to the target may change and still read "same".
const sameBandMeters = 2.0

// CastHintRequest starts a hint. Note must be the variant matching Type; result fields in it
// are ignored.
type CastHintRequest struct {
	SeekerID string          `json:"seekerId"`
	HiderID  string          `json:"hiderId"`
	Type     models.HintType `json:"type"`
	Note     models.HintNote `json:"-"`
}

// CompleteHintRequest carries the completion inputs. Lat/Lng is the seeker's current position
// and is only read by thermometers; radars always measure from their cast-time position.
type CompleteHintRequest struct {
	Unlocked *bool    `json:"unlocked"`
	Lat      *float64 `json:"lat"`
	Lng      *float64 `json:"lng"`
}

// ThermometerReading is an intermediate check of a thermometer walk. Result stays nil until the
// seeker has walked at least the threshold away from the start.
type ThermometerReading struct {
	HintID          string              `json:"hintId"`
	MovedMeters     float64             `json:"movedMeters"`
	ThresholdMeters float64             `json:"thresholdMeters"`
	Result          *models.Temperature `json:"result"`
}

func (s *Service) CastHint(ctx context.Context, gameID, callerID string, req CastHintRequest) (models.Hint, error) {
	if err := requireSelf(callerID, req.SeekerID); err != nil {
		return models.Hint{}, err
	}
	if !req.Type.Valid() {
		return models.Hint{}, validationf("unknown hint type %q", req.Type)
	}
	if req.Note == nil || req.Note.HintType() != req.Type {
		return models.Hint{}, validationf("a %s hint needs a %s note", req.Type, req.Type)
	}
	if req.HiderID == "" || req.HiderID == req.SeekerID {
		return models.Hint{}, validationf("hiderId must name another player")
	}

	game, err := s.loadGame(ctx, gameID)
	if err != nil {
		return models.Hint{}, err
	}
	if err := requirePhase(game, state.ActionCastHint); err != nil {
		return models.Hint{}, err
	}
	resolved := settings.ForGame(game)

	note, err := castNote(req.Note, resolved)
	if err != nil {
		return models.Hint{}, err
	}

	seeker, err := s.loadPlayer(ctx, gameID, req.SeekerID, "seeker")
	if err != nil {
		return models.Hint{}, err
	}
	hider, err := s.loadPlayer(ctx, gameID, req.HiderID, "hider")
	if err != nil {
		return models.Hint{}, err
	}
	if !seeker.Active() || !hider.Active() {
		return models.Hint{}, preconditionf("withdrawn players take no part in hints")
	}

	if n, ok := note.(models.PhotoNote); ok {
		if hider.LandmarkUnavailable(n.PhotoType) {
			return models.Hint{}, preconditionf("hider has no %s photo", n.PhotoType)
		}
		n.PhotoID = hider.LandmarkPhotoID(n.PhotoType)
		note = n
	}

	casting, err := s.store.HasCastingHint(ctx, gameID, req.SeekerID, req.HiderID)
	if err != nil {
		return models.Hint{}, storageErr("check hints", err)
	}
	if casting {
		return models.Hint{}, preconditionf("a hint is already casting against this hider")
	}

	hint := models.Hint{
		ID:             s.newID(),
		GameID:         gameID,
		SeekerID:       req.SeekerID,
		HiderID:        req.HiderID,
		Type:           req.Type,
		Note:           note,
		CastingSeconds: settings.CastingSeconds(req.Type, resolved),
		Status:         models.HintCasting,
		CreatedAt:      s.now(),
	}
	if err := s.store.CreateHint(ctx, hint); err != nil {
		if errors.Is(err, persistence.ErrConflict) {
			return models.Hint{}, preconditionf("a hint is already casting against this hider")
		}
		return models.Hint{}, storageErr("create hint", err)
	}
	s.monitor.ObserveHint(hint.Type, hint.Status)
	logger.Log.Infow("hint cast", "game", gameID, "hint", hint.ID, "type", hint.Type,
		"seeker", hint.SeekerID, "hider", hint.HiderID, "castingSeconds", hint.CastingSeconds)
	return hint, nil
}

// castNote validates the caller's note and strips anything only completion may write.
func castNote(note models.HintNote, resolved settings.Resolved) (models.HintNote, error) {
	switch n := note.(type) {
	case models.RadarNote:
		if !geo.ValidPoint(geo.Point{Lat: n.Lat, Lng: n.Lng}) {
			return nil, validationf("radar position is not a valid coordinate")
		}
		if !(n.DistanceMeters > 0) || math.IsInf(n.DistanceMeters, 0) {
			return nil, validationf("radar distanceMeters must be positive")
		}
		n.Result = nil
		return n, nil
	case models.ThermometerNote:
		if !geo.ValidPoint(geo.Point{Lat: n.StartLat, Lng: n.StartLng}) {
			return nil, validationf("thermometer start is not a valid coordinate")
		}
		if n.ThresholdMeters == 0 {
			n.ThresholdMeters = resolved.ThermometerThresholdMeters
		} else if !settings.ThermometerThreshold.Contains(n.ThresholdMeters) {
			return nil, validationf("thresholdMeters must be within [%g, %g]",
				settings.ThermometerThreshold.Min, settings.ThermometerThreshold.Max)
		}
		n.EndLat, n.EndLng, n.Result = nil, nil, nil
		return n, nil
	case models.PhotoNote:
		if !n.PhotoType.Valid() {
			return nil, validationf("unknown photo type %q", n.PhotoType)
		}
		n.PhotoID, n.Unlocked = nil, nil
		return n, nil
	}
	return nil, validationf("unsupported hint note")
}

// CompleteHint finishes a casting hint, adding the type-specific result to its note.
func (s *Service) CompleteHint(ctx context.Context, gameID, hintID, callerID string, req CompleteHintRequest) (models.Hint, error) {
	hint, err := s.loadOwnHint(ctx, gameID, hintID, callerID)
	if err != nil {
		return models.Hint{}, err
	}

	var note models.HintNote
	switch n := hint.Note.(type) {
	case models.RadarNote:
		target, err := s.hiderPosition(ctx, gameID, hint.HiderID)
		if err != nil {
			return models.Hint{}, err
		}
		d := geo.Distance(geo.Point{Lat: n.Lat, Lng: n.Lng}, target)
		n.Result = &models.RadarResult{
			WithinDistance: d <= n.DistanceMeters,
			ActualDistance: int(math.Round(d)),
		}
		note = n
	case models.ThermometerNote:
		if req.Lat == nil || req.Lng == nil {
			return models.Hint{}, validationf("lat and lng are required to complete a thermometer")
		}
		current := geo.Point{Lat: *req.Lat, Lng: *req.Lng}
		reading, err := s.readThermometer(ctx, hint, n, current)
		if err != nil {
			return models.Hint{}, err
		}
		if reading.Result == nil {
			return models.Hint{}, preconditionf("walk at least %.0f m before completing the thermometer", n.ThresholdMeters)
		}
		n.EndLat, n.EndLng = req.Lat, req.Lng
		n.Result = reading.Result
		note = n
	case models.PhotoNote:
		if req.Unlocked == nil {
			return models.Hint{}, validationf("unlocked is required to complete a photo hint")
		}
		unlocked := *req.Unlocked
		n.Unlocked = &unlocked
		note = n
	default:
		return models.Hint{}, validationf("unsupported hint note")
	}

	completedAt := s.now()
	applied, err := s.store.FinishHint(ctx, hint.ID, models.HintCompleted, note, &completedAt)
	if err != nil {
		return models.Hint{}, storageErr("complete hint", err)
	}
	if !applied {
		return models.Hint{}, preconditionf("hint is no longer casting")
	}
	hint.Status = models.HintCompleted
	hint.Note = note
	hint.CompletedAt = &completedAt

	s.monitor.ObserveHint(hint.Type, hint.Status)
	logger.Log.Infow("hint completed", "game", gameID, "hint", hint.ID, "type", hint.Type)
	return hint, nil
}

// CancelHint ends a casting hint without a result. The note is left as it was.
func (s *Service) CancelHint(ctx context.Context, gameID, hintID, callerID string) (models.Hint, error) {
	hint, err := s.loadOwnHint(ctx, gameID, hintID, callerID)
	if err != nil {
		return models.Hint{}, err
	}
	applied, err := s.store.FinishHint(ctx, hint.ID, models.HintCancelled, hint.Note, nil)
	if err != nil {
		return models.Hint{}, storageErr("cancel hint", err)
	}
	if !applied {
		return models.Hint{}, preconditionf("hint is no longer casting")
	}
	hint.Status = models.HintCancelled

	s.monitor.ObserveHint(hint.Type, hint.Status)
	logger.Log.Infow("hint cancelled", "game", gameID, "hint", hint.ID, "type", hint.Type)
	return hint, nil
}

// ThermometerReading reports whether the seeker got hotter or colder since the walk started.
func (s *Service) ThermometerReading(ctx context.Context, gameID, hintID, callerID string, lat, lng float64) (ThermometerReading, error) {
	current := geo.Point{Lat: lat, Lng: lng}
	if !geo.ValidPoint(current) {
		return ThermometerReading{}, validationf("position is not a valid coordinate")
	}
	hint, err := s.loadOwnHint(ctx, gameID, hintID, callerID)
	if err != nil {
		return ThermometerReading{}, err
	}
	note, ok := hint.Note.(models.ThermometerNote)
	if !ok {
		return ThermometerReading{}, validationf("hint %s is a %s, not a thermometer", hint.ID, hint.Type)
	}
	return s.readThermometer(ctx, hint, note, current)
}

func (s *Service) readThermometer(ctx context.Context, hint models.Hint, note models.ThermometerNote, current geo.Point) (ThermometerReading, error) {
	if !geo.ValidPoint(current) {
		return ThermometerReading{}, validationf("position is not a valid coordinate")
	}
	start := geo.Point{Lat: note.StartLat, Lng: note.StartLng}
	reading := ThermometerReading{
		HintID:          hint.ID,
		MovedMeters:     geo.Distance(start, current),
		ThresholdMeters: note.ThresholdMeters,
	}
	if reading.MovedMeters < note.ThresholdMeters {
		return reading, nil
	}

	target, err := s.hiderPosition(ctx, hint.GameID, hint.HiderID)
	if err != nil {
		return ThermometerReading{}, err
	}
	temp := classify(geo.Distance(start, target), geo.Distance(current, target))
	reading.Result = &temp
	return reading, nil
}

func classify(before, after float64) models.Temperature {
	diff := after - before
	switch {
	case math.Abs(diff) <= sameBandMeters:
		return models.Same
	case diff < 0:
		return models.Hotter
	default:
		return models.Colder
	}
}

func (s *Service) ListHints(ctx context.Context, gameID, seekerID string) ([]models.Hint, error) {
	if _, err := s.loadGame(ctx, gameID); err != nil {
		return nil, err
	}
	hints, err := s.store.ListHints(ctx, gameID, seekerID)
	if err != nil {
		return nil, storageErr("list hints", err)
	}
	return hints, nil
}

// loadOwnHint fetches a casting hint that belongs to callerID.
func (s *Service) loadOwnHint(ctx context.Context, gameID, hintID, callerID string) (models.Hint, error) {
	if _, err := s.loadGame(ctx, gameID); err != nil {
		return models.Hint{}, err
	}
	hint, err := s.store.GetHint(ctx, gameID, hintID)
	if err != nil {
		return models.Hint{}, lookupErr("hint", err)
	}
	if err := requireSelf(callerID, hint.SeekerID); err != nil {
		return models.Hint{}, err
	}
	if hint.Status != models.HintCasting {
		return models.Hint{}, preconditionf("hint is already %s", hint.Status)
	}
	return hint, nil
}

// hiderPosition is where the hider's locked-in hiding photo was taken.
func (s *Service) hiderPosition(ctx context.Context, gameID, hiderID string) (geo.Point, error) {
	hider, err := s.loadPlayer(ctx, gameID, hiderID, "hider")
	if err != nil {
		return geo.Point{}, err
	}
	if hider.HidingPhotoID == nil {
		return geo.Point{}, preconditionf("hider has not locked in a hiding photo")
	}
	photo, err := s.loadPhoto(ctx, *hider.HidingPhotoID)
	if err != nil {
		return geo.Point{}, err
	}
	pos, ok := photo.Position()
	if !ok {
		return geo.Point{}, preconditionf("hider's hiding photo has no coordinates")
	}
	return pos, nil
}
