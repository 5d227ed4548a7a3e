package services

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/wfunc/hideseek/geo"
	"github.com/wfunc/hideseek/logger"
	"github.com/wfunc/hideseek/models"
	"github.com/wfunc/hideseek/persistence"
	"github.com/wfunc/hideseek/state"
)

type SubmitRequest struct {
	SeekerID string  `json:"seekerId"`
	HiderID  string  `json:"hiderId"`
	PhotoID  *string `json:"photoId"`
}

// SubmitResult is the resolved submission and whether it made the seeker the winner.
type SubmitResult struct {
	Submission models.Submission `json:"submission"`
	Won        bool              `json:"won"`
}

// Submit records a seeker's claim to have found a hider and resolves it. The submission row is
// written as pending before anything else can fail, so every attempt leaves a record.
func (s *Service) Submit(ctx context.Context, gameID string, req SubmitRequest) (SubmitResult, error) {
	if req.SeekerID == "" || req.HiderID == "" {
		return SubmitResult{}, validationf("seekerId and hiderId are required")
	}
	if req.SeekerID == req.HiderID {
		return SubmitResult{}, validationf("a seeker cannot submit against themselves")
	}
	game, err := s.loadGame(ctx, gameID)
	if err != nil {
		return SubmitResult{}, err
	}
	if err := requirePhase(game, state.ActionSubmit); err != nil {
		return SubmitResult{}, err
	}
	if _, err := s.loadPlayer(ctx, gameID, req.SeekerID, "seeker"); err != nil {
		return SubmitResult{}, err
	}
	hider, err := s.loadPlayer(ctx, gameID, req.HiderID, "hider")
	if err != nil {
		return SubmitResult{}, err
	}

	found, err := s.store.HasSuccessfulSubmission(ctx, gameID, req.SeekerID, req.HiderID)
	if err != nil {
		return SubmitResult{}, storageErr("check submissions", err)
	}
	if found {
		return SubmitResult{}, conflictf("seeker has already found this hider")
	}

	photoID := submittedPhotoID(req.PhotoID)
	sub := models.Submission{
		ID:        s.newID(),
		GameID:    gameID,
		SeekerID:  req.SeekerID,
		HiderID:   req.HiderID,
		PhotoID:   photoID,
		Status:    models.SubmissionPending,
		CreatedAt: s.now(),
	}
	if err := s.store.CreateSubmission(ctx, sub); err != nil {
		return SubmitResult{}, storageErr("create submission", err)
	}

	sub.Status = s.verdict(ctx, sub, hider)
	if err := s.store.SetSubmissionStatus(ctx, sub.ID, sub.Status); err != nil {
		if errors.Is(err, persistence.ErrConflict) {
			// A concurrent request recorded the find first.
			s.failSubmission(ctx, sub)
			return SubmitResult{}, conflictf("seeker has already found this hider")
		}
		s.failSubmission(ctx, sub)
		return SubmitResult{}, storageErr("resolve submission", err)
	}
	s.monitor.ObserveSubmission(sub.Status)
	logger.Log.Infow("submission resolved", "game", gameID, "seeker", sub.SeekerID,
		"hider", sub.HiderID, "submission", sub.ID, "status", sub.Status)

	result := SubmitResult{Submission: sub}
	if sub.Status == models.SubmissionSuccess {
		won, err := s.resolveWinner(ctx, gameID, sub.SeekerID)
		if err != nil {
			return SubmitResult{}, err
		}
		result.Won = won
	}
	return result, nil
}

func (s *Service) ListSubmissions(ctx context.Context, gameID string) ([]models.Submission, error) {
	if _, err := s.loadGame(ctx, gameID); err != nil {
		return nil, err
	}
	subs, err := s.store.ListSubmissions(ctx, gameID)
	if err != nil {
		return nil, storageErr("list submissions", err)
	}
	return subs, nil
}

// verdict is success iff the submission photo's accuracy circle overlaps the hider's hiding
// photo's. Anything missing along the way is a fail.
func (s *Service) verdict(ctx context.Context, sub models.Submission, hider models.Player) models.SubmissionStatus {
	if sub.PhotoID == nil || hider.HidingPhotoID == nil {
		return models.SubmissionFail
	}
	submitted, err := s.store.GetPhoto(ctx, *sub.PhotoID)
	if err != nil {
		logger.Log.Warnw("submission photo unavailable", "submission", sub.ID, "photo", *sub.PhotoID, "error", err)
		return models.SubmissionFail
	}
	hidden, err := s.store.GetPhoto(ctx, *hider.HidingPhotoID)
	if err != nil {
		logger.Log.Warnw("hiding photo unavailable", "submission", sub.ID, "photo", *hider.HidingPhotoID, "error", err)
		return models.SubmissionFail
	}
	a, ok := submitted.Position()
	if !ok {
		return models.SubmissionFail
	}
	b, ok := hidden.Position()
	if !ok {
		return models.SubmissionFail
	}
	if geo.CirclesOverlap(a, geo.EffectiveRadius(submitted.AccuracyMeters), b, geo.EffectiveRadius(hidden.AccuracyMeters)) {
		return models.SubmissionSuccess
	}
	return models.SubmissionFail
}

// submittedPhotoID keeps the photo reference only if it could name a stored photo. A malformed
// id is dropped so the attempt is still recorded, and judged a fail.
func submittedPhotoID(raw *string) *string {
	if raw == nil {
		return nil
	}
	id := strings.TrimSpace(*raw)
	if id == "" {
		return nil
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		logger.Log.Debugw("ignoring malformed submission photo id", "photo", id)
		return nil
	}
	id = parsed.String()
	return &id
}

func (s *Service) failSubmission(ctx context.Context, sub models.Submission) {
	if err := s.store.SetSubmissionStatus(ctx, sub.ID, models.SubmissionFail); err != nil {
		logger.Log.Errorw("failed to mark submission as fail", "submission", sub.ID, "error", err)
	}
}
