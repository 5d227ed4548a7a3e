package services

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wfunc/hideseek/geo"
	"github.com/wfunc/hideseek/models"
)

func TestSubmit_WithoutPhotoFails(t *testing.T) {
	f := newFixture(t)
	game, players := f.seeking(t, "A", "B", "C")

	res, err := f.svc.Submit(f.ctx, game.ID, SubmitRequest{SeekerID: players[0].ID, HiderID: players[1].ID})
	require.NoError(t, err)
	assert.Equal(t, models.SubmissionFail, res.Submission.Status)
	assert.False(t, res.Won)

	subs, err := f.svc.ListSubmissions(f.ctx, game.ID)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, models.SubmissionFail, subs[0].Status)
}

func TestSubmit_HiderNotLockedInFails(t *testing.T) {
	f := newFixture(t)
	game, players := f.lobby(t, "A", "B")
	f.setPhase(t, game.ID, models.PhaseHiding)
	shot := f.photo(t, 0, 0, 5)

	res, err := f.svc.Submit(f.ctx, game.ID, SubmitRequest{SeekerID: players[0].ID, HiderID: players[1].ID, PhotoID: &shot.ID})
	require.NoError(t, err)
	assert.Equal(t, models.SubmissionFail, res.Submission.Status)
}

func TestSubmit_UnknownPhotoStillRecorded(t *testing.T) {
	f := newFixture(t)
	game, players := f.seeking(t, "A", "B")

	res, err := f.svc.Submit(f.ctx, game.ID, SubmitRequest{SeekerID: players[0].ID, HiderID: players[1].ID, PhotoID: ptr("no-such-photo")})
	require.NoError(t, err)
	assert.Equal(t, models.SubmissionFail, res.Submission.Status)
	assert.Nil(t, res.Submission.PhotoID, "a malformed photo id is not stored")

	unknown := uuid.NewString()
	res, err = f.svc.Submit(f.ctx, game.ID, SubmitRequest{SeekerID: players[0].ID, HiderID: players[1].ID, PhotoID: ptr(" " + unknown + " ")})
	require.NoError(t, err)
	assert.Equal(t, models.SubmissionFail, res.Submission.Status)
	require.NotNil(t, res.Submission.PhotoID)
	assert.Equal(t, unknown, *res.Submission.PhotoID)

	subs, err := f.svc.ListSubmissions(f.ctx, game.ID)
	require.NoError(t, err)
	assert.Len(t, subs, 2)
}

func TestSubmit_OnlyWhileSeeking(t *testing.T) {
	f := newFixture(t)
	game, players := f.lobby(t, "A", "B")
	a, b := players[0], players[1]
	shot := f.photo(t, 0, 0.00003, 5)
	req := SubmitRequest{SeekerID: b.ID, HiderID: a.ID, PhotoID: &shot.ID}

	_, err := f.svc.Submit(f.ctx, game.ID, req)
	requireKind(t, err, KindPrecondition)

	f.setPhase(t, game.ID, models.PhaseHiding)
	f.lockIn(t, game.ID, a, 0, 0, 5)
	_, err = f.svc.Submit(f.ctx, game.ID, req)
	requireKind(t, err, KindPrecondition)

	view, err := f.svc.GetGame(f.ctx, game.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PhaseHiding, view.Game.Phase)
	assert.Nil(t, view.Game.WinnerID)
	subs, err := f.svc.ListSubmissions(f.ctx, game.ID)
	require.NoError(t, err)
	assert.Empty(t, subs)

	f.setPhase(t, game.ID, models.PhaseSeeking)
	res, err := f.svc.Submit(f.ctx, game.ID, req)
	require.NoError(t, err)
	assert.True(t, res.Won)

	view, err = f.svc.GetGame(f.ctx, game.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PhaseCompleted, view.Game.Phase)
	assert.NotNil(t, view.Game.SeekingStartedAt, "completion comes after seeking started")
}

func TestSubmit_BoundaryIsInclusive(t *testing.T) {
	hider := geo.Point{Lat: 0, Lng: 0}
	shot := geo.Point{Lat: 0, Lng: 0.001}
	d := geo.Distance(hider, shot)
	half := d / 2

	cases := []struct {
		name     string
		accuracy float64
		want     models.SubmissionStatus
	}{
		{"exactly touching", half, models.SubmissionSuccess},
		{"just apart", half - 0.01, models.SubmissionFail},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			game, players := f.lobby(t, "A", "B", "C")
			f.setPhase(t, game.ID, models.PhaseHiding)
			f.lockIn(t, game.ID, players[0], hider.Lat, hider.Lng, half)
			f.setPhase(t, game.ID, models.PhaseSeeking)

			photo := f.photo(t, shot.Lat, shot.Lng, tc.accuracy)
			res, err := f.svc.Submit(f.ctx, game.ID, SubmitRequest{SeekerID: players[1].ID, HiderID: players[0].ID, PhotoID: &photo.ID})
			require.NoError(t, err)
			assert.Equal(t, tc.want, res.Submission.Status)
			assert.False(t, res.Won, "one of two hiders found is not a win")
		})
	}
}

func TestSubmit_MissingAccuracyUsesFloor(t *testing.T) {
	f := newFixture(t)
	game, players := f.seeking(t, "A", "B", "C")

	// ~8 m from A, inside 5 m + 5 m.
	lat, lng := 0.0, 0.00007
	photo, err := f.svc.CreatePhoto(f.ctx, CreatePhotoRequest{URL: "https://cdn.example/x.jpg", Lat: &lat, Lng: &lng})
	require.NoError(t, err)

	res, err := f.svc.Submit(f.ctx, game.ID, SubmitRequest{SeekerID: players[1].ID, HiderID: players[0].ID, PhotoID: &photo.ID})
	require.NoError(t, err)
	assert.Equal(t, models.SubmissionSuccess, res.Submission.Status)
}

func TestSubmit_DuplicateSuccessIsConflict(t *testing.T) {
	f := newFixture(t)
	game, players := f.seeking(t, "A", "B", "C")
	shot := f.photo(t, 0, 0, 5)
	req := SubmitRequest{SeekerID: players[1].ID, HiderID: players[0].ID, PhotoID: &shot.ID}

	res, err := f.svc.Submit(f.ctx, game.ID, req)
	require.NoError(t, err)
	require.Equal(t, models.SubmissionSuccess, res.Submission.Status)

	_, err = f.svc.Submit(f.ctx, game.ID, req)
	requireKind(t, err, KindConflict)

	subs, err := f.svc.ListSubmissions(f.ctx, game.ID)
	require.NoError(t, err)
	assert.Len(t, subs, 1)
}

func TestSubmit_Validation(t *testing.T) {
	f := newFixture(t)
	game, players := f.seeking(t, "A", "B")

	_, err := f.svc.Submit(f.ctx, game.ID, SubmitRequest{SeekerID: players[0].ID, HiderID: players[0].ID})
	requireKind(t, err, KindValidation)
	_, err = f.svc.Submit(f.ctx, game.ID, SubmitRequest{SeekerID: players[0].ID})
	requireKind(t, err, KindValidation)
	_, err = f.svc.Submit(f.ctx, game.ID, SubmitRequest{SeekerID: players[0].ID, HiderID: "stranger"})
	requireKind(t, err, KindNotFound)
	_, err = f.svc.Submit(f.ctx, "missing", SubmitRequest{SeekerID: players[0].ID, HiderID: players[1].ID})
	requireKind(t, err, KindNotFound)
}

func TestResolveWinner_ExactlyOnceUnderContention(t *testing.T) {
	f := newFixture(t)
	game, players := f.seeking(t, "A", "B", "C")
	seeker := players[0]
	for _, hider := range players[1:] {
		shot := f.photo(t, 0, 0.009*float64(indexOf(players, hider)), 5)
		res, err := f.svc.Submit(f.ctx, game.ID, SubmitRequest{SeekerID: seeker.ID, HiderID: hider.ID, PhotoID: &shot.ID})
		require.NoError(t, err)
		require.Equal(t, models.SubmissionSuccess, res.Submission.Status)
	}

	view, err := f.svc.GetGame(f.ctx, game.ID)
	require.NoError(t, err)
	require.Equal(t, seeker.ID, *view.Game.WinnerID)

	// Replaying the win check cannot commit again.
	var wins int32
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			won, err := f.svc.resolveWinner(f.ctx, game.ID, seeker.ID)
			assert.NoError(t, err)
			if won {
				atomic.AddInt32(&wins, 1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(0), wins)
}

func TestResolveWinner_ConcurrentQualifiersOneWinner(t *testing.T) {
	f := newFixture(t)
	game, players := f.seeking(t, "A", "B")
	a, b := players[0], players[1]

	// Both seekers have found each other; record the finds directly so neither
	// submission has resolved the game yet.
	for _, pair := range [][2]string{{a.ID, b.ID}, {b.ID, a.ID}} {
		sub := models.Submission{ID: pair[0] + pair[1], GameID: game.ID, SeekerID: pair[0], HiderID: pair[1], Status: models.SubmissionSuccess, CreatedAt: f.clock.Now()}
		require.NoError(t, f.store.CreateSubmission(f.ctx, sub))
	}

	var wins int32
	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		seekerID := players[i%2].ID
		wg.Add(1)
		go func() {
			defer wg.Done()
			won, err := f.svc.resolveWinner(f.ctx, game.ID, seekerID)
			assert.NoError(t, err)
			if won {
				atomic.AddInt32(&wins, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins)
	view, err := f.svc.GetGame(f.ctx, game.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PhaseCompleted, view.Game.Phase)
	require.NotNil(t, view.Game.WinnerID)
}

func TestResolveWinner_ConcurrentSubmissions(t *testing.T) {
	f := newFixture(t)
	game, players := f.seeking(t, "A", "B")

	shots := []models.Photo{f.photo(t, 0, 0.009, 5), f.photo(t, 0, 0, 5)}
	var wins int32
	var wg sync.WaitGroup
	for i := range players {
		seeker, hider := players[i], players[1-i]
		shot := shots[i]
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := f.svc.Submit(f.ctx, game.ID, SubmitRequest{SeekerID: seeker.ID, HiderID: hider.ID, PhotoID: &shot.ID})
			if err != nil {
				// The other seeker completed the game first.
				assert.Equal(t, KindPrecondition, KindOf(err))
				return
			}
			if res.Won {
				atomic.AddInt32(&wins, 1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins)
}

func indexOf(players []models.Player, p models.Player) int {
	for i, candidate := range players {
		if candidate.ID == p.ID {
			return i
		}
	}
	return -1
}
