package persistence

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wfunc/hideseek/models"
)

// runStoreContract exercises the conditional-update guarantees every Store must give.
func runStoreContract(t *testing.T, store Store) {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	newGame := func(t *testing.T) models.Game {
		g := models.Game{ID: uuid.NewString(), Phase: models.PhaseLobby, CreatedAt: now}
		require.NoError(t, store.CreateGame(ctx, g))
		return g
	}
	newPlayer := func(t *testing.T, gameID, name string, offset time.Duration) models.Player {
		p := models.Player{ID: uuid.NewString(), GameID: gameID, Name: name, CreatedAt: now.Add(offset)}
		require.NoError(t, store.CreatePlayer(ctx, p))
		return p
	}

	seekingGame := func(t *testing.T) models.Game {
		g := newGame(t)
		ok, err := store.AdvancePhase(ctx, g.ID, []models.Phase{models.PhaseLobby}, models.PhaseHiding, now)
		require.NoError(t, err)
		require.True(t, ok)
		ok, err = store.AdvancePhase(ctx, g.ID, []models.Phase{models.PhaseHiding}, models.PhaseSeeking, now)
		require.NoError(t, err)
		require.True(t, ok)
		return g
	}

	t.Run("GetGame_NotFound", func(t *testing.T) {
		_, err := store.GetGame(ctx, uuid.NewString())
		assert.ErrorIs(t, err, ErrRecordNotFound)
	})

	t.Run("MalformedIDs_NotFound", func(t *testing.T) {
		g := newGame(t)
		_, err := store.GetGame(ctx, "abc")
		assert.ErrorIs(t, err, ErrRecordNotFound)
		_, err = store.GetPlayer(ctx, g.ID, "stranger")
		assert.ErrorIs(t, err, ErrRecordNotFound)
		_, err = store.GetPlayer(ctx, "abc", "stranger")
		assert.ErrorIs(t, err, ErrRecordNotFound)
		_, err = store.GetPhoto(ctx, "no-such-photo")
		assert.ErrorIs(t, err, ErrRecordNotFound)
		_, err = store.GetHint(ctx, g.ID, "no-such-hint")
		assert.ErrorIs(t, err, ErrRecordNotFound)
	})

	t.Run("AdvancePhase_SeekingTimerWrittenOnce", func(t *testing.T) {
		g := newGame(t)

		ok, err := store.AdvancePhase(ctx, g.ID, []models.Phase{models.PhaseHiding, models.PhaseSeeking}, models.PhaseSeeking, now)
		require.NoError(t, err)
		assert.False(t, ok, "lobby cannot jump to seeking")

		ok, err = store.AdvancePhase(ctx, g.ID, []models.Phase{models.PhaseLobby}, models.PhaseHiding, now)
		require.NoError(t, err)
		require.True(t, ok)

		first := now.Add(time.Minute)
		ok, err = store.AdvancePhase(ctx, g.ID, []models.Phase{models.PhaseHiding, models.PhaseSeeking}, models.PhaseSeeking, first)
		require.NoError(t, err)
		require.True(t, ok)

		ok, err = store.AdvancePhase(ctx, g.ID, []models.Phase{models.PhaseHiding, models.PhaseSeeking}, models.PhaseSeeking, first.Add(time.Hour))
		require.NoError(t, err)
		require.True(t, ok)

		got, err := store.GetGame(ctx, g.ID)
		require.NoError(t, err)
		assert.Equal(t, models.PhaseSeeking, got.Phase)
		require.NotNil(t, got.SeekingStartedAt)
		assert.True(t, first.Equal(*got.SeekingStartedAt), "seeking timer must not be reset")
		require.NotNil(t, got.HidingStartedAt)
	})

	t.Run("CommitWinner_OnlyWhileSeeking", func(t *testing.T) {
		g := newGame(t)
		ok, err := store.CommitWinner(ctx, g.ID, uuid.NewString(), now)
		require.NoError(t, err)
		assert.False(t, ok, "lobby cannot complete")

		ok, err = store.AdvancePhase(ctx, g.ID, []models.Phase{models.PhaseLobby}, models.PhaseHiding, now)
		require.NoError(t, err)
		require.True(t, ok)
		ok, err = store.CommitWinner(ctx, g.ID, uuid.NewString(), now)
		require.NoError(t, err)
		assert.False(t, ok, "hiding cannot skip seeking")

		got, err := store.GetGame(ctx, g.ID)
		require.NoError(t, err)
		assert.Equal(t, models.PhaseHiding, got.Phase)
		assert.Nil(t, got.WinnerID)
	})

	t.Run("CommitWinner_ExactlyOnceUnderContention", func(t *testing.T) {
		g := seekingGame(t)
		contenders := make([]string, 16)
		for i := range contenders {
			contenders[i] = uuid.NewString()
		}

		var wins int32
		var winner atomic.Value
		var wg sync.WaitGroup
		for _, id := range contenders {
			wg.Add(1)
			go func(id string) {
				defer wg.Done()
				ok, err := store.CommitWinner(ctx, g.ID, id, now)
				assert.NoError(t, err)
				if ok {
					atomic.AddInt32(&wins, 1)
					winner.Store(id)
				}
			}(id)
		}
		wg.Wait()

		assert.Equal(t, int32(1), wins)
		got, err := store.GetGame(ctx, g.ID)
		require.NoError(t, err)
		require.NotNil(t, got.WinnerID)
		assert.Equal(t, winner.Load(), *got.WinnerID)
		assert.Equal(t, models.PhaseCompleted, got.Phase)
		assert.NotNil(t, got.FinishedAt)

		require.NoError(t, store.EnsureCompleted(ctx, g.ID, now))
	})

	t.Run("Players_WithdrawAndLockInOnce", func(t *testing.T) {
		g := newGame(t)
		a := newPlayer(t, g.ID, "alice", 0)
		newPlayer(t, g.ID, "bob", time.Second)

		n, err := store.CountPlayers(ctx, g.ID, true)
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)

		ok, err := store.WithdrawPlayer(ctx, g.ID, a.ID, now)
		require.NoError(t, err)
		assert.True(t, ok)
		ok, err = store.WithdrawPlayer(ctx, g.ID, a.ID, now)
		require.NoError(t, err)
		assert.False(t, ok)

		n, err = store.CountPlayers(ctx, g.ID, true)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
		n, err = store.CountPlayers(ctx, g.ID, false)
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)

		photo := models.Photo{ID: uuid.NewString(), URL: "https://img/1.jpg", CreatedAt: now}
		require.NoError(t, store.CreatePhoto(ctx, photo))
		other := models.Photo{ID: uuid.NewString(), URL: "https://img/2.jpg", CreatedAt: now}
		require.NoError(t, store.CreatePhoto(ctx, other))

		ok, err = store.LockInHidingPhoto(ctx, g.ID, a.ID, photo.ID)
		require.NoError(t, err)
		assert.True(t, ok)
		ok, err = store.LockInHidingPhoto(ctx, g.ID, a.ID, other.ID)
		require.NoError(t, err)
		assert.False(t, ok)

		got, err := store.GetPlayer(ctx, g.ID, a.ID)
		require.NoError(t, err)
		assert.Equal(t, photo.ID, *got.HidingPhotoID)

		_, err = store.GetPlayer(ctx, uuid.NewString(), a.ID)
		assert.ErrorIs(t, err, ErrRecordNotFound, "player lookups are scoped to their game")

		players, err := store.ListPlayers(ctx, g.ID)
		require.NoError(t, err)
		require.Len(t, players, 2)
		assert.Equal(t, "alice", players[0].Name)
	})

	t.Run("Landmarks", func(t *testing.T) {
		g := newGame(t)
		p := newPlayer(t, g.ID, "carol", 0)
		photo := models.Photo{ID: uuid.NewString(), URL: "https://img/tree.jpg", CreatedAt: now}
		require.NoError(t, store.CreatePhoto(ctx, photo))

		require.NoError(t, store.SetLandmark(ctx, g.ID, p.ID, models.LandmarkPath, nil))
		require.NoError(t, store.SetLandmark(ctx, g.ID, p.ID, models.LandmarkTree, nil))
		require.NoError(t, store.SetLandmark(ctx, g.ID, p.ID, models.LandmarkTree, &photo.ID))

		got, err := store.GetPlayer(ctx, g.ID, p.ID)
		require.NoError(t, err)
		assert.Equal(t, []models.LandmarkType{models.LandmarkPath}, got.UnavailableLandmarks)
		require.NotNil(t, got.TreePhotoID)
		assert.Equal(t, photo.ID, *got.TreePhotoID)
	})

	t.Run("Submissions_OneSuccessPerPair", func(t *testing.T) {
		g := newGame(t)
		seeker := newPlayer(t, g.ID, "s", 0)
		hider := newPlayer(t, g.ID, "h", time.Second)

		first := models.Submission{ID: uuid.NewString(), GameID: g.ID, SeekerID: seeker.ID, HiderID: hider.ID, Status: models.SubmissionPending, CreatedAt: now}
		second := first
		second.ID = uuid.NewString()
		require.NoError(t, store.CreateSubmission(ctx, first))
		require.NoError(t, store.CreateSubmission(ctx, second))

		require.NoError(t, store.SetSubmissionStatus(ctx, first.ID, models.SubmissionSuccess))
		err := store.SetSubmissionStatus(ctx, second.ID, models.SubmissionSuccess)
		assert.ErrorIs(t, err, ErrConflict)
		require.NoError(t, store.SetSubmissionStatus(ctx, second.ID, models.SubmissionFail))

		has, err := store.HasSuccessfulSubmission(ctx, g.ID, seeker.ID, hider.ID)
		require.NoError(t, err)
		assert.True(t, has)

		found, err := store.FoundHiderIDs(ctx, g.ID, seeker.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{hider.ID}, found)

		subs, err := store.ListSubmissions(ctx, g.ID)
		require.NoError(t, err)
		assert.Len(t, subs, 2)
	})

	t.Run("Submissions_UnknownPhotoRecorded", func(t *testing.T) {
		g := newGame(t)
		seeker := newPlayer(t, g.ID, "s", 0)
		hider := newPlayer(t, g.ID, "h", time.Second)
		missing := uuid.NewString()

		sub := models.Submission{ID: uuid.NewString(), GameID: g.ID, SeekerID: seeker.ID, HiderID: hider.ID, PhotoID: &missing, Status: models.SubmissionPending, CreatedAt: now}
		require.NoError(t, store.CreateSubmission(ctx, sub))
		require.NoError(t, store.SetSubmissionStatus(ctx, sub.ID, models.SubmissionFail))

		subs, err := store.ListSubmissions(ctx, g.ID)
		require.NoError(t, err)
		require.Len(t, subs, 1)
		require.NotNil(t, subs[0].PhotoID)
		assert.Equal(t, missing, *subs[0].PhotoID)
		assert.Equal(t, models.SubmissionFail, subs[0].Status)
	})

	t.Run("Submissions_EqualTimestampsOrderedByID", func(t *testing.T) {
		g := newGame(t)
		seeker := newPlayer(t, g.ID, "s", 0)
		hider := newPlayer(t, g.ID, "h", time.Second)

		ids := []string{
			"ffffffff-0000-4000-8000-000000000000",
			"00000000-0000-4000-8000-000000000000",
			"88888888-0000-4000-8000-000000000000",
		}
		for _, id := range ids {
			require.NoError(t, store.CreateSubmission(ctx, models.Submission{
				ID: id, GameID: g.ID, SeekerID: seeker.ID, HiderID: hider.ID,
				Status: models.SubmissionFail, CreatedAt: now,
			}))
		}

		subs, err := store.ListSubmissions(ctx, g.ID)
		require.NoError(t, err)
		require.Len(t, subs, 3)
		assert.Equal(t, ids[1], subs[0].ID)
		assert.Equal(t, ids[2], subs[1].ID)
		assert.Equal(t, ids[0], subs[2].ID)
	})

	t.Run("Hints_OneCastingPerPair", func(t *testing.T) {
		g := newGame(t)
		seeker := newPlayer(t, g.ID, "s", 0)
		hider := newPlayer(t, g.ID, "h", time.Second)

		hint := models.Hint{
			ID: uuid.NewString(), GameID: g.ID, SeekerID: seeker.ID, HiderID: hider.ID,
			Type: models.HintRadar, Note: models.RadarNote{Lat: 1, Lng: 2, DistanceMeters: 100},
			CastingSeconds: 60, Status: models.HintCasting, CreatedAt: now,
		}
		require.NoError(t, store.CreateHint(ctx, hint))

		dup := hint
		dup.ID = uuid.NewString()
		assert.ErrorIs(t, store.CreateHint(ctx, dup), ErrConflict)

		casting, err := store.HasCastingHint(ctx, g.ID, seeker.ID, hider.ID)
		require.NoError(t, err)
		assert.True(t, casting)

		done := models.RadarNote{Lat: 1, Lng: 2, DistanceMeters: 100, Result: &models.RadarResult{WithinDistance: true, ActualDistance: 40}}
		ok, err := store.FinishHint(ctx, hint.ID, models.HintCompleted, done, &now)
		require.NoError(t, err)
		assert.True(t, ok)
		ok, err = store.FinishHint(ctx, hint.ID, models.HintCancelled, done, nil)
		require.NoError(t, err)
		assert.False(t, ok, "terminal hints stay terminal")

		got, err := store.GetHint(ctx, g.ID, hint.ID)
		require.NoError(t, err)
		assert.Equal(t, models.HintCompleted, got.Status)
		assert.Equal(t, done, got.Note)

		require.NoError(t, store.CreateHint(ctx, dup), "a new cast is allowed once the previous one finished")

		hints, err := store.ListHints(ctx, g.ID, seeker.ID)
		require.NoError(t, err)
		assert.Len(t, hints, 2)
		hints, err = store.ListHints(ctx, g.ID, hider.ID)
		require.NoError(t, err)
		assert.Empty(t, hints)
	})

	t.Run("LatestPings", func(t *testing.T) {
		g := newGame(t)
		a := newPlayer(t, g.ID, "a", 0)
		b := newPlayer(t, g.ID, "b", time.Second)

		for i, p := range []struct {
			player string
			lat    float64
		}{{a.ID, 1}, {a.ID, 2}, {b.ID, 3}} {
			require.NoError(t, store.CreatePing(ctx, models.Ping{
				ID: uuid.NewString(), GameID: g.ID, PlayerID: p.player, Lat: p.lat, Lng: 0,
				CreatedAt: now.Add(time.Duration(i) * time.Second),
			}))
		}

		pings, err := store.LatestPings(ctx, g.ID)
		require.NoError(t, err)
		require.Len(t, pings, 2)
		byPlayer := map[string]float64{}
		for _, p := range pings {
			byPlayer[p.PlayerID] = p.Lat
		}
		assert.Equal(t, 2.0, byPlayer[a.ID])
		assert.Equal(t, 3.0, byPlayer[b.ID])
	})
}
