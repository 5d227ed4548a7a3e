package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wfunc/hideseek/models"
)

func TestCastHint_OneCastingPerPair(t *testing.T) {
	f := newFixture(t)
	game, players := f.seeking(t, "A", "B", "C")
	seeker, hider := players[1], players[0]

	radar := CastHintRequest{SeekerID: seeker.ID, HiderID: hider.ID, Type: models.HintRadar,
		Note: models.RadarNote{Lat: 0, Lng: 0.001, DistanceMeters: 200}}
	hint, err := f.svc.CastHint(f.ctx, game.ID, seeker.ID, radar)
	require.NoError(t, err)
	assert.Equal(t, models.HintCasting, hint.Status)
	assert.Equal(t, 60, hint.CastingSeconds)

	_, err = f.svc.CastHint(f.ctx, game.ID, seeker.ID, radar)
	requireKind(t, err, KindPrecondition)

	// Another hider is a different pair.
	radar.HiderID = players[2].ID
	_, err = f.svc.CastHint(f.ctx, game.ID, seeker.ID, radar)
	require.NoError(t, err)

	_, err = f.svc.CancelHint(f.ctx, game.ID, hint.ID, seeker.ID)
	require.NoError(t, err)
	radar.HiderID = hider.ID
	_, err = f.svc.CastHint(f.ctx, game.ID, seeker.ID, radar)
	require.NoError(t, err, "the pair is free again once the earlier hint is terminal")
}

func TestCastHint_Validation(t *testing.T) {
	f := newFixture(t)
	game, players := f.seeking(t, "A", "B")
	seeker, hider := players[1], players[0]

	cases := map[string]CastHintRequest{
		"unknown type":      {SeekerID: seeker.ID, HiderID: hider.ID, Type: "sonar", Note: models.RadarNote{DistanceMeters: 10}},
		"mismatched note":   {SeekerID: seeker.ID, HiderID: hider.ID, Type: models.HintRadar, Note: models.PhotoNote{PhotoType: models.LandmarkTree}},
		"missing note":      {SeekerID: seeker.ID, HiderID: hider.ID, Type: models.HintRadar},
		"zero radius":       {SeekerID: seeker.ID, HiderID: hider.ID, Type: models.HintRadar, Note: models.RadarNote{}},
		"self target":       {SeekerID: seeker.ID, HiderID: seeker.ID, Type: models.HintRadar, Note: models.RadarNote{DistanceMeters: 10}},
		"bad landmark":      {SeekerID: seeker.ID, HiderID: hider.ID, Type: models.HintPhoto, Note: models.PhotoNote{PhotoType: "lake"}},
		"tiny threshold":    {SeekerID: seeker.ID, HiderID: hider.ID, Type: models.HintThermometer, Note: models.ThermometerNote{ThresholdMeters: 1}},
		"invalid start lat": {SeekerID: seeker.ID, HiderID: hider.ID, Type: models.HintThermometer, Note: models.ThermometerNote{StartLat: 120}},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.svc.CastHint(f.ctx, game.ID, seeker.ID, req)
			requireKind(t, err, KindValidation)
		})
	}

	_, err := f.svc.CastHint(f.ctx, game.ID, hider.ID, CastHintRequest{SeekerID: seeker.ID, HiderID: hider.ID,
		Type: models.HintRadar, Note: models.RadarNote{DistanceMeters: 10}})
	requireKind(t, err, KindAuthorization)
}

func TestCompleteHint_RadarUsesCastPosition(t *testing.T) {
	f := newFixture(t)
	game, players := f.seeking(t, "A", "B", "C")
	seeker, hider := players[1], players[0]

	hint, err := f.svc.CastHint(f.ctx, game.ID, seeker.ID, CastHintRequest{
		SeekerID: seeker.ID, HiderID: hider.ID, Type: models.HintRadar,
		Note: models.RadarNote{Lat: 0, Lng: 0.001, DistanceMeters: 200,
			Result: &models.RadarResult{WithinDistance: false, ActualDistance: 9999}},
	})
	require.NoError(t, err)
	assert.Nil(t, hint.Note.(models.RadarNote).Result, "callers cannot pre-fill results")

	// The supplied position sits on the hider and must be ignored.
	done, err := f.svc.CompleteHint(f.ctx, game.ID, hint.ID, seeker.ID, CompleteHintRequest{Lat: ptr(0.0), Lng: ptr(0.0)})
	require.NoError(t, err)
	assert.Equal(t, models.HintCompleted, done.Status)
	require.NotNil(t, done.CompletedAt)

	note := done.Note.(models.RadarNote)
	assert.Equal(t, 0.001, note.Lng)
	assert.Equal(t, 200.0, note.DistanceMeters)
	require.NotNil(t, note.Result)
	assert.True(t, note.Result.WithinDistance)
	assert.Equal(t, 111, note.Result.ActualDistance)

	_, err = f.svc.CompleteHint(f.ctx, game.ID, hint.ID, seeker.ID, CompleteHintRequest{})
	requireKind(t, err, KindPrecondition)

	stored, err := f.svc.ListHints(f.ctx, game.ID, seeker.ID)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, note, stored[0].Note)
}

func TestThermometer(t *testing.T) {
	f := newFixture(t)
	game, players := f.seeking(t, "A", "B", "C")
	seeker, hider := players[1], players[0]

	// Start ~1.1 km east of the hider at (0,0); the game default threshold of 50 m applies.
	hint, err := f.svc.CastHint(f.ctx, game.ID, seeker.ID, CastHintRequest{
		SeekerID: seeker.ID, HiderID: hider.ID, Type: models.HintThermometer,
		Note: models.ThermometerNote{StartLat: 0, StartLng: 0.01},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, hint.CastingSeconds)
	assert.Equal(t, 50.0, hint.Note.(models.ThermometerNote).ThresholdMeters)

	reading, err := f.svc.ThermometerReading(f.ctx, game.ID, hint.ID, seeker.ID, 0, 0.0099)
	require.NoError(t, err)
	assert.Nil(t, reading.Result)
	assert.InDelta(t, 11.1, reading.MovedMeters, 0.5)

	reading, err = f.svc.ThermometerReading(f.ctx, game.ID, hint.ID, seeker.ID, 0, 0.009)
	require.NoError(t, err)
	require.NotNil(t, reading.Result)
	assert.Equal(t, models.Hotter, *reading.Result)

	// Readings compare against the start, not the previous reading.
	reading, err = f.svc.ThermometerReading(f.ctx, game.ID, hint.ID, seeker.ID, 0, 0.011)
	require.NoError(t, err)
	require.NotNil(t, reading.Result)
	assert.Equal(t, models.Colder, *reading.Result)

	// Walking north keeps the distance to the hider about the same.
	reading, err = f.svc.ThermometerReading(f.ctx, game.ID, hint.ID, seeker.ID, 0.0005, 0.01)
	require.NoError(t, err)
	require.NotNil(t, reading.Result)
	assert.Equal(t, models.Same, *reading.Result)

	_, err = f.svc.CompleteHint(f.ctx, game.ID, hint.ID, seeker.ID, CompleteHintRequest{Lat: ptr(0.0), Lng: ptr(0.00999)})
	requireKind(t, err, KindPrecondition)
	_, err = f.svc.CompleteHint(f.ctx, game.ID, hint.ID, seeker.ID, CompleteHintRequest{})
	requireKind(t, err, KindValidation)

	done, err := f.svc.CompleteHint(f.ctx, game.ID, hint.ID, seeker.ID, CompleteHintRequest{Lat: ptr(0.0), Lng: ptr(0.009)})
	require.NoError(t, err)
	note := done.Note.(models.ThermometerNote)
	assert.Equal(t, 0.01, note.StartLng)
	require.NotNil(t, note.EndLng)
	assert.Equal(t, 0.009, *note.EndLng)
	require.NotNil(t, note.Result)
	assert.Equal(t, models.Hotter, *note.Result)
}

func TestThermometerReading_WrongHintType(t *testing.T) {
	f := newFixture(t)
	game, players := f.seeking(t, "A", "B")
	hint, err := f.svc.CastHint(f.ctx, game.ID, players[1].ID, CastHintRequest{
		SeekerID: players[1].ID, HiderID: players[0].ID, Type: models.HintRadar,
		Note: models.RadarNote{DistanceMeters: 100},
	})
	require.NoError(t, err)

	_, err = f.svc.ThermometerReading(f.ctx, game.ID, hint.ID, players[1].ID, 0, 0)
	requireKind(t, err, KindValidation)
	_, err = f.svc.ThermometerReading(f.ctx, game.ID, hint.ID, players[0].ID, 0, 0)
	requireKind(t, err, KindAuthorization)
	_, err = f.svc.ThermometerReading(f.ctx, game.ID, "missing", players[1].ID, 0, 0)
	requireKind(t, err, KindNotFound)
}

func TestPhotoHint(t *testing.T) {
	f := newFixture(t)
	game, players := f.seeking(t, "A", "B")
	seeker, hider := players[1], players[0]

	tree := f.photo(t, 0, 0.0001, 5)
	_, err := f.svc.SetLandmark(f.ctx, game.ID, hider.ID, hider.ID, models.LandmarkTree, &tree.ID)
	require.NoError(t, err)
	_, err = f.svc.SetLandmark(f.ctx, game.ID, hider.ID, hider.ID, models.LandmarkPath, nil)
	require.NoError(t, err)

	_, err = f.svc.CastHint(f.ctx, game.ID, seeker.ID, CastHintRequest{
		SeekerID: seeker.ID, HiderID: hider.ID, Type: models.HintPhoto,
		Note: models.PhotoNote{PhotoType: models.LandmarkPath},
	})
	requireKind(t, err, KindPrecondition)

	hint, err := f.svc.CastHint(f.ctx, game.ID, seeker.ID, CastHintRequest{
		SeekerID: seeker.ID, HiderID: hider.ID, Type: models.HintPhoto,
		Note: models.PhotoNote{PhotoType: models.LandmarkTree, Unlocked: ptr(true)},
	})
	require.NoError(t, err)
	note := hint.Note.(models.PhotoNote)
	require.NotNil(t, note.PhotoID)
	assert.Equal(t, tree.ID, *note.PhotoID)
	assert.Nil(t, note.Unlocked)

	_, err = f.svc.CompleteHint(f.ctx, game.ID, hint.ID, seeker.ID, CompleteHintRequest{})
	requireKind(t, err, KindValidation)

	done, err := f.svc.CompleteHint(f.ctx, game.ID, hint.ID, seeker.ID, CompleteHintRequest{Unlocked: ptr(false)})
	require.NoError(t, err)
	note = done.Note.(models.PhotoNote)
	assert.Equal(t, models.LandmarkTree, note.PhotoType)
	assert.Equal(t, tree.ID, *note.PhotoID)
	require.NotNil(t, note.Unlocked)
	assert.False(t, *note.Unlocked)
}

func TestCancelHint_LeavesNote(t *testing.T) {
	f := newFixture(t)
	game, players := f.seeking(t, "A", "B")
	seeker, hider := players[1], players[0]

	hint, err := f.svc.CastHint(f.ctx, game.ID, seeker.ID, CastHintRequest{
		SeekerID: seeker.ID, HiderID: hider.ID, Type: models.HintRadar,
		Note: models.RadarNote{Lat: 0, Lng: 0.002, DistanceMeters: 50},
	})
	require.NoError(t, err)

	_, err = f.svc.CancelHint(f.ctx, game.ID, hint.ID, hider.ID)
	requireKind(t, err, KindAuthorization)

	cancelled, err := f.svc.CancelHint(f.ctx, game.ID, hint.ID, seeker.ID)
	require.NoError(t, err)
	assert.Equal(t, models.HintCancelled, cancelled.Status)
	assert.Nil(t, cancelled.CompletedAt)

	hints, err := f.svc.ListHints(f.ctx, game.ID, "")
	require.NoError(t, err)
	require.Len(t, hints, 1)
	assert.Equal(t, models.HintCancelled, hints[0].Status)
	assert.Equal(t, hint.Note, hints[0].Note)
	assert.Nil(t, hints[0].CompletedAt)

	_, err = f.svc.CancelHint(f.ctx, game.ID, hint.ID, seeker.ID)
	requireKind(t, err, KindPrecondition)
}

func TestCastHint_ConfiguredCastingDuration(t *testing.T) {
	f := newFixture(t)
	game, players := f.seeking(t, "A", "B")
	_, err := f.svc.UpdateGame(f.ctx, game.ID, UpdateGameRequest{PowerupCastingSeconds: ptr(15)})
	require.NoError(t, err)

	hint, err := f.svc.CastHint(f.ctx, game.ID, players[0].ID, CastHintRequest{
		SeekerID: players[0].ID, HiderID: players[1].ID, Type: models.HintPhoto,
		Note: models.PhotoNote{PhotoType: models.LandmarkBuilding},
	})
	require.NoError(t, err)
	assert.Equal(t, 15, hint.CastingSeconds)
	assert.Nil(t, hint.Note.(models.PhotoNote).PhotoID)
}
