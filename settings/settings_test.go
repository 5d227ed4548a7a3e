package settings

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wfunc/hideseek/models"
)

func ptr[T any](v T) *T { return &v }

func TestResolve(t *testing.T) {
	assert.Equal(t, 60, Resolve(nil, HidingDuration))
	assert.Equal(t, 60, Resolve(ptr(29), HidingDuration))
	assert.Equal(t, 30, Resolve(ptr(30), HidingDuration))
	assert.Equal(t, 86400, Resolve(ptr(86400), HidingDuration))
	assert.Equal(t, 60, Resolve(ptr(86401), HidingDuration))

	assert.Equal(t, 10, Resolve(ptr(10), PowerupCasting))
	assert.Equal(t, 60, Resolve(ptr(301), PowerupCasting))

	assert.Equal(t, 50.0, Resolve(nil, ThermometerThreshold))
	assert.Equal(t, 25.0, Resolve(ptr(25.0), ThermometerThreshold))
	assert.Equal(t, 50.0, Resolve(ptr(math.NaN()), ThermometerThreshold))
	assert.Equal(t, 50.0, Resolve(ptr(300.5), ThermometerThreshold))
}

func TestForGameAndCastingSeconds(t *testing.T) {
	g := models.Game{
		HidingDurationSeconds: ptr(600),
		PowerupCastingSeconds: ptr(5),
	}
	r := ForGame(g)
	assert.Equal(t, Resolved{HidingDurationSeconds: 600, PowerupCastingSeconds: 60, ThermometerThresholdMeters: 50}, r)

	assert.Equal(t, 60, CastingSeconds(models.HintRadar, r))
	assert.Equal(t, 60, CastingSeconds(models.HintPhoto, r))
	assert.Equal(t, 0, CastingSeconds(models.HintThermometer, r))
}
