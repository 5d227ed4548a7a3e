package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// HintType is the kind of power-up a seeker casts.
type HintType string

const (
	HintRadar       HintType = "radar"
	HintThermometer HintType = "thermometer"
	HintPhoto       HintType = "photo"
)

func (t HintType) Valid() bool {
	switch t {
	case HintRadar, HintThermometer, HintPhoto:
		return true
	}
	return false
}

// HintStatus is the lifecycle position of a hint. Completed and cancelled are terminal.
type HintStatus string

const (
	HintCasting   HintStatus = "casting"
	HintCompleted HintStatus = "completed"
	HintCancelled HintStatus = "cancelled"
)

// Hint is a power-up cast by a seeker against one hider.
type Hint struct {
	ID             string     `json:"id"`
	GameID         string     `json:"gameId"`
	SeekerID       string     `json:"seekerId"`
	HiderID        string     `json:"hiderId"`
	Type           HintType   `json:"type"`
	Note           HintNote   `json:"note"`
	CastingSeconds int        `json:"castingSeconds"`
	Status         HintStatus `json:"status"`
	CreatedAt      time.Time  `json:"createdAt"`
	CompletedAt    *time.Time `json:"completedAt,omitempty"`
}

// HintNote is the type-specific payload of a hint. Each hint type has exactly one note variant.
type HintNote interface {
	HintType() HintType
}

// RadarNote records where the radar was cast and the radius asked about.
// Lat/Lng are the authoritative cast-time position.
type RadarNote struct {
	Lat            float64      `json:"lat"`
	Lng            float64      `json:"lng"`
	DistanceMeters float64      `json:"distanceMeters"`
	Result         *RadarResult `json:"result,omitempty"`
}

type RadarResult struct {
	WithinDistance bool `json:"withinDistance"`
	ActualDistance int  `json:"actualDistance"`
}

func (RadarNote) HintType() HintType { return HintRadar }

// ThermometerNote records where the walk started and how far it has to go.
type ThermometerNote struct {
	StartLat        float64      `json:"startLat"`
	StartLng        float64      `json:"startLng"`
	ThresholdMeters float64      `json:"thresholdMeters"`
	EndLat          *float64     `json:"endLat,omitempty"`
	EndLng          *float64     `json:"endLng,omitempty"`
	Result          *Temperature `json:"result,omitempty"`
}

func (ThermometerNote) HintType() HintType { return HintThermometer }

// Temperature is the thermometer classification.
type Temperature string

const (
	Hotter Temperature = "hotter"
	Colder Temperature = "colder"
	Same   Temperature = "same"
)

// PhotoNote records which landmark photo the seeker wants unlocked.
type PhotoNote struct {
	PhotoType LandmarkType `json:"photoType"`
	PhotoID   *string      `json:"photoId,omitempty"`
	Unlocked  *bool        `json:"unlocked,omitempty"`
}

func (PhotoNote) HintType() HintType { return HintPhoto }

// EncodeNote serialises a note for storage.
func EncodeNote(n HintNote) ([]byte, error) {
	if n == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(n)
}

// DecodeNote parses a stored note into the variant belonging to t.
func DecodeNote(t HintType, raw []byte) (HintNote, error) {
	if len(raw) == 0 {
		raw = []byte("{}")
	}
	switch t {
	case HintRadar:
		var n RadarNote
		if err := json.Unmarshal(raw, &n); err != nil {
			return nil, err
		}
		return n, nil
	case HintThermometer:
		var n ThermometerNote
		if err := json.Unmarshal(raw, &n); err != nil {
			return nil, err
		}
		return n, nil
	case HintPhoto:
		var n PhotoNote
		if err := json.Unmarshal(raw, &n); err != nil {
			return nil, err
		}
		return n, nil
	}
	return nil, fmt.Errorf("unknown hint type %q", t)
}
