// models/models.go
package models

import (
	"time"

	"github.com/wfunc/hideseek/geo"
)

// Phase is the lifecycle position of a game.
type Phase string

const (
	PhaseLobby     Phase = "lobby"
	PhaseHiding    Phase = "hiding"
	PhaseSeeking   Phase = "seeking"
	PhaseCompleted Phase = "completed"
)

// Valid reports whether p is one of the known phases.
func (p Phase) Valid() bool {
	switch p {
	case PhaseLobby, PhaseHiding, PhaseSeeking, PhaseCompleted:
		return true
	}
	return false
}

// Zone is the circular play area.
type Zone struct {
	Lat          float64 `json:"lat"`
	Lng          float64 `json:"lng"`
	RadiusMeters float64 `json:"radiusMeters"`
}

// Center returns the zone center as a point.
func (z Zone) Center() geo.Point {
	return geo.Point{Lat: z.Lat, Lng: z.Lng}
}

// Game is one hide-and-seek session.
type Game struct {
	ID    string  `json:"id"`
	Name  *string `json:"name,omitempty"`
	Phase Phase   `json:"phase"`
	Zone  *Zone   `json:"zone,omitempty"`

	// Stored settings; nil means the default applies.
	HidingDurationSeconds      *int     `json:"hidingDurationSeconds,omitempty"`
	PowerupCastingSeconds      *int     `json:"powerupCastingSeconds,omitempty"`
	ThermometerThresholdMeters *float64 `json:"thermometerThresholdMeters,omitempty"`

	HidingStartedAt  *time.Time `json:"hidingStartedAt,omitempty"`
	SeekingStartedAt *time.Time `json:"seekingStartedAt,omitempty"`
	WinnerID         *string    `json:"winnerId,omitempty"`
	FinishedAt       *time.Time `json:"finishedAt,omitempty"`
	CreatedAt        time.Time  `json:"createdAt"`
}

// Completed reports whether the game has ended, either by phase or by a recorded winner.
func (g Game) Completed() bool {
	return g.Phase == PhaseCompleted || g.WinnerID != nil
}

// LandmarkType names one of the optional secondary photos a hider can provide.
type LandmarkType string

const (
	LandmarkTree     LandmarkType = "tree"
	LandmarkBuilding LandmarkType = "building"
	LandmarkPath     LandmarkType = "path"
)

// LandmarkTypes lists every landmark slot in display order.
var LandmarkTypes = []LandmarkType{LandmarkTree, LandmarkBuilding, LandmarkPath}

func (t LandmarkType) Valid() bool {
	switch t {
	case LandmarkTree, LandmarkBuilding, LandmarkPath:
		return true
	}
	return false
}

// Player is a participant of exactly one game.
type Player struct {
	ID            string  `json:"id"`
	GameID        string  `json:"gameId"`
	Name          string  `json:"name"`
	HidingPhotoID *string `json:"hidingPhotoId,omitempty"`

	TreePhotoID     *string `json:"treePhotoId,omitempty"`
	BuildingPhotoID *string `json:"buildingPhotoId,omitempty"`
	PathPhotoID     *string `json:"pathPhotoId,omitempty"`

	UnavailableLandmarks []LandmarkType `json:"unavailableLandmarks"`
	WithdrawnAt          *time.Time     `json:"withdrawnAt,omitempty"`
	CreatedAt            time.Time      `json:"createdAt"`
}

// Active reports whether the player still counts for win computation.
func (p Player) Active() bool {
	return p.WithdrawnAt == nil
}

// LockedIn reports whether the player has fixed their hiding photo.
func (p Player) LockedIn() bool {
	return p.HidingPhotoID != nil
}

// LandmarkPhotoID returns the photo stored in the given landmark slot, if any.
func (p Player) LandmarkPhotoID(t LandmarkType) *string {
	switch t {
	case LandmarkTree:
		return p.TreePhotoID
	case LandmarkBuilding:
		return p.BuildingPhotoID
	case LandmarkPath:
		return p.PathPhotoID
	}
	return nil
}

// LandmarkUnavailable reports whether the player declared they have no photo of type t.
func (p Player) LandmarkUnavailable(t LandmarkType) bool {
	for _, u := range p.UnavailableLandmarks {
		if u == t {
			return true
		}
	}
	return false
}

// Photo is an uploaded image together with where the device said it was taken.
type Photo struct {
	ID             string    `json:"id"`
	URL            string    `json:"url"`
	StoragePath    string    `json:"storagePath"`
	Lat            *float64  `json:"lat,omitempty"`
	Lng            *float64  `json:"lng,omitempty"`
	AccuracyMeters *float64  `json:"accuracyMeters,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}

// Position returns the capture location, or false when the device did not report one.
func (p Photo) Position() (geo.Point, bool) {
	if p.Lat == nil || p.Lng == nil {
		return geo.Point{}, false
	}
	pt := geo.Point{Lat: *p.Lat, Lng: *p.Lng}
	return pt, geo.ValidPoint(pt)
}

// SubmissionStatus is the verdict of a submission.
type SubmissionStatus string

const (
	SubmissionPending SubmissionStatus = "pending"
	SubmissionSuccess SubmissionStatus = "success"
	SubmissionFail    SubmissionStatus = "fail"
)

// Submission is one attempt by a seeker to prove they found a hider.
type Submission struct {
	ID        string           `json:"id"`
	GameID    string           `json:"gameId"`
	SeekerID  string           `json:"seekerId"`
	HiderID   string           `json:"hiderId"`
	PhotoID   *string          `json:"photoId,omitempty"`
	Status    SubmissionStatus `json:"status"`
	CreatedAt time.Time        `json:"createdAt"`
}

// Ping is a location breadcrumb.
type Ping struct {
	ID        string    `json:"id"`
	GameID    string    `json:"gameId"`
	PlayerID  string    `json:"playerId"`
	Lat       float64   `json:"lat"`
	Lng       float64   `json:"lng"`
	CreatedAt time.Time `json:"createdAt"`
}
