// models/gorm_models.go
package models

import (
	"time"

	"github.com/lib/pq"
	"gorm.io/datatypes"
)

// GormGame 对局表
type GormGame struct {
	ID                         string  `gorm:"type:uuid;primaryKey"`
	Name                       *string `gorm:"size:80"`
	Phase                      string  `gorm:"size:16;not null;default:lobby"`
	ZoneLat                    *float64
	ZoneLng                    *float64
	ZoneRadiusMeters           *float64
	HidingDurationSeconds      *int
	PowerupCastingSeconds      *int
	ThermometerThresholdMeters *float64
	HidingStartedAt            *time.Time
	SeekingStartedAt           *time.Time
	WinnerID                   *string `gorm:"type:uuid"`
	FinishedAt                 *time.Time
	CreatedAt                  time.Time
}

func (GormGame) TableName() string { return "games" }

// GormPlayer 玩家表
type GormPlayer struct {
	ID                   string         `gorm:"type:uuid;primaryKey"`
	GameID               string         `gorm:"type:uuid;index;not null"`
	Name                 string         `gorm:"size:40;not null"`
	HidingPhotoID        *string        `gorm:"type:uuid"`
	TreePhotoID          *string        `gorm:"type:uuid"`
	BuildingPhotoID      *string        `gorm:"type:uuid"`
	PathPhotoID          *string        `gorm:"type:uuid"`
	UnavailableLandmarks pq.StringArray `gorm:"type:text[];not null;default:'{}'"`
	WithdrawnAt          *time.Time
	CreatedAt            time.Time
}

func (GormPlayer) TableName() string { return "players" }

// GormPhoto 照片表
type GormPhoto struct {
	ID             string `gorm:"type:uuid;primaryKey"`
	URL            string `gorm:"not null"`
	StoragePath    string
	Lat            *float64
	Lng            *float64
	AccuracyMeters *float64
	CreatedAt      time.Time
}

func (GormPhoto) TableName() string { return "photos" }

// GormSubmission 提交表
type GormSubmission struct {
	ID        string  `gorm:"type:uuid;primaryKey"`
	GameID    string  `gorm:"type:uuid;index;not null"`
	SeekerID  string  `gorm:"type:uuid;not null"`
	HiderID   string  `gorm:"type:uuid;not null"`
	PhotoID   *string `gorm:"type:uuid"`
	Status    string  `gorm:"size:16;not null"`
	CreatedAt time.Time
}

func (GormSubmission) TableName() string { return "submissions" }

// GormHint 道具表
type GormHint struct {
	ID             string         `gorm:"type:uuid;primaryKey"`
	GameID         string         `gorm:"type:uuid;index;not null"`
	SeekerID       string         `gorm:"type:uuid;not null"`
	HiderID        string         `gorm:"type:uuid;not null"`
	Type           string         `gorm:"size:16;not null"`
	Note           datatypes.JSON `gorm:"type:jsonb;not null"`
	CastingSeconds int            `gorm:"not null"`
	Status         string         `gorm:"size:16;not null"`
	CreatedAt      time.Time
	CompletedAt    *time.Time
}

func (GormHint) TableName() string { return "hints" }

// GormPing 位置轨迹表
type GormPing struct {
	ID        string  `gorm:"type:uuid;primaryKey"`
	GameID    string  `gorm:"type:uuid;not null"`
	PlayerID  string  `gorm:"type:uuid;not null"`
	Lat       float64 `gorm:"not null"`
	Lng       float64 `gorm:"not null"`
	CreatedAt time.Time
}

func (GormPing) TableName() string { return "pings" }

// --- row <-> domain conversions ---

func NewGormGame(g Game) GormGame {
	row := GormGame{
		ID:                         g.ID,
		Name:                       g.Name,
		Phase:                      string(g.Phase),
		HidingDurationSeconds:      g.HidingDurationSeconds,
		PowerupCastingSeconds:      g.PowerupCastingSeconds,
		ThermometerThresholdMeters: g.ThermometerThresholdMeters,
		HidingStartedAt:            g.HidingStartedAt,
		SeekingStartedAt:           g.SeekingStartedAt,
		WinnerID:                   g.WinnerID,
		FinishedAt:                 g.FinishedAt,
		CreatedAt:                  g.CreatedAt,
	}
	if g.Zone != nil {
		lat, lng, r := g.Zone.Lat, g.Zone.Lng, g.Zone.RadiusMeters
		row.ZoneLat, row.ZoneLng, row.ZoneRadiusMeters = &lat, &lng, &r
	}
	return row
}

func (r GormGame) ToGame() Game {
	g := Game{
		ID:                         r.ID,
		Name:                       r.Name,
		Phase:                      Phase(r.Phase),
		HidingDurationSeconds:      r.HidingDurationSeconds,
		PowerupCastingSeconds:      r.PowerupCastingSeconds,
		ThermometerThresholdMeters: r.ThermometerThresholdMeters,
		HidingStartedAt:            r.HidingStartedAt,
		SeekingStartedAt:           r.SeekingStartedAt,
		WinnerID:                   r.WinnerID,
		FinishedAt:                 r.FinishedAt,
		CreatedAt:                  r.CreatedAt,
	}
	// A zone only counts as set when all three columns are.
	if r.ZoneLat != nil && r.ZoneLng != nil && r.ZoneRadiusMeters != nil {
		g.Zone = &Zone{Lat: *r.ZoneLat, Lng: *r.ZoneLng, RadiusMeters: *r.ZoneRadiusMeters}
	}
	return g
}

func NewGormPlayer(p Player) GormPlayer {
	unavailable := make(pq.StringArray, 0, len(p.UnavailableLandmarks))
	for _, t := range p.UnavailableLandmarks {
		unavailable = append(unavailable, string(t))
	}
	return GormPlayer{
		ID:                   p.ID,
		GameID:               p.GameID,
		Name:                 p.Name,
		HidingPhotoID:        p.HidingPhotoID,
		TreePhotoID:          p.TreePhotoID,
		BuildingPhotoID:      p.BuildingPhotoID,
		PathPhotoID:          p.PathPhotoID,
		UnavailableLandmarks: unavailable,
		WithdrawnAt:          p.WithdrawnAt,
		CreatedAt:            p.CreatedAt,
	}
}

func (r GormPlayer) ToPlayer() Player {
	unavailable := make([]LandmarkType, 0, len(r.UnavailableLandmarks))
	for _, t := range r.UnavailableLandmarks {
		unavailable = append(unavailable, LandmarkType(t))
	}
	return Player{
		ID:                   r.ID,
		GameID:               r.GameID,
		Name:                 r.Name,
		HidingPhotoID:        r.HidingPhotoID,
		TreePhotoID:          r.TreePhotoID,
		BuildingPhotoID:      r.BuildingPhotoID,
		PathPhotoID:          r.PathPhotoID,
		UnavailableLandmarks: unavailable,
		WithdrawnAt:          r.WithdrawnAt,
		CreatedAt:            r.CreatedAt,
	}
}

func NewGormPhoto(p Photo) GormPhoto {
	return GormPhoto{
		ID:             p.ID,
		URL:            p.URL,
		StoragePath:    p.StoragePath,
		Lat:            p.Lat,
		Lng:            p.Lng,
		AccuracyMeters: p.AccuracyMeters,
		CreatedAt:      p.CreatedAt,
	}
}

func (r GormPhoto) ToPhoto() Photo {
	return Photo{
		ID:             r.ID,
		URL:            r.URL,
		StoragePath:    r.StoragePath,
		Lat:            r.Lat,
		Lng:            r.Lng,
		AccuracyMeters: r.AccuracyMeters,
		CreatedAt:      r.CreatedAt,
	}
}

func NewGormSubmission(s Submission) GormSubmission {
	return GormSubmission{
		ID:        s.ID,
		GameID:    s.GameID,
		SeekerID:  s.SeekerID,
		HiderID:   s.HiderID,
		PhotoID:   s.PhotoID,
		Status:    string(s.Status),
		CreatedAt: s.CreatedAt,
	}
}

func (r GormSubmission) ToSubmission() Submission {
	return Submission{
		ID:        r.ID,
		GameID:    r.GameID,
		SeekerID:  r.SeekerID,
		HiderID:   r.HiderID,
		PhotoID:   r.PhotoID,
		Status:    SubmissionStatus(r.Status),
		CreatedAt: r.CreatedAt,
	}
}

func NewGormHint(h Hint) (GormHint, error) {
	note, err := EncodeNote(h.Note)
	if err != nil {
		return GormHint{}, err
	}
	return GormHint{
		ID:             h.ID,
		GameID:         h.GameID,
		SeekerID:       h.SeekerID,
		HiderID:        h.HiderID,
		Type:           string(h.Type),
		Note:           datatypes.JSON(note),
		CastingSeconds: h.CastingSeconds,
		Status:         string(h.Status),
		CreatedAt:      h.CreatedAt,
		CompletedAt:    h.CompletedAt,
	}, nil
}

func (r GormHint) ToHint() (Hint, error) {
	note, err := DecodeNote(HintType(r.Type), r.Note)
	if err != nil {
		return Hint{}, err
	}
	return Hint{
		ID:             r.ID,
		GameID:         r.GameID,
		SeekerID:       r.SeekerID,
		HiderID:        r.HiderID,
		Type:           HintType(r.Type),
		Note:           note,
		CastingSeconds: r.CastingSeconds,
		Status:         HintStatus(r.Status),
		CreatedAt:      r.CreatedAt,
		CompletedAt:    r.CompletedAt,
	}, nil
}

func NewGormPing(p Ping) GormPing {
	return GormPing{
		ID:        p.ID,
		GameID:    p.GameID,
		PlayerID:  p.PlayerID,
		Lat:       p.Lat,
		Lng:       p.Lng,
		CreatedAt: p.CreatedAt,
	}
}

func (r GormPing) ToPing() Ping {
	return Ping{
		ID:        r.ID,
		GameID:    r.GameID,
		PlayerID:  r.PlayerID,
		Lat:       r.Lat,
		Lng:       r.Lng,
		CreatedAt: r.CreatedAt,
	}
}
