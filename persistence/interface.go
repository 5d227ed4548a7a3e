// persistence/interface.go
package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/wfunc/hideseek/models"
)

// Store is the row store the game core runs on. Every conditional method reports whether
// its guard matched; callers must treat that result as the only arbiter of races.
type Store interface {
	// Games
	CreateGame(ctx context.Context, game models.Game) error
	GetGame(ctx context.Context, id string) (models.Game, error)
	UpdateGame(ctx context.Context, id string, upd GameUpdate) error
	// AdvancePhase moves the game to `to` only if its phase is one of `from`.
	// Entering hiding stamps hiding_started_at; entering seeking stamps seeking_started_at
	// only while it is still NULL.
	AdvancePhase(ctx context.Context, id string, from []models.Phase, to models.Phase, at time.Time) (bool, error)
	// CommitWinner sets winner, completed phase and finished_at only while winner_id IS NULL
	// and the game is seeking.
	CommitWinner(ctx context.Context, id, winnerID string, at time.Time) (bool, error)
	// EnsureCompleted repairs a game that has a winner but is not marked completed.
	EnsureCompleted(ctx context.Context, id string, at time.Time) error

	// Players
	CreatePlayer(ctx context.Context, player models.Player) error
	GetPlayer(ctx context.Context, gameID, playerID string) (models.Player, error)
	ListPlayers(ctx context.Context, gameID string) ([]models.Player, error)
	CountPlayers(ctx context.Context, gameID string, activeOnly bool) (int64, error)
	RenamePlayer(ctx context.Context, gameID, playerID, name string) error
	DeletePlayer(ctx context.Context, gameID, playerID string) error
	// WithdrawPlayer stamps withdrawn_at only while it is NULL.
	WithdrawPlayer(ctx context.Context, gameID, playerID string, at time.Time) (bool, error)
	// LockInHidingPhoto sets hiding_photo_id only while it is NULL.
	LockInHidingPhoto(ctx context.Context, gameID, playerID, photoID string) (bool, error)
	// SetLandmark stores photoID in the slot, or marks the slot unavailable when photoID is nil.
	SetLandmark(ctx context.Context, gameID, playerID string, landmark models.LandmarkType, photoID *string) error

	// Photos
	CreatePhoto(ctx context.Context, photo models.Photo) error
	GetPhoto(ctx context.Context, id string) (models.Photo, error)

	// Submissions
	CreateSubmission(ctx context.Context, sub models.Submission) error
	// SetSubmissionStatus returns ErrConflict when a second success for the same pair would exist.
	SetSubmissionStatus(ctx context.Context, id string, status models.SubmissionStatus) error
	HasSuccessfulSubmission(ctx context.Context, gameID, seekerID, hiderID string) (bool, error)
	// FoundHiderIDs returns the distinct hiders the seeker has a success against.
	FoundHiderIDs(ctx context.Context, gameID, seekerID string) ([]string, error)
	ListSubmissions(ctx context.Context, gameID string) ([]models.Submission, error)

	// Hints
	// CreateHint returns ErrConflict when the pair already has a casting hint.
	CreateHint(ctx context.Context, hint models.Hint) error
	GetHint(ctx context.Context, gameID, hintID string) (models.Hint, error)
	HasCastingHint(ctx context.Context, gameID, seekerID, hiderID string) (bool, error)
	// FinishHint moves a casting hint to a terminal status, replacing its note.
	FinishHint(ctx context.Context, hintID string, status models.HintStatus, note models.HintNote, completedAt *time.Time) (bool, error)
	// ListHints returns hints of the game, optionally only those cast by seekerID.
	ListHints(ctx context.Context, gameID, seekerID string) ([]models.Hint, error)

	// Pings
	CreatePing(ctx context.Context, ping models.Ping) error
	// LatestPings returns the most recent ping of each player in the game.
	LatestPings(ctx context.Context, gameID string) ([]models.Ping, error)

	Ping(ctx context.Context) error
	Close() error
}

// GameUpdate is a partial update of the editable game columns. Nil fields are left alone.
type GameUpdate struct {
	Name                       *string
	Zone                       *models.Zone
	HidingDurationSeconds      *int
	PowerupCastingSeconds      *int
	ThermometerThresholdMeters *float64
}

// Empty reports whether the update changes nothing.
func (u GameUpdate) Empty() bool {
	return u.Name == nil && u.Zone == nil && u.HidingDurationSeconds == nil &&
		u.PowerupCastingSeconds == nil && u.ThermometerThresholdMeters == nil
}

// 错误定义
var (
	ErrRecordNotFound = errors.New("record not found")
	ErrConflict       = errors.New("conflicting record exists")
)
