// persistence/memory.go
package persistence

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/wfunc/hideseek/models"
)

// MemoryStore keeps every table in process memory behind one mutex. Each method runs as a
// single critical section, which gives the conditional updates the same compare-and-swap
// behaviour the SQL store gets from its WHERE clauses and unique indexes.
type MemoryStore struct {
	mutex       sync.RWMutex
	games       map[string]models.Game
	players     map[string]models.Player
	photos      map[string]models.Photo
	submissions map[string]models.Submission
	hints       map[string]models.Hint
	pings       []models.Ping
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		games:       make(map[string]models.Game),
		players:     make(map[string]models.Player),
		photos:      make(map[string]models.Photo),
		submissions: make(map[string]models.Submission),
		hints:       make(map[string]models.Hint),
	}
}

var _ Store = (*MemoryStore)(nil)

// --- games ---

func (m *MemoryStore) CreateGame(ctx context.Context, game models.Game) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if _, exists := m.games[game.ID]; exists {
		return ErrConflict
	}
	m.games[game.ID] = game
	return nil
}

func (m *MemoryStore) GetGame(ctx context.Context, id string) (models.Game, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	game, exists := m.games[id]
	if !exists {
		return models.Game{}, ErrRecordNotFound
	}
	return game, nil
}

func (m *MemoryStore) UpdateGame(ctx context.Context, id string, upd GameUpdate) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	game, exists := m.games[id]
	if !exists {
		return ErrRecordNotFound
	}
	if upd.Name != nil {
		game.Name = upd.Name
	}
	if upd.Zone != nil {
		zone := *upd.Zone
		game.Zone = &zone
	}
	if upd.HidingDurationSeconds != nil {
		game.HidingDurationSeconds = upd.HidingDurationSeconds
	}
	if upd.PowerupCastingSeconds != nil {
		game.PowerupCastingSeconds = upd.PowerupCastingSeconds
	}
	if upd.ThermometerThresholdMeters != nil {
		game.ThermometerThresholdMeters = upd.ThermometerThresholdMeters
	}
	m.games[id] = game
	return nil
}

func (m *MemoryStore) AdvancePhase(ctx context.Context, id string, from []models.Phase, to models.Phase, at time.Time) (bool, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	game, exists := m.games[id]
	if !exists {
		return false, ErrRecordNotFound
	}
	if !phaseIn(game.Phase, from) {
		return false, nil
	}
	game.Phase = to
	switch to {
	case models.PhaseHiding:
		game.HidingStartedAt = &at
	case models.PhaseSeeking:
		if game.SeekingStartedAt == nil {
			game.SeekingStartedAt = &at
		}
	}
	m.games[id] = game
	return true, nil
}

func (m *MemoryStore) CommitWinner(ctx context.Context, id, winnerID string, at time.Time) (bool, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	game, exists := m.games[id]
	if !exists {
		return false, ErrRecordNotFound
	}
	if game.WinnerID != nil || game.Phase != models.PhaseSeeking {
		return false, nil
	}
	game.WinnerID = &winnerID
	game.Phase = models.PhaseCompleted
	game.FinishedAt = &at
	m.games[id] = game
	return true, nil
}

func (m *MemoryStore) EnsureCompleted(ctx context.Context, id string, at time.Time) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	game, exists := m.games[id]
	if !exists {
		return ErrRecordNotFound
	}
	if game.WinnerID == nil || game.Phase == models.PhaseCompleted {
		return nil
	}
	game.Phase = models.PhaseCompleted
	if game.FinishedAt == nil {
		game.FinishedAt = &at
	}
	m.games[id] = game
	return nil
}

// --- players ---

func (m *MemoryStore) CreatePlayer(ctx context.Context, player models.Player) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if _, exists := m.games[player.GameID]; !exists {
		return ErrRecordNotFound
	}
	if _, exists := m.players[player.ID]; exists {
		return ErrConflict
	}
	m.players[player.ID] = clonePlayer(player)
	return nil
}

func (m *MemoryStore) GetPlayer(ctx context.Context, gameID, playerID string) (models.Player, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	player, exists := m.players[playerID]
	if !exists || player.GameID != gameID {
		return models.Player{}, ErrRecordNotFound
	}
	return clonePlayer(player), nil
}

func (m *MemoryStore) ListPlayers(ctx context.Context, gameID string) ([]models.Player, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	result := make([]models.Player, 0)
	for _, p := range m.players {
		if p.GameID == gameID {
			result = append(result, clonePlayer(p))
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

func (m *MemoryStore) CountPlayers(ctx context.Context, gameID string, activeOnly bool) (int64, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	var n int64
	for _, p := range m.players {
		if p.GameID == gameID && (!activeOnly || p.Active()) {
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) RenamePlayer(ctx context.Context, gameID, playerID, name string) error {
	return m.updatePlayer(gameID, playerID, func(p *models.Player) bool {
		p.Name = name
		return true
	})
}

func (m *MemoryStore) DeletePlayer(ctx context.Context, gameID, playerID string) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	player, exists := m.players[playerID]
	if !exists || player.GameID != gameID {
		return ErrRecordNotFound
	}
	delete(m.players, playerID)
	return nil
}

func (m *MemoryStore) WithdrawPlayer(ctx context.Context, gameID, playerID string, at time.Time) (bool, error) {
	applied := false
	err := m.updatePlayer(gameID, playerID, func(p *models.Player) bool {
		if p.WithdrawnAt != nil {
			return false
		}
		p.WithdrawnAt = &at
		applied = true
		return true
	})
	return applied, err
}

func (m *MemoryStore) LockInHidingPhoto(ctx context.Context, gameID, playerID, photoID string) (bool, error) {
	applied := false
	err := m.updatePlayer(gameID, playerID, func(p *models.Player) bool {
		if p.HidingPhotoID != nil {
			return false
		}
		p.HidingPhotoID = &photoID
		applied = true
		return true
	})
	return applied, err
}

func (m *MemoryStore) SetLandmark(ctx context.Context, gameID, playerID string, landmark models.LandmarkType, photoID *string) error {
	return m.updatePlayer(gameID, playerID, func(p *models.Player) bool {
		kept := p.UnavailableLandmarks[:0]
		for _, t := range p.UnavailableLandmarks {
			if t != landmark {
				kept = append(kept, t)
			}
		}
		p.UnavailableLandmarks = kept
		if photoID == nil {
			p.UnavailableLandmarks = append(p.UnavailableLandmarks, landmark)
		}
		switch landmark {
		case models.LandmarkTree:
			p.TreePhotoID = photoID
		case models.LandmarkBuilding:
			p.BuildingPhotoID = photoID
		case models.LandmarkPath:
			p.PathPhotoID = photoID
		}
		return true
	})
}

func (m *MemoryStore) updatePlayer(gameID, playerID string, fn func(p *models.Player) bool) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	player, exists := m.players[playerID]
	if !exists || player.GameID != gameID {
		return ErrRecordNotFound
	}
	player = clonePlayer(player)
	if fn(&player) {
		m.players[playerID] = player
	}
	return nil
}

// --- photos ---

func (m *MemoryStore) CreatePhoto(ctx context.Context, photo models.Photo) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if _, exists := m.photos[photo.ID]; exists {
		return ErrConflict
	}
	m.photos[photo.ID] = photo
	return nil
}

func (m *MemoryStore) GetPhoto(ctx context.Context, id string) (models.Photo, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	photo, exists := m.photos[id]
	if !exists {
		return models.Photo{}, ErrRecordNotFound
	}
	return photo, nil
}

// --- submissions ---

func (m *MemoryStore) CreateSubmission(ctx context.Context, sub models.Submission) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if _, exists := m.submissions[sub.ID]; exists {
		return ErrConflict
	}
	if sub.Status == models.SubmissionSuccess && m.hasSuccessLocked(sub.GameID, sub.SeekerID, sub.HiderID) {
		return ErrConflict
	}
	m.submissions[sub.ID] = sub
	return nil
}

func (m *MemoryStore) SetSubmissionStatus(ctx context.Context, id string, status models.SubmissionStatus) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	sub, exists := m.submissions[id]
	if !exists {
		return ErrRecordNotFound
	}
	if status == models.SubmissionSuccess && sub.Status != models.SubmissionSuccess &&
		m.hasSuccessLocked(sub.GameID, sub.SeekerID, sub.HiderID) {
		return ErrConflict
	}
	sub.Status = status
	m.submissions[id] = sub
	return nil
}

func (m *MemoryStore) HasSuccessfulSubmission(ctx context.Context, gameID, seekerID, hiderID string) (bool, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.hasSuccessLocked(gameID, seekerID, hiderID), nil
}

func (m *MemoryStore) hasSuccessLocked(gameID, seekerID, hiderID string) bool {
	for _, s := range m.submissions {
		if s.GameID == gameID && s.SeekerID == seekerID && s.HiderID == hiderID && s.Status == models.SubmissionSuccess {
			return true
		}
	}
	return false
}

func (m *MemoryStore) FoundHiderIDs(ctx context.Context, gameID, seekerID string) ([]string, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	seen := make(map[string]struct{})
	result := make([]string, 0)
	for _, s := range m.submissions {
		if s.GameID != gameID || s.SeekerID != seekerID || s.Status != models.SubmissionSuccess {
			continue
		}
		if _, dup := seen[s.HiderID]; dup {
			continue
		}
		seen[s.HiderID] = struct{}{}
		result = append(result, s.HiderID)
	}
	sort.Strings(result)
	return result, nil
}

func (m *MemoryStore) ListSubmissions(ctx context.Context, gameID string) ([]models.Submission, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	result := make([]models.Submission, 0)
	for _, s := range m.submissions {
		if s.GameID == gameID {
			result = append(result, s)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

// --- hints ---

func (m *MemoryStore) CreateHint(ctx context.Context, hint models.Hint) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if _, exists := m.hints[hint.ID]; exists {
		return ErrConflict
	}
	if hint.Status == models.HintCasting && m.hasCastingLocked(hint.GameID, hint.SeekerID, hint.HiderID) {
		return ErrConflict
	}
	m.hints[hint.ID] = hint
	return nil
}

func (m *MemoryStore) GetHint(ctx context.Context, gameID, hintID string) (models.Hint, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	hint, exists := m.hints[hintID]
	if !exists || hint.GameID != gameID {
		return models.Hint{}, ErrRecordNotFound
	}
	return hint, nil
}

func (m *MemoryStore) HasCastingHint(ctx context.Context, gameID, seekerID, hiderID string) (bool, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.hasCastingLocked(gameID, seekerID, hiderID), nil
}

func (m *MemoryStore) hasCastingLocked(gameID, seekerID, hiderID string) bool {
	for _, h := range m.hints {
		if h.GameID == gameID && h.SeekerID == seekerID && h.HiderID == hiderID && h.Status == models.HintCasting {
			return true
		}
	}
	return false
}

func (m *MemoryStore) FinishHint(ctx context.Context, hintID string, status models.HintStatus, note models.HintNote, completedAt *time.Time) (bool, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	hint, exists := m.hints[hintID]
	if !exists {
		return false, ErrRecordNotFound
	}
	if hint.Status != models.HintCasting {
		return false, nil
	}
	hint.Status = status
	hint.Note = note
	hint.CompletedAt = completedAt
	m.hints[hintID] = hint
	return true, nil
}

func (m *MemoryStore) ListHints(ctx context.Context, gameID, seekerID string) ([]models.Hint, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	result := make([]models.Hint, 0)
	for _, h := range m.hints {
		if h.GameID == gameID && (seekerID == "" || h.SeekerID == seekerID) {
			result = append(result, h)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

// --- pings ---

func (m *MemoryStore) CreatePing(ctx context.Context, ping models.Ping) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.pings = append(m.pings, ping)
	return nil
}

func (m *MemoryStore) LatestPings(ctx context.Context, gameID string) ([]models.Ping, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	latest := make(map[string]models.Ping)
	for _, p := range m.pings {
		if p.GameID != gameID {
			continue
		}
		// Later appends win ties so the newest insert is reported.
		if cur, ok := latest[p.PlayerID]; !ok || !p.CreatedAt.Before(cur.CreatedAt) {
			latest[p.PlayerID] = p
		}
	}
	result := make([]models.Ping, 0, len(latest))
	for _, p := range latest {
		result = append(result, p)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].PlayerID < result[j].PlayerID })
	return result, nil
}

func (m *MemoryStore) Ping(ctx context.Context) error { return nil }

func (m *MemoryStore) Close() error { return nil }

func phaseIn(p models.Phase, set []models.Phase) bool {
	for _, candidate := range set {
		if candidate == p {
			return true
		}
	}
	return false
}

func clonePlayer(p models.Player) models.Player {
	p.UnavailableLandmarks = append([]models.LandmarkType{}, p.UnavailableLandmarks...)
	return p
}
