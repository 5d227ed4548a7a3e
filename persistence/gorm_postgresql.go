// persistence/gorm_postgresql.go
package persistence

import (
	"context"
	"errors"
	"log"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/wfunc/hideseek/models"
)

// PoolOptions tunes the sql.DB pool behind GORM.
type PoolOptions struct {
	MaxOpenConns int
	MaxIdleConns int
	LogLevel     logger.LogLevel
}

// GormPostgreSQL 使用GORM的PostgreSQL实现
type GormPostgreSQL struct {
	db *gorm.DB
}

var _ Store = (*GormPostgreSQL)(nil)

// NewGormPostgreSQL migrates the schema and opens a pooled GORM connection.
func NewGormPostgreSQL(ctx context.Context, dsn string, opts PoolOptions) (*GormPostgreSQL, error) {
	if err := Migrate(ctx, dsn); err != nil {
		return nil, err
	}

	// 配置GORM日志
	gormLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  opts.LogLevel,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormLogger,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	// 设置连接池
	if opts.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(opts.MaxIdleConns)
	}
	if opts.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(opts.MaxOpenConns)
	}
	sqlDB.SetConnMaxLifetime(time.Hour)

	return &GormPostgreSQL{db: db}, nil
}

// translate maps driver errors onto the store sentinels.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrRecordNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return ErrConflict
		case "22P02": // invalid_text_representation: a malformed uuid names no row
			return ErrRecordNotFound
		}
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrConflict
	}
	return err
}

func (p *GormPostgreSQL) exists(ctx context.Context, model any, query string, args ...any) error {
	var n int64
	if err := p.db.WithContext(ctx).Model(model).Where(query, args...).Count(&n).Error; err != nil {
		return translate(err)
	}
	if n == 0 {
		return ErrRecordNotFound
	}
	return nil
}

func phaseStrings(phases []models.Phase) []string {
	out := make([]string, len(phases))
	for i, p := range phases {
		out[i] = string(p)
	}
	return out
}

// --- games ---

func (p *GormPostgreSQL) CreateGame(ctx context.Context, game models.Game) error {
	row := models.NewGormGame(game)
	return translate(p.db.WithContext(ctx).Create(&row).Error)
}

func (p *GormPostgreSQL) GetGame(ctx context.Context, id string) (models.Game, error) {
	var row models.GormGame
	if err := p.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		return models.Game{}, translate(err)
	}
	return row.ToGame(), nil
}

func (p *GormPostgreSQL) UpdateGame(ctx context.Context, id string, upd GameUpdate) error {
	updates := make(map[string]any)
	if upd.Name != nil {
		updates["name"] = *upd.Name
	}
	if upd.Zone != nil {
		updates["zone_lat"] = upd.Zone.Lat
		updates["zone_lng"] = upd.Zone.Lng
		updates["zone_radius_meters"] = upd.Zone.RadiusMeters
	}
	if upd.HidingDurationSeconds != nil {
		updates["hiding_duration_seconds"] = *upd.HidingDurationSeconds
	}
	if upd.PowerupCastingSeconds != nil {
		updates["powerup_casting_seconds"] = *upd.PowerupCastingSeconds
	}
	if upd.ThermometerThresholdMeters != nil {
		updates["thermometer_threshold_meters"] = *upd.ThermometerThresholdMeters
	}
	if len(updates) == 0 {
		return nil
	}
	res := p.db.WithContext(ctx).Model(&models.GormGame{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrRecordNotFound
	}
	return nil
}

func (p *GormPostgreSQL) AdvancePhase(ctx context.Context, id string, from []models.Phase, to models.Phase, at time.Time) (bool, error) {
	updates := map[string]any{"phase": string(to)}
	switch to {
	case models.PhaseHiding:
		updates["hiding_started_at"] = at
	case models.PhaseSeeking:
		// The first entry into seeking owns the timer.
		updates["seeking_started_at"] = gorm.Expr("COALESCE(seeking_started_at, ?)", at)
	}
	res := p.db.WithContext(ctx).Model(&models.GormGame{}).
		Where("id = ? AND phase IN ?", id, phaseStrings(from)).
		Updates(updates)
	if res.Error != nil {
		return false, translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return false, p.exists(ctx, &models.GormGame{}, "id = ?", id)
	}
	return true, nil
}

func (p *GormPostgreSQL) CommitWinner(ctx context.Context, id, winnerID string, at time.Time) (bool, error) {
	res := p.db.WithContext(ctx).Model(&models.GormGame{}).
		Where("id = ? AND winner_id IS NULL AND phase = ?", id, string(models.PhaseSeeking)).
		Updates(map[string]any{
			"winner_id":   winnerID,
			"phase":       string(models.PhaseCompleted),
			"finished_at": at,
		})
	if res.Error != nil {
		return false, translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return false, p.exists(ctx, &models.GormGame{}, "id = ?", id)
	}
	return true, nil
}

func (p *GormPostgreSQL) EnsureCompleted(ctx context.Context, id string, at time.Time) error {
	return translate(p.db.WithContext(ctx).Model(&models.GormGame{}).
		Where("id = ? AND winner_id IS NOT NULL AND phase <> ?", id, string(models.PhaseCompleted)).
		Updates(map[string]any{
			"phase":       string(models.PhaseCompleted),
			"finished_at": gorm.Expr("COALESCE(finished_at, ?)", at),
		}).Error)
}

// --- players ---

func (p *GormPostgreSQL) CreatePlayer(ctx context.Context, player models.Player) error {
	row := models.NewGormPlayer(player)
	return translate(p.db.WithContext(ctx).Create(&row).Error)
}

func (p *GormPostgreSQL) GetPlayer(ctx context.Context, gameID, playerID string) (models.Player, error) {
	var row models.GormPlayer
	if err := p.db.WithContext(ctx).First(&row, "id = ? AND game_id = ?", playerID, gameID).Error; err != nil {
		return models.Player{}, translate(err)
	}
	return row.ToPlayer(), nil
}

func (p *GormPostgreSQL) ListPlayers(ctx context.Context, gameID string) ([]models.Player, error) {
	var rows []models.GormPlayer
	if err := p.db.WithContext(ctx).Where("game_id = ?", gameID).Order("created_at, id").Find(&rows).Error; err != nil {
		return nil, translate(err)
	}
	players := make([]models.Player, 0, len(rows))
	for _, r := range rows {
		players = append(players, r.ToPlayer())
	}
	return players, nil
}

func (p *GormPostgreSQL) CountPlayers(ctx context.Context, gameID string, activeOnly bool) (int64, error) {
	var n int64
	q := p.db.WithContext(ctx).Model(&models.GormPlayer{}).Where("game_id = ?", gameID)
	if activeOnly {
		q = q.Where("withdrawn_at IS NULL")
	}
	if err := q.Count(&n).Error; err != nil {
		return 0, translate(err)
	}
	return n, nil
}

func (p *GormPostgreSQL) RenamePlayer(ctx context.Context, gameID, playerID, name string) error {
	res := p.db.WithContext(ctx).Model(&models.GormPlayer{}).
		Where("id = ? AND game_id = ?", playerID, gameID).
		Update("name", name)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrRecordNotFound
	}
	return nil
}

func (p *GormPostgreSQL) DeletePlayer(ctx context.Context, gameID, playerID string) error {
	res := p.db.WithContext(ctx).Where("id = ? AND game_id = ?", playerID, gameID).Delete(&models.GormPlayer{})
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrRecordNotFound
	}
	return nil
}

func (p *GormPostgreSQL) WithdrawPlayer(ctx context.Context, gameID, playerID string, at time.Time) (bool, error) {
	res := p.db.WithContext(ctx).Model(&models.GormPlayer{}).
		Where("id = ? AND game_id = ? AND withdrawn_at IS NULL", playerID, gameID).
		Update("withdrawn_at", at)
	if res.Error != nil {
		return false, translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return false, p.exists(ctx, &models.GormPlayer{}, "id = ? AND game_id = ?", playerID, gameID)
	}
	return true, nil
}

func (p *GormPostgreSQL) LockInHidingPhoto(ctx context.Context, gameID, playerID, photoID string) (bool, error) {
	res := p.db.WithContext(ctx).Model(&models.GormPlayer{}).
		Where("id = ? AND game_id = ? AND hiding_photo_id IS NULL", playerID, gameID).
		Update("hiding_photo_id", photoID)
	if res.Error != nil {
		return false, translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return false, p.exists(ctx, &models.GormPlayer{}, "id = ? AND game_id = ?", playerID, gameID)
	}
	return true, nil
}

var landmarkColumns = map[models.LandmarkType]string{
	models.LandmarkTree:     "tree_photo_id",
	models.LandmarkBuilding: "building_photo_id",
	models.LandmarkPath:     "path_photo_id",
}

func (p *GormPostgreSQL) SetLandmark(ctx context.Context, gameID, playerID string, landmark models.LandmarkType, photoID *string) error {
	column, ok := landmarkColumns[landmark]
	if !ok {
		return ErrRecordNotFound
	}
	updates := map[string]any{column: photoID}
	if photoID == nil {
		updates["unavailable_landmarks"] = gorm.Expr(
			"array_append(array_remove(unavailable_landmarks, ?::text), ?::text)", string(landmark), string(landmark))
	} else {
		updates["unavailable_landmarks"] = gorm.Expr("array_remove(unavailable_landmarks, ?::text)", string(landmark))
	}
	res := p.db.WithContext(ctx).Model(&models.GormPlayer{}).
		Where("id = ? AND game_id = ?", playerID, gameID).
		Updates(updates)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrRecordNotFound
	}
	return nil
}

// --- photos ---

func (p *GormPostgreSQL) CreatePhoto(ctx context.Context, photo models.Photo) error {
	row := models.NewGormPhoto(photo)
	return translate(p.db.WithContext(ctx).Create(&row).Error)
}

func (p *GormPostgreSQL) GetPhoto(ctx context.Context, id string) (models.Photo, error) {
	var row models.GormPhoto
	if err := p.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		return models.Photo{}, translate(err)
	}
	return row.ToPhoto(), nil
}

// --- submissions ---

func (p *GormPostgreSQL) CreateSubmission(ctx context.Context, sub models.Submission) error {
	row := models.NewGormSubmission(sub)
	return translate(p.db.WithContext(ctx).Create(&row).Error)
}

func (p *GormPostgreSQL) SetSubmissionStatus(ctx context.Context, id string, status models.SubmissionStatus) error {
	res := p.db.WithContext(ctx).Model(&models.GormSubmission{}).Where("id = ?", id).Update("status", string(status))
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrRecordNotFound
	}
	return nil
}

func (p *GormPostgreSQL) HasSuccessfulSubmission(ctx context.Context, gameID, seekerID, hiderID string) (bool, error) {
	var n int64
	err := p.db.WithContext(ctx).Model(&models.GormSubmission{}).
		Where("game_id = ? AND seeker_id = ? AND hider_id = ? AND status = ?",
			gameID, seekerID, hiderID, string(models.SubmissionSuccess)).
		Count(&n).Error
	return n > 0, translate(err)
}

func (p *GormPostgreSQL) FoundHiderIDs(ctx context.Context, gameID, seekerID string) ([]string, error) {
	var ids []string
	err := p.db.WithContext(ctx).Model(&models.GormSubmission{}).
		Where("game_id = ? AND seeker_id = ? AND status = ?", gameID, seekerID, string(models.SubmissionSuccess)).
		Distinct("hider_id").
		Order("hider_id").
		Pluck("hider_id", &ids).Error
	if err != nil {
		return nil, translate(err)
	}
	return ids, nil
}

func (p *GormPostgreSQL) ListSubmissions(ctx context.Context, gameID string) ([]models.Submission, error) {
	var rows []models.GormSubmission
	if err := p.db.WithContext(ctx).Where("game_id = ?", gameID).Order("created_at, id").Find(&rows).Error; err != nil {
		return nil, translate(err)
	}
	subs := make([]models.Submission, 0, len(rows))
	for _, r := range rows {
		subs = append(subs, r.ToSubmission())
	}
	return subs, nil
}

// --- hints ---

// CreateHint locks the game row so that casts in the same game serialise, re-checks for a
// casting hint on the pair and inserts. The partial unique index backs this up.
func (p *GormPostgreSQL) CreateHint(ctx context.Context, hint models.Hint) error {
	row, err := models.NewGormHint(hint)
	if err != nil {
		return err
	}
	return translate(p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var game models.GormGame
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id").First(&game, "id = ?", hint.GameID).Error; err != nil {
			return err
		}
		var n int64
		if err := tx.Model(&models.GormHint{}).
			Where("game_id = ? AND seeker_id = ? AND hider_id = ? AND status = ?",
				hint.GameID, hint.SeekerID, hint.HiderID, string(models.HintCasting)).
			Count(&n).Error; err != nil {
			return err
		}
		if n > 0 && hint.Status == models.HintCasting {
			return ErrConflict
		}
		return tx.Create(&row).Error
	}))
}

func (p *GormPostgreSQL) GetHint(ctx context.Context, gameID, hintID string) (models.Hint, error) {
	var row models.GormHint
	if err := p.db.WithContext(ctx).First(&row, "id = ? AND game_id = ?", hintID, gameID).Error; err != nil {
		return models.Hint{}, translate(err)
	}
	return row.ToHint()
}

func (p *GormPostgreSQL) HasCastingHint(ctx context.Context, gameID, seekerID, hiderID string) (bool, error) {
	var n int64
	err := p.db.WithContext(ctx).Model(&models.GormHint{}).
		Where("game_id = ? AND seeker_id = ? AND hider_id = ? AND status = ?",
			gameID, seekerID, hiderID, string(models.HintCasting)).
		Count(&n).Error
	return n > 0, translate(err)
}

func (p *GormPostgreSQL) FinishHint(ctx context.Context, hintID string, status models.HintStatus, note models.HintNote, completedAt *time.Time) (bool, error) {
	raw, err := models.EncodeNote(note)
	if err != nil {
		return false, err
	}
	res := p.db.WithContext(ctx).Model(&models.GormHint{}).
		Where("id = ? AND status = ?", hintID, string(models.HintCasting)).
		Updates(map[string]any{
			"status":       string(status),
			"note":         datatypes.JSON(raw),
			"completed_at": completedAt,
		})
	if res.Error != nil {
		return false, translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return false, p.exists(ctx, &models.GormHint{}, "id = ?", hintID)
	}
	return true, nil
}

func (p *GormPostgreSQL) ListHints(ctx context.Context, gameID, seekerID string) ([]models.Hint, error) {
	var rows []models.GormHint
	q := p.db.WithContext(ctx).Where("game_id = ?", gameID)
	if seekerID != "" {
		q = q.Where("seeker_id = ?", seekerID)
	}
	if err := q.Order("created_at, id").Find(&rows).Error; err != nil {
		return nil, translate(err)
	}
	hints := make([]models.Hint, 0, len(rows))
	for _, r := range rows {
		h, err := r.ToHint()
		if err != nil {
			return nil, err
		}
		hints = append(hints, h)
	}
	return hints, nil
}

// --- pings ---

func (p *GormPostgreSQL) CreatePing(ctx context.Context, ping models.Ping) error {
	row := models.NewGormPing(ping)
	return translate(p.db.WithContext(ctx).Create(&row).Error)
}

func (p *GormPostgreSQL) LatestPings(ctx context.Context, gameID string) ([]models.Ping, error) {
	var rows []models.GormPing
	err := p.db.WithContext(ctx).Raw(`
        SELECT DISTINCT ON (player_id) id, game_id, player_id, lat, lng, created_at
        FROM pings
        WHERE game_id = ?
        ORDER BY player_id, created_at DESC`, gameID).Scan(&rows).Error
	if err != nil {
		return nil, translate(err)
	}
	pings := make([]models.Ping, 0, len(rows))
	for _, r := range rows {
		pings = append(pings, r.ToPing())
	}
	return pings, nil
}

func (p *GormPostgreSQL) Ping(ctx context.Context) error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close 关闭数据库连接
func (p *GormPostgreSQL) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
