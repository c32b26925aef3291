package store

import (
	"context"
	"errors"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/cravaudio/api/internal/model"
)

// Postgres implements Store on gorm.
type Postgres struct {
	db *gorm.DB
}

func Connect(dsn string) (*Postgres, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, err
	}
	return &Postgres{db: db}, nil
}

func NewPostgres(db *gorm.DB) *Postgres {
	return &Postgres{db: db}
}

func (s *Postgres) AutoMigrate() error {
	if err := s.db.AutoMigrate(
		&model.User{},
		&model.Track{},
		&model.Job{},
		&model.CreditTransaction{},
		&model.WebhookSubscription{},
	); err != nil {
		return err
	}

	stmts := []string{
		`create index if not exists idx_tracks_user_created on tracks(user_id, created_at desc);`,
		`create index if not exists idx_jobs_track_created on jobs(track_id, created_at desc);`,
		`create index if not exists idx_ledger_user_created on credit_transactions(user_id, created_at desc);`,
	}
	for _, stmt := range stmts {
		if err := s.db.Exec(stmt).Error; err != nil {
			return err
		}
	}
	return nil
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

// Users

func (s *Postgres) CreateUser(ctx context.Context, user *model.User) error {
	err := s.db.WithContext(ctx).Create(user).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrAlreadyExists
	}
	return err
}

func (s *Postgres) GetUser(ctx context.Context, id string) (*model.User, error) {
	var user model.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

func (s *Postgres) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	if err := s.db.WithContext(ctx).First(&user, "email = ?", email).Error; err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

// ApplyCreditDelta runs as a single UPDATE with a SQL expression, so
// concurrent deltas for the same user serialize inside the database. Any
// error here is returned as-is; there is no read-then-write fallback.
func (s *Postgres) ApplyCreditDelta(ctx context.Context, userID string, delta int) error {
	res := s.db.WithContext(ctx).Model(&model.User{}).
		Where("id = ?", userID).
		Update("credits", gorm.Expr("credits + ?", delta))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Postgres) CountUsers(ctx context.Context) (int, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&model.User{}).Count(&count).Error
	return int(count), err
}

// Tracks

func (s *Postgres) CreateTrack(ctx context.Context, track *model.Track) error {
	return s.db.WithContext(ctx).Create(track).Error
}

func (s *Postgres) GetTrack(ctx context.Context, id string) (*model.Track, error) {
	var track model.Track
	if err := s.db.WithContext(ctx).First(&track, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &track, nil
}

func (s *Postgres) SaveTrack(ctx context.Context, track *model.Track) error {
	return s.db.WithContext(ctx).Save(track).Error
}

func (s *Postgres) ListTracks(ctx context.Context, filters TrackFilters) ([]*model.Track, error) {
	q := s.db.WithContext(ctx).Model(&model.Track{})

	if filters.Status != "" {
		q = q.Where("status = ?", filters.Status)
	}
	if filters.Provider != "" {
		q = q.Where("provider = ?", filters.Provider)
	}
	if filters.UserID != "" {
		q = q.Where("user_id = ?", filters.UserID)
	}
	if filters.Start != nil {
		q = q.Where("created_at >= ?", *filters.Start)
	}
	if filters.End != nil {
		q = q.Where("created_at <= ?", *filters.End)
	}

	q = q.Order("created_at desc")
	if filters.Limit > 0 {
		q = q.Limit(filters.Limit)
	}
	if filters.Offset > 0 {
		q = q.Offset(filters.Offset)
	}

	var tracks []*model.Track
	if err := q.Find(&tracks).Error; err != nil {
		return nil, err
	}
	return tracks, nil
}

// Jobs

func (s *Postgres) CreateJob(ctx context.Context, job *model.Job) error {
	return s.db.WithContext(ctx).Create(job).Error
}

func (s *Postgres) GetJob(ctx context.Context, id string) (*model.Job, error) {
	var job model.Job
	if err := s.db.WithContext(ctx).First(&job, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &job, nil
}

func (s *Postgres) LatestJobForTrack(ctx context.Context, trackID string) (*model.Job, error) {
	var job model.Job
	err := s.db.WithContext(ctx).
		Where("track_id = ?", trackID).
		Order("created_at desc").
		First(&job).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &job, nil
}

func (s *Postgres) SaveJob(ctx context.Context, job *model.Job) error {
	return s.db.WithContext(ctx).Save(job).Error
}

func (s *Postgres) SaveTrackAndJob(ctx context.Context, track *model.Track, job *model.Job) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(track).Error; err != nil {
			return err
		}
		return tx.Save(job).Error
	})
}

func (s *Postgres) CountActiveJobs(ctx context.Context, userID string) (int, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&model.Job{}).
		Joins("join tracks on tracks.id = jobs.track_id").
		Where("tracks.user_id = ? and jobs.state in ?", userID,
			[]model.JobState{model.JobStateQueued, model.JobStateRunning}).
		Count(&count).Error
	return int(count), err
}

// Credit ledger

func (s *Postgres) AppendTransaction(ctx context.Context, tx *model.CreditTransaction) error {
	return s.db.WithContext(ctx).Create(tx).Error
}

func (s *Postgres) ListTransactions(ctx context.Context, userID string, limit int) ([]*model.CreditTransaction, error) {
	q := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at desc")
	if limit > 0 {
		q = q.Limit(limit)
	}

	var txs []*model.CreditTransaction
	if err := q.Find(&txs).Error; err != nil {
		return nil, err
	}
	return txs, nil
}

func (s *Postgres) SumTransactions(ctx context.Context, userID string) (int, error) {
	var sum int64
	err := s.db.WithContext(ctx).Model(&model.CreditTransaction{}).
		Where("user_id = ?", userID).
		Select("coalesce(sum(delta), 0)").
		Scan(&sum).Error
	return int(sum), err
}

func (s *Postgres) TotalCreditsIssued(ctx context.Context) (int, error) {
	var sum int64
	err := s.db.WithContext(ctx).Model(&model.CreditTransaction{}).
		Where("delta > 0").
		Select("coalesce(sum(delta), 0)").
		Scan(&sum).Error
	return int(sum), err
}

// Webhook subscriptions

func (s *Postgres) CreateSubscription(ctx context.Context, sub *model.WebhookSubscription) error {
	return s.db.WithContext(ctx).Create(sub).Error
}

func (s *Postgres) DeactivateSubscription(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Model(&model.WebhookSubscription{}).
		Where("id = ?", id).
		Update("active", false)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Postgres) ListActiveSubscriptions(ctx context.Context) ([]*model.WebhookSubscription, error) {
	var subs []*model.WebhookSubscription
	if err := s.db.WithContext(ctx).Where("active = ?", true).Find(&subs).Error; err != nil {
		return nil, err
	}
	return subs, nil
}
