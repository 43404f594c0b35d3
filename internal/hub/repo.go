package hub

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"
)

var ErrNotFound = errors.New("hub: record not found")

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) Migrate(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(Models()...)
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

func get[T any](ctx context.Context, db *gorm.DB, id string) (*T, error) {
	var v T
	if err := db.WithContext(ctx).First(&v, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &v, nil
}

// list returns rows oldest first.
func list[T any](ctx context.Context, db *gorm.DB) ([]T, error) {
	out := []T{}
	if err := db.WithContext(ctx).Order("created_at ASC, id ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func remove[T any](ctx context.Context, db *gorm.DB, id string) error {
	res := db.WithContext(ctx).Delete(new(T), "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Knowledge bases

func (r *Repo) CreateKnowledgeBase(ctx context.Context, kb *KnowledgeBase) error {
	return r.db.WithContext(ctx).Create(kb).Error
}

func (r *Repo) GetKnowledgeBase(ctx context.Context, id string) (*KnowledgeBase, error) {
	return get[KnowledgeBase](ctx, r.db, id)
}

func (r *Repo) ListKnowledgeBases(ctx context.Context) ([]KnowledgeBase, error) {
	return list[KnowledgeBase](ctx, r.db)
}

// UpdateKnowledgeBase replaces the configuration, keeping id, status and
// creation time.
func (r *Repo) UpdateKnowledgeBase(ctx context.Context, id string, kb *KnowledgeBase) error {
	existing, err := r.GetKnowledgeBase(ctx, id)
	if err != nil {
		return err
	}
	kb.ID = existing.ID
	kb.Status = existing.Status
	kb.CreatedAt = existing.CreatedAt
	return r.db.WithContext(ctx).Save(kb).Error
}

func (r *Repo) DeleteKnowledgeBase(ctx context.Context, id string) error {
	return remove[KnowledgeBase](ctx, r.db, id)
}

func (r *Repo) SetKnowledgeBaseStatus(ctx context.Context, id string, status KBStatus) error {
	res := r.db.WithContext(ctx).Model(&KnowledgeBase{}).
		Where("id = ?", id).
		Update("status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// KnowledgeBasesByID resolves ids in the given order, skipping unknown ones.
func (r *Repo) KnowledgeBasesByID(ctx context.Context, ids []string) ([]KnowledgeBase, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var found []KnowledgeBase
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&found).Error; err != nil {
		return nil, err
	}
	byID := make(map[string]KnowledgeBase, len(found))
	for _, kb := range found {
		byID[kb.ID] = kb
	}
	out := make([]KnowledgeBase, 0, len(found))
	for _, id := range ids {
		if kb, ok := byID[id]; ok {
			out = append(out, kb)
		}
	}
	return out, nil
}

// Custom tools

func (r *Repo) CreateTool(ctx context.Context, t *CustomTool) error {
	return r.db.WithContext(ctx).Create(t).Error
}

func (r *Repo) GetTool(ctx context.Context, id string) (*CustomTool, error) {
	return get[CustomTool](ctx, r.db, id)
}

func (r *Repo) ListTools(ctx context.Context) ([]CustomTool, error) {
	return list[CustomTool](ctx, r.db)
}

func (r *Repo) UpdateTool(ctx context.Context, id string, t *CustomTool) error {
	existing, err := r.GetTool(ctx, id)
	if err != nil {
		return err
	}
	t.ID = existing.ID
	t.CreatedAt = existing.CreatedAt
	return r.db.WithContext(ctx).Save(t).Error
}

func (r *Repo) DeleteTool(ctx context.Context, id string) error {
	return remove[CustomTool](ctx, r.db, id)
}

// Database connections

func (r *Repo) CreateDatabase(ctx context.Context, d *DatabaseConnection) error {
	return r.db.WithContext(ctx).Create(d).Error
}

func (r *Repo) GetDatabase(ctx context.Context, id string) (*DatabaseConnection, error) {
	return get[DatabaseConnection](ctx, r.db, id)
}

func (r *Repo) ListDatabases(ctx context.Context) ([]DatabaseConnection, error) {
	return list[DatabaseConnection](ctx, r.db)
}

// UpdateDatabase keeps the stored password when d.Password is empty.
func (r *Repo) UpdateDatabase(ctx context.Context, id string, d *DatabaseConnection) error {
	existing, err := r.GetDatabase(ctx, id)
	if err != nil {
		return err
	}
	d.ID = existing.ID
	d.CreatedAt = existing.CreatedAt
	if d.Password == "" {
		d.Password = existing.Password
	}
	return r.db.WithContext(ctx).Save(d).Error
}

func (r *Repo) DeleteDatabase(ctx context.Context, id string) error {
	return remove[DatabaseConnection](ctx, r.db, id)
}

// Prompts

func (r *Repo) CreatePrompt(ctx context.Context, p *Prompt) error {
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *Repo) ListPrompts(ctx context.Context) ([]Prompt, error) {
	return list[Prompt](ctx, r.db)
}

func (r *Repo) DeletePrompt(ctx context.Context, id string) error {
	return remove[Prompt](ctx, r.db, id)
}

// Users

func (r *Repo) CreateUser(ctx context.Context, u *User) error {
	return r.db.WithContext(ctx).Create(u).Error
}

func (r *Repo) UsernameTaken(ctx context.Context, username string) (bool, error) {
	var cnt int64
	if err := r.db.WithContext(ctx).Model(&User{}).Where("username = ?", username).Count(&cnt).Error; err != nil {
		return false, err
	}
	return cnt > 0, nil
}

// FindUserByLogin matches the identifier against username or email.
func (r *Repo) FindUserByLogin(ctx context.Context, identifier string) (*User, error) {
	identifier = strings.TrimSpace(identifier)
	var u User
	if err := r.db.WithContext(ctx).
		Where("username = ? OR email = ?", identifier, strings.ToLower(identifier)).
		First(&u).Error; err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

// Ingest jobs

func (r *Repo) CreateJob(ctx context.Context, job *IngestJob) error {
	return r.db.WithContext(ctx).Create(job).Error
}

func (r *Repo) GetJobByID(ctx context.Context, id string) (*IngestJob, error) {
	return get[IngestJob](ctx, r.db, id)
}

func (r *Repo) UpdateJobStatusRunning(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Model(&IngestJob{}).
		Where("id = ? AND status = ?", id, JobQueued).
		Update("status", JobRunning).Error
}

func (r *Repo) MarkJobSucceeded(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Model(&IngestJob{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status": JobSucceeded,
			"error":  nil,
		}).Error
}

func (r *Repo) MarkJobFailed(ctx context.Context, id string, errMsg string) error {
	return r.db.WithContext(ctx).Model(&IngestJob{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status": JobFailed,
			"error":  errMsg,
		}).Error
}
