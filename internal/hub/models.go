// Package hub persists the knowledge-base, tool, database-connection and
// prompt catalogs the chat backend serves, plus users and ingest jobs.
package hub

import (
	"time"

	"gorm.io/gorm"

	"github.com/suPer8Hu/guruji-chat/internal/common"
)

type KBStatus string

const (
	KBPending KBStatus = "pending"
	KBReady   KBStatus = "ready"
	KBFailed  KBStatus = "failed"
)

type KnowledgeBase struct {
	ID string `gorm:"primaryKey;size:26" json:"id"` // ULID length

	KBName           string   `gorm:"size:255;index;not null" json:"kb_name"`
	VectorStore      string   `gorm:"size:64" json:"vector_store"`
	AllowedFileTypes []string `gorm:"serializer:json;type:text" json:"allowed_file_types"`
	ParsingLibrary   string   `gorm:"size:64" json:"parsing_library"`
	ChunkingStrategy string   `gorm:"size:64" json:"chunking_strategy"`
	ChunkSize        int      `json:"chunk_size"`
	ChunkOverlap     int      `json:"chunk_overlap"`
	MetadataStrategy string   `gorm:"size:64" json:"metadata_strategy"`

	Status KBStatus `gorm:"type:varchar(16);index;not null" json:"status"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type CustomTool struct {
	ID          string    `gorm:"primaryKey;size:26" json:"id"`
	Name        string    `gorm:"size:255;index;not null" json:"name"`
	Description string    `gorm:"type:text" json:"description"`
	Code        string    `gorm:"type:text" json:"code"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type DatabaseConnection struct {
	ID       string `gorm:"primaryKey;size:26" json:"id"`
	Name     string `gorm:"size:255;index;not null" json:"name"`
	DBType   string `gorm:"size:32;not null" json:"db_type"`
	Host     string `gorm:"size:255" json:"host"`
	Port     int    `json:"port"`
	Username string `gorm:"size:255" json:"username"`
	// never serialized
	Password string `gorm:"size:255" json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Prompt struct {
	ID        string    `gorm:"primaryKey;size:26" json:"id"`
	Name      string    `gorm:"size:255;index;not null" json:"name"`
	Text      string    `gorm:"type:text;not null" json:"text"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type User struct {
	ID           uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	Name         string    `gorm:"size:255" json:"name"`
	Username     string    `gorm:"size:64;uniqueIndex;not null" json:"username"`
	Email        string    `gorm:"size:255;uniqueIndex;not null" json:"email"`
	PasswordHash string    `gorm:"size:255;not null" json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type JobStatus string

const (
	JobQueued    JobStatus = "queued"
	JobRunning   JobStatus = "running"
	JobSucceeded JobStatus = "succeeded"
	JobFailed    JobStatus = "failed"
)

// IngestJob tracks the background preparation of one knowledge base.
type IngestJob struct {
	ID   string `gorm:"primaryKey;size:26" json:"id"`
	KBID string `gorm:"size:26;index;not null" json:"kb_id"`

	Status JobStatus `gorm:"type:varchar(16);index;not null" json:"status"`

	// Filled when failed
	Error *string `gorm:"type:text" json:"error,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Models lists every table for AutoMigrate.
func Models() []any {
	return []any{&KnowledgeBase{}, &CustomTool{}, &DatabaseConnection{}, &Prompt{}, &User{}, &IngestJob{}}
}

func assignID(id *string) error {
	if *id != "" {
		return nil
	}
	v, err := common.NewULID()
	if err != nil {
		return err
	}
	*id = v
	return nil
}

func (k *KnowledgeBase) BeforeCreate(tx *gorm.DB) error {
	if k.Status == "" {
		k.Status = KBPending
	}
	return assignID(&k.ID)
}

func (t *CustomTool) BeforeCreate(tx *gorm.DB) error         { return assignID(&t.ID) }
func (d *DatabaseConnection) BeforeCreate(tx *gorm.DB) error { return assignID(&d.ID) }
func (p *Prompt) BeforeCreate(tx *gorm.DB) error             { return assignID(&p.ID) }

func (j *IngestJob) BeforeCreate(tx *gorm.DB) error {
	if j.Status == "" {
		j.Status = JobQueued
	}
	return assignID(&j.ID)
}
