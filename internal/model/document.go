package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type DocumentType string

const (
	DocumentFullApplication DocumentType = "full_application"
	DocumentApprovalNotice  DocumentType = "approval_notice"
)

type DocumentFormat string

const (
	FormatPDF  DocumentFormat = "pdf"
	FormatDOCX DocumentFormat = "docx"
)

func (f DocumentFormat) Valid() bool {
	return f == FormatPDF || f == FormatDOCX
}

func (f DocumentFormat) ContentType() string {
	if f == FormatDOCX {
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	}
	return "application/pdf"
}

type Document struct {
	ID            uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	ApplicationID uuid.UUID      `gorm:"type:uuid;not null;index" json:"application_id"`
	DocumentType  DocumentType   `gorm:"size:32;not null" json:"document_type"`
	Format        DocumentFormat `gorm:"size:8;not null" json:"format"`
	Filename      string         `gorm:"size:255;not null" json:"filename"`
	FilePath      string         `gorm:"size:1024;not null" json:"-"`
	FileSize      int64          `json:"file_size"`
	GeneratedByAI bool           `gorm:"not null" json:"generated_by_ai"`
	Version       int            `gorm:"not null" json:"version"`
	IsLatest      bool           `gorm:"not null" json:"is_latest"`
	CreatedAt     time.Time      `json:"created_at"`
}

func (d *Document) BeforeCreate(tx *gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}
