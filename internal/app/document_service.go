package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"foerderscout/internal/export"
	"foerderscout/internal/model"
	"foerderscout/internal/pkg/pdfextract"
)

type DocumentService struct {
	appRepo      ApplicationStore
	docRepo      DocumentStore
	jobs         JobQueue
	documentsDir string
	maxUpload    int64
	logger       *zap.Logger
	now          func() time.Time
}

type ExportRequest struct {
	ApplicationID uuid.UUID            `json:"application_id"`
	Format        model.DocumentFormat `json:"format"`
	Status        string               `json:"status"`
}

type UploadApprovalNoticeInput struct {
	UserID        uuid.UUID
	ApplicationID uuid.UUID
	Filename      string
	Size          int64
	Body          io.Reader
}

type ApprovalNoticeResult struct {
	Document        *model.Document `json:"document"`
	DetectedFunding *float64        `json:"detected_funding"`
	TextExtracted   bool            `json:"text_extracted"`
}

func NewDocumentService(appRepo ApplicationStore, docRepo DocumentStore, jobs JobQueue, documentsDir string, maxUpload int64, logger *zap.Logger) *DocumentService {
	return &DocumentService{
		appRepo:      appRepo,
		docRepo:      docRepo,
		jobs:         jobs,
		documentsDir: documentsDir,
		maxUpload:    maxUpload,
		logger:       logger,
		now:          time.Now,
	}
}

// Export enqueues rendering of the application's sections.
func (s *DocumentService) Export(ctx context.Context, userID, applicationID uuid.UUID, format model.DocumentFormat) (*ExportRequest, error) {
	if format == "" {
		format = model.FormatDOCX
	}
	if !format.Valid() {
		return nil, fmt.Errorf("%w: format must be docx or pdf", ErrInvalidInput)
	}
	app, err := s.ownedApplication(userID, applicationID)
	if err != nil {
		return nil, err
	}
	if app.Status == model.StatusGenerating {
		return nil, ErrApplicationLocked
	}
	if len(app.Sections) == 0 {
		return nil, fmt.Errorf("%w: generate the application first", ErrSectionsIncomplete)
	}

	payload := model.ExportDocumentPayload{ApplicationID: app.ID, Format: format}
	if err := s.jobs.Enqueue(ctx, model.JobExportDocument, payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQueueUnavailable, err)
	}
	return &ExportRequest{ApplicationID: app.ID, Format: format, Status: "queued"}, nil
}

// RunExport executes an export_document job.
func (s *DocumentService) RunExport(ctx context.Context, payload model.ExportDocumentPayload) (*model.Document, error) {
	if !payload.Format.Valid() {
		return nil, ErrInvalidInput
	}
	app, err := s.appRepo.GetByID(payload.ApplicationID)
	if err != nil {
		return nil, err
	}
	if app == nil {
		return nil, ErrApplicationNotFound
	}
	if len(app.Sections) == 0 {
		return nil, ErrSectionsIncomplete
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	doc := ExportDocument(app, s.now())
	switch payload.Format {
	case model.FormatPDF:
		err = export.RenderPDF(&buf, doc)
	default:
		err = export.RenderDOCX(&buf, doc)
	}
	if err != nil {
		return nil, err
	}

	stored, err := s.store(app.ID, model.DocumentFullApplication, payload.Format, true, buf.Bytes())
	if err != nil {
		return nil, err
	}
	s.logger.Info("document exported",
		zap.String("application_id", app.ID.String()),
		zap.String("document_id", stored.ID.String()),
		zap.String("format", string(stored.Format)),
		zap.Int("version", stored.Version),
	)
	return stored, nil
}

// ExportDocument maps an application with its sections to the render input.
func ExportDocument(app *model.Application, now time.Time) export.Document {
	sortSections(app.Sections)
	doc := export.Document{
		ProjectTitle: app.ProjectTitle,
		Date:         now,
	}
	if app.Grant != nil {
		doc.GrantName = app.Grant.Name
	}
	if app.User != nil {
		doc.CompanyName = app.User.CompanyName
		doc.CompanyLocation = app.User.Location
	}
	for _, sec := range app.Sections {
		title := sec.Title
		if spec, ok := SectionByKey(sec.SectionKey); ok && title == "" {
			title = spec.Title
		}
		doc.Sections = append(doc.Sections, export.Section{Title: title, Content: sec.Content})
	}
	return doc
}

func (s *DocumentService) ListByApplication(userID, applicationID uuid.UUID) ([]model.Document, error) {
	if _, err := s.ownedApplication(userID, applicationID); err != nil {
		return nil, err
	}
	return s.docRepo.ListByApplicationID(applicationID)
}

func (s *DocumentService) Get(userID, id uuid.UUID) (*model.Document, error) {
	doc, err := s.docRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, ErrDocumentNotFound
	}
	if _, err := s.ownedApplication(userID, doc.ApplicationID); err != nil {
		if errors.Is(err, ErrApplicationNotFound) {
			return nil, ErrDocumentNotFound
		}
		return nil, err
	}
	return doc, nil
}

// Download returns the document and verifies its file still exists.
func (s *DocumentService) Download(userID, id uuid.UUID) (*model.Document, error) {
	doc, err := s.Get(userID, id)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(doc.FilePath); err != nil {
		if os.IsNotExist(err) {
			return nil, ErrDocumentNotFound
		}
		return nil, fmt.Errorf("stat document file failed: %w", err)
	}
	return doc, nil
}

func (s *DocumentService) Delete(userID, id uuid.UUID) error {
	doc, err := s.Get(userID, id)
	if err != nil {
		return err
	}
	if err := s.docRepo.Delete(doc); err != nil {
		return err
	}
	if err := os.Remove(doc.FilePath); err != nil && !os.IsNotExist(err) {
		s.logger.Warn("remove document file failed", zap.String("document_id", doc.ID.String()), zap.Error(err))
	}
	return nil
}

// UploadApprovalNotice stores a funder's approval PDF and tries to read the
// granted amount from it.
func (s *DocumentService) UploadApprovalNotice(input UploadApprovalNoticeInput) (*ApprovalNoticeResult, error) {
	if input.Body == nil {
		return nil, ErrInvalidInput
	}
	if s.maxUpload > 0 && input.Size > s.maxUpload {
		return nil, ErrFileTooLarge
	}
	app, err := s.ownedApplication(input.UserID, input.ApplicationID)
	if err != nil {
		return nil, err
	}

	reader := input.Body
	if s.maxUpload > 0 {
		reader = io.LimitReader(input.Body, s.maxUpload+1)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read upload failed: %w", err)
	}
	if s.maxUpload > 0 && int64(len(data)) > s.maxUpload {
		return nil, ErrFileTooLarge
	}
	if !bytes.HasPrefix(data, []byte("%PDF-")) {
		return nil, fmt.Errorf("%w: approval notice must be a PDF", ErrUnsupportedFile)
	}

	result := &ApprovalNoticeResult{}
	text, err := pdfextract.ExtractText(bytes.NewReader(data))
	if err != nil {
		s.logger.Warn("extract approval notice text failed", zap.String("application_id", app.ID.String()), zap.Error(err))
	} else if text != "" {
		result.TextExtracted = true
		if amount, ok := pdfextract.DetectFundingAmount(text); ok {
			result.DetectedFunding = &amount
		}
	}

	doc, err := s.store(app.ID, model.DocumentApprovalNotice, model.FormatPDF, false, data)
	if err != nil {
		return nil, err
	}
	result.Document = doc
	return result, nil
}

func (s *DocumentService) ownedApplication(userID, applicationID uuid.UUID) (*model.Application, error) {
	app, err := s.appRepo.GetByIDAndUserID(applicationID, userID)
	if err != nil {
		return nil, err
	}
	if app == nil {
		return nil, ErrApplicationNotFound
	}
	return app, nil
}

// store writes <dir>/<application id>/<type>_v<version>.<ext> and records it
// as the latest document of that type and format.
func (s *DocumentService) store(applicationID uuid.UUID, docType model.DocumentType, format model.DocumentFormat, generated bool, data []byte) (*model.Document, error) {
	version, err := s.docRepo.NextVersion(applicationID, docType, format)
	if err != nil {
		return nil, err
	}

	dir := filepath.Join(s.documentsDir, applicationID.String())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create document dir failed: %w", err)
	}
	filename := fmt.Sprintf("%s_v%d.%s", docType, version, format)
	path := filepath.Join(dir, filename)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return nil, fmt.Errorf("write document file failed: %w", err)
	}

	doc := &model.Document{
		ApplicationID: applicationID,
		DocumentType:  docType,
		Format:        format,
		Filename:      filename,
		FilePath:      path,
		FileSize:      int64(len(data)),
		GeneratedByAI: generated,
		Version:       version,
		IsLatest:      true,
	}
	if err := s.docRepo.CreateLatest(doc); err != nil {
		_ = os.Remove(path)
		return nil, err
	}
	return doc, nil
}
