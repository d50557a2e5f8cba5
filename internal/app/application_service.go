package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"foerderscout/internal/model"
)

const budgetTolerance = 0.01

type ApplicationService struct {
	appRepo      ApplicationStore
	sectionRepo  SectionStore
	grantRepo    GrantStore
	userRepo     UserStore
	writer       *ApplicationWriter
	jobs         JobQueue
	documentsDir string
	logger       *zap.Logger
	now          func() time.Time
}

type CreateApplicationInput struct {
	UserID             uuid.UUID
	GrantID            uuid.UUID
	ProjectTitle       string
	ProjectDescription string
	ProjectGoals       []string
	ProjectInnovation  string
	ProjectTechnology  string
	TargetAudience     string
	MarketAnalysis     string
	BusinessModel      string
	TimelineMonths     int
	TotalBudget        float64
	RequestedFunding   float64
	OwnContribution    *float64
	BudgetBreakdown    map[string]float64
}

// UpdateApplicationInput holds optional project fields. nil leaves a field unchanged.
type UpdateApplicationInput struct {
	ProjectTitle       *string
	ProjectDescription *string
	ProjectGoals       []string
	ProjectInnovation  *string
	ProjectTechnology  *string
	TargetAudience     *string
	MarketAnalysis     *string
	BusinessModel      *string
	TimelineMonths     *int
	TotalBudget        *float64
	RequestedFunding   *float64
	OwnContribution    *float64
	BudgetBreakdown    map[string]float64
}

type ListApplicationsInput struct {
	UserID uuid.UUID
	Status model.ApplicationStatus
	Limit  int
	Offset int
}

type ApplicationPage struct {
	Items  []model.Application `json:"items"`
	Total  int64               `json:"total"`
	Limit  int                 `json:"limit"`
	Offset int                 `json:"offset"`
}

type DecisionInput struct {
	Approved        bool
	ApprovedFunding *float64
}

func NewApplicationService(
	appRepo ApplicationStore,
	sectionRepo SectionStore,
	grantRepo GrantStore,
	userRepo UserStore,
	writer *ApplicationWriter,
	jobs JobQueue,
	documentsDir string,
	logger *zap.Logger,
) *ApplicationService {
	return &ApplicationService{
		appRepo:      appRepo,
		sectionRepo:  sectionRepo,
		grantRepo:    grantRepo,
		userRepo:     userRepo,
		writer:       writer,
		jobs:         jobs,
		documentsDir: documentsDir,
		logger:       logger,
		now:          time.Now,
	}
}

func (s *ApplicationService) Create(input CreateApplicationInput) (*model.Application, error) {
	if input.UserID == uuid.Nil || input.GrantID == uuid.Nil {
		return nil, ErrInvalidInput
	}
	grant, err := s.grantRepo.GetByID(input.GrantID)
	if err != nil {
		return nil, err
	}
	if grant == nil {
		return nil, ErrGrantNotFound
	}

	own := input.TotalBudget - input.RequestedFunding
	if input.OwnContribution != nil {
		own = *input.OwnContribution
	}

	app := &model.Application{
		UserID:             input.UserID,
		GrantID:            input.GrantID,
		ProjectTitle:       strings.TrimSpace(input.ProjectTitle),
		ProjectDescription: strings.TrimSpace(input.ProjectDescription),
		ProjectGoals:       cleanList(input.ProjectGoals),
		ProjectInnovation:  strings.TrimSpace(input.ProjectInnovation),
		ProjectTechnology:  strings.TrimSpace(input.ProjectTechnology),
		TargetAudience:     strings.TrimSpace(input.TargetAudience),
		MarketAnalysis:     strings.TrimSpace(input.MarketAnalysis),
		BusinessModel:      strings.TrimSpace(input.BusinessModel),
		TimelineMonths:     input.TimelineMonths,
		TotalBudget:        input.TotalBudget,
		RequestedFunding:   input.RequestedFunding,
		OwnContribution:    own,
		Status:             model.StatusDraft,
	}
	if input.BudgetBreakdown != nil {
		raw, err := json.Marshal(input.BudgetBreakdown)
		if err != nil {
			return nil, ErrInvalidInput
		}
		app.BudgetBreakdown = datatypes.JSON(raw)
	}

	if err := validateProject(app); err != nil {
		return nil, err
	}
	if err := validateBudget(app, grant); err != nil {
		return nil, err
	}

	if err := s.appRepo.Create(app); err != nil {
		return nil, err
	}
	app.Grant = grant
	s.logger.Info("application created",
		zap.String("application_id", app.ID.String()),
		zap.String("user_id", app.UserID.String()),
	)
	return app, nil
}

func (s *ApplicationService) Get(userID, id uuid.UUID) (*model.Application, error) {
	app, err := s.appRepo.GetByIDAndUserID(id, userID)
	if err != nil {
		return nil, err
	}
	if app == nil {
		return nil, ErrApplicationNotFound
	}
	sortSections(app.Sections)
	return app, nil
}

func (s *ApplicationService) List(input ListApplicationsInput) (*ApplicationPage, error) {
	if input.Status != "" && !input.Status.Valid() {
		return nil, ErrInvalidInput
	}
	limit := clampLimit(input.Limit, 20, 100)
	offset := input.Offset
	if offset < 0 {
		offset = 0
	}
	apps, total, err := s.appRepo.ListByUserID(input.UserID, input.Status, limit, offset)
	if err != nil {
		return nil, err
	}
	return &ApplicationPage{Items: apps, Total: total, Limit: limit, Offset: offset}, nil
}

func (s *ApplicationService) Update(userID, id uuid.UUID, input UpdateApplicationInput) (*model.Application, error) {
	app, err := s.Get(userID, id)
	if err != nil {
		return nil, err
	}
	if !app.Status.Editable() {
		return nil, ErrApplicationLocked
	}

	setString(&app.ProjectTitle, input.ProjectTitle)
	setString(&app.ProjectDescription, input.ProjectDescription)
	setString(&app.ProjectInnovation, input.ProjectInnovation)
	setString(&app.ProjectTechnology, input.ProjectTechnology)
	setString(&app.TargetAudience, input.TargetAudience)
	setString(&app.MarketAnalysis, input.MarketAnalysis)
	setString(&app.BusinessModel, input.BusinessModel)
	if input.ProjectGoals != nil {
		app.ProjectGoals = cleanList(input.ProjectGoals)
	}
	if input.TimelineMonths != nil {
		app.TimelineMonths = *input.TimelineMonths
	}

	budgetChanged := input.TotalBudget != nil || input.RequestedFunding != nil || input.OwnContribution != nil
	if input.TotalBudget != nil {
		app.TotalBudget = *input.TotalBudget
	}
	if input.RequestedFunding != nil {
		app.RequestedFunding = *input.RequestedFunding
	}
	if input.OwnContribution != nil {
		app.OwnContribution = *input.OwnContribution
	} else if budgetChanged {
		app.OwnContribution = app.TotalBudget - app.RequestedFunding
	}
	if input.BudgetBreakdown != nil {
		raw, err := json.Marshal(input.BudgetBreakdown)
		if err != nil {
			return nil, ErrInvalidInput
		}
		app.BudgetBreakdown = datatypes.JSON(raw)
	}

	if err := validateProject(app); err != nil {
		return nil, err
	}
	if err := validateBudget(app, app.Grant); err != nil {
		return nil, err
	}

	updated, err := s.appRepo.Update(app)
	if err != nil {
		return nil, err
	}
	if !updated {
		return nil, ErrApplicationLocked
	}
	return app, nil
}

// Delete removes a draft application with its sections, documents and files.
func (s *ApplicationService) Delete(userID, id uuid.UUID) error {
	app, err := s.Get(userID, id)
	if err != nil {
		return err
	}
	if app.Status != model.StatusDraft {
		return ErrApplicationLocked
	}
	if err := s.appRepo.Delete(app.ID); err != nil {
		return err
	}
	if s.documentsDir != "" {
		if err := os.RemoveAll(filepath.Join(s.documentsDir, app.ID.String())); err != nil {
			s.logger.Warn("remove application files failed", zap.String("application_id", app.ID.String()), zap.Error(err))
		}
	}
	return nil
}

// Generate moves the application to generating and enqueues the writer job.
// sectionKey limits generation to one section; empty means all.
func (s *ApplicationService) Generate(ctx context.Context, userID, id uuid.UUID, sectionKey string) (*model.Application, error) {
	if sectionKey != "" {
		if _, ok := SectionByKey(sectionKey); !ok {
			return nil, ErrUnknownSection
		}
	}
	app, err := s.Get(userID, id)
	if err != nil {
		return nil, err
	}
	previous := app.Status
	if !previous.CanTransition(model.StatusGenerating) {
		return nil, ErrInvalidStatusTransition
	}

	moved, err := s.appRepo.TransitionStatus(app.ID, previous, model.StatusGenerating, map[string]interface{}{"generation_error": ""})
	if err != nil {
		return nil, err
	}
	if !moved {
		return nil, ErrInvalidStatusTransition
	}

	payload := model.GenerateApplicationPayload{
		ApplicationID:  app.ID,
		SectionKey:     sectionKey,
		PreviousStatus: previous,
	}
	if err := s.jobs.Enqueue(ctx, model.JobGenerateApplication, payload); err != nil {
		if _, revertErr := s.appRepo.TransitionStatus(app.ID, model.StatusGenerating, previous, nil); revertErr != nil {
			s.logger.Error("revert generating status failed", zap.String("application_id", app.ID.String()), zap.Error(revertErr))
		}
		return nil, fmt.Errorf("%w: %v", ErrQueueUnavailable, err)
	}

	app.Status = model.StatusGenerating
	app.GenerationError = ""
	return app, nil
}

// RunGeneration executes a generate_application job. On failure the
// application returns to the status it had before generation started.
func (s *ApplicationService) RunGeneration(ctx context.Context, payload model.GenerateApplicationPayload) error {
	app, err := s.appRepo.GetByID(payload.ApplicationID)
	if err != nil {
		return err
	}
	if app == nil {
		return ErrApplicationNotFound
	}
	if app.Status != model.StatusGenerating {
		s.logger.Warn("skip generation, application not generating",
			zap.String("application_id", app.ID.String()),
			zap.String("status", string(app.Status)),
		)
		return nil
	}

	previous := payload.PreviousStatus
	if previous != model.StatusDraft && previous != model.StatusInProgress {
		previous = model.StatusDraft
	}

	if err := s.generateSections(ctx, app, payload.SectionKey); err != nil {
		if _, revertErr := s.appRepo.TransitionStatus(app.ID, model.StatusGenerating, previous,
			map[string]interface{}{"generation_error": truncateError(err)}); revertErr != nil {
			s.logger.Error("restore status after failed generation failed",
				zap.String("application_id", app.ID.String()), zap.Error(revertErr))
		}
		return err
	}

	moved, err := s.appRepo.TransitionStatus(app.ID, model.StatusGenerating, model.StatusInProgress,
		map[string]interface{}{"generation_error": ""})
	if err != nil {
		return err
	}
	if !moved {
		return ErrInvalidStatusTransition
	}
	return nil
}

func (s *ApplicationService) generateSections(ctx context.Context, app *model.Application, only string) error {
	present := make(map[string]bool, len(sectionSpecs))
	for _, sec := range app.Sections {
		present[sec.SectionKey] = true
	}

	specs := Sections()
	if only != "" {
		spec, ok := SectionByKey(only)
		if !ok {
			return ErrUnknownSection
		}
		specs = []SectionSpec{spec}
	}

	for _, spec := range specs {
		if err := ctx.Err(); err != nil {
			return err
		}
		content, err := s.writer.Generate(ctx, spec.Key, app)
		if err != nil {
			return err
		}
		now := s.now()
		if err := s.sectionRepo.Upsert(&model.ApplicationSection{
			ApplicationID: app.ID,
			SectionKey:    spec.Key,
			Title:         spec.Title,
			Content:       content,
			Model:         s.writer.Model(),
			GeneratedAt:   now,
		}); err != nil {
			return err
		}
		present[spec.Key] = true

		if err := s.appRepo.UpdateFields(app.ID, map[string]interface{}{
			"completion_percentage": CompletionPercentage(len(present)),
		}); err != nil {
			return err
		}
		s.logger.Info("section generated",
			zap.String("application_id", app.ID.String()),
			zap.String("section", spec.Key),
		)
	}
	return nil
}

// CompletionPercentage maps the number of present sections to 0..100.
func CompletionPercentage(done int) int {
	return int(math.Round(float64(done) / float64(len(sectionSpecs)) * 100))
}

func (s *ApplicationService) Submit(userID, id uuid.UUID) (*model.Application, error) {
	app, err := s.Get(userID, id)
	if err != nil {
		return nil, err
	}
	if !app.Status.CanTransition(model.StatusSubmitted) {
		return nil, ErrInvalidStatusTransition
	}
	if missing := missingSections(app.Sections); len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing %s", ErrSectionsIncomplete, strings.Join(missing, ", "))
	}

	now := s.now()
	tracking, err := trackingNumber(now)
	if err != nil {
		return nil, err
	}
	moved, err := s.appRepo.TransitionStatus(app.ID, app.Status, model.StatusSubmitted, map[string]interface{}{
		"submitted_at":    now,
		"tracking_number": tracking,
	})
	if err != nil {
		return nil, err
	}
	if !moved {
		return nil, ErrInvalidStatusTransition
	}

	app.Status = model.StatusSubmitted
	app.SubmittedAt = &now
	app.TrackingNumber = tracking
	return app, nil
}

// Decide records the funder's decision. Approval computes the success fee
// commission from the owner's subscription tier.
func (s *ApplicationService) Decide(userID, id uuid.UUID, input DecisionInput) (*model.Application, error) {
	app, err := s.Get(userID, id)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if !input.Approved {
		if !app.Status.CanTransition(model.StatusRejected) {
			return nil, ErrInvalidStatusTransition
		}
		moved, err := s.appRepo.TransitionStatus(app.ID, app.Status, model.StatusRejected, map[string]interface{}{"rejected_at": now})
		if err != nil {
			return nil, err
		}
		if !moved {
			return nil, ErrInvalidStatusTransition
		}
		app.Status = model.StatusRejected
		app.RejectedAt = &now
		return app, nil
	}

	if !app.Status.CanTransition(model.StatusApproved) {
		return nil, ErrInvalidStatusTransition
	}
	funding := app.RequestedFunding
	if input.ApprovedFunding != nil {
		funding = *input.ApprovedFunding
	}
	if funding <= 0 {
		return nil, ErrInvalidInput
	}

	owner, err := s.userRepo.GetByID(app.UserID)
	if err != nil {
		return nil, err
	}
	tier := model.TierBasic
	if owner != nil {
		tier = owner.SubscriptionTier
	}
	fee, err := CalculateSuccessFee(funding, tier)
	if err != nil {
		return nil, err
	}

	moved, err := s.appRepo.TransitionStatus(app.ID, app.Status, model.StatusApproved, map[string]interface{}{
		"approved_at":       now,
		"approved_funding":  funding,
		"commission_rate":   fee.FeePercentage,
		"commission_amount": fee.FeeAmount,
	})
	if err != nil {
		return nil, err
	}
	if !moved {
		return nil, ErrInvalidStatusTransition
	}

	app.Status = model.StatusApproved
	app.ApprovedAt = &now
	app.ApprovedFunding = &funding
	app.CommissionRate = &fee.FeePercentage
	app.CommissionAmount = &fee.FeeAmount
	return app, nil
}

func validateProject(app *model.Application) error {
	if len([]rune(app.ProjectTitle)) < 3 || len([]rune(app.ProjectTitle)) > 512 {
		return fmt.Errorf("%w: project title must be 3-512 characters", ErrInvalidInput)
	}
	if len([]rune(app.ProjectDescription)) < 10 {
		return fmt.Errorf("%w: project description is too short", ErrInvalidInput)
	}
	if app.TimelineMonths < 1 || app.TimelineMonths > 60 {
		return fmt.Errorf("%w: timeline must be 1-60 months", ErrInvalidInput)
	}
	return nil
}

func validateBudget(app *model.Application, grant *model.Grant) error {
	if app.TotalBudget <= 0 || app.RequestedFunding <= 0 || app.OwnContribution < 0 {
		return fmt.Errorf("%w: budget values must be positive", ErrInvalidInput)
	}
	if math.Abs(app.RequestedFunding+app.OwnContribution-app.TotalBudget) > budgetTolerance {
		return ErrBudgetMismatch
	}
	if grant != nil && grant.MaxFunding > 0 && app.RequestedFunding > grant.MaxFunding {
		return ErrFundingExceedsGrant
	}
	return nil
}

func missingSections(sections []model.ApplicationSection) []string {
	have := make(map[string]bool, len(sections))
	for _, sec := range sections {
		if strings.TrimSpace(sec.Content) != "" {
			have[sec.SectionKey] = true
		}
	}
	var missing []string
	for _, spec := range sectionSpecs {
		if !have[spec.Key] {
			missing = append(missing, spec.Key)
		}
	}
	return missing
}

func sortSections(sections []model.ApplicationSection) {
	order := make(map[string]int, len(sectionSpecs))
	for i, spec := range sectionSpecs {
		order[spec.Key] = i
	}
	sort.SliceStable(sections, func(i, j int) bool {
		return order[sections[i].SectionKey] < order[sections[j].SectionKey]
	})
}

func trackingNumber(now time.Time) (string, error) {
	buf := make([]byte, 3)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate tracking number failed: %w", err)
	}
	return fmt.Sprintf("FS-%d-%s", now.Year(), strings.ToUpper(hex.EncodeToString(buf))), nil
}

func truncateError(err error) string {
	msg := err.Error()
	if len(msg) > 1000 {
		return msg[:1000]
	}
	return msg
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = strings.TrimSpace(*src)
	}
}

func cleanList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
