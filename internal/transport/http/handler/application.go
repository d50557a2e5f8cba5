package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"foerderscout/internal/app"
	"foerderscout/internal/model"
	"foerderscout/internal/transport/http/response"
)

type ApplicationHandler struct {
	applicationService *app.ApplicationService
	documentService    *app.DocumentService
}

type CreateApplicationRequest struct {
	GrantID            uuid.UUID          `json:"grant_id" binding:"required"`
	ProjectTitle       string             `json:"project_title" binding:"required,max=255"`
	ProjectDescription string             `json:"project_description" binding:"required"`
	ProjectGoals       []string           `json:"project_goals"`
	ProjectInnovation  string             `json:"project_innovation"`
	ProjectTechnology  string             `json:"project_technology"`
	TargetAudience     string             `json:"target_audience"`
	MarketAnalysis     string             `json:"market_analysis"`
	BusinessModel      string             `json:"business_model"`
	TimelineMonths     int                `json:"timeline_months" binding:"required,min=1,max=60"`
	TotalBudget        float64            `json:"total_budget" binding:"required,gt=0"`
	RequestedFunding   float64            `json:"requested_funding" binding:"required,gt=0"`
	OwnContribution    *float64           `json:"own_contribution" binding:"omitempty,min=0"`
	BudgetBreakdown    map[string]float64 `json:"budget_breakdown"`
}

type UpdateApplicationRequest struct {
	ProjectTitle       *string            `json:"project_title" binding:"omitempty,max=255"`
	ProjectDescription *string            `json:"project_description"`
	ProjectGoals       []string           `json:"project_goals"`
	ProjectInnovation  *string            `json:"project_innovation"`
	ProjectTechnology  *string            `json:"project_technology"`
	TargetAudience     *string            `json:"target_audience"`
	MarketAnalysis     *string            `json:"market_analysis"`
	BusinessModel      *string            `json:"business_model"`
	TimelineMonths     *int               `json:"timeline_months" binding:"omitempty,min=1,max=60"`
	TotalBudget        *float64           `json:"total_budget" binding:"omitempty,gt=0"`
	RequestedFunding   *float64           `json:"requested_funding" binding:"omitempty,gt=0"`
	OwnContribution    *float64           `json:"own_contribution" binding:"omitempty,min=0"`
	BudgetBreakdown    map[string]float64 `json:"budget_breakdown"`
}

type ListApplicationsQuery struct {
	Status string `form:"status"`
	Limit  int    `form:"limit"`
	Offset int    `form:"offset"`
}

type GenerateRequest struct {
	Section string `json:"section"`
}

type DecisionRequest struct {
	Approved        bool     `json:"approved"`
	ApprovedFunding *float64 `json:"approved_funding" binding:"omitempty,gt=0"`
}

func NewApplicationHandler(applicationService *app.ApplicationService, documentService *app.DocumentService) *ApplicationHandler {
	return &ApplicationHandler{
		applicationService: applicationService,
		documentService:    documentService,
	}
}

func (h *ApplicationHandler) Create(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return
	}

	var req CreateApplicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badPayload(c)
		return
	}

	created, err := h.applicationService.Create(app.CreateApplicationInput{
		UserID:             userID,
		GrantID:            req.GrantID,
		ProjectTitle:       req.ProjectTitle,
		ProjectDescription: req.ProjectDescription,
		ProjectGoals:       req.ProjectGoals,
		ProjectInnovation:  req.ProjectInnovation,
		ProjectTechnology:  req.ProjectTechnology,
		TargetAudience:     req.TargetAudience,
		MarketAnalysis:     req.MarketAnalysis,
		BusinessModel:      req.BusinessModel,
		TimelineMonths:     req.TimelineMonths,
		TotalBudget:        req.TotalBudget,
		RequestedFunding:   req.RequestedFunding,
		OwnContribution:    req.OwnContribution,
		BudgetBreakdown:    req.BudgetBreakdown,
	})
	if err != nil {
		writeError(c, err, "create application failed")
		return
	}

	response.Created(c, created)
}

func (h *ApplicationHandler) List(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return
	}

	var q ListApplicationsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badPayload(c)
		return
	}

	page, err := h.applicationService.List(app.ListApplicationsInput{
		UserID: userID,
		Status: model.ApplicationStatus(q.Status),
		Limit:  q.Limit,
		Offset: q.Offset,
	})
	if err != nil {
		writeError(c, err, "list applications failed")
		return
	}

	response.OK(c, page)
}

func (h *ApplicationHandler) Get(c *gin.Context) {
	userID, id, ok := userAndID(c)
	if !ok {
		return
	}

	application, err := h.applicationService.Get(userID, id)
	if err != nil {
		writeError(c, err, "fetch application failed")
		return
	}

	response.OK(c, application)
}

func (h *ApplicationHandler) Update(c *gin.Context) {
	userID, id, ok := userAndID(c)
	if !ok {
		return
	}

	var req UpdateApplicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badPayload(c)
		return
	}

	updated, err := h.applicationService.Update(userID, id, app.UpdateApplicationInput{
		ProjectTitle:       req.ProjectTitle,
		ProjectDescription: req.ProjectDescription,
		ProjectGoals:       req.ProjectGoals,
		ProjectInnovation:  req.ProjectInnovation,
		ProjectTechnology:  req.ProjectTechnology,
		TargetAudience:     req.TargetAudience,
		MarketAnalysis:     req.MarketAnalysis,
		BusinessModel:      req.BusinessModel,
		TimelineMonths:     req.TimelineMonths,
		TotalBudget:        req.TotalBudget,
		RequestedFunding:   req.RequestedFunding,
		OwnContribution:    req.OwnContribution,
		BudgetBreakdown:    req.BudgetBreakdown,
	})
	if err != nil {
		writeError(c, err, "update application failed")
		return
	}

	response.OK(c, updated)
}

func (h *ApplicationHandler) Delete(c *gin.Context) {
	userID, id, ok := userAndID(c)
	if !ok {
		return
	}

	if err := h.applicationService.Delete(userID, id); err != nil {
		writeError(c, err, "delete application failed")
		return
	}

	response.OK(c, gin.H{"deleted": true})
}

// Generate queues section generation. An empty body generates every section.
func (h *ApplicationHandler) Generate(c *gin.Context) {
	userID, id, ok := userAndID(c)
	if !ok {
		return
	}

	var req GenerateRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badPayload(c)
			return
		}
	}

	application, err := h.applicationService.Generate(c.Request.Context(), userID, id, req.Section)
	if err != nil {
		writeError(c, err, "start generation failed")
		return
	}

	response.Accepted(c, gin.H{
		"application_id": application.ID,
		"status":         application.Status,
		"section":        req.Section,
	})
}

func (h *ApplicationHandler) Submit(c *gin.Context) {
	userID, id, ok := userAndID(c)
	if !ok {
		return
	}

	submitted, err := h.applicationService.Submit(userID, id)
	if err != nil {
		writeError(c, err, "submit application failed")
		return
	}

	response.OK(c, submitted)
}

func (h *ApplicationHandler) Decide(c *gin.Context) {
	userID, id, ok := userAndID(c)
	if !ok {
		return
	}

	var req DecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badPayload(c)
		return
	}

	decided, err := h.applicationService.Decide(userID, id, app.DecisionInput{
		Approved:        req.Approved,
		ApprovedFunding: req.ApprovedFunding,
	})
	if err != nil {
		writeError(c, err, "record decision failed")
		return
	}

	response.OK(c, decided)
}

func (h *ApplicationHandler) UploadApprovalNotice(c *gin.Context) {
	userID, id, ok := userAndID(c)
	if !ok {
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		badPayload(c)
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		badPayload(c)
		return
	}
	defer file.Close()

	result, err := h.documentService.UploadApprovalNotice(app.UploadApprovalNoticeInput{
		UserID:        userID,
		ApplicationID: id,
		Filename:      fileHeader.Filename,
		Size:          fileHeader.Size,
		Body:          file,
	})
	if err != nil {
		writeError(c, err, "upload approval notice failed")
		return
	}

	response.Created(c, result)
}

func userAndID(c *gin.Context) (uuid.UUID, uuid.UUID, bool) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return uuid.Nil, uuid.Nil, false
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return uuid.Nil, uuid.Nil, false
	}
	return userID, id, true
}
