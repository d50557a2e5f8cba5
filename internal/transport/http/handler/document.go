package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"foerderscout/internal/app"
	"foerderscout/internal/model"
	"foerderscout/internal/transport/http/response"
)

type DocumentHandler struct {
	documentService *app.DocumentService
}

type ExportDocumentRequest struct {
	ApplicationID uuid.UUID `json:"application_id" binding:"required"`
	Format        string    `json:"format" binding:"omitempty,oneof=docx pdf"`
}

func NewDocumentHandler(documentService *app.DocumentService) *DocumentHandler {
	return &DocumentHandler{documentService: documentService}
}

func (h *DocumentHandler) Generate(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return
	}

	var req ExportDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badPayload(c)
		return
	}

	queued, err := h.documentService.Export(c.Request.Context(), userID, req.ApplicationID, model.DocumentFormat(req.Format))
	if err != nil {
		writeError(c, err, "queue document export failed")
		return
	}

	response.Accepted(c, queued)
}

func (h *DocumentHandler) ListByApplication(c *gin.Context) {
	userID, applicationID, ok := userAndID(c)
	if !ok {
		return
	}

	docs, err := h.documentService.ListByApplication(userID, applicationID)
	if err != nil {
		writeError(c, err, "list documents failed")
		return
	}

	response.OK(c, gin.H{
		"total": len(docs),
		"items": docs,
	})
}

func (h *DocumentHandler) Get(c *gin.Context) {
	userID, id, ok := userAndID(c)
	if !ok {
		return
	}

	doc, err := h.documentService.Get(userID, id)
	if err != nil {
		writeError(c, err, "fetch document failed")
		return
	}

	response.OK(c, doc)
}

func (h *DocumentHandler) Download(c *gin.Context) {
	userID, id, ok := userAndID(c)
	if !ok {
		return
	}

	doc, err := h.documentService.Download(userID, id)
	if err != nil {
		writeError(c, err, "download document failed")
		return
	}

	c.Header("Content-Type", doc.Format.ContentType())
	c.FileAttachment(doc.FilePath, doc.Filename)
}

func (h *DocumentHandler) Delete(c *gin.Context) {
	userID, id, ok := userAndID(c)
	if !ok {
		return
	}

	if err := h.documentService.Delete(userID, id); err != nil {
		writeError(c, err, "delete document failed")
		return
	}

	response.OK(c, gin.H{"deleted": true})
}
