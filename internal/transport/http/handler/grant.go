package handler

import (
	"github.com/gin-gonic/gin"

	"foerderscout/internal/app"
	"foerderscout/internal/model"
	"foerderscout/internal/transport/http/response"
)

type GrantHandler struct {
	grantService *app.GrantService
}

type ListGrantsQuery struct {
	Type     string `form:"type"`
	Category string `form:"category"`
	Limit    int    `form:"limit"`
	Offset   int    `form:"offset"`
}

func NewGrantHandler(grantService *app.GrantService) *GrantHandler {
	return &GrantHandler{grantService: grantService}
}

func (h *GrantHandler) List(c *gin.Context) {
	var q ListGrantsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badPayload(c)
		return
	}

	page, err := h.grantService.List(app.ListGrantsInput{
		Type:     model.GrantType(q.Type),
		Category: model.GrantCategory(q.Category),
		Limit:    q.Limit,
		Offset:   q.Offset,
	})
	if err != nil {
		writeError(c, err, "list grants failed")
		return
	}

	response.OK(c, page)
}

// Get accepts either the grant UUID or its external id.
func (h *GrantHandler) Get(c *gin.Context) {
	grant, err := h.grantService.Get(c.Param("id"))
	if err != nil {
		writeError(c, err, "fetch grant failed")
		return
	}

	response.OK(c, grant)
}

func (h *GrantHandler) Search(c *gin.Context) {
	var req app.GrantSearchInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badPayload(c)
		return
	}

	matches, err := h.grantService.Search(c.Request.Context(), req)
	if err != nil {
		writeError(c, err, "grant search failed")
		return
	}

	response.OK(c, gin.H{
		"total":   len(matches),
		"results": matches,
	})
}
