package generation

import (
	"encoding/base64"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"cvadapt-backend/internal/credits"
	"cvadapt-backend/internal/jobpostings"
	"cvadapt-backend/internal/shared/server/middleware"
	"cvadapt-backend/internal/shared/server/respond"
	"cvadapt-backend/internal/slots"
)

// Handler wires HTTP handlers to the service.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches generation routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/generation-tasks", h.create)
	rg.GET("/generation-tasks", h.list)
	rg.GET("/generation-tasks/:id", h.get)
	rg.GET("/generation-tasks/:id/status", h.status)
	rg.POST("/generation-tasks/:id/cancel", h.cancel)
	rg.POST("/generation-tasks/:id/offers/:offerId/retry", h.retryOffer)
}

type offerSourceRequest struct {
	URL       string `json:"url"`
	Text      string `json:"text"`
	PDFBase64 string `json:"pdfBase64"`
}

type createRequest struct {
	ResumeID string               `json:"resumeId" binding:"required"`
	Mode     string               `json:"mode"`
	Offers   []offerSourceRequest `json:"offers" binding:"required"`
}

func (h *Handler) create(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)

	var body createRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}

	offers := make([]jobpostings.Source, 0, len(body.Offers))
	for _, src := range body.Offers {
		source := jobpostings.Source{URL: src.URL, Text: src.Text}
		if src.PDFBase64 != "" {
			pdf, err := base64.StdEncoding.DecodeString(src.PDFBase64)
			if err != nil {
				respond.Error(c, http.StatusBadRequest, "validation_error", "invalid pdfBase64", nil)
				return
			}
			source.PDF = pdf
		}
		offers = append(offers, source)
	}

	task, err := h.Svc.Create(c.Request.Context(), userID, CreateRequest{
		ResumeID: body.ResumeID,
		Mode:     body.Mode,
		Offers:   offers,
	})
	if err != nil {
		respondCreateError(c, err)
		return
	}
	respond.JSON(c, http.StatusAccepted, toTaskResponse(task))
}

func (h *Handler) get(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	c.Set("taskId", c.Param("id"))

	task, err := h.Svc.Get(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		respondTaskError(c, err)
		return
	}
	respond.OK(c, toTaskResponse(task))
}

func (h *Handler) list(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	tasks, err := h.Svc.List(c.Request.Context(), userID, limit, offset)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to list tasks", nil)
		return
	}
	out := make([]taskResponse, 0, len(tasks))
	for _, task := range tasks {
		out = append(out, toTaskResponse(task))
	}
	respond.OK(c, gin.H{"items": out})
}

func (h *Handler) status(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	c.Set("taskId", c.Param("id"))

	status, err := h.Svc.Status(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		respondTaskError(c, err)
		return
	}
	respond.OK(c, status)
}

func (h *Handler) cancel(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	c.Set("taskId", c.Param("id"))

	task, err := h.Svc.Cancel(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		respondTaskError(c, err)
		return
	}
	respond.OK(c, toTaskResponse(task))
}

func (h *Handler) retryOffer(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	c.Set("taskId", c.Param("id"))
	c.Set("offerId", c.Param("offerId"))

	err := h.Svc.RetryOffer(c.Request.Context(), userID, c.Param("id"), c.Param("offerId"))
	if err != nil {
		respondTaskError(c, err)
		return
	}
	respond.JSON(c, http.StatusAccepted, gin.H{"status": "queued"})
}

func respondCreateError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, credits.ErrInsufficientCredits):
		respond.Error(c, http.StatusPaymentRequired, "insufficient_credits", "not enough credits", nil)
	case errors.Is(err, slots.ErrTaskInProgress):
		respond.Error(c, http.StatusConflict, "task_in_progress", err.Error(), nil)
	case errors.Is(err, ErrInvalidInput):
		respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
	case errors.Is(err, jobpostings.ErrInvalidInput), errors.Is(err, jobpostings.ErrUnreachableSource):
		respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
	default:
		respondTaskError(c, err)
	}
}

func respondTaskError(c *gin.Context, err error) {
	switch {
	case IsNotFound(err):
		respond.Error(c, http.StatusNotFound, "not_found", "task not found", nil)
	case errors.Is(err, ErrInvalidInput):
		respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
	case errors.Is(err, credits.ErrInsufficientCredits):
		respond.Error(c, http.StatusPaymentRequired, "insufficient_credits", "not enough credits", nil)
	default:
		respond.Error(c, http.StatusInternalServerError, "internal_error", "generation request failed", nil)
	}
}

type taskResponse struct {
	ID              string `json:"id"`
	ResumeID        string `json:"resumeId"`
	Mode            string `json:"mode"`
	Status          string `json:"status"`
	CreditCost      int    `json:"creditCost"`
	CreditsRefunded int    `json:"creditsRefunded"`
	CompletedOffers int    `json:"completedOffers"`
	TotalOffers     int    `json:"totalOffers"`
	Error           string `json:"error,omitempty"`
	CreatedAt       string `json:"createdAt"`
	UpdatedAt       string `json:"updatedAt"`
}

func toTaskResponse(task Task) taskResponse {
	return taskResponse{
		ID:              task.ID,
		ResumeID:        task.ResumeID,
		Mode:            task.Mode,
		Status:          task.Status,
		CreditCost:      task.CreditCost,
		CreditsRefunded: task.CreditsRefunded,
		CompletedOffers: task.CompletedOffers,
		TotalOffers:     task.TotalOffers,
		Error:           task.Error,
		CreatedAt:       task.CreatedAt.Format(time.RFC3339),
		UpdatedAt:       task.UpdatedAt.Format(time.RFC3339),
	}
}
