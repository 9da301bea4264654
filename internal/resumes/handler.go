package resumes

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"cvadapt-backend/internal/shared/server/middleware"
	"cvadapt-backend/internal/shared/server/respond"
)

const maxUploadSize = 4 << 20 // 4MB

// Handler wires HTTP handlers to the service.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches resume routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/resumes", h.upload)
	rg.GET("/resumes", h.list)
	rg.GET("/resumes/:id", h.get)
	rg.GET("/generated-resumes", h.listGenerated)
	rg.GET("/generated-resumes/:id", h.getGenerated)
	rg.GET("/generated-resumes/:id/source", h.getSourceSnapshot)
}

func (h *Handler) upload(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadSize)

	fileName := c.Query("fileName")
	if fileName == "" {
		fileName = "resume.json"
	}

	resume, err := h.Svc.Upload(c.Request.Context(), userID, fileName, c.Request.Body)
	if err != nil {
		if errors.Is(err, ErrInvalidInput) {
			respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
			return
		}
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to store resume", nil)
		return
	}

	respond.JSON(c, http.StatusCreated, toResumeResponse(resume))
}

func (h *Handler) get(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)

	resume, err := h.Svc.Get(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		respondLookupError(c, err, "resume")
		return
	}
	respond.OK(c, toResumeResponse(resume))
}

func (h *Handler) list(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	limit, offset := pageParams(c)

	items, err := h.Svc.List(c.Request.Context(), userID, limit, offset)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to list resumes", nil)
		return
	}
	out := make([]resumeResponse, 0, len(items))
	for _, resume := range items {
		out = append(out, toResumeResponse(resume))
	}
	respond.OK(c, gin.H{"items": out})
}

func (h *Handler) getGenerated(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)

	resume, err := h.Svc.GetGenerated(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		respondLookupError(c, err, "generated resume")
		return
	}
	respond.OK(c, toGeneratedResponse(resume))
}

func (h *Handler) listGenerated(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	limit, offset := pageParams(c)

	items, err := h.Svc.ListGenerated(c.Request.Context(), userID, limit, offset)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to list generated resumes", nil)
		return
	}
	out := make([]generatedResponse, 0, len(items))
	for _, resume := range items {
		out = append(out, toGeneratedResponse(resume))
	}
	respond.OK(c, gin.H{"items": out})
}

func (h *Handler) getSourceSnapshot(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)

	snapshot, err := h.Svc.GetSourceSnapshot(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		respondLookupError(c, err, "source snapshot")
		return
	}
	respond.OK(c, gin.H{
		"version":   snapshot.Version,
		"label":     snapshot.Label,
		"content":   snapshot.Content,
		"createdAt": snapshot.CreatedAt.Format(time.RFC3339),
	})
}

func respondLookupError(c *gin.Context, err error, what string) {
	switch {
	case errors.Is(err, ErrInvalidInput):
		respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrForbidden):
		respond.Error(c, http.StatusNotFound, "not_found", what+" not found", nil)
	default:
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to load "+what, nil)
	}
}

func pageParams(c *gin.Context) (int, int) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	return limit, offset
}

type resumeResponse struct {
	ID        string   `json:"id"`
	FileName  string   `json:"fileName"`
	Content   Document `json:"content"`
	CreatedAt string   `json:"createdAt"`
	UpdatedAt string   `json:"updatedAt"`
}

func toResumeResponse(resume Resume) resumeResponse {
	return resumeResponse{
		ID:        resume.ID,
		FileName:  resume.FileName,
		Content:   resume.Content,
		CreatedAt: resume.CreatedAt.Format(time.RFC3339),
		UpdatedAt: resume.UpdatedAt.Format(time.RFC3339),
	}
}

type generatedResponse struct {
	ID             string         `json:"id"`
	SourceResumeID string         `json:"sourceResumeId"`
	OfferID        string         `json:"offerId,omitempty"`
	FileName       string         `json:"fileName"`
	Content        Document       `json:"content"`
	Modifications  []Modification `json:"modifications"`
	CreatedAt      string         `json:"createdAt"`
}

func toGeneratedResponse(resume GeneratedResume) generatedResponse {
	mods := resume.Modifications
	if mods == nil {
		mods = []Modification{}
	}
	return generatedResponse{
		ID:             resume.ID,
		SourceResumeID: resume.SourceResumeID,
		OfferID:        resume.OfferID,
		FileName:       resume.FileName,
		Content:        resume.Content,
		Modifications:  mods,
		CreatedAt:      resume.CreatedAt.Format(time.RFC3339),
	}
}
