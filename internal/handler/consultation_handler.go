package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/agrisetu/agrisetu-api/internal/middleware"
	"github.com/agrisetu/agrisetu-api/internal/service"
	appErrors "github.com/agrisetu/agrisetu-api/pkg/errors"
	"github.com/agrisetu/agrisetu-api/pkg/response"
)

// ConsultationHandler serves the consultation lifecycle endpoints.
type ConsultationHandler struct {
	service *service.ConsultationService
}

// NewConsultationHandler creates a new handler.
func NewConsultationHandler(svc *service.ConsultationService) *ConsultationHandler {
	return &ConsultationHandler{service: svc}
}

// Book godoc
// @Summary Book consultation
// @Description Book a consultation against an instructor's weekly availability
// @Tags Consultations
// @Accept json
// @Produce json
// @Param payload body service.BookConsultationRequest true "Booking payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /consultations [post]
func (h *ConsultationHandler) Book(c *gin.Context) {
	claims := middleware.CurrentUser(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.BookConsultationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid booking payload"))
		return
	}

	consultation, err := h.service.Book(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, consultation)
}

// Approve godoc
// @Summary Approve consultation
// @Description Approve a pending consultation and attach a meet link
// @Tags Consultations
// @Produce json
// @Param id path string true "Consultation ID"
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /consultations/{id}/approve [post]
func (h *ConsultationHandler) Approve(c *gin.Context) {
	claims := middleware.CurrentUser(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	consultation, err := h.service.Approve(c.Request.Context(), claims.UserID, service.ConsultationActionRequest{ConsultationID: c.Param("id")})
	if err != nil {
		h.respondActionError(c, err)
		return
	}
	response.JSON(c, http.StatusOK, consultation, nil)
}

// Reject godoc
// @Summary Reject consultation
// @Description Reject a pending consultation
// @Tags Consultations
// @Produce json
// @Param id path string true "Consultation ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /consultations/{id}/reject [post]
func (h *ConsultationHandler) Reject(c *gin.Context) {
	claims := middleware.CurrentUser(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	consultation, err := h.service.Reject(c.Request.Context(), claims.UserID, service.ConsultationActionRequest{ConsultationID: c.Param("id")})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, consultation, nil)
}

// Start godoc
// @Summary Start consultation
// @Description Move an approved consultation to in progress
// @Tags Consultations
// @Produce json
// @Param id path string true "Consultation ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /consultations/{id}/start [post]
func (h *ConsultationHandler) Start(c *gin.Context) {
	claims := middleware.CurrentUser(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	consultation, err := h.service.Start(c.Request.Context(), claims.UserID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, consultation, nil)
}

// ListMine godoc
// @Summary List my consultations
// @Description List the caller's consultations with payment status
// @Tags Consultations
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /consultations [get]
func (h *ConsultationHandler) ListMine(c *gin.Context) {
	claims := middleware.CurrentUser(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	list, err := h.service.ListForUser(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, list, nil)
}

// ListForInstructor godoc
// @Summary List consultations booked with me
// @Description List consultations booked against the caller's instructor profile
// @Tags Consultations
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /consultations/instructor [get]
func (h *ConsultationHandler) ListForInstructor(c *gin.Context) {
	claims := middleware.CurrentUser(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	list, err := h.service.ListForInstructor(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, list, nil)
}

// respondActionError surfaces a calendar reauth requirement as a payload
// carrying the consent URL so the admin client can reconnect.
func (h *ConsultationHandler) respondActionError(c *gin.Context, err error) {
	var reauth *service.ReauthRequiredError
	if errors.As(err, &reauth) {
		appErr := appErrors.FromError(err)
		c.Header("Cache-Control", "no-store")
		c.JSON(appErr.Status, gin.H{"error": appErr, "auth_url": reauth.AuthURL})
		return
	}
	response.Error(c, err)
}
