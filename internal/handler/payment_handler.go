package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/agrisetu/agrisetu-api/internal/middleware"
	"github.com/agrisetu/agrisetu-api/internal/service"
	appErrors "github.com/agrisetu/agrisetu-api/pkg/errors"
	"github.com/agrisetu/agrisetu-api/pkg/response"
)

// PaymentHandler serves payment initiation, history and the browser-facing
// gateway callbacks.
type PaymentHandler struct {
	service      *service.PaymentService
	redirectBase string
}

// NewPaymentHandler creates a new handler. redirectBase is the frontend
// origin the gateway callbacks bounce the browser back to.
func NewPaymentHandler(svc *service.PaymentService, redirectBase string) *PaymentHandler {
	return &PaymentHandler{service: svc, redirectBase: redirectBase}
}

// Initiate godoc
// @Summary Initiate payment
// @Description Build a signed PayU request for a course or consultation
// @Tags Payments
// @Accept json
// @Produce json
// @Param payload body service.InitiatePaymentRequest true "Payment target"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /payments [post]
func (h *PaymentHandler) Initiate(c *gin.Context) {
	claims := middleware.CurrentUser(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.InitiatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payment payload"))
		return
	}

	res, err := h.service.Initiate(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, res)
}

// SuccessCallback godoc
// @Summary PayU success callback
// @Description Verify and settle a successful gateway payment, then redirect the browser
// @Tags Payments
// @Accept x-www-form-urlencoded
// @Success 303
// @Router /payments/callback/success [post]
func (h *PaymentHandler) SuccessCallback(c *gin.Context) {
	if err := h.service.ConfirmSuccess(c.Request.Context(), h.bindCallback(c)); err != nil {
		response.Redirect(c, h.errorRedirect(err))
		return
	}
	response.Redirect(c, h.redirectBase+"/payment/success")
}

// FailureCallback godoc
// @Summary PayU failure callback
// @Description Verify and record a failed gateway payment, then redirect the browser
// @Tags Payments
// @Accept x-www-form-urlencoded
// @Success 303
// @Router /payments/callback/failure [post]
func (h *PaymentHandler) FailureCallback(c *gin.Context) {
	if err := h.service.ConfirmFailure(c.Request.Context(), h.bindCallback(c)); err != nil {
		response.Redirect(c, h.errorRedirect(err))
		return
	}
	response.Redirect(c, h.redirectBase+"/payment/failure")
}

// Records godoc
// @Summary List my payments
// @Description List the caller's payment history
// @Tags Payments
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /payments [get]
func (h *PaymentHandler) Records(c *gin.Context) {
	claims := middleware.CurrentUser(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	records, err := h.service.Records(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, records, nil)
}

// Receipt godoc
// @Summary Download payment receipt
// @Description Render a PDF receipt for a completed payment
// @Tags Payments
// @Produce application/pdf
// @Param id path string true "Payment ID"
// @Success 200 {file} binary
// @Failure 403 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /payments/{id}/receipt [get]
func (h *PaymentHandler) Receipt(c *gin.Context) {
	claims := middleware.CurrentUser(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	pdf, err := h.service.Receipt(c.Request.Context(), claims.UserID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=receipt-%s.pdf", c.Param("id")))
	c.Data(http.StatusOK, "application/pdf", pdf)
}

func (h *PaymentHandler) bindCallback(c *gin.Context) service.GatewayCallback {
	return service.GatewayCallback{
		TxnID:          c.PostForm("txnid"),
		Amount:         c.PostForm("amount"),
		ProductInfo:    c.PostForm("productinfo"),
		FirstName:      c.PostForm("firstname"),
		Email:          c.PostForm("email"),
		Status:         c.PostForm("status"),
		Hash:           c.PostForm("hash"),
		Mode:           c.PostForm("mode"),
		UnmappedStatus: c.PostForm("unmappedstatus"),
		NetAmount:      c.PostForm("net_amount_debit"),
		ErrorCode:      c.PostForm("error"),
		ErrorMessage:   c.PostForm("error_Message"),
	}
}

func (h *PaymentHandler) errorRedirect(err error) string {
	reason := "processing_failed"
	switch appErrors.FromError(err).Code {
	case service.ErrHashMismatch.Code:
		reason = "hash_verification_failed"
	case appErrors.ErrNotFound.Code:
		reason = "payment_not_found"
	}
	return h.redirectBase + "/payment/error?reason=" + reason
}
