package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	paymentdomain "github.com/smallbiznis/perq/internal/payment/domain"
)

type createPaymentLinkRequest struct {
	CardID      string `json:"card_id"`
	ExternalID  string `json:"external_id"`
	AmountCents int64  `json:"amount_cents"`
}

func (s *Server) CreatePaymentLink(c *gin.Context) {
	var req createPaymentLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.paymentSvc.CreateLink(c.Request.Context(), paymentdomain.CreateLinkRequest{
		TenantID:    s.tenantID(c),
		CardID:      strings.TrimSpace(req.CardID),
		ExternalID:  strings.TrimSpace(req.ExternalID),
		AmountCents: req.AmountCents,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) HandlePaymentWebhook(c *gin.Context) {
	provider := strings.TrimSpace(c.Param("provider"))
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	err = s.paymentSvc.IngestWebhook(c.Request.Context(), provider, payload)
	if err != nil {
		// Malformed deliveries are rejected permanently; anything else is
		// reported as retryable so the processor redelivers.
		if isPaymentValidationError(err) || errors.Is(err, paymentdomain.ErrLinkNotFound) {
			AbortWithError(c, err)
			return
		}
		AbortWithError(c, fmt.Errorf("%w: %v", ErrServiceUnavailable, err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func isPaymentValidationError(err error) bool {
	switch err {
	case paymentdomain.ErrInvalidTenant,
		paymentdomain.ErrInvalidCard,
		paymentdomain.ErrInvalidAmount,
		paymentdomain.ErrInvalidProvider,
		paymentdomain.ErrInvalidPayload,
		paymentdomain.ErrInvalidEvent:
		return true
	default:
		return false
	}
}
