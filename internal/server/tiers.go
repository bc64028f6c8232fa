package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	tierdomain "github.com/smallbiznis/perq/internal/tier/domain"
)

func (s *Server) ListTierRules(c *gin.Context) {
	resp, err := s.tierSvc.ListRules(c.Request.Context(), s.tenantID(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type upsertTierRuleRequest struct {
	Name               string `json:"name"`
	MinTotalSpendCents int64  `json:"min_total_spend_cents"`
	MultiplierBps      int64  `json:"multiplier_bps"`
	IsActive           *bool  `json:"is_active"`
}

func (s *Server) UpsertTierRule(c *gin.Context) {
	var req upsertTierRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	isActive := true
	if req.IsActive != nil {
		isActive = *req.IsActive
	}

	resp, err := s.tierSvc.UpsertRule(c.Request.Context(), tierdomain.UpsertRuleRequest{
		TenantID:           s.tenantID(c),
		Name:               strings.TrimSpace(req.Name),
		MinTotalSpendCents: req.MinTotalSpendCents,
		MultiplierBps:      req.MultiplierBps,
		IsActive:           isActive,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func isTierValidationError(err error) bool {
	switch err {
	case tierdomain.ErrInvalidTenant,
		tierdomain.ErrInvalidCustomer,
		tierdomain.ErrInvalidName,
		tierdomain.ErrInvalidThreshold,
		tierdomain.ErrInvalidMultiplier:
		return true
	default:
		return false
	}
}
