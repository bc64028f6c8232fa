package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	cashbackdomain "github.com/smallbiznis/perq/internal/cashback/domain"
)

func (s *Server) ListCashbackRules(c *gin.Context) {
	resp, err := s.cashbackSvc.ListRules(c.Request.Context(), s.tenantID(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type upsertCashbackRuleRequest struct {
	Category    string `json:"category"`
	BaseRateBps int64  `json:"base_rate_bps"`
	IsActive    *bool  `json:"is_active"`
}

func (s *Server) UpsertCashbackRule(c *gin.Context) {
	var req upsertCashbackRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	isActive := true
	if req.IsActive != nil {
		isActive = *req.IsActive
	}

	resp, err := s.cashbackSvc.UpsertRule(c.Request.Context(), cashbackdomain.UpsertRuleRequest{
		TenantID:    s.tenantID(c),
		Category:    cashbackdomain.Category(strings.ToUpper(strings.TrimSpace(req.Category))),
		BaseRateBps: req.BaseRateBps,
		IsActive:    isActive,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func isCashbackValidationError(err error) bool {
	switch err {
	case cashbackdomain.ErrInvalidTenant,
		cashbackdomain.ErrInvalidCategory,
		cashbackdomain.ErrInvalidRate:
		return true
	default:
		return false
	}
}
