package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	tenantdomain "github.com/smallbiznis/perq/internal/tenant/domain"
)

func (s *Server) GetTrialStatus(c *gin.Context) {
	resp, err := s.tenantSvc.GetTrialStatus(c.Request.Context(), s.tenantID(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) CanActivateCards(c *gin.Context) {
	allowed, err := s.tenantSvc.CanActivateCards(c.Request.Context(), s.tenantID(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"allowed": allowed}})
}

func (s *Server) ResetTrial(c *gin.Context) {
	if err := s.tenantSvc.ResetTrial(c.Request.Context(), s.tenantID(c)); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func isTenantValidationError(err error) bool {
	switch err {
	case tenantdomain.ErrInvalidID:
		return true
	default:
		return false
	}
}
