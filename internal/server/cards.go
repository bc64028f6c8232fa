package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	ledgerdomain "github.com/smallbiznis/perq/internal/ledger/domain"
	"github.com/smallbiznis/perq/pkg/db/pagination"
)

func (s *Server) CreateCard(c *gin.Context) {
	resp, err := s.ledgerSvc.CreateCard(c.Request.Context(), ledgerdomain.CreateCardRequest{
		TenantID: s.tenantID(c),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetCard(c *gin.Context) {
	resp, err := s.ledgerSvc.GetCard(c.Request.Context(), s.tenantID(c), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type activateCardRequest struct {
	CustomerID string `json:"customer_id"`
}

func (s *Server) ActivateCard(c *gin.Context) {
	var req activateCardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.ledgerSvc.ActivateCard(c.Request.Context(), ledgerdomain.ActivateCardRequest{
		TenantID:   s.tenantID(c),
		CardID:     strings.TrimSpace(c.Param("id")),
		CustomerID: strings.TrimSpace(req.CustomerID),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) BlockCard(c *gin.Context) {
	s.setCardBlocked(c, true)
}

func (s *Server) UnblockCard(c *gin.Context) {
	s.setCardBlocked(c, false)
}

func (s *Server) setCardBlocked(c *gin.Context, blocked bool) {
	resp, err := s.ledgerSvc.SetCardBlocked(c.Request.Context(), ledgerdomain.SetCardBlockedRequest{
		TenantID: s.tenantID(c),
		CardID:   strings.TrimSpace(c.Param("id")),
		Blocked:  blocked,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListTransactions(c *gin.Context) {
	var query pagination.Pagination
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.ledgerSvc.ListTransactions(c.Request.Context(), ledgerdomain.ListTransactionsRequest{
		TenantID:  s.tenantID(c),
		CardID:    strings.TrimSpace(c.Param("id")),
		PageToken: query.PageToken,
		PageSize:  int32(query.PageSize),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func isLedgerValidationError(err error) bool {
	switch err {
	case ledgerdomain.ErrInvalidTenant,
		ledgerdomain.ErrInvalidID,
		ledgerdomain.ErrInvalidType,
		ledgerdomain.ErrInvalidAmount:
		return true
	default:
		return false
	}
}
