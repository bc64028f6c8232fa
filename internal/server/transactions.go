package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	ledgerdomain "github.com/smallbiznis/perq/internal/ledger/domain"
)

type applyTransactionRequest struct {
	CardID      string `json:"card_id"`
	Type        string `json:"type"`
	Category    string `json:"category"`
	AmountCents int64  `json:"amount_cents"`
	StoreID     string `json:"store_id"`
	ActorID     string `json:"actor_id"`
	Note        string `json:"note"`
}

func (s *Server) ApplyTransaction(c *gin.Context) {
	var req applyTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.ledgerSvc.ApplyTransaction(c.Request.Context(), ledgerdomain.ApplyTransactionRequest{
		TenantID:    s.tenantID(c),
		CardID:      strings.TrimSpace(req.CardID),
		Type:        ledgerdomain.TransactionType(strings.ToUpper(strings.TrimSpace(req.Type))),
		Category:    strings.ToUpper(strings.TrimSpace(req.Category)),
		AmountCents: req.AmountCents,
		StoreID:     strings.TrimSpace(req.StoreID),
		ActorID:     strings.TrimSpace(req.ActorID),
		Note:        strings.TrimSpace(req.Note),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
