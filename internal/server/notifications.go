package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	notificationdomain "github.com/smallbiznis/perq/internal/notification/domain"
	"github.com/smallbiznis/perq/pkg/db/pagination"
)

func (s *Server) ListNotifications(c *gin.Context) {
	var query struct {
		pagination.Pagination
		Status string `form:"status"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.notificationSvc.List(c.Request.Context(), notificationdomain.ListRequest{
		TenantID:  s.tenantID(c),
		Status:    notificationdomain.Status(strings.ToLower(strings.TrimSpace(query.Status))),
		PageToken: query.PageToken,
		PageSize:  int32(query.PageSize),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func isNotificationValidationError(err error) bool {
	switch err {
	case notificationdomain.ErrInvalidTenant,
		notificationdomain.ErrInvalidChannel,
		notificationdomain.ErrInvalidTemplate:
		return true
	default:
		return false
	}
}
