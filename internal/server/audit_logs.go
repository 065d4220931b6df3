package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	auditdomain "github.com/invobook/invobook/internal/audit/domain"
)

func (s *Server) ListAuditLogs(c *gin.Context) {
	req := auditdomain.ListRequest{}

	if raw := strings.TrimSpace(c.Query("invoice_id")); raw != "" {
		invoiceID, err := parseSnowflake(raw)
		if err != nil {
			AbortWithError(c, auditdomain.ErrInvalidInvoiceID)
			return
		}
		req.InvoiceID = invoiceID
	}
	if action := strings.TrimSpace(c.Query("action")); action != "" {
		req.Action = auditdomain.ActionType(action)
	}
	from, err := parseOptionalTime(c.Query("from"), false)
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	to, err := parseOptionalTime(c.Query("to"), true)
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	req.From = from
	req.To = to

	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			AbortWithError(c, ErrInvalidRequest)
			return
		}
		req.Limit = limit
	}

	resp, err := s.auditSvc.List(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": resp})
}
