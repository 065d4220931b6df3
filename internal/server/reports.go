package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	invoicedomain "github.com/invobook/invobook/internal/invoice/domain"
)

func (s *Server) GetOutstandingSummary(c *gin.Context) {
	req := invoicedomain.OutstandingSummaryRequest{}
	if customerID := strings.TrimSpace(c.Query("customer_id")); customerID != "" {
		req.CustomerID = &customerID
	}

	resp, err := s.invoiceSvc.GetOutstandingSummary(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": resp})
}

func (s *Server) GetProfitSummary(c *gin.Context) {
	req := invoicedomain.ProfitSummaryRequest{}

	startDate, err := parseOptionalTime(c.Query("start_date"), false)
	if err != nil {
		AbortWithError(c, invoicedomain.ErrInvalidDateRange)
		return
	}
	endDate, err := parseOptionalTime(c.Query("end_date"), true)
	if err != nil {
		AbortWithError(c, invoicedomain.ErrInvalidDateRange)
		return
	}
	req.StartDate = startDate
	req.EndDate = endDate

	if raw := strings.TrimSpace(c.Query("status")); raw != "" {
		status := invoicedomain.Status(raw)
		req.Status = &status
	}

	resp, err := s.invoiceSvc.GetProfitSummary(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": resp})
}

// parseOptionalTime accepts RFC3339 timestamps or plain dates. A plain
// end date resolves to the start of the following day so ranges stay
// half-open.
func parseOptionalTime(raw string, endOfDay bool) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		t = t.UTC()
		return &t, nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil, err
	}
	t = t.UTC()
	if endOfDay {
		t = t.AddDate(0, 0, 1)
	}
	return &t, nil
}
