package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/invobook/invobook/internal/calc"
	recurringdomain "github.com/invobook/invobook/internal/recurring/domain"
)

type templateItemRequest struct {
	Name      string  `json:"name"`
	Quantity  float64 `json:"quantity"`
	UnitPrice int64   `json:"unit_price"`
	UnitCost  *int64  `json:"unit_cost,omitempty"`
	TaxRate   float64 `json:"tax_rate"`
	TaxType   string  `json:"tax_type"`
}

type createTemplateRequest struct {
	Name          string                `json:"name"`
	CustomerID    string                `json:"customer_id"`
	Items         []templateItemRequest `json:"items"`
	DiscountValue float64               `json:"discount_value"`
	DiscountType  string                `json:"discount_type"`
	Frequency     string                `json:"frequency"`
	Interval      int                   `json:"interval"`
	StartDate     string                `json:"start_date"`
	EndDate       string                `json:"end_date,omitempty"`
	AutoSend      bool                  `json:"auto_send"`
	DueInDays     int                   `json:"due_in_days"`
}

func (s *Server) CreateRecurringTemplate(c *gin.Context) {
	var req createTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	startDate, err := parseOptionalTime(req.StartDate, false)
	if err != nil || startDate == nil {
		AbortWithError(c, recurringdomain.ErrInvalidTemplate)
		return
	}
	endDate, err := parseOptionalTime(req.EndDate, true)
	if err != nil {
		AbortWithError(c, recurringdomain.ErrInvalidTemplate)
		return
	}

	items := make([]recurringdomain.TemplateItem, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, recurringdomain.TemplateItem{
			Name:      strings.TrimSpace(item.Name),
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
			UnitCost:  item.UnitCost,
			TaxRate:   item.TaxRate,
			TaxType:   calc.TaxType(item.TaxType),
		})
	}

	resp, err := s.recurringSvc.CreateTemplate(c.Request.Context(), recurringdomain.CreateTemplateRequest{
		Name:          req.Name,
		CustomerID:    req.CustomerID,
		Items:         items,
		DiscountValue: req.DiscountValue,
		DiscountType:  req.DiscountType,
		Frequency:     recurringdomain.Frequency(req.Frequency),
		Interval:      req.Interval,
		StartDate:     *startDate,
		EndDate:       endDate,
		AutoSend:      req.AutoSend,
		DueInDays:     req.DueInDays,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": resp})
}

func (s *Server) GetRecurringTemplate(c *gin.Context) {
	resp, err := s.recurringSvc.GetTemplate(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": resp})
}

func (s *Server) GenerateRecurringInvoice(c *gin.Context) {
	resp, err := s.recurringSvc.GenerateDueInvoice(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": resp})
}
