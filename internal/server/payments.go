package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	invoicedomain "github.com/invobook/invobook/internal/invoice/domain"
)

type addPaymentRequest struct {
	Amount int64  `json:"amount"`
	Method string `json:"method"`
	Note   string `json:"note"`
}

func (s *Server) AddPayment(c *gin.Context) {
	var req addPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	resp, err := s.invoiceSvc.AddPayment(c.Request.Context(), invoicedomain.AddPaymentRequest{
		InvoiceID: c.Param("id"),
		Amount:    req.Amount,
		Method:    strings.TrimSpace(req.Method),
		Note:      strings.TrimSpace(req.Note),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": resp})
}

type setPaymentRequest struct {
	PaidAmount int64  `json:"paid_amount"`
	Method     string `json:"method"`
	Note       string `json:"note"`
}

func (s *Server) SetPayment(c *gin.Context) {
	var req setPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	resp, err := s.invoiceSvc.SetPayment(c.Request.Context(), invoicedomain.SetPaymentRequest{
		InvoiceID:  c.Param("id"),
		PaidAmount: req.PaidAmount,
		Method:     strings.TrimSpace(req.Method),
		Note:       strings.TrimSpace(req.Note),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": resp})
}

func (s *Server) GetPaymentHistory(c *gin.Context) {
	resp, err := s.invoiceSvc.GetPaymentHistory(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": resp})
}
