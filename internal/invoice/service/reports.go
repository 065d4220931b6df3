package service

import (
	"context"

	"github.com/samber/lo"

	invoicedomain "github.com/invobook/invobook/internal/invoice/domain"
)

// GetOutstandingSummary sums the open balance across every non-deleted
// invoice still in an open status, optionally narrowed to one
// customer.
func (s *Service) GetOutstandingSummary(ctx context.Context, req invoicedomain.OutstandingSummaryRequest) (invoicedomain.OutstandingSummaryResponse, error) {
	orgID, err := s.orgIDFromContext(ctx)
	if err != nil {
		return invoicedomain.OutstandingSummaryResponse{}, err
	}

	q := s.db.WithContext(ctx).
		Where("org_id = ? AND deleted = ?", orgID, false).
		Where("status IN ?", invoicedomain.OpenStatuses())
	if req.CustomerID != nil {
		customerID, err := parseID(*req.CustomerID)
		if err != nil {
			return invoicedomain.OutstandingSummaryResponse{}, invoicedomain.ErrInvalidInvoiceID
		}
		q = q.Where("customer_id = ?", customerID)
	}

	var invoices []invoicedomain.Invoice
	if err := q.Order("due_at ASC").Order("id ASC").Find(&invoices).Error; err != nil {
		return invoicedomain.OutstandingSummaryResponse{}, err
	}
	if invoices == nil {
		invoices = []invoicedomain.Invoice{}
	}

	total := lo.SumBy(invoices, func(inv invoicedomain.Invoice) int64 {
		return inv.BalanceAmount
	})

	return invoicedomain.OutstandingSummaryResponse{
		TotalOutstanding: total,
		TotalInvoices:    len(invoices),
		Invoices:         invoices,
	}, nil
}

// GetProfitSummary aggregates profit, revenue and collections over a
// date-filtered invoice set. The margin divides profit by revenue and
// is zero when there is no revenue.
func (s *Service) GetProfitSummary(ctx context.Context, req invoicedomain.ProfitSummaryRequest) (invoicedomain.ProfitSummaryResponse, error) {
	orgID, err := s.orgIDFromContext(ctx)
	if err != nil {
		return invoicedomain.ProfitSummaryResponse{}, err
	}

	if req.StartDate != nil && req.EndDate != nil && req.EndDate.Before(*req.StartDate) {
		return invoicedomain.ProfitSummaryResponse{}, invoicedomain.ErrInvalidDateRange
	}
	if req.Status != nil && !isKnownStatus(*req.Status) {
		return invoicedomain.ProfitSummaryResponse{}, invoicedomain.ErrInvalidStatus
	}

	q := s.db.WithContext(ctx).
		Where("org_id = ? AND deleted = ?", orgID, false)
	if req.StartDate != nil {
		q = q.Where("issued_at >= ?", *req.StartDate)
	}
	if req.EndDate != nil {
		q = q.Where("issued_at < ?", *req.EndDate)
	}
	if req.Status != nil {
		q = q.Where("status = ?", *req.Status)
	}

	var invoices []invoicedomain.Invoice
	if err := q.Order("issued_at DESC").Order("id DESC").Find(&invoices).Error; err != nil {
		return invoicedomain.ProfitSummaryResponse{}, err
	}
	if invoices == nil {
		invoices = []invoicedomain.Invoice{}
	}

	resp := invoicedomain.ProfitSummaryResponse{
		InvoiceCount: len(invoices),
		Invoices:     invoices,
	}
	for _, inv := range invoices {
		resp.TotalProfit += inv.ProfitAmount
		resp.TotalRevenue += inv.TotalAmount
		resp.TotalPaid += inv.PaidAmount
	}
	if resp.TotalRevenue != 0 {
		resp.ProfitMargin = float64(resp.TotalProfit) / float64(resp.TotalRevenue) * 100
	}
	return resp, nil
}

func isKnownStatus(status invoicedomain.Status) bool {
	switch status {
	case invoicedomain.StatusDraft, invoicedomain.StatusSent, invoicedomain.StatusPartial,
		invoicedomain.StatusPaid, invoicedomain.StatusOverdue, invoicedomain.StatusCancelled,
		invoicedomain.StatusAccepted, invoicedomain.StatusRejected, invoicedomain.StatusConverted:
		return true
	}
	return false
}
