package domain

import (
	"context"
	"errors"

	"github.com/invobook/invobook/pkg/db/pagination"
)

type CreateCustomerRequest struct {
	Name    string
	Phone   string
	Email   string
	Address string
	TaxID   string
}

type GetCustomerRequest struct {
	ID string
}

type ListCustomersRequest struct {
	PageToken string
	PageSize  int
}

type ListCustomersResponse struct {
	Customers []Customer          `json:"customers"`
	PageInfo  pagination.PageInfo `json:"page_info"`
}

type Service interface {
	Create(context.Context, CreateCustomerRequest) (Customer, error)
	GetByID(context.Context, GetCustomerRequest) (Customer, error)
	List(context.Context, ListCustomersRequest) (ListCustomersResponse, error)
}

var (
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidName         = errors.New("invalid_name")
	ErrInvalidID           = errors.New("invalid_id")
	ErrNotFound            = errors.New("customer_not_found")
)
