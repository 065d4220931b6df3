package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	customerdomain "github.com/invobook/invobook/internal/customer/domain"
	"github.com/invobook/invobook/internal/tenantctx"
	"github.com/invobook/invobook/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Repo  customerdomain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	repo  customerdomain.Repository
}

func New(p Params) customerdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("customer.service"),
		genID: p.GenID,
		repo:  p.Repo,
	}
}

func (s *Service) Create(ctx context.Context, req customerdomain.CreateCustomerRequest) (customerdomain.Customer, error) {
	orgID, ok := tenantctx.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return customerdomain.Customer{}, customerdomain.ErrInvalidOrganization
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return customerdomain.Customer{}, customerdomain.ErrInvalidName
	}

	now := time.Now().UTC()
	customer := customerdomain.Customer{
		ID:        s.genID.Generate(),
		OrgID:     orgID,
		Name:      name,
		Phone:     strings.TrimSpace(req.Phone),
		Email:     strings.TrimSpace(req.Email),
		Address:   strings.TrimSpace(req.Address),
		TaxID:     strings.TrimSpace(req.TaxID),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Insert(ctx, s.db, &customer); err != nil {
		return customerdomain.Customer{}, err
	}
	return customer, nil
}

// List pages through the org's customers in ID order. The page token
// is an opaque cursor minted from the last row of the previous page.
func (s *Service) List(ctx context.Context, req customerdomain.ListCustomersRequest) (customerdomain.ListCustomersResponse, error) {
	orgID, ok := tenantctx.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return customerdomain.ListCustomersResponse{}, customerdomain.ErrInvalidOrganization
	}

	limit := req.PageSize
	if limit <= 0 || limit > 250 {
		limit = 25
	}

	var afterID snowflake.ID
	if req.PageToken != "" {
		cursor, err := pagination.DecodeCursor(req.PageToken)
		if err != nil {
			return customerdomain.ListCustomersResponse{}, customerdomain.ErrInvalidID
		}
		if afterID, err = snowflake.ParseString(cursor.ID); err != nil {
			return customerdomain.ListCustomersResponse{}, customerdomain.ErrInvalidID
		}
	}

	customers, err := s.repo.ListAfter(ctx, s.db, orgID, afterID, limit+1)
	if err != nil {
		return customerdomain.ListCustomersResponse{}, err
	}

	customers, pageInfo, err := pagination.BuildPageInfo(customers, limit, func(c customerdomain.Customer) string {
		return c.ID.String()
	})
	if err != nil {
		return customerdomain.ListCustomersResponse{}, err
	}
	if customers == nil {
		customers = []customerdomain.Customer{}
	}
	return customerdomain.ListCustomersResponse{Customers: customers, PageInfo: pageInfo}, nil
}

func (s *Service) GetByID(ctx context.Context, req customerdomain.GetCustomerRequest) (customerdomain.Customer, error) {
	orgID, ok := tenantctx.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return customerdomain.Customer{}, customerdomain.ErrInvalidOrganization
	}

	id, err := snowflake.ParseString(strings.TrimSpace(req.ID))
	if err != nil {
		return customerdomain.Customer{}, customerdomain.ErrInvalidID
	}

	customer, err := s.repo.FindByID(ctx, s.db, orgID, id)
	if err != nil {
		return customerdomain.Customer{}, err
	}
	if customer == nil {
		return customerdomain.Customer{}, customerdomain.ErrNotFound
	}
	return *customer, nil
}
