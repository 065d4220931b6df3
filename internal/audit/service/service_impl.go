package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/invobook/invobook/internal/audit/domain"
	"github.com/invobook/invobook/internal/auditctx"
	"github.com/invobook/invobook/internal/clock"
	"github.com/invobook/invobook/internal/tenantctx"
)

// Params holds service dependencies.
type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  domain.Repository
}

type service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  domain.Repository
}

// New builds the audit service.
func New(p Params) domain.Service {
	return &service{
		db:    p.DB,
		log:   p.Log.Named("audit.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

// LogAction writes one audit entry. Failures are logged and
// swallowed: the audit trail must never break the operation it
// records.
func (s *service) LogAction(ctx context.Context, entry domain.Entry) {
	orgID, ok := tenantctx.OrgIDFromContext(ctx)
	if !ok {
		s.log.Warn("audit entry dropped: missing organization",
			zap.Int64("invoice_id", int64(entry.InvoiceID)),
			zap.String("action", string(entry.Action)))
		return
	}
	if entry.InvoiceID == 0 || entry.Action == "" {
		s.log.Warn("audit entry dropped: incomplete entry",
			zap.Int64("org_id", int64(orgID)))
		return
	}

	row := &domain.AuditLog{
		ID:        s.genID.Generate(),
		OrgID:     orgID,
		InvoiceID: entry.InvoiceID,
		Action:    entry.Action,
		ActorType: domain.ActorTypeSystem,
		Note:      entry.Note,
		CreatedAt: s.clock.Now(),
	}
	if actorType, actorID := auditctx.ActorFromContext(ctx); actorType != "" {
		row.ActorType = actorType
		row.ActorID = &actorID
	}
	if ip := auditctx.IPAddressFromContext(ctx); ip != "" {
		row.IPAddress = &ip
	}
	if ua := auditctx.UserAgentFromContext(ctx); ua != "" {
		row.UserAgent = &ua
	}
	if len(entry.PaymentDetails) > 0 {
		row.PaymentDetails = datatypes.JSONMap(entry.PaymentDetails)
	}

	if err := s.repo.Insert(ctx, s.db, row); err != nil {
		s.log.Warn("failed to write audit entry",
			zap.Int64("org_id", int64(orgID)),
			zap.Int64("invoice_id", int64(entry.InvoiceID)),
			zap.String("action", string(entry.Action)),
			zap.Error(err))
	}
}

func (s *service) List(ctx context.Context, req domain.ListRequest) (*domain.ListResponse, error) {
	orgID, ok := tenantctx.OrgIDFromContext(ctx)
	if !ok {
		return nil, domain.ErrInvalidOrganization
	}

	entries, total, err := s.repo.List(ctx, s.db, req, int64(orgID))
	if err != nil {
		s.log.Error("failed to list audit entries", zap.Error(err))
		return nil, err
	}
	if entries == nil {
		entries = []domain.AuditLog{}
	}
	return &domain.ListResponse{Entries: entries, Total: total}, nil
}
