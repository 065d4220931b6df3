package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	auditdomain "github.com/invobook/invobook/internal/audit/domain"
	"github.com/invobook/invobook/internal/calc"
	"github.com/invobook/invobook/internal/clock"
	customerdomain "github.com/invobook/invobook/internal/customer/domain"
	invoicedomain "github.com/invobook/invobook/internal/invoice/domain"
	recurringdomain "github.com/invobook/invobook/internal/recurring/domain"
	"github.com/invobook/invobook/internal/tenantctx"
	"github.com/invobook/invobook/pkg/db"
	"github.com/invobook/invobook/pkg/repository"
)

type ServiceParam struct {
	fx.In

	DB           *gorm.DB
	Log          *zap.Logger
	GenID        *snowflake.Node
	Clock        clock.Clock
	Allocator    invoicedomain.NumberAllocator
	AuditSvc     auditdomain.Service
	CustomerRepo customerdomain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock

	templaterepo repository.Repository[recurringdomain.Template]
	allocator    invoicedomain.NumberAllocator
	auditSvc     auditdomain.Service
	customerRepo customerdomain.Repository
}

func NewService(p ServiceParam) recurringdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("recurring.service"),
		genID: p.GenID,
		clock: p.Clock,

		templaterepo: repository.ProvideStore[recurringdomain.Template](p.DB),
		allocator:    p.Allocator,
		auditSvc:     p.AuditSvc,
		customerRepo: p.CustomerRepo,
	}
}

func (s *Service) CreateTemplate(ctx context.Context, req recurringdomain.CreateTemplateRequest) (recurringdomain.Template, error) {
	orgID, err := s.orgIDFromContext(ctx)
	if err != nil {
		return recurringdomain.Template{}, err
	}

	if strings.TrimSpace(req.Name) == "" || len(req.Items) == 0 || !req.Frequency.Valid() {
		return recurringdomain.Template{}, recurringdomain.ErrInvalidTemplate
	}
	interval := req.Interval
	if interval < 1 {
		interval = 1
	}

	customerID, err := snowflake.ParseString(strings.TrimSpace(req.CustomerID))
	if err != nil {
		return recurringdomain.Template{}, recurringdomain.ErrInvalidTemplate
	}
	customer, err := s.customerRepo.FindByID(ctx, s.db, orgID, customerID)
	if err != nil {
		return recurringdomain.Template{}, err
	}
	if customer == nil {
		return recurringdomain.Template{}, customerdomain.ErrNotFound
	}

	itemsJSON, err := json.Marshal(req.Items)
	if err != nil {
		return recurringdomain.Template{}, recurringdomain.ErrInvalidTemplate
	}

	discountType := calc.DiscountType(req.DiscountType)
	if discountType != calc.DiscountPercentage {
		discountType = calc.DiscountFixed
	}

	now := s.clock.Now()
	template := recurringdomain.Template{
		ID:    s.genID.Generate(),
		OrgID: orgID,

		Name: strings.TrimSpace(req.Name),
		Code: slug.Make(req.Name),

		CustomerID:      customer.ID,
		CustomerName:    customer.Name,
		CustomerPhone:   customer.Phone,
		CustomerEmail:   customer.Email,
		CustomerAddress: customer.Address,
		CustomerTaxID:   customer.TaxID,

		Items: datatypes.JSON(itemsJSON),

		DiscountValue: req.DiscountValue,
		DiscountType:  discountType,

		Frequency: req.Frequency,
		Interval:  interval,

		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
		NextRunDate: req.StartDate,

		AutoSend:  req.AutoSend,
		DueInDays: req.DueInDays,

		Status:    recurringdomain.TemplateStatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.templaterepo.Create(ctx, &template); err != nil {
		return recurringdomain.Template{}, err
	}
	return template, nil
}

func (s *Service) GetTemplate(ctx context.Context, id string) (recurringdomain.Template, error) {
	orgID, err := s.orgIDFromContext(ctx)
	if err != nil {
		return recurringdomain.Template{}, err
	}
	templateID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil {
		return recurringdomain.Template{}, recurringdomain.ErrInvalidTemplateID
	}

	item, err := s.templaterepo.FindOne(ctx, &recurringdomain.Template{ID: templateID, OrgID: orgID})
	if err != nil {
		return recurringdomain.Template{}, err
	}
	if item == nil {
		return recurringdomain.Template{}, recurringdomain.ErrTemplateNotFound
	}
	return *item, nil
}

// GenerateDueInvoice turns the template's current due date into an
// invoice. The whole generation runs in one transaction guarded by a
// template row lock; the recurring_generations ledger makes retries
// return the already generated invoice instead of creating a second
// one.
func (s *Service) GenerateDueInvoice(ctx context.Context, rawID string) (recurringdomain.GenerateResult, error) {
	orgID, err := s.orgIDFromContext(ctx)
	if err != nil {
		return recurringdomain.GenerateResult{}, err
	}
	templateID, err := snowflake.ParseString(strings.TrimSpace(rawID))
	if err != nil {
		return recurringdomain.GenerateResult{}, recurringdomain.ErrInvalidTemplateID
	}

	var (
		result     recurringdomain.GenerateResult
		expired    bool
		customerID snowflake.ID
		total      int64
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		template, err := s.loadTemplateForUpdate(ctx, tx, orgID, templateID)
		if err != nil {
			return err
		}
		if template == nil {
			return recurringdomain.ErrTemplateNotFound
		}
		if template.Status != recurringdomain.TemplateStatusActive {
			return recurringdomain.ErrTemplateNotActive
		}

		now := s.clock.Now()
		if template.EndDate != nil && now.After(*template.EndDate) {
			// Marking the template completed is the correct outcome even
			// though the generation itself fails, so this update commits.
			expired = true
			return tx.WithContext(ctx).Exec(
				`UPDATE recurring_templates
				 SET status = ?, updated_at = ?
				 WHERE org_id = ? AND id = ?`,
				recurringdomain.TemplateStatusCompleted, now, orgID, template.ID,
			).Error
		}
		if now.Before(template.NextRunDate) {
			return &recurringdomain.NotYetDueError{DueAt: template.NextRunDate}
		}

		runDate := template.NextRunDate
		if existing, err := s.findGeneration(ctx, tx, template.ID, runDate); err != nil {
			return err
		} else if existing != nil {
			invoice, err := s.loadInvoice(ctx, tx, orgID, existing.InvoiceID)
			if err != nil {
				return err
			}
			result = recurringdomain.GenerateResult{
				Invoice:     invoice,
				NextRunDate: template.NextRunDate,
				Reused:      true,
			}
			return nil
		}

		var templateItems []recurringdomain.TemplateItem
		if err := json.Unmarshal(template.Items, &templateItems); err != nil {
			return recurringdomain.ErrInvalidTemplate
		}
		inputs := make([]calc.ItemInput, 0, len(templateItems))
		for _, item := range templateItems {
			inputs = append(inputs, calc.ItemInput{
				Name:      item.Name,
				Quantity:  item.Quantity,
				UnitPrice: item.UnitPrice,
				UnitCost:  item.UnitCost,
				TaxRate:   item.TaxRate,
				TaxType:   item.TaxType,
			})
		}
		computed := calc.Compute(inputs, calc.Discount{
			Value: template.DiscountValue,
			Type:  template.DiscountType,
		})

		invoiceID := s.genID.Generate()
		claimed, err := s.claimGeneration(ctx, tx, recurringdomain.Generation{
			ID:         s.genID.Generate(),
			OrgID:      orgID,
			TemplateID: template.ID,
			InvoiceID:  invoiceID,
			RunDate:    runDate,
			CreatedAt:  now,
		})
		if err != nil {
			return err
		}
		if !claimed {
			existing, err := s.findGeneration(ctx, tx, template.ID, runDate)
			if err != nil {
				return err
			}
			if existing == nil {
				return recurringdomain.ErrTemplateNotFound
			}
			invoice, err := s.loadInvoice(ctx, tx, orgID, existing.InvoiceID)
			if err != nil {
				return err
			}
			result = recurringdomain.GenerateResult{
				Invoice:     invoice,
				NextRunDate: template.NextRunDate,
				Reused:      true,
			}
			return nil
		}

		invoiceNumber, err := s.allocator.NextInvoiceNumber(ctx, tx, orgID)
		if err != nil {
			return err
		}

		status := invoicedomain.StatusDraft
		if template.AutoSend {
			status = invoicedomain.StatusSent
		}
		var dueAt *time.Time
		if template.DueInDays > 0 {
			d := now.AddDate(0, 0, template.DueInDays)
			dueAt = &d
		}

		tmplID := template.ID
		invoice := invoicedomain.Invoice{
			ID:            invoiceID,
			OrgID:         orgID,
			InvoiceNumber: invoiceNumber,
			DocType:       invoicedomain.DocTypeInvoice,

			CustomerID:      template.CustomerID,
			CustomerName:    template.CustomerName,
			CustomerPhone:   template.CustomerPhone,
			CustomerEmail:   template.CustomerEmail,
			CustomerAddress: template.CustomerAddress,
			CustomerTaxID:   template.CustomerTaxID,

			DiscountValue: template.DiscountValue,
			DiscountType:  template.DiscountType,

			SubtotalAmount: computed.Subtotal,
			DiscountAmount: computed.DiscountAmount,
			CgstAmount:     computed.Cgst,
			SgstAmount:     computed.Sgst,
			IgstAmount:     computed.Igst,
			TaxAmount:      computed.TotalTax,
			TotalAmount:    computed.Total,
			PaidAmount:     0,
			BalanceAmount:  computed.Total,
			ProfitAmount:   computed.Profit,

			Status: status,

			IsRecurring:         true,
			RecurringTemplateID: &tmplID,
			Metadata: datatypes.JSONMap{
				"recurring_template_code": template.Code,
				"recurring_frequency":     string(template.Frequency),
				"recurring_interval":      template.Interval,
				"recurring_run_date":      runDate.Format(time.RFC3339),
			},

			IssuedAt:  now,
			DueAt:     dueAt,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := tx.WithContext(ctx).Create(&invoice).Error; err != nil {
			return err
		}

		for i, line := range computed.Items {
			item := invoicedomain.InvoiceItem{
				ID:        s.genID.Generate(),
				OrgID:     orgID,
				InvoiceID: invoiceID,

				Name:      line.Name,
				Quantity:  line.Quantity,
				UnitPrice: line.UnitPrice,
				UnitCost:  line.UnitCost,
				TaxRate:   line.TaxRate,
				TaxType:   line.TaxType,

				SubtotalAmount: line.Subtotal,
				CgstAmount:     line.Cgst,
				SgstAmount:     line.Sgst,
				IgstAmount:     line.Igst,
				TaxAmount:      line.TaxAmount,
				TotalAmount:    line.Total,

				Position:  i,
				CreatedAt: now,
			}
			if err := tx.WithContext(ctx).Create(&item).Error; err != nil {
				return err
			}
		}

		nextRun := recurringdomain.Advance(template.NextRunDate, template.Frequency, template.Interval)
		if err := tx.WithContext(ctx).Exec(
			`UPDATE recurring_templates
			 SET last_run_date = ?, next_run_date = ?, total_generated = total_generated + 1, updated_at = ?
			 WHERE org_id = ? AND id = ?`,
			now, nextRun, now, orgID, template.ID,
		).Error; err != nil {
			return err
		}

		customerID = template.CustomerID
		total = computed.Total
		result = recurringdomain.GenerateResult{
			Invoice:     invoice,
			NextRunDate: nextRun,
		}
		return nil
	})
	if err != nil {
		return recurringdomain.GenerateResult{}, err
	}
	if expired {
		return recurringdomain.GenerateResult{}, recurringdomain.ErrTemplateExpired
	}
	if result.Reused {
		return result, nil
	}

	if ok, err := s.customerRepo.AdjustBalance(ctx, s.db, orgID, customerID, total); err != nil || !ok {
		s.log.Warn("customer balance sync failed after generation",
			zap.Int64("org_id", int64(orgID)),
			zap.Int64("customer_id", int64(customerID)),
			zap.Error(err))
	}
	s.auditSvc.LogAction(ctx, auditdomain.Entry{
		InvoiceID: result.Invoice.ID,
		Action:    auditdomain.ActionCreated,
		PaymentDetails: map[string]interface{}{
			"invoice_number": result.Invoice.InvoiceNumber,
			"total_amount":   result.Invoice.TotalAmount,
			"template_id":    templateID.String(),
		},
	})
	return result, nil
}

func (s *Service) ListDue(ctx context.Context, asOf time.Time, limit int) ([]recurringdomain.DueTemplate, error) {
	if limit <= 0 {
		limit = 25
	}
	var due []recurringdomain.DueTemplate
	err := s.db.WithContext(ctx).Raw(
		`SELECT id, org_id
		 FROM recurring_templates
		 WHERE status = ? AND next_run_date <= ?
		 ORDER BY next_run_date ASC
		 LIMIT ?`,
		recurringdomain.TemplateStatusActive, asOf, limit,
	).Scan(&due).Error
	if err != nil {
		return nil, err
	}
	return due, nil
}

func (s *Service) orgIDFromContext(ctx context.Context) (snowflake.ID, error) {
	orgID, ok := tenantctx.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return 0, recurringdomain.ErrInvalidOrganization
	}
	return orgID, nil
}

func (s *Service) loadTemplateForUpdate(ctx context.Context, tx *gorm.DB, orgID, id snowflake.ID) (*recurringdomain.Template, error) {
	var template recurringdomain.Template
	err := tx.WithContext(ctx).Raw(
		`SELECT *
		 FROM recurring_templates
		 WHERE org_id = ? AND id = ?`+rowLockClause(tx),
		orgID, id,
	).Scan(&template).Error
	if err != nil {
		return nil, err
	}
	if template.ID == 0 {
		return nil, nil
	}
	return &template, nil
}

func (s *Service) findGeneration(ctx context.Context, tx *gorm.DB, templateID snowflake.ID, runDate time.Time) (*recurringdomain.Generation, error) {
	var generation recurringdomain.Generation
	err := tx.WithContext(ctx).Raw(
		`SELECT id, org_id, template_id, invoice_id, run_date, created_at
		 FROM recurring_generations
		 WHERE template_id = ? AND run_date = ?`,
		templateID, runDate,
	).Scan(&generation).Error
	if err != nil {
		return nil, err
	}
	if generation.ID == 0 {
		return nil, nil
	}
	return &generation, nil
}

func (s *Service) claimGeneration(ctx context.Context, tx *gorm.DB, generation recurringdomain.Generation) (bool, error) {
	result := tx.WithContext(ctx).Exec(
		`INSERT INTO recurring_generations (id, org_id, template_id, invoice_id, run_date, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (template_id, run_date) DO NOTHING`,
		generation.ID,
		generation.OrgID,
		generation.TemplateID,
		generation.InvoiceID,
		generation.RunDate,
		generation.CreatedAt,
	)
	if result.Error != nil {
		if db.IsDuplicateKeyErr(result.Error) {
			return false, nil
		}
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (s *Service) loadInvoice(ctx context.Context, tx *gorm.DB, orgID, id snowflake.ID) (invoicedomain.Invoice, error) {
	var invoice invoicedomain.Invoice
	err := tx.WithContext(ctx).
		Where("org_id = ? AND id = ?", orgID, id).
		First(&invoice).Error
	if err != nil {
		return invoicedomain.Invoice{}, err
	}
	return invoice, nil
}

func rowLockClause(tx *gorm.DB) string {
	if tx.Dialector.Name() == "sqlite" {
		return ""
	}
	return " FOR UPDATE"
}
