package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/f3impact/ignite/internal/order/domain"
	"github.com/f3impact/ignite/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Repo  domain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	repo  domain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("order.service"),
		genID: p.GenID,
		repo:  p.Repo,
	}
}

func (s *Service) CreatePending(ctx context.Context, sessionID string, seed domain.Seed) (*domain.Order, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, domain.ErrInvalidSession
	}
	if seed.CustomerID == 0 {
		return nil, domain.ErrMissingCustomer
	}
	if seed.Amount <= 0 {
		return nil, domain.ErrInvalidAmount
	}

	order := s.build(sessionID, domain.StatusPending, seed, nil)
	inserted, err := s.repo.Insert(ctx, s.db, order)
	if err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, domain.ErrConflict
		}
		return nil, err
	}
	if !inserted {
		return nil, domain.ErrConflict
	}
	return order, nil
}

func (s *Service) Reconcile(ctx context.Context, tx *gorm.DB, sessionID string, target domain.Status, seed domain.Seed) (domain.ReconcileResult, error) {
	conn := s.conn(tx)

	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return domain.ReconcileResult{}, domain.ErrInvalidSession
	}
	if !target.Terminal() {
		return domain.ReconcileResult{}, domain.ErrInvalidStatus
	}

	var paidAt *time.Time
	if target == domain.StatusPaid {
		now := time.Now().UTC()
		paidAt = &now
	}

	applied, err := s.repo.TransitionFromPending(ctx, conn, sessionID, target, paidAt, strings.TrimSpace(seed.PaymentIntentID))
	if err != nil {
		return domain.ReconcileResult{}, err
	}
	if applied {
		order, err := s.repo.FindBySessionID(ctx, conn, sessionID)
		if err != nil {
			return domain.ReconcileResult{}, err
		}
		return domain.ReconcileResult{Order: order, Outcome: domain.OutcomeApplied}, nil
	}

	existing, err := s.repo.FindBySessionID(ctx, conn, sessionID)
	if err != nil {
		return domain.ReconcileResult{}, err
	}

	if existing == nil {
		// The creating request was lost or the webhook arrived first:
		// the event itself is the source of truth for the order.
		if seed.CustomerID == 0 {
			return domain.ReconcileResult{}, domain.ErrMissingCustomer
		}
		order := s.build(sessionID, target, seed, paidAt)
		inserted, err := s.repo.Insert(ctx, conn, order)
		if err != nil {
			if db.IsDuplicateKeyErr(err) {
				return domain.ReconcileResult{}, domain.ErrConflict
			}
			return domain.ReconcileResult{}, err
		}
		if !inserted {
			return domain.ReconcileResult{}, domain.ErrConflict
		}
		return domain.ReconcileResult{Order: order, Outcome: domain.OutcomeApplied}, nil
	}

	switch {
	case existing.Status == target:
		return domain.ReconcileResult{Order: existing, Outcome: domain.OutcomeNoop}, nil
	case existing.Status == domain.StatusPending:
		// A concurrent writer moved it between our UPDATE and SELECT.
		return domain.ReconcileResult{}, domain.ErrConflict
	default:
		// Terminal states are sticky. Last-writer-wins would desync the
		// customer statistics already derived from the first transition.
		s.log.Warn("rejected terminal status overwrite",
			zap.String("session_id", sessionID),
			zap.String("current_status", string(existing.Status)),
			zap.String("target_status", string(target)),
		)
		return domain.ReconcileResult{Order: existing, Outcome: domain.OutcomeAnomaly}, nil
	}
}

func (s *Service) GetBySessionID(ctx context.Context, sessionID string) (*domain.Order, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, domain.ErrInvalidSession
	}
	order, err := s.repo.FindBySessionID(ctx, s.db, sessionID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, domain.ErrNotFound
	}
	return order, nil
}

func (s *Service) ListByCustomer(ctx context.Context, customerID snowflake.ID) ([]domain.Order, error) {
	if customerID == 0 {
		return nil, domain.ErrNotFound
	}
	return s.repo.ListByCustomer(ctx, s.db, customerID)
}

func (s *Service) GetEventStats(ctx context.Context, event string) (domain.EventStats, error) {
	event = strings.TrimSpace(event)
	if event == "" {
		return domain.EventStats{}, domain.ErrNotFound
	}
	return s.repo.EventStats(ctx, s.db, event)
}

func (s *Service) build(sessionID string, status domain.Status, seed domain.Seed, paidAt *time.Time) *domain.Order {
	now := time.Now().UTC()

	orderType := strings.TrimSpace(seed.Type)
	switch orderType {
	case domain.TypeTicket, domain.TypeDonation, domain.TypeOther:
	default:
		orderType = domain.TypeTicket
	}

	metadata := seed.Metadata
	if metadata == nil {
		metadata = datatypes.JSONMap{}
	}

	return &domain.Order{
		ID:                    s.genID.Generate(),
		CustomerID:            seed.CustomerID,
		StripeSessionID:       sessionID,
		StripePaymentIntentID: strings.TrimSpace(seed.PaymentIntentID),
		Amount:                seed.Amount,
		Currency:              strings.ToUpper(strings.TrimSpace(seed.Currency)),
		Event:                 strings.TrimSpace(seed.Event),
		EventName:             strings.TrimSpace(seed.EventName),
		Type:                  orderType,
		Status:                status,
		Metadata:              metadata,
		CreatedAt:             now,
		PaidAt:                paidAt,
		UpdatedAt:             now,
	}
}

func (s *Service) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return s.db
}
