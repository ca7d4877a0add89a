package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/f3impact/ignite/internal/customer/domain"
	"github.com/f3impact/ignite/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
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
		log:   p.Log.Named("customer.service"),
		genID: p.GenID,
		repo:  p.Repo,
	}
}

func (s *Service) Reconcile(ctx context.Context, tx *gorm.DB, contact domain.Contact) (*domain.Customer, error) {
	conn := s.conn(tx)

	email := domain.NormalizeEmail(contact.Email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, domain.ErrInvalidEmail
	}
	contact.Email = email

	existing, err := s.repo.FindByEmail(ctx, conn, email)
	if err != nil {
		return nil, err
	}

	if existing == nil {
		created, err := s.create(ctx, conn, contact)
		if err != nil {
			return nil, err
		}
		if created != nil {
			return created, nil
		}
		// Lost the insert race; the winner's row must be visible now.
		existing, err = s.repo.FindByEmail(ctx, conn, email)
		if err != nil {
			return nil, err
		}
		if existing == nil {
			return nil, domain.ErrConflict
		}
	}

	if err := s.repo.FillProfile(ctx, conn, existing.ID, contact); err != nil {
		return nil, err
	}
	return s.repo.FindByEmail(ctx, conn, email)
}

func (s *Service) create(ctx context.Context, conn *gorm.DB, contact domain.Contact) (*domain.Customer, error) {
	name := strings.TrimSpace(contact.Name)
	if name == "" {
		name = "Guest"
	}

	now := time.Now().UTC()
	customer := domain.Customer{
		ID:                s.genID.Generate(),
		Email:             contact.Email,
		Name:              name,
		PaxName:           strings.TrimSpace(contact.PaxName),
		Phone:             strings.TrimSpace(contact.Phone),
		AddressLine1:      strings.TrimSpace(contact.AddressLine1),
		AddressCity:       strings.TrimSpace(contact.AddressCity),
		AddressState:      strings.TrimSpace(contact.AddressState),
		AddressPostalCode: strings.TrimSpace(contact.AddressPostalCode),
		AO:                strings.TrimSpace(contact.AO),
		Region:            strings.TrimSpace(contact.Region),
		StripeCustomerID:  strings.TrimSpace(contact.StripeCustomerID),
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	inserted, err := s.repo.Insert(ctx, conn, &customer)
	if err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, nil
		}
		return nil, err
	}
	if !inserted {
		return nil, nil
	}
	return &customer, nil
}

func (s *Service) IncrementStats(ctx context.Context, tx *gorm.DB, id snowflake.ID, stats domain.Stats) error {
	if id == 0 {
		return domain.ErrInvalidID
	}
	if stats.Amount < 0 || stats.Tickets < 0 || stats.Events < 0 {
		return domain.ErrInvalidID
	}
	return s.repo.IncrementStats(ctx, s.conn(tx), id, stats)
}

func (s *Service) GetByEmail(ctx context.Context, email string) (*domain.Customer, error) {
	email = domain.NormalizeEmail(email)
	if email == "" {
		return nil, domain.ErrInvalidEmail
	}
	customer, err := s.repo.FindByEmail(ctx, s.db, email)
	if err != nil {
		return nil, err
	}
	if customer == nil {
		return nil, domain.ErrNotFound
	}
	return customer, nil
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (*domain.Customer, error) {
	if id == 0 {
		return nil, domain.ErrInvalidID
	}
	customer, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if customer == nil {
		return nil, domain.ErrNotFound
	}
	return customer, nil
}

func (s *Service) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return s.db
}
