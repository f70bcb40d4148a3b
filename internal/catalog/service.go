package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	Create(ctx context.Context, variant Variant) error
	Get(ctx context.Context, id uuid.UUID) (Variant, error)
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
}

// Service covers the minimal variant registration the stock engine depends
// on. Full catalog management belongs to the upstream catalog service.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// Register creates a variant with zeroed stock counters.
func (s *Service) Register(ctx context.Context, variant Variant) (Variant, error) {
	if err := s.validate(variant); err != nil {
		return Variant{}, err
	}
	if variant.ID == uuid.Nil {
		variant.ID = uuid.New()
	}
	if err := s.repo.Create(ctx, variant); err != nil {
		return Variant{}, err
	}
	return variant, nil
}

// Get fetches one variant.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Variant, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) validate(v Variant) error {
	if strings.TrimSpace(v.SKU) == "" {
		return fmt.Errorf("%w: sku is required", ErrInvalidVariant)
	}
	if strings.TrimSpace(v.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidVariant)
	}
	return nil
}
