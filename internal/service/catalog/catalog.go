package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nkiryanov/farmbox/internal/apperrors"
	"github.com/nkiryanov/farmbox/internal/models"
	"github.com/nkiryanov/farmbox/internal/repository"
)

type CatalogService struct {
	productRepo repository.ProductRepo
}

func NewService(productRepo repository.ProductRepo) *CatalogService {
	return &CatalogService{productRepo: productRepo}
}

// Inactive products are listed for admins only
func (s *CatalogService) ListProducts(ctx context.Context, includeInactive bool) ([]models.Product, error) {
	return s.productRepo.ListProducts(ctx, includeInactive)
}

// Return product
// Inactive product is reported as not found unless includeInactive is set
func (s *CatalogService) GetProduct(ctx context.Context, productID uuid.UUID, includeInactive bool) (models.Product, error) {
	p, err := s.productRepo.GetProduct(ctx, productID)
	if err != nil {
		return p, err
	}

	if !p.IsActive && !includeInactive {
		return models.Product{}, fmt.Errorf("%w: inactive", apperrors.ErrProductNotFound)
	}

	return p, nil
}

func (s *CatalogService) CreateProduct(ctx context.Context, p models.Product) (models.Product, error) {
	p.Name = strings.TrimSpace(p.Name)
	p.Price = p.Price.Round(2)

	if p.Name == "" {
		return p, fmt.Errorf("%w: name must not be empty", apperrors.ErrProductInvalid)
	}
	if p.Price.LessThan(decimal.Zero) {
		return p, fmt.Errorf("%w: price must not be negative", apperrors.ErrProductInvalid)
	}

	return s.productRepo.CreateProduct(ctx, p)
}

func (s *CatalogService) SetProductActive(ctx context.Context, productID uuid.UUID, active bool) (models.Product, error) {
	return s.productRepo.SetProductActive(ctx, productID, active)
}
