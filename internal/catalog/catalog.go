// Package catalog serves product lookups and builds cart candidates from them.
package catalog

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/fairyhunter13/storefront-cart-service/internal/model"
	"github.com/fairyhunter13/storefront-cart-service/internal/store"
)

// ErrInvalidQuantity is returned when a shopper asks for fewer than one unit.
var ErrInvalidQuantity = errors.New("quantity must be at least 1")

// Overview is the home screen payload.
type Overview struct {
	Products   []model.Product  `json:"products"`
	Categories []model.Category `json:"categories"`
}

// CategoryPage is a category with its products.
type CategoryPage struct {
	Category model.Category  `json:"category"`
	Products []model.Product `json:"products"`
}

type Service struct {
	repo store.Catalog
}

func NewService(repo store.Catalog) *Service {
	return &Service{repo: repo}
}

// Overview fetches products and categories in parallel.
func (s *Service) Overview(ctx context.Context) (Overview, error) {
	var ov Overview
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		ps, err := s.repo.ListProducts(ctx)
		ov.Products = ps
		return err
	})
	g.Go(func() error {
		cs, err := s.repo.ListCategories(ctx)
		ov.Categories = cs
		return err
	})
	if err := g.Wait(); err != nil {
		return Overview{}, fmt.Errorf("load catalog: %w", err)
	}
	return ov, nil
}

func (s *Service) Product(ctx context.Context, slug string) (model.Product, error) {
	return s.repo.ProductBySlug(ctx, slug)
}

func (s *Service) Category(ctx context.Context, slug string) (CategoryPage, error) {
	c, err := s.repo.CategoryBySlug(ctx, slug)
	if err != nil {
		return CategoryPage{}, err
	}
	ps, err := s.repo.ProductsByCategory(ctx, c.ID)
	if err != nil {
		return CategoryPage{}, err
	}
	return CategoryPage{Category: c, Products: ps}, nil
}

// Candidate loads product id and turns it into a line item for qty units.
// Requests above the product's per-cart limit are capped at that limit; the
// cart merge then reports the clamp.
func (s *Service) Candidate(ctx context.Context, id int64, qty int) (model.LineItem, error) {
	if qty < 1 {
		return model.LineItem{}, ErrInvalidQuantity
	}
	p, err := s.repo.Product(ctx, id)
	if err != nil {
		return model.LineItem{}, err
	}
	if p.MaxQuantity > 0 && qty > p.MaxQuantity {
		qty = p.MaxQuantity
	}
	return LineItemFor(p, qty), nil
}

// LineItemFor copies the catalog fields a cart line needs.
func LineItemFor(p model.Product, qty int) model.LineItem {
	return model.LineItem{
		ProductID:   p.ID,
		Title:       p.Title,
		Price:       p.Price,
		Quantity:    qty,
		MaxQuantity: p.MaxQuantity,
	}
}
