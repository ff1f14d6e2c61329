package store

import (
	"fmt"
	"io"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/fairyhunter13/storefront-cart-service/internal/model"
)

type seedFile struct {
	Categories []model.Category `yaml:"categories"`
	Products   []seedProduct    `yaml:"products"`
}

type seedProduct struct {
	ID          int64  `yaml:"id"`
	Slug        string `yaml:"slug"`
	Title       string `yaml:"title"`
	Price       string `yaml:"price"`
	Stock       int    `yaml:"stock"`
	MaxQuantity int    `yaml:"max_quantity"`
	Category    int64  `yaml:"category_id"`
	HeroImage   string `yaml:"hero_image"`
}

// LoadSeed reads a YAML catalog from r into s.
func (s *Memory) LoadSeed(r io.Reader) error {
	var f seedFile
	if err := yaml.NewDecoder(r).Decode(&f); err != nil {
		return fmt.Errorf("decode seed: %w", err)
	}
	for _, c := range f.Categories {
		s.UpsertCategory(c)
	}
	for _, sp := range f.Products {
		price, err := decimal.NewFromString(sp.Price)
		if err != nil {
			return fmt.Errorf("product %d price %q: %w", sp.ID, sp.Price, err)
		}
		s.UpsertProduct(model.Product{
			ID:          sp.ID,
			Slug:        sp.Slug,
			Title:       sp.Title,
			Price:       price,
			Stock:       sp.Stock,
			MaxQuantity: sp.MaxQuantity,
			CategoryID:  sp.Category,
			HeroImage:   sp.HeroImage,
		})
	}
	return nil
}

// LoadSeedFile is LoadSeed over the named file.
func (s *Memory) LoadSeedFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return s.LoadSeed(f)
}
