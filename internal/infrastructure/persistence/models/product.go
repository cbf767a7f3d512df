package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/catalogsync/backend/internal/domain/catalog"
)

// ProductModel is the persistence model for the canonical Product
type ProductModel struct {
	BaseModel
	Title          string         `gorm:"type:varchar(255);not null;index"`
	Description    string         `gorm:"type:text"`
	Vendor         string         `gorm:"type:varchar(255)"`
	ProductType    string         `gorm:"type:varchar(255);index"`
	Status         catalog.Status `gorm:"type:varchar(20);not null;default:'draft';index"`
	Price          int64          `gorm:"not null;default:0"`
	CompareAtPrice *int64
	WeightGrams    int64  `gorm:"not null;default:0"`
	IsDigital      bool   `gorm:"not null;default:false"`
	TagsJSON       string `gorm:"type:jsonb;column:tags;not null;default:'[]'"`
	ImagesJSON     string `gorm:"type:jsonb;column:images;not null;default:'[]'"`
	OptionsJSON    string `gorm:"type:jsonb;column:options;not null;default:'[]'"`
	VariantsJSON   string `gorm:"type:jsonb;column:variants;not null;default:'[]'"`
	ExtrasJSON     string `gorm:"type:jsonb;column:extras;not null;default:'{}'"`
}

// TableName returns the table name for GORM
func (ProductModel) TableName() string {
	return "products"
}

// ToDomain converts the persistence model to a domain Product
func (m *ProductModel) ToDomain() (*catalog.Product, error) {
	p := &catalog.Product{
		ID:             m.ID,
		Title:          m.Title,
		Description:    m.Description,
		Vendor:         m.Vendor,
		ProductType:    m.ProductType,
		Status:         m.Status,
		Price:          m.Price,
		CompareAtPrice: m.CompareAtPrice,
		WeightGrams:    m.WeightGrams,
		IsDigital:      m.IsDigital,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
	docs := []struct {
		column string
		raw    string
		dst    any
	}{
		{"tags", m.TagsJSON, &p.Tags},
		{"images", m.ImagesJSON, &p.Images},
		{"options", m.OptionsJSON, &p.Options},
		{"variants", m.VariantsJSON, &p.Variants},
		{"extras", m.ExtrasJSON, &p.Extras},
	}
	for _, d := range docs {
		if d.raw == "" {
			continue
		}
		if err := json.Unmarshal([]byte(d.raw), d.dst); err != nil {
			return nil, fmt.Errorf("decode %s of product %s: %w", d.column, m.ID, err)
		}
	}
	if len(p.Extras) == 0 {
		p.Extras = nil
	}
	return p, nil
}

// FromDomain populates the persistence model from a domain Product
func (m *ProductModel) FromDomain(p *catalog.Product) error {
	m.ID = p.ID
	m.Title = p.Title
	m.Description = p.Description
	m.Vendor = p.Vendor
	m.ProductType = p.ProductType
	m.Status = p.Status
	m.Price = p.Price
	m.CompareAtPrice = p.CompareAtPrice
	m.WeightGrams = p.WeightGrams
	m.IsDigital = p.IsDigital
	m.CreatedAt = p.CreatedAt
	m.UpdatedAt = p.UpdatedAt

	var err error
	if m.TagsJSON, err = encodeJSON(p.Tags, "[]"); err != nil {
		return err
	}
	if m.ImagesJSON, err = encodeJSON(p.Images, "[]"); err != nil {
		return err
	}
	if m.OptionsJSON, err = encodeJSON(p.Options, "[]"); err != nil {
		return err
	}
	if m.VariantsJSON, err = encodeJSON(p.Variants, "[]"); err != nil {
		return err
	}
	if m.ExtrasJSON, err = encodeJSON(p.Extras, "{}"); err != nil {
		return err
	}
	m.touch(time.Now())
	return nil
}

// ProductModelFromDomain creates a new persistence model from a domain Product
func ProductModelFromDomain(p *catalog.Product) (*ProductModel, error) {
	m := &ProductModel{}
	if err := m.FromDomain(p); err != nil {
		return nil, err
	}
	return m, nil
}

// encodeJSON marshals v, using empty for nil slices and maps
func encodeJSON[T any](v T, empty string) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode product document: %w", err)
	}
	if string(raw) == "null" {
		return empty, nil
	}
	return string(raw), nil
}
