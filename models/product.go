package models

import "time"

// ProductCategory beschreibt einen Produkttyp (z.B. Artikel, Patent, Software).
type ProductCategory struct {
	Code          string    `json:"code" gorm:"primaryKey;size:64"`
	CreatedAt     time.Time `json:"created_at"`
	Name          string    `json:"name" gorm:"not null"`
	Description   string    `json:"description,omitempty"`
	CategoryGroup string    `json:"category_group" gorm:"index;not null"` // PUBLICATION, SOFTWARE, PATENT, DATABASE, TRAINING, OTHER
	ImpactWeight  float64   `json:"impact_weight"`
}

// TableName gibt den expliziten Tabellennamen für GORM an.
func (ProductCategory) TableName() string {
	return "product_categories"
}

// Product ist ein wissenschaftliches Ergebnis eines Projekts.
type Product struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	ProjectID   uint   `json:"project_id" gorm:"index;not null"`
	ProductCode string `json:"product_code"`
	ProductType string `json:"product_type" gorm:"index"` // -> product_categories.code
	Description string `json:"description" gorm:"type:text"`

	DOI             string     `json:"doi,omitempty" gorm:"column:doi;index"`
	URL             string     `json:"url,omitempty"`
	Journal         string     `json:"journal,omitempty"`
	PublicationDate *time.Time `json:"publication_date,omitempty"`
	ImpactFactor    *float64   `json:"impact_factor,omitempty"`
	CitationCount   *int       `json:"citation_count,omitempty"`

	// Bibliometrie-Abgleich
	IsOpenAccess     bool       `json:"is_open_access" gorm:"default:false"`
	MetricsUpdatedAt *time.Time `json:"metrics_updated_at,omitempty"`
}

func (Product) TableName() string { return "products" }
