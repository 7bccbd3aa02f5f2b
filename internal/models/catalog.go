package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Category is the top level of the field taxonomy
type Category struct {
	ID            string        `gorm:"type:char(36);primaryKey" json:"id"`
	Name          string        `gorm:"size:255;not null;uniqueIndex" json:"name"`
	Description   string        `gorm:"size:1024" json:"description,omitempty"`
	Order         int           `gorm:"column:sort_order;not null;default:0" json:"order"`
	CreatedAt     time.Time     `json:"createdAt"`
	UpdatedAt     time.Time     `json:"updatedAt"`
	Subcategories []Subcategory `gorm:"foreignKey:CategoryID" json:"subcategories"`
}

// Subcategory belongs to exactly one Category
type Subcategory struct {
	ID          string    `gorm:"type:char(36);primaryKey" json:"id"`
	CategoryID  string    `gorm:"type:char(36);not null;index" json:"categoryId"`
	Name        string    `gorm:"size:255;not null" json:"name"`
	Description string    `gorm:"size:1024" json:"description,omitempty"`
	Order       int       `gorm:"column:sort_order;not null;default:0" json:"order"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Field is a reusable catalog entry. Forms snapshot it into their own field list.
type Field struct {
	ID            string    `gorm:"type:char(36);primaryKey" json:"id"`
	Name          string    `gorm:"size:128;not null;uniqueIndex" json:"name"`
	Label         string    `gorm:"size:255;not null" json:"label"`
	Type          string    `gorm:"size:32;not null" json:"type"`
	CategoryID    *string   `gorm:"type:char(36);index" json:"categoryId"`
	SubcategoryID *string   `gorm:"type:char(36);index" json:"subcategoryId"`
	Options       JSON      `json:"options"`
	Validation    JSON      `json:"validation"`
	Order         int       `gorm:"column:sort_order;not null;default:0" json:"order"`
	Placeholder   string    `gorm:"size:255" json:"placeholder,omitempty"`
	HelpText      string    `gorm:"size:1024" json:"helpText,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

func (c *Category) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

func (s *Subcategory) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}

func (f *Field) BeforeCreate(tx *gorm.DB) error {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	return nil
}

// TableName overrides the table name for Category
func (Category) TableName() string {
	return "categories"
}

// TableName overrides the table name for Subcategory
func (Subcategory) TableName() string {
	return "subcategories"
}

// TableName overrides the table name for Field
func (Field) TableName() string {
	return "fields"
}
