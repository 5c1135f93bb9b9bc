// internal/models/common.go
package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Base model with common fields
type BaseModel struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (m *BaseModel) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

// StringList is stored as a JSON array in a text column.
type StringList []string

func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(l))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (l *StringList) Scan(value interface{}) error {
	var raw []byte
	switch v := value.(type) {
	case nil:
		*l = nil
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported StringList source %T", value)
	}
	return json.Unmarshal(raw, (*[]string)(l))
}

// Enums
type PostStatus string

const (
	PostStatusAvailable PostStatus = "available"
	PostStatusSold      PostStatus = "sold"
)

type Category string

const (
	CategoryFurniture   Category = "Furniture"
	CategoryElectronics Category = "Electronics"
	CategoryAppliances  Category = "Appliances"
	CategoryDecor       Category = "Decor"
	CategoryLighting    Category = "Lighting"
	CategoryOutdoor     Category = "Outdoor"
	CategoryOther       Category = "Other"
)

var Categories = []Category{
	CategoryFurniture,
	CategoryElectronics,
	CategoryAppliances,
	CategoryDecor,
	CategoryLighting,
	CategoryOutdoor,
	CategoryOther,
}

func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

type Condition string

const (
	ConditionNew      Condition = "New"
	ConditionLikeNew  Condition = "Like New"
	ConditionGood     Condition = "Good"
	ConditionUsed     Condition = "Used"
	ConditionForParts Condition = "For Parts"
)

var Conditions = []Condition{
	ConditionNew,
	ConditionLikeNew,
	ConditionGood,
	ConditionUsed,
	ConditionForParts,
}

func (c Condition) Valid() bool {
	for _, known := range Conditions {
		if c == known {
			return true
		}
	}
	return false
}
