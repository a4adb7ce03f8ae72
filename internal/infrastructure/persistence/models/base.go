package models

import (
	"time"

	"github.com/google/uuid"
)

// BaseModel provides common persistence fields for mirror tables
type BaseModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

func newBaseModel(id uuid.UUID, createdAt, updatedAt time.Time) BaseModel {
	return BaseModel{ID: id, CreatedAt: createdAt, UpdatedAt: updatedAt}
}
