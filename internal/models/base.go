package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Base carries the identity and bookkeeping timestamps shared by every record.
// ID is a UUID string so the same value works as a MySQL primary key and a Mongo _id.
type Base struct {
	ID        string    `json:"id"       gorm:"type:char(36);primaryKey" bson:"_id"`
	CreatedAt time.Time `json:"created"  bson:"created_at"`
	UpdatedAt time.Time `json:"modified" bson:"updated_at"`
}

// EnsureID assigns a new UUID when the record has none yet.
func (b *Base) EnsureID() {
	if b.ID == "" {
		b.ID = uuid.New().String()
	}
}

func (b *Base) BeforeCreate(tx *gorm.DB) error {
	b.EnsureID()
	return nil
}
