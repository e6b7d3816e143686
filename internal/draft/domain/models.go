package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// QuoteDraft is the persisted working copy of a ramp schedule before it
// is saved to the backend.
type QuoteDraft struct {
	ID        snowflake.ID   `gorm:"primaryKey"`
	QuoteID   string         `gorm:"not null;uniqueIndex"`
	Cadence   string         `gorm:"type:text;not null"`
	StartDate string         `gorm:"not null"`
	EndDate   string         `gorm:"not null"`
	Periods   datatypes.JSON `gorm:"not null"`
	CreatedAt time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (QuoteDraft) TableName() string { return "quote_drafts" }
