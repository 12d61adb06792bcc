package models

import (
	"time"
)

const (
	EntityVillage   = "village"
	EntityLedger    = "ledger"
	EntityBuilding  = "building"
	EntityResearch  = "research"
	EntityMission   = "mission"
	EntityCharacter = "character"
	EntityEquipment = "equipment"
)

// GameEvent is one row of the observability feed.
type GameEvent struct {
	ID         uint      `gorm:"primaryKey"`
	EventID    string    `gorm:"type:varchar(36);uniqueIndex;not null"`
	VillageID  uint      `gorm:"not null;index"`
	EntityType string    `gorm:"type:varchar(20);not null"`
	EntityID   uint      `gorm:"not null"`
	Transition string    `gorm:"type:varchar(40);not null"`
	OccurredAt time.Time `gorm:"not null;index"`
}

func (GameEvent) TableName() string {
	return "game_events"
}
