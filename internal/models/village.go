package models

import (
	"time"
)

const (
	DefaultWarehouseCapacity = 1000
	DefaultMorale            = 70
	MaxMorale                = 100
	LowMoraleThreshold       = 50
)

type Village struct {
	ID                uint      `gorm:"primaryKey"`
	OwnerID           uint      `gorm:"not null;index"`
	Name              string    `gorm:"type:varchar(50);not null"`
	Description       string    `gorm:"type:text"`
	Morale            int       `gorm:"default:70;not null"`
	WarehouseCapacity int64     `gorm:"default:1000;not null"`
	XP                int64     `gorm:"default:0;not null"`
	Level             int       `gorm:"default:1;not null"`
	Score             int64     `gorm:"default:0;not null;index"`
	CreatedAt         time.Time `gorm:"autoCreateTime"`
	UpdatedAt         time.Time `gorm:"autoUpdateTime"`
}

func (Village) TableName() string {
	return "villages"
}

// XPRequiredForLevel is the total village XP needed to leave the given level.
func XPRequiredForLevel(level int) int64 {
	return int64(level * 500)
}

// VillageScore ranks villages by experience and level.
func VillageScore(xp int64, level int) int64 {
	return xp/10 + int64(level*100)
}

// StartingResources seeds a new village ledger.
func StartingResources() ResourceMap {
	return ResourceMap{
		ResourceWater: 200,
		ResourceWood:  150,
		ResourceStone: 100,
		ResourceFood:  50,
		ResourceGold:  100,
		ResourceSeeds: 20,
		ResourceTools: 5,
	}
}
