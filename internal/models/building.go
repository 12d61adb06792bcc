package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	MaxBuildingLevel = 5
	MaxWorkers       = 10
	GridSize         = 100
)

type BuildingInstance struct {
	ID        uint      `gorm:"primaryKey"`
	VillageID uint      `gorm:"not null;uniqueIndex:idx_building_cell,priority:1;index"`
	KindKey   string    `gorm:"type:varchar(50);not null;index"`
	X         int       `gorm:"not null;uniqueIndex:idx_building_cell,priority:2"`
	Y         int       `gorm:"not null;uniqueIndex:idx_building_cell,priority:3"`
	Level     int       `gorm:"default:1;not null"`
	Active    bool      `gorm:"default:true;not null;index"`
	Workers   int       `gorm:"default:0;not null"`
	BuiltAt   time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
	Village   Village   `gorm:"foreignKey:VillageID;constraint:OnDelete:CASCADE"`
}

func (BuildingInstance) TableName() string {
	return "building_instances"
}

// BeforeSave hook for validation
func (b *BuildingInstance) BeforeSave(tx *gorm.DB) error {
	if b.Level < 1 || b.Level > MaxBuildingLevel {
		return gorm.ErrInvalidData
	}
	if b.X < 0 || b.X > GridSize || b.Y < 0 || b.Y > GridSize {
		return gorm.ErrInvalidData
	}
	if b.Workers < 0 || b.Workers > MaxWorkers {
		return gorm.ErrInvalidData
	}
	return nil
}
