package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	BaseHP                   = 100
	HPPerEndurance           = 10
	FreeStatPointsOnCreation = 10
	MaxStatValue             = 100
	// MaxXPAward caps a single XP grant to a character or village.
	MaxXPAward int64 = 1_000_000
)

type Attributes struct {
	Strength     int `gorm:"default:0;not null"`
	Dexterity    int `gorm:"default:0;not null"`
	Endurance    int `gorm:"default:0;not null"`
	Intelligence int `gorm:"default:0;not null"`
	Speed        int `gorm:"default:0;not null"`
	Luck         int `gorm:"default:0;not null"`
}

func (a Attributes) Total() int {
	return a.Strength + a.Dexterity + a.Endurance + a.Intelligence + a.Speed + a.Luck
}

func (a Attributes) Plus(b Attributes) Attributes {
	return Attributes{
		Strength:     a.Strength + b.Strength,
		Dexterity:    a.Dexterity + b.Dexterity,
		Endurance:    a.Endurance + b.Endurance,
		Intelligence: a.Intelligence + b.Intelligence,
		Speed:        a.Speed + b.Speed,
		Luck:         a.Luck + b.Luck,
	}
}

func (a Attributes) AnyNegative() bool {
	return a.Strength < 0 || a.Dexterity < 0 || a.Endurance < 0 ||
		a.Intelligence < 0 || a.Speed < 0 || a.Luck < 0
}

// ClassStats are the base attributes granted by each class.
var ClassStats = map[CharacterClass]Attributes{
	ClassWarrior:   {Strength: 3, Endurance: 2, Speed: 1},
	ClassScout:     {Dexterity: 3, Speed: 2, Luck: 1},
	ClassCraftsman: {Strength: 1, Dexterity: 2, Intelligence: 3},
	ClassLeader:    {Endurance: 2, Intelligence: 2, Luck: 2},
	ClassSurvivor:  {Strength: 1, Dexterity: 1, Endurance: 1, Intelligence: 1, Speed: 1, Luck: 1},
}

type Character struct {
	ID             uint           `gorm:"primaryKey"`
	VillageID      uint           `gorm:"not null;index"`
	Name           string         `gorm:"type:varchar(50);not null"`
	Class          CharacterClass `gorm:"type:varchar(20);not null"`
	IsPlayer       bool           `gorm:"default:false;not null"`
	Level          int            `gorm:"default:1;not null"`
	XP             int64          `gorm:"default:0;not null"`
	FreeStatPoints int            `gorm:"default:0;not null"`
	Attributes     `gorm:"embedded"`
	CurrentHP      int       `gorm:"not null"`
	MaxHP          int       `gorm:"not null"`
	OnMission      bool      `gorm:"default:false;not null;index"`
	CreatedAt      time.Time `gorm:"autoCreateTime"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime"`
	Village        Village   `gorm:"foreignKey:VillageID;constraint:OnDelete:CASCADE"`
}

func (Character) TableName() string {
	return "characters"
}

// MaxHPFor returns max HP for an endurance score.
func MaxHPFor(endurance int) int {
	return BaseHP + HPPerEndurance*endurance
}

// XPRequired is the cumulative XP needed to reach the given level.
func XPRequired(level int) int64 {
	return int64(100 * level * level)
}

// BeforeSave hook for validation
func (c *Character) BeforeSave(tx *gorm.DB) error {
	if c.Level < 1 || c.FreeStatPoints < 0 {
		return gorm.ErrInvalidData
	}
	if c.CurrentHP < 0 || c.CurrentHP > c.MaxHP {
		return gorm.ErrInvalidData
	}
	if c.Attributes.AnyNegative() {
		return gorm.ErrInvalidData
	}
	return nil
}
