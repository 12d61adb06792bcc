package models

import (
	"database/sql/driver"
	"fmt"
	"time"

	"gorm.io/gorm"
)

type EquipmentSlot uint8

const (
	SlotHead EquipmentSlot = iota + 1
	SlotShoulders
	SlotTorso
	SlotLegs
	SlotFeet
	SlotHands
	SlotJewelry1
	SlotJewelry2
	SlotJewelry3
	SlotWeapon1
	SlotWeapon2
)

var equipmentSlotNames = map[EquipmentSlot]string{
	SlotHead:      "head",
	SlotShoulders: "shoulders",
	SlotTorso:     "torso",
	SlotLegs:      "legs",
	SlotFeet:      "feet",
	SlotHands:     "hands",
	SlotJewelry1:  "jewelry_1",
	SlotJewelry2:  "jewelry_2",
	SlotJewelry3:  "jewelry_3",
	SlotWeapon1:   "weapon_1",
	SlotWeapon2:   "weapon_2",
}

func EquipmentSlots() []EquipmentSlot {
	return []EquipmentSlot{
		SlotHead, SlotShoulders, SlotTorso, SlotLegs, SlotFeet, SlotHands,
		SlotJewelry1, SlotJewelry2, SlotJewelry3, SlotWeapon1, SlotWeapon2,
	}
}

func (s EquipmentSlot) String() string {
	if name, ok := equipmentSlotNames[s]; ok {
		return name
	}
	return fmt.Sprintf("EquipmentSlot(%d)", uint8(s))
}

func (s EquipmentSlot) Valid() bool {
	_, ok := equipmentSlotNames[s]
	return ok
}

func ParseEquipmentSlot(s string) (EquipmentSlot, error) {
	for k, v := range equipmentSlotNames {
		if v == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown equipment slot %q", s)
}

func (s EquipmentSlot) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid equipment slot %d", uint8(s))
	}
	return s.String(), nil
}

func (s *EquipmentSlot) Scan(src interface{}) error {
	str, err := scanString(src)
	if err != nil {
		return err
	}
	*s, err = ParseEquipmentSlot(str)
	return err
}

type EquipmentRarity uint8

const (
	RarityCommon EquipmentRarity = iota + 1
	RarityUncommon
	RarityRare
	RarityEpic
	RarityLegendary
	RarityMythic
)

var equipmentRarityNames = map[EquipmentRarity]string{
	RarityCommon:    "common",
	RarityUncommon:  "uncommon",
	RarityRare:      "rare",
	RarityEpic:      "epic",
	RarityLegendary: "legendary",
	RarityMythic:    "mythic",
}

// rarityMultipliers are stat budget multipliers in percent.
var rarityMultipliers = map[EquipmentRarity]int{
	RarityCommon:    100,
	RarityUncommon:  115,
	RarityRare:      130,
	RarityEpic:      150,
	RarityLegendary: 180,
	RarityMythic:    220,
}

func EquipmentRarities() []EquipmentRarity {
	return []EquipmentRarity{RarityCommon, RarityUncommon, RarityRare, RarityEpic, RarityLegendary, RarityMythic}
}

func (r EquipmentRarity) String() string {
	if name, ok := equipmentRarityNames[r]; ok {
		return name
	}
	return fmt.Sprintf("EquipmentRarity(%d)", uint8(r))
}

func (r EquipmentRarity) Valid() bool {
	_, ok := equipmentRarityNames[r]
	return ok
}

// MultiplierPercent scales the stat budget of an item of this rarity.
func (r EquipmentRarity) MultiplierPercent() int {
	if m, ok := rarityMultipliers[r]; ok {
		return m
	}
	return 100
}

func ParseEquipmentRarity(s string) (EquipmentRarity, error) {
	for k, v := range equipmentRarityNames {
		if v == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown equipment rarity %q", s)
}

func (r EquipmentRarity) Value() (driver.Value, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("invalid equipment rarity %d", uint8(r))
	}
	return r.String(), nil
}

func (r *EquipmentRarity) Scan(src interface{}) error {
	str, err := scanString(src)
	if err != nil {
		return err
	}
	*r, err = ParseEquipmentRarity(str)
	return err
}

const (
	MinEquipmentLevel = 1
	MaxEquipmentLevel = 100
)

// Equipment is one item carried by a character. At most one item per
// character and slot is equipped.
type Equipment struct {
	ID          uint            `gorm:"primaryKey"`
	VillageID   uint            `gorm:"not null;index"`
	CharacterID uint            `gorm:"not null;index"`
	Name        string          `gorm:"type:varchar(100);not null"`
	Description string          `gorm:"type:text;not null"`
	Slot        EquipmentSlot   `gorm:"type:varchar(20);not null"`
	Rarity      EquipmentRarity `gorm:"type:varchar(20);not null"`
	Level       int             `gorm:"not null;default:1"`
	Bonus       Attributes      `gorm:"embedded;embeddedPrefix:bonus_"`
	Armor       int             `gorm:"not null;default:0"`
	Damage      int             `gorm:"not null;default:0"`
	Equipped    bool            `gorm:"not null;default:false"`
	SpriteKey   string          `gorm:"type:varchar(50);not null"`
	ObtainedAt  time.Time       `gorm:"not null"`
	Character   Character       `gorm:"foreignKey:CharacterID;constraint:OnDelete:CASCADE"`
}

func (Equipment) TableName() string {
	return "equipment"
}

// BeforeSave hook for validation
func (e *Equipment) BeforeSave(tx *gorm.DB) error {
	if !e.Slot.Valid() || !e.Rarity.Valid() {
		return gorm.ErrInvalidData
	}
	if e.Level < MinEquipmentLevel || e.Level > MaxEquipmentLevel {
		return gorm.ErrInvalidData
	}
	if e.Bonus.AnyNegative() || e.Armor < 0 || e.Damage < 0 {
		return gorm.ErrInvalidData
	}
	return nil
}
