package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

const (
	MinMissionParticipants = 2
	MaxMissionParticipants = 5
	MinMissionDifficulty   = 1
	MaxMissionDifficulty   = 10
)

// IDList is a JSON-encoded list of ids.
type IDList []uint

func (l IDList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]uint(l))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (l *IDList) Scan(src interface{}) error {
	raw, err := scanBytes(src)
	if err != nil {
		return err
	}
	out := IDList{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, (*[]uint)(&out)); err != nil {
			return fmt.Errorf("decode id list: %w", err)
		}
	}
	*l = out
	return nil
}

type MissionReward struct {
	Resources       ResourceMap `gorm:"type:jsonb;not null"`
	XP              int64       `gorm:"not null;default:0"`
	EquipmentChance float64     `gorm:"not null;default:0"`
}

type MissionOutcome struct {
	Success         bool
	RewardsObtained ResourceMap `gorm:"type:jsonb"`
	XPGained        int64
	Casualties      IDList `gorm:"type:jsonb"`
	EquipmentFound  bool
	EquipmentID     uint
}

type Mission struct {
	ID              uint           `gorm:"primaryKey"`
	VillageID       uint           `gorm:"not null;index"`
	Name            string         `gorm:"type:varchar(100);not null"`
	Type            MissionType    `gorm:"type:varchar(20);not null"`
	Status          MissionStatus  `gorm:"type:varchar(20);not null;index:idx_mission_due,priority:1"`
	Difficulty      int            `gorm:"not null"`
	DurationMinutes int            `gorm:"not null"`
	Reward          MissionReward  `gorm:"embedded;embeddedPrefix:reward_"`
	Outcome         MissionOutcome `gorm:"embedded;embeddedPrefix:outcome_"`
	CreatedAt       time.Time      `gorm:"autoCreateTime"`
	StartedAt       *time.Time
	Deadline        *time.Time `gorm:"index:idx_mission_due,priority:2"`
	CompletedAt     *time.Time
	Participants    []MissionParticipant `gorm:"foreignKey:MissionID;constraint:OnDelete:CASCADE"`
	Village         Village              `gorm:"foreignKey:VillageID;constraint:OnDelete:CASCADE"`
}

func (Mission) TableName() string {
	return "missions"
}

func (m *Mission) Duration() time.Duration {
	return time.Duration(m.DurationMinutes) * time.Minute
}

func (m *Mission) CharacterIDs() []uint {
	ids := make([]uint, len(m.Participants))
	for i, p := range m.Participants {
		ids[i] = p.CharacterID
	}
	return ids
}

func (m *Mission) Clone() Mission {
	cp := *m
	cp.Reward.Resources = m.Reward.Resources.Clone()
	cp.Outcome.RewardsObtained = m.Outcome.RewardsObtained.Clone()
	if m.Outcome.Casualties != nil {
		cp.Outcome.Casualties = append(IDList{}, m.Outcome.Casualties...)
	}
	cp.StartedAt = cloneTime(m.StartedAt)
	cp.Deadline = cloneTime(m.Deadline)
	cp.CompletedAt = cloneTime(m.CompletedAt)
	cp.Participants = append([]MissionParticipant(nil), m.Participants...)
	return cp
}

type MissionParticipant struct {
	ID          uint `gorm:"primaryKey"`
	MissionID   uint `gorm:"not null;uniqueIndex:idx_mission_character,priority:1"`
	CharacterID uint `gorm:"not null;uniqueIndex:idx_mission_character,priority:2;index"`
}

func (MissionParticipant) TableName() string {
	return "mission_participants"
}
