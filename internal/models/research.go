package models

import (
	"time"
)

type ResearchState struct {
	ID          uint           `gorm:"primaryKey"`
	VillageID   uint           `gorm:"not null;uniqueIndex:idx_village_node,priority:1"`
	NodeKey     string         `gorm:"type:varchar(50);not null;uniqueIndex:idx_village_node,priority:2"`
	Status      ResearchStatus `gorm:"type:varchar(20);not null;index"`
	Progress    int            `gorm:"default:0;not null"`
	StartedAt   *time.Time
	Deadline    *time.Time `gorm:"index"`
	CompletedAt *time.Time
	Village     Village `gorm:"foreignKey:VillageID;constraint:OnDelete:CASCADE"`
}

func (ResearchState) TableName() string {
	return "research_states"
}

func (r *ResearchState) Clone() ResearchState {
	cp := *r
	cp.StartedAt = cloneTime(r.StartedAt)
	cp.Deadline = cloneTime(r.Deadline)
	cp.CompletedAt = cloneTime(r.CompletedAt)
	return cp
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
