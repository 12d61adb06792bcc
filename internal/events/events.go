package events

import (
	"context"
	"sync"

	"github.com/mroshb/colony_engine/internal/models"
	"github.com/mroshb/colony_engine/pkg/logger"
)

// Transition names carried by the feed.
const (
	BuildingBuilt     = "built"
	BuildingUpgraded  = "upgraded"
	BuildingDestroyed = "destroyed"
	BuildingToggled   = "toggled"
	BuildingStaffed   = "workers_assigned"

	ResearchStarted   = "started"
	ResearchCompleted = "completed"
	ResearchCancelled = "cancelled"
	ResearchUnlocked  = "unlocked"

	MissionCreated   = "created"
	MissionStarted   = "started"
	MissionCompleted = "completed"
	MissionFailed    = "failed"
	MissionRecalled  = "recalled"
	MissionDeleted   = "deleted"

	CharacterCreated   = "created"
	CharacterLevelUp   = "level_up"
	CharacterInjured   = "injured"
	CharacterDeleted   = "deleted"
	CharacterAllocated = "stats_allocated"

	EquipmentFound       = "found"
	EquipmentGranted     = "granted"
	EquipmentEquipped    = "equipped"
	EquipmentUnequipped  = "unequipped"
	EquipmentTransferred = "transferred"
	EquipmentDiscarded   = "discarded"

	VillageCreated = "created"
	VillageLevelUp = "level_up"
	VillageMorale  = "morale_changed"
	LedgerProduced = "produced"
	LedgerCapacity = "capacity_changed"
)

// Publisher receives committed events. Implementations must not block for long.
type Publisher interface {
	Publish(ctx context.Context, events []models.GameEvent)
}

type Nop struct{}

func (Nop) Publish(context.Context, []models.GameEvent) {}

// Fanout forwards every batch to each sink in order.
type Fanout []Publisher

func (f Fanout) Publish(ctx context.Context, events []models.GameEvent) {
	for _, p := range f {
		p.Publish(ctx, events)
	}
}

type LogSink struct{}

func (LogSink) Publish(_ context.Context, events []models.GameEvent) {
	for _, e := range events {
		logger.Debug("Game event",
			"event_id", e.EventID,
			"village_id", e.VillageID,
			"entity_type", e.EntityType,
			"entity_id", e.EntityID,
			"transition", e.Transition,
		)
	}
}

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []models.GameEvent
}

func (r *Recorder) Publish(_ context.Context, events []models.GameEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, events...)
}

func (r *Recorder) Events() []models.GameEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.GameEvent(nil), r.events...)
}

// Transitions returns "entity:transition" pairs, handy in assertions.
func (r *Recorder) Transitions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, e := range r.events {
		out[i] = e.EntityType + ":" + e.Transition
	}
	return out
}
