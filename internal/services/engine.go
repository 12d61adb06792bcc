package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/mroshb/colony_engine/internal/catalog"
	"github.com/mroshb/colony_engine/internal/clock"
	"github.com/mroshb/colony_engine/internal/events"
	"github.com/mroshb/colony_engine/internal/models"
	"github.com/mroshb/colony_engine/internal/repositories"
	"github.com/mroshb/colony_engine/pkg/utils"
)

const DefaultDestroyRefundPercent = 50

type Settings struct {
	DestroyRefundPercent int
	ApplyMoralePenalty   bool
}

func DefaultSettings() Settings {
	return Settings{DestroyRefundPercent: DefaultDestroyRefundPercent, ApplyMoralePenalty: true}
}

type Deps struct {
	Store     repositories.Store
	Catalog   *catalog.Catalog
	Clock     clock.Clock
	Roller    utils.Roller
	Publisher events.Publisher
	Settings  Settings
}

// Engine groups the services that share one store and catalog.
type Engine struct {
	Resources  *ResourceService
	Buildings  *BuildingService
	Research   *ResearchService
	Missions   *MissionService
	Characters *CharacterService
	Villages   *VillageService
	Equipment  *EquipmentService
}

func NewEngine(d Deps) *Engine {
	if d.Clock == nil {
		d.Clock = clock.RealClock{}
	}
	if d.Roller == nil {
		d.Roller = utils.NewRoller()
	}
	if d.Publisher == nil {
		d.Publisher = events.Nop{}
	}
	b := &base{store: d.Store, catalog: d.Catalog, clock: d.Clock, publisher: d.Publisher}

	resources := &ResourceService{base: b}
	research := &ResearchService{base: b, resources: resources}
	characters := &CharacterService{base: b, roller: d.Roller}
	villages := &VillageService{base: b, research: research, characters: characters}
	buildings := &BuildingService{
		base:          b,
		resources:     resources,
		research:      research,
		refundPercent: d.Settings.DestroyRefundPercent,
		gridSize:      models.GridSize,
	}
	equipment := &EquipmentService{base: b, roller: d.Roller}
	missions := &MissionService{
		base:          b,
		resources:     resources,
		research:      research,
		characters:    characters,
		villages:      villages,
		equipment:     equipment,
		roller:        d.Roller,
		moralePenalty: d.Settings.ApplyMoralePenalty,
	}

	return &Engine{
		Resources:  resources,
		Buildings:  buildings,
		Research:   research,
		Missions:   missions,
		Characters: characters,
		Villages:   villages,
		Equipment:  equipment,
	}
}

type base struct {
	store     repositories.Store
	catalog   *catalog.Catalog
	clock     clock.Clock
	publisher events.Publisher
}

// run executes fn in a village transaction and publishes its events after commit.
func (b *base) run(ctx context.Context, villageID uint, fn func(tx repositories.Tx, ev *eventLog) error) error {
	ev := &eventLog{now: b.clock.Now()}
	err := b.store.WithVillage(ctx, villageID, func(tx repositories.Tx) error {
		ev.tx = tx
		ev.pending = ev.pending[:0]
		return fn(tx, ev)
	})
	if err != nil {
		return err
	}
	if len(ev.pending) > 0 {
		b.publisher.Publish(ctx, ev.pending)
	}
	return nil
}

type eventLog struct {
	tx      repositories.Tx
	now     time.Time
	pending []models.GameEvent
}

func (e *eventLog) emit(entityType string, entityID uint, transition string) error {
	ev := models.GameEvent{
		EventID:    uuid.NewString(),
		EntityType: entityType,
		EntityID:   entityID,
		Transition: transition,
		OccurredAt: e.now,
	}
	if err := e.tx.AppendEvent(&ev); err != nil {
		return err
	}
	e.pending = append(e.pending, ev)
	return nil
}

// PassStats summarizes one scheduler pass.
type PassStats struct {
	Processed int
	Skipped   int
	Failed    int
}
