package repositories

import (
	"context"
	"time"

	"github.com/mroshb/colony_engine/internal/models"
)

// Store is the transactional persistence boundary of the engine. Every write
// happens inside WithVillage, which serializes writers of one village and
// commits all effects of the callback or none of them.
type Store interface {
	// CreateVillage inserts the village and runs init in the same transaction.
	CreateVillage(ctx context.Context, village *models.Village, init func(tx Tx) error) error
	// WithVillage runs fn holding the village lock. A nil return commits.
	WithVillage(ctx context.Context, villageID uint, fn func(tx Tx) error) error

	DueMissions(ctx context.Context, now time.Time) ([]EntityRef, error)
	DueResearch(ctx context.Context, now time.Time) ([]ResearchRef, error)
	ProducingVillages(ctx context.Context) ([]uint, error)
	RegenVillages(ctx context.Context) ([]uint, error)
	Events(ctx context.Context, villageID uint, limit int) ([]models.GameEvent, error)
}

type EntityRef struct {
	VillageID uint
	ID        uint
}

type ResearchRef struct {
	VillageID uint
	NodeKey   string
}

// Tx is scoped to one locked village. Lookups of entities owned by another
// village return NotFound.
type Tx interface {
	Village() *models.Village
	SaveVillage(v *models.Village) error

	Ledger() (*models.ResourceLedger, error)
	SaveLedger(l *models.ResourceLedger) error

	Buildings() ([]models.BuildingInstance, error)
	Building(id uint) (*models.BuildingInstance, error)
	CreateBuilding(b *models.BuildingInstance) error
	SaveBuilding(b *models.BuildingInstance) error
	DeleteBuilding(id uint) error

	ResearchStates() ([]models.ResearchState, error)
	CreateResearchStates(states []models.ResearchState) error
	SaveResearchState(s *models.ResearchState) error

	Missions() ([]models.Mission, error)
	Mission(id uint) (*models.Mission, error)
	CreateMission(m *models.Mission) error
	SaveMission(m *models.Mission) error
	DeleteMission(id uint) error

	Characters() ([]models.Character, error)
	Character(id uint) (*models.Character, error)
	CreateCharacter(c *models.Character) error
	SaveCharacter(c *models.Character) error
	DeleteCharacter(id uint) error

	EquipmentItems() ([]models.Equipment, error)
	EquipmentItem(id uint) (*models.Equipment, error)
	CreateEquipment(e *models.Equipment) error
	SaveEquipment(e *models.Equipment) error
	DeleteEquipment(id uint) error

	AppendEvent(e *models.GameEvent) error
}
