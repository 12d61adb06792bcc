package repositories

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/mroshb/colony_engine/internal/models"
	"github.com/mroshb/colony_engine/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) CreateVillage(ctx context.Context, village *models.Village, init func(tx Tx) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(village).Error; err != nil {
			return errors.Wrap(err, errors.ErrCodeInternalError, "failed to create village")
		}
		return init(&gormTx{db: tx, village: village})
	})
}

func (s *GormStore) WithVillage(ctx context.Context, villageID uint, fn func(tx Tx) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Row lock on the village serializes every writer of this village
		var village models.Village
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&village, villageID).Error; err != nil {
			if stderrors.Is(err, gorm.ErrRecordNotFound) {
				return errors.NotFound("village not found")
			}
			return errors.Wrap(err, errors.ErrCodeInternalError, "failed to lock village")
		}
		return fn(&gormTx{db: tx, village: &village})
	})
}

func (s *GormStore) DueMissions(ctx context.Context, now time.Time) ([]EntityRef, error) {
	var refs []EntityRef
	err := s.db.WithContext(ctx).Model(&models.Mission{}).
		Select("village_id, id").
		Where("status = ? AND deadline <= ?", models.MissionInProgress, now).
		Order("deadline ASC").
		Scan(&refs).Error
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternalError, "failed to scan due missions")
	}
	return refs, nil
}

func (s *GormStore) DueResearch(ctx context.Context, now time.Time) ([]ResearchRef, error) {
	var refs []ResearchRef
	err := s.db.WithContext(ctx).Model(&models.ResearchState{}).
		Select("village_id, node_key").
		Where("status = ? AND deadline <= ?", models.ResearchInProgress, now).
		Order("deadline ASC").
		Scan(&refs).Error
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternalError, "failed to scan due research")
	}
	return refs, nil
}

func (s *GormStore) ProducingVillages(ctx context.Context) ([]uint, error) {
	var ids []uint
	err := s.db.WithContext(ctx).Model(&models.BuildingInstance{}).
		Distinct("village_id").
		Where("active = ?", true).
		Order("village_id").
		Pluck("village_id", &ids).Error
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternalError, "failed to scan producing villages")
	}
	return ids, nil
}

func (s *GormStore) RegenVillages(ctx context.Context) ([]uint, error) {
	var ids []uint
	err := s.db.WithContext(ctx).Model(&models.Character{}).
		Distinct("village_id").
		Where("on_mission = ? AND current_hp > 0 AND current_hp < max_hp", false).
		Order("village_id").
		Pluck("village_id", &ids).Error
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternalError, "failed to scan wounded characters")
	}
	return ids, nil
}

func (s *GormStore) Events(ctx context.Context, villageID uint, limit int) ([]models.GameEvent, error) {
	var events []models.GameEvent
	err := s.db.WithContext(ctx).
		Where("village_id = ?", villageID).
		Order("occurred_at DESC, id DESC").
		Limit(limit).
		Find(&events).Error
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternalError, "failed to get events")
	}
	return events, nil
}

type gormTx struct {
	db      *gorm.DB
	village *models.Village
}

func (t *gormTx) scoped() *gorm.DB {
	return t.db.Where("village_id = ?", t.village.ID)
}

func notFoundOr(err error, what string) error {
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		return errors.NotFound(what + " not found")
	}
	return errors.Wrap(err, errors.ErrCodeInternalError, "failed to get "+what)
}

func (t *gormTx) Village() *models.Village {
	return t.village
}

func (t *gormTx) SaveVillage(v *models.Village) error {
	if err := t.db.Save(v).Error; err != nil {
		return errors.Wrap(err, errors.ErrCodeInternalError, "failed to save village")
	}
	t.village = v
	return nil
}

func (t *gormTx) Ledger() (*models.ResourceLedger, error) {
	var ledger models.ResourceLedger
	if err := t.scoped().First(&ledger).Error; err != nil {
		return nil, notFoundOr(err, "ledger")
	}
	return &ledger, nil
}

func (t *gormTx) SaveLedger(l *models.ResourceLedger) error {
	l.VillageID = t.village.ID
	if err := t.db.Save(l).Error; err != nil {
		return errors.Wrap(err, errors.ErrCodeInternalError, "failed to save ledger")
	}
	return nil
}

func (t *gormTx) Buildings() ([]models.BuildingInstance, error) {
	var out []models.BuildingInstance
	if err := t.scoped().Order("id").Find(&out).Error; err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternalError, "failed to list buildings")
	}
	return out, nil
}

func (t *gormTx) Building(id uint) (*models.BuildingInstance, error) {
	var b models.BuildingInstance
	if err := t.scoped().First(&b, id).Error; err != nil {
		return nil, notFoundOr(err, "building")
	}
	return &b, nil
}

func (t *gormTx) CreateBuilding(b *models.BuildingInstance) error {
	b.VillageID = t.village.ID
	if err := t.db.Omit(clause.Associations).Create(b).Error; err != nil {
		return errors.Wrap(err, errors.ErrCodeInternalError, "failed to create building")
	}
	return nil
}

func (t *gormTx) SaveBuilding(b *models.BuildingInstance) error {
	if err := t.db.Omit(clause.Associations).Save(b).Error; err != nil {
		return errors.Wrap(err, errors.ErrCodeInternalError, "failed to save building")
	}
	return nil
}

func (t *gormTx) DeleteBuilding(id uint) error {
	res := t.scoped().Delete(&models.BuildingInstance{}, id)
	if res.Error != nil {
		return errors.Wrap(res.Error, errors.ErrCodeInternalError, "failed to delete building")
	}
	if res.RowsAffected == 0 {
		return errors.NotFound("building not found")
	}
	return nil
}

func (t *gormTx) ResearchStates() ([]models.ResearchState, error) {
	var out []models.ResearchState
	if err := t.scoped().Order("id").Find(&out).Error; err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternalError, "failed to list research")
	}
	return out, nil
}

func (t *gormTx) CreateResearchStates(states []models.ResearchState) error {
	if len(states) == 0 {
		return nil
	}
	for i := range states {
		states[i].VillageID = t.village.ID
	}
	if err := t.db.Omit(clause.Associations).Create(&states).Error; err != nil {
		return errors.Wrap(err, errors.ErrCodeInternalError, "failed to create research states")
	}
	return nil
}

func (t *gormTx) SaveResearchState(s *models.ResearchState) error {
	if err := t.db.Omit(clause.Associations).Save(s).Error; err != nil {
		return errors.Wrap(err, errors.ErrCodeInternalError, "failed to save research state")
	}
	return nil
}

func (t *gormTx) Missions() ([]models.Mission, error) {
	var out []models.Mission
	if err := t.scoped().Preload("Participants").Order("id").Find(&out).Error; err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternalError, "failed to list missions")
	}
	return out, nil
}

func (t *gormTx) Mission(id uint) (*models.Mission, error) {
	var m models.Mission
	if err := t.scoped().Preload("Participants").First(&m, id).Error; err != nil {
		return nil, notFoundOr(err, "mission")
	}
	return &m, nil
}

func (t *gormTx) CreateMission(m *models.Mission) error {
	m.VillageID = t.village.ID
	if err := t.db.Omit("Village").Create(m).Error; err != nil {
		return errors.Wrap(err, errors.ErrCodeInternalError, "failed to create mission")
	}
	return nil
}

func (t *gormTx) SaveMission(m *models.Mission) error {
	if err := t.db.Omit(clause.Associations).Save(m).Error; err != nil {
		return errors.Wrap(err, errors.ErrCodeInternalError, "failed to save mission")
	}
	return nil
}

func (t *gormTx) DeleteMission(id uint) error {
	if err := t.db.Where("mission_id = ?", id).Delete(&models.MissionParticipant{}).Error; err != nil {
		return errors.Wrap(err, errors.ErrCodeInternalError, "failed to delete participants")
	}
	res := t.scoped().Delete(&models.Mission{}, id)
	if res.Error != nil {
		return errors.Wrap(res.Error, errors.ErrCodeInternalError, "failed to delete mission")
	}
	if res.RowsAffected == 0 {
		return errors.NotFound("mission not found")
	}
	return nil
}

func (t *gormTx) Characters() ([]models.Character, error) {
	var out []models.Character
	if err := t.scoped().Order("id").Find(&out).Error; err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternalError, "failed to list characters")
	}
	return out, nil
}

func (t *gormTx) Character(id uint) (*models.Character, error) {
	var c models.Character
	if err := t.scoped().First(&c, id).Error; err != nil {
		return nil, notFoundOr(err, "character")
	}
	return &c, nil
}

func (t *gormTx) CreateCharacter(c *models.Character) error {
	c.VillageID = t.village.ID
	if err := t.db.Omit(clause.Associations).Create(c).Error; err != nil {
		return errors.Wrap(err, errors.ErrCodeInternalError, "failed to create character")
	}
	return nil
}

func (t *gormTx) SaveCharacter(c *models.Character) error {
	if err := t.db.Omit(clause.Associations).Save(c).Error; err != nil {
		return errors.Wrap(err, errors.ErrCodeInternalError, "failed to save character")
	}
	return nil
}

func (t *gormTx) DeleteCharacter(id uint) error {
	if err := t.scoped().Where("character_id = ?", id).Delete(&models.Equipment{}).Error; err != nil {
		return errors.Wrap(err, errors.ErrCodeInternalError, "failed to delete equipment")
	}
	res := t.scoped().Delete(&models.Character{}, id)
	if res.Error != nil {
		return errors.Wrap(res.Error, errors.ErrCodeInternalError, "failed to delete character")
	}
	if res.RowsAffected == 0 {
		return errors.NotFound("character not found")
	}
	return nil
}

func (t *gormTx) EquipmentItems() ([]models.Equipment, error) {
	var out []models.Equipment
	if err := t.scoped().Order("id").Find(&out).Error; err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternalError, "failed to list equipment")
	}
	return out, nil
}

func (t *gormTx) EquipmentItem(id uint) (*models.Equipment, error) {
	var e models.Equipment
	if err := t.scoped().First(&e, id).Error; err != nil {
		return nil, notFoundOr(err, "equipment")
	}
	return &e, nil
}

func (t *gormTx) CreateEquipment(e *models.Equipment) error {
	e.VillageID = t.village.ID
	if err := t.db.Omit(clause.Associations).Create(e).Error; err != nil {
		return errors.Wrap(err, errors.ErrCodeInternalError, "failed to create equipment")
	}
	return nil
}

func (t *gormTx) SaveEquipment(e *models.Equipment) error {
	if err := t.db.Omit(clause.Associations).Save(e).Error; err != nil {
		return errors.Wrap(err, errors.ErrCodeInternalError, "failed to save equipment")
	}
	return nil
}

func (t *gormTx) DeleteEquipment(id uint) error {
	res := t.scoped().Delete(&models.Equipment{}, id)
	if res.Error != nil {
		return errors.Wrap(res.Error, errors.ErrCodeInternalError, "failed to delete equipment")
	}
	if res.RowsAffected == 0 {
		return errors.NotFound("equipment not found")
	}
	return nil
}

func (t *gormTx) AppendEvent(e *models.GameEvent) error {
	e.VillageID = t.village.ID
	if err := t.db.Create(e).Error; err != nil {
		return errors.Wrap(err, errors.ErrCodeInternalError, "failed to append event")
	}
	return nil
}
