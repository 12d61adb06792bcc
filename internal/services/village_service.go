package services

import (
	"context"
	"fmt"

	"github.com/mroshb/colony_engine/internal/events"
	"github.com/mroshb/colony_engine/internal/models"
	"github.com/mroshb/colony_engine/internal/repositories"
	"github.com/mroshb/colony_engine/internal/security"
	"github.com/mroshb/colony_engine/pkg/errors"
)

// NewVillage describes a village to found. Player, when set, becomes the
// village's player character.
type NewVillage struct {
	OwnerID     uint
	Name        string
	Description string
	Player      *NewCharacter
}

type VillageService struct {
	*base
	research   *ResearchService
	characters *CharacterService
}

// CreateVillage founds a village with its starting ledger, one research row
// per catalog node and the optional player character, all in one transaction.
func (s *VillageService) CreateVillage(ctx context.Context, in NewVillage) (*models.Village, error) {
	name, err := security.CleanName(in.Name)
	if err != nil {
		return nil, errors.Validation(err.Error())
	}

	village := &models.Village{
		OwnerID:           in.OwnerID,
		Name:              name,
		Description:       security.CleanDescription(in.Description),
		Morale:            models.DefaultMorale,
		WarehouseCapacity: models.DefaultWarehouseCapacity,
		Level:             1,
		Score:             models.VillageScore(0, 1),
	}

	ev := &eventLog{now: s.clock.Now()}
	err = s.store.CreateVillage(ctx, village, func(tx repositories.Tx) error {
		ev.tx = tx
		ledger := &models.ResourceLedger{
			Quantities: models.StartingResources(),
			Capacity:   village.WarehouseCapacity,
		}
		if err := tx.SaveLedger(ledger); err != nil {
			return err
		}
		if err := s.research.initTx(tx); err != nil {
			return err
		}
		if in.Player != nil {
			player := *in.Player
			player.Player = true
			if _, err := s.characters.createTx(tx, ev, player); err != nil {
				return err
			}
		}
		return ev.emit(models.EntityVillage, tx.Village().ID, events.VillageCreated)
	})
	if err != nil {
		return nil, err
	}
	s.publisher.Publish(ctx, ev.pending)
	return village, nil
}

func (s *VillageService) Get(ctx context.Context, villageID uint) (*models.Village, error) {
	var v *models.Village
	err := s.run(ctx, villageID, func(tx repositories.Tx, ev *eventLog) error {
		v = tx.Village()
		return nil
	})
	return v, err
}

// AddXP grants village experience and raises the level while xp reaches 500*level.
func (s *VillageService) AddXP(ctx context.Context, villageID uint, xp int64) (*models.Village, error) {
	if xp < 0 || xp > models.MaxXPAward {
		return nil, errors.Validation(fmt.Sprintf("xp must be within 0..%d", models.MaxXPAward))
	}
	var v *models.Village
	err := s.run(ctx, villageID, func(tx repositories.Tx, ev *eventLog) error {
		var err error
		v, err = s.addXPTx(tx, ev, xp)
		return err
	})
	return v, err
}

func (s *VillageService) addXPTx(tx repositories.Tx, ev *eventLog, xp int64) (*models.Village, error) {
	v := tx.Village()
	v.XP = models.AddAmounts(v.XP, xp)
	newLevel := v.Level
	for v.XP >= models.XPRequiredForLevel(newLevel) {
		newLevel++
	}
	leveled := newLevel > v.Level
	v.Level = newLevel
	v.Score = models.VillageScore(v.XP, v.Level)
	if err := tx.SaveVillage(v); err != nil {
		return nil, err
	}
	if leveled {
		if err := ev.emit(models.EntityVillage, v.ID, events.VillageLevelUp); err != nil {
			return nil, err
		}
	}
	return v, nil
}

// SetMorale stores morale clamped to [0, 100].
func (s *VillageService) SetMorale(ctx context.Context, villageID uint, morale int) (*models.Village, error) {
	if morale < 0 {
		morale = 0
	}
	if morale > models.MaxMorale {
		morale = models.MaxMorale
	}
	var v *models.Village
	err := s.run(ctx, villageID, func(tx repositories.Tx, ev *eventLog) error {
		v = tx.Village()
		if v.Morale == morale {
			return nil
		}
		v.Morale = morale
		if err := tx.SaveVillage(v); err != nil {
			return err
		}
		return ev.emit(models.EntityVillage, v.ID, events.VillageMorale)
	})
	return v, err
}

// Events returns the latest committed transitions of a village, newest first.
func (s *VillageService) Events(ctx context.Context, villageID uint, limit int) ([]models.GameEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.store.Events(ctx, villageID, limit)
}
