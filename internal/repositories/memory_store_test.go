package repositories

import (
	"context"
	stderrors "errors"
	"sync"
	"testing"
	"time"

	"github.com/mroshb/colony_engine/internal/models"
	"github.com/mroshb/colony_engine/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newVillage(t *testing.T, s *MemoryStore) uint {
	t.Helper()
	v := &models.Village{Name: "Oakridge", Morale: models.DefaultMorale, WarehouseCapacity: 1000, Level: 1}
	err := s.CreateVillage(context.Background(), v, func(tx Tx) error {
		return tx.SaveLedger(&models.ResourceLedger{
			Quantities: models.ResourceMap{models.ResourceWood: 40},
			Capacity:   1000,
		})
	})
	require.NoError(t, err)
	return v.ID
}

func TestMemoryStore_RollbackOnError(t *testing.T) {
	s := NewMemoryStore()
	id := newVillage(t, s)
	ctx := context.Background()

	boom := stderrors.New("boom")
	err := s.WithVillage(ctx, id, func(tx Tx) error {
		l, err := tx.Ledger()
		require.NoError(t, err)
		l.Quantities[models.ResourceWood] = 0
		require.NoError(t, tx.SaveLedger(l))
		require.NoError(t, tx.AppendEvent(&models.GameEvent{EventID: "e1", EntityType: models.EntityLedger, Transition: "removed"}))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	err = s.WithVillage(ctx, id, func(tx Tx) error {
		l, err := tx.Ledger()
		require.NoError(t, err)
		assert.Equal(t, int64(40), l.Quantities[models.ResourceWood])
		return nil
	})
	require.NoError(t, err)

	events, err := s.Events(ctx, id, 10)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestMemoryStore_UnknownVillage(t *testing.T) {
	s := NewMemoryStore()
	err := s.WithVillage(context.Background(), 42, func(tx Tx) error { return nil })
	assert.ErrorIs(t, err, errors.ErrNotFound)
}

func TestMemoryStore_EntitiesAreVillageScoped(t *testing.T) {
	s := NewMemoryStore()
	a := newVillage(t, s)
	b := newVillage(t, s)
	ctx := context.Background()

	var charID uint
	require.NoError(t, s.WithVillage(ctx, a, func(tx Tx) error {
		c := &models.Character{Name: "Ida", Class: models.ClassScout, Level: 1, MaxHP: 100, CurrentHP: 100}
		if err := tx.CreateCharacter(c); err != nil {
			return err
		}
		charID = c.ID
		return nil
	}))

	err := s.WithVillage(ctx, b, func(tx Tx) error {
		_, err := tx.Character(charID)
		return err
	})
	assert.ErrorIs(t, err, errors.ErrNotFound)
}

func TestMemoryStore_EquipmentFollowsCharacter(t *testing.T) {
	s := NewMemoryStore()
	a := newVillage(t, s)
	b := newVillage(t, s)
	ctx := context.Background()

	var charID, itemID uint
	require.NoError(t, s.WithVillage(ctx, a, func(tx Tx) error {
		c := &models.Character{Name: "Ida", Class: models.ClassScout, Level: 1, MaxHP: 100, CurrentHP: 100}
		if err := tx.CreateCharacter(c); err != nil {
			return err
		}
		e := &models.Equipment{CharacterID: c.ID, Name: "Simple Helmet", Slot: models.SlotHead,
			Rarity: models.RarityCommon, Level: 1, SpriteKey: "head_common_1"}
		if err := tx.CreateEquipment(e); err != nil {
			return err
		}
		charID, itemID = c.ID, e.ID
		return nil
	}))

	err := s.WithVillage(ctx, b, func(tx Tx) error {
		_, err := tx.EquipmentItem(itemID)
		return err
	})
	assert.ErrorIs(t, err, errors.ErrNotFound)

	err = s.WithVillage(ctx, b, func(tx Tx) error {
		return tx.CreateEquipment(&models.Equipment{CharacterID: charID, Name: "Stolen Ring",
			Slot: models.SlotJewelry1, Rarity: models.RarityRare, Level: 1, SpriteKey: "jewelry_1_rare_1"})
	})
	assert.ErrorIs(t, err, errors.ErrNotFound)

	require.NoError(t, s.WithVillage(ctx, a, func(tx Tx) error {
		if err := tx.DeleteCharacter(charID); err != nil {
			return err
		}
		items, err := tx.EquipmentItems()
		require.NoError(t, err)
		assert.Empty(t, items)
		return nil
	}))
}

func TestMemoryStore_DueMissions(t *testing.T) {
	s := NewMemoryStore()
	id := newVillage(t, s)
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute)
	future := now.Add(time.Hour)

	require.NoError(t, s.WithVillage(ctx, id, func(tx Tx) error {
		for _, m := range []*models.Mission{
			{Name: "due", Type: models.MissionHarvest, Status: models.MissionInProgress, Deadline: &past},
			{Name: "later", Type: models.MissionHarvest, Status: models.MissionInProgress, Deadline: &future},
			{Name: "done", Type: models.MissionHarvest, Status: models.MissionCompleted, Deadline: &past},
		} {
			if err := tx.CreateMission(m); err != nil {
				return err
			}
		}
		return nil
	}))

	refs, err := s.DueMissions(ctx, now)
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, id, refs[0].VillageID)
}

func TestMemoryStore_SerializesWriters(t *testing.T) {
	s := NewMemoryStore()
	id := newVillage(t, s)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.WithVillage(ctx, id, func(tx Tx) error {
				l, err := tx.Ledger()
				if err != nil {
					return err
				}
				l.Quantities[models.ResourceWood]++
				return tx.SaveLedger(l)
			})
		}()
	}
	wg.Wait()

	require.NoError(t, s.WithVillage(ctx, id, func(tx Tx) error {
		l, err := tx.Ledger()
		require.NoError(t, err)
		assert.Equal(t, int64(90), l.Quantities[models.ResourceWood])
		return nil
	}))
}
