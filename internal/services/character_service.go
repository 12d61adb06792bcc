package services

import (
	"context"
	"fmt"

	"github.com/mroshb/colony_engine/internal/events"
	"github.com/mroshb/colony_engine/internal/models"
	"github.com/mroshb/colony_engine/internal/repositories"
	"github.com/mroshb/colony_engine/internal/security"
	"github.com/mroshb/colony_engine/pkg/errors"
	"github.com/mroshb/colony_engine/pkg/logger"
	"github.com/mroshb/colony_engine/pkg/utils"
)

// MaxRolledStat bounds the random bonus a villager gets per attribute.
const MaxRolledStat = 5

// NewCharacter describes a character to create. Allocation is only honored
// for the player character and is paid from its free points.
type NewCharacter struct {
	Name       string
	Class      models.CharacterClass
	Player     bool
	Allocation models.Attributes
}

type CharacterService struct {
	*base
	roller utils.Roller
}

func (s *CharacterService) Create(ctx context.Context, villageID uint, in NewCharacter) (*models.Character, error) {
	var created *models.Character
	err := s.run(ctx, villageID, func(tx repositories.Tx, ev *eventLog) error {
		var err error
		created, err = s.createTx(tx, ev, in)
		return err
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (s *CharacterService) createTx(tx repositories.Tx, ev *eventLog, in NewCharacter) (*models.Character, error) {
	name, err := security.CleanName(in.Name)
	if err != nil {
		return nil, errors.Validation(err.Error())
	}
	classStats, ok := models.ClassStats[in.Class]
	if !ok {
		return nil, errors.Validation(fmt.Sprintf("invalid character class %d", in.Class))
	}

	c := &models.Character{Name: name, Class: in.Class, Level: 1, IsPlayer: in.Player}
	if in.Player {
		if in.Allocation.AnyNegative() {
			return nil, errors.Validation("stat allocation must not be negative")
		}
		spent := in.Allocation.Total()
		if spent > models.FreeStatPointsOnCreation {
			return nil, errors.Precondition(errors.ReasonNotEnoughStatPoints,
				fmt.Sprintf("allocated %d points, %d available", spent, models.FreeStatPointsOnCreation))
		}
		existing, err := tx.Characters()
		if err != nil {
			return nil, err
		}
		for _, other := range existing {
			if other.IsPlayer {
				return nil, errors.Precondition(errors.ReasonPlayerCharacter, "village already has a player character")
			}
		}
		c.Attributes = classStats.Plus(in.Allocation)
		c.FreeStatPoints = models.FreeStatPointsOnCreation - spent
	} else {
		c.Attributes = classStats.Plus(models.Attributes{
			Strength:     s.roller.IntN(MaxRolledStat + 1),
			Dexterity:    s.roller.IntN(MaxRolledStat + 1),
			Endurance:    s.roller.IntN(MaxRolledStat + 1),
			Intelligence: s.roller.IntN(MaxRolledStat + 1),
			Speed:        s.roller.IntN(MaxRolledStat + 1),
			Luck:         s.roller.IntN(MaxRolledStat + 1),
		})
	}
	c.MaxHP = models.MaxHPFor(c.Endurance)
	c.CurrentHP = c.MaxHP

	if err := tx.CreateCharacter(c); err != nil {
		return nil, err
	}
	if err := ev.emit(models.EntityCharacter, c.ID, events.CharacterCreated); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *CharacterService) Get(ctx context.Context, villageID, characterID uint) (*models.Character, error) {
	var c *models.Character
	err := s.run(ctx, villageID, func(tx repositories.Tx, ev *eventLog) error {
		var err error
		c, err = tx.Character(characterID)
		return err
	})
	return c, err
}

func (s *CharacterService) List(ctx context.Context, villageID uint) ([]models.Character, error) {
	var out []models.Character
	err := s.run(ctx, villageID, func(tx repositories.Tx, ev *eventLog) error {
		var err error
		out, err = tx.Characters()
		return err
	})
	return out, err
}

// GainXP adds experience and applies every level-up it pays for.
func (s *CharacterService) GainXP(ctx context.Context, villageID, characterID uint, amount int64) (*models.Character, error) {
	if amount < 0 || amount > models.MaxXPAward {
		return nil, errors.Validation(fmt.Sprintf("xp amount must be within 0..%d", models.MaxXPAward))
	}
	var c *models.Character
	err := s.run(ctx, villageID, func(tx repositories.Tx, ev *eventLog) error {
		var err error
		if c, err = tx.Character(characterID); err != nil {
			return err
		}
		return s.gainXPTx(tx, ev, c, amount)
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (s *CharacterService) gainXPTx(tx repositories.Tx, ev *eventLog, c *models.Character, amount int64) error {
	if levels := applyXP(c, amount); levels > 0 {
		if err := ev.emit(models.EntityCharacter, c.ID, events.CharacterLevelUp); err != nil {
			return err
		}
	}
	return tx.SaveCharacter(c)
}

// applyXP levels up while xp reaches 100*(level+1)^2. Only the player earns
// a free point per level. HP rises by any max HP gain and never drops.
func applyXP(c *models.Character, amount int64) int {
	c.XP = models.AddAmounts(c.XP, amount)
	levels := 0
	for c.XP >= models.XPRequired(c.Level+1) {
		c.Level++
		levels++
		if c.IsPlayer {
			c.FreeStatPoints++
		}
		refreshMaxHP(c)
	}
	return levels
}

func refreshMaxHP(c *models.Character) {
	next := models.MaxHPFor(c.Endurance)
	if delta := next - c.MaxHP; delta > 0 {
		c.CurrentHP += delta
	}
	c.MaxHP = next
	if c.CurrentHP > c.MaxHP {
		c.CurrentHP = c.MaxHP
	}
}

// AllocateStats spends the player's free points.
func (s *CharacterService) AllocateStats(ctx context.Context, villageID, characterID uint, add models.Attributes) (*models.Character, error) {
	if add.AnyNegative() {
		return nil, errors.Validation("stat allocation must not be negative")
	}
	var c *models.Character
	err := s.run(ctx, villageID, func(tx repositories.Tx, ev *eventLog) error {
		var err error
		if c, err = tx.Character(characterID); err != nil {
			return err
		}
		if !c.IsPlayer {
			return errors.Precondition(errors.ReasonPlayerCharacter, "only the player character can allocate stats")
		}
		spent := add.Total()
		if spent > c.FreeStatPoints {
			return errors.Precondition(errors.ReasonNotEnoughStatPoints,
				fmt.Sprintf("allocated %d points, %d available", spent, c.FreeStatPoints))
		}
		c.Attributes = c.Attributes.Plus(add)
		c.FreeStatPoints -= spent
		refreshMaxHP(c)
		if err := tx.SaveCharacter(c); err != nil {
			return err
		}
		return ev.emit(models.EntityCharacter, c.ID, events.CharacterAllocated)
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (s *CharacterService) Heal(ctx context.Context, villageID, characterID uint, amount int) (*models.Character, error) {
	if amount < 0 {
		return nil, errors.Validation("heal amount must not be negative")
	}
	return s.adjustHP(ctx, villageID, characterID, amount)
}

func (s *CharacterService) Damage(ctx context.Context, villageID, characterID uint, amount int) (*models.Character, error) {
	if amount < 0 {
		return nil, errors.Validation("damage amount must not be negative")
	}
	return s.adjustHP(ctx, villageID, characterID, -amount)
}

func (s *CharacterService) adjustHP(ctx context.Context, villageID, characterID uint, delta int) (*models.Character, error) {
	var c *models.Character
	err := s.run(ctx, villageID, func(tx repositories.Tx, ev *eventLog) error {
		var err error
		if c, err = tx.Character(characterID); err != nil {
			return err
		}
		c.CurrentHP = clampHP(c.CurrentHP+delta, c.MaxHP)
		if err := tx.SaveCharacter(c); err != nil {
			return err
		}
		if delta < 0 {
			return ev.emit(models.EntityCharacter, c.ID, events.CharacterInjured)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

func clampHP(hp, maxHP int) int {
	if hp < 0 {
		return 0
	}
	if hp > maxHP {
		return maxHP
	}
	return hp
}

// Regenerate applies one regeneration tick. Returns the HP healed, which is
// zero for characters that are healthy, down or away on a mission.
func (s *CharacterService) Regenerate(ctx context.Context, villageID, characterID uint) (int, error) {
	var healed int
	err := s.run(ctx, villageID, func(tx repositories.Tx, ev *eventLog) error {
		c, err := tx.Character(characterID)
		if err != nil {
			return err
		}
		if healed = regenerate(c); healed == 0 {
			return nil
		}
		return tx.SaveCharacter(c)
	})
	return healed, err
}

// regenerate heals max(1, floor(max_hp/100)) for characters with
// 0 < hp < max_hp that are not on a mission.
func regenerate(c *models.Character) int {
	if c.OnMission || c.CurrentHP <= 0 || c.CurrentHP >= c.MaxHP {
		return 0
	}
	amount := c.MaxHP / 100
	if amount < 1 {
		amount = 1
	}
	before := c.CurrentHP
	c.CurrentHP = clampHP(c.CurrentHP+amount, c.MaxHP)
	return c.CurrentHP - before
}

// RegeneratePass runs one regeneration tick for every eligible character.
func (s *CharacterService) RegeneratePass(ctx context.Context) (PassStats, error) {
	var stats PassStats
	ids, err := s.store.RegenVillages(ctx)
	if err != nil {
		return stats, err
	}
	for _, id := range ids {
		if ctx.Err() != nil {
			return stats, ctx.Err()
		}
		healed := 0
		err := s.run(ctx, id, func(tx repositories.Tx, ev *eventLog) error {
			roster, err := tx.Characters()
			if err != nil {
				return err
			}
			for i := range roster {
				if regenerate(&roster[i]) == 0 {
					continue
				}
				if err := tx.SaveCharacter(&roster[i]); err != nil {
					return err
				}
				healed++
			}
			return nil
		})
		if err != nil {
			stats.Failed++
			logger.Error("Failed to regenerate characters", "village_id", id, "error", err)
			continue
		}
		stats.Processed += healed
	}
	return stats, nil
}

// Delete removes a villager. The player and characters on a mission stay.
func (s *CharacterService) Delete(ctx context.Context, villageID, characterID uint) error {
	return s.run(ctx, villageID, func(tx repositories.Tx, ev *eventLog) error {
		c, err := tx.Character(characterID)
		if err != nil {
			return err
		}
		if c.IsPlayer {
			return errors.Precondition(errors.ReasonPlayerCharacter, "the player character cannot be deleted")
		}
		if c.OnMission {
			return errors.Precondition(errors.ReasonCharacterOnMission, "character is on a mission")
		}
		if err := tx.DeleteCharacter(c.ID); err != nil {
			return err
		}
		return ev.emit(models.EntityCharacter, c.ID, events.CharacterDeleted)
	})
}

// PowerScore is the sum of the six attributes.
func PowerScore(c *models.Character) int {
	return c.Attributes.Total()
}
