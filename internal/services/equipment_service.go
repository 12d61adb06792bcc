package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/mroshb/colony_engine/internal/events"
	"github.com/mroshb/colony_engine/internal/models"
	"github.com/mroshb/colony_engine/internal/repositories"
	"github.com/mroshb/colony_engine/pkg/errors"
	"github.com/mroshb/colony_engine/pkg/utils"
)

const (
	statArmor  = "armor"
	statDamage = "damage"
)

var equipmentStats = []string{"strength", "dexterity", "endurance", "intelligence", "speed", "luck", statArmor, statDamage}

var slotPrimaryStats = map[models.EquipmentSlot][]string{
	models.SlotHead:      {"endurance", "intelligence", statArmor},
	models.SlotShoulders: {"endurance", statArmor},
	models.SlotTorso:     {"endurance", statArmor},
	models.SlotLegs:      {"endurance", "speed", statArmor},
	models.SlotFeet:      {"speed", "dexterity"},
	models.SlotHands:     {"strength", "dexterity", statDamage},
	models.SlotJewelry1:  {"luck", "intelligence"},
	models.SlotJewelry2:  {"luck", "endurance"},
	models.SlotJewelry3:  {"luck", "speed"},
	models.SlotWeapon1:   {"strength", statDamage},
	models.SlotWeapon2:   {statArmor, "endurance"},
}

var rarityPrefixes = map[models.EquipmentRarity][]string{
	models.RarityCommon:    {"Simple", "Basic", "Plain", "Standard"},
	models.RarityUncommon:  {"Reinforced", "Improved", "Sturdy", "Robust"},
	models.RarityRare:      {"Superior", "Exceptional", "Remarkable", "Distinguished"},
	models.RarityEpic:      {"Epic", "Heroic", "Fabled", "Glorious"},
	models.RarityLegendary: {"Mythical", "Ancestral", "Divine", "Eternal"},
	models.RarityMythic:    {"Celestial", "Transcendent", "Cosmic", "Ultimate"},
}

var slotItemNames = map[models.EquipmentSlot][]string{
	models.SlotHead:      {"Helmet", "Helm", "Crown", "Headband"},
	models.SlotShoulders: {"Pauldrons", "Shoulder Guards", "Mantle"},
	models.SlotTorso:     {"Armor", "Breastplate", "Tunic", "Hauberk"},
	models.SlotLegs:      {"Greaves", "Trousers", "Cuisses"},
	models.SlotFeet:      {"Boots", "Shoes", "Sandals"},
	models.SlotHands:     {"Gloves", "Gauntlets", "Mittens"},
	models.SlotJewelry1:  {"Ring", "Band", "Amulet"},
	models.SlotJewelry2:  {"Necklace", "Pendant", "Talisman"},
	models.SlotJewelry3:  {"Bracelet", "Medallion", "Charm"},
	models.SlotWeapon1:   {"Sword", "Axe", "Spear", "Hammer"},
	models.SlotWeapon2:   {"Shield", "Dagger", "Short Sword"},
}

var legendarySuffixes = []string{"of the Titan", "of the Phoenix", "of the Shadow", "of the Storm", "of the Dragon"}

var rarityDescriptions = map[models.EquipmentRarity]string{
	models.RarityCommon:    "Simple but it does the job.",
	models.RarityUncommon:  "Decent quality, reinforced to last.",
	models.RarityRare:      "Exceptional gear, forged with care.",
	models.RarityEpic:      "Epic gear humming with remarkable power.",
	models.RarityLegendary: "Legendary gear worthy of the greatest heroes.",
	models.RarityMythic:    "Mythic gear woven from the threads of fate.",
}

// rarityOdds are cumulative drop odds.
var rarityOdds = []struct {
	rarity models.EquipmentRarity
	upTo   float64
}{
	{models.RarityCommon, 0.50},
	{models.RarityUncommon, 0.75},
	{models.RarityRare, 0.88},
	{models.RarityEpic, 0.95},
	{models.RarityLegendary, 0.99},
	{models.RarityMythic, 1},
}

// RollRarity draws a rarity, common items being the most frequent.
func RollRarity(r utils.Roller) models.EquipmentRarity {
	draw := r.Float64()
	for _, o := range rarityOdds {
		if draw < o.upTo {
			return o.rarity
		}
	}
	return models.RarityMythic
}

// StatBudget is floor(level * 2 * rarity multiplier).
func StatBudget(rarity models.EquipmentRarity, level int) int {
	return level * 2 * rarity.MultiplierPercent() / 100
}

// GenerateEquipment rolls the name, stats and sprite of a new item. Each
// primary stat of the slot takes 40-70% of the remaining budget, and the rest
// is spread one point at a time over random stats.
func GenerateEquipment(r utils.Roller, slot models.EquipmentSlot, rarity models.EquipmentRarity, level int) models.Equipment {
	e := models.Equipment{
		Slot:        slot,
		Rarity:      rarity,
		Level:       level,
		Name:        equipmentName(r, slot, rarity),
		Description: fmt.Sprintf("%s Recommended level: %d.", rarityDescriptions[rarity], level),
	}

	remaining := StatBudget(rarity, level)
	for _, stat := range slotPrimaryStats[slot] {
		if remaining <= 0 {
			break
		}
		allocation := int(float64(remaining) * utils.Uniform(r, 0.4, 0.7))
		addStat(&e, stat, max(1, allocation))
		remaining -= allocation
	}
	for ; remaining > 0; remaining-- {
		addStat(&e, equipmentStats[r.IntN(len(equipmentStats))], 1)
	}

	e.SpriteKey = fmt.Sprintf("%s_%s_%d", slot, rarity, utils.IntBetween(r, 1, 3))
	return e
}

func equipmentName(r utils.Roller, slot models.EquipmentSlot, rarity models.EquipmentRarity) string {
	prefixes := rarityPrefixes[rarity]
	names := slotItemNames[slot]
	parts := []string{prefixes[r.IntN(len(prefixes))], names[r.IntN(len(names))]}
	if rarity >= models.RarityEpic && r.Float64() < 0.5 {
		parts = append(parts, legendarySuffixes[r.IntN(len(legendarySuffixes))])
	}
	return strings.Join(parts, " ")
}

func addStat(e *models.Equipment, stat string, n int) {
	switch stat {
	case "strength":
		e.Bonus.Strength += n
	case "dexterity":
		e.Bonus.Dexterity += n
	case "endurance":
		e.Bonus.Endurance += n
	case "intelligence":
		e.Bonus.Intelligence += n
	case "speed":
		e.Bonus.Speed += n
	case "luck":
		e.Bonus.Luck += n
	case statArmor:
		e.Armor += n
	case statDamage:
		e.Damage += n
	}
}

// Loadout is a character's attributes with every equipped bonus applied.
type Loadout struct {
	Attributes models.Attributes
	Armor      int
	Damage     int
	Equipped   map[models.EquipmentSlot]uint
}

type EquipmentService struct {
	*base
	roller utils.Roller
}

func validateItem(slot models.EquipmentSlot, rarity models.EquipmentRarity, level int) error {
	if !slot.Valid() {
		return errors.Validation(fmt.Sprintf("invalid equipment slot %d", slot))
	}
	if !rarity.Valid() {
		return errors.Validation(fmt.Sprintf("invalid equipment rarity %d", rarity))
	}
	if level < models.MinEquipmentLevel || level > models.MaxEquipmentLevel {
		return errors.Validation(fmt.Sprintf("equipment level must be within %d..%d",
			models.MinEquipmentLevel, models.MaxEquipmentLevel))
	}
	return nil
}

// Grant generates an item of the given slot and rarity for a character.
func (s *EquipmentService) Grant(ctx context.Context, villageID, characterID uint, slot models.EquipmentSlot, rarity models.EquipmentRarity, level int) (*models.Equipment, error) {
	if err := validateItem(slot, rarity, level); err != nil {
		return nil, err
	}
	var item *models.Equipment
	err := s.run(ctx, villageID, func(tx repositories.Tx, ev *eventLog) error {
		c, err := tx.Character(characterID)
		if err != nil {
			return err
		}
		item, err = s.createTx(tx, ev, c, slot, rarity, level, events.EquipmentGranted)
		return err
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

// dropTx gives a random team member a random item scaled to level.
func (s *EquipmentService) dropTx(tx repositories.Tx, ev *eventLog, team []*models.Character, level int) (*models.Equipment, error) {
	if len(team) == 0 {
		return nil, nil
	}
	owner := team[s.roller.IntN(len(team))]
	slots := models.EquipmentSlots()
	slot := slots[s.roller.IntN(len(slots))]
	rarity := RollRarity(s.roller)
	level = min(max(level, models.MinEquipmentLevel), models.MaxEquipmentLevel)
	return s.createTx(tx, ev, owner, slot, rarity, level, events.EquipmentFound)
}

func (s *EquipmentService) createTx(tx repositories.Tx, ev *eventLog, owner *models.Character, slot models.EquipmentSlot, rarity models.EquipmentRarity, level int, transition string) (*models.Equipment, error) {
	item := GenerateEquipment(s.roller, slot, rarity, level)
	item.CharacterID = owner.ID
	item.ObtainedAt = s.clock.Now()
	if err := tx.CreateEquipment(&item); err != nil {
		return nil, err
	}
	if err := ev.emit(models.EntityEquipment, item.ID, transition); err != nil {
		return nil, err
	}
	return &item, nil
}

// List returns every item in the village.
func (s *EquipmentService) List(ctx context.Context, villageID uint) ([]models.Equipment, error) {
	var out []models.Equipment
	err := s.run(ctx, villageID, func(tx repositories.Tx, ev *eventLog) error {
		var err error
		out, err = tx.EquipmentItems()
		return err
	})
	return out, err
}

// ListFor returns the items carried by one character.
func (s *EquipmentService) ListFor(ctx context.Context, villageID, characterID uint) ([]models.Equipment, error) {
	var out []models.Equipment
	err := s.run(ctx, villageID, func(tx repositories.Tx, ev *eventLog) error {
		if _, err := tx.Character(characterID); err != nil {
			return err
		}
		var err error
		out, err = itemsOf(tx, characterID)
		return err
	})
	return out, err
}

func itemsOf(tx repositories.Tx, characterID uint) ([]models.Equipment, error) {
	all, err := tx.EquipmentItems()
	if err != nil {
		return nil, err
	}
	out := make([]models.Equipment, 0, len(all))
	for _, e := range all {
		if e.CharacterID == characterID {
			out = append(out, e)
		}
	}
	return out, nil
}

// Equip puts an item the character carries into its slot, unequipping
// whatever was there.
func (s *EquipmentService) Equip(ctx context.Context, villageID, equipmentID, characterID uint) (*models.Equipment, error) {
	var item *models.Equipment
	err := s.run(ctx, villageID, func(tx repositories.Tx, ev *eventLog) error {
		var err error
		if item, err = ownedItem(tx, equipmentID, characterID); err != nil {
			return err
		}
		if item.Equipped {
			return nil
		}
		carried, err := itemsOf(tx, characterID)
		if err != nil {
			return err
		}
		for i := range carried {
			other := &carried[i]
			if other.ID == item.ID || other.Slot != item.Slot || !other.Equipped {
				continue
			}
			other.Equipped = false
			if err := tx.SaveEquipment(other); err != nil {
				return err
			}
			if err := ev.emit(models.EntityEquipment, other.ID, events.EquipmentUnequipped); err != nil {
				return err
			}
		}
		item.Equipped = true
		if err := tx.SaveEquipment(item); err != nil {
			return err
		}
		return ev.emit(models.EntityEquipment, item.ID, events.EquipmentEquipped)
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

func ownedItem(tx repositories.Tx, equipmentID, characterID uint) (*models.Equipment, error) {
	if _, err := tx.Character(characterID); err != nil {
		return nil, err
	}
	item, err := tx.EquipmentItem(equipmentID)
	if err != nil {
		return nil, err
	}
	if item.CharacterID != characterID {
		return nil, errors.Precondition(errors.ReasonNotOwner,
			fmt.Sprintf("equipment %d does not belong to character %d", equipmentID, characterID)).
			WithDetail("owner_id", item.CharacterID)
	}
	return item, nil
}

// Unequip empties one slot of a character.
func (s *EquipmentService) Unequip(ctx context.Context, villageID, characterID uint, slot models.EquipmentSlot) (*models.Equipment, error) {
	if !slot.Valid() {
		return nil, errors.Validation(fmt.Sprintf("invalid equipment slot %d", slot))
	}
	var item *models.Equipment
	err := s.run(ctx, villageID, func(tx repositories.Tx, ev *eventLog) error {
		if _, err := tx.Character(characterID); err != nil {
			return err
		}
		carried, err := itemsOf(tx, characterID)
		if err != nil {
			return err
		}
		for i := range carried {
			if carried[i].Slot == slot && carried[i].Equipped {
				item = &carried[i]
				break
			}
		}
		if item == nil {
			return errors.Precondition(errors.ReasonSlotEmpty, fmt.Sprintf("nothing equipped in %s", slot))
		}
		item.Equipped = false
		if err := tx.SaveEquipment(item); err != nil {
			return err
		}
		return ev.emit(models.EntityEquipment, item.ID, events.EquipmentUnequipped)
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

// Transfer hands an item to another character of the same village. The item
// arrives unequipped.
func (s *EquipmentService) Transfer(ctx context.Context, villageID, equipmentID, fromID, toID uint) (*models.Equipment, error) {
	if fromID == toID {
		return nil, errors.Validation("cannot transfer equipment to its owner")
	}
	var item *models.Equipment
	err := s.run(ctx, villageID, func(tx repositories.Tx, ev *eventLog) error {
		var err error
		if item, err = ownedItem(tx, equipmentID, fromID); err != nil {
			return err
		}
		if _, err := tx.Character(toID); err != nil {
			return err
		}
		item.CharacterID = toID
		item.Equipped = false
		if err := tx.SaveEquipment(item); err != nil {
			return err
		}
		return ev.emit(models.EntityEquipment, item.ID, events.EquipmentTransferred)
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

// Discard destroys an item.
func (s *EquipmentService) Discard(ctx context.Context, villageID, equipmentID uint) error {
	return s.run(ctx, villageID, func(tx repositories.Tx, ev *eventLog) error {
		item, err := tx.EquipmentItem(equipmentID)
		if err != nil {
			return err
		}
		if err := tx.DeleteEquipment(item.ID); err != nil {
			return err
		}
		return ev.emit(models.EntityEquipment, item.ID, events.EquipmentDiscarded)
	})
}

// TotalStats adds the bonuses of every equipped item to the character's
// own attributes.
func (s *EquipmentService) TotalStats(ctx context.Context, villageID, characterID uint) (*Loadout, error) {
	var out *Loadout
	err := s.run(ctx, villageID, func(tx repositories.Tx, ev *eventLog) error {
		c, err := tx.Character(characterID)
		if err != nil {
			return err
		}
		carried, err := itemsOf(tx, characterID)
		if err != nil {
			return err
		}
		out = &Loadout{Attributes: c.Attributes, Equipped: map[models.EquipmentSlot]uint{}}
		for _, e := range carried {
			if !e.Equipped {
				continue
			}
			out.Attributes = out.Attributes.Plus(e.Bonus)
			out.Armor += e.Armor
			out.Damage += e.Damage
			out.Equipped[e.Slot] = e.ID
		}
		return nil
	})
	return out, err
}
