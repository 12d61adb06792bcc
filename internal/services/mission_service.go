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

const (
	MinSuccessRate       = 0.10
	MaxSuccessRate       = 0.95
	MaxBaseSuccessRate   = 0.9
	PowerPerDifficulty   = 50
	LeaderBonus          = 0.05
	LowMoralePenalty     = 0.10
	FailureRewardPercent = 30
	InjuryChance         = 0.3
	MinInjuryFraction    = 0.3
	MaxInjuryFraction    = 0.5
)

// NewMission describes a mission before participants are attached.
type NewMission struct {
	Name            string
	Type            models.MissionType
	Difficulty      int
	DurationMinutes int
	Reward          models.MissionReward
}

type MissionResult struct {
	MissionID       uint
	Success         bool
	RewardsObtained models.ResourceMap
	Casualties      []uint
	XPGained        int64
	EquipmentFound  bool
	Equipment       *models.Equipment
}

type MissionService struct {
	*base
	resources     *ResourceService
	research      *ResearchService
	characters    *CharacterService
	villages      *VillageService
	equipment     *EquipmentService
	roller        utils.Roller
	moralePenalty bool
}

func (s *MissionService) Create(ctx context.Context, villageID uint, plan NewMission, characterIDs []uint) (*models.Mission, error) {
	name, err := validateMission(&plan, characterIDs)
	if err != nil {
		return nil, err
	}

	var created *models.Mission
	err = s.run(ctx, villageID, func(tx repositories.Tx, ev *eventLog) error {
		if _, err := loadParticipants(tx, characterIDs); err != nil {
			return err
		}
		m := &models.Mission{
			Name:            name,
			Type:            plan.Type,
			Status:          models.MissionPreparing,
			Difficulty:      plan.Difficulty,
			DurationMinutes: plan.DurationMinutes,
			Reward: models.MissionReward{
				Resources:       plan.Reward.Resources.Clone(),
				XP:              plan.Reward.XP,
				EquipmentChance: plan.Reward.EquipmentChance,
			},
		}
		for _, id := range characterIDs {
			m.Participants = append(m.Participants, models.MissionParticipant{CharacterID: id})
		}
		if err := tx.CreateMission(m); err != nil {
			return err
		}
		created = m
		return ev.emit(models.EntityMission, m.ID, events.MissionCreated)
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func validateMission(plan *NewMission, characterIDs []uint) (string, error) {
	name, err := security.CleanName(plan.Name)
	if err != nil {
		return "", errors.Validation(err.Error())
	}
	if _, err := plan.Type.Value(); err != nil {
		return "", errors.Validation(err.Error())
	}
	if plan.Difficulty < models.MinMissionDifficulty || plan.Difficulty > models.MaxMissionDifficulty {
		return "", errors.Validation(fmt.Sprintf("difficulty must be within %d..%d",
			models.MinMissionDifficulty, models.MaxMissionDifficulty))
	}
	if plan.DurationMinutes <= 0 {
		return "", errors.Validation("duration must be positive")
	}
	if err := validateAmounts(plan.Reward.Resources); err != nil {
		return "", err
	}
	if plan.Reward.XP < 0 || plan.Reward.XP > models.MaxXPAward {
		return "", errors.Validation(fmt.Sprintf("reward xp must be within 0..%d", models.MaxXPAward))
	}
	if plan.Reward.EquipmentChance < 0 || plan.Reward.EquipmentChance > 1 {
		return "", errors.Validation("equipment chance must be within 0..1")
	}

	if n := len(characterIDs); n < models.MinMissionParticipants || n > models.MaxMissionParticipants {
		return "", errors.Validation(fmt.Sprintf("a mission needs %d to %d participants, got %d",
			models.MinMissionParticipants, models.MaxMissionParticipants, n))
	}
	seen := make(map[uint]bool, len(characterIDs))
	for _, id := range characterIDs {
		if seen[id] {
			return "", errors.Validation(fmt.Sprintf("character %d listed twice", id))
		}
		seen[id] = true
	}
	return name, nil
}

// loadParticipants fetches the characters and checks each can leave the village.
func loadParticipants(tx repositories.Tx, ids []uint) ([]*models.Character, error) {
	out := make([]*models.Character, 0, len(ids))
	for _, id := range ids {
		c, err := tx.Character(id)
		if err != nil {
			return nil, err
		}
		if c.OnMission {
			return nil, errors.Precondition(errors.ReasonCharacterOnMission,
				fmt.Sprintf("%s is already on a mission", c.Name)).WithDetail("character_id", c.ID)
		}
		if c.CurrentHP <= 0 {
			return nil, errors.Precondition(errors.ReasonCharacterDown,
				fmt.Sprintf("%s is incapacitated", c.Name)).WithDetail("character_id", c.ID)
		}
		out = append(out, c)
	}
	return out, nil
}

func transitionError(m *models.Mission, to models.MissionStatus) error {
	return errors.Precondition(errors.ReasonInvalidTransition,
		fmt.Sprintf("mission %d cannot go from %s to %s", m.ID, m.Status, to)).
		WithDetail("from", m.Status.String()).
		WithDetail("to", to.String())
}

func (s *MissionService) Start(ctx context.Context, villageID, missionID uint) (*models.Mission, error) {
	var m *models.Mission
	err := s.run(ctx, villageID, func(tx repositories.Tx, ev *eventLog) error {
		var err error
		if m, err = tx.Mission(missionID); err != nil {
			return err
		}
		if !m.Status.CanTransition(models.MissionInProgress) {
			return transitionError(m, models.MissionInProgress)
		}
		participants, err := loadParticipants(tx, m.CharacterIDs())
		if err != nil {
			return err
		}
		for _, c := range participants {
			c.OnMission = true
			if err := tx.SaveCharacter(c); err != nil {
				return err
			}
		}

		now := s.clock.Now()
		deadline := now.Add(m.Duration())
		m.Status = models.MissionInProgress
		m.StartedAt = &now
		m.Deadline = &deadline
		if err := tx.SaveMission(m); err != nil {
			return err
		}
		return ev.emit(models.EntityMission, m.ID, events.MissionStarted)
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (s *MissionService) SuccessRate(ctx context.Context, villageID, missionID uint) (float64, error) {
	var rate float64
	err := s.run(ctx, villageID, func(tx repositories.Tx, ev *eventLog) error {
		var err error
		rate, err = s.successRateTx(tx, missionID)
		return err
	})
	return rate, err
}

func (s *MissionService) successRateTx(tx repositories.Tx, missionID uint) (float64, error) {
	m, err := tx.Mission(missionID)
	if err != nil {
		return 0, err
	}
	team, err := participantsOf(tx, m)
	if err != nil {
		return 0, err
	}
	bonuses, err := s.research.bonusesTx(tx)
	if err != nil {
		return 0, err
	}
	return s.rateFor(tx.Village(), m, team, bonuses), nil
}

func (s *MissionService) rateFor(v *models.Village, m *models.Mission, team []*models.Character, bonuses Bonuses) float64 {
	in := RateInput{Difficulty: m.Difficulty, ResearchBonus: bonuses.MissionSuccessBonus}
	for _, c := range team {
		in.AttributeTotals = append(in.AttributeTotals, c.Attributes.Total())
		if c.Class == models.ClassLeader {
			in.HasLeader = true
		}
	}
	in.LowMorale = s.moralePenalty && v.Morale < models.LowMoraleThreshold
	return SuccessRate(in)
}

// RateInput holds everything the success rate depends on.
type RateInput struct {
	AttributeTotals []int
	Difficulty      int
	HasLeader       bool
	LowMorale       bool
	ResearchBonus   float64
}

// SuccessRate is min(0.9, team_score/(difficulty*50)) adjusted for a leader,
// low morale and research, clamped to [0.10, 0.95].
func SuccessRate(in RateInput) float64 {
	rate := 0.0
	if n := len(in.AttributeTotals); n > 0 && in.Difficulty > 0 {
		sum := 0
		for _, t := range in.AttributeTotals {
			sum += t
		}
		teamScore := float64(sum) / float64(n)
		rate = teamScore / float64(in.Difficulty*PowerPerDifficulty)
		if rate > MaxBaseSuccessRate {
			rate = MaxBaseSuccessRate
		}
	}
	if in.HasLeader {
		rate += LeaderBonus
	}
	if in.LowMorale {
		rate -= LowMoralePenalty
	}
	rate += in.ResearchBonus
	if rate < MinSuccessRate {
		return MinSuccessRate
	}
	if rate > MaxSuccessRate {
		return MaxSuccessRate
	}
	return rate
}

func participantsOf(tx repositories.Tx, m *models.Mission) ([]*models.Character, error) {
	team := make([]*models.Character, 0, len(m.Participants))
	for _, id := range m.CharacterIDs() {
		c, err := tx.Character(id)
		if err != nil {
			if errors.Is(err, errors.ErrCodeNotFound) {
				continue
			}
			return nil, err
		}
		team = append(team, c)
	}
	return team, nil
}

// Complete resolves an in-progress mission with one success draw. Without
// force the deadline must have passed.
func (s *MissionService) Complete(ctx context.Context, villageID, missionID uint, force bool) (*MissionResult, error) {
	var result *MissionResult
	err := s.run(ctx, villageID, func(tx repositories.Tx, ev *eventLog) error {
		m, err := tx.Mission(missionID)
		if err != nil {
			return err
		}
		if m.Status != models.MissionInProgress {
			return transitionError(m, models.MissionCompleted)
		}
		now := s.clock.Now()
		if !force && m.Deadline != nil && now.Before(*m.Deadline) {
			return errors.NotYetDue(m.Deadline.Sub(now))
		}

		team, err := participantsOf(tx, m)
		if err != nil {
			return err
		}
		for _, c := range team {
			if !c.OnMission {
				return errors.Invariant(fmt.Sprintf("character %d of in-progress mission %d is not away", c.ID, m.ID)).
					WithDetail("character_id", c.ID)
			}
		}
		bonuses, err := s.research.bonusesTx(tx)
		if err != nil {
			return err
		}
		rate := s.rateFor(tx.Village(), m, team, bonuses)
		result = &MissionResult{MissionID: m.ID, Success: s.roller.Float64() < rate}

		if result.Success {
			result.RewardsObtained = m.Reward.Resources.Clone()
			result.XPGained = m.Reward.XP
			if m.Reward.EquipmentChance > 0 && s.roller.Float64() < m.Reward.EquipmentChance {
				if result.Equipment, err = s.equipment.dropTx(tx, ev, team, m.Difficulty); err != nil {
					return err
				}
				result.EquipmentFound = result.Equipment != nil
			}
		} else {
			result.RewardsObtained = refundOf(m.Reward.Resources, FailureRewardPercent)
			result.XPGained = models.Percent(m.Reward.XP, FailureRewardPercent)
		}
		if result.RewardsObtained == nil {
			result.RewardsObtained = models.ResourceMap{}
		}
		if _, err := s.resources.addTx(tx, result.RewardsObtained); err != nil {
			return err
		}

		for _, c := range team {
			c.OnMission = false
			if !result.Success && s.roller.Float64() < InjuryChance {
				fraction := utils.Uniform(s.roller, MinInjuryFraction, MaxInjuryFraction)
				c.CurrentHP = clampHP(c.CurrentHP-int(float64(c.MaxHP)*fraction), c.MaxHP)
				result.Casualties = append(result.Casualties, c.ID)
				if err := ev.emit(models.EntityCharacter, c.ID, events.CharacterInjured); err != nil {
					return err
				}
			}
			if err := s.characters.gainXPTx(tx, ev, c, result.XPGained); err != nil {
				return err
			}
		}
		if _, err := s.villages.addXPTx(tx, ev, result.XPGained); err != nil {
			return err
		}

		m.Status = models.MissionFailed
		transition := events.MissionFailed
		if result.Success {
			m.Status = models.MissionCompleted
			transition = events.MissionCompleted
		}
		m.CompletedAt = &now
		m.Outcome = models.MissionOutcome{
			Success:         result.Success,
			RewardsObtained: result.RewardsObtained.Clone(),
			XPGained:        result.XPGained,
			Casualties:      models.IDList(append([]uint{}, result.Casualties...)),
			EquipmentFound:  result.EquipmentFound,
		}
		if result.Equipment != nil {
			m.Outcome.EquipmentID = result.Equipment.ID
		}
		if err := tx.SaveMission(m); err != nil {
			return err
		}
		return ev.emit(models.EntityMission, m.ID, transition)
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Recall brings an in-progress team home with nothing gained or lost.
func (s *MissionService) Recall(ctx context.Context, villageID, missionID uint) (*models.Mission, error) {
	var m *models.Mission
	err := s.run(ctx, villageID, func(tx repositories.Tx, ev *eventLog) error {
		var err error
		if m, err = tx.Mission(missionID); err != nil {
			return err
		}
		if !m.Status.CanTransition(models.MissionRecalled) {
			return transitionError(m, models.MissionRecalled)
		}
		team, err := participantsOf(tx, m)
		if err != nil {
			return err
		}
		for _, c := range team {
			c.OnMission = false
			if err := tx.SaveCharacter(c); err != nil {
				return err
			}
		}
		now := s.clock.Now()
		m.Status = models.MissionRecalled
		m.CompletedAt = &now
		if err := tx.SaveMission(m); err != nil {
			return err
		}
		return ev.emit(models.EntityMission, m.ID, events.MissionRecalled)
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

// Delete removes a mission and its participant rows. In-progress missions
// must be recalled first.
func (s *MissionService) Delete(ctx context.Context, villageID, missionID uint) error {
	return s.run(ctx, villageID, func(tx repositories.Tx, ev *eventLog) error {
		m, err := tx.Mission(missionID)
		if err != nil {
			return err
		}
		if m.Status == models.MissionInProgress {
			return errors.Precondition(errors.ReasonInvalidTransition, "recall the mission before deleting it").
				WithDetail("from", m.Status.String())
		}
		if err := tx.DeleteMission(m.ID); err != nil {
			return err
		}
		return ev.emit(models.EntityMission, m.ID, events.MissionDeleted)
	})
}

func (s *MissionService) Get(ctx context.Context, villageID, missionID uint) (*models.Mission, error) {
	var m *models.Mission
	err := s.run(ctx, villageID, func(tx repositories.Tx, ev *eventLog) error {
		var err error
		m, err = tx.Mission(missionID)
		return err
	})
	return m, err
}

func (s *MissionService) List(ctx context.Context, villageID uint) ([]models.Mission, error) {
	var out []models.Mission
	err := s.run(ctx, villageID, func(tx repositories.Tx, ev *eventLog) error {
		var err error
		out, err = tx.Missions()
		return err
	})
	return out, err
}

// CompleteDue resolves every in-progress mission whose deadline has passed.
// Missions recalled in the meantime are skipped.
func (s *MissionService) CompleteDue(ctx context.Context) (PassStats, error) {
	var stats PassStats
	due, err := s.store.DueMissions(ctx, s.clock.Now())
	if err != nil {
		return stats, err
	}
	for _, ref := range due {
		if ctx.Err() != nil {
			return stats, ctx.Err()
		}
		result, err := s.Complete(ctx, ref.VillageID, ref.ID, false)
		switch {
		case err == nil:
			stats.Processed++
			logger.Info("Mission completed",
				"village_id", ref.VillageID,
				"mission_id", ref.ID,
				"success", result.Success,
				"casualties", len(result.Casualties),
			)
		case isStale(err):
			stats.Skipped++
		default:
			stats.Failed++
			logger.Error("Failed to complete mission", "village_id", ref.VillageID, "mission_id", ref.ID, "error", err)
		}
	}
	return stats, nil
}

var missionDurations = map[models.MissionType][2]int{
	models.MissionHarvest:     {30, 120},
	models.MissionRescue:      {60, 240},
	models.MissionExploration: {120, 480},
}

var missionLoot = map[models.MissionType][]models.ResourceKind{
	models.MissionHarvest:     {models.ResourceWater, models.ResourceWood, models.ResourceStone, models.ResourceFood},
	models.MissionRescue:      {models.ResourceHerb, models.ResourceFood, models.ResourceCloth},
	models.MissionExploration: {models.ResourceMetal, models.ResourceRareOre, models.ResourceAncientRelic, models.ResourceGem},
}

var missionNames = map[models.MissionType][]string{
	models.MissionHarvest:     {"Harvest near the village", "Resource gathering", "Supply run"},
	models.MissionRescue:      {"Rescue a lost group", "Relief mission", "Search for survivors"},
	models.MissionExploration: {"Explore the ruins", "Scout the territory", "Expedition into the unknown"},
}

// Generate proposes a random mission. A zero missionType picks one at random.
func (s *MissionService) Generate(missionType models.MissionType) (NewMission, error) {
	if missionType == 0 {
		types := models.MissionTypes()
		missionType = types[s.roller.IntN(len(types))]
	}
	durations, ok := missionDurations[missionType]
	if !ok {
		return NewMission{}, errors.Validation(fmt.Sprintf("unknown mission type %d", missionType))
	}

	difficulty := utils.IntBetween(s.roller, models.MinMissionDifficulty, models.MaxMissionDifficulty)
	duration := utils.IntBetween(s.roller, durations[0], durations[1])

	pool := append([]models.ResourceKind(nil), missionLoot[missionType]...)
	picks := utils.IntBetween(s.roller, 1, 3)
	if picks > len(pool) {
		picks = len(pool)
	}
	resources := models.ResourceMap{}
	for i := 0; i < picks; i++ {
		j := i + s.roller.IntN(len(pool)-i)
		pool[i], pool[j] = pool[j], pool[i]
		resources[pool[i]] = int64(utils.IntBetween(s.roller, 10*difficulty, 30*difficulty))
	}

	chance := 0.05 * float64(difficulty)
	if chance > 0.3 {
		chance = 0.3
	}
	names := missionNames[missionType]
	return NewMission{
		Name:            names[s.roller.IntN(len(names))],
		Type:            missionType,
		Difficulty:      difficulty,
		DurationMinutes: duration,
		Reward: models.MissionReward{
			Resources:       resources,
			XP:              int64(50 * difficulty),
			EquipmentChance: chance,
		},
	}, nil
}
