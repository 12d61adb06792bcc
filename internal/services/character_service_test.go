package services

import (
	"testing"

	"github.com/mroshb/colony_engine/internal/models"
	"github.com/mroshb/colony_engine/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCharacter_CreateVillager(t *testing.T) {
	f := newFixture(t)
	f.roller.Ints = []int{1, 2, 3, 4, 5, 0}

	c, err := f.engine.Characters.Create(f.ctx, f.id(), NewCharacter{Name: " Bram ", Class: models.ClassWarrior})
	require.NoError(t, err)

	assert.Equal(t, "Bram", c.Name)
	assert.False(t, c.IsPlayer)
	assert.Equal(t, models.Attributes{Strength: 4, Dexterity: 2, Endurance: 5, Intelligence: 4, Speed: 6, Luck: 0}, c.Attributes)
	assert.Equal(t, 150, c.MaxHP)
	assert.Equal(t, 150, c.CurrentHP)
	assert.Equal(t, 0, c.FreeStatPoints)
	assert.Equal(t, 1, c.Level)
}

func TestCharacter_CreatePlayer(t *testing.T) {
	f := newFixture(t)

	c, err := f.engine.Characters.Create(f.ctx, f.id(), NewCharacter{
		Name: "Ada", Class: models.ClassLeader, Player: true,
		Allocation: models.Attributes{Endurance: 4, Luck: 2},
	})
	require.NoError(t, err)
	assert.True(t, c.IsPlayer)
	assert.Equal(t, 6, c.Endurance)
	assert.Equal(t, 4, c.Luck)
	assert.Equal(t, 160, c.MaxHP)
	assert.Equal(t, 4, c.FreeStatPoints)

	_, err = f.engine.Characters.Create(f.ctx, f.id(), NewCharacter{Name: "Eve", Class: models.ClassScout, Player: true})
	assert.ErrorIs(t, err, errors.ErrPreconditionFailed.WithReason(errors.ReasonPlayerCharacter))
}

func TestCharacter_CreateRejects(t *testing.T) {
	tests := []struct {
		name string
		in   NewCharacter
		want error
	}{
		{name: "Empty name", in: NewCharacter{Name: "<b></b>", Class: models.ClassScout}, want: errors.ErrValidation},
		{name: "Unknown class", in: NewCharacter{Name: "Zed"}, want: errors.ErrValidation},
		{
			name: "Too many points",
			in:   NewCharacter{Name: "Zed", Class: models.ClassScout, Player: true, Allocation: models.Attributes{Strength: 11}},
			want: errors.ErrPreconditionFailed.WithReason(errors.ReasonNotEnoughStatPoints),
		},
		{
			name: "Negative points",
			in:   NewCharacter{Name: "Zed", Class: models.ClassScout, Player: true, Allocation: models.Attributes{Strength: -1}},
			want: errors.ErrValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			_, err := f.engine.Characters.Create(f.ctx, f.id(), tt.in)
			assert.ErrorIs(t, err, tt.want)

			list, err := f.engine.Characters.List(f.ctx, f.id())
			require.NoError(t, err)
			assert.Empty(t, list)
		})
	}
}

func TestCharacter_GainXP(t *testing.T) {
	tests := []struct {
		name      string
		player    bool
		amounts   []int64
		wantLevel int
		wantFree  int
	}{
		{name: "Just short", player: true, amounts: []int64{399}, wantLevel: 1, wantFree: 0},
		{name: "Exactly level 2", player: true, amounts: []int64{399, 1}, wantLevel: 2, wantFree: 1},
		{name: "Several levels at once", player: true, amounts: []int64{1600}, wantLevel: 4, wantFree: 3},
		{name: "Villagers get no points", player: false, amounts: []int64{1600}, wantLevel: 4, wantFree: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			c := f.addCharacter("Kit", models.ClassScout, models.Attributes{Endurance: 2})
			if tt.player {
				f.updateCharacter(c.ID, func(c *models.Character) { c.IsPlayer = true })
			}
			for _, amount := range tt.amounts {
				var err error
				c, err = f.engine.Characters.GainXP(f.ctx, f.id(), c.ID, amount)
				require.NoError(t, err)
			}
			assert.Equal(t, tt.wantLevel, c.Level)
			assert.Equal(t, tt.wantFree, c.FreeStatPoints)
			assert.Equal(t, 120, c.MaxHP)
		})
	}
}

func TestCharacter_GainXPRejectsNegative(t *testing.T) {
	f := newFixture(t)
	c := f.addCharacter("Kit", models.ClassScout, models.Attributes{})
	_, err := f.engine.Characters.GainXP(f.ctx, f.id(), c.ID, -5)
	assert.ErrorIs(t, err, errors.ErrValidation)
}

func TestCharacter_HealDamageClamp(t *testing.T) {
	f := newFixture(t)
	c := f.addCharacter("Kit", models.ClassScout, models.Attributes{})

	c, err := f.engine.Characters.Damage(f.ctx, f.id(), c.ID, 30)
	require.NoError(t, err)
	assert.Equal(t, 70, c.CurrentHP)

	c, err = f.engine.Characters.Heal(f.ctx, f.id(), c.ID, 500)
	require.NoError(t, err)
	assert.Equal(t, 100, c.CurrentHP)

	c, err = f.engine.Characters.Damage(f.ctx, f.id(), c.ID, 500)
	require.NoError(t, err)
	assert.Equal(t, 0, c.CurrentHP)

	_, err = f.engine.Characters.Heal(f.ctx, f.id(), c.ID, -1)
	assert.ErrorIs(t, err, errors.ErrValidation)
}

func TestCharacter_Regenerate(t *testing.T) {
	tests := []struct {
		name      string
		endurance int
		hp        int
		onMission bool
		want      int
	}{
		{name: "Small max heals at least one", endurance: 0, hp: 50, want: 1},
		{name: "One percent of max", endurance: 15, hp: 100, want: 2},
		{name: "Never above max", endurance: 15, hp: 249, want: 1},
		{name: "Full health", endurance: 0, hp: 100, want: 0},
		{name: "Down stays down", endurance: 0, hp: 0, want: 0},
		{name: "Away on a mission", endurance: 0, hp: 50, onMission: true, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			c := f.addCharacter("Kit", models.ClassScout, models.Attributes{Endurance: tt.endurance})
			f.updateCharacter(c.ID, func(c *models.Character) {
				c.CurrentHP = tt.hp
				c.OnMission = tt.onMission
			})

			healed, err := f.engine.Characters.Regenerate(f.ctx, f.id(), c.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.want, healed)
			assert.Equal(t, tt.hp+tt.want, f.character(c.ID).CurrentHP)
		})
	}
}

func TestCharacter_RegeneratePass(t *testing.T) {
	f := newFixture(t)
	hurt := f.addCharacter("Hurt", models.ClassScout, models.Attributes{})
	away := f.addCharacter("Away", models.ClassScout, models.Attributes{})
	fine := f.addCharacter("Fine", models.ClassScout, models.Attributes{})
	f.updateCharacter(hurt.ID, func(c *models.Character) { c.CurrentHP = 40 })
	f.updateCharacter(away.ID, func(c *models.Character) { c.CurrentHP = 40; c.OnMission = true })

	stats, err := f.engine.Characters.RegeneratePass(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Processed)

	assert.Equal(t, 41, f.character(hurt.ID).CurrentHP)
	assert.Equal(t, 40, f.character(away.ID).CurrentHP)
	assert.Equal(t, 100, f.character(fine.ID).CurrentHP)
}

func TestCharacter_AllocateStats(t *testing.T) {
	f := newFixture(t)
	p, err := f.engine.Characters.Create(f.ctx, f.id(), NewCharacter{Name: "Ada", Class: models.ClassSurvivor, Player: true})
	require.NoError(t, err)
	require.Equal(t, 10, p.FreeStatPoints)
	require.Equal(t, 110, p.MaxHP)

	_, err = f.engine.Characters.Damage(f.ctx, f.id(), p.ID, 10)
	require.NoError(t, err)

	p, err = f.engine.Characters.AllocateStats(f.ctx, f.id(), p.ID, models.Attributes{Endurance: 3, Speed: 2})
	require.NoError(t, err)
	assert.Equal(t, 5, p.FreeStatPoints)
	assert.Equal(t, 4, p.Endurance)
	assert.Equal(t, 140, p.MaxHP)
	assert.Equal(t, 130, p.CurrentHP)

	_, err = f.engine.Characters.AllocateStats(f.ctx, f.id(), p.ID, models.Attributes{Luck: 6})
	assert.ErrorIs(t, err, errors.ErrPreconditionFailed.WithReason(errors.ReasonNotEnoughStatPoints))

	npc := f.addCharacter("Kit", models.ClassScout, models.Attributes{})
	_, err = f.engine.Characters.AllocateStats(f.ctx, f.id(), npc.ID, models.Attributes{Luck: 1})
	assert.ErrorIs(t, err, errors.ErrPreconditionFailed.WithReason(errors.ReasonPlayerCharacter))
}

func TestCharacter_Delete(t *testing.T) {
	f := newFixture(t)
	p, err := f.engine.Characters.Create(f.ctx, f.id(), NewCharacter{Name: "Ada", Class: models.ClassSurvivor, Player: true})
	require.NoError(t, err)
	away := f.addCharacter("Away", models.ClassScout, models.Attributes{})
	f.updateCharacter(away.ID, func(c *models.Character) { c.OnMission = true })
	idle := f.addCharacter("Idle", models.ClassScout, models.Attributes{})

	err = f.engine.Characters.Delete(f.ctx, f.id(), p.ID)
	assert.ErrorIs(t, err, errors.ErrPreconditionFailed.WithReason(errors.ReasonPlayerCharacter))

	err = f.engine.Characters.Delete(f.ctx, f.id(), away.ID)
	assert.ErrorIs(t, err, errors.ErrPreconditionFailed.WithReason(errors.ReasonCharacterOnMission))

	require.NoError(t, f.engine.Characters.Delete(f.ctx, f.id(), idle.ID))
	_, err = f.engine.Characters.Get(f.ctx, f.id(), idle.ID)
	assert.ErrorIs(t, err, errors.ErrNotFound)
}

func TestPowerScore(t *testing.T) {
	c := &models.Character{Attributes: models.Attributes{Strength: 3, Dexterity: 1, Endurance: 2, Intelligence: 4, Speed: 5, Luck: 6}}
	assert.Equal(t, 21, PowerScore(c))
}
