package catalog

import (
	"bytes"
	"testing"

	"github.com/mroshb/colony_engine/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_Loads(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)

	assert.Len(t, c.ResearchNodes(), 23)
	for _, key := range []string{"agriculture_1", "agriculture_2"} {
		_, ok := c.Research(key)
		assert.True(t, ok, key)
	}

	alchemy, ok := c.Research("alchemy")
	require.True(t, ok)
	assert.ElementsMatch(t, []string{"medicine", "advanced_research"}, alchemy.Prerequisites)
	assert.Equal(t, int64(50), alchemy.Cost[models.ResourceGem])

	farm, ok := c.Building("farm")
	require.True(t, ok)
	require.NotNil(t, farm.Production)
	assert.Equal(t, models.ResourceFood, farm.Production.Resource)
}

func TestDefault_UnlockedBuildingsRequireTheirResearch(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)

	for _, n := range c.ResearchNodes() {
		for _, key := range n.Effects.UnlocksBuildings {
			b, ok := c.Building(key)
			require.True(t, ok, key)
			assert.Contains(t, b.Requires.Research, n.Key, "building %s", key)
		}
	}
}

func TestNew_RejectsCycle(t *testing.T) {
	_, err := New(nil, []ResearchNode{
		{Key: "a", Category: "science", DurationHours: 1, Prerequisites: []string{"c"}},
		{Key: "b", Category: "science", DurationHours: 1, Prerequisites: []string{"a"}},
		{Key: "c", Category: "science", DurationHours: 1, Prerequisites: []string{"b"}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cycle")
}

func TestNew_RejectsBadReferences(t *testing.T) {
	tests := []struct {
		name      string
		buildings []BuildingKind
		research  []ResearchNode
	}{
		{
			name:     "Unknown prerequisite",
			research: []ResearchNode{{Key: "a", Category: "science", DurationHours: 1, Prerequisites: []string{"zzz"}}},
		},
		{
			name:      "Unknown required research",
			buildings: []BuildingKind{{Key: "hut", Category: "base", MaxInstances: 1, UnlockLevel: 1, Requires: Requirements{Research: []string{"nope"}}}},
		},
		{
			name:      "Unknown cost kind",
			buildings: []BuildingKind{{Key: "hut", Category: "base", MaxInstances: 1, UnlockLevel: 1, Cost: models.ResourceMap{"mana": 1}}},
		},
		{
			name:      "Zero max instances",
			buildings: []BuildingKind{{Key: "hut", Category: "base", UnlockLevel: 1}},
		},
		{
			name: "Duplicate key",
			buildings: []BuildingKind{
				{Key: "hut", Category: "base", MaxInstances: 1, UnlockLevel: 1},
				{Key: "hut", Category: "base", MaxInstances: 1, UnlockLevel: 1},
			},
		},
		{
			name:     "Zero duration",
			research: []ResearchNode{{Key: "a", Category: "science"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.buildings, tt.research)
			assert.Error(t, err)
		})
	}
}

func TestWorkbook_ExportThenImport(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, c.WriteWorkbook(&buf))

	imported, err := ReadWorkbook(&buf)
	require.NoError(t, err)

	assert.Equal(t, len(c.Buildings()), len(imported.Buildings()))
	assert.Equal(t, c.ResearchKeys(), imported.ResearchKeys())

	warehouse, ok := imported.Building("warehouse")
	require.True(t, ok)
	require.NotNil(t, warehouse.Production)
	assert.Equal(t, int64(500), warehouse.Production.StorageCapacity)

	tavern, ok := imported.Building("tavern")
	require.True(t, ok)
	assert.Nil(t, tavern.Production)
}

func TestParseCost(t *testing.T) {
	cost, err := parseCost("wood:50, stone:20")
	require.NoError(t, err)
	assert.Equal(t, models.ResourceMap{models.ResourceWood: 50, models.ResourceStone: 20}, cost)

	_, err = parseCost("wood=50")
	assert.Error(t, err)
}
