package items

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blackwell-systems/packport/internal/kv"
)

func TestUnlockedReturnsNewValue(t *testing.T) {
	door := Item{ID: "ITEM_EXIT_DOOR", Facing: FacingNone}
	unlocked := door.Unlocked()

	assert.True(t, unlocked.Deletable)
	assert.True(t, unlocked.Copiable)
	assert.Equal(t, FacingUp, unlocked.Facing)
	assert.False(t, door.Deletable, "original record is unchanged")
	assert.Equal(t, FacingNone, door.Facing)
}

func TestIsUnlockDefault(t *testing.T) {
	assert.True(t, IsUnlockDefault("item_entry_door"))
	assert.False(t, IsUnlockDefault("ITEM_CUBE"))
}

func TestForStyle(t *testing.T) {
	all := []Item{
		{ID: "ITEM_B"},
		{ID: "ITEM_A", Styles: []string{"BEE2_CLEAN"}},
		{ID: "ITEM_C", Styles: []string{"BEE2_OVERGROWN"}},
		{ID: "ITEM_B", Deletable: true},
	}
	got := ForStyle(all, "bee2_clean")
	require.Len(t, got, 2)
	assert.Equal(t, "ITEM_A", got[0].ID)
	assert.Equal(t, "ITEM_B", got[1].ID)
	assert.False(t, got[1].Deletable, "first definition wins")
}

func TestUsedModels(t *testing.T) {
	used := UsedModels([]Item{{Models: []string{"Door.MDL", "a.mdl"}}, {Models: []string{"b.mdl"}}})
	assert.Equal(t, map[string]bool{"door.mdl": true, "a.mdl": true, "b.mdl": true}, used)
}

func TestWriteEditoritems(t *testing.T) {
	list := []Item{
		{ID: "ITEM_EXIT_DOOR", Facing: FacingUp, Deletable: true, Copiable: true, Models: []string{"door_exit.mdl"}},
		{ID: "ITEM_CUBE", Editor: kv.NewBlock("", kv.NewLeaf("MovementHandle", "HANDLE_4_DIRECTIONS"))},
	}
	var sb strings.Builder
	require.NoError(t, WriteEditoritems(&sb, list, []Renderable{{Type: "ErrorShape", Model: "error.mdl"}}))

	doc, err := kv.ParseString(sb.String(), "editoritems.txt")
	require.NoError(t, err)
	data := doc.Find("ItemData")
	require.NotNil(t, data)

	itemBlocks := data.FindAll("Item")
	require.Len(t, itemBlocks, 2)
	exit := itemBlocks[0].Find("Editor")
	assert.Equal(t, "1", exit.Get("Deletable", ""))
	assert.Equal(t, "DESIRES_UP", exit.Get("DesiredFacing", ""))
	assert.Len(t, exit.FindPath("SubType", "Model"), 1)
	assert.Equal(t, "HANDLE_4_DIRECTIONS", itemBlocks[1].Find("Editor").Get("MovementHandle", ""))

	rend := data.Find("Renderables")
	require.NotNil(t, rend)
	assert.Equal(t, "ErrorShape", rend.Find("Item").Get("Type", ""))
}

func TestDatabaseRoundTrip(t *testing.T) {
	list := []Item{
		{ID: "ITEM_EXIT_DOOR", Deletable: true, Copiable: true, Facing: FacingUp, Models: []string{"a.mdl", "b.mdl"}},
		{ID: "ITEM_CUBE", Facing: FacingNone},
	}
	data, err := EncodeDatabase(list)
	require.NoError(t, err)

	got, err := DecodeDatabase(data)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, list[0].ID, got[0].ID)
	assert.Equal(t, list[0].Models, got[0].Models)
	assert.True(t, got[0].Deletable)
	assert.Empty(t, got[1].Models)

	_, err = DecodeDatabase([]byte{0xff, 0xff})
	assert.Error(t, err)
}
