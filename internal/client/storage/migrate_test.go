package storage

import (
	"testing"

	"github.com/dmitrijs2005/mindnote/internal/common"
	"github.com/dmitrijs2005/mindnote/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode_LegacyBareArray(t *testing.T) {
	doc := `[{"name":"Old","iconUri":null,"isFavorite":true,"lastAccessed":5,
		"items":[{"type":"CheckboxItem","id":"c","text":"x","isChecked":true}],"id":"w1"}]`

	list, err := Decode([]byte(doc))
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "w1", list[0].ID)
	assert.True(t, list[0].IsFavorite)
	assert.Equal(t, models.CheckboxItem{ID: "c", Text: "x", IsChecked: true}, list[0].Items[0])
}

func TestDecode_LegacyNestedPageLinks(t *testing.T) {
	doc := `[{"id":"p","name":"Parent","items":[{"type":"NestedPageItem","id":"i1","pageId":"c","pageName":"Child"}]},
		{"id":"c","name":"Child","items":[]}]`

	list, err := Decode([]byte(doc))
	require.NoError(t, err)
	require.Len(t, list, 2)

	links := list[0].Links()
	require.Len(t, links, 1)
	assert.Equal(t, models.SubWorkspaceLink{ID: "i1", WorkspaceID: "c", DisplayName: "Child"}, links[0])
	assert.Empty(t, models.DanglingLinks(list))
}

func TestDecode_LegacyTreeIsFlattened(t *testing.T) {
	doc := `[{"id":"p","name":"Parent","items":[],
		"children":[{"id":"c","name":"Child","items":[],
			"children":[{"id":"g","name":"Grandchild","items":[]}]}]}]`

	list, err := Decode([]byte(doc))
	require.NoError(t, err)
	require.Len(t, list, 3)

	byID := map[string]models.Workspace{}
	for _, ws := range list {
		byID[ws.ID] = ws
	}
	assert.Equal(t, "p", byID["c"].ParentID)
	assert.Equal(t, "c", byID["g"].ParentID)

	links := byID["p"].Links()
	require.Len(t, links, 1)
	assert.Equal(t, "c", links[0].WorkspaceID)
	assert.Equal(t, "Child", links[0].DisplayName)
	assert.Empty(t, models.DanglingLinks(list))
}

func TestDecode_ExistingLinkNotDuplicated(t *testing.T) {
	doc := `[{"id":"p","name":"P","items":[{"type":"SubWorkspaceLink","id":"l","workspaceId":"c","displayName":"C"}],
		"children":[{"id":"c","name":"C","items":[]}]}]`

	list, err := Decode([]byte(doc))
	require.NoError(t, err)
	assert.Len(t, list[0].Links(), 1)
}

func TestDecode_DuplicateWorkspaceIDsKeepFirst(t *testing.T) {
	list, err := Decode([]byte(`{"schema":2,"workspaces":[{"id":"a","name":"1"},{"id":"a","name":"2"}]}`))
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "1", list[0].Name)
}

func TestDecode_Errors(t *testing.T) {
	for _, in := range []string{"", "  ", "null", `{"schema":99,"workspaces":[]}`, `[1,2]`} {
		_, err := Decode([]byte(in))
		assert.ErrorIs(t, err, common.ErrCorrupt, "input %q", in)
	}
}
