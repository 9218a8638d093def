package viewmodel

import (
	"fmt"
	"strings"

	"github.com/dmitrijs2005/mindnote/internal/models"
	"github.com/dmitrijs2005/mindnote/internal/richtext"
	"github.com/dustin/go-humanize"
)

// RenderItem formats an item as a single line of plain text.
func RenderItem(it models.Item) string {
	switch v := it.(type) {
	case models.TextItem:
		return strings.ReplaceAll(richtext.PlainText(v.Text), "\n", "\n     ")
	case models.CheckboxItem:
		box := "[ ]"
		if v.IsChecked {
			box = "[x]"
		}
		return box + " " + richtext.PlainText(v.Text)
	case models.NumberedListItem:
		return fmt.Sprintf("%d. %s", v.Number, richtext.PlainText(v.Text))
	case models.BulletListItem:
		return "• " + richtext.PlainText(v.Text)
	case models.ImageItem:
		if v.Width == 0 || v.Height == 0 {
			return "[image] " + v.ImageURI
		}
		return fmt.Sprintf("[image %dx%d] %s", v.Width, v.Height, v.ImageURI)
	case models.FileItem:
		return fmt.Sprintf("[file] %s (%s)", v.FileName, humanize.Bytes(uint64(max(v.FileSize, 0))))
	case models.SubWorkspaceLink:
		return "-> " + v.DisplayName
	default:
		return string(it.Kind())
	}
}
