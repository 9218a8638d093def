package codec

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/dmitrijs2005/mindnote/internal/models"
	"github.com/dmitrijs2005/mindnote/internal/richtext"
	"github.com/dustin/go-humanize"
)

type Markdown struct{}

func (Markdown) ContentType() string { return "text/markdown; charset=utf-8" }
func (Markdown) Extension() string   { return ".md" }

// Export writes one section per workspace. Consecutive list items of the
// same kind stay together; anything else is separated by a blank line.
func (Markdown) Export(w io.Writer, list []models.Workspace) error {
	bw := bufio.NewWriter(w)
	for i, ws := range list {
		if i > 0 {
			bw.WriteString("\n")
		}
		fmt.Fprintf(bw, "# %s\n", ws.Name)

		var prev models.Kind
		for _, it := range ws.Items {
			kind := it.Kind()
			if prev == "" || kind != prev || !isListKind(kind) {
				bw.WriteString("\n")
			}
			bw.WriteString(renderItem(it))
			bw.WriteString("\n")
			prev = kind
		}
	}
	return bw.Flush()
}

func isListKind(k models.Kind) bool {
	switch k {
	case models.KindCheckbox, models.KindNumberedList, models.KindBulletList:
		return true
	}
	return false
}

func renderItem(it models.Item) string {
	switch v := it.(type) {
	case models.TextItem:
		return richtext.PlainText(v.Text)
	case models.CheckboxItem:
		mark := " "
		if v.IsChecked {
			mark = "x"
		}
		return fmt.Sprintf("- [%s] %s", mark, richtext.PlainText(v.Text))
	case models.NumberedListItem:
		n := v.Number
		if n <= 0 {
			n = 1
		}
		return fmt.Sprintf("%d. %s", n, richtext.PlainText(v.Text))
	case models.BulletListItem:
		return "- " + richtext.PlainText(v.Text)
	case models.ImageItem:
		return fmt.Sprintf("![](%s)", v.ImageURI)
	case models.FileItem:
		return fmt.Sprintf("[%s](%s) (%s)", v.FileName, v.FileURI, humanize.Bytes(uint64(max(v.FileSize, 0))))
	case models.SubWorkspaceLink:
		return "→ " + v.DisplayName
	default:
		return strings.TrimSpace(models.ItemText(it))
	}
}
