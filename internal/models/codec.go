package models

import (
	"encoding/json"
	"fmt"
)

// MarshalItem encodes it as a flat JSON object with a "type" discriminator.
func MarshalItem(it Item) ([]byte, error) {
	switch v := it.(type) {
	case TextItem:
		return json.Marshal(struct {
			Type Kind `json:"type"`
			TextItem
		}{KindText, v})
	case CheckboxItem:
		return json.Marshal(struct {
			Type Kind `json:"type"`
			CheckboxItem
		}{KindCheckbox, v})
	case NumberedListItem:
		return json.Marshal(struct {
			Type Kind `json:"type"`
			NumberedListItem
		}{KindNumberedList, v})
	case BulletListItem:
		return json.Marshal(struct {
			Type Kind `json:"type"`
			BulletListItem
		}{KindBulletList, v})
	case ImageItem:
		return json.Marshal(struct {
			Type Kind `json:"type"`
			ImageItem
		}{KindImage, v})
	case FileItem:
		return json.Marshal(struct {
			Type Kind `json:"type"`
			FileItem
		}{KindFile, v})
	case SubWorkspaceLink:
		return json.Marshal(struct {
			Type Kind `json:"type"`
			SubWorkspaceLink
		}{KindSubWorkspaceLink, v})
	default:
		return nil, fmt.Errorf("unsupported item %T", it)
	}
}

// UnmarshalItem decodes one tagged item. Objects without an id get a fresh
// one. An unknown "type" yields an empty TextItem so that documents written
// by newer versions still load.
func UnmarshalItem(data []byte) (Item, error) {
	var head struct {
		Type Kind   `json:"type"`
		ID   string `json:"id"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("decode item: %w", err)
	}

	var it Item
	var err error
	switch head.Type {
	case KindText:
		it, err = decodeAs[TextItem](data)
	case KindCheckbox:
		it, err = decodeAs[CheckboxItem](data)
	case KindNumberedList:
		it, err = decodeAs[NumberedListItem](data)
	case KindBulletList:
		it, err = decodeAs[BulletListItem](data)
	case KindImage:
		it, err = decodeAs[ImageItem](data)
	case KindFile:
		it, err = decodeAs[FileItem](data)
	case KindSubWorkspaceLink:
		it, err = decodeAs[SubWorkspaceLink](data)
	case kindNestedPage:
		it, err = decodeNestedPage(data)
	default:
		it = TextItem{ID: head.ID}
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", head.Type, err)
	}

	return EnsureID(it), nil
}

// kindNestedPage is the link variant written by older builds. It is read
// as a SubWorkspaceLink and never written.
const kindNestedPage Kind = "NestedPageItem"

func decodeNestedPage(data []byte) (Item, error) {
	var v struct {
		ID       string `json:"id"`
		PageID   string `json:"pageId"`
		PageName string `json:"pageName"`
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return SubWorkspaceLink{ID: v.ID, WorkspaceID: v.PageID, DisplayName: v.PageName}, nil
}

func decodeAs[T Item](data []byte) (Item, error) {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// Items is an ordered item list with the tagged JSON encoding.
type Items []Item

func (s Items) MarshalJSON() ([]byte, error) {
	raw := make([]json.RawMessage, 0, len(s))
	for _, it := range s {
		b, err := MarshalItem(it)
		if err != nil {
			return nil, err
		}
		raw = append(raw, b)
	}
	return json.Marshal(raw)
}

func (s *Items) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(Items, 0, len(raw))
	for _, r := range raw {
		it, err := UnmarshalItem(r)
		if err != nil {
			return err
		}
		out = append(out, it)
	}
	*s = out
	return nil
}
