// Package models defines the MindNote domain: workspaces and the closed set
// of content items they hold, with the tagged JSON format used on disk and
// on the wire.
package models

import "github.com/google/uuid"

// Kind is the JSON discriminator of an item.
type Kind string

const (
	KindText             Kind = "TextItem"
	KindCheckbox         Kind = "CheckboxItem"
	KindNumberedList     Kind = "NumberedListItem"
	KindBulletList       Kind = "BulletListItem"
	KindImage            Kind = "ImageItem"
	KindFile             Kind = "FileItem"
	KindSubWorkspaceLink Kind = "SubWorkspaceLink"
)

// Item is one block of workspace content. The set of implementations is
// closed: only the types in this file satisfy it.
type Item interface {
	Kind() Kind
	ItemID() string
	withID(id string) Item
}

// TextItem holds rich text as an HTML fragment.
type TextItem struct {
	ID   string `json:"id" yaml:"id"`
	Text string `json:"text" yaml:"text"`
}

type CheckboxItem struct {
	ID        string `json:"id" yaml:"id"`
	Text      string `json:"text" yaml:"text"`
	IsChecked bool   `json:"isChecked" yaml:"isChecked"`
}

type NumberedListItem struct {
	ID     string `json:"id" yaml:"id"`
	Text   string `json:"text" yaml:"text"`
	Number int    `json:"number" yaml:"number"`
}

type BulletListItem struct {
	ID   string `json:"id" yaml:"id"`
	Text string `json:"text" yaml:"text"`
}

// ImageItem references a picture copied into app storage. Width and Height
// are filled by the media probe and stay zero when the image cannot be decoded.
type ImageItem struct {
	ID       string `json:"id" yaml:"id"`
	ImageURI string `json:"imageUri" yaml:"imageUri"`
	Width    int    `json:"width,omitempty" yaml:"width,omitempty"`
	Height   int    `json:"height,omitempty" yaml:"height,omitempty"`
}

type FileItem struct {
	ID       string `json:"id" yaml:"id"`
	FileName string `json:"fileName" yaml:"fileName"`
	FileURI  string `json:"fileUri" yaml:"fileUri"`
	FileSize int64  `json:"fileSize" yaml:"fileSize"`
}

// SubWorkspaceLink points at a nested workspace by id.
type SubWorkspaceLink struct {
	ID          string `json:"id" yaml:"id"`
	WorkspaceID string `json:"workspaceId" yaml:"workspaceId"`
	DisplayName string `json:"displayName" yaml:"displayName"`
}

func (TextItem) Kind() Kind         { return KindText }
func (CheckboxItem) Kind() Kind     { return KindCheckbox }
func (NumberedListItem) Kind() Kind { return KindNumberedList }
func (BulletListItem) Kind() Kind   { return KindBulletList }
func (ImageItem) Kind() Kind        { return KindImage }
func (FileItem) Kind() Kind         { return KindFile }
func (SubWorkspaceLink) Kind() Kind { return KindSubWorkspaceLink }

func (i TextItem) ItemID() string         { return i.ID }
func (i CheckboxItem) ItemID() string     { return i.ID }
func (i NumberedListItem) ItemID() string { return i.ID }
func (i BulletListItem) ItemID() string   { return i.ID }
func (i ImageItem) ItemID() string        { return i.ID }
func (i FileItem) ItemID() string         { return i.ID }
func (i SubWorkspaceLink) ItemID() string { return i.ID }

func (i TextItem) withID(id string) Item         { i.ID = id; return i }
func (i CheckboxItem) withID(id string) Item     { i.ID = id; return i }
func (i NumberedListItem) withID(id string) Item { i.ID = id; return i }
func (i BulletListItem) withID(id string) Item   { i.ID = id; return i }
func (i ImageItem) withID(id string) Item        { i.ID = id; return i }
func (i FileItem) withID(id string) Item         { i.ID = id; return i }
func (i SubWorkspaceLink) withID(id string) Item { i.ID = id; return i }

// NewID returns a fresh item or workspace id.
func NewID() string {
	return uuid.NewString()
}

// EnsureID gives it a fresh id when it has none.
func EnsureID(it Item) Item {
	if it.ItemID() == "" {
		return it.withID(NewID())
	}
	return it
}

// ItemText returns the editable text of it, or "" for media and links.
func ItemText(it Item) string {
	switch v := it.(type) {
	case TextItem:
		return v.Text
	case CheckboxItem:
		return v.Text
	case NumberedListItem:
		return v.Text
	case BulletListItem:
		return v.Text
	default:
		return ""
	}
}
