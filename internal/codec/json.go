package codec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/dmitrijs2005/mindnote/internal/models"
)

type JSON struct{}

func (JSON) ContentType() string { return "application/json" }
func (JSON) Extension() string   { return ".json" }

func (JSON) Export(w io.Writer, list []models.Workspace) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(Document{Schema: SchemaVersion, Workspaces: list}); err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	return nil
}

// Import accepts an exported Document or a bare array of workspaces.
func (JSON) Import(r io.Reader) ([]models.Workspace, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}
	data = bytes.TrimSpace(data)
	var list []models.Workspace
	if len(data) > 0 && data[0] == '[' {
		err = json.Unmarshal(data, &list)
	} else {
		var doc Document
		err = json.Unmarshal(data, &doc)
		list = doc.Workspaces
	}
	if err != nil {
		return nil, fmt.Errorf("decode json: %w", err)
	}
	return validate(list)
}
