package codec

import (
	"fmt"
	"io"

	"github.com/dmitrijs2005/mindnote/internal/models"
	"gopkg.in/yaml.v3"
)

type YAML struct{}

func (YAML) ContentType() string { return "application/yaml" }
func (YAML) Extension() string   { return ".yaml" }

func (YAML) Export(w io.Writer, list []models.Workspace) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(Document{Schema: SchemaVersion, Workspaces: list}); err != nil {
		return fmt.Errorf("encode yaml: %w", err)
	}
	return enc.Close()
}

// Import accepts an exported Document or a bare sequence of workspaces.
func (YAML) Import(r io.Reader) ([]models.Workspace, error) {
	var node yaml.Node
	if err := yaml.NewDecoder(r).Decode(&node); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	root := &node
	if root.Kind == yaml.DocumentNode && len(root.Content) > 0 {
		root = root.Content[0]
	}

	var list []models.Workspace
	var err error
	if root.Kind == yaml.SequenceNode {
		err = root.Decode(&list)
	} else {
		var doc Document
		err = root.Decode(&doc)
		list = doc.Workspaces
	}
	if err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	return validate(list)
}
