// Package codec renders workspaces to JSON, YAML and Markdown and reads the
// first two back.
package codec

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dmitrijs2005/mindnote/internal/models"
)

// SchemaVersion is written into exported documents.
const SchemaVersion = 2

var ErrUnknownFormat = errors.New("unknown export format")

// Document is the exported envelope.
type Document struct {
	Schema     int                `json:"schema" yaml:"schema"`
	Workspaces []models.Workspace `json:"workspaces" yaml:"workspaces"`
}

type Exporter interface {
	Export(w io.Writer, list []models.Workspace) error
	ContentType() string
	Extension() string
}

type Importer interface {
	Import(r io.Reader) ([]models.Workspace, error)
}

// ExporterFor maps a format name to its exporter.
func ExporterFor(format string) (Exporter, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "json":
		return JSON{}, nil
	case "yaml", "yml":
		return YAML{}, nil
	case "md", "markdown":
		return Markdown{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// ImporterFor maps a format name to its importer. Markdown is export only.
func ImporterFor(format string) (Importer, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "json":
		return JSON{}, nil
	case "yaml", "yml":
		return YAML{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

func validate(list []models.Workspace) ([]models.Workspace, error) {
	for i := range list {
		if list[i].Items == nil {
			list[i].Items = models.Items{}
		}
		if list[i].ID == "" {
			list[i].ID = models.NewID()
		}
		if err := list[i].Validate(); err != nil {
			return nil, fmt.Errorf("workspace %d: %w", i, err)
		}
	}
	return list, nil
}
