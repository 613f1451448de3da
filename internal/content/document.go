package content

import (
	"bytes"
	"encoding/json"
)

// Document is the structured template body stored in a revision's content structure.
type Document struct {
	Version     string      `json:"version"`
	Meta        Meta        `json:"meta"`
	PageConfig  PageConfig  `json:"pageConfig"`
	VariableIDs []string    `json:"variableIds"`
	Content     ContentNode `json:"content"`
}

// Meta holds descriptive fields of a document.
type Meta struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Language    string `json:"language"`
}

// PageConfig describes the page geometry used by the renderer.
type PageConfig struct {
	FormatID string  `json:"formatId"`
	Width    float64 `json:"width"`
	Height   float64 `json:"height"`
	Margins  Margins `json:"margins"`
}

// Margins are expressed in the same unit as the page width and height.
type Margins struct {
	Top    float64 `json:"top"`
	Bottom float64 `json:"bottom"`
	Left   float64 `json:"left"`
	Right  float64 `json:"right"`
}

// IsEmpty reports whether a raw payload carries no document at all.
func IsEmpty(raw []byte) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

// Parse decodes a raw payload into a fresh Document. The caller owns the result.
func Parse(raw []byte) (*Document, error) {
	doc := &Document{}
	if err := json.Unmarshal(raw, doc); err != nil {
		return nil, err
	}

	return doc, nil
}

// Declared returns the declared variable ids as a lookup set.
func (d *Document) Declared() map[string]struct{} {
	declared := make(map[string]struct{}, len(d.VariableIDs))
	for _, id := range d.VariableIDs {
		declared[id] = struct{}{}
	}

	return declared
}
