package types

import (
	"encoding/json"
	"fmt"
	"strings"
)

// IdentifiedObject is one piece of furniture or decor the vision model found
// in an image, with its visual attributes (colors, materials, styles).
type IdentifiedObject struct {
	ObjectType string   `json:"object_type"`
	Attributes []string `json:"attributes"`
}

// ImageFeatures is the structured description the vision model returns for an
// image. It is persisted verbatim as the product's features JSON.
type ImageFeatures struct {
	MainObjects  []IdentifiedObject `json:"main_objects"`
	OverallStyle []string           `json:"overall_style"`
}

// Validate checks that a decoded model reply matches the expected shape.
func (f ImageFeatures) Validate() error {
	for i, obj := range f.MainObjects {
		if strings.TrimSpace(obj.ObjectType) == "" {
			return fmt.Errorf("main_objects[%d]: object_type is required", i)
		}
	}
	return nil
}

// ParseImageFeatures strictly decodes a JSON document into ImageFeatures.
// Unknown keys are rejected so prose or a differently-shaped reply surfaces
// as a schema error rather than a silently empty feature set.
func ParseImageFeatures(data []byte) (ImageFeatures, error) {
	var f ImageFeatures
	dec := json.NewDecoder(strings.NewReader(string(data)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&f); err != nil {
		return ImageFeatures{}, err
	}
	if err := f.Validate(); err != nil {
		return ImageFeatures{}, err
	}
	return f, nil
}
