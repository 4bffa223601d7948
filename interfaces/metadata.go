package interfaces

import (
	"encoding/json"
	"fmt"
)

var canonicalMetadataKeys = []string{"name", "description", "image"}

// MarshalJSON renders the document as a flat JSON object. Extra fields are
// emitted alongside the canonical ones; canonical fields win on collision.
func (d MetadataDocument) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(d.Extra)+len(canonicalMetadataKeys))
	for k, v := range d.Extra {
		out[k] = v
	}
	for _, k := range canonicalMetadataKeys {
		delete(out, k)
	}

	out["name"] = d.Name
	if d.Description != "" {
		out["description"] = d.Description
	}
	if d.Image != "" {
		out["image"] = d.Image.URI()
	}
	return json.Marshal(out)
}

// UnmarshalJSON parses a flat JSON object. Unknown keys land in Extra.
func (d *MetadataDocument) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}

	var doc MetadataDocument
	for k, raw := range fields {
		switch k {
		case "name":
			if err := json.Unmarshal(raw, &doc.Name); err != nil {
				return fmt.Errorf("metadata name: %w", err)
			}
		case "description":
			if err := json.Unmarshal(raw, &doc.Description); err != nil {
				return fmt.Errorf("metadata description: %w", err)
			}
		case "image":
			if err := json.Unmarshal(raw, &doc.Image); err != nil {
				return fmt.Errorf("metadata image: %w", err)
			}
		default:
			var v any
			if err := json.Unmarshal(raw, &v); err != nil {
				return fmt.Errorf("metadata %s: %w", k, err)
			}
			if doc.Extra == nil {
				doc.Extra = make(map[string]any)
			}
			doc.Extra[k] = v
		}
	}

	*d = doc
	return nil
}
