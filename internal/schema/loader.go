package schema

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

// documentSchema is the JSON Schema every form definition document must
// satisfy before decoding. Structural rules that need cross-references
// (unique ids, block refs) live in Validate.
const documentSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["slug", "pages"],
  "properties": {
    "slug": {"type": "string", "pattern": "^[A-Za-z0-9_]+$"},
    "name": {"type": "string"},
    "pages": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["id", "fields"],
        "properties": {
          "id": {"type": "string", "pattern": "^[A-Za-z0-9_]+$"},
          "label": {"type": "string"},
          "condition": {"type": "string"},
          "fields": {"type": "array", "items": {"$ref": "#/definitions/field"}},
          "post_conditions": {
            "type": "array",
            "items": {
              "type": "object",
              "required": ["condition", "error_message"],
              "properties": {
                "condition": {"type": "string"},
                "error_message": {"type": "string"}
              }
            }
          }
        }
      }
    },
    "blocks": {
      "type": "object",
      "additionalProperties": {
        "type": "object",
        "required": ["fields"],
        "properties": {
          "slug": {"type": "string", "pattern": "^[A-Za-z0-9_]+$"},
          "name": {"type": "string"},
          "fields": {"type": "array", "items": {"$ref": "#/definitions/field"}}
        }
      }
    }
  },
  "definitions": {
    "field": {
      "type": "object",
      "required": ["id", "kind"],
      "properties": {
        "id": {"type": "string", "pattern": "^[A-Za-z0-9_]+$"},
        "varname": {"type": "string", "pattern": "^[A-Za-z_][A-Za-z0-9_]*$"},
        "kind": {
          "type": "string",
          "enum": ["string", "text", "email", "bool", "date", "item", "items", "file", "computed", "block", "comment"]
        },
        "label": {"type": "string"},
        "condition": {"type": "string"},
        "required": {"type": "boolean"},
        "display_mode": {"type": "string"},
        "template": {"type": "string"},
        "block": {"type": "string"},
        "min_items": {"type": "integer", "minimum": 0},
        "max_items": {"type": "string"},
        "default_items_count": {"type": "integer", "minimum": 0},
        "prefill": {
          "type": "object",
          "required": ["expr"],
          "properties": {
            "expr": {"type": "string"},
            "locked": {"type": "boolean"},
            "freeze_once": {"type": "boolean"}
          }
        },
        "data_source": {
          "type": "object",
          "required": ["type"],
          "properties": {
            "type": {"type": "string", "enum": ["static", "remote", "records"]},
            "url": {"type": "string"},
            "query": {"type": "string"},
            "record_set": {"type": "string"},
            "drop_disabled": {"type": "boolean"},
            "options": {"type": "array"},
            "filters": {"type": "array"}
          }
        }
      }
    }
  }
}`

// Load reads a form definition file; the format is picked from the
// extension (.json, .yaml, .yml).
func Load(path string) (*FormDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading form definition: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return ParseYAML(data)
	default:
		return ParseJSON(data)
	}
}

// ParseJSON decodes and validates a JSON form definition document.
func ParseJSON(data []byte) (*FormDefinition, error) {
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing form definition: %w", err)
	}
	return fromDocument(doc)
}

// ParseYAML decodes and validates a YAML form definition document.
func ParseYAML(data []byte) (*FormDefinition, error) {
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing form definition: %w", err)
	}
	return fromDocument(doc)
}

// fromDocument validates the generic document against the JSON Schema,
// decodes it into the typed model, then applies structural validation.
func fromDocument(doc map[string]any) (*FormDefinition, error) {
	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(documentSchema),
		gojsonschema.NewGoLoader(doc),
	)
	if err != nil {
		return nil, fmt.Errorf("validating form definition: %w", err)
	}
	if !result.Valid() {
		var details []string
		for _, desc := range result.Errors() {
			details = append(details, desc.String())
		}
		return nil, fmt.Errorf("invalid form definition: %s", strings.Join(details, "; "))
	}

	var def FormDefinition
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &def,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(doc); err != nil {
		return nil, fmt.Errorf("decoding form definition: %w", err)
	}

	normalize(&def)
	if err := Validate(&def); err != nil {
		return nil, err
	}
	return &def, nil
}

// normalize fills derived defaults the rest of the engine relies on.
func normalize(def *FormDefinition) {
	for slug, blk := range def.Blocks {
		if blk.Slug == "" {
			blk.Slug = slug
		}
	}
	for _, f := range def.TopFields() {
		// Computed fields are never user-editable: their prefill always wins.
		if f.Kind == KindComputed && f.Prefill != nil {
			f.Prefill.Locked = true
		}
		if f.Kind == KindBlock && f.DefaultItemsCount == 0 {
			f.DefaultItemsCount = 1
		}
	}
}
