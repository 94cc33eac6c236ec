// pkg/registry/schema.go
package registry

// ModelType is the capability class of a model. Request types route onto it.
type ModelType string

const (
	ModelTypeAnalysis   ModelType = "analysis"
	ModelTypePrediction ModelType = "prediction"
	ModelTypeSearch     ModelType = "search"
	ModelTypeGeneration ModelType = "generation"
)

// Valid reports whether t is one of the known model types.
func (t ModelType) Valid() bool {
	switch t {
	case ModelTypeAnalysis, ModelTypePrediction, ModelTypeSearch, ModelTypeGeneration:
		return true
	}
	return false
}

// File is the on-disk layout of configs/ai-registry.json.
type File struct {
	Version     string     `json:"version"`
	LastUpdated string     `json:"lastUpdated,omitempty"`
	Models      []AIModel  `json:"models"`
	Pipelines   []Pipeline `json:"pipelines"`
}

// AIModel describes a named model endpoint. Lower Priority is preferred.
type AIModel struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Type     ModelType `json:"type"`
	Endpoint string    `json:"endpoint"`
	Priority int       `json:"priority"`
	IsActive bool      `json:"isActive"`
}

// Pipeline is a declared sequence of model steps.
type Pipeline struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Steps       []PipelineStep `json:"steps"`
}

type PipelineStep struct {
	ModelID string `json:"modelId"`
	Action  string `json:"action"`
}

// fileSchema is the JSON schema every registry file must satisfy.
const fileSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["version", "models"],
  "properties": {
    "version": {"type": "string", "minLength": 1},
    "lastUpdated": {"type": "string"},
    "models": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["id", "name", "type", "priority", "isActive"],
        "properties": {
          "id": {"type": "string", "minLength": 1},
          "name": {"type": "string", "minLength": 1},
          "type": {"type": "string", "enum": ["analysis", "prediction", "search", "generation"]},
          "endpoint": {"type": "string"},
          "priority": {"type": "integer", "minimum": 0},
          "isActive": {"type": "boolean"}
        }
      }
    },
    "pipelines": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["id", "name", "steps"],
        "properties": {
          "id": {"type": "string", "minLength": 1},
          "name": {"type": "string", "minLength": 1},
          "description": {"type": "string"},
          "steps": {
            "type": "array",
            "minItems": 1,
            "items": {
              "type": "object",
              "required": ["modelId", "action"],
              "properties": {
                "modelId": {"type": "string", "minLength": 1},
                "action": {"type": "string", "minLength": 1}
              }
            }
          }
        }
      }
    }
  }
}`
