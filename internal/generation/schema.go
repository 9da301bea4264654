package generation

import "encoding/json"

// Structured output schemas for the pipeline phases. Every phase runs with
// strict JSON schema mode so parse failures are provider bugs, not model
// creativity.

var classificationSchema = json.RawMessage(`{
  "type": "object",
  "additionalProperties": false,
  "required": ["experiences", "projects"],
  "properties": {
    "experiences": {
      "type": "array",
      "items": {
        "type": "object",
        "additionalProperties": false,
        "required": ["index", "action", "reason"],
        "properties": {
          "index": {"type": "integer"},
          "action": {"type": "string", "enum": ["KEEP", "REMOVE", "MOVE_TO_PROJECTS"]},
          "reason": {"type": "string"}
        }
      }
    },
    "projects": {
      "type": "array",
      "items": {
        "type": "object",
        "additionalProperties": false,
        "required": ["index", "action", "reason"],
        "properties": {
          "index": {"type": "integer"},
          "action": {"type": "string", "enum": ["KEEP", "REMOVE"]},
          "reason": {"type": "string"}
        }
      }
    }
  }
}`)

var adaptedExperienceSchema = json.RawMessage(`{
  "type": "object",
  "additionalProperties": false,
  "required": ["title", "company", "start_date", "end_date", "description", "responsibilities", "deliverables", "skills_used", "domain", "years_in_domain", "modifications"],
  "properties": {
    "title": {"type": "string"},
    "company": {"type": "string"},
    "start_date": {"type": "string"},
    "end_date": {"type": "string"},
    "description": {"type": "string"},
    "responsibilities": {"type": "array", "items": {"type": "string"}},
    "deliverables": {"type": "array", "items": {"type": "string"}},
    "skills_used": {"type": "array", "items": {"type": "string"}},
    "domain": {"type": "string"},
    "years_in_domain": {"type": "number"},
    "modifications": {"$ref": "#/$defs/modifications"}
  },
  "$defs": {"modifications": ` + modificationsSchema + `}
}`)

var adaptedProjectSchema = json.RawMessage(`{
  "type": "object",
  "additionalProperties": false,
  "required": ["name", "role", "start_date", "end_date", "summary", "tech_stack", "url", "modifications"],
  "properties": {
    "name": {"type": "string"},
    "role": {"type": "string"},
    "start_date": {"type": "string"},
    "end_date": {"type": "string"},
    "summary": {"type": "string"},
    "tech_stack": {"type": "array", "items": {"type": "string"}},
    "url": {"type": ["string", "null"]},
    "modifications": {"$ref": "#/$defs/modifications"}
  },
  "$defs": {"modifications": ` + modificationsSchema + `}
}`)

var adaptedExtrasSchema = json.RawMessage(`{
  "type": "object",
  "additionalProperties": false,
  "required": ["extras", "modifications"],
  "properties": {
    "extras": {
      "type": "array",
      "items": {
        "type": "object",
        "additionalProperties": false,
        "required": ["name", "description"],
        "properties": {
          "name": {"type": "string"},
          "description": {"type": "string"}
        }
      }
    },
    "modifications": {"$ref": "#/$defs/modifications"}
  },
  "$defs": {"modifications": ` + modificationsSchema + `}
}`)

var skillsReviewSchema = json.RawMessage(`{
  "type": "object",
  "additionalProperties": false,
  "required": ["hard_skills", "soft_skills", "tools", "methodologies", "modifications"],
  "properties": {
    "hard_skills": {"$ref": "#/$defs/decisions"},
    "soft_skills": {"$ref": "#/$defs/decisions"},
    "tools": {"$ref": "#/$defs/decisions"},
    "methodologies": {"$ref": "#/$defs/decisions"},
    "modifications": {"$ref": "#/$defs/modifications"}
  },
  "$defs": {
    "decisions": {
      "type": "array",
      "items": {
        "type": "object",
        "additionalProperties": false,
        "required": ["original_value", "skill_final", "action", "reason"],
        "properties": {
          "original_value": {"type": "string"},
          "skill_final": {"type": "string"},
          "action": {"type": "string", "enum": ["kept", "renamed", "deleted"]},
          "reason": {"type": "string"}
        }
      }
    },
    "modifications": ` + modificationsSchema + `
  }
}`)

var summarySchema = json.RawMessage(`{
  "type": "object",
  "additionalProperties": false,
  "required": ["headline", "description", "years_experience", "domains", "key_strengths", "modifications"],
  "properties": {
    "headline": {"type": "string"},
    "description": {"type": "string"},
    "years_experience": {"type": "number"},
    "domains": {"type": "array", "items": {"type": "string"}},
    "key_strengths": {"type": "array", "items": {"type": "string"}},
    "modifications": {"$ref": "#/$defs/modifications"}
  },
  "$defs": {"modifications": ` + modificationsSchema + `}
}`)

const modificationsSchema = `{
  "type": "array",
  "items": {
    "type": "object",
    "additionalProperties": false,
    "required": ["section", "field", "change_type", "before", "after", "reason"],
    "properties": {
      "section": {"type": "string"},
      "field": {"type": "string"},
      "change_type": {"type": "string"},
      "before": {"type": "string"},
      "after": {"type": "string"},
      "reason": {"type": "string"}
    }
  }
}`
