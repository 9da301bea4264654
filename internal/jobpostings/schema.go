package jobpostings

import "encoding/json"

// extractionSchema constrains the posting extraction call. The four skill
// categories mirror the structured content stored in job_postings.content.
var extractionSchema = json.RawMessage(`{
  "type": "object",
  "additionalProperties": false,
  "required": ["title", "company", "location", "description", "responsibilities", "skills"],
  "properties": {
    "title": {"type": "string"},
    "company": {"type": "string"},
    "location": {"type": "string"},
    "description": {"type": "string"},
    "responsibilities": {"type": "array", "items": {"type": "string"}},
    "skills": {
      "type": "object",
      "additionalProperties": false,
      "required": ["hard_skills", "tools", "methodologies", "soft_skills"],
      "properties": {
        "hard_skills": {"$ref": "#/$defs/requirement_group"},
        "tools": {"$ref": "#/$defs/requirement_group"},
        "methodologies": {"$ref": "#/$defs/requirement_group"},
        "soft_skills": {"type": "array", "items": {"type": "string"}}
      }
    }
  },
  "$defs": {
    "requirement_group": {
      "type": "object",
      "additionalProperties": false,
      "required": ["required", "nice_to_have"],
      "properties": {
        "required": {"type": "array", "items": {"type": "string"}},
        "nice_to_have": {"type": "array", "items": {"type": "string"}}
      }
    }
  }
}`)

const extractionSystemPrompt = `You extract structured job postings from raw page or document text.
Rules:
- Use only information present in the text, never invent requirements.
- Classify requested skills into hard_skills, tools, methodologies and soft_skills.
- Within hard_skills, tools and methodologies, split required from nice_to_have.
- Keep responsibilities as short imperative bullet points.
- Answer in the language of the posting.`
