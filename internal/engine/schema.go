package engine

import "encoding/json"

// resultSchemaName is the name registered with the provider's strict mode.
const resultSchemaName = "evaluation_result"

// ResultSchema is the strict JSON schema every evaluation response must
// satisfy. Every property is required and additional properties are
// rejected; only student_answer and correct_answer are nullable.
var ResultSchema = json.RawMessage(`{
  "type": "object",
  "additionalProperties": false,
  "required": ["evaluation_id", "students"],
  "properties": {
    "evaluation_id": {"type": "string"},
    "students": {
      "type": "array",
      "items": {
        "type": "object",
        "additionalProperties": false,
        "required": ["file_id", "answers", "total_score", "max_total_score"],
        "properties": {
          "file_id": {"type": "string"},
          "answers": {
            "type": "array",
            "items": {
              "type": "object",
              "additionalProperties": false,
              "required": ["question_number", "question_text", "student_answer", "correct_answer", "score", "max_score", "feedback"],
              "properties": {
                "question_number": {"type": "string"},
                "question_text": {"type": "string"},
                "student_answer": {"type": ["string", "null"]},
                "correct_answer": {"type": ["string", "null"]},
                "score": {"type": "number"},
                "max_score": {"type": "number"},
                "feedback": {"type": "string"}
              }
            }
          },
          "total_score": {"type": "number"},
          "max_total_score": {"type": "number"}
        }
      }
    }
  }
}`)
