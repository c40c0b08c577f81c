package openai

import "encoding/json"

const queryAnalysisSystemPrompt = `You are an expert at extracting search terms from technical queries for a control valve manual search system.

Analyze the user's natural language query and extract the keywords and phrases most likely to match figure captions, table titles, and content descriptions in a keyword search engine.

Return a JSON response with:
- search_terms: list of specific keywords and phrases optimized for keyword search
- content_type: "table", "figure", or "any" based on what the user is looking for
- intent: brief description of what the user wants
- confidence: 0-1 score for how clear the query is

Focus on technical terms, specific concepts, and descriptive phrases that would appear in captions or titles. Include variations and synonyms when relevant.

Return only valid JSON.`

const resultSelectionSystemPrompt = `You are an expert at selecting the most relevant result for technical queries about control valves.

Given a user query and a list of search results (with index, ID, type, and title), select the best match.

Return ONLY a JSON with:
- selected_index: index of best result (number) or null if none are good
- confidence: 0.0-1.0 confidence score

Rules:
- High confidence (0.8+): exact or very close match
- Medium confidence (0.5-0.7): good but not perfect match
- Low confidence (0.0-0.4): poor matches, return null for selected_index`

var queryAnalysisSchema = json.RawMessage(`{
  "type": "object",
  "properties": {
    "search_terms": {
      "type": "array",
      "items": {"type": "string"},
      "description": "Keywords and phrases optimized for keyword search"
    },
    "content_type": {
      "type": "string",
      "enum": ["table", "figure", "any"],
      "description": "Type of content the user is looking for"
    },
    "intent": {
      "type": "string",
      "description": "Brief description of what the user wants"
    },
    "confidence": {
      "type": "number",
      "minimum": 0.0,
      "maximum": 1.0,
      "description": "Confidence score for how clear the query is"
    }
  },
  "required": ["search_terms", "content_type", "intent", "confidence"],
  "additionalProperties": false
}`)

var resultSelectionSchema = json.RawMessage(`{
  "type": "object",
  "properties": {
    "selected_index": {
      "type": ["integer", "null"],
      "description": "Index of the best result, or null if none are good",
      "minimum": 0
    },
    "confidence": {
      "type": "number",
      "description": "Confidence score from 0.0 to 1.0",
      "minimum": 0.0,
      "maximum": 1.0
    }
  },
  "required": ["selected_index", "confidence"],
  "additionalProperties": false
}`)
