package catalogs

import "github.com/santhosh-tekuri/jsonschema/v5"

var itemsSchema = jsonschema.MustCompileString("items.schema.json", `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "array",
  "items": {
    "type": "object",
    "required": ["id", "category"],
    "properties": {
      "id": {"type": "string", "pattern": "^[A-Z0-9_]+$"},
      "display_name": {"type": "string"},
      "description": {"type": "string"},
      "category": {"enum": ["MATERIAL", "TOOL", "CONSUMABLE"]},
      "max_stack": {"type": "integer", "minimum": 0, "maximum": 65535},
      "sell_price": {"type": "integer", "minimum": 0}
    },
    "additionalProperties": false
  }
}`)

var containersSchema = jsonschema.MustCompileString("containers.schema.json", `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "array",
  "items": {
    "type": "object",
    "required": ["type", "slots"],
    "properties": {
      "type": {"type": "string", "pattern": "^[A-Z0-9_]+$"},
      "slots": {"type": "integer", "minimum": 0, "maximum": 1024}
    },
    "additionalProperties": false
  }
}`)
