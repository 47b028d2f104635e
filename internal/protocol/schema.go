package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// MaxOpsPerAct bounds a single ACT message.
const MaxOpsPerAct = 64

var actSchema = jsonschema.MustCompileString("act.schema.json", fmt.Sprintf(`{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["type", "protocol_version", "ops"],
  "properties": {
    "type": {"const": "ACT"},
    "protocol_version": {"type": "string"},
    "tick": {"type": "integer", "minimum": 0},
    "agent_id": {"type": "string"},
    "ops": {
      "type": "array",
      "maxItems": %d,
      "items": {"$ref": "#/$defs/op"}
    }
  },
  "$defs": {
    "holder": {
      "type": "object",
      "required": ["holder"],
      "properties": {
        "holder": {"enum": ["INVENTORY", "SLOT", "CURSOR", "CONTAINER", "CONTAINER_SLOT", "GROUND"]},
        "container_id": {"type": "string", "maxLength": 128},
        "ground_id": {"type": "string", "maxLength": 128},
        "slot": {"type": "integer", "minimum": 0}
      },
      "additionalProperties": false
    },
    "op": {
      "type": "object",
      "required": ["id", "op"],
      "properties": {
        "id": {"type": "string", "maxLength": 64},
        "op": {"enum": ["MOVE", "MOVE_N", "SPLIT", "COLLECT", "DROP", "PICKUP", "RELEASE", "OPEN", "CLOSE"]},
        "from": {"$ref": "#/$defs/holder"},
        "to": {"$ref": "#/$defs/holder"},
        "count": {"type": "integer", "minimum": 0},
        "item": {"type": "string"},
        "container_id": {"type": "string", "maxLength": 128}
      },
      "additionalProperties": false
    }
  }
}`, MaxOpsPerAct))

// DecodeAct validates b against the ACT schema and decodes it.
func DecodeAct(b []byte) (ActMsg, error) {
	var act ActMsg
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return act, err
	}
	if err := actSchema.Validate(v); err != nil {
		return act, fmt.Errorf("act: %w", err)
	}
	if err := json.Unmarshal(b, &act); err != nil {
		return act, err
	}
	return act, nil
}
