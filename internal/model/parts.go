package model

import (
	"encoding/json"
	"fmt"
)

// PartList is an ordered list of Parts that round-trips through JSON with a
// "type" discriminator on each element.
type PartList []Part

// MarshalJSON emits each part as an object tagged with its kind.
func (pl PartList) MarshalJSON() ([]byte, error) {
	raw := make([]json.RawMessage, 0, len(pl))
	for _, p := range pl {
		b, err := marshalPart(p)
		if err != nil {
			return nil, err
		}
		raw = append(raw, b)
	}
	return json.Marshal(raw)
}

// UnmarshalJSON decodes tagged part objects. An unknown or malformed part
// is a decode error, never a partially populated value.
func (pl *PartList) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parts := make(PartList, 0, len(raw))
	for _, r := range raw {
		p, err := unmarshalPart(r)
		if err != nil {
			return err
		}
		parts = append(parts, p)
	}
	*pl = parts
	return nil
}

func marshalPart(p Part) ([]byte, error) {
	switch v := p.(type) {
	case TextPart:
		return json.Marshal(struct {
			Type string `json:"type"`
			TextPart
		}{"text", v})
	case ToolCallPart:
		return json.Marshal(struct {
			Type string `json:"type"`
			ToolCallPart
		}{"tool_call", v})
	case ToolResultPart:
		return json.Marshal(struct {
			Type string `json:"type"`
			ToolResultPart
		}{"tool_result", v})
	case FileChangePart:
		return json.Marshal(struct {
			Type string `json:"type"`
			FileChangePart
		}{"file_change", v})
	default:
		return nil, fmt.Errorf("unknown part type %T", p)
	}
}

func unmarshalPart(data []byte) (Part, error) {
	var tag struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &tag); err != nil {
		return nil, fmt.Errorf("decode part tag: %w", err)
	}
	switch tag.Type {
	case "text":
		var p TextPart
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("decode text part: %w", err)
		}
		return p, nil
	case "tool_call":
		var p ToolCallPart
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("decode tool_call part: %w", err)
		}
		return p, nil
	case "tool_result":
		var p ToolResultPart
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("decode tool_result part: %w", err)
		}
		return p, nil
	case "file_change":
		var p FileChangePart
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("decode file_change part: %w", err)
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unknown part type %q", tag.Type)
	}
}
