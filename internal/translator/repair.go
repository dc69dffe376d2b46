package translator

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/MikeSquared-Agency/agenda/internal/intent"
)

var errNoObject = errors.New("no JSON object in output")

// Parse repairs raw model output into a payload. It decodes the first JSON
// object in the text (dropping code fences and surrounding prose), accepts
// "details" as an alias of "entities", treats loose top-level keys as entities
// when neither is present, normalizes the intent name and defaults the
// explanation.
func Parse(raw string) (intent.Payload, error) {
	m, err := firstObject(raw)
	if err != nil {
		return intent.Payload{}, err
	}

	name, _ := m["intent"].(string)
	p := intent.Payload{Intent: intent.Parse(name)}

	switch {
	case isObject(m["entities"]):
		p.Entities = m["entities"].(map[string]any)
	case isObject(m["details"]):
		p.Entities = m["details"].(map[string]any)
	default:
		p.Entities = map[string]any{}
		for k, v := range m {
			switch k {
			case "intent", "explanation", "entities", "details":
				continue
			}
			p.Entities[k] = v
		}
	}

	if s, ok := m["explanation"].(string); ok {
		p.Explanation = strings.TrimSpace(s)
	}
	if p.Explanation == "" {
		if reason, ok := p.Entities["reason"].(string); ok && p.Intent == intent.Unknown {
			p.Explanation = strings.TrimSpace(reason)
		}
	}
	if p.Explanation == "" {
		p.Explanation = intent.DefaultExplanation
	}
	return p, nil
}

// firstObject decodes one JSON object starting at the first "{". Whatever
// follows that object is ignored, braces included.
func firstObject(raw string) (map[string]any, error) {
	start := strings.Index(raw, "{")
	if start < 0 {
		return nil, errNoObject
	}
	var m map[string]any
	if err := json.NewDecoder(strings.NewReader(raw[start:])).Decode(&m); err != nil {
		return nil, fmt.Errorf("decode output: %w", err)
	}
	return m, nil
}

func isObject(v any) bool {
	_, ok := v.(map[string]any)
	return ok
}
