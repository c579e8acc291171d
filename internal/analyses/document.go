package analyses

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// The pipeline only requires a non-empty JSON object; the engine owns the rest
// of the shape.
const envelopeSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "minProperties": 1
}`

var (
	envelopeOnce sync.Once
	envelope     *jsonschema.Schema
	envelopeErr  error
)

func compiledEnvelope() (*jsonschema.Schema, error) {
	envelopeOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("envelope.json", strings.NewReader(envelopeSchema)); err != nil {
			envelopeErr = fmt.Errorf("add schema: %w", err)
			return
		}
		envelope, envelopeErr = compiler.Compile("envelope.json")
	})
	return envelope, envelopeErr
}

// CheckDocument accepts engine output that is a non-empty JSON object and
// returns it compacted.
func CheckDocument(raw json.RawMessage) (json.RawMessage, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, ErrEmptyDocument
	}
	var v any
	if err := json.Unmarshal(trimmed, &v); err != nil {
		return nil, fmt.Errorf("analysis_invalid: %w", err)
	}
	schema, err := compiledEnvelope()
	if err != nil {
		return nil, err
	}
	if err := schema.Validate(v); err != nil {
		return nil, fmt.Errorf("analysis_invalid: %w", err)
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, trimmed); err != nil {
		return nil, fmt.Errorf("analysis_invalid: %w", err)
	}
	return buf.Bytes(), nil
}

// NegativeItems returns the document's "negatives" array, or [] when the
// field is missing or not an array.
func NegativeItems(doc json.RawMessage) json.RawMessage {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(doc, &top); err != nil {
		return json.RawMessage("[]")
	}
	items, ok := top["negatives"]
	if !ok {
		return json.RawMessage("[]")
	}
	var arr []json.RawMessage
	if err := json.Unmarshal(items, &arr); err != nil {
		return json.RawMessage("[]")
	}
	return items
}
