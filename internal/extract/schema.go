package extract

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// BuildRecordSchema returns the JSON-Schema every aliased record must
// satisfy before it reaches a consumer: all canonical and alias keys
// present and string-typed, dates empty or DD/MM/YYYY, the identity number
// empty or exactly 12 digits.
func BuildRecordSchema() map[string]any {
	dateProp := map[string]any{"type": "string", "pattern": `^(\d{2}/\d{2}/\d{4})?$`}
	idProp := map[string]any{"type": "string", "pattern": `^(\d{12})?$`}
	strProp := map[string]any{"type": "string"}

	props := map[string]any{
		KeyFullName:      strProp,
		KeyDateOfBirth:   dateProp,
		KeySex:           strProp,
		KeyNationality:   strProp,
		KeyPlaceOfOrigin: strProp,
		KeyNumber:        idProp,
		KeyResidence:     strProp,
		KeyExpiryDate:    dateProp,
		"old_id":         strProp,
		"issue_date":     dateProp,
	}
	required := []string{
		KeyFullName, KeyDateOfBirth, KeySex, KeyNationality,
		KeyPlaceOfOrigin, KeyNumber, KeyResidence, KeyExpiryDate,
	}
	for alias, canonical := range aliasOf {
		props[alias] = props[canonical]
		required = append(required, alias)
	}

	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties":           props,
		"required":             required,
	}
}

// ValidateAliased checks an aliased record against the output contract.
// Intended as a best-effort guard in front of consumers: callers log a
// violation rather than fail the item.
func ValidateAliased(record map[string]string) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	schemaBytes, err := json.Marshal(BuildRecordSchema())
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("record.json", bytes.NewReader(schemaBytes)); err != nil {
		return fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("record.json")
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal record: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("record does not match contract: %w", err)
	}
	return nil
}
