package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/catalogsync/backend/internal/domain/catalog"
)

// StringList stores an ordered list of strings as a JSON array
type StringList []string

// Value implements driver.Valuer. A nil list is stored as an empty array.
func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	data, err := json.Marshal([]string(l))
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan implements sql.Scanner
func (l *StringList) Scan(value any) error {
	var out []string
	if err := scanJSON(value, &out, "StringList"); err != nil {
		return err
	}
	if out == nil {
		out = []string{}
	}
	*l = out
	return nil
}

// AttributeList stores a variant attribute set as an ordered JSON array
type AttributeList []catalog.Attribute

// Value implements driver.Valuer
func (l AttributeList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	data, err := json.Marshal([]catalog.Attribute(l))
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan implements sql.Scanner
func (l *AttributeList) Scan(value any) error {
	var out []catalog.Attribute
	if err := scanJSON(value, &out, "AttributeList"); err != nil {
		return err
	}
	*l = out
	return nil
}

func scanJSON(value any, dest any, typeName string) error {
	var data []byte
	switch v := value.(type) {
	case nil:
		return nil
	case string:
		data = []byte(v)
	case []byte:
		data = v
	default:
		return fmt.Errorf("cannot scan %T into %s", value, typeName)
	}
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	return json.Unmarshal(data, dest)
}
