package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ID is a normalised identifier for users, products, addresses and orders.
type ID string

func (id ID) String() string {
	return string(id)
}

func (id ID) IsZero() bool {
	return id == ""
}

// NewID returns a fresh storage identifier.
func NewID() ID {
	return ID(primitive.NewObjectID().Hex())
}

var idKeys = []string{"_id", "id", "userId", "productId", "$oid"}

// NormalizeID turns whatever shape an identifier arrives in (plain string,
// ObjectID, populated document, extended JSON) into an ID. It is applied once
// at the API boundary; everything past the boundary handles ID only.
func NormalizeID(v interface{}) ID {
	switch t := v.(type) {
	case nil:
		return ""
	case ID:
		return ID(strings.TrimSpace(string(t)))
	case string:
		return ID(strings.TrimSpace(t))
	case primitive.ObjectID:
		if t.IsZero() {
			return ""
		}
		return ID(t.Hex())
	case map[string]interface{}:
		for _, k := range idKeys {
			if val, ok := t[k]; ok {
				if id := NormalizeID(val); id != "" {
					return id
				}
			}
		}
		return ""
	case float64:
		return ID(strconv.FormatFloat(t, 'f', -1, 64))
	case fmt.Stringer:
		return ID(strings.TrimSpace(t.String()))
	default:
		return ""
	}
}

// UnmarshalJSON accepts either a string id or an object carrying one.
func (id *ID) UnmarshalJSON(b []byte) error {
	var raw interface{}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*id = NormalizeID(raw)
	return nil
}
