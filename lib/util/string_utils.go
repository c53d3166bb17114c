package util

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ConditionalString returns valueIfTrue if condition is true, otherwise valueIfFalse
func ConditionalString(condition bool, valueIfTrue, valueIfFalse string) string {
	if condition {
		return valueIfTrue
	}
	return valueIfFalse
}

// IsGuid reports whether s is a canonical 36 character GUID.
func IsGuid(s string) bool {
	if len(s) != 36 {
		return false
	}
	_, err := uuid.Parse(s)
	return err == nil
}

// NewGuid returns a random GUID string.
func NewGuid() string {
	return uuid.New().String()
}

// UTCISOString formats t the way JavaScript's toISOString does.
func UTCISOString(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z")
}

// GetSubObject keeps only the comma separated props of obj.
func GetSubObject(obj map[string]interface{}, props string) map[string]interface{} {
	if obj == nil {
		return nil
	}
	result := map[string]interface{}{}
	for _, prop := range strings.Split(props, ",") {
		prop = strings.TrimSpace(prop)
		if v, ok := obj[prop]; ok && prop != "" {
			result[prop] = v
		}
	}
	return result
}

// Decode converts a loosely typed value (usually a decoded JSON object)
// into out by round-tripping it through JSON.
func Decode(in interface{}, out interface{}) error {
	raw, err := json.Marshal(in)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}
