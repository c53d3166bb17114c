package request

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"lambdakit/lib/models"
	"lambdakit/lib/util"
)

// Extractor reads named parameters from an Event. Lookup order is headers
// (case-insensitive), path parameters, body (dotted names descend into
// nested objects), then the query string; the first non-empty value wins.
type Extractor struct {
	Logger *logrus.Logger
}

// NewExtractor returns an Extractor logging to logger.
func NewExtractor(logger *logrus.Logger) *Extractor {
	return &Extractor{Logger: logger}
}

// GetPropValue returns the raw value of name, or defaultValue.
func (x *Extractor) GetPropValue(evt *models.Event, name string, defaultValue interface{}) interface{} {
	if evt == nil || name == "" {
		return defaultValue
	}
	if v, ok := headerValue(evt.Headers, name); ok {
		return v
	}
	if v, ok := evt.Path[name]; ok && v != "" {
		return v
	}
	if v, ok := bodyValue(evt.Body, name); ok {
		return v
	}
	if v, ok := evt.Query[name]; ok && v != "" {
		return v
	}
	return defaultValue
}

// GetStringValue returns name as a string; non-string values are formatted.
func (x *Extractor) GetStringValue(evt *models.Event, name, defaultValue string) string {
	switch v := x.GetPropValue(evt, name, nil).(type) {
	case nil:
		return defaultValue
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

// GetIntValue reads name as an integer, falling back to defaultValue.
// Strings are read up to the first non-digit ("12abc" is 12, "3.9" is 3).
// Values outside the int range are clamped.
func (x *Extractor) GetIntValue(evt *models.Event, name string, defaultValue int) int {
	switch v := x.GetPropValue(evt, name, nil).(type) {
	case float64:
		if math.IsNaN(v) {
			return defaultValue
		}
		return clampInt(v)
	case string:
		if n, ok := leadingInt(v); ok {
			return n
		}
	}
	return defaultValue
}

// leadingInt parses the optional sign and digits at the start of s.
func leadingInt(s string) (int, bool) {
	s = strings.TrimSpace(s)
	end := 0
	if end < len(s) && (s[end] == '+' || s[end] == '-') {
		end++
	}
	digitsStart := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == digitsStart {
		return 0, false
	}
	// On overflow ParseInt returns the nearest bound, which is the clamp.
	n, _ := strconv.ParseInt(s[:end], 10, strconv.IntSize)
	return int(n), true
}

func clampInt(f float64) int {
	switch {
	case f >= math.MaxInt:
		return math.MaxInt
	case f <= math.MinInt:
		return math.MinInt
	}
	return int(f)
}

// GetFloatValue parses name as a float, falling back to defaultValue.
func (x *Extractor) GetFloatValue(evt *models.Event, name string, defaultValue float64) float64 {
	switch v := x.GetPropValue(evt, name, nil).(type) {
	case float64:
		return v
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// GetBooleanValue accepts true/false in any case, falling back to defaultValue.
func (x *Extractor) GetBooleanValue(evt *models.Event, name string, defaultValue bool) bool {
	switch v := x.GetPropValue(evt, name, nil).(type) {
	case bool:
		return v
	case string:
		switch strings.ToLower(v) {
		case "true":
			return true
		case "false":
			return false
		}
	}
	return defaultValue
}

// GetGUIDValue returns name when it is a GUID. A defaultValue that is not a
// GUID is replaced by "".
func (x *Extractor) GetGUIDValue(evt *models.Event, name, defaultValue string) string {
	if !util.IsGuid(defaultValue) {
		defaultValue = ""
	}
	if v, ok := x.GetPropValue(evt, name, nil).(string); ok && util.IsGuid(v) {
		return v
	}
	return defaultValue
}

// GetObjectValue returns name as an object, parsing JSON strings. Malformed
// JSON is logged and yields defaultValue.
func (x *Extractor) GetObjectValue(evt *models.Event, name string, defaultValue map[string]interface{}) map[string]interface{} {
	switch v := x.GetPropValue(evt, name, nil).(type) {
	case map[string]interface{}:
		return v
	case string:
		var obj map[string]interface{}
		if err := json.Unmarshal([]byte(v), &obj); err != nil {
			x.logMalformed("GetObjectValue", name, err)
			return defaultValue
		}
		return obj
	}
	return defaultValue
}

// GetArrayValue returns name as an array, parsing JSON strings. Malformed
// JSON is logged and yields defaultValue.
func (x *Extractor) GetArrayValue(evt *models.Event, name string, defaultValue []interface{}) []interface{} {
	switch v := x.GetPropValue(evt, name, nil).(type) {
	case []interface{}:
		return v
	case string:
		var arr []interface{}
		if err := json.Unmarshal([]byte(v), &arr); err != nil {
			x.logMalformed("GetArrayValue", name, err)
			return defaultValue
		}
		return arr
	}
	return defaultValue
}

func (x *Extractor) logMalformed(operation, name string, err error) {
	x.Logger.WithFields(logrus.Fields{
		"operation": operation,
		"name":      name,
		"error":     err.Error(),
	}).Error("Parameter is not valid JSON")
}

func headerValue(headers map[string]string, name string) (string, bool) {
	if v, ok := headers[name]; ok && v != "" {
		return v, true
	}
	for k, v := range headers {
		if strings.EqualFold(k, name) && v != "" {
			return v, true
		}
	}
	return "", false
}

func bodyValue(body map[string]interface{}, name string) (interface{}, bool) {
	if body == nil {
		return nil, false
	}
	if v, ok := body[name]; ok {
		return v, !isEmpty(v)
	}
	if !strings.Contains(name, ".") {
		return nil, false
	}
	var current interface{} = body
	for _, part := range strings.Split(name, ".") {
		obj, ok := current.(map[string]interface{})
		if !ok {
			return nil, false
		}
		if current, ok = obj[part]; !ok {
			return nil, false
		}
	}
	return current, !isEmpty(current)
}

func isEmpty(v interface{}) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	}
	return false
}
