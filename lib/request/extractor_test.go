package request

import (
	"math"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"

	"lambdakit/lib/models"
)

const testGuid = "3f2504e0-4f89-11d3-9a0c-0305e82c3301"

func newEvent() *models.Event {
	return &models.Event{
		Headers: map[string]string{"Authorization": "header-token", "X-Empty": ""},
		Path:    map[string]string{"id": testGuid, "Authorization": "path-token"},
		Body: map[string]interface{}{
			"count":  float64(7),
			"ratio":  "0.25",
			"flag":   true,
			"nested": map[string]interface{}{"inner": map[string]interface{}{"value": "deep"}},
			"list":   []interface{}{"a", "b"},
			"blank":  "",
			"raw":    `{"k":"v"}`,
			"bad":    `{"k":`,
		},
		Query: map[string]string{"Authorization": "query-token", "X-Empty": "from-query", "page": "3", "yes": "TRUE"},
	}
}

func Test_GetPropValue_HeaderWinsOverQuery(t *testing.T) {
	//Arrange
	x := NewExtractor(logrus.New())

	//Act
	actual := x.GetStringValue(newEvent(), "authorization", "")

	//Assert
	assert.Equal(t, "header-token", actual)
}

func Test_GetPropValue_EmptyFallsThrough(t *testing.T) {
	x := NewExtractor(logrus.New())

	assert.Equal(t, "from-query", x.GetStringValue(newEvent(), "X-Empty", ""))
	assert.Equal(t, "fallback", x.GetStringValue(newEvent(), "blank", "fallback"))
}

func Test_GetPropValue_Defaults(t *testing.T) {
	x := NewExtractor(logrus.New())

	assert.Equal(t, "d", x.GetPropValue(nil, "anything", "d"))
	assert.Equal(t, "d", x.GetPropValue(newEvent(), "", "d"))
	assert.Equal(t, "d", x.GetStringValue(newEvent(), "missing", "d"))
}

func Test_GetPropValue_DottedBodyName(t *testing.T) {
	x := NewExtractor(logrus.New())

	assert.Equal(t, "deep", x.GetStringValue(newEvent(), "nested.inner.value", ""))
	assert.Equal(t, "none", x.GetStringValue(newEvent(), "nested.missing.value", "none"))
	assert.Equal(t, "none", x.GetStringValue(newEvent(), "count.value", "none"))
}

func Test_TypedExtractors(t *testing.T) {
	x := NewExtractor(logrus.New())
	evt := newEvent()

	assert.Equal(t, 7, x.GetIntValue(evt, "count", 0))
	assert.Equal(t, 3, x.GetIntValue(evt, "page", 0))
	assert.Equal(t, 9, x.GetIntValue(evt, "Authorization", 9))
	assert.Equal(t, 0.25, x.GetFloatValue(evt, "ratio", 0))
	assert.Equal(t, 7.0, x.GetFloatValue(evt, "count", 0))
	assert.True(t, x.GetBooleanValue(evt, "flag", false))
	assert.True(t, x.GetBooleanValue(evt, "yes", false))
	assert.True(t, x.GetBooleanValue(evt, "page", true))
	assert.Equal(t, "7", x.GetStringValue(evt, "count", ""))
}

func Test_GetIntValue_LeadingDigitsAndRange(t *testing.T) {
	x := NewExtractor(logrus.New())
	evt := &models.Event{
		Body: map[string]interface{}{
			"huge":     1e300,
			"tiny":     -1e300,
			"fraction": 12.9,
		},
		Query: map[string]string{
			"mixed":    "12abc",
			"decimal":  "3.9",
			"signed":   "  -7px",
			"letters":  "abc",
			"sign":     "-",
			"overflow": "99999999999999999999999",
		},
	}

	assert.Equal(t, 12, x.GetIntValue(evt, "mixed", 0))
	assert.Equal(t, 3, x.GetIntValue(evt, "decimal", 0))
	assert.Equal(t, -7, x.GetIntValue(evt, "signed", 0))
	assert.Equal(t, 5, x.GetIntValue(evt, "letters", 5))
	assert.Equal(t, 5, x.GetIntValue(evt, "sign", 5))
	assert.Equal(t, math.MaxInt, x.GetIntValue(evt, "overflow", 0))
	assert.Equal(t, math.MaxInt, x.GetIntValue(evt, "huge", 0))
	assert.Equal(t, math.MinInt, x.GetIntValue(evt, "tiny", 0))
	assert.Equal(t, 12, x.GetIntValue(evt, "fraction", 0))
}

func Test_GetGUIDValue(t *testing.T) {
	x := NewExtractor(logrus.New())
	evt := newEvent()

	assert.Equal(t, testGuid, x.GetGUIDValue(evt, "id", ""))
	assert.Equal(t, "", x.GetGUIDValue(evt, "Authorization", "not-a-guid"))
	assert.Equal(t, testGuid, x.GetGUIDValue(evt, "missing", testGuid))
}

func Test_GetObjectAndArrayValue(t *testing.T) {
	logger, hook := test.NewNullLogger()
	x := NewExtractor(logger)
	evt := newEvent()

	assert.Equal(t, "deep", x.GetObjectValue(evt, "nested", nil)["inner"].(map[string]interface{})["value"])
	assert.Equal(t, map[string]interface{}{"k": "v"}, x.GetObjectValue(evt, "raw", nil))
	assert.Equal(t, []interface{}{"a", "b"}, x.GetArrayValue(evt, "list", nil))

	def := map[string]interface{}{"default": true}
	assert.Equal(t, def, x.GetObjectValue(evt, "bad", def))
	assert.Equal(t, logrus.ErrorLevel, hook.LastEntry().Level)
	assert.Equal(t, "bad", hook.LastEntry().Data["name"])

	assert.Nil(t, x.GetArrayValue(evt, "bad", nil))
	assert.Len(t, hook.AllEntries(), 2)
}
