package dubtrack

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestProjectFields(t *testing.T) {
	src := map[string]any{
		"keep":    "yes",
		"skipped": "no",
		"null":    nil,
	}
	dst := make(map[string]any)
	projectFields(src, excludeSet("skipped"), dst)

	assert.Equal(t, map[string]any{"keep": "yes", "null": nil}, dst)
}

func TestDeepCopyMapIndependence(t *testing.T) {
	src := map[string]any{
		"scalar": "a",
		"nested": map[string]any{"inner": "x"},
		"list":   []any{map[string]any{"i": float64(1)}},
	}
	cp := deepCopyMap(src)

	src["nested"].(map[string]any)["inner"] = "mutated"
	src["list"].([]any)[0].(map[string]any)["i"] = float64(99)

	assert.Equal(t, "x", cp["nested"].(map[string]any)["inner"])
	assert.Equal(t, float64(1), cp["list"].([]any)[0].(map[string]any)["i"])
}

func TestCoerceTime(t *testing.T) {
	want := time.UnixMilli(1500000000000)

	tests := []struct {
		name string
		in   any
		want time.Time
	}{
		{"float millis", float64(1500000000000), want},
		{"int64 millis", int64(1500000000000), want},
		{"string millis", "1500000000000", want},
		{"rfc3339", "2017-07-14T02:40:00Z", time.Date(2017, 7, 14, 2, 40, 0, 0, time.UTC)},
		{"garbage", "not-a-time", time.Time{}},
		{"nil", nil, time.Time{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := coerceTime(tt.in)
			assert.True(t, got.Equal(tt.want), "got %v want %v", got, tt.want)
		})
	}
}

func TestPayloadString(t *testing.T) {
	p := map[string]any{"_id": "abc", "count": float64(7)}

	assert.Equal(t, "abc", payloadString(p, "id", "_id"))
	assert.Equal(t, "7", payloadString(p, "count"))
	assert.Equal(t, "", payloadString(p, "missing"))
}
