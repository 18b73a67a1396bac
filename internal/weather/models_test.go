package weather_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/movilityai/movility/internal/weather"
)

func TestConditionProbability(t *testing.T) {
	tests := []struct {
		condition weather.Condition
		expected  float64
	}{
		{weather.ConditionClear, 5},
		{weather.ConditionClouds, 30},
		{weather.ConditionRain, 85},
		{weather.ConditionDrizzle, 85},
		{weather.ConditionThunderstorm, 85},
		{weather.ConditionSnow, 85},
		{weather.ConditionMist, 20},
		{weather.ConditionUnknown, 20},
	}

	for _, tt := range tests {
		t.Run(string(tt.condition), func(t *testing.T) {
			assert.InDelta(t, tt.expected, weather.ConditionProbability(tt.condition), 1e-9)
		})
	}
}

func TestCondition_IsWet(t *testing.T) {
	assert.True(t, weather.ConditionRain.IsWet())
	assert.True(t, weather.ConditionThunderstorm.IsWet())
	assert.False(t, weather.ConditionDrizzle.IsWet())
	assert.False(t, weather.ConditionClear.IsWet())
}

func TestError(t *testing.T) {
	err := &weather.Error{Provider: "owm", Code: "HTTP_503", Message: "down", Err: weather.ErrProviderUnavailable}

	assert.True(t, errors.Is(err, weather.ErrProviderUnavailable))
	assert.True(t, err.IsRetryable())
	assert.Contains(t, err.Error(), "owm: down")

	notRetryable := &weather.Error{Provider: "owm", Message: "bad key"}
	assert.False(t, notRetryable.IsRetryable())
	assert.Equal(t, "owm: bad key", notRetryable.Error())
}
