package fallback

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"cooly-gen-server/modules/common/model"
)

func TestSafeString(t *testing.T) {
	assert.Equal(t, "hello", SafeString("hello", "fb"))
	assert.Equal(t, "hello", SafeString("  hello  ", "fb"))
	assert.Equal(t, "fb", SafeString("", "fb"))
	assert.Equal(t, "fb", SafeString("   ", "fb"))
	assert.Equal(t, "fb", SafeString(nil, "fb"))
	assert.Equal(t, "fb", SafeString(42, "fb"))
}

func TestSafeInt(t *testing.T) {
	assert.Equal(t, 3, SafeInt(3, 1))
	assert.Equal(t, 3, SafeInt(float64(3), 1))
	assert.Equal(t, 3, SafeInt("3", 1))
	assert.Equal(t, 1, SafeInt(0, 1))
	assert.Equal(t, 1, SafeInt(-5, 1))
	assert.Equal(t, 1, SafeInt("abc", 1))
	assert.Equal(t, 1, SafeInt(nil, 1))
}

func TestSafeOutputs(t *testing.T) {
	assert.Equal(t, 1, SafeOutputs(0))
	assert.Equal(t, 2, SafeOutputs(2))
	assert.Equal(t, 4, SafeOutputs(99))
}

func TestNormalizeParamsImage(t *testing.T) {
	got := NormalizeParams(model.GenerationParams{
		Prompt:  "  a red fox  ",
		Outputs: 0,
	}, model.JobTypeImage, "gemini-2.5-flash-image")

	assert.Equal(t, "a red fox", got.Prompt)
	assert.Equal(t, 1, got.Outputs)
	assert.Equal(t, "16:9", got.AspectRatio)
	assert.Empty(t, got.Resolution)
}

func TestNormalizeParamsModelDefault(t *testing.T) {
	// a request that names no model gets the configured one
	got := NormalizeParams(model.GenerationParams{Prompt: "a red fox"}, model.JobTypeImage, "gemini-2.5-flash-image")
	assert.Equal(t, "gemini-2.5-flash-image", got.Model)

	// an explicit model wins over the default
	got = NormalizeParams(model.GenerationParams{Prompt: "a red fox", Model: "custom-model"}, model.JobTypeImage, "gemini-2.5-flash-image")
	assert.Equal(t, "custom-model", got.Model)
}

func TestNormalizeParamsVideo(t *testing.T) {
	got := NormalizeParams(model.GenerationParams{
		Prompt:  "sunset timelapse",
		Outputs: 3,
	}, model.JobTypeVideo, "veo-3")

	// video always produces a single artifact
	assert.Equal(t, 1, got.Outputs)
	assert.Equal(t, "720p", got.Resolution)
	assert.Equal(t, "veo-3", got.Model)
}
