package fallback

import (
	"encoding/json"
	"strconv"
	"strings"

	"cooly-gen-server/modules/common/model"
)

const (
	defaultAspectRatio = "16:9"
	defaultResolution  = "720p"
	maxOutputs         = 4
)

// SafeString returns a trimmed string or the provided fallback.
func SafeString(value interface{}, fallback string) string {
	if s, ok := value.(string); ok {
		s = strings.TrimSpace(s)
		if s != "" {
			return s
		}
	}
	return fallback
}

// SafeInt converts common number shapes into int with a fallback.
func SafeInt(value interface{}, fallback int) int {
	switch v := value.(type) {
	case float64:
		if v > 0 {
			return int(v)
		}
	case float32:
		if v > 0 {
			return int(v)
		}
	case int:
		if v > 0 {
			return v
		}
	case int64:
		if v > 0 {
			return int(v)
		}
	case json.Number:
		if n, err := strconv.Atoi(v.String()); err == nil && n > 0 {
			return n
		}
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}

// SafeAspectRatio provides a sane default aspect ratio.
func SafeAspectRatio(value interface{}) string {
	return SafeString(value, defaultAspectRatio)
}

// SafeOutputs clamps the requested artifact count to 1..maxOutputs.
func SafeOutputs(value interface{}) int {
	n := SafeInt(value, 1)
	if n < 1 {
		n = 1
	}
	if n > maxOutputs {
		n = maxOutputs
	}
	return n
}

// NormalizeParams fills missing generation parameters with safe defaults
// so that workers never see a half-formed payload. defaultModel is the
// configured model for the job type, used when the request names none.
func NormalizeParams(p model.GenerationParams, jobType string, defaultModel string) model.GenerationParams {
	normalized := model.GenerationParams{
		Prompt:      strings.TrimSpace(p.Prompt),
		Model:       SafeString(p.Model, defaultModel),
		Outputs:     SafeOutputs(p.Outputs),
		AspectRatio: SafeAspectRatio(p.AspectRatio),
	}

	if jobType == model.JobTypeVideo {
		normalized.Resolution = SafeString(p.Resolution, defaultResolution)
		// video jobs always produce a single artifact
		normalized.Outputs = 1
	}

	return normalized
}
