package worker

import (
	"strings"
)

// JobError - Job 처리 실패 분류
type JobError struct {
	Code      string // provider_rejected | rate_limited | network | internal
	Message   string
	Permanent bool // true면 재시도 없이 즉시 실패 처리
}

func (e *JobError) Error() string {
	return e.Message
}

// classifyError - Provider 에러를 재시도 가능 여부로 분류
func classifyError(err error) *JobError {
	if err == nil {
		return nil
	}

	msg := err.Error()
	lower := strings.ToLower(msg)

	// 안전 필터 / 잘못된 요청 - 재시도해도 결과가 같음
	if strings.Contains(lower, "safety") ||
		strings.Contains(lower, "blocked") ||
		strings.Contains(lower, "invalid argument") ||
		strings.Contains(msg, "400") {
		return &JobError{Code: "provider_rejected", Message: msg, Permanent: true}
	}

	// Rate limit - 재시도 대상
	if strings.Contains(msg, "429") ||
		strings.Contains(lower, "rate limit") ||
		strings.Contains(lower, "quota") {
		return &JobError{Code: "rate_limited", Message: msg, Permanent: false}
	}

	// 네트워크/일시 장애 - 재시도 대상
	return &JobError{Code: "network", Message: msg, Permanent: false}
}
