package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config 구조체 - 모든 환경변수를 담음
type Config struct {
	// Queue (redis | sqs | memory)
	QueueBackend    string
	SQSMainQueueURL string
	SQSDLQQueueURL  string
	AWSRegion       string

	// Redis
	RedisHost     string
	RedisPort     string
	RedisUsername string
	RedisPassword string
	RedisUseTLS   bool

	// Supabase
	SupabaseURL            string
	SupabaseServiceKey     string
	SupabaseStorageBucket  string
	SupabaseStorageBaseURL string

	// Gemini API (이미지 생성)
	GeminiAPIKeys []string
	GeminiModel   string

	// Vertex AI (비디오 생성)
	VertexAIProject  string
	VertexAILocation string
	VideoModel       string

	// Server
	Port string

	// Credit
	ImagePerPrice         int
	VideoPerPrice         int
	ReservationTTLSeconds int

	// Worker
	WorkerConcurrency int
	MaxJobAttempts    int
	RetryBackoffBase  time.Duration
}

var globalConfig *Config

// LoadConfig - 환경변수 로드
func LoadConfig() (*Config, error) {
	// .env 파일 로드 (있으면)
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  .env file not found, using environment variables")
	}

	// Redis UseTLS 파싱
	useTLS := true // 기본값
	if tlsStr := os.Getenv("REDIS_USE_TLS"); tlsStr != "" {
		if parsed, err := strconv.ParseBool(tlsStr); err == nil {
			useTLS = parsed
		}
	}

	// Queue backend 선택 (SQS URL이 있으면 sqs, 없으면 redis)
	queueBackend := getEnv("QUEUE_BACKEND", "")
	sqsMainURL := getEnv("SQS_MAIN_QUEUE_URL", "")
	if queueBackend == "" {
		if sqsMainURL != "" {
			queueBackend = "sqs"
		} else {
			queueBackend = "redis"
		}
	}

	globalConfig = &Config{
		// Queue
		QueueBackend:    queueBackend,
		SQSMainQueueURL: sqsMainURL,
		SQSDLQQueueURL:  getEnv("SQS_DLQ_QUEUE_URL", ""),
		AWSRegion:       getEnv("AWS_REGION", "us-west-2"),

		// Redis
		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisUsername: getEnv("REDIS_USERNAME", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisUseTLS:   useTLS,

		// Supabase
		SupabaseURL:            getEnv("SUPABASE_URL", ""),
		SupabaseServiceKey:     getEnv("SUPABASE_SERVICE_KEY", ""),
		SupabaseStorageBucket:  getEnv("SUPABASE_STORAGE_BUCKET", "generations"),
		SupabaseStorageBaseURL: getEnv("SUPABASE_STORAGE_BASE_URL", ""),

		// Gemini
		GeminiAPIKeys: splitKeys(getEnv("GEMINI_API_KEYS", os.Getenv("GEMINI_API_KEY"))),
		GeminiModel:   getEnv("GEMINI_MODEL", "gemini-2.5-flash-image"),

		// Vertex AI
		VertexAIProject:  getEnv("VERTEXAI_PROJECT", ""),
		VertexAILocation: getEnv("VERTEXAI_LOCATION", "us-central1"),
		VideoModel:       getEnv("VIDEO_MODEL", "veo-3.0-generate-preview"),

		// Server
		Port: getEnv("PORT", "8080"),

		// Credit
		ImagePerPrice:         getEnvInt("IMAGE_PER_PRICE", 1),
		VideoPerPrice:         getEnvInt("VIDEO_PER_PRICE", 10),
		ReservationTTLSeconds: getEnvInt("RESERVATION_TTL_SECONDS", 600),

		// Worker
		WorkerConcurrency: clampInt(getEnvInt("GEN_WORKER_CONCURRENCY", 5), 1, 10),
		MaxJobAttempts:    clampInt(getEnvInt("MAX_JOB_ATTEMPTS", 3), 1, 10),
		RetryBackoffBase:  time.Duration(getEnvInt("RETRY_BACKOFF_BASE_MS", 2000)) * time.Millisecond,
	}

	// 필수 환경변수 검증
	if err := globalConfig.validate(); err != nil {
		return nil, err
	}

	log.Println("✅ Configuration loaded successfully")
	log.Printf("   Queue: %s", globalConfig.QueueBackend)
	log.Printf("   Redis: %s:%s (TLS: %v)", globalConfig.RedisHost, globalConfig.RedisPort, globalConfig.RedisUseTLS)
	log.Printf("   Supabase: %s", globalConfig.SupabaseURL)
	log.Printf("   Gemini: %s (%d keys)", globalConfig.GeminiModel, len(globalConfig.GeminiAPIKeys))
	log.Printf("   Credit: %d per image, %d per video", globalConfig.ImagePerPrice, globalConfig.VideoPerPrice)

	return globalConfig, nil
}

// GetConfig - 로드된 설정 가져오기
func GetConfig() *Config {
	if globalConfig == nil {
		log.Fatal("❌ Config not loaded. Call LoadConfig() first.")
	}
	return globalConfig
}

// validate - 필수 환경변수 검증
func (c *Config) validate() error {
	if c.QueueBackend == "redis" && c.RedisHost == "" {
		return fmt.Errorf("REDIS_HOST is required")
	}
	if c.QueueBackend == "sqs" && c.SQSMainQueueURL == "" {
		return fmt.Errorf("SQS_MAIN_QUEUE_URL is required")
	}
	if c.SupabaseURL == "" {
		return fmt.Errorf("SUPABASE_URL is required")
	}
	if c.SupabaseServiceKey == "" {
		return fmt.Errorf("SUPABASE_SERVICE_KEY is required")
	}
	if len(c.GeminiAPIKeys) == 0 {
		return fmt.Errorf("GEMINI_API_KEYS is required")
	}
	return nil
}

// getEnv - 환경변수 가져오기 (기본값 지원)
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt - 숫자 환경변수 파싱 (기본값 지원)
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func clampInt(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// splitKeys - 콤마로 구분된 API 키 리스트 파싱
func splitKeys(raw string) []string {
	var keys []string
	for _, k := range strings.Split(raw, ",") {
		k = strings.TrimSpace(k)
		if k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}

// GetRedisAddr - Redis 연결 문자열 생성
func (c *Config) GetRedisAddr() string {
	return fmt.Sprintf("%s:%s", c.RedisHost, c.RedisPort)
}
