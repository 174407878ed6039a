package redis

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"cooly-gen-server/modules/common/config"
)

// Connect - Redis 연결 생성
func Connect(cfg *config.Config) *redis.Client {
	log.Printf("🔌 Connecting to Redis: %s", cfg.GetRedisAddr())

	// TLS 설정 (InsecureSkipVerify 추가)
	var tlsConfig *tls.Config
	if cfg.RedisUseTLS {
		tlsConfig = &tls.Config{
			MinVersion:         tls.VersionTLS12,
			InsecureSkipVerify: true, // Render.com Redis용
		}
	}

	// Redis 클라이언트 생성
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.GetRedisAddr(),
		Username:     cfg.RedisUsername,
		Password:     cfg.RedisPassword,
		TLSConfig:    tlsConfig,
		DB:           0,                // 기본 DB
		DialTimeout:  10 * time.Second, // 타임아웃 늘림
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	})

	// 연결 테스트
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	log.Printf("🔍 Testing Redis connection...")
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Printf("❌ Redis ping failed: %v", err)
		return nil
	}

	return rdb
}

// SetJobCancelled - Job 취소 플래그 설정 (1시간 TTL)
func SetJobCancelled(rdb *redis.Client, jobID string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	key := fmt.Sprintf("jobs:cancel:%s", jobID)
	if err := rdb.Set(ctx, key, "1", time.Hour).Err(); err != nil {
		return fmt.Errorf("failed to set cancel flag: %w", err)
	}
	return nil
}

// IsJobCancelled - Job 취소 플래그 확인
func IsJobCancelled(rdb *redis.Client, jobID string) bool {
	if rdb == nil {
		return false
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	key := fmt.Sprintf("jobs:cancel:%s", jobID)
	val, err := rdb.Get(ctx, key).Result()
	if err == redis.Nil {
		return false
	}
	if err != nil {
		log.Printf("⚠️ Failed to read cancel flag for %s: %v", jobID, err)
		return false
	}
	return val == "1"
}

// SetSessionProgress - 세션별 진행률 캐시 저장 (슬롯당 0~100)
func SetSessionProgress(rdb *redis.Client, sessionID string, progress []int) error {
	if rdb == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	data, err := json.Marshal(progress)
	if err != nil {
		return fmt.Errorf("failed to marshal progress: %w", err)
	}

	key := fmt.Sprintf("progress:%s", sessionID)
	if err := rdb.Set(ctx, key, data, 30*time.Minute).Err(); err != nil {
		return fmt.Errorf("failed to cache progress: %w", err)
	}
	return nil
}

// GetSessionProgress - 세션별 진행률 캐시 조회 (없으면 빈 배열)
func GetSessionProgress(rdb *redis.Client, sessionID string) ([]int, error) {
	if rdb == nil {
		return []int{}, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	key := fmt.Sprintf("progress:%s", sessionID)
	data, err := rdb.Get(ctx, key).Result()
	if err == redis.Nil {
		return []int{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read progress cache: %w", err)
	}

	var progress []int
	if err := json.Unmarshal([]byte(data), &progress); err != nil {
		return nil, fmt.Errorf("failed to parse progress cache: %w", err)
	}
	return progress, nil
}
