package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"cooly-gen-server/modules/common/config"
	"cooly-gen-server/modules/common/credit"
	"cooly-gen-server/modules/common/database"
	redisClient "cooly-gen-server/modules/common/redis"
	"cooly-gen-server/modules/events"
	"cooly-gen-server/modules/generate"
	"cooly-gen-server/modules/queue"
	"cooly-gen-server/modules/worker"
)

func main() {
	// 1. 설정 로드
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("❌ Failed to load config: %v", err)
	}

	// 2. Redis 연결 (queue backend가 sqs여도 취소 플래그/진행률 캐시에 사용)
	rdb := redisClient.Connect(cfg)
	if rdb == nil && cfg.QueueBackend == "redis" {
		log.Fatal("❌ Redis connection required for redis queue backend")
	}

	// 3. Supabase 클라이언트
	db := database.NewClient()
	if db == nil {
		log.Fatal("❌ Failed to create database client")
	}

	creditClient := credit.NewClient()
	if creditClient == nil {
		log.Fatal("❌ Failed to create credit client")
	}

	// 4. Queue 백엔드 선택
	q, err := queue.New(cfg, rdb)
	if err != nil {
		log.Fatalf("❌ Failed to create queue: %v", err)
	}
	defer q.Close()

	// 5. Events Hub (websocket push)
	hub := events.NewHub()

	// 6. Worker 시작
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w := worker.NewWorker(db, creditClient, q, rdb, hub)
	go w.Run(ctx)

	// 7. 라우터 설정
	r := mux.NewRouter()

	generateService := generate.NewService(db, creditClient, q, rdb, hub)
	generateHandler := generate.NewHandler(generateService)
	generateHandler.RegisterRoutes(r)
	hub.RegisterRoutes(r)

	// Health check
	r.HandleFunc("/health", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status": "ok",
			"queue":  cfg.QueueBackend,
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	}).Methods("GET")

	// 8. 서버 시작
	addr := ":" + cfg.Port
	log.Printf("🚀 Server starting on %s", addr)

	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
	}

	if err := srv.ListenAndServe(); err != nil {
		log.Fatalf("❌ Server failed: %v", err)
	}
}
