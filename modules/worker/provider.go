package worker

import (
	"context"
	"fmt"
	"log"
	"time"

	vgenai "cloud.google.com/go/vertexai/genai"
	"google.golang.org/genai"

	"cooly-gen-server/modules/common/gemini"
	"cooly-gen-server/modules/common/model"
	redisClient "cooly-gen-server/modules/common/redis"
	"cooly-gen-server/modules/common/utils"
	"cooly-gen-server/modules/common/vertexai"
)

// generateImages - Gemini로 슬롯별 이미지 생성 후 업로드
func (w *Worker) generateImages(ctx context.Context, job *model.GenerationJob) ([]string, error) {
	outputs := job.Params.Outputs
	if outputs < 1 {
		outputs = 1
	}

	// 정규화 전에 적재된 구형 job 대비
	modelName := job.Params.Model
	if modelName == "" {
		modelName = w.cfg.GeminiModel
	}

	progress := make([]int, outputs)
	urls := []string{}

	for slot := 0; slot < outputs; slot++ {
		// 슬롯 시작 전 취소 확인
		if redisClient.IsJobCancelled(w.rdb, job.JobID) {
			return urls, fmt.Errorf("job cancelled")
		}

		log.Printf("🎨 [Worker] Generating image %d/%d for session %s", slot+1, outputs, job.SessionID)

		progress[slot] = 10
		w.writeProgress(job.SessionID, progress)

		content := &genai.Content{
			Parts: []*genai.Part{
				genai.NewPartFromText(job.Params.Prompt),
			},
		}

		result, err := gemini.GenerateContentWithRetry(
			ctx,
			w.cfg.GeminiAPIKeys,
			modelName,
			[]*genai.Content{content},
			&genai.GenerateContentConfig{
				ImageConfig: &genai.ImageConfig{
					AspectRatio: job.Params.AspectRatio,
				},
			},
		)
		if err != nil {
			return urls, err
		}

		progress[slot] = 70
		w.writeProgress(job.SessionID, progress)

		imageData, err := extractImageBytes(result)
		if err != nil {
			return urls, err
		}

		// WebP 변환 후 업로드 (실패 시 PNG 원본 업로드)
		uploadData := imageData
		ext := "png"
		contentType := "image/png"
		if webpData, err := utils.ConvertPNGToWebP(imageData, 80); err == nil {
			uploadData = webpData
			ext = "webp"
			contentType = "image/webp"
		} else {
			log.Printf("⚠️ [Worker] WebP conversion failed, uploading PNG: %v", err)
		}

		path := fmt.Sprintf("%s/%s/%d_%d.%s", job.UserID, job.SessionID, slot, time.Now().UnixMilli(), ext)
		url, err := w.db.UploadArtifact(ctx, path, uploadData, contentType)
		if err != nil {
			return urls, err
		}

		urls = append(urls, url)
		progress[slot] = 100
		w.writeProgress(job.SessionID, progress)
	}

	return urls, nil
}

// generateVideo - Vertex AI로 비디오 생성 후 업로드
func (w *Worker) generateVideo(ctx context.Context, job *model.GenerationJob) ([]string, error) {
	log.Printf("🎬 [Worker] Generating video for session %s (model: %s)", job.SessionID, w.cfg.VideoModel)

	w.writeProgress(job.SessionID, []int{10})

	client, err := vertexai.NewVertexAIClient(ctx, w.cfg.VertexAIProject, w.cfg.VertexAILocation)
	if err != nil {
		return nil, err
	}
	defer client.Close()

	genModel := client.GenerativeModel(w.cfg.VideoModel)

	result, err := genModel.GenerateContent(ctx, vgenai.Text(job.Params.Prompt))
	if err != nil {
		return nil, err
	}

	w.writeProgress(job.SessionID, []int{70})

	if len(result.Candidates) == 0 {
		return nil, fmt.Errorf("no candidates in video response")
	}

	var videoData []byte
	for _, candidate := range result.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if blob, ok := part.(vgenai.Blob); ok && len(blob.Data) > 0 {
				videoData = blob.Data
				break
			}
		}
	}

	if len(videoData) == 0 {
		return nil, fmt.Errorf("no video data in response")
	}

	log.Printf("✅ [Worker] Received video from Vertex AI: %d bytes", len(videoData))

	path := fmt.Sprintf("%s/%s/%d.mp4", job.UserID, job.SessionID, time.Now().UnixMilli())
	url, err := w.db.UploadArtifact(ctx, path, videoData, "video/mp4")
	if err != nil {
		return nil, err
	}

	w.writeProgress(job.SessionID, []int{100})
	return []string{url}, nil
}

// writeProgress - 진행률 캐시 기록 (폴링 응답용)
func (w *Worker) writeProgress(sessionID string, progress []int) {
	if err := redisClient.SetSessionProgress(w.rdb, sessionID, progress); err != nil {
		log.Printf("⚠️ [Worker] Failed to cache progress for %s: %v", sessionID, err)
	}
}

// extractImageBytes - Gemini 응답에서 이미지 바이너리 추출
func extractImageBytes(result *genai.GenerateContentResponse) ([]byte, error) {
	if len(result.Candidates) == 0 {
		return nil, fmt.Errorf("no candidates in response")
	}

	for _, candidate := range result.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			// 이미지는 InlineData로 반환됨
			if part.InlineData != nil && len(part.InlineData.Data) > 0 {
				log.Printf("✅ Received image from Gemini: %d bytes", len(part.InlineData.Data))
				return part.InlineData.Data, nil
			}
		}
	}

	return nil, fmt.Errorf("no image data in response")
}
