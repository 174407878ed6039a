package credit

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/supabase-community/supabase-go"

	"cooly-gen-server/modules/common/config"
	"cooly-gen-server/modules/common/model"
)

type Client struct {
	supabase *supabase.Client
}

// ReserveResult - 예약 결과
type ReserveResult struct {
	ReservationID string
	Amount        int
	AlreadyExists bool // 같은 client_key로 이미 예약된 경우
}

// NewClient - Credit 클라이언트 생성
func NewClient() *Client {
	cfg := config.GetConfig()

	supabaseClient, err := supabase.NewClient(cfg.SupabaseURL, cfg.SupabaseServiceKey, &supabase.ClientOptions{})
	if err != nil {
		log.Printf("❌ Failed to create Supabase client: %v", err)
		return nil
	}

	return &Client{
		supabase: supabaseClient,
	}
}

// GetAvailableCredits - 사용 가능 크레딧 조회 (잔액 - 살아있는 예약)
func (c *Client) GetAvailableCredits(ctx context.Context, userID string) (int, error) {
	balance, err := c.fetchBalance(userID)
	if err != nil {
		return 0, err
	}

	reserved, err := c.fetchReservedTotal(userID)
	if err != nil {
		return 0, err
	}

	available := balance - reserved
	if available < 0 {
		available = 0
	}
	return available, nil
}

// ReserveCredits - 크레딧 예약 (client_key당 1회만, soft hold)
func (c *Client) ReserveCredits(ctx context.Context, userID string, amount int, clientKey string, description string) (*ReserveResult, error) {
	cfg := config.GetConfig()

	// 1. 같은 client_key로 살아있는 예약이 있으면 재사용 (중복 예약 금지)
	if clientKey != "" {
		existing, err := c.findActiveReservationByClientKey(userID, clientKey)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			log.Printf("💰 Reservation already exists for client_key %s: %s", clientKey, existing.ReservationID)
			return &ReserveResult{
				ReservationID: existing.ReservationID,
				Amount:        existing.Amount,
				AlreadyExists: true,
			}, nil
		}
	}

	// 2. 사용 가능 크레딧 확인
	available, err := c.GetAvailableCredits(ctx, userID)
	if err != nil {
		return nil, err
	}
	if available < amount {
		return nil, fmt.Errorf("insufficient credits: available=%d, required=%d", available, amount)
	}

	// 3. 예약 레코드 생성
	reservationID := uuid.NewString()
	expiresAt := time.Now().UTC().Add(time.Duration(cfg.ReservationTTLSeconds) * time.Second)

	insertData := map[string]interface{}{
		"reservation_id": reservationID,
		"user_id":        userID,
		"amount":         amount,
		"status":         model.ReservationReserved,
		"client_key":     nullableString(clientKey),
		"description":    description,
		"expires_at":     expiresAt.Format(time.RFC3339),
	}

	_, _, err = c.supabase.From("credit_reservations").
		Insert(insertData, false, "", "", "").
		Execute()

	if err != nil {
		return nil, fmt.Errorf("failed to insert reservation: %w", err)
	}

	log.Printf("💰 Reserved %d credits for user %s (reservation: %s)", amount, userID, reservationID)
	return &ReserveResult{ReservationID: reservationID, Amount: amount}, nil
}

// CaptureReservation - 예약 확정 (잔액 차감 + 트랜잭션 기록, 1회만)
func (c *Client) CaptureReservation(ctx context.Context, reservationID string, sessionID string) error {
	reservation, err := c.fetchReservation(reservationID)
	if err != nil {
		return err
	}

	// 이미 처리된 예약은 건너뜀 (exactly-once)
	if reservation.Status != model.ReservationReserved {
		log.Printf("⚠️ Reservation %s already %s, skipping capture", reservationID, reservation.Status)
		return nil
	}

	// 1. 예약 상태 전이 (reserved → captured)
	_, _, err = c.supabase.From("credit_reservations").
		Update(map[string]interface{}{
			"status":     model.ReservationCaptured,
			"session_id": sessionID,
		}, "", "").
		Eq("reservation_id", reservationID).
		Eq("status", model.ReservationReserved).
		Execute()

	if err != nil {
		return fmt.Errorf("failed to capture reservation: %w", err)
	}

	// 2. 잔액 차감
	balance, err := c.fetchBalance(reservation.UserID)
	if err != nil {
		return err
	}
	newBalance := balance - reservation.Amount

	log.Printf("💰 Credit balance: %d → %d (-%d)", balance, newBalance, reservation.Amount)

	_, _, err = c.supabase.From("members").
		Update(map[string]interface{}{"credits": newBalance}, "", "").
		Eq("user_id", reservation.UserID).
		Execute()

	if err != nil {
		return fmt.Errorf("failed to debit credits: %w", err)
	}

	// 3. 트랜잭션 기록
	transactionData := map[string]interface{}{
		"user_id":          reservation.UserID,
		"transaction_type": "CAPTURE",
		"amount":           -reservation.Amount,
		"balance_after":    newBalance,
		"description":      "Generation completed",
		"reservation_id":   reservationID,
		"session_id":       sessionID,
	}

	_, _, err = c.supabase.From("credit_transactions").
		Insert(transactionData, false, "", "", "").
		Execute()

	if err != nil {
		log.Printf("⚠️ Failed to record capture transaction for %s: %v", reservationID, err)
	}

	log.Printf("✅ Reservation %s captured (%d credits)", reservationID, reservation.Amount)
	return nil
}

// ReleaseReservation - 예약 해제 (환불, 1회만)
func (c *Client) ReleaseReservation(ctx context.Context, reservationID string) error {
	reservation, err := c.fetchReservation(reservationID)
	if err != nil {
		return err
	}

	// 이미 처리된 예약은 건너뜀 (이중 환불 금지)
	if reservation.Status != model.ReservationReserved {
		log.Printf("⚠️ Reservation %s already %s, skipping release", reservationID, reservation.Status)
		return nil
	}

	_, _, err = c.supabase.From("credit_reservations").
		Update(map[string]interface{}{"status": model.ReservationReleased}, "", "").
		Eq("reservation_id", reservationID).
		Eq("status", model.ReservationReserved).
		Execute()

	if err != nil {
		return fmt.Errorf("failed to release reservation: %w", err)
	}

	log.Printf("✅ Reservation %s released (%d credits back to user %s)",
		reservationID, reservation.Amount, reservation.UserID)
	return nil
}

// fetchBalance - members 테이블에서 잔액 조회
func (c *Client) fetchBalance(userID string) (int, error) {
	var members []struct {
		Credits int `json:"credits"`
	}

	data, _, err := c.supabase.From("members").
		Select("credits", "", false).
		Eq("user_id", userID).
		Execute()

	if err != nil {
		return 0, fmt.Errorf("failed to fetch user credits: %w", err)
	}

	if err := json.Unmarshal(data, &members); err != nil {
		return 0, fmt.Errorf("failed to parse member data: %w", err)
	}

	if len(members) == 0 {
		return 0, fmt.Errorf("user not found: %s", userID)
	}

	return members[0].Credits, nil
}

// fetchReservedTotal - 살아있는 예약 합계 조회
func (c *Client) fetchReservedTotal(userID string) (int, error) {
	var reservations []model.CreditReservation

	data, _, err := c.supabase.From("credit_reservations").
		Select("*", "", false).
		Eq("user_id", userID).
		Eq("status", model.ReservationReserved).
		Execute()

	if err != nil {
		return 0, fmt.Errorf("failed to fetch reservations: %w", err)
	}

	if err := json.Unmarshal(data, &reservations); err != nil {
		return 0, fmt.Errorf("failed to parse reservations: %w", err)
	}

	now := time.Now().UTC()
	total := 0
	for _, r := range reservations {
		// 만료된 예약은 잔액을 잡아두지 않음
		if r.ExpiresAt != nil && r.ExpiresAt.Before(now) {
			continue
		}
		total += r.Amount
	}
	return total, nil
}

// fetchReservation - 예약 단건 조회
func (c *Client) fetchReservation(reservationID string) (*model.CreditReservation, error) {
	var reservations []model.CreditReservation

	data, _, err := c.supabase.From("credit_reservations").
		Select("*", "", false).
		Eq("reservation_id", reservationID).
		Execute()

	if err != nil {
		return nil, fmt.Errorf("failed to fetch reservation: %w", err)
	}

	if err := json.Unmarshal(data, &reservations); err != nil {
		return nil, fmt.Errorf("failed to parse reservation: %w", err)
	}

	if len(reservations) == 0 {
		return nil, fmt.Errorf("reservation not found: %s", reservationID)
	}

	return &reservations[0], nil
}

// findActiveReservationByClientKey - client_key로 살아있는 예약 조회
func (c *Client) findActiveReservationByClientKey(userID, clientKey string) (*model.CreditReservation, error) {
	var reservations []model.CreditReservation

	data, _, err := c.supabase.From("credit_reservations").
		Select("*", "", false).
		Eq("user_id", userID).
		Eq("client_key", clientKey).
		Execute()

	if err != nil {
		return nil, fmt.Errorf("failed to fetch reservation by client_key: %w", err)
	}

	if err := json.Unmarshal(data, &reservations); err != nil {
		return nil, fmt.Errorf("failed to parse reservations: %w", err)
	}

	for i := range reservations {
		if reservations[i].Status != model.ReservationReleased {
			return &reservations[i], nil
		}
	}
	return nil, nil
}

func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
