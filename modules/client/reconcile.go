package client

import (
	"fmt"
	"sort"
)

// promptKeyLen bounds the prompt prefix used in the composite fallback key.
const promptKeyLen = 20

// Merge reconciles locally-known cards (including optimistic placeholders)
// with a freshly fetched page of server records. Server records win where
// the two describe the same request; optimistic cards the server has not
// acknowledged yet survive untouched. The result is deduplicated and kept
// in newest-first order.
func Merge(local []Card, server []Record) []Card {
	result := make([]Card, 0, len(local)+len(server))
	for _, rec := range server {
		result = append(result, cardFromRecord(rec))
	}

	for _, lc := range local {
		idx := findMatch(result, lc)
		if idx >= 0 {
			result[idx] = mergeCards(result[idx], lc)
		} else {
			result = append(result, lc)
		}
	}

	result = dedupe(result)

	// Stable: ties keep their current relative order.
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	return result
}

// findMatch locates the card describing the same request, trying identity
// signals in decreasing order of reliability: session id first, then
// client key / reservation id, then a composite content fallback.
func findMatch(cards []Card, target Card) int {
	if target.SessionID != "" {
		for i := range cards {
			if cards[i].SessionID == target.SessionID {
				return i
			}
		}
	}

	if target.ClientKey != "" {
		for i := range cards {
			if cards[i].ClientKey == target.ClientKey {
				return i
			}
		}
	}

	if target.ReservationID != "" {
		for i := range cards {
			if cards[i].ReservationID != "" && cards[i].ReservationID == target.ReservationID {
				return i
			}
		}
	}

	// Composite fallback for records that predate client keys. Never
	// applied across two different real server ids.
	tk := compositeKey(target)
	for i := range cards {
		if cards[i].SessionID != "" && target.SessionID != "" && cards[i].SessionID != target.SessionID {
			continue
		}
		if compositeKey(cards[i]) == tk {
			return i
		}
	}

	return -1
}

// mergeCards combines a server-backed card with its local counterpart.
// The server card is authoritative for status and outputs; local-only
// knowledge (client key, progress, progress timestamps) is preserved.
func mergeCards(server, local Card) Card {
	merged := server
	merged.Optimistic = false

	if merged.ClientKey == "" {
		merged.ClientKey = local.ClientKey
	}
	if merged.ReservationID == "" {
		merged.ReservationID = local.ReservationID
	}
	if merged.CreditCost == 0 {
		merged.CreditCost = local.CreditCost
	}

	// Keep local progress while the server side has nothing newer.
	if len(merged.Progress) == 0 && !merged.IsTerminal() {
		merged.Progress = local.Progress
	}
	if local.LastProgressAt.After(merged.LastProgressAt) {
		merged.LastProgressAt = local.LastProgressAt
	}

	return merged
}

// dedupe removes duplicate cards, preferring server-backed and more
// complete entries when two cards describe the same request.
func dedupe(cards []Card) []Card {
	out := make([]Card, 0, len(cards))

	for _, c := range cards {
		dup := -1
		for i := range out {
			if sameIdentity(out[i], c) {
				dup = i
				break
			}
		}

		if dup < 0 {
			out = append(out, c)
			continue
		}

		if preferOver(c, out[dup]) {
			out[dup] = mergeCards(c, out[dup])
		} else {
			out[dup] = mergeCards(out[dup], c)
		}
	}

	return out
}

func sameIdentity(a, b Card) bool {
	// Real ids are authoritative: two distinct server ids are never the
	// same request even when the composite fallback would collide them.
	if a.SessionID != "" && b.SessionID != "" {
		return a.SessionID == b.SessionID
	}
	if a.ClientKey != "" && a.ClientKey == b.ClientKey {
		return true
	}
	if a.ReservationID != "" && a.ReservationID == b.ReservationID {
		return true
	}
	return compositeKey(a) == compositeKey(b)
}

// preferOver reports whether a should win over b when deduplicating.
func preferOver(a, b Card) bool {
	// Server-backed identity beats optimistic.
	if (a.SessionID != "") != (b.SessionID != "") {
		return a.SessionID != ""
	}
	return completeness(a) > completeness(b)
}

// completeness scores how much terminal knowledge a card carries.
func completeness(c Card) int {
	score := 0
	if len(c.URLs) > 0 {
		score += 8
	}
	if c.IsTerminal() {
		score += 4
	}
	if c.ErrorMessage != "" {
		score += 2
	}
	if c.SessionID != "" {
		score++
	}
	return score
}

func compositeKey(c Card) string {
	prompt := []rune(c.Prompt)
	if len(prompt) > promptKeyLen {
		prompt = prompt[:promptKeyLen]
	}
	return fmt.Sprintf("%s|%d|%s", string(prompt), c.CreatedAt.Unix(), c.Status)
}
