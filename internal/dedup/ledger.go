// Package dedup suppresses duplicate side effects from the gateway's
// at-least-once webhook redelivery. Losing a ledger entry only risks a
// harmless repeat of an idempotent delivery; the booking store's conditional
// writes remain the correctness mechanism.
package dedup

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type Ledger struct {
	client *redis.Client
	ttl    time.Duration
}

// NewLedger wraps a Redis client. A nil client disables the ledger: every
// delivery is reported as first, which is safe.
func NewLedger(client *redis.Client, ttl time.Duration) *Ledger {
	return &Ledger{client: client, ttl: ttl}
}

func key(invoiceID, status string) string {
	return fmt.Sprintf("payment:event:%s:%s", invoiceID, status)
}

// Remember records the outcome of processing (invoiceID, status). It returns
// first=false plus the previously stored outcome when the pair was already
// seen inside the retention window. Redis errors degrade to first=true so a
// ledger outage never blocks reconciliation.
func (l *Ledger) Remember(ctx context.Context, invoiceID, status, outcome string) (first bool, prior string, err error) {
	if l == nil || l.client == nil {
		return true, "", nil
	}
	set, err := l.client.SetNX(ctx, key(invoiceID, status), outcome, l.ttl).Result()
	if err != nil {
		return true, "", err
	}
	if set {
		return true, "", nil
	}
	prior, err = l.client.Get(ctx, key(invoiceID, status)).Result()
	if err == redis.Nil {
		// Entry expired between SetNX and Get; treat as first delivery.
		return true, "", nil
	}
	if err != nil {
		return true, "", err
	}
	return false, prior, nil
}

// Update overwrites the stored outcome for a pair this instance already
// claimed with Remember.
func (l *Ledger) Update(ctx context.Context, invoiceID, status, outcome string) error {
	if l == nil || l.client == nil {
		return nil
	}
	return l.client.Set(ctx, key(invoiceID, status), outcome, l.ttl).Err()
}
