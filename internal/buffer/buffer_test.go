package buffer

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/efficore/agentcore/pkg/models"
)

func testKey() models.ConversationKey {
	return models.ConversationKey{TenantID: "tenant-1", ContactID: "contact-1"}
}

func TestCoalescedJoinsInArrivalOrder(t *testing.T) {
	buf := &Buffer{
		Fragments: []Fragment{
			{Text: "Hola"},
			{Text: "tienes motos?"},
		},
	}
	if got := buf.Coalesced(); got != "Hola\ntienes motos?" {
		t.Errorf("Coalesced() = %q, want %q", got, "Hola\ntienes motos?")
	}
}

func TestCoalescedEmptyAndSingle(t *testing.T) {
	if got := (&Buffer{}).Coalesced(); got != "" {
		t.Errorf("empty buffer Coalesced() = %q, want empty", got)
	}
	one := &Buffer{Fragments: []Fragment{{Text: "hola"}}}
	if got := one.Coalesced(); got != "hola" {
		t.Errorf("single fragment Coalesced() = %q, want %q", got, "hola")
	}
}

func TestMemoryStoreAppendPushesDeadline(t *testing.T) {
	store := NewMemoryStore()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store.nowFunc = func() time.Time { return now }
	ctx := context.Background()

	count, err := store.Append(ctx, testKey(), "Hola", 5*time.Second)
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if count != 1 {
		t.Errorf("first append count = %d, want 1", count)
	}

	// Second fragment four seconds later pushes the deadline forward.
	now = now.Add(4 * time.Second)
	count, err = store.Append(ctx, testKey(), "tienes motos?", 5*time.Second)
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if count != 2 {
		t.Errorf("second append count = %d, want 2", count)
	}

	buf, err := store.Open(ctx, testKey())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	want := now.Add(5 * time.Second)
	if !buf.ExpiresAt.Equal(want) {
		t.Errorf("ExpiresAt = %v, want %v", buf.ExpiresAt, want)
	}

	// Nothing is due at the old deadline; everything is at the new one.
	due, err := store.Due(ctx, now.Add(time.Second))
	if err != nil {
		t.Fatalf("Due: %v", err)
	}
	if len(due) != 0 {
		t.Errorf("due before deadline = %d buffers, want 0", len(due))
	}
	due, err = store.Due(ctx, want)
	if err != nil {
		t.Fatalf("Due: %v", err)
	}
	if len(due) != 1 {
		t.Errorf("due at deadline = %d buffers, want 1", len(due))
	}
}

func TestTryClaimExclusive(t *testing.T) {
	store := NewMemoryStore()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store.nowFunc = func() time.Time { return now }
	ctx := context.Background()

	if _, err := store.Append(ctx, testKey(), "hola", time.Second); err != nil {
		t.Fatalf("Append: %v", err)
	}
	buf, err := store.Open(ctx, testKey())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	now = now.Add(time.Second)

	const workers = 32
	var wg sync.WaitGroup
	wins := make(chan struct{}, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			won, err := store.TryClaim(ctx, buf.ID, time.Minute)
			if err != nil {
				t.Errorf("TryClaim: %v", err)
				return
			}
			if won {
				wins <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(wins)

	var got int
	for range wins {
		got++
	}
	if got != 1 {
		t.Errorf("%d workers won the claim, want exactly 1", got)
	}
}

func TestTryClaimStaleLeaseReclaimable(t *testing.T) {
	store := NewMemoryStore()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store.nowFunc = func() time.Time { return now }
	ctx := context.Background()

	if _, err := store.Append(ctx, testKey(), "hola", time.Second); err != nil {
		t.Fatalf("Append: %v", err)
	}
	buf, err := store.Open(ctx, testKey())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	now = now.Add(time.Second)

	won, err := store.TryClaim(ctx, buf.ID, time.Minute)
	if err != nil || !won {
		t.Fatalf("first claim: won=%v err=%v, want win", won, err)
	}

	// A live lease blocks a second claim.
	won, err = store.TryClaim(ctx, buf.ID, time.Minute)
	if err != nil {
		t.Fatalf("second claim: %v", err)
	}
	if won {
		t.Error("second claim won against a live lease")
	}

	// A stale lease does not.
	now = now.Add(2 * time.Minute)
	won, err = store.TryClaim(ctx, buf.ID, time.Minute)
	if err != nil {
		t.Fatalf("third claim: %v", err)
	}
	if !won {
		t.Error("claim lost against a stale lease, want win")
	}
}

func TestTryClaimRefusesRefreshedBuffer(t *testing.T) {
	store := NewMemoryStore()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store.nowFunc = func() time.Time { return now }
	ctx := context.Background()

	if _, err := store.Append(ctx, testKey(), "hola", time.Second); err != nil {
		t.Fatalf("Append: %v", err)
	}
	buf, err := store.Open(ctx, testKey())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	// A fragment lands after the due scan picked up the buffer,
	// pushing its deadline forward again.
	now = now.Add(time.Second)
	if _, err := store.Append(ctx, testKey(), "otra cosa", time.Second); err != nil {
		t.Fatalf("Append: %v", err)
	}

	won, err := store.TryClaim(ctx, buf.ID, time.Minute)
	if err != nil {
		t.Fatalf("TryClaim: %v", err)
	}
	if won {
		t.Error("claim won while the quiet period was still running")
	}

	// Once the refreshed deadline passes the claim succeeds.
	now = now.Add(time.Second)
	won, err = store.TryClaim(ctx, buf.ID, time.Minute)
	if err != nil {
		t.Fatalf("TryClaim: %v", err)
	}
	if !won {
		t.Error("claim lost on a due buffer, want win")
	}
}

func TestDeleteIsIdempotent(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if _, err := store.Append(ctx, testKey(), "hola", time.Second); err != nil {
		t.Fatalf("Append: %v", err)
	}
	buf, err := store.Open(ctx, testKey())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	if err := store.Delete(ctx, buf.ID); err != nil {
		t.Fatalf("first Delete: %v", err)
	}
	if err := store.Delete(ctx, buf.ID); err != nil {
		t.Errorf("second Delete: %v, want nil", err)
	}
	if _, err := store.Open(ctx, testKey()); err != ErrBufferNotFound {
		t.Errorf("Open after delete = %v, want ErrBufferNotFound", err)
	}
}
