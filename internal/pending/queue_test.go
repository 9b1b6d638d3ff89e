package pending

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Namsummo/Lego-store/internal/cart"
	"github.com/Namsummo/Lego-store/internal/entity"
	"github.com/Namsummo/Lego-store/internal/pricing"
)

func twoLineSnapshot() Snapshot {
	return Snapshot{
		Lines: []entity.CartLine{
			{ProductID: "p1", Name: "City Fire Station", UnitPrice: decimal.NewFromInt(2500000), Quantity: 1, StockAvailable: 4},
			{ProductID: "p2", Name: "Technic Crane", UnitPrice: decimal.NewFromInt(1500000), PromoPrice: decimal.NewNullDecimal(decimal.NewFromInt(1250000)), Quantity: 2, StockAvailable: 2},
		},
		Customer: entity.Customer{Name: "Lan", Email: "lan@example.com", Phone: "0912345678"},
		Voucher: &entity.Voucher{
			ID:          "v-10",
			Kind:        entity.VoucherPercentage,
			Value:       decimal.NewFromInt(10),
			MaxDiscount: decimal.NewNullDecimal(decimal.NewFromInt(300000)),
			Quantity:    5,
		},
	}
}

func TestNewIDFormat(t *testing.T) {
	pattern := regexp.MustCompile(`^HDC[0-9A-Z]{6}$`)
	for _i := 0; _i < 50; _i++ {
		assert.Regexp(t, pattern, NewID())
	}
}

func TestSuspendEmptyCart(t *testing.T) {
	q := NewQueue(NewMemoryStore())

	_, err := q.Suspend(context.Background(), Snapshot{})
	var verr *entity.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, entity.ReasonEmptyCart, verr.Reason)
}

func TestSuspendResumeRoundTrip(t *testing.T) {
	ctx := context.Background()
	q := NewQueue(NewMemoryStore())

	c := cart.New()
	snap := twoLineSnapshot()
	c.Restore(snap.Lines)
	before := pricing.Compute(c.Lines(), snap.Voucher)

	entry, err := q.Suspend(ctx, Snapshot{Lines: c.Lines(), Customer: snap.Customer, Voucher: snap.Voucher})
	require.NoError(t, err)
	c.Clear()
	assert.True(t, c.IsEmpty())
	assert.True(t, before.Total.Equal(entry.TotalAmount))
	assert.True(t, before.Discount.Equal(entry.DiscountAmount))

	resumed, err := q.Resume(ctx, entry.ID)
	require.NoError(t, err)
	c.Restore(resumed.Lines)
	after := pricing.Compute(c.Lines(), resumed.Voucher)

	assert.True(t, before.Subtotal.Equal(after.Subtotal))
	assert.True(t, before.Discount.Equal(after.Discount))
	assert.True(t, before.Total.Equal(after.Total))
	assert.Equal(t, snap.Customer, resumed.Customer())
	assert.Equal(t, "v-10", resumed.VoucherID)

	list, err := q.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestQueueIsMostRecentFirst(t *testing.T) {
	ctx := context.Background()
	clock := time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)
	q := NewQueue(NewMemoryStore(), WithClock(func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}))

	first, err := q.Suspend(ctx, twoLineSnapshot())
	require.NoError(t, err)
	second, err := q.Suspend(ctx, twoLineSnapshot())
	require.NoError(t, err)

	list, err := q.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
	assert.Equal(t, first.ID, list[1].ID)
	assert.True(t, list[0].CreatedAt.After(list[1].CreatedAt))
}

func TestResumeUnknownID(t *testing.T) {
	q := NewQueue(NewMemoryStore())

	_, err := q.Resume(context.Background(), "HDC000000")
	assert.ErrorIs(t, err, entity.ErrNotFound)
}

func TestDiscardIsIdempotent(t *testing.T) {
	ctx := context.Background()
	q := NewQueue(NewMemoryStore())

	entry, err := q.Suspend(ctx, twoLineSnapshot())
	require.NoError(t, err)

	require.NoError(t, q.Discard(ctx, entry.ID))
	require.NoError(t, q.Discard(ctx, entry.ID))
	require.NoError(t, q.Discard(ctx, "never-existed"))

	_, err = q.Resume(ctx, entry.ID)
	assert.ErrorIs(t, err, entity.ErrNotFound)
}

func TestSuspendRetriesCollidingIDs(t *testing.T) {
	ctx := context.Background()
	ids := []string{"HDCAAAAAA", "HDCAAAAAA", "HDCBBBBBB"}
	q := NewQueue(NewMemoryStore(), WithIDGenerator(func() string {
		id := ids[0]
		ids = ids[1:]
		return id
	}))

	first, err := q.Suspend(ctx, twoLineSnapshot())
	require.NoError(t, err)
	second, err := q.Suspend(ctx, twoLineSnapshot())
	require.NoError(t, err)

	assert.Equal(t, "HDCAAAAAA", first.ID)
	assert.Equal(t, "HDCBBBBBB", second.ID)
}

func TestSuspendGivesUpOnPermanentCollision(t *testing.T) {
	ctx := context.Background()
	q := NewQueue(NewMemoryStore(), WithIDGenerator(func() string { return "HDCAAAAAA" }))

	_, err := q.Suspend(ctx, twoLineSnapshot())
	require.NoError(t, err)
	_, err = q.Suspend(ctx, twoLineSnapshot())
	assert.Error(t, err)
}

type failingStore struct{ MemoryStore }

func (s *failingStore) Save(context.Context, []Entry) error { return errors.New("disk full") }

func TestResumeKeepsEntryWhenSaveFails(t *testing.T) {
	ctx := context.Background()
	store := &failingStore{}
	require.NoError(t, store.MemoryStore.Save(ctx, []Entry{{ID: "HDC123456"}}))
	q := NewQueue(store)

	_, err := q.Resume(ctx, "HDC123456")
	require.Error(t, err)

	entries, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestFileStoreSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	store, err := NewFileStore(dir, "staff-1")
	require.NoError(t, err)
	entry, err := NewQueue(store).Suspend(ctx, twoLineSnapshot())
	require.NoError(t, err)

	reopened, err := NewFileStore(dir, "staff-1")
	require.NoError(t, err)
	assert.Equal(t, store.Path(), reopened.Path())

	resumed, err := NewQueue(reopened).Resume(ctx, entry.ID)
	require.NoError(t, err)
	assert.True(t, entry.TotalAmount.Equal(resumed.TotalAmount))
	require.Len(t, resumed.Lines, 2)
	assert.True(t, resumed.Lines[1].PromoPrice.Valid)

	other, err := NewFileStore(dir, "staff-2")
	require.NoError(t, err)
	entries, err := other.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRedisStore(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	store := NewRedisStore(client, "staff-1")
	entries, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, entries)

	q := NewQueue(store)
	entry, err := q.Suspend(ctx, twoLineSnapshot())
	require.NoError(t, err)
	assert.True(t, mr.Exists(KeyPrefix+"staff-1"))

	raw, err := mr.Get(KeyPrefix + "staff-1")
	require.NoError(t, err)
	assert.Contains(t, raw, `"customerName":"Lan"`)
	assert.Contains(t, raw, `"totalAmount"`)

	resumed, err := q.Resume(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, entry.ID, resumed.ID)

	raw, err = mr.Get(KeyPrefix + "staff-1")
	require.NoError(t, err)
	assert.Equal(t, "[]", raw)
}

func TestNewRedisClientRejectsBadURL(t *testing.T) {
	_, err := NewRedisClient("not-a-url://")
	assert.Error(t, err)

	mr := miniredis.RunT(t)
	client, err := NewRedisClient("redis://" + mr.Addr())
	require.NoError(t, err)
	client.Close()
}
