package feed

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusbite/canteen/app/events"
	"github.com/campusbite/canteen/app/models"
	"github.com/campusbite/canteen/pkg/ws"
)

type statusCall struct {
	ID, Status string
	Reason     *string
}

type fakeAPI struct {
	mu        sync.Mutex
	orders    []models.Order
	shops     []models.Shop
	notes     []models.Notification
	fetchErr  error
	shopFails int
	shopCalls int
	updateErr error
	fetches   int
	updates   []statusCall
	log       []string
}

func (f *fakeAPI) ShopkeeperOrders(context.Context) ([]models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches++
	f.log = append(f.log, "fetch")
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return append([]models.Order(nil), f.orders...), nil
}

func (f *fakeAPI) UpdateOrderStatus(_ context.Context, id, status string, reason *string) (models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.log = append(f.log, "update:"+status)
	if f.updateErr != nil {
		return models.Order{}, f.updateErr
	}
	f.updates = append(f.updates, statusCall{id, status, reason})
	for i := range f.orders {
		if f.orders[i].ID == id {
			f.orders[i].Status = status
			return f.orders[i], nil
		}
	}
	return models.Order{}, nil
}

func (f *fakeAPI) Shops(context.Context) ([]models.Shop, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.shopCalls++
	if f.shopCalls <= f.shopFails {
		return nil, errors.New("connection refused")
	}
	return append([]models.Shop(nil), f.shops...), nil
}

func (f *fakeAPI) Notifications(context.Context) ([]models.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Notification(nil), f.notes...), nil
}

func (f *fakeAPI) MarkNotificationRead(_ context.Context, id string) error {
	if id == "missing" {
		return errors.New("api: 404 notification not found")
	}
	return nil
}

func (f *fakeAPI) fetchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetches
}

var base = time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)

func order(id string, minutes int) models.Order {
	o := models.Order{Status: models.StatusPendingApproval}
	o.ID = id
	o.CreatedAt = base.Add(time.Duration(minutes) * time.Minute)
	return o
}

func ids(orders []models.Order) []string {
	out := make([]string, len(orders))
	for i, o := range orders {
		out[i] = o.ID
	}
	return out
}

func TestReconcileSortsNewestFirst(t *testing.T) {
	api := &fakeAPI{orders: []models.Order{order("o1", 1), order("o3", 3), order("o2", 2)}}
	f := NewOrderFeed(api, 0)

	require.NoError(t, f.Reconcile(context.Background()))
	assert.Equal(t, []string{"o3", "o2", "o1"}, ids(f.Orders()))
}

func TestReconcileKeepsSnapshotOnError(t *testing.T) {
	api := &fakeAPI{orders: []models.Order{order("o1", 1)}}
	f := NewOrderFeed(api, 0)
	require.NoError(t, f.Reconcile(context.Background()))

	api.fetchErr = errors.New("offline")
	assert.Error(t, f.Reconcile(context.Background()))
	assert.Equal(t, []string{"o1"}, ids(f.Orders()))
	assert.EqualError(t, f.LastError(), "offline")
}

func TestScrollOffsetSurvivesRefetch(t *testing.T) {
	api := &fakeAPI{orders: []models.Order{order("o1", 1), order("o2", 2), order("o3", 3)}}
	f := NewOrderFeed(api, 0)
	ctx := context.Background()
	require.NoError(t, f.Reconcile(ctx))

	f.SetOffset(2)
	api.orders = append(api.orders, order("o4", 4))
	require.NoError(t, f.Reconcile(ctx))
	assert.Equal(t, 2, f.Offset())

	api.orders = api.orders[:1]
	require.NoError(t, f.Reconcile(ctx))
	assert.Equal(t, 0, f.Offset(), "clamped to the shorter list")
}

func TestApproveSendsNoReasonAndRefetches(t *testing.T) {
	api := &fakeAPI{orders: []models.Order{order("o1", 1), order("o2", 2)}}
	f := NewOrderFeed(api, 0)
	ctx := context.Background()
	require.NoError(t, f.Reconcile(ctx))

	f.BeginReject("o2")
	require.NoError(t, f.Approve(ctx, "o1"))

	require.Len(t, api.updates, 1)
	assert.Equal(t, statusCall{ID: "o1", Status: models.StatusApproved}, api.updates[0])
	assert.Equal(t, []string{"fetch", "update:approved", "fetch"}, api.log)
	assert.Equal(t, "o2", f.Rejecting(), "another order's reason picker stays open")
}

func TestRejectRequiresAllowedReason(t *testing.T) {
	api := &fakeAPI{orders: []models.Order{order("o1", 1)}}
	f := NewOrderFeed(api, 0)
	ctx := context.Background()

	f.BeginReject("o1")
	assert.ErrorIs(t, f.Reject(ctx, "o1", "Too busy"), ErrInvalidReason)
	assert.Empty(t, api.updates)
	assert.Equal(t, "o1", f.Rejecting())

	require.NoError(t, f.Reject(ctx, "o1", models.ReasonShopClosed))
	require.Len(t, api.updates, 1)
	require.NotNil(t, api.updates[0].Reason)
	assert.Equal(t, models.ReasonShopClosed, *api.updates[0].Reason)
	assert.Empty(t, f.Rejecting())
	assert.Equal(t, models.StatusRejected, f.Orders()[0].Status)
}

func TestFailedStatusUpdateIsSurfaced(t *testing.T) {
	api := &fakeAPI{orders: []models.Order{order("o1", 1)}}
	f := NewOrderFeed(api, 0)
	ctx := context.Background()
	require.NoError(t, f.Reconcile(ctx))

	api.updateErr = errors.New("api: 409 invalid status transition")
	err := f.SetStatus(ctx, "o1", models.StatusCompleted)
	require.Error(t, err)
	assert.Equal(t, err, f.LastError())
	assert.Equal(t, models.StatusPendingApproval, f.Orders()[0].Status)
	assert.Equal(t, 1, api.fetchCount(), "no re-fetch after a failed update")
}

func TestRunRefetchesOnPushAndPoll(t *testing.T) {
	api := &fakeAPI{orders: []models.Order{order("o1", 1)}}
	f := NewOrderFeed(api, 50*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pushes := make(chan ws.Event)
	done := make(chan struct{})
	go func() {
		f.Run(ctx, pushes)
		close(done)
	}()

	require.Eventually(t, func() bool { return api.fetchCount() >= 1 }, time.Second, 5*time.Millisecond)
	ev, err := ws.NewEvent(events.TypeNewOrder, "s1", events.NewOrderFrame{ShopID: "s1", OrderID: "o2"})
	require.NoError(t, err)
	pushes <- ev
	require.Eventually(t, func() bool { return api.fetchCount() >= 2 }, time.Second, 5*time.Millisecond)

	close(pushes)
	require.Eventually(t, func() bool { return api.fetchCount() >= 4 }, time.Second, 5*time.Millisecond, "polling continues without pushes")

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop on cancel")
	}
}

func TestShopRegistryMergesTokenPush(t *testing.T) {
	s1 := models.Shop{Name: "South Spice", ActiveTokens: 2}
	s1.ID = "s1"
	s2 := models.Shop{Name: "Chai Point", ActiveTokens: 7}
	s2.ID = "s2"
	r := NewShopRegistry(&fakeAPI{shops: []models.Shop{s1, s2}})
	require.NoError(t, r.Refresh(context.Background()))

	ev, err := ws.NewEvent(events.TypeShopTokensUpdate, "s1", events.ShopTokensFrame{ShopID: "s1", ActiveTokens: 5})
	require.NoError(t, err)
	assert.True(t, r.Apply(ev))

	shops := r.Shops()
	assert.Equal(t, 5, shops[0].ActiveTokens)
	assert.Equal(t, "South Spice", shops[0].Name)
	assert.Equal(t, s2, shops[1])

	assert.False(t, r.ApplyTokens("s9", 1), "unknown shop ignored")
	other, _ := ws.NewEvent(events.TypeNewOrder, "s1", events.NewOrderFrame{ShopID: "s1"})
	assert.False(t, r.Apply(other))
}

func (f *fakeAPI) shopFetches() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.shopCalls
}

func TestShopRegistryRetriesFirstLoad(t *testing.T) {
	s1 := models.Shop{Name: "South Spice"}
	s1.ID = "s1"
	api := &fakeAPI{shops: []models.Shop{s1}, shopFails: 2}
	r := NewShopRegistry(api)
	r.Retry = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx, make(chan ws.Event)) }()

	require.Eventually(t, func() bool { return len(r.Shops()) == 1 }, 3*time.Second, 10*time.Millisecond)
	assert.Equal(t, 3, api.shopFetches())

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not stop on cancel")
	}
}

func TestShopRegistryRunGivesUpOnCancelBeforeFirstLoad(t *testing.T) {
	r := NewShopRegistry(&fakeAPI{shopFails: 1 << 30})
	r.Retry = 10 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, r.Run(ctx, make(chan ws.Event)), context.DeadlineExceeded)
}

func TestShopRegistryResyncRefetches(t *testing.T) {
	s1 := models.Shop{Name: "South Spice", ActiveTokens: 2}
	s1.ID = "s1"
	api := &fakeAPI{shops: []models.Shop{s1}}
	r := NewShopRegistry(api)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Run(ctx, make(chan ws.Event))
	require.Eventually(t, func() bool { return api.shopFetches() == 1 }, 3*time.Second, 10*time.Millisecond)

	// Counter moved while the socket was down.
	api.mu.Lock()
	api.shops[0].ActiveTokens = 9
	api.mu.Unlock()

	r.Resync()
	require.Eventually(t, func() bool { return api.shopFetches() == 2 }, 3*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool { return r.Shops()[0].ActiveTokens == 9 }, 3*time.Second, 10*time.Millisecond)
}

func TestShopRegistryPollsOnInterval(t *testing.T) {
	api := &fakeAPI{}
	r := NewShopRegistry(api)
	r.Interval = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Run(ctx, make(chan ws.Event))
	assert.Eventually(t, func() bool { return api.shopFetches() >= 3 }, 3*time.Second, 10*time.Millisecond)
}

func TestNotificationFeed(t *testing.T) {
	a := models.Notification{Title: "Order placed"}
	a.ID = "n1"
	b := models.Notification{Title: "Order approved", Read: true}
	b.ID = "n2"
	f := NewNotificationFeed(&fakeAPI{notes: []models.Notification{a, b}})
	ctx := context.Background()

	require.NoError(t, f.Refresh(ctx))
	assert.Equal(t, 1, f.Unread())
	require.NoError(t, f.MarkRead(ctx, "n1"))
	assert.Equal(t, 0, f.Unread())
	assert.Error(t, f.MarkRead(ctx, "missing"))
}
