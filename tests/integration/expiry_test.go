package integration

import (
	"context"
	"net/http"
	"testing"
	"time"

	orderapp "github.com/printmarket/backend/internal/application/order"
	"github.com/printmarket/backend/internal/domain/identity"
	"github.com/printmarket/backend/internal/domain/notification"
	"github.com/printmarket/backend/internal/domain/order"
	"github.com/printmarket/backend/tests/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpireUnpaidOrders(t *testing.T) {
	app := newTestApp(t)
	customer := app.newUser(t, identity.RoleCustomer)
	producer := app.newUser(t, identity.RoleProducer)

	stale := app.pendingPoolOrder(t, customer)
	fresh := app.pendingPoolOrder(t, customer)
	testutil.Expect[orderapp.OrderResponse](t,
		producer.Do(t, http.MethodPost, "/api/v1/orders/"+stale.ID.String()+"/accept", nil), http.StatusOK)

	const ttl = 30 * 24 * time.Hour
	require.NoError(t, app.DB.DB.Exec("UPDATE orders SET created_at = ? WHERE id = ?",
		time.Now().Add(-ttl-time.Hour), stale.ID).Error)

	ctx := testutil.ContextWithTimeout(t, 10*time.Second)
	n, err := app.Orders.ExpireUnpaid(ctx, ttl, 100)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, n, 1)

	got := testutil.Expect[orderapp.OrderResponse](t,
		customer.Do(t, http.MethodGet, "/api/v1/orders/"+stale.ID.String(), nil), http.StatusOK)
	assert.Equal(t, string(order.StatusCancelled), got.Status)
	assert.Equal(t, orderapp.ExpiredReason, got.CancelReason)

	got = testutil.Expect[orderapp.OrderResponse](t,
		customer.Do(t, http.MethodGet, "/api/v1/orders/"+fresh.ID.String(), nil), http.StatusOK)
	assert.Equal(t, string(order.StatusPending), got.Status)

	// a platform cancellation notifies both parties
	testutil.RequireEventually(t, func() bool {
		return app.DB.CountRows("notifications", "order_id = ? AND type = ? AND body LIKE ?",
			stale.ID, string(notification.TypeOrderStatus), "%Payment timeout%") == 2
	}, deliveryTimeout)

	n, err = app.Orders.ExpireUnpaid(context.Background(), ttl, 100)
	require.NoError(t, err)
	assert.Zero(t, n, "nothing left to expire for this order")
}
