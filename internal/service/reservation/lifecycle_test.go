package reservation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/dumeirei/camp-station-backend/internal/common/errors"
	"github.com/dumeirei/camp-station-backend/internal/models"
)

var (
	userActor  = Actor{Role: RoleUser, UserID: 1001}
	ownerActor = Actor{Role: RoleOwner, UserID: ownerID}
)

func TestLifecycle_Confirm(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()
	r := f.reserve(t, july(10), july(12))

	f.clock.Advance(10 * time.Minute)
	confirmed, err := f.lifecycle.Confirm(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReservationStatusConfirmed, confirmed.Status)
	require.NotNil(t, confirmed.ConfirmedAt)
	assert.True(t, confirmed.ConfirmedAt.Equal(baseNow.Add(10*time.Minute)))

	stored := f.reload(t, r.ID)
	require.Len(t, stored.Payments, 1)
	assert.Equal(t, models.PaymentStatusCompleted, stored.Payments[0].Status)
	assert.NotNil(t, stored.Payments[0].PaidAt)

	t.Run("重复确认视为成功", func(t *testing.T) {
		again, err := f.lifecycle.Confirm(ctx, r.ID)
		require.NoError(t, err)
		assert.Equal(t, models.ReservationStatusConfirmed, again.Status)
	})
}

func TestLifecycle_Confirm_PaymentWindow(t *testing.T) {
	tests := []struct {
		name    string
		elapsed time.Duration
		wantErr *appErrors.AppError
	}{
		{"29 分钟内可确认", 29 * time.Minute, nil},
		{"恰好 30 分钟仍可确认", 30 * time.Minute, nil},
		{"31 分钟后已过期", 31 * time.Minute, appErrors.ErrReservationExpired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setupFixture(t)
			r := f.reserve(t, july(10), july(12))
			f.clock.Advance(tt.elapsed)

			got, err := f.lifecycle.Confirm(context.Background(), r.ID)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Equal(t, models.ReservationStatusPending, f.reload(t, r.ID).Status)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, models.ReservationStatusConfirmed, got.Status)
		})
	}
}

func TestLifecycle_Confirm_ManualClaimExtendsWindow(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()
	r := f.reserve(t, july(10), july(12))

	f.clock.Advance(20 * time.Minute)
	_, err := f.lifecycle.RequestManualConfirmation(ctx, r.ID, "李四")
	require.NoError(t, err)

	f.clock.Advance(2 * time.Hour)
	confirmed, err := f.lifecycle.Confirm(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReservationStatusConfirmed, confirmed.Status)

	stored := f.reload(t, r.ID)
	assert.Equal(t, models.PaymentStatusCompleted, stored.Payments[0].Status)
}

func TestLifecycle_Confirm_InvalidStates(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()
	r := f.reserve(t, july(10), july(12))
	_, err := f.lifecycle.Cancel(ctx, r.ID, userActor, "")
	require.NoError(t, err)

	_, err = f.lifecycle.Confirm(ctx, r.ID)
	assert.ErrorIs(t, err, appErrors.ErrInvalidStatusTransition)

	_, err = f.lifecycle.Confirm(ctx, 9999)
	assert.ErrorIs(t, err, appErrors.ErrReservationNotFound)
}

func TestLifecycle_Cancel_Pending(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()
	r := f.reserve(t, july(10), july(12))

	cancelled, err := f.lifecycle.Cancel(ctx, r.ID, userActor, "行程变更")
	require.NoError(t, err)
	assert.Equal(t, models.ReservationStatusCancelled, cancelled.Status)
	require.NotNil(t, cancelled.CancelReason)
	assert.Equal(t, "行程变更", *cancelled.CancelReason)
	require.NotNil(t, cancelled.CancelledBy)
	assert.Equal(t, string(RoleUser), *cancelled.CancelledBy)
	assert.NotNil(t, cancelled.CancelledAt)

	stored := f.reload(t, r.ID)
	assert.Equal(t, models.PaymentStatusCancelled, stored.Payments[0].Status)

	t.Run("重复取消视为成功", func(t *testing.T) {
		again, err := f.lifecycle.Cancel(ctx, r.ID, ownerActor, "")
		require.NoError(t, err)
		assert.Equal(t, models.ReservationStatusCancelled, again.Status)
		assert.Equal(t, string(RoleUser), *again.CancelledBy)
	})
	assert.Empty(t, f.refunds.calls)
}

func TestLifecycle_Cancel_Confirmed(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()
	r := f.reserve(t, july(10), july(12))
	_, err := f.lifecycle.Confirm(ctx, r.ID)
	require.NoError(t, err)

	t.Run("用户不能取消已确认的预订", func(t *testing.T) {
		_, err := f.lifecycle.Cancel(ctx, r.ID, userActor, "")
		assert.ErrorIs(t, err, appErrors.ErrReservationCannotCancel)
		_, err = f.lifecycle.Cancel(ctx, r.ID, Actor{Role: RoleGuest}, "")
		assert.ErrorIs(t, err, appErrors.ErrReservationCannotCancel)
		assert.Equal(t, models.ReservationStatusConfirmed, f.reload(t, r.ID).Status)
	})

	t.Run("经营者取消后申请退款", func(t *testing.T) {
		cancelled, err := f.lifecycle.Cancel(ctx, r.ID, ownerActor, "营地临时关闭")
		require.NoError(t, err)
		assert.Equal(t, models.ReservationStatusCancelled, cancelled.Status)

		stored := f.reload(t, r.ID)
		assert.Equal(t, models.PaymentStatusRefundRequested, stored.Payments[0].Status)

		require.Len(t, f.refunds.calls[r.ID], 1)
		assert.Equal(t, models.PaymentStatusRefundRequested, f.refunds.calls[r.ID][0].Status)
		assert.Equal(t, stored.Payments[0].PaymentNo, f.refunds.calls[r.ID][0].PaymentNo)
	})
}

func TestLifecycle_Cancel_Completed(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()
	r := f.reserve(t, july(10), july(12))
	_, err := f.lifecycle.Confirm(ctx, r.ID)
	require.NoError(t, err)
	_, err = f.lifecycle.Complete(ctx, r.ID)
	require.NoError(t, err)

	_, err = f.lifecycle.Cancel(ctx, r.ID, Actor{Role: RoleAdmin, UserID: 1}, "")
	assert.ErrorIs(t, err, appErrors.ErrInvalidStatusTransition)
}

func TestLifecycle_Complete(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()
	r := f.reserve(t, july(10), july(12))

	_, err := f.lifecycle.Complete(ctx, r.ID)
	assert.ErrorIs(t, err, appErrors.ErrInvalidStatusTransition)

	_, err = f.lifecycle.Confirm(ctx, r.ID)
	require.NoError(t, err)

	completed, err := f.lifecycle.Complete(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReservationStatusCompleted, completed.Status)
	assert.NotNil(t, completed.CompletedAt)

	again, err := f.lifecycle.Complete(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReservationStatusCompleted, again.Status)
}

func TestLifecycle_RequestManualConfirmation(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()
	r := f.reserve(t, july(10), july(12))

	_, err := f.lifecycle.RequestManualConfirmation(ctx, r.ID, "王五")
	require.NoError(t, err)

	stored := f.reload(t, r.ID)
	assert.Equal(t, models.ReservationStatusPending, stored.Status)
	assert.Equal(t, models.PaymentStatusConfirmationRequested, stored.Payments[0].Status)
	require.NotNil(t, stored.Payments[0].DepositorName)
	assert.Equal(t, "王五", *stored.Payments[0].DepositorName)

	t.Run("重复申请视为成功", func(t *testing.T) {
		f.clock.Advance(time.Hour)
		_, err := f.lifecycle.RequestManualConfirmation(ctx, r.ID, "王五")
		assert.NoError(t, err)
	})
}

func TestLifecycle_RequestManualConfirmation_Rejections(t *testing.T) {
	t.Run("超过支付期限", func(t *testing.T) {
		f := setupFixture(t)
		r := f.reserve(t, july(10), july(12))
		f.clock.Advance(31 * time.Minute)

		_, err := f.lifecycle.RequestManualConfirmation(context.Background(), r.ID, "")
		assert.ErrorIs(t, err, appErrors.ErrReservationExpired)
		assert.Equal(t, models.PaymentStatusPending, f.reload(t, r.ID).Payments[0].Status)
	})

	t.Run("已确认的预订", func(t *testing.T) {
		f := setupFixture(t)
		r := f.reserve(t, july(10), july(12))
		_, err := f.lifecycle.Confirm(context.Background(), r.ID)
		require.NoError(t, err)

		_, err = f.lifecycle.RequestManualConfirmation(context.Background(), r.ID, "")
		assert.ErrorIs(t, err, appErrors.ErrInvalidStatusTransition)
	})
}

func TestLifecycle_FailPayment(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()
	r := f.reserve(t, july(10), july(12))

	failed, err := f.lifecycle.FailPayment(ctx, r.ID, "余额不足")
	require.NoError(t, err)
	assert.Equal(t, models.ReservationStatusCancelled, failed.Status)
	assert.Equal(t, string(RoleSystem), *failed.CancelledBy)

	stored := f.reload(t, r.ID)
	assert.Equal(t, models.PaymentStatusFailed, stored.Payments[0].Status)
	require.NotNil(t, stored.Payments[0].FailureReason)
	assert.Equal(t, "余额不足", *stored.Payments[0].FailureReason)

	t.Run("已确认的预订不受支付失败回调影响", func(t *testing.T) {
		other := f.reserve(t, july(20), july(21))
		_, err := f.lifecycle.Confirm(ctx, other.ID)
		require.NoError(t, err)

		_, err = f.lifecycle.FailPayment(ctx, other.ID, "")
		assert.ErrorIs(t, err, appErrors.ErrInvalidStatusTransition)
		assert.Equal(t, models.ReservationStatusConfirmed, f.reload(t, other.ID).Status)
	})
}

func TestParseRole(t *testing.T) {
	assert.Equal(t, RoleOwner, ParseRole("owner"))
	assert.Equal(t, RoleAdmin, ParseRole("ADMIN"))
	assert.Equal(t, RoleUser, ParseRole(""))
	assert.Equal(t, RoleUser, ParseRole("merchant"))
	assert.True(t, SystemActor().CanCancelConfirmed())
	assert.False(t, Actor{Role: RoleUser}.CanCancelConfirmed())
}
