package reservation

import (
	"context"
	stderrors "errors"
	"time"

	"gorm.io/gorm"

	"github.com/dumeirei/camp-station-backend/internal/common/clock"
	"github.com/dumeirei/camp-station-backend/internal/common/logger"
	"github.com/dumeirei/camp-station-backend/internal/common/tracing"
	"github.com/dumeirei/camp-station-backend/internal/models"
)

// 扫描任务名
const (
	TaskCancelUnpaid       = "cancel_unpaid"
	TaskCompleteCheckedOut = "complete_checked_out"
)

// 超时取消的原因
const unpaidCancelReason = "支付超时"

// errSkip 已申请人工确认，本次扫描跳过
var errSkip = stderrors.New("skip")

// SweepResult 一次扫描的统计
type SweepResult struct {
	Scanned      int `json:"scanned"`
	Transitioned int `json:"transitioned"`
	Skipped      int `json:"skipped"`
	Failed       int `json:"failed"`
}

// CancelUnpaid 取消超过支付期限仍未支付的预订，已申请人工确认的除外
//
// 单条失败只记录日志，继续处理后续预订。
func (l *Lifecycle) CancelUnpaid(ctx context.Context) (result SweepResult, err error) {
	ctx, span := tracing.Start(ctx, "reservation.CancelUnpaid")
	defer func() { tracing.End(span, err) }()

	now := l.clock.Now()
	cutoff := now.Add(-l.paymentTimeout)

	err = l.sweep(ctx, TaskCancelUnpaid, &result,
		func(afterID int64) ([]models.Reservation, error) {
			return l.reservationRepo.ListPendingCreatedBefore(ctx, cutoff, afterID, l.batchSize)
		},
		func(r *models.Reservation) error {
			return l.cancelExpired(ctx, r, now)
		},
	)
	return result, err
}

// cancelExpired 先条件更新预订行取得行锁，再检查是否已申请人工确认
func (l *Lifecycle) cancelExpired(ctx context.Context, r *models.Reservation, now time.Time) error {
	var done bool
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ok, err := l.reservationRepo.WithTx(tx).TransitionStatus(ctx, r.ID,
			models.ReservationStatusPending, models.ReservationStatusCancelled,
			map[string]interface{}{
				"cancelled_at":  now,
				"cancelled_by":  string(RoleSystem),
				"cancel_reason": unpaidCancelReason,
				"updated_at":    now,
			})
		if err != nil {
			return err
		}
		if !ok {
			return errSkip
		}

		payments := l.paymentRepo.WithTx(tx)
		requested, err := payments.ExistsWithStatus(ctx, r.ID, models.PaymentStatusConfirmationRequested)
		if err != nil {
			return err
		}
		if requested {
			return errSkip
		}

		if _, err := payments.TransitionByReservation(ctx, r.ID,
			[]string{models.PaymentStatusPending}, models.PaymentStatusCancelled,
			map[string]interface{}{"updated_at": now},
		); err != nil {
			return err
		}
		done = true
		return nil
	})
	if err != nil {
		return err
	}
	if done {
		l.recordTransition(r, models.ReservationStatusCancelled, "sweep")
	}
	return nil
}

// CompleteCheckedOut 退房日已过的已确认预订标记为已完成
func (l *Lifecycle) CompleteCheckedOut(ctx context.Context) (result SweepResult, err error) {
	ctx, span := tracing.Start(ctx, "reservation.CompleteCheckedOut")
	defer func() { tracing.End(span, err) }()

	now := l.clock.Now()
	today := clock.Date(now)

	err = l.sweep(ctx, TaskCompleteCheckedOut, &result,
		func(afterID int64) ([]models.Reservation, error) {
			return l.reservationRepo.ListConfirmedCheckedOutBefore(ctx, today, afterID, l.batchSize)
		},
		func(r *models.Reservation) error {
			ok, err := l.reservationRepo.TransitionStatus(ctx, r.ID,
				models.ReservationStatusConfirmed, models.ReservationStatusCompleted,
				map[string]interface{}{"completed_at": now, "updated_at": now})
			if err != nil {
				return err
			}
			if !ok {
				return errSkip
			}
			l.recordTransition(r, models.ReservationStatusCompleted, "sweep")
			return nil
		},
	)
	return result, err
}

// sweep 按 ID 游标分批处理，list 出错时中止，handle 出错时记录后继续
func (l *Lifecycle) sweep(
	ctx context.Context,
	task string,
	result *SweepResult,
	list func(afterID int64) ([]models.Reservation, error),
	handle func(r *models.Reservation) error,
) error {
	start := time.Now()
	var afterID int64
	for {
		if err := ctx.Err(); err != nil {
			l.finishSweep(task, result, start, err)
			return err
		}

		batch, err := list(afterID)
		if err != nil {
			l.finishSweep(task, result, start, err)
			return err
		}
		if len(batch) == 0 {
			break
		}

		for i := range batch {
			r := &batch[i]
			result.Scanned++
			switch err := handle(r); {
			case err == nil:
				result.Transitioned++
			case stderrors.Is(err, errSkip):
				result.Skipped++
			default:
				result.Failed++
				logger.Error("扫描处理预订失败",
					logger.Task(task),
					logger.ReservationID(r.ID),
					logger.Err(err),
				)
			}
		}

		afterID = batch[len(batch)-1].ID
		if len(batch) < l.batchSize {
			break
		}
	}

	l.finishSweep(task, result, start, nil)
	return nil
}

func (l *Lifecycle) finishSweep(task string, result *SweepResult, start time.Time, err error) {
	l.metrics.RecordSweep(task, result.Transitioned, result.Skipped, result.Failed)
	if err != nil {
		l.metrics.RecordSweepError(task)
		logger.Error("扫描任务中止",
			logger.Task(task),
			logger.Int("scanned", result.Scanned),
			logger.Err(err),
		)
		return
	}
	if result.Scanned > 0 {
		logger.Info("扫描任务完成",
			logger.Task(task),
			logger.Int("scanned", result.Scanned),
			logger.Int("transitioned", result.Transitioned),
			logger.Int("skipped", result.Skipped),
			logger.Int("failed", result.Failed),
			logger.Latency(time.Since(start)),
		)
	}
}
