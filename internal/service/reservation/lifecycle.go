package reservation

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/dumeirei/camp-station-backend/internal/common/clock"
	"github.com/dumeirei/camp-station-backend/internal/common/errors"
	"github.com/dumeirei/camp-station-backend/internal/common/logger"
	"github.com/dumeirei/camp-station-backend/internal/common/metrics"
	"github.com/dumeirei/camp-station-backend/internal/models"
	"github.com/dumeirei/camp-station-backend/internal/repository"
)

// 条件更新失败后重新读取状态的次数上限
const maxTransitionAttempts = 3

// RefundRequester 已确认预订被取消后发起退款
type RefundRequester interface {
	RequestRefund(ctx context.Context, reservation *models.Reservation, payments []models.Payment) error
}

// LogRefundRequester 只记录日志的退款通知，退款由财务人工处理
type LogRefundRequester struct{}

// RequestRefund 记录待退款的支付
func (LogRefundRequester) RequestRefund(_ context.Context, reservation *models.Reservation, payments []models.Payment) error {
	for _, p := range payments {
		logger.Info("申请退款",
			logger.Module("reservation"),
			logger.ReservationID(reservation.ID),
			logger.String("payment_no", p.PaymentNo),
			logger.String("amount", p.Amount.StringFixed(2)),
		)
	}
	return nil
}

// Lifecycle 预订状态流转
//
// 所有迁移都是 UPDATE ... WHERE id = ? AND status = ? 的条件更新，
// 更新失败说明被并发修改，重新读取后按幂等规则处理。
// 同一事务内先更新预订行再更新支付记录。
type Lifecycle struct {
	db              *gorm.DB
	reservationRepo *repository.ReservationRepository
	paymentRepo     *repository.PaymentRepository
	refunds         RefundRequester
	clock           clock.Clock
	paymentTimeout  time.Duration
	batchSize       int
	metrics         *metrics.Metrics
}

// LifecycleConfig 状态流转配置
type LifecycleConfig struct {
	PaymentTimeout time.Duration
	SweepBatchSize int
}

// NewLifecycle 创建状态流转服务，refunds 为 nil 时只记录日志
func NewLifecycle(
	db *gorm.DB,
	reservationRepo *repository.ReservationRepository,
	paymentRepo *repository.PaymentRepository,
	refunds RefundRequester,
	clk clock.Clock,
	cfg LifecycleConfig,
	m *metrics.Metrics,
) *Lifecycle {
	if refunds == nil {
		refunds = LogRefundRequester{}
	}
	if cfg.PaymentTimeout <= 0 {
		cfg.PaymentTimeout = 30 * time.Minute
	}
	if cfg.SweepBatchSize <= 0 {
		cfg.SweepBatchSize = 100
	}
	return &Lifecycle{
		db:              db,
		reservationRepo: reservationRepo,
		paymentRepo:     paymentRepo,
		refunds:         refunds,
		clock:           clk,
		paymentTimeout:  cfg.PaymentTimeout,
		batchSize:       cfg.SweepBatchSize,
		metrics:         m,
	}
}

// PaymentDeadline 预订的支付截止时间
func (l *Lifecycle) PaymentDeadline(r *models.Reservation) time.Time {
	return r.CreatedAt.Add(l.paymentTimeout)
}

// isExpired 是否已超过支付期限，截止时刻本身仍在期限内
func (l *Lifecycle) isExpired(r *models.Reservation, now time.Time) bool {
	return now.After(l.PaymentDeadline(r))
}

// Confirm 支付完成后确认预订，重复确认视为成功
func (l *Lifecycle) Confirm(ctx context.Context, id int64) (*models.Reservation, error) {
	for attempt := 0; attempt < maxTransitionAttempts; attempt++ {
		r, err := l.get(ctx, id)
		if err != nil {
			return nil, err
		}
		switch r.Status {
		case models.ReservationStatusConfirmed:
			return r, nil
		case models.ReservationStatusPending:
		default:
			return nil, errors.ErrInvalidStatusTransition.WithMessagef("%s 状态的预订不能确认", r.Status)
		}

		now := l.clock.Now()
		var done bool
		err = l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			payments := l.paymentRepo.WithTx(tx)
			if l.isExpired(r, now) {
				requested, err := payments.ExistsWithStatus(ctx, id, models.PaymentStatusConfirmationRequested)
				if err != nil {
					return err
				}
				if !requested {
					return errors.ErrReservationExpired
				}
			}

			ok, err := l.reservationRepo.WithTx(tx).TransitionStatus(ctx, id,
				models.ReservationStatusPending, models.ReservationStatusConfirmed,
				map[string]interface{}{"confirmed_at": now, "updated_at": now})
			if err != nil || !ok {
				return err
			}
			if _, err := payments.TransitionByReservation(ctx, id,
				[]string{models.PaymentStatusPending, models.PaymentStatusConfirmationRequested},
				models.PaymentStatusCompleted,
				map[string]interface{}{"paid_at": now, "updated_at": now},
			); err != nil {
				return err
			}
			done = true
			return nil
		})
		if err != nil {
			return nil, wrapDBError(err)
		}
		if done {
			l.recordTransition(r, models.ReservationStatusConfirmed, "payment")
			return l.get(ctx, id)
		}
	}
	return nil, errors.ErrInvalidStatusTransition.WithMessage("预订状态并发变更，请重试")
}

// Cancel 取消预订；用户只能取消待支付的预订，经营者、管理员和系统可取消已确认的预订
func (l *Lifecycle) Cancel(ctx context.Context, id int64, actor Actor, reason string) (*models.Reservation, error) {
	return l.cancel(ctx, id, actor, reason, models.PaymentStatusCancelled, actor.trigger())
}

// FailPayment 支付失败或过期，取消待支付的预订并将支付记录标记为失败
func (l *Lifecycle) FailPayment(ctx context.Context, id int64, reason string) (*models.Reservation, error) {
	if reason == "" {
		reason = "支付失败"
	}
	r, err := l.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if r.Status == models.ReservationStatusConfirmed || r.Status == models.ReservationStatusCompleted {
		return nil, errors.ErrInvalidStatusTransition.WithMessagef("%s 状态的预订不能标记支付失败", r.Status)
	}
	return l.cancel(ctx, id, SystemActor(), reason, models.PaymentStatusFailed, "payment")
}

// cancel 取消预订，待支付时未完成的支付记录改为 pendingTo，已确认时已完成的支付记录改为申请退款
func (l *Lifecycle) cancel(ctx context.Context, id int64, actor Actor, reason, pendingTo, trigger string) (*models.Reservation, error) {
	for attempt := 0; attempt < maxTransitionAttempts; attempt++ {
		r, err := l.get(ctx, id)
		if err != nil {
			return nil, err
		}
		switch r.Status {
		case models.ReservationStatusCancelled:
			return r, nil
		case models.ReservationStatusPending:
		case models.ReservationStatusConfirmed:
			if !actor.CanCancelConfirmed() {
				return nil, errors.ErrReservationCannotCancel.WithMessage("已确认的预订请联系营地取消")
			}
		default:
			return nil, errors.ErrInvalidStatusTransition.WithMessagef("%s 状态的预订不能取消", r.Status)
		}

		now := l.clock.Now()
		from := r.Status
		var (
			done     bool
			refunded []models.Payment
		)
		err = l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			fields := map[string]interface{}{
				"cancelled_at": now,
				"cancelled_by": string(actor.Role),
				"updated_at":   now,
			}
			if reason != "" {
				fields["cancel_reason"] = reason
			}
			ok, err := l.reservationRepo.WithTx(tx).TransitionStatus(ctx, id, from, models.ReservationStatusCancelled, fields)
			if err != nil || !ok {
				return err
			}

			payments := l.paymentRepo.WithTx(tx)
			if from == models.ReservationStatusPending {
				paymentFields := map[string]interface{}{"updated_at": now}
				if pendingTo == models.PaymentStatusFailed {
					paymentFields["failure_reason"] = reason
				}
				if _, err := payments.TransitionByReservation(ctx, id,
					[]string{models.PaymentStatusPending, models.PaymentStatusConfirmationRequested},
					pendingTo, paymentFields,
				); err != nil {
					return err
				}
			} else {
				all, err := payments.ListByReservation(ctx, id)
				if err != nil {
					return err
				}
				for _, p := range all {
					if p.Status == models.PaymentStatusCompleted {
						p.Status = models.PaymentStatusRefundRequested
						refunded = append(refunded, p)
					}
				}
				if _, err := payments.TransitionByReservation(ctx, id,
					[]string{models.PaymentStatusCompleted}, models.PaymentStatusRefundRequested,
					map[string]interface{}{"updated_at": now},
				); err != nil {
					return err
				}
			}
			done = true
			return nil
		})
		if err != nil {
			return nil, wrapDBError(err)
		}
		if !done {
			continue
		}

		l.recordTransition(r, models.ReservationStatusCancelled, trigger)
		if len(refunded) > 0 {
			if err := l.refunds.RequestRefund(ctx, r, refunded); err != nil {
				logger.Error("发起退款失败",
					logger.ReservationID(id),
					logger.Err(err),
				)
			}
		}
		return l.get(ctx, id)
	}
	return nil, errors.ErrInvalidStatusTransition.WithMessage("预订状态并发变更，请重试")
}

// Complete 已确认的预订标记为已完成，重复完成视为成功
func (l *Lifecycle) Complete(ctx context.Context, id int64) (*models.Reservation, error) {
	for attempt := 0; attempt < maxTransitionAttempts; attempt++ {
		r, err := l.get(ctx, id)
		if err != nil {
			return nil, err
		}
		switch r.Status {
		case models.ReservationStatusCompleted:
			return r, nil
		case models.ReservationStatusConfirmed:
		default:
			return nil, errors.ErrInvalidStatusTransition.WithMessagef("%s 状态的预订不能完成", r.Status)
		}

		now := l.clock.Now()
		ok, err := l.reservationRepo.TransitionStatus(ctx, id,
			models.ReservationStatusConfirmed, models.ReservationStatusCompleted,
			map[string]interface{}{"completed_at": now, "updated_at": now})
		if err != nil {
			return nil, errors.ErrDatabaseError.WithError(err)
		}
		if ok {
			l.recordTransition(r, models.ReservationStatusCompleted, "manual")
			return l.get(ctx, id)
		}
	}
	return nil, errors.ErrInvalidStatusTransition.WithMessage("预订状态并发变更，请重试")
}

// RequestManualConfirmation 银行转账后申请人工确认，待支付记录改为已转账待确认
//
// 申请成功的预订不会被超时扫描取消。
func (l *Lifecycle) RequestManualConfirmation(ctx context.Context, id int64, depositorName string) (*models.Reservation, error) {
	r, err := l.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if r.Status != models.ReservationStatusPending {
		return nil, errors.ErrInvalidStatusTransition.WithMessagef("%s 状态的预订不能申请人工确认", r.Status)
	}

	now := l.clock.Now()
	err = l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 先锁预订行，与超时扫描互斥
		ok, err := l.reservationRepo.WithTx(tx).TouchIfStatus(ctx, id, models.ReservationStatusPending, now)
		if err != nil {
			return err
		}
		if !ok {
			return errors.ErrInvalidStatusTransition.WithMessage("预订状态已变更")
		}

		payments := l.paymentRepo.WithTx(tx)
		requested, err := payments.ExistsWithStatus(ctx, id, models.PaymentStatusConfirmationRequested)
		if err != nil {
			return err
		}
		if requested {
			return nil
		}
		if l.isExpired(r, now) {
			return errors.ErrReservationExpired
		}

		fields := map[string]interface{}{"updated_at": now}
		if depositorName != "" {
			fields["depositor_name"] = depositorName
		}
		n, err := payments.TransitionByReservation(ctx, id,
			[]string{models.PaymentStatusPending}, models.PaymentStatusConfirmationRequested, fields)
		if err != nil {
			return err
		}
		if n == 0 {
			return errors.ErrPaymentNotFound.WithMessage("没有待支付的支付记录")
		}
		return nil
	})
	if err != nil {
		return nil, wrapDBError(err)
	}

	logger.Info("申请人工确认转账",
		logger.Module("reservation"),
		logger.ReservationID(id),
	)
	return l.get(ctx, id)
}

func (l *Lifecycle) get(ctx context.Context, id int64) (*models.Reservation, error) {
	r, err := l.reservationRepo.GetByID(ctx, id)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.ErrReservationNotFound
		}
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	return r, nil
}

func (l *Lifecycle) recordTransition(r *models.Reservation, to, trigger string) {
	l.metrics.RecordTransition(r.Status, to, trigger)
	logger.Info("预订状态变更",
		logger.Module("reservation"),
		logger.ReservationID(r.ID),
		logger.Transition(r.Status, to),
		logger.String("trigger", trigger),
	)
}

func wrapDBError(err error) error {
	if errors.IsAppError(err) {
		return err
	}
	return errors.ErrDatabaseError.WithError(err)
}
