package reservation

import (
	"context"
	stderrors "errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dumeirei/camp-station-backend/internal/common/cache"
	"github.com/dumeirei/camp-station-backend/internal/common/clock"
	"github.com/dumeirei/camp-station-backend/internal/common/errors"
	"github.com/dumeirei/camp-station-backend/internal/common/lock"
	"github.com/dumeirei/camp-station-backend/internal/common/logger"
	"github.com/dumeirei/camp-station-backend/internal/common/metrics"
	"github.com/dumeirei/camp-station-backend/internal/common/tracing"
	"github.com/dumeirei/camp-station-backend/internal/models"
	"github.com/dumeirei/camp-station-backend/internal/repository"
)

// Draft 待写入的预订，价格已计算完成
type Draft struct {
	SiteID          int64
	UserID          *int64
	Guest           *models.Guest
	CheckIn         time.Time
	CheckOut        time.Time
	Guests          int
	Breakdown       *models.PriceBreakdown
	PaymentMethod   string
	SpecialRequests *string
}

// Guard 按营位串行化"检查冲突并写入"
type Guard struct {
	db              *gorm.DB
	reservationRepo *repository.ReservationRepository
	paymentRepo     *repository.PaymentRepository
	guestRepo       *repository.GuestRepository
	locker          lock.Locker
	lockWait        time.Duration
	clock           clock.Clock
	metrics         *metrics.Metrics
}

// NewGuard 创建预订冲突守卫，lockWait 为等待营位锁的最长时间，0 表示只受 ctx 控制
func NewGuard(
	db *gorm.DB,
	reservationRepo *repository.ReservationRepository,
	paymentRepo *repository.PaymentRepository,
	guestRepo *repository.GuestRepository,
	locker lock.Locker,
	lockWait time.Duration,
	clk clock.Clock,
	m *metrics.Metrics,
) *Guard {
	return &Guard{
		db:              db,
		reservationRepo: reservationRepo,
		paymentRepo:     paymentRepo,
		guestRepo:       guestRepo,
		locker:          locker,
		lockWait:        lockWait,
		clock:           clk,
		metrics:         m,
	}
}

// TryReserve 在营位锁和数据库事务内检查日期冲突，无冲突时写入待支付预订及支付记录
//
// 冲突时返回 ErrSlotConflict，不重试。
func (g *Guard) TryReserve(ctx context.Context, draft *Draft) (_ *models.Reservation, err error) {
	ctx, span := tracing.Start(ctx, "reservation.TryReserve",
		tracing.WithSiteID(draft.SiteID),
		tracing.AttrGuests.Int(draft.Guests),
	)
	defer func() {
		tracing.End(span, err)
		g.metrics.RecordReservationAttempt(attemptResult(err))
	}()

	checkIn, checkOut := clock.Date(draft.CheckIn), clock.Date(draft.CheckOut)
	if !checkOut.After(checkIn) || draft.Guests < 1 {
		return nil, errors.ErrInvalidStay
	}
	if draft.UserID == nil && draft.Guest == nil {
		return nil, errors.ErrInvalidParams.WithMessage("缺少预订人信息")
	}
	if draft.Breakdown == nil {
		return nil, errors.ErrInvalidParams.WithMessage("缺少价格明细")
	}

	release, err := g.lockSite(ctx, draft.SiteID)
	if err != nil {
		return nil, err
	}
	defer release()

	var reservation *models.Reservation
	err = g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		site, overlapping, err := g.reservationRepo.WithTx(tx).LockSiteAndFindOverlapping(ctx, draft.SiteID, checkIn, checkOut)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return errors.ErrSiteNotFound
			}
			return err
		}
		if site.Status != models.SiteStatusAvailable {
			return errors.ErrSiteNotAvailable
		}
		if len(overlapping) > 0 {
			return errors.ErrSlotConflict
		}

		now := g.clock.Now()
		var guestID *int64
		if draft.UserID == nil {
			guest := *draft.Guest
			guest.CreatedAt = now
			if err := g.guestRepo.WithTx(tx).Create(ctx, &guest); err != nil {
				return err
			}
			guestID = &guest.ID
		}

		reservation = &models.Reservation{
			ReservationNo:   newNumber("R", now),
			SiteID:          site.ID,
			CampgroundID:    site.CampgroundID,
			UserID:          draft.UserID,
			GuestID:         guestID,
			CheckInDate:     checkIn,
			CheckOutDate:    checkOut,
			NumberOfGuests:  draft.Guests,
			TotalAmount:     draft.Breakdown.Total,
			Status:          models.ReservationStatusPending,
			PriceBreakdown:  draft.Breakdown,
			SpecialRequests: draft.SpecialRequests,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if err := g.reservationRepo.WithTx(tx).Create(ctx, reservation); err != nil {
			return err
		}

		payment := &models.Payment{
			PaymentNo:     newNumber("P", now),
			ReservationID: reservation.ID,
			Amount:        reservation.TotalAmount,
			Method:        draft.PaymentMethod,
			Status:        models.PaymentStatusPending,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := g.paymentRepo.WithTx(tx).Create(ctx, payment); err != nil {
			return err
		}
		reservation.Payments = []models.Payment{*payment}
		return nil
	})
	if err != nil {
		if errors.IsAppError(err) {
			return nil, err
		}
		return nil, errors.ErrDatabaseError.WithError(err)
	}

	span.SetAttributes(tracing.WithReservationID(reservation.ID))
	logger.Info("营位预订已创建",
		logger.Module("reservation"),
		logger.SiteID(reservation.SiteID),
		logger.ReservationID(reservation.ID),
		logger.ReservationNo(reservation.ReservationNo),
		logger.Date("check_in", checkIn),
		logger.Date("check_out", checkOut),
	)
	return reservation, nil
}

// StayChange 待支付预订的新入住信息，价格已重新计算
type StayChange struct {
	ReservationID   int64
	SiteID          int64
	CheckIn         time.Time
	CheckOut        time.Time
	Guests          int
	Breakdown       *models.PriceBreakdown
	SpecialRequests *string
}

// TryUpdate 在营位锁和数据库事务内修改待支付预订的日期和人数，同步更新待支付金额
//
// 冲突检查不计入预订自身；预订已不是待支付状态时返回 ErrInvalidStatusTransition。
func (g *Guard) TryUpdate(ctx context.Context, change *StayChange) (err error) {
	ctx, span := tracing.Start(ctx, "reservation.TryUpdate",
		tracing.WithSiteID(change.SiteID),
		tracing.WithReservationID(change.ReservationID),
	)
	defer func() { tracing.End(span, err) }()

	checkIn, checkOut := clock.Date(change.CheckIn), clock.Date(change.CheckOut)
	if !checkOut.After(checkIn) || change.Guests < 1 {
		return errors.ErrInvalidStay
	}
	if change.Breakdown == nil {
		return errors.ErrInvalidParams.WithMessage("缺少价格明细")
	}

	release, err := g.lockSite(ctx, change.SiteID)
	if err != nil {
		return err
	}
	defer release()

	err = g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		site, overlapping, err := g.reservationRepo.WithTx(tx).LockSiteAndFindOverlappingExcept(ctx, change.SiteID, checkIn, checkOut, change.ReservationID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return errors.ErrSiteNotFound
			}
			return err
		}
		if site.Status != models.SiteStatusAvailable {
			return errors.ErrSiteNotAvailable
		}
		if len(overlapping) > 0 {
			return errors.ErrSlotConflict
		}

		now := g.clock.Now()
		fields := map[string]interface{}{
			"check_in_date":    checkIn,
			"check_out_date":   checkOut,
			"number_of_guests": change.Guests,
			"total_amount":     change.Breakdown.Total,
			"price_breakdown":  change.Breakdown,
			"updated_at":       now,
		}
		if change.SpecialRequests != nil {
			fields["special_requests"] = *change.SpecialRequests
		}
		ok, err := g.reservationRepo.WithTx(tx).UpdateIfStatus(ctx, change.ReservationID, models.ReservationStatusPending, fields)
		if err != nil {
			return err
		}
		if !ok {
			return errors.ErrInvalidStatusTransition
		}

		_, err = g.paymentRepo.WithTx(tx).TransitionByReservation(ctx, change.ReservationID,
			[]string{models.PaymentStatusPending}, models.PaymentStatusPending,
			map[string]interface{}{"amount": change.Breakdown.Total, "updated_at": now})
		return err
	})
	if err != nil {
		if errors.IsAppError(err) {
			return err
		}
		return errors.ErrDatabaseError.WithError(err)
	}

	logger.Info("待支付预订已修改",
		logger.Module("reservation"),
		logger.SiteID(change.SiteID),
		logger.ReservationID(change.ReservationID),
		logger.Date("check_in", checkIn),
		logger.Date("check_out", checkOut),
	)
	return nil
}

// lockSite 获取营位锁，等待时间受 lockWait 限制
func (g *Guard) lockSite(ctx context.Context, siteID int64) (func(), error) {
	lockCtx := ctx
	if g.lockWait > 0 {
		var cancel context.CancelFunc
		lockCtx, cancel = context.WithTimeout(ctx, g.lockWait)
		defer cancel()
	}
	waitStart := time.Now()
	release, err := g.locker.Acquire(lockCtx, cache.SiteLockKey(siteID))
	g.metrics.ObserveLockWait(time.Since(waitStart))
	if err != nil {
		logger.Warn("获取营位锁失败", logger.SiteID(siteID), logger.Err(err))
		return nil, err
	}
	return release, nil
}

func attemptResult(err error) string {
	switch {
	case err == nil:
		return metrics.ResultCreated
	case stderrors.Is(err, errors.ErrSlotConflict):
		return metrics.ResultConflict
	case !errors.IsAppError(err),
		stderrors.Is(err, errors.ErrDatabaseError),
		stderrors.Is(err, errors.ErrLockTimeout):
		return metrics.ResultError
	}
	return metrics.ResultRejected
}

// newNumber 生成业务单号：前缀 + 日期 + 12 位随机十六进制
func newNumber(prefix string, now time.Time) string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return prefix + now.UTC().Format("060102") + strings.ToUpper(id[:12])
}
