package scheduler

import (
	"context"
	"time"

	"github.com/dumeirei/camp-station-backend/internal/common/config"
	"github.com/dumeirei/camp-station-backend/internal/service/reservation"
)

// Sweeper 预订状态扫描
type Sweeper interface {
	CancelUnpaid(ctx context.Context) (reservation.SweepResult, error)
	CompleteCheckedOut(ctx context.Context) (reservation.SweepResult, error)
}

// TaskHandler 任务处理器
type TaskHandler struct {
	sweeper Sweeper
}

// NewTaskHandler 创建任务处理器
func NewTaskHandler(sweeper Sweeper) *TaskHandler {
	return &TaskHandler{sweeper: sweeper}
}

// CancelUnpaidReservations 取消超过支付期限的待支付预订
func (h *TaskHandler) CancelUnpaidReservations(ctx context.Context) error {
	_, err := h.sweeper.CancelUnpaid(ctx)
	return err
}

// CompleteCheckedOutReservations 完成退房日已过的预订
func (h *TaskHandler) CompleteCheckedOutReservations(ctx context.Context) error {
	_, err := h.sweeper.CompleteCheckedOut(ctx)
	return err
}

// SetupTasks 设置所有任务
func SetupTasks(scheduler *Scheduler, handler *TaskHandler, cfg *config.ReservationConfig) {
	cancelInterval := cfg.CancelSweepInterval
	if cancelInterval <= 0 {
		cancelInterval = time.Minute
	}
	completeInterval := cfg.CompleteSweepInterval
	if completeInterval <= 0 {
		completeInterval = 24 * time.Hour
	}

	// 每分钟取消超时未支付的预订
	scheduler.AddTask(reservation.TaskCancelUnpaid, cancelInterval, handler.CancelUnpaidReservations)

	// 每天完成已退房的预订
	scheduler.AddTask(reservation.TaskCompleteCheckedOut, completeInterval, handler.CompleteCheckedOutReservations)
}
