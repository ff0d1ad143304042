package reservation

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/dumeirei/camp-station-backend/internal/common/clock"
	"github.com/dumeirei/camp-station-backend/internal/common/errors"
	"github.com/dumeirei/camp-station-backend/internal/common/tracing"
	"github.com/dumeirei/camp-station-backend/internal/common/utils"
	"github.com/dumeirei/camp-station-backend/internal/models"
	"github.com/dumeirei/camp-station-backend/internal/repository"
)

// PriceCalculator 计算入住价格
type PriceCalculator interface {
	Calculate(ctx context.Context, site *models.Site, checkIn, checkOut time.Time, guests int, now time.Time) (*models.PriceBreakdown, error)
}

// DefaultMaxNights 单笔预订默认最多入住晚数
const DefaultMaxNights = 30

// BookingService 营位预订服务
type BookingService struct {
	siteRepo        *repository.SiteRepository
	reservationRepo *repository.ReservationRepository
	calculator      PriceCalculator
	guard           *Guard
	lifecycle       *Lifecycle
	clock           clock.Clock
	maxNights       int
}

// NewBookingService 创建预订服务，maxNights 不大于 0 时使用 DefaultMaxNights
func NewBookingService(
	siteRepo *repository.SiteRepository,
	reservationRepo *repository.ReservationRepository,
	calculator PriceCalculator,
	guard *Guard,
	lifecycle *Lifecycle,
	clk clock.Clock,
	maxNights int,
) *BookingService {
	if maxNights <= 0 {
		maxNights = DefaultMaxNights
	}
	return &BookingService{
		siteRepo:        siteRepo,
		reservationRepo: reservationRepo,
		calculator:      calculator,
		guard:           guard,
		lifecycle:       lifecycle,
		clock:           clk,
		maxNights:       maxNights,
	}
}

// GuestRequest 未登录预订人信息
type GuestRequest struct {
	Name  string `json:"name" binding:"required,max=50"`
	Phone string `json:"phone" binding:"required"`
	Email string `json:"email"`
}

// CreateReservationRequest 创建预订请求
type CreateReservationRequest struct {
	SiteID          int64         `json:"site_id" binding:"required"`
	CheckInDate     string        `json:"check_in_date" binding:"required"`
	CheckOutDate    string        `json:"check_out_date" binding:"required"`
	NumberOfGuests  int           `json:"number_of_guests" binding:"required,min=1"`
	PaymentMethod   string        `json:"payment_method"`
	SpecialRequests string        `json:"special_requests" binding:"max=500"`
	Guest           *GuestRequest `json:"guest"`
}

// ReservationInfo 预订信息
type ReservationInfo struct {
	ID              int64                  `json:"id"`
	ReservationNo   string                 `json:"reservation_no"`
	SiteID          int64                  `json:"site_id"`
	SiteNumber      string                 `json:"site_number,omitempty"`
	CampgroundID    int64                  `json:"campground_id"`
	CampgroundName  string                 `json:"campground_name,omitempty"`
	CheckInDate     string                 `json:"check_in_date"`
	CheckOutDate    string                 `json:"check_out_date"`
	Nights          int                    `json:"nights"`
	NumberOfGuests  int                    `json:"number_of_guests"`
	TotalAmount     string                 `json:"total_amount"`
	Status          string                 `json:"status"`
	StatusName      string                 `json:"status_name"`
	PriceBreakdown  *models.PriceBreakdown `json:"price_breakdown,omitempty"`
	Payments        []PaymentInfo          `json:"payments,omitempty"`
	SpecialRequests *string                `json:"special_requests,omitempty"`
	CancelReason    *string                `json:"cancel_reason,omitempty"`
	PaymentDeadline *time.Time             `json:"payment_deadline,omitempty"`
	ConfirmedAt     *time.Time             `json:"confirmed_at,omitempty"`
	CancelledAt     *time.Time             `json:"cancelled_at,omitempty"`
	CompletedAt     *time.Time             `json:"completed_at,omitempty"`
	CreatedAt       time.Time              `json:"created_at"`
}

// PaymentInfo 支付信息
type PaymentInfo struct {
	PaymentNo string     `json:"payment_no"`
	Amount    string     `json:"amount"`
	Method    string     `json:"method"`
	Status    string     `json:"status"`
	PaidAt    *time.Time `json:"paid_at,omitempty"`
}

// DateRange 日期区间 [check_in, check_out)
type DateRange struct {
	CheckIn  string `json:"check_in"`
	CheckOut string `json:"check_out"`
}

// UpdateReservationRequest 修改待支付预订，未填写的字段保持不变
type UpdateReservationRequest struct {
	CheckInDate     string  `json:"check_in_date"`
	CheckOutDate    string  `json:"check_out_date"`
	NumberOfGuests  int     `json:"number_of_guests" binding:"omitempty,min=1"`
	SpecialRequests *string `json:"special_requests" binding:"omitempty,max=500"`
}

// SiteReservedDates 单个营位已被占用的日期区间
type SiteReservedDates struct {
	SiteID     int64       `json:"site_id"`
	SiteNumber string      `json:"site_number"`
	Ranges     []DateRange `json:"ranges"`
}

// AvailabilityInfo 营位可预订情况
type AvailabilityInfo struct {
	SiteID    int64       `json:"site_id"`
	CheckIn   string      `json:"check_in"`
	CheckOut  string      `json:"check_out"`
	Available bool        `json:"available"`
	Conflicts []DateRange `json:"conflicts"`
}

// CreateReservation 创建预订：校验、计价、在营位锁内写入
//
// 计价在加锁之前完成，计价失败不会产生任何写入。
func (s *BookingService) CreateReservation(ctx context.Context, actor Actor, req *CreateReservationRequest) (_ *ReservationInfo, err error) {
	ctx, span := tracing.Start(ctx, "reservation.CreateReservation", tracing.WithSiteID(req.SiteID))
	defer func() { tracing.End(span, err) }()

	checkIn, checkOut, err := s.parseStay(req.CheckInDate, req.CheckOutDate)
	if err != nil {
		return nil, err
	}
	if req.NumberOfGuests < 1 {
		return nil, errors.ErrInvalidStay
	}

	now := s.clock.Now()
	if checkIn.Before(clock.Date(now)) {
		return nil, errors.ErrInvalidParams.WithMessage("入住日期不能早于今天")
	}

	method := strings.ToUpper(req.PaymentMethod)
	if method == "" {
		method = models.PaymentMethodCard
	}
	if !models.ValidPaymentMethod(method) {
		return nil, errors.ErrInvalidParams.WithMessage("不支持的支付方式")
	}

	draft := &Draft{
		SiteID:        req.SiteID,
		CheckIn:       checkIn,
		CheckOut:      checkOut,
		Guests:        req.NumberOfGuests,
		PaymentMethod: method,
	}
	if req.SpecialRequests != "" {
		draft.SpecialRequests = &req.SpecialRequests
	}

	if actor.UserID > 0 {
		userID := actor.UserID
		draft.UserID = &userID
	} else {
		guest, err := newGuest(req.Guest)
		if err != nil {
			return nil, err
		}
		draft.Guest = guest
	}

	site, err := s.getSite(ctx, req.SiteID)
	if err != nil {
		return nil, err
	}
	if site.Status != models.SiteStatusAvailable {
		return nil, errors.ErrSiteNotAvailable
	}
	if site.Campground != nil && site.Campground.Status != models.CampgroundStatusActive {
		return nil, errors.ErrCampgroundNotActive
	}

	breakdown, err := s.calculator.Calculate(ctx, site, checkIn, checkOut, req.NumberOfGuests, now)
	if err != nil {
		return nil, err
	}
	draft.Breakdown = breakdown

	reservation, err := s.guard.TryReserve(ctx, draft)
	if err != nil {
		return nil, err
	}
	reservation.Site = site
	return s.toReservationInfo(reservation), nil
}

// UpdateReservation 修改待支付预订的日期、人数或备注，重新计价并在营位锁内检查冲突
//
// 只有预订人本人和管理员可以修改；已确认、已取消的预订不可修改。
func (s *BookingService) UpdateReservation(ctx context.Context, actor Actor, id int64, req *UpdateReservationRequest) (_ *ReservationInfo, err error) {
	ctx, span := tracing.Start(ctx, "reservation.UpdateReservation", tracing.WithReservationID(id))
	defer func() { tracing.End(span, err) }()

	reservation, err := s.getWithDetails(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canView(actor, reservation) {
		return nil, errors.ErrReservationNotFound
	}
	if !canEdit(actor, reservation) {
		return nil, errors.ErrPermissionDenied
	}
	if reservation.Status != models.ReservationStatusPending {
		return nil, errors.ErrInvalidStatusTransition.WithMessage("只有待支付的预订可以修改")
	}

	checkInDate, checkOutDate := req.CheckInDate, req.CheckOutDate
	if checkInDate == "" {
		checkInDate = formatDate(reservation.CheckInDate)
	}
	if checkOutDate == "" {
		checkOutDate = formatDate(reservation.CheckOutDate)
	}
	checkIn, checkOut, err := s.parseStay(checkInDate, checkOutDate)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	if checkIn.Before(clock.Date(now)) {
		return nil, errors.ErrInvalidParams.WithMessage("入住日期不能早于今天")
	}
	guests := reservation.NumberOfGuests
	if req.NumberOfGuests > 0 {
		guests = req.NumberOfGuests
	}

	site := reservation.Site
	if site == nil {
		if site, err = s.getSite(ctx, reservation.SiteID); err != nil {
			return nil, err
		}
	}
	breakdown, err := s.calculator.Calculate(ctx, site, checkIn, checkOut, guests, now)
	if err != nil {
		return nil, err
	}

	err = s.guard.TryUpdate(ctx, &StayChange{
		ReservationID:   id,
		SiteID:          reservation.SiteID,
		CheckIn:         checkIn,
		CheckOut:        checkOut,
		Guests:          guests,
		Breakdown:       breakdown,
		SpecialRequests: req.SpecialRequests,
	})
	if err != nil {
		return nil, err
	}

	updated, err := s.getWithDetails(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.toReservationInfo(updated), nil
}

// ListMyReservations 当前登录用户自己的预订，按入住日期排序
func (s *BookingService) ListMyReservations(ctx context.Context, actor Actor, statuses []string, page *utils.Pagination) ([]*ReservationInfo, error) {
	if actor.UserID <= 0 {
		return nil, errors.ErrUnauthorized
	}

	page.Normalize()
	reservations, total, err := s.reservationRepo.List(ctx, page.GetOffset(), page.GetLimit(), repository.ReservationFilter{
		UserID:   actor.UserID,
		Statuses: statuses,
		WithSite: true,
	})
	if err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	page.Total = total

	list := make([]*ReservationInfo, 0, len(reservations))
	for i := range reservations {
		list = append(list, s.toReservationInfo(&reservations[i]))
	}
	return list, nil
}

// ReservedDatesForSite 营位今天及以后被占用的日期区间，用于日历展示
func (s *BookingService) ReservedDatesForSite(ctx context.Context, siteID int64) ([]DateRange, error) {
	if _, err := s.getSite(ctx, siteID); err != nil {
		return nil, err
	}
	reservations, err := s.reservationRepo.ListActiveBySite(ctx, siteID, clock.Today(s.clock))
	if err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	return toDateRanges(reservations), nil
}

// ReservedDatesForCampground 营地每个营位今天及以后被占用的日期区间，没有预订的营位返回空区间
func (s *BookingService) ReservedDatesForCampground(ctx context.Context, campgroundID int64) ([]SiteReservedDates, error) {
	sites, err := s.siteRepo.ListByCampground(ctx, campgroundID)
	if err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	if len(sites) == 0 {
		return nil, errors.ErrCampgroundNotFound
	}

	reservations, err := s.reservationRepo.ListActiveByCampground(ctx, campgroundID, clock.Today(s.clock))
	if err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	bySite := make(map[int64][]models.Reservation, len(sites))
	for _, r := range reservations {
		bySite[r.SiteID] = append(bySite[r.SiteID], r)
	}

	result := make([]SiteReservedDates, 0, len(sites))
	for _, site := range sites {
		result = append(result, SiteReservedDates{
			SiteID:     site.ID,
			SiteNumber: site.SiteNumber,
			Ranges:     toDateRanges(bySite[site.ID]),
		})
	}
	return result, nil
}

// GetReservation 获取预订详情，用户只能查看自己的预订，经营者只能查看自己营地的预订
func (s *BookingService) GetReservation(ctx context.Context, actor Actor, id int64) (*ReservationInfo, error) {
	reservation, err := s.getWithDetails(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canView(actor, reservation) {
		return nil, errors.ErrReservationNotFound
	}
	return s.toReservationInfo(reservation), nil
}

// voucherPrefix 入营凭证内容前缀，营地扫码后按预订号核验
const voucherPrefix = "CAMPSTATION:"

// VoucherInfo 入营凭证
type VoucherInfo struct {
	ReservationNo string `json:"reservation_no"`
	SiteNumber    string `json:"site_number"`
	CheckInDate   string `json:"check_in_date"`
	CheckOutDate  string `json:"check_out_date"`
	Content       string `json:"content"`
}

// CheckInVoucher 已确认预订的入营凭证
func (s *BookingService) CheckInVoucher(ctx context.Context, actor Actor, id int64) (*VoucherInfo, error) {
	reservation, err := s.getWithDetails(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canView(actor, reservation) {
		return nil, errors.ErrReservationNotFound
	}
	if reservation.Status != models.ReservationStatusConfirmed {
		return nil, errors.ErrReservationNotConfirmed
	}

	info := &VoucherInfo{
		ReservationNo: reservation.ReservationNo,
		CheckInDate:   formatDate(reservation.CheckInDate),
		CheckOutDate:  formatDate(reservation.CheckOutDate),
		Content:       voucherPrefix + reservation.ReservationNo,
	}
	if reservation.Site != nil {
		info.SiteNumber = reservation.Site.SiteNumber
	}
	return info, nil
}

// GetGuestReservation 未登录预订人凭预订号和手机号查询
func (s *BookingService) GetGuestReservation(ctx context.Context, reservationNo, phone string) (*ReservationInfo, error) {
	reservation, err := s.getGuestReservation(ctx, reservationNo, phone)
	if err != nil {
		return nil, err
	}
	return s.toReservationInfo(reservation), nil
}

// ListSiteReservations 营位的预订列表，仅经营者和管理员可查看
func (s *BookingService) ListSiteReservations(ctx context.Context, actor Actor, siteID int64, statuses []string, page *utils.Pagination) ([]*ReservationInfo, error) {
	site, err := s.getSite(ctx, siteID)
	if err != nil {
		return nil, err
	}
	if !canManage(actor, site) {
		return nil, errors.ErrPermissionDenied
	}

	page.Normalize()
	reservations, total, err := s.reservationRepo.List(ctx, page.GetOffset(), page.GetLimit(), repository.ReservationFilter{
		SiteID:   siteID,
		Statuses: statuses,
	})
	if err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	page.Total = total

	list := make([]*ReservationInfo, 0, len(reservations))
	for i := range reservations {
		reservations[i].Site = site
		list = append(list, s.toReservationInfo(&reservations[i]))
	}
	return list, nil
}

// CheckAvailability 查询营位在 [checkIn, checkOut) 是否可预订
//
// 结果只是快照，真正的冲突检查在创建预订时进行。
func (s *BookingService) CheckAvailability(ctx context.Context, siteID int64, checkInDate, checkOutDate string) (*AvailabilityInfo, error) {
	checkIn, checkOut, err := s.parseStay(checkInDate, checkOutDate)
	if err != nil {
		return nil, err
	}
	site, err := s.getSite(ctx, siteID)
	if err != nil {
		return nil, err
	}

	overlapping, err := s.reservationRepo.FindOverlapping(ctx, siteID, checkIn, checkOut)
	if err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}

	info := &AvailabilityInfo{
		SiteID:    siteID,
		CheckIn:   checkInDate,
		CheckOut:  checkOutDate,
		Available: site.IsBookable() && len(overlapping) == 0,
		Conflicts: toDateRanges(overlapping),
	}
	return info, nil
}

// OnPaymentConfirmed 支付成功回调
func (s *BookingService) OnPaymentConfirmed(ctx context.Context, id int64) (*ReservationInfo, error) {
	reservation, err := s.lifecycle.Confirm(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.toReservationInfo(reservation), nil
}

// OnPaymentFailedOrExpired 支付失败或过期回调
func (s *BookingService) OnPaymentFailedOrExpired(ctx context.Context, id int64, reason string) (*ReservationInfo, error) {
	reservation, err := s.lifecycle.FailPayment(ctx, id, reason)
	if err != nil {
		return nil, err
	}
	return s.toReservationInfo(reservation), nil
}

// RequestManualConfirmation 银行转账人工确认申请
func (s *BookingService) RequestManualConfirmation(ctx context.Context, id int64, depositorName string) (*ReservationInfo, error) {
	reservation, err := s.lifecycle.RequestManualConfirmation(ctx, id, depositorName)
	if err != nil {
		return nil, err
	}
	return s.toReservationInfo(reservation), nil
}

// CancelReservation 取消预订
func (s *BookingService) CancelReservation(ctx context.Context, actor Actor, id int64, reason string) (*ReservationInfo, error) {
	reservation, err := s.getWithDetails(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canView(actor, reservation) {
		return nil, errors.ErrReservationNotFound
	}

	cancelled, err := s.lifecycle.Cancel(ctx, id, actor, reason)
	if err != nil {
		return nil, err
	}
	return s.toReservationInfo(cancelled), nil
}

// CompleteReservation 经营者或管理员提前将已确认的预订标记为完成
func (s *BookingService) CompleteReservation(ctx context.Context, actor Actor, id int64) (*ReservationInfo, error) {
	reservation, err := s.getWithDetails(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canView(actor, reservation) {
		return nil, errors.ErrReservationNotFound
	}
	if reservation.Site == nil || !canManage(actor, reservation.Site) {
		return nil, errors.ErrPermissionDenied
	}

	completed, err := s.lifecycle.Complete(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.toReservationInfo(completed), nil
}

// CancelGuestReservation 未登录预订人凭预订号和手机号取消
func (s *BookingService) CancelGuestReservation(ctx context.Context, reservationNo, phone, reason string) (*ReservationInfo, error) {
	reservation, err := s.getGuestReservation(ctx, reservationNo, phone)
	if err != nil {
		return nil, err
	}
	cancelled, err := s.lifecycle.Cancel(ctx, reservation.ID, Actor{Role: RoleGuest}, reason)
	if err != nil {
		return nil, err
	}
	return s.toReservationInfo(cancelled), nil
}

func (s *BookingService) getSite(ctx context.Context, id int64) (*models.Site, error) {
	site, err := s.siteRepo.GetByID(ctx, id)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.ErrSiteNotFound
		}
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	return site, nil
}

func (s *BookingService) getWithDetails(ctx context.Context, id int64) (*models.Reservation, error) {
	reservation, err := s.reservationRepo.GetByIDWithDetails(ctx, id)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.ErrReservationNotFound
		}
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	return reservation, nil
}

func (s *BookingService) getGuestReservation(ctx context.Context, reservationNo, phone string) (*models.Reservation, error) {
	r, err := s.reservationRepo.GetByReservationNo(ctx, reservationNo)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.ErrReservationNotFound
		}
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	reservation, err := s.getWithDetails(ctx, r.ID)
	if err != nil {
		return nil, err
	}
	// 手机号不匹配时按不存在处理
	if reservation.Guest == nil || reservation.Guest.Phone != phone {
		return nil, errors.ErrReservationNotFound
	}
	return reservation, nil
}

func (s *BookingService) toReservationInfo(r *models.Reservation) *ReservationInfo {
	info := &ReservationInfo{
		ID:              r.ID,
		ReservationNo:   r.ReservationNo,
		SiteID:          r.SiteID,
		CampgroundID:    r.CampgroundID,
		CheckInDate:     formatDate(r.CheckInDate),
		CheckOutDate:    formatDate(r.CheckOutDate),
		Nights:          r.Nights(),
		NumberOfGuests:  r.NumberOfGuests,
		TotalAmount:     r.TotalAmount.StringFixed(2),
		Status:          r.Status,
		StatusName:      models.ReservationStatusNames[r.Status],
		PriceBreakdown:  r.PriceBreakdown,
		SpecialRequests: r.SpecialRequests,
		CancelReason:    r.CancelReason,
		ConfirmedAt:     r.ConfirmedAt,
		CancelledAt:     r.CancelledAt,
		CompletedAt:     r.CompletedAt,
		CreatedAt:       r.CreatedAt,
	}
	if r.Status == models.ReservationStatusPending {
		deadline := s.lifecycle.PaymentDeadline(r)
		info.PaymentDeadline = &deadline
	}
	if r.Site != nil {
		info.SiteNumber = r.Site.SiteNumber
		if r.Site.Campground != nil {
			info.CampgroundName = r.Site.Campground.Name
		}
	}
	for _, p := range r.Payments {
		info.Payments = append(info.Payments, PaymentInfo{
			PaymentNo: p.PaymentNo,
			Amount:    p.Amount.StringFixed(2),
			Method:    p.Method,
			Status:    p.Status,
			PaidAt:    p.PaidAt,
		})
	}
	return info
}

// canView 预订人本人、营地经营者、管理员和系统可查看
func canView(actor Actor, r *models.Reservation) bool {
	switch actor.Role {
	case RoleAdmin, RoleSystem:
		return true
	case RoleOwner:
		if r.Site != nil && canManage(actor, r.Site) {
			return true
		}
	}
	return actor.UserID > 0 && r.UserID != nil && *r.UserID == actor.UserID
}

// canEdit 预订人本人或管理员
func canEdit(actor Actor, r *models.Reservation) bool {
	switch actor.Role {
	case RoleAdmin, RoleSystem:
		return true
	}
	return actor.UserID > 0 && r.UserID != nil && *r.UserID == actor.UserID
}

// canManage 管理员或营地经营者本人
func canManage(actor Actor, site *models.Site) bool {
	switch actor.Role {
	case RoleAdmin, RoleSystem:
		return true
	case RoleOwner:
		return site.Campground != nil && site.Campground.OwnerID == actor.UserID
	}
	return false
}

func newGuest(req *GuestRequest) (*models.Guest, error) {
	if req == nil || strings.TrimSpace(req.Name) == "" || req.Phone == "" {
		return nil, errors.ErrInvalidParams.WithMessage("未登录预订需要填写姓名和手机号")
	}
	if !utils.ValidatePhone(req.Phone) {
		return nil, errors.ErrInvalidParams.WithMessage("手机号格式不正确")
	}
	guest := &models.Guest{
		Name:  strings.TrimSpace(req.Name),
		Phone: req.Phone,
	}
	if req.Email != "" {
		if !utils.ValidateEmail(req.Email) {
			return nil, errors.ErrInvalidParams.WithMessage("邮箱格式不正确")
		}
		guest.Email = &req.Email
	}
	return guest, nil
}

func (s *BookingService) parseStay(checkInDate, checkOutDate string) (time.Time, time.Time, error) {
	checkIn, err := clock.ParseDate(checkInDate)
	if err != nil {
		return time.Time{}, time.Time{}, errors.ErrInvalidParams.WithMessage("入住日期格式应为 YYYY-MM-DD")
	}
	checkOut, err := clock.ParseDate(checkOutDate)
	if err != nil {
		return time.Time{}, time.Time{}, errors.ErrInvalidParams.WithMessage("退房日期格式应为 YYYY-MM-DD")
	}
	if !checkOut.After(checkIn) {
		return time.Time{}, time.Time{}, errors.ErrInvalidStay
	}
	if clock.DaysBetween(checkIn, checkOut) > s.maxNights {
		return time.Time{}, time.Time{}, errors.ErrInvalidStay.WithMessagef("单笔预订最多 %d 晚", s.maxNights)
	}
	return checkIn, checkOut, nil
}

func toDateRanges(reservations []models.Reservation) []DateRange {
	ranges := make([]DateRange, 0, len(reservations))
	for _, r := range reservations {
		ranges = append(ranges, DateRange{
			CheckIn:  formatDate(r.CheckInDate),
			CheckOut: formatDate(r.CheckOutDate),
		})
	}
	return ranges
}

func formatDate(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
