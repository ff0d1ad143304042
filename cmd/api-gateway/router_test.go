package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/dumeirei/camp-station-backend/internal/common/clock"
	"github.com/dumeirei/camp-station-backend/internal/common/config"
	"github.com/dumeirei/camp-station-backend/internal/common/database"
	appErrors "github.com/dumeirei/camp-station-backend/internal/common/errors"
	"github.com/dumeirei/camp-station-backend/internal/common/jwt"
	"github.com/dumeirei/camp-station-backend/internal/middleware"
	"github.com/dumeirei/camp-station-backend/internal/models"
)

const internalToken = "internal-test-token"

type apiResponse struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type testServer struct {
	engine *gin.Engine
	jwt    *jwt.Manager
	site   *models.Site
}

func setupServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:  logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, database.Migrate(db))

	campground := &models.Campground{OwnerID: 7, Name: "星空营地", Status: models.CampgroundStatusActive}
	require.NoError(t, db.Create(campground).Error)
	capacity := 4
	site := &models.Site{
		CampgroundID: campground.ID,
		SiteNumber:   "A-01",
		Status:       models.SiteStatusAvailable,
		DefaultPrice: decimal.NewNullDecimal(decimal.NewFromInt(100)),
		Capacity:     &capacity,
	}
	require.NoError(t, db.Create(site).Error)

	cfg := &config.Config{
		Server:  config.ServerConfig{InternalToken: internalToken},
		JWT:     config.JWTConfig{Secret: "router-test-secret", AccessTokenExpire: 1, Issuer: "camp-station"},
		Metrics: config.MetricsConfig{Path: "/metrics"},
		Tracing: config.TracingConfig{ServiceName: "camp-station-test"},
		Business: config.BusinessConfig{
			Reservation: config.ReservationConfig{
				PaymentTimeoutMinutes: 30,
				SweepBatchSize:        100,
				LockBackend:           config.LockBackendLocal,
			},
			Pricing: config.PricingConfig{RulesCacheTTL: time.Minute},
		},
	}

	engine := gin.New()
	setupRouter(engine, cfg, zap.NewNop(), db, nil, nil, newServices(cfg, db, nil, nil))

	return &testServer{
		engine: engine,
		jwt: jwt.NewManager(&jwt.Config{
			Secret:           cfg.JWT.Secret,
			AccessExpireTime: time.Hour,
			Issuer:           cfg.JWT.Issuer,
		}),
		site: site,
	}
}

func (s *testServer) token(t *testing.T, userID int64, role string) string {
	t.Helper()
	token, _, err := s.jwt.GenerateAccessToken(userID, role)
	require.NoError(t, err)
	return "Bearer " + token
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}, headers map[string]string) (*httptest.ResponseRecorder, apiResponse) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)

	var resp apiResponse
	if w.Header().Get("Content-Type") != "" && bytes.HasPrefix(w.Body.Bytes(), []byte("{")) {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	}
	return w, resp
}

// stayDates 以当前日期为基准的入住和退房日期
func stayDates(offsetDays, nights int) (string, string) {
	in := clock.Today(clock.Real{}).AddDate(0, 0, offsetDays)
	return in.Format("2006-01-02"), in.AddDate(0, 0, nights).Format("2006-01-02")
}

func TestRouter_HealthEndpoints(t *testing.T) {
	s := setupServer(t)

	w, _ := s.do(t, http.MethodGet, "/ping", nil, nil)
	assert.Equal(t, "pong", w.Body.String())

	w, _ = s.do(t, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = s.do(t, http.MethodGet, "/ready", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"redis":"disabled"`)
	assert.NotEmpty(t, w.Header().Get(middleware.HeaderRequestID))
}

func TestRouter_PriceQuote(t *testing.T) {
	s := setupServer(t)
	in, out := stayDates(30, 2)
	path := fmt.Sprintf("/api/v1/sites/%d/price-quote", s.site.ID)

	_, resp := s.do(t, http.MethodPost, path, map[string]interface{}{
		"check_in_date": in, "check_out_date": out, "number_of_guests": 2,
	}, nil)
	require.Equal(t, 0, resp.Code, resp.Message)

	var breakdown models.PriceBreakdown
	require.NoError(t, json.Unmarshal(resp.Data, &breakdown))
	assert.Equal(t, 2, breakdown.Nights)
	assert.True(t, breakdown.Total.Equal(decimal.NewFromInt(200)), breakdown.Total.String())

	t.Run("日期格式错误", func(t *testing.T) {
		w, _ := s.do(t, http.MethodPost, path, map[string]interface{}{
			"check_in_date": "2024/07/01", "check_out_date": out, "number_of_guests": 2,
		}, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("营位不存在", func(t *testing.T) {
		_, resp := s.do(t, http.MethodPost, "/api/v1/sites/9999/price-quote", map[string]interface{}{
			"check_in_date": in, "check_out_date": out, "number_of_guests": 2,
		}, nil)
		assert.Equal(t, appErrors.ErrSiteNotFound.Code, resp.Code)
	})
}

func TestRouter_PricingRules(t *testing.T) {
	s := setupServer(t)
	rulesPath := fmt.Sprintf("/api/v1/sites/%d/pricing-rules", s.site.ID)
	rule := map[string]interface{}{
		"name":        "基础价",
		"rule_type":   "BASE",
		"base_price":  "150",
		"base_guests": 2,
		"max_guests":  4,
	}

	w, _ := s.do(t, http.MethodPost, rulesPath, rule, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, _ = s.do(t, http.MethodPost, rulesPath, rule, map[string]string{"Authorization": s.token(t, 1001, jwt.RoleUser)})
	assert.Equal(t, http.StatusForbidden, w.Code)

	_, resp := s.do(t, http.MethodPost, rulesPath, rule, map[string]string{"Authorization": s.token(t, 8, jwt.RoleOwner)})
	assert.Equal(t, appErrors.ErrPermissionDenied.Code, resp.Code)

	owner := map[string]string{"Authorization": s.token(t, 7, jwt.RoleOwner)}
	_, resp = s.do(t, http.MethodPost, rulesPath, rule, owner)
	require.Equal(t, 0, resp.Code, resp.Message)

	var created models.PricingRule
	require.NoError(t, json.Unmarshal(resp.Data, &created))
	assert.Equal(t, s.site.ID, created.SiteID)

	t.Run("重名规则", func(t *testing.T) {
		_, resp := s.do(t, http.MethodPost, rulesPath, rule, owner)
		assert.Equal(t, appErrors.ErrPricingRuleNameExists.Code, resp.Code)
	})

	t.Run("报价使用新规则", func(t *testing.T) {
		in, out := stayDates(30, 1)
		_, resp := s.do(t, http.MethodPost, fmt.Sprintf("/api/v1/sites/%d/price-quote", s.site.ID), map[string]interface{}{
			"check_in_date": in, "check_out_date": out, "number_of_guests": 2,
		}, nil)
		var breakdown models.PriceBreakdown
		require.NoError(t, json.Unmarshal(resp.Data, &breakdown))
		assert.True(t, breakdown.Total.Equal(decimal.NewFromInt(150)), breakdown.Total.String())
	})

	rulePath := fmt.Sprintf("/api/v1/pricing-rules/%d", created.ID)
	admin := map[string]string{"Authorization": s.token(t, 1, jwt.RoleAdmin)}

	_, resp = s.do(t, http.MethodGet, rulePath, nil, admin)
	assert.Equal(t, 0, resp.Code)

	rule["base_price"] = "180"
	_, resp = s.do(t, http.MethodPut, rulePath, rule, owner)
	require.Equal(t, 0, resp.Code, resp.Message)

	_, resp = s.do(t, http.MethodGet, rulesPath, nil, owner)
	var rules []models.PricingRule
	require.NoError(t, json.Unmarshal(resp.Data, &rules))
	require.Len(t, rules, 1)
	assert.True(t, rules[0].BasePrice.Equal(decimal.NewFromInt(180)))

	_, resp = s.do(t, http.MethodDelete, rulePath, nil, owner)
	assert.Equal(t, 0, resp.Code)
	_, resp = s.do(t, http.MethodGet, rulePath, nil, owner)
	assert.Equal(t, appErrors.ErrPricingRuleNotFound.Code, resp.Code)
}

func TestRouter_ReservationFlow(t *testing.T) {
	s := setupServer(t)
	in, out := stayDates(14, 2)
	user := map[string]string{"Authorization": s.token(t, 1001, jwt.RoleUser)}
	callback := map[string]string{middleware.HeaderInternalToken: internalToken}

	_, resp := s.do(t, http.MethodPost, "/api/v1/reservations", map[string]interface{}{
		"site_id": s.site.ID, "check_in_date": in, "check_out_date": out, "number_of_guests": 2,
	}, user)
	require.Equal(t, 0, resp.Code, resp.Message)

	var info struct {
		ID            int64  `json:"id"`
		ReservationNo string `json:"reservation_no"`
		Status        string `json:"status"`
		TotalAmount   string `json:"total_amount"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &info))
	assert.Equal(t, models.ReservationStatusPending, info.Status)
	assert.Equal(t, "200.00", info.TotalAmount)

	t.Run("日期重叠", func(t *testing.T) {
		overlapIn, overlapOut := stayDates(15, 2)
		_, resp := s.do(t, http.MethodPost, "/api/v1/reservations", map[string]interface{}{
			"site_id": s.site.ID, "check_in_date": overlapIn, "check_out_date": overlapOut, "number_of_guests": 1,
		}, user)
		assert.Equal(t, appErrors.ErrSlotConflict.Code, resp.Code)
	})

	t.Run("可订查询", func(t *testing.T) {
		_, resp := s.do(t, http.MethodGet, fmt.Sprintf("/api/v1/sites/%d/availability?check_in=%s&check_out=%s", s.site.ID, in, out), nil, nil)
		require.Equal(t, 0, resp.Code)
		assert.Contains(t, string(resp.Data), `"available":false`)
	})

	detailPath := fmt.Sprintf("/api/v1/reservations/%d", info.ID)
	w, _ := s.do(t, http.MethodGet, detailPath, nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	_, resp = s.do(t, http.MethodGet, detailPath, nil, map[string]string{"Authorization": s.token(t, 2002, jwt.RoleUser)})
	assert.Equal(t, appErrors.ErrReservationNotFound.Code, resp.Code)

	_, resp = s.do(t, http.MethodGet, detailPath, nil, user)
	assert.Equal(t, 0, resp.Code)

	_, resp = s.do(t, http.MethodGet, detailPath+"/voucher", nil, user)
	assert.Equal(t, appErrors.ErrReservationNotConfirmed.Code, resp.Code)

	confirmPath := fmt.Sprintf("/api/v1/payments/reservations/%d/confirmed", info.ID)
	w, _ = s.do(t, http.MethodPost, confirmPath, nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	_, resp = s.do(t, http.MethodPost, confirmPath, nil, callback)
	require.Equal(t, 0, resp.Code, resp.Message)
	assert.Contains(t, string(resp.Data), `"status":"CONFIRMED"`)

	t.Run("入营凭证", func(t *testing.T) {
		_, resp := s.do(t, http.MethodGet, detailPath+"/voucher", nil, user)
		require.Equal(t, 0, resp.Code, resp.Message)
		assert.Contains(t, string(resp.Data), `"content":"CAMPSTATION:`+info.ReservationNo+`"`)
		assert.Contains(t, string(resp.Data), `"qrcode":"data:image/png;base64,`)

		w, _ := s.do(t, http.MethodGet, detailPath+"/voucher?format=png", nil, user)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
		assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("\x89PNG")))
	})

	// 已确认的预订用户不能自行取消
	_, resp = s.do(t, http.MethodPost, detailPath+"/cancel", map[string]string{"reason": "改期"}, user)
	assert.Equal(t, appErrors.ErrReservationCannotCancel.Code, resp.Code)

	_, resp = s.do(t, http.MethodPost, detailPath+"/cancel", map[string]string{"reason": "营地检修"}, map[string]string{"Authorization": s.token(t, 7, jwt.RoleOwner)})
	require.Equal(t, 0, resp.Code, resp.Message)
	assert.Contains(t, string(resp.Data), `"status":"CANCELLED"`)
}

func TestRouter_GuestReservation(t *testing.T) {
	s := setupServer(t)
	in, out := stayDates(7, 1)

	_, resp := s.do(t, http.MethodPost, "/api/v1/reservations", map[string]interface{}{
		"site_id": s.site.ID, "check_in_date": in, "check_out_date": out, "number_of_guests": 1,
	}, nil)
	assert.Equal(t, appErrors.ErrInvalidParams.Code, resp.Code)

	_, resp = s.do(t, http.MethodPost, "/api/v1/reservations", map[string]interface{}{
		"site_id": s.site.ID, "check_in_date": in, "check_out_date": out, "number_of_guests": 1,
		"payment_method": "BANK_TRANSFER",
		"guest":          map[string]string{"name": "张三", "phone": "13800138000"},
	}, nil)
	require.Equal(t, 0, resp.Code, resp.Message)

	var info struct {
		ID            int64  `json:"id"`
		ReservationNo string `json:"reservation_no"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &info))

	_, resp = s.do(t, http.MethodGet, "/api/v1/guest/reservations?reservation_no="+info.ReservationNo+"&phone=13800138000", nil, nil)
	assert.Equal(t, 0, resp.Code)

	_, resp = s.do(t, http.MethodPost, fmt.Sprintf("/api/v1/payments/reservations/%d/confirmation-requested", info.ID),
		map[string]string{"depositor_name": "张三"},
		map[string]string{middleware.HeaderInternalToken: internalToken})
	require.Equal(t, 0, resp.Code, resp.Message)

	_, resp = s.do(t, http.MethodPost, "/api/v1/guest/reservations/cancel", map[string]string{
		"reservation_no": info.ReservationNo, "phone": "13900139000",
	}, nil)
	assert.Equal(t, appErrors.ErrReservationNotFound.Code, resp.Code)

	_, resp = s.do(t, http.MethodPost, "/api/v1/guest/reservations/cancel", map[string]string{
		"reservation_no": info.ReservationNo, "phone": "13800138000", "reason": "行程变更",
	}, nil)
	require.Equal(t, 0, resp.Code, resp.Message)
	assert.Contains(t, string(resp.Data), `"status":"CANCELLED"`)
}

func TestRouter_PaymentFailedCallback(t *testing.T) {
	s := setupServer(t)
	in, out := stayDates(10, 1)
	user := map[string]string{"Authorization": s.token(t, 1001, jwt.RoleUser)}

	_, resp := s.do(t, http.MethodPost, "/api/v1/reservations", map[string]interface{}{
		"site_id": s.site.ID, "check_in_date": in, "check_out_date": out, "number_of_guests": 2,
	}, user)
	require.Equal(t, 0, resp.Code, resp.Message)
	var info struct {
		ID int64 `json:"id"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &info))

	_, resp = s.do(t, http.MethodPost, fmt.Sprintf("/api/v1/payments/reservations/%d/failed", info.ID),
		map[string]string{"reason": "余额不足"},
		map[string]string{middleware.HeaderInternalToken: internalToken})
	require.Equal(t, 0, resp.Code, resp.Message)
	assert.Contains(t, string(resp.Data), `"status":"CANCELLED"`)

	// 失败后日期重新可订
	_, resp = s.do(t, http.MethodPost, "/api/v1/reservations", map[string]interface{}{
		"site_id": s.site.ID, "check_in_date": in, "check_out_date": out, "number_of_guests": 2,
	}, user)
	assert.Equal(t, 0, resp.Code, resp.Message)
}

func TestRouter_CompleteReservation(t *testing.T) {
	s := setupServer(t)
	in, out := stayDates(3, 1)
	user := map[string]string{"Authorization": s.token(t, 1001, jwt.RoleUser)}
	owner := map[string]string{"Authorization": s.token(t, 7, jwt.RoleOwner)}

	_, resp := s.do(t, http.MethodPost, "/api/v1/reservations", map[string]interface{}{
		"site_id": s.site.ID, "check_in_date": in, "check_out_date": out, "number_of_guests": 1,
	}, user)
	require.Equal(t, 0, resp.Code, resp.Message)
	var info struct {
		ID int64 `json:"id"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &info))

	_, resp = s.do(t, http.MethodPost, fmt.Sprintf("/api/v1/payments/reservations/%d/confirmed", info.ID), nil,
		map[string]string{middleware.HeaderInternalToken: internalToken})
	require.Equal(t, 0, resp.Code, resp.Message)

	completePath := fmt.Sprintf("/api/v1/reservations/%d/complete", info.ID)
	w, _ := s.do(t, http.MethodPost, completePath, nil, user)
	assert.Equal(t, http.StatusForbidden, w.Code)

	_, resp = s.do(t, http.MethodPost, completePath, nil, owner)
	require.Equal(t, 0, resp.Code, resp.Message)
	assert.Contains(t, string(resp.Data), `"status":"COMPLETED"`)
}

func TestRouter_UpdateAndListMyReservations(t *testing.T) {
	s := setupServer(t)
	in, out := stayDates(10, 2)
	user := map[string]string{"Authorization": s.token(t, 1001, jwt.RoleUser)}

	_, resp := s.do(t, http.MethodPost, "/api/v1/reservations", map[string]interface{}{
		"site_id": s.site.ID, "check_in_date": in, "check_out_date": out, "number_of_guests": 2,
	}, user)
	require.Equal(t, 0, resp.Code, resp.Message)
	var info struct {
		ID int64 `json:"id"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &info))
	detailPath := fmt.Sprintf("/api/v1/reservations/%d", info.ID)
	_, longOut := stayDates(10, 3)

	tests := []struct {
		name     string
		headers  map[string]string
		body     map[string]interface{}
		status   int
		code     int
		contains string
	}{
		{"未登录", nil, map[string]interface{}{"number_of_guests": 3}, http.StatusUnauthorized, 0, ""},
		{"人数为负", user, map[string]interface{}{"number_of_guests": -1}, http.StatusBadRequest, 0, ""},
		{"入住一百年", user, map[string]interface{}{"check_out_date": "2124-01-01"}, http.StatusOK, appErrors.ErrInvalidStay.Code, ""},
		{"营地经营者不能修改", map[string]string{"Authorization": s.token(t, 7, jwt.RoleOwner)}, map[string]interface{}{"number_of_guests": 3}, http.StatusOK, appErrors.ErrPermissionDenied.Code, ""},
		{"延长一晚", user, map[string]interface{}{"check_out_date": longOut}, http.StatusOK, 0, `"total_amount":"300.00"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, resp := s.do(t, http.MethodPut, detailPath, tt.body, tt.headers)
			assert.Equal(t, tt.status, w.Code)
			if tt.status != http.StatusOK {
				return
			}
			assert.Equal(t, tt.code, resp.Code, resp.Message)
			if tt.contains != "" {
				assert.Contains(t, string(resp.Data), tt.contains)
			}
		})
	}

	t.Run("我的预订", func(t *testing.T) {
		_, resp := s.do(t, http.MethodGet, "/api/v1/reservations/my?page_size=5", nil, user)
		require.Equal(t, 0, resp.Code, resp.Message)
		var page struct {
			List []struct {
				ID          int64  `json:"id"`
				Nights      int    `json:"nights"`
				SiteNumber  string `json:"site_number"`
				TotalAmount string `json:"total_amount"`
			} `json:"list"`
			Total    int64 `json:"total"`
			PageSize int   `json:"page_size"`
		}
		require.NoError(t, json.Unmarshal(resp.Data, &page))
		assert.EqualValues(t, 1, page.Total)
		assert.Equal(t, 5, page.PageSize)
		require.Len(t, page.List, 1)
		assert.Equal(t, info.ID, page.List[0].ID)
		assert.Equal(t, 3, page.List[0].Nights)
		assert.Equal(t, "A-01", page.List[0].SiteNumber)

		_, resp = s.do(t, http.MethodGet, "/api/v1/reservations/my", nil, map[string]string{"Authorization": s.token(t, 2002, jwt.RoleUser)})
		require.Equal(t, 0, resp.Code)
		assert.Contains(t, string(resp.Data), `"total":0`)

		w, _ := s.do(t, http.MethodGet, "/api/v1/reservations/my", nil, nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestRouter_ReservedDates(t *testing.T) {
	s := setupServer(t)
	in, out := stayDates(5, 2)
	user := map[string]string{"Authorization": s.token(t, 1001, jwt.RoleUser)}

	_, resp := s.do(t, http.MethodPost, "/api/v1/reservations", map[string]interface{}{
		"site_id": s.site.ID, "check_in_date": in, "check_out_date": out, "number_of_guests": 2,
	}, user)
	require.Equal(t, 0, resp.Code, resp.Message)

	tests := []struct {
		name string
		path string
		code int
		want string
	}{
		{"营位", fmt.Sprintf("/api/v1/sites/%d/reserved-dates", s.site.ID), 0, fmt.Sprintf(`[{"check_in":"%s","check_out":"%s"}]`, in, out)},
		{"营地", fmt.Sprintf("/api/v1/campgrounds/%d/reserved-dates", s.site.CampgroundID), 0,
			fmt.Sprintf(`[{"site_id":%d,"site_number":"A-01","ranges":[{"check_in":"%s","check_out":"%s"}]}]`, s.site.ID, in, out)},
		{"营位不存在", "/api/v1/sites/9999/reserved-dates", appErrors.ErrSiteNotFound.Code, ""},
		{"营地不存在", "/api/v1/campgrounds/9999/reserved-dates", appErrors.ErrCampgroundNotFound.Code, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, resp := s.do(t, http.MethodGet, tt.path, nil, nil)
			require.Equal(t, tt.code, resp.Code, resp.Message)
			if tt.want != "" {
				assert.JSONEq(t, tt.want, string(resp.Data))
			}
		})
	}
}
