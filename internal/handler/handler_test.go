package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mmeshcher/savetrack-system/internal/ledger"
	"github.com/mmeshcher/savetrack-system/internal/middleware"
	"github.com/mmeshcher/savetrack-system/internal/model"
	"github.com/mmeshcher/savetrack-system/internal/service"
)

type stubService struct {
	registerUserID int64
	registerErr    error

	authUserID int64
	authErr    error

	stateResp    model.State
	stateCanUndo bool
	stateErr     error

	createGoalResp model.Goal
	createGoalErr  error

	deleteGoalErr error

	attachImageResp model.Goal
	attachImageErr  error

	savingResp *service.SavingResult
	savingErr  error

	borrowResp *service.BorrowResult
	borrowErr  error

	undoDone  bool
	undoState model.State
	undoErr   error

	chartResp []model.WeeklyPoint
	chartErr  error

	darkModeErr error
}

func (s *stubService) RegisterUser(ctx context.Context, login, password string) (int64, error) {
	return s.registerUserID, s.registerErr
}

func (s *stubService) AuthenticateUser(ctx context.Context, login, password string) (int64, error) {
	return s.authUserID, s.authErr
}

func (s *stubService) GetState(ctx context.Context, userID int64) (model.State, bool, error) {
	return s.stateResp, s.stateCanUndo, s.stateErr
}

func (s *stubService) CreateGoal(ctx context.Context, userID int64, name string, target decimal.Decimal, image string) (model.Goal, error) {
	return s.createGoalResp, s.createGoalErr
}

func (s *stubService) DeleteGoal(ctx context.Context, userID int64, goalID string) error {
	return s.deleteGoalErr
}

func (s *stubService) AttachImage(ctx context.Context, userID int64, goalID, contentType string, data []byte) (model.Goal, error) {
	return s.attachImageResp, s.attachImageErr
}

func (s *stubService) AddSaving(ctx context.Context, userID int64, goalID string, amount decimal.Decimal) (*service.SavingResult, error) {
	return s.savingResp, s.savingErr
}

func (s *stubService) Borrow(ctx context.Context, userID int64, goalID string, amount decimal.Decimal, note string) (*service.BorrowResult, error) {
	return s.borrowResp, s.borrowErr
}

func (s *stubService) Undo(ctx context.Context, userID int64) (bool, model.State, error) {
	return s.undoDone, s.undoState, s.undoErr
}

func (s *stubService) WeeklyChart(ctx context.Context, userID int64) ([]model.WeeklyPoint, error) {
	return s.chartResp, s.chartErr
}

func (s *stubService) SetDarkMode(ctx context.Context, userID int64, dark bool) error {
	return s.darkModeErr
}

func newTestHandler(t *testing.T, svc Service) *Handler {
	t.Helper()

	logger, err := zap.NewDevelopment()
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}

	auth := middleware.NewAuthMiddleware("test-secret")

	return NewHandler(svc, logger, auth)
}

// doAuthorized выполняет запрос через auth-middleware с валидной cookie.
func doAuthorized(t *testing.T, h *Handler, next http.HandlerFunc, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()

	rec := httptest.NewRecorder()
	h.authMiddleware.SetAuthCookie(rec, 1)
	req.AddCookie(rec.Result().Cookies()[0])

	respRec := httptest.NewRecorder()
	h.authMiddleware.Middleware(next).ServeHTTP(respRec, req)
	return respRec
}

func TestRegister_Success(t *testing.T) {
	svc := &stubService{
		registerUserID: 42,
	}
	h := newTestHandler(t, svc)

	body, _ := json.Marshal(credentialsRequest{
		Login:    "user",
		Password: "pass",
	})

	req := httptest.NewRequest(http.MethodPost, "/api/user/register", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.Register(rec, req)

	res := rec.Result()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}
	if len(res.Cookies()) == 0 {
		t.Fatalf("auth cookie must be set after register")
	}
}

func TestLogin_UnauthorizedOnInvalidCredentials(t *testing.T) {
	svc := &stubService{
		authErr: errors.New("invalid credentials"),
	}
	h := newTestHandler(t, svc)

	body, _ := json.Marshal(credentialsRequest{
		Login:    "user",
		Password: "pass",
	})

	req := httptest.NewRequest(http.MethodPost, "/api/user/login", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.Login(rec, req)

	res := rec.Result()
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusUnauthorized)
	}
}

func TestGetState_WithoutCookie(t *testing.T) {
	h := newTestHandler(t, &stubService{})

	req := httptest.NewRequest(http.MethodGet, "/api/user/state", nil)
	rec := httptest.NewRecorder()

	h.authMiddleware.Middleware(http.HandlerFunc(h.GetState)).ServeHTTP(rec, req)

	if rec.Result().StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rec.Result().StatusCode, http.StatusUnauthorized)
	}
}

func TestGetState_JSONResponse(t *testing.T) {
	svc := &stubService{
		stateResp: model.State{
			Goals: []model.Goal{
				{
					ID:      "g1",
					Name:    "bike",
					Target:  decimal.NewFromInt(1000),
					Current: decimal.NewFromInt(250),
					Savings: []model.Saving{},
					Borrows: []model.Borrow{},
				},
			},
			Streak:       3,
			LastSaveDate: "2025-06-10",
		},
		stateCanUndo: true,
	}
	h := newTestHandler(t, svc)

	req := httptest.NewRequest(http.MethodGet, "/api/user/state", nil)
	rec := doAuthorized(t, h, h.GetState, req)

	res := rec.Result()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}
	if ct := res.Header.Get("Content-Type"); ct != "application/json" {
		t.Fatalf("content-type = %q, want application/json", ct)
	}

	var resp stateResponse
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Goals) != 1 || resp.Goals[0].Progress != 25 {
		t.Fatalf("unexpected state response: %+v", resp)
	}
	if !resp.CanUndo || resp.Streak != 3 {
		t.Fatalf("unexpected state response: %+v", resp)
	}
}

func TestCreateGoal_BadRequestOnInvalidInput(t *testing.T) {
	h := newTestHandler(t, &stubService{})

	tests := []struct {
		name string
		body string
	}{
		{"empty name", `{"name":"","target":100}`},
		{"zero target", `{"name":"bike","target":0}`},
		{"negative target", `{"name":"bike","target":-10}`},
		{"not json", `not json`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/user/goals", bytes.NewReader([]byte(tt.body)))
			rec := doAuthorized(t, h, h.CreateGoal, req)

			if rec.Result().StatusCode != http.StatusBadRequest {
				t.Fatalf("status = %d, want %d", rec.Result().StatusCode, http.StatusBadRequest)
			}
		})
	}
}

func TestCreateGoal_Created(t *testing.T) {
	svc := &stubService{
		createGoalResp: model.Goal{
			ID:      "g1",
			Name:    "bike",
			Target:  decimal.NewFromInt(1000),
			Current: decimal.Zero,
			Savings: []model.Saving{},
			Borrows: []model.Borrow{},
		},
	}
	h := newTestHandler(t, svc)

	req := httptest.NewRequest(http.MethodPost, "/api/user/goals", bytes.NewReader([]byte(`{"name":"bike","target":1000}`)))
	rec := doAuthorized(t, h, h.CreateGoal, req)

	if rec.Result().StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want %d", rec.Result().StatusCode, http.StatusCreated)
	}
}

func TestAddSaving_CelebrationFlag(t *testing.T) {
	svc := &stubService{
		savingResp: &service.SavingResult{
			Goal: model.Goal{
				ID:      "g1",
				Name:    "bike",
				Target:  decimal.NewFromInt(1000),
				Current: decimal.NewFromInt(50),
				Savings: []model.Saving{},
				Borrows: []model.Borrow{},
			},
			SavingID: "s1",
			Streak:   1,
		},
	}
	h := newTestHandler(t, svc)

	req := httptest.NewRequest(http.MethodPost, "/api/user/goals/g1/savings", bytes.NewReader([]byte(`{"amount":50}`)))
	rec := doAuthorized(t, h, h.AddSaving, req)

	res := rec.Result()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}

	var resp savingResponse
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Celebration {
		t.Fatalf("celebration flag must be set on successful saving")
	}
	if resp.SavingID != "s1" || resp.Streak != 1 {
		t.Fatalf("unexpected saving response: %+v", resp)
	}
}

func TestAddSaving_GoalNotFound(t *testing.T) {
	svc := &stubService{
		savingErr: ledger.ErrGoalNotFound,
	}
	h := newTestHandler(t, svc)

	req := httptest.NewRequest(http.MethodPost, "/api/user/goals/missing/savings", bytes.NewReader([]byte(`{"amount":50}`)))
	rec := doAuthorized(t, h, h.AddSaving, req)

	if rec.Result().StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rec.Result().StatusCode, http.StatusNotFound)
	}
}

func TestBorrow_PaymentRequiredOnInsufficientFunds(t *testing.T) {
	svc := &stubService{
		borrowErr: ledger.ErrInsufficientFunds,
	}
	h := newTestHandler(t, svc)

	req := httptest.NewRequest(http.MethodPost, "/api/user/goals/g1/borrows", bytes.NewReader([]byte(`{"amount":100,"note":"lunch"}`)))
	rec := doAuthorized(t, h, h.Borrow, req)

	if rec.Result().StatusCode != http.StatusPaymentRequired {
		t.Fatalf("status = %d, want %d", rec.Result().StatusCode, http.StatusPaymentRequired)
	}
}

func TestDeleteGoal_NoContent(t *testing.T) {
	h := newTestHandler(t, &stubService{})

	req := httptest.NewRequest(http.MethodDelete, "/api/user/goals/g1", nil)
	rec := doAuthorized(t, h, h.DeleteGoal, req)

	if rec.Result().StatusCode != http.StatusNoContent {
		t.Fatalf("status = %d, want %d", rec.Result().StatusCode, http.StatusNoContent)
	}
}

func TestUploadGoalImage_UnsupportedMediaType(t *testing.T) {
	h := newTestHandler(t, &stubService{})

	req := httptest.NewRequest(http.MethodPost, "/api/user/goals/g1/image", bytes.NewReader([]byte("plain text, not an image")))
	rec := doAuthorized(t, h, h.UploadGoalImage, req)

	if rec.Result().StatusCode != http.StatusUnsupportedMediaType {
		t.Fatalf("status = %d, want %d", rec.Result().StatusCode, http.StatusUnsupportedMediaType)
	}
}

func TestUndo_ReportsResult(t *testing.T) {
	svc := &stubService{
		undoDone: true,
		undoState: model.State{
			Goals:  []model.Goal{},
			Streak: 2,
		},
	}
	h := newTestHandler(t, svc)

	req := httptest.NewRequest(http.MethodPost, "/api/user/undo", nil)
	rec := doAuthorized(t, h, h.Undo, req)

	res := rec.Result()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}

	var resp undoResponse
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Undone || resp.Streak != 2 {
		t.Fatalf("unexpected undo response: %+v", resp)
	}
}

func TestWeeklyChart_JSONResponse(t *testing.T) {
	points := make([]model.WeeklyPoint, 7)
	for i := range points {
		points[i] = model.WeeklyPoint{Day: "Mon", Amount: decimal.Zero}
	}
	svc := &stubService{
		chartResp: points,
	}
	h := newTestHandler(t, svc)

	req := httptest.NewRequest(http.MethodGet, "/api/user/chart/weekly", nil)
	rec := doAuthorized(t, h, h.WeeklyChart, req)

	res := rec.Result()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}

	var resp []model.WeeklyPoint
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp) != 7 {
		t.Fatalf("points = %d, want 7", len(resp))
	}
}

func TestSetDarkMode_OK(t *testing.T) {
	h := newTestHandler(t, &stubService{})

	req := httptest.NewRequest(http.MethodPut, "/api/user/settings/darkmode", bytes.NewReader([]byte(`{"darkMode":true}`)))
	rec := doAuthorized(t, h, h.SetDarkMode, req)

	if rec.Result().StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Result().StatusCode, http.StatusOK)
	}
}
