// Package handler содержит HTTP-обработчики API трекера накоплений.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mmeshcher/savetrack-system/internal/ledger"
	"github.com/mmeshcher/savetrack-system/internal/middleware"
	"github.com/mmeshcher/savetrack-system/internal/model"
	"github.com/mmeshcher/savetrack-system/internal/repository"
	"github.com/mmeshcher/savetrack-system/internal/service"
	"github.com/mmeshcher/savetrack-system/internal/validation"
)

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	RegisterUser(ctx context.Context, login, password string) (int64, error)
	AuthenticateUser(ctx context.Context, login, password string) (int64, error)
	GetState(ctx context.Context, userID int64) (model.State, bool, error)
	CreateGoal(ctx context.Context, userID int64, name string, target decimal.Decimal, image string) (model.Goal, error)
	DeleteGoal(ctx context.Context, userID int64, goalID string) error
	AttachImage(ctx context.Context, userID int64, goalID, contentType string, data []byte) (model.Goal, error)
	AddSaving(ctx context.Context, userID int64, goalID string, amount decimal.Decimal) (*service.SavingResult, error)
	Borrow(ctx context.Context, userID int64, goalID string, amount decimal.Decimal, note string) (*service.BorrowResult, error)
	Undo(ctx context.Context, userID int64) (bool, model.State, error)
	WeeklyChart(ctx context.Context, userID int64) ([]model.WeeklyPoint, error)
	SetDarkMode(ctx context.Context, userID int64, dark bool) error
}

// Handler реализует HTTP-обработчики API трекера накоплений.
type Handler struct {
	service        Service
	logger         *zap.Logger
	authMiddleware *middleware.AuthMiddleware
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, logger *zap.Logger, auth *middleware.AuthMiddleware) *Handler {
	return &Handler{
		service:        s,
		logger:         logger,
		authMiddleware: auth,
	}
}

type credentialsRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

// Register обрабатывает регистрацию нового пользователя.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if req.Login == "" || req.Password == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	userID, err := h.service.RegisterUser(r.Context(), req.Login, req.Password)
	if err != nil {
		if errors.Is(err, repository.ErrUserExists) {
			http.Error(w, http.StatusText(http.StatusConflict), http.StatusConflict)
			return
		}
		h.logger.Error("register user error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.authMiddleware.SetAuthCookie(w, userID)
	w.WriteHeader(http.StatusOK)
}

// Login выполняет аутентификацию пользователя и установку cookie.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if req.Login == "" || req.Password == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	userID, err := h.service.AuthenticateUser(r.Context(), req.Login, req.Password)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) || err.Error() == "invalid credentials" {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}
		h.logger.Error("login user error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.authMiddleware.SetAuthCookie(w, userID)
	w.WriteHeader(http.StatusOK)
}

type goalResponse struct {
	model.Goal
	Progress float64 `json:"progress"`
}

func newGoalResponse(g model.Goal) goalResponse {
	return goalResponse{
		Goal:     g,
		Progress: ledger.Progress(g),
	}
}

type stateResponse struct {
	Goals        []goalResponse `json:"goals"`
	Streak       int            `json:"streak"`
	LastSaveDate string         `json:"lastSaveDate,omitempty"`
	DarkMode     bool           `json:"darkMode"`
	CanUndo      bool           `json:"canUndo"`
}

func newStateResponse(state model.State, canUndo bool) stateResponse {
	goals := make([]goalResponse, 0, len(state.Goals))
	for _, g := range state.Goals {
		goals = append(goals, newGoalResponse(g))
	}
	return stateResponse{
		Goals:        goals,
		Streak:       state.Streak,
		LastSaveDate: state.LastSaveDate,
		DarkMode:     state.DarkMode,
		CanUndo:      canUndo,
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("encode response error", zap.Error(err))
	}
}

// GetState возвращает полное состояние текущего пользователя.
func (h *Handler) GetState(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	state, canUndo, err := h.service.GetState(r.Context(), userID)
	if err != nil {
		h.logger.Error("get state error", zap.Error(err), zap.Int64("userID", userID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, newStateResponse(state, canUndo))
}

type createGoalRequest struct {
	Name   string          `json:"name"`
	Target decimal.Decimal `json:"target"`
	Image  string          `json:"image,omitempty"`
}

// CreateGoal создаёт новую цель накопления для текущего пользователя.
func (h *Handler) CreateGoal(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	var req createGoalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if !validation.IsValidGoalName(req.Name) || !validation.IsPositiveAmount(req.Target) {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	g, err := h.service.CreateGoal(r.Context(), userID, req.Name, req.Target, req.Image)
	if err != nil {
		if errors.Is(err, ledger.ErrEmptyName) || errors.Is(err, ledger.ErrNonPositiveAmount) {
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return
		}
		h.logger.Error("create goal error", zap.Error(err), zap.Int64("userID", userID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusCreated, newGoalResponse(g))
}

// DeleteGoal удаляет цель текущего пользователя. Подтверждение намерения —
// забота клиента; сервер удаляет без дополнительных вопросов.
func (h *Handler) DeleteGoal(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	goalID := chi.URLParam(r, "goalID")

	if err := h.service.DeleteGoal(r.Context(), userID, goalID); err != nil {
		h.logger.Error("delete goal error", zap.Error(err), zap.Int64("userID", userID), zap.String("goalID", goalID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// UploadGoalImage принимает сырые байты изображения и привязывает его к цели.
func (h *Handler) UploadGoalImage(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	goalID := chi.URLParam(r, "goalID")

	defer r.Body.Close()

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, validation.MaxImageSize))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			http.Error(w, http.StatusText(http.StatusRequestEntityTooLarge), http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	contentType := validation.DetectImageType(body)
	if contentType == "" {
		http.Error(w, http.StatusText(http.StatusUnsupportedMediaType), http.StatusUnsupportedMediaType)
		return
	}

	g, err := h.service.AttachImage(r.Context(), userID, goalID, contentType, body)
	if err != nil {
		if errors.Is(err, ledger.ErrGoalNotFound) {
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
			return
		}
		h.logger.Error("upload image error", zap.Error(err), zap.Int64("userID", userID), zap.String("goalID", goalID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, newGoalResponse(g))
}

type amountRequest struct {
	Amount decimal.Decimal `json:"amount"`
	Note   string          `json:"note,omitempty"`
}

type savingResponse struct {
	Goal        goalResponse `json:"goal"`
	SavingID    string       `json:"savingId"`
	Streak      int          `json:"streak"`
	Celebration bool         `json:"celebration"`
}

// AddSaving записывает пополнение цели текущего пользователя.
func (h *Handler) AddSaving(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	goalID := chi.URLParam(r, "goalID")

	var req amountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if !validation.IsPositiveAmount(req.Amount) {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	res, err := h.service.AddSaving(r.Context(), userID, goalID, req.Amount)
	if err != nil {
		switch {
		case errors.Is(err, ledger.ErrGoalNotFound):
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		case errors.Is(err, ledger.ErrNonPositiveAmount):
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		default:
			h.logger.Error("add saving error", zap.Error(err), zap.Int64("userID", userID), zap.String("goalID", goalID))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
		return
	}

	// Флаг celebration клиент показывает и сам гасит через две секунды.
	h.writeJSON(w, http.StatusOK, savingResponse{
		Goal:        newGoalResponse(res.Goal),
		SavingID:    res.SavingID,
		Streak:      res.Streak,
		Celebration: true,
	})
}

type borrowResponse struct {
	Goal     goalResponse `json:"goal"`
	BorrowID string       `json:"borrowId"`
}

// Borrow записывает заём из копилки цели текущего пользователя.
func (h *Handler) Borrow(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	goalID := chi.URLParam(r, "goalID")

	var req amountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if !validation.IsPositiveAmount(req.Amount) {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	res, err := h.service.Borrow(r.Context(), userID, goalID, req.Amount, req.Note)
	if err != nil {
		switch {
		case errors.Is(err, ledger.ErrInsufficientFunds):
			http.Error(w, http.StatusText(http.StatusPaymentRequired), http.StatusPaymentRequired)
		case errors.Is(err, ledger.ErrGoalNotFound):
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		case errors.Is(err, ledger.ErrNonPositiveAmount):
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		default:
			h.logger.Error("borrow error", zap.Error(err), zap.Int64("userID", userID), zap.String("goalID", goalID))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
		return
	}

	h.writeJSON(w, http.StatusOK, borrowResponse{
		Goal:     newGoalResponse(res.Goal),
		BorrowID: res.BorrowID,
	})
}

type undoResponse struct {
	Undone bool           `json:"undone"`
	Goals  []goalResponse `json:"goals"`
	Streak int            `json:"streak"`
}

// Undo откатывает последнюю операцию текущего пользователя.
func (h *Handler) Undo(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	undone, state, err := h.service.Undo(r.Context(), userID)
	if err != nil {
		h.logger.Error("undo error", zap.Error(err), zap.Int64("userID", userID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	goals := make([]goalResponse, 0, len(state.Goals))
	for _, g := range state.Goals {
		goals = append(goals, newGoalResponse(g))
	}

	h.writeJSON(w, http.StatusOK, undoResponse{
		Undone: undone,
		Goals:  goals,
		Streak: state.Streak,
	})
}

// WeeklyChart возвращает суммы пополнений по дням за последнюю неделю.
func (h *Handler) WeeklyChart(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	points, err := h.service.WeeklyChart(r.Context(), userID)
	if err != nil {
		h.logger.Error("weekly chart error", zap.Error(err), zap.Int64("userID", userID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, points)
}

type darkModeRequest struct {
	DarkMode bool `json:"darkMode"`
}

// SetDarkMode сохраняет выбранную тему оформления текущего пользователя.
func (h *Handler) SetDarkMode(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	var req darkModeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if err := h.service.SetDarkMode(r.Context(), userID, req.DarkMode); err != nil {
		h.logger.Error("set dark mode error", zap.Error(err), zap.Int64("userID", userID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
}
