// Package service реализует бизнес-логику трекера накоплений.
package service

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mmeshcher/savetrack-system/internal/ledger"
	"github.com/mmeshcher/savetrack-system/internal/model"
	"github.com/mmeshcher/savetrack-system/internal/repository"
)

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	Close() error
	CreateUser(ctx context.Context, login string, passwordHash []byte) (int64, error)
	GetUserByLogin(ctx context.Context, login string) (*model.User, error)
	LoadState(ctx context.Context, userID int64) (model.State, error)
	SaveState(ctx context.Context, userID int64, state model.State) error
}

// SavingResult описывает результат успешного пополнения.
type SavingResult struct {
	Goal     model.Goal
	SavingID string
	Streak   int
}

// BorrowResult описывает результат успешного займа.
type BorrowResult struct {
	Goal     model.Goal
	BorrowID string
}

// Service содержит бизнес-логику трекера накоплений. Леджеры пользователей
// кэшируются в памяти: мутация применяется к кэшу, после чего полный документ
// состояния записывается в хранилище. Ошибка записи логируется и не
// откатывает изменение — память остаётся источником истины.
type Service struct {
	repo   Repository
	logger *zap.Logger
	now    func() time.Time

	mu      sync.Mutex
	ledgers map[int64]*ledger.Ledger
}

// NewService создаёт новый сервис с указанным репозиторием.
func NewService(repo Repository, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		repo:    repo,
		logger:  logger,
		now:     time.Now,
		ledgers: make(map[int64]*ledger.Ledger),
	}
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

// RegisterUser регистрирует нового пользователя.
func (s *Service) RegisterUser(ctx context.Context, login, password string) (int64, error) {
	hashed := hashPassword(login, password)
	id, err := s.repo.CreateUser(ctx, login, hashed)
	if err != nil {
		if errors.Is(err, repository.ErrUserExists) {
			return 0, repository.ErrUserExists
		}
		return 0, err
	}
	return id, nil
}

// AuthenticateUser проверяет логин и пароль пользователя и возвращает его идентификатор.
func (s *Service) AuthenticateUser(ctx context.Context, login, password string) (int64, error) {
	u, err := s.repo.GetUserByLogin(ctx, login)
	if err != nil {
		return 0, err
	}

	hashed := hashPassword(login, password)
	if hex.EncodeToString(hashed) != hex.EncodeToString(u.PasswordHash) {
		return 0, errors.New("invalid credentials")
	}

	return u.ID, nil
}

func hashPassword(login, password string) []byte {
	sum := sha256.Sum256([]byte(login + ":" + password))
	return sum[:]
}

// ledgerFor возвращает кэшированный леджер пользователя, загружая состояние
// из хранилища при первом обращении. Вызывается только под s.mu.
func (s *Service) ledgerFor(ctx context.Context, userID int64) (*ledger.Ledger, error) {
	if l, ok := s.ledgers[userID]; ok {
		return l, nil
	}

	state, err := s.repo.LoadState(ctx, userID)
	if err != nil {
		if !errors.Is(err, repository.ErrStateNotFound) {
			return nil, err
		}
		state = model.State{}
	}

	l := ledger.New(state)
	s.ledgers[userID] = l
	return l, nil
}

// persist записывает полный документ состояния в хранилище.
// Ошибка записи логируется и не возвращается вызывающему.
func (s *Service) persist(ctx context.Context, userID int64, l *ledger.Ledger) {
	if err := s.repo.SaveState(ctx, userID, l.State()); err != nil {
		s.logger.Error("state save error", zap.Error(err), zap.Int64("userID", userID))
	}
}

// GetState возвращает состояние пользователя и признак доступности отмены.
func (s *Service) GetState(ctx context.Context, userID int64) (model.State, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, err := s.ledgerFor(ctx, userID)
	if err != nil {
		return model.State{}, false, err
	}
	return l.State(), l.CanUndo(), nil
}

// CreateGoal создаёт новую цель накопления.
func (s *Service) CreateGoal(ctx context.Context, userID int64, name string, target decimal.Decimal, image string) (model.Goal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, err := s.ledgerFor(ctx, userID)
	if err != nil {
		return model.Goal{}, err
	}

	g, err := l.AddGoal(name, target, image, s.now())
	if err != nil {
		return model.Goal{}, err
	}

	s.persist(ctx, userID, l)
	return g, nil
}

// DeleteGoal удаляет цель пользователя. Отсутствующая цель не является ошибкой.
func (s *Service) DeleteGoal(ctx context.Context, userID int64, goalID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, err := s.ledgerFor(ctx, userID)
	if err != nil {
		return err
	}

	if l.DeleteGoal(goalID) {
		s.persist(ctx, userID, l)
	}
	return nil
}

// AttachImage кодирует загруженные байты изображения в data URL и привязывает его к цели.
func (s *Service) AttachImage(ctx context.Context, userID int64, goalID, contentType string, data []byte) (model.Goal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, err := s.ledgerFor(ctx, userID)
	if err != nil {
		return model.Goal{}, err
	}

	image := "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data)
	g, err := l.SetGoalImage(goalID, image)
	if err != nil {
		return model.Goal{}, err
	}

	s.persist(ctx, userID, l)
	return g, nil
}

// AddSaving записывает пополнение цели и пересчитывает серию дней.
func (s *Service) AddSaving(ctx context.Context, userID int64, goalID string, amount decimal.Decimal) (*SavingResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, err := s.ledgerFor(ctx, userID)
	if err != nil {
		return nil, err
	}

	g, savingID, err := l.AddSaving(goalID, amount, s.now())
	if err != nil {
		return nil, err
	}

	s.persist(ctx, userID, l)
	return &SavingResult{
		Goal:     g,
		SavingID: savingID,
		Streak:   l.Streak(),
	}, nil
}

// Borrow записывает заём из копилки цели.
func (s *Service) Borrow(ctx context.Context, userID int64, goalID string, amount decimal.Decimal, note string) (*BorrowResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, err := s.ledgerFor(ctx, userID)
	if err != nil {
		return nil, err
	}

	g, borrowID, err := l.Borrow(goalID, amount, note, s.now())
	if err != nil {
		return nil, err
	}

	s.persist(ctx, userID, l)
	return &BorrowResult{
		Goal:     g,
		BorrowID: borrowID,
	}, nil
}

// Undo откатывает последнюю операцию пользователя, если слот отмены занят.
func (s *Service) Undo(ctx context.Context, userID int64) (bool, model.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, err := s.ledgerFor(ctx, userID)
	if err != nil {
		return false, model.State{}, err
	}

	undone := l.Undo()
	if undone {
		s.persist(ctx, userID, l)
	}
	return undone, l.State(), nil
}

// WeeklyChart возвращает суммы пополнений за последние семь календарных дней.
func (s *Service) WeeklyChart(ctx context.Context, userID int64) ([]model.WeeklyPoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, err := s.ledgerFor(ctx, userID)
	if err != nil {
		return nil, err
	}
	return l.WeeklyChart(s.now()), nil
}

// SetDarkMode сохраняет выбранную тему оформления.
func (s *Service) SetDarkMode(ctx context.Context, userID int64, dark bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, err := s.ledgerFor(ctx, userID)
	if err != nil {
		return err
	}

	l.SetDarkMode(dark)
	s.persist(ctx, userID, l)
	return nil
}
