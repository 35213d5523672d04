// Package model содержит доменные сущности трекера накоплений.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// User представляет зарегистрированного пользователя трекера.
type User struct {
	ID           int64
	Login        string
	PasswordHash []byte
	CreatedAt    time.Time
}

// Saving описывает одно пополнение копилки цели.
type Saving struct {
	ID     string          `json:"id"`
	Amount decimal.Decimal `json:"amount"`
	Date   time.Time       `json:"date"`
}

// Borrow описывает заём из копилки цели.
type Borrow struct {
	ID     string          `json:"id"`
	Amount decimal.Decimal `json:"amount"`
	Note   string          `json:"note"`
	Date   time.Time       `json:"date"`
}

// Goal описывает цель накопления с текущим балансом и историей операций.
type Goal struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Target    decimal.Decimal `json:"target"`
	Current   decimal.Decimal `json:"current"`
	Image     string          `json:"image,omitempty"`
	Savings   []Saving        `json:"savings"`
	Borrows   []Borrow        `json:"borrows"`
	CreatedAt time.Time       `json:"createdAt"`
}

// Clone возвращает копию цели, не делящую срезы с оригиналом.
func (g Goal) Clone() Goal {
	c := g
	c.Savings = append([]Saving(nil), g.Savings...)
	c.Borrows = append([]Borrow(nil), g.Borrows...)
	return c
}

// State — полный документ состояния пользователя. Сохраняется в хранилище
// целиком при каждой мутации, частичных обновлений нет.
type State struct {
	Goals        []Goal `json:"goals"`
	Streak       int    `json:"streak"`
	LastSaveDate string `json:"lastSaveDate,omitempty"`
	DarkMode     bool   `json:"darkMode"`
}

// Clone возвращает копию состояния, не делящую память с оригиналом.
func (s State) Clone() State {
	c := s
	c.Goals = make([]Goal, len(s.Goals))
	for i, g := range s.Goals {
		c.Goals[i] = g.Clone()
	}
	return c
}

// ActionKind различает тип последнего обратимого действия.
type ActionKind string

const (
	ActionSaving ActionKind = "saving"
	ActionBorrow ActionKind = "borrow"
)

// LastAction — единственный слот отмены: ссылка на последнее пополнение или заём.
// Слот перезаписывается каждой новой операцией и не сериализуется,
// поэтому отмена не переживает перезапуск сервиса.
type LastAction struct {
	Kind    ActionKind
	GoalID  string
	Amount  decimal.Decimal
	EventID string
}

// WeeklyPoint — одна точка недельного графика пополнений.
type WeeklyPoint struct {
	Day    string          `json:"day"`
	Amount decimal.Decimal `json:"amount"`
}
