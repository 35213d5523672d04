// Package ledger реализует ядро трекера накоплений: цели, пополнения, займы,
// серию дней подряд и однослотовую отмену последней операции.
package ledger

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mmeshcher/savetrack-system/internal/model"
)

// ErrGoalNotFound возвращается, если цель с указанным идентификатором не существует.
var (
	ErrGoalNotFound = errors.New("goal not found")
	// ErrEmptyName возвращается при попытке создать цель без названия.
	ErrEmptyName = errors.New("goal name is empty")
	// ErrNonPositiveAmount возвращается для нулевых и отрицательных сумм.
	ErrNonPositiveAmount = errors.New("amount must be positive")
	// ErrInsufficientFunds возвращается при попытке занять больше, чем накоплено.
	ErrInsufficientFunds = errors.New("insufficient funds")
)

const dayLayout = "2006-01-02"

// Ledger хранит состояние одного пользователя и применяет к нему операции.
// Операции не потокобезопасны: сериализацию вызовов обеспечивает владелец.
type Ledger struct {
	state      model.State
	lastAction *model.LastAction
}

// New создаёт леджер поверх загруженного состояния пользователя.
func New(state model.State) *Ledger {
	return &Ledger{state: state}
}

// State возвращает копию текущего состояния для сериализации и ответов API.
func (l *Ledger) State() model.State {
	return l.state.Clone()
}

// CanUndo сообщает, есть ли операция, доступная для отмены.
func (l *Ledger) CanUndo() bool {
	return l.lastAction != nil
}

// DarkMode возвращает сохранённую тему оформления.
func (l *Ledger) DarkMode() bool {
	return l.state.DarkMode
}

// SetDarkMode сохраняет тему оформления в состоянии пользователя.
func (l *Ledger) SetDarkMode(dark bool) {
	l.state.DarkMode = dark
}

// Streak возвращает текущую длину серии дней с пополнениями.
func (l *Ledger) Streak() int {
	return l.state.Streak
}

func (l *Ledger) findGoal(goalID string) *model.Goal {
	for i := range l.state.Goals {
		if l.state.Goals[i].ID == goalID {
			return &l.state.Goals[i]
		}
	}
	return nil
}

// AddGoal создаёт новую цель с нулевым балансом и пустой историей.
// Слот отмены и серия дней не затрагиваются.
func (l *Ledger) AddGoal(name string, target decimal.Decimal, image string, now time.Time) (model.Goal, error) {
	if name == "" {
		return model.Goal{}, ErrEmptyName
	}
	if !target.IsPositive() {
		return model.Goal{}, ErrNonPositiveAmount
	}

	g := model.Goal{
		ID:        uuid.NewString(),
		Name:      name,
		Target:    target,
		Current:   decimal.Zero,
		Image:     image,
		Savings:   []model.Saving{},
		Borrows:   []model.Borrow{},
		CreatedAt: now,
	}
	l.state.Goals = append(l.state.Goals, g)

	return g.Clone(), nil
}

// DeleteGoal удаляет цель по идентификатору и сообщает, была ли она найдена.
// Если слот отмены ссылался на удалённую цель, он очищается.
func (l *Ledger) DeleteGoal(goalID string) bool {
	for i := range l.state.Goals {
		if l.state.Goals[i].ID != goalID {
			continue
		}
		l.state.Goals = append(l.state.Goals[:i], l.state.Goals[i+1:]...)
		if l.lastAction != nil && l.lastAction.GoalID == goalID {
			l.lastAction = nil
		}
		return true
	}
	return false
}

// SetGoalImage привязывает к цели непрозрачное представление изображения.
func (l *Ledger) SetGoalImage(goalID, image string) (model.Goal, error) {
	g := l.findGoal(goalID)
	if g == nil {
		return model.Goal{}, ErrGoalNotFound
	}
	g.Image = image
	return g.Clone(), nil
}

// AddSaving записывает пополнение цели: увеличивает баланс, добавляет событие
// в историю, перезаписывает слот отмены и пересчитывает серию дней.
func (l *Ledger) AddSaving(goalID string, amount decimal.Decimal, now time.Time) (model.Goal, string, error) {
	if !amount.IsPositive() {
		return model.Goal{}, "", ErrNonPositiveAmount
	}
	g := l.findGoal(goalID)
	if g == nil {
		return model.Goal{}, "", ErrGoalNotFound
	}

	s := model.Saving{
		ID:     uuid.NewString(),
		Amount: amount,
		Date:   now,
	}
	g.Current = g.Current.Add(amount)
	g.Savings = append(g.Savings, s)

	l.lastAction = &model.LastAction{
		Kind:    model.ActionSaving,
		GoalID:  g.ID,
		Amount:  amount,
		EventID: s.ID,
	}
	l.updateStreak(now)

	return g.Clone(), s.ID, nil
}

// updateStreak пересчитывает серию дней после пополнения. Второе пополнение
// за один календарный день серию не удлиняет; пропуск в два и более дня
// сбрасывает счётчик до единицы.
func (l *Ledger) updateStreak(now time.Time) {
	today := now.Format(dayLayout)
	if l.state.LastSaveDate == today {
		return
	}

	yesterday := now.Add(-24 * time.Hour).Format(dayLayout)
	if l.state.LastSaveDate == yesterday || l.state.LastSaveDate == "" {
		l.state.Streak++
	} else {
		l.state.Streak = 1
	}
	l.state.LastSaveDate = today
}

// Borrow записывает заём из копилки цели. Заём, превышающий накопленное,
// отклоняется с ErrInsufficientFunds. Серия дней не меняется.
func (l *Ledger) Borrow(goalID string, amount decimal.Decimal, note string, now time.Time) (model.Goal, string, error) {
	if !amount.IsPositive() {
		return model.Goal{}, "", ErrNonPositiveAmount
	}
	g := l.findGoal(goalID)
	if g == nil {
		return model.Goal{}, "", ErrGoalNotFound
	}
	if amount.GreaterThan(g.Current) {
		return model.Goal{}, "", ErrInsufficientFunds
	}

	b := model.Borrow{
		ID:     uuid.NewString(),
		Amount: amount,
		Note:   note,
		Date:   now,
	}
	g.Current = g.Current.Sub(amount)
	g.Borrows = append(g.Borrows, b)

	l.lastAction = &model.LastAction{
		Kind:    model.ActionBorrow,
		GoalID:  g.ID,
		Amount:  amount,
		EventID: b.ID,
	}

	return g.Clone(), b.ID, nil
}

// Undo откатывает последнюю операцию. Слот одноразовый: он очищается даже
// если цель уже удалена и откатывать нечего. Счётчик серии при отмене
// пополнения не возвращается к прежнему значению.
func (l *Ledger) Undo() bool {
	if l.lastAction == nil {
		return false
	}

	action := *l.lastAction
	l.lastAction = nil

	g := l.findGoal(action.GoalID)
	if g == nil {
		return false
	}

	switch action.Kind {
	case model.ActionSaving:
		g.Current = g.Current.Sub(action.Amount)
		g.Savings = removeSaving(g.Savings, action.EventID)
	case model.ActionBorrow:
		g.Current = g.Current.Add(action.Amount)
		g.Borrows = removeBorrow(g.Borrows, action.EventID)
	}

	return true
}

func removeSaving(savings []model.Saving, id string) []model.Saving {
	res := savings[:0]
	for _, s := range savings {
		if s.ID != id {
			res = append(res, s)
		}
	}
	return res
}

func removeBorrow(borrows []model.Borrow, id string) []model.Borrow {
	res := borrows[:0]
	for _, b := range borrows {
		if b.ID != id {
			res = append(res, b)
		}
	}
	return res
}

// WeeklyChart возвращает ровно семь точек — суммы пополнений по всем целям
// за последние семь календарных дней, от старых к новым. Дни без пополнений
// заполняются нулями.
func (l *Ledger) WeeklyChart(now time.Time) []model.WeeklyPoint {
	points := make([]model.WeeklyPoint, 0, 7)

	for i := 6; i >= 0; i-- {
		day := now.AddDate(0, 0, -i)
		key := day.Format(dayLayout)

		total := decimal.Zero
		for _, g := range l.state.Goals {
			for _, s := range g.Savings {
				if s.Date.Format(dayLayout) == key {
					total = total.Add(s.Amount)
				}
			}
		}

		points = append(points, model.WeeklyPoint{
			Day:    day.Format("Mon"),
			Amount: total,
		})
	}

	return points
}

// Progress возвращает процент достижения цели, ограниченный диапазоном [0, 100].
func Progress(g model.Goal) float64 {
	if !g.Target.IsPositive() {
		return 0
	}

	p, _ := g.Current.Div(g.Target).Mul(decimal.NewFromInt(100)).Float64()
	if p > 100 {
		return 100
	}
	if p < 0 {
		return 0
	}
	return p
}
