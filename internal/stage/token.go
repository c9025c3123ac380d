package stage

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// ReasonTimeout — причина отмены, которую выставляет TimeoutToken.
const ReasonTimeout = "timeout"

// Token — сигнал кооперативной отмены run.
//
// Переход возможен только в одну сторону: не отменён → отменён.
// Первая причина побеждает, повторные вызовы Cancel игнорируются.
// Реализации потокобезопасны: Cancel может вызываться из другой горутины.
type Token interface {
	// IsCancelled возвращает true, если отмена запрошена.
	IsCancelled() bool

	// Reason возвращает причину отмены (пустая строка, если отмены не было).
	Reason() string

	// Cancel запрашивает отмену с указанной причиной.
	Cancel(reason string)

	// Done закрывается в момент отмены.
	Done() <-chan struct{}

	// Release освобождает фоновые ресурсы токена (таймеры).
	// Runner вызывает Release по завершении run.
	Release()
}

// flag — общее состояние "отменён + причина" для всех токенов.
type flag struct {
	mu        sync.Mutex
	cancelled bool
	reason    string
	done      chan struct{}
}

func newFlag() flag {
	return flag{done: make(chan struct{})}
}

// set выставляет флаг. Возвращает false, если отмена уже была.
func (f *flag) set(reason string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.cancelled {
		return false
	}
	f.cancelled = true
	f.reason = reason
	close(f.done)
	return true
}

func (f *flag) get() (bool, string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cancelled, f.reason
}

// ManualToken — токен, который отменяется только вызовом Cancel.
type ManualToken struct {
	flag flag
}

// NewManual создаёт неотменённый ManualToken.
func NewManual() *ManualToken {
	return &ManualToken{flag: newFlag()}
}

// IsCancelled возвращает true после первого Cancel.
func (t *ManualToken) IsCancelled() bool {
	cancelled, _ := t.flag.get()
	return cancelled
}

// Reason возвращает причину первого Cancel.
func (t *ManualToken) Reason() string {
	_, reason := t.flag.get()
	return reason
}

// Cancel запрашивает отмену. Идемпотентен.
func (t *ManualToken) Cancel(reason string) {
	t.flag.set(reason)
}

// Done закрывается при отмене.
func (t *ManualToken) Done() <-chan struct{} {
	return t.flag.done
}

// Release ничего не делает: у ManualToken нет фоновых ресурсов.
func (t *ManualToken) Release() {}

// TokenOption — опция конструктора токена.
type TokenOption func(*tokenConfig)

type tokenConfig struct {
	clock clockwork.Clock
}

// WithClock задаёт часы, по которым отсчитывается таймаут.
func WithClock(clock clockwork.Clock) TokenOption {
	return func(c *tokenConfig) { c.clock = clock }
}

// TimeoutToken — токен, который отменяет себя сам по истечении duration.
//
// Срабатывание проверяется двумя путями: таймер закрывает Done,
// а IsCancelled сверяет текущее время с дедлайном. Поэтому граница шага
// видит истёкший таймаут даже если колбэк таймера ещё не отработал.
type TimeoutToken struct {
	flag     flag
	clock    clockwork.Clock
	deadline time.Time

	mu       sync.Mutex
	timer    clockwork.Timer
	released bool
}

// NewTimeout создаёт TimeoutToken, который отменится через d с причиной ReasonTimeout.
func NewTimeout(d time.Duration, opts ...TokenOption) *TimeoutToken {
	cfg := tokenConfig{clock: clockwork.NewRealClock()}
	for _, o := range opts {
		o(&cfg)
	}

	t := &TimeoutToken{
		flag:     newFlag(),
		clock:    cfg.clock,
		deadline: cfg.clock.Now().Add(d),
	}
	t.timer = cfg.clock.AfterFunc(d, t.expire)
	return t
}

// expire вызывается таймером.
func (t *TimeoutToken) expire() {
	t.mu.Lock()
	released := t.released
	t.mu.Unlock()

	if !released {
		t.flag.set(ReasonTimeout)
	}
}

// IsCancelled возвращает true после Cancel или по истечении таймаута.
func (t *TimeoutToken) IsCancelled() bool {
	if cancelled, _ := t.flag.get(); cancelled {
		return true
	}

	t.mu.Lock()
	released := t.released
	t.mu.Unlock()

	if !released && !t.clock.Now().Before(t.deadline) {
		t.flag.set(ReasonTimeout)
		return true
	}
	return false
}

// Reason возвращает причину отмены.
func (t *TimeoutToken) Reason() string {
	_, reason := t.flag.get()
	return reason
}

// Cancel запрашивает отмену до истечения таймаута.
func (t *TimeoutToken) Cancel(reason string) {
	t.flag.set(reason)
	t.Release()
}

// Done закрывается при отмене.
func (t *TimeoutToken) Done() <-chan struct{} {
	return t.flag.done
}

// Deadline возвращает момент автоматической отмены.
func (t *TimeoutToken) Deadline() time.Time {
	return t.deadline
}

// Release останавливает таймер. После Release токен больше не отменится сам.
func (t *TimeoutToken) Release() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.released {
		return
	}
	t.released = true
	t.timer.Stop()
}

// contextToken — токен, связанный с context.Context.
type contextToken struct {
	flag flag
	ctx  context.Context
	stop func() bool
}

// FromContext создаёт токен, который отменяется вместе с ctx.
// Причина — текст context.Cause(ctx).
func FromContext(ctx context.Context) Token {
	t := &contextToken{flag: newFlag(), ctx: ctx}
	t.stop = context.AfterFunc(ctx, func() {
		t.flag.set(context.Cause(ctx).Error())
	})
	return t
}

func (t *contextToken) IsCancelled() bool {
	if cancelled, _ := t.flag.get(); cancelled {
		return true
	}
	if t.ctx.Err() != nil {
		t.flag.set(context.Cause(t.ctx).Error())
		return true
	}
	return false
}

func (t *contextToken) Reason() string {
	_, reason := t.flag.get()
	return reason
}

func (t *contextToken) Cancel(reason string) {
	t.flag.set(reason)
}

func (t *contextToken) Done() <-chan struct{} {
	return t.flag.done
}

func (t *contextToken) Release() {
	t.stop()
}
