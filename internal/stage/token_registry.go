package stage

import (
	"sync"

	"github.com/google/uuid"
)

// TokenRegistry — реестр токенов активных run.
//
// Позволяет отменить run по его ID из другого контекста выполнения
// (например, по сообщению из очереди). Потокобезопасен.
type TokenRegistry struct {
	mu     sync.RWMutex
	tokens map[uuid.UUID]Token
}

// NewTokenRegistry создаёт пустой реестр.
func NewTokenRegistry() *TokenRegistry {
	return &TokenRegistry{
		tokens: make(map[uuid.UUID]Token),
	}
}

// Register связывает токен с run.
func (r *TokenRegistry) Register(runID uuid.UUID, token Token) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tokens[runID] = token
}

// Remove удаляет run из реестра.
func (r *TokenRegistry) Remove(runID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tokens, runID)
}

// Cancel отменяет run. Возвращает false, если run не зарегистрирован.
func (r *TokenRegistry) Cancel(runID uuid.UUID, reason string) bool {
	r.mu.RLock()
	token, ok := r.tokens[runID]
	r.mu.RUnlock()

	if !ok {
		return false
	}
	token.Cancel(reason)
	return true
}

// Get возвращает токен run.
func (r *TokenRegistry) Get(runID uuid.UUID) (Token, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	token, ok := r.tokens[runID]
	return token, ok
}

// Len возвращает количество зарегистрированных run.
func (r *TokenRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tokens)
}
