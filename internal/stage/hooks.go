package stage

// Hooks — наблюдатели жизненного цикла run.
//
// Все поля опциональны. Хуки только наблюдают: они не влияют на ход
// выполнения и не должны паниковать. Паника в хуке не перехватывается.
//
// Гарантии вызова:
//   - OnStepStart / OnStepEnd — не более одного раза на шаг
//     (retry не порождает повторного OnStepStart)
//   - OnError — один раз на каждую неудачную попытку
//   - OnComplete — не более одного раза на run
type Hooks[R any] struct {
	OnStepStart func(stepIndex int)
	OnStepEnd   func(stepIndex int, result R)
	OnError     func(err error, stepIndex int)
	OnComplete  func(result R)
}

func (h Hooks[R]) stepStart(i int) {
	if h.OnStepStart != nil {
		h.OnStepStart(i)
	}
}

func (h Hooks[R]) stepEnd(i int, result R) {
	if h.OnStepEnd != nil {
		h.OnStepEnd(i, result)
	}
}

func (h Hooks[R]) stepError(err error, i int) {
	if h.OnError != nil {
		h.OnError(err, i)
	}
}

func (h Hooks[R]) complete(result R) {
	if h.OnComplete != nil {
		h.OnComplete(result)
	}
}
