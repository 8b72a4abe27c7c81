package service

// txEffects collects work that must only happen once a transaction commits,
// such as cache invalidation and metrics.
type txEffects struct {
	fns []func()
}

func (e *txEffects) add(fn func()) {
	e.fns = append(e.fns, fn)
}

func (e *txEffects) run() {
	for _, fn := range e.fns {
		fn()
	}
}
