package flowz

// passThrough is the shared upstream/downstream plumbing of operators that
// transform items one by one. It forwards demand and cancellation, guards
// against signals after termination and negotiates fusion with a fuseable
// upstream.
type passThrough[T, R any] struct {
	actual   Subscriber[R]
	upstream Subscription
	qs       QueueSubscription[T]
	mode     FusionMode
	done     bool
}

// subscribed stores s and hands self to the downstream.
func (p *passThrough[T, R]) subscribed(s Subscription, self Subscription) bool {
	if !validateSubscription(p.upstream, s) {
		return false
	}
	p.upstream = s
	p.qs, _ = asQueueSubscription[T](s)
	p.actual.OnSubscribe(self)
	return true
}

// signalAvailable reports whether OnNext is an async fusion availability
// signal, forwarding it if so.
func (p *passThrough[T, R]) signalAvailable() bool {
	if p.mode != FusionAsync {
		return false
	}
	var zero R
	p.actual.OnNext(zero)
	return true
}

// fail cancels upstream and terminates the downstream with err.
func (p *passThrough[T, R]) fail(err error) {
	p.done = true
	p.upstream.Cancel()
	p.actual.OnError(err)
}

func (p *passThrough[T, R]) OnError(err error) {
	if p.done {
		OnErrorDropped(err)
		return
	}
	p.done = true
	p.actual.OnError(err)
}

func (p *passThrough[T, R]) OnComplete() {
	if p.done {
		return
	}
	p.done = true
	p.actual.OnComplete()
}

func (p *passThrough[T, R]) Request(n int64) {
	p.upstream.Request(n)
}

func (p *passThrough[T, R]) Cancel() {
	p.upstream.Cancel()
}

func (p *passThrough[T, R]) RequestFusion(mode FusionMode) FusionMode {
	p.mode = passThroughFusion(p.qs, mode)
	return p.mode
}

func (p *passThrough[T, R]) Size() int {
	if p.qs == nil {
		return 0
	}
	return p.qs.Size()
}

func (p *passThrough[T, R]) IsEmpty() bool {
	return p.qs == nil || p.qs.IsEmpty()
}

func (p *passThrough[T, R]) Clear() {
	if p.qs != nil {
		p.qs.Clear()
	}
}
