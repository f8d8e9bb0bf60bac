package gesture

// Feed is an in-process MotionSource and PointerSource. Backends and replays
// push samples into it from the loop; subscribers are called in
// registration order.
type Feed struct {
	next    int
	motion  []motionSub
	pointer []pointerSub
}

type motionSub struct {
	id int
	fn func(MotionSample)
}

type pointerSub struct {
	id int
	fn func(PointerSample)
}

// NewFeed returns an empty feed.
func NewFeed() *Feed { return &Feed{} }

// SubscribeMotion implements MotionSource.
func (f *Feed) SubscribeMotion(fn func(MotionSample)) func() {
	f.next++
	id := f.next
	f.motion = append(f.motion, motionSub{id: id, fn: fn})
	return func() {
		for i, s := range f.motion {
			if s.id == id {
				f.motion = append(f.motion[:i:i], f.motion[i+1:]...)
				return
			}
		}
	}
}

// SubscribePointer implements PointerSource.
func (f *Feed) SubscribePointer(fn func(PointerSample)) func() {
	f.next++
	id := f.next
	f.pointer = append(f.pointer, pointerSub{id: id, fn: fn})
	return func() {
		for i, s := range f.pointer {
			if s.id == id {
				f.pointer = append(f.pointer[:i:i], f.pointer[i+1:]...)
				return
			}
		}
	}
}

// EmitMotion delivers s to every motion subscriber.
func (f *Feed) EmitMotion(s MotionSample) {
	for _, sub := range append([]motionSub(nil), f.motion...) {
		sub.fn(s)
	}
}

// EmitPointer delivers s to every pointer subscriber.
func (f *Feed) EmitPointer(s PointerSample) {
	for _, sub := range append([]pointerSub(nil), f.pointer...) {
		sub.fn(s)
	}
}

// Subscribers returns the number of motion and pointer subscribers.
func (f *Feed) Subscribers() (motion, pointer int) {
	return len(f.motion), len(f.pointer)
}
