package observer

import "testing"

func TestNotifyObservers(t *testing.T) {
	o := NewObservable[int](2)

	a := o.Subscribe()
	b := o.Subscribe()

	o.NotifyObservers(7)

	if got := <-a; got != 7 {
		t.Errorf("subscriber a got %d, expected 7", got)
	}
	if got := <-b; got != 7 {
		t.Errorf("subscriber b got %d, expected 7", got)
	}
}

func TestNotifyObserversDropsWhenFull(t *testing.T) {
	o := NewObservable[int](1)
	ch := o.Subscribe()

	o.NotifyObservers(1)
	o.NotifyObservers(2) // buffer full, dropped

	if got := <-ch; got != 1 {
		t.Fatalf("got %d, expected 1", got)
	}
	select {
	case v := <-ch:
		t.Errorf("expected no second notification, got %d", v)
	default:
	}
}

func TestUnsubscribe(t *testing.T) {
	o := NewObservable[string](1)
	ch := o.Subscribe()

	o.Unsubscribe(ch)
	o.Unsubscribe(ch) // no-op

	if _, ok := <-ch; ok {
		t.Errorf("channel should be closed after Unsubscribe")
	}
	if o.SubscriberCount() != 0 {
		t.Errorf("SubscriberCount() = %d, expected 0", o.SubscriberCount())
	}

	o.NotifyObservers("ignored")
}

func TestClose(t *testing.T) {
	o := NewObservable[int](1)
	ch := o.Subscribe()

	o.Close()

	if _, ok := <-ch; ok {
		t.Errorf("channel should be closed after Close")
	}

	late := o.Subscribe()
	if _, ok := <-late; ok {
		t.Errorf("subscribing to a closed observable should return a closed channel")
	}
}
