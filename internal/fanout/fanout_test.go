package fanout

import "testing"

func drain(s *Subscriber) []any {
	var out []any
	for {
		select {
		case v := <-s.C:
			out = append(out, v)
		default:
			return out
		}
	}
}

func TestPublishReachesGroupOnly(t *testing.T) {
	h := NewHub()
	a := NewSubscriber()
	b := NewSubscriber()
	other := NewSubscriber()

	h.Subscribe(GameGroup("g1"), a)
	h.Subscribe(GameGroup("g1"), b)
	h.Subscribe(GameGroup("g2"), other)

	h.Publish(GameGroup("g1"), "update")

	if got := drain(a); len(got) != 1 || got[0] != "update" {
		t.Fatalf("subscriber a: %v", got)
	}
	if got := drain(b); len(got) != 1 {
		t.Fatalf("subscriber b: %v", got)
	}
	if got := drain(other); len(got) != 0 {
		t.Fatalf("unrelated subscriber received event: %v", got)
	}
}

func TestUnsubscribedAtPublishTimeMissesEvent(t *testing.T) {
	h := NewHub()
	s := NewSubscriber()
	h.Subscribe(GroupGlobal, s)
	h.Unsubscribe(GroupGlobal, s)
	h.Publish(GroupGlobal, "gone")
	if got := drain(s); len(got) != 0 {
		t.Fatalf("expected no delivery after unsubscribe, got %v", got)
	}
}

func TestPublishDoesNotBlockOnFullBuffer(t *testing.T) {
	h := NewHub()
	s := NewSubscriber()
	h.Subscribe(GroupGlobal, s)
	for i := 0; i < defaultBuffer+10; i++ {
		h.Publish(GroupGlobal, i)
	}
	if got := drain(s); len(got) != defaultBuffer {
		t.Fatalf("expected %d buffered events, got %d", defaultBuffer, len(got))
	}
}

func TestClosedSubscriberIsSkipped(t *testing.T) {
	h := NewHub()
	s := NewSubscriber()
	h.Subscribe(GroupGlobal, s)
	h.Unsubscribe(GroupGlobal, s)
	s.Close()
	// must not panic on a closed channel
	h.Publish(GroupGlobal, "late")
}

func TestGroupSize(t *testing.T) {
	h := NewHub()
	s := NewSubscriber()
	if h.GroupSize("x") != 0 {
		t.Fatalf("expected empty group")
	}
	h.Subscribe("x", s)
	if h.GroupSize("x") != 1 {
		t.Fatalf("expected size 1")
	}
	h.Unsubscribe("x", s)
	if h.GroupSize("x") != 0 {
		t.Fatalf("expected size 0 after unsubscribe")
	}
}
