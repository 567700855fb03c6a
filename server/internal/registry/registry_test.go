package registry

import (
	"errors"
	"sync"
	"testing"
)

type fakeConn struct{ name string }

func (f *fakeConn) Send([]byte) error { return nil }

func TestSubscribe_AssignsSequentialIDs(t *testing.T) {
	r := New()
	a, b := &fakeConn{"a"}, &fakeConn{"b"}

	if id := r.Subscribe(a); id != 0 {
		t.Errorf("first id: got %d, want 0", id)
	}
	if id := r.Subscribe(b); id != 1 {
		t.Errorf("second id: got %d, want 1", id)
	}
	if n := r.Len(); n != 2 {
		t.Errorf("Len: got %d, want 2", n)
	}
}

func TestUnsubscribe_KeepsOtherIdentities(t *testing.T) {
	r := New()
	a, b, c := &fakeConn{"a"}, &fakeConn{"b"}, &fakeConn{"c"}
	idA := r.Subscribe(a)
	idB := r.Subscribe(b)
	idC := r.Subscribe(c)

	if err := r.Unsubscribe(idA); err != nil {
		t.Fatalf("Unsubscribe(%d): %v", idA, err)
	}

	got, ok := r.Lookup(idB)
	if !ok || got != b {
		t.Errorf("Lookup(%d) after removing a: got %v, %v; want b", idB, got, ok)
	}
	got, ok = r.Lookup(idC)
	if !ok || got != c {
		t.Errorf("Lookup(%d) after removing a: got %v, %v; want c", idC, got, ok)
	}

	// A later subscriber must not collide with the survivors.
	idD := r.Subscribe(&fakeConn{"d"})
	if idD == idB || idD == idC || idD == idA {
		t.Errorf("new id %d collides with an issued id", idD)
	}
}

func TestUnsubscribe_NotFound(t *testing.T) {
	r := New()
	r.Subscribe(&fakeConn{"a"})

	err := r.Unsubscribe(42)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Unsubscribe(42): got %v, want ErrNotFound", err)
	}
	if n := r.Len(); n != 1 {
		t.Errorf("Len after failed unsubscribe: got %d, want 1", n)
	}
}

func TestUnsubscribe_Twice(t *testing.T) {
	r := New()
	id := r.Subscribe(&fakeConn{"a"})
	if err := r.Unsubscribe(id); err != nil {
		t.Fatalf("first Unsubscribe: %v", err)
	}
	if err := r.Unsubscribe(id); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Unsubscribe: got %v, want ErrNotFound", err)
	}
}

func TestSnapshot_OrderAndIsolation(t *testing.T) {
	r := New()
	conns := []*fakeConn{{"a"}, {"b"}, {"c"}}
	for _, c := range conns {
		r.Subscribe(c)
	}

	snap := r.Snapshot()
	if len(snap) != 3 {
		t.Fatalf("Snapshot: got %d entries, want 3", len(snap))
	}
	for i, e := range snap {
		if e.ID != int64(i) || e.Conn != conns[i] {
			t.Errorf("Snapshot[%d]: got {%d %v}, want {%d %v}", i, e.ID, e.Conn, i, conns[i])
		}
	}

	// Mutating the registry must not change a snapshot already taken.
	r.Unsubscribe(0) //nolint:errcheck
	if snap[0].ID != 0 || len(snap) != 3 {
		t.Errorf("snapshot changed after Unsubscribe: %v", snap)
	}
	if ids := r.IDs(); len(ids) != 2 || ids[0] != 1 || ids[1] != 2 {
		t.Errorf("IDs: got %v, want [1 2]", ids)
	}
}

func TestClear_KeepsCounter(t *testing.T) {
	r := New()
	r.Subscribe(&fakeConn{"a"})
	r.Subscribe(&fakeConn{"b"})

	if n := r.Clear(); n != 2 {
		t.Errorf("Clear: removed %d, want 2", n)
	}
	if n := r.Len(); n != 0 {
		t.Errorf("Len after Clear: got %d, want 0", n)
	}
	if id := r.Subscribe(&fakeConn{"c"}); id != 2 {
		t.Errorf("id after Clear: got %d, want 2", id)
	}
}

func TestConcurrentSubscribeUnsubscribe_UniqueIDs(t *testing.T) {
	r := New()
	const n = 200

	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		ids = make(map[int64]bool, n)
	)
	for i := 0; i < n; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			id := r.Subscribe(&fakeConn{})
			mu.Lock()
			if ids[id] {
				t.Errorf("duplicate id %d", id)
			}
			ids[id] = true
			mu.Unlock()
			if id%2 == 0 {
				r.Unsubscribe(id) //nolint:errcheck
			}
		}()
		go func() {
			defer wg.Done()
			for _, e := range r.Snapshot() {
				_ = e.Conn.Send(nil)
			}
		}()
	}
	wg.Wait()

	if len(ids) != n {
		t.Errorf("distinct ids: got %d, want %d", len(ids), n)
	}
	if got := r.Len(); got != n/2 {
		t.Errorf("Len: got %d, want %d", got, n/2)
	}
}
