package expdecay

import (
	"math"
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Add(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

func newTrackerForTest(hl time.Duration) (*Tracker, *fakeClock) {
	fc := &fakeClock{now: time.Unix(0, 0).UTC()}
	tr := New(hl)
	tr.now = fc.Now
	return tr, fc
}

func almostEq(t *testing.T, got, want, eps float64) {
	t.Helper()
	if math.Abs(got-want) > eps {
		t.Fatalf("got=%g want=%g (eps=%g)", got, want, eps)
	}
}

func TestIncAndScore_AccumulatesImmediately(t *testing.T) {
	tr, _ := newTrackerForTest(time.Minute)
	cell := "u6sce0t4"

	for i := 1; i <= 3; i++ {
		tr.Inc(cell)
		almostEq(t, tr.Score(cell), float64(i), 1e-9)
	}
}

func TestHalfLife_DecaysByHalf(t *testing.T) {
	hl := 2 * time.Second
	tr, fc := newTrackerForTest(hl)
	cell := "u6sce0t4"

	tr.Inc(cell)
	fc.Add(hl)
	almostEq(t, tr.Score(cell), 0.5, 1e-6)

	fc.Add(hl)
	almostEq(t, tr.Score(cell), 0.25, 1e-6)

	// a new hit adds on top of the decayed score
	tr.Inc(cell)
	almostEq(t, tr.Score(cell), 1.25, 1e-6)
}

func TestConcurrency_ManyIncSameCell(t *testing.T) {
	tr, _ := newTrackerForTest(time.Minute)
	cell := "9q8yyk8y"
	const N = 256

	var wg sync.WaitGroup
	wg.Add(N)
	for range N {
		go func() {
			defer wg.Done()
			tr.Inc(cell)
		}()
	}
	wg.Wait()

	almostEq(t, tr.Score(cell), N, 1e-9)
}

func TestReset_OnlySelectedCells(t *testing.T) {
	tr, _ := newTrackerForTest(30 * time.Second)
	a, b := "ezs42", "ezs43"

	tr.Inc(a)
	tr.Inc(b)
	tr.Reset(a, "")

	if got := tr.Score(a); got != 0 {
		t.Fatalf("reset failed for %s: got %g", a, got)
	}
	if got := tr.Score(b); got <= 0 {
		t.Fatalf("unexpected reset of %s: got %g", b, got)
	}
	if tr.Size() != 1 {
		t.Fatalf("size=%d want 1", tr.Size())
	}
}

func TestTop_OrdersByScore(t *testing.T) {
	tr, _ := newTrackerForTest(time.Minute)
	for range 3 {
		tr.Inc("c")
	}
	tr.Inc("a")
	tr.Inc("b")
	tr.Inc("b")

	top := tr.Top(2)
	if len(top) != 2 || top[0].Cell != "c" || top[1].Cell != "b" {
		t.Fatalf("top=%+v", top)
	}
	if all := tr.Top(10); len(all) != 3 || all[2].Cell != "a" {
		t.Fatalf("top(10)=%+v", all)
	}
	if tr.Top(0) != nil {
		t.Fatal("top(0) must be nil")
	}
}

func TestDecayHelper_Edges(t *testing.T) {
	if got := decay(0, 10, 60); got != 0 {
		t.Fatalf("expected 0, got %g", got)
	}
	if got := decay(5, 0, 60); got != 5 {
		t.Fatalf("expected 5, got %g", got)
	}
	if got := decay(5, 10, 0); got != 5 {
		t.Fatalf("expected 5, got %g", got)
	}
}
