package position

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fitzone/zoned/params"
	"github.com/fitzone/zoned/testing/testdata"
	"github.com/fitzone/zoned/types/fix"
)

func testConfig() *params.PositionConfig {
	c := params.DefaultPositionConfig()
	c.Timeout = 0
	c.CurrentFixTimeout = 50 * time.Millisecond
	return c
}

func TestError_Is(t *testing.T) {
	err := NewError(CodeTimeout, context.DeadlineExceeded)
	if !errors.Is(err, ErrTimeout) {
		t.Error("same code should match")
	}
	if errors.Is(err, ErrPermissionDenied) {
		t.Error("different code should not match")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Error("cause should unwrap")
	}
	if Classify(context.DeadlineExceeded).Code != CodeTimeout {
		t.Error("deadline is a timeout")
	}
	if Classify(errors.New("boom")).Code != CodeUnknown {
		t.Error("unrecognized errors are unknown")
	}
	for _, c := range []Code{CodePermissionDenied, CodePositionUnavailable, CodeTimeout, CodeUnsupported, CodeUnknown} {
		if c.Message() == "" {
			t.Errorf("%s has no message", c)
		}
	}
}

func TestSource_Lifecycle(t *testing.T) {
	p := NewFeedProvider()
	s := NewSource(p, testConfig(), nil)
	if err := s.Start(); err != nil {
		t.Fatal(err)
	}
	if err := s.Start(); err != nil {
		t.Fatal(err)
	}
	if p.Watchers() != 1 {
		t.Fatalf("start must be idempotent, have %d watchers", p.Watchers())
	}
	if !s.Loading() {
		t.Error("loading until the first fix")
	}

	f := fix.New(40.7128, -74.006, time.Now())
	p.Push(f)
	if s.Loading() {
		t.Error("loading should clear on a fix")
	}
	if got, ok := s.Latest(); !ok || got.Point != f.Point {
		t.Errorf("latest: %v %v", got, ok)
	}

	p.Fail(ErrPositionUnavailable)
	if !errors.Is(s.Err(), ErrPositionUnavailable) {
		t.Errorf("standing error: %v", s.Err())
	}
	p.Push(fix.New(40.7129, -74.006, time.Now()))
	if s.Err() != nil {
		t.Error("a good fix clears the standing error")
	}

	s.Stop()
	if p.Watchers() != 0 {
		t.Error("stop must release the subscription")
	}
	p.Push(fix.New(41, -74, time.Now()))
	if got, _ := s.Latest(); got.Lat() == 41 {
		t.Error("fix after stop must be ignored")
	}
	if err := s.Restart(); err != nil {
		t.Fatal(err)
	}
	if p.Watchers() != 1 {
		t.Errorf("restart: %d watchers", p.Watchers())
	}
	s.Close()
	if p.Watchers() != 0 {
		t.Error("close leaks subscription")
	}
}

func TestSource_Unsupported(t *testing.T) {
	s := NewSource(Unsupported{}, testConfig(), nil)
	if err := s.Start(); !errors.Is(err, ErrUnsupported) {
		t.Errorf("have %v", err)
	}
	if s.Loading() {
		t.Error("an error ends loading")
	}
	if _, err := s.CurrentFix(context.Background()); !errors.Is(err, ErrUnsupported) {
		t.Errorf("have %v", err)
	}
}

func TestSource_CurrentFix(t *testing.T) {
	p := NewFeedProvider()
	s := NewSource(p, testConfig(), nil)
	want := fix.New(40.7128, -74.006, time.Now())
	go func() {
		time.Sleep(5 * time.Millisecond)
		p.Push(want)
	}()
	got, err := s.CurrentFix(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if got.Point != want.Point {
		t.Errorf("have %v", got)
	}
}

func TestSource_CurrentFixTimeout(t *testing.T) {
	p := NewFeedProvider()
	s := NewSource(p, testConfig(), nil)
	start := time.Now()
	_, err := s.CurrentFix(context.Background())
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("have %v", err)
	}
	if time.Since(start) > time.Second {
		t.Error("one-shot request should fail at its own timeout")
	}
}

func TestSource_CurrentFixFallback(t *testing.T) {
	p := NewFeedProvider()
	s := NewSource(p, testConfig(), nil)
	if err := s.Start(); err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	streamed := fix.New(40.7128, -74.006, time.Now())
	p.Push(streamed)

	got, err := s.CurrentFix(context.Background())
	if err != nil {
		t.Fatalf("fallback expected, got %v", err)
	}
	if got.Point != streamed.Point {
		t.Errorf("have %v", got)
	}
}

func TestSource_FallbackExpires(t *testing.T) {
	c := testConfig()
	c.FallbackMaxAge = 10 * time.Millisecond
	p := NewFeedProvider()
	s := NewSource(p, c, nil)
	if err := s.Start(); err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	p.Push(fix.New(40.7128, -74.006, time.Now()))
	time.Sleep(30 * time.Millisecond)
	if _, err := s.CurrentFix(context.Background()); !errors.Is(err, ErrTimeout) {
		t.Errorf("stale fix must not be used, have %v", err)
	}
}

func TestSource_FallbackDisabled(t *testing.T) {
	c := testConfig()
	c.FallbackMaxAge = 0
	p := NewFeedProvider()
	s := NewSource(p, c, nil)
	if err := s.Start(); err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	p.Push(fix.New(40.7128, -74.006, time.Now()))
	if _, err := s.CurrentFix(context.Background()); !errors.Is(err, ErrTimeout) {
		t.Errorf("fallback is off, have %v", err)
	}
}

func TestSource_ListenAndSubscribe(t *testing.T) {
	p := NewFeedProvider()
	s := NewSource(p, testConfig(), nil)
	if err := s.Start(); err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	heard := 0
	unlisten := s.Listen(func(fix.Fix) { heard++ })
	ch := make(chan fix.Fix, 10)
	sub := s.SubscribeFixes(ch)
	defer sub.Unsubscribe()

	fixes := testdata.Line(testdata.NYC, 10, 3, time.Second)
	for _, f := range fixes {
		p.Push(f)
	}
	if heard != 3 {
		t.Errorf("listener heard %d", heard)
	}
	if len(ch) != 3 {
		t.Errorf("subscriber got %d", len(ch))
	}
	unlisten()
	p.Push(fixes[0])
	if heard != 3 {
		t.Error("unlistened fn still called")
	}
	if got := s.Recent(2); len(got) != 2 || got[1].Point != fixes[0].Point {
		t.Errorf("recent: %v", got)
	}

	// Invalid fixes never reach consumers.
	p.Push(fix.Fix{})
	if len(ch) != 4 {
		t.Errorf("invalid fix delivered, %d", len(ch))
	}
}

func TestFeedProvider_WatchTimeout(t *testing.T) {
	p := NewFeedProvider()
	errs := make(chan error, 4)
	id, _ := p.StartWatch(func(fix.Fix) {}, func(err error) { errs <- err }, Options{Timeout: 10 * time.Millisecond})
	select {
	case err := <-errs:
		if !errors.Is(err, ErrTimeout) {
			t.Errorf("have %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("watch timeout never fired")
	}
	p.StopWatch(id)
}

func TestFeedProvider_MaximumAge(t *testing.T) {
	p := NewFeedProvider()
	f := fix.New(1, 1, time.Now())
	p.Push(f)
	got := make(chan fix.Fix, 1)
	p.GetCurrentFix(func(f fix.Fix) { got <- f }, func(error) {}, Options{MaximumAge: time.Minute})
	select {
	case g := <-got:
		if g.Point != f.Point {
			t.Error("wrong fix")
		}
	default:
		t.Error("cached fix within maximum age should answer immediately")
	}
}

func TestReplayProvider(t *testing.T) {
	fixes := testdata.Line(testdata.NYC, 10, 3, time.Second)
	p := NewReplayProvider(fixes)
	s := NewSource(p, testConfig(), nil)
	got, err := s.CurrentFix(context.Background())
	if err != nil || got.Point != fixes[0].Point {
		t.Fatalf("have %v %v", got, err)
	}
	if err := s.Start(); err != nil {
		t.Fatal(err)
	}
	n := 0
	for {
		if _, ok := p.Step(); !ok {
			break
		}
		n++
	}
	if n != 3 || p.Remaining() != 0 {
		t.Errorf("stepped %d", n)
	}
	if last, _ := s.Latest(); last.Point != fixes[2].Point {
		t.Error("latest should be the last replayed fix")
	}
	if _, err := s.CurrentFix(context.Background()); err != nil {
		t.Error("fallback to streamed fix once the replay is exhausted")
	}
}
