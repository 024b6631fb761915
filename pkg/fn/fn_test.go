package fn

import (
	"context"
	"errors"
	"strconv"
	"testing"
)

func TestResultOkErr(t *testing.T) {
	r := Ok(42)
	if !r.IsOk() || r.IsErr() {
		t.Fatal("Ok result should be ok")
	}
	v, err := r.Unwrap()
	if v != 42 || err != nil {
		t.Fatalf("unexpected unwrap: %v %v", v, err)
	}

	e := Err[int](errors.New("boom"))
	if e.IsOk() {
		t.Fatal("Err result should not be ok")
	}
	if _, err := e.Unwrap(); err == nil {
		t.Error("Err result should carry the error")
	}
}

func TestFromPair(t *testing.T) {
	if r := FromPair(1, nil); r.IsErr() {
		t.Error("FromPair with nil error should be ok")
	}
	if r := FromPair(0, errors.New("x")); r.IsOk() {
		t.Error("FromPair with error should be err")
	}
}

func TestCollect(t *testing.T) {
	ok := Collect([]Result[int]{Ok(1), Ok(2), Ok(3)})
	vals, err := ok.Unwrap()
	if err != nil || len(vals) != 3 {
		t.Fatalf("unexpected collect: %v %v", vals, err)
	}

	bad := Collect([]Result[int]{Ok(1), Err[int](errors.New("mid")), Ok(3)})
	if bad.IsOk() {
		t.Fatal("collect with error should fail")
	}
}

func TestThenShortCircuits(t *testing.T) {
	boom := errors.New("boom")
	first := func(_ context.Context, n int) Result[int] { return Err[int](boom) }
	called := false
	second := func(_ context.Context, n int) Result[string] {
		called = true
		return Ok(strconv.Itoa(n))
	}

	r := Then(first, second)(context.Background(), 1)
	if r.IsOk() {
		t.Fatal("expected error")
	}
	if called {
		t.Error("second stage should not run after first fails")
	}
}

func TestThenComposes(t *testing.T) {
	double := func(_ context.Context, n int) Result[int] { return Ok(n * 2) }
	str := func(_ context.Context, n int) Result[string] { return Ok(strconv.Itoa(n)) }

	r := Then(double, str)(context.Background(), 21)
	v, err := r.Unwrap()
	if err != nil || v != "42" {
		t.Fatalf("unexpected: %q %v", v, err)
	}
}

func TestFanOutResult(t *testing.T) {
	r := FanOutResult(
		func() Result[int] { return Ok(1) },
		func() Result[int] { return Ok(2) },
	)
	vals, err := r.Unwrap()
	if err != nil {
		t.Fatal(err)
	}
	if vals[0] != 1 || vals[1] != 2 {
		t.Errorf("order not preserved: %v", vals)
	}

	bad := FanOutResult(
		func() Result[int] { return Ok(1) },
		func() Result[int] { return Err[int](errors.New("lane down")) },
	)
	if bad.IsOk() {
		t.Fatal("expected lane error to surface")
	}
}

func TestSliceHelpers(t *testing.T) {
	got := Map([]int{1, 2}, strconv.Itoa)
	if got[0] != "1" || got[1] != "2" {
		t.Errorf("Map: %v", got)
	}

	uniq := UniqueBy([]string{"a.txt", "b.txt", "a.txt"}, func(s string) string { return s })
	if len(uniq) != 2 {
		t.Errorf("UniqueBy: %v", uniq)
	}
}
