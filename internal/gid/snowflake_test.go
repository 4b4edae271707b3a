package gid

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// fakeClock returns scripted millisecond readings; once the script runs out
// it keeps returning the last value plus one per call.
type fakeClock struct {
	mu    sync.Mutex
	ticks []int64
	last  int64
	calls int
}

func (c *fakeClock) now() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if len(c.ticks) > 0 {
		c.last = c.ticks[0]
		c.ticks = c.ticks[1:]
		return c.last
	}
	c.last++
	return c.last
}

func TestGenerator(t *testing.T) {
	gen, err := NewGenerator(1)
	if err != nil {
		t.Fatalf("NewGenerator failed: %v", err)
	}

	// Generate multiple IDs and ensure uniqueness
	ids := make(map[uint64]bool)
	for i := 0; i < 10000; i++ {
		id, err := gen.Generate()
		if err != nil {
			t.Fatalf("Generate failed: %v", err)
		}
		if ids[id] {
			t.Errorf("duplicate ID generated: %d", id)
		}
		ids[id] = true
	}
}

func TestGeneratorMonotonic(t *testing.T) {
	gen, _ := NewGenerator(7)

	prev, _ := gen.Generate()
	for i := 0; i < 5000; i++ {
		curr, err := gen.Generate()
		if err != nil {
			t.Fatalf("Generate failed: %v", err)
		}
		if curr <= prev {
			t.Fatalf("IDs not increasing at %d: prev=%d curr=%d", i, prev, curr)
		}
		prev = curr
	}
}

func TestGeneratorMachineIDBounds(t *testing.T) {
	for _, id := range []int{-1, 1024, 5000} {
		_, err := NewGenerator(id)
		if !errors.Is(err, ErrInvalidConfiguration) {
			t.Errorf("NewGenerator(%d) error = %v, want ErrInvalidConfiguration", id, err)
		}
	}
	for _, id := range []int{0, 1023} {
		gen, err := NewGenerator(id)
		if err != nil {
			t.Errorf("NewGenerator(%d) failed: %v", id, err)
			continue
		}
		if gen.MachineID() != id {
			t.Errorf("MachineID() = %d, want %d", gen.MachineID(), id)
		}
	}
}

func TestExtractComponents(t *testing.T) {
	gen, _ := NewGenerator(42)
	before := time.Now().Truncate(time.Millisecond)
	id, _ := gen.Generate()
	after := time.Now().Add(time.Millisecond).Truncate(time.Millisecond)

	extractedTime := ExtractTime(id)
	if extractedTime.Before(before) || extractedTime.After(after) {
		t.Errorf("extracted time %v not between %v and %v", extractedTime, before, after)
	}

	machineID := ExtractMachineID(id)
	if machineID != 42 {
		t.Errorf("expected machine ID 42, got %d", machineID)
	}
}

func TestParseRoundTrip(t *testing.T) {
	gen, _ := NewGenerator(513)
	for i := 0; i < 100; i++ {
		id, _ := gen.Generate()
		c := Parse(id)
		if c.MachineID != 513 {
			t.Fatalf("machine id = %d, want 513", c.MachineID)
		}
		if c.Sequence < 0 || c.Sequence >= 4096 {
			t.Fatalf("sequence %d out of range", c.Sequence)
		}
		if d := time.Since(c.Time); d < 0 || d > time.Second {
			t.Fatalf("timestamp %d is %v away from now", c.Timestamp, d)
		}
		if c.Timestamp != c.Time.UnixMilli() {
			t.Fatalf("Timestamp %d and Time %v disagree", c.Timestamp, c.Time)
		}
		if c.Formatted != c.Time.Local().Format("2006-01-02 15:04:05") {
			t.Fatalf("unexpected formatted time %q", c.Formatted)
		}
	}
}

func TestBitLayout(t *testing.T) {
	gen, _ := NewGenerator(1)
	x, _ := gen.Generate()

	ts := int64(x>>22) + 1704067200000
	if d := time.Now().UnixMilli() - ts; d < 0 || d > 1000 {
		t.Errorf("timestamp field %d is %dms from now", ts, d)
	}
	if (x>>12)&1023 != 1 {
		t.Errorf("machine bits = %d, want 1", (x>>12)&1023)
	}
	if x&4095 >= 4096 {
		t.Errorf("sequence bits = %d", x&4095)
	}
	if x>>63 != 0 {
		t.Errorf("top bit set in %d", x)
	}
}

func TestSequenceResetsOnNewMillisecond(t *testing.T) {
	gen, _ := NewGenerator(3)

	first, _ := gen.Generate()
	time.Sleep(2 * time.Millisecond)
	second, _ := gen.Generate()

	if ExtractTime(second).UnixMilli() <= ExtractTime(first).UnixMilli() {
		t.Fatalf("timestamp did not advance: %d then %d", first, second)
	}
	if seq := ExtractSequence(second); seq != 0 {
		t.Errorf("sequence after sleep = %d, want 0", seq)
	}
}

func TestSequenceIncrementsWithinMillisecond(t *testing.T) {
	clock := &fakeClock{ticks: []int64{Epoch + 10, Epoch + 10, Epoch + 10}}
	gen, _ := NewGenerator(2, WithClock(clock.now))

	for want := 0; want < 3; want++ {
		id, err := gen.Generate()
		if err != nil {
			t.Fatalf("Generate failed: %v", err)
		}
		if got := ExtractSequence(id); got != want {
			t.Errorf("sequence = %d, want %d", got, want)
		}
		if got := ExtractTime(id).UnixMilli(); got != Epoch+10 {
			t.Errorf("timestamp = %d, want %d", got, Epoch+10)
		}
	}
}

func TestSequenceOverflowWaitsForNextMillisecond(t *testing.T) {
	// 4096 readings at the same millisecond use up the sequence; the 4097th
	// call has to spin through two more stale readings before time moves on.
	ticks := make([]int64, 0, 4100)
	for i := 0; i < 4097; i++ {
		ticks = append(ticks, Epoch+50)
	}
	ticks = append(ticks, Epoch+50, Epoch+50, Epoch+51)
	clock := &fakeClock{ticks: ticks}
	gen, _ := NewGenerator(9, WithClock(clock.now))

	var last uint64
	for i := 0; i < 4096; i++ {
		id, err := gen.Generate()
		if err != nil {
			t.Fatalf("Generate failed: %v", err)
		}
		last = id
	}
	if ExtractSequence(last) != 4095 {
		t.Fatalf("sequence = %d, want 4095", ExtractSequence(last))
	}

	id, err := gen.Generate()
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if id <= last {
		t.Fatalf("id after overflow %d not greater than %d", id, last)
	}
	if got := ExtractTime(id).UnixMilli(); got != Epoch+51 {
		t.Errorf("timestamp after overflow = %d, want %d", got, Epoch+51)
	}
	if got := ExtractSequence(id); got != 0 {
		t.Errorf("sequence after overflow = %d, want 0", got)
	}
}

func TestClockRegression(t *testing.T) {
	clock := &fakeClock{ticks: []int64{Epoch + 100, Epoch + 95, Epoch + 101}}
	gen, _ := NewGenerator(4, WithClock(clock.now))

	first, err := gen.Generate()
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	_, err = gen.Generate()
	if !errors.Is(err, ErrClockRegression) {
		t.Fatalf("expected ErrClockRegression, got %v", err)
	}
	var regression *ClockRegressionError
	if !errors.As(err, &regression) {
		t.Fatalf("expected *ClockRegressionError, got %T", err)
	}
	if regression.Drift != 5*time.Millisecond {
		t.Errorf("drift = %v, want 5ms", regression.Drift)
	}
	if regression.MachineID != 4 {
		t.Errorf("machine id = %d, want 4", regression.MachineID)
	}

	// the generator recovers once the clock catches up
	next, err := gen.Generate()
	if err != nil {
		t.Fatalf("Generate after regression failed: %v", err)
	}
	if next <= first {
		t.Errorf("id after recovery %d not greater than %d", next, first)
	}
}

func TestConcurrentGeneration(t *testing.T) {
	gen, _ := NewGenerator(1)
	ids := make(chan uint64, 10000)

	// Generate IDs concurrently
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				id, err := gen.Generate()
				if err != nil {
					t.Errorf("Generate failed: %v", err)
					return
				}
				ids <- id
			}
		}()
	}
	wg.Wait()
	close(ids)

	// Collect and check for duplicates
	seen := make(map[uint64]bool)
	for id := range ids {
		if seen[id] {
			t.Errorf("duplicate ID: %d", id)
		}
		seen[id] = true
	}
	if len(seen) != 10000 {
		t.Errorf("got %d unique IDs, want 10000", len(seen))
	}
}

func TestConcurrentSharedInstance(t *testing.T) {
	gen, _ := NewGenerator(11)

	var mu sync.Mutex
	seen := make(map[uint64]struct{}, 1000)
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			local := make([]uint64, 0, 100)
			for j := 0; j < 100; j++ {
				id, err := gen.Generate()
				if err != nil {
					t.Errorf("Generate failed: %v", err)
					return
				}
				local = append(local, id)
			}
			mu.Lock()
			for _, id := range local {
				seen[id] = struct{}{}
			}
			mu.Unlock()
		}()
	}
	wg.Wait()

	if len(seen) != 1000 {
		t.Errorf("got %d unique IDs, want 1000", len(seen))
	}
}

func TestHappensBeforeOrdering(t *testing.T) {
	gen, _ := NewGenerator(5)

	var latest atomic.Uint64
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 500; j++ {
				// a value observed as published must be below anything minted afterwards
				floor := latest.Load()
				id, err := gen.Generate()
				if err != nil {
					t.Errorf("Generate failed: %v", err)
					return
				}
				if id <= floor {
					t.Errorf("id %d not above previously completed %d", id, floor)
					return
				}
				for {
					cur := latest.Load()
					if id <= cur || latest.CompareAndSwap(cur, id) {
						break
					}
				}
			}
		}()
	}
	wg.Wait()
}

func BenchmarkGenerate(b *testing.B) {
	gen, _ := NewGenerator(1)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		gen.Generate()
	}
}

func BenchmarkGenerateParallel(b *testing.B) {
	gen, _ := NewGenerator(1)
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			gen.Generate()
		}
	})
}

func TestClockOutOfRange(t *testing.T) {
	clock := &fakeClock{ticks: []int64{Epoch - 1, Epoch + maxTimestamp + 1, Epoch + maxTimestamp}}
	gen, _ := NewGenerator(6, WithClock(clock.now))

	for i := 0; i < 2; i++ {
		_, err := gen.Generate()
		if !errors.Is(err, ErrClockOutOfRange) {
			t.Fatalf("call %d: expected ErrClockOutOfRange, got %v", i, err)
		}
		if errors.Is(err, ErrClockRegression) {
			t.Fatalf("call %d: out-of-range clock reported as regression", i)
		}
	}

	// the last representable millisecond still works
	id, err := gen.Generate()
	if err != nil {
		t.Fatalf("Generate at the last millisecond failed: %v", err)
	}
	if got := ExtractTime(id).UnixMilli(); got != Epoch+maxTimestamp {
		t.Errorf("timestamp = %d, want %d", got, Epoch+maxTimestamp)
	}
	if ExtractMachineID(id) != 6 || ExtractSequence(id) != 0 {
		t.Errorf("machine/sequence bits corrupted: %d/%d", ExtractMachineID(id), ExtractSequence(id))
	}
	if id>>63 != 0 {
		t.Errorf("top bit set in %d", id)
	}
}
