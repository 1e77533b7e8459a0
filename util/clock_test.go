// Copyright 2023 Signal Messenger, LLC
// SPDX-License-Identifier: AGPL-3.0-only

package util

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestRealClock(t *testing.T) {
	before := time.Now()
	time.Sleep(time.Millisecond * 10)
	got := RealClock.Now()
	if !got.After(before) {
		t.Errorf("RealClock.Now()=%v, not after %v", got, before)
	}
}

func TestManualClockConcurrentAdvance(t *testing.T) {
	c := NewManualClock(time.Unix(0, 0))
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Advance(time.Second)
			_ = c.Now()
		}()
	}
	wg.Wait()
	if got := c.Now().Unix(); got != 10 {
		t.Errorf("Now()=%d, want 10", got)
	}
}

func ExampleManualClock() {
	clock := NewManualClock(time.Unix(123, 0))
	clock.Advance(2 * time.Second)
	fmt.Print(clock.Now().Unix())
	// Output:
	// 125
}

func TestUnixMillis(t *testing.T) {
	if got := UnixMillis(NewManualClock(time.Unix(2, 5_000_000))); got != 2005 {
		t.Errorf("UnixMillis()=%d, want 2005", got)
	}
}
