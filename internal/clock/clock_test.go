package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFake_AfterAdvancesTime(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewFake(start)

	fired := <-c.After(250 * time.Millisecond)

	assert.Equal(t, start.Add(250*time.Millisecond), fired)
	assert.Equal(t, start.Add(250*time.Millisecond), c.Now())
	assert.Equal(t, []time.Duration{250 * time.Millisecond}, c.Waits())
}

func TestFake_Advance(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewFake(start)
	c.Advance(time.Minute)
	assert.Equal(t, start.Add(time.Minute), c.Now())
	assert.Empty(t, c.Waits())
}

func TestReal_AfterZeroFires(t *testing.T) {
	select {
	case <-Real().After(0):
	case <-time.After(time.Second):
		t.Fatal("After(0) did not fire")
	}
}
