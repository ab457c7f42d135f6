package safe

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	corelog "bwgen/internal/core/log"
)

func TestWaitGroup_RecoversPanic(t *testing.T) {
	before := GetStats()

	var ran atomic.Int32
	wg := NewWaitGroup("test", corelog.NewNopLogger())
	wg.Go(func() { ran.Add(1) })
	wg.Go(func() { panic("boom") })
	wg.Go(func() { ran.Add(1) })
	wg.Wait()

	assert.Equal(t, int32(2), ran.Load())
	after := GetStats()
	assert.Equal(t, before.PanicCount+1, after.PanicCount)
	assert.Equal(t, before.Total+3, after.Total)
}

func TestGo_NilLogger(t *testing.T) {
	done := make(chan struct{})
	Go(nil, "nil-logger", func() {
		defer close(done)
		panic("no logger")
	})
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("goroutine did not run")
	}
}
