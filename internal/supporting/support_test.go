package supporting

import (
	"github.com/stretchr/testify/assert"
	"testing"
	"time"
)

func Test_Waiter_Timeout(t *testing.T) {
	waiter := NewWaiterWithTimeout(time.Millisecond * 10)
	assert.ErrorIs(t, waiter.Await(), ErrWaiterTimeout)
}

func Test_ShutdownAwaiter(t *testing.T) {
	awaiter := NewShutdownAwaiter()
	go func() {
		if err := awaiter.AwaitShutdown(); err == nil {
			awaiter.SignalDone()
		}
	}()
	awaiter.SignalShutdown()
	assert.NoError(t, awaiter.AwaitDone())
}

func Test_ShutdownAwaiter_Timeout_Starts_At_Shutdown(t *testing.T) {
	awaiter := NewShutdownAwaiterWithTimeout(time.Millisecond * 50)
	time.Sleep(time.Millisecond * 80)

	go func() {
		if err := awaiter.AwaitShutdown(); err == nil {
			awaiter.SignalDone()
		}
	}()
	awaiter.SignalShutdown()
	assert.NoError(t, awaiter.AwaitDone())
}

func Test_ShutdownAwaiter_Timeout(t *testing.T) {
	awaiter := NewShutdownAwaiterWithTimeout(time.Millisecond * 10)
	awaiter.SignalShutdown()
	assert.ErrorIs(t, awaiter.AwaitDone(), ErrWaiterTimeout)
}
