package shutdown

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestHooksRunInOrder(t *testing.T) {
	m := NewManager(time.Second, testLogger())

	var mu sync.Mutex
	var calls []string
	record := func(name string) func(context.Context) error {
		return func(context.Context) error {
			mu.Lock()
			defer mu.Unlock()
			calls = append(calls, name)
			return nil
		}
	}

	m.Register("store", OrderCloseStore, record("store"))
	m.Register("http", OrderHTTPServer, record("http"))
	m.Register("output", OrderFlushOutput, record("output"))
	m.Register("source", OrderCloseSource, record("source"))

	assert.Equal(t, []string{"http", "output", "store", "source"}, m.Hooks())

	m.Trigger()
	require.NoError(t, m.Wait(context.Background()))
	assert.Equal(t, []string{"http", "output", "store", "source"}, calls)

	select {
	case <-m.Done():
	default:
		t.Fatal("Done未关闭")
	}
}

func TestFailingHookDoesNotStopOthers(t *testing.T) {
	m := NewManager(time.Second, testLogger())

	ran := false
	m.Register("broken", 1, func(context.Context) error { return errors.New("boom") })
	m.Register("after", 2, func(context.Context) error { ran = true; return nil })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := m.Wait(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken")
	assert.True(t, ran)
}

func TestTimeoutSkipsRemainingHooks(t *testing.T) {
	m := NewManager(20*time.Millisecond, testLogger())

	ran := false
	m.Register("slow", 1, func(ctx context.Context) error {
		<-ctx.Done()
		return nil
	})
	m.Register("skipped", 2, func(context.Context) error { ran = true; return nil })

	m.Trigger()
	err := m.Wait(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, ran)
}

func TestTriggerIsIdempotent(t *testing.T) {
	m := NewManager(0, testLogger())
	assert.Equal(t, DefaultTimeout, m.timeout)

	m.Trigger()
	m.Trigger()
	require.NoError(t, m.Wait(context.Background()))
}
