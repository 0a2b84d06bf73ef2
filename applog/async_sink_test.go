package applog

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type testCore struct {
	mu      sync.Mutex
	entries []zapcore.Entry
	fields  [][]zap.Field
}

func (tc *testCore) Enabled(zapcore.Level) bool    { return true }
func (tc *testCore) With([]zap.Field) zapcore.Core { return tc }
func (tc *testCore) Sync() error                   { return nil }
func (tc *testCore) Check(e zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	return ce.AddCore(e, tc)
}
func (tc *testCore) Write(e zapcore.Entry, fields []zap.Field) error {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.entries = append(tc.entries, e)
	tc.fields = append(tc.fields, fields)
	return nil
}

func (tc *testCore) count() int {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	return len(tc.entries)
}

func TestAsyncSinkWritesEntries(t *testing.T) {
	tc := &testCore{}
	sink := newAsyncSink(tc, 10)

	err := sink.Write(zapcore.Entry{Level: zapcore.InfoLevel, Message: "hello", Time: time.Now()}, nil)
	assert.NoError(t, err)

	sink.Shutdown(100 * time.Millisecond)
	assert.Equal(t, 1, tc.count())
}

func TestAsyncSinkOverflowReturnsError(t *testing.T) {
	// Build the sink by hand so nothing drains the buffer.
	s := &asyncSink{
		core:      &testCore{},
		entryChan: make(chan *LogEntry, 1),
		quit:      make(chan struct{}),
		once:      &sync.Once{},
		wg:        &sync.WaitGroup{},
	}

	assert.NoError(t, s.Write(zapcore.Entry{Message: "one"}, nil))
	assert.Error(t, s.Write(zapcore.Entry{Message: "two"}, nil))
}

func TestAsyncSinkWith(t *testing.T) {
	tc := &testCore{}
	sink := newAsyncSink(tc, 10)

	typed, ok := sink.With([]zap.Field{zap.String("a", "1")}).(*asyncSink)
	assert.True(t, ok, "With should return *asyncSink")
	assert.Len(t, typed.extraFields, 1)

	err := typed.Write(zapcore.Entry{Level: zapcore.InfoLevel, Message: "with test"}, []zap.Field{zap.String("b", "2")})
	assert.NoError(t, err)

	sink.Shutdown(100 * time.Millisecond)

	tc.mu.Lock()
	defer tc.mu.Unlock()
	assert.Len(t, tc.entries, 1)
	assert.Equal(t, []zap.Field{zap.String("a", "1"), zap.String("b", "2")}, tc.fields[0])
}

func TestAsyncSinkShutdownTwice(t *testing.T) {
	sink := newAsyncSink(&testCore{}, 10)
	sink.Shutdown(50 * time.Millisecond)
	assert.NotPanics(t, func() {
		sink.Shutdown(50 * time.Millisecond)
	})
}
