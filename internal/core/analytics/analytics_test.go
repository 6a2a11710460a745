package analytics

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEventValidate(t *testing.T) {
	assert.NoError(t, Event{Name: "cta_click"}.Validate())
	assert.Error(t, Event{Name: "   "}.Validate())
	assert.Error(t, Event{Name: strings.Repeat("x", MaxEventNameLength+1)}.Validate())
}

func TestThrottledDropsBeyondBurst(t *testing.T) {
	var delivered atomic.Int32
	next := SinkFunc(func(context.Context, Event) { delivered.Add(1) })

	// One event per hour keeps refill out of the picture.
	sink := NewThrottled(next, 1.0/3600, 3)
	for i := 0; i < 10; i++ {
		sink.Track(context.Background(), Event{Name: "page_view"})
	}

	assert.EqualValues(t, 3, delivered.Load())
}

func TestThrottledUnlimited(t *testing.T) {
	var delivered atomic.Int32
	next := SinkFunc(func(context.Context, Event) { delivered.Add(1) })

	sink := NewThrottled(next, 0, 0)
	for i := 0; i < 100; i++ {
		sink.Track(context.Background(), Event{Name: "page_view"})
	}

	assert.EqualValues(t, 100, delivered.Load())
}

func TestThrottledNilSafe(t *testing.T) {
	var sink *Throttled
	assert.NotPanics(t, func() { sink.Track(context.Background(), Event{Name: "x"}) })
}

func TestLogSinkWithoutLogger(t *testing.T) {
	assert.NotPanics(t, func() {
		LogSink{}.Track(context.Background(), Event{Name: "x", Properties: map[string]any{"k": 1}})
	})
}
