package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/ivlev/vividcut/internal/events"
)

func TestNewLoggerWritesJSON(t *testing.T) {
	var a, b bytes.Buffer
	logger := NewLogger(&a, &b)
	logger.Info().Str("component", "test").Msg("hello")
	for _, buf := range []*bytes.Buffer{&a, &b} {
		if !strings.Contains(buf.String(), `"message":"hello"`) {
			t.Errorf("output = %q", buf.String())
		}
	}
}

func TestTraceEventsSkipsFrames(t *testing.T) {
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)

	var buf bytes.Buffer
	bus := events.NewBus()
	stop := TraceEvents(bus, zerolog.New(&buf))

	bus.Emit(events.FrameReady, events.FramePayload{Frame: 1})
	bus.Emit(events.CurrentFrameChanged, 1)
	bus.Emit(events.LengthChanged, 131)
	stop()
	bus.Emit(events.LengthChanged, 100)

	out := buf.String()
	if strings.Count(out, "\n") != 1 || !strings.Contains(out, `"event":"timeline:length"`) || !strings.Contains(out, `"data":131`) {
		t.Errorf("trace output = %q", out)
	}
}
