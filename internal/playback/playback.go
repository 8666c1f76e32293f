package playback

import (
	"image"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ivlev/vividcut/internal/events"
)

// Target produces frames for the driver. Absolute frame numbers are used
// throughout; the driver keeps its playhead relative to StartFrame.
type Target interface {
	StartFrame() int
	TotalFrames() int
	FPS() float64
	RenderFrame(abs int) (*image.RGBA, error)
	Release(img *image.RGBA)
}

type emission struct {
	name string
	data any
	img  *image.RGBA
}

// Driver advances the playhead on a ticker at the source frame rate.
// The playhead is the next frame playback will show. Callbacks run after
// the driver lock is released.
type Driver struct {
	mu      sync.Mutex
	target  Target
	bus     *events.Bus
	log     zerolog.Logger
	current int
	playing bool
	gen     uint64
	stop    chan struct{}
}

func New(target Target, bus *events.Bus, logger zerolog.Logger) *Driver {
	return &Driver{
		target: target,
		bus:    bus,
		log:    logger.With().Str("component", "playback").Logger(),
	}
}

func (d *Driver) Current() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.current
}

func (d *Driver) Playing() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.playing
}

// Play starts the ticker. It does nothing when already playing or when the
// target has no frames.
func (d *Driver) Play() {
	d.mu.Lock()
	fps := d.target.FPS()
	if d.playing || fps <= 0 || d.target.TotalFrames() <= 0 {
		d.mu.Unlock()
		return
	}
	if d.current >= d.target.TotalFrames() {
		d.current = 0
	}
	d.playing = true
	d.gen++
	d.stop = make(chan struct{})
	go d.run(d.gen, time.Duration(float64(time.Second)/fps), d.stop)
	d.mu.Unlock()

	d.log.Debug().Float64("fps", fps).Msg("play")
	d.emit([]emission{{name: events.PlayStateChanged, data: true}})
}

func (d *Driver) Pause() {
	d.mu.Lock()
	changed := d.pauseLocked()
	d.mu.Unlock()
	if changed {
		d.emit([]emission{{name: events.PlayStateChanged, data: false}})
	}
}

func (d *Driver) Toggle() {
	if d.Playing() {
		d.Pause()
		return
	}
	d.Play()
}

// NextFrame pauses, shows the playhead frame and advances past it.
func (d *Driver) NextFrame() {
	d.Pause()
	d.mu.Lock()
	total := d.target.TotalFrames()
	if total <= 0 {
		d.mu.Unlock()
		return
	}
	if d.current >= total {
		d.current = total - 1
	}
	out := d.renderLocked(d.current)
	if d.current < total-1 {
		d.current++
	}
	d.mu.Unlock()
	d.emit(out)
}

// PrevFrame pauses, steps the playhead back and shows it.
func (d *Driver) PrevFrame() {
	d.Pause()
	d.mu.Lock()
	if d.current <= 0 {
		d.mu.Unlock()
		return
	}
	d.current--
	out := d.renderLocked(d.current)
	d.mu.Unlock()
	d.emit(out)
}

// JumpTo clamps abs into the timeline and shows it without touching the
// ticker.
func (d *Driver) JumpTo(abs int) {
	d.mu.Lock()
	start, total := d.target.StartFrame(), d.target.TotalFrames()
	rel := abs - start
	if rel > total-1 {
		rel = total - 1
	}
	if rel < 0 {
		rel = 0
	}
	d.current = rel
	out := d.renderLocked(rel)
	d.mu.Unlock()
	d.emit(out)
}

// Refresh re-renders the playhead, e.g. after an edit.
func (d *Driver) Refresh() {
	d.mu.Lock()
	total := d.target.TotalFrames()
	if d.current >= total {
		d.current = max(0, total-1)
	}
	out := d.renderLocked(d.current)
	d.mu.Unlock()
	d.emit(out)
}

// Reset pauses and rewinds without rendering.
func (d *Driver) Reset() {
	d.Pause()
	d.mu.Lock()
	d.current = 0
	d.mu.Unlock()
}

// Tick performs one playback step if playing. The ticker goroutine calls it;
// tests may call it directly.
func (d *Driver) Tick() {
	d.mu.Lock()
	gen := d.gen
	d.mu.Unlock()
	d.step(gen)
}

func (d *Driver) run(gen uint64, interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if !d.step(gen) {
				return
			}
		}
	}
}

// step renders the playhead and advances it. Ticks from an older play
// session are dropped.
func (d *Driver) step(gen uint64) bool {
	d.mu.Lock()
	if !d.playing || gen != d.gen {
		d.mu.Unlock()
		return false
	}

	total := d.target.TotalFrames()
	var out []emission
	if d.current < total {
		out = d.renderLocked(d.current)
		d.current++
	}
	more := d.current < total
	if !more {
		d.log.Debug().Int("frame", d.current).Msg("end of timeline, pausing")
		d.pauseLocked()
		out = append(out, emission{name: events.PlayStateChanged, data: false})
	}
	d.mu.Unlock()

	d.emit(out)
	return more
}

func (d *Driver) pauseLocked() bool {
	if !d.playing {
		return false
	}
	d.playing = false
	d.gen++
	close(d.stop)
	return true
}

func (d *Driver) renderLocked(rel int) []emission {
	abs := d.target.StartFrame() + rel
	img, err := d.target.RenderFrame(abs)
	if err != nil {
		d.log.Warn().Err(err).Int("frame", abs).Msg("render failed")
		return nil
	}
	return []emission{
		{name: events.FrameReady, data: events.FramePayload{Frame: abs, Image: img}, img: img},
		{name: events.CurrentFrameChanged, data: rel},
	}
}

func (d *Driver) emit(out []emission) {
	for _, e := range out {
		if d.bus != nil {
			d.bus.Emit(e.name, e.data)
		}
		if e.img != nil {
			d.target.Release(e.img)
		}
	}
}
