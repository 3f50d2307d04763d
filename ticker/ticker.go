package ticker

import "time"

// Ticker is the interface the mock in this package, and the real
// implementation below, both satisfy. Callers depend on this interface
// rather than a concrete type so tests can force-feed ticks without
// waiting on a real clock.
type Ticker interface {
	// Ticks returns a receive-only channel that delivers times at the
	// ticker's prescribed interval when active.
	Ticks() <-chan time.Time

	// Resume starts the ticker, such that Ticks() begins signaling at
	// regular intervals.
	Resume()

	// Pause suspends the ticker, such that Ticks() stops signaling at
	// regular intervals.
	Pause()

	// Stop suspends the ticker and permanently frees up any resources.
	Stop()
}

// wallTicker is a real Ticker backed by time.Ticker. Resume and Pause only
// set a flag; they neither stop nor restart the underlying ticker.
type wallTicker struct {
	ticker *time.Ticker
	active bool
}

// New returns a Ticker that delivers ticks at the given interval using the
// system clock. The underlying ticker runs from construction, so ticks
// arrive on Ticks() whether or not Resume has been called.
func New(interval time.Duration) Ticker {
	return &wallTicker{
		ticker: time.NewTicker(interval),
	}
}

// Ticks returns the underlying time.Ticker's channel directly: unlike Mock,
// ticks keep arriving on it while the ticker is paused.
//
// NOTE: Part of the Ticker interface.
func (w *wallTicker) Ticks() <-chan time.Time {
	return w.ticker.C
}

// Resume marks the ticker active. The underlying time.Ticker keeps running
// either way, so Pause/Resume here only record whether the caller should
// look at Ticks() at all.
//
// NOTE: Part of the Ticker interface.
func (w *wallTicker) Resume() {
	w.active = true
}

// Pause marks the ticker inactive. Callers using this Ticker through the
// interface should stop reading Ticks() once Pause has been called, since
// the underlying channel keeps ticking in the background.
//
// NOTE: Part of the Ticker interface.
func (w *wallTicker) Pause() {
	w.active = false
}

// Stop frees the underlying time.Ticker's resources permanently.
//
// NOTE: Part of the Ticker interface.
func (w *wallTicker) Stop() {
	w.active = false
	w.ticker.Stop()
}

var _ Ticker = (*Mock)(nil)
var _ Ticker = (*wallTicker)(nil)
