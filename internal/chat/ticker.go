package chat

import "time"

// Ticker delivers poll ticks for one open chat.
type Ticker interface {
	Chan() <-chan time.Time
	Stop()
}

// TickerFunc starts a ticker firing every d.
type TickerFunc func(d time.Duration) Ticker

type realTicker struct {
	*time.Ticker
}

func (t realTicker) Chan() <-chan time.Time {
	return t.C
}

func newRealTicker(d time.Duration) Ticker {
	return realTicker{time.NewTicker(d)}
}
