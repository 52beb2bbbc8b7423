package binance

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/pasiyamd/forexbot/internal/observ"
	"github.com/pasiyamd/forexbot/internal/venue"
)

const (
	streamBase        = "wss://fstream.binance.com/stream?streams="
	streamBaseTestnet = "wss://stream.binancefuture.com/stream?streams="
	reconnectDelay    = 5 * time.Second
	maxCachedBars     = 500
)

type combinedKlineEvent struct {
	Data struct {
		Symbol string `json:"s"`
		Kline  struct {
			CloseTime int64  `json:"T"`
			Close     string `json:"c"`
			Final     bool   `json:"x"`
		} `json:"k"`
	} `json:"data"`
}

// KlineStream keeps a rolling window of closed bars per symbol fed by
// the combined kline websocket, so the evaluation loop does not pay a
// REST round-trip every cycle once the cache is warm.
type KlineStream struct {
	url string

	mu   sync.RWMutex
	bars map[string][]venue.Bar
}

func NewKlineStream(symbols []string, interval string, testnet bool) *KlineStream {
	base := streamBase
	if testnet {
		base = streamBaseTestnet
	}
	streams := make([]string, len(symbols))
	for i, s := range symbols {
		streams[i] = strings.ToLower(s) + "@kline_" + interval
	}
	return &KlineStream{
		url:  base + strings.Join(streams, "/"),
		bars: map[string][]venue.Bar{},
	}
}

// Bars returns the last n cached bars for symbol, oldest first. The
// second return is false while the cache holds fewer than n bars; the
// caller then falls back to REST.
func (k *KlineStream) Bars(symbol string, n int) ([]venue.Bar, bool) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	cached := k.bars[symbol]
	if len(cached) < n {
		return nil, false
	}
	out := make([]venue.Bar, n)
	copy(out, cached[len(cached)-n:])
	return out, true
}

// Run connects and keeps reading until ctx is canceled, reconnecting
// with a fixed delay after any failure.
func (k *KlineStream) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, k.url, nil)
		if err != nil {
			observ.Error("kline_stream_dial_failed", err, nil)
			if !sleep(ctx, reconnectDelay) {
				return
			}
			continue
		}
		k.readLoop(ctx, conn)
		observ.Warn("kline_stream_disconnected", nil)
		if !sleep(ctx, reconnectDelay) {
			return
		}
	}
}

func (k *KlineStream) readLoop(ctx context.Context, conn *websocket.Conn) {
	defer conn.Close()
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				observ.Error("kline_stream_read_failed", err, nil)
			}
			return
		}

		var ev combinedKlineEvent
		if err := json.Unmarshal(message, &ev); err != nil {
			continue
		}
		if !ev.Data.Kline.Final || ev.Data.Symbol == "" {
			continue
		}

		close, err := strconv.ParseFloat(ev.Data.Kline.Close, 64)
		if err != nil {
			continue
		}
		k.add(venue.Bar{
			Symbol: ev.Data.Symbol,
			Close:  close,
			Time:   time.UnixMilli(ev.Data.Kline.CloseTime),
		})
	}
}

func (k *KlineStream) add(bar venue.Bar) {
	k.mu.Lock()
	defer k.mu.Unlock()
	bars := append(k.bars[bar.Symbol], bar)
	if len(bars) > maxCachedBars {
		bars = bars[len(bars)-maxCachedBars:]
	}
	k.bars[bar.Symbol] = bars
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
