package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"unitflow/internal/numutil"
	"unitflow/logger"
)

const (
	defaultStreamURL      = "wss://fstream.binance.com/stream"
	defaultReconnectDelay = 5 * time.Second
)

type markPriceEvent struct {
	Stream string `json:"stream"`
	Data   struct {
		Symbol    string `json:"s"`
		MarkPrice string `json:"p"`
	} `json:"data"`
}

// MarkPriceStream keeps a live mark price per symbol from the combined
// futures websocket feed. It reconnects on failure until stopped.
type MarkPriceStream struct {
	url     string
	symbols []string
	log     *logger.Entry

	mu     sync.RWMutex
	prices map[string]float64

	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// NewMarkPriceStream builds a stream over the 1s mark-price topics of
// the given symbols. An empty url selects the production feed.
func NewMarkPriceStream(url string, watch []string, log *logger.Log) *MarkPriceStream {
	if url == "" {
		url = defaultStreamURL
	}
	return &MarkPriceStream{
		url:     url,
		symbols: watch,
		log:     log.WithComponent("binance_stream"),
		prices:  make(map[string]float64),
	}
}

// Start launches the read loop. Calling Start on a running stream is a
// no-op.
func (s *MarkPriceStream) Start(ctx context.Context) {
	if s.running || len(s.symbols) == 0 {
		return
	}
	s.running = true

	ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(ctx)
	}()
	s.log.WithFields(logger.Fields{"symbols": len(s.symbols)}).Info("mark price stream started")
}

// Stop terminates the read loop and waits for it to exit.
func (s *MarkPriceStream) Stop() {
	if !s.running {
		return
	}
	s.cancel()
	s.wg.Wait()
	s.running = false
	s.log.Info("mark price stream stopped")
}

// Price returns the last observed mark price for a symbol.
func (s *MarkPriceStream) Price(symbol string) (float64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.prices[symbol]
	return p, ok
}

func (s *MarkPriceStream) run(ctx context.Context) {
	url := s.streamURL()
	dialer := websocket.DefaultDialer
	for {
		if ctx.Err() != nil {
			return
		}

		conn, _, err := dialer.DialContext(ctx, url, nil)
		if err != nil {
			s.log.WithError(err).WithFields(logger.Fields{"url": url}).Warn("failed to connect to mark price stream")
			if waitForReconnect(ctx, defaultReconnectDelay) {
				return
			}
			continue
		}

		if err := s.readMessages(ctx, conn); err != nil && ctx.Err() == nil {
			s.log.WithError(err).Warn("mark price stream read loop ended")
		}
		conn.Close()

		if ctx.Err() != nil {
			return
		}
		if waitForReconnect(ctx, defaultReconnectDelay) {
			return
		}
	}
}

func (s *MarkPriceStream) readMessages(ctx context.Context, conn *websocket.Conn) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		s.handleMessage(msg)
	}
}

func (s *MarkPriceStream) handleMessage(msg []byte) {
	var event markPriceEvent
	if err := json.Unmarshal(msg, &event); err != nil {
		s.log.WithError(err).Debug("skipping malformed stream message")
		return
	}
	if event.Data.Symbol == "" {
		return
	}
	price := numutil.SafeParseFloat(event.Data.MarkPrice, 0)
	if price <= 0 {
		return
	}

	s.mu.Lock()
	s.prices[event.Data.Symbol] = price
	s.mu.Unlock()
	logger.IncrementStreamUpdate()
}

func (s *MarkPriceStream) streamURL() string {
	topics := make([]string, 0, len(s.symbols))
	for _, symbol := range s.symbols {
		topics = append(topics, strings.ToLower(symbol)+"@markPrice@1s")
	}
	return fmt.Sprintf("%s?streams=%s", s.url, strings.Join(topics, "/"))
}

func waitForReconnect(ctx context.Context, delay time.Duration) bool {
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return true
	case <-timer.C:
		return false
	}
}
