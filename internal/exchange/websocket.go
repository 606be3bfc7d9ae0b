package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/quantbay/forecast-bot/pkg/types"
)

// KlineStream maintains a public websocket subscription for candle updates.
// The stream exists for liveness monitoring only; trading decisions are made
// from REST history, never from stream payloads.
type KlineStream struct {
	url    string
	conn   *websocket.Conn
	logger zerolog.Logger

	writeMu sync.Mutex
	started sync.Once
}

// NewKlineStream dials the public stream endpoint.
func NewKlineStream(url string, logger zerolog.Logger) (*KlineStream, error) {
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to websocket: %w", err)
	}

	return &KlineStream{
		url:    url,
		conn:   conn,
		logger: logger.With().Str("component", "kline_stream").Logger(),
	}, nil
}

// Subscribe registers a kline topic and starts delivering updates to
// onUpdate until ctx is cancelled or the connection drops. The read and ping
// loops start on the first subscription; later subscriptions share them, so
// every topic on one stream must use the same callback.
func (s *KlineStream) Subscribe(ctx context.Context, symbol, interval string, onUpdate func(types.OHLCV)) error {
	topic := fmt.Sprintf("kline.%s.%s", interval, symbol)
	subscribeMsg := map[string]interface{}{
		"op":   "subscribe",
		"args": []string{topic},
	}

	data, err := json.Marshal(subscribeMsg)
	if err != nil {
		return fmt.Errorf("failed to marshal subscribe message: %w", err)
	}
	if err := s.write(data); err != nil {
		return fmt.Errorf("failed to send subscribe message: %w", err)
	}

	s.logger.Info().Str("topic", topic).Msg("subscribed to kline stream")

	s.started.Do(func() {
		go s.pingLoop(ctx)
		go s.readLoop(ctx, onUpdate)
	})

	return nil
}

func (s *KlineStream) write(data []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

// Close closes the websocket connection.
func (s *KlineStream) Close() error {
	return s.conn.Close()
}

func (s *KlineStream) readLoop(ctx context.Context, onUpdate func(types.OHLCV)) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		_, message, err := s.conn.ReadMessage()
		if err != nil {
			s.logger.Warn().Err(err).Msg("kline stream read failed, stopping")
			return
		}

		var payload struct {
			Topic string `json:"topic"`
			Data  []struct {
				Start   int64  `json:"start"`
				Open    string `json:"open"`
				High    string `json:"high"`
				Low     string `json:"low"`
				Close   string `json:"close"`
				Volume  string `json:"volume"`
				Confirm bool   `json:"confirm"`
			} `json:"data"`
		}
		if err := json.Unmarshal(message, &payload); err != nil {
			continue // control frames and subscription acks
		}

		for _, d := range payload.Data {
			onUpdate(types.OHLCV{
				Timestamp: time.UnixMilli(d.Start),
				Open:      parseStreamPrice(d.Open),
				High:      parseStreamPrice(d.High),
				Low:       parseStreamPrice(d.Low),
				Close:     parseStreamPrice(d.Close),
				Volume:    parseStreamPrice(d.Volume),
			})
		}
	}
}

func (s *KlineStream) pingLoop(ctx context.Context) {
	ticker := time.NewTicker(20 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ping, _ := json.Marshal(map[string]string{"op": "ping"})
			if err := s.write(ping); err != nil {
				s.logger.Warn().Err(err).Msg("failed to send ping")
				return
			}
		}
	}
}

func parseStreamPrice(s string) float64 {
	v, _ := strconv.ParseFloat(s, 64)
	return v
}
