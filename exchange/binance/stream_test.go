package binance

import (
	"strings"
	"testing"

	"unitflow/logger"
)

func TestStreamHandleMessage(t *testing.T) {
	stream := NewMarkPriceStream("", []string{"BTCUSDT"}, logger.GetLogger())

	stream.handleMessage([]byte(`{"stream":"btcusdt@markPrice@1s","data":{"s":"BTCUSDT","p":"64123.50"}}`))
	price, ok := stream.Price("BTCUSDT")
	if !ok || price != 64123.5 {
		t.Fatalf("price = %v, %v; want 64123.5, true", price, ok)
	}

	// Later updates replace the stored price.
	stream.handleMessage([]byte(`{"stream":"btcusdt@markPrice@1s","data":{"s":"BTCUSDT","p":"64200"}}`))
	if price, _ := stream.Price("BTCUSDT"); price != 64200 {
		t.Errorf("price after update = %v, want 64200", price)
	}
}

func TestStreamHandleMessageIgnoresBadPayloads(t *testing.T) {
	stream := NewMarkPriceStream("", []string{"BTCUSDT"}, logger.GetLogger())

	stream.handleMessage([]byte(`not json`))
	stream.handleMessage([]byte(`{"stream":"x","data":{}}`))
	stream.handleMessage([]byte(`{"stream":"btcusdt@markPrice@1s","data":{"s":"BTCUSDT","p":"-1"}}`))
	stream.handleMessage([]byte(`{"stream":"btcusdt@markPrice@1s","data":{"s":"BTCUSDT","p":"garbage"}}`))

	if _, ok := stream.Price("BTCUSDT"); ok {
		t.Error("malformed payloads must not populate the price map")
	}
}

func TestStreamURL(t *testing.T) {
	stream := NewMarkPriceStream("wss://example.test/stream", []string{"BTCUSDT", "ETHUSDT"}, logger.GetLogger())

	url := stream.streamURL()
	if !strings.HasPrefix(url, "wss://example.test/stream?streams=") {
		t.Fatalf("unexpected url %q", url)
	}
	if !strings.Contains(url, "btcusdt@markPrice@1s/ethusdt@markPrice@1s") {
		t.Errorf("url %q missing lowercased topics", url)
	}
}
