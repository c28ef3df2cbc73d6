package websocket

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
)

// Run with: go test -bench=. -benchmem ./internal/microservices/websocket/

func benchmarkBroadcast(b *testing.B, subscribers int) {
	hub := NewHub(slog.New(slog.NewTextHandler(io.Discard, nil)))

	var wg sync.WaitGroup
	for i := 0; i < subscribers; i++ {
		c := &Client{
			ID:          fmt.Sprintf("bench-%d", i),
			SendChannel: make(chan []byte, SendBufferSize),
			Hub:         hub,
		}
		hub.Register(c)
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range c.SendChannel {
			}
		}()
	}

	msg := NewMessage(TypePCBAEvent, map[string]any{
		"serial": "NL20231203001",
		"stage":  "wifi",
		"status": "pass",
		"detail": map[string]any{"rssi": -48},
	})

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := hub.Broadcast(msg); err != nil {
			b.Fatal(err)
		}
	}
	b.StopTimer()

	hub.CloseAll()
	wg.Wait()
}

func BenchmarkHubBroadcast_10Subscribers(b *testing.B)  { benchmarkBroadcast(b, 10) }
func BenchmarkHubBroadcast_100Subscribers(b *testing.B) { benchmarkBroadcast(b, 100) }
