package core

import (
	"context"
	"testing"
)

func benchmarkHubPublish(b *testing.B, recipients int) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := newHub(1, DefaultSubscriberBuffer, nopLogger())

	target := hub.Subscribe()
	// Drain every other subscriber so only the target paces the loop.
	for range recipients - 1 {
		sub := hub.Subscribe()
		go func(s *Subscriber) {
			for {
				if _, err := s.Next(ctx); err != nil {
					return
				}
			}
		}(sub)
	}

	msg := textMessage("payload")

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		hub.Publish(msg)
		if _, err := target.Next(ctx); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkHubPublish_10(b *testing.B)  { benchmarkHubPublish(b, 10) }
func BenchmarkHubPublish_100(b *testing.B) { benchmarkHubPublish(b, 100) }
func BenchmarkHubPublish_500(b *testing.B) { benchmarkHubPublish(b, 500) }
