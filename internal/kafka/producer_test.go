package kafka_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	kafkax "github.com/pharmalink/schedcore/internal/kafka"
)

func TestProducerCloseAfterCancel(t *testing.T) {
	p := kafkax.NewProducer([]string{"127.0.0.1:9092"}, "t", 4)
	ctx, cancel := context.WithCancel(context.Background())
	p.Start(ctx)

	// cancellation already shut the flush loop down; a late Close from a
	// main's shutdown path must be a no-op, not a double channel close
	cancel()
	p.WaitClosed()
	assert.NotPanics(t, func() { p.Close() })
}

func TestProducerCloseThenCancel(t *testing.T) {
	p := kafkax.NewProducer([]string{"127.0.0.1:9092"}, "t", 4)
	ctx, cancel := context.WithCancel(context.Background())
	p.Start(ctx)

	assert.NotPanics(t, func() {
		p.Close()
		cancel()
		p.WaitClosed()
	})
}
