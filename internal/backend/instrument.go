package backend

import (
	"context"

	"firestige.xyz/pktcraft/internal/metrics"
)

type instrumented struct {
	Sender
}

// WithMetrics counts sent frames and send errors per backend.
func WithMetrics(s Sender) Sender {
	return &instrumented{Sender: s}
}

func (i *instrumented) Send(ctx context.Context, f Frame) error {
	err := i.Sender.Send(ctx, f)
	metrics.ObserveSend(i.Name(), err)
	return err
}
