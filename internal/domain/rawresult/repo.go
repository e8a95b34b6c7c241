package rawresult

import "context"

// Repository is the staging area for instrument output plus the dead-letter
// store for permanently unprocessable messages.
type Repository interface {
	// StageEnvelope stores an envelope exactly once, keyed by
	// (order, instrument, performedAt). Returns false when the envelope was
	// already staged, which is the normal outcome for a redelivery.
	StageEnvelope(ctx context.Context, env *Envelope, body []byte) (bool, error)

	// DeadLetter records a message body that can never be processed, so the
	// queue is not poisoned by endless redelivery.
	DeadLetter(ctx context.Context, queue string, body []byte, reason string) error
}
