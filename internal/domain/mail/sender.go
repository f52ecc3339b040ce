package mail

import "context"

// Sender delivers one rendered message. Implementations must honour ctx cancellation;
// a deadline exceeded is reported as an error like any other delivery failure.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}
