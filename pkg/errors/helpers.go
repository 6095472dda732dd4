package errors

import (
	"context"
)

// CheckContext maps a canceled or expired context into a coded error
// naming the search operation that was cut short. The expansion and
// evaluation paths call it before every oracle round trip so a dead
// context never reaches the provider.
func CheckContext(ctx context.Context, operation string) error {
	if err := ctx.Err(); err != nil {
		return Wrap(err, Canceled, operation+" canceled")
	}
	return nil
}
