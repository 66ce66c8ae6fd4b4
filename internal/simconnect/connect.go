package simconnect

import (
	"context"
	"errors"
	"fmt"
)

// Connect tries each library in order and returns the first client that
// opens. Every failure is wrapped with ErrConnectionFailed.
func Connect(ctx context.Context, name string, libraries []Library, options ...func(*Client)) (*Client, error) {
	if len(libraries) == 0 {
		return nil, fmt.Errorf("%w: no libraries available", ErrConnectionFailed)
	}

	var errs []error
	for _, lib := range libraries {
		client := NewClient(lib, options...)

		err := client.Open(ctx, name)
		if err == nil {
			return client, nil
		}

		_ = client.Close()

		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}

		errs = append(errs, err)
	}

	return nil, errors.Join(errs...)
}
