package docstore

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Watch blocks on the store's change feed and invokes onChange every time
// a document in the given collection is inserted, updated or deleted.
// The callback carries no payload: listeners are expected to reload the
// collection, which keeps notification delivery and document content from
// ever disagreeing.
//
// Watch runs until ctx is cancelled, reconnecting with a fixed backoff
// when the listening connection drops.
func (s *Store) Watch(ctx context.Context, collection string, onChange func()) {
	const retryAfter = 3 * time.Second

	for {
		if err := s.listen(ctx, collection, onChange); err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Warn().Err(err).Str("collection", collection).
				Msg("docstore watch dropped, reconnecting")
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(retryAfter):
		}
	}
}

func (s *Store) listen(ctx context.Context, collection string, onChange func()) error {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+notifyChannel); err != nil {
		return err
	}

	// A change may have landed between the caller's initial load and the
	// LISTEN taking effect, so fire once on (re)connect.
	onChange()

	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return err
		}
		if n.Payload == collection {
			onChange()
		}
	}
}
