package obs

import (
	"context"
	"log"
	"time"
)

type ctxKey string

// ActionIDKey carries the offline-action id being replayed, so timing lines
// can be correlated with the queue log.
const ActionIDKey ctxKey = "action_id"

// Time logs the duration (and failure, if any) of a named operation when the
// returned func runs. Use with a deferred call and a pointer to the named
// error return.
func Time(ctx context.Context, name string) func(errp *error) {
	start := time.Now()

	actionID, _ := ctx.Value(ActionIDKey).(string)

	return func(errp *error) {
		dur := time.Since(start)

		if errp != nil && *errp != nil {
			log.Printf("action=%s op=%s dur=%dms err=%v", actionID, name, dur.Milliseconds(), *errp)
			return
		}
		log.Printf("action=%s op=%s dur=%dms", actionID, name, dur.Milliseconds())
	}
}
