package postgres

import (
	"context"
	"encoding/json"
	"log"

	"github.com/IT-GilaniMobility/Factory-to-Sales-Requests-sub000/internal/store"
)

// changeChannel is raised by triggers on each request table (see the
// migrations). The payload carries just enough to re-read the full row.
const changeChannel = "request_changes"

type changePayload struct {
	Table       string `json:"table"`
	Op          string `json:"op"`
	RequestCode string `json:"request_code"`
}

type subscription struct {
	cancel context.CancelFunc
}

func (s subscription) Close() {
	s.cancel()
}

// Subscribe attaches a dedicated listener connection to the change channel
// and dispatches each notification as an insert or update callback. Rows are
// re-read on delivery so callbacks always see the latest stored state. The
// listener stops when the context is cancelled or the connection drops;
// callers are expected to keep polling either way.
func (s *Store) Subscribe(ctx context.Context, onInsert, onUpdate func(store.RequestRow)) (store.Subscription, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := conn.Exec(ctx, "LISTEN "+changeChannel); err != nil {
		conn.Release()
		return nil, err
	}

	subCtx, cancel := context.WithCancel(ctx)
	go func() {
		defer conn.Release()
		for {
			notification, err := conn.Conn().WaitForNotification(subCtx)
			if err != nil {
				if subCtx.Err() == nil {
					log.Printf("change feed listener stopped: %v", err)
				}
				return
			}

			var payload changePayload
			if err := json.Unmarshal([]byte(notification.Payload), &payload); err != nil {
				log.Printf("change feed: bad payload %q: %v", notification.Payload, err)
				continue
			}

			row, err := s.ReadOne(subCtx, payload.Table, payload.RequestCode)
			if err != nil {
				log.Printf("change feed: read %s/%s: %v", payload.Table, payload.RequestCode, err)
				continue
			}

			switch payload.Op {
			case "insert":
				onInsert(row)
			case "update":
				onUpdate(row)
			}
		}
	}()

	return subscription{cancel: cancel}, nil
}
