package peer

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/julianstephens/nextup/internal/constants"
	"github.com/julianstephens/nextup/internal/logger"
	"github.com/julianstephens/nextup/internal/models"
	"github.com/julianstephens/nextup/internal/peersync"
)

// maxConcurrentPushes bounds the pushes of one broadcast.
const maxConcurrentPushes = 4

// Broadcaster pushes local task changes to every configured peer. Delivery
// is best effort: failures are logged and never reach the caller.
type Broadcaster struct {
	clients []*Client
	wg      sync.WaitGroup
}

func NewBroadcaster(clients ...*Client) *Broadcaster {
	return &Broadcaster{clients: clients}
}

// Broadcast sends task to all peers in the background.
func (b *Broadcaster) Broadcast(task models.Task) {
	if len(b.clients) == 0 {
		return
	}
	ev := peersync.NewEvent(task)

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), constants.PeerRequestTimeout)
		defer cancel()

		var g errgroup.Group
		g.SetLimit(maxConcurrentPushes)
		for _, c := range b.clients {
			g.Go(func() error {
				if _, err := c.PushEvents(ctx, []peersync.TaskEvent{ev}); err != nil {
					logger.Warn("Broadcast to peer failed", "peer", c.BaseURL(), "task_id", ev.TaskID, "error", err)
				}
				return nil
			})
		}
		_ = g.Wait()
	}()
}

// Wait blocks until in-flight broadcasts finish.
func (b *Broadcaster) Wait() {
	b.wg.Wait()
}
