package peer

import (
	"context"
	"fmt"

	"github.com/julianstephens/nextup/internal/logger"
	"github.com/julianstephens/nextup/internal/models"
	"github.com/julianstephens/nextup/internal/peersync"
)

// Summary reports one sync round with a peer.
type Summary struct {
	Peer     string
	Received EventsResponse
	Pushed   EventsResponse
}

// Sync runs one full exchange with the peer: our manifest goes out, the
// peer's newer tasks are applied locally, and the tasks it asked for are
// pushed back.
func Sync(ctx context.Context, c *Client, rec *peersync.Reconciler, store Store, onApply func(models.Task)) (Summary, error) {
	sum := Summary{Peer: c.BaseURL()}

	local, err := store.GetAllTasksIncludingDeleted(ctx)
	if err != nil {
		return sum, fmt.Errorf("failed to load local tasks: %w", err)
	}

	reply, err := c.SendManifest(ctx, rec.Manifest(local, c.now()))
	if err != nil {
		return sum, err
	}

	sum.Received, err = ApplyEvents(ctx, rec, store, reply.Events, onApply)
	if err != nil {
		return sum, err
	}

	byID := make(map[string]models.Task, len(local))
	for _, t := range local {
		byID[t.ID] = t
	}
	events := make([]peersync.TaskEvent, 0, len(reply.Request))
	for _, id := range reply.Request {
		if t, ok := byID[id]; ok {
			events = append(events, peersync.NewEvent(t))
		}
	}

	sum.Pushed, err = c.PushEvents(ctx, events)
	if err != nil {
		return sum, err
	}

	logger.Info("Synced with peer",
		"peer", sum.Peer,
		"received", sum.Received.Applied,
		"pushed", len(events),
	)
	return sum, nil
}
