package peersync

import (
	"context"
	"time"

	"github.com/julianstephens/nextup/internal/models"
)

// Respond answers an inbound manifest with the ids we need and the events
// for the tasks the sender is missing or behind on.
func (r *Reconciler) Respond(ctx context.Context, msg ManifestMessage, local []models.Task) ManifestReply {
	res := r.Compare(ctx, msg.Entries, BuildManifest(local))

	byID := make(map[string]models.Task, len(local))
	for _, t := range local {
		byID[t.ID] = t
	}

	reply := ManifestReply{Request: res.TasksToRequest(), Events: []TaskEvent{}}
	for _, id := range res.TasksToAdvertise() {
		if t, ok := byID[id]; ok {
			reply.Events = append(reply.Events, NewEvent(t))
		}
	}
	return reply
}

// Manifest builds the outbound manifest message for local tasks.
func (r *Reconciler) Manifest(local []models.Task, now time.Time) ManifestMessage {
	return ManifestMessage{
		UserID:   r.userID,
		DeviceID: r.deviceID,
		SentAt:   now.UTC(),
		Entries:  BuildManifest(local),
	}
}
