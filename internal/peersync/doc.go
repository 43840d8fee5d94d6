// Package peersync reconciles task state between devices without a central
// server.
//
// Peers exchange manifests: compact lists of (task id, event version,
// updated-at) fingerprints. Comparing a remote manifest with the local one
// yields the ids to request from the peer and the tasks to advertise back.
// Inbound task events are applied last-writer-wins: an update replaces the
// local record only when its (event version, updated-at) pair is strictly
// newer. Messages may arrive reordered or duplicated; applying the same event
// twice is a no-op.
package peersync
