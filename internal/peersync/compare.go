package peersync

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"slices"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/julianstephens/nextup/internal/logger"
	"github.com/julianstephens/nextup/internal/models"
	"github.com/julianstephens/nextup/internal/telemetry"
)

// Result classifies every task id seen in either manifest.
type Result struct {
	Missing     []string // only the remote has it
	RemoteNewer []string
	LocalNewer  []string // includes tasks the remote does not have
	Equal       []string
}

// TasksToRequest returns the ids to fetch from the remote peer.
func (r Result) TasksToRequest() []string {
	out := make([]string, 0, len(r.Missing)+len(r.RemoteNewer))
	out = append(out, r.Missing...)
	return append(out, r.RemoteNewer...)
}

// TasksToAdvertise returns the ids the remote peer should receive.
func (r Result) TasksToAdvertise() []string {
	return slices.Clone(r.LocalNewer)
}

func (r Result) clone() Result {
	return Result{
		Missing:     slices.Clone(r.Missing),
		RemoteNewer: slices.Clone(r.RemoteNewer),
		LocalNewer:  slices.Clone(r.LocalNewer),
		Equal:       slices.Clone(r.Equal),
	}
}

// Compare classifies the local manifest against a remote one. Duplicate ids
// keep their first occurrence.
func Compare(remote, local []models.ManifestEntry) Result {
	remote = dedupe(remote)
	local = dedupe(local)

	remoteByID := make(map[string]models.ManifestEntry, len(remote))
	for _, e := range remote {
		remoteByID[e.TaskID] = e
	}

	var res Result
	for _, l := range local {
		r, ok := remoteByID[l.TaskID]
		if !ok {
			res.LocalNewer = append(res.LocalNewer, l.TaskID)
			continue
		}
		delete(remoteByID, l.TaskID)
		switch {
		case r.NewerThan(l):
			res.RemoteNewer = append(res.RemoteNewer, l.TaskID)
		case l.NewerThan(r):
			res.LocalNewer = append(res.LocalNewer, l.TaskID)
		default:
			res.Equal = append(res.Equal, l.TaskID)
		}
	}
	for _, e := range remote {
		if _, ok := remoteByID[e.TaskID]; ok {
			res.Missing = append(res.Missing, e.TaskID)
		}
	}
	return res
}

func dedupe(entries []models.ManifestEntry) []models.ManifestEntry {
	seen := make(map[string]struct{}, len(entries))
	out := make([]models.ManifestEntry, 0, len(entries))
	for _, e := range entries {
		if e.TaskID == "" {
			continue
		}
		if _, ok := seen[e.TaskID]; ok {
			continue
		}
		seen[e.TaskID] = struct{}{}
		out = append(out, e)
	}
	return out
}

// Reconciler compares manifests on behalf of one user/device and applies
// inbound events. The last comparison is cached until its inputs change.
type Reconciler struct {
	userID   string
	deviceID string

	mu       sync.Mutex
	cacheKey string
	cached   Result
}

func NewReconciler(userID, deviceID string) *Reconciler {
	return &Reconciler{userID: userID, deviceID: deviceID}
}

func (r *Reconciler) UserID() string   { return r.userID }
func (r *Reconciler) DeviceID() string { return r.deviceID }

// Compare filters out entries owned by other users and classifies the rest.
func (r *Reconciler) Compare(ctx context.Context, remote, local []models.ManifestEntry) Result {
	_, span := telemetry.StartSpan(ctx, telemetry.SpanSyncCompare, attribute.Int(telemetry.KeyManifestSize, len(remote)))
	defer span.End()

	remote = dedupe(r.ownedBy(remote))
	key := r.keyFor(remote, local)

	r.mu.Lock()
	defer r.mu.Unlock()
	if key == r.cacheKey {
		return r.cached.clone()
	}

	res := Compare(remote, local)
	r.cacheKey = key
	r.cached = res
	span.SetAttributes(
		attribute.Int(telemetry.KeyRequestCount, len(res.TasksToRequest())),
		attribute.Int(telemetry.KeyAdvertiseSize, len(res.LocalNewer)),
	)
	logger.Debug("Manifest compared",
		"missing", len(res.Missing),
		"remote_newer", len(res.RemoteNewer),
		"local_newer", len(res.LocalNewer),
		"equal", len(res.Equal),
	)
	return res.clone()
}

// Invalidate drops the cached comparison.
func (r *Reconciler) Invalidate() {
	r.mu.Lock()
	r.cacheKey = ""
	r.mu.Unlock()
}

func (r *Reconciler) ownedBy(entries []models.ManifestEntry) []models.ManifestEntry {
	out := make([]models.ManifestEntry, 0, len(entries))
	for _, e := range entries {
		if !r.owns(e.UserID) {
			logger.Debug("Dropping manifest entry for another user", "task_id", e.TaskID, "user_id", e.UserID)
			continue
		}
		out = append(out, e)
	}
	return out
}

func (r *Reconciler) owns(userID string) bool {
	return r.userID == "" || userID == "" || userID == r.userID
}

// keyFor hashes the sorted remote set, the local manifest and our identity.
func (r *Reconciler) keyFor(remote, local []models.ManifestEntry) string {
	sorted := slices.Clone(remote)
	slices.SortFunc(sorted, func(a, b models.ManifestEntry) int {
		return strings.Compare(a.TaskID, b.TaskID)
	})

	h := sha256.New()
	fmt.Fprintf(h, "%s|%s\n", r.userID, r.deviceID)
	for _, e := range sorted {
		writeEntry(h, e)
	}
	h.Write([]byte("--\n"))
	for _, e := range local {
		writeEntry(h, e)
	}
	return hex.EncodeToString(h.Sum(nil))
}

func writeEntry(w io.Writer, e models.ManifestEntry) {
	fmt.Fprintf(w, "%s|%d|%s|%t\n", e.TaskID, e.EventVersion, e.UpdatedAt.UTC().Format(time.RFC3339Nano), e.Deleted)
}
