package peersync

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/julianstephens/nextup/internal/models"
)

// ManifestMessage is the manifest a device sends to its peers.
type ManifestMessage struct {
	UserID   string                 `json:"user_id" yaml:"user_id"`
	DeviceID string                 `json:"device_id" yaml:"device_id"`
	SentAt   time.Time              `json:"sent_at" yaml:"sent_at"`
	Entries  []models.ManifestEntry `json:"entries" yaml:"entries"`
}

type EventKind string

const (
	EventUpsert EventKind = "upsert"
	EventDelete EventKind = "delete"
)

// TaskEvent carries one task change between peers. Upserts include the full
// task; deletes only its fingerprint.
type TaskEvent struct {
	ID           string       `json:"id" yaml:"id"`
	Kind         EventKind    `json:"kind" yaml:"kind"`
	TaskID       string       `json:"task_id" yaml:"task_id"`
	EventVersion int64        `json:"event_version" yaml:"event_version"`
	UpdatedAt    time.Time    `json:"updated_at" yaml:"updated_at"`
	DeviceID     string       `json:"device_id,omitempty" yaml:"device_id,omitempty"`
	UserID       string       `json:"user_id,omitempty" yaml:"user_id,omitempty"`
	Task         *models.Task `json:"task,omitempty" yaml:"task,omitempty"`
}

// ManifestReply answers a manifest: the ids the receiver wants plus events
// for the tasks where the receiver is ahead.
type ManifestReply struct {
	Request []string    `json:"request" yaml:"request"`
	Events  []TaskEvent `json:"events" yaml:"events"`
}

// Entry returns the fingerprint described by the event.
func (e TaskEvent) Entry() models.ManifestEntry {
	return models.ManifestEntry{
		TaskID:       e.TaskID,
		EventVersion: e.EventVersion,
		UpdatedAt:    e.UpdatedAt,
		DeviceID:     e.DeviceID,
		UserID:       e.UserID,
		Deleted:      e.Kind == EventDelete,
	}
}

// NewEvent builds an upsert event for a live task or a delete event for a
// soft-deleted one.
func NewEvent(t models.Task) TaskEvent {
	ev := TaskEvent{
		ID:           uuid.New().String(),
		Kind:         EventUpsert,
		TaskID:       t.ID,
		EventVersion: t.EventVersion,
		UpdatedAt:    t.UpdatedAt,
		DeviceID:     t.DeviceID,
		UserID:       t.UserID,
	}
	if t.DeletedAt != nil {
		ev.Kind = EventDelete
		return ev
	}
	task := t.Clone()
	ev.Task = &task
	return ev
}

// BuildManifest fingerprints tasks, sorted by id.
func BuildManifest(tasks []models.Task) []models.ManifestEntry {
	entries := make([]models.ManifestEntry, 0, len(tasks))
	for _, t := range tasks {
		entries = append(entries, models.EntryFromTask(t))
	}
	slices.SortFunc(entries, func(a, b models.ManifestEntry) int {
		return strings.Compare(a.TaskID, b.TaskID)
	})
	return entries
}

// LoadManifestFile reads a manifest message written by SaveManifestFile.
func LoadManifestFile(path string) (*ManifestMessage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var msg ManifestMessage
	if err := yaml.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	return &msg, nil
}

// SaveManifestFile writes a manifest message as YAML.
func SaveManifestFile(path string, msg *ManifestMessage) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create manifest directory: %w", err)
	}

	data, err := yaml.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}
