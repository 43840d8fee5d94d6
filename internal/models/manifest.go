package models

import "time"

// ManifestEntry summarises the sync-relevant state of one task.
type ManifestEntry struct {
	TaskID       string    `json:"task_id" yaml:"task_id"`
	EventVersion int64     `json:"event_version" yaml:"event_version"`
	UpdatedAt    time.Time `json:"updated_at" yaml:"updated_at"`
	DeviceID     string    `json:"device_id,omitempty" yaml:"device_id,omitempty"`
	UserID       string    `json:"user_id,omitempty" yaml:"user_id,omitempty"`
	Deleted      bool      `json:"deleted,omitempty" yaml:"deleted,omitempty"`
}

func EntryFromTask(t Task) ManifestEntry {
	return ManifestEntry{
		TaskID:       t.ID,
		EventVersion: t.EventVersion,
		UpdatedAt:    t.UpdatedAt,
		DeviceID:     t.DeviceID,
		UserID:       t.UserID,
		Deleted:      t.DeletedAt != nil,
	}
}

// NewerThan reports whether e supersedes other. Event version is compared
// first and the update timestamp breaks ties.
func (e ManifestEntry) NewerThan(other ManifestEntry) bool {
	if e.EventVersion != other.EventVersion {
		return e.EventVersion > other.EventVersion
	}
	return e.UpdatedAt.After(other.UpdatedAt)
}
