package utils

import (
	"testing"
	"time"
)

func TestLoadLocation(t *testing.T) {
	tests := []struct {
		name     string
		timezone string
		wantErr  bool
	}{
		{name: "empty string returns local", timezone: "", wantErr: false},
		{name: "Local returns local", timezone: "Local", wantErr: false},
		{name: "valid timezone UTC", timezone: "UTC", wantErr: false},
		{name: "valid timezone Europe/London", timezone: "Europe/London", wantErr: false},
		{name: "invalid timezone", timezone: "Invalid/Timezone", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loc, err := LoadLocation(tt.timezone)
			if (err != nil) != tt.wantErr {
				t.Errorf("LoadLocation() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && loc == nil {
				t.Errorf("LoadLocation() returned nil location without error")
			}
		})
	}
}

func TestParseTimeOfDay(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{in: "00:00", want: 0},
		{in: "09:30", want: 9*time.Hour + 30*time.Minute},
		{in: "23:59", want: 23*time.Hour + 59*time.Minute},
		{in: "24:00", wantErr: true},
		{in: "9am", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTimeOfDay(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseTimeOfDay(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseTimeOfDay(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestNextOccurrence(t *testing.T) {
	now := time.Date(2024, 3, 10, 14, 0, 0, 0, time.UTC)

	later := NextOccurrence(now, 16*time.Hour)
	if want := time.Date(2024, 3, 10, 16, 0, 0, 0, time.UTC); !later.Equal(want) {
		t.Errorf("NextOccurrence() later today = %v, want %v", later, want)
	}

	earlier := NextOccurrence(now, 8*time.Hour)
	if want := time.Date(2024, 3, 11, 8, 0, 0, 0, time.UTC); !earlier.Equal(want) {
		t.Errorf("NextOccurrence() earlier today = %v, want %v", earlier, want)
	}

	same := NextOccurrence(now, 14*time.Hour)
	if !same.Equal(now) {
		t.Errorf("NextOccurrence() at now = %v, want %v", same, now)
	}
}

func TestNextMidnight(t *testing.T) {
	got := NextMidnight(time.Date(2024, 12, 31, 23, 30, 0, 0, time.UTC))
	want := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("NextMidnight() = %v, want %v", got, want)
	}
}

func TestValidateTimezone(t *testing.T) {
	if !ValidateTimezone("Local") {
		t.Error("ValidateTimezone(Local) = false, want true")
	}
	if ValidateTimezone("Mars/Olympus") {
		t.Error("ValidateTimezone(Mars/Olympus) = true, want false")
	}
}
