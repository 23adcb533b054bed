package exam

import (
	"errors"
	"testing"
)

func TestClockStart(t *testing.T) {
	tests := []struct {
		name    string
		seconds int
		wantErr error
	}{
		{"positive", 60, nil},
		{"zero", 0, ErrInvalidInput},
		{"negative", -5, ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var c Clock
			err := c.Start(tt.seconds)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Start(%d) err = %v, want %v", tt.seconds, err, tt.wantErr)
			}
			if err == nil && c.Remaining() != tt.seconds {
				t.Fatalf("Remaining = %d, want %d", c.Remaining(), tt.seconds)
			}
		})
	}
}

func TestClockTickFloorsAtZero(t *testing.T) {
	var c Clock
	if err := c.Start(2); err != nil {
		t.Fatal(err)
	}
	if c.Expired() {
		t.Fatal("fresh clock reported expired")
	}
	if got := c.Tick(); got != 1 {
		t.Fatalf("Tick = %d, want 1", got)
	}
	if got := c.Tick(); got != 0 {
		t.Fatalf("Tick = %d, want 0", got)
	}
	if !c.Expired() {
		t.Fatal("clock at zero not expired")
	}
	if got := c.Tick(); got != 0 {
		t.Fatalf("Tick past zero = %d, want 0", got)
	}
}

func TestClockRestartRejected(t *testing.T) {
	var c Clock
	if err := c.Start(10); err != nil {
		t.Fatal(err)
	}
	if err := c.Start(10); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("second Start err = %v, want ErrInvalidState", err)
	}
}
