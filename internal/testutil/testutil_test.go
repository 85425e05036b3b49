package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/networknest/networknest/pkg/models"
)

func TestLogger_NotNil(t *testing.T) {
	if Logger() == nil {
		t.Fatal("expected non-nil logger")
	}
}

func TestNewStore_Usable(t *testing.T) {
	db := NewStore(t)
	if db == nil {
		t.Fatal("expected non-nil store")
	}
	if err := db.DB().PingContext(context.Background()); err != nil {
		t.Fatalf("PingContext: %v", err)
	}
}

func TestClock_Advance(t *testing.T) {
	c := NewClock()
	start := c.Now()
	c.Advance(5 * time.Minute)
	if got := c.Now().Sub(start); got != 5*time.Minute {
		t.Errorf("Advance: elapsed = %v, want 5m", got)
	}
}

func TestClock_Set(t *testing.T) {
	c := NewClock()
	target := time.Date(2030, 6, 15, 12, 0, 0, 0, time.UTC)
	c.Set(target)
	if !c.Now().Equal(target) {
		t.Errorf("Set: got %v, want %v", c.Now(), target)
	}
}

func TestNewDevice_Defaults(t *testing.T) {
	d := NewDevice()
	if d.ID == "" {
		t.Error("expected non-empty ID")
	}
	if d.Status != models.DeviceStatusOnline {
		t.Errorf("Status = %q, want online", d.Status)
	}
}

func TestNewDevice_WithOptions(t *testing.T) {
	d := NewDevice(
		WithIP("10.0.0.1"),
		WithStatus(models.DeviceStatusOffline),
		WithDeviceType(models.DeviceTypeRouter),
	)
	if d.IP != "10.0.0.1" {
		t.Errorf("IP = %q, want 10.0.0.1", d.IP)
	}
	if d.ID != "device_10_0_0_1" {
		t.Errorf("ID = %q, want device_10_0_0_1", d.ID)
	}
	if d.Status != models.DeviceStatusOffline {
		t.Errorf("Status = %q, want offline", d.Status)
	}
	if d.Type != models.DeviceTypeRouter {
		t.Errorf("Type = %q, want Router", d.Type)
	}
}
