package security

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newDetector(t *testing.T) *BurstDetector {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	d, err := NewBurstDetector(client, "test:alerts")
	if err != nil {
		t.Fatalf("new detector: %v", err)
	}
	return d
}

func TestBurstDetectorTriggersOnPinGuessing(t *testing.T) {
	d := newDetector(t)
	ctx := context.Background()
	var last Alert
	for i := 0; i < 5; i++ {
		alert, err := d.Observe(ctx, "api.pin.validate", "fail", "203.0.113.5")
		if err != nil {
			t.Fatalf("observe: %v", err)
		}
		if i < 4 && alert.Triggered {
			t.Fatalf("triggered too early at attempt %d", i+1)
		}
		last = alert
	}
	if !last.Triggered || last.Count != 5 {
		t.Fatalf("expected trigger on fifth failure, got %+v", last)
	}

	other, err := d.Observe(ctx, "api.pin.validate", "fail", "198.51.100.1")
	if err != nil {
		t.Fatalf("observe: %v", err)
	}
	if other.Triggered {
		t.Fatalf("counts must be per client ip")
	}
}

func TestBurstDetectorIgnoresSuccessAndUnknown(t *testing.T) {
	d := newDetector(t)
	for _, tc := range [][2]string{{"api.login", "success"}, {"api.custom", "fail"}} {
		alert, err := d.Observe(context.Background(), tc[0], tc[1], "127.0.0.1")
		if err != nil {
			t.Fatalf("observe: %v", err)
		}
		if alert.Triggered || alert.Count != 0 {
			t.Fatalf("unexpected alert for %v: %+v", tc, alert)
		}
	}
}

func TestNilBurstDetectorIsNoop(t *testing.T) {
	var d *BurstDetector
	alert, err := d.Observe(context.Background(), "api.login", "fail", "127.0.0.1")
	if err != nil || alert.Triggered {
		t.Fatalf("nil detector should observe nothing, got %+v err=%v", alert, err)
	}
}
