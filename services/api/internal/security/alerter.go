// Package security counts failed security events per client and flags bursts.
package security

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

var burstCounterScript = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
if count == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return count
`)

// Rule is the burst threshold for one event.
type Rule struct {
	Threshold int64
	Window    time.Duration
}

// Alert is the outcome of one observation.
type Alert struct {
	Triggered bool
	Count     int64
	Rule      Rule
}

// BurstDetector counts failures per (event, outcome, ip) in fixed windows.
type BurstDetector struct {
	client *redis.Client
	prefix string
}

// NewBurstDetector uses an existing Redis client.
func NewBurstDetector(client *redis.Client, prefix string) (*BurstDetector, error) {
	if client == nil {
		return nil, errors.New("burst detector redis client is required")
	}
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "despachante:alerts"
	}
	return &BurstDetector{client: client, prefix: prefix}, nil
}

// Observe records an event. Events without a rule are ignored.
// A nil detector observes nothing.
func (d *BurstDetector) Observe(ctx context.Context, event, outcome, ip string) (Alert, error) {
	if d == nil {
		return Alert{}, nil
	}
	rule, ok := ruleFor(event, outcome)
	if !ok {
		return Alert{}, nil
	}
	windowMs := rule.Window.Milliseconds()
	slot := time.Now().UTC().UnixMilli() / windowMs
	key := fmt.Sprintf("%s:%s:%s:%s:%d", d.prefix, segment(event), segment(outcome), segment(ip), slot)
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	count, err := burstCounterScript.Run(ctx, d.client, []string{key}, windowMs).Int64()
	if err != nil {
		return Alert{}, err
	}
	return Alert{Triggered: count >= rule.Threshold, Count: count, Rule: rule}, nil
}

func ruleFor(event, outcome string) (Rule, bool) {
	if outcome == "rate_limited" {
		return Rule{Threshold: 20, Window: time.Minute}, true
	}
	if outcome != "fail" {
		return Rule{}, false
	}
	switch event {
	case "api.login", "api.signup":
		return Rule{Threshold: 10, Window: 5 * time.Minute}, true
	case "api.pin.validate", "api.password.reset":
		// No per-PIN retry counter, so guessing shows up here first.
		return Rule{Threshold: 5, Window: 10 * time.Minute}, true
	case "api.pin.send":
		return Rule{Threshold: 10, Window: 10 * time.Minute}, true
	case "api.authorize":
		return Rule{Threshold: 25, Window: 5 * time.Minute}, true
	default:
		return Rule{}, false
	}
}

func segment(in string) string {
	in = strings.TrimSpace(in)
	if in == "" {
		return "unknown"
	}
	return strings.NewReplacer(":", "_", "|", "_", " ", "_").Replace(in)
}
