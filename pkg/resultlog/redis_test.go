package resultlog

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisPublisher_Publish(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	sub := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer sub.Close()
	ps := sub.Subscribe(ctx, Channel("nightly"))
	defer ps.Close()
	_, err := ps.Receive(ctx)
	require.NoError(t, err)

	p := NewRedisPublisher(Config{Type: "redis", Address: mr.Addr(), Name: "nightly", TTL: 60})
	defer p.Close()

	started := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	err = p.Publish(ctx, RunResult{
		Outcome:    "partial_success",
		StartedAt:  started,
		FinishedAt: started.Add(2 * time.Second),
		DurationMs: 2000,
		Files:      map[string][]string{"out": {"/tmp/out.csv"}},
		ErrorLog:   "/tmp/export_errors.log",
	})
	require.NoError(t, err)

	raw, err := mr.Get(StateKey("nightly"))
	require.NoError(t, err)
	var got RunResult
	require.NoError(t, json.Unmarshal([]byte(raw), &got))
	assert.Equal(t, "nightly", got.RunName)
	assert.Equal(t, "partial_success", got.Outcome)
	assert.Equal(t, []string{"/tmp/out.csv"}, got.Files["out"])
	assert.Equal(t, 60*time.Second, mr.TTL(StateKey("nightly")))

	msg, err := ps.ReceiveMessage(ctx)
	require.NoError(t, err)
	assert.JSONEq(t, raw, msg.Payload)
}

func TestRedisPublisher_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	p := NewRedisPublisher(Config{Type: "redis", Address: addr, Name: "x"})
	defer p.Close()
	assert.Error(t, p.Publish(context.Background(), RunResult{Outcome: "success", Success: true}))
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"disabled", Config{}, false},
		{"none", Config{Type: "none"}, false},
		{"valid", Config{Type: "redis", Address: "localhost:6379", Name: "run"}, false},
		{"unknown type", Config{Type: "kafka", Address: "x", Name: "run"}, true},
		{"missing address", Config{Type: "redis", Name: "run"}, true},
		{"missing name", Config{Type: "redis", Address: "x"}, true},
		{"negative ttl", Config{Type: "redis", Address: "x", Name: "run", TTL: -1}, true},
		{"negative retries", Config{Type: "redis", Address: "x", Name: "run", Retries: -1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
