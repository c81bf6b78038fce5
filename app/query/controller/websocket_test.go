package controller

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestCalculateNextBackoff tests the exponential backoff calculation with jitter
func TestCalculateNextBackoff(t *testing.T) {
	tests := []struct {
		name         string
		current      time.Duration
		max          time.Duration
		factor       float64
		jitterFactor float64
		expectMin    time.Duration
		expectMax    time.Duration
	}{
		{
			name:         "initial backoff doubles",
			current:      1 * time.Second,
			max:          30 * time.Second,
			factor:       2.0,
			jitterFactor: 0.1,
			expectMin:    1800 * time.Millisecond, // 2s - 10% jitter
			expectMax:    2200 * time.Millisecond, // 2s + 10% jitter
		},
		{
			name:         "respects maximum",
			current:      20 * time.Second,
			max:          30 * time.Second,
			factor:       2.0,
			jitterFactor: 0.1,
			expectMin:    27 * time.Second, // 30s - 10% jitter
			expectMax:    30 * time.Second, // capped at max
		},
		{
			name:         "no jitter produces exact value",
			current:      5 * time.Second,
			max:          30 * time.Second,
			factor:       2.0,
			jitterFactor: 0.0,
			expectMin:    10 * time.Second, // exactly 2x
			expectMax:    10 * time.Second, // exactly 2x
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Run multiple times to account for randomness in jitter
			for i := 0; i < 10; i++ {
				result := CalculateNextBackoff(tt.current, tt.max, tt.factor, tt.jitterFactor)
				assert.GreaterOrEqual(t, result, tt.expectMin, "backoff should be >= minimum")
				assert.LessOrEqual(t, result, tt.expectMax, "backoff should be <= maximum")
			}
		})
	}
}

// TestExtractTopicFromChannel tests parsing the topic from Redis channel names
func TestExtractTopicFromChannel(t *testing.T) {
	tests := []struct {
		name     string
		channel  string
		expected string
	}{
		{
			name:     "block indexed channel",
			channel:  "arbiter:block.indexed",
			expected: "block.indexed",
		},
		{
			name:     "claim updated channel",
			channel:  "arbiter:claim.updated",
			expected: "claim.updated",
		},
		{
			name:     "invalid format - too few parts",
			channel:  "arbiter",
			expected: "",
		},
		{
			name:     "invalid format - too many parts",
			channel:  "arbiter:extra:claim.updated",
			expected: "",
		},
		{
			name:     "empty channel",
			channel:  "",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ExtractTopicFromChannel(tt.channel)
			assert.Equal(t, tt.expected, result)
		})
	}
}

// TestClientSubscriptions tests the subscription tracking logic
func TestClientSubscriptions(t *testing.T) {
	t.Run("subscribe and check", func(t *testing.T) {
		subs := NewClientSubscriptions()

		subs.Subscribe("claim.updated")
		assert.True(t, subs.IsSubscribed("claim.updated"))
		assert.False(t, subs.IsSubscribed("agent.updated"))
	})

	t.Run("wildcard subscription", func(t *testing.T) {
		subs := NewClientSubscriptions()

		subs.Subscribe("*")
		assert.True(t, subs.IsSubscribed("*"))
		assert.True(t, subs.IsSubscribed("block.indexed"))
		assert.True(t, subs.IsSubscribed("claim.updated"))
		assert.True(t, subs.IsSubscribed("stats.updated"))
	})

	t.Run("unsubscribe", func(t *testing.T) {
		subs := NewClientSubscriptions()

		subs.Subscribe("claim.updated")
		assert.True(t, subs.IsSubscribed("claim.updated"))

		subs.Unsubscribe("claim.updated")
		assert.False(t, subs.IsSubscribed("claim.updated"))
	})

	t.Run("concurrent access", func(t *testing.T) {
		subs := NewClientSubscriptions()
		done := make(chan bool)

		// Concurrent writes
		go func() {
			for i := 0; i < 100; i++ {
				subs.Subscribe("claim.updated")
			}
			done <- true
		}()

		go func() {
			for i := 0; i < 100; i++ {
				subs.Unsubscribe("claim.updated")
			}
			done <- true
		}()

		// Concurrent reads
		go func() {
			for i := 0; i < 100; i++ {
				_ = subs.IsSubscribed("claim.updated")
			}
			done <- true
		}()

		// Wait for all goroutines
		<-done
		<-done
		<-done

		// Should not panic or race
	})
}

// TestClientMessageParsing tests parsing of client messages
func TestClientMessageParsing(t *testing.T) {
	tests := []struct {
		name    string
		json    string
		want    ClientMessage
		wantErr bool
	}{
		{
			name: "subscribe to a topic",
			json: `{"action":"subscribe","topic":"claim.updated"}`,
			want: ClientMessage{
				Action: "subscribe",
				Topic:  "claim.updated",
			},
			wantErr: false,
		},
		{
			name: "subscribe to all topics",
			json: `{"action":"subscribe","topic":"*"}`,
			want: ClientMessage{
				Action: "subscribe",
				Topic:  "*",
			},
			wantErr: false,
		},
		{
			name: "unsubscribe",
			json: `{"action":"unsubscribe","topic":"claim.updated"}`,
			want: ClientMessage{
				Action: "unsubscribe",
				Topic:  "claim.updated",
			},
			wantErr: false,
		},
		{
			name:    "invalid json",
			json:    `{invalid}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var msg ClientMessage
			err := json.Unmarshal([]byte(tt.json), &msg)

			if tt.wantErr {
				require.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want.Action, msg.Action)
			assert.Equal(t, tt.want.Topic, msg.Topic)
		})
	}
}
