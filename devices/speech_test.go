package devices

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"
)

func TestSynthesizerArgs(t *testing.T) {
	tests := []struct {
		command string
		want    []string
	}{
		{"espeak-ng", []string{"-s", "175", "hello"}},
		{"espeak", []string{"-s", "175", "hello"}},
		{"say", []string{"-r", "175", "hello"}},
		{"spd-say", []string{"--wait", "hello"}},
	}

	for _, tt := range tests {
		got := synthesizerArgs(tt.command, 175, "hello")
		assert.Equal(t, tt.want, got, "synthesizerArgs(%q)", tt.command)
	}
}

func TestSpeaker_SyncSpeaksInOrder(t *testing.T) {
	defer goleak.VerifyNone(t)

	fake := newFakeRunner()
	s := newSpeaker(SpeechOptions{Command: "espeak"}, fake.run, zaptest.NewLogger(t))

	ctx := context.Background()
	require.NoError(t, s.Say(ctx, "one"))
	require.NoError(t, s.Say(ctx, "two"))
	require.NoError(t, s.Close())

	assert.Equal(t, []string{"espeak -s 175 one", "espeak -s 175 two"}, fake.commands())
	assert.ErrorIs(t, s.Say(ctx, "three"), ErrSpeakerClosed)
}

func TestSpeaker_AsyncDoesNotOverlap(t *testing.T) {
	defer goleak.VerifyNone(t)

	var mu sync.Mutex
	active, maxActive := 0, 0
	var spoken []string
	run := func(ctx context.Context, name string, args ...string) ([]byte, error) {
		mu.Lock()
		active++
		maxActive = max(maxActive, active)
		spoken = append(spoken, args[len(args)-1])
		mu.Unlock()

		time.Sleep(5 * time.Millisecond)

		mu.Lock()
		active--
		mu.Unlock()
		return nil, nil
	}

	s := newSpeaker(SpeechOptions{Command: "espeak", Async: true}, run, zaptest.NewLogger(t))
	for _, text := range []string{"a", "b", "c"} {
		require.NoError(t, s.Say(context.Background(), text))
	}
	require.NoError(t, s.Close())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, maxActive)
	assert.Equal(t, []string{"a", "b", "c"}, spoken)
}

func TestSpeaker_AsyncDropsWhenFull(t *testing.T) {
	defer goleak.VerifyNone(t)

	release := make(chan struct{})
	started := make(chan struct{}, 1)
	var count int
	var mu sync.Mutex
	run := func(ctx context.Context, name string, args ...string) ([]byte, error) {
		select {
		case started <- struct{}{}:
		default:
		}
		<-release
		mu.Lock()
		count++
		mu.Unlock()
		return nil, nil
	}

	s := newSpeaker(SpeechOptions{Command: "espeak", Async: true, QueueSize: 1}, run, zaptest.NewLogger(t))
	require.NoError(t, s.Say(context.Background(), "first"))
	<-started
	require.NoError(t, s.Say(context.Background(), "queued"))
	require.NoError(t, s.Say(context.Background(), "dropped"))

	close(release)
	require.NoError(t, s.Close())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 2, count)
}

func TestSpeaker_SyncHonorsContext(t *testing.T) {
	defer goleak.VerifyNone(t)

	release := make(chan struct{})
	run := func(ctx context.Context, name string, args ...string) ([]byte, error) {
		<-release
		return nil, nil
	}
	s := newSpeaker(SpeechOptions{Command: "espeak"}, run, zaptest.NewLogger(t))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, s.Say(ctx, "slow"), context.DeadlineExceeded)

	close(release)
	require.NoError(t, s.Close())
}
