package actions

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestBus_FIFOSingleProducer(t *testing.T) {
	bus := NewBus()
	emit := bus.Emitter(SourceGesture)

	for i := 0; i < 100; i++ {
		emit.Emit(Move{X: i, Y: i})
	}
	require.Equal(t, 100, bus.Len())

	for i := 0; i < 100; i++ {
		env, ok := bus.GetTimeout(time.Second)
		require.True(t, ok)
		assert.Equal(t, Move{X: i, Y: i}, env.Action)
		assert.Equal(t, SourceGesture, env.Source)
		assert.NotEmpty(t, env.ID)
	}
	assert.Equal(t, 0, bus.Len())
}

func TestBus_FIFOPerProducerUnderConcurrency(t *testing.T) {
	defer goleak.VerifyNone(t)

	const producers = 4
	const perProducer = 500

	bus := NewBus()
	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			emit := bus.Emitter(fmt.Sprintf("p%d", p))
			for i := 0; i < perProducer; i++ {
				emit.Emit(Scroll{Amount: i})
			}
		}(p)
	}

	last := map[string]int{}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for n := 0; n < producers*perProducer; n++ {
		env, err := bus.Get(ctx)
		require.NoError(t, err)
		amount := env.Action.(Scroll).Amount
		prev, seen := last[env.Source]
		if seen {
			assert.Equal(t, prev+1, amount, "out of order for %s", env.Source)
		} else {
			assert.Equal(t, 0, amount)
		}
		last[env.Source] = amount
	}
	wg.Wait()
	assert.Len(t, last, producers)
}

func TestBus_GetTimeoutEmpty(t *testing.T) {
	bus := NewBus()

	start := time.Now()
	_, ok := bus.GetTimeout(20 * time.Millisecond)
	assert.False(t, ok)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestBus_GetWakesOnPut(t *testing.T) {
	defer goleak.VerifyNone(t)

	bus := NewBus()
	got := make(chan Envelope, 1)
	go func() {
		env, err := bus.Get(context.Background())
		if err == nil {
			got <- env
		}
	}()

	time.Sleep(10 * time.Millisecond)
	bus.Emitter(SourceVoice).Emit(Click{})

	select {
	case env := <-got:
		assert.Equal(t, Click{}, env.Action)
	case <-time.After(time.Second):
		t.Fatal("Get did not wake up after Put")
	}
}

func TestBus_GetHonorsContext(t *testing.T) {
	defer goleak.VerifyNone(t)

	bus := NewBus()
	ctx, cancel := context.WithCancel(context.Background())
	errs := make(chan error, 1)
	go func() {
		_, err := bus.Get(ctx)
		errs <- err
	}()

	cancel()
	select {
	case err := <-errs:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Get did not return after cancel")
	}
}

func TestBus_CloseDrainsThenFails(t *testing.T) {
	bus := NewBus()
	emit := bus.Emitter(SourceCLI)
	emit.Emit(Click{})
	bus.Close()
	emit.Emit(DoubleClick{})

	env, err := bus.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Click{}, env.Action)

	_, err = bus.Get(context.Background())
	assert.ErrorIs(t, err, ErrBusClosed)
	assert.Equal(t, 1, bus.Dropped())

	bus.Close()
}

func TestBus_Observer(t *testing.T) {
	bus := NewBus()
	var seen []string
	bus.Observe(func(env Envelope) {
		seen = append(seen, Kind(env.Action))
	})

	emit := bus.Emitter(SourceRemote)
	emit.Emit(Click{})
	emit.Emit(Quit{})

	assert.Equal(t, []string{KindClick, KindQuit}, seen)
}
