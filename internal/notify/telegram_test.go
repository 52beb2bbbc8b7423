package notify

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	mu    sync.Mutex
	sent  []string
	block chan struct{} // when set, send blocks until closed
	fail  int           // fail this many sends before succeeding
}

func (f *fakeSender) send(chatID int64, text string) error {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail > 0 {
		f.fail--
		return errors.New("telegram: bad gateway")
	}
	f.sent = append(f.sent, text)
	return nil
}

func (f *fakeSender) messages() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.sent))
	copy(out, f.sent)
	return out
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestTelegramSink_DeliversInOrder(t *testing.T) {
	fs := &fakeSender{}
	sink := newTelegramSink(fs, 42)
	defer sink.Close()

	sink.Send("one")
	sink.Send("two")

	waitFor(t, func() bool { return len(fs.messages()) == 2 })
	require.Equal(t, []string{"one", "two"}, fs.messages())
}

func TestTelegramSink_SendNeverBlocks(t *testing.T) {
	fs := &fakeSender{block: make(chan struct{})}
	sink := newTelegramSink(fs, 42)
	defer sink.Close()
	defer close(fs.block)

	done := make(chan struct{})
	go func() {
		for i := 0; i < queueCapacity+50; i++ {
			sink.Send("x")
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Send blocked on a full queue")
	}
}

func TestTelegramSink_RetriesTransientFailure(t *testing.T) {
	fs := &fakeSender{fail: 1}
	sink := newTelegramSink(fs, 42)
	defer sink.Close()

	sink.Send("eventually")

	waitFor(t, func() bool { return len(fs.messages()) == 1 })
	assert.Equal(t, "eventually", fs.messages()[0])
}
