package expander

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"markestedt/spark/engine"
	"markestedt/spark/platform"
	"markestedt/spark/render"
	"markestedt/spark/snippet"
)

type fakeCapture struct {
	mu       sync.Mutex
	listens  int
	running  int
	failWith error
	handle   func(platform.KeyEvent)
	exit     chan error
}

func (f *fakeCapture) Listen(ctx context.Context, handle func(platform.KeyEvent)) (<-chan error, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listens++
	if f.failWith != nil {
		return nil, f.failWith
	}
	f.running++
	f.handle = handle
	f.exit = make(chan error, 1)

	exit := f.exit
	done := make(chan error, 1)
	go func() {
		defer close(done)
		var err error
		select {
		case <-ctx.Done():
		case err = <-exit:
		}
		f.mu.Lock()
		f.running--
		f.mu.Unlock()
		done <- err
	}()
	return done, nil
}

func (f *fakeCapture) sessions() (listens, running int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listens, f.running
}

// crash ends the current session as if the OS loop had exited
func (f *fakeCapture) crash(err error) {
	f.mu.Lock()
	exit := f.exit
	f.mu.Unlock()
	exit <- err
}

type fakeNotifier struct {
	mu     sync.Mutex
	titles []string
}

func (n *fakeNotifier) Notify(title, body string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.titles = append(n.titles, title)
	return nil
}

func (n *fakeNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.titles)
}

type nopInjector struct{}

func (nopInjector) ExpandFunc(ctx context.Context, token string, produce func() render.Result) (render.Result, error) {
	return produce(), nil
}

func newTestController(capture *fakeCapture, notifier Notifier) (*Controller, *engine.Engine) {
	eng := engine.New(engine.Options{
		Directory: snippet.NewMapDirectory(),
		Renderer:  render.New(),
		Injector:  nopInjector{},
	})
	return New(capture, eng, notifier), eng
}

func TestController_StartIsIdempotent(t *testing.T) {
	capture := &fakeCapture{}
	c, eng := newTestController(capture, nil)

	require.NoError(t, c.Start(context.Background()))
	require.NoError(t, c.Start(context.Background()))

	listens, running := capture.sessions()
	assert.Equal(t, 1, listens)
	assert.Equal(t, 1, running)
	assert.True(t, c.IsActive())
	assert.True(t, eng.IsActive())

	c.Stop()
	assert.False(t, c.IsActive())
	assert.False(t, eng.IsActive())
	_, running = capture.sessions()
	assert.Equal(t, 0, running)
}

func TestController_StopWhenInactive(t *testing.T) {
	c, _ := newTestController(&fakeCapture{}, nil)

	var changes []bool
	c.OnChange(func(active bool) { changes = append(changes, active) })

	c.Stop()
	c.Stop()
	assert.False(t, c.IsActive())
	assert.Empty(t, changes)
}

func TestController_Reload(t *testing.T) {
	capture := &fakeCapture{}
	c, _ := newTestController(capture, nil)

	var changes []bool
	c.OnChange(func(active bool) { changes = append(changes, active) })

	require.NoError(t, c.Start(context.Background()))
	for i := 0; i < 3; i++ {
		require.NoError(t, c.Reload(context.Background()))
	}

	listens, running := capture.sessions()
	assert.Equal(t, 4, listens)
	assert.Equal(t, 1, running)
	assert.True(t, c.IsActive())
	assert.Equal(t, []bool{true, false, true, false, true, false, true}, changes)

	c.Stop()
}

func TestController_NotifiesEveryListener(t *testing.T) {
	c, _ := newTestController(&fakeCapture{}, nil)

	var first, second []bool
	c.OnChange(func(active bool) {
		first = append(first, active)
		// Registering from inside a callback must not disturb this round
		if len(first) == 1 {
			c.OnChange(func(active bool) { second = append(second, active) })
		}
	})

	require.NoError(t, c.Start(context.Background()))
	c.Stop()

	assert.Equal(t, []bool{true, false}, first)
	assert.Equal(t, []bool{false}, second)
}

func TestController_ReloadFromInactiveStarts(t *testing.T) {
	capture := &fakeCapture{}
	c, _ := newTestController(capture, nil)

	require.NoError(t, c.Reload(context.Background()))
	assert.True(t, c.IsActive())
	c.Stop()
}

func TestController_StartFailure(t *testing.T) {
	capture := &fakeCapture{failWith: platform.ErrNotAvailable}
	notifier := &fakeNotifier{}
	c, eng := newTestController(capture, notifier)

	err := c.Start(context.Background())
	require.ErrorIs(t, err, platform.ErrNotAvailable)
	assert.False(t, c.IsActive())
	assert.False(t, eng.IsActive())
	assert.Equal(t, 1, notifier.count())

	capture.mu.Lock()
	capture.failWith = nil
	capture.mu.Unlock()
	require.NoError(t, c.Start(context.Background()), "a later start may succeed")
	c.Stop()
}

func TestController_ReconcilesWhenCaptureExits(t *testing.T) {
	capture := &fakeCapture{}
	notifier := &fakeNotifier{}
	c, eng := newTestController(capture, notifier)

	changed := make(chan bool, 4)
	c.OnChange(func(active bool) { changed <- active })

	require.NoError(t, c.Start(context.Background()))
	require.True(t, <-changed)

	capture.crash(errors.New("hook removed"))

	select {
	case active := <-changed:
		assert.False(t, active)
	case <-time.After(time.Second):
		t.Fatal("controller did not observe the exit")
	}
	assert.False(t, c.IsActive())
	assert.False(t, eng.IsActive())
	assert.Equal(t, 1, notifier.count())

	c.Stop()
	require.NoError(t, c.Start(context.Background()))
	assert.True(t, c.IsActive())
	c.Stop()
}

func TestController_StartContextDoesNotBoundSession(t *testing.T) {
	capture := &fakeCapture{}
	c, _ := newTestController(capture, nil)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, c.Start(ctx))
	cancel()

	time.Sleep(20 * time.Millisecond)
	assert.True(t, c.IsActive())
	c.Stop()
}

func TestController_Toggle(t *testing.T) {
	c, _ := newTestController(&fakeCapture{}, nil)

	require.NoError(t, c.Toggle(context.Background()))
	assert.True(t, c.IsActive())
	require.NoError(t, c.Toggle(context.Background()))
	assert.False(t, c.IsActive())
}

func TestController_KeysReachEngine(t *testing.T) {
	capture := &fakeCapture{}
	c, eng := newTestController(capture, nil)
	require.NoError(t, c.Start(context.Background()))
	defer c.Stop()

	capture.mu.Lock()
	handle := capture.handle
	capture.mu.Unlock()

	for _, r := range "hey" {
		handle(platform.Char(r))
	}
	assert.Equal(t, "hey", eng.Buffered())
}
