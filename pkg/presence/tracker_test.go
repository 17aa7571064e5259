package presence

import (
	"context"
	"os"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/kayesmahmud/Speaky/pkg/model"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type call struct {
	user   int64
	online bool
}

type recordingMirror struct {
	mu    sync.Mutex
	calls []call
	err   error
}

func (m *recordingMirror) SetOnline(_ context.Context, userID int64, online bool, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, call{userID, online})
	return m.err
}

func TestRegisterIsIdempotent(t *testing.T) {
	m := &recordingMirror{}
	tr := NewTracker(m, nil)
	ctx := context.Background()

	if !tr.Register(ctx, 1, "s1") {
		t.Fatal("first register should be a transition")
	}
	if tr.Register(ctx, 1, "s1") {
		t.Fatal("repeat register should not be a transition")
	}
	if got := tr.Connections(1); !reflect.DeepEqual(got, []string{"s1"}) {
		t.Fatalf("Connections() = %v", got)
	}
	if len(m.calls) != 1 {
		t.Fatalf("mirror calls = %v", m.calls)
	}
}

func TestMultiDeviceGoesOfflineOnce(t *testing.T) {
	m := &recordingMirror{}
	tr := NewTracker(m, nil)
	ctx := context.Background()

	tr.Register(ctx, 5, "phone")
	tr.Register(ctx, 5, "laptop")
	if tr.Unregister(ctx, 5, "phone") {
		t.Fatal("user still has a socket")
	}
	if !tr.IsOnline(5) {
		t.Fatal("user should be online")
	}
	if !tr.Unregister(ctx, 5, "laptop") {
		t.Fatal("last socket should report a transition")
	}
	if tr.IsOnline(5) || tr.OnlineCount() != 0 {
		t.Fatal("user should be offline")
	}
	want := []call{{5, true}, {5, false}}
	if !reflect.DeepEqual(m.calls, want) {
		t.Fatalf("mirror calls = %v, want %v", m.calls, want)
	}
}

func TestUnregisterUnknownIsNoop(t *testing.T) {
	m := &recordingMirror{}
	tr := NewTracker(m, nil)
	ctx := context.Background()

	if tr.Unregister(ctx, 9, "nope") {
		t.Fatal("unknown user reported a transition")
	}
	tr.Register(ctx, 9, "a")
	if tr.Unregister(ctx, 9, "b") {
		t.Fatal("unknown socket reported a transition")
	}
	if !tr.IsOnline(9) || len(m.calls) != 1 {
		t.Fatalf("state changed: online=%v calls=%v", tr.IsOnline(9), m.calls)
	}
}

func TestMirrorFailureIsLogged(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	tr := NewTracker(&recordingMirror{err: errors.New("db down")}, zap.New(core))

	if !tr.Register(context.Background(), 3, "s") {
		t.Fatal("mirror failure must not block the transition")
	}
	if !tr.IsOnline(3) {
		t.Fatal("user should be online")
	}
	if logs.FilterMessage("presence mirror failed").Len() != 1 {
		t.Fatalf("expected one warning, got %v", logs.All())
	}
}

func TestConcurrentRegister(t *testing.T) {
	m := &recordingMirror{}
	tr := NewTracker(m, nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tr.Register(ctx, 1, string(rune('a'+i%26))+string(rune('A'+i/26)))
		}(i)
	}
	wg.Wait()
	if len(tr.Connections(1)) != 50 {
		t.Fatalf("Connections() = %d", len(tr.Connections(1)))
	}
	if len(m.calls) != 1 {
		t.Fatalf("mirror calls = %v", m.calls)
	}
}

// gatedMirror blocks its first offline write until release is closed.
type gatedMirror struct {
	recordingMirror
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (m *gatedMirror) SetOnline(ctx context.Context, userID int64, online bool, at time.Time) error {
	if !online {
		first := false
		m.once.Do(func() { first = true })
		if first {
			close(m.entered)
			<-m.release
		}
	}
	return m.recordingMirror.SetOnline(ctx, userID, online, at)
}

func TestReconnectDuringSlowOfflineWrite(t *testing.T) {
	m := &gatedMirror{entered: make(chan struct{}), release: make(chan struct{})}
	tr := NewTracker(m, nil)
	ctx := context.Background()
	tr.Register(ctx, 9, "s1")

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		tr.Unregister(ctx, 9, "s1")
	}()
	<-m.entered
	go func() {
		defer wg.Done()
		tr.Register(ctx, 9, "s2")
	}()
	for !tr.IsOnline(9) {
		time.Sleep(time.Millisecond)
	}
	close(m.release)
	wg.Wait()

	m.mu.Lock()
	defer m.mu.Unlock()
	last := m.calls[len(m.calls)-1]
	if !tr.IsOnline(9) || !last.online {
		t.Fatalf("tracker online = %v, mirror calls = %v", tr.IsOnline(9), m.calls)
	}
}

type fakeUsers struct {
	id    int64
	patch model.UserPatch
}

func (f *fakeUsers) UpdateUser(_ context.Context, id int64, patch model.UserPatch) error {
	f.id, f.patch = id, patch
	return nil
}

func TestStoreMirror(t *testing.T) {
	users := &fakeUsers{}
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	if err := (StoreMirror{Users: users}).SetOnline(context.Background(), 4, false, at); err != nil {
		t.Fatal(err)
	}
	if users.id != 4 || users.patch.IsOnline == nil || *users.patch.IsOnline {
		t.Fatalf("patch = %+v", users.patch)
	}
	if users.patch.LastActive == nil || !users.patch.LastActive.Equal(at) {
		t.Fatalf("last active = %v", users.patch.LastActive)
	}
}

func TestMirrorsReturnsFirstError(t *testing.T) {
	a := &recordingMirror{err: errors.New("first")}
	b := &recordingMirror{}
	err := Mirrors{a, b}.SetOnline(context.Background(), 1, true, time.Now())
	if err == nil || err.Error() != "first" {
		t.Fatalf("err = %v", err)
	}
	if len(b.calls) != 1 {
		t.Fatal("second mirror was skipped")
	}
}

func TestRedisMirrorUnreachable(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1, DialTimeout: 200 * time.Millisecond})
	defer rdb.Close()
	if err := NewRedisMirror(rdb, "1").SetOnline(context.Background(), 1, true, time.Now()); err == nil {
		t.Fatal("expected an error from an unreachable redis")
	}
}

func TestRedisMirrorAcrossGateways(t *testing.T) {
	addr := os.Getenv("SPEAKY_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("SPEAKY_TEST_REDIS_ADDR not set")
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	defer rdb.Close()
	ctx := context.Background()
	const user = 424242
	rdb.Del(ctx, NodesKeyPrefix+"424242")
	rdb.SRem(ctx, OnlineKey, "424242")

	a := NewTracker(NewRedisMirror(rdb, "gw-a"), nil)
	b := NewTracker(NewRedisMirror(rdb, "gw-b"), nil)
	reader := NewRedisMirror(rdb, "")

	a.Register(ctx, user, "s1")
	b.Register(ctx, user, "s2")
	a.Unregister(ctx, user, "s1")
	if online, err := reader.IsOnline(ctx, user); err != nil || !online {
		t.Fatalf("online with a socket on gw-b = %v, %v", online, err)
	}
	b.Unregister(ctx, user, "s2")
	if online, err := reader.IsOnline(ctx, user); err != nil || online {
		t.Fatalf("online after every gateway left = %v, %v", online, err)
	}
	if seen, err := reader.LastSeen(ctx, user); err != nil || seen.IsZero() {
		t.Fatalf("LastSeen() = %v, %v", seen, err)
	}
}
