package cache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ButyrinIA/forum/internal/logging"
	"github.com/ButyrinIA/forum/internal/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fetchResult struct {
	value any
	err   error
}

type pendingFetch struct {
	key    Key
	result chan fetchResult
}

func (p *pendingFetch) resolve(v any) { p.result <- fetchResult{value: v} }
func (p *pendingFetch) reject(err error) { p.result <- fetchResult{err: err} }

// fakeFetcher блокирует каждый запрос до явного ответа из теста
type fakeFetcher struct {
	issued chan *pendingFetch
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{issued: make(chan *pendingFetch, 32)}
}

func (f *fakeFetcher) fetch(ctx context.Context, key Key) (any, error) {
	p := &pendingFetch{key: key, result: make(chan fetchResult, 1)}
	f.issued <- p
	select {
	case r := <-p.result:
		return r.value, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (f *fakeFetcher) expectCall(t *testing.T) *pendingFetch {
	t.Helper()
	select {
	case p := <-f.issued:
		return p
	case <-time.After(time.Second):
		t.Fatal("ожидался запрос к сервису данных")
		return nil
	}
}

func (f *fakeFetcher) expectNoCall(t *testing.T) {
	t.Helper()
	select {
	case p := <-f.issued:
		t.Fatalf("лишний запрос для %s", p.key)
	case <-time.After(50 * time.Millisecond):
	}
}

func newTestCache(t *testing.T) (*Cache, *fakeFetcher) {
	t.Helper()
	f := newFakeFetcher()
	c := New(f.fetch, WithLogger(logging.Discard()), WithMetrics(metrics.New()))
	t.Cleanup(c.Close)
	return c, f
}

// settle ждет, пока все горутины запросов применят или отбросят ответ
func settle(c *Cache) {
	c.wg.Wait()
}

func TestGetIssuesSingleFetch(t *testing.T) {
	c, f := newTestCache(t)
	key := PostKey("1")

	snap := c.Get(key)
	assert.Equal(t, StatusPending, snap.Status)
	assert.True(t, snap.Fetching)

	var wg sync.WaitGroup
	results := make([]any, 5)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := c.Load(context.Background(), key)
			assert.NoError(t, err)
			results[i] = v
		}(i)
	}
	c.Get(key)
	c.Get(key)

	p := f.expectCall(t)
	assert.Equal(t, key, p.key)
	f.expectNoCall(t)

	p.resolve("post-1")
	wg.Wait()
	for _, v := range results {
		assert.Equal(t, "post-1", v)
	}

	snap = c.Get(key)
	assert.Equal(t, StatusSuccess, snap.Status)
	assert.False(t, snap.Fetching)
	f.expectNoCall(t)
}

func TestInvalidateWithSubscriber(t *testing.T) {
	c, f := newTestCache(t)
	key := PostsKey()

	notified := make(chan Snapshot, 8)
	unsubscribe := c.Subscribe(key, func(s Snapshot) { notified <- s })
	defer unsubscribe()

	c.Get(key)
	f.expectCall(t).resolve("v1")
	first := <-notified
	assert.Equal(t, "v1", first.Value)

	c.Invalidate(key)
	c.Invalidate(key)
	c.Invalidate(key)

	refetch := f.expectCall(t)
	f.expectNoCall(t)

	snap := c.Get(key)
	assert.Equal(t, "v1", snap.Value, "устаревшее значение остается видимым до ответа")
	assert.True(t, snap.Stale)
	assert.True(t, snap.Fetching)
	f.expectNoCall(t)

	refetch.resolve("v2")
	second := <-notified
	assert.Equal(t, "v2", second.Value)
	assert.False(t, second.Stale)
	assert.Greater(t, second.Generation, first.Generation)

	snap = c.Peek(key)
	assert.Equal(t, "v2", snap.Value)
	assert.False(t, snap.Stale)
}

func TestLastIssuedWins(t *testing.T) {
	c, f := newTestCache(t)
	key := CommentsKey("7")

	c.Get(key)
	f1 := f.expectCall(t)

	unsubscribe := c.Subscribe(key, func(Snapshot) {})
	defer unsubscribe()
	c.Invalidate(key)
	f2 := f.expectCall(t)

	f2.resolve("fresh")
	v, err := c.Load(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, "fresh", v)

	f1.resolve("old")
	settle(c)

	snap := c.Peek(key)
	assert.Equal(t, "fresh", snap.Value)
	assert.Equal(t, StatusSuccess, snap.Status)
}

func TestInvalidateWithoutSubscriberDefers(t *testing.T) {
	c, f := newTestCache(t)
	key := PostKey("3")

	c.Get(key)
	f.expectCall(t).resolve("v1")
	settle(c)

	c.Invalidate(key)
	f.expectNoCall(t)
	assert.True(t, c.Peek(key).Stale)

	snap := c.Get(key)
	assert.Equal(t, "v1", snap.Value)
	p := f.expectCall(t)
	c.Get(key)
	f.expectNoCall(t)

	p.resolve("v2")
	v, err := c.Load(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, "v2", v)
}

func TestInvalidateDuringDeferredRefetch(t *testing.T) {
	c, f := newTestCache(t)
	key := PostsKey()

	c.Get(key)
	f.expectCall(t).resolve("v1")
	settle(c)

	c.Invalidate(key)
	c.Get(key)
	inflight := f.expectCall(t)

	// запись изменена еще раз, пока ответ на первую инвалидацию в пути
	c.Invalidate(key)
	inflight.resolve("before-second-write")
	settle(c)

	snap := c.Peek(key)
	assert.Equal(t, "before-second-write", snap.Value)
	assert.True(t, snap.Stale, "ответ, выпущенный до инвалидации, не снимает пометку")

	c.Get(key)
	f.expectCall(t).resolve("after-second-write")
	v, err := c.Load(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, "after-second-write", v)
	assert.False(t, c.Peek(key).Stale)
}

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func TestIdleEntriesEvicted(t *testing.T) {
	c, f := newTestCache(t)
	clock := &testClock{t: time.Date(2024, 3, 9, 12, 0, 0, 0, time.UTC)}
	c.now = clock.now
	c.gcTime = time.Minute

	missing := PostKey("missing")
	c.Get(missing)
	f.expectCall(t).reject(errors.New("HTTP 404"))
	settle(c)

	unsubscribe := c.Subscribe(PostsKey(), func(Snapshot) {})
	defer unsubscribe()
	c.Get(PostsKey())
	f.expectCall(t).resolve("posts")
	settle(c)

	clock.advance(2 * time.Minute)
	c.Get(UsersKey())
	f.expectCall(t).resolve("users")
	settle(c)

	assert.Equal(t, StatusAbsent, c.Peek(missing).Status, "запись без подписчиков вытесняется")
	assert.Equal(t, StatusSuccess, c.Peek(PostsKey()).Status, "запись с подписчиком остается")
	assert.Equal(t, StatusSuccess, c.Peek(UsersKey()).Status)

	c.Get(missing)
	f.expectCall(t).resolve("post")
	v, err := c.Load(context.Background(), missing)
	require.NoError(t, err)
	assert.Equal(t, "post", v)
}

func TestInvalidateUnknownKey(t *testing.T) {
	c, f := newTestCache(t)
	c.Invalidate(PostKey("never"))
	f.expectNoCall(t)
	assert.Equal(t, StatusAbsent, c.Peek(PostKey("never")).Status)
}

func TestFetchFailure(t *testing.T) {
	c, f := newTestCache(t)
	key := UsersKey()

	notified := make(chan Snapshot, 4)
	unsubscribe := c.Subscribe(key, func(s Snapshot) { notified <- s })
	defer unsubscribe()

	c.Get(key)
	f.expectCall(t).reject(errors.New("connection refused"))

	snap := <-notified
	assert.Equal(t, StatusError, snap.Status)
	assert.EqualError(t, snap.Err, "connection refused")
	f.expectNoCall(t)

	done := make(chan error, 1)
	go func() {
		_, err := c.Load(context.Background(), key)
		done <- err
	}()
	f.expectCall(t).resolve("users")
	require.NoError(t, <-done)
	assert.Equal(t, StatusSuccess, c.Peek(key).Status)
}

func TestUnsubscribe(t *testing.T) {
	c, f := newTestCache(t)
	key := PostKey("9")

	calls := 0
	var mu sync.Mutex
	unsubscribe := c.Subscribe(key, func(Snapshot) {
		mu.Lock()
		calls++
		mu.Unlock()
	})
	assert.Equal(t, 1, c.Subscribers(key))

	unsubscribe()
	unsubscribe()
	assert.Equal(t, 0, c.Subscribers(key))

	c.Get(key)
	f.expectCall(t).resolve("v")
	settle(c)

	c.Invalidate(key)
	f.expectNoCall(t)

	mu.Lock()
	assert.Equal(t, 0, calls)
	mu.Unlock()
}

func TestLoadContextCancel(t *testing.T) {
	c, f := newTestCache(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		_, err := c.Load(ctx, PostsKey())
		done <- err
	}()
	p := f.expectCall(t)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	p.resolve("late")
	settle(c)
	assert.Equal(t, "late", c.Peek(PostsKey()).Value, "ответ применяется и без ожидающих")
}

func TestParseKey(t *testing.T) {
	for _, k := range []Key{PostsKey(), UsersKey(), PostKey("12"), CommentsKey("abc")} {
		parsed, err := ParseKey(k.String())
		require.NoError(t, err)
		assert.Equal(t, k, parsed)
	}

	for _, bad := range []string{"post", "posts:1", "likes:2", ""} {
		_, err := ParseKey(bad)
		assert.Error(t, err, bad)
	}
}
