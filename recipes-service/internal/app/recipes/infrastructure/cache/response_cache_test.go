package cache

import (
	"context"
	"errors"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// ResponseCacheTestSuite тестовый suite для кэша ответов на miniredis
type ResponseCacheTestSuite struct {
	suite.Suite
	miniRedis *miniredis.Miniredis
	client    *redis.Client
	cache     *ResponseCache
}

func TestResponseCacheSuite(t *testing.T) {
	suite.Run(t, new(ResponseCacheTestSuite))
}

func (s *ResponseCacheTestSuite) SetupSuite() {
	var err error
	s.miniRedis, err = miniredis.Run()
	require.NoError(s.T(), err)

	s.client = redis.NewClient(&redis.Options{
		Addr: s.miniRedis.Addr(),
	})

	s.cache = NewResponseCache(s.client, "")
}

func (s *ResponseCacheTestSuite) SetupTest() {
	s.miniRedis.FlushAll()
}

func (s *ResponseCacheTestSuite) TearDownSuite() {
	s.client.Close()
	s.miniRedis.Close()
}

func (s *ResponseCacheTestSuite) TestGet_Miss() {
	data, ok, err := s.cache.Get(context.Background(), "recipes_list:abc")

	s.NoError(err)
	s.False(ok)
	s.Nil(data)
}

func (s *ResponseCacheTestSuite) TestSetGet_TTL() {
	ctx := context.Background()

	s.NoError(s.cache.Set(ctx, "recipes_get:1", []byte(`{"id":"1"}`), time.Minute))

	data, ok, err := s.cache.Get(ctx, "recipes_get:1")
	s.NoError(err)
	s.True(ok)
	s.JSONEq(`{"id":"1"}`, string(data))
	s.True(s.miniRedis.Exists(DefaultPrefix + "recipes_get:1"))

	s.miniRedis.FastForward(2 * time.Minute)

	_, ok, err = s.cache.Get(ctx, "recipes_get:1")
	s.NoError(err)
	s.False(ok)
}

func (s *ResponseCacheTestSuite) TestInvalidateAll_OnlyOwnPrefix() {
	ctx := context.Background()

	for i := 0; i < 500; i++ {
		key := Key("recipes_list", url.Values{"page": {strconv.Itoa(i)}})
		s.NoError(s.cache.Set(ctx, key, []byte("x"), time.Hour))
	}
	s.NoError(s.miniRedis.Set("rate:user:1:general", "keep"))

	s.NoError(s.cache.InvalidateAll(ctx))

	keys := s.miniRedis.Keys()
	s.ElementsMatch([]string{DefaultPrefix + generationKey, "rate:user:1:general"}, keys)
}

func (s *ResponseCacheTestSuite) TestInvalidateAll_BumpsGeneration() {
	ctx := context.Background()

	s.NoError(s.cache.InvalidateAll(ctx))
	s.NoError(s.cache.InvalidateAll(ctx))

	gen, err := s.miniRedis.Get(DefaultPrefix + generationKey)
	s.NoError(err)
	s.Equal("2", gen)
}

func (s *ResponseCacheTestSuite) TestFetch_LoadStartedBeforeInvalidateIsNotCached() {
	ctx := context.Background()
	key := "recipes_list:stale"
	started := make(chan struct{})
	release := make(chan struct{})

	type result struct {
		data []byte
		hit  bool
		err  error
	}
	done := make(chan result, 1)

	go func() {
		data, hit, err := s.cache.Fetch(ctx, key, time.Minute, func(context.Context) ([]byte, error) {
			close(started)
			<-release
			return []byte(`{"version":1}`), nil
		})
		done <- result{data, hit, err}
	}()

	<-started
	// запись завершилась, пока загрузка еще читала старые данные
	s.NoError(s.cache.InvalidateAll(ctx))
	close(release)

	res := <-done
	s.NoError(res.err)
	s.False(res.hit)
	s.Equal(`{"version":1}`, string(res.data))

	_, ok, err := s.cache.Get(ctx, key)
	s.NoError(err)
	s.False(ok, "ответ, загруженный до InvalidateAll, не должен попасть в кэш")

	data, hit, err := s.cache.Fetch(ctx, key, time.Minute, func(context.Context) ([]byte, error) {
		return []byte(`{"version":2}`), nil
	})
	s.NoError(err)
	s.False(hit)
	s.Equal(`{"version":2}`, string(data))

	data, hit, err = s.cache.Fetch(ctx, key, time.Minute, func(context.Context) ([]byte, error) {
		return nil, errors.New("must be served from cache")
	})
	s.NoError(err)
	s.True(hit)
	s.Equal(`{"version":2}`, string(data))
}

func (s *ResponseCacheTestSuite) TestFetch_LeaderCancelDoesNotFailSharedLoad() {
	key := "recipes_list:shared"
	started := make(chan struct{})
	release := make(chan struct{})

	load := func(ctx context.Context) ([]byte, error) {
		close(started)
		<-release
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return []byte("v"), nil
	}

	leaderCtx, cancel := context.WithCancel(context.Background())
	leaderErr := make(chan error, 1)
	go func() {
		_, _, err := s.cache.Fetch(leaderCtx, key, time.Minute, load)
		leaderErr <- err
	}()
	<-started

	followerDone := make(chan struct{})
	var followerData []byte
	var followerFetchErr error
	go func() {
		defer close(followerDone)
		followerData, _, followerFetchErr = s.cache.Fetch(context.Background(), key, time.Minute, load)
	}()

	// follower успевает присоединиться к загрузке
	time.Sleep(50 * time.Millisecond)
	cancel()
	s.ErrorIs(<-leaderErr, context.Canceled)

	close(release)
	<-followerDone

	s.NoError(followerFetchErr)
	s.Equal("v", string(followerData))

	cached, ok, err := s.cache.Get(context.Background(), key)
	s.NoError(err)
	s.True(ok)
	s.Equal("v", string(cached))
}

func (s *ResponseCacheTestSuite) TestFetch_LoadsOnceAndCaches() {
	ctx := context.Background()
	var calls int32

	load := func(context.Context) ([]byte, error) {
		atomic.AddInt32(&calls, 1)
		return []byte(`[1,2,3]`), nil
	}

	data, hit, err := s.cache.Fetch(ctx, "recipes_search:k", time.Minute, load)
	s.NoError(err)
	s.False(hit)
	s.Equal(`[1,2,3]`, string(data))

	data, hit, err = s.cache.Fetch(ctx, "recipes_search:k", time.Minute, load)
	s.NoError(err)
	s.True(hit)
	s.Equal(`[1,2,3]`, string(data))

	s.Equal(int32(1), atomic.LoadInt32(&calls))
}

func (s *ResponseCacheTestSuite) TestFetch_ConcurrentMissesShareLoad() {
	ctx := context.Background()
	var calls int32
	release := make(chan struct{})

	load := func(context.Context) ([]byte, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return []byte("v"), nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			data, _, err := s.cache.Fetch(ctx, "recipes_list:hot", time.Minute, load)
			s.NoError(err)
			s.Equal("v", string(data))
		}()
	}

	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	s.LessOrEqual(atomic.LoadInt32(&calls), int32(10))
	s.GreaterOrEqual(atomic.LoadInt32(&calls), int32(1))
}

func (s *ResponseCacheTestSuite) TestFetch_LoadErrorNotCached() {
	ctx := context.Background()
	boom := errors.New("db down")

	_, _, err := s.cache.Fetch(ctx, "recipes_get:x", time.Minute, func(context.Context) ([]byte, error) {
		return nil, boom
	})

	s.ErrorIs(err, boom)
	s.False(s.miniRedis.Exists(DefaultPrefix + "recipes_get:x"))
}

func (s *ResponseCacheTestSuite) TestGet_RedisDown() {
	s.miniRedis.SetError("ERR simulated failure")
	defer s.miniRedis.SetError("")

	_, ok, err := s.cache.Get(context.Background(), "recipes_list:1")

	s.Error(err)
	s.False(ok)
}

func TestKey_StableAcrossParamOrder(t *testing.T) {
	a := Key("recipes_list", url.Values{"page": {"1"}, "limit": {"10"}})
	b := Key("recipes_list", url.Values{"limit": {"10"}, "page": {"1"}})
	c := Key("recipes_list", url.Values{"page": {"2"}, "limit": {"10"}})

	require.Equal(t, a, b)
	require.NotEqual(t, a, c)
	require.Equal(t, "recipes_list", namespace(a))
}
