package bucket

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"

	"etatcivil/internal/ratelimit/models"
)

var (
	t0       = time.Date(2025, 4, 10, 9, 0, 0, 0, time.UTC)
	testRule = models.Rule{Limit: 3, Window: time.Minute}
)

type bucketStore interface {
	Allow(ctx context.Context, key string, rule models.Rule) (*models.Result, error)
	Reset(ctx context.Context, key string) error
}

type BucketStoreSuite struct {
	suite.Suite
	newStore func(now func() time.Time) bucketStore
	store    bucketStore
	clock    time.Time
	ctx      context.Context
}

func TestInMemoryBucketStoreSuite(t *testing.T) {
	suite.Run(t, &BucketStoreSuite{newStore: func(now func() time.Time) bucketStore {
		s := NewInMemoryBucketStore()
		s.now = now
		return s
	}})
}

func TestRedisBucketStoreSuite(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	suite.Run(t, &BucketStoreSuite{newStore: func(now func() time.Time) bucketStore {
		mr.FlushAll()
		s := NewRedisBucketStore(client)
		s.now = now
		return s
	}})
}

func (s *BucketStoreSuite) SetupTest() {
	s.clock = t0
	s.ctx = context.Background()
	s.store = s.newStore(func() time.Time { return s.clock })
}

func (s *BucketStoreSuite) allowN(key string, n int) *models.Result {
	var res *models.Result
	for range n {
		var err error
		res, err = s.store.Allow(s.ctx, key, testRule)
		s.Require().NoError(err)
	}
	return res
}

func (s *BucketStoreSuite) TestAllowUpToLimit() {
	first := s.allowN("rl:auth:1.2.3.4", 1)
	s.True(first.Allowed)
	s.Equal(3, first.Limit)
	s.Equal(2, first.Remaining)

	last := s.allowN("rl:auth:1.2.3.4", 2)
	s.True(last.Allowed)
	s.Equal(0, last.Remaining)
	s.WithinDuration(t0.Add(time.Minute), last.ResetAt, 0)
}

func (s *BucketStoreSuite) TestDeniedOverLimit() {
	s.allowN("rl:auth:1.2.3.4", 3)
	s.clock = t0.Add(20 * time.Second)

	res := s.allowN("rl:auth:1.2.3.4", 1)
	s.False(res.Allowed)
	s.Equal(0, res.Remaining)
	s.Equal(40, res.RetryAfter)

	other := s.allowN("rl:auth:5.6.7.8", 1)
	s.True(other.Allowed)
}

func (s *BucketStoreSuite) TestWindowSlides() {
	s.allowN("rl:auth:1.2.3.4", 2)
	s.clock = t0.Add(30 * time.Second)
	s.allowN("rl:auth:1.2.3.4", 1)

	s.clock = t0.Add(61 * time.Second)
	res := s.allowN("rl:auth:1.2.3.4", 2)
	s.True(res.Allowed)
	s.Equal(0, res.Remaining)

	s.False(s.allowN("rl:auth:1.2.3.4", 1).Allowed)
}

func (s *BucketStoreSuite) TestReset() {
	s.allowN("rl:auth:1.2.3.4", 3)
	s.Require().NoError(s.store.Reset(s.ctx, "rl:auth:1.2.3.4"))
	s.True(s.allowN("rl:auth:1.2.3.4", 1).Allowed)
}
