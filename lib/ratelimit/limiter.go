// Package ratelimit gates callers by (source IP, API name) buckets.
//
// The memory limiter is a per-process token bucket: the effective global
// budget is points × running instances. The Redis limiter shares one
// fixed-window counter across instances.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"lambdakit/lib/constants"
)

// ErrInsufficientPoints is returned when a bucket cannot cover the cost.
var ErrInsufficientPoints = errors.New("insufficient rate limit points")

// Limiter debits points from the bucket identified by key.
type Limiter interface {
	Consume(ctx context.Context, key string, points int) error
	Close() error
}

// maxBuckets bounds the memory limiter before full buckets are swept.
const maxBuckets = 10000

// MemoryLimiter refills each bucket at points per duration, up to points.
type MemoryLimiter struct {
	mu       sync.Mutex
	buckets  map[string]*rate.Limiter
	points   int
	duration time.Duration
	now      func() time.Time
}

// NewMemory creates an in-process limiter.
func NewMemory(points int, duration time.Duration) *MemoryLimiter {
	if points <= 0 {
		points = constants.RATE_LIMIT_POINTS_PER_SECOND
	}
	if duration <= 0 {
		duration = constants.RATE_LIMIT_DURATION * time.Second
	}
	return &MemoryLimiter{
		buckets:  map[string]*rate.Limiter{},
		points:   points,
		duration: duration,
		now:      time.Now,
	}
}

func (l *MemoryLimiter) Consume(ctx context.Context, key string, points int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	bucket, ok := l.buckets[key]
	if !ok {
		if len(l.buckets) >= maxBuckets {
			l.sweep(now)
		}
		bucket = rate.NewLimiter(rate.Limit(float64(l.points)/l.duration.Seconds()), l.points)
		l.buckets[key] = bucket
	}
	if !bucket.AllowN(now, points) {
		return fmt.Errorf("%s: %w", key, ErrInsufficientPoints)
	}
	return nil
}

// sweep drops buckets that have refilled completely; they hold no state.
func (l *MemoryLimiter) sweep(now time.Time) {
	for key, bucket := range l.buckets {
		if bucket.TokensAt(now) >= float64(l.points) {
			delete(l.buckets, key)
		}
	}
}

// Close releases every bucket.
func (l *MemoryLimiter) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.buckets = map[string]*rate.Limiter{}
	return nil
}

// Service is the rate limit gate the caller pipeline consults.
type Service struct {
	Limiter Limiter
	Logger  *logrus.Logger
}

// NewService wraps limiter.
func NewService(limiter Limiter, logger *logrus.Logger) *Service {
	return &Service{Limiter: limiter, Logger: logger}
}

// CheckRateLimit consumes points (the default cost when <= 0) from the
// "<sourceIp>-<apiName>" bucket. Any failure denies the call.
func (s *Service) CheckRateLimit(ctx context.Context, sourceIP, apiName string, points int) bool {
	if points <= 0 {
		points = constants.RATE_LIMIT_DEFAULT_COST
	}
	callerID := fmt.Sprintf("%s-%s", sourceIP, apiName)

	if err := s.Limiter.Consume(ctx, callerID, points); err != nil {
		s.Logger.WithFields(logrus.Fields{
			"operation": "CheckRateLimit",
			"caller_id": callerID,
			"points":    points,
			"error":     err.Error(),
		}).Warn("Bad caller")
		return false
	}
	return true
}
