package data

import (
	"context"
	"encoding/json"
	"time"

	"github.com/sirupsen/logrus"

	"lambdakit/lib/clients"
	"lambdakit/lib/constants"
)

// CacheRepository is a best-effort key/value cache kept in S3. Misses,
// expired entries and storage failures all read as "no value".
type CacheRepository interface {
	GetS3Cache(ctx context.Context, key string) (interface{}, bool)
	GetS3CacheObject(ctx context.Context, key string) (map[string]interface{}, bool)
	SetS3Cache(ctx context.Context, key string, content interface{}, expireMinutes int)
	SetS3CacheObject(ctx context.Context, key string, content map[string]interface{}, expireMinutes int)
}

// cacheEnvelope is the stored document; TTL is in unix seconds.
type cacheEnvelope struct {
	TTL   int64       `json:"ttl,omitempty"`
	Cache interface{} `json:"cache"`
}

// CacheDao stores entries as <key>.txt in the cache bucket.
type CacheDao struct {
	S3     clients.S3ClientInterface
	Bucket string
	Logger *logrus.Logger
	Now    func() time.Time
}

func (dao *CacheDao) now() time.Time {
	if dao.Now != nil {
		return dao.Now()
	}
	return time.Now()
}

func (dao *CacheDao) GetS3Cache(ctx context.Context, key string) (interface{}, bool) {
	if key == "" {
		return nil, false
	}

	body, err := dao.S3.GetObject(ctx, dao.Bucket, key+".txt")
	if err != nil {
		dao.Logger.WithFields(logrus.Fields{
			"operation": "GetS3Cache",
			"key":       key,
			"error":     err.Error(),
		}).Debug("Cache miss")
		return nil, false
	}

	var envelope cacheEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		dao.Logger.WithFields(logrus.Fields{
			"operation": "GetS3Cache",
			"key":       key,
			"error":     err.Error(),
		}).Error("Cache entry is not valid JSON")
		return nil, false
	}
	if envelope.TTL > 0 && dao.now().Unix() > envelope.TTL {
		dao.Logger.WithFields(logrus.Fields{"operation": "GetS3Cache", "key": key}).Debug("Cache entry expired")
		return nil, false
	}
	if envelope.Cache == nil {
		return nil, false
	}
	return envelope.Cache, true
}

// GetS3CacheObject reads an entry written by SetS3CacheObject.
func (dao *CacheDao) GetS3CacheObject(ctx context.Context, key string) (map[string]interface{}, bool) {
	v, ok := dao.GetS3Cache(ctx, key)
	if !ok {
		return nil, false
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return nil, false
	}
	var obj map[string]interface{}
	if err := json.Unmarshal([]byte(s), &obj); err != nil {
		dao.Logger.WithFields(logrus.Fields{
			"operation": "GetS3CacheObject",
			"key":       key,
			"error":     err.Error(),
		}).Error("Cached object is not valid JSON")
		return nil, false
	}
	return obj, true
}

// SetS3Cache stores content; expireMinutes <= 0 keeps it for 30 days.
func (dao *CacheDao) SetS3Cache(ctx context.Context, key string, content interface{}, expireMinutes int) {
	if key == "" {
		return
	}
	if expireMinutes <= 0 {
		expireMinutes = constants.CACHE_DEFAULT_EXPIRE_MINUTES
	}
	envelope := cacheEnvelope{
		TTL:   dao.now().Add(time.Duration(expireMinutes) * time.Minute).Unix(),
		Cache: content,
	}

	body, err := json.Marshal(envelope)
	if err == nil {
		err = dao.S3.PutObject(ctx, dao.Bucket, key+".txt", body, "text/plain")
	}
	if err != nil {
		dao.Logger.WithFields(logrus.Fields{
			"operation": "SetS3Cache",
			"key":       key,
			"error":     err.Error(),
		}).Error("Failed to write cache entry")
	}
}

// SetS3CacheObject stores content as a JSON string.
func (dao *CacheDao) SetS3CacheObject(ctx context.Context, key string, content map[string]interface{}, expireMinutes int) {
	body, err := json.Marshal(content)
	if err != nil {
		dao.Logger.WithFields(logrus.Fields{
			"operation": "SetS3CacheObject",
			"key":       key,
			"error":     err.Error(),
		}).Error("Failed to encode cache object")
		return
	}
	dao.SetS3Cache(ctx, key, string(body), expireMinutes)
}
