package redis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/turtacn/vehicle-test-records/internal/domain/testrecord"
)

// CachedClassificationLookup memoises classification answers per test type
// and vehicle descriptor. Answers are static reference data, so a long TTL
// is safe; errors are never cached.
type CachedClassificationLookup struct {
	next  testrecord.ClassificationLookup
	cache Cache
	ttl   time.Duration
}

var _ testrecord.ClassificationLookup = (*CachedClassificationLookup)(nil)

// NewCachedClassificationLookup wraps next. A zero ttl uses the cache default.
func NewCachedClassificationLookup(next testrecord.ClassificationLookup, cache Cache, ttl time.Duration) *CachedClassificationLookup {
	return &CachedClassificationLookup{next: next, cache: cache, ttl: ttl}
}

func (l *CachedClassificationLookup) GetCodeAndClassification(ctx context.Context, testTypeID string, vehicle testrecord.VehicleDescriptor) (*testrecord.CodeAndClassification, error) {
	key, err := classificationKey(testTypeID, vehicle)
	if err != nil {
		return l.next.GetCodeAndClassification(ctx, testTypeID, vehicle)
	}

	var out testrecord.CodeAndClassification
	err = l.cache.GetOrSet(ctx, key, &out, l.ttl, func(ctx context.Context) (interface{}, error) {
		res, err := l.next.GetCodeAndClassification(ctx, testTypeID, vehicle)
		if err != nil || res == nil {
			return nil, err
		}
		return res, nil
	})
	if err == ErrCacheMiss {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func classificationKey(testTypeID string, vehicle testrecord.VehicleDescriptor) (string, error) {
	raw, err := json.Marshal(vehicle)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(raw)
	return "classification:" + testTypeID + ":" + hex.EncodeToString(sum[:12]), nil
}
