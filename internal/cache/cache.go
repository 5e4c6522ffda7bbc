package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"applytrack-utils/internal/logging"
	"applytrack-utils/pkg/models"
)

// Key identifies a cached classification artifact.
type Key struct {
	SubjectID  string
	ArtifactID string
	Kind       models.ArtifactKind
}

// FastTier is an ephemeral low-latency key-value layer with TTL semantics.
type FastTier interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	// DeleteByPrefix is best-effort: a tier that cannot enumerate keys may
	// rely on natural TTL expiry instead.
	DeleteByPrefix(ctx context.Context, prefix string) error
}

// DurableTier is the persistent storage-backed layer and the source of truth
// for whether an artifact should still exist.
type DurableTier interface {
	Get(ctx context.Context, k Key) ([]byte, time.Time, bool, error)
	Upsert(ctx context.Context, k Key, value []byte) error
	Delete(ctx context.Context, k Key) error
	DeleteAllForSubject(ctx context.Context, subjectID string) error
}

// ClassificationCache fronts expensive per-(subject, artifact) computations
// with a fast volatile tier backed by a durable one. Both tiers are
// optimizations: a tier failure degrades the lookup, it never fails it.
type ClassificationCache struct {
	fast      FastTier
	durable   DurableTier
	fastTTL   time.Duration
	keyPrefix string
	logger    logging.Logger
}

// NewClassificationCache creates a new two-tier cache. The fast tier may be
// nil, in which case every lookup goes straight to the durable tier.
func NewClassificationCache(fast FastTier, durable DurableTier, fastTTL time.Duration, keyPrefix string) *ClassificationCache {
	if keyPrefix == "" {
		keyPrefix = "classification"
	}
	return &ClassificationCache{
		fast:      fast,
		durable:   durable,
		fastTTL:   fastTTL,
		keyPrefix: keyPrefix,
		logger:    logging.GetGlobalLogger(),
	}
}

// fastKey builds the flat fast-tier key. The subject prefix groups every
// artifact of a subject so bulk invalidation can scan by prefix.
func (c *ClassificationCache) fastKey(k Key) string {
	return fmt.Sprintf("%s:%s:%s:%s", c.keyPrefix, k.SubjectID, k.Kind, k.ArtifactID)
}

func (c *ClassificationCache) subjectPrefix(subjectID string) string {
	return fmt.Sprintf("%s:%s:", c.keyPrefix, subjectID)
}

// Get checks the fast tier, then the durable tier. A durable-tier hit is
// written back into the fast tier before returning so the next lookup is
// cheap. Both-miss returns (nil, false). Tier errors are logged and treated
// as misses; a cache read never fails the caller.
func (c *ClassificationCache) Get(ctx context.Context, k Key) (*models.ClassificationResult, bool) {
	if c.fast != nil {
		payload, found, err := c.fast.Get(ctx, c.fastKey(k))
		if err != nil {
			c.logger.Warn("Fast tier read failed, degrading to durable tier", map[string]interface{}{
				"key":   c.fastKey(k),
				"error": err.Error(),
			})
		} else if found {
			result, err := decodeResult(payload)
			if err == nil {
				result.Provenance = models.ProvenanceFastTier
				return result, true
			}
			c.logger.Warn("Fast tier entry is corrupt, falling through", map[string]interface{}{
				"key":   c.fastKey(k),
				"error": err.Error(),
			})
		}
	}

	payload, cachedAt, found, err := c.durable.Get(ctx, k)
	if err != nil {
		c.logger.Warn("Durable tier read failed, treating as miss", map[string]interface{}{
			"subject_id":  k.SubjectID,
			"artifact_id": k.ArtifactID,
			"error":       err.Error(),
		})
		return nil, false
	}
	if !found {
		return nil, false
	}

	result, err := decodeResult(payload)
	if err != nil {
		c.logger.Error("Durable tier entry is corrupt", map[string]interface{}{
			"subject_id":  k.SubjectID,
			"artifact_id": k.ArtifactID,
			"error":       err.Error(),
		})
		return nil, false
	}
	result.Provenance = models.ProvenanceDurableTier
	if !cachedAt.IsZero() {
		result.CachedAt = cachedAt
	}

	c.backfillFast(ctx, k, result)

	return result, true
}

// backfillFast writes a durable-tier hit into the fast tier. Failures are
// logged and swallowed; backfill is purely a latency optimization.
func (c *ClassificationCache) backfillFast(ctx context.Context, k Key, result *models.ClassificationResult) {
	if c.fast == nil {
		return
	}
	payload, err := encodeResult(result)
	if err != nil {
		return
	}
	if err := c.fast.Put(ctx, c.fastKey(k), payload, c.fastTTL); err != nil {
		c.logger.Warn("Fast tier backfill failed", map[string]interface{}{
			"key":   c.fastKey(k),
			"error": err.Error(),
		})
	}
}

// Put writes to both tiers. The two writes are independent: a durable-write
// failure must not prevent the fast-tier write, and vice versa. Put never
// fails the caller.
func (c *ClassificationCache) Put(ctx context.Context, k Key, result *models.ClassificationResult) {
	stored := *result
	stored.Provenance = models.ProvenanceComputed
	if stored.CachedAt.IsZero() {
		stored.CachedAt = time.Now()
	}

	payload, err := encodeResult(&stored)
	if err != nil {
		c.logger.Error("Failed to encode classification result for caching", map[string]interface{}{
			"subject_id":  k.SubjectID,
			"artifact_id": k.ArtifactID,
			"error":       err.Error(),
		})
		return
	}

	if c.fast != nil {
		if err := c.fast.Put(ctx, c.fastKey(k), payload, c.fastTTL); err != nil {
			c.logger.Warn("Fast tier write failed", map[string]interface{}{
				"key":   c.fastKey(k),
				"error": err.Error(),
			})
		}
	}

	if err := c.durable.Upsert(ctx, k, payload); err != nil {
		c.logger.Warn("Durable tier write failed", map[string]interface{}{
			"subject_id":  k.SubjectID,
			"artifact_id": k.ArtifactID,
			"error":       err.Error(),
		})
	}
}

// Invalidate removes cached artifacts for a subject. With artifact ids it
// deletes exactly those keys from both tiers in every kind namespace;
// without, it clears everything for the subject. The durable tier is the
// source of truth and its failure is reported; fast-tier failures degrade to
// natural TTL expiry.
func (c *ClassificationCache) Invalidate(ctx context.Context, subjectID string, artifactIDs ...string) error {
	kinds := []models.ArtifactKind{models.KindCompatibility, models.KindSpamVerdict}

	if len(artifactIDs) == 0 {
		if c.fast != nil {
			if err := c.fast.DeleteByPrefix(ctx, c.subjectPrefix(subjectID)); err != nil {
				c.logger.Warn("Fast tier bulk invalidation failed, relying on TTL expiry", map[string]interface{}{
					"subject_id": subjectID,
					"error":      err.Error(),
				})
			}
		}
		if err := c.durable.DeleteAllForSubject(ctx, subjectID); err != nil {
			return fmt.Errorf("durable tier invalidation failed for subject %s: %w", subjectID, err)
		}
		return nil
	}

	var fastKeys []string
	for _, artifactID := range artifactIDs {
		for _, kind := range kinds {
			k := Key{SubjectID: subjectID, ArtifactID: artifactID, Kind: kind}
			fastKeys = append(fastKeys, c.fastKey(k))
			if err := c.durable.Delete(ctx, k); err != nil {
				return fmt.Errorf("durable tier invalidation failed for artifact %s: %w", artifactID, err)
			}
		}
	}

	if c.fast != nil {
		if err := c.fast.Delete(ctx, fastKeys...); err != nil {
			c.logger.Warn("Fast tier invalidation failed, relying on TTL expiry", map[string]interface{}{
				"subject_id": subjectID,
				"error":      err.Error(),
			})
		}
	}

	return nil
}

func encodeResult(result *models.ClassificationResult) ([]byte, error) {
	return json.Marshal(result)
}

func decodeResult(payload []byte) (*models.ClassificationResult, error) {
	var result models.ClassificationResult
	if err := json.Unmarshal(payload, &result); err != nil {
		return nil, err
	}
	return &result, nil
}
