package cache_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"applytrack-utils/internal/cache"
	"applytrack-utils/pkg/models"
)

// stubFastTier is an in-memory FastTier with injectable failures.
type stubFastTier struct {
	entries map[string][]byte
	getErr  error
	putErr  error
	delErr  error
}

func newStubFastTier() *stubFastTier {
	return &stubFastTier{entries: make(map[string][]byte)}
}

func (t *stubFastTier) Get(_ context.Context, key string) ([]byte, bool, error) {
	if t.getErr != nil {
		return nil, false, t.getErr
	}
	payload, ok := t.entries[key]
	return payload, ok, nil
}

func (t *stubFastTier) Put(_ context.Context, key string, value []byte, _ time.Duration) error {
	if t.putErr != nil {
		return t.putErr
	}
	t.entries[key] = value
	return nil
}

func (t *stubFastTier) Delete(_ context.Context, keys ...string) error {
	if t.delErr != nil {
		return t.delErr
	}
	for _, key := range keys {
		delete(t.entries, key)
	}
	return nil
}

func (t *stubFastTier) DeleteByPrefix(_ context.Context, prefix string) error {
	if t.delErr != nil {
		return t.delErr
	}
	for key := range t.entries {
		if strings.HasPrefix(key, prefix) {
			delete(t.entries, key)
		}
	}
	return nil
}

// stubDurableTier is an in-memory DurableTier with injectable failures.
type stubDurableTier struct {
	entries  map[cache.Key][]byte
	cachedAt map[cache.Key]time.Time
	getErr   error
	putErr   error
	delErr   error
}

func newStubDurableTier() *stubDurableTier {
	return &stubDurableTier{
		entries:  make(map[cache.Key][]byte),
		cachedAt: make(map[cache.Key]time.Time),
	}
}

func (t *stubDurableTier) Get(_ context.Context, k cache.Key) ([]byte, time.Time, bool, error) {
	if t.getErr != nil {
		return nil, time.Time{}, false, t.getErr
	}
	payload, ok := t.entries[k]
	return payload, t.cachedAt[k], ok, nil
}

func (t *stubDurableTier) Upsert(_ context.Context, k cache.Key, value []byte) error {
	if t.putErr != nil {
		return t.putErr
	}
	t.entries[k] = value
	t.cachedAt[k] = time.Now()
	return nil
}

func (t *stubDurableTier) Delete(_ context.Context, k cache.Key) error {
	if t.delErr != nil {
		return t.delErr
	}
	delete(t.entries, k)
	delete(t.cachedAt, k)
	return nil
}

func (t *stubDurableTier) DeleteAllForSubject(_ context.Context, subjectID string) error {
	if t.delErr != nil {
		return t.delErr
	}
	for k := range t.entries {
		if k.SubjectID == subjectID {
			delete(t.entries, k)
			delete(t.cachedAt, k)
		}
	}
	return nil
}

func spamResult() *models.ClassificationResult {
	return &models.ClassificationResult{
		Kind: models.KindSpamVerdict,
		Spam: &models.SpamVerdict{
			IsSpam:      true,
			Probability: 0.93,
			Category:    models.SpamCategoryFeeUpfront,
			Reason:      "payment requested up front",
		},
	}
}

func testKey() cache.Key {
	return cache.Key{SubjectID: "u1", ArtifactID: "job-1", Kind: models.KindSpamVerdict}
}

// ── Get / Put ──────────────────────────────────────────────────────────────

func TestCache_PutThenGetServedFromFastTier(t *testing.T) {
	fast := newStubFastTier()
	durable := newStubDurableTier()
	c := cache.NewClassificationCache(fast, durable, time.Hour, "classification")

	c.Put(context.Background(), testKey(), spamResult())

	got, ok := c.Get(context.Background(), testKey())
	if !ok {
		t.Fatal("expected cache hit after put")
	}
	if got.Provenance != models.ProvenanceFastTier {
		t.Errorf("provenance = %s, want fast_tier", got.Provenance)
	}
	if got.Spam == nil || !got.Spam.IsSpam {
		t.Error("spam verdict lost through the cache round trip")
	}
}

func TestCache_MissReturnsFalse(t *testing.T) {
	c := cache.NewClassificationCache(newStubFastTier(), newStubDurableTier(), time.Hour, "classification")

	if _, ok := c.Get(context.Background(), testKey()); ok {
		t.Error("expected miss on empty cache")
	}
}

func TestCache_DurableHitBackfillsFastTier(t *testing.T) {
	fast := newStubFastTier()
	durable := newStubDurableTier()
	c := cache.NewClassificationCache(fast, durable, time.Hour, "classification")

	c.Put(context.Background(), testKey(), spamResult())
	// Simulate fast-tier eviction.
	for key := range fast.entries {
		delete(fast.entries, key)
	}

	got, ok := c.Get(context.Background(), testKey())
	if !ok {
		t.Fatal("expected durable tier hit")
	}
	if got.Provenance != models.ProvenanceDurableTier {
		t.Errorf("provenance = %s, want durable_tier", got.Provenance)
	}
	if len(fast.entries) != 1 {
		t.Errorf("fast tier entries after backfill = %d, want 1", len(fast.entries))
	}

	// The next lookup is served by the backfilled fast tier.
	again, ok := c.Get(context.Background(), testKey())
	if !ok || again.Provenance != models.ProvenanceFastTier {
		t.Errorf("post-backfill provenance = %s, want fast_tier", again.Provenance)
	}
}

func TestCache_FastTierFailureDegradesToDurable(t *testing.T) {
	fast := newStubFastTier()
	durable := newStubDurableTier()
	c := cache.NewClassificationCache(fast, durable, time.Hour, "classification")

	c.Put(context.Background(), testKey(), spamResult())
	fast.getErr = errors.New("connection refused")

	got, ok := c.Get(context.Background(), testKey())
	if !ok {
		t.Fatal("fast tier outage must not fail the lookup")
	}
	if got.Provenance != models.ProvenanceDurableTier {
		t.Errorf("provenance = %s, want durable_tier", got.Provenance)
	}
}

func TestCache_BothTiersFailingReadsAsMiss(t *testing.T) {
	fast := newStubFastTier()
	durable := newStubDurableTier()
	fast.getErr = errors.New("down")
	durable.getErr = errors.New("down")
	c := cache.NewClassificationCache(fast, durable, time.Hour, "classification")

	if _, ok := c.Get(context.Background(), testKey()); ok {
		t.Error("expected miss when both tiers fail")
	}
}

func TestCache_PutSurvivesTierFailures(t *testing.T) {
	fast := newStubFastTier()
	durable := newStubDurableTier()
	fast.putErr = errors.New("down")
	c := cache.NewClassificationCache(fast, durable, time.Hour, "classification")

	// Must not panic or fail; the durable write still lands.
	c.Put(context.Background(), testKey(), spamResult())
	if len(durable.entries) != 1 {
		t.Errorf("durable entries = %d, want 1 despite fast tier outage", len(durable.entries))
	}

	durable.putErr = errors.New("down")
	c.Put(context.Background(), testKey(), spamResult())
}

func TestCache_NilFastTier(t *testing.T) {
	durable := newStubDurableTier()
	c := cache.NewClassificationCache(nil, durable, time.Hour, "classification")

	c.Put(context.Background(), testKey(), spamResult())
	got, ok := c.Get(context.Background(), testKey())
	if !ok {
		t.Fatal("expected hit with durable tier only")
	}
	if got.Provenance != models.ProvenanceDurableTier {
		t.Errorf("provenance = %s, want durable_tier", got.Provenance)
	}
}

func TestCache_CorruptFastEntryFallsThrough(t *testing.T) {
	fast := newStubFastTier()
	durable := newStubDurableTier()
	c := cache.NewClassificationCache(fast, durable, time.Hour, "classification")

	c.Put(context.Background(), testKey(), spamResult())
	for key := range fast.entries {
		fast.entries[key] = []byte("{not json")
	}

	got, ok := c.Get(context.Background(), testKey())
	if !ok {
		t.Fatal("corrupt fast entry must fall through to the durable tier")
	}
	if got.Provenance != models.ProvenanceDurableTier {
		t.Errorf("provenance = %s, want durable_tier", got.Provenance)
	}
}

// ── Invalidate ─────────────────────────────────────────────────────────────

func TestCache_InvalidateSpecificArtifacts(t *testing.T) {
	fast := newStubFastTier()
	durable := newStubDurableTier()
	c := cache.NewClassificationCache(fast, durable, time.Hour, "classification")

	k1 := cache.Key{SubjectID: "u1", ArtifactID: "job-1", Kind: models.KindSpamVerdict}
	k2 := cache.Key{SubjectID: "u1", ArtifactID: "job-2", Kind: models.KindSpamVerdict}
	c.Put(context.Background(), k1, spamResult())
	c.Put(context.Background(), k2, spamResult())

	if err := c.Invalidate(context.Background(), "u1", "job-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, ok := c.Get(context.Background(), k1); ok {
		t.Error("invalidated artifact still cached")
	}
	if _, ok := c.Get(context.Background(), k2); !ok {
		t.Error("untouched artifact was dropped")
	}
}

func TestCache_InvalidateWholeSubject(t *testing.T) {
	fast := newStubFastTier()
	durable := newStubDurableTier()
	c := cache.NewClassificationCache(fast, durable, time.Hour, "classification")

	k1 := cache.Key{SubjectID: "u1", ArtifactID: "job-1", Kind: models.KindSpamVerdict}
	k2 := cache.Key{SubjectID: "u1", ArtifactID: "job-2", Kind: models.KindCompatibility}
	other := cache.Key{SubjectID: "u2", ArtifactID: "job-3", Kind: models.KindSpamVerdict}
	c.Put(context.Background(), k1, spamResult())
	c.Put(context.Background(), k2, spamResult())
	c.Put(context.Background(), other, spamResult())

	if err := c.Invalidate(context.Background(), "u1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, ok := c.Get(context.Background(), k1); ok {
		t.Error("subject artifact survived bulk invalidation")
	}
	if _, ok := c.Get(context.Background(), k2); ok {
		t.Error("subject artifact survived bulk invalidation")
	}
	if _, ok := c.Get(context.Background(), other); !ok {
		t.Error("another subject's artifact was dropped")
	}
}

func TestCache_InvalidateSurfacesDurableFailure(t *testing.T) {
	fast := newStubFastTier()
	durable := newStubDurableTier()
	c := cache.NewClassificationCache(fast, durable, time.Hour, "classification")

	durable.delErr = errors.New("down")
	if err := c.Invalidate(context.Background(), "u1"); err == nil {
		t.Error("durable tier failure must surface from Invalidate")
	}
	if err := c.Invalidate(context.Background(), "u1", "job-1"); err == nil {
		t.Error("durable tier failure must surface from targeted Invalidate")
	}
}

func TestCache_InvalidateToleratesFastFailure(t *testing.T) {
	fast := newStubFastTier()
	durable := newStubDurableTier()
	c := cache.NewClassificationCache(fast, durable, time.Hour, "classification")

	c.Put(context.Background(), testKey(), spamResult())
	fast.delErr = errors.New("down")

	if err := c.Invalidate(context.Background(), "u1"); err != nil {
		t.Errorf("fast tier failure must not surface: %v", err)
	}
	// Durable side is gone; the stale fast entry expires via TTL.
	if len(durable.entries) != 0 {
		t.Errorf("durable entries = %d, want 0", len(durable.entries))
	}
}
