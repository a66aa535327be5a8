// Copyright 2026 ApexBridge Technologies
// Tests for the duplicate-submission guard

package dedup

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDeduper(window time.Duration, cacheSize int) *Deduplicator {
	d := NewDeduplicator(window, cacheSize, nil)
	return d
}

func TestDeduplicator_WindowHit(t *testing.T) {
	d := newTestDeduper(time.Minute, 10)
	defer d.Stop()

	fp := Fingerprint("Bug", "desc", nil)
	assert.False(t, d.IsDuplicate(fp))

	d.RecordSubmission(fp)
	assert.True(t, d.IsDuplicate(fp), "record within window should be a duplicate")
}

func TestDeduplicator_WindowExpiry(t *testing.T) {
	d := newTestDeduper(time.Minute, 10)
	defer d.Stop()

	fp := Fingerprint("Bug", "desc", nil)
	d.RecordSubmission(fp)

	// 把时钟拨到窗口之外
	d.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	assert.False(t, d.IsDuplicate(fp), "record outside window is not a duplicate")
}

func TestDeduplicator_InFlightExclusive(t *testing.T) {
	d := newTestDeduper(time.Minute, 10)
	defer d.Stop()

	fp := Fingerprint("Bug", "desc", nil)
	require.True(t, d.MarkInProgress(fp))
	assert.False(t, d.MarkInProgress(fp), "second concurrent mark must fail")
	assert.True(t, d.IsDuplicate(fp), "in-flight fingerprint is a duplicate")

	d.MarkComplete(fp)
	assert.False(t, d.IsDuplicate(fp), "no record was written, only in-flight cleared")
	assert.True(t, d.MarkInProgress(fp), "fingerprint reusable after MarkComplete")
}

func TestDeduplicator_CacheEvictsOldestFirst(t *testing.T) {
	d := newTestDeduper(time.Hour, 3)
	defer d.Stop()

	fps := make([]string, 5)
	for i := range fps {
		fps[i] = Fingerprint(fmt.Sprintf("bug-%d", i), "desc", nil)
		d.RecordSubmission(fps[i])
	}

	assert.False(t, d.IsDuplicate(fps[0]), "oldest record evicted")
	assert.False(t, d.IsDuplicate(fps[1]), "second oldest record evicted")
	assert.True(t, d.IsDuplicate(fps[4]), "newest record kept")
}

func TestDeduplicator_SweepRemovesExpired(t *testing.T) {
	d := newTestDeduper(time.Minute, 10)
	defer d.Stop()

	old := Fingerprint("old", "desc", nil)
	fresh := Fingerprint("fresh", "desc", nil)
	d.RecordSubmission(old)
	d.RecordSubmission(fresh)

	// old 记录过期，fresh 仍在窗口内
	base := time.Now()
	d.mu.Lock()
	d.records[old] = base.Add(-2 * time.Minute)
	d.mu.Unlock()

	d.sweep()

	assert.False(t, d.IsDuplicate(old))
	assert.True(t, d.IsDuplicate(fresh))
}

func TestDuplicateError_MentionsWaitSeconds(t *testing.T) {
	err := &DuplicateError{Fingerprint: "abc", Wait: 60 * time.Second}
	assert.Contains(t, err.Error(), "60 seconds")
}
