package registry

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPutAndFindBySecret(t *testing.T) {
	r := New(Options{})
	r.Put("pi_1", "requires_payment_method", "secret_1")
	r.Put("pi_2", "requires_confirmation", "secret_2")

	rec, ok := r.FindBySecret("secret_1")
	require.True(t, ok)
	assert.Equal(t, Record{ID: "pi_1", Status: "requires_payment_method", ClientSecret: "secret_1"}, rec)

	rec, ok = r.FindBySecret("secret_2")
	require.True(t, ok)
	assert.Equal(t, Record{ID: "pi_2", Status: "requires_confirmation", ClientSecret: "secret_2"}, rec)

	assert.Equal(t, 2, r.Len())
}

func TestFindBySecretMiss(t *testing.T) {
	r := New(Options{})
	r.Put("pi_1", "requires_payment_method", "secret_1")

	for _, secret := range []string{"", "secret_2", "SECRET_1", "pi_1"} {
		_, ok := r.FindBySecret(secret)
		assert.False(t, ok, secret)
	}
}

func TestPutOverwritesWholesale(t *testing.T) {
	r := New(Options{})
	r.Put("pi_1", "requires_payment_method", "secret_1")
	r.Put("pi_1", "succeeded", "secret_1b")

	_, ok := r.FindBySecret("secret_1")
	assert.False(t, ok, "old secret must no longer resolve")

	rec, ok := r.FindBySecret("secret_1b")
	require.True(t, ok)
	assert.Equal(t, "succeeded", rec.Status)
	assert.Equal(t, 1, r.Len())

	got, ok := r.Get("pi_1")
	require.True(t, ok)
	assert.Equal(t, rec, got)

	_, indexed := r.bySecret.Load("secret_1")
	assert.False(t, indexed)
}

func TestPutSameSecretKeepsIndex(t *testing.T) {
	r := New(Options{})
	r.Put("pi_1", "requires_payment_method", "secret_1")
	r.Put("pi_1", "requires_action", "secret_1")

	rec, ok := r.FindBySecret("secret_1")
	require.True(t, ok)
	assert.Equal(t, "requires_action", rec.Status)
}

func TestCapacityEvictsOldest(t *testing.T) {
	r := New(Options{Capacity: 2})
	r.Put("pi_1", "requires_payment_method", "secret_1")
	r.Put("pi_2", "requires_payment_method", "secret_2")
	r.Put("pi_3", "requires_payment_method", "secret_3")

	_, ok := r.FindBySecret("secret_1")
	assert.False(t, ok)
	_, ok = r.FindBySecret("secret_3")
	assert.True(t, ok)
	assert.Equal(t, 2, r.Len())
}

func TestTTLExpiresRecords(t *testing.T) {
	r := New(Options{TTL: 50 * time.Millisecond})
	r.Put("pi_1", "requires_payment_method", "secret_1")

	_, ok := r.FindBySecret("secret_1")
	require.True(t, ok)

	assert.Eventually(t, func() bool {
		_, ok := r.FindBySecret("secret_1")
		return !ok
	}, 2*time.Second, 20*time.Millisecond)
}

func TestPutAfterExpiryDropsOldSecret(t *testing.T) {
	r := New(Options{TTL: time.Second})
	r.Put("pi_1", "requires_payment_method", "secret_1")

	// Expired but possibly not reaped yet: Get already hides the entry.
	require.Eventually(t, func() bool {
		_, ok := r.Get("pi_1")
		return !ok
	}, 3*time.Second, time.Millisecond)
	r.Put("pi_1", "requires_action", "secret_2")

	_, indexed := r.bySecret.Load("secret_1")
	assert.False(t, indexed, "stale secret left in index")
	rec, ok := r.FindBySecret("secret_2")
	require.True(t, ok)
	assert.Equal(t, "requires_action", rec.Status)
}

func TestEvictionClearsBothIndexes(t *testing.T) {
	r := New(Options{Capacity: 1})
	r.Put("pi_1", "requires_payment_method", "secret_1")
	r.Put("pi_2", "requires_payment_method", "secret_2")

	_, bySecret := r.bySecret.Load("secret_1")
	_, byID := r.byID.Load("pi_1")
	assert.False(t, bySecret)
	assert.False(t, byID)
}

func TestConcurrentPutAndFind(t *testing.T) {
	r := New(Options{})
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("pi_%d", i)
			secret := fmt.Sprintf("secret_%d", i)
			r.Put(id, "requires_payment_method", secret)
			rec, ok := r.FindBySecret(secret)
			assert.True(t, ok)
			assert.Equal(t, id, rec.ID)
			r.Put(id, "succeeded", secret)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 50, r.Len())
	for i := 0; i < 50; i++ {
		rec, ok := r.FindBySecret(fmt.Sprintf("secret_%d", i))
		require.True(t, ok)
		assert.Equal(t, "succeeded", rec.Status)
	}
}
