package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"neti/internal/repository"
)

// ============================================================================
// Test Helpers
// ============================================================================

// newTestRepo creates an in-memory SQLite repository for testing
func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	repo, err := New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test repository: %v", err)
	}
	t.Cleanup(func() {
		repo.Close()
	})
	return repo
}

// assertNoError fails the test if err is not nil
func assertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// assertEqual fails the test if expected != actual
func assertEqual(t *testing.T, expected, actual interface{}) {
	t.Helper()
	if !reflect.DeepEqual(expected, actual) {
		t.Fatalf("expected %v, got %v", expected, actual)
	}
}

func testKey(host string) *repository.HostKey {
	return &repository.HostKey{
		Host:        host,
		KeyType:     "ssh-ed25519",
		Key:         []byte{0x00, 0x01, 0x02, 0xff},
		Fingerprint: "SHA256:abc",
	}
}

// ============================================================================
// Host Keys
// ============================================================================

func TestHostKey_PinAndGet(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	assertNoError(t, repo.PinHostKey(ctx, testKey("10.0.0.1:22")))

	got, err := repo.GetHostKey(ctx, "10.0.0.1:22")
	assertNoError(t, err)
	assertEqual(t, "ssh-ed25519", got.KeyType)
	assertEqual(t, []byte{0x00, 0x01, 0x02, 0xff}, got.Key)
	assertEqual(t, "SHA256:abc", got.Fingerprint)
	if got.FirstSeen.IsZero() || !got.FirstSeen.Equal(got.LastSeen) {
		t.Fatalf("expected first_seen == last_seen on pin, got %v / %v", got.FirstSeen, got.LastSeen)
	}
}

func TestHostKey_GetMissing(t *testing.T) {
	repo := newTestRepo(t)

	_, err := repo.GetHostKey(context.Background(), "nowhere:22")
	if !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestHostKey_PinTwiceFails(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	assertNoError(t, repo.PinHostKey(ctx, testKey("router:22")))

	replacement := testKey("router:22")
	replacement.Key = []byte("different")
	if err := repo.PinHostKey(ctx, replacement); err == nil {
		t.Fatal("expected pinning an already pinned host to fail")
	}

	got, err := repo.GetHostKey(ctx, "router:22")
	assertNoError(t, err)
	assertEqual(t, []byte{0x00, 0x01, 0x02, 0xff}, got.Key)
}

func TestHostKey_Touch(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	first := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	key := testKey("switch:22")
	key.FirstSeen = first
	assertNoError(t, repo.PinHostKey(ctx, key))

	later := first.Add(48 * time.Hour)
	assertNoError(t, repo.TouchHostKey(ctx, "switch:22", later))

	got, err := repo.GetHostKey(ctx, "switch:22")
	assertNoError(t, err)
	if !got.FirstSeen.Equal(first) {
		t.Errorf("first_seen changed: %v", got.FirstSeen)
	}
	if !got.LastSeen.Equal(later) {
		t.Errorf("expected last_seen %v, got %v", later, got.LastSeen)
	}

	if err := repo.TouchHostKey(ctx, "unknown:22", later); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("expected ErrNotFound touching unknown host, got %v", err)
	}
}

func TestHostKey_ListAndDelete(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	for _, host := range []string{"c:22", "a:22", "b:2222"} {
		assertNoError(t, repo.PinHostKey(ctx, testKey(host)))
	}

	keys, err := repo.ListHostKeys(ctx)
	assertNoError(t, err)
	var hosts []string
	for _, k := range keys {
		hosts = append(hosts, k.Host)
	}
	assertEqual(t, []string{"a:22", "b:2222", "c:22"}, hosts)

	assertNoError(t, repo.DeleteHostKey(ctx, "b:2222"))
	if err := repo.DeleteHostKey(ctx, "b:2222"); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("expected ErrNotFound on second delete, got %v", err)
	}

	keys, err = repo.ListHostKeys(ctx)
	assertNoError(t, err)
	assertEqual(t, 2, len(keys))
}

func TestHostKey_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hostkeys.db")
	ctx := context.Background()

	repo, err := New(path)
	assertNoError(t, err)
	assertNoError(t, repo.PinHostKey(ctx, testKey("10.0.0.254:22")))
	assertNoError(t, repo.Close())

	reopened, err := New(path)
	assertNoError(t, err)
	defer reopened.Close()

	got, err := reopened.GetHostKey(ctx, "10.0.0.254:22")
	assertNoError(t, err)
	assertEqual(t, "SHA256:abc", got.Fingerprint)
}
