package quarantine

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sentinel/internal/sentinelerr"
)

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	key, err := GenerateEncryptionKey()
	require.NoError(t, err)

	messages := [][]byte{
		[]byte(""),
		[]byte("a"),
		[]byte("the quick brown fox jumps over the lazy dog"),
		make([]byte, 1000),
	}
	for _, m := range messages {
		blob, err := EncryptData(m, key)
		require.NoError(t, err)
		assert.Greater(t, len(blob), ivSize)
		plain, err := DecryptData(blob, key)
		require.NoError(t, err)
		assert.Equal(t, m, plain)
	}
}

func TestDecryptData_RejectsShortBlob(t *testing.T) {
	key, _ := GenerateEncryptionKey()
	_, err := DecryptData([]byte("short"), key)
	require.Error(t, err)
}

// fakeStore is a minimal in-memory RecordStore for vault tests.
type fakeStore struct {
	records map[int64]Record
	nextID  int64
}

func newFakeStore() *fakeStore { return &fakeStore{records: make(map[int64]Record)} }

func (s *fakeStore) InsertQuarantineRecord(r Record) (int64, error) {
	s.nextID++
	r.ID = s.nextID
	s.records[r.ID] = r
	return r.ID, nil
}

func (s *fakeStore) GetQuarantineRecord(id int64) (Record, error) {
	r, ok := s.records[id]
	if !ok {
		return Record{}, sentinelerr.New(sentinelerr.NotFound, "quarantine record not found")
	}
	return r, nil
}

func (s *fakeStore) DeleteQuarantineRecord(id int64) error {
	delete(s.records, id)
	return nil
}

func (s *fakeStore) ListQuarantineRecords(threatLevel *int) ([]Record, error) {
	var out []Record
	for _, r := range s.records {
		if threatLevel != nil && r.ThreatLevel != *threatLevel {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (s *fakeStore) QuarantineRecordByHash(hash string) (Record, bool, error) {
	for _, r := range s.records {
		if r.SHA256Hash == hash {
			return r, true, nil
		}
	}
	return Record{}, false, nil
}

func TestVault_QuarantineRestoreLifecycle(t *testing.T) {
	dir := t.TempDir()
	store := newFakeStore()
	vault, err := Open(dir, store)
	require.NoError(t, err)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o700), info.Mode().Perm())

	original := filepath.Join(t.TempDir(), "evil.exe")
	content := []byte("malicious payload bytes")
	require.NoError(t, os.WriteFile(original, content, 0o644))

	rec, err := vault.QuarantineFile(original, ThreatAnalysis{Reason: "eicar match", ThreatScore: 0.95, ThreatLevel: 3})
	require.NoError(t, err)
	assert.NotZero(t, rec.ID)

	_, err = os.Stat(original)
	assert.True(t, os.IsNotExist(err), "original should be removed")

	list, err := vault.ListQuarantinedFiles(nil)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	restored := filepath.Join(t.TempDir(), "restored.exe")
	require.NoError(t, vault.RestoreFile(rec.ID, restored))

	restoredBytes, err := os.ReadFile(restored)
	require.NoError(t, err)
	assert.Equal(t, content, restoredBytes)

	_, err = store.GetQuarantineRecord(rec.ID)
	require.Error(t, err)
	assert.True(t, sentinelerr.Is(err, sentinelerr.NotFound))
}

func TestVault_DuplicateQuarantineRejected(t *testing.T) {
	dir := t.TempDir()
	store := newFakeStore()
	vault, err := Open(dir, store)
	require.NoError(t, err)

	mkFile := func(name string, content []byte) string {
		p := filepath.Join(t.TempDir(), name)
		require.NoError(t, os.WriteFile(p, content, 0o644))
		return p
	}

	content := []byte("same bytes")
	first := mkFile("a.bin", content)
	_, err = vault.QuarantineFile(first, ThreatAnalysis{Reason: "x"})
	require.NoError(t, err)

	second := mkFile("b.bin", content)
	_, err = vault.QuarantineFile(second, ThreatAnalysis{Reason: "x"})
	require.Error(t, err)
	assert.True(t, sentinelerr.Is(err, sentinelerr.Conflict))
}

func TestVault_CleanupExpired(t *testing.T) {
	dir := t.TempDir()
	store := newFakeStore()
	vault, err := Open(dir, store)
	require.NoError(t, err)

	original := filepath.Join(t.TempDir(), "old.bin")
	require.NoError(t, os.WriteFile(original, []byte("stale"), 0o644))
	rec, err := vault.QuarantineFile(original, ThreatAnalysis{Reason: "x"})
	require.NoError(t, err)

	stored := store.records[rec.ID]
	stored.QuarantinedAt = time.Now().Add(-40 * 24 * time.Hour)
	store.records[rec.ID] = stored

	removed, err := vault.CleanupExpired(30 * 24 * time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, err = store.GetQuarantineRecord(rec.ID)
	require.Error(t, err)
}

func TestQuarantineFilename_NormalizedNoSpace(t *testing.T) {
	name := quarantineFilename(1700000000, "deadbeef12345678", "my evil file.exe")
	assert.NotContains(t, name, " ")
	assert.Equal(t, "1700000000_deadbeef_my_evil_file.exe.quar", name)
}
