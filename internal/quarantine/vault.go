package quarantine

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"sentinel/internal/sentinelerr"
)

// Record describes one quarantined file. It mirrors spec.md §3's
// QuarantineRecord entity exactly.
type Record struct {
	ID               int64
	OriginalPath     string
	QuarantinePath   string
	QuarantineReason string
	ThreatScore      float64
	ThreatLevel      int
	QuarantinedAt    time.Time
	FileSize         int64
	SHA256Hash       string // unique
}

// ThreatAnalysis is the caller-supplied summary used to populate a new
// Record when quarantining a file.
type ThreatAnalysis struct {
	Reason      string
	ThreatScore float64
	ThreatLevel int
}

// RecordStore is the persistence collaborator QuarantineVault needs: it is
// satisfied by internal/policystore.Store, kept as a narrow interface here
// so this package never imports policystore (matching spec.md's ownership
// note that the vault "owns the encryption key material and the vault
// directory handle" while the database itself is a collaborator).
type RecordStore interface {
	InsertQuarantineRecord(r Record) (int64, error)
	GetQuarantineRecord(id int64) (Record, error)
	DeleteQuarantineRecord(id int64) error
	ListQuarantineRecords(threatLevel *int) ([]Record, error)
	QuarantineRecordByHash(hash string) (Record, bool, error)
}

// Vault is the encrypted custodian of neutralized files.
type Vault struct {
	mu      sync.Mutex
	dir     string
	key     []byte
	store   RecordStore
	nowFunc func() time.Time
}

const keyFileName = "encryption.key"

var sanitizeBasenameRe = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// Open creates (or reuses) the vault directory at dir with 0700
// permissions and loads its encryption key from dir/encryption.key,
// generating one with 0600 permissions if absent.
func Open(dir string, store RecordStore) (*Vault, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, sentinelerr.Wrap(sentinelerr.Internal, "create vault directory", err)
	}
	// Never widen existing permissions.
	if err := os.Chmod(dir, 0o700); err != nil {
		return nil, sentinelerr.Wrap(sentinelerr.Internal, "chmod vault directory", err)
	}

	keyPath := filepath.Join(dir, keyFileName)
	key, err := os.ReadFile(keyPath)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, sentinelerr.Wrap(sentinelerr.Internal, "read encryption key", err)
		}
		key, err = GenerateEncryptionKey()
		if err != nil {
			return nil, err
		}
		if err := os.WriteFile(keyPath, key, 0o600); err != nil {
			return nil, sentinelerr.Wrap(sentinelerr.Internal, "write encryption key", err)
		}
	}
	if len(key) != keySize {
		return nil, sentinelerr.New(sentinelerr.Corruption, "encryption key file has wrong length")
	}

	return &Vault{dir: dir, key: key, store: store, nowFunc: time.Now}, nil
}

func sha256File(path string) (string, int64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", 0, sentinelerr.Wrap(sentinelerr.Internal, "read file for quarantine", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), int64(len(data)), nil
}

func quarantineFilename(epoch int64, hash, originalBasename string) string {
	shortHash := hash
	if len(shortHash) > 8 {
		shortHash = shortHash[:8]
	}
	sanitized := sanitizeBasenameRe.ReplaceAllString(originalBasename, "_")
	return fmt.Sprintf("%d_%s_%s.quar", epoch, shortHash, sanitized)
}

// QuarantineFile moves the file at path into the vault: it is encrypted
// under the vault's key, the plaintext original is removed, and a Record is
// persisted. Duplicate files (same sha256) are rejected with Conflict.
func (v *Vault) QuarantineFile(path string, analysis ThreatAnalysis) (Record, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	hash, size, err := sha256File(path)
	if err != nil {
		return Record{}, err
	}

	if existing, found, err := v.store.QuarantineRecordByHash(hash); err != nil {
		return Record{}, err
	} else if found {
		_ = existing
		return Record{}, sentinelerr.New(sentinelerr.Conflict, "file already quarantined")
	}

	plaintext, err := os.ReadFile(path)
	if err != nil {
		return Record{}, sentinelerr.Wrap(sentinelerr.Internal, "read file for quarantine", err)
	}
	ciphertext, err := EncryptData(plaintext, v.key)
	if err != nil {
		return Record{}, err
	}

	now := v.nowFunc()
	quarName := quarantineFilename(now.Unix(), hash, filepath.Base(path))
	quarPath := filepath.Join(v.dir, quarName)
	if err := os.WriteFile(quarPath, ciphertext, 0o600); err != nil {
		return Record{}, sentinelerr.Wrap(sentinelerr.Internal, "write quarantine blob", err)
	}
	if err := os.Remove(path); err != nil {
		_ = os.Remove(quarPath)
		return Record{}, sentinelerr.Wrap(sentinelerr.Internal, "remove original file", err)
	}

	rec := Record{
		OriginalPath:     path,
		QuarantinePath:   quarPath,
		QuarantineReason: analysis.Reason,
		ThreatScore:      analysis.ThreatScore,
		ThreatLevel:      analysis.ThreatLevel,
		QuarantinedAt:    now,
		FileSize:         size,
		SHA256Hash:       hash,
	}
	id, err := v.store.InsertQuarantineRecord(rec)
	if err != nil {
		_ = os.Remove(quarPath)
		return Record{}, err
	}
	rec.ID = id
	return rec, nil
}

// RestoreFile decrypts the quarantined blob for id to dest, then removes
// both the blob and the record.
func (v *Vault) RestoreFile(id int64, dest string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	rec, err := v.store.GetQuarantineRecord(id)
	if err != nil {
		return err
	}

	blob, err := os.ReadFile(rec.QuarantinePath)
	if err != nil {
		return sentinelerr.Wrap(sentinelerr.Internal, "read quarantine blob", err)
	}
	plaintext, err := DecryptData(blob, v.key)
	if err != nil {
		return err
	}
	if err := os.WriteFile(dest, plaintext, 0o600); err != nil {
		return sentinelerr.Wrap(sentinelerr.Internal, "write restored file", err)
	}
	if err := os.Remove(rec.QuarantinePath); err != nil {
		return sentinelerr.Wrap(sentinelerr.Internal, "remove quarantine blob", err)
	}
	return v.store.DeleteQuarantineRecord(id)
}

// DeleteFile erases the quarantined blob and its record without restoring
// the plaintext anywhere.
func (v *Vault) DeleteFile(id int64) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	rec, err := v.store.GetQuarantineRecord(id)
	if err != nil {
		return err
	}
	if err := os.Remove(rec.QuarantinePath); err != nil && !os.IsNotExist(err) {
		return sentinelerr.Wrap(sentinelerr.Internal, "remove quarantine blob", err)
	}
	return v.store.DeleteQuarantineRecord(id)
}

// ListQuarantinedFiles returns all records, optionally filtered to a single
// threat level.
func (v *Vault) ListQuarantinedFiles(threatLevel *int) ([]Record, error) {
	return v.store.ListQuarantineRecords(threatLevel)
}

// IsFileQuarantined reports whether a file with the given sha256 hash is
// currently quarantined.
func (v *Vault) IsFileQuarantined(hash string) (bool, error) {
	_, found, err := v.store.QuarantineRecordByHash(hash)
	return found, err
}

// CleanupExpired deletes (blob + record) every quarantine entry older than
// retention, default 30 days.
func (v *Vault) CleanupExpired(retention time.Duration) (int, error) {
	if retention <= 0 {
		retention = 30 * 24 * time.Hour
	}
	v.mu.Lock()
	defer v.mu.Unlock()

	records, err := v.store.ListQuarantineRecords(nil)
	if err != nil {
		return 0, err
	}
	now := v.nowFunc()
	removed := 0
	for _, rec := range records {
		if now.Sub(rec.QuarantinedAt) <= retention {
			continue
		}
		if err := os.Remove(rec.QuarantinePath); err != nil && !os.IsNotExist(err) {
			return removed, sentinelerr.Wrap(sentinelerr.Internal, "remove expired quarantine blob", err)
		}
		if err := v.store.DeleteQuarantineRecord(rec.ID); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}
