package policystore

import (
	"hash/fnv"
	"strconv"
)

// computeFingerprint hashes (url, filename, mime, file_hash) into the LRU
// key used by match_policy's hot-path cache. spec.md §9 notes this is
// deliberately a non-cryptographic, collision-possible hash: the matcher
// always revalidates the cached policy against the current DB before
// trusting it.
func computeFingerprint(t ThreatMetadata) string {
	h := fnv.New64a()
	h.Write([]byte(t.URL))
	h.Write([]byte{'|'})
	h.Write([]byte(t.Filename))
	h.Write([]byte{'|'})
	h.Write([]byte(t.MimeType))
	h.Write([]byte{'|'})
	h.Write([]byte(t.FileHash))
	return strconv.FormatUint(h.Sum64(), 16)
}
