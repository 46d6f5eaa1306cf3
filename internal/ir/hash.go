package ir

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"sort"
)

// Domain prefixes for content fingerprints.
// Version suffix enables future algorithm migration.
const (
	DomainCorpus = "construct/corpus/v2"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data...)
// The null byte (0x00) separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, parts ...[]byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	for _, p := range parts {
		h.Write(p)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Document is a named blob of corpus content.
type Document struct {
	Path    string
	Content []byte
}

// Fingerprint hashes the documents sorted by path. Each document is framed
// as path, 0x00, big-endian content length, content, so bytes moved across a
// document boundary or a renamed document change the result.
// Returns "" when there are no documents, so an empty corpus never
// compares equal to a populated one.
func Fingerprint(docs []Document) string {
	if len(docs) == 0 {
		return ""
	}
	sorted := append([]Document(nil), docs...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Path < sorted[j].Path })

	parts := make([][]byte, 0, len(sorted))
	for _, d := range sorted {
		frame := make([]byte, 0, len(d.Path)+9)
		frame = append(frame, d.Path...)
		frame = append(frame, 0x00)
		frame = binary.BigEndian.AppendUint64(frame, uint64(len(d.Content)))
		parts = append(parts, frame, d.Content)
	}
	return hashWithDomain(DomainCorpus, parts...)
}
