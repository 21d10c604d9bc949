package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"hash"
	"hash/crc32"
	"io"
)

var table = crc32.MakeTable(crc32.Castagnoli)

// Checksum is a SHA-256 digest over a block of test data. A cryptographic
// digest is used so that corruption is detected regardless of byte position
// or pattern: bit flips, truncation and reordering all change the digest.
type Checksum [sha256.Size]byte

func Digest(data []byte) Checksum {
	return sha256.Sum256(data)
}

func Verify(data []byte, expected Checksum) bool {
	return sha256.Sum256(data) == expected
}

func (c Checksum) Hex() string {
	return hex.EncodeToString(c[:])
}

// CRC is an incremental CRC32-Castagnoli, cheap enough to run on every
// endurance cycle where a full SHA-256 per cycle would dominate small writes.
type CRC uint32

func NewCRC(b []byte) CRC {
	return CRC(0).Update(b)
}

func (c CRC) Update(b []byte) CRC {
	return CRC(crc32.Update(uint32(c), table, b))
}

// SumWriter tees everything written through it into both digests.
type SumWriter struct {
	w   io.Writer
	h   hash.Hash
	crc CRC
}

func NewSumWriter(w io.Writer) *SumWriter {
	return &SumWriter{
		w: w,
		h: sha256.New(),
	}
}

func (s *SumWriter) Write(p []byte) (n int, err error) {
	n, err = s.w.Write(p)
	s.h.Write(p[:n])
	s.crc = s.crc.Update(p[:n])
	return
}

func (s *SumWriter) Sum() (c Checksum) {
	copy(c[:], s.h.Sum(nil))
	return
}

func (s *SumWriter) CRC() uint32 { return uint32(s.crc) }
