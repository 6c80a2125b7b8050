// Package record implements the on-disk framing for a single Bitcask log
// entry: a fixed 20-byte header (crc, timestamp, key length, value length)
// followed by the raw key and value bytes. Both puts and tombstones share
// this format; a tombstone is simply a record whose value length is zero.
package record

import (
	"encoding/binary"
	"errors"
	"hash/crc32"
	"math"
	"time"
)

// HeaderSize is the fixed byte length of a record header:
// crc(u32) | timestamp_ms(u64) | key_len(u32) | value_len(u32).
const HeaderSize = 4 + 8 + 4 + 4

var (
	// ErrShortHeader is returned by DecodeHeader when fewer than HeaderSize
	// bytes are available.
	ErrShortHeader = errors.New("record: buffer shorter than header size")

	// ErrShortRecord is returned when a header decodes cleanly but the
	// trailing key/value bytes it promises are not fully available. The
	// recovery scanner treats this as a torn tail, not a fatal error. The
	// encoder also returns it when a key or value is too long for its u32
	// length field.
	ErrShortRecord = errors.New("record: truncated key or value payload")

	// ErrCRCMismatch is returned when the checksum stored in the header
	// does not match the checksum computed over the decoded key and value.
	ErrCRCMismatch = errors.New("record: crc mismatch")

	// ErrTimestampOverflow is returned by the encoder if the wall clock
	// somehow produces a negative millisecond count. Not reachable with a
	// correctly set system clock; kept because the wire format promises it.
	ErrTimestampOverflow = errors.New("record: timestamp does not fit in u64 milliseconds")
)

// Header is the fixed portion of a record, decoded independently of the key
// and value bytes that follow it so that framing never requires allocating
// buffers larger than the header itself.
type Header struct {
	CRC         uint32
	TimestampMs uint64
	KeyLen      uint32
	ValueLen    uint32
}

// IsTombstone reports whether this header describes a delete marker.
func (h Header) IsTombstone() bool {
	return h.ValueLen == 0
}

// BodyLen is the number of bytes following the header for this record.
func (h Header) BodyLen() uint32 {
	return h.KeyLen + h.ValueLen
}

// clockNowMs is overridden in tests to make timestamp ordering deterministic.
var clockNowMs = func() (uint64, error) {
	ms := time.Now().UnixMilli()
	if ms < 0 {
		return 0, ErrTimestampOverflow
	}
	return uint64(ms), nil
}

func checksum(key, value []byte) uint32 {
	h := crc32.NewIEEE()
	h.Write(key)
	h.Write(value)
	return h.Sum32()
}

// EncodePut serializes a live put record for key/value and returns the
// wire bytes alongside the timestamp used, so the caller can record it in
// the keydir without re-deriving the clock reading.
func EncodePut(key, value []byte) ([]byte, uint64, error) {
	return encode(key, value)
}

// EncodeTombstone serializes a delete marker for key: a record with the
// same header shape but a zero-length value.
func EncodeTombstone(key []byte) ([]byte, uint64, error) {
	return encode(key, nil)
}

func encode(key, value []byte) ([]byte, uint64, error) {
	ts, err := clockNowMs()
	if err != nil {
		return nil, 0, err
	}

	if uint64(len(key)) > math.MaxUint32 || uint64(len(value)) > math.MaxUint32 {
		return nil, 0, ErrShortRecord
	}

	total := HeaderSize + len(key) + len(value)
	buf := make([]byte, total)

	crc := checksum(key, value)
	binary.LittleEndian.PutUint32(buf[0:4], crc)
	binary.LittleEndian.PutUint64(buf[4:12], ts)
	binary.LittleEndian.PutUint32(buf[12:16], uint32(len(key)))
	binary.LittleEndian.PutUint32(buf[16:20], uint32(len(value)))
	copy(buf[HeaderSize:HeaderSize+len(key)], key)
	copy(buf[HeaderSize+len(key):], value)

	return buf, ts, nil
}

// EncodedSize returns the total on-disk size of a record for key/value
// without actually encoding it, used by the engine to decide whether an
// append would cross the active-segment rotation threshold.
func EncodedSize(key, value []byte) int64 {
	return int64(HeaderSize + len(key) + len(value))
}

// DecodeHeader parses the fixed header from the front of buf.
func DecodeHeader(buf []byte) (Header, error) {
	if len(buf) < HeaderSize {
		return Header{}, ErrShortHeader
	}
	return Header{
		CRC:         binary.LittleEndian.Uint32(buf[0:4]),
		TimestampMs: binary.LittleEndian.Uint64(buf[4:12]),
		KeyLen:      binary.LittleEndian.Uint32(buf[12:16]),
		ValueLen:    binary.LittleEndian.Uint32(buf[16:20]),
	}, nil
}

// VerifyBody checks that key/value in body ([]byte holding exactly
// KeyLen+ValueLen bytes) match the CRC recorded in h.
func (h Header) VerifyBody(body []byte) error {
	if uint32(len(body)) != h.BodyLen() {
		return ErrShortRecord
	}
	key := body[:h.KeyLen]
	value := body[h.KeyLen:]
	if checksum(key, value) != h.CRC {
		return ErrCRCMismatch
	}
	return nil
}
