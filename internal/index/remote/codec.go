package remote

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

var (
	errShortFrame = errors.New("remote: malformed frame")
	errBadCount   = errors.New("remote: count out of range")
)

// appendKey writes a length-prefixed key.
func appendKey(dst, key []byte) []byte {
	dst = binary.AppendUvarint(dst, uint64(len(key)))
	return append(dst, key...)
}

// splitKey reads a length-prefixed key and returns it with the remainder.
func splitKey(frame []byte) (key, rest []byte, err error) {
	n, w := binary.Uvarint(frame)
	if w <= 0 || uint64(len(frame)-w) < n {
		return nil, nil, errShortFrame
	}
	return frame[w : w+int(n)], frame[w+int(n):], nil
}

func encodeKeyValue(key, value []byte) []byte {
	buf := make([]byte, 0, len(key)+len(value)+binary.MaxVarintLen32)
	return append(appendKey(buf, key), value...)
}

func encodeKeyCount(key []byte, count int) []byte {
	buf := make([]byte, 0, len(key)+2*binary.MaxVarintLen32)
	return binary.AppendUvarint(appendKey(buf, key), uint64(count))
}

func decodeCount(frame []byte) (int, []byte, error) {
	return decodeBounded(frame, 0, math.MaxInt32)
}

// decodeBounded reads a count and rejects it unless it lies in [lo, hi].
func decodeBounded(frame []byte, lo, hi int) (int, []byte, error) {
	n, w := binary.Uvarint(frame)
	if w <= 0 {
		return 0, nil, errShortFrame
	}
	if n < uint64(lo) || n > uint64(hi) {
		return 0, nil, fmt.Errorf("%w: %d not in [%d, %d]", errBadCount, n, lo, hi)
	}
	return int(n), frame[w:], nil
}

// A find response is one status byte followed by the value when found.
func encodeFound(found bool, value []byte) []byte {
	if !found {
		return []byte{0}
	}
	return append([]byte{1}, value...)
}
