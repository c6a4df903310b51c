package credentials

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"math"
	"time"
)

const (
	pairFormatVersionCurrent = 2
	pairFormatVersionV1      = 1
)

// Encode serializes pair into the versioned binary format used by persistent stores.
//
// Layout (v2): version byte, uint16 access length, access bytes, uint16 refresh length,
// refresh bytes, int64 saved-at unix seconds. v1 blobs lack the timestamp.
func Encode(pair Pair) ([]byte, error) {
	return encodeAt(pair, time.Now())
}

func encodeAt(pair Pair, savedAt time.Time) ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(1 + 2 + len(pair.AccessToken) + 2 + len(pair.RefreshToken) + 8)

	buf.WriteByte(pairFormatVersionCurrent)

	if len(pair.AccessToken) > math.MaxUint16 {
		return nil, errors.New("access token too long")
	}
	if err := binary.Write(&buf, binary.BigEndian, uint16(len(pair.AccessToken))); err != nil {
		return nil, err
	}
	buf.WriteString(pair.AccessToken)

	if len(pair.RefreshToken) > math.MaxUint16 {
		return nil, errors.New("refresh token too long")
	}
	if err := binary.Write(&buf, binary.BigEndian, uint16(len(pair.RefreshToken))); err != nil {
		return nil, err
	}
	buf.WriteString(pair.RefreshToken)

	if err := binary.Write(&buf, binary.BigEndian, savedAt.Unix()); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// Decode parses a blob produced by [Encode]. Malformed input returns an error wrapping
// [ErrCorruptPair].
func Decode(data []byte) (Pair, error) {
	pair, _, err := decode(data)
	return pair, err
}

func decode(data []byte) (Pair, time.Time, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return Pair{}, time.Time{}, errors.Join(ErrCorruptPair, err)
	}
	if version != pairFormatVersionCurrent && version != pairFormatVersionV1 {
		return Pair{}, time.Time{}, errors.Join(ErrCorruptPair, errors.New("invalid pair version"))
	}

	access, err := readString(reader)
	if err != nil {
		return Pair{}, time.Time{}, errors.Join(ErrCorruptPair, err)
	}
	refresh, err := readString(reader)
	if err != nil {
		return Pair{}, time.Time{}, errors.Join(ErrCorruptPair, err)
	}

	var savedAt time.Time
	if version == pairFormatVersionCurrent {
		var unix int64
		if err := binary.Read(reader, binary.BigEndian, &unix); err != nil {
			return Pair{}, time.Time{}, errors.Join(ErrCorruptPair, err)
		}
		savedAt = time.Unix(unix, 0)
	}
	if reader.Len() != 0 {
		return Pair{}, time.Time{}, errors.Join(ErrCorruptPair, errors.New("trailing bytes"))
	}

	return Pair{AccessToken: access, RefreshToken: refresh}, savedAt, nil
}

func readString(r *bytes.Reader) (string, error) {
	var n uint16
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return "", err
	}
	raw := make([]byte, n)
	if _, err := io.ReadFull(r, raw); err != nil {
		return "", err
	}
	return string(raw), nil
}
