package kvstore

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/klauspost/compress/zstd"
)

// envelope is the on-disk form of an entry for backends without native
// expiry metadata.
type envelope struct {
	Key       string    `json:"key"`
	ExpiresAt time.Time `json:"expires_at,omitzero"`
	Value     []byte    `json:"value"`
}

// codec compresses stored values with zstd. Encoder and decoder are safe for
// concurrent EncodeAll/DecodeAll calls.
type codec struct {
	enc *zstd.Encoder
	dec *zstd.Decoder
}

func newCodec() (*codec, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("creating zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("creating zstd decoder: %w", err)
	}
	return &codec{enc: enc, dec: dec}, nil
}

func (c *codec) compress(b []byte) []byte {
	return c.enc.EncodeAll(b, make([]byte, 0, len(b)/2))
}

func (c *codec) decompress(b []byte) ([]byte, error) {
	out, err := c.dec.DecodeAll(b, nil)
	if err != nil {
		return nil, fmt.Errorf("decompressing value: %w", err)
	}
	return out, nil
}

func (c *codec) encodeEnvelope(e envelope) ([]byte, error) {
	raw, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshaling entry: %w", err)
	}
	return c.compress(raw), nil
}

func (c *codec) decodeEnvelope(b []byte) (envelope, error) {
	var e envelope
	raw, err := c.decompress(b)
	if err != nil {
		return e, err
	}
	if err := json.Unmarshal(raw, &e); err != nil {
		return e, fmt.Errorf("unmarshaling entry: %w", err)
	}
	return e, nil
}

func (c *codec) close() {
	c.enc.Close() //nolint:errcheck
	c.dec.Close()
}
