package storage

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// codec handles optional zstd compression of payloads at rest.
type codec struct {
	enabled bool
	enc     *zstd.Encoder
	dec     *zstd.Decoder
}

func newCodec(enabled bool) (*codec, error) {
	if !enabled {
		return &codec{}, nil
	}
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderConcurrency(1))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	return &codec{enabled: true, enc: enc, dec: dec}, nil
}

func (c *codec) encode(payload []byte) []byte {
	if !c.enabled {
		return payload
	}
	return c.enc.EncodeAll(payload, nil)
}

func (c *codec) decode(data []byte) ([]byte, error) {
	if !c.enabled {
		return data, nil
	}
	out, err := c.dec.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("zstd decompress: %w", err)
	}
	return out, nil
}

func (c *codec) close() {
	if c.enc != nil {
		c.enc.Close()
	}
	if c.dec != nil {
		c.dec.Close()
	}
}
