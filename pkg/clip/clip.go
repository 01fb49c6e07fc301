// Package clip contains the captured audio payload that is uploaded and
// played back, together with the codecs needed to produce and consume it.
package clip

import (
	"encoding/base64"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/xaionaro-go/remotemic/pkg/audio/types"
)

type Encoding string

const (
	EncodingBase64 = Encoding("base64")
)

type Format struct {
	SampleRate types.SampleRate
	Channels   types.Channel
	PCMFormat  types.PCMFormat
}

func (f Format) String() string {
	return fmt.Sprintf("%dHz/%dch/%s", f.SampleRate, f.Channels, f.PCMFormat)
}

// FrameSize returns the size of one sample of all channels, in bytes.
func (f Format) FrameSize() uint {
	return f.PCMFormat.Size() * uint(f.Channels)
}

// Clip is an immutable captured audio payload: a WAV container and its
// base64 form, computed once on creation.
type Clip struct {
	id        uuid.UUID
	data      []byte
	encoded   string
	sourceURI string
	format    Format
	createdAt time.Time
}

func New(
	id uuid.UUID,
	data []byte,
	sourceURI string,
	format Format,
) *Clip {
	dataCopy := make([]byte, len(data))
	copy(dataCopy, data)
	return &Clip{
		id:        id,
		data:      dataCopy,
		encoded:   base64.StdEncoding.EncodeToString(dataCopy),
		sourceURI: sourceURI,
		format:    format,
		createdAt: time.Now(),
	}
}

func (c *Clip) ID() uuid.UUID {
	return c.id
}

// Bytes returns a copy of the WAV container.
func (c *Clip) Bytes() []byte {
	result := make([]byte, len(c.data))
	copy(result, c.data)
	return result
}

func (c *Clip) Len() int {
	return len(c.data)
}

func (c *Clip) Encoding() Encoding {
	return EncodingBase64
}

func (c *Clip) Base64() string {
	return c.encoded
}

func (c *Clip) SourceURI() string {
	return c.sourceURI
}

func (c *Clip) Format() Format {
	return c.format
}

func (c *Clip) CreatedAt() time.Time {
	return c.createdAt
}

func (c *Clip) String() string {
	return fmt.Sprintf("clip %s (%d bytes, %s, %s)", c.id, len(c.data), c.format, c.sourceURI)
}

// Decode reverses the encoding of Base64.
func Decode(encoded string) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("unable to decode base64: %w", err)
	}
	return data, nil
}
