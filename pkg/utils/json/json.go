// Package json is the JSON codec used for bootstrap reports and HTTP
// payloads. It uses sonic on amd64/arm64 and falls back to encoding/json
// elsewhere.
package json

import (
	stdjson "encoding/json"
	"io"
	"runtime"
	"sync/atomic"

	"github.com/bytedance/sonic"
)

// Encoder is a JSON stream encoder.
type Encoder interface {
	Encode(v any) error
	SetIndent(prefix, indent string)
}

// Decoder is a JSON stream decoder.
type Decoder interface {
	Decode(v any) error
}

type engine struct {
	name          string
	marshal       func(v any) ([]byte, error)
	marshalIndent func(v any, prefix, indent string) ([]byte, error)
	unmarshal     func(data []byte, v any) error
	newEncoder    func(w io.Writer) Encoder
	newDecoder    func(r io.Reader) Decoder
}

func sonicEngine(name string, api sonic.API) *engine {
	return &engine{
		name:          name,
		marshal:       api.Marshal,
		marshalIndent: api.MarshalIndent,
		unmarshal:     api.Unmarshal,
		newEncoder:    func(w io.Writer) Encoder { return api.NewEncoder(w) },
		newDecoder:    func(r io.Reader) Decoder { return api.NewDecoder(r) },
	}
}

var stdEngine = &engine{
	name:          "encoding/json",
	marshal:       stdjson.Marshal,
	marshalIndent: stdjson.MarshalIndent,
	unmarshal:     stdjson.Unmarshal,
	newEncoder:    func(w io.Writer) Encoder { return stdjson.NewEncoder(w) },
	newDecoder:    func(r io.Reader) Decoder { return stdjson.NewDecoder(r) },
}

var (
	current    atomic.Pointer[engine]
	usingSonic bool
)

func init() {
	// sonic 只支持 amd64 和 arm64
	usingSonic = runtime.GOARCH == "amd64" || runtime.GOARCH == "arm64"
	ConfigStandardMode()
}

// Marshal encodes v.
func Marshal(v any) ([]byte, error) { return current.Load().marshal(v) }

// MarshalIndent encodes v with indentation, for human-readable reports.
func MarshalIndent(v any, prefix, indent string) ([]byte, error) {
	return current.Load().marshalIndent(v, prefix, indent)
}

// Unmarshal decodes data into v.
func Unmarshal(data []byte, v any) error { return current.Load().unmarshal(data, v) }

// NewEncoder returns an encoder writing to w.
func NewEncoder(w io.Writer) Encoder { return current.Load().newEncoder(w) }

// NewDecoder returns a decoder reading from r.
func NewDecoder(r io.Reader) Decoder { return current.Load().newDecoder(r) }

// ConfigFastestMode switches sonic to its fastest mode, which skips some
// validation. Only use it for trusted input. No-op on the fallback.
func ConfigFastestMode() {
	if usingSonic {
		current.Store(sonicEngine("sonic-fastest", sonic.ConfigFastest))
	}
}

// ConfigStandardMode restores the default mode.
func ConfigStandardMode() {
	if usingSonic {
		current.Store(sonicEngine("sonic", sonic.ConfigDefault))
		return
	}
	current.Store(stdEngine)
}

// IsUsingSonic reports whether sonic backs the codec.
func IsUsingSonic() bool {
	return usingSonic
}

// Engine names the active implementation.
func Engine() string {
	return current.Load().name
}
