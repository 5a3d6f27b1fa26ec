package core

import (
	"slices"
	"sync"
)

// DefaultRegistry maps formats to codecs.  Registration may race with
// lookups from running transforms.
type DefaultRegistry struct {
	mu       sync.RWMutex
	decoders map[Format]Decoder
	encoders map[Format]Encoder
}

func NewRegistry() *DefaultRegistry {
	return &DefaultRegistry{
		decoders: make(map[Format]Decoder),
		encoders: make(map[Format]Encoder),
	}
}

// RegisterDecoder replaces any decoder already registered for f.
func (r *DefaultRegistry) RegisterDecoder(f Format, d Decoder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.decoders[f] = d
}

// RegisterEncoder replaces any encoder already registered for f.
func (r *DefaultRegistry) RegisterEncoder(f Format, e Encoder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.encoders[f] = e
}

func (r *DefaultRegistry) DecoderFor(f Format) (Decoder, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.decoders[f]
	return d, ok
}

func (r *DefaultRegistry) EncoderFor(f Format) (Encoder, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.encoders[f]
	return e, ok
}

// Decodable lists the formats with a decoder, sorted by name.
func (r *DefaultRegistry) Decodable() []Format {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.decoders)
}

// Encodable lists the formats with an encoder, sorted by name.
func (r *DefaultRegistry) Encodable() []Format {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.encoders)
}

func sortedKeys[V any](m map[Format]V) []Format {
	out := make([]Format, 0, len(m))
	for f := range m {
		out = append(out, f)
	}
	slices.Sort(out)
	return out
}

// OutputFormat returns the format a source in f is written as: f itself when
// an encoder is registered, PNG otherwise.
func OutputFormat(r Registry, f Format) Format {
	if _, ok := r.EncoderFor(f); ok {
		return f
	}
	return FormatPNG
}
