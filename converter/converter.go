// Package converter provides the serialization used for checkpoint payloads.
package converter

// Converter serializes and deserializes checkpoint payloads.
type Converter interface {
	To(v any) ([]byte, error)
	From(data []byte, vptr any) error
}

// DefaultConverter is used whenever no explicit converter is configured.
var DefaultConverter Converter = &jsonConverter{}
