// Package codec centralizes structured artifact encoding.
//
// Encoded artifacts are self-describing: Encode prefixes the payload with the
// codec name and Decode selects the codec by that name. Changing the default
// codec therefore never breaks artifacts written by an older default.
package codec

import (
	"bytes"
	"errors"
	"fmt"
)

// ErrUnknownCodec is returned when an artifact names a codec that is not built in.
var ErrUnknownCodec = errors.New("unknown codec")

// Codec encodes/decodes values.
// Implementations must be safe for concurrent use.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
	Name() string
}

// ByName returns a built-in codec by its stable name.
func ByName(name string) (Codec, bool) {
	switch name {
	case "json":
		return JSON{}, true
	case "go-json":
		return GoJSON{}, true
	default:
		return nil, false
	}
}

// Encode marshals v with c and prefixes the result with the codec name
// and a newline. A nil c selects Default.
func Encode(c Codec, v any) ([]byte, error) {
	if c == nil {
		c = Default
	}
	payload, err := c.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("codec %s: %w", c.Name(), err)
	}
	out := make([]byte, 0, len(c.Name())+1+len(payload))
	out = append(out, c.Name()...)
	out = append(out, '\n')
	return append(out, payload...), nil
}

// Decode reads data written by Encode into v and returns the codec that was used.
func Decode(data []byte, v any) (Codec, error) {
	name, payload, ok := bytes.Cut(data, []byte{'\n'})
	if !ok {
		return nil, fmt.Errorf("%w: missing codec header", ErrUnknownCodec)
	}
	c, found := ByName(string(name))
	if !found {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCodec, name)
	}
	if err := c.Unmarshal(payload, v); err != nil {
		return nil, fmt.Errorf("codec %s: %w", c.Name(), err)
	}
	return c, nil
}
