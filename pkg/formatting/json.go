package formatting

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrDecodeFailed is returned when a payload holds no decodable JSON value.
var ErrDecodeFailed = errors.New("payload is not valid JSON")

// DecodeJSON unmarshals data into T. Surrounding whitespace is ignored; any
// other framing is a decode failure.
func DecodeJSON[T any](data []byte) (T, error) {
	var out T
	data = bytes.TrimSpace(data)

	if err := json.Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("%w: %.120q", ErrDecodeFailed, data)
	}
	return out, nil
}
