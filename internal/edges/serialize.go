package edges

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// Marshal renders edges as a JSON array of {caller, callee} objects.
// A nil or empty slice renders as [].
func Marshal(edges []Edge) ([]byte, error) {
	return encode(edges, "")
}

// MarshalIndent is Marshal with two-space indentation.
func MarshalIndent(edges []Edge) ([]byte, error) {
	return encode(edges, "  ")
}

// Write writes the JSON document followed by a single newline.
func Write(w io.Writer, edges []Edge, indent bool) error {
	var (
		data []byte
		err  error
	)
	if indent {
		data, err = MarshalIndent(edges)
	} else {
		data, err = Marshal(edges)
	}
	if err != nil {
		return err
	}
	if _, err := w.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("writing edges: %w", err)
	}
	return nil
}

func encode(edges []Edge, indent string) ([]byte, error) {
	if edges == nil {
		edges = []Edge{}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if indent != "" {
		enc.SetIndent("", indent)
	}
	if err := enc.Encode(edges); err != nil {
		return nil, fmt.Errorf("encoding edges: %w", err)
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}
