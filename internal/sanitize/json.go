package sanitize

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

var ErrTrailingData = errors.New("unexpected data after top-level value")

// Position inside an open object or array
type frame struct {
	object  bool
	written int
	wantKey bool
}

// JSON rewrites a JSON document cleaning every string value
// Object keys, key order, array order and number literals are preserved byte for byte
func JSON(data []byte) ([]byte, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var (
		out   bytes.Buffer
		stack []*frame
		done  bool
	)

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("malformed json: %w", err)
		}
		if done {
			return nil, ErrTrailingData
		}

		var top *frame
		if len(stack) > 0 {
			top = stack[len(stack)-1]
		}

		// Closing delimiters end the current container
		if d, ok := tok.(json.Delim); ok && (d == '}' || d == ']') {
			out.WriteByte(byte(d))
			stack = stack[:len(stack)-1]
			done = len(stack) == 0
			continue
		}

		// Object key
		if top != nil && top.object && top.wantKey {
			key, ok := tok.(string)
			if !ok {
				return nil, fmt.Errorf("malformed json: object key is %T", tok)
			}
			if top.written > 0 {
				out.WriteByte(',')
			}
			if err := writeString(&out, key); err != nil {
				return nil, err
			}
			top.wantKey = false
			continue
		}

		// Value: write separator and account it in the parent
		if top != nil {
			switch {
			case top.object:
				out.WriteByte(':')
				top.wantKey = true
			case top.written > 0:
				out.WriteByte(',')
			}
			top.written++
		}

		switch v := tok.(type) {
		case json.Delim:
			out.WriteByte(byte(v))
			stack = append(stack, &frame{object: v == '{', wantKey: v == '{'})
			continue
		case string:
			err = writeString(&out, String(v))
		case json.Number:
			out.WriteString(v.String())
		case bool:
			if v {
				out.WriteString("true")
			} else {
				out.WriteString("false")
			}
		case nil:
			out.WriteString("null")
		default:
			err = fmt.Errorf("malformed json: unexpected token %T", tok)
		}
		if err != nil {
			return nil, err
		}

		done = len(stack) == 0
	}

	if !done {
		return nil, fmt.Errorf("malformed json: %w", io.ErrUnexpectedEOF)
	}

	return out.Bytes(), nil
}

// Write s as JSON string literal without HTML escaping
func writeString(buf *bytes.Buffer, s string) error {
	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return err
	}
	buf.Write(bytes.TrimSuffix(tmp.Bytes(), []byte("\n")))
	return nil
}
