package diff

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/bytedance/sonic"
)

var numberAPI = sonic.Config{UseNumber: true}.Froze()

// UnmarshalJSON decodes the wire form: strings, positive and negative integers
func (d *Diff) UnmarshalJSON(data []byte) error {
	var raw []interface{}
	if err := numberAPI.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: %v", ErrBadToken, err)
	}
	tokens := make(Diff, 0, len(raw))
	for i, item := range raw {
		tok, err := decodeToken(item)
		if err != nil {
			return fmt.Errorf("token %d: %w", i, err)
		}
		tokens = append(tokens, tok)
	}
	*d = tokens
	return nil
}

// MarshalJSON encodes tokens back to the wire form
func (d Diff) MarshalJSON() ([]byte, error) {
	raw := make([]interface{}, 0, len(d))
	for _, tok := range d {
		switch tok.Kind {
		case Literal:
			raw = append(raw, tok.Text)
		case Copy:
			raw = append(raw, tok.Count)
		case Skip:
			raw = append(raw, -tok.Count)
		default:
			return nil, ErrBadToken
		}
	}
	return sonic.Marshal(raw)
}

func decodeToken(item interface{}) (Token, error) {
	switch v := item.(type) {
	case string:
		return Lit(v), nil
	case json.Number:
		n, err := strconv.Atoi(v.String())
		if err != nil {
			return Token{}, fmt.Errorf("%w: non-integer count %s", ErrBadToken, v)
		}
		if n < 0 {
			return SkipN(-n), nil
		}
		return CopyN(n), nil
	default:
		return Token{}, fmt.Errorf("%w: unexpected %T", ErrBadToken, item)
	}
}
