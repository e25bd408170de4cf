package service

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// AnswerKind tells which shape a submitted payload had.
type AnswerKind int

const (
	// AnswerScalar is any payload that is not an object carrying an "answer" key.
	AnswerScalar AnswerKind = iota
	// AnswerKeyed is an object whose "answer" key holds the submitted value.
	AnswerKeyed
)

func (k AnswerKind) String() string {
	if k == AnswerKeyed {
		return "keyed"
	}
	return "scalar"
}

// Answer is a submission payload decoded once at the grading boundary.
type Answer struct {
	Kind AnswerKind
	// Value is the submitted value in string form, trimmed.
	Value string
	// Document is the decoded JSON of the submitted value.
	Document interface{}
	// Raw is the payload exactly as received.
	Raw json.RawMessage
}

var errEmptyPayload = errors.New("answer payload is required")

// DecodeAnswer classifies a raw JSON payload. An object with an "answer" key yields a
// keyed answer whose value is that field; anything else is a scalar answer made of the
// whole payload.
func DecodeAnswer(raw json.RawMessage) (Answer, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return Answer{}, errEmptyPayload
	}

	decoder := json.NewDecoder(bytes.NewReader(trimmed))
	decoder.UseNumber()

	var document interface{}
	if err := decoder.Decode(&document); err != nil {
		return Answer{}, fmt.Errorf("answer payload is not valid JSON: %w", err)
	}

	answer := Answer{Kind: AnswerScalar, Document: document, Raw: append(json.RawMessage(nil), trimmed...)}
	if object, ok := document.(map[string]interface{}); ok {
		if value, exists := object["answer"]; exists {
			answer.Kind = AnswerKeyed
			answer.Document = value
		}
	}
	answer.Value = strings.TrimSpace(stringify(answer.Document))

	return answer, nil
}

func stringify(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case json.Number:
		return v.String()
	case bool:
		if v {
			return "true"
		}
		return "false"
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(encoded)
	}
}
