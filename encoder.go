package agent

import (
	"encoding/json"
	"fmt"

	"github.com/bytedance/sonic"
)

// Encoder serializes task records and pass results.
type Encoder interface {
	Encode(any) ([]byte, error)
	Decode([]byte, any) error
}

// JSONEncoder writes with encoding/json and reads with sonic.
type JSONEncoder struct{}

func (*JSONEncoder) Encode(v any) ([]byte, error) { return json.Marshal(v) }

func (*JSONEncoder) Decode(data []byte, v any) error { return sonic.Unmarshal(data, v) }

// encodeTask renders t as a stored record.
func encodeTask(e Encoder, t Task) ([]byte, error) {
	raw, err := e.Encode(t)
	if err != nil {
		return nil, fmt.Errorf("%w: encode task %q: %w", ErrInvalidTask, t.ID, err)
	}
	return raw, nil
}

// decodeTask parses a stored record. Records that do not decode or carry no
// id are reported as ErrInvalidTask, never as a store failure.
func decodeTask(e Encoder, raw []byte) (*Task, error) {
	var t Task
	if err := e.Decode(raw, &t); err != nil {
		return nil, fmt.Errorf("%w: decode record: %w", ErrInvalidTask, err)
	}
	if t.ID == "" {
		return nil, fmt.Errorf("%w: decoded record has no id", ErrInvalidTask)
	}
	return &t, nil
}

// EncodeResult renders a pass result for machine-readable output.
func EncodeResult(e Encoder, r PassResult) ([]byte, error) {
	if e == nil {
		e = &JSONEncoder{}
	}
	return e.Encode(resultRecord{
		RunID:   r.RunID,
		State:   string(r.State),
		TaskID:  r.TaskID,
		Goal:    r.Goal,
		Action:  string(r.Action),
		Output:  r.Output,
		Summary: r.Summary,
		Meta:    r.Meta,
	})
}

type resultRecord struct {
	RunID   string            `json:"run_id"`
	State   string            `json:"state"`
	TaskID  string            `json:"task_id,omitempty"`
	Goal    string            `json:"goal,omitempty"`
	Action  string            `json:"action,omitempty"`
	Output  string            `json:"output,omitempty"`
	Summary string            `json:"summary,omitempty"`
	Meta    map[string]string `json:"meta,omitempty"`
}
