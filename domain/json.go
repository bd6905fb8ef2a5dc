package domain

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
)

var errNotScalar = errors.New("must be a string or a number")

// scalarString decodes a JSON string or number into its string form. null
// decodes to "".
func scalarString(data []byte) (string, error) {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
		return "", nil
	case data[0] == '"':
		var s string
		if err := sonic.Unmarshal(data, &s); err != nil {
			return "", err
		}
		return s, nil
	}
	for _, c := range data {
		if (c < '0' || c > '9') && c != '-' && c != '.' && c != 'e' && c != 'E' && c != '+' {
			return "", errNotScalar
		}
	}
	return string(data), nil
}

func isJSONString(data []byte) bool {
	data = bytes.TrimSpace(data)
	return len(data) > 0 && data[0] == '"'
}

// UnmarshalJSON accepts both `"42"` and `42`.
func (id *ID) UnmarshalJSON(data []byte) error {
	s, err := scalarString(data)
	if err != nil {
		return fmt.Errorf("id %w", err)
	}
	*id = ID(s)
	return nil
}

func copyExtra(fields map[string]sonic.NoCopyRawMessage) map[string]sonic.NoCopyRawMessage {
	if len(fields) == 0 {
		return nil
	}
	out := make(map[string]sonic.NoCopyRawMessage, len(fields))
	for k, v := range fields {
		out[k] = append(sonic.NoCopyRawMessage(nil), v...)
	}
	return out
}

// mergeExtra adds the passthrough fields to an encoded object. Modelled fields
// win over passthrough fields of the same name.
func mergeExtra(data []byte, extra map[string]sonic.NoCopyRawMessage, size int) ([]byte, error) {
	merged := make(map[string]sonic.NoCopyRawMessage, size+len(extra))
	if err := sonic.Unmarshal(data, &merged); err != nil {
		return nil, err
	}
	for k, v := range extra {
		if _, ok := merged[k]; !ok {
			merged[k] = v
		}
	}
	return sonic.ConfigStd.Marshal(merged)
}

var taskFields = [...]string{
	"id", "title", "description", "status", "priority", "assignee",
	"reporter", "due_date", "labels", "attachments", "comments",
}

type taskAlias Task

// UnmarshalJSON decodes the modelled fields and keeps everything else aside so
// that it survives a round trip to the remote. Numeric statuses decode to
// their decimal string, like ids.
func (t *Task) UnmarshalJSON(data []byte) error {
	var fields map[string]sonic.NoCopyRawMessage
	if err := sonic.Unmarshal(data, &fields); err != nil {
		return err
	}
	if raw, ok := fields["status"]; ok && !isJSONString(raw) {
		status, err := scalarString(raw)
		if err != nil {
			return fmt.Errorf("status %w", err)
		}
		quoted, err := sonic.Marshal(status)
		if err != nil {
			return err
		}
		fields["status"] = quoted
		if data, err = sonic.Marshal(fields); err != nil {
			return err
		}
	}
	var a taskAlias
	if err := sonic.Unmarshal(data, &a); err != nil {
		return err
	}
	for _, k := range taskFields {
		delete(fields, k)
	}
	*t = Task(a)
	t.extra = copyExtra(fields)
	return nil
}

// MarshalJSON writes the modelled fields followed by any passthrough fields.
func (t Task) MarshalJSON() ([]byte, error) {
	data, err := sonic.ConfigStd.Marshal(taskAlias(t))
	if err != nil || len(t.extra) == 0 {
		return data, err
	}
	return mergeExtra(data, t.extra, len(taskFields))
}

var commentFields = [...]string{"id", "commenter", "comment", "datetime"}

// Timestamps the admin backend has been seen to send. Layouts without a zone
// are read as UTC.
var datetimeLayouts = [...]string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// parseDatetime reads a comment timestamp. A value that is not a known
// timestamp is returned as raw JSON so it can be written back unchanged.
func parseDatetime(data []byte) (time.Time, sonic.NoCopyRawMessage) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return time.Time{}, nil
	}
	raw := append(sonic.NoCopyRawMessage(nil), data...)
	if !isJSONString(data) {
		return time.Time{}, raw
	}
	var s string
	if err := sonic.Unmarshal(data, &s); err != nil || s == "" {
		return time.Time{}, nil
	}
	for _, layout := range datetimeLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, raw
}

type commentWire struct {
	ID        ID                     `json:"id,omitempty"`
	Commenter string                 `json:"commenter"`
	Text      string                 `json:"comment"`
	Datetime  sonic.NoCopyRawMessage `json:"datetime,omitempty"`
}

// UnmarshalJSON decodes a comment, keeping unknown fields and unparseable
// timestamps for the round trip.
func (c *Comment) UnmarshalJSON(data []byte) error {
	var w commentWire
	if err := sonic.Unmarshal(data, &w); err != nil {
		return err
	}
	var fields map[string]sonic.NoCopyRawMessage
	if err := sonic.Unmarshal(data, &fields); err != nil {
		return err
	}
	for _, k := range commentFields {
		delete(fields, k)
	}
	*c = Comment{ID: w.ID, Commenter: w.Commenter, Text: w.Text}
	c.Datetime, c.rawDatetime = parseDatetime(w.Datetime)
	c.extra = copyExtra(fields)
	return nil
}

// MarshalJSON writes the modelled fields followed by any passthrough fields.
func (c Comment) MarshalJSON() ([]byte, error) {
	w := commentWire{ID: c.ID, Commenter: c.Commenter, Text: c.Text}
	if c.Datetime.IsZero() && len(c.rawDatetime) > 0 {
		w.Datetime = c.rawDatetime
	} else {
		ts, err := c.Datetime.MarshalJSON()
		if err != nil {
			return nil, err
		}
		w.Datetime = ts
	}
	data, err := sonic.ConfigStd.Marshal(w)
	if err != nil || len(c.extra) == 0 {
		return data, err
	}
	return mergeExtra(data, c.extra, len(commentFields))
}
