package ingest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ashureev/devpulse/internal/domain"
)

// RawActivity is an activity as submitted by a producer, before validation.
// Timestamp is kept undecoded because producers send it in several shapes.
type RawActivity struct {
	ID           string           `json:"id"`
	UserID       string           `json:"userId"`
	Timestamp    json.RawMessage  `json:"timestamp"`
	ActivityType string           `json:"activityType"`
	ProjectName  string           `json:"projectName"`
	FilePath     string           `json:"filePath"`
	Metadata     *domain.Metadata `json:"metadata"`
}

// rawTimestampObject is the {seconds, nanoseconds} form emitted by document
// store SDKs. Both the plain and underscore-prefixed keys are accepted.
type rawTimestampObject struct {
	Seconds      *int64 `json:"seconds"`
	Nanoseconds  int64  `json:"nanoseconds"`
	USeconds     *int64 `json:"_seconds"`
	UNanoseconds int64  `json:"_nanoseconds"`
}

// DecodeActivity decodes and validates a single raw activity object.
func DecodeActivity(data []byte) (*domain.Activity, error) {
	raw, err := decodeRaw(data)
	if err != nil {
		return nil, err
	}
	return raw.ToActivity()
}

// DecodeBatch decodes a batch payload of the form {"activities": [...]}.
// Elements are decoded but not validated; see RawActivity.ToActivity.
func DecodeBatch(data []byte) ([]RawActivity, error) {
	var envelope struct {
		Activities json.RawMessage `json:"activities"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, invalid("", "payload is not a JSON object")
	}

	list := bytes.TrimSpace(envelope.Activities)
	if len(list) == 0 || list[0] != '[' {
		return nil, invalid("activities", "must be a list")
	}

	var elems []json.RawMessage
	if err := json.Unmarshal(list, &elems); err != nil {
		return nil, invalid("activities", "must be a list")
	}

	out := make([]RawActivity, 0, len(elems))
	for i, elem := range elems {
		raw, err := decodeRaw(elem)
		if err != nil {
			return nil, fmt.Errorf("activity %d: %w", i, err)
		}
		out = append(out, raw)
	}
	return out, nil
}

func decodeRaw(data []byte) (RawActivity, error) {
	var raw RawActivity
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return raw, invalid("", "must be a JSON object")
	}
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return raw, invalid(typeErr.Field, "has the wrong type")
		}
		return raw, invalid("", "malformed JSON")
	}
	return raw, nil
}

// ToActivity validates r and converts it to a typed activity. Required fields
// are userId, timestamp, activityType, projectName and filePath.
func (r RawActivity) ToActivity() (*domain.Activity, error) {
	if strings.TrimSpace(r.UserID) == "" {
		return nil, invalid("userId", "is required")
	}
	ts, err := parseTimestamp(r.Timestamp)
	if err != nil {
		return nil, err
	}
	kind := domain.ActivityKind(r.ActivityType)
	if r.ActivityType == "" {
		return nil, invalid("activityType", "is required")
	}
	if !kind.Valid() {
		return nil, invalid("activityType", fmt.Sprintf("%q is not a known kind", r.ActivityType))
	}
	if r.ProjectName == "" {
		return nil, invalid("projectName", "is required")
	}
	if r.FilePath == "" {
		return nil, invalid("filePath", "is required")
	}

	return &domain.Activity{
		ID:          r.ID,
		UserID:      r.UserID,
		Timestamp:   ts,
		Kind:        kind,
		ProjectName: r.ProjectName,
		FilePath:    r.FilePath,
		Metadata:    r.Metadata,
	}, nil
}

// parseTimestamp accepts an RFC 3339 string, epoch milliseconds, or a
// {seconds, nanoseconds} object. Numeric forms are returned in UTC; strings
// keep their own offset.
func parseTimestamp(data json.RawMessage) (time.Time, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return time.Time{}, invalid("timestamp", "is required")
	}

	switch c := data[0]; {
	case c == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return time.Time{}, invalid("timestamp", "is not a valid string")
		}
		ts, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return time.Time{}, invalid("timestamp", "is not an RFC 3339 time")
		}
		return ts, nil

	case c == '-' || (c >= '0' && c <= '9'):
		var ms json.Number
		if err := json.Unmarshal(data, &ms); err != nil {
			return time.Time{}, invalid("timestamp", "is not a number")
		}
		n, err := ms.Int64()
		if err != nil {
			f, ferr := ms.Float64()
			if ferr != nil {
				return time.Time{}, invalid("timestamp", "is not a number")
			}
			n = int64(f)
		}
		return time.UnixMilli(n).UTC(), nil

	case c == '{':
		var obj rawTimestampObject
		if err := json.Unmarshal(data, &obj); err != nil {
			return time.Time{}, invalid("timestamp", "is not a valid timestamp object")
		}
		switch {
		case obj.Seconds != nil:
			return time.Unix(*obj.Seconds, obj.Nanoseconds).UTC(), nil
		case obj.USeconds != nil:
			return time.Unix(*obj.USeconds, obj.UNanoseconds).UTC(), nil
		}
		return time.Time{}, invalid("timestamp", "object has no seconds")
	}

	return time.Time{}, invalid("timestamp", "has an unsupported shape")
}
