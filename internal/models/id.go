// Package models defines the identifier value objects shared across vidpipe.
package models

import (
	"database/sql/driver"
	"fmt"

	"github.com/google/uuid"
)

// VideoID uniquely identifies a video submitted for processing.
// Rendered as a canonical 128-bit UUID string.
type VideoID struct {
	value uuid.UUID
}

// NewVideoID generates a fresh VideoID.
func NewVideoID() VideoID {
	return VideoID{value: uuid.New()}
}

// ParseVideoID parses a canonical UUID string into a VideoID.
func ParseVideoID(s string) (VideoID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return VideoID{}, fmt.Errorf("invalid video ID: %w", err)
	}
	return VideoID{value: id}, nil
}

// String returns the canonical UUID string.
func (v VideoID) String() string {
	return v.value.String()
}

// IsZero returns true if the ID is unset.
func (v VideoID) IsZero() bool {
	return v.value == uuid.Nil
}

// MarshalJSON implements json.Marshaler.
func (v VideoID) MarshalJSON() ([]byte, error) {
	return []byte(`"` + v.String() + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (v *VideoID) UnmarshalJSON(data []byte) error {
	id, err := unmarshalUUID(data, "video ID")
	if err != nil {
		return err
	}
	v.value = id
	return nil
}

// PipelineID uniquely identifies one pipeline execution.
// Generated fresh at pipeline construction and never reused.
type PipelineID struct {
	value uuid.UUID
}

// NewPipelineID generates a fresh PipelineID.
func NewPipelineID() PipelineID {
	return PipelineID{value: uuid.New()}
}

// ParsePipelineID parses a canonical UUID string into a PipelineID.
func ParsePipelineID(s string) (PipelineID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return PipelineID{}, fmt.Errorf("invalid pipeline ID: %w", err)
	}
	return PipelineID{value: id}, nil
}

// String returns the canonical UUID string.
func (p PipelineID) String() string {
	return p.value.String()
}

// IsZero returns true if the ID is unset.
func (p PipelineID) IsZero() bool {
	return p.value == uuid.Nil
}

// MarshalJSON implements json.Marshaler.
func (p PipelineID) MarshalJSON() ([]byte, error) {
	return []byte(`"` + p.String() + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (p *PipelineID) UnmarshalJSON(data []byte) error {
	id, err := unmarshalUUID(data, "pipeline ID")
	if err != nil {
		return err
	}
	p.value = id
	return nil
}

// Value implements driver.Valuer for database storage.
func (p PipelineID) Value() (driver.Value, error) {
	if p.IsZero() {
		return nil, nil
	}
	return p.String(), nil
}

// Scan implements sql.Scanner for database retrieval.
func (p *PipelineID) Scan(value any) error {
	if value == nil {
		*p = PipelineID{}
		return nil
	}
	switch v := value.(type) {
	case string:
		id, err := uuid.Parse(v)
		if err != nil {
			return fmt.Errorf("scanning pipeline ID: %w", err)
		}
		p.value = id
	case []byte:
		id, err := uuid.Parse(string(v))
		if err != nil {
			return fmt.Errorf("scanning pipeline ID: %w", err)
		}
		p.value = id
	default:
		return fmt.Errorf("unsupported type for pipeline ID: %T", value)
	}
	return nil
}

// GormDataType returns the GORM column type for PipelineID.
func (PipelineID) GormDataType() string {
	return "varchar(36)"
}

func unmarshalUUID(data []byte, what string) (uuid.UUID, error) {
	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return uuid.Nil, fmt.Errorf("invalid %s JSON: %s", what, string(data))
	}
	id, err := uuid.Parse(string(data[1 : len(data)-1]))
	if err != nil {
		return uuid.Nil, fmt.Errorf("parsing %s: %w", what, err)
	}
	return id, nil
}
