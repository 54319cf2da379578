package models

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// OutcomeStatus describes what happened to a file after policy evaluation.
type OutcomeStatus string

const (
	// OutcomeTested means the file was evaluated without producing output.
	OutcomeTested OutcomeStatus = "tested"
	// OutcomeConverted means ffmpeg ran and produced a new file.
	OutcomeConverted OutcomeStatus = "converted"
	// OutcomeSkipped means no policy required work on the file.
	OutcomeSkipped OutcomeStatus = "skipped"
	// OutcomeFailed means probing or conversion returned an error.
	OutcomeFailed OutcomeStatus = "failed"
	// OutcomeDeferred means the host was too loaded to start work.
	OutcomeDeferred OutcomeStatus = "deferred"
)

// Valid reports whether the status is one of the known values.
func (s OutcomeStatus) Valid() bool {
	switch s {
	case OutcomeTested, OutcomeConverted, OutcomeSkipped, OutcomeFailed, OutcomeDeferred:
		return true
	}
	return false
}

// Outcome records a single evaluation or conversion of a media file.
type Outcome struct {
	BaseModel

	// Path is the absolute path of the source file.
	Path string `gorm:"size:4096;not null;index" json:"path"`

	// Policy names the policy that triggered work, empty when none matched.
	Policy string `gorm:"size:64;index" json:"policy,omitempty"`

	// Verdict reports whether any policy wanted to process the file.
	Verdict bool `json:"verdict"`

	// Status is the terminal state of this run.
	Status OutcomeStatus `gorm:"size:16;not null;index" json:"status"`

	// Reason is a human readable explanation of the verdict.
	Reason string `gorm:"size:1024" json:"reason,omitempty"`

	// StreamsChanged counts streams that were re-encoded or removed.
	StreamsChanged int `json:"streams_changed"`

	// Duration is how long the run took.
	Duration time.Duration `json:"duration"`
}

// TableName returns the database table name.
func (Outcome) TableName() string {
	return "outcomes"
}

// Validate checks the outcome for required fields.
func (o *Outcome) Validate() error {
	if o.Path == "" {
		return fmt.Errorf("outcome path is required")
	}
	if !o.Status.Valid() {
		return fmt.Errorf("invalid outcome status: %q", o.Status)
	}
	return nil
}

// BeforeCreate is a GORM hook that validates the outcome and generates a ULID.
func (o *Outcome) BeforeCreate(tx *gorm.DB) error {
	if err := o.BaseModel.BeforeCreate(tx); err != nil {
		return err
	}
	return o.Validate()
}
