// Package id provides the entity id generation capability. Alert and case
// ids are prefixed strings, globally unique and assigned once at creation.
package id

import (
	"strings"

	"github.com/google/uuid"
)

const (
	AlertPrefix = "alert_"
	CasePrefix  = "case_"
)

// Generator mints prefixed entity ids. Injected so tests can pin ids.
type Generator interface {
	AlertID() string
	CaseID() string
}

type uuidGenerator struct{}

// NewGenerator returns the production UUID-backed generator.
func NewGenerator() Generator {
	return uuidGenerator{}
}

func (uuidGenerator) AlertID() string {
	return AlertPrefix + random()
}

func (uuidGenerator) CaseID() string {
	return CasePrefix + random()
}

func random() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// Fixed is a deterministic Generator for tests.
type Fixed struct {
	Alert string
	Case  string
}

func (f Fixed) AlertID() string { return f.Alert }
func (f Fixed) CaseID() string  { return f.Case }
