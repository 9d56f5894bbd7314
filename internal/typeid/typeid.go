package typeid

import (
	"fmt"

	"go.jetify.com/typeid/v2"
)

const (
	PrefixOperator = "operator"
	PrefixRecord   = "design"
	PrefixOp       = "op"
	PrefixRun      = "run"
	PrefixSession  = "edit"
)

func New(prefix string) string {
	id := typeid.MustGenerate(prefix)
	return id.String()
}

func NewOperatorID() string { return New(PrefixOperator) }
func NewRecordID() string   { return New(PrefixRecord) }
func NewOpID() string       { return New(PrefixOp) }
func NewRunID() string      { return New(PrefixRun) }
func NewSessionID() string  { return New(PrefixSession) }

func Validate(id, expectedPrefix string) error {
	parsed, err := typeid.Parse(id)
	if err != nil {
		return fmt.Errorf("invalid typeid %q: %w", id, err)
	}
	if parsed.Prefix() != expectedPrefix {
		return fmt.Errorf("expected prefix %q but got %q in id %q", expectedPrefix, parsed.Prefix(), id)
	}
	return nil
}
