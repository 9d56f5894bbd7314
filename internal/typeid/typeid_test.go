package typeid

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidate(t *testing.T) {
	t.Run("should accept a freshly generated id", func(t *testing.T) {
		assert.NoError(t, Validate(NewRecordID(), PrefixRecord))
		assert.NoError(t, Validate(NewRunID(), PrefixRun))
	})

	t.Run("should reject a mismatched prefix", func(t *testing.T) {
		assert.Error(t, Validate(NewOpID(), PrefixRecord))
	})

	t.Run("should reject garbage", func(t *testing.T) {
		assert.Error(t, Validate("not an id", PrefixRecord))
	})
}
