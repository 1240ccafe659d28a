package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestObjectKey(t *testing.T) {
	assert.Equal(t, "backgroundConfig.json", ObjectKey("", "/backgroundConfig"))
	assert.Equal(t, "displays/backgroundConfig.json", ObjectKey("displays/", "/backgroundConfig"))
	assert.Equal(t, "a/b.json", ObjectKey("", "//a/b"))
}
