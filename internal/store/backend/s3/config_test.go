package s3

import (
	"context"
	"testing"

	"github.com/go-kit/log"
	"github.com/stretchr/testify/assert"
)

func TestNewRequiresBucketAndRegion(t *testing.T) {
	_, err := New(context.Background(), log.NewNopLogger(), Config{Region: "eu-west-1"})
	assert.Error(t, err)

	_, err = New(context.Background(), log.NewNopLogger(), Config{Bucket: "backdrop"})
	assert.Error(t, err)
}
