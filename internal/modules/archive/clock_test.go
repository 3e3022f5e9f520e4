package archive_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/georgemunganga/retail-billing/internal/modules/archive"
)

func TestIDClock_Monotonic(t *testing.T) {
	now := time.UnixMilli(1000)
	c := archive.NewIDClock(func() time.Time { return now })

	a, _ := c.Next()
	b, _ := c.Next()
	assert.Equal(t, int64(1000), a)
	assert.Equal(t, int64(1001), b)

	now = time.UnixMilli(5000)
	d, created := c.Next()
	assert.Equal(t, int64(5000), d)
	assert.Equal(t, now, created)

	c.Observe(9000)
	e, _ := c.Next()
	assert.Equal(t, int64(9001), e)
}
