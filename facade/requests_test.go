// File: facade/requests_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package facade_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/momentics/hioload-requests/facade"
)

func TestDefaultConfig(t *testing.T) {
	cfg := facade.DefaultConfig()
	assert.Equal(t, 10, cfg.BatchLimit)
	assert.Equal(t, 10*time.Second, cfg.ConnectTimeout)
	assert.Equal(t, 30*time.Second, cfg.TransferTimeout)
	assert.Equal(t, 32*1024, cfg.ReadBufferSize)
	assert.Equal(t, int64(16*1024*1024), cfg.MaxResponseSize)
}
