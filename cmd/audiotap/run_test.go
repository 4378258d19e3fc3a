package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/petems/audiotap/internal/delivery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionPath(t *testing.T) {
	assert.Equal(t, "out.wav", sessionPath("out.wav", 1))
	assert.Equal(t, "out-2.wav", sessionPath("out.wav", 2))
	assert.Equal(t, "/tmp/rec/out-3.wav", sessionPath("/tmp/rec/out.wav", 3))
	assert.Equal(t, "noext-2", sessionPath("noext", 2))
}

func TestConsumerFactoryNumbersSessions(t *testing.T) {
	dir := t.TempDir()
	factory := consumerFactory(filepath.Join(dir, "cap.wav"), nil)

	for i := 0; i < 2; i++ {
		c, err := factory()
		require.NoError(t, err)
		require.NoError(t, c.Consume(delivery.EncodePCM16LE([]int16{1, 2})))
		require.NoError(t, c.(interface{ Close() error }).Close())
	}

	for _, name := range []string{"cap.wav", "cap-2.wav"} {
		_, err := os.Stat(filepath.Join(dir, name))
		assert.NoError(t, err, name)
	}
}
