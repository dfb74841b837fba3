package factory

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSinkFromDSNSQLite(t *testing.T) {
	sink, err := NewSinkFromDSN("sqlite://" + filepath.Join(t.TempDir(), "h.db"))
	require.NoError(t, err)
	require.NoError(t, sink.Close())

	sink, err = NewSinkFromDSN(filepath.Join(t.TempDir(), "bare.db"))
	require.NoError(t, err)
	require.NoError(t, sink.Close())
}

func TestNewSinkFromDSNRejectsBadInput(t *testing.T) {
	_, err := NewSinkFromDSN("")
	assert.Error(t, err)

	_, err = NewSinkFromDSN("kafka://broker:9092/topic")
	assert.Error(t, err)

	// opensearch needs an index path
	_, err = NewSinkFromDSN("opensearch://localhost:9200")
	assert.Error(t, err)
}
