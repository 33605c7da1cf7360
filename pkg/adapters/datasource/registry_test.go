package datasource

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/dataquay/pkg/apperrors"
	"github.com/ekaya-inc/dataquay/pkg/config"
)

func TestNewRejectsUnknownType(t *testing.T) {
	cfg := &config.SourceConfig{
		SourceType: config.SourceTypePostgres,
		Name:       "pg",
		Host:       "localhost",
	}
	// The concrete adapters are not imported in this package's tests, so
	// the registry has no postgres factory here.
	_, err := New(context.Background(), cfg, zap.NewNop())
	require.Error(t, err)

	var confErr *apperrors.ConfigurationError
	assert.ErrorAs(t, err, &confErr)
}

func TestNewValidatesConfigFirst(t *testing.T) {
	cfg := &config.SourceConfig{SourceType: config.SourceTypeSQLite, Name: ""}
	_, err := New(context.Background(), cfg, zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "name")
}

func TestRegisterAndResolve(t *testing.T) {
	mock := &MockSource{NameValue: "fake", TypeValue: "fake-test"}
	Register("fake-test", func(ctx context.Context, cfg *config.SourceConfig, logger *zap.Logger) (DataSource, error) {
		return mock, nil
	})

	assert.Contains(t, RegisteredTypes(), "fake-test")

	assert.PanicsWithValue(t,
		`datasource: factory for "fake-test" registered twice`,
		func() { Register("fake-test", nil) })
}
