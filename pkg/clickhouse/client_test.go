package clickhouse

import (
	"testing"
	"time"

	ch "github.com/ClickHouse/clickhouse-go/v2"
	"github.com/stretchr/testify/assert"
)

func TestBuildOptions(t *testing.T) {
	cfg := defaultClientConfig()
	for _, opt := range []ClientOption{
		WithHost("ch.local"),
		WithPort(8123),
		WithHTTP(true),
		WithCredentials("mirror", "secret"),
		WithAsyncInsert(true, false),
		WithMaxExecutionTime(30 * time.Second),
	} {
		opt(cfg)
	}

	o := buildOptions(cfg)
	assert.Equal(t, []string{"ch.local:8123"}, o.Addr)
	assert.Equal(t, ch.HTTP, o.Protocol)
	assert.Equal(t, "mirror", o.Auth.Username)
	assert.Equal(t, "default", o.Auth.Database)
	assert.Equal(t, 30, o.Settings["max_execution_time"])
	assert.Equal(t, 1, o.Settings["async_insert"])
	assert.Equal(t, 0, o.Settings["wait_for_async_insert"])
	assert.Equal(t, 10, o.MaxOpenConns)
}

func TestBuildOptions_NativeByDefault(t *testing.T) {
	cfg := defaultClientConfig()
	WithHost("::1")(cfg)

	o := buildOptions(cfg)
	assert.Equal(t, ch.Native, o.Protocol)
	assert.Equal(t, []string{"[::1]:9000"}, o.Addr)
	assert.Empty(t, o.Settings)
}

func TestNewClient_RequiresHost(t *testing.T) {
	_, err := NewClient()
	assert.Error(t, err)
}
