package clickhouse

import (
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildDSN(t *testing.T) {
	cfg := defaultConfig()
	for _, o := range []ClientOption{
		WithHost("ch.local"),
		WithPort(9440),
		WithDatabase("regimes"),
		WithCredentials("svc", "p@ss"),
		WithTimeouts(2*time.Second, 0),
		WithAsyncInsert(true, true),
	} {
		o(&cfg)
	}

	u, err := url.Parse(buildDSN(cfg))
	require.NoError(t, err)
	assert.Equal(t, "clickhouse", u.Scheme)
	assert.Equal(t, "ch.local:9440", u.Host)
	assert.Equal(t, "/regimes", u.Path)
	assert.Equal(t, "svc", u.User.Username())
	pw, _ := u.User.Password()
	assert.Equal(t, "p@ss", pw)
	assert.Equal(t, "2s", u.Query().Get("dial_timeout"))
	assert.Equal(t, "30s", u.Query().Get("read_timeout"))
	assert.Equal(t, "1", u.Query().Get("wait_for_async_insert"))
}

func TestNewClientRequiresHost(t *testing.T) {
	_, err := NewClient()
	assert.Error(t, err)
}

func TestTable(t *testing.T) {
	assert.Equal(t, "regimes.daily_bars", FromDB(nil, "regimes").Table("daily_bars"))
	assert.Equal(t, "daily_bars", FromDB(nil, "").Table("daily_bars"))
}
