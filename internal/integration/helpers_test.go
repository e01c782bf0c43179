// Package integration runs fire-server in-process and drives it through the
// same clients fire-cli uses.
//
// server.Run reconfigures the global logger, so these tests run sequentially.
package integration

import (
	"context"
	"net"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/fire-watch/internal/config"
	"github.com/oshokin/fire-watch/internal/service/server"
)

// instance is one running fire-server.
type instance struct {
	httpAddress   string
	healthAddress string
	configPath    string
}

// reservePort returns a free loopback address.
func reservePort(t *testing.T) string {
	t.Helper()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	addr := l.Addr().String()
	require.NoError(t, l.Close())

	return addr
}

// newInstance writes a settings file storing history in databasePath.
func newInstance(t *testing.T, databasePath string) *instance {
	t.Helper()

	dir := t.TempDir()

	inst := &instance{
		httpAddress:   reservePort(t),
		healthAddress: reservePort(t),
		configPath:    filepath.Join(dir, config.DefaultConfigFilename),
	}

	settings := config.Default()
	settings.HTTPAddress = inst.httpAddress
	settings.HealthAddress = inst.healthAddress
	settings.DatabasePath = databasePath
	settings.StaticDir = filepath.Join(dir, "static")
	settings.Client.ServerURL = inst.serverURL()
	settings.Client.Timeout = 3 * time.Second

	require.NoError(t, config.Save(inst.configPath, settings))

	return inst
}

func (i *instance) serverURL() string {
	return "http://" + i.httpAddress
}

// start runs the server until the returned stop function is called.
func (i *instance) start(t *testing.T) (stop func()) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	go func() {
		done <- server.Run(ctx, &server.Options{ConfigPath: i.configPath, AllowMultiple: true})
	}()

	require.Eventually(t, func() bool {
		resp, err := http.Get(i.serverURL() + "/") //nolint:noctx // Readiness probe.
		if err != nil {
			return false
		}

		_ = resp.Body.Close()

		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 50*time.Millisecond)

	return func() {
		cancel()

		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(10 * time.Second):
			t.Fatal("server did not stop")
		}
	}
}
