package testing

import (
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	embeddedpostgres "github.com/fergusstrange/embedded-postgres"
)

var (
	embeddedMu     sync.Mutex
	embeddedDB     *embeddedpostgres.EmbeddedPostgres
	embeddedConfig *TestDBConfig
	embeddedErr    error
)

// StartEmbeddedPostgres boots a throwaway Postgres shared by every test in the
// process. Binaries are cached under the user cache dir after the first download.
// Later calls return the same server or the first start error.
func StartEmbeddedPostgres() (*TestDBConfig, error) {
	embeddedMu.Lock()
	defer embeddedMu.Unlock()

	if embeddedConfig != nil || embeddedErr != nil {
		return embeddedConfig, embeddedErr
	}

	port, err := freePort()
	if err != nil {
		embeddedErr = err
		return nil, err
	}

	runtimeDir, err := os.MkdirTemp("", "callcenter-pg-")
	if err != nil {
		embeddedErr = fmt.Errorf("failed to create postgres runtime dir: %w", err)
		return nil, embeddedErr
	}

	cfg := embeddedpostgres.DefaultConfig().
		Version(embeddedpostgres.V16).
		Port(uint32(port)).
		Username("postgres").
		Password("postgres").
		Database("postgres").
		RuntimePath(runtimeDir).
		DataPath(filepath.Join(runtimeDir, "data")).
		StartTimeout(60 * time.Second).
		Logger(io.Discard)
	if cache, err := os.UserCacheDir(); err == nil {
		cfg = cfg.CachePath(filepath.Join(cache, "embedded-postgres-go"))
	}

	pg := embeddedpostgres.NewDatabase(cfg)
	if err := pg.Start(); err != nil {
		_ = os.RemoveAll(runtimeDir)
		embeddedErr = fmt.Errorf("failed to start embedded postgres: %w", err)
		return nil, embeddedErr
	}

	embeddedDB = pg
	embeddedConfig = &TestDBConfig{
		Host:     "localhost",
		Port:     port,
		User:     "postgres",
		Password: "postgres",
		SSLMode:  "disable",
	}
	return embeddedConfig, nil
}

// StopEmbeddedPostgres shuts the shared server down; call it from TestMain
func StopEmbeddedPostgres() error {
	embeddedMu.Lock()
	defer embeddedMu.Unlock()

	if embeddedDB == nil {
		return nil
	}
	err := embeddedDB.Stop()
	embeddedDB = nil
	embeddedConfig = nil
	return err
}

func freePort() (int, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, fmt.Errorf("failed to reserve a port: %w", err)
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}
