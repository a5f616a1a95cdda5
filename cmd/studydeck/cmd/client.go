package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"

	"github.com/jmcleod/studydeck/apiclient"
	"github.com/jmcleod/studydeck/auth"
	"github.com/jmcleod/studydeck/storage"
	bboltstorage "github.com/jmcleod/studydeck/storage/bbolt"
	"github.com/jmcleod/studydeck/storage/memory"
	redisstorage "github.com/jmcleod/studydeck/storage/redis"
)

const (
	sessionDBName    = "session.db"
	pkceRedisPrefix  = "studydeck:pkce:"
	sessionDBTimeout = time.Second
)

// localClient is the wired session stack shared by every command.
type localClient struct {
	store      *auth.Store
	provider   *auth.Provider
	controller *auth.Controller
	signal     *apiclient.Signal
	api        *apiclient.Client
	closers    []func() error
}

// openLocalClient opens the session database, wires the controller to the
// backend gateway and hydrates the persisted session.
func openLocalClient(ctx context.Context, opts ...auth.ControllerOption) (*localClient, error) {
	lc := &localClient{}
	ok := false
	defer func() {
		if !ok {
			lc.Close()
		}
	}()

	durable, err := openDurable()
	if err != nil {
		return nil, err
	}
	lc.closers = append(lc.closers, durable.Close)

	var durableKV storage.KV = durable
	if cfg.StorageKey != "" {
		sealed, err := storage.NewSealed(durable, []byte(cfg.StorageKey))
		if err != nil {
			return nil, err
		}
		durableKV = sealed
	}

	var ephemeral storage.KV
	if cfg.PKCERedisURL != "" {
		rs, err := redisstorage.NewStoreFromURL(ctx, cfg.PKCERedisURL, pkceRedisPrefix, cfg.PKCETTL)
		if err != nil {
			return nil, err
		}
		lc.closers = append(lc.closers, rs.Close)
		ephemeral = rs
	} else {
		ephemeral = memory.New(memory.WithTTL(cfg.PKCETTL))
	}

	lc.store = auth.NewStore(durableKV, ephemeral, auth.WithStoreLogger(logger))
	lc.provider = auth.NewProvider(cfg.Provider, lc.store, auth.WithProviderLogger(logger))

	opts = append([]auth.ControllerOption{
		auth.WithLogger(logger),
		auth.WithResolver(auth.NewResolver(cfg.GroupsClaim)),
	}, opts...)
	lc.controller = auth.NewController(lc.store, lc.provider, opts...)

	lc.signal = apiclient.NewSignal()
	lc.controller.Observe(lc.signal)
	lc.api = apiclient.New(cfg.APIBaseURL, lc.store, lc.signal,
		apiclient.WithTimeout(cfg.APITimeout),
		apiclient.WithLogger(logger),
	)

	lc.controller.Hydrate(ctx)
	ok = true
	return lc, nil
}

func openDurable() (*bboltstorage.Store, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	path := filepath.Join(cfg.DataDir, sessionDBName)
	store, err := bboltstorage.NewStoreFromFile(path, &bbolt.Options{Timeout: sessionDBTimeout})
	if errors.Is(err, bbolt.ErrTimeout) {
		return nil, fmt.Errorf("session database %s is in use by another studydeck process; stop `studydeck server` and retry", path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open session storage: %w", err)
	}
	return store, nil
}

// Close releases the controller subscription and the storage handles.
func (lc *localClient) Close() {
	if lc.controller != nil {
		lc.controller.Close()
	}
	for i := len(lc.closers) - 1; i >= 0; i-- {
		if err := lc.closers[i](); err != nil {
			logger.Warn("closing storage failed", "error", err)
		}
	}
	lc.closers = nil
}
