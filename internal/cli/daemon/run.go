package daemon

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/julianstephens/nextup/internal/cli"
	"github.com/julianstephens/nextup/internal/config"
	"github.com/julianstephens/nextup/internal/keyring"
	"github.com/julianstephens/nextup/internal/logger"
	"github.com/julianstephens/nextup/internal/models"
	"github.com/julianstephens/nextup/internal/peer"
	"github.com/julianstephens/nextup/internal/peersync"
)

// RunCmd keeps the shuffle coordinator running in the foreground and, when
// configured, serves and pushes task changes to peer devices.
type RunCmd struct {
	Listen  string `help:"Peer listen address, overriding the config file." placeholder:"HOST:PORT"`
	NoPeers bool   `help:"Disable peer sync for this run." name:"no-peers"`
}

func (c *RunCmd) Run(ctx *cli.Context) error {
	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return c.run(sigCtx, ctx)
}

func (c *RunCmd) run(parent context.Context, ctx *cli.Context) error {
	cfg := ctx.Config
	if c.Listen != "" {
		cfg.Peer.Listen = c.Listen
	}
	if c.NoPeers {
		cfg.Peer = config.PeerConfig{}
	}

	ctx.Store.SetIdentity(cfg.DeviceID, cfg.UserID)

	var secret []byte
	if cfg.Peer.Enabled() {
		s, err := PeerSecret(cfg)
		if err != nil {
			return err
		}
		secret = s
	}

	coord, err := ctx.Coordinator(parent)
	if err != nil {
		return err
	}
	defer coord.Close()

	rec := peersync.NewReconciler(cfg.UserID, cfg.DeviceID)
	clients := Clients(cfg, secret)
	bc := peer.NewBroadcaster(clients...)
	defer bc.Wait()

	ctx.Store.OnLocalWrite(func(t models.Task) {
		rec.Invalidate()
		bc.Broadcast(t)
	})

	g, gctx := errgroup.WithContext(parent)
	onApply := func(t models.Task) {
		logger.Debug("Applied task from peer", "task_id", t.ID)
		coord.Refresh(gctx)
	}

	g.Go(func() error {
		return coord.Run(gctx)
	})

	if cfg.Peer.Listen != "" {
		srv := peer.NewServer(ctx.Store, rec, secret,
			peer.WithAllowedOrigins(cfg.Peer.AllowedOrigins...),
			peer.WithApplyHook(onApply),
		)
		g.Go(func() error {
			return srv.ListenAndServe(gctx, cfg.Peer.Listen)
		})
	}

	// Catch up with peers once at startup; failures only delay convergence.
	for _, client := range clients {
		g.Go(func() error {
			if _, err := peer.Sync(gctx, client, rec, ctx.Store, onApply); err != nil {
				logger.Warn("Startup sync failed", "peer", client.BaseURL(), "error", err)
			}
			return nil
		})
	}

	logger.Info("Daemon started",
		"device_id", cfg.DeviceID,
		"peer_listen", cfg.Peer.Listen,
		"peers", len(clients),
	)
	err = g.Wait()
	logger.Info("Daemon stopped")
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// PeerSecret returns the shared peer secret from the config, the
// environment or the OS keyring, in that order.
func PeerSecret(cfg config.Config) ([]byte, error) {
	secret := cfg.Peer.Secret
	if secret == "" {
		secret = keyring.Lookup(keyring.PeerSecret, "")
	}
	if secret == "" {
		return nil, fmt.Errorf("peer sync is configured but no secret is set; use peer.secret, NEXTUP_PEER_SECRET or 'nextup keyring set %s'", keyring.PeerSecret)
	}
	return []byte(secret), nil
}

// Clients builds one client per configured peer URL.
func Clients(cfg config.Config, secret []byte) []*peer.Client {
	clients := make([]*peer.Client, 0, len(cfg.Peer.URLs))
	for _, u := range cfg.Peer.URLs {
		clients = append(clients, peer.NewClient(u, secret, cfg.UserID, cfg.DeviceID, cfg.Peer.Timeout))
	}
	return clients
}
