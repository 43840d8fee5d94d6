package daemon

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/julianstephens/nextup/internal/cli"
	"github.com/julianstephens/nextup/internal/models"
	"github.com/julianstephens/nextup/internal/peer"
	"github.com/julianstephens/nextup/internal/peersync"
)

type SyncCmd struct {
	Manifest SyncManifestCmd `cmd:"" help:"Write this device's task manifest to a file."`
	Diff     SyncDiffCmd     `cmd:"" help:"Compare a manifest file with local tasks."`
	Push     SyncPushCmd     `cmd:"" help:"Run one sync round with configured peers." default:"1"`
}

type SyncManifestCmd struct {
	Output string `arg:"" optional:"" default:"nextup-manifest.yaml" help:"File to write." type:"path"`
}

func (c *SyncManifestCmd) Run(ctx *cli.Context) error {
	bg := context.Background()
	tasks, err := ctx.Store.GetAllTasksIncludingDeleted(bg)
	if err != nil {
		return fmt.Errorf("failed to get tasks: %w", err)
	}

	rec := peersync.NewReconciler(ctx.Config.UserID, ctx.Config.DeviceID)
	msg := rec.Manifest(tasks, time.Now())
	if err := peersync.SaveManifestFile(c.Output, &msg); err != nil {
		return err
	}
	fmt.Println(cli.Success("Wrote manifest with %d entries to %s", len(msg.Entries), c.Output))
	return nil
}

type SyncDiffCmd struct {
	File string `arg:"" help:"Manifest file written by 'nextup sync manifest' on another device." type:"existingfile"`
}

func (c *SyncDiffCmd) Run(ctx *cli.Context) error {
	bg := context.Background()
	remote, err := peersync.LoadManifestFile(c.File)
	if err != nil {
		return err
	}
	if remote.UserID != "" && remote.UserID != ctx.Config.UserID {
		fmt.Println(cli.Warning("Manifest belongs to user %q, this device syncs %q; their tasks are ignored.", remote.UserID, ctx.Config.UserID))
	}

	tasks, err := ctx.Store.GetAllTasksIncludingDeleted(bg)
	if err != nil {
		return fmt.Errorf("failed to get tasks: %w", err)
	}
	rec := peersync.NewReconciler(ctx.Config.UserID, ctx.Config.DeviceID)
	res := rec.Compare(bg, remote.Entries, peersync.BuildManifest(tasks))

	fmt.Println(cli.HeaderStyle.Render(fmt.Sprintf("Compared with %s (sent %s)", remote.DeviceID, remote.SentAt.Local().Format("2006-01-02 15:04"))))
	printIDs("Only on the other device", res.Missing)
	printIDs("Newer on the other device", res.RemoteNewer)
	printIDs("Newer here", res.LocalNewer)
	fmt.Printf("  In sync: %d\n", len(res.Equal))
	return nil
}

func printIDs(label string, ids []string) {
	fmt.Printf("  %s: %d\n", label, len(ids))
	for _, id := range ids {
		fmt.Println(cli.MutedStyle.Render("    " + id))
	}
}

type SyncPushCmd struct {
	URL []string `arg:"" optional:"" help:"Peer URLs; defaults to peer.urls from the config file."`
}

func (c *SyncPushCmd) Run(ctx *cli.Context) error {
	cfg := ctx.Config
	if len(c.URL) > 0 {
		cfg.Peer.URLs = c.URL
	}
	if len(cfg.Peer.URLs) == 0 {
		return errors.New("no peers configured; set peer.urls or pass a URL")
	}
	secret, err := PeerSecret(cfg)
	if err != nil {
		return err
	}

	bg := context.Background()
	ctx.Store.SetIdentity(cfg.DeviceID, cfg.UserID)
	rec := peersync.NewReconciler(cfg.UserID, cfg.DeviceID)

	var errs []error
	for _, client := range Clients(cfg, secret) {
		sum, err := peer.Sync(bg, client, rec, ctx.Store, func(models.Task) {})
		if err != nil {
			fmt.Println(cli.Warning("%s: %v", client.BaseURL(), err))
			errs = append(errs, fmt.Errorf("%s: %w", client.BaseURL(), err))
			continue
		}
		fmt.Println(cli.Success("%s: received %d, pushed %d", sum.Peer, sum.Received.Applied, sum.Pushed.Applied))
	}
	return errors.Join(errs...)
}
