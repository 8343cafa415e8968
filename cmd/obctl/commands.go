package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	goredis "github.com/redis/go-redis/v9"
	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v2"

	"github.com/MrSnakeDoc/openbinder/internal/app"
	"github.com/MrSnakeDoc/openbinder/internal/auth"
	"github.com/MrSnakeDoc/openbinder/internal/backup"
	"github.com/MrSnakeDoc/openbinder/internal/config"
	"github.com/MrSnakeDoc/openbinder/internal/domain"
	"github.com/MrSnakeDoc/openbinder/internal/logger"
	"github.com/MrSnakeDoc/openbinder/internal/offline"
	redisstore "github.com/MrSnakeDoc/openbinder/internal/store/redis"
	"github.com/MrSnakeDoc/openbinder/internal/utils"
)

var uidFlag = &cli.StringFlag{
	Name:     "uid",
	Usage:    "user id whose data is read or replaced",
	Required: true,
}

type env struct {
	log    logger.Logger
	client *goredis.Client
	store  *redisstore.Store
}

func (e *env) open(c *cli.Context) error {
	// Help and version need no connection.
	if c.Args().Len() == 0 || c.Bool("help") {
		return nil
	}
	cfg := config.LoadAdmin()
	e.log = logger.New(cfg.LogLevel, cfg.PrettyLog)

	client, err := app.Connect(cfg, e.log)
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	e.client = client
	e.store = redisstore.NewStore(client)
	return nil
}

func (e *env) close(*cli.Context) error {
	if e.client != nil {
		utils.Close(e.client)
	}
	if e.log != nil {
		_ = e.log.Sync()
	}
	return nil
}

func (e *env) ready() error {
	if e.store == nil {
		return fmt.Errorf("not connected")
	}
	return nil
}

func userContext(c *cli.Context) context.Context {
	uid := strings.TrimSpace(c.String("uid"))
	return domain.WithUser(c.Context, &domain.User{UID: uid})
}

// bar renders folder progress. The bar is created on the first report since
// the total is only known then.
func bar(desc string) (backup.Progress, func()) {
	var pb *progressbar.ProgressBar
	progress := func(done, total int) {
		if pb == nil {
			pb = progressbar.Default(int64(total), desc)
		}
		_ = pb.Set(done)
	}
	finish := func() {
		if pb != nil {
			_ = pb.Finish()
		}
	}
	return progress, finish
}

func (e *env) export(c *cli.Context) error {
	if err := e.ready(); err != nil {
		return err
	}
	svc := backup.New(e.store, e.log)

	progress, finish := bar("Exporting folders")
	doc, err := svc.Export(userContext(c), progress)
	finish()
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}

	out := c.String("out")
	if out == "" {
		out = backup.FileName(e.store.Now())
	}
	f, err := os.Create(out)
	if err != nil {
		return err
	}
	defer utils.MustClose(f, e.log, out)
	if _, err := f.Write(data); err != nil {
		return err
	}

	fmt.Printf("✅ Exported %d folders and %d archived folders to %s\n", len(doc.Folders), len(doc.Archives), out)
	return nil
}

func (e *env) importBackup(c *cli.Context) error {
	if err := e.ready(); err != nil {
		return err
	}
	if c.Args().Len() != 1 {
		return fmt.Errorf("usage: obctl import --uid <uid> [--yes] <file>")
	}

	data, err := os.ReadFile(c.Args().First())
	if err != nil {
		return err
	}
	doc, err := backup.Parse(data)
	if err != nil {
		return err
	}
	if !c.Bool("yes") {
		return fmt.Errorf("this replaces all bookmarks of %s; rerun with --yes", c.String("uid"))
	}

	svc := backup.New(e.store, e.log)
	progress, finish := bar("Importing folders")
	stats, err := svc.Import(userContext(c), doc, true, progress)
	finish()
	if err != nil {
		return err
	}

	fmt.Printf("✅ Imported %d folders, %d archived folders, %d bookmarks (%d merged folders)\n",
		stats.Folders, stats.Archives, stats.Bookmarks, stats.Merged)
	return nil
}

func (e *env) revokeSession(c *cli.Context) error {
	if err := e.ready(); err != nil {
		return err
	}
	token := strings.TrimSpace(c.Args().First())
	if token == "" {
		return fmt.Errorf("usage: obctl sessions revoke <token>")
	}
	// Sign-out needs no identity provider.
	m := auth.NewManager(nil, e.store, 0, e.log)
	if err := m.SignOut(c.Context, token); err != nil {
		return err
	}
	fmt.Println("✅ Session revoked")
	return nil
}

func (e *env) listCaches(c *cli.Context) error {
	if err := e.ready(); err != nil {
		return err
	}
	ctx := c.Context
	names, err := e.store.CacheNames(ctx)
	if err != nil {
		return err
	}
	sort.Strings(names)
	for _, name := range names {
		entries, err := e.store.CacheEntries(ctx, name)
		if err != nil {
			return err
		}
		fmt.Printf("%-40s %d entries\n", name, len(entries))
	}
	return nil
}

func (e *env) pruneCaches(c *cli.Context) error {
	if err := e.ready(); err != nil {
		return err
	}
	keep := make(map[string]bool)
	for _, v := range c.StringSlice("keep") {
		keep[offline.CacheName(v)] = true
	}

	names, err := e.store.CacheNames(c.Context)
	if err != nil {
		return err
	}
	deleted := 0
	for _, name := range names {
		if !strings.HasPrefix(name, offline.CachePrefix) || keep[name] {
			continue
		}
		if err := e.store.DeleteCache(c.Context, name); err != nil {
			return err
		}
		deleted++
	}
	fmt.Printf("✅ Deleted %d caches\n", deleted)
	return nil
}
