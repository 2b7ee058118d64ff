package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/rabbit-tale-co/ai-t3-clone-sub001/internal/backend/httpclient"
	"github.com/rabbit-tale-co/ai-t3-clone-sub001/internal/cachestore"
	"github.com/rabbit-tale-co/ai-t3-clone-sub001/internal/cachestore/memory"
	rediscache "github.com/rabbit-tale-co/ai-t3-clone-sub001/internal/cachestore/redis"
	"github.com/rabbit-tale-co/ai-t3-clone-sub001/internal/events"
	"github.com/rabbit-tale-co/ai-t3-clone-sub001/internal/model"
	"github.com/rabbit-tale-co/ai-t3-clone-sub001/internal/shardqueue"
	"github.com/rabbit-tale-co/ai-t3-clone-sub001/internal/sidebar"
)

// globalOpts are the persistent flags shared by every subcommand.
type globalOpts struct {
	api       string
	user      string
	token     string
	redisURL  string
	ttl       time.Duration
	retention time.Duration
	timeout   time.Duration
	verbose   bool
}

// env is the sidebar stack one command runs against.
type env struct {
	client  *httpclient.Client
	cache   cachestore.Store
	watcher cachestore.Watcher
	bus     *events.Bus
	queue   *shardqueue.ShardExecutor
	agg     *sidebar.Aggregator
	inv     *sidebar.Invalidator
	actions *sidebar.Actions
	log     zerolog.Logger
	closers []func() error
}

func (e *env) Close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		_ = e.closers[i]()
	}
}

func newEnv(ctx context.Context, o *globalOpts, stderr io.Writer) (*env, error) {
	if o.user == "" {
		return nil, fmt.Errorf("--user is required")
	}
	level := zerolog.WarnLevel
	if o.verbose {
		level = zerolog.DebugLevel
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: stderr}).Level(level).With().Timestamp().Logger()

	e := &env{bus: events.NewBus(64), log: log}
	e.client = httpclient.New(o.api, httpclient.StaticToken(o.token),
		httpclient.WithTimeout(o.timeout), httpclient.WithLogger(log))

	if o.redisURL != "" {
		rs, err := rediscache.Dial(ctx, o.redisURL, rediscache.Options{Retention: o.retention})
		if err != nil {
			return nil, err
		}
		e.cache, e.watcher = rs, rs
		e.closers = append(e.closers, rs.Close)
	} else {
		h := memory.NewBackend().Open()
		e.cache, e.watcher = h, h
	}

	qcfg, err := shardqueue.LoadConfig()
	if err != nil {
		return nil, err
	}
	e.queue = shardqueue.NewShardExecutor(qcfg, log)
	e.closers = append(e.closers, func() error { e.queue.Stop(); return nil })

	e.agg = sidebar.NewAggregator(e.cache, e.client, sidebar.Options{
		TTL:   o.ttl,
		Queue: e.queue,
		Bus:   e.bus,
		Log:   log,
	})
	e.inv = sidebar.NewInvalidator(e.cache, e.bus, log)
	e.inv.Attach(e.agg)
	e.actions = sidebar.NewActions(e.client, e.agg, e.inv, log)
	return e, nil
}

func newRootCmd(out io.Writer) *cobra.Command {
	o := &globalOpts{}
	root := &cobra.Command{
		Use:           "sidebarctl",
		Short:         "Load and watch the sidebar of a user through the cache",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	pf := root.PersistentFlags()
	pf.StringVarP(&o.api, "api", "a", envOr("SIDEBAR_BACKEND_URL", "http://localhost:8080"), "Sidebar service base URL")
	pf.StringVarP(&o.user, "user", "u", "", "User ID whose sidebar is loaded")
	pf.StringVarP(&o.token, "token", "t", envOr("SIDEBAR_TOKEN", ""), "Bearer token of the user")
	pf.StringVar(&o.redisURL, "redis", envOr("SIDEBAR_REDIS_URL", ""), "Redis URL of a shared cache (default: in-process)")
	pf.DurationVar(&o.ttl, "ttl", 5*time.Minute, "Cache freshness TTL")
	pf.DurationVar(&o.retention, "retention", 24*time.Hour, "How long Redis keeps stale entries")
	pf.DurationVar(&o.timeout, "timeout", 10*time.Second, "HTTP timeout for backend calls")
	pf.BoolVarP(&o.verbose, "verbose", "V", false, "Debug logging to stderr")

	root.AddCommand(
		newLoadCmd(o, out),
		newPageCmd(o, out),
		newCreateThreadCmd(o, out),
		newInvalidateCmd(o, out),
		newWatchCmd(o, out),
	)
	return root
}

// pageFlags binds the PageParams flags shared by load, page and watch.
type pageFlags struct {
	folder, after, before string
	limit                 int
}

func (f *pageFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.folder, "folder", "", "Only threads of this folder")
	cmd.Flags().StringVar(&f.after, "after", "", "Cursor: threads after this thread id")
	cmd.Flags().StringVar(&f.before, "before", "", "Cursor: threads before this thread id")
	cmd.Flags().IntVarP(&f.limit, "limit", "l", 0, "Page size (default: server default)")
}

func (f *pageFlags) params(cmd *cobra.Command) model.PageParams {
	p := model.PageParams{Limit: f.limit}
	if cmd.Flags().Changed("folder") {
		p.FolderID = &f.folder
	}
	if cmd.Flags().Changed("after") {
		p.StartingAfter = &f.after
	}
	if cmd.Flags().Changed("before") {
		p.EndingBefore = &f.before
	}
	return p
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
