package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rabbit-tale-co/ai-t3-clone-sub001/internal/model"
	"github.com/rabbit-tale-co/ai-t3-clone-sub001/internal/sidebar"
)

func envOr(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}

type loadOutput struct {
	Source     sidebar.Source    `json:"source"`
	CapturedAt time.Time         `json:"capturedAt"`
	Data       model.SidebarData `json:"data"`
}

func newLoadCmd(o *globalOpts, out io.Writer) *cobra.Command {
	var pf pageFlags
	var times int
	cmd := &cobra.Command{
		Use:   "load",
		Short: "Load the sidebar through the cache and print it",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := newEnv(cmd.Context(), o, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer e.Close()
			p := pf.params(cmd)
			var res sidebar.Result
			for i := 0; i < times; i++ {
				if res, err = e.agg.Load(cmd.Context(), o.user, p); err != nil {
					return err
				}
			}
			return writeJSON(out, loadOutput{Source: res.Source, CapturedAt: res.CapturedAt, Data: res.Data})
		},
	}
	pf.bind(cmd)
	cmd.Flags().IntVar(&times, "times", 1, "Load this many times and print the last result")
	return cmd
}

func newPageCmd(o *globalOpts, out io.Writer) *cobra.Command {
	var pf pageFlags
	cmd := &cobra.Command{
		Use:   "page",
		Short: "Fetch one raw page of threads from the backend, bypassing the cache",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := newEnv(cmd.Context(), o, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer e.Close()
			p, err := e.agg.Params(pf.params(cmd))
			if err != nil {
				return err
			}
			page, err := e.client.FetchPage(cmd.Context(), o.user, p)
			if err != nil {
				return err
			}
			return writeJSON(out, page)
		},
	}
	pf.bind(cmd)
	return cmd
}

func newCreateThreadCmd(o *globalOpts, out io.Writer) *cobra.Command {
	var title, folder, visibility string
	cmd := &cobra.Command{
		Use:   "create-thread",
		Short: "Create a thread and invalidate the cached sidebar",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := newEnv(cmd.Context(), o, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer e.Close()
			req := model.CreateThreadRequest{Title: title, Visibility: model.Visibility(visibility)}
			if folder != "" {
				req.FolderID = &folder
			}
			t, err := e.actions.CreateThread(cmd.Context(), o.user, req)
			if err != nil {
				return err
			}
			return writeJSON(out, t)
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "Thread title (required)")
	cmd.Flags().StringVar(&folder, "folder", "", "Folder to file the thread under")
	cmd.Flags().StringVar(&visibility, "visibility", string(model.VisibilityPrivate), "public or private")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func newInvalidateCmd(o *globalOpts, out io.Writer) *cobra.Command {
	var kind string
	cmd := &cobra.Command{
		Use:   "invalidate",
		Short: "Clear every cached sidebar key of the user",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := newEnv(cmd.Context(), o, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer e.Close()
			if kind == "" {
				err = e.inv.Invalidate(cmd.Context(), o.user)
			} else {
				err = e.inv.Apply(cmd.Context(), sidebar.Mutation{Kind: sidebar.MutationKind(kind), UserID: o.user})
			}
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(out, "invalidated %s\n", sidebar.UserPrefix(o.user))
			return err
		},
	}
	cmd.Flags().StringVar(&kind, "kind", "", "Mutation kind to record, e.g. folder_renamed")
	return cmd
}

func newWatchCmd(o *globalOpts, out io.Writer) *cobra.Command {
	var pf pageFlags
	var interval time.Duration
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Keep the sidebar live, reloading whenever it goes stale",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			e, err := newEnv(ctx, o, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer e.Close()

			s := sidebar.NewSession(e.agg, e.bus, e.watcher, e.log)
			e.inv.SetUpdater(s)
			if err := s.Activate(ctx, o.user, pf.params(cmd)); err != nil {
				return err
			}
			defer s.Deactivate()
			return watch(ctx, s, interval, out)
		},
	}
	pf.bind(cmd)
	cmd.Flags().DurationVar(&interval, "interval", 30*time.Second, "Reload at least this often")
	return cmd
}
