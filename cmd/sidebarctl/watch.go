package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rabbit-tale-co/ai-t3-clone-sub001/internal/model"
	"github.com/rabbit-tale-co/ai-t3-clone-sub001/internal/sidebar"
)

// watch loads once, then reloads when the session goes stale or the
// interval passes, printing one line per view change until ctx is done.
func watch(ctx context.Context, s *sidebar.Session, interval time.Duration, out io.Writer) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	load := func() error {
		_, err := s.Load(ctx)
		// The load signals Updates itself.
		select {
		case <-s.Updates():
		default:
		}
		switch {
		case err == nil, errors.Is(err, model.ErrTransient):
			if err != nil {
				fmt.Fprintf(out, "load failed, keeping current view: %v\n", err)
			}
			return nil
		case ctx.Err() != nil:
			return nil
		default:
			return err
		}
	}
	if err := load(); err != nil {
		return err
	}
	printView(out, s)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := load(); err != nil {
				return err
			}
		case <-s.Updates():
			if s.Stale() {
				if err := load(); err != nil {
					return err
				}
			}
		}
		printView(out, s)
	}
}

func printView(out io.Writer, s *sidebar.Session) {
	view, stale := s.View()
	titles := make([]string, 0, 3)
	for i, t := range view.Threads {
		if i == 3 {
			titles = append(titles, "...")
			break
		}
		titles = append(titles, t.Title)
	}
	fmt.Fprintf(out, "%s source=%s threads=%d folders=%d tags=%d more=%t stale=%t [%s]\n",
		time.Now().Format(time.TimeOnly), s.Source(), len(view.Threads), len(view.Folders),
		len(view.Tags), view.HasMore, stale, strings.Join(titles, ", "))
}
