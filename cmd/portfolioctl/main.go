// Command portfolioctl inspects an artwork feed from the command line.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/xotten/portfolio/internal/catalog"
	"github.com/xotten/portfolio/internal/domain"
	"github.com/xotten/portfolio/internal/gallery"
	"github.com/xotten/portfolio/internal/router"
)

const defaultTimeout = 10 * time.Second

var errFallback = errors.New("feed unavailable; fallback list in use")

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var timeout time.Duration
	root := &cobra.Command{
		Use:           "portfolioctl",
		Short:         "Inspect an artwork feed",
		SilenceUsage: true,
	}
	root.PersistentFlags().DurationVar(&timeout, "timeout", defaultTimeout, "feed request timeout")

	root.AddCommand(&cobra.Command{
		Use:   "tags <feed>",
		Short: "Print the tag vocabulary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			items, _ := load(cmd.Context(), args[0], timeout)
			for _, t := range gallery.TagVocabulary(items) {
				fmt.Fprintln(cmd.OutOrStdout(), t)
			}
			return nil
		},
	})

	var query, tag, sold string
	filter := &cobra.Command{
		Use:   "filter <feed>",
		Short: "Print the ids of matching artworks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mode, ok := domain.ParseSoldMode(strings.ToLower(strings.TrimSpace(sold)))
			if !ok {
				return fmt.Errorf("--sold must be available, sold or both, got %q", sold)
			}
			items, _ := load(cmd.Context(), args[0], timeout)
			for _, a := range gallery.Filter(items, gallery.Criteria{Query: query, Tag: tag, Sold: mode}) {
				fmt.Fprintln(cmd.OutOrStdout(), a.ID)
			}
			return nil
		},
	}
	filter.Flags().StringVar(&query, "q", "", "free-text query")
	filter.Flags().StringVar(&tag, "tag", gallery.AllTags, "tag selector")
	filter.Flags().StringVar(&sold, "sold", "both", "available, sold or both")
	root.AddCommand(filter)

	root.AddCommand(&cobra.Command{
		Use:   "check <feed>",
		Short: "Report whether the feed loads or falls back",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			items, err := load(cmd.Context(), args[0], timeout)
			if err != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "fallback: %d artworks (%v)\n", len(items), err)
				return errFallback
			}
			fmt.Fprintf(cmd.OutOrStdout(), "feed: %d artworks\n", len(items))
			return nil
		},
	})
	root.AddCommand(newWatchCmd(&timeout))
	return root
}

func newWatchCmd(timeout *time.Duration) *cobra.Command {
	var (
		interval   time.Duration
		pageName   string
		query, tag string
	)
	cmd := &cobra.Command{
		Use:   "watch <feed>",
		Short: "Reload the feed periodically and print a gallery page's ids on every change",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			page := router.Resolve(pageName)
			if !page.IsGallery() {
				return fmt.Errorf("--page must be home or portfolio, got %q", pageName)
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			return watch(ctx, cmd.OutOrStdout(), args[0], *timeout, interval, page, query, tag)
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", 30*time.Second, "reload interval")
	cmd.Flags().StringVar(&pageName, "page", "home", "gallery page: home or portfolio")
	cmd.Flags().StringVar(&query, "q", "", "free-text query")
	cmd.Flags().StringVar(&tag, "tag", gallery.AllTags, "tag selector")
	return cmd
}

// watch prints the page's visible ids for the initial list and after every successful reload.
func watch(ctx context.Context, out io.Writer, location string, timeout, interval time.Duration, page router.Page, query, tag string) error {
	if interval <= 0 {
		return errors.New("--interval must be positive")
	}
	store, err := catalog.NewStore()
	if err != nil {
		return err
	}
	loader := catalog.LoaderFor(location, http.DefaultClient, timeout)

	loop := gallery.NewLoop()
	view := gallery.NewView(page)
	view.SetQuery(query)
	view.SetTag(tag)
	sess := gallery.NewSession(store, loop, view)
	defer sess.Close()

	printIDs := func(v *gallery.View) {
		ids := make([]string, 0, len(v.Visible()))
		for _, a := range v.Visible() {
			ids = append(ids, a.ID)
		}
		fmt.Fprintf(out, "%s [%s]\n", v.Page().Name, strings.Join(ids, " "))
	}
	loop.Post(func() { printIDs(view) })
	sess.OnUpdate(printIDs)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return loop.Run(gctx) })
	g.Go(func() error {
		store.Load(gctx, loader)
		return store.RunRefresher(gctx, loader, interval)
	})
	return g.Wait()
}

// load fetches location once. On failure it returns the fallback list and the cause.
func load(ctx context.Context, location string, timeout time.Duration) ([]domain.Artwork, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	items, err := catalog.LoaderFor(location, http.DefaultClient, timeout).Fetch(ctx)
	if err == nil {
		return items, nil
	}
	fallback, fbErr := catalog.Fallback()
	if fbErr != nil {
		return nil, errors.Join(err, fbErr)
	}
	return fallback, err
}
