// Command musicmaid ingests a directory of FLAC/Ogg-Opus files into a
// sqlite store, and exposes developer subcommands for the oni control
// daemon, comment search, and direct file editing (spec.md §6).
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/master-kurosawa/music-maid/internal/config"
	"github.com/master-kurosawa/music-maid/internal/editor"
	"github.com/master-kurosawa/music-maid/internal/ioreader"
	"github.com/master-kurosawa/music-maid/internal/logging"
	"github.com/master-kurosawa/music-maid/internal/oggpage"
	"github.com/master-kurosawa/music-maid/internal/oni"
	"github.com/master-kurosawa/music-maid/internal/oniproto"
	"github.com/master-kurosawa/music-maid/internal/store"
	"github.com/master-kurosawa/music-maid/internal/walker"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var dev bool

	root := &cobra.Command{
		Use:   "musicmaid",
		Short: "Ingest and edit FLAC/Ogg-Opus metadata",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(dev)
		},
	}
	root.PersistentFlags().BoolVar(&dev, "dev", false, "use human-readable console logging")

	root.AddCommand(newOniCmd(&dev))
	root.AddCommand(newSearchCmd(&dev))
	root.AddCommand(newWriteCmd(&dev))
	root.AddCommand(newRehashCmd(&dev))
	return root
}

func runIngest(dev bool) error {
	log, err := logging.New(dev)
	if err != nil {
		return err
	}
	defer log.Sync()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	s, err := store.Open(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer s.Close()

	q := store.NewQueue(s, log)
	if err := walker.Run(context.Background(), cfg.RootDir, cfg.Throttle.MaxConcurrentTasks, q, log); err != nil {
		q.Finish()
		return err
	}
	q.Finish()
	return nil
}

func newOniCmd(dev *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "oni",
		Short: "Run the control daemon over an abstract Unix socket",
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := logging.New(*dev)
			if err != nil {
				return err
			}
			defer log.Sync()

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			s, err := store.Open(cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer s.Close()

			return oni.New(log, s).Serve(cmd.Context())
		},
	}
}

func newSearchCmd(dev *bool) *cobra.Command {
	var service string
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Ask the oni daemon to search",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := oni.Search(cmd.Context(), args[0], oniproto.SearchService(service))
			if err != nil {
				return err
			}
			for _, r := range resp.Results {
				fmt.Printf("%s - %s\n", r.Artist, r.Title)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&service, "service", string(oniproto.SearchServiceLocal), "local|local-musicbrainz")
	return cmd
}

func newWriteCmd(dev *bool) *cobra.Command {
	var removeKeys []string
	cmd := &cobra.Command{
		Use:   "write <path>",
		Short: "Remove comment keys from an already-ingested file in place",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := logging.New(*dev)
			if err != nil {
				return err
			}
			defer log.Sync()

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			s, err := store.Open(cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer s.Close()

			meta, comments, err := s.LoadVorbisByPath(args[0])
			if err != nil {
				return err
			}
			drop := make(map[string]bool, len(removeKeys))
			for _, k := range removeKeys {
				drop[k] = true
			}
			return editor.RemoveComments(args[0], meta, comments, drop)
		},
	}
	cmd.Flags().StringSliceVar(&removeKeys, "remove", nil, "comment keys to drop")
	return cmd
}

func newRehashCmd(dev *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "rehash <path>",
		Short: "Recompute Ogg page CRCs from the start of a file through the end of its first stream",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := ioreader.Open(args[0])
			if err != nil {
				return err
			}
			defer r.Close()

			c, err := oggpage.New(r)
			if err != nil {
				return err
			}
			return c.RehashHeaders()
		},
	}
}
