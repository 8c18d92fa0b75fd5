package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/syssam/relgraph"
	"github.com/syssam/relgraph/cache/sqlite"
	"github.com/syssam/relgraph/graph"
	"github.com/syssam/relgraph/schema"
	"github.com/syssam/relgraph/snapshot"
)

const snapshotNamespace = "relgraph"

func snapshotKey(name string) relgraph.CacheKey {
	return relgraph.CacheKey{Namespace: snapshotNamespace, Name: name, Version: snapshot.FormatVersion}
}

// openCache opens the snapshot database named by the configuration.
func (a *app) openCache(ctx context.Context) (*sqlite.Cache, error) {
	return sqlite.Open(ctx, a.cfg.SnapshotDB, sqlite.WithSlowQueryLog(a.log))
}

func (a *app) openStore(ctx context.Context) (*snapshot.Store, func(), error) {
	c, err := a.openCache(ctx)
	if err != nil {
		return nil, nil, err
	}
	store := snapshot.NewStore(c, snapshot.WithTTL(a.cfg.SnapshotTTL), snapshot.WithLogger(a.log))
	return store, func() {
		a.log.Debug("snapshot database closed", "path", a.cfg.SnapshotDB, "stats", c.QueryStats().Stats().String())
		if err := c.Close(); err != nil {
			a.log.Warn("closing snapshot database", "error", err)
		}
	}, nil
}

func newSnapshotCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Inspect and manage saved snapshots",
	}
	cmd.AddCommand(newSnapshotShowCmd(a), newSnapshotDeleteCmd(a), newSnapshotPurgeCmd(a))
	return cmd
}

func newSnapshotShowCmd(a *app) *cobra.Command {
	var schemaPath string
	cmd := &cobra.Command{
		Use:   "show NAME",
		Short: "Print the relationships stored in a snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := schema.LoadFile(schemaPath)
			if err != nil {
				return err
			}
			store, closeStore, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer closeStore()

			r := newReplayer(reg, graph.WithLogger(a.log))
			if err := store.Load(cmd.Context(), snapshotKey(args[0]), r.g); err != nil {
				return err
			}
			r.notes = nil
			rep, err := r.reportAll()
			if err != nil {
				return err
			}
			return writeReport(cmd.OutOrStdout(), rep)
		},
	}
	cmd.Flags().StringVarP(&schemaPath, "schema", "s", "", "schema file (.yaml, .yml, .graphql, .gql)")
	_ = cmd.MarkFlagRequired("schema")
	return cmd
}

func newSnapshotDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete NAME",
		Short: "Delete every version of a snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, closeStore, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer closeStore()
			return store.Purge(cmd.Context(), snapshotNamespace, args[0])
		},
	}
}

func newSnapshotPurgeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "purge",
		Short: "Remove expired snapshots from the snapshot database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := a.openCache(cmd.Context())
			if err != nil {
				return err
			}
			defer c.Close()
			n, err := c.PurgeExpired(cmd.Context())
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "purged %d expired snapshot(s)\n", n)
			return err
		},
	}
}
