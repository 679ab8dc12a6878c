package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/tapcore/tapcore/pkg/catalog"
	"github.com/tapcore/tapcore/pkg/coordinator"
	"github.com/tapcore/tapcore/pkg/discovery"
	"github.com/tapcore/tapcore/pkg/engine"
	"github.com/tapcore/tapcore/pkg/extract"
	"github.com/tapcore/tapcore/pkg/logger"
	"github.com/tapcore/tapcore/pkg/qname"
	"github.com/tapcore/tapcore/pkg/typemap"
)

var (
	extractCatalog string
	extractStreams []string
	replicationKey string
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Extract selected streams as records on stdout",
	Long: `Extract loads the catalog (from --catalog, or by running discovery),
selects streams, and writes one record message per row to stdout,
interleaved with state messages at checkpoint boundaries.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr := engine.NewManager(cfg, logger.Get())
		defer mgr.Close()

		resolver := qname.NewResolver(cfg.Separator, qname.EmbeddedConvention{
			Database:  cfg.Database,
			Separator: cfg.Separator,
		})
		disc := discovery.NewSQLiteDiscoverer(cfg, mgr, resolver, typemap.NewMapper(), logger.Get())
		ext := extract.NewSQLExtractor(mgr, resolver, logger.Get())
		writer := newMessageWriter(os.Stdout)

		coord := coordinator.New(cfg, disc, ext, writer, writer, logger.Get())

		var persisted *catalog.Document
		if extractCatalog != "" {
			f, err := os.Open(extractCatalog)
			if err != nil {
				return err
			}
			doc, err := catalog.Load(f)
			f.Close()
			if err != nil {
				return err
			}
			persisted = doc
		}

		cat, err := coord.Catalog(cmd.Context(), persisted)
		if err != nil {
			return err
		}

		selections := buildSelections(cat, extractStreams, replicationKey)
		_, err = coord.Run(cmd.Context(), cat, selections)
		return err
	},
}

// buildSelections selects the named streams, or every stream in the
// catalog when none are named.
func buildSelections(cat *catalog.Document, streams []string, key string) []coordinator.Selection {
	if len(streams) == 0 {
		for _, e := range cat.Streams {
			streams = append(streams, e.StreamID(cfg.Separator))
		}
	}

	selections := make([]coordinator.Selection, 0, len(streams))
	for _, s := range streams {
		selections = append(selections, coordinator.Selection{
			Stream:         s,
			ReplicationKey: key,
		})
	}
	return selections
}

func init() {
	extractCmd.Flags().StringVar(&extractCatalog, "catalog", "", "previously discovered catalog file (skips discovery)")
	extractCmd.Flags().StringSliceVar(&extractStreams, "streams", nil, "stream IDs to extract (default: all)")
	extractCmd.Flags().StringVar(&replicationKey, "replication-key", "", "bookmark column for incremental extraction")
	rootCmd.AddCommand(extractCmd)
}
