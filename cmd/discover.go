package cmd

import (
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tapcore/tapcore/pkg/discovery"
	"github.com/tapcore/tapcore/pkg/engine"
	"github.com/tapcore/tapcore/pkg/logger"
	"github.com/tapcore/tapcore/pkg/qname"
	"github.com/tapcore/tapcore/pkg/typemap"
)

var discoverOutput string

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Discover the source catalog and write it as a JSON document",
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr := engine.NewManager(cfg, logger.Get())
		defer mgr.Close()

		resolver := qname.NewResolver(cfg.Separator, qname.EmbeddedConvention{
			Database:  cfg.Database,
			Separator: cfg.Separator,
		})

		disc := discovery.NewSQLiteDiscoverer(cfg, mgr, resolver, typemap.NewMapper(), logger.Get())
		doc, err := disc.Discover(cmd.Context())
		if err != nil {
			return err
		}

		out := os.Stdout
		if discoverOutput != "" {
			f, err := os.Create(discoverOutput)
			if err != nil {
				return err
			}
			defer f.Close()
			out = f
		}
		if err := doc.Write(out); err != nil {
			return err
		}
		logger.Info("catalog written",
			zap.Int("streams", len(doc.Streams)),
			zap.String("output", discoverOutput))
		return nil
	},
}

func init() {
	discoverCmd.Flags().StringVarP(&discoverOutput, "output", "o", "", "write the catalog to a file instead of stdout")
	rootCmd.AddCommand(discoverCmd)
}
