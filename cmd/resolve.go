package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/emrgen/template/internal/config"
	"github.com/emrgen/template/internal/service"
	"github.com/emrgen/template/internal/store"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func resolveCmd() *cobra.Command {
	var tenant string
	var workspace string
	var docType string
	var asJSON bool

	var required = []string{"tenant", "workspace", "doc-type"}

	command := &cobra.Command{
		Use:     "resolve",
		Short:   "resolve the published revision for a document type",
		Example: "tmpl resolve --tenant acme --workspace main --doc-type INVOICE --json",
		Run: func(cmd *cobra.Command, args []string) {
			if checkMissingFlags(cmd, required) {
				return
			}

			cfg := config.LoadConfig()
			resolutionCache, err := config.NewResolutionCache(cfg)
			if err != nil {
				logrus.Error(err)
				return
			}

			resolver := service.NewResolutionService(store.NewGormStore(config.GetDb(cfg)), resolutionCache, cfg.CacheTTL)
			payload, err := resolver.Resolve(context.Background(), tenant, workspace, docType)
			if err != nil {
				report(err)
				return
			}

			if asJSON {
				data, err := json.MarshalIndent(payload, "", "  ")
				if err != nil {
					logrus.Error(err)
					return
				}
				fmt.Println(string(data))
				return
			}

			printRevisions(payload.Revision)
			fmt.Printf("title: %s, injectables: %d\n", payload.Document.Meta.Title, len(payload.Injectables))
		},
	}

	command.Flags().StringVar(&tenant, "tenant", "", "tenant code (required)")
	command.Flags().StringVar(&workspace, "workspace", "", "workspace code (required)")
	command.Flags().StringVar(&docType, "doc-type", "", "document type code (required)")
	command.Flags().BoolVar(&asJSON, "json", false, "print the render payload as json")

	command.Flags().SortFlags = false

	return command
}
