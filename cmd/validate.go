package cmd

import (
	"context"

	"github.com/emrgen/template/internal/config"
	"github.com/emrgen/template/internal/store"
	"github.com/emrgen/template/internal/validator"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func validateCmd() *cobra.Command {
	var file string
	var publish bool
	var workspaceID string

	var required = []string{"file"}

	command := &cobra.Command{
		Use:     "validate",
		Short:   "validate a template document",
		Long:    "validate a document as a draft, or with --publish against the injectables of a workspace",
		Example: "tmpl validate -f invoice.json\ntmpl validate -f invoice.json --publish -w <workspace-id>",
		Run: func(cmd *cobra.Command, args []string) {
			if checkMissingFlags(cmd, required) {
				return
			}

			raw, ok := readContent(file)
			if !ok {
				return
			}

			cfg := config.LoadConfig()
			if !publish {
				printResult(validator.New(nil, validator.Options{
					MaxDepth:    cfg.ValidationMaxDepth,
					Languages:   cfg.ValidationLanguages,
					PageFormats: cfg.ValidationPageFormats,
				}).ValidateForDraft(raw))
				return
			}

			if checkMissingFlags(cmd, []string{"workspace-id"}) {
				return
			}
			wsID, ok := parseID("workspace id", workspaceID)
			if !ok {
				return
			}

			s := store.NewGormStore(config.GetDb(cfg))
			res, err := config.NewValidator(cfg, s).ValidateForPublish(context.Background(), wsID, uuid.Nil, raw)
			if err != nil {
				logrus.Error(err)
				return
			}
			printResult(res)
		},
	}

	command.Flags().StringVarP(&file, "file", "f", "", "document json file (required)")
	command.Flags().BoolVar(&publish, "publish", false, "run publish validation")
	command.Flags().StringVarP(&workspaceID, "workspace-id", "w", "", "workspace whose injectables are accessible")

	command.Flags().SortFlags = false

	return command
}
