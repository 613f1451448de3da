package cmd

import (
	"os"

	"github.com/emrgen/template/internal/config"
	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "tmpl",
	Short: "document template management tool",
	Example: `tmpl db migrate
tmpl workspace create --tenant acme --code main
tmpl template create -w <workspace-id> --doc-type INVOICE --title Invoice
tmpl revision create -t <template-id> -n v1 -f invoice.json
tmpl revision publish -r <revision-id>
tmpl revision schedule -r <revision-id> --at 2025-01-01T00:00:00Z
tmpl resolve --tenant acme --workspace main --doc-type INVOICE
tmpl worker`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		config.SetupLogging(config.LoadConfig())
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(dbCmd)
	rootCmd.AddCommand(contextCommand)
	rootCmd.AddCommand(workerCmd())
	rootCmd.AddCommand(validateCmd())
	rootCmd.AddCommand(workspaceCmd)
	rootCmd.AddCommand(templateCmd)
	rootCmd.AddCommand(revisionCmd)
	rootCmd.AddCommand(resolveCmd())
	rootCmd.SetHelpCommand(&cobra.Command{Use: "no-help", Hidden: true})

	rootCmd.CompletionOptions.HiddenDefaultCmd = true
	cobra.EnableCommandSorting = false
}
