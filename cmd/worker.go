package cmd

import (
	"github.com/emrgen/template/internal/config"
	"github.com/emrgen/template/internal/server"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func workerCmd() *cobra.Command {
	var once bool

	command := &cobra.Command{
		Use:     "worker",
		Short:   "run the scheduled publish and archive sweeps",
		Example: "tmpl worker\ntmpl worker --once",
		Run: func(cmd *cobra.Command, args []string) {
			if err := server.StartWorker(config.LoadConfig(), once); err != nil {
				logrus.Fatalf("worker stopped: %v", err)
			}
		},
	}

	command.Flags().BoolVar(&once, "once", false, "run each sweep once and exit")

	return command
}
