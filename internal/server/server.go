package server

import (
	"fmt"
	"os"
	"os/signal"

	"github.com/emrgen/template/internal/config"
	"github.com/emrgen/template/internal/jobs"
	"github.com/emrgen/template/internal/service"
	"github.com/emrgen/template/internal/store"
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

// StartWorker runs the scheduled publish and archive sweeps until the process
// is interrupted. With once set it runs each sweep a single time and returns.
func StartWorker(cnf *config.Config, once bool) error {
	rdb := config.GetDb(cnf)

	revisionStore := store.NewGormStore(rdb)
	if err := revisionStore.Migrate(); err != nil {
		return err
	}

	events, err := config.NewRevisionQueue(cnf)
	if err != nil {
		return err
	}
	defer func() {
		if err := events.Close(); err != nil {
			logrus.Errorf("error closing revision queue: %v", err)
		}
	}()

	revisions := service.NewRevisionService(revisionStore, config.NewValidator(cnf, revisionStore), events)
	sweeper := jobs.NewSweeper(revisionStore, revisions)
	executor := jobs.NewTaskExecutor(
		jobs.NewPublishTask(sweeper, cnf.SweepPublishSchedule, cnf.SweepTimeout),
		jobs.NewArchiveTask(sweeper, cnf.SweepArchiveSchedule, cnf.SweepTimeout),
	)

	if once {
		executor.RunAll()
		return nil
	}

	if err := executor.Run(); err != nil {
		return err
	}
	logrus.Infof("Press Ctrl+C to stop the worker")

	// listen for interrupt signal to gracefully shut down the worker
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, unix.SIGTERM, unix.SIGINT, unix.SIGTSTP)
	<-sigs
	// clean Ctrl+C output
	fmt.Println()

	executor.Stop()

	return nil
}
