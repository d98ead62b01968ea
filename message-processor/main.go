package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"counter-pipeline/config"
	"counter-pipeline/metrics"
)

const usage = `usage: message-processor [-config file] [command]

commands:
  run      consume events and send scheduled reports (default)
  consume  consume events only
  report   run one report cycle now and exit
  health   print configuration status`

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_FILE"), "optional YAML config file")
	flag.Usage = func() { fmt.Fprintln(flag.CommandLine.Output(), usage) }
	flag.Parse()

	cmd := flag.Arg(0)
	if cmd == "" {
		cmd = "run"
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal(err)
	}
	if cfg.Debug {
		log.SetLevel(log.DebugLevel)
	}

	if cmd == "health" {
		writeHealth(os.Stdout, cfg.Health())
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing := metrics.InitTracing(log.StandardLogger())
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(flushCtx)
	}()

	if err := run(ctx, cmd, cfg); err != nil {
		log.WithError(err).Error("message processor failed")
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, cmd string, cfg *config.Config) error {
	switch cmd {
	case "run", "consume", "report":
	default:
		return fmt.Errorf("unknown command %q\n%s", cmd, usage)
	}

	a, err := newApp(ctx, cfg, cmd != "consume")
	if err != nil {
		return err
	}
	defer a.Close()

	switch cmd {
	case "report":
		res, err := a.scheduler.RunOnce(ctx)
		if err != nil {
			return err
		}
		log.WithFields(log.Fields{
			"reported":   res.Reported,
			"events":     res.Events,
			"purged":     res.Purged,
			"message_id": res.MessageID,
		}).Info("report command finished")
		return nil
	case "consume":
		go metrics.Serve(ctx, cfg.Metrics.Addr)
		return a.consumer.Run(ctx)
	default:
		go metrics.Serve(ctx, cfg.Metrics.Addr)
		errCh := make(chan error, 2)
		go func() { errCh <- a.consumer.Run(ctx) }()
		go func() { errCh <- a.scheduler.Run(ctx) }()
		var errs []error
		for i := 0; i < 2; i++ {
			if err := <-errCh; err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	}
}
