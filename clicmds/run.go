package clicmds

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
	"gitlab.com/xhrshim/intercept"
	"gitlab.com/xhrshim/jsrt"
	"gitlab.com/xhrshim/native"
	"gitlab.com/xhrshim/store"
	"gitlab.com/xhrshim/xhrk"
)

func RunFlags() []cli.Flag {
	return append([]cli.Flag{
		&cli.StringFlag{
			Name:     "script",
			Usage:    "script to run",
			Required: true,
		},
	}, ConfigFlags()...)
}

// Run a script with XMLHttpRequest intercepted
func Run(ctx *cli.Context) error {
	cfg, err := LoadConfig(ctx)
	if err != nil {
		return err
	}

	rt := jsrt.NewRuntime()
	storers := make([]store.Storer, 0)
	// observers run on the loop, it is stopped before the stores close
	defer func() {
		rt.Stop()
		for _, s := range storers {
			if err := s.Close(); err != nil {
				log.Error().Err(err).Msg("failed to close store")
			}
		}
	}()

	client, err := native.NewClient(cfg, rt.Scheduler())
	if err != nil {
		return err
	}

	opts := intercept.OptionsFromConfig(cfg)
	opts.Observers = append(opts.Observers, xhrk.ObserverFunc(logCapture))

	if cfg.DataPath != "" {
		captures := store.NewCaptureStore(cfg.DataPath)
		if err := captures.Init(); err != nil {
			log.Error().Err(err).Msg("failed to init capture store")
			return err
		}
		storers = append(storers, captures)
		opts.Observers = append(opts.Observers, captures)
	}

	shim, _ := intercept.Install(client.Factory(), opts)
	if err := rt.Bind(shim.Factory()); err != nil {
		return err
	}

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(c)

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-c:
			log.Info().Msg("Ctrl-C Pressed, shutting down")
			rt.Interrupt("interrupted")
		case <-done:
		}
	}()

	_, err = rt.RunFile(ctx.String("script"))
	return err
}

func logCapture(capture *xhrk.Capture) {
	evt := log.Info().Str("request_id", capture.RequestID).Str("kind", capture.Kind.String())
	if capture.Metadata != nil {
		evt = evt.Str("method", capture.Metadata.Method).Str("url", capture.Metadata.URL)
	}
	if capture.Rule != "" {
		evt = evt.Str("rule", capture.Rule)
	}
	if capture.Error != "" {
		evt = evt.Str("error", capture.Error)
	}
	evt.Msg("captured")
}
