package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"karolbroda.com/skald/internal/server"
)

var flagListen string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "run the headless daemon",
	Long: `runs the engine without a display and exposes the http api for other
clients. state changes stream over the /ws websocket and external players
can push readings to /ws/source.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if flagListen != "" {
			cfg.Server.Listen = flagListen
		}

		log, err := newLogger(cfg, false)
		if err != nil {
			return err
		}

		rt, err := buildRuntime(cfg, log)
		if err != nil {
			return err
		}
		defer rt.close()

		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		go rt.eng.Run(ctx)

		srv := server.New(rt.eng, rt.bridge, server.Options{Logger: log})
		err = srv.Run(ctx, cfg.Server.Listen)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVarP(&flagListen, "listen", "l", "", "listen address (host:port)")
}
