package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-playground/log"
	"github.com/spf13/cobra"

	"github.com/liamw1/oxibooru/cache"
	"github.com/liamw1/oxibooru/config"
	"github.com/liamw1/oxibooru/db"
	"github.com/liamw1/oxibooru/imager"
)

var flagAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "run the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve()
	},
}

func init() {
	serveCmd.Flags().StringVar(&flagAddr, "addr", ":8080", "address to listen on")
}

// serve opens the database and cache connections named by the loaded
// configuration and blocks serving HTTP until SIGTERM/SIGINT, with a
// graceful shutdown against a background context.
func serve() error {
	conf := config.Get()

	if err := db.Open(conf); err != nil {
		return err
	}
	defer db.Close()

	c, err := cache.Open(conf)
	if err != nil {
		log.Warnf("cache unavailable, continuing without it: %s", err)
	} else {
		defer c.Close()
	}

	if err := imager.PurgeTempUploads(conf); err != nil {
		log.Warnf("failed to purge stale temp uploads: %s", err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health-check", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	srv := &http.Server{
		Addr:    flagAddr,
		Handler: mux,
	}

	errCh := make(chan error, 1)
	go func() {
		term := make(chan os.Signal, 1)
		signal.Notify(term, syscall.SIGTERM, syscall.SIGINT)
		<-term
		errCh <- srv.Shutdown(context.Background())
	}()
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	log.Infof("listening on %s", flagAddr)
	return <-errCh
}
