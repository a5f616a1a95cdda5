package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/netip"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/browser"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/jmcleod/studydeck/api"
	"github.com/jmcleod/studydeck/auth"
	"github.com/jmcleod/studydeck/internal/config"
	"github.com/jmcleod/studydeck/web"
)

var (
	openBrowser    bool
	tlsCert        string
	tlsKey         string
	trustedProxies []string
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the local study client",
	RunE: func(cmd *cobra.Command, args []string) error {
		proxies, err := parsePrefixes(trustedProxies)
		if err != nil {
			return err
		}

		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

		ctrlOpts := []auth.ControllerOption{auth.WithMetrics(auth.NewMetrics(reg))}
		if cfg.AlertWebhookURL != "" {
			hook := api.NewAlertWebhook(cfg.AlertWebhookURL, cfg.AlertWebhookAuthHeader, logger)
			defer hook.Close()
			ctrlOpts = append(ctrlOpts, auth.WithAlertFunc(hook.Notify))
		}

		lc, err := openLocalClient(cmd.Context(), ctrlOpts...)
		if err != nil {
			return err
		}
		defer lc.Close()

		pages, err := web.New()
		if err != nil {
			return err
		}
		a := api.New(lc.controller, lc.api, pages,
			api.WithLogger(logger),
			api.WithGatherer(reg),
			api.WithTrustedProxies(proxies),
		)

		server := &http.Server{
			Addr:              cfg.ListenAddr(),
			Handler:           a.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      cfg.APITimeout + 15*time.Second,
			IdleTimeout:       60 * time.Second,
		}

		// Graceful shutdown on SIGINT/SIGTERM.
		done := make(chan error, 1)
		go func() {
			var err error
			if tlsCert != "" && tlsKey != "" {
				err = server.ListenAndServeTLS(tlsCert, tlsKey)
			} else {
				err = server.ListenAndServe()
			}
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				done <- fmt.Errorf("server failed: %w", err)
				return
			}
			done <- nil
		}()

		printBanner()
		fmt.Printf("Serving %s on %s (data: %s)...\n", cfg.PublicURL, cfg.ListenAddr(), cfg.DataDir)
		if !cfg.Loopback() {
			logger.Warn("listening beyond loopback; any client that reaches this address acts as the signed-in user",
				"listen", cfg.ListenAddr())
		}
		if cfg.Provider.Domain == "" || cfg.Provider.ClientID == "" {
			fmt.Println("Identity provider is not configured; login is unavailable until STUDYDECK_PROVIDER_DOMAIN and STUDYDECK_PROVIDER_CLIENT_ID are set.")
		}
		if openBrowser {
			if err := browser.OpenURL(cfg.PublicURL + "/auth/login"); err != nil {
				logger.Warn("failed to open browser", "error", err)
				fmt.Printf("Please open %s/auth/login in your browser\n", cfg.PublicURL)
			}
		}

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-quit:
			fmt.Printf("\nReceived %s, shutting down...\n", sig)
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := server.Shutdown(ctx); err != nil {
				return fmt.Errorf("server shutdown failed: %w", err)
			}
			return nil
		case err := <-done:
			return err
		}
	},
}

func parsePrefixes(values []string) ([]netip.Prefix, error) {
	prefixes := make([]netip.Prefix, 0, len(values))
	for _, s := range values {
		p, err := netip.ParsePrefix(s)
		if err != nil {
			return nil, fmt.Errorf("invalid trusted proxy %q: %w", s, err)
		}
		prefixes = append(prefixes, p)
	}
	return prefixes, nil
}

func init() {
	rootCmd.AddCommand(serverCmd)
	serverCmd.Flags().IntP("port", "p", 8080, "Port to listen on")
	serverCmd.Flags().String("listen", config.DefaultListenHost, "IP address to bind; anyone who can reach it acts as the signed-in user")
	serverCmd.Flags().String("public-url", "", "Public origin of this client (default http://localhost:<port>)")
	serverCmd.Flags().BoolVar(&openBrowser, "open", false, "Open the login page in the browser after start")
	serverCmd.Flags().StringVar(&tlsCert, "tls-cert", "", "Path to TLS certificate file")
	serverCmd.Flags().StringVar(&tlsKey, "tls-key", "", "Path to TLS key file")
	serverCmd.Flags().StringSliceVar(&trustedProxies, "trusted-proxy", nil, "CIDR of a reverse proxy whose forwarding headers are trusted (combine with --listen when the proxy runs on another host)")
	bindFlag(config.KeyServerPort, serverCmd, "port")
	bindFlag(config.KeyServerListen, serverCmd, "listen")
	bindFlag(config.KeyPublicURL, serverCmd, "public-url")
}
