package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spboyer/aemforge/internal/webapi"
	"github.com/spboyer/aemforge/internal/webserver"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

type serveOptions struct {
	host           string
	port           int
	allowOrigins   []string
	engine         string
	rpcTCP         string
	tcpAllowRemote bool
}

func newServeCommand(a *app) *cobra.Command {
	o := &serveOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		Long: `Start the HTTP API server.

Endpoints:
  GET  /api/health                          Health check
  POST /api/components/generate             Submit a generation job (202 + job id)
  POST /api/components/generate-sync        Generate and wait for the result
  GET  /api/components/status/{id}          Job status
  GET  /api/components/watch/{id}           Websocket progress stream
  GET  /api/components/result/{id}          Job result
  GET  /api/components/result/{id}/report   HTML report
  POST /api/validate                        Score an artifact bundle

With --rpc-tcp the JSON-RPC server runs next to it on the same job store.`,
		Example: `  aemforge serve
  aemforge serve --port 9000 --allow-origin http://localhost:3000
  aemforge serve --engine ollama --rpc-tcp :9100`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, a, o)
		},
	}

	f := cmd.Flags()
	f.StringVar(&o.host, "host", "", "Address to bind (overrides config)")
	f.IntVarP(&o.port, "port", "p", 0, "Port to listen on (overrides config)")
	f.StringArrayVar(&o.allowOrigins, "allow-origin", nil, "Allowed CORS origin (repeatable, overrides config)")
	f.StringVar(&o.engine, "engine", "", "Generator engine: copilot, ollama or scripted (overrides config)")
	f.StringVar(&o.rpcTCP, "rpc-tcp", "", "Also serve JSON-RPC on this TCP address")
	f.BoolVar(&o.tcpAllowRemote, "tcp-allow-remote", false, "Allow the JSON-RPC listener on non-loopback addresses")
	return cmd
}

func runServe(cmd *cobra.Command, a *app, o *serveOptions) error {
	cfg, err := a.config()
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := newServices(ctx, cfg, serviceOptions{generator: true, engine: o.engine})
	if err != nil {
		return err
	}
	defer rt.Close() //nolint:errcheck
	defer rt.orch.Wait()

	sc := webserver.Config{
		Host:           cfg.Server.Host,
		Port:           cfg.Server.Port,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		RateLimit: webapi.RateLimitConfig{
			Calls:  cfg.Server.RateLimit.Calls,
			Period: cfg.Server.RateLimit.Period,
		},
		SyncTimeout: cfg.Server.SyncTimeout,
		Jobs:        rt.orch,
		Scorer:      rt.scorer,
		Logger:      slog.Default(),
	}
	if o.host != "" {
		sc.Host = o.host
	}
	if o.port != 0 {
		sc.Port = o.port
	}
	if len(o.allowOrigins) > 0 {
		sc.AllowedOrigins = o.allowOrigins
	}

	srv, err := webserver.New(sc)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "aemforge %s serving on http://%s (engine %s, %s store)\n", //nolint:errcheck
		version, srv.Addr(), engineName(cfg.Agent.Engine, o.engine), cfg.Store.Backend)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.ListenAndServe(gctx)
	})
	if o.rpcTCP != "" {
		rpc := newRPCServer(rt, slog.Default())
		addr := resolveTCPAddr(o.rpcTCP, o.tcpAllowRemote, slog.Default())
		g.Go(func() error {
			return serveRPCTCP(gctx, rpc, addr, cmd)
		})
	}
	return g.Wait()
}

func engineName(configured, override string) string {
	if override != "" {
		return override
	}
	return configured
}
