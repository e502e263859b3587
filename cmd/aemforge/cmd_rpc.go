package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"

	"github.com/spboyer/aemforge/internal/jsonrpc"
	"github.com/spf13/cobra"
)

func newRPCCommand(a *app) *cobra.Command {
	var (
		tcpAddr        string
		tcpAllowRemote bool
		engine         string
	)

	cmd := &cobra.Command{
		Use:   "rpc",
		Short: "Start a JSON-RPC 2.0 server for editor integration",
		Long: `Start a JSON-RPC 2.0 server for editor integration.

By default, the server communicates over stdin/stdout using newline-delimited JSON.
Use --tcp to listen on a TCP address instead. TCP defaults to loopback
(127.0.0.1); use --tcp-allow-remote to bind to all interfaces.

Supported methods:
  job.submit    Submit a generation request (returns the job id; "watch": true
                streams job.progress notifications)
  job.status    Get the status of a job
  job.result    Get the result of a completed job
  bundle.score  Score an artifact bundle`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.config()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			rt, err := newServices(ctx, cfg, serviceOptions{generator: true, engine: engine})
			if err != nil {
				return err
			}
			defer rt.Close() //nolint:errcheck
			// In-flight jobs finish before the store closes.
			defer rt.orch.Wait()

			logger := slog.Default()
			server := newRPCServer(rt, logger)

			if tcpAddr == "" {
				fmt.Fprintln(cmd.ErrOrStderr(), "JSON-RPC server running on stdio") //nolint:errcheck
				server.ServeStdio(ctx, cmd.InOrStdin(), cmd.OutOrStdout())
				return nil
			}
			return serveRPCTCP(ctx, server, resolveTCPAddr(tcpAddr, tcpAllowRemote, logger), cmd)
		},
	}

	cmd.Flags().StringVar(&tcpAddr, "tcp", "", "TCP address to listen on (e.g., :9000)")
	cmd.Flags().BoolVar(&tcpAllowRemote, "tcp-allow-remote", false,
		"Allow binding to non-loopback addresses (WARNING: exposes the server to the network with no authentication)")
	cmd.Flags().StringVar(&engine, "engine", "", "Generator engine: copilot, ollama or scripted (overrides config)")
	return cmd
}

func newRPCServer(rt *services, logger *slog.Logger) *jsonrpc.Server {
	registry := jsonrpc.NewMethodRegistry()
	jsonrpc.RegisterHandlers(registry, jsonrpc.NewHandlerContext(rt.orch, rt.scorer, logger))
	return jsonrpc.NewServer(registry, logger)
}

func serveRPCTCP(ctx context.Context, server *jsonrpc.Server, addr string, cmd *cobra.Command) error {
	listener, err := jsonrpc.NewTCPListener(addr, server)
	if err != nil {
		return fmt.Errorf("failed to start TCP server: %w", err)
	}
	defer listener.Close() //nolint:errcheck

	fmt.Fprintf(cmd.ErrOrStderr(), "JSON-RPC server listening on %s\n", listener.Addr()) //nolint:errcheck
	return listener.Serve(ctx)
}

// resolveTCPAddr keeps TCP addresses on loopback unless allowRemote is set.
func resolveTCPAddr(addr string, allowRemote bool, logger *slog.Logger) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		// A bare port such as "9000".
		host = ""
		port = addr
	}

	if allowRemote {
		logger.Warn("TCP server binding to all interfaces without authentication", "address", addr)
		return addr
	}

	if host == "" || host == "0.0.0.0" || host == "::" {
		return net.JoinHostPort("127.0.0.1", port)
	}
	return addr
}
