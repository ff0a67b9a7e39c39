package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"

	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"chat/config"
	"chat/internal/api"
	"chat/internal/feed"
)

type App struct {
	cfg      *config.Config
	server   *api.Server
	grpc     *grpc.Server
	listener *feed.Listener
}

func ProvidePostgresApp(cfg *config.Config, server *api.Server, grpcServer *grpc.Server, listener *feed.Listener) *App {
	return &App{cfg: cfg, server: server, grpc: grpcServer, listener: listener}
}

func ProvideMemoryApp(cfg *config.Config, server *api.Server, grpcServer *grpc.Server) *App {
	return &App{cfg: cfg, server: server, grpc: grpcServer}
}

// Run serves HTTP and gRPC and pumps the change stream until ctx is done.
func (a *App) Run(ctx context.Context) error {
	lis, err := net.Listen("tcp", ":"+a.cfg.GRPCPort)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)

	if a.listener != nil {
		g.Go(func() error {
			a.listener.Run(ctx)
			return nil
		})
	}

	g.Go(func() error {
		slog.Info("starting gRPC server", "addr", lis.Addr().String())
		return a.grpc.Serve(lis)
	})
	g.Go(func() error {
		<-ctx.Done()
		a.grpc.GracefulStop()
		return nil
	})

	g.Go(func() error {
		return a.server.Run(ctx)
	})

	return g.Wait()
}
