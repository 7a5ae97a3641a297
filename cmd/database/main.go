// Command database runs the gateway: a thin REST+WebSocket process over the
// Postgres-backed Store port (SPEC_FULL.md's GATEWAY section names this "the
// runnable `database` process" needed alongside the dispatcher).
//
// Bootstrap/shutdown dance grounded on the same teacher main.go pattern as
// cmd/dispatch: context.Context + sync.WaitGroup, signal-driven shutdown
// with a bounded forced-exit timeout.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/nvidia-isaac/mission-dispatch/gateway"
	"github.com/nvidia-isaac/mission-dispatch/shared"
	"github.com/nvidia-isaac/mission-dispatch/store/postgres"
)

const shutdownTimeout = 60 * time.Second

func newRootCmd() *cobra.Command {
	v := shared.NewViper("DATABASE")

	cmd := &cobra.Command{
		Use:   "database",
		Short: "Runs the REST gateway over the Postgres-backed Store",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := v.BindPFlags(cmd.Flags()); err != nil {
				return fmt.Errorf("binding flags: %w", err)
			}
			return run(v)
		},
	}

	flags := cmd.Flags()
	flags.String("db_host", "localhost", "Postgres host")
	flags.Int("db_port", 5432, "Postgres port")
	flags.String("db_user", "postgres", "Postgres user")
	flags.String("db_password", "", "Postgres password")
	flags.String("db_name", "mission_dispatch", "Postgres database name")
	flags.String("bind_address", "0.0.0.0", "Gateway HTTP bind address")
	flags.Int("bind_port", 8080, "Gateway HTTP bind port")
	flags.String("log_level", "info", "Log level: debug|info|warn|error")

	return cmd
}

func dsn(v *viper.Viper) string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		v.GetString("db_host"), v.GetInt("db_port"), v.GetString("db_user"),
		v.GetString("db_password"), v.GetString("db_name"))
}

func run(v *viper.Viper) error {
	shared.LoadDotEnv("")
	if err := shared.InitLogging(v.GetString("log_level")); err != nil {
		return err
	}
	defer shared.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, err := postgres.Connect(postgres.Config{DSN: dsn(v)})
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer shared.SafeClose(st)

	addr := fmt.Sprintf("%s:%d", v.GetString("bind_address"), v.GetInt("bind_port"))
	shared.Infof("database: starting gateway on %s (local IPs: %v)", addr, shared.GetLocalIPs())
	srv := gateway.NewServer(st, addr)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := srv.Run(ctx); err != nil {
			shared.LogError("gateway: Run exited", err)
		}
		cancel()
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-ctx.Done():
		shared.Infof("database: context canceled, shutting down")
	case <-sigs:
		shared.Infof("database: received termination signal, shutting down")
	}
	cancel()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		shared.Infof("database: shut down gracefully")
	case <-time.After(shutdownTimeout):
		shared.Warnf("database: timed out waiting for shutdown, forcing exit")
	}
	return nil
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
