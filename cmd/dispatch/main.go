// Command dispatch runs C4: the dispatcher process that watches the Store
// and the MQTT broker and drives one agent per robot (§4.4, §6).
//
// Bootstrap order and the signal/shutdown dance are grounded on the
// teacher's cmd/roboserver main.go: load .env, build the long-lived
// components, start them under a context.Context + sync.WaitGroup, and
// race a termination signal against a bounded shutdown timeout.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/nvidia-isaac/mission-dispatch/agent"
	"github.com/nvidia-isaac/mission-dispatch/broker"
	"github.com/nvidia-isaac/mission-dispatch/broker/mqttbroker"
	"github.com/nvidia-isaac/mission-dispatch/dispatcher"
	"github.com/nvidia-isaac/mission-dispatch/shared"
	"github.com/nvidia-isaac/mission-dispatch/store/archive"
	"github.com/nvidia-isaac/mission-dispatch/store/postgres"
)

// shutdownTimeout mirrors the teacher's main.go forced-exit deadline.
const shutdownTimeout = 60 * time.Second

func newRootCmd() *cobra.Command {
	v := shared.NewViper("DISPATCH")

	cmd := &cobra.Command{
		Use:   "dispatch",
		Short: "Runs the VDA5050 mission dispatcher",
		RunE: func(cmd *cobra.Command, args []string) error {
			bindFlags(cmd, v)
			return run(v)
		},
	}

	flags := cmd.Flags()
	flags.String("mqtt_host", "localhost", "MQTT broker hostname")
	flags.Int("mqtt_port", 1883, "MQTT broker port")
	flags.String("mqtt_transport", "tcp", "MQTT transport: tcp|websockets")
	flags.String("mqtt_ws_path", "/mqtt", "MQTT websocket path, used when mqtt_transport=websockets")
	flags.String("mqtt_prefix", broker.DefaultPrefix, "MQTT topic prefix")
	flags.String("database_url", "", "Postgres connection string")
	flags.String("log_level", "info", "Log level: debug|info|warn|error")
	flags.String("mission_control_url", "", "Base URL for best-effort side integrations (charging/map-deployment)")
	flags.String("archive_mongo_uri", "", "Mongo URI for the mission audit archive; archiving is disabled when unset")
	flags.String("archive_mongo_database", "mission_dispatch", "Mongo database for the mission audit archive")

	return cmd
}

// bindFlags binds every declared flag into v, so DISPATCH_* environment
// variables and --flags resolve through the same viper.Viper (shared.NewViper
// already wired AutomaticEnv).
func bindFlags(cmd *cobra.Command, v *viper.Viper) {
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		shared.Panicf("dispatch: binding flags: %v", err)
	}
}

func run(v *viper.Viper) error {
	shared.LoadDotEnv("")
	if err := shared.InitLogging(v.GetString("log_level")); err != nil {
		return err
	}
	defer shared.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, err := postgres.Connect(postgres.Config{DSN: v.GetString("database_url")})
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer shared.SafeClose(st)

	transport := mqttbroker.TransportTCP
	if v.GetString("mqtt_transport") == "websockets" {
		transport = mqttbroker.TransportWebsocket
	}
	brokerCfg := mqttbroker.DefaultConfig()
	brokerCfg.Host = v.GetString("mqtt_host")
	brokerCfg.Port = v.GetInt("mqtt_port")
	brokerCfg.Transport = transport
	brokerCfg.WSPath = v.GetString("mqtt_ws_path")
	br, err := mqttbroker.Connect(brokerCfg)
	if err != nil {
		return fmt.Errorf("connecting to MQTT broker: %w", err)
	}
	defer shared.SafeClose(br)
	shared.Infof("dispatch: starting (local IPs: %v)", shared.GetLocalIPs())

	var archiver agent.Archiver
	if uri := v.GetString("archive_mongo_uri"); uri != "" {
		cfg := archive.DefaultConfig()
		cfg.URI = uri
		cfg.Database = v.GetString("archive_mongo_database")
		a, err := archive.Connect(ctx, cfg)
		if err != nil {
			return fmt.Errorf("connecting to mission archive: %w", err)
		}
		defer a.Close(context.Background())
		archiver = a
	}

	d := dispatcher.New(ctx, dispatcher.Config{
		Store:  st,
		Broker: br,
		Topics: broker.Topics{Prefix: v.GetString("mqtt_prefix")},
		Side: agent.SideIntegrations{
			HTTPClient:        httpClient(),
			MissionControlURL: v.GetString("mission_control_url"),
			Archive:           archiver,
		},
	})

	var runErr error
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := d.Run(ctx); err != nil {
			shared.LogError("dispatcher: Run exited", err)
			runErr = err
		}
		cancel()
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-ctx.Done():
		shared.Infof("dispatch: context canceled, shutting down")
	case <-sigs:
		shared.Infof("dispatch: received termination signal, shutting down")
	}
	cancel()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		shared.Infof("dispatch: shut down gracefully")
	case <-time.After(shutdownTimeout):
		shared.Warnf("dispatch: timed out waiting for shutdown, forcing exit")
	}
	return runErr
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// httpClient builds the client used for every best-effort side integration
// (charging/map-deployment/notify), bounded so a wedged endpoint
// never blocks an agent's event loop indefinitely.
func httpClient() *http.Client {
	return &http.Client{Timeout: 30 * time.Second}
}
