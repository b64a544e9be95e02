// Package cmd wires pkg/redisnode, internal/adminapi and
// internal/metrics into a runnable daemon. Grounded directly on
// Luit-rcp/cmd/root.go: a Cobra root command, Viper flag/env binding via
// cobra.OnInitialize(initConfig), and an Execute() entrypoint called
// from main.main().
package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/lumadb/redisnode/internal/adminapi"
	"github.com/lumadb/redisnode/internal/metrics"
	"github.com/lumadb/redisnode/pkg/redisnode"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "redisnode",
	Short: "Single-node Redis client state machine",
	Long: `redisnode connects to one Redis (or Redis Cluster node) and exposes a
bounded, pipelined command window over it, reconnecting automatically and
reporting connection status. This binary is a thin runner around
pkg/redisnode for smoke-testing a node and its optional admin surface
from the shell; embed pkg/redisnode directly for anything else.`,
	RunE: run,
}

// Execute activates the redisnode command. Called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(64)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.Flags()
	flags.StringVarP(&cfgFile, "config", "c", "", "config file (default: $HOME/.redisnode.yaml)")

	flags.String("host", "127.0.0.1", "Redis host to connect to")
	flags.Int("port", 6379, "Redis port to connect to")
	flags.Int("resp-version", 3, "RESP protocol version to negotiate (2 or 3)")
	flags.Bool("use-cluster-id", false, "send CLUSTER MYID during the handshake")

	flags.Int("max-waiting", 5000, "max commands waiting to be sent before the oldest are dropped")
	flags.Int("max-pending", 128, "max in-flight commands awaiting a reply")
	flags.Int("queue-ok-level", 2000, "waiting-queue depth that clears a queue_full status")
	flags.Duration("reconnect-wait", time.Second, "delay between reconnect attempts")
	flags.Duration("node-down-timeout", 3*time.Second, "disconnected duration before node_down")

	flags.StringSlice("kafka-brokers", nil, "Kafka brokers for the optional status sink")
	flags.String("kafka-topic", "", "Kafka topic for the optional status sink")

	flags.String("admin-addr", "", "address for the admin HTTP/GraphQL/WebSocket surface (empty disables it)")
	flags.String("admin-jwt-secret", "", "HMAC secret for admin JWTs (required if admin-addr is set)")
	flags.String("admin-password", "", "admin login password; if empty, one is generated and persisted to admin-password-file")
	flags.String("admin-password-file", "redisnode-admin-password.json", "where to persist a generated admin password")

	flags.Duration("heartbeat-interval", 0, "interval between stats heartbeat logs (0 disables it)")

	for _, name := range knownConfigKeys {
		if err := viper.BindPFlag(name, flags.Lookup(name)); err != nil {
			panic(err)
		}
	}
}

// knownConfigKeys are the only keys redisnode recognizes, from a config
// file, the environment, or flags. Anything else in the config file is
// rejected by validateConfigKeys rather than silently ignored.
var knownConfigKeys = []string{
	"host", "port", "resp-version", "use-cluster-id",
	"max-waiting", "max-pending", "queue-ok-level", "reconnect-wait", "node-down-timeout",
	"kafka-brokers", "kafka-topic",
	"admin-addr", "admin-jwt-secret", "admin-password", "admin-password-file",
	"heartbeat-interval",
}

// validateConfigKeys fails with an unknown key loaded from the config file
// (environment variables are only consulted for known keys), matching spec.md §7's "unknown option at init is a fatal
// configuration error."
func validateConfigKeys() error {
	known := make(map[string]bool, len(knownConfigKeys))
	for _, k := range knownConfigKeys {
		known[k] = true
	}
	for _, k := range viper.AllKeys() {
		if !known[k] {
			return fmt.Errorf("redisnode: unknown config key %q", k)
		}
	}
	return nil
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName(".redisnode")
		viper.AddConfigPath("$HOME")
	}
	viper.SetEnvPrefix("redisnode")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			fmt.Printf("Unable to read config: %v\n", err)
		}
	}

	if err := validateConfigKeys(); err != nil {
		fmt.Println(err)
		os.Exit(64)
	}
}

func run(cmd *cobra.Command, args []string) error {
	log, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("redisnode: build logger: %w", err)
	}
	defer log.Sync()

	client, err := redisnode.Start(viper.GetString("host"), viper.GetInt("port"), redisnode.Options{
		RESPVersion:     viper.GetInt("resp-version"),
		UseClusterID:    viper.GetBool("use-cluster-id"),
		MaxWaiting:      viper.GetInt("max-waiting"),
		MaxPending:      viper.GetInt("max-pending"),
		QueueOkLevel:    viper.GetInt("queue-ok-level"),
		ReconnectWait:   viper.GetDuration("reconnect-wait"),
		NodeDownTimeout: viper.GetDuration("node-down-timeout"),
		KafkaBrokers:    viper.GetStringSlice("kafka-brokers"),
		KafkaTopic:      viper.GetString("kafka-topic"),
		Logger:          log,
	})
	if err != nil {
		return fmt.Errorf("redisnode: start: %w", err)
	}
	defer client.Stop(nil)

	if interval := viper.GetDuration("heartbeat-interval"); interval > 0 {
		hb, err := metrics.New(client.Node(), log, fmt.Sprintf("@every %s", interval))
		if err != nil {
			return fmt.Errorf("redisnode: heartbeat: %w", err)
		}
		hb.Start()
		defer hb.Stop(context.Background())
	}

	if addr := viper.GetString("admin-addr"); addr != "" {
		secret := viper.GetString("admin-jwt-secret")
		if secret == "" {
			return fmt.Errorf("redisnode: admin-addr set but admin-jwt-secret is not")
		}
		password := viper.GetString("admin-password")
		if password == "" {
			generated, err := adminapi.LoadOrCreateAdminPassword(viper.GetString("admin-password-file"))
			if err != nil {
				return fmt.Errorf("redisnode: admin password: %w", err)
			}
			password = generated
			log.Info("generated admin password", zap.String("file", viper.GetString("admin-password-file")))
		}
		// internal/adminapi needs *core.Node, not *redisnode.Client; both
		// this command and the Client wrap the same Node, so the admin
		// surface is built directly against it.
		srv, err := adminapi.NewServer(client.Node(), log, []byte(secret), password)
		if err != nil {
			return fmt.Errorf("redisnode: admin server: %w", err)
		}
		httpSrv := &http.Server{Addr: addr, Handler: srv.Handler()}
		go func() {
			if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error("admin server stopped", zap.Error(err))
			}
		}()
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			httpSrv.Shutdown(ctx)
		}()
		log.Info("admin surface listening", zap.String("addr", addr))
	}

	log.Info("redisnode started", zap.String("host", viper.GetString("host")), zap.Int("port", viper.GetInt("port")))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh
	log.Info("redisnode shutting down")
	return nil
}
