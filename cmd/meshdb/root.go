package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/meshtools/meshdb/internal/config"
	"github.com/meshtools/meshdb/internal/mqtt"
	"github.com/meshtools/meshdb/internal/observability"
	"github.com/meshtools/meshdb/internal/pipeline"
	"github.com/meshtools/meshdb/internal/storage"
)

var (
	flagConfig string
	flagDB     string
	flagOwner  uint32
)

var rootCmd = &cobra.Command{
	Use:           "meshdb",
	Short:         "Capture and query Meshtastic node databases",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var captureCmd = &cobra.Command{
	Use:   "capture",
	Short: "Subscribe to the MQTT JSON feed and persist packets",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		logger := observability.NewLogger(cfg.LogLevel, observability.WithJSON(cfg.LogJSON))
		slog.SetDefault(logger)

		metrics := observability.NewMetrics()

		owner, err := resolveOwner(cfg)
		if err != nil {
			return err
		}

		db, err := storage.Open(ctx, storage.Config{BasePath: cfg.DatabasePath, Owner: owner},
			storage.WithLogger(observability.Component(logger, "storage")),
			storage.WithMetrics(metrics),
		)
		if err != nil {
			return err
		}
		defer db.Close()

		client, err := mqtt.NewClient(mqtt.Config{
			BrokerHost:  cfg.MQTTBrokerAddress,
			BrokerPort:  cfg.MQTTPort,
			Username:    cfg.MQTTUsername,
			Password:    cfg.MQTTPassword,
			TopicPrefix: cfg.MQTTTopicPrefix,
			TopicSuffix: cfg.MQTTTopicSuffix,
			ClientID:    cfg.MQTTClientID,
			QueueSize:   cfg.CaptureQueueSize,
			Logger:      observability.Component(logger, "mqtt"),
			Metrics:     metrics,
		})
		if err != nil {
			return err
		}

		pipe := pipeline.New(client, db,
			pipeline.WithLogger(observability.Component(logger, "pipeline")),
			pipeline.WithMetrics(metrics),
		)

		obsServer := observability.NewServer(observability.ServerConfig{
			Address: cfg.ObservabilityAddress,
			Logger:  observability.Component(logger, "observability"),
			Metrics: metrics,
		})
		go obsServer.Run(ctx)

		go func() {
			for err := range pipe.Errors() {
				if err == nil || errors.Is(err, context.Canceled) {
					continue
				}
				logger.Error("pipeline error", slog.Any("error", err))
			}
		}()

		logger.Info("meshdb capture starting",
			slog.String("broker_host", cfg.MQTTBrokerAddress),
			slog.Int("broker_port", cfg.MQTTPort),
			slog.String("database", db.Path()),
			slog.String("observability_address", cfg.ObservabilityAddress),
		)

		if err := pipe.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}

		logger.Info("meshdb capture stopped")
		return nil
	},
}

var nodesCmd = &cobra.Command{
	Use:   "nodes",
	Short: "List known nodes with latest position and telemetry",
	RunE: func(cmd *cobra.Command, _ []string) error {
		db, err := openDB(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close()

		nodes, err := db.ListNodes(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(nodes)
	},
}

var resolveCmd = &cobra.Command{
	Use:   "resolve <identifier>",
	Short: "Resolve a name, hex id or node number to node numbers",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close()

		nums, err := db.Resolve(cmd.Context(), storage.TextID(args[0]))
		if err != nil {
			return err
		}
		type match struct {
			NodeID uint32 `json:"node_id"`
			HexID  string `json:"id"`
		}
		matches := make([]match, 0, len(nums))
		for _, n := range nums {
			matches = append(matches, match{NodeID: n, HexID: fmt.Sprintf("!%08x", n)})
		}
		return printJSON(matches)
	},
}

var snapshotCmd = &cobra.Command{
	Use:   "snapshot <identifier>",
	Short: "Show the stored state for every node matching the identifier",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close()

		snaps, err := db.Snapshots(cmd.Context(), storage.TextID(args[0]))
		if err != nil {
			return err
		}
		return printJSON(snaps)
	},
}

var metricCmd = &cobra.Command{
	Use:   "metric <identifier> <field>",
	Short: "Show a single telemetry or identity field for a node",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close()

		val, err := db.Metric(cmd.Context(), storage.TextID(args[0]), args[1])
		if err != nil {
			return err
		}
		return printJSON(val)
	},
}

var messagesCmd = &cobra.Command{
	Use:   "messages",
	Short: "Show text messages grouped by channel and hour",
	RunE: func(cmd *cobra.Command, _ []string) error {
		db, err := openDB(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close()

		channels, err := db.ChannelMessages(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(channels)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Path to YAML config file")
	rootCmd.PersistentFlags().StringVar(&flagDB, "db", "", "Database path (directory or file pattern)")
	rootCmd.PersistentFlags().Uint32Var(&flagOwner, "owner", 0, "Owner node number for the database file")
	rootCmd.AddCommand(captureCmd, nodesCmd, resolveCmd, snapshotCmd, metricCmd, messagesCmd)
}

func loadConfig() (*config.App, error) {
	cfg, err := config.New(flagConfig)
	if err != nil {
		return nil, err
	}
	if flagDB != "" {
		cfg.DatabasePath = flagDB
	}
	if flagOwner != 0 {
		cfg.OwnerNodeNum = flagOwner
	}
	return cfg, nil
}

// resolveOwner returns the configured owner, falling back to scanning the
// database path for exactly one existing owner-suffixed file.
func resolveOwner(cfg *config.App) (uint32, error) {
	if cfg.OwnerNodeNum != 0 {
		return cfg.OwnerNodeNum, nil
	}

	candidates, err := storage.InferOwnerCandidates(cfg.DatabasePath)
	if err != nil {
		return 0, err
	}
	switch len(candidates) {
	case 0:
		return 0, errors.New("owner node number required: set --owner, owner_node_num or MESHDB_OWNER_NODE_NUM")
	case 1:
		return candidates[0], nil
	default:
		return 0, fmt.Errorf("multiple owner databases found %v: pick one with --owner", candidates)
	}
}

func openDB(ctx context.Context) (*storage.DB, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	owner, err := resolveOwner(cfg)
	if err != nil {
		return nil, err
	}
	return storage.Open(ctx, storage.Config{BasePath: cfg.DatabasePath, Owner: owner},
		storage.WithLogger(observability.NoOpLogger()))
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
