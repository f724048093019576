package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/chainsafe/switchly-settlement/pkg/app/bootstrap"
	"github.com/chainsafe/switchly-settlement/pkg/config"
	swapservice "github.com/chainsafe/switchly-settlement/pkg/swap/service"
)

var (
	configPath string
	jsonOutput bool
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "swapctl",
	Short: "Operator CLI for SWITCH bridge swaps",
	Long: `swapctl quotes cross-chain swaps routed through the SWITCH bridge network
and follows their settlement from the source deposit to the destination payout.

Examples:
  swapctl pools
  swapctl quote 1 BTC.BTC ETH.ETH
  swapctl rate ETH.ETH XLM.XLM
  swapctl memo build swap XLM.XLM GDEST...
  swapctl memo match "OUT:AABBCCDD...778899AABB" 0xaabbccdd...
  swapctl watch --source-chain ETH --hash 0x... --memo SWAP:XLM.XLM:GDEST...`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "Path to configuration file")
	rootCmd.PersistentFlags().BoolVarP(&jsonOutput, "json", "j", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
}

// env is what commands talking to the bridge network need.
type env struct {
	cfg        *config.Config
	logger     *zap.Logger
	components *bootstrap.Components
	service    swapservice.Service
}

func loadEnv(ctx context.Context) (*env, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	cfg.Logging.Format = "console"
	cfg.Logging.OutputPath = "stderr"
	cfg.Logging.Level = "warn"
	if verbose {
		cfg.Logging.Level = "debug"
	}
	logger, err := config.NewLogger(cfg.Logging, "swapctl")
	if err != nil {
		return nil, fmt.Errorf("setup logger: %w", err)
	}

	components, err := bootstrap.Build(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	return &env{
		cfg:        cfg,
		logger:     logger,
		components: components,
		service:    swapservice.NewService(components.Pools, components.Registry, components.Engine, components.Matcher, nil, logger),
	}, nil
}

func (e *env) Close() {
	e.components.Close()
	_ = e.logger.Sync()
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func printError(err error) {
	fmt.Printf("\n%s %v\n\n", color.RedString("Error:"), err)
}
