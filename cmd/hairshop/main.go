package main

import (
	"fmt"
	"os"

	"hairshop/internal/cli"
	"hairshop/internal/config"
	"hairshop/internal/execx"
	"hairshop/internal/logging"
	"hairshop/internal/transfer"
	"hairshop/internal/workspace"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.Setup(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to set up logging: %v\n", err)
		os.Exit(1)
	}

	ws, err := workspace.NewManager(cfg.Workspace.Root)
	if err != nil {
		logger.Error("failed to create workspace", "error", err)
		os.Exit(1)
	}

	model := transfer.NewBarbershop(cfg.Toolchain, execx.NewLocal(), logger)
	svc := transfer.NewService(cfg, model, ws, logger)

	root := cli.NewRoot(cfg, logger, svc, model)
	if err := cli.NewRootCmd(root).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
