// Package cli wires the cobra command tree to the transfer service.
package cli

import (
	"log/slog"

	"hairshop/internal/config"
	"hairshop/internal/transfer"
)

// Root carries the shared dependencies of every subcommand.
type Root struct {
	cfg   *config.Config
	log   *slog.Logger
	svc   *transfer.Service
	model *transfer.Barbershop
}

// NewRoot constructs the CLI root.
func NewRoot(cfg *config.Config, logger *slog.Logger, svc *transfer.Service, model *transfer.Barbershop) *Root {
	return &Root{
		cfg:   cfg,
		log:   logger,
		svc:   svc,
		model: model,
	}
}
