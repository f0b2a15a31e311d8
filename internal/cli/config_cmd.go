package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newConfigCmd(root *Root) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return root.configShow()
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			return root.configShow()
		},
	})

	return cmd
}

func (r *Root) configShow() error {
	cfgPath := os.Getenv("HAIRSHOP_CONFIG")
	if cfgPath == "" {
		cfgPath = "(default) ~/.config/hairshop/config.json"
	}
	fmt.Printf("Config file: %s\n\n", cfgPath)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(r.cfg)
}
