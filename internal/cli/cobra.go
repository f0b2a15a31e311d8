package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"sort"
	"syscall"

	"github.com/spf13/cobra"

	"hairshop/internal/imaging"
	"hairshop/internal/server"
	"hairshop/internal/transfer"
)

// NewRootCmd creates the root Cobra command.
func NewRootCmd(root *Root) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "hairshop",
		Short: "Hairshop transfers a reference hairstyle onto a target face",
		Long: `Hairshop drives the Barbershop GAN toolchain: it validates and stages two
input images, runs external face alignment and compositing processes in an
isolated workspace, and returns the blended result.`,
	}

	rootCmd.AddCommand(newTransferCmd(root))
	rootCmd.AddCommand(newServeCmd(root))
	rootCmd.AddCommand(newToolsCmd(root))
	rootCmd.AddCommand(newConfigCmd(root))
	rootCmd.AddCommand(newVersionCmd(root))

	return rootCmd
}

func newTransferCmd(root *Root) *cobra.Command {
	var (
		style      string
		smoothness int
		enhance    bool
		output     string
		keepRun    bool
	)

	cmd := &cobra.Command{
		Use:   "transfer <face_image> <hairstyle_image>",
		Short: "Run a hairstyle transfer",
		Long: `Transfer the hairstyle from a reference image onto a target face.

Examples:
  # Default realistic style
  hairshop transfer face.jpg hair.jpg

  # High-fidelity blend with gentle smoothing
  hairshop transfer face.jpg hair.jpg --style fidelity --smooth 2 -o result.png`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if style == "" {
				style = root.cfg.Defaults.Style
			}
			if smoothness == 0 {
				smoothness = root.cfg.Defaults.Smoothness
			}
			if keepRun {
				root.cfg.Workspace.KeepRuns = true
			}

			validator := imaging.NewValidator(imaging.ConstraintsFromConfig(root.cfg.Validation))
			face, err := validator.ValidateFile(args[0])
			if err != nil {
				return fmt.Errorf("face image: %w", err)
			}
			hair, err := validator.ValidateFile(args[1])
			if err != nil {
				return fmt.Errorf("hairstyle image: %w", err)
			}

			req := transfer.Request{
				Face:       face,
				Hair:       hair,
				Style:      transfer.Style(style),
				Smoothness: smoothness,
				Enhance:    enhance,
			}

			res := root.svc.Transfer(cmd.Context(), req, func(fraction float64, description string) {
				fmt.Printf("[%3.0f%%] %s\n", fraction*100, description)
			})
			if res.Failed() {
				return fmt.Errorf("transfer failed (%s): %s", res.Err.Kind, res.Log)
			}

			if err := imaging.Save(res.Image, output); err != nil {
				return fmt.Errorf("failed to save result: %w", err)
			}
			fmt.Printf("\n%s\n\nResult written to %s\n", res.Log, output)
			return nil
		},
	}

	cmd.Flags().StringVar(&style, "style", "", "transfer style: realistic or fidelity")
	cmd.Flags().IntVar(&smoothness, "smooth", 0, "blend smoothness (1-5)")
	cmd.Flags().BoolVar(&enhance, "enhance", false, "enhance inputs before processing")
	cmd.Flags().StringVarP(&output, "output", "o", "result.png", "output image path")
	cmd.Flags().BoolVar(&keepRun, "keep-run", false, "keep the run workspace for inspection")

	return cmd
}

func newServeCmd(root *Root) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP transfer server",
		Long: `Start an HTTP server exposing the transfer pipeline.

Examples:
  hairshop serve --addr :8080`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr == "" {
				addr = root.cfg.Server.Addr
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			root.log.Info("starting server", "addr", addr)
			return server.New(addr, root.svc, root.log).Start(ctx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (defaults to config)")
	return cmd
}

func newToolsCmd(root *Root) *cobra.Command {
	return &cobra.Command{
		Use:   "tools",
		Short: "Check toolchain availability",
		RunE: func(cmd *cobra.Command, args []string) error {
			status := root.model.ToolchainStatus(cmd.Context())

			names := make([]string, 0, len(status))
			for name := range status {
				names = append(names, name)
			}
			sort.Strings(names)

			fmt.Printf("Toolchain status:\n\n")
			for _, name := range names {
				st := status[name]
				if st.Available {
					fmt.Printf("  ✅ %s", name)
					if st.Version != "" {
						fmt.Printf(" (%s)", st.Version)
					}
					if st.Path != "" {
						fmt.Printf(" at %s", st.Path)
					}
					fmt.Println()
				} else {
					fmt.Printf("  ❌ %s: %s\n", name, st.Error)
				}
			}

			fmt.Printf("\nWorkspace:\n\n")
			if err := checkWritable(root.cfg.Workspace.Root); err != nil {
				fmt.Printf("  ❌ %s: %v\n", root.cfg.Workspace.Root, err)
			} else {
				fmt.Printf("  ✅ %s writable\n", root.cfg.Workspace.Root)
			}
			return nil
		},
	}
}

func checkWritable(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, ".probe-*")
	if err != nil {
		return err
	}
	f.Close()
	return os.Remove(f.Name())
}

func newVersionCmd(root *Root) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			info := root.svc.ModelInfo()
			fmt.Printf("Hairshop v1.0.0-dev\n")
			fmt.Printf("Built with Go %s\n", runtime.Version())
			fmt.Printf("Model: %s (%s)\n", info.Name, info.Architecture)
			fmt.Printf("Styles: %v, smoothness %d-%d\n",
				info.SupportedStyles, info.SmoothnessRange[0], info.SmoothnessRange[1])
			return nil
		},
	}
}
