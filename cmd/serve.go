package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/viaduct-dev/viaduct/internal/config"
	"github.com/viaduct-dev/viaduct/internal/logging"
	"github.com/viaduct-dev/viaduct/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the development server",
	Long: `Start the development server over the project root. Source files are
compiled on first request and cached; file changes invalidate precisely and
push hot updates to connected pages.

Examples:
  viaduct serve                        # Serve the current directory
  viaduct serve --root ./app --port 4000
  viaduct serve --no-open              # Don't open the browser`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().IntP("port", "p", 3000, "Port to serve on")
	serveCmd.Flags().String("host", "localhost", "Host to bind to")
	serveCmd.Flags().String("root", ".", "Project root directory")
	serveCmd.Flags().Bool("open", false, "Open the browser after start")
	serveCmd.Flags().String("compiler", "vuec", "Compiler command invoked per compile call")
	serveCmd.Flags().Bool("no-hmr", false, "Disable hot module replacement")

	viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
	viper.BindPFlag("server.host", serveCmd.Flags().Lookup("host"))
	viper.BindPFlag("server.open", serveCmd.Flags().Lookup("open"))
	viper.BindPFlag("root", serveCmd.Flags().Lookup("root"))
	viper.BindPFlag("compiler.command", serveCmd.Flags().Lookup("compiler"))

	addFlagValidation(serveCmd, "port", validatePort)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	if noHMR, _ := cmd.Flags().GetBool("no-hmr"); noHMR {
		cfg.HMR.Enabled = false
	}

	logger := logging.New(&logging.Config{
		Level:      logging.ParseLevel(cfg.Log.Level),
		Format:     cfg.Log.Format,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})

	srv, err := server.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("assembling server: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Fprintln(os.Stderr, "Shutting down...")
		if shutdownErr := srv.Shutdown(ctx); shutdownErr != nil {
			fmt.Fprintln(os.Stderr, "Shutdown error:", shutdownErr)
		}
		cancel()
	}()

	fmt.Printf("viaduct serving %s at http://%s:%d\n", cfg.Root, cfg.Server.Host, cfg.Server.Port)

	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}
