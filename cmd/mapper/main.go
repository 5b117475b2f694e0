package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/joeblew999/plat-mapper/internal/config"
	"github.com/joeblew999/plat-mapper/internal/logging"
	"github.com/joeblew999/plat-mapper/internal/server"
)

// Options defines all CLI flags and env vars for the mapper server.
// Flags: --host, --port, --config, --data-dir
// Env vars: SERVICE_HOST, SERVICE_PORT, SERVICE_CONFIG, SERVICE_DATA_DIR
type Options struct {
	Host    string `doc:"Host to bind to" default:"0.0.0.0"`
	Port    int    `doc:"Port to listen on" short:"p" default:"8087"`
	Config  string `doc:"Path to mapper.yaml (defaults to ./mapper.yaml when present)" short:"c"`
	DataDir string `doc:"Directory for the export archive (overrides data.dir)"`
}

func load(opts *Options) (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load(opts.Config)
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	if opts.DataDir != "" {
		cfg.Data.Dir = opts.DataDir
	}
	return cfg, logging.New(os.Stderr, cfg.Log.Level, cfg.Log.Console), nil
}

func newServer(opts *Options) (*server.Server, zerolog.Logger, error) {
	cfg, log, err := load(opts)
	if err != nil {
		return nil, log, err
	}
	srv, err := server.New(server.Config{
		Host:   opts.Host,
		Port:   fmt.Sprintf("%d", opts.Port),
		App:    cfg,
		Logger: log,
	})
	return srv, log, err
}

// listen serves until the server fails or is shut down. A shutdown is not
// an error.
func listen(httpSrv *http.Server) error {
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func main() {
	exitCode := 0
	cli := humacli.New(func(hooks humacli.Hooks, opts *Options) {
		var httpSrv *http.Server

		hooks.OnStart(func() {
			srv, log, err := newServer(opts)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error starting server: %v\n", err)
				os.Exit(1)
			}
			defer srv.Close()

			displayHost := opts.Host
			if displayHost == "0.0.0.0" {
				displayHost = "localhost"
			}
			baseURL := fmt.Sprintf("http://%s:%d", displayHost, opts.Port)
			log.Info().
				Str("server", baseURL).
				Str("docs", baseURL+"/docs").
				Str("openapi", baseURL+"/openapi.json").
				Msg("plat-mapper API server starting")

			httpSrv = &http.Server{
				Addr:              fmt.Sprintf("%s:%d", opts.Host, opts.Port),
				Handler:           srv,
				ReadHeaderTimeout: 10 * time.Second,
			}
			if err := listen(httpSrv); err != nil {
				log.Error().Err(err).Msg("server error")
				exitCode = 1
			}
		})

		hooks.OnStop(func() {
			if httpSrv == nil {
				return
			}
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			httpSrv.Shutdown(ctx)
		})
	})

	cli.Root().Use = "mapper"
	cli.Root().Short = "Measurement and annotation overlay for drone imagery maps"
	cli.Root().Version = server.Version

	// spec subcommand: export OpenAPI spec
	specCmd := &cobra.Command{
		Use:   "spec",
		Short: "Export OpenAPI spec (JSON by default, --yaml for YAML)",
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			srv, _, err := newServer(opts)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error building server: %v\n", err)
				os.Exit(1)
			}
			defer srv.Close()
			spec := srv.OpenAPI()

			useYAML, _ := cmd.Flags().GetBool("yaml")

			var output []byte
			if useYAML {
				output, err = yaml.Marshal(spec)
			} else {
				output, err = json.MarshalIndent(spec, "", "  ")
			}
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error marshaling spec: %v\n", err)
				os.Exit(1)
			}
			fmt.Println(string(output))
		}),
	}
	specCmd.Flags().BoolP("yaml", "y", false, "Output as YAML instead of JSON")
	cli.Root().AddCommand(specCmd)

	cli.Run()
	os.Exit(exitCode)
}
