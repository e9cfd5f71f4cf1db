package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mgpai22/vidsrt/internal/config"
	ffmpegbin "github.com/mgpai22/vidsrt/internal/ffmpeg"
	"github.com/mgpai22/vidsrt/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web uploader",
	Long: `Start a web server where media files can be uploaded from the browser.

Progress stages and caption lines are streamed to the page as they are
produced, and the finished captions can be downloaded as captions.srt.
The server shuts down gracefully on interrupt.

Examples:
  vidsrt serve
  vidsrt serve --addr 127.0.0.1:9000 --provider gemini
  vidsrt serve --max-upload-size 1073741824 --cors-origins https://example.com`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	addTranscriptionFlags(serveCmd.Flags())
	addTranslationFlags(serveCmd.Flags())

	serveCmd.Flags().
		String("addr", config.DefaultAddr, "Address to listen on")
	serveCmd.Flags().
		Int64("max-upload-size", config.DefaultMaxUploadSize, "Maximum upload size in bytes")
	serveCmd.Flags().
		StringSlice("cors-origins", nil, "Allowed CORS origins (all when empty)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.RequireTranscriber(); err != nil {
		return err
	}

	if _, err := ffmpegbin.Ensure(); err != nil {
		return fmt.Errorf("failed to prepare ffmpeg: %w", err)
	}

	p, err := newPipeline(ctx, cfg)
	if err != nil {
		return err
	}

	srv := server.New(server.Options{
		Addr:          cfg.Addr,
		MaxUploadSize: cfg.MaxUploadSize,
		CORSOrigins:   cfg.CORSOrigins,
		TempDir:       cfg.TempDir,
		RevealPause:   cfg.RevealPause,
		ModelName:     modelLabel(cfg.Provider, cfg.Model),
	}, p, logger.Named("server"))

	fmt.Fprintf(cmd.OutOrStdout(), "Serving on %s\n", displayAddr(cfg.Addr))
	return srv.ListenAndServe(ctx)
}

// displayAddr turns ":8501" into a clickable URL
func displayAddr(addr string) string {
	if len(addr) > 0 && addr[0] == ':' {
		addr = "localhost" + addr
	}
	return "http://" + addr
}
