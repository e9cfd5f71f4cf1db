package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/mgpai22/vidsrt/internal/config"
	"github.com/mgpai22/vidsrt/internal/logging"
)

var (
	verbose    bool
	logJSON    bool
	configFile string
	envFile    string
	logger     *logging.Logger
)

var rootCmd = &cobra.Command{
	Use:   "vidsrt",
	Short: "Generate SRT captions from video and audio files",
	Long: `vidsrt transcribes speech in video and audio files with a speech
recognition model and writes SubRip (.srt) captions.

Use it from the command line with "generate", or start the web
uploader with "serve".`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if logJSON {
			logger = logging.NewJSONLogger(verbose)
			return
		}
		logger = logging.NewLogger(verbose)
	},
}

// Execute runs the root command; ctx is handed to every subcommand.
func Execute(ctx context.Context) error {
	defer func() {
		if logger != nil {
			logger.Sync()
		}
	}()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().
		BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().
		BoolVar(&logJSON, "log-json", false, "Write logs as JSON (for running behind a log collector)")
	rootCmd.PersistentFlags().
		StringVar(&configFile, "config", "", "Config file (yaml, toml or json)")
	rootCmd.PersistentFlags().
		StringVar(&envFile, "env-file", "", "Env file to load (defaults to .env when present)")
}

// loadConfig merges the command's flags with env and config files
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	return config.Load(config.LoadOptions{
		ConfigFile: configFile,
		EnvFile:    envFile,
	}, cmd.Flags())
}
