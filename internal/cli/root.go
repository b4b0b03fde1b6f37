package cli

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/snappy-loop/estampa/internal/config"
	"github.com/snappy-loop/estampa/internal/controller"
	"github.com/snappy-loop/estampa/internal/llm"
	"github.com/spf13/cobra"
)

// newGenerator builds the image generator from configuration. Tests replace it.
var newGenerator = func(cfg *config.Config) (controller.Generator, string) {
	client := llm.NewClient(cfg.GeminiAPIKey, cfg.GeminiModelImage, cfg.GeminiAPIEndpoint)
	return client, client.Model()
}

var verbose bool

var rootCmd = &cobra.Command{
	Use:           "estampa",
	Short:         "Generate prints from text prompts",
	Long:          `Estampa sends a text prompt to the Imagen API and saves the generated square JPEG.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
		if verbose {
			zerolog.SetGlobalLevel(zerolog.DebugLevel)
		} else {
			zerolog.SetGlobalLevel(zerolog.WarnLevel)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose logging")
}

// Execute runs the root command.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		rootCmd.PrintErrln("Error:", err)
	}
	return err
}
