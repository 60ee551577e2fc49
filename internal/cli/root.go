package cli

import (
	"context"
	"os"
	"os/signal"

	"github.com/layervault/psd"
	"github.com/layervault/psd/internal/config"
	"github.com/layervault/psd/internal/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Version is the psdtool release, set at build time with -ldflags.
var Version = "dev"

// app carries the state shared by every subcommand.
type app struct {
	v       *viper.Viper
	cfg     *config.AppConfig
	cfgFile string
}

// NewRootCommand builds the psdtool command tree.
func NewRootCommand() *cobra.Command {
	a := &app{v: config.New()}

	root := &cobra.Command{
		Use:   "psdtool",
		Short: "Inspect, export and convert Photoshop documents",
		Long: `psdtool reads PSD and PSB documents without Photoshop.

It prints document metadata and the layer tree, exports the composite or
single layers as PNG or TIFF, dumps raw channel data and writes flattened
documents from ordinary images.`,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.cfgFile, "config", "", "config file (default is ./psdtool.yaml)")
	pf.Bool("debug", false, "Enable debug logging")
	pf.String("log-format", "human", "Log format: json or human")
	pf.String("log-file", "", "Also write logs to this file")
	a.bind("log.debug", pf.Lookup("debug"))
	a.bind("log.format", pf.Lookup("log-format"))
	a.bind("log.file", pf.Lookup("log-file"))

	root.AddCommand(
		a.infoCommand(),
		a.layersCommand(),
		a.exportCommand(),
		a.thumbnailCommand(),
		a.dumpCommand(),
		a.convertCommand(),
		versionCommand(),
	)
	return root
}

// Execute runs the root command
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	err := NewRootCommand().ExecuteContext(ctx)
	if err != nil {
		logger.LogError("Command execution failed", err, nil)
	}
	_ = logger.Sync()
	return err
}

func (a *app) bind(key string, flag *pflag.Flag) {
	if err := a.v.BindPFlag(key, flag); err != nil {
		panic("failed to bind flag " + flag.Name + ": " + err.Error())
	}
}

func (a *app) setup(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(a.v, a.cfgFile)
	if err != nil {
		return err
	}
	a.cfg = cfg

	if err := logger.InitLogger(logger.LoggerConfig{
		Debug:     cfg.Log.Debug,
		LogFormat: cfg.Log.Format,
		LogFile:   cfg.Log.File,
	}); err != nil {
		return err
	}
	if a.v.ConfigFileUsed() != "" {
		logger.LogDebug("Loaded config file", map[string]interface{}{"file": a.v.ConfigFileUsed()})
	}
	return nil
}

// open opens a document with the decoder logging through the CLI logger.
func (a *app) open(path string) (*psd.PSD, error) {
	return psd.New(path, psd.WithLogger(logger.Desugar()))
}
