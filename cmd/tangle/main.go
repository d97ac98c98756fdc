// Command tangle is the CLI front end for the azadi-tangle engine: it reads
// input documents from disk, drives the Tangler, and reports a single-line
// diagnostic on failure.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/my-mcp/azadi-tangle/internal/config"
	"github.com/my-mcp/azadi-tangle/internal/tangler"
	"github.com/my-mcp/azadi-tangle/internal/writer"
)

var (
	configPath string
	logLevel   string

	genDir         string
	privDir        string
	openDelim      string
	closeDelim     string
	chunkEnd       string
	commentMarkers string

	chunkNames      string
	outputPath      string
	allowOverwrites bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "tangle",
		Short: "azadi-tangle - a noweb-style literate-programming tangler",
		Long: `A batch tangler that expands @file chunks from literate "web" documents
into generated source files, or streams an arbitrary chunk's expansion to stdout.`,
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to configuration file")
	rootCmd.PersistentFlags().StringVarP(&logLevel, "log-level", "l", "", "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(tangleCmd())
	rootCmd.AddCommand(chunkCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func tangleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tangle [input files...]",
		Short: "Expand every @file chunk and commit the generated sources",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTangle(args)
		},
	}

	cmd.Flags().StringVar(&genDir, "gen", "", "Generation root directory (overrides config)")
	cmd.Flags().StringVar(&privDir, "priv-dir", "", "Private staging root directory (overrides config)")
	cmd.Flags().StringVar(&openDelim, "open-delim", "", "Opening chunk delimiter (overrides config)")
	cmd.Flags().StringVar(&closeDelim, "close-delim", "", "Closing chunk delimiter (overrides config)")
	cmd.Flags().StringVar(&chunkEnd, "chunk-end", "", "Chunk-end marker (overrides config)")
	cmd.Flags().StringVar(&commentMarkers, "comment-markers", "", "Comma-separated comment markers (overrides config)")
	cmd.Flags().BoolVar(&allowOverwrites, "allow-overwrites", false, "Allow committing over externally-modified outputs (overrides config)")

	return cmd
}

func chunkCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chunk [input files...]",
		Short: "Expand named chunks and write them to stdout or --output",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChunk(args)
		},
	}

	cmd.Flags().StringVar(&chunkNames, "chunks", "", "Comma-separated chunk names to expand")
	cmd.Flags().StringVar(&outputPath, "output", "", "Output file (defaults to stdout)")
	cmd.Flags().StringVar(&openDelim, "open-delim", "", "Opening chunk delimiter (overrides config)")
	cmd.Flags().StringVar(&closeDelim, "close-delim", "", "Closing chunk delimiter (overrides config)")
	cmd.Flags().StringVar(&chunkEnd, "chunk-end", "", "Chunk-end marker (overrides config)")
	cmd.Flags().StringVar(&commentMarkers, "comment-markers", "", "Comma-separated comment markers (overrides config)")
	cmd.MarkFlagRequired("chunks")

	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("azadi-tangle v1.0.0")
		},
	}
}

func loadConfig() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if genDir != "" {
		cfg.Paths.GenDir = genDir
	}
	if privDir != "" {
		cfg.Paths.PrivateDir = privDir
	}
	if openDelim != "" {
		cfg.Delimiters.Open = openDelim
	}
	if closeDelim != "" {
		cfg.Delimiters.Close = closeDelim
	}
	if chunkEnd != "" {
		cfg.Delimiters.ChunkEnd = chunkEnd
	}
	if commentMarkers != "" {
		cfg.Delimiters.CommentMarkers = strings.Split(commentMarkers, ",")
	}
	if allowOverwrites {
		cfg.Writer.AllowOverwrites = true
	}

	logger, err := initLogger(cfg.Logging)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	return cfg, logger, nil
}

func buildTangler(cfg *config.Config, logger *zap.Logger) (*tangler.Tangler, error) {
	fs := afero.NewOsFs()

	w, err := writer.NewWithConfig(fs, cfg.Paths.GenDir, cfg.Paths.PrivateDir, writer.Config{
		BackupEnabled:     cfg.Writer.BackupEnabled,
		AllowOverwrites:   cfg.Writer.AllowOverwrites,
		ModificationCheck: cfg.Writer.ModificationCheck,
		BufferSize:        cfg.Writer.BufferSize,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize safe writer: %w", err)
	}

	tg, err := tangler.New(w, cfg.Delimiters.Open, cfg.Delimiters.Close, cfg.Delimiters.ChunkEnd, cfg.Delimiters.CommentMarkers, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tangler: %w", err)
	}
	return tg, nil
}

func readInputs(tg *tangler.Tangler, inputs []string) error {
	for _, path := range inputs {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}
		tg.Read(string(data), path)
	}
	return nil
}

func runTangle(inputs []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	defer logger.Sync()

	tg, err := buildTangler(cfg, logger)
	if err != nil {
		return err
	}

	if err := readInputs(tg, inputs); err != nil {
		return err
	}

	logger.Info("tangling inputs",
		zap.Strings("inputs", inputs),
		zap.String("gen_dir", cfg.Paths.GenDir))

	if err := tg.WriteFiles(); err != nil {
		logger.Error("tangle failed", zap.Error(err))
		return err
	}

	return nil
}

func runChunk(inputs []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	defer logger.Sync()

	tg, err := buildTangler(cfg, logger)
	if err != nil {
		return err
	}

	if err := readInputs(tg, inputs); err != nil {
		return err
	}

	out := os.Stdout
	if outputPath != "" {
		f, err := os.Create(outputPath)
		if err != nil {
			return fmt.Errorf("creating %s: %w", outputPath, err)
		}
		defer f.Close()
		out = f
	}

	for _, name := range strings.Split(chunkNames, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if err := tg.GetChunk(name, out); err != nil {
			logger.Error("chunk expansion failed", zap.String("chunk", name), zap.Error(err))
			return err
		}
	}

	return nil
}

func initLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "timestamp"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	var encoder zapcore.Encoder
	if cfg.Format == "json" {
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	} else {
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	}

	var writeSyncer zapcore.WriteSyncer
	if cfg.OutputPath != "" && cfg.OutputPath != "stderr" {
		file, err := os.OpenFile(cfg.OutputPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o666)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		writeSyncer = zapcore.AddSync(file)
	} else {
		writeSyncer = zapcore.AddSync(os.Stderr)
	}

	core := zapcore.NewCore(encoder, writeSyncer, level)
	logger := zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))

	return logger, nil
}
