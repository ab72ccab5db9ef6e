package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/markdave123-py/Digesta/internal/app"
	"github.com/markdave123-py/Digesta/internal/config"
	"github.com/markdave123-py/Digesta/internal/core"
	"github.com/markdave123-py/Digesta/internal/services"
)

// sourceExtractor runs the extraction cascade over a file on disk.
type sourceExtractor interface {
	ExtractSource(ctx context.Context, src core.ByteSource, originalName, mime string) (*core.ExtractionResult, error)
}

var (
	summaryLength string
	verbose       bool
)

// Factories are replaced in tests.
var (
	loadConfig    = config.LoadConfig
	newExtractor  = buildExtractor
	newSummarizer = buildSummarizer
)

func buildExtractor(cfg *config.Config, logger *slog.Logger) (sourceExtractor, error) {
	return app.NewExtractor(cfg, logger)
}

func buildSummarizer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (services.Summarizer, func(), error) {
	client, closers, err := app.NewSummarizer(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	return client, func() {
		for _, c := range closers {
			_ = c()
		}
	}, nil
}

var rootCmd = &cobra.Command{
	Use:           "digesta",
	Short:         "Extract and summarize documents from the command line",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var extractCmd = &cobra.Command{
	Use:   "extract [file]",
	Short: "Extract text from a PDF or image",
	Args:  cobra.ExactArgs(1),
	RunE:  runExtract,
}

var summarizeCmd = &cobra.Command{
	Use:   "summarize [file]",
	Short: "Summarize a PDF, image or plain text file",
	Long:  `Extracts text from the file (plain text files are read as is) and prints a summary.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runSummarize,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log pipeline progress to stderr")
	summarizeCmd.Flags().StringVarP(&summaryLength, "length", "l", "medium", "Summary length: short, medium or long")

	rootCmd.AddCommand(extractCmd)
	rootCmd.AddCommand(summarizeCmd)
}

// ExecuteContext runs the root command with ctx.
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func commandLogger(cmd *cobra.Command) *slog.Logger {
	level := slog.LevelError
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
}

func runExtract(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := commandLogger(cmd)

	res, err := extractFile(cmd.Context(), cfg, logger, args[0])
	if err != nil {
		return err
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}

func runSummarize(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := commandLogger(cmd)
	ctx := cmd.Context()

	var text string
	if mimeByExt(args[0]) == "text/plain" {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		text = string(data)
	} else {
		res, err := extractFile(ctx, cfg, logger, args[0])
		if err != nil {
			return err
		}
		text = res.Text
	}

	client, release, err := newSummarizer(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer release()

	svc := services.NewSummaryService(client, nil, nil, nil, logger)
	out, err := svc.Summarize(ctx, services.SummarizeInput{
		Text:         text,
		Length:       summaryLength,
		OriginalName: filepath.Base(args[0]),
	})
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	fmt.Fprintln(w, out.Summary)
	if out.Notice != "" {
		fmt.Fprintf(cmd.ErrOrStderr(), "\n%s\n", out.Notice)
	}
	return nil
}

func extractFile(ctx context.Context, cfg *config.Config, logger *slog.Logger, path string) (*core.ExtractionResult, error) {
	mimeType, err := detectMIME(path)
	if err != nil {
		return nil, err
	}
	extractor, err := newExtractor(cfg, logger)
	if err != nil {
		return nil, err
	}
	return extractor.ExtractSource(ctx, core.NewFileSource(path, false), filepath.Base(path), mimeType)
}

// detectMIME guesses the type from the extension, then from the first bytes.
func detectMIME(path string) (string, error) {
	if t := mimeByExt(path); t != "" {
		return t, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	head := make([]byte, 512)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.SplitN(http.DetectContentType(head[:n]), ";", 2)[0], nil
}

func mimeByExt(path string) string {
	t := mime.TypeByExtension(strings.ToLower(filepath.Ext(path)))
	return strings.TrimSpace(strings.SplitN(t, ";", 2)[0])
}
