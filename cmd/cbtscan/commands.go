package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"cbtscan/internal/answerkey"
	"cbtscan/internal/exam"
	"cbtscan/internal/question"
	"cbtscan/internal/report"
	"cbtscan/internal/textsource"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type cliOptions struct {
	pdftotext string
	logLevel  string

	logger     *zap.Logger
	extractors *textsource.Registry
}

func newRootCmd() *cobra.Command {
	opts := &cliOptions{}

	root := &cobra.Command{
		Use:   "cbtscan",
		Short: "Turn extracted exam text into questions and grade answers",
		Long: `cbtscan reads a multiple-choice exam document (plain text or PDF via
pdftotext), splits it into "Câu N:" questions with A-D options, and grades
an answer file against an answer key.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			lvl, err := zapcore.ParseLevel(opts.logLevel)
			if err != nil {
				return fmt.Errorf("invalid --log-level: %w", err)
			}
			zc := zap.NewDevelopmentConfig()
			zc.Level = zap.NewAtomicLevelAt(lvl)
			zc.OutputPaths = []string{"stderr"}
			opts.logger, err = zc.Build()
			if err != nil {
				return err
			}
			opts.extractors = textsource.NewRegistry(opts.pdftotext)
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if opts.logger != nil {
				_ = opts.logger.Sync()
			}
		},
	}
	root.PersistentFlags().StringVar(&opts.pdftotext, "pdftotext", os.Getenv("PDFTOTEXT_PATH"), "path to the pdftotext binary")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "log level (debug, info, warn, error)")

	root.AddCommand(
		newCanonicalizeCmd(opts),
		newParseCmd(opts),
		newImportKeyCmd(opts),
		newScoreCmd(opts),
	)
	return root
}

func newCanonicalizeCmd(opts *cliOptions) *cobra.Command {
	var trace bool
	cmd := &cobra.Command{
		Use:   "canonicalize [document]",
		Short: "Print the canonical form of a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := readDocument(cmd, opts, args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if !trace {
				_, err = fmt.Fprintln(out, question.Canonicalize(raw))
				return err
			}
			for _, s := range question.Trace(raw) {
				if _, err := fmt.Fprintf(out, "=== %s\n%s\n", s.Pass, s.Text); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&trace, "trace", false, "print the text after every pass")
	return cmd
}

func newParseCmd(opts *cliOptions) *cobra.Command {
	var (
		watch    bool
		debounce time.Duration
	)
	cmd := &cobra.Command{
		Use:   "parse [document]",
		Short: "Parse a document into questions and print them as JSON",
		Long: `Parse a document into questions and print them as JSON.

With --watch the document is parsed again every time it changes, until
interrupted.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			if err := parseAndPrint(cmd, opts, path); err != nil {
				return err
			}
			if !watch {
				return nil
			}

			fw, err := newFileWatcher(path)
			if err != nil {
				return err
			}
			opts.logger.Info("watching document", zap.String("path", path))
			return fw.run(cmd.Context(), debounce, func() {
				if err := parseAndPrint(cmd, opts, path); err != nil {
					opts.logger.Warn("reparse failed", zap.String("path", path), zap.Error(err))
				}
			})
		},
	}
	cmd.Flags().BoolVar(&watch, "watch", false, "reparse whenever the document changes")
	cmd.Flags().DurationVar(&debounce, "debounce", 300*time.Millisecond, "quiet period before reparsing")
	return cmd
}

type parseOutput struct {
	Document         string              `json:"document"`
	Count            int                 `json:"count"`
	Questions        []question.Question `json:"questions"`
	DuplicateNumbers []int               `json:"duplicate_numbers,omitempty"`
}

func parseAndPrint(cmd *cobra.Command, opts *cliOptions, path string) error {
	raw, err := readDocument(cmd, opts, path)
	if err != nil {
		return err
	}
	qs := question.ParseText(raw)
	dups := question.DuplicateNumbers(qs)
	if len(dups) > 0 {
		opts.logger.Warn("duplicate question numbers", zap.String("path", path), zap.Ints("numbers", dups))
	}
	return writeJSON(cmd.OutOrStdout(), parseOutput{
		Document:         filepath.Base(path),
		Count:            len(qs),
		Questions:        qs,
		DuplicateNumbers: dups,
	})
}

func newImportKeyCmd(opts *cliOptions) *cobra.Command {
	var (
		docPath string
		format  string
	)
	cmd := &cobra.Command{
		Use:   "import-key [key-file]",
		Short: "Validate an answer key against a document",
		Long: `Validate an answer key (json, yaml or xlsx) against the questions of a
document and print the accepted entries keyed by question number.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			qs, err := loadQuestions(cmd, opts, docPath)
			if err != nil {
				return err
			}
			key, report, err := importFile(args[0], format, qs)
			if err != nil {
				return err
			}
			opts.logger.Info("answer key imported",
				zap.Int("accepted", report.Accepted),
				zap.Int("skipped", report.Skipped),
			)
			return writeJSON(cmd.OutOrStdout(), struct {
				Report answerkey.ImportReport `json:"report"`
				Key    map[string]string      `json:"key"`
			}{Report: report, Key: answerkey.Export(qs, key)})
		},
	}
	cmd.Flags().StringVar(&docPath, "doc", "", "exam document the key belongs to")
	cmd.Flags().StringVar(&format, "format", "", "key format (json, yaml, xlsx); default from extension")
	_ = cmd.MarkFlagRequired("doc")
	return cmd
}

func newScoreCmd(opts *cliOptions) *cobra.Command {
	var docPath, keyPath, answersPath, xlsxPath string
	cmd := &cobra.Command{
		Use:   "score",
		Short: "Grade an answer file against an answer key",
		Long: `Grade an answer file against an answer key. Both files use the answer
key formats: a mapping of question number to letter, or a list of
{number, answer} records.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			qs, err := loadQuestions(cmd, opts, docPath)
			if err != nil {
				return err
			}
			key, _, err := importFile(keyPath, "", qs)
			if err != nil {
				return fmt.Errorf("key: %w", err)
			}
			answers, _, err := importFile(answersPath, "", qs)
			if err != nil {
				return fmt.Errorf("answers: %w", err)
			}
			rep := exam.Reconcile(qs, exam.AnswerMap(answers), key, true)
			if xlsxPath != "" {
				body, err := report.BuildXLSX(&exam.Sheet{
					Name:      filepath.Base(docPath),
					Questions: qs,
					Answers:   exam.AnswerMap(answers),
					Key:       key,
					Submitted: true,
				})
				if err != nil {
					return err
				}
				if err := os.WriteFile(xlsxPath, body, 0o644); err != nil {
					return err
				}
				opts.logger.Info("report written", zap.String("path", xlsxPath))
			}
			return writeJSON(cmd.OutOrStdout(), rep)
		},
	}
	cmd.Flags().StringVar(&docPath, "doc", "", "exam document")
	cmd.Flags().StringVar(&keyPath, "key", "", "answer key file")
	cmd.Flags().StringVar(&answersPath, "answers", "", "answer file")
	cmd.Flags().StringVar(&xlsxPath, "xlsx", "", "also write the graded report to this workbook")
	_ = cmd.MarkFlagRequired("doc")
	_ = cmd.MarkFlagRequired("key")
	_ = cmd.MarkFlagRequired("answers")
	return cmd
}

func readDocument(cmd *cobra.Command, opts *cliOptions, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	return opts.extractors.Extract(cmd.Context(), path, f)
}

func loadQuestions(cmd *cobra.Command, opts *cliOptions, path string) ([]question.Question, error) {
	raw, err := readDocument(cmd, opts, path)
	if err != nil {
		return nil, err
	}
	qs := question.ParseText(raw)
	if len(qs) == 0 {
		return nil, fmt.Errorf("%s: no questions found", path)
	}
	return qs, nil
}

func importFile(path, format string, qs []question.Question) (answerkey.KeyMap, answerkey.ImportReport, error) {
	doc, err := os.ReadFile(path)
	if err != nil {
		return nil, answerkey.ImportReport{}, err
	}
	if format == "" {
		format = filepath.Ext(path)
	}
	return answerkey.ImportFormat(format, doc, qs)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
