package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/p7r0x7/vainpath"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/aegyost/dictattack/internal/attack"
	"github.com/aegyost/dictattack/internal/combinations"
	"github.com/aegyost/dictattack/internal/config"
	"github.com/aegyost/dictattack/internal/digest"
	"github.com/aegyost/dictattack/internal/logging"
	"github.com/aegyost/dictattack/internal/stats"
	"github.com/aegyost/dictattack/internal/wordlist"
)

const (
	exitFound     = 0
	exitNotFound  = 1
	exitUsage     = 2
	exitDigest    = 3
	exitCancelled = 130
)

// ExitCoder is implemented by errors that carry a process exit status.
type ExitCoder interface {
	ExitCode() int
}

type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }
func (e *exitError) ExitCode() int { return e.code }

func usageError(format string, args ...any) error {
	return &exitError{code: exitUsage, err: fmt.Errorf(format, args...)}
}

// exitCode maps the error returned by the root command to a process status.
func exitCode(err error) int {
	if err == nil {
		return exitFound
	}
	var ec ExitCoder
	if errors.As(err, &ec) {
		return ec.ExitCode()
	}
	return exitUsage
}

type options struct {
	algorithm string
	wordlist  string
	alphabet  string
	maxLength int
	batchSize int
	timeout   time.Duration
	quiet     bool
	noColor   bool
	logLevel  string

	benchmark  bool
	iterations int
}

func (o *options) addFlags(fs *pflag.FlagSet) {
	fs.StringVarP(&o.algorithm, "algorithm", "a", "md5", "digest algorithm of the target")
	fs.StringVarP(&o.wordlist, "wordlist", "w", "", "dictionary file, one candidate per line (\"-\" reads stdin)")
	fs.StringVar(&o.alphabet, "alphabet", combinations.DefaultAlphabet, "alphabet for brute-force candidates")
	fs.IntVar(&o.maxLength, "max-length", 0, "brute-force every word up to this length instead of a dictionary")
	fs.IntVar(&o.batchSize, "batch-size", attack.DefaultBatchSize, "candidates tested between progress checks")
	fs.DurationVar(&o.timeout, "timeout", 0, "give up after this long (0 disables)")
	fs.BoolVarP(&o.quiet, "quiet", "q", false, "print only the recovered candidate")
	fs.BoolVar(&o.noColor, "no-color", false, "disable colored output")
	fs.StringVar(&o.logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	fs.BoolVar(&o.benchmark, "benchmark", false, "measure digest speed instead of attacking (all algorithms unless -a is given)")
	fs.IntVar(&o.iterations, "iterations", stats.DefaultBenchmarkIterations, "digests timed per algorithm by --benchmark")
	fs.SortFlags = false
}

func newRootCmd(provider digest.Provider, stdout, stderr io.Writer) *cobra.Command {
	o := &options{}
	cmd := &cobra.Command{
		Use:   "dictattack [flags] HASH | --benchmark",
		Short: "Recover the input of a digest by trying candidates in order",
		Long: `Recover the input of a digest by trying candidates in order.

Candidates come from a dictionary (--wordlist) or from every word over
--alphabet up to --max-length. The first candidate whose digest matches
HASH is printed. --benchmark times the digest algorithms instead.

Exit status is 0 when found, 1 when not found, 2 on usage errors,
3 when a digest cannot be computed and 130 when interrupted.`,
		Args: func(cmd *cobra.Command, args []string) error {
			if o.benchmark {
				return cobra.NoArgs(cmd, args)
			}
			return cobra.ExactArgs(1)(cmd, args)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if o.benchmark {
				return o.bench(cmd, provider, stdout)
			}
			return o.run(cmd, provider, args[0], stdout, stderr)
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	o.addFlags(cmd.Flags())
	return cmd
}

// candidates resolves the candidate source and a label for it.
func (o *options) candidates(stdin io.Reader) (attack.Candidates, string, error) {
	switch {
	case o.wordlist != "" && o.maxLength > 0:
		return nil, "", usageError("--wordlist and --max-length are mutually exclusive")
	case o.wordlist == "-":
		words, err := wordlist.Read(stdin)
		if err != nil {
			return nil, "", usageError("stdin: %w", err)
		}
		return words, "stdin", nil
	case o.wordlist != "":
		words, err := wordlist.Load(o.wordlist)
		if err != nil {
			return nil, "", usageError("%w", err)
		}
		return words, vainpath.Simplify(o.wordlist), nil
	case o.maxLength > 0:
		ks, err := combinations.NewKeyspace(o.alphabet, o.maxLength)
		if err != nil {
			return nil, "", usageError("%w", err)
		}
		return ks, fmt.Sprintf("%d-character alphabet up to length %d", ks.Symbols(), o.maxLength), nil
	}
	return nil, "", usageError("one of --wordlist or --max-length is required")
}

func (o *options) run(cmd *cobra.Command, provider digest.Provider, hash string, stdout, stderr io.Writer) error {
	if o.batchSize <= 0 {
		return usageError("--batch-size must be positive")
	}
	alg, err := digest.ParseAlgorithm(o.algorithm)
	if err != nil {
		return usageError("%w", err)
	}
	target, err := digest.NormalizeTarget(hash, alg)
	if err != nil {
		return usageError("%w", err)
	}
	cands, source, err := o.candidates(cmd.InOrStdin())
	if err != nil {
		return err
	}

	log := logging.New(logging.Options{Level: o.logLevel, Writer: stderr})
	out := newPrinter(stdout, o.noColor || !logging.IsTerminal(stdout))

	ctx := cmd.Context()
	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	if !o.quiet {
		fmt.Fprintf(stderr, "Attacking %s digest %s with %d candidates from %s\n",
			alg, target, cands.Len(), source)
	}
	var observe attack.Observer
	if !o.quiet && logging.IsTerminal(stderr) {
		observe = progressLine(stderr)
	}

	run := attack.NewRun(provider,
		attack.WithBatchSize(o.batchSize),
		attack.WithProgressInterval(config.DefaultProgressInterval),
		attack.WithLogger(log),
	)
	res, err := run.Start(ctx, attack.Request{Target: target, Algorithm: alg, Candidates: cands}, observe)
	if res == nil {
		return usageError("%w", err)
	}
	return o.report(out, log, res, err)
}

// bench prints the measured speed of each algorithm, fastest first.
func (o *options) bench(cmd *cobra.Command, provider digest.Provider, stdout io.Writer) error {
	if o.iterations <= 0 {
		return usageError("--iterations must be positive")
	}
	algs := digest.Algorithms()
	if cmd.Flags().Changed("algorithm") {
		alg, err := digest.ParseAlgorithm(o.algorithm)
		if err != nil {
			return usageError("%w", err)
		}
		algs = []digest.Algorithm{alg}
	}

	results, err := stats.CompareAlgorithms(provider, algs, o.iterations, nil)
	if err != nil {
		return &exitError{code: exitDigest, err: err}
	}
	out := newPrinter(stdout, o.noColor || !logging.IsTerminal(stdout))
	for _, m := range results {
		out.line(out.good, fmt.Sprintf("%-8s", m.Algorithm),
			fmt.Sprintf("%10s/s %12s/hash  %s", stats.FormatRate(m.Rate), m.PerHash(), m.Rating()))
	}
	return nil
}

func (o *options) report(out *printer, log zerolog.Logger, res *attack.Result, runErr error) error {
	analysis := stats.Analyze(*res)
	summary := fmt.Sprintf("tested %d of %d in %s (%s/s, %s)",
		res.Tested, res.Total, stats.FormatDuration(res.Elapsed),
		stats.FormatRate(analysis.Rate), analysis.Rating)

	switch res.Outcome {
	case attack.OutcomeFound:
		if o.quiet {
			fmt.Fprintln(out.w, res.Cracked)
			return nil
		}
		out.line(out.good, "FOUND", res.Cracked)
		out.line(out.dim, "", summary)
		return nil
	case attack.OutcomeNotFound:
		if !o.quiet {
			out.line(out.bad, "NOT FOUND", "no candidate matches")
			out.line(out.dim, "", summary)
		}
		return &exitError{code: exitNotFound}
	case attack.OutcomeCancelled:
		if !o.quiet {
			out.line(out.warn, "CANCELLED", summary)
		}
		return &exitError{code: exitCancelled}
	}

	log.Debug().Err(runErr).Msg("attack failed")
	if !o.quiet {
		out.line(out.bad, "FAILED", summary)
	}
	return &exitError{code: exitDigest, err: runErr}
}

type printer struct {
	w    io.Writer
	good *color.Color
	bad  *color.Color
	warn *color.Color
	dim  *color.Color
}

func newPrinter(w io.Writer, plain bool) *printer {
	p := &printer{
		w:    w,
		good: color.New(color.FgGreen, color.Bold),
		bad:  color.New(color.FgRed, color.Bold),
		warn: color.New(color.FgYellow, color.Bold),
		dim:  color.New(color.Faint),
	}
	for _, c := range []*color.Color{p.good, p.bad, p.warn, p.dim} {
		if plain {
			c.DisableColor()
		} else {
			c.EnableColor()
		}
	}
	return p
}

func (p *printer) line(c *color.Color, label, text string) {
	if label == "" {
		c.Fprintln(p.w, text)
		return
	}
	c.Fprint(p.w, label)
	fmt.Fprintln(p.w, " "+text)
}

// progressLine redraws a single status line on a terminal.
func progressLine(w io.Writer) attack.Observer {
	return func(p attack.Progress) {
		line := fmt.Sprintf("%5.1f%%  %d/%d  %s/s  %s",
			p.Percent(), p.Tested, p.Total, stats.FormatRate(p.Throughput()), truncate(p.Current, 24))
		fmt.Fprint(w, "\r\033[K"+line)
		if p.Final {
			fmt.Fprintln(w)
		}
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
