package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"runtime"

	"github.com/jpfielding/jpegfrag.go/pkg/jpegfrag"
	"github.com/jpfielding/jpegfrag.go/pkg/stream"
	"github.com/jpfielding/jpegfrag.go/pkg/util"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// trial is one synthetic fragmentation: the first Prefix bytes of an image
// followed by Suffix pseudo-random bytes.
type trial struct {
	ID     string `json:"id"`
	Path   string `json:"path"`
	Seed   int64  `json:"seed"`
	Prefix int    `json:"prefix"`
	Suffix int    `json:"suffix"`
	Passed bool   `json:"passed"`
	jpegfrag.Result
}

// detected reports whether the validator stopped inside the random suffix,
// allowing one byte of slack for a marker straddling the splice.
func detected(r jpegfrag.Result, prefix, suffix int) bool {
	return !r.Completed && r.Offset >= int64(prefix)-1 && r.Offset < int64(prefix+suffix)
}

// splice builds the fragmented stream for one seed.
func splice(head []byte, suffix int, seed int64) stream.Bytes {
	tail := make([]byte, suffix)
	rand.New(rand.NewSource(seed)).Read(tail)
	return stream.Concat(head, tail)
}

func writeTrial(w io.Writer, format string, t trial) error {
	if format == "json" {
		j, err := json.Marshal(t)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(w, "%s\n", j)
		return err
	}
	status := "FAILED"
	if t.Passed {
		status = "PASSED"
	}
	_, err := fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%d\t%s\n", t.ID, t.Path, t.Seed, status, t.Offset, t.Info())
	return err
}

func runTrial(v *jpegfrag.Validator, path string, head []byte, suffix int, seed int64) (trial, error) {
	res, err := v.Validate(splice(head, suffix, seed))
	if err != nil {
		return trial{}, fmt.Errorf("%s seed %d: %w", path, seed, err)
	}
	return trial{
		ID:     util.RunUUID(path, seed),
		Path:   path,
		Seed:   seed,
		Prefix: len(head),
		Suffix: suffix,
		Passed: detected(res, len(head), suffix),
		Result: res,
	}, nil
}

// runTrials validates seeds [0, seeds) on at most workers goroutines.
// Results are returned in seed order.
func runTrials(ctx context.Context, v *jpegfrag.Validator, path string, head []byte, suffix, seeds, workers int) ([]trial, error) {
	out := make([]trial, seeds)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(workers, 1))
	for seed := range seeds {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			t, err := runTrial(v, path, head, suffix, int64(seed))
			out[seed] = t
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func NewFragmentCmd(ctx context.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fragment [files...]",
		Short: "measure how often a spliced fragment is detected",
		Long: "fragment keeps the first --prefix bytes of each input, appends --suffix bytes of " +
			"seeded random data and validates the result once per seed. A trial passes when " +
			"validation stops inside the random data.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, _ := cmd.Flags().GetString("format")
			insecure, _ := cmd.Flags().GetBool("insecure")
			prefix, _ := cmd.Flags().GetInt("prefix")
			suffix, _ := cmd.Flags().GetInt("suffix")
			seeds, _ := cmd.Flags().GetInt("seeds")
			workers, _ := cmd.Flags().GetInt("workers")
			if prefix < 0 || suffix < 0 || seeds < 0 {
				return fmt.Errorf("prefix, suffix and seeds must not be negative")
			}
			v := jpegfrag.New(jpegfrag.WithLogger(slog.Default()))
			out := cmd.OutOrStdout()
			var total, passed int
			for _, path := range args {
				s, cls, err := openInput(ctx, path, insecure)
				if err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
				n := min(int64(prefix), s.Len())
				data, err := s.Read(0, int(n))
				head := append([]byte(nil), data...)
				cls.Close()
				if err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
				trials, err := runTrials(ctx, v, path, head, suffix, seeds, workers)
				if err != nil {
					return err
				}
				for _, t := range trials {
					total++
					if t.Passed {
						passed++
					}
					if err := writeTrial(out, format, t); err != nil {
						return fmt.Errorf("writing report: %w", err)
					}
				}
			}
			rate := 0.0
			if total > 0 {
				rate = 100 * float64(passed) / float64(total)
			}
			slog.InfoContext(ctx, "fragmentation summary",
				slog.Int("trials", total), slog.Int("passed", passed), slog.Float64("rate", rate))
			if format != "json" {
				fmt.Fprintf(out, "passed %d of %d (%.2f%%)\n", passed, total, rate)
			}
			return nil
		},
	}
	pf := cmd.PersistentFlags()
	pf.StringP("format", "f", "text", "output format (text|json)")
	pf.Bool("insecure", false, "skip TLS verification for https inputs")
	pf.Int("prefix", 4096, "bytes of the source image to keep")
	pf.Int("suffix", 32768, "bytes of random data to append")
	pf.Int("seeds", 100, "number of random suffixes per input")
	pf.Int("workers", runtime.NumCPU(), "concurrent validations")
	return cmd
}
