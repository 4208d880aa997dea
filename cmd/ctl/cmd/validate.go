package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/jpfielding/jpegfrag.go/pkg/jpegfrag"
	"github.com/jpfielding/jpegfrag.go/pkg/stream"
	"github.com/jpfielding/jpegfrag.go/pkg/util"
	"github.com/spf13/cobra"
)

// report is one output row.
type report struct {
	ID   string `json:"id"`
	MD5  string `json:"md5"`
	Path string `json:"path"`
	jpegfrag.Result
}

func writeReport(w io.Writer, format string, r report) error {
	switch format {
	case "json":
		j, err := json.Marshal(r)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(w, "%s\n", j)
		return err
	default:
		_, err := fmt.Fprintf(w, "%s\t%s\t%t\t%d\t%s\n", r.ID, r.Path, r.Completed, r.Offset, r.Info())
		return err
	}
}

// contentID hashes the whole stream a page at a time.
func contentID(s stream.ByteStream) (util.Content, error) {
	return util.HashContent(stream.NewReader(s))
}

func NewValidateCmd(ctx context.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [files...]",
		Short: "report where each JPEG stops being valid",
		Long: "validate walks each input from SOI to EOI and prints one row per file: " +
			"id, path, completed, offset and the reason validation stopped. " +
			"Inputs may be files, '-' for stdin, http(s) URLs, or .gz/.zst compressed files.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, _ := cmd.Flags().GetString("format")
			insecure, _ := cmd.Flags().GetBool("insecure")
			v := jpegfrag.New(jpegfrag.WithLogger(slog.Default()))
			out := cmd.OutOrStdout()
			for _, path := range args {
				if err := ctx.Err(); err != nil {
					return err
				}
				r, err := validateOne(ctx, v, path, insecure)
				if err != nil {
					return err
				}
				if err := writeReport(out, format, r); err != nil {
					return fmt.Errorf("writing report: %w", err)
				}
			}
			return nil
		},
	}
	pf := cmd.PersistentFlags()
	pf.StringP("format", "f", "text", "output format (text|json)")
	pf.Bool("insecure", false, "skip TLS verification for https inputs")
	return cmd
}

func validateOne(ctx context.Context, v *jpegfrag.Validator, path string, insecure bool) (report, error) {
	s, cls, err := openInput(ctx, path, insecure)
	if err != nil {
		return report{}, fmt.Errorf("%s: %w", path, err)
	}
	defer cls.Close()
	content, err := contentID(s)
	if err != nil {
		return report{}, fmt.Errorf("%s: %w", path, err)
	}
	res, err := v.Validate(s)
	if err != nil {
		return report{}, fmt.Errorf("%s: %w", path, err)
	}
	slog.DebugContext(ctx, "validated", slog.String("path", path), slog.String("id", content.ID),
		slog.Bool("completed", res.Completed), slog.Int64("offset", res.Offset))
	return report{ID: content.ID, MD5: content.MD5, Path: path, Result: res}, nil
}
