// Command thermoctl records and queries temperature readings over the HTTP API.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/milad/thermo/internal/client"
	"github.com/milad/thermo/internal/window"
)

const usage = `usage: thermoctl [-addr URL] [-timeout D] <command> [flags]

commands:
  record   -value V [-position P] [-at TIME]
  list     [window flags] [-page-size N] [-page-token T]
  latest
  average  [window flags]
  max      [window flags]
  min      [window flags]
  week

window flags: -start, -end, -type (TIMESTAMP|FORMATTED), -format
`

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "thermoctl:", err)
		var apiErr *client.APIError
		if errors.As(err, &apiErr) {
			os.Exit(1)
		}
		os.Exit(2)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	global := flag.NewFlagSet("thermoctl", flag.ContinueOnError)
	global.Usage = func() { fmt.Fprint(global.Output(), usage) }
	addr := global.String("addr", envOr("THERMO_URL", "http://127.0.0.1:8080"), "HTTP API base URL")
	timeout := global.Duration("timeout", 10*time.Second, "request timeout")
	if err := global.Parse(args); err != nil {
		return err
	}
	if global.NArg() == 0 {
		global.Usage()
		return errors.New("missing command")
	}

	c := client.New(*addr, *timeout)
	cmd, rest := global.Arg(0), global.Args()[1:]
	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)

	var (
		result any
		err    error
	)
	switch cmd {
	case "record":
		value := fs.String("value", "", "temperature value (required)")
		position := fs.String("position", "", "sensor position")
		at := fs.String("at", "", "recording time, RFC 3339 or epoch millis")
		if err := fs.Parse(rest); err != nil {
			return err
		}
		v, perr := strconv.ParseFloat(*value, 64)
		if perr != nil {
			return fmt.Errorf("record: -value %q is not a number", *value)
		}
		result, err = c.Record(ctx, v, *position, *at)

	case "list":
		in := windowFlags(fs)
		pageSize := fs.Int("page-size", 0, "readings per page (0 = all)")
		pageToken := fs.String("page-token", "", "token from the previous page")
		if err := fs.Parse(rest); err != nil {
			return err
		}
		result, err = c.List(ctx, *in, *pageSize, *pageToken)

	case "latest":
		if err := fs.Parse(rest); err != nil {
			return err
		}
		result, err = c.Latest(ctx)

	case "average", "max", "min":
		in := windowFlags(fs)
		if err := fs.Parse(rest); err != nil {
			return err
		}
		switch cmd {
		case "average":
			result, err = c.Average(ctx, *in)
		case "max":
			result, err = c.Max(ctx, *in)
		default:
			result, err = c.Min(ctx, *in)
		}

	case "week":
		if err := fs.Parse(rest); err != nil {
			return err
		}
		result, err = c.WeekAverage(ctx)

	default:
		global.Usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
	if err != nil {
		return err
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

func windowFlags(fs *flag.FlagSet) *window.Input {
	in := &window.Input{}
	fs.StringVar(&in.StartTime, "start", "", "window start (default: today 00:00)")
	fs.StringVar(&in.EndTime, "end", "", "window end, exclusive (default: now)")
	fs.StringVar(&in.Type, "type", "", "TIMESTAMP (epoch millis) or FORMATTED")
	fs.StringVar(&in.Format, "format", "", "date pattern for FORMATTED, e.g. YYYY-MM-DD")
	return in
}

func envOr(k, fallback string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return fallback
}
