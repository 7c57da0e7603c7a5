// Command surface generates the monthly attack-surface report for one
// customer and IPv4 asset.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/quay/zlog"
	"github.com/rs/zerolog"

	"github.com/perimetron/surface/libreport"
)

const (
	exitOK        = 0
	exitFailure   = 1
	exitInterrupt = 130
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fs := flag.NewFlagSet("surface", flag.ExitOnError)
	var (
		customer  = fs.String("customer", "", "customer display name (required)")
		ip        = fs.String("ip", "", "IPv4 address of the asset (required)")
		month     = fs.String("month", "", "report month, YYYY-MM (required)")
		compare   = fs.String("compare", "", "comparison month, YYYY-MM")
		cfgPath   = fs.String("config", "", "path to a JSON config file")
		outputDir = fs.String("output-dir", ".", "directory for rendered reports")
		noArchive = fs.Bool("no-archive", false, "skip the archive step")
		verbose   = fs.Bool("verbose", false, "debug logging")
		quiet     = fs.Bool("quiet", false, "errors only")
	)
	if err := fs.Parse(os.Args[1:]); err != nil {
		return exitFailure
	}

	level := zerolog.InfoLevel
	switch {
	case *quiet:
		level = zerolog.ErrorLevel
	case *verbose:
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)
	l := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	zlog.Set(&l)

	if *customer == "" || *ip == "" || *month == "" {
		fmt.Fprintln(os.Stderr, "surface: --customer, --ip, and --month are required")
		fs.Usage()
		return exitFailure
	}

	opts := &libreport.Options{
		ShodanKey:      os.Getenv("SHODAN_API_KEY"),
		NVDKey:         os.Getenv("NVD_API_KEY"),
		NVDLive:        os.Getenv("NVD_LIVE") == "1",
		NVDRefresh:     os.Getenv("NVD_REFRESH") == "1",
		NVDProgress:    os.Getenv("NVD_PROGRESS") == "1",
		FetchKEV:       true,
		OutputDir:      *outputDir,
		DisableArchive: *noArchive,
		Renderer:       &stubRenderer{},
	}
	if *cfgPath != "" {
		if err := loadConfig(*cfgPath, opts); err != nil {
			fmt.Fprintf(os.Stderr, "surface: %v\n", err)
			return exitFailure
		}
	}

	runner, err := libreport.New(ctx, opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "surface: %v\n", err)
		return exitFailure
	}
	defer runner.Close()

	res, err := runner.Generate(ctx, libreport.Request{
		Customer:     *customer,
		IP:           *ip,
		Month:        *month,
		CompareMonth: *compare,
	})
	switch {
	case errors.Is(err, context.Canceled):
		fmt.Fprintln(os.Stderr, "surface: interrupted")
		return exitInterrupt
	case err != nil:
		fmt.Fprintf(os.Stderr, "surface: %v\n", err)
		return exitFailure
	case !res.Success:
		fmt.Fprintf(os.Stderr, "surface: %s\n", res.Error)
		return exitFailure
	}
	fmt.Println(res.PDFPath)
	return exitOK
}

// fileConfig is the JSON config file shape. Every field is optional and
// overrides the environment.
type fileConfig struct {
	ShodanKey    string `json:"shodan_api_key"`
	NVDKey       string `json:"nvd_api_key"`
	NVDLive      *bool  `json:"nvd_live"`
	SnapshotRoot string `json:"snapshot_root"`
	ArchiveRoot  string `json:"archive_root"`
	CachePath    string `json:"cache_path"`
}

func loadConfig(path string, opts *libreport.Options) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("unable to read config: %w", err)
	}
	var fc fileConfig
	if err := json.Unmarshal(raw, &fc); err != nil {
		return fmt.Errorf("malformed config %q: %w", path, err)
	}
	if fc.ShodanKey != "" {
		opts.ShodanKey = fc.ShodanKey
	}
	if fc.NVDKey != "" {
		opts.NVDKey = fc.NVDKey
	}
	if fc.NVDLive != nil {
		opts.NVDLive = *fc.NVDLive
	}
	if fc.SnapshotRoot != "" {
		opts.SnapshotRoot = fc.SnapshotRoot
	}
	if fc.ArchiveRoot != "" {
		opts.ArchiveRoot = fc.ArchiveRoot
	}
	if fc.CachePath != "" {
		opts.CachePath = fc.CachePath
	}
	return nil
}
