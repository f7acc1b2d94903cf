package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	_ "modernc.org/sqlite"

	"github.com/lox/kitecast/internal/advisory"
	"github.com/lox/kitecast/internal/api"
	"github.com/lox/kitecast/internal/config"
	"github.com/lox/kitecast/internal/ingest"
	"github.com/lox/kitecast/internal/logging"
	"github.com/lox/kitecast/internal/models"
	"github.com/lox/kitecast/internal/narrative"
	"github.com/lox/kitecast/internal/scoring"
	"github.com/lox/kitecast/internal/store"
)

// Set with -ldflags "-X main.version=...".
var version = "dev"

type CLI struct {
	config.Config `embed:""`

	Version kong.VersionFlag `help:"Print the version and exit."`

	Serve          ServeCmd          `cmd:"" default:"withargs" help:"Serve the dashboard and JSON API."`
	Evaluate       EvaluateCmd       `cmd:"" help:"Evaluate once and print the advisory."`
	ExportFeedback ExportFeedbackCmd `cmd:"" help:"Write all session feedback as CSV to stdout."`
}

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
		os.Exit(1)
	}

	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("kitecast"),
		kong.Description("Kiteability advisory for a single lake spot."),
		kong.UsageOnError(),
		kong.Vars{"version": version},
	)

	logger, err := logging.New(os.Stderr, cli.LogFormat, cli.LogLevel, version)
	kctx.FatalIfErrorf(err)
	slog.SetDefault(logger)

	kctx.FatalIfErrorf(kctx.Run(&cli.Config, logger))
}

func openStore(cfg *config.Config, logger *slog.Logger) (*store.Store, *sql.DB, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, nil, err
	}
	if dir := filepath.Dir(cfg.DB); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("create database dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", cfg.DB)
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}
	db.Exec("PRAGMA journal_mode=WAL")
	db.Exec("PRAGMA busy_timeout=5000")

	st := store.New(db, loc)
	if err := st.Migrate(); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("migrate: %w", err)
	}
	logger.Info("database ready", "path", cfg.DB)
	return st, db, nil
}

// newEvaluator wires the upstream clients. With a store, fetch runs are
// recorded; day scores only when --store-scores is set.
func newEvaluator(cfg *config.Config, st *store.Store, logger *slog.Logger) (*advisory.Evaluator, *ingest.ImageClient, error) {
	advCfg, err := cfg.Advisory()
	if err != nil {
		return nil, nil, err
	}

	fc := ingest.NewForecastClient(cfg.ForecastURL, cfg.Timeout)
	fc.SetRetries(cfg.Retries, cfg.RetryWait)
	images := ingest.NewImageClient(cfg.Timeout)

	ev, err := advisory.New(advCfg, fc, images, clockwork.NewRealClock(), logger)
	if err != nil {
		return nil, nil, err
	}
	if st != nil {
		ev.SetFetchRecorder(st)
		if cfg.StoreScores {
			ev.SetScoreSink(st)
		}
	}
	return ev, images, nil
}

func sources(cfg *config.Config) []api.SourceView {
	out := []api.SourceView{{Name: "Open-Meteo", URL: "https://open-meteo.com"}}
	if cfg.WebcamURL != "" {
		out = append(out, api.SourceView{Name: "Webcam", URL: cfg.WebcamURL})
	}
	if cfg.DiagramURL != "" {
		out = append(out, api.SourceView{Name: "Foehn diagram", URL: cfg.DiagramURL})
	}
	if p := cfg.PressurePair(); p != nil {
		out = append(out, api.SourceView{Name: "Pressure " + p.String()})
	}
	return out
}

type ServeCmd struct {
	Addr      string        `help:"Listen address." default:":8080" env:"KITECAST_ADDR"`
	Refresh   time.Duration `help:"Background re-evaluation interval." default:"30m" env:"KITECAST_REFRESH"`
	NoRefresh bool          `help:"Disable background re-evaluation." env:"KITECAST_NO_REFRESH"`
}

func (c *ServeCmd) Run(cfg *config.Config, logger *slog.Logger) error {
	st, db, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	ev, images, err := newEvaluator(cfg, st, logger)
	if err != nil {
		return err
	}
	policy := ev.Config().Policy

	var writer narrative.Writer
	if w, err := narrative.NewOpenAIWriter(cfg.OpenAIKey, cfg.OpenAIModel); err != nil {
		logger.Info("written summaries disabled", "reason", err)
	} else {
		writer = w
	}

	server := api.NewServer(st, ev, api.Config{
		Addr:     c.Addr,
		Location: ev.Location(),
		Policy:   policy,
		Sources:  sources(cfg),
		Narrator: narrative.NewNarrator(writer, policy, time.Hour, nil, logger),
		Circuits: images,
	}, logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if !c.NoRefresh {
		refresher := advisory.NewRefresher(ev, c.Refresh, logger)
		if err := refresher.Start(); err != nil {
			return fmt.Errorf("start refresher: %w", err)
		}
		defer refresher.Stop()
	} else {
		logger.Info("background refresh disabled")
	}

	return server.Run(ctx)
}

type EvaluateCmd struct {
	JSON    bool `help:"Print the report as JSON."`
	Persist bool `help:"Record fetch runs in the database, and day scores with --store-scores."`
}

func (c *EvaluateCmd) Run(cfg *config.Config, logger *slog.Logger) error {
	var st *store.Store
	if c.Persist {
		s, db, err := openStore(cfg, logger)
		if err != nil {
			return err
		}
		defer db.Close()
		st = s
	}

	ev, _, err := newEvaluator(cfg, st, logger)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout+5*time.Second)
	defer cancel()

	report, err := ev.Evaluate(ctx)
	if err != nil {
		return err
	}

	if c.JSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}
	return printReport(ev.Config().Policy, report)
}

func printReport(p scoring.Policy, report *advisory.Report) error {
	fmt.Printf("%s, %s\n\n", report.Site, report.ComputedAt.Format("Mon 2 Jan 15:04"))
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	for _, d := range report.Days {
		fmt.Fprintf(tw, "%s\t%s\t%d/%d\t%s\n", narrative.DayLabel(d.Offset, d.Date), d.Date.Format("2006-01-02"), d.Total, report.MaxTotal, d.Tier.Label)
		for _, f := range d.Factors {
			detail := f.Label
			if f.Status != models.FactorScored {
				detail = string(f.Status)
			}
			fmt.Fprintf(tw, "\t%s\t%s\t%+d %s\n", f.Name, scoring.FormatValue(p, f), f.Points, detail)
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Printf("\n%s\n", narrative.Summary(report))
	return nil
}

type ExportFeedbackCmd struct{}

func (c *ExportFeedbackCmd) Run(cfg *config.Config, logger *slog.Logger) error {
	st, db, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	defer db.Close()
	return st.ExportFeedbackCSV(os.Stdout)
}
