package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/ZanzyTHEbar/neuroselftrack/internal/analysis"
	"github.com/ZanzyTHEbar/neuroselftrack/internal/database"
	"github.com/ZanzyTHEbar/neuroselftrack/internal/errors"
	"github.com/ZanzyTHEbar/neuroselftrack/internal/ingest"
	"github.com/ZanzyTHEbar/neuroselftrack/internal/insights"
	"github.com/ZanzyTHEbar/neuroselftrack/internal/privacy"
	"github.com/ZanzyTHEbar/neuroselftrack/internal/seed"
)

func initCommand(st *state) *cli.Command {
	return &cli.Command{
		Name:  "init",
		Usage: "create the database and its schema",
		Action: func(c *cli.Context) error {
			if _, err := st.open(); err != nil {
				return err
			}
			st.logger.SystemLogger("database_initialized", st.db.Path())
			_, err := fmt.Fprintf(c.App.Writer, "Database ready at %s\n", st.db.Path())
			return err
		},
	}
}

func seedCommand(st *state) *cli.Command {
	def := seed.DefaultOptions()

	return &cli.Command{
		Name:  "seed",
		Usage: "fill the store with synthetic users and sessions",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{Name: "user", Usage: "user name, repeatable", Value: cli.NewStringSlice(def.Users...)},
			&cli.IntFlag{Name: "min-sessions", Value: def.MinSessions},
			&cli.IntFlag{Name: "max-sessions", Value: def.MaxSessions},
			&cli.IntFlag{Name: "duration", Usage: "seconds of EEG per session", Value: def.DurationSeconds},
			&cli.Uint64Flag{Name: "seed", Usage: "random seed", Value: def.Seed},
			&cli.TimestampFlag{Name: "start", Usage: "first day (YYYY-MM-DD)", Layout: time.DateOnly},
			&cli.TimestampFlag{Name: "end", Usage: "last day (YYYY-MM-DD)", Layout: time.DateOnly},
		},
		Action: func(c *cli.Context) error {
			repo, err := st.open()
			if err != nil {
				return err
			}

			opts := def
			opts.Users = c.StringSlice("user")
			opts.MinSessions = c.Int("min-sessions")
			opts.MaxSessions = c.Int("max-sessions")
			opts.DurationSeconds = c.Int("duration")
			opts.Seed = c.Uint64("seed")
			opts.SamplingRate = st.cfg.Analysis.SamplingRate
			if t := c.Timestamp("start"); t != nil {
				opts.Start = *t
			}
			if t := c.Timestamp("end"); t != nil {
				opts.End = *t
			}

			result, err := seed.Seed(c.Context, repo, opts)
			if err != nil {
				return err
			}
			return printJSON(c, result)
		},
	}
}

func usersCommand(st *state) *cli.Command {
	return &cli.Command{
		Name:  "users",
		Usage: "list users",
		Action: func(c *cli.Context) error {
			repo, err := st.open()
			if err != nil {
				return err
			}
			users, err := repo.ListUsers(c.Context)
			if err != nil {
				return err
			}
			return printJSON(c, users)
		},
	}
}

func analyzeCommand(st *state) *cli.Command {
	return &cli.Command{
		Name:      "analyze",
		Usage:     "run the EEG pipeline on a session",
		ArgsUsage: "<session-id>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "raw", Usage: "include the raw samples"},
		},
		Action: func(c *cli.Context) error {
			sessionID := c.Args().First()
			if sessionID == "" {
				return cli.Exit("analyze needs a session id", 2)
			}
			repo, err := st.open()
			if err != nil {
				return err
			}
			if _, err := repo.GetSession(c.Context, sessionID); err != nil {
				return err
			}

			analyzer, err := analysis.NewAnalyzer(repo, st.cfg.Analysis, st.logger.Logger)
			if err != nil {
				return err
			}
			start := time.Now()
			result, err := analyzer.AnalyzeSession(c.Context, sessionID)
			if err != nil {
				return err
			}
			st.logger.AnalysisLogger(sessionID, string(result.Status), result.SampleCount, time.Since(start), false)

			if !c.Bool("raw") {
				result = result.WithoutRaw()
			}
			return printJSON(c, result)
		},
	}
}

func importCommand(st *state) *cli.Command {
	return &cli.Command{
		Name:  "import",
		Usage: "append a CSV or EDF recording to a session",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "session", Required: true},
			&cli.PathFlag{Name: "file", Required: true},
			&cli.StringFlag{Name: "format", Usage: "csv or edf, detected from the file name when empty"},
			&cli.Float64Flag{Name: "sampling-rate", Usage: "Hz for CSV files without timestamps"},
		},
		Action: func(c *cli.Context) error {
			sessionID := c.String("session")
			path := c.Path("file")

			format := strings.ToLower(c.String("format"))
			if format == "" {
				format = ingest.DetectFormat(path, "")
			}
			if format != ingest.FormatCSV && format != ingest.FormatEDF {
				return cli.Exit(fmt.Sprintf("cannot tell the format of %s, pass --format", path), 2)
			}
			rate := st.cfg.Analysis.SamplingRate
			if c.IsSet("sampling-rate") {
				rate = c.Float64("sampling-rate")
			}

			repo, err := st.open()
			if err != nil {
				return err
			}
			if _, err := repo.GetSession(c.Context, sessionID); err != nil {
				return err
			}

			f, err := os.Open(path)
			if err != nil {
				return fmt.Errorf("failed to open recording: %w", err)
			}
			defer errors.SafeClose(f, "recording")

			start := time.Now()
			samples, err := ingest.Read(format, f, rate)
			if err != nil {
				st.logger.ImportLogger(sessionID, format, 0, time.Since(start), err)
				return err
			}
			n, err := repo.AppendEEGSamples(c.Context, sessionID, samples)
			st.logger.ImportLogger(sessionID, format, n, time.Since(start), err)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(c.App.Writer, "Imported %d samples into %s\n", n, sessionID)
			return err
		},
	}
}

func exportCommand(st *state) *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "write a session recording to an EDF or CSV file",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "session", Required: true},
			&cli.PathFlag{Name: "out", Required: true},
			&cli.StringFlag{Name: "format", Usage: "csv or edf, detected from the file name when empty"},
		},
		Action: func(c *cli.Context) error {
			sessionID := c.String("session")
			path := c.Path("out")

			format := strings.ToLower(c.String("format"))
			if format == "" {
				format = ingest.DetectFormat(path, "")
			}
			if format != ingest.FormatCSV && format != ingest.FormatEDF {
				return cli.Exit(fmt.Sprintf("cannot tell the format of %s, pass --format", path), 2)
			}

			repo, err := st.open()
			if err != nil {
				return err
			}
			session, err := repo.GetSession(c.Context, sessionID)
			if err != nil {
				return err
			}
			samples, err := repo.LoadEEGSamples(c.Context, sessionID)
			if err != nil {
				return err
			}
			if len(samples) == 0 {
				return errors.NewNotFoundError("EEG recording", sessionID)
			}

			f, err := os.Create(path)
			if err != nil {
				return fmt.Errorf("failed to create %s: %w", path, err)
			}
			defer errors.SafeClose(f, "export file")

			if format == ingest.FormatCSV {
				err = ingest.WriteCSV(f, samples)
			} else {
				err = ingest.WriteEDF(f, samples, ingest.EDFOptions{
					SamplingRate: st.cfg.Analysis.SamplingRate,
					PatientID:    privacy.AnonymizeID(session.UserID),
					RecordingID:  session.ID,
				})
			}
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(c.App.Writer, "Wrote %d samples to %s\n", len(samples), path)
			return err
		},
	}
}

func insightsCommand(st *state) *cli.Command {
	return &cli.Command{
		Name:  "insights",
		Usage: "print the trend report of a user",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "user", Required: true},
			&cli.TimestampFlag{Name: "from", Usage: "first day (YYYY-MM-DD)", Layout: time.DateOnly},
			&cli.TimestampFlag{Name: "to", Usage: "last day, inclusive (YYYY-MM-DD)", Layout: time.DateOnly},
			&cli.StringFlag{Name: "view", Usage: "report, recommendations, correlations or summary", Value: "report"},
		},
		Action: func(c *cli.Context) error {
			userID := c.String("user")
			repo, err := st.open()
			if err != nil {
				return err
			}
			if _, err := repo.GetUser(c.Context, userID); err != nil {
				return err
			}

			var filter database.RecordFilter
			if t := c.Timestamp("from"); t != nil {
				filter.From = *t
			}
			if t := c.Timestamp("to"); t != nil {
				filter.To = t.AddDate(0, 0, 1).Add(-time.Nanosecond)
			}
			records, err := repo.ListSessionRecords(c.Context, userID, filter)
			if err != nil {
				return err
			}

			switch c.String("view") {
			case "report":
				return printJSON(c, insights.Generate(records))
			case "recommendations":
				return printJSON(c, insights.Recommendations(records))
			case "correlations":
				return printJSON(c, insights.KeyCorrelations(records))
			case "summary":
				return printJSON(c, insights.Summarize(records))
			}
			return cli.Exit(fmt.Sprintf("unknown view %q", c.String("view")), 2)
		},
	}
}

func purgeCommand(st *state) *cli.Command {
	return &cli.Command{
		Name:  "purge",
		Usage: "delete sessions older than the retention period",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "days", Usage: "retention in days, RETENTION_DAYS when unset"},
		},
		Action: func(c *cli.Context) error {
			if _, err := st.open(); err != nil {
				return err
			}
			svc := privacy.NewService(st.db, st.cfg.RetentionDays)
			report, err := svc.PurgeOlderThan(c.Context, c.Int("days"), time.Now())
			if err != nil {
				return err
			}
			st.logger.SystemLogger("retention_purge", fmt.Sprintf("%d sessions, %d samples", len(report.SessionIDs), report.Samples))
			return printJSON(c, report)
		},
	}
}

func deleteUserCommand(st *state) *cli.Command {
	return &cli.Command{
		Name:  "delete-user",
		Usage: "remove a user and every session they recorded",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "user", Required: true},
		},
		Action: func(c *cli.Context) error {
			if _, err := st.open(); err != nil {
				return err
			}
			svc := privacy.NewService(st.db, st.cfg.RetentionDays)
			report, err := svc.DeleteUserData(c.Context, c.String("user"))
			if err != nil {
				return err
			}
			return printJSON(c, report)
		},
	}
}
