package main

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/urfave/cli/v2"

	"github.com/ZanzyTHEbar/neuroselftrack/internal/config"
	"github.com/ZanzyTHEbar/neuroselftrack/internal/database"
	"github.com/ZanzyTHEbar/neuroselftrack/internal/errors"
	"github.com/ZanzyTHEbar/neuroselftrack/internal/monitoring"
)

// state is shared by the commands of one run. The database is opened on
// first use so that help output never touches the data directory.
type state struct {
	cfg    config.Config
	logger *monitoring.Logger
	db     *database.DB
	repo   *database.Repository
}

func newApp() *cli.App {
	st := &state{}

	return &cli.App{
		Name:  "neurotrack",
		Usage: "manage the NeuroSelfTrack session store",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "data-dir",
				Usage:   "directory holding the database",
				EnvVars: []string{"DATA_DIR"},
			},
			&cli.StringFlag{
				Name:    "db-file",
				Usage:   "database file name inside the data directory",
				EnvVars: []string{"DB_FILE"},
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "debug, info, warn or error",
				Value:   "warn",
				EnvVars: []string{"LOG_LEVEL"},
			},
		},
		Before: st.setup,
		After:  st.teardown,
		Commands: []*cli.Command{
			initCommand(st),
			seedCommand(st),
			usersCommand(st),
			analyzeCommand(st),
			importCommand(st),
			exportCommand(st),
			insightsCommand(st),
			purgeCommand(st),
			deleteUserCommand(st),
		},
	}
}

func (st *state) setup(c *cli.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if c.IsSet("data-dir") {
		cfg.DataDir = c.String("data-dir")
	}
	if c.IsSet("db-file") {
		cfg.DBFile = c.String("db-file")
	}
	st.cfg = cfg

	// stdout carries command output, logs go to stderr
	st.logger = monitoring.NewLoggerWithWriter(c.App.ErrWriter, monitoring.ParseLevel(c.String("log-level")))
	slog.SetDefault(st.logger.Logger)
	return nil
}

func (st *state) teardown(*cli.Context) error {
	if st.db != nil {
		errors.SafeClose(st.db, "database")
		st.db, st.repo = nil, nil
	}
	return nil
}

// open returns the repository, creating the database on first use.
func (st *state) open() (*database.Repository, error) {
	if st.repo != nil {
		return st.repo, nil
	}
	db, err := database.NewDB(st.cfg.DataDir, st.cfg.DBFile)
	if err != nil {
		return nil, err
	}
	st.db = db
	st.repo = database.NewRepository(db)
	return st.repo, nil
}

// printJSON writes v as indented JSON to the command output.
func printJSON(c *cli.Context, v interface{}) error {
	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
