// Command lmsload imports LMS reference tables into a reference store and
// reads individual rows back.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	repository "github.com/okian/zcalc/internal/adapters/repository"
	"github.com/okian/zcalc/internal/domain/model"
	"github.com/okian/zcalc/pkg/logger"
)

var (
	name    = "lmsload"
	version = "v0.0.1-default"
)

var errNoFiles = errors.New("at least one CSV file is required")

const (
	flagDriver    = "driver"
	flagDSN       = "dsn"
	flagTable     = "table"
	flagKeyPrefix = "key-prefix"
	flagDebug     = "debug"
	flagAttribute = "attribute"
	flagAgemos    = "agemos"
	flagSex       = "sex"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newApp().Run(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", name, err)
		stop()
		os.Exit(1)
	}
}

// newApp builds the command tree. Flags are created per call because they
// hold parsed values.
func newApp() *cli.Command {
	attributeFlag := func() *cli.StringFlag {
		return &cli.StringFlag{
			Name:  flagAttribute,
			Usage: "Attribute the table describes: head_circumference, height, weight or bmi",
			Value: string(model.HeadCircumference),
		}
	}

	return &cli.Command{
		Name:    name,
		Version: version,
		Usage:   "Load LMS reference tables into a reference store",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    flagDriver,
				Usage:   "Reference store driver: sqlite, postgres, redis or memory",
				Value:   repository.DriverSQLite,
				Sources: cli.EnvVars("ZCALC_STORE_DRIVER"),
			},
			&cli.StringFlag{
				Name:    flagDSN,
				Usage:   "sqlite file, postgres URL or redis:// URL",
				Value:   "lms.db",
				Sources: cli.EnvVars("ZCALC_STORE_DSN"),
			},
			&cli.StringFlag{
				Name:    flagTable,
				Usage:   "SQL table holding reference rows",
				Sources: cli.EnvVars("ZCALC_STORE_TABLE"),
			},
			&cli.StringFlag{
				Name:    flagKeyPrefix,
				Usage:   "Prefix of Redis hash keys",
				Sources: cli.EnvVars("ZCALC_STORE_KEY_PREFIX"),
			},
			&cli.BoolFlag{
				Name:  flagDebug,
				Usage: "Prints verbose logs",
			},
		},
		Before: initLogging,
		Commands: []*cli.Command{
			{
				Name:      "import",
				Aliases:   []string{"i"},
				Usage:     "Imports reference CSV tables (Sex, Agemos, L, M, S columns)",
				ArgsUsage: "<csv>...",
				Flags:     []cli.Flag{attributeFlag()},
				Action:    cmdImport,
			},
			{
				Name:  "get",
				Usage: "Prints the stored L, M, S for one key",
				Flags: []cli.Flag{
					attributeFlag(),
					&cli.StringFlag{Name: flagAgemos, Usage: "Age in months", Required: true},
					&cli.StringFlag{Name: flagSex, Usage: "1 (female) or 2 (male)", Required: true},
				},
				Action: cmdGet,
			},
		},
	}
}

func initLogging(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	if err := logger.Init(logger.WithWriter(cmd.Root().ErrWriter), logger.WithoutSource()); err != nil {
		return ctx, err
	}
	if cmd.Bool(flagDebug) {
		_ = logger.SetLevelString("debug")
	}
	return ctx, nil
}

func openStore(ctx context.Context, cmd *cli.Command) (repository.ReadWriteStore, error) {
	driver := cmd.String(flagDriver)
	dsn := cmd.String(flagDSN)
	logger.Get().Debug(ctx, "opening reference store", logger.String("driver", driver))

	store, err := repository.Open(ctx, driver, dsn,
		repository.WithTable(cmd.String(flagTable)),
		repository.WithKeyPrefix(cmd.String(flagKeyPrefix)),
		repository.WithEnsureSchema(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %w", driver, err)
	}
	return store, nil
}

func parseAttribute(cmd *cli.Command) (model.Attribute, error) {
	return model.ParseAttribute(cmd.String(flagAttribute))
}

func cmdImport(ctx context.Context, cmd *cli.Command) error {
	files := cmd.Args().Slice()
	if len(files) == 0 {
		return errNoFiles
	}
	attribute, err := parseAttribute(cmd)
	if err != nil {
		return err
	}

	store, err := openStore(ctx, cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	total := 0
	for _, path := range files {
		n, err := importFile(ctx, store, attribute, path)
		if err != nil {
			return err
		}
		logger.Get().Info(ctx, "imported reference table",
			logger.String("path", path),
			logger.String("attribute", string(attribute)),
			logger.Int("rows", n),
		)
		total += n
	}

	fmt.Fprintf(cmd.Root().Writer, "imported %d rows into %s\n", total, store.Name())
	return nil
}

func importFile(ctx context.Context, store repository.ReadWriteStore, attribute model.Attribute, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	n, err := repository.ImportCSV(ctx, store, attribute, f)
	if err != nil {
		return 0, fmt.Errorf("failed to import %s: %w", path, err)
	}
	return n, nil
}

type getResult struct {
	Attribute model.Attribute `json:"attribute"`
	model.ReferenceKey
	model.ReferenceParameters
}

func cmdGet(ctx context.Context, cmd *cli.Command) error {
	attribute, err := parseAttribute(cmd)
	if err != nil {
		return err
	}
	sex, err := model.ParseSex(cmd.String(flagSex))
	if err != nil {
		return err
	}
	key, err := model.NewReferenceKey(cmd.String(flagAgemos), sex)
	if err != nil {
		return err
	}

	store, err := openStore(ctx, cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	params, err := store.Fetch(ctx, attribute, key)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.Root().Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(getResult{Attribute: attribute, ReferenceKey: key, ReferenceParameters: params})
}
