package main

import (
	"context"
	"fmt"
	"os"

	"autoexit/cmd/credentials"
	"autoexit/cmd/engine"
	"autoexit/cmd/rules"
	"autoexit/src/database"
	"autoexit/src/database/migrations"
	"autoexit/src/repository"
	"autoexit/src/utils"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"
)

var Version string

func main() {
	app := cli.NewApp()
	app.Name = "autoexit"
	app.Usage = "Position risk auto-exit engine"
	app.Version = Version

	app.Before = func(_ *cli.Context) error {
		_ = godotenv.Load() // best-effort
		utils.SetupLogger(utils.GetConfig())
		return nil
	}

	app.Commands = []cli.Command{
		engineCMD,
		migrateCMD,
		rulesCMD,
		credentialsCMD,
	}

	if err := app.Run(os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var (
	engineCMD = cli.Command{
		Name:        "engine",
		Usage:       "run the auto-exit engine",
		Action:      engineAction,
		ArgsUsage:   "",
		Flags:       []cli.Flag{},
		Description: `Subscribe to the market feed, evaluate active rules against broker positions and place exit orders. Serves /healthcheck, /status and /metrics.`,
	}
	migrateCMD = cli.Command{
		Name:        "migrate",
		Usage:       "apply database migrations",
		Action:      migrateAction,
		ArgsUsage:   "",
		Flags:       []cli.Flag{},
		Description: `Create or upgrade the schema and run pending data migrations`,
	}
	rulesCMD = cli.Command{
		Name:  "rules",
		Usage: "manage exit rules",
		Subcommands: []cli.Command{
			{
				Name:   "add",
				Usage:  "create a rule",
				Action: rulesAddAction,
				Flags: []cli.Flag{
					cli.StringFlag{Name: "user", Usage: "owner user id"},
					cli.StringFlag{Name: "symbol", Usage: "trading symbol, or prefix with --group"},
					cli.StringFlag{Name: "exchange", Usage: "exchange code, e.g. NSE"},
					cli.StringFlag{Name: "product", Usage: "product type, e.g. MIS"},
					cli.BoolFlag{Name: "group", Usage: "match every symbol starting with --symbol"},
					cli.StringFlag{Name: "exit-type", Value: "TOTAL_LOSS", Usage: "CANDLE_CLOSE | TOTAL_LOSS | BOTH"},
					cli.Float64Flag{Name: "max-loss", Usage: "loss magnitude that triggers an exit"},
					cli.Float64Flag{Name: "target-profit", Usage: "profit that triggers an exit"},
					cli.StringFlag{Name: "indicator", Usage: "candle condition indicator"},
					cli.IntFlag{Name: "period", Usage: "candle condition period"},
					cli.StringFlag{Name: "condition", Usage: "candle condition"},
				},
			},
			{
				Name:   "list",
				Usage:  "list the rules of a user",
				Action: rulesListAction,
				Flags: []cli.Flag{
					cli.StringFlag{Name: "user", Usage: "owner user id"},
				},
			},
			{
				Name:   "delete",
				Usage:  "delete a rule",
				Action: rulesDeleteAction,
				Flags: []cli.Flag{
					cli.StringFlag{Name: "user", Usage: "owner user id"},
					cli.UintFlag{Name: "id", Usage: "rule id"},
				},
			},
			{
				Name:   "history",
				Usage:  "show exit attempts of a rule",
				Action: rulesHistoryAction,
				Flags: []cli.Flag{
					cli.UintFlag{Name: "id", Usage: "rule id"},
					cli.IntFlag{Name: "limit", Value: 20, Usage: "max rows"},
				},
			},
		},
	}
	credentialsCMD = cli.Command{
		Name:  "credentials",
		Usage: "manage broker credentials",
		Subcommands: []cli.Command{
			{
				Name:   "set",
				Usage:  "store the broker api key of a user",
				Action: credentialsSetAction,
				Flags: []cli.Flag{
					cli.StringFlag{Name: "user", Usage: "owner user id"},
					cli.StringFlag{Name: "broker", Value: "openalgo", Usage: "broker name"},
					cli.StringFlag{Name: "api-key", EnvVar: "BROKER_API_KEY", Usage: "api key, sealed before storage"},
				},
			},
		},
	}
)

func engineAction(_ *cli.Context) error {

	logrus.Info("Starting engine CMD")

	e := &engine.Engine{}
	err := e.Start()
	if err != nil {
		logrus.WithError(err).Error("Starting cmd")
		return err
	}

	return nil
}

func migrateAction(_ *cli.Context) error {
	logrus.Info("Starting migrate CMD")
	// InitMainDB migrates on connect.
	if err := database.InitMainDB(); err != nil {
		logrus.WithError(err).Error("Failed to migrate database")
		return err
	}

	pending, err := migrations.Pending(database.MainDB)
	if err != nil {
		return err
	}
	if len(pending) > 0 {
		return fmt.Errorf("data migrations still pending: %v", pending)
	}
	logrus.Info("database is up to date")
	return nil
}

func newRulesCmd() (*rules.Rules, error) {
	if err := database.InitMainDB(); err != nil {
		return nil, err
	}
	return &rules.Rules{
		Log:   logrus.WithField("cmd", "rules"),
		Store: repository.NewRuleRepository(),
		Exits: repository.NewExitLogRepository(),
		Out:   os.Stdout,
	}, nil
}

func rulesAddAction(c *cli.Context) error {
	r, err := newRulesCmd()
	if err != nil {
		return err
	}
	_, err = r.Add(context.Background(), rules.AddInput{
		UserID:       c.String("user"),
		Symbol:       c.String("symbol"),
		Exchange:     c.String("exchange"),
		Product:      c.String("product"),
		Group:        c.Bool("group"),
		ExitType:     c.String("exit-type"),
		MaxLoss:      c.Float64("max-loss"),
		TargetProfit: c.Float64("target-profit"),
		Indicator:    c.String("indicator"),
		Period:       c.Int("period"),
		Condition:    c.String("condition"),
	})
	return err
}

func rulesListAction(c *cli.Context) error {
	r, err := newRulesCmd()
	if err != nil {
		return err
	}
	return r.List(context.Background(), c.String("user"))
}

func rulesDeleteAction(c *cli.Context) error {
	r, err := newRulesCmd()
	if err != nil {
		return err
	}
	return r.Delete(context.Background(), c.Uint("id"), c.String("user"))
}

func rulesHistoryAction(c *cli.Context) error {
	r, err := newRulesCmd()
	if err != nil {
		return err
	}
	return r.History(context.Background(), c.Uint("id"), c.Int("limit"))
}

func credentialsSetAction(c *cli.Context) error {
	if err := database.InitMainDB(); err != nil {
		return err
	}
	cmd := &credentials.Credentials{
		Log:   logrus.WithField("cmd", "credentials"),
		Store: repository.NewCredentialRepository(),
		Out:   os.Stdout,
	}
	return cmd.Set(context.Background(), c.String("user"), c.String("broker"), c.String("api-key"))
}
