package main

import (
	"log"
	"os"

	"github.com/urfave/cli/v2"
	"gitlab.com/xhrshim/clicmds"
)

func main() {
	app := cli.NewApp()
	app.Name = "xhrshim"
	app.Version = "0.1"
	app.Usage = "Intercept, record and block XMLHttpRequest traffic of scripts"
	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:  "loglevel",
			Usage: "log level (debug, info, warn, error)",
			Value: "info",
		},
	}
	app.Before = func(ctx *cli.Context) error {
		clicmds.SetupLogging(ctx.String("loglevel"))
		return nil
	}
	app.Commands = []*cli.Command{
		{
			Name:    "run",
			Aliases: []string{"r"},
			Usage:   "run a script with XMLHttpRequest intercepted",
			Action:  clicmds.Run,
			Flags:   clicmds.RunFlags(),
		},
		{
			Name:    "fetch",
			Aliases: []string{"f"},
			Usage:   "make a single intercepted request",
			Action:  clicmds.Fetch,
			Flags:   clicmds.FetchFlags(),
		},
		{
			Name:    "dbview",
			Aliases: []string{"db"},
			Usage:   "print stored captures",
			Action:  clicmds.DBView,
			Flags:   clicmds.DBViewFlags(),
		},
	}
	err := app.Run(os.Args)
	if err != nil {
		log.Fatal(err)
	}
}
