package clicmds

import (
	"io/ioutil"
	"os"
	"strings"

	"github.com/pelletier/go-toml"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
	"gitlab.com/xhrshim/xhrk"
)

// ConfigFlags shared by commands that build a shim
func ConfigFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "config",
			Usage: "config to use",
			Value: "",
		},
		&cli.StringFlag{
			Name:  "datadir",
			Usage: "capture data directory, captures are not stored if empty",
			Value: "",
		},
		&cli.StringFlag{
			Name:  "baseurl",
			Usage: "base url relative request urls resolve against",
			Value: "",
		},
		&cli.StringSliceFlag{
			Name:  "block",
			Usage: "url substring to block, may be repeated",
		},
		&cli.IntFlag{
			Name:  "timeout",
			Usage: "transport timeout in milliseconds, 0 for none",
			Value: 0,
		},
	}
}

// LoadConfig decodes the toml config file (if any) and applies flags on top
func LoadConfig(ctx *cli.Context) (*xhrk.Config, error) {
	cfg := &xhrk.Config{}

	if path := ctx.String("config"); path != "" {
		data, err := ioutil.ReadFile(path)
		if err != nil {
			return nil, errors.Wrap(err, "failed to read config")
		}

		if err := toml.NewDecoder(strings.NewReader(string(data))).Decode(cfg); err != nil {
			return nil, errors.Wrap(err, "failed to decode config")
		}
	}

	if cfg.DataPath == "" && ctx.String("datadir") != "" {
		cfg.DataPath = ctx.String("datadir")
	}

	if cfg.BaseURL == "" && ctx.String("baseurl") != "" {
		cfg.BaseURL = ctx.String("baseurl")
	}

	if ctx.Int("timeout") != 0 {
		cfg.TimeoutMS = ctx.Int("timeout")
	}

	cfg.BlockPatterns = append(cfg.BlockPatterns, ctx.StringSlice("block")...)

	if cfg.Namespace == "" {
		cfg.Namespace = xhrk.DefaultNamespace
	}
	return cfg, nil
}

// SetupLogging for the cli, a console writer on stderr at level
func SetupLogging(level string) {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
}
