package clicmds

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
	"gitlab.com/xhrshim/store"
	"gitlab.com/xhrshim/xhrk"
)

func DBViewFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "datadir",
			Usage: "data directory",
			Value: "xhrshimtmp",
		},
		&cli.StringFlag{
			Name:  "request",
			Usage: "only print captures of this request id",
			Value: "",
		},
		&cli.BoolFlag{
			Name:  "blocked",
			Usage: "only print blocked requests",
			Value: false,
		},
	}
}

func DBView(ctx *cli.Context) error {
	captures := store.NewCaptureStore(ctx.String("datadir"))
	if err := captures.Init(); err != nil {
		log.Error().Err(err).Msg("failed to init database for viewing")
		return err
	}
	defer captures.Close()

	var records []*store.Record
	var err error
	if id := ctx.String("request"); id != "" {
		records, err = captures.ForRequest(id)
	} else {
		records, err = captures.All()
	}
	if err != nil {
		return err
	}

	if len(records) == 0 {
		return fmt.Errorf("No captures found")
	}

	fmt.Fprintf(ctx.App.Writer, "Had %d captures\n", len(records))
	for _, record := range records {
		if ctx.Bool("blocked") && record.Kind != xhrk.CaptureBlocked {
			continue
		}
		fmt.Fprintln(ctx.App.Writer, record)
	}
	return nil
}
