package clicmds

import (
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"gitlab.com/xhrshim/intercept"
	"gitlab.com/xhrshim/native"
	"gitlab.com/xhrshim/xhrk"
)

func FetchFlags() []cli.Flag {
	return append([]cli.Flag{
		&cli.StringFlag{
			Name:     "url",
			Usage:    "url to request",
			Required: true,
		},
		&cli.StringFlag{
			Name:  "method",
			Usage: "request method",
			Value: "GET",
		},
		&cli.StringSliceFlag{
			Name:  "header",
			Usage: "request header as name:value, may be repeated",
		},
		&cli.StringFlag{
			Name:  "data",
			Usage: "request body",
			Value: "",
		},
	}, ConfigFlags()...)
}

// Fetch makes a single synchronous intercepted request and prints what happened
func Fetch(ctx *cli.Context) error {
	cfg, err := LoadConfig(ctx)
	if err != nil {
		return err
	}

	client, err := native.NewClient(cfg, xhrk.InlineScheduler{})
	if err != nil {
		return err
	}

	opts := intercept.OptionsFromConfig(cfg)
	opts.Namespaces = intercept.NewNamespaces()
	shim, _ := intercept.Install(client.Factory(), opts)

	var body []byte
	if ctx.IsSet("data") {
		body = []byte(ctx.String("data"))
	}

	return fetch(ctx.App.Writer, shim.New(), ctx.String("method"), ctx.String("url"), ctx.StringSlice("header"), body)
}

func fetch(w io.Writer, req *intercept.Request, method, url string, headers []string, body []byte) error {
	events := make([]string, 0)
	for _, t := range xhrk.EventTypes {
		req.AddEventListener(t, func(evt *xhrk.Event) {
			events = append(events, fmt.Sprintf("%s(%s)", evt.Type, req.ReadyState()))
		})
	}

	if err := req.Open(method, url, false, "", ""); err != nil {
		return err
	}

	for _, h := range headers {
		parts := strings.SplitN(h, ":", 2)
		if len(parts) != 2 {
			return errors.Errorf("invalid header %s, expected name:value", h)
		}
		req.SetRequestHeader(strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1]))
	}

	sendErr := req.Send(body)

	fmt.Fprintf(w, "%d %s\n", req.Status(), req.StatusText())
	fmt.Fprintf(w, "events: %s\n", strings.Join(events, " "))
	if respHeaders, _ := req.GetAllResponseHeaders(); respHeaders != "" {
		fmt.Fprint(w, respHeaders)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, req.ResponseText())
	return sendErr
}
