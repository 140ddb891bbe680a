package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/joseph-ayodele/goods-receipt/internal/app"
	"github.com/joseph-ayodele/goods-receipt/internal/common"
	"github.com/joseph-ayodele/goods-receipt/internal/seed"
)

func main() {
	var (
		demo      = flag.Bool("demo", false, "load the demo dataset")
		suppliers = flag.String("suppliers", "", "suppliers CSV (code,name)")
		poLines   = flag.String("po-lines", "", "purchase order lines CSV")
		mappings  = flag.String("mappings", "", "code mappings CSV")
	)
	flag.Parse()

	cfg := common.LoadConfig()
	logger := app.NewLogger(cfg.LogLevel, false)
	slog.SetDefault(logger)
	if err := cfg.Validate(true); err != nil {
		logger.Error("seed.config.invalid", "error", err)
		os.Exit(2)
	}
	if !*demo && *suppliers == "" && *poLines == "" && *mappings == "" {
		fmt.Fprintln(os.Stderr, "usage: recon-seed --demo | [--suppliers f.csv] [--po-lines f.csv] [--mappings f.csv]")
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	a, err := app.New(ctx, cfg, app.Options{Migrate: true}, logger)
	if err != nil {
		logger.Error("seed.init.failed", "error", err)
		os.Exit(1)
	}
	defer a.Close()
	s := seed.NewSeeder(a.Store, logger)

	var rep seed.Report
	if *demo {
		rep, err = s.Demo(ctx)
	} else {
		var in seed.Files
		var files []*os.File
		open := func(path string) io.Reader {
			if path == "" || err != nil {
				return nil
			}
			f, oerr := os.Open(path)
			if oerr != nil {
				err = oerr
				return nil
			}
			files = append(files, f)
			return f
		}
		in.Suppliers, in.POLines, in.Mappings = open(*suppliers), open(*poLines), open(*mappings)
		if err == nil {
			rep, err = s.Load(ctx, in)
		}
		for _, f := range files {
			_ = f.Close()
		}
	}
	if err != nil {
		logger.Error("seed.failed", "error", err)
		os.Exit(1)
	}

	fmt.Printf("suppliers: %s\n", rep.Suppliers)
	fmt.Printf("po lines:  %s\n", rep.POLines)
	fmt.Printf("mappings:  %s\n", rep.Mappings)
}
