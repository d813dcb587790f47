// Command spmdsim sweeps a multi-drop trunk model across a frequency grid
// and reports the port S-parameters as CSV rows and plot panels.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path"
	"strings"

	spmdsim "github.com/m4rin3r0/SPMD-reflexion-sim"
)

func main() {
	configFile := flag.String("config", "", "simulation configuration file (.json, .yaml)")
	writeConfig := flag.String("write-config", "", "write the effective configuration to this file and exit")

	nodes := flag.Int("nodes", 0, "override: drop count")
	npoints := flag.Int("npoints", 0, "override: sweep point count")
	freqStart := flag.Float64("freq-start", 0, "override: sweep start, Hz")
	freqStop := flag.Float64("freq-stop", 0, "override: sweep stop, Hz")
	s2p := flag.String("s2p", "", "override: PHY Touchstone file")
	seed := flag.Int64("seed", 0, "override: random stream seed")
	txNode := flag.Int("tx-node", 0, "override: transmitting drop (1-based)")
	csvFile := flag.String("csv", "", "override: CSV output path")
	plotFile := flag.String("plot", "", "override: plot PNG output path")
	workers := flag.Int("workers", 0, "override: sweep worker count")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	cfg := spmdsim.DefaultSimCfg()
	if *configFile != "" {
		ext := strings.ToLower(path.Ext(*configFile))
		useYAML := ext == ".yaml" || ext == ".yml"
		var err error
		cfg, err = spmdsim.ReadSimCfg(*configFile, useYAML, nil)
		if err != nil {
			log.Error("cannot read configuration", "file", *configFile, "err", err)
			os.Exit(1)
		}
	}

	// flags given on the command line override the file
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "nodes":
			cfg.Nodes = *nodes
		case "npoints":
			cfg.NPoints = *npoints
		case "freq-start":
			cfg.FreqStart = *freqStart
		case "freq-stop":
			cfg.FreqStop = *freqStop
		case "s2p":
			cfg.S2P = *s2p
		case "seed":
			cfg.Seed = *seed
		case "tx-node":
			cfg.TxNode = *txNode
		case "csv":
			cfg.CSV = *csvFile
		case "plot":
			cfg.Plot = *plotFile
		case "workers":
			cfg.Workers = *workers
		}
	})

	if *writeConfig != "" {
		if err := cfg.WriteToFile(*writeConfig); err != nil {
			log.Error("cannot write configuration", "file", *writeConfig, "err", err)
			os.Exit(1)
		}
		log.Info("configuration written", "file", *writeConfig)
		return
	}

	res, err := spmdsim.RunSweep(context.Background(), cfg, log)
	if err != nil {
		log.Error("sweep failed", "err", err)
		os.Exit(1)
	}
	log.Info("sweep complete", "points", len(res.Freq), "failed", res.Failed())

	if cfg.CSV != "" {
		f, cerr := os.Create(cfg.CSV)
		if cerr == nil {
			cerr = res.WriteCSV(f)
			if err := f.Close(); cerr == nil {
				cerr = err
			}
		}
		if cerr != nil {
			log.Error("cannot write CSV", "file", cfg.CSV, "err", cerr)
			os.Exit(1)
		}
		log.Info("CSV written", "file", cfg.CSV)
	}

	if cfg.Plot != "" {
		if err := spmdsim.RenderPlots(res, cfg.Plot); err != nil {
			log.Error("cannot render plot", "file", cfg.Plot, "err", err)
			os.Exit(1)
		}
		log.Info("plot written", "file", cfg.Plot)
	}

	if cfg.CSV == "" && cfg.Plot == "" {
		// no output target configured, summarize on stdout
		s11 := res.S11dB()
		s21 := res.S21dB()
		fmt.Printf("freq_hz\ts11_db\ts21_db\n")
		for i, f := range res.Freq {
			fmt.Printf("%g\t%.3f\t%.3f\n", f, s11[i], s21[i])
		}
	}
}
