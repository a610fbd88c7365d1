// MIT License
//
// Copyright (c) 2024 rescache
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rescache/rescache/pkg/api"
	"github.com/rescache/rescache/pkg/config"
	"github.com/rescache/rescache/pkg/provider"
	"github.com/rescache/rescache/pkg/server"
	"github.com/rescache/rescache/pkg/utils/logger"
	"github.com/rescache/rescache/pkg/utils/version"
	"github.com/rs/zerolog/log"
)

const (
	configFileOption = "config.file"
	configFileName   = "rescache.yml"
)

func main() {
	// Clean up all flags registered via init() methods of 3rd-party libraries.
	flag.CommandLine = flag.NewFlagSet(os.Args[0], flag.ExitOnError)

	var configFile string
	var printVersion bool
	flag.StringVar(&configFile, configFileOption, configFileName, "Path to the configuration file.")
	flag.BoolVar(&printVersion, "version", false, "Print version and exit.")
	flag.Parse()

	if printVersion {
		fmt.Println(version.Print("rescache"))
		return
	}

	ldr, err := config.NewFileLoader(configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading config from %s: %v\n", configFile, err)
		os.Exit(1)
	}
	cfg := ldr.Config()

	logger.InitLogger(&cfg.Log)

	log.Info().Msgf("Starting rescache %s", version.Info())

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	storage, err := provider.CreateCacheProvider("rescache", cfg.Provider)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create cache provider")
	}

	srv, err := server.NewServer(*cfg, storage, reg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create server")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if cfg.API.Port > 0 {
		adminAPI, err := api.New(cfg.API, reg)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create API")
		}
		adminAPI.RegisterServer(srv)
		adminAPI.RegisterConfig(ldr)
		go func() {
			if err := adminAPI.Run(); err != nil {
				log.Error().Err(err).Msg("API server failed")
			}
		}()
		defer adminAPI.Shutdown(context.Background())
	}

	srv.Start(ctx)
	defer srv.Shutdown()

	srv.Await()
}
