/*
 * Licensed to the Apache Software Foundation (ASF) under one or more
 * contributor license agreements. See the NOTICE file distributed with
 * this work for additional information regarding copyright ownership.
 * The ASF licenses this file to You under the Apache License, Version 2.0
 * (the "License"); you may not use this file except in compliance with
 * the License. You may obtain a copy of the License at
 *
 *    http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package main

import (
	"context"
	"fmt"
	"github.com/go-errors/errors"
	"github.com/noctarius/avro-change-encoder/internal"
	"github.com/noctarius/avro-change-encoder/internal/session"
	"github.com/noctarius/avro-change-encoder/internal/supporting"
	"github.com/noctarius/avro-change-encoder/internal/supporting/logging"
	"github.com/noctarius/avro-change-encoder/internal/version"
	spiconfig "github.com/noctarius/avro-change-encoder/spi/config"
	"github.com/urfave/cli"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/pprof"
	"strings"
	"syscall"
)

const configEnvVariable = "AVRO_CHANGE_ENCODER_CONFIG"

var (
	configurationFile string
	verbose           bool
	withCaller        bool
	logToStdErr       bool
	versionOnly       bool
	profiling         bool
)

func main() {
	app := &cli.App{
		Name:  version.BinName,
		Usage: "Encodes PostgreSQL logical replication changes into Avro frames",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config,c",
				Value:       "",
				Usage:       "Load configuration from `FILE`",
				Destination: &configurationFile,
			},
			&cli.StringSliceFlag{
				Name:  "option,o",
				Value: &cli.StringSlice{},
				Usage: "Session option as `KEY[=VALUE]`, may be repeated",
			},
			&cli.BoolFlag{
				Name:        "verbose",
				Usage:       "Show verbose output",
				Destination: &verbose,
			},
			&cli.BoolFlag{
				Name:        "caller",
				Usage:       "Collect caller information for log messages",
				Destination: &withCaller,
			},
			&cli.BoolFlag{
				Name:        "log-to-stderr",
				Usage:       "Redirects logging output to stderr, necessary when using StdOut as the sink",
				Destination: &logToStdErr,
			},
			&cli.BoolFlag{
				Name:        "version",
				Usage:       "Prints the version and exits",
				Destination: &versionOnly,
			},
			&cli.BoolFlag{
				Name:        "profiling",
				Usage:       "Enables the Go profiler",
				Destination: &profiling,
			},
		},
		Action: start,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func start(ctx *cli.Context) error {
	fmt.Fprintf(os.Stderr, "%s version %s (git revision %s; branch %s)\n",
		version.BinName, version.Version, version.CommitHash, version.Branch,
	)

	if versionOnly {
		return nil
	}

	if profiling {
		cpuProfile, err := os.Create("cpu.prof")
		if err != nil {
			return err
		}
		pprof.StartCPUProfile(cpuProfile)
		defer pprof.StopCPUProfile()
	}

	logging.WithCaller = withCaller
	logging.WithVerbose = verbose

	options, err := parseOptions(ctx.StringSlice("option"))
	if err != nil {
		return cli.NewExitError(err.Error(), 2)
	}

	config := &spiconfig.Config{}

	// No configuration file set? Try env variable!
	if configurationFile == "" {
		if cf, present := os.LookupEnv(configEnvVariable); present {
			fmt.Fprintf(os.Stderr, "Using configuration file from environment variable\n")
			configurationFile = cf
		}
	}

	if configurationFile != "" {
		fmt.Fprintf(os.Stderr, "Loading configuration file: %s\n", configurationFile)
		f, err := os.Open(configurationFile)
		if err != nil {
			return cli.NewExitError(fmt.Sprintf("Configuration file couldn't be opened: %v\n", err), 3)
		}
		defer f.Close()

		b, err := io.ReadAll(f)
		if err != nil {
			return cli.NewExitError(fmt.Sprintf("Configuration file couldn't be read: %v\n", err), 4)
		}

		tomlConfig := filepath.Ext(strings.ToLower(configurationFile)) == ".toml"
		if err := spiconfig.Unmarshall(b, config, tomlConfig); err != nil {
			return cli.NewExitError(fmt.Sprintf("Configuration file couldn't be decoded: %v\n", err), 5)
		}
	}

	if err := logging.InitializeLogging(config, logToStdErr); err != nil {
		return err
	}
	defer logging.Close()

	if spiconfig.GetOrDefault(config, spiconfig.PropertyPostgresqlConnection, "") == "" {
		return cli.NewExitError("PostgreSQL connection string required", 6)
	}

	streamer, err := internal.NewStreamer(config, options)
	if err != nil {
		return supporting.AdaptError(err, 7)
	}

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	if err := streamer.Start(context.Background()); err != nil {
		streamer.Stop()
		return supporting.AdaptError(err, 8)
	}

	var streamErr error
	select {
	case <-signals:
	case streamErr = <-streamer.Errors():
		fmt.Fprintf(os.Stderr, "Replication stream failed: %v\n", streamErr)
	}

	if err := streamer.Stop(); err != nil {
		fmt.Fprintf(os.Stderr, "Hard error when stopping replication: %v\n", err)
		return supporting.AdaptError(err, 1)
	}

	if streamErr != nil {
		return supporting.AdaptError(streamErr, 10)
	}
	return nil
}

// parseOptions reads session options given as key=value pairs,
// a key without a value is passed as a null option
func parseOptions(
	values []string,
) (session.Options, error) {

	options := make(session.Options, len(values))
	for _, value := range values {
		key, optionValue, hasValue := strings.Cut(value, "=")
		key = strings.TrimSpace(key)
		if key == "" {
			return nil, errors.Errorf("invalid option '%s', key required", value)
		}
		if hasValue {
			v := optionValue
			options[key] = &v
		} else {
			options[key] = nil
		}
	}
	return options, nil
}
