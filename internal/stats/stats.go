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

package stats

import (
	"github.com/go-errors/errors"
	"github.com/noctarius/avro-change-encoder/internal/version"
	"github.com/noctarius/avro-change-encoder/spi/config"
	"github.com/segmentio/stats/v4"
	"github.com/segmentio/stats/v4/procstats"
	"github.com/segmentio/stats/v4/prometheus"
	"golang.org/x/net/context"
	"io"
	"net/http"
	"time"
)

const defaultAddress = ":8081"

type Service struct {
	statsEnabled     bool
	handler          *prometheus.Handler
	engine           *stats.Engine
	server           *http.Server
	runtimeCollector io.Closer
	runtimeEnabled   bool
}

func NewStatsService(
	c *config.Config,
) *Service {

	statsHandler := &prometheus.Handler{
		TrimPrefix: version.BinName,
	}

	statsEnabled := config.GetOrDefault(c, config.PropertyStatsEnabled, true)
	runtimeStatsEnabled := config.GetOrDefault(c, config.PropertyRuntimeStatsEnabled, true)
	address := config.GetOrDefault(c, config.PropertyStatsAddress, defaultAddress)

	engine := stats.NewEngine(version.BinName, statsHandler)

	mux := http.NewServeMux()
	mux.HandleFunc("/metrics", statsHandler.ServeHTTP)

	return &Service{
		statsEnabled:   statsEnabled,
		runtimeEnabled: runtimeStatsEnabled,
		handler:        statsHandler,
		engine:         engine,
		server: &http.Server{
			Addr:              address,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

func (s *Service) Start() error {
	if !s.statsEnabled {
		return nil
	}

	if s.runtimeEnabled {
		s.runtimeCollector = procstats.StartCollector(procstats.NewGoMetricsWith(s.engine))
	}

	go func() {
		err := s.server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			panic(err)
		}
	}()
	return nil
}

func (s *Service) Stop() error {
	if !s.statsEnabled {
		return nil
	}
	if s.runtimeCollector != nil {
		_ = s.runtimeCollector.Close()
	}
	return s.server.Shutdown(context.Background())
}

// Handler returns the prometheus handler collecting all
// measures of the service
func (s *Service) Handler() http.Handler {
	return s.handler
}

func (s *Service) NewReporter(
	prefix string,
) *Reporter {

	return &Reporter{
		statsEnabled: s.statsEnabled,
		engine:       s.engine.WithPrefix(prefix),
	}
}

// Reporter records measures below a common prefix. A nil
// Reporter or one of a disabled service drops all measures.
type Reporter struct {
	statsEnabled bool
	engine       *stats.Engine
}

func (r *Reporter) Incr(
	name string, tags ...stats.Tag,
) {

	if r == nil || !r.statsEnabled {
		return
	}
	r.engine.Incr(name, tags...)
}

func (r *Reporter) Add(
	name string, value int, tags ...stats.Tag,
) {

	if r == nil || !r.statsEnabled {
		return
	}
	r.engine.Add(name, value, tags...)
}

func (r *Reporter) Observe(
	name string, duration time.Duration, tags ...stats.Tag,
) {

	if r == nil || !r.statsEnabled {
		return
	}
	r.engine.Observe(name, duration, tags...)
}

func (r *Reporter) Set(
	name string, value int64, tags ...stats.Tag,
) {

	if r == nil || !r.statsEnabled {
		return
	}
	r.engine.Set(name, value, tags...)
}

// Tag creates a measure tag
func Tag(
	name, value string,
) stats.Tag {

	return stats.T(name, value)
}
