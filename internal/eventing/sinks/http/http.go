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

package http

import (
	"bytes"
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"github.com/go-errors/errors"
	"github.com/noctarius/avro-change-encoder/spi/config"
	"github.com/noctarius/avro-change-encoder/spi/sink"
	"io"
	"net/http"
)

func init() {
	sink.RegisterSink(config.Http, newHttpSink)
}

const (
	contentTypeAvro = "avro/binary"
	headerPrefix    = "X-Change-"
	headerTopic     = "X-Change-Topic"
)

func basicAuth(username, password string) string {
	auth := username + ":" + password
	return base64.StdEncoding.EncodeToString([]byte(auth))
}

type httpSink struct {
	client  *http.Client
	address string
	headers http.Header
}

func newHttpSink(
	c *config.Config,
) (sink.Sink, error) {

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if config.GetOrDefault(c, config.PropertyHttpTlsEnabled, false) {
		transport.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: config.GetOrDefault(
				c, config.PropertyHttpTlsSkipVerify, false,
			),
			ClientAuth: config.GetOrDefault(
				c, config.PropertyHttpTlsClientAuth, tls.NoClientCert,
			),
		}
	}

	address := config.GetOrDefault(c, config.PropertyHttpUrl, "http://localhost:80")
	headers := make(http.Header)

	authenticationType := config.GetOrDefault(c, config.PropertyHttpAuthenticationType, "none")
	switch config.HttpAuthenticationType(authenticationType) {
	case config.BasicAuthentication:
		headers.Add("Authorization",
			fmt.Sprintf("Basic %s",
				basicAuth(config.GetOrDefault(c, config.PropertyHttpBasicAuthenticationUsername, ""),
					config.GetOrDefault(c, config.PropertyHttpBasicAuthenticationPassword, ""),
				),
			),
		)
	case config.HeaderAuthentication:
		headers.Add(config.GetOrDefault(c, config.PropertyHttpHeaderAuthenticationHeaderName, ""),
			config.GetOrDefault(c, config.PropertyHttpHeaderAuthenticationHeaderValue, ""),
		)
	case config.NoneAuthentication:
	default:
		return nil, fmt.Errorf("http AuthenticationType '%s' doesn't exist", authenticationType)
	}

	return &httpSink{
		client:  &http.Client{Transport: transport},
		address: address,
		headers: headers,
	}, nil
}

func (h *httpSink) Start() error {
	return nil
}

func (h *httpSink) Stop() error {
	h.client.CloseIdleConnections()
	return nil
}

func (h *httpSink) Emit(
	message sink.Message,
) error {

	req, err := h.newRequest(message)
	if err != nil {
		return err
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return errors.Errorf("http sink received status %s for %s", resp.Status, message)
	}
	return nil
}

func (h *httpSink) newRequest(
	message sink.Message,
) (*http.Request, error) {

	req, err := http.NewRequest(http.MethodPost, h.address, bytes.NewReader(message.Data))
	if err != nil {
		return nil, err
	}

	req.Header = h.headers.Clone()
	req.Header.Set("Content-Type", contentTypeAvro)
	req.Header.Set(headerTopic, message.Topic)
	for key, value := range message.Headers() {
		req.Header.Set(headerPrefix+key, value)
	}
	return req, nil
}
