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

package nats

import (
	"context"
	"fmt"
	"github.com/nats-io/nats.go"
	"github.com/noctarius/avro-change-encoder/internal/version"
	"github.com/noctarius/avro-change-encoder/spi/config"
	"github.com/noctarius/avro-change-encoder/spi/sink"
	"time"
)

func init() {
	sink.RegisterSink(config.NATS, newNatsSink)
}

type natsSink struct {
	client           *nats.Conn
	jetStreamContext nats.JetStreamContext
	timeout          time.Duration
}

func newNatsSink(
	c *config.Config,
) (sink.Sink, error) {

	address := config.GetOrDefault(c, config.PropertyNatsAddress, "nats://localhost:4222")
	authorization := config.GetOrDefault(c, config.PropertyNatsAuthorization, "userinfo")
	switch config.NatsAuthorizationType(authorization) {
	case config.UserInfo:
		username := config.GetOrDefault(c, config.PropertyNatsUserinfoUsername, "")
		password := config.GetOrDefault(c, config.PropertyNatsUserinfoPassword, "")
		return connectJetStreamContext(c, address, nats.UserInfo(username, password))
	case config.Credentials:
		certificate := config.GetOrDefault(c, config.PropertyNatsCredentialsCertificate, "")
		seeds := config.GetOrDefault(c, config.PropertyNatsCredentialsSeeds, []string{})
		return connectJetStreamContext(c, address, nats.UserCredentials(certificate, seeds...))
	case config.Jwt:
		jwt := config.GetOrDefault(c, config.PropertyNatsJwt, "")
		seed := config.GetOrDefault(c, config.PropertyNatsJwtSeed, "")
		return connectJetStreamContext(c, address, nats.UserJWTAndSeed(jwt, seed))
	}
	return nil, fmt.Errorf("NATS AuthorizationType '%s' doesn't exist", authorization)
}

func connectJetStreamContext(
	c *config.Config, address string, options ...nats.Option,
) (sink.Sink, error) {

	options = append(
		options,
		nats.Name(version.BinName),
		nats.RetryOnFailedConnect(true),
		nats.ReconnectWait(time.Second*10),
		nats.ReconnectBufSize(1024*1024),
		nats.MaxReconnects(-1),
	)

	client, err := nats.Connect(address, options...)
	if err != nil {
		return nil, err
	}

	jetStreamContext, err := client.JetStream()
	if err != nil {
		return nil, err
	}

	return &natsSink{
		client:           client,
		jetStreamContext: jetStreamContext,
		timeout:          time.Second * time.Duration(config.GetOrDefault(c, config.PropertyNatsTimeout, 5)),
	}, nil
}

func (n *natsSink) Start() error {
	return nil
}

func (n *natsSink) Stop() error {
	n.client.Close()
	return nil
}

func (n *natsSink) Emit(
	message sink.Message,
) error {

	ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
	defer cancel()

	_, err := n.jetStreamContext.PublishMsg(newNatsMsg(message), nats.Context(ctx))
	return err
}

func newNatsMsg(
	message sink.Message,
) *nats.Msg {

	header := nats.Header{}
	for key, value := range message.Headers() {
		header.Add(key, value)
	}

	msg := nats.NewMsg(message.Topic)
	msg.Header = header
	msg.Data = message.Data
	return msg
}
