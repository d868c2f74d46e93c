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

package awskinesis

import (
	"encoding/hex"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/kinesis"
	"github.com/go-errors/errors"
	"github.com/noctarius/avro-change-encoder/spi/config"
	"github.com/noctarius/avro-change-encoder/spi/sink"
)

func init() {
	sink.RegisterSink(config.AwsKinesis, newAwsKinesisSink)
}

type awsKinesisSink struct {
	streamName *string
	awsKinesis *kinesis.Kinesis
}

func newAwsKinesisSink(
	c *config.Config,
) (sink.Sink, error) {

	streamName := config.GetOrDefault[*string](c, config.PropertyKinesisStreamName, nil)
	if streamName == nil {
		return nil, errors.Errorf("AWS Kinesis sink needs the stream name to be configured")
	}

	shardCount := config.GetOrDefault[*int64](c, config.PropertyKinesisStreamShardCount, nil)
	streamMode := config.GetOrDefault[*string](c, config.PropertyKinesisStreamMode, nil)
	streamCreate := config.GetOrDefault(c, config.PropertyKinesisStreamCreate, true)

	awsConfig := newAwsConfig(
		config.GetOrDefault[*string](c, config.PropertyKinesisRegion, nil),
		config.GetOrDefault(c, config.PropertyKinesisAwsEndpoint, ""),
		config.GetOrDefault[*string](c, config.PropertyKinesisAwsAccessKeyId, nil),
		config.GetOrDefault[*string](c, config.PropertyKinesisAwsSecretAccessKey, nil),
		config.GetOrDefault[*string](c, config.PropertyKinesisAwsSessionToken, nil),
	)

	var streamModeDetails *kinesis.StreamModeDetails
	if streamMode != nil {
		streamModeDetails = &kinesis.StreamModeDetails{
			StreamMode: streamMode,
		}
	}

	awsSession, err := session.NewSession(awsConfig)
	if err != nil {
		return nil, err
	}

	awsKinesis := kinesis.New(awsSession)
	_, err = awsKinesis.DescribeStream(&kinesis.DescribeStreamInput{
		StreamName: streamName,
	})
	if err != nil {
		if _, ok := err.(*kinesis.ResourceNotFoundException); !ok {
			return nil, err
		}

		// Stream doesn't exist yet, create it if allowed
		if !streamCreate {
			return nil, err
		}

		if _, err = awsKinesis.CreateStream(&kinesis.CreateStreamInput{
			ShardCount:        shardCount,
			StreamModeDetails: streamModeDetails,
			StreamName:        streamName,
		}); err != nil {
			return nil, err
		}

		if err := awsKinesis.WaitUntilStreamExists(&kinesis.DescribeStreamInput{
			StreamName: streamName,
		}); err != nil {
			return nil, errors.Wrap(err, 0)
		}
	}

	return &awsKinesisSink{
		streamName: streamName,
		awsKinesis: awsKinesis,
	}, nil
}

func newAwsConfig(
	awsRegion *string, endpoint string, accessKeyId, secretAccessKey, sessionToken *string,
) *aws.Config {

	awsConfig := aws.NewConfig().WithEndpoint(endpoint)
	if accessKeyId != nil && secretAccessKey != nil {
		token := ""
		if sessionToken != nil {
			token = *sessionToken
		}
		awsConfig = awsConfig.WithCredentials(
			credentials.NewStaticCredentials(*accessKeyId, *secretAccessKey, token),
		)
	}

	if awsRegion != nil {
		awsConfig = awsConfig.WithRegion(*awsRegion)
	}
	return awsConfig
}

func (a *awsKinesisSink) Start() error {
	return nil
}

func (a *awsKinesisSink) Stop() error {
	return nil
}

func (a *awsKinesisSink) Emit(
	message sink.Message,
) error {

	_, err := a.awsKinesis.PutRecord(newPutRecordInput(a.streamName, message))
	return err
}

// Records of the same relation share a partition key and
// therefore a shard, which keeps their order
func newPutRecordInput(
	streamName *string, message sink.Message,
) *kinesis.PutRecordInput {

	return &kinesis.PutRecordInput{
		StreamName:   streamName,
		PartitionKey: aws.String(message.Topic + "-" + hex.EncodeToString(message.Key)),
		Data:         message.Data,
	}
}
