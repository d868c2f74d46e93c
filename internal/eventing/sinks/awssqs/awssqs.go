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

package awssqs

import (
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/sqs"
	"github.com/go-errors/errors"
	"github.com/noctarius/avro-change-encoder/spi/config"
	"github.com/noctarius/avro-change-encoder/spi/sink"
)

func init() {
	sink.RegisterSink(config.AwsSQS, newAwsSqsSink)
}

// awsSqsSink sends frames to a FIFO queue. SQS bodies are text,
// the frame is sent base64 encoded.
type awsSqsSink struct {
	queueUrl *string
	awsSqs   *sqs.SQS
}

func newAwsSqsSink(
	c *config.Config,
) (sink.Sink, error) {

	queueUrl := config.GetOrDefault[*string](c, config.PropertySqsQueueUrl, nil)
	if queueUrl == nil {
		return nil, errors.Errorf("AWS SQS sink needs the queue url to be configured")
	}

	awsRegion := config.GetOrDefault[*string](c, config.PropertySqsAwsRegion, nil)
	endpoint := config.GetOrDefault(c, config.PropertySqsAwsEndpoint, "")
	accessKeyId := config.GetOrDefault[*string](c, config.PropertySqsAwsAccessKeyId, nil)
	secretAccessKey := config.GetOrDefault[*string](c, config.PropertySqsAwsSecretAccessKey, nil)
	sessionToken := config.GetOrDefault[*string](c, config.PropertySqsAwsSessionToken, nil)

	awsConfig := aws.NewConfig().WithEndpoint(endpoint)
	if accessKeyId != nil && secretAccessKey != nil && sessionToken != nil {
		awsConfig = awsConfig.WithCredentials(
			credentials.NewStaticCredentials(*accessKeyId, *secretAccessKey, *sessionToken),
		)
	}

	if awsRegion != nil {
		awsConfig = awsConfig.WithRegion(*awsRegion)
	}

	awsSession, err := session.NewSession(awsConfig)
	if err != nil {
		return nil, err
	}

	return &awsSqsSink{
		queueUrl: queueUrl,
		awsSqs:   sqs.New(awsSession),
	}, nil
}

func (a *awsSqsSink) Start() error {
	return nil
}

func (a *awsSqsSink) Stop() error {
	return nil
}

func (a *awsSqsSink) Emit(
	message sink.Message,
) error {

	_, err := a.awsSqs.SendMessage(newSendMessageInput(a.queueUrl, message))
	return err
}

func newSendMessageInput(
	queueUrl *string, message sink.Message,
) *sqs.SendMessageInput {

	attributes := make(map[string]*sqs.MessageAttributeValue)
	for key, value := range message.Headers() {
		attributes[key] = &sqs.MessageAttributeValue{
			DataType:    aws.String("String"),
			StringValue: aws.String(value),
		}
	}

	return &sqs.SendMessageInput{
		DelaySeconds:           aws.Int64(0),
		MessageBody:            aws.String(base64.StdEncoding.EncodeToString(message.Data)),
		MessageAttributes:      attributes,
		MessageGroupId:         aws.String(message.Topic),
		MessageDeduplicationId: aws.String(deduplicationId(message)),
		QueueUrl:               queueUrl,
	}
}

// deduplicationId identifies the frame by creation time, position
// and content. Retried sends of the same message share the id.
func deduplicationId(
	message sink.Message,
) string {

	hash := sha256.New()
	hash.Write([]byte(fmt.Sprintf(
		"%d-%s-%d-%d-", message.Timestamp.UnixNano(), message.LSN, message.Xid, message.RelationId,
	)))
	hash.Write(message.Data)
	return fmt.Sprintf("%X", hash.Sum(nil))
}
