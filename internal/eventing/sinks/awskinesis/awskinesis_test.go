package awskinesis

import (
	"github.com/noctarius/avro-change-encoder/spi/sink"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"testing"
)

func Test_AWS_Kinesis_Config(t *testing.T) {
	awsConfig := newAwsConfig(
		lo.ToPtr("eu-central-1"), "http://localhost:4566",
		lo.ToPtr("aws_access_key_id"), lo.ToPtr("aws_secret_access_key"), nil,
	)

	assert.Equal(t, "eu-central-1", *awsConfig.Region)
	assert.Equal(t, "http://localhost:4566", *awsConfig.Endpoint)

	credentials, err := awsConfig.Credentials.Get()
	require.NoError(t, err)
	assert.Equal(t, "aws_access_key_id", credentials.AccessKeyID)
	assert.Equal(t, "aws_secret_access_key", credentials.SecretAccessKey)
	assert.Equal(t, "", credentials.SessionToken)
}

func Test_AWS_Kinesis_Partition_Key(t *testing.T) {
	first := newPutRecordInput(lo.ToPtr("stream"), sink.Message{
		Topic: "accounts", Key: []byte{0, 0, 0, 42}, Data: []byte{0x02},
	})
	second := newPutRecordInput(lo.ToPtr("stream"), sink.Message{
		Topic: "accounts", Key: []byte{0, 0, 0, 42}, Data: []byte{0x04},
	})

	assert.Equal(t, "accounts-0000002a", *first.PartitionKey)
	assert.Equal(t, *first.PartitionKey, *second.PartitionKey)
	assert.Equal(t, "stream", *first.StreamName)
	assert.Equal(t, []byte{0x02}, first.Data)
}
