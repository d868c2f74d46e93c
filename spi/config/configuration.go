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

package config

import (
	"crypto/tls"
	"github.com/IBM/sarama"
	"os"
	"reflect"
	"strings"
)

type SinkType string

const (
	Stdout     SinkType = "stdout"
	NATS       SinkType = "nats"
	Kafka      SinkType = "kafka"
	Redis      SinkType = "redis"
	AwsKinesis SinkType = "kinesis"
	AwsSQS     SinkType = "sqs"
	Http       SinkType = "http"
)

type NatsAuthorizationType string

const (
	UserInfo    NatsAuthorizationType = "userinfo"
	Credentials NatsAuthorizationType = "credentials"
	Jwt         NatsAuthorizationType = "jwt"
)

type HttpAuthenticationType string

const (
	NoneAuthentication   HttpAuthenticationType = "none"
	BasicAuthentication  HttpAuthenticationType = "basic"
	HeaderAuthentication HttpAuthenticationType = "header"
)

type PostgreSQLConfig struct {
	Connection      string                `toml:"connection"`
	Password        string                `toml:"password"`
	Publication     PublicationConfig     `toml:"publication"`
	ReplicationSlot ReplicationSlotConfig `toml:"replicationslot"`
}

type PublicationConfig struct {
	Name string `toml:"name"`
}

type ReplicationSlotConfig struct {
	Name     string `toml:"name"`
	Create   *bool  `toml:"create"`
	AutoDrop *bool  `toml:"autodrop"`
}

type EncoderConfig struct {
	ErrorPolicy  *string                      `toml:"errorpolicy"`
	MappingTable string                       `toml:"mappingtable"`
	Filters      map[string]EventFilterConfig `toml:"filters"`
}

type EventFilterConfig struct {
	DefaultValue *bool    `toml:"default"`
	Condition    string   `toml:"condition"`
	Tables       []string `toml:"tables"`
}

type SinkConfig struct {
	Type    SinkType         `toml:"type"`
	Topic   string           `toml:"topic"`
	Retries SinkRetryConfig  `toml:"retries"`
	Nats    NatsConfig       `toml:"nats"`
	Kafka   KafkaConfig      `toml:"kafka"`
	Redis   RedisConfig      `toml:"redis"`
	Kinesis KinesisConfig    `toml:"kinesis"`
	Sqs     SqsConfig        `toml:"sqs"`
	Http    HttpConfig       `toml:"http"`
}

type SinkRetryConfig struct {
	MaxAttempts uint64 `toml:"maxattempts"`
}

type NatsUserInfoConfig struct {
	Username string `toml:"username"`
	Password string `toml:"password"`
}

type NatsCredentialsConfig struct {
	Certificate string   `toml:"certificate"`
	Seeds       []string `toml:"seeds"`
}

type NatsJWTConfig struct {
	JWT  string `toml:"jwt"`
	Seed string `toml:"seed"`
}

type NatsConfig struct {
	Address       string                `toml:"address"`
	Authorization NatsAuthorizationType `toml:"authorization"`
	UserInfo      NatsUserInfoConfig    `toml:"userinfo"`
	Credentials   NatsCredentialsConfig `toml:"credentials"`
	JWT           NatsJWTConfig         `toml:"jwt"`
	Timeout       int                   `toml:"timeout"`
}

type KafkaSaslConfig struct {
	Enabled   bool                 `toml:"enabled"`
	User      string               `toml:"user"`
	Password  string               `toml:"password"`
	Mechanism sarama.SASLMechanism `toml:"mechanism"`
}

type KafkaConfig struct {
	Brokers    []string        `toml:"brokers"`
	Idempotent bool            `toml:"idempotent"`
	Sasl       KafkaSaslConfig `toml:"sasl"`
	TLS        TLSConfig       `toml:"tls"`
}

type RedisConfig struct {
	Network  string             `toml:"network"`
	Address  string             `toml:"address"`
	Password string             `toml:"password"`
	Database int                `toml:"database"`
	Retries  RedisRetryConfig   `toml:"retries"`
	Timeouts RedisTimeoutConfig `toml:"timeouts"`
	PoolSize int                `toml:"poolsize"`
	TLS      TLSConfig          `toml:"tls"`
}

type RedisRetryConfig struct {
	MaxAttempts int                     `toml:"maxattempts"`
	Backoff     RedisRetryBackoffConfig `toml:"backoff"`
}

type RedisRetryBackoffConfig struct {
	Min int `toml:"min"`
	Max int `toml:"max"`
}

type RedisTimeoutConfig struct {
	Dial  int `toml:"dial"`
	Read  int `toml:"read"`
	Write int `toml:"write"`
	Pool  int `toml:"pool"`
	Idle  int `toml:"idle"`
}

type AwsConfig struct {
	Region          *string `toml:"region"`
	Endpoint        string  `toml:"endpoint"`
	AccessKeyId     *string `toml:"accesskeyid"`
	SecretAccessKey *string `toml:"secretaccesskey"`
	SessionToken    *string `toml:"sessiontoken"`
}

type KinesisStreamConfig struct {
	Name       *string `toml:"name"`
	Create     *bool   `toml:"create"`
	ShardCount *int64  `toml:"shardcount"`
	Mode       *string `toml:"mode"`
}

type KinesisConfig struct {
	Stream KinesisStreamConfig `toml:"stream"`
	Aws    AwsConfig           `toml:"aws"`
}

type SqsQueueConfig struct {
	Url *string `toml:"url"`
}

type SqsConfig struct {
	Queue SqsQueueConfig `toml:"queue"`
	Aws   AwsConfig      `toml:"aws"`
}

type HttpBasicAuthenticationConfig struct {
	Username string `toml:"username"`
	Password string `toml:"password"`
}

type HttpHeaderAuthenticationConfig struct {
	Name  string `toml:"name"`
	Value string `toml:"value"`
}

type HttpAuthenticationConfig struct {
	Type   HttpAuthenticationType         `toml:"type"`
	Basic  HttpBasicAuthenticationConfig  `toml:"basic"`
	Header HttpHeaderAuthenticationConfig `toml:"header"`
}

type HttpConfig struct {
	Url            string                   `toml:"url"`
	Authentication HttpAuthenticationConfig `toml:"authentication"`
	TLS            TLSConfig                `toml:"tls"`
}

type TLSConfig struct {
	Enabled    bool               `toml:"enabled"`
	SkipVerify bool               `toml:"skipverify"`
	ClientAuth tls.ClientAuthType `toml:"clientauth"`
}

type StatsConfig struct {
	Enabled *bool              `toml:"enabled"`
	Address string             `toml:"address"`
	Runtime RuntimeStatsConfig `toml:"runtime"`
}

type RuntimeStatsConfig struct {
	Enabled *bool `toml:"enabled"`
}

type InternalConfig struct {
	Encoding InternalEncodingConfig `toml:"encoding"`
}

type InternalEncodingConfig struct {
	CustomReflection *bool `toml:"customreflection"`
}

type Config struct {
	PostgreSQL PostgreSQLConfig `toml:"postgresql"`
	Encoder    EncoderConfig    `toml:"encoder"`
	Sink       SinkConfig       `toml:"sink"`
	Logging    LoggerConfig     `toml:"logging"`
	Stats      StatsConfig      `toml:"stats"`
	Internal   InternalConfig   `toml:"internal"`
}

type LoggerConfig struct {
	Level   string                     `toml:"level"`
	Outputs LoggerOutputConfig         `toml:"outputs"`
	Loggers map[string]SubLoggerConfig `toml:"loggers"`
}

type LoggerOutputConfig struct {
	Console LoggerConsoleConfig `toml:"console"`
	File    LoggerFileConfig    `toml:"file"`
}

type SubLoggerConfig struct {
	Level   *string            `toml:"level"`
	Outputs LoggerOutputConfig `toml:"outputs"`
}

type LoggerConsoleConfig struct {
	Enabled *bool `toml:"enabled"`
}

type LoggerFileConfig struct {
	Enabled     *bool   `toml:"enabled"`
	Path        string  `toml:"path"`
	Rotate      *bool   `toml:"rotate"`
	MaxSize     *string `toml:"maxsize"`
	MaxDuration *int    `toml:"maxduration"`
	Compress    bool    `toml:"compress"`
}

func GetOrDefault[V any](
	config *Config, canonicalProperty string, defaultValue V,
) V {

	if env, found := findEnvProperty(canonicalProperty, defaultValue); found {
		return env
	}

	properties := strings.Split(canonicalProperty, ".")

	element := reflect.ValueOf(*config)
	for _, property := range properties {
		if e, ok := findProperty(element, property); ok {
			element = e
		} else {
			return defaultValue
		}
	}

	if !element.IsZero() &&
		!(element.Kind() == reflect.Ptr && element.IsNil()) {

		// Pointer targets are returned as is, everything else is dereferenced
		targetType := reflect.TypeOf(defaultValue)
		if element.Kind() == reflect.Ptr && (targetType == nil || targetType.Kind() != reflect.Ptr) {
			element = element.Elem()
		}
		if targetType == nil {
			return defaultValue
		}

		return element.Convert(targetType).Interface().(V)
	}
	return defaultValue
}

func findEnvProperty[V any](
	canonicalProperty string, defaultValue V,
) (V, bool) {

	t := reflect.TypeOf(defaultValue)
	if t == nil || (t.Kind() != reflect.String && !(t.Kind() == reflect.Ptr && t.Elem().Kind() == reflect.String)) {
		return defaultValue, false
	}

	envVarName := strings.ToUpper(canonicalProperty)
	envVarName = strings.ReplaceAll(envVarName, "_", "__")
	envVarName = strings.ReplaceAll(envVarName, ".", "_")
	if val, ok := os.LookupEnv(envVarName); ok && val != "" {
		if t.Kind() == reflect.Ptr {
			v := reflect.New(t.Elem())
			v.Elem().Set(reflect.ValueOf(val).Convert(t.Elem()))
			return v.Interface().(V), true
		}
		return reflect.ValueOf(val).Convert(t).Interface().(V), true
	}
	return defaultValue, false
}

func findProperty(
	element reflect.Value, property string,
) (reflect.Value, bool) {

	t := element.Type()
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.PkgPath != "" && !f.Anonymous {
			continue
		}

		if f.Tag.Get("toml") == property {
			return element.Field(i), true
		}
	}
	return reflect.Value{}, false
}
