package http

import (
	"encoding/base64"
	"github.com/noctarius/avro-change-encoder/spi/config"
	"github.com/noctarius/avro-change-encoder/spi/sink"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func Test_Http_Sink_Posts_Frames(t *testing.T) {
	var received *http.Request
	var body []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received = r
		body, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	s, err := newHttpSink(&config.Config{
		Sink: config.SinkConfig{
			Http: config.HttpConfig{
				Url: server.URL,
				Authentication: config.HttpAuthenticationConfig{
					Type: config.BasicAuthentication,
					Basic: config.HttpBasicAuthenticationConfig{
						Username: "user",
						Password: "secret",
					},
				},
			},
		},
	})
	require.NoError(t, err)

	require.NoError(t, s.Emit(sink.Message{Kind: "Insert", RelationId: 42, Topic: "accounts", Data: []byte{0x02, 0x08}}))
	require.NotNil(t, received)
	assert.Equal(t, http.MethodPost, received.Method)
	assert.Equal(t, contentTypeAvro, received.Header.Get("Content-Type"))
	assert.Equal(t, "accounts", received.Header.Get(headerTopic))
	assert.Equal(t, "42", received.Header.Get(headerPrefix+sink.HeaderRelationId))
	assert.Equal(t, "Basic "+base64.StdEncoding.EncodeToString([]byte("user:secret")), received.Header.Get("Authorization"))
	assert.Equal(t, []byte{0x02, 0x08}, body)
}

func Test_Http_Sink_Fails_On_Error_Status(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	s, err := newHttpSink(&config.Config{
		Sink: config.SinkConfig{Http: config.HttpConfig{Url: server.URL}},
	})
	require.NoError(t, err)
	assert.ErrorContains(t, s.Emit(sink.Message{Kind: "Insert", Topic: "accounts"}), "503")
}

func Test_Http_Sink_Unknown_Authentication(t *testing.T) {
	_, err := newHttpSink(&config.Config{
		Sink: config.SinkConfig{
			Http: config.HttpConfig{
				Authentication: config.HttpAuthenticationConfig{Type: "kerberos"},
			},
		},
	})
	assert.Error(t, err)
}
