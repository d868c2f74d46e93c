package logging

import (
	"fmt"
	"github.com/gookit/slog"
	spiconfig "github.com/noctarius/avro-change-encoder/spi/config"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"os"
	"testing"
)

func Test_New_File_Handler(t *testing.T) {
	filename := lo.RandomString(10, lo.LowerCaseLettersCharset)
	path := fmt.Sprintf("/tmp/%s", filename)
	defer os.Remove(path)

	config := spiconfig.LoggerFileConfig{
		Enabled:  lo.ToPtr(true),
		Path:     path,
		Rotate:   lo.ToPtr(true),
		MaxSize:  lo.ToPtr("5MB"),
		Compress: false,
	}

	_, _, err := newFileHandler(config)
	assert.Nil(t, err)
}

func Test_New_File_Handler_Max_Duration(t *testing.T) {
	filename := lo.RandomString(10, lo.LowerCaseLettersCharset)
	path := fmt.Sprintf("/tmp/%s", filename)
	defer os.Remove(path)

	config := spiconfig.LoggerFileConfig{
		Enabled:     lo.ToPtr(true),
		Path:        path,
		Rotate:      lo.ToPtr(true),
		MaxDuration: lo.ToPtr(600),
		Compress:    false,
	}

	_, _, err := newFileHandler(config)
	assert.Nil(t, err)
}

func Test_New_File_Handler_Cache(t *testing.T) {
	filename := lo.RandomString(10, lo.LowerCaseLettersCharset)
	path := fmt.Sprintf("/tmp/%s", filename)
	defer os.Remove(path)

	config := spiconfig.LoggerFileConfig{
		Enabled:  lo.ToPtr(true),
		Path:     path,
		Rotate:   lo.ToPtr(true),
		MaxSize:  lo.ToPtr("5MB"),
		Compress: false,
	}

	cached, _, err := newFileHandler(config)
	assert.Nil(t, err)
	assert.False(t, cached)

	cached, _, err = newFileHandler(config)
	assert.Nil(t, err)
	assert.True(t, cached)
}

func Test_Logger_Scope_Prefix(t *testing.T) {
	logger, err := NewLogger("Session")
	assert.NoError(t, err)
	assert.Equal(t, "[Session]", logger.prefix())
	assert.Equal(t, "[Session] [relation=42]", logger.WithRelation(42).prefix())
	assert.Equal(t, "[Session] [txn]", logger.WithScope("txn").prefix())
}

func Test_Name2Level(t *testing.T) {
	assert.Equal(t, slog.ErrorLevel, Name2Level("err"))
	assert.Equal(t, slog.WarnLevel, Name2Level("WARNING"))
	assert.Equal(t, VerboseLevel, Name2Level("verbose"))
	assert.Equal(t, slog.InfoLevel, Name2Level("something"))
}

func Test_New_Console_Handler_Output(t *testing.T) {
	stdout := newConsoleHandler(false).(*consoleHandlerSyncAdapter)
	assert.Equal(t, os.Stdout, stdout.Output)

	stderr := newConsoleHandler(true).(*consoleHandlerSyncAdapter)
	assert.Equal(t, os.Stderr, stderr.Output)
	assert.True(t, stderr.IsHandling(slog.InfoLevel))
}
