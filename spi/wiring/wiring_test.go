package wiring

import (
	"github.com/go-errors/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"testing"
)

type settings struct {
	topic string
}

type publisher struct {
	settings      *settings
	constructed   bool
	shutdownCalls int
}

func (p *publisher) PostConstruct() error {
	p.constructed = true
	return nil
}

func (p *publisher) Shutdown() error {
	p.shutdownCalls++
	return nil
}

func Test_Container_Resolves_Dependencies(t *testing.T) {
	invoked := false
	module := DefineModule("Test", func(module Module) {
		module.Provide(func() *settings {
			return &settings{topic: "frames"}
		})
		module.Provide(func(s *settings) (*publisher, error) {
			return &publisher{settings: s}, nil
		})
		module.Invoke(func(p *publisher) error {
			invoked = p.settings.topic == "frames"
			return nil
		})
	})
	assert.Equal(t, "Test", module.Name())

	container, err := NewContainer(module)
	require.NoError(t, err)
	assert.True(t, invoked)

	var p *publisher
	require.NoError(t, container.Service(&p))
	assert.True(t, p.constructed)
	assert.Equal(t, "frames", p.settings.topic)

	require.NoError(t, container.Shutdown())
	assert.Equal(t, 1, p.shutdownCalls)
}

func Test_Container_Later_Modules_Override(t *testing.T) {
	defaults := DefineModule("Defaults", func(module Module) {
		module.Provide(func() *settings {
			return &settings{topic: "default"}
		})
	})
	overrides := DefineModule("Overrides", func(module Module) {
		module.Provide(func() *settings {
			return &settings{topic: "custom"}
		})
	})

	container, err := NewContainer(defaults, overrides)
	require.NoError(t, err)

	var s *settings
	require.NoError(t, container.Service(&s))
	assert.Equal(t, "custom", s.topic)
}

func Test_Container_Constructor_Errors(t *testing.T) {
	module := DefineModule("Failing", func(module Module) {
		module.Provide(func() (*settings, error) {
			return nil, errors.New("no settings")
		}, ForceInitialization())
	})

	_, err := NewContainer(module)
	assert.ErrorContains(t, err, "no settings")
}

func Test_Container_Missing_Service(t *testing.T) {
	container, err := NewContainer()
	require.NoError(t, err)

	var s *settings
	assert.Error(t, container.Service(&s))
	assert.Error(t, container.Service(s))
}

func Test_Module_Rejects_Non_Functions(t *testing.T) {
	assert.Panics(t, func() {
		DefineModule("Broken", func(module Module) {
			module.Provide("not a function")
		})
	})
	assert.Panics(t, func() {
		DefineModule("Broken", func(module Module) {
			module.Provide(func() (*settings, string) { return nil, "" })
		})
	})
}
