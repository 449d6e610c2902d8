package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/S-Corkum/external-adapter/internal/config"
)

func TestHostOnly_WildcardBindsAllInterfaces(t *testing.T) {
	assert.Equal(t, "", hostOnly("0.0.0.0"))
	assert.Equal(t, "", hostOnly(""))
	assert.Equal(t, "127.0.0.1", hostOnly("127.0.0.1"))
}

func TestBuildEndpointDefs_WiresCryptoEndpoint(t *testing.T) {
	cfg := &config.Config{}
	defs := buildEndpointDefs(cfg)

	require := assert.New(t)
	require.Len(defs, 1)
	require.Equal("crypto", defs[0].Options.Name)
	require.Len(defs[0].Transports, 1)
	require.Equal("http", defs[0].Transports[0].Name)
}
