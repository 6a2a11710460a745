package cmd

import (
	"context"
	"strings"
	"testing"

	"github.com/fulmenhq/gofulmen/appidentity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/namelens/edgegate/internal/appid"
)

func TestAppIdentityLoads(t *testing.T) {
	identity, err := appid.Get(context.Background())
	require.NoError(t, err)
	require.NotNil(t, identity)

	assert.NotEmpty(t, identity.Vendor)
	assert.NotEmpty(t, identity.BinaryName)
	assert.NotEmpty(t, identity.ConfigName)
	assert.True(t, strings.HasSuffix(identity.EnvPrefix, "_"), "env prefix %q", identity.EnvPrefix)
}

func TestApplyIdentityToHelp(t *testing.T) {
	use, short := rootCmd.Use, rootCmd.Short
	flag := rootCmd.PersistentFlags().Lookup("config")
	usage := flag.Usage
	t.Cleanup(func() {
		rootCmd.Use, rootCmd.Short = use, short
		flag.Usage = usage
	})

	applyIdentityToHelp(&appidentity.Identity{
		BinaryName:  "edgegate-staging",
		Description: "Staging edge router",
		ConfigName:  "edgegate-staging",
	})

	assert.Equal(t, "edgegate-staging", rootCmd.Use)
	assert.Equal(t, "Staging edge router", rootCmd.Short)
	assert.Contains(t, flag.Usage, "edgegate-staging/config.yaml")

	applyIdentityToHelp(nil)
	assert.Equal(t, "edgegate-staging", rootCmd.Use)
}
