// Package appid resolves the edgegate app identity: binary name, env prefix
// and config directory name.
package appid

import (
	"context"

	"github.com/fulmenhq/gofulmen/appidentity"

	appidentityassets "github.com/namelens/edgegate/internal/assets/appidentity"
)

// An explicit identity (FULMEN_APP_IDENTITY_PATH or .fulmen/app.yaml) still
// wins over the embedded copy.
func init() {
	_ = appidentity.RegisterEmbeddedIdentityYAML(appidentityassets.YAML)
}

// Get returns the cached identity, loading it on first use.
func Get(ctx context.Context) (*appidentity.Identity, error) {
	return appidentity.Get(ctx)
}
