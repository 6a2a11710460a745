package appidentityassets

import _ "embed"

// YAML is the built-in app identity used when no .fulmen/app.yaml is found
// next to the binary or its working directory.
//
//go:embed app.yaml
var YAML []byte
