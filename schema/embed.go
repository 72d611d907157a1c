package schema

import _ "embed"

// ComposeV1Schema contains the JSON schema for compose manifests.
//
//go:embed compose.v1.json
var ComposeV1Schema []byte
