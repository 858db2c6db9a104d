// Package openapi embeds the OpenAPI description of the coopquality HTTP API.
package openapi

import _ "embed"

// APISpec is the OpenAPI 3 document served at /api/v1/openapi.yaml.
//
//go:embed coopquality-api.yaml
var APISpec []byte

// Spec returns a copy of the embedded document.
func Spec() []byte {
	return append([]byte(nil), APISpec...)
}
