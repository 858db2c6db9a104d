// Package blob is the entry point for evidence storage. Callers depend on
// Store and never import the infra backends directly.
package blob

import (
	"fmt"
	"path"
	"strings"

	"coopquality/internal/blob/core"
)

type (
	// Driver identifies a storage backend.
	Driver = core.Driver
	// PutOptions configures an upload.
	PutOptions = core.PutOptions
	// SignedURLOptions configures a download link.
	SignedURLOptions = core.SignedURLOptions
	// Info describes a stored object.
	Info = core.Info
	// Store is implemented by every backend.
	Store = core.Store
)

const (
	DriverFilesystem = core.DriverFilesystem
	DriverS3         = core.DriverS3
	DriverMemory     = core.DriverMemory
)

var (
	ErrUnsupported = core.ErrUnsupported
	ErrExists      = core.ErrExists
	ErrNotFound    = core.ErrNotFound
	ErrInvalidKey  = core.ErrInvalidKey
)

// EvidenceKey builds the object key for a file attached to one evaluated
// item of an inspection: inspections/<inspection>/<definition>/<file>.
func EvidenceKey(inspectionID, definitionID, filename string) (string, error) {
	segments := []string{inspectionID, definitionID, path.Base(strings.ReplaceAll(filename, "\\", "/"))}
	for _, s := range segments {
		if strings.TrimSpace(s) == "" || s == "." || s == ".." || s == "/" || strings.Contains(s, "/") {
			return "", fmt.Errorf("%w: segment %q", ErrInvalidKey, s)
		}
	}
	return path.Join("inspections", segments[0], segments[1], segments[2]), nil
}

// InspectionPrefix is the listing prefix covering every evidence file of an inspection.
func InspectionPrefix(inspectionID string) string {
	return "inspections/" + inspectionID + "/"
}
