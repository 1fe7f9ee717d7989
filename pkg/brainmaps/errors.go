// Package brainmaps is a client for Google's Brainmaps API. It acquires and
// stores OAuth2 credentials, lists mesh fragments of segmented objects, and
// fetches and assembles their meshes concurrently.
//
// Every fetch function takes an explicit volume and session through
// WithVolume and WithSession. When omitted, the process-wide defaults set by
// SetGlobalVolume and SetDefaultSession (or AcquireCredentials with
// MakeGlobal) are used.
package brainmaps

import (
	"github.com/brainmappy/brainmaps-go/internal/brainmaps"
	"github.com/brainmappy/brainmaps-go/pkg/ngmesh"
)

// Error kinds, checked with errors.Is.
var (
	ErrAuthentication = brainmaps.ErrAuthentication
	ErrConfiguration  = brainmaps.ErrConfiguration
	ErrRemote         = brainmaps.ErrRemote
	ErrNotLoggedIn    = brainmaps.ErrNotLoggedIn

	ErrBadRequest   = brainmaps.ErrBadRequest
	ErrUnauthorized = brainmaps.ErrUnauthorized
	ErrForbidden    = brainmaps.ErrForbidden
	ErrNotFound     = brainmaps.ErrNotFound
	ErrThrottled    = brainmaps.ErrThrottled
	ErrServerError  = brainmaps.ErrServerError
)

// Re-exported types.
type (
	APIError    = brainmaps.APIError
	DecodeError = ngmesh.DecodeError
	TokenSource = brainmaps.TokenSource
	RetryPolicy = brainmaps.RetryPolicy

	Fragment    = brainmaps.Fragment
	Mesh        = ngmesh.Mesh
	Geometry    = brainmaps.Geometry
	MeshInfo    = brainmaps.MeshInfo
	Project     = brainmaps.Project
	Schema      = brainmaps.Schema
	ReplayBatch = brainmaps.ReplayBatch
	ObjectMesh  = brainmaps.ObjectMesh
	PixelSize   = brainmaps.PixelSize
	Size3       = brainmaps.Size3
	BoundingBox = brainmaps.BoundingBox
)

// DefaultMeshName is the mesh collection used when WithMeshName is not given.
const DefaultMeshName = brainmaps.DefaultMeshName
