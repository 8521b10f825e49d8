package errors

import "io/fs"

// Platform domain error codes
const (
	CodeUnsupportedArch   Code = "unsupported_arch"
	CodeUnsupportedTarget Code = "unsupported_target"
	CodeDscNotFound       Code = "dsc_not_found"
	CodeWorkspaceInvalid  Code = "workspace_invalid"
)

// Platform domain errors
var (
	ErrUnsupportedArch   = New(DomainPlatform, CodeUnsupportedArch, "unsupported architecture requested")
	ErrUnsupportedTarget = New(DomainPlatform, CodeUnsupportedTarget, "unsupported build target requested")
	ErrDscNotFound       = New(DomainPlatform, CodeDscNotFound, "platform description file not found").WithCause(fs.ErrNotExist)
	ErrWorkspaceInvalid  = New(DomainPlatform, CodeWorkspaceInvalid, "workspace root is not usable")
)

// Submodule domain error codes
const (
	CodeSubmodulePathMissing    Code = "path_missing"
	CodeSubmoduleNotInitialized Code = "not_initialized"
	CodeSubmoduleSyncFailed     Code = "sync_failed"
)

// Submodule domain errors
var (
	ErrSubmodulePathMissing    = New(DomainSubmodule, CodeSubmodulePathMissing, "submodule path missing from workspace")
	ErrSubmoduleNotInitialized = New(DomainSubmodule, CodeSubmoduleNotInitialized, "submodule present but not initialized")
	ErrSubmoduleSyncFailed     = New(DomainSubmodule, CodeSubmoduleSyncFailed, "submodule synchronization failed")
)

// Environment domain error codes
const (
	CodeMalformedDefine Code = "malformed_define"
	CodeValueNotFound   Code = "value_not_found"
)

// Environment domain errors
var (
	ErrMalformedDefine = New(DomainEnvironment, CodeMalformedDefine, "build variable must use NAME=VALUE form")
	ErrValueNotFound   = New(DomainEnvironment, CodeValueNotFound, "build variable not set")
)

// Engine domain error codes
const (
	CodeEngineNotFound Code = "engine_not_found"
	CodeEngineFailed   Code = "engine_failed"
	CodeGitNotFound    Code = "git_not_found"
	CodeGitFailed      Code = "git_failed"
)

// Engine domain errors
var (
	ErrEngineNotFound = New(DomainEngine, CodeEngineNotFound, "firmware build engine not found in PATH")
	ErrEngineFailed   = New(DomainEngine, CodeEngineFailed, "firmware build engine reported failure")
	ErrGitNotFound    = New(DomainEngine, CodeGitNotFound, "git executable not found in PATH")
	ErrGitFailed      = New(DomainEngine, CodeGitFailed, "git command reported failure")
)

// Report domain error codes
const (
	CodeReportOpenFailed  Code = "open_failed"
	CodeReportWriteFailed Code = "write_failed"
	CodeReportNotFound    Code = "not_found"
)

// Report domain errors
var (
	ErrReportOpenFailed  = New(DomainReport, CodeReportOpenFailed, "failed to open build history store")
	ErrReportWriteFailed = New(DomainReport, CodeReportWriteFailed, "failed to record build invocation")
	ErrReportNotFound    = New(DomainReport, CodeReportNotFound, "build invocation not found")
)

// Storage domain error codes
const (
	CodeStorageUnavailable Code = "unavailable"
	CodeArtifactNotFound   Code = "artifact_not_found"
	CodeNoArtifacts        Code = "no_artifacts"
	CodeUploadFailed       Code = "upload_failed"
)

// Storage domain errors
var (
	ErrStorageUnavailable = New(DomainStorage, CodeStorageUnavailable, "artifact storage backend unavailable")
	ErrArtifactNotFound   = New(DomainStorage, CodeArtifactNotFound, "artifact not found in storage")
	ErrNoArtifacts        = New(DomainStorage, CodeNoArtifacts, "build produced no firmware artifacts")
	ErrUploadFailed       = New(DomainStorage, CodeUploadFailed, "artifact upload failed")
)

// Validation domain error codes
const (
	CodeInvalidFlag     Code = "invalid_flag"
	CodeInvalidArgument Code = "invalid_argument"
)

// Validation domain errors
var (
	ErrInvalidFlag     = New(DomainValidation, CodeInvalidFlag, "invalid flag value")
	ErrInvalidArgument = New(DomainValidation, CodeInvalidArgument, "invalid argument")
)
