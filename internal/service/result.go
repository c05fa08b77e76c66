package service

import (
	"errors"
	"strings"

	"github.com/ZebulonRouseFrantzich/manifold/internal/archive"
	"github.com/ZebulonRouseFrantzich/manifold/internal/credential"
	"github.com/ZebulonRouseFrantzich/manifold/internal/fetch"
	"github.com/ZebulonRouseFrantzich/manifold/internal/source"
	"github.com/ZebulonRouseFrantzich/manifold/internal/transaction"
)

// Code is a machine-resolvable message code. Hosts translate codes and
// interpolate Params; Message is the English rendering. {title} expands to
// "name (id)", or the bare id when no name is known.
type Code string

// Message codes.
const (
	CodeInstallAdded          Code = "install.added"
	CodeInstallAlready        Code = "install.already"
	CodeInstallChangesApplied Code = "install.changes_applied"
	CodeListReady             Code = "list.ready"
	CodeRemoveDone            Code = "remove.done"
	CodeRemoveNothing         Code = "remove.nothing"
	CodeCredentialSaved       Code = "credential.saved"
	CodeCredentialCleared     Code = "credential.cleared"
	CodeCredentialReloaded    Code = "credential.reloaded"

	CodeMirrorUnavailable Code = "error.mirror_unavailable"
	CodeNotPublished      Code = "error.not_published"
	CodeUnauthorized      Code = "error.unauthorized"
	CodeMalformedArchive  Code = "error.malformed_archive"
	CodeWriteFailed       Code = "error.write_failed"
	CodeInvalidID         Code = "error.invalid_id"
	CodeNoCredential      Code = "error.no_credential"
	CodeInvalidCredential Code = "error.invalid_credential"
	CodeListFailed        Code = "error.list_failed"
	CodeBusy              Code = "error.busy"
)

var messages = map[Code]string{
	CodeInstallAdded:          "Added {title}",
	CodeInstallAlready:        "{title} is already installed",
	CodeInstallChangesApplied: "Applied {count} optional entries to {id}",
	CodeListReady:             "Found {count} optional entries for {id}",
	CodeRemoveDone:            "Removed {count} files for {id}",
	CodeRemoveNothing:         "Nothing installed for {id}",
	CodeCredentialSaved:       "Credential saved",
	CodeCredentialCleared:     "Credential cleared",
	CodeCredentialReloaded:    "Credential reloaded",

	CodeMirrorUnavailable: "No mirror could provide {title}",
	CodeNotPublished:      "{title} is not published on the {mirror} source",
	CodeUnauthorized:      "The {mirror} source rejected the credential",
	CodeMalformedArchive:  "The archive for {id} is invalid: {detail}",
	CodeWriteFailed:       "Could not write files for {id}: {detail}",
	CodeInvalidID:         "Invalid identifier {id}",
	CodeNoCredential:      "No credential is configured for the {mirror} source",
	CodeInvalidCredential: "The credential is not valid",
	CodeListFailed:        "Could not list optional entries for {id}",
	CodeBusy:              "Another operation on {id} is in progress",
}

// Result is the outcome shared by every operation.
type Result struct {
	Success bool              `json:"success"`
	Code    Code              `json:"code"`
	Message string            `json:"message"`
	Params  map[string]string `json:"params,omitempty"`
}

func newResult(code Code, params map[string]string) Result {
	return Result{
		Success: !strings.HasPrefix(string(code), "error."),
		Code:    code,
		Message: render(code, params),
		Params:  params,
	}
}

func render(code Code, params map[string]string) string {
	msg, ok := messages[code]
	if !ok {
		return string(code)
	}
	title := params["id"]
	if name := params["name"]; name != "" {
		title = name + " (" + title + ")"
	}
	msg = strings.ReplaceAll(msg, "{title}", title)
	for k, v := range params {
		msg = strings.ReplaceAll(msg, "{"+k+"}", v)
	}
	return msg
}

// Candidate is one optional entry offered for selection.
type Candidate struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	AlreadyInstalled bool   `json:"already_installed"`
	// Origin is where the entry was discovered: metadata, local or alternate.
	Origin string `json:"origin"`
}

// InstallResult reports InstallBase.
type InstallResult struct {
	Result
	Name       string      `json:"name,omitempty"`
	Candidates []Candidate `json:"candidates"`
}

// ListResult reports ListOptionalEntries.
type ListResult struct {
	Result
	Candidates []Candidate `json:"candidates"`
}

// InstallSelectedResult reports InstallSelected. An id either gets a keyed
// or a bare directive, so FailedIDs is empty on success.
type InstallSelectedResult struct {
	Result
	InstalledIDs []string `json:"installed_ids"`
	FailedIDs    []string `json:"failed_ids"`
}

// RemoveResult reports RemoveAll.
type RemoveResult struct {
	Result
	DeletedPaths []string `json:"deleted_paths"`
}

// ErrWriteFailed wraps filesystem failures while persisting.
var ErrWriteFailed = errors.New("write failed")

// classify maps an operation error onto a message code.
func classify(err error) Code {
	switch {
	case errors.Is(err, transaction.ErrLockExists):
		return CodeBusy
	case errors.Is(err, source.ErrNoCredential):
		return CodeNoCredential
	case fetch.IsUnauthorized(err):
		return CodeUnauthorized
	case errors.Is(err, source.ErrNotPublished):
		return CodeNotPublished
	case errors.Is(err, archive.ErrMalformedArchive), errors.Is(err, archive.ErrNoScripts):
		return CodeMalformedArchive
	case errors.Is(err, credential.ErrInvalid):
		return CodeInvalidCredential
	case errors.Is(err, ErrWriteFailed):
		return CodeWriteFailed
	default:
		return CodeMirrorUnavailable
	}
}
