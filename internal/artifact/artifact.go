// Package artifact stores artifact metadata and payload bytes
// (spec.md §3.1). Unlike tasks, artifacts have no event log: creation
// is a single atomic metadata write, and payload bytes are owned by a
// sibling payload file written the same way.
package artifact

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/lattice-dev/lattice/internal/errs"
	"github.com/lattice-dev/lattice/internal/fsutil"
	"github.com/lattice-dev/lattice/internal/idgen"
)

// Kind is the closed set of artifact types.
type Kind string

const (
	KindConversation Kind = "conversation"
	KindPrompt       Kind = "prompt"
	KindFile         Kind = "file"
	KindLog          Kind = "log"
	KindReference    Kind = "reference"
)

var validKinds = map[Kind]struct{}{
	KindConversation: {}, KindPrompt: {}, KindFile: {}, KindLog: {}, KindReference: {},
}

// IsValidKind reports whether k is one of the fixed artifact kinds.
func IsValidKind(k Kind) bool {
	_, ok := validKinds[k]
	return ok
}

// Payload describes where an artifact's bytes live and basic facts
// about them, without embedding the bytes themselves in metadata.
type Payload struct {
	File        string `json:"file,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	SizeBytes   int64  `json:"size_bytes,omitempty"`
}

// Metadata is the full "artifacts/meta/<art_id>.json" document
// (spec.md §3.1).
type Metadata struct {
	SchemaVersion int            `json:"schema_version"`
	ID            string         `json:"id"`
	Type          Kind           `json:"type"`
	Title         string         `json:"title,omitempty"`
	Summary       string         `json:"summary,omitempty"`
	CreatedAt     string         `json:"created_at"`
	CreatedBy     string         `json:"created_by"`
	Model         string         `json:"model,omitempty"`
	Tags          []string       `json:"tags,omitempty"`
	Payload       Payload        `json:"payload,omitempty"`
	TokenUsage    map[string]any `json:"token_usage,omitempty"`
	Sensitive     bool           `json:"sensitive"`
	CustomFields  map[string]any `json:"custom_fields,omitempty"`
}

// SchemaVersion is the current schema_version stamped onto new artifact metadata.
const SchemaVersion = 1

func metaPath(root, id string) string {
	return filepath.Join(fsutil.LatticeDir(root), "artifacts", "meta", id+".json")
}

func payloadPath(root, id, ext string) string {
	return filepath.Join(fsutil.LatticeDir(root), "artifacts", "payload", id+ext)
}

// CreateInput carries the caller-supplied fields for a new artifact.
type CreateInput struct {
	Type         Kind
	Title        string
	Summary      string
	CreatedBy    string
	Model        string
	Tags         []string
	ContentType  string
	PayloadExt   string
	PayloadBytes []byte
	TokenUsage   map[string]any
	Sensitive    bool
	CustomFields map[string]any
}

// Create writes a new artifact's metadata (and payload, if supplied) to
// root, each via a single atomic write. Returns the persisted metadata.
func Create(root string, in CreateInput, now time.Time) (Metadata, error) {
	const op = "artifact.Create"

	if !IsValidKind(in.Type) {
		return Metadata{}, errs.New(errs.KindInvalidID, op, "invalid artifact type: "+string(in.Type))
	}

	id := idgen.Artifact()
	meta := Metadata{
		SchemaVersion: SchemaVersion,
		ID:            id,
		Type:          in.Type,
		Title:         in.Title,
		Summary:       in.Summary,
		CreatedAt:     fsutilTimestamp(now),
		CreatedBy:     in.CreatedBy,
		Model:         in.Model,
		Tags:          in.Tags,
		TokenUsage:    in.TokenUsage,
		Sensitive:     in.Sensitive,
		CustomFields:  in.CustomFields,
	}

	if in.PayloadBytes != nil {
		pPath := payloadPath(root, id, in.PayloadExt)
		if err := fsutil.AtomicWrite(pPath, in.PayloadBytes, 0644); err != nil {
			return Metadata{}, err
		}
		meta.Payload = Payload{
			File:        filepath.Base(pPath),
			ContentType: in.ContentType,
			SizeBytes:   int64(len(in.PayloadBytes)),
		}
	}

	data, err := fsutil.MarshalPrettySorted(meta)
	if err != nil {
		return Metadata{}, errs.Wrap(errs.KindIO, op, "marshal artifact metadata", err)
	}
	if err := fsutil.AtomicWrite(metaPath(root, id), data, 0644); err != nil {
		return Metadata{}, err
	}
	return meta, nil
}

// Load reads an artifact's metadata by ID.
func Load(root, id string) (Metadata, error) {
	const op = "artifact.Load"

	raw, err := os.ReadFile(metaPath(root, id))
	if err != nil {
		if os.IsNotExist(err) {
			return Metadata{}, errs.New(errs.KindNotFound, op, "artifact not found: "+id)
		}
		return Metadata{}, errs.Wrap(errs.KindIO, op, "read artifact metadata", err)
	}
	var meta Metadata
	if err := json.Unmarshal(raw, &meta); err != nil {
		return Metadata{}, errs.Wrap(errs.KindIntegrity, op, "parse artifact metadata", err)
	}
	return meta, nil
}

// LoadPayload reads the raw payload bytes named by meta.Payload.File.
func LoadPayload(root string, meta Metadata) ([]byte, error) {
	const op = "artifact.LoadPayload"
	if meta.Payload.File == "" {
		return nil, errs.New(errs.KindNotFound, op, "artifact has no payload")
	}
	data, err := os.ReadFile(filepath.Join(fsutil.LatticeDir(root), "artifacts", "payload", meta.Payload.File))
	if err != nil {
		return nil, errs.Wrap(errs.KindIO, op, "read artifact payload", err)
	}
	return data, nil
}

func fsutilTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
