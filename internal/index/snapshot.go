package index

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"fmt"
)

// Snapshot layout: 4-byte magic, big-endian uint16 format version, then a
// gob-encoded payload of documents and postings. Ranking options are NOT
// persisted; they always come from live configuration so tuning changes
// take effect without a rebuild.
const snapshotMagic = "SLSF"

// SnapshotVersion is the current snapshot format version. Restore rejects
// any other version.
const SnapshotVersion uint16 = 1

// SnapshotCorruptError indicates the snapshot bytes cannot be used. The
// only recovery is a full rebuild.
type SnapshotCorruptError struct {
	Reason string
	Err    error
}

func (e *SnapshotCorruptError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("index: snapshot corrupt (%s): %v; re-run a full build", e.Reason, e.Err)
	}
	return fmt.Sprintf("index: snapshot corrupt (%s); re-run a full build", e.Reason)
}

func (e *SnapshotCorruptError) Unwrap() error { return e.Err }

type snapshotPayload struct {
	Docs   []Document
	Fields map[string]map[string][]posting
}

// Snapshot serializes the full index (postings + stored fields) to a
// portable byte form.
func (ix *Index) Snapshot() ([]byte, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	var buf bytes.Buffer
	buf.WriteString(snapshotMagic)
	if err := binary.Write(&buf, binary.BigEndian, SnapshotVersion); err != nil {
		return nil, fmt.Errorf("index: write snapshot header: %w", err)
	}

	payload := snapshotPayload{Docs: ix.docs, Fields: ix.fields}
	if err := gob.NewEncoder(&buf).Encode(payload); err != nil {
		return nil, fmt.Errorf("index: encode snapshot: %w", err)
	}
	return buf.Bytes(), nil
}

// Restore replaces the index contents from snapshot bytes. Undecodable
// input or a version mismatch yields SnapshotCorruptError.
func (ix *Index) Restore(data []byte) error {
	if len(data) < len(snapshotMagic)+2 {
		return &SnapshotCorruptError{Reason: "truncated header"}
	}
	if string(data[:len(snapshotMagic)]) != snapshotMagic {
		return &SnapshotCorruptError{Reason: "bad magic"}
	}
	version := binary.BigEndian.Uint16(data[len(snapshotMagic) : len(snapshotMagic)+2])
	if version != SnapshotVersion {
		return &SnapshotCorruptError{Reason: fmt.Sprintf("unsupported version %d", version)}
	}

	var payload snapshotPayload
	if err := gob.NewDecoder(bytes.NewReader(data[len(snapshotMagic)+2:])).Decode(&payload); err != nil {
		return &SnapshotCorruptError{Reason: "undecodable body", Err: err}
	}

	seen := make(map[string]int32, len(payload.Docs))
	for i := range payload.Docs {
		seen[payload.Docs[i].ExternalID] = int32(i)
	}
	fields := payload.Fields
	if fields == nil {
		fields = map[string]map[string][]posting{}
	}
	for _, name := range []string{FieldText, FieldSender, FieldConversation} {
		if fields[name] == nil {
			fields[name] = map[string][]posting{}
		}
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.docs = payload.Docs
	ix.seen = seen
	ix.fields = fields
	return nil
}
