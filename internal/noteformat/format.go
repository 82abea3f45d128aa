// Package noteformat serializes and parses the note value attached to
// a commit: a deterministic header block, a blank line, and the
// transcript payload verbatim, bound together by a SHA-256 digest of
// the payload.
package noteformat

import (
	"bufio"
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/entireio/ai-barometer/internal/model"
)

const (
	keyAgent         = "agent"
	keySessionID     = "session_id"
	keySessionStart  = "session_start"
	keyConfidence    = "confidence"
	keyPayloadSHA256 = "payload_sha256"
	keyToolVersion   = "tool_version"
)

// orderedKeys is the fixed header key order required by the format.
var orderedKeys = []string{keyAgent, keySessionID, keySessionStart, keyConfidence, keyPayloadSHA256, keyToolVersion}

// Format serializes a header plus payload into a note value. It is a
// pure function: the same inputs always produce the same bytes.
// Missing optional fields (session_start, tool_version) are omitted
// entirely; session_id is always emitted, empty if unknown.
func Format(header model.NoteHeader, payload []byte) []byte {
	sum := sha256.Sum256(payload)
	header.PayloadSHA256 = hex.EncodeToString(sum[:])
	header.Confidence = model.ConfidenceExactHashMatch

	values := map[string]string{
		keyAgent:         string(header.Agent),
		keySessionID:     header.SessionID,
		keySessionStart:  header.SessionStart,
		keyConfidence:    header.Confidence,
		keyPayloadSHA256: header.PayloadSHA256,
		keyToolVersion:   header.ToolVersion,
	}

	var buf bytes.Buffer
	for _, key := range orderedKeys {
		v := values[key]
		if v == "" && key != keySessionID {
			continue
		}
		fmt.Fprintf(&buf, "%s: %s\n", key, v)
	}
	buf.WriteByte('\n')
	buf.Write(payload)
	return buf.Bytes()
}

// Parsed is the result of parsing a formatted note value.
type Parsed struct {
	Header  model.NoteHeader
	Payload []byte
}

// Parse recovers the header fields and payload bytes from a value
// produced by Format. It does not validate payload_sha256 against the
// payload; callers that need the invariant checked should compare
// Parsed.Header.PayloadSHA256 against sha256_hex(Parsed.Payload)
// themselves (see Verify).
func Parse(value []byte) (Parsed, error) {
	reader := bufio.NewReader(bytes.NewReader(value))
	var header model.NoteHeader
	for {
		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			return Parsed{}, fmt.Errorf("note value ended before blank-line separator")
		}
		trimmed := strings.TrimSuffix(line, "\n")
		if trimmed == "" {
			break
		}
		key, val, ok := strings.Cut(trimmed, ": ")
		if !ok {
			return Parsed{}, fmt.Errorf("malformed header line %q", trimmed)
		}
		switch key {
		case keyAgent:
			header.Agent = model.AgentKind(val)
		case keySessionID:
			header.SessionID = val
		case keySessionStart:
			header.SessionStart = val
		case keyConfidence:
			header.Confidence = val
		case keyPayloadSHA256:
			header.PayloadSHA256 = val
		case keyToolVersion:
			header.ToolVersion = val
		}
		if err != nil {
			return Parsed{}, fmt.Errorf("note value ended before blank-line separator")
		}
	}

	rest, err := readAll(reader)
	if err != nil {
		return Parsed{}, err
	}
	return Parsed{Header: header, Payload: rest}, nil
}

func readAll(r *bufio.Reader) ([]byte, error) {
	var buf bytes.Buffer
	_, err := buf.ReadFrom(r)
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Verify reports whether parsed's declared payload_sha256 matches the
// actual SHA-256 of its payload bytes (invariant 1 in the data model).
func Verify(p Parsed) bool {
	sum := sha256.Sum256(p.Payload)
	return hex.EncodeToString(sum[:]) == p.Header.PayloadSHA256
}
