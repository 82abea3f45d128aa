package noteformat

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/entireio/ai-barometer/internal/model"
)

func TestFormatRoundTrip(t *testing.T) {
	header := model.NoteHeader{
		Agent:        model.AgentClaude,
		SessionID:    "s-1",
		SessionStart: "2026-02-09T14:02:11Z",
		ToolVersion:  "0.5.0",
	}
	payload := []byte(`{"type":"user","text":"hi"}` + "\n" + `{"type":"assistant","text":"hello"}` + "\n")

	value := Format(header, payload)
	require.Contains(t, string(value), "agent: claude\n")
	require.Contains(t, string(value), "session_id: s-1\n")
	require.Contains(t, string(value), "confidence: exact_hash_match\n")

	parsed, err := Parse(value)
	require.NoError(t, err)
	require.Equal(t, payload, parsed.Payload)
	require.Equal(t, header.Agent, parsed.Header.Agent)
	require.Equal(t, header.SessionID, parsed.Header.SessionID)
	require.Equal(t, header.SessionStart, parsed.Header.SessionStart)
	require.Equal(t, header.ToolVersion, parsed.Header.ToolVersion)
	require.True(t, Verify(parsed))
}

func TestFormatOmitsEmptyOptionalFields(t *testing.T) {
	header := model.NoteHeader{Agent: model.AgentUnknown}
	value := Format(header, []byte("payload"))
	s := string(value)
	require.NotContains(t, s, "session_start:")
	require.NotContains(t, s, "tool_version:")
	require.Contains(t, s, "session_id: \n")
}

func TestFormatIsDeterministic(t *testing.T) {
	header := model.NoteHeader{Agent: model.AgentCodex, SessionID: "abc"}
	payload := []byte("fixed payload")
	a := Format(header, payload)
	b := Format(header, payload)
	require.Equal(t, a, b)
}

func TestVerifyDetectsTamperedPayload(t *testing.T) {
	header := model.NoteHeader{Agent: model.AgentClaude, SessionID: "s"}
	value := Format(header, []byte("original"))
	parsed, err := Parse(value)
	require.NoError(t, err)

	parsed.Payload = []byte("tampered")
	require.False(t, Verify(parsed))
}

func TestParseRejectsMissingSeparator(t *testing.T) {
	_, err := Parse([]byte("agent: claude\nsession_id: s\n"))
	require.Error(t, err)
}
