package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Southclaws/fault"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"

	"go-imuse/imuse"
	"go-imuse/midi"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func song(t *testing.T) []byte {
	t.Helper()
	s := smf.New()
	s.TimeFormat = smf.MetricTicks(480)
	var track smf.Track
	track.Add(0, gomidi.NoteOn(0, 60, 100))
	track.Add(4800, gomidi.NoteOff(0, 60))
	track.Close(0)
	require.NoError(t, s.Add(track))
	var buf bytes.Buffer
	_, err := s.WriteTo(&buf)
	require.NoError(t, err)
	return buf.Bytes()
}

func newTestServer(t *testing.T) (*Server, *imuse.Engine) {
	engine := imuse.New(midi.NewRecorder(), imuse.MapBank{3: song(t), 7: song(t)})
	return NewServer(engine), engine
}

func do(s *Server, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t)
	w := do(s, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "healthy", decode(t, w)["status"])
}

func TestStartStopSound(t *testing.T) {
	s, engine := newTestServer(t)

	w := do(s, http.MethodPost, "/api/v1/sounds/3/start", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.True(t, engine.SoundActive(3))

	w = do(s, http.MethodGet, "/api/v1/sounds/3", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode(t, w)["active"])

	w = do(s, http.MethodPost, "/api/v1/sounds/3/stop", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.False(t, engine.SoundActive(3))

	w = do(s, http.MethodPost, "/api/v1/sounds/7/start", `{"sfx":true}`)
	assert.Equal(t, http.StatusOK, w.Code)
	w = do(s, http.MethodPost, "/api/v1/sounds/stop", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.False(t, engine.SoundActive(7))
}

func TestErrorStatusCodes(t *testing.T) {
	s, engine := newTestServer(t)

	assert.Equal(t, http.StatusNotFound, do(s, http.MethodPost, "/api/v1/sounds/99/start", "").Code)
	assert.Equal(t, http.StatusNotFound, do(s, http.MethodPost, "/api/v1/sounds/3/stop", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(s, http.MethodPost, "/api/v1/sounds/abc/start", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(s, http.MethodPost, "/api/v1/sounds/3/start", `{"sfx":`).Code)

	require.NoError(t, engine.SetProperty(imuse.PropLimitPlayers, 1))
	require.Equal(t, http.StatusOK, do(s, http.MethodPost, "/api/v1/sounds/3/start", "").Code)
	w := do(s, http.MethodPost, "/api/v1/sounds/7/start", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, decode(t, w)["error"], "no player available")
}

func TestHTTPStatusMapping(t *testing.T) {
	tests := []struct {
		err  error
		code int
	}{
		{imuse.ErrNoSound, http.StatusNotFound},
		{fault.Wrap(imuse.ErrNotPlaying), http.StatusNotFound},
		{imuse.ErrOutOfRange, http.StatusBadRequest},
		{imuse.ErrNoPlayer, http.StatusServiceUnavailable},
		{imuse.ErrPendingTrigger, http.StatusConflict},
		{fault.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.code, httpStatus(tt.err), tt.err.Error())
	}
}

func TestCommand(t *testing.T) {
	s, engine := newTestServer(t)

	w := do(s, http.MethodPost, "/api/v1/command", `{"args":[8,3]}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 0, decode(t, w)["result"])
	assert.True(t, engine.SoundActive(3))

	w = do(s, http.MethodPost, "/api/v1/command", `{"args":[7]}`)
	assert.EqualValues(t, 127, decode(t, w)["result"])

	w = do(s, http.MethodPost, "/api/v1/command", `{"args":[99]}`)
	assert.EqualValues(t, -1, decode(t, w)["result"])

	assert.Equal(t, http.StatusBadRequest, do(s, http.MethodPost, "/api/v1/command", `{"args":[]}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(s, http.MethodPost, "/api/v1/command", `{"args":[1,2,3,4,5,6,7,8,9]}`).Code)
}

func TestSetVolume(t *testing.T) {
	s, engine := newTestServer(t)

	w := do(s, http.MethodPut, "/api/v1/volume", `{"master":128,"sfx":10}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	out := decode(t, w)
	assert.EqualValues(t, 128, out["master"])
	assert.EqualValues(t, 255, out["music"])
	assert.EqualValues(t, 10, out["sfx"])
	assert.Equal(t, 128, engine.MasterVolume())

	w = do(s, http.MethodPut, "/api/v1/volume", `{"paused":true}`)
	assert.Equal(t, true, decode(t, w)["paused"])
	assert.True(t, engine.Paused())

	assert.Equal(t, http.StatusBadRequest, do(s, http.MethodPut, "/api/v1/volume", `{"master":300}`).Code)
	assert.Equal(t, 128, engine.MasterVolume())
}

func TestProperties(t *testing.T) {
	s, engine := newTestServer(t)

	w := do(s, http.MethodPut, "/api/v1/properties/tempo", `{"value":150}`)
	require.Equal(t, http.StatusOK, w.Code)
	v, err := engine.Property(imuse.PropTempoBase)
	require.NoError(t, err)
	assert.Equal(t, 150, v)

	w = do(s, http.MethodGet, "/api/v1/properties/tempo", "")
	assert.EqualValues(t, 150, decode(t, w)["value"])

	assert.Equal(t, http.StatusBadRequest, do(s, http.MethodPut, "/api/v1/properties/tempo", `{"value":10}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(s, http.MethodPut, "/api/v1/properties/tempo", `{}`).Code)
	assert.Equal(t, http.StatusNotFound, do(s, http.MethodGet, "/api/v1/properties/nope", "").Code)
}

func TestStateRoundTrip(t *testing.T) {
	s, engine := newTestServer(t)
	require.NoError(t, engine.StartSound(3))
	for range 20 {
		engine.OnTimer()
	}

	w := do(s, http.MethodGet, "/api/v1/state", "")
	require.Equal(t, http.StatusOK, w.Code)
	saved := w.Body.String()

	other, otherEngine := newTestServer(t)
	w = do(other, http.MethodPut, "/api/v1/state", saved)
	require.Equal(t, http.StatusNoContent, w.Code, w.Body.String())
	assert.True(t, otherEngine.SoundActive(3))
	assert.Equal(t, engine.Snapshot(), otherEngine.Snapshot())

	assert.Equal(t, http.StatusBadRequest, do(other, http.MethodPut, "/api/v1/state", "{nope").Code)
}

func TestStatus(t *testing.T) {
	s, engine := newTestServer(t)
	require.NoError(t, engine.StartSound(7))

	w := do(s, http.MethodGet, "/api/v1/status", "")
	require.Equal(t, http.StatusOK, w.Code)
	var st imuse.Status
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &st))
	assert.Equal(t, "active", st.Players[0].Mode)
	assert.Equal(t, 7, st.Players[0].Sound)
}
