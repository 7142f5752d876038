package narration

import (
	"bytes"
	"context"
	"encoding/binary"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func makeWAV(seconds float64) []byte {
	const sampleRate, channels, bits = 24000, 1, 16
	byteRate := sampleRate * channels * bits / 8
	dataLen := int(seconds * float64(byteRate))
	var buf bytes.Buffer
	buf.WriteString("RIFF")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(36+dataLen))
	buf.WriteString("WAVEfmt ")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(16))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(1))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(channels))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(sampleRate))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(byteRate))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(channels*bits/8))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(bits))
	buf.WriteString("data")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(dataLen))
	buf.Write(make([]byte, dataLen))
	return buf.Bytes()
}

func TestWAVSeconds(t *testing.T) {
	secs, err := WAVSeconds(makeWAV(1.5))
	require.NoError(t, err)
	require.InDelta(t, 1.5, secs, 1e-6)

	_, err = WAVSeconds([]byte("ID3 not a wav"))
	require.Error(t, err)
}

func TestEstimateSeconds(t *testing.T) {
	require.Equal(t, 1.0, EstimateSeconds(""))
	require.Equal(t, 1.0, EstimateSeconds("hi there"))
	require.InDelta(t, 4.0, EstimateSeconds("one two three four five six seven eight nine ten"), 1e-9)
}

func TestAzureSynthesize(t *testing.T) {
	var ssml string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Ocp-Apim-Subscription-Key") != "k" || r.Header.Get("X-Microsoft-OutputFormat") != azureOutputFormat {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		body, _ := io.ReadAll(r.Body)
		ssml = string(body)
		_, _ = w.Write(makeWAV(2))
	}))
	defer srv.Close()

	n, err := New("azure", map[string]interface{}{"api_key": "k", "endpoint": srv.URL})
	require.NoError(t, err)
	out := filepath.Join(t.TempDir(), "line.wav")
	clip, err := n.Synthesize(context.Background(), "Q & A <today>", out)
	require.NoError(t, err)
	require.Equal(t, out, clip.Path)
	require.InDelta(t, 2.0, clip.Seconds, 1e-6)
	require.Contains(t, ssml, `<voice name="en-US-SteffanNeural">`)
	require.Contains(t, ssml, `style="newscast"`)
	require.Contains(t, ssml, "Q &amp; A &lt;today&gt;")
	_, err = os.Stat(out)
	require.NoError(t, err)
}

func TestAzureNeedsCredentials(t *testing.T) {
	_, err := New("azure", map[string]interface{}{"region": "westeurope"})
	require.Error(t, err)
	_, err = New("azure", map[string]interface{}{"api_key": "k"})
	require.Error(t, err)
}

func TestNewOrSilentDegrades(t *testing.T) {
	n := NewOrSilent(context.Background(), "azure", nil)
	require.Equal(t, "silent", n.Name())
	n = NewOrSilent(context.Background(), "gtts", nil)
	require.Equal(t, "silent", n.Name())

	clip, err := n.Synthesize(context.Background(), "a b c d e", "unused.wav")
	require.NoError(t, err)
	require.Empty(t, clip.Path)
	require.InDelta(t, 2.0, clip.Seconds, 1e-9)
}

func TestRuntimeFailureFallsBack(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	n := NewOrSilent(context.Background(), "azure", map[string]interface{}{"api_key": "k", "endpoint": srv.URL})
	require.Equal(t, "azure", n.Name())
	clip, err := n.Synthesize(context.Background(), "one two three four five", filepath.Join(t.TempDir(), "x.wav"))
	require.NoError(t, err)
	require.Empty(t, clip.Path)
	require.InDelta(t, 2.0, clip.Seconds, 1e-9)
}
