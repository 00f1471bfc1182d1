package rtmp

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSplitPath(t *testing.T) {
	for _, ca := range []struct {
		name       string
		raw        string
		app        string
		streamName string
	}{
		{"app only", "rtmp://localhost/live", "live", ""},
		{"app and stream", "rtmp://localhost/live/mystream", "live", "mystream"},
		{"nested app", "rtmp://localhost/live/sub/mystream", "live/sub", "mystream"},
	} {
		t.Run(ca.name, func(t *testing.T) {
			u, err := url.Parse(ca.raw)
			require.NoError(t, err)

			app, stream := splitPath(u)
			require.Equal(t, ca.app, app)
			require.Equal(t, ca.streamName, stream)
		})
	}
}

func TestTcURL(t *testing.T) {
	u, err := url.Parse("rtmp://localhost:1935/live/mystream?token=abc")
	require.NoError(t, err)

	app, _ := splitPath(u)
	require.Equal(t, "rtmp://localhost:1935/live", tcURL(u, app))
}
