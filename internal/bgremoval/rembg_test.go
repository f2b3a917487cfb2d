package bgremoval

import (
	"context"
	"errors"
	"image"
	"image/color"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRembgClientRemove(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/remove", r.URL.Path)
		assert.Equal(t, "u2net_human_seg", r.FormValue("model"))
		file, _, err := r.FormFile("file")
		if !assert.NoError(t, err) {
			return
		}
		defer file.Close()
		src, err := imaging.Decode(file)
		if !assert.NoError(t, err) {
			return
		}

		// Cut out everything but the left half.
		out := imaging.Clone(src)
		for y := 0; y < out.Bounds().Dy(); y++ {
			for x := out.Bounds().Dx() / 2; x < out.Bounds().Dx(); x++ {
				out.SetNRGBA(x, y, color.NRGBA{})
			}
		}
		w.Header().Set("Content-Type", "image/png")
		assert.NoError(t, imaging.Encode(w, out, imaging.PNG))
	}))
	defer server.Close()

	client := NewRembgClient(server.URL, time.Second, "u2net_human_seg")
	fg, err := client.Remove(context.Background(), imaging.New(10, 6, color.White))
	require.NoError(t, err)
	require.Equal(t, image.Rect(0, 0, 10, 6), fg.Bounds())
	require.Equal(t, uint8(255), fg.NRGBAAt(1, 1).A)
	require.Equal(t, uint8(0), fg.NRGBAAt(8, 1).A)
}

func TestRembgClientPropagatesFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "onnx session died", http.StatusInternalServerError)
	}))
	defer server.Close()

	_, err := NewRembgClient(server.URL, time.Second, "").Remove(context.Background(), imaging.New(4, 4, color.White))
	require.True(t, errors.Is(err, ErrBackgroundRemoval), "got %v", err)
	require.Contains(t, err.Error(), "status 500")
}

func TestRembgClientRejectsGarbage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("definitely not a png"))
	}))
	defer server.Close()

	_, err := NewRembgClient(server.URL, time.Second, "").Remove(context.Background(), imaging.New(4, 4, color.White))
	require.True(t, errors.Is(err, ErrBackgroundRemoval), "got %v", err)
}
