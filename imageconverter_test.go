package imageconverter_test

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	imageconverter "github.com/Skryldev/image-converter"
	"github.com/Skryldev/image-converter/adapters/decoder"
	"github.com/Skryldev/image-converter/config"
	"github.com/Skryldev/image-converter/core"
	apperrors "github.com/Skryldev/image-converter/errors"
	"github.com/Skryldev/image-converter/hooks"
)

// ── Test helpers ──────────────────────────────────────────────────────────────

func gradient(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x * 255 / w), G: uint8(y * 255 / h), B: 90, A: 255})
		}
	}
	return img
}

func newPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, gradient(w, h)))
	return buf.Bytes()
}

func newJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, gradient(w, h), &jpeg.Options{Quality: 90}))
	return buf.Bytes()
}

func newConverter(t *testing.T, cfg config.Config) *imageconverter.Converter {
	t.Helper()
	c, err := imageconverter.New(cfg)
	require.NoError(t, err)
	t.Cleanup(c.Shutdown)
	return c
}

func readOutput(t *testing.T, c *imageconverter.Converter, handle string) []byte {
	t.Helper()
	rc, err := c.Open(context.Background(), handle)
	require.NoError(t, err)
	defer rc.Close()
	b, err := io.ReadAll(rc)
	require.NoError(t, err)
	return b
}

// ── End to end ────────────────────────────────────────────────────────────────

func TestConvert_PNGToWebP(t *testing.T) {
	c := newConverter(t, imageconverter.DefaultConfig())
	metrics := hooks.NewInMemoryMetrics()
	c.SetMetrics(metrics)

	src := newPNG(t, 100, 100)
	res, err := c.Convert(context.Background(),
		imageconverter.FromBytes(src, "image/png", "photo.png"),
		imageconverter.ToQuality(imageconverter.WebP, 90))
	require.NoError(t, err)
	require.Equal(t, "image/webp", res.Output.MIMEType)
	require.Equal(t, "photo.webp", res.Output.Name)

	out := readOutput(t, c, res.Output.Handle)
	require.Equal(t, res.Output.Size, int64(len(out)))
	_, info, err := decoder.Decode(out)
	require.NoError(t, err)
	require.Equal(t, core.FormatWebP, info.Format)
	require.Equal(t, 100, info.Width)

	snap := metrics.Snapshot()
	require.Equal(t, int64(1), snap.Conversions["png->webp"])
	require.Equal(t, int64(1), snap.StageCalls["encoding"])
	require.Equal(t, res.Output.Size, snap.TotalThroughputB)

	converted, failed := c.Stats()
	require.Equal(t, int64(1), converted)
	require.Zero(t, failed)

	require.NoError(t, c.Revoke(context.Background(), res.Output.Handle))
	_, err = c.Open(context.Background(), res.Output.Handle)
	require.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestConvert_SmallPNGToJPEG(t *testing.T) {
	c := newConverter(t, imageconverter.DefaultConfig())

	res, err := c.Convert(context.Background(),
		imageconverter.FromBytes(newPNG(t, 10, 10), "image/png", "tiny.png"),
		imageconverter.ToQuality(imageconverter.JPEG, 90))
	require.NoError(t, err)
	require.Equal(t, "image/jpeg", res.Output.MIMEType)
	require.Positive(t, res.Output.Size)
}

func TestConvert_PNGToWebPQuality50(t *testing.T) {
	c := newConverter(t, imageconverter.DefaultConfig())

	res, err := c.Convert(context.Background(),
		imageconverter.FromBytes(newPNG(t, 32, 32), "image/png", "a.png"),
		imageconverter.ToQuality(imageconverter.WebP, 50))
	require.NoError(t, err)
	require.Equal(t, "image/webp", res.Output.MIMEType)
	require.Positive(t, res.Output.Size)
}

func TestConvert_FiveByteGarbage(t *testing.T) {
	c := newConverter(t, imageconverter.DefaultConfig())

	_, err := c.Convert(context.Background(),
		imageconverter.FromBytes([]byte{1, 2, 3, 4, 5}, "image/png", "blob"),
		imageconverter.To(imageconverter.PNG))
	require.True(t, apperrors.IsCategory(err, apperrors.CategoryDecode))
}

func TestConvert_JPEGToPNG_LocalStore(t *testing.T) {
	cfg := imageconverter.DefaultConfig()
	cfg.Store = config.StoreLocal
	cfg.Local.RootDir = t.TempDir()
	c := newConverter(t, cfg)

	res, err := c.Convert(context.Background(),
		imageconverter.FromBytes(newJPEG(t, 40, 30), "", "scan.jpg"),
		imageconverter.To(imageconverter.PNG))
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(res.Output.Handle, "file://"))
	require.Equal(t, "scan.png", res.Output.Name)

	_, info, err := decoder.Decode(readOutput(t, c, res.Output.Handle))
	require.NoError(t, err)
	require.Equal(t, core.FormatPNG, info.Format)
	require.Equal(t, 40, info.Width)
	require.Equal(t, 30, info.Height)
}

func TestConvert_LowQualityIsSmaller(t *testing.T) {
	c := newConverter(t, imageconverter.DefaultConfig())
	src := newPNG(t, 128, 128)

	size := func(q int) int64 {
		res, err := c.Convert(context.Background(),
			imageconverter.FromBytes(src, "image/png", "a.png"),
			imageconverter.ToQuality(imageconverter.JPEG, q))
		require.NoError(t, err)
		return res.Output.Size
	}
	require.LessOrEqual(t, size(10), size(90))
}

func TestConvert_GarbageHEIC(t *testing.T) {
	c := newConverter(t, imageconverter.DefaultConfig())

	_, err := c.Convert(context.Background(),
		imageconverter.FromBytes([]byte("not really heic"), "image/heic", "IMG_0001.HEIC"),
		imageconverter.To(imageconverter.JPEG))
	require.Error(t, err)
	require.True(t, apperrors.IsCategory(err, apperrors.CategoryInput))
	require.Contains(t, err.Error(), "failed to process HEIC image")
	require.Equal(t, "Failed to process HEIC image.", imageconverter.UserMessage(err))
}

func TestConvert_UndecodableInput(t *testing.T) {
	c := newConverter(t, imageconverter.DefaultConfig())

	_, err := c.Convert(context.Background(),
		imageconverter.FromBytes([]byte("plain text pretending to be png"), "image/png", "fake.png"),
		imageconverter.To(imageconverter.WebP))
	require.True(t, apperrors.IsCategory(err, apperrors.CategoryDecode))

	_, failed := c.Stats()
	require.Equal(t, int64(1), failed)
}

type failingReader struct{ err error }

func (r failingReader) Read([]byte) (int, error) { return 0, r.err }

func TestSetMetrics_ReplacesAndDetaches(t *testing.T) {
	c := newConverter(t, imageconverter.DefaultConfig())
	metrics := hooks.NewInMemoryMetrics()
	c.SetMetrics(metrics)
	c.SetMetrics(metrics)

	src := newPNG(t, 8, 8)
	_, err := c.Convert(context.Background(),
		imageconverter.FromBytes(src, "image/png", "a.png"), imageconverter.To(imageconverter.JPEG))
	require.NoError(t, err)
	snap := metrics.Snapshot()
	require.Equal(t, int64(1), snap.StageCalls["encoding"])
	require.Equal(t, int64(1), snap.Conversions["png->jpeg"])

	c.SetMetrics(nil)
	require.NotPanics(t, func() {
		_, err = c.Convert(context.Background(),
			imageconverter.FromBytes(src, "image/png", "a.png"), imageconverter.To(imageconverter.WebP))
	})
	require.NoError(t, err)
	require.Equal(t, int64(1), metrics.Snapshot().StageCalls["encoding"])
}

func TestConvert_HEICToWebP(t *testing.T) {
	data, err := os.ReadFile("adapters/heic/testdata/sample.heic")
	require.NoError(t, err)
	c := newConverter(t, imageconverter.DefaultConfig())

	res, err := c.Convert(context.Background(),
		imageconverter.FromBytes(data, "", "IMG.HEIC"), imageconverter.To(imageconverter.WebP))
	require.NoError(t, err)
	require.Equal(t, "image/webp", res.Output.MIMEType)
	require.Equal(t, "IMG.webp", res.Output.Name)
	require.Contains(t, res.States, core.StateNormalizing)

	out := readOutput(t, c, res.Output.Handle)
	require.Equal(t, res.Output.Size, int64(len(out)))
	_, info, err := decoder.Decode(out)
	require.NoError(t, err)
	require.Equal(t, core.FormatWebP, info.Format)
	require.Positive(t, info.Width)
}

func TestConvert_ReadFailureMessage(t *testing.T) {
	c := newConverter(t, imageconverter.DefaultConfig())

	_, err := c.Convert(context.Background(),
		imageconverter.FromReaderWithMeta(failingReader{errors.New("disk gone")}, -1, "image/png", "a.png"),
		imageconverter.To(imageconverter.WebP))
	require.True(t, apperrors.IsCategory(err, apperrors.CategoryInput))
	require.NotErrorIs(t, err, apperrors.ErrHEIC)
	require.Equal(t, "The selected file could not be read.", imageconverter.UserMessage(err))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, c.EnsureReady(context.Background()))
	_, err = c.Convert(ctx,
		imageconverter.FromBytes(newPNG(t, 4, 4), "image/png", "a.png"),
		imageconverter.To(imageconverter.JPEG))
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, "The conversion was cancelled.", imageconverter.UserMessage(err))
}

func TestConvert_UnsupportedTarget(t *testing.T) {
	c := newConverter(t, imageconverter.DefaultConfig())

	_, err := c.Convert(context.Background(),
		imageconverter.FromBytes(newPNG(t, 4, 4), "image/png", "a.png"),
		imageconverter.To(core.FormatAVIF))
	require.True(t, apperrors.IsCategory(err, apperrors.CategoryEncode))
	require.False(t, c.Core().Loader().Ready())
}

func TestConvert_ConcurrentCallersShareRuntime(t *testing.T) {
	c := newConverter(t, imageconverter.DefaultConfig())
	src := newPNG(t, 16, 16)

	var wg sync.WaitGroup
	errs := make(chan error, 6)
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Convert(context.Background(),
				imageconverter.FromBytes(src, "image/png", "a.png"),
				imageconverter.To(imageconverter.JPEG))
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}
	require.Equal(t, int64(1), c.Core().Loader().Attempts())
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := imageconverter.DefaultConfig()
	cfg.Backend = "vips" // not linked without the build tag
	_, err := imageconverter.New(cfg, imageconverter.WithRegistry(core.NewRuntimeRegistry()))
	require.True(t, apperrors.IsCategory(err, apperrors.CategoryConfig))

	cfg = imageconverter.DefaultConfig()
	cfg.DefaultQuality = 200
	_, err = imageconverter.New(cfg)
	require.True(t, apperrors.IsCategory(err, apperrors.CategoryConfig))
}

func TestNew_WithoutAltDecoder(t *testing.T) {
	c, err := imageconverter.New(imageconverter.DefaultConfig(), imageconverter.WithAltDecoder(nil))
	require.NoError(t, err)
	defer c.Shutdown()

	_, err = c.Convert(context.Background(),
		imageconverter.FromBytes([]byte("x"), "", "a.heic"),
		imageconverter.To(imageconverter.PNG))
	require.ErrorIs(t, err, apperrors.ErrNoAltDecoder)
}

// ── Caller helpers ────────────────────────────────────────────────────────────

func TestValidatePair(t *testing.T) {
	require.NoError(t, imageconverter.ValidatePair("heic", "jpg"))
	require.NoError(t, imageconverter.ValidatePair("avif", "webp"))
	require.NoError(t, imageconverter.ValidatePair("JPG", "png"))
	require.NoError(t, imageconverter.ValidatePair("heif", "webp"))

	err := imageconverter.ValidatePair("jpg", "jpeg")
	require.ErrorIs(t, err, apperrors.ErrIdentityConversion)

	err = imageconverter.ValidatePair("gif", "png")
	require.ErrorIs(t, err, apperrors.ErrUnsupportedFormat)
	require.True(t, apperrors.IsCategory(err, apperrors.CategoryInput))

	err = imageconverter.ValidatePair("png", "avif")
	require.ErrorIs(t, err, apperrors.ErrUnsupportedFormat)
	require.True(t, apperrors.IsCategory(err, apperrors.CategoryEncode))
}

func TestPairs(t *testing.T) {
	pairs := imageconverter.Pairs()
	require.Len(t, pairs, 12)
	for _, p := range pairs {
		require.NotEqual(t, p[0], p[1])
		require.True(t, p[1].IsOutput())
		require.NoError(t, imageconverter.ValidatePair(string(p[0]), string(p[1])))
	}
}

func TestAccepts(t *testing.T) {
	require.True(t, imageconverter.Accepts("image/png", "a.png"))
	require.True(t, imageconverter.Accepts("", "IMG_1.HEIC"))
	require.True(t, imageconverter.Accepts("application/octet-stream", "x.heic"))
	require.False(t, imageconverter.Accepts("text/plain", "notes.txt"))
	require.False(t, imageconverter.Accepts("", "a.heif"))
}

func TestSuggestedName(t *testing.T) {
	require.Equal(t, "IMG_0001.jpeg", imageconverter.SuggestedName("IMG_0001.HEIC", imageconverter.JPEG))
	require.Equal(t, "image.webp", imageconverter.SuggestedName("", imageconverter.WebP))
}
