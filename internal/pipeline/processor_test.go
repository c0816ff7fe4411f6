package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dangbaokhoa/identity-card/internal/extract"
)

type fakePre struct {
	variants []string
	err      error
	cleaned  bool
}

func (f *fakePre) Variants(context.Context, string) ([]string, func(), error) {
	if f.err != nil {
		return nil, nil, f.err
	}
	return f.variants, func() { f.cleaned = true }, nil
}

type fakeEngine struct {
	obs  map[string][]extract.Observation
	errs map[string]error
}

func (f *fakeEngine) Recognize(_ context.Context, path string) ([]extract.Observation, error) {
	if err := f.errs[path]; err != nil {
		return nil, err
	}
	return f.obs[path], nil
}

type fakeQR struct {
	rec extract.Record
	err error
}

func (f *fakeQR) DecodeRecord(context.Context, ...string) (extract.Record, error) {
	return f.rec, f.err
}

func obsLine(y float64, text string) extract.Observation {
	return extract.Observation{
		Box: [4]extract.Point{
			{X: 0, Y: y}, {X: 300, Y: y}, {X: 300, Y: y + 20}, {X: 0, Y: y + 20},
		},
		Text:       text,
		Confidence: 0.9,
	}
}

func TestProcessImageUnionsVariants(t *testing.T) {
	pre := &fakePre{variants: []string{"orig.jpg", "gray.png"}}
	engine := &fakeEngine{obs: map[string][]extract.Observation{
		"orig.jpg": {
			obsLine(10, "Số / No.: 049205000868"),
			obsLine(40, "Ngày sinh: 01/07/2005"),
		},
		"gray.png": {
			obsLine(40, "Ngày sinh: 01/07/2005"), // duplicate across variants
			obsLine(70, "Giới tính: Nam"),
		},
	}}
	proc := NewProcessor(nil, pre, engine, extract.NewParser(extract.DefaultPolicy(), nil), &fakeQR{})

	rec, err := proc.ProcessImage(context.Background(), "orig.jpg")
	require.NoError(t, err)

	assert.Equal(t, "049205000868", rec.Number)
	assert.Equal(t, "01/07/2005", rec.DateOfBirth)
	assert.Equal(t, "Nam", rec.Sex)
	assert.True(t, pre.cleaned, "temp variants released")
}

func TestProcessImageVariantFailureIsNotFatal(t *testing.T) {
	pre := &fakePre{variants: []string{"orig.jpg", "thresh.png"}}
	engine := &fakeEngine{
		obs: map[string][]extract.Observation{
			"orig.jpg": {obsLine(10, "Giới tính: Nữ")},
		},
		errs: map[string]error{"thresh.png": errors.New("tesseract: exit status 1")},
	}
	proc := NewProcessor(nil, pre, engine, extract.NewParser(extract.DefaultPolicy(), nil), &fakeQR{})

	rec, err := proc.ProcessImage(context.Background(), "orig.jpg")
	require.NoError(t, err)
	assert.Equal(t, "Nữ", rec.Sex)
}

func TestProcessImageAllVariantsFailedStillSucceeds(t *testing.T) {
	pre := &fakePre{variants: []string{"orig.jpg"}}
	engine := &fakeEngine{errs: map[string]error{"orig.jpg": errors.New("boom")}}
	proc := NewProcessor(nil, pre, engine, extract.NewParser(extract.DefaultPolicy(), nil), &fakeQR{})

	rec, err := proc.ProcessImage(context.Background(), "orig.jpg")
	require.NoError(t, err, "unreadable card yields an empty record, not an error")
	for _, v := range rec.Canonical() {
		assert.Equal(t, "", v)
	}
}

func TestProcessImageMissingSource(t *testing.T) {
	pre := &fakePre{err: errors.New("source image unavailable: no such file")}
	proc := NewProcessor(nil, pre, &fakeEngine{}, extract.NewParser(extract.DefaultPolicy(), nil), &fakeQR{})

	_, err := proc.ProcessImage(context.Background(), "nope.jpg")
	require.Error(t, err)
}

func TestProcessQR(t *testing.T) {
	pre := &fakePre{variants: []string{"orig.jpg", "gray.png"}}
	want := extract.Record{Number: "049205000868", FullName: "Đặng Bảo Khoa"}
	proc := NewProcessor(nil, pre, &fakeEngine{}, extract.NewParser(extract.DefaultPolicy(), nil), &fakeQR{rec: want})

	rec, err := proc.ProcessQR(context.Background(), "orig.jpg")
	require.NoError(t, err)
	assert.Equal(t, want, rec)
	assert.True(t, pre.cleaned)
}

func TestProcessQRDecodeFailure(t *testing.T) {
	pre := &fakePre{variants: []string{"orig.jpg"}}
	proc := NewProcessor(nil, pre, &fakeEngine{}, extract.NewParser(extract.DefaultPolicy(), nil), &fakeQR{err: errors.New("no QR code found")})

	_, err := proc.ProcessQR(context.Background(), "orig.jpg")
	require.Error(t, err)
}
