package resolver

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/zdub15/agent-website-generator/internal/fetcher/headless"
	imagefetcher "github.com/zdub15/agent-website-generator/internal/fetcher/image"
	"github.com/zdub15/agent-website-generator/internal/profile"
)

// pngBytes is a buffer that sniffs as image/png and clears the size floor.
func pngBytes(size int) []byte {
	buf := append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{0x42}, size)...)
	return buf
}

// MockStrategy mocks Strategy.
type MockStrategy struct {
	mock.Mock
	name string
}

// Name satisfies Strategy.
func (m *MockStrategy) Name() string { return m.name }

// Attempt satisfies Strategy.
func (m *MockStrategy) Attempt(ctx context.Context, req Request) (profile.Image, error) {
	args := m.Called(ctx, req)
	img, _ := args.Get(0).(profile.Image)
	return img, args.Error(1)
}

type fakeHeadshots struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (f *fakeHeadshots) NormalizeHeadshot(_ context.Context, buf []byte, slug string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, slug)
	if f.err != nil {
		return "", f.err
	}
	return "/uploads/headshots/" + slug + ".jpg", nil
}

func TestResolveFirstAcceptableWins(t *testing.T) {
	t.Parallel()

	req := Request{PageURL: "https://www.ushagent.com/JANESMITH", CandidateURL: "https://cdn.example.com/PersonalPic.jpg", Slug: "jane-smith"}
	first := &MockStrategy{name: "first"}
	first.On("Attempt", mock.Anything, req).Return(profile.Image{}, ErrNoResult).Once()
	second := &MockStrategy{name: "second"}
	second.On("Attempt", mock.Anything, req).Return(profile.Image{Data: pngBytes(6000)}, nil).Once()
	third := &MockStrategy{name: "third"}

	store := &fakeHeadshots{}
	r := New(store, 5000, nil, first, second, third)

	res, err := r.Resolve(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, Result{HeadshotURL: "/uploads/headshots/jane-smith.jpg", Strategy: "second"}, res)
	assert.Equal(t, []string{"jane-smith"}, store.calls)
	first.AssertExpectations(t)
	second.AssertExpectations(t)
	third.AssertNotCalled(t, "Attempt", mock.Anything, mock.Anything)
}

func TestResolveSkipsRejectedImages(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		img  profile.Image
		err  error
	}{
		{name: "too small", img: profile.Image{Data: pngBytes(100)}},
		{name: "not an image", img: profile.Image{Data: bytes.Repeat([]byte("<html>"), 2000)}},
		{name: "strategy error", err: errors.New("boom")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			bad := &MockStrategy{name: "bad"}
			bad.On("Attempt", mock.Anything, mock.Anything).Return(tt.img, tt.err)
			good := &MockStrategy{name: "good"}
			good.On("Attempt", mock.Anything, mock.Anything).Return(profile.Image{Data: pngBytes(6000)}, nil)

			res, err := New(&fakeHeadshots{}, 5000, nil, bad, good).Resolve(context.Background(), Request{Slug: "a"})
			require.NoError(t, err)
			assert.Equal(t, "good", res.Strategy)
		})
	}
}

func TestResolveReportsRejectedCandidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		strategy Strategy
		want     bool
	}{
		{
			name:     "candidate too small",
			strategy: NewDirect(&stubImages{err: fmt.Errorf("%w: 120 < 5000 bytes", imagefetcher.ErrTooSmall)}),
			want:     true,
		},
		{
			name:     "candidate not an image",
			strategy: NewDirect(&stubImages{err: fmt.Errorf("%w: text/html", imagefetcher.ErrNotImage)}),
			want:     true,
		},
		{
			name:     "candidate fails validation",
			strategy: NewDirect(&stubImages{img: profile.Image{Data: pngBytes(100)}}),
			want:     true,
		},
		{
			name:     "transport failure",
			strategy: NewDirect(&stubImages{err: errors.New("download image: status 403")}),
			want:     false,
		},
		{
			name: "other tier rejection",
			strategy: func() Strategy {
				s := &MockStrategy{name: NameServerless}
				s.On("Attempt", mock.Anything, mock.Anything).Return(profile.Image{Data: pngBytes(100)}, nil)
				return s
			}(),
			want: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			req := Request{PageURL: "https://www.ushagent.com/JANESMITH", CandidateURL: "https://cdn.example.com/p.jpg", Slug: "jane-smith"}
			res, err := New(&fakeHeadshots{}, 5000, nil, tt.strategy, NewManual(nil)).Resolve(context.Background(), req)
			require.NoError(t, err)
			assert.Empty(t, res.HeadshotURL)
			assert.Equal(t, tt.want, res.CandidateRejected)
		})
	}
}

func TestResolveNormalizationFailureEscalates(t *testing.T) {
	t.Parallel()

	s := &MockStrategy{name: "direct"}
	s.On("Attempt", mock.Anything, mock.Anything).Return(profile.Image{Data: pngBytes(6000)}, nil)
	store := &fakeHeadshots{err: errors.New("decode failed")}

	res, err := New(store, 0, nil, s, s).Resolve(context.Background(), Request{Slug: "a"})
	require.NoError(t, err)
	assert.Empty(t, res.HeadshotURL)
	assert.Len(t, store.calls, 2)
}

func TestResolveUnavailableBrowserAndEmptyServerlessYieldsNoHeadshot(t *testing.T) {
	t.Parallel()

	finder := &stubFinder{err: headless.ErrNoPhoto}
	r := New(&fakeHeadshots{}, 5000, nil,
		NewDirect(&stubImages{err: errors.New("403")}),
		NewBrowser(finder, nil, true),
		NewServerless(finder, nil),
		NewManual(nil),
	)
	res, err := r.Resolve(context.Background(), Request{PageURL: "https://www.ushagent.com/JANESMITH", CandidateURL: "https://cdn.example.com/p.jpg", Slug: "jane-smith"})
	require.NoError(t, err)
	assert.Equal(t, Result{}, res)
	assert.Equal(t, 1, finder.calls, "only the serverless tier runs")
	assert.Equal(t, []string{NameDirect, NameBrowser, NameServerless, NameManual}, r.Strategies())
}

func TestResolveStopsOnCancelledContext(t *testing.T) {
	t.Parallel()

	s := &MockStrategy{name: "direct"}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(&fakeHeadshots{}, 0, nil, s).Resolve(ctx, Request{})
	require.ErrorIs(t, err, context.Canceled)
	s.AssertNotCalled(t, "Attempt", mock.Anything, mock.Anything)
}

type stubImages struct {
	img     profile.Image
	err     error
	url     string
	referer string
}

func (s *stubImages) FetchImage(_ context.Context, imageURL, referer string) (profile.Image, error) {
	s.url, s.referer = imageURL, referer
	return s.img, s.err
}

type stubFinder struct {
	photo headless.Photo
	err   error
	calls int
}

func (s *stubFinder) FindPhoto(context.Context, string) (headless.Photo, error) {
	s.calls++
	return s.photo, s.err
}

func TestDirectStrategy(t *testing.T) {
	t.Parallel()

	images := &stubImages{img: profile.Image{Data: pngBytes(10)}}
	d := NewDirect(images)

	_, err := d.Attempt(context.Background(), Request{PageURL: "https://www.ushagent.com/X"})
	require.ErrorIs(t, err, ErrNoResult)

	img, err := d.Attempt(context.Background(), Request{PageURL: "https://www.ushagent.com/X", CandidateURL: "https://cdn.example.com/a.jpg"})
	require.NoError(t, err)
	assert.Equal(t, images.img, img)
	assert.Equal(t, "https://cdn.example.com/a.jpg", images.url)
	assert.Equal(t, "https://www.ushagent.com/X", images.referer)

	images.err = errors.New("403")
	_, err = d.Attempt(context.Background(), Request{CandidateURL: "https://cdn.example.com/a.jpg"})
	require.ErrorIs(t, err, ErrNoResult)
}

func TestBrowserStrategy(t *testing.T) {
	t.Parallel()

	payload := pngBytes(64)
	inline := "data:image/png;base64," + base64.StdEncoding.EncodeToString(payload)

	tests := []struct {
		name      string
		finder    *stubFinder
		images    *stubImages
		wantErr   error
		wantData  []byte
		wantFetch string
	}{
		{
			name:     "inline photo decoded",
			finder:   &stubFinder{photo: headless.Photo{Found: true, Src: inline}},
			images:   &stubImages{},
			wantData: payload,
		},
		{
			name:      "remote photo fetched with page referer",
			finder:    &stubFinder{photo: headless.Photo{Found: true, Src: "https://cdn.example.com/p.jpg"}},
			images:    &stubImages{img: profile.Image{Data: payload}},
			wantData:  payload,
			wantFetch: "https://cdn.example.com/p.jpg",
		},
		{
			name:    "no photo",
			finder:  &stubFinder{err: headless.ErrNoPhoto},
			images:  &stubImages{},
			wantErr: ErrNoResult,
		},
		{
			name:    "browser could not be provisioned",
			finder:  &stubFinder{err: headless.ErrProvision},
			images:  &stubImages{},
			wantErr: ErrNoResult,
		},
		{
			name:    "remote fetch fails",
			finder:  &stubFinder{photo: headless.Photo{Found: true, Src: "https://cdn.example.com/p.jpg"}},
			images:  &stubImages{err: errors.New("404")},
			wantErr: ErrNoResult,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			b := NewServerless(tt.finder, tt.images)
			img, err := b.Attempt(context.Background(), Request{PageURL: "https://www.ushagent.com/JANESMITH"})
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantData, img.Data)
			assert.Equal(t, tt.wantFetch, tt.images.url)
			if tt.wantFetch != "" {
				assert.Equal(t, "https://www.ushagent.com/JANESMITH", tt.images.referer)
			}
		})
	}
}

func TestBrowserStrategyPassesUnexpectedErrors(t *testing.T) {
	t.Parallel()

	boom := errors.New("devtools crashed")
	b := NewBrowser(&stubFinder{err: boom}, &stubImages{}, false)
	require.True(t, b.Available())
	_, err := b.Attempt(context.Background(), Request{})
	require.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrNoResult)
}

func TestManualStrategyNeverProduces(t *testing.T) {
	t.Parallel()

	_, err := NewManual(nil).Attempt(context.Background(), Request{Slug: "jane-smith"})
	require.ErrorIs(t, err, ErrNoResult)
}
