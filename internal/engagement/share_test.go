package engagement

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mmcdole/kudos/internal/domain"
)

type fakeSharer struct {
	err  error
	urls []string
}

func (f *fakeSharer) Share(ctx context.Context, url string) error {
	f.urls = append(f.urls, url)
	return f.err
}

func stubClipboard(t *testing.T, err error) *[]string {
	t.Helper()
	var copied []string
	prev := writeClipboard
	writeClipboard = func(s string) error {
		copied = append(copied, s)
		return err
	}
	t.Cleanup(func() { writeClipboard = prev })
	return &copied
}

func TestShare(t *testing.T) {
	tests := []struct {
		name        string
		sharer      *fakeSharer
		clipErr     error
		want        ShareMethod
		wantCopied  int
		wantSharers int
	}{
		{
			name:        "platform share",
			sharer:      &fakeSharer{},
			want:        SharedPlatform,
			wantSharers: 1,
		},
		{
			name:        "platform fails, clipboard fallback",
			sharer:      &fakeSharer{err: errors.New("no share sheet")},
			want:        SharedClipboard,
			wantCopied:  1,
			wantSharers: 1,
		},
		{
			name:       "no platform sharer",
			want:       SharedClipboard,
			wantCopied: 1,
		},
		{
			name:       "nothing available",
			clipErr:    errors.New("no xclip"),
			want:       ShareFailed,
			wantCopied: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			copied := stubClipboard(t, tt.clipErr)

			var sharer Sharer
			if tt.sharer != nil {
				sharer = tt.sharer
			}
			svc := NewService(newFakeClient(), nil, sharer, Config{ShareBaseURL: "https://kudos.test/"}, nil)
			c := svc.NewController(postE1, domain.EngagementState{})

			require.Equal(t, tt.want, c.Share(context.Background()))
			require.Len(t, *copied, tt.wantCopied)
			for _, url := range *copied {
				require.Equal(t, "https://kudos.test/posts/e1", url)
			}
			if tt.sharer != nil {
				require.Len(t, tt.sharer.urls, tt.wantSharers)
			}
			// share never touches engagement state
			require.Equal(t, domain.EngagementState{}, c.State())
		})
	}
}

func TestTerminalSharer(t *testing.T) {
	copied := stubClipboard(t, nil)
	var out bytes.Buffer
	svc := NewService(newFakeClient(), nil, TerminalSharer{Out: &out}, Config{ShareBaseURL: "https://kudos.test"}, nil)
	c := svc.NewController(postE1, domain.EngagementState{})

	require.Equal(t, SharedPlatform, c.Share(context.Background()))
	require.Empty(t, *copied)
	require.Contains(t, out.String(), "\x1b]52;")
	require.Contains(t, out.String(), base64.StdEncoding.EncodeToString([]byte("https://kudos.test/posts/e1")))
}

func TestTerminalSharerCancelledFallsBack(t *testing.T) {
	copied := stubClipboard(t, nil)
	var out bytes.Buffer
	svc := NewService(newFakeClient(), nil, TerminalSharer{Out: &out}, Config{ShareBaseURL: "https://kudos.test"}, nil)
	c := svc.NewController(postE1, domain.EngagementState{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.Equal(t, SharedClipboard, c.Share(ctx))
	require.Empty(t, out.String())
	require.Equal(t, []string{"https://kudos.test/posts/e1"}, *copied)
}
