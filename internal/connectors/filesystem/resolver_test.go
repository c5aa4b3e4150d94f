package filesystem

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveWebURL(t *testing.T) {
	tests := []struct {
		name string
		uri  string
		want string
	}{
		{
			name: "file:// URI is converted to local path",
			uri:  "file:///data/raw/AMZN/Amazon-Q3-2025.pdf",
			want: "/data/raw/AMZN/Amazon-Q3-2025.pdf",
		},
		{
			name: "escaped spaces are decoded",
			uri:  "file:///data/raw/AMZN/Amazon%20Q3%202025.pdf",
			want: "/data/raw/AMZN/Amazon Q3 2025.pdf",
		},
		{
			name: "bare path passes through unchanged",
			uri:  "/data/raw/MSFT/msft-fy2024.html",
			want: "/data/raw/MSFT/msft-fy2024.html",
		},
		{
			name: "relative path passes through unchanged",
			uri:  "raw/MSFT/file.txt",
			want: "raw/MSFT/file.txt",
		},
		{
			name: "empty string passes through",
			uri:  "",
			want: "",
		},
		{
			name: "file:// prefix only",
			uri:  "file://",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveWebURL(tt.uri))
		})
	}
}

func TestFileURL(t *testing.T) {
	assert.Equal(t, "", FileURL(""))
	assert.Equal(t, "file:///data/raw/AMZN/Amazon%20Q3%202025.pdf", FileURL("/data/raw/AMZN/Amazon Q3 2025.pdf"))

	rel := FileURL(filepath.Join("raw", "a.pdf"))
	assert.True(t, strings.HasPrefix(rel, "file:///"))
	assert.True(t, strings.HasSuffix(rel, "/raw/a.pdf"))
}

func TestFileURL_RoundTrip(t *testing.T) {
	path := "/data/raw/AAPL/Apple Q2 2025 Earnings.pdf"
	assert.Equal(t, path, ResolveWebURL(FileURL(path)))
}
