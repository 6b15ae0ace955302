package model

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	units "github.com/docker/go-units"
	"github.com/spf13/afero"
)

// LockFileName is the per-directory record of verified downloads.
const LockFileName = "download-manifest.lock.json"

type DownloadOptions struct {
	// Source is an https://, http:// or gs://bucket/object URL.
	Source string
	OutDir string
	// Filename defaults to the last element of Source.
	Filename string
	// SHA256 is the expected checksum; empty trusts the lock manifest or
	// records whatever arrives.
	SHA256 string
	Token  string
	FS     afero.Fs
	Client *http.Client
	Stdout io.Writer
}

// DownloadResult describes the file left in OutDir.
type DownloadResult struct {
	Path    string
	SHA256  string
	Bytes   int64
	Skipped bool
}

type ErrAccessDenied struct {
	Source string
	Msg    string
}

func (e *ErrAccessDenied) Error() string {
	if e.Msg != "" {
		return e.Msg
	}
	return fmt.Sprintf("access denied for %s", e.Source)
}

type lockManifest struct {
	Generated string                `json:"generated"`
	Files     map[string]lockRecord `json:"files"`
}

type lockRecord struct {
	Source string `json:"source"`
	SHA256 string `json:"sha256"`
}

var shaHexPattern = regexp.MustCompile(`(?i)^[a-f0-9]{64}$`)

// newGCSClient is swapped by tests.
var newGCSClient = func(ctx context.Context) (*storage.Client, error) {
	return storage.NewClient(ctx)
}

// Download fetches opts.Source into opts.OutDir, verifying the checksum when
// one is known. An existing file with the expected checksum is kept.
func Download(ctx context.Context, opts DownloadOptions) (DownloadResult, error) {
	if opts.Source == "" {
		return DownloadResult{}, errors.New("source is required")
	}
	if opts.OutDir == "" {
		return DownloadResult{}, errors.New("out dir is required")
	}
	if opts.FS == nil {
		opts.FS = afero.NewOsFs()
	}
	if opts.Client == nil {
		opts.Client = &http.Client{Timeout: 0}
	}
	if opts.Stdout == nil {
		opts.Stdout = io.Discard
	}

	src, err := url.Parse(opts.Source)
	if err != nil {
		return DownloadResult{}, fmt.Errorf("parse source %q: %w", opts.Source, err)
	}

	name := opts.Filename
	if name == "" {
		name = path.Base(src.Path)
	}
	if name == "" || name == "." || name == "/" {
		return DownloadResult{}, fmt.Errorf("cannot derive a file name from %q", opts.Source)
	}

	if opts.SHA256 != "" && !isSHA256Hex(opts.SHA256) {
		return DownloadResult{}, fmt.Errorf("invalid sha256 %q", opts.SHA256)
	}

	if err := opts.FS.MkdirAll(opts.OutDir, 0o755); err != nil {
		return DownloadResult{}, fmt.Errorf("create out dir: %w", err)
	}

	lockPath := filepath.Join(opts.OutDir, LockFileName)
	lock := readLockManifest(opts.FS, lockPath)
	lock.Generated = time.Now().UTC().Format(time.RFC3339)

	expected := strings.ToLower(opts.SHA256)
	if expected == "" {
		if lr, ok := lock.Files[name]; ok && lr.Source == opts.Source && isSHA256Hex(lr.SHA256) {
			expected = strings.ToLower(lr.SHA256)
		}
	}

	localPath := filepath.Join(opts.OutDir, filepath.FromSlash(name))

	if expected != "" {
		if ok, err := existingMatches(opts.FS, localPath, expected); err != nil {
			return DownloadResult{}, err
		} else if ok {
			fmt.Fprintf(opts.Stdout, "skip %s (checksum match)\n", name)
			return DownloadResult{Path: localPath, SHA256: expected, Skipped: true}, nil
		}
	}

	body, total, err := openSource(ctx, src, opts)
	if err != nil {
		return DownloadResult{}, err
	}
	defer body.Close()

	fmt.Fprintf(opts.Stdout, "download %s -> %s\n", opts.Source, localPath)
	actual, written, err := copyWithProgress(opts.FS, body, total, localPath, opts.Stdout)
	if err != nil {
		return DownloadResult{}, err
	}

	if expected != "" && actual != expected {
		_ = opts.FS.Remove(localPath)
		return DownloadResult{}, fmt.Errorf("checksum mismatch for %s: expected %s got %s", name, expected, actual)
	}
	fmt.Fprintf(opts.Stdout, "verified %s (%s, sha256=%s)\n", name, units.HumanSize(float64(written)), actual)

	if lock.Files == nil {
		lock.Files = map[string]lockRecord{}
	}
	lock.Files[name] = lockRecord{Source: opts.Source, SHA256: actual}
	if err := writeLockManifest(opts.FS, lockPath, lock); err != nil {
		return DownloadResult{}, err
	}
	fmt.Fprintf(opts.Stdout, "wrote lock manifest: %s\n", lockPath)

	return DownloadResult{Path: localPath, SHA256: actual, Bytes: written}, nil
}

// openSource returns the body of src and its size, or -1 when unknown.
func openSource(ctx context.Context, src *url.URL, opts DownloadOptions) (io.ReadCloser, int64, error) {
	switch src.Scheme {
	case "https", "http":
		return openHTTP(ctx, src.String(), opts)
	case "gs":
		return openGCS(ctx, src)
	default:
		return nil, 0, fmt.Errorf("unsupported source scheme %q (want https, http or gs)", src.Scheme)
	}
}

func openHTTP(ctx context.Context, rawURL string, opts DownloadOptions) (io.ReadCloser, int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("build request: %w", err)
	}
	setAuth(req, opts.Token)

	resp, err := opts.Client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("download request failed: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		resp.Body.Close()
		return nil, 0, &ErrAccessDenied{
			Source: rawURL,
			Msg:    fmt.Sprintf("access denied for %s; provide a token with --token", rawURL),
		}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, 0, fmt.Errorf("download failed for %s: %s", rawURL, resp.Status)
	}

	return resp.Body, resp.ContentLength, nil
}

// gcsReader closes the storage client along with the object reader.
type gcsReader struct {
	*storage.Reader
	client *storage.Client
}

func (r gcsReader) Close() error {
	err := r.Reader.Close()
	if cerr := r.client.Close(); err == nil {
		err = cerr
	}
	return err
}

func openGCS(ctx context.Context, src *url.URL) (io.ReadCloser, int64, error) {
	bucket := src.Host
	object := strings.TrimPrefix(src.Path, "/")
	if bucket == "" || object == "" {
		return nil, 0, fmt.Errorf("gs source %q needs gs://bucket/object", src.String())
	}

	client, err := newGCSClient(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("create storage client: %w", err)
	}

	r, err := client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		_ = client.Close()
		if errors.Is(err, storage.ErrObjectNotExist) || errors.Is(err, storage.ErrBucketNotExist) {
			return nil, 0, fmt.Errorf("gs://%s/%s not found: %w", bucket, object, err)
		}
		return nil, 0, fmt.Errorf("open gs://%s/%s: %w", bucket, object, err)
	}

	return gcsReader{Reader: r, client: client}, r.Attrs.Size, nil
}

func existingMatches(fsys afero.Fs, path, expected string) (bool, error) {
	fi, err := fsys.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("stat existing file: %w", err)
	}
	if fi.IsDir() {
		return false, fmt.Errorf("expected file at %s, found directory", path)
	}
	actual, err := fileSHA256(fsys, path)
	if err != nil {
		return false, err
	}
	return actual == expected, nil
}

// copyWithProgress streams body into a temp file next to outPath, hashing as
// it goes, and renames it into place once complete.
func copyWithProgress(fsys afero.Fs, body io.Reader, total int64, outPath string, stdout io.Writer) (string, int64, error) {
	tmp := outPath + ".tmp"
	fh, err := fsys.Create(tmp)
	if err != nil {
		return "", 0, fmt.Errorf("create temp file: %w", err)
	}

	h := sha256.New()
	mw := io.MultiWriter(fh, h)

	var written int64
	buf := make([]byte, 64*1024)
	lastPrint := time.Now()
	for {
		n, readErr := body.Read(buf)
		if n > 0 {
			wn, writeErr := mw.Write(buf[:n])
			if writeErr != nil {
				_ = fh.Close()
				_ = fsys.Remove(tmp)
				return "", 0, fmt.Errorf("write temp file: %w", writeErr)
			}
			written += int64(wn)
			if time.Since(lastPrint) > 700*time.Millisecond {
				if total > 0 {
					pct := float64(written) * 100 / float64(total)
					fmt.Fprintf(stdout, "  progress: %.1f%% (%s/%s)\n", pct, units.HumanSize(float64(written)), units.HumanSize(float64(total)))
				} else {
					fmt.Fprintf(stdout, "  progress: %s\n", units.HumanSize(float64(written)))
				}
				lastPrint = time.Now()
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			_ = fh.Close()
			_ = fsys.Remove(tmp)
			return "", 0, fmt.Errorf("download read failed: %w", readErr)
		}
	}

	if err := fh.Close(); err != nil {
		_ = fsys.Remove(tmp)
		return "", 0, fmt.Errorf("close temp file: %w", err)
	}
	if total > 0 && written != total {
		_ = fsys.Remove(tmp)
		return "", 0, fmt.Errorf("download truncated: got %d of %d bytes", written, total)
	}
	if err := fsys.Rename(tmp, outPath); err != nil {
		_ = fsys.Remove(tmp)
		return "", 0, fmt.Errorf("move temp file into place: %w", err)
	}

	return hex.EncodeToString(h.Sum(nil)), written, nil
}

func setAuth(req *http.Request, token string) {
	if token == "" {
		return
	}
	req.Header.Set("Authorization", "Bearer "+token)
}

func isSHA256Hex(v string) bool {
	return shaHexPattern.MatchString(v)
}

// FileSHA256 returns the hex sha256 of the file at path on fsys.
func FileSHA256(fsys afero.Fs, path string) (string, error) {
	return fileSHA256(fsys, path)
}

func fileSHA256(fsys afero.Fs, path string) (string, error) {
	f, err := fsys.Open(path)
	if err != nil {
		return "", fmt.Errorf("open file for checksum: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("read file for checksum: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func readLockManifest(fsys afero.Fs, path string) lockManifest {
	b, err := afero.ReadFile(fsys, path)
	if err != nil {
		return lockManifest{Files: map[string]lockRecord{}}
	}
	var out lockManifest
	if err := json.Unmarshal(b, &out); err != nil {
		return lockManifest{Files: map[string]lockRecord{}}
	}
	if out.Files == nil {
		out.Files = map[string]lockRecord{}
	}
	return out
}

func writeLockManifest(fsys afero.Fs, path string, lock lockManifest) error {
	b, err := json.MarshalIndent(lock, "", "  ")
	if err != nil {
		return fmt.Errorf("encode lock manifest: %w", err)
	}
	if err := afero.WriteFile(fsys, path, b, 0o644); err != nil {
		return fmt.Errorf("write lock manifest: %w", err)
	}
	return nil
}
