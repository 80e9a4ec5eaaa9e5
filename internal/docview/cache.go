package docview

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

const (
	cacheEnvVar        = "INKWELL_CACHE_DIR"
	cacheSubdir        = "inkwell/documents"
	cacheTTL           = 24 * time.Hour
	partialSuffix      = ".part"
	metaSuffix         = ".meta"
	defaultHTTPTimeout = 90 * time.Second
)

// fileCache holds fetched document bytes on disk so reopening a document
// does not re-download it within the TTL.
type fileCache struct {
	dir    string
	client *http.Client
}

type fileCacheMeta struct {
	URL          string    `json:"url"`
	ETag         string    `json:"etag"`
	LastModified string    `json:"lastModified"`
	CachedAt     time.Time `json:"cachedAt"`
	Size         int64     `json:"size"`
}

func newFileCache(client *http.Client) (*fileCache, error) {
	dir := os.Getenv(cacheEnvVar)
	if dir == "" {
		base, err := os.UserCacheDir()
		if err != nil {
			base = filepath.Join(os.TempDir(), "inkwell-cache")
		}
		dir = filepath.Join(base, cacheSubdir)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	if client == nil {
		client = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return &fileCache{dir: dir, client: client}, nil
}

// Fetch returns the local path of the document at fileURL, downloading it
// when the cached copy is missing or stale. A stale copy is still served
// when revalidation fails, so an unreachable service does not blank out
// an already-viewed document.
func (c *fileCache) Fetch(ctx context.Context, fileURL string) (string, error) {
	key := cacheKey(fileURL)
	filePath, metaPath, partialPath := c.pathsFor(key)

	if info, err := os.Stat(filePath); err == nil && time.Since(info.ModTime()) < cacheTTL && info.Size() > 0 {
		return filePath, nil
	}

	meta, _ := readMeta(metaPath)
	info, _ := os.Stat(filePath)
	path, err := c.download(ctx, fileURL, filePath, metaPath, partialPath, meta, info)
	if err == nil {
		return path, nil
	}
	if info != nil && info.Size() > 0 {
		return filePath, nil
	}
	return "", err
}

func (c *fileCache) download(ctx context.Context, fileURL, filePath, metaPath, partialPath string, meta fileCacheMeta, current os.FileInfo) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return "", err
	}
	if current != nil && current.Size() > 0 {
		if meta.ETag != "" {
			req.Header.Set("If-None-Match", meta.ETag)
		}
		if meta.LastModified != "" {
			req.Header.Set("If-Modified-Since", meta.LastModified)
		}
	}

	var partialSize int64
	if info, err := os.Stat(partialPath); err == nil && info.Size() > 0 {
		partialSize = info.Size()
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", partialSize))
		if meta.ETag != "" {
			req.Header.Set("If-Range", meta.ETag)
		} else if meta.LastModified != "" {
			req.Header.Set("If-Range", meta.LastModified)
		}
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusNotModified:
		if current != nil && current.Size() > 0 {
			meta.CachedAt = time.Now().UTC()
			writeMeta(metaPath, meta)
			return filePath, nil
		}
		return c.download(ctx, fileURL, filePath, metaPath, partialPath, fileCacheMeta{}, nil)
	case http.StatusOK:
		return c.saveBody(resp, filePath, metaPath, partialPath, false)
	case http.StatusPartialContent:
		return c.saveBody(resp, filePath, metaPath, partialPath, partialSize > 0)
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("document download failed: %s (%s)", resp.Status, string(body))
	}
}

func (c *fileCache) saveBody(resp *http.Response, filePath, metaPath, partialPath string, appendExisting bool) (string, error) {
	flags := os.O_CREATE | os.O_WRONLY
	if appendExisting {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}
	file, err := os.OpenFile(partialPath, flags, 0o644)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(file, resp.Body); err != nil {
		file.Close()
		return "", err
	}
	if err := file.Close(); err != nil {
		return "", err
	}
	if err := os.Rename(partialPath, filePath); err != nil {
		return "", err
	}

	meta := fileCacheMeta{
		URL:          resp.Request.URL.String(),
		ETag:         resp.Header.Get("Etag"),
		LastModified: resp.Header.Get("Last-Modified"),
		CachedAt:     time.Now().UTC(),
	}
	if info, err := os.Stat(filePath); err == nil {
		meta.Size = info.Size()
	}
	if err := writeMeta(metaPath, meta); err != nil {
		return "", err
	}
	return filePath, nil
}

func (c *fileCache) pathsFor(key string) (string, string, string) {
	return filepath.Join(c.dir, key+".pdf"), filepath.Join(c.dir, key+metaSuffix), filepath.Join(c.dir, key+partialSuffix)
}

func cacheKey(fileURL string) string {
	sum := sha1.Sum([]byte(fileURL))
	return hex.EncodeToString(sum[:])
}

func readMeta(path string) (fileCacheMeta, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return fileCacheMeta{}, err
	}
	var meta fileCacheMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return fileCacheMeta{}, err
	}
	return meta, nil
}

func writeMeta(path string, meta fileCacheMeta) error {
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
