package mlflow

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"model-retrain-service/internal/core/domain"
)

const artifactScheme = "mlflow-artifacts"

// artifactRoot maps an mlflow-artifacts URI onto a path under the artifact
// proxy. "mlflow-artifacts:/1/abc/artifacts" becomes "1/abc/artifacts".
func artifactRoot(uri string) (string, error) {
	u, err := url.Parse(uri)
	if err != nil || u.Scheme != artifactScheme {
		return "", fmt.Errorf("%w: %q", domain.ErrUnsupportedArtifactURI, uri)
	}
	return strings.Trim(u.Path, "/"), nil
}

func (c *Client) artifactURL(rel string) string {
	segments := strings.Split(rel, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return c.endpoint + artifactsPath + "/" + strings.Join(segments, "/")
}

// UploadArtifacts copies every regular file under localDir to
// <artifactURI>/<dest>/..., keeping relative paths.
func (c *Client) UploadArtifacts(ctx context.Context, artifactURI, dest, localDir string) error {
	root, err := artifactRoot(artifactURI)
	if err != nil {
		return err
	}

	return filepath.WalkDir(localDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(localDir, p)
		if err != nil {
			return err
		}
		return c.putArtifact(ctx, path.Join(root, dest, filepath.ToSlash(rel)), p)
	})
}

func (c *Client) putArtifact(ctx context.Context, rel, localPath string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return err
	}
	defer f.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.artifactURL(rel), f)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("upload artifact %s: %w", rel, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("upload artifact %s: status %d", rel, resp.StatusCode)
	}
	return nil
}

// ListArtifacts lists the direct children of rel under the artifact proxy.
func (c *Client) ListArtifacts(ctx context.Context, rel string) ([]FileInfo, error) {
	u := c.endpoint + artifactsPath + "?" + url.Values{"path": {rel}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("list artifacts %s: %w", rel, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("list artifacts %s: status %d", rel, resp.StatusCode)
	}

	var response listArtifactsResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("decode artifact list: %w", err)
	}
	return response.Files, nil
}

// DownloadArtifacts mirrors the tree at artifactURI into localDir.
func (c *Client) DownloadArtifacts(ctx context.Context, artifactURI, localDir string) error {
	root, err := artifactRoot(artifactURI)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(localDir, 0o755); err != nil {
		return err
	}
	return c.downloadTree(ctx, root, localDir)
}

func (c *Client) downloadTree(ctx context.Context, rel, localDir string) error {
	files, err := c.ListArtifacts(ctx, rel)
	if err != nil {
		return err
	}
	for _, f := range files {
		name := path.Base(f.Path)
		child := path.Join(rel, name)
		target := filepath.Join(localDir, filepath.FromSlash(name))
		if f.IsDir {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
			if err := c.downloadTree(ctx, child, target); err != nil {
				return err
			}
			continue
		}
		if err := c.getArtifact(ctx, child, target); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) getArtifact(ctx context.Context, rel, localPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.artifactURL(rel), nil)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("download artifact %s: %w", rel, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("download artifact %s: status %d", rel, resp.StatusCode)
	}

	out, err := os.Create(localPath)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, resp.Body); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
