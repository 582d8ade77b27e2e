// Package build runs the optional local verification of a rendered
// artifact set: a container image build through the Docker Engine API,
// the application build tool and a Helm chart lint. Verification outcomes
// feed the pull request body; they never mutate the repository.
package build

import (
	"archive/tar"
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/docker/docker/api/types/build"
	"github.com/docker/docker/client"

	"github.com/rzbill/stencil/pkg/log"
)

// Docker builds images through the Docker Engine API.
type Docker struct {
	cli    client.APIClient
	logger log.Logger
}

// NewDocker creates a Docker builder from the environment (DOCKER_HOST
// and friends), negotiating the API version with the daemon.
func NewDocker(logger log.Logger, ops ...client.Opt) (*Docker, error) {
	ops = append([]client.Opt{client.FromEnv, client.WithAPIVersionNegotiation()}, ops...)
	cli, err := client.NewClientWithOpts(ops...)
	if err != nil {
		return nil, fmt.Errorf("create docker client: %w", err)
	}
	return &Docker{cli: cli, logger: logger.WithComponent("build")}, nil
}

// NewDockerWithClient wraps an existing API client. Used by tests.
func NewDockerWithClient(cli client.APIClient, logger log.Logger) *Docker {
	return &Docker{cli: cli, logger: logger.WithComponent("build")}
}

// BuildImage builds contextDir into an image tagged ref using the named
// Dockerfile, streaming the daemon's output into debug logs.
func (d *Docker) BuildImage(ctx context.Context, contextDir, dockerfile, ref string) error {
	d.logger.Info("Building image", log.Str("ref", ref), log.Str("context", contextDir))

	buildCtx, err := tarDirectory(contextDir)
	if err != nil {
		return fmt.Errorf("tar build context: %w", err)
	}
	defer buildCtx.Close()

	resp, err := d.cli.ImageBuild(ctx, buildCtx, build.ImageBuildOptions{
		Tags:       []string{ref},
		Dockerfile: dockerfile,
		Remove:     true,
	})
	if err != nil {
		return fmt.Errorf("image build: %w", err)
	}
	defer resp.Body.Close()

	return d.drainBuildOutput(resp.Body)
}

// drainBuildOutput consumes the daemon's JSON stream and surfaces the
// first build error it carries.
func (d *Docker) drainBuildOutput(r io.Reader) error {
	type line struct {
		Stream      string `json:"stream"`
		Error       string `json:"error"`
		ErrorDetail struct {
			Message string `json:"message"`
		} `json:"errorDetail"`
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		var l line
		if err := json.Unmarshal(scanner.Bytes(), &l); err != nil {
			continue
		}
		if l.Error != "" {
			msg := l.Error
			if l.ErrorDetail.Message != "" {
				msg = l.ErrorDetail.Message
			}
			return fmt.Errorf("image build failed: %s", msg)
		}
		if s := strings.TrimSpace(l.Stream); s != "" {
			d.logger.Debug(s)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read build output: %w", err)
	}
	return nil
}

// tarDirectory streams a directory as an uncompressed tar archive, the
// build-context format the Engine API expects. The .git directory is
// excluded.
func tarDirectory(dir string) (io.ReadCloser, error) {
	if _, err := os.Stat(dir); err != nil {
		return nil, err
	}

	pr, pw := io.Pipe()
	go func() {
		tw := tar.NewWriter(pw)
		err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			rel, err := filepath.Rel(dir, path)
			if err != nil {
				return err
			}
			if rel == "." {
				return nil
			}
			if d.IsDir() && d.Name() == ".git" {
				return filepath.SkipDir
			}

			info, err := d.Info()
			if err != nil {
				return err
			}
			hdr, err := tar.FileInfoHeader(info, "")
			if err != nil {
				return err
			}
			hdr.Name = filepath.ToSlash(rel)

			if err := tw.WriteHeader(hdr); err != nil {
				return err
			}
			if d.IsDir() || !info.Mode().IsRegular() {
				return nil
			}

			f, err := os.Open(path)
			if err != nil {
				return err
			}
			defer f.Close()
			_, err = io.Copy(tw, f)
			return err
		})
		if err == nil {
			err = tw.Close()
		} else {
			tw.Close()
		}
		pw.CloseWithError(err)
	}()
	return pr, nil
}
