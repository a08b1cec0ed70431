// Package docker runs solver invocations inside a container image.
package docker

import (
	"context"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/moby/moby/api/types/container"
	"github.com/moby/moby/api/types/mount"
	"github.com/moby/moby/client"

	"github.com/signalnine/regress/internal/logger"
	"github.com/signalnine/regress/internal/process"
)

// DataMount is where the data root is mounted inside the container.
const DataMount = "/data"

// Runner executes process requests in a fresh container per run. The host
// data root is bind-mounted at DataMount and request directories must lie
// below it.
type Runner struct {
	Image       string
	DataRoot    string
	CPULimit    float64
	MemoryLimit int64
	UserID      string
}

// ContainerDir maps a host directory below the data root to its path inside
// the container.
func (r Runner) ContainerDir(hostDir string) (string, error) {
	root, err := filepath.Abs(r.DataRoot)
	if err != nil {
		return "", err
	}
	dir, err := filepath.Abs(hostDir)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(root, dir)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("directory %s is outside data root %s", hostDir, r.DataRoot)
	}
	return path.Join(DataMount, filepath.ToSlash(rel)), nil
}

func (r Runner) Run(ctx context.Context, req process.Request) (*process.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if r.Image == "" {
		return nil, fmt.Errorf("container image is required")
	}
	if req.Timeout <= 0 {
		return nil, fmt.Errorf("timeout must be positive, got %s", req.Timeout)
	}
	workDir, err := r.ContainerDir(req.Dir)
	if err != nil {
		return nil, err
	}
	dataRoot, err := filepath.Abs(r.DataRoot)
	if err != nil {
		return nil, err
	}

	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("creating docker client: %w", err)
	}
	defer cli.Close()

	initTrue := true
	hostCfg := &container.HostConfig{
		Mounts: []mount.Mount{{
			Type:   mount.TypeBind,
			Source: dataRoot,
			Target: DataMount,
		}},
		Init: &initTrue,
	}
	if r.CPULimit > 0 {
		hostCfg.NanoCPUs = int64(r.CPULimit * 1e9)
	}
	if r.MemoryLimit > 0 {
		hostCfg.Memory = r.MemoryLimit
	}

	containerCfg := &container.Config{
		Image:      r.Image,
		Cmd:        append([]string{req.Path}, req.Args...),
		Env:        req.Env,
		WorkingDir: workDir,
		// A TTY merges stdout and stderr into one log stream.
		Tty:    true,
		Labels: map[string]string{"regress": "true"},
	}
	if r.UserID != "" {
		containerCfg.User = r.UserID
	}

	createResp, err := cli.ContainerCreate(ctx, client.ContainerCreateOptions{
		Config:     containerCfg,
		HostConfig: hostCfg,
	})
	if err != nil {
		return nil, &process.LaunchError{Path: req.Path, Err: fmt.Errorf("creating container: %w", err)}
	}
	containerID := createResp.ID
	defer func() {
		cli.ContainerRemove(context.Background(), containerID, client.ContainerRemoveOptions{Force: true})
	}()

	start := time.Now()
	if _, err := cli.ContainerStart(ctx, containerID, client.ContainerStartOptions{}); err != nil {
		return nil, &process.LaunchError{Path: req.Path, Err: fmt.Errorf("starting container: %w", err)}
	}
	logger.Debug("container started", "id", shortID(containerID), "image", r.Image, "dir", workDir)

	timeoutCtx, cancel := context.WithTimeout(ctx, req.Timeout)
	defer cancel()

	waitResult := cli.ContainerWait(timeoutCtx, containerID, client.ContainerWaitOptions{
		Condition: container.WaitConditionNotRunning,
	})
	for {
		select {
		case err := <-waitResult.Error:
			if err == nil {
				// nil error means no error on this channel; wait for result
				continue
			}
			cli.ContainerKill(context.Background(), containerID, client.ContainerKillOptions{Signal: "SIGKILL"})
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if timeoutCtx.Err() == nil {
				return nil, fmt.Errorf("waiting for container: %w", err)
			}
			logger.Warn("container timed out", "id", shortID(containerID), "timeout", req.Timeout)
			return &process.Result{
				Output:   r.logs(cli, containerID, req.Stream),
				ExitCode: process.ExitCodeTimedOut,
				TimedOut: true,
				Duration: time.Since(start),
			}, nil
		case status := <-waitResult.Result:
			return &process.Result{
				Output:   r.logs(cli, containerID, req.Stream),
				ExitCode: int(status.StatusCode),
				Duration: time.Since(start),
			}, nil
		}
	}
}

// logs returns the full container output and forwards it to stream, if set.
func (r Runner) logs(cli *client.Client, containerID string, stream io.Writer) string {
	logReader, err := cli.ContainerLogs(context.Background(), containerID, client.ContainerLogsOptions{ShowStdout: true, ShowStderr: true})
	if err != nil {
		logger.Warn("reading container logs", "id", shortID(containerID), "err", err)
		return ""
	}
	defer logReader.Close()
	data, _ := io.ReadAll(logReader)
	if stream != nil && len(data) > 0 {
		stream.Write(data)
	}
	return string(data)
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
