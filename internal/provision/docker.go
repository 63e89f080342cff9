// Where: internal/provision/docker.go
// What: Docker SDK helpers for the container runner.
// Why: Provide scoped image queries without shelling out for reads.
package provision

import (
	"context"
	"strings"

	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
)

// DockerClient defines the subset of Docker SDK methods used by this package.
// This interface enables mocking the Docker client in tests.
type DockerClient interface {
	ImageList(ctx context.Context, options image.ListOptions) ([]image.Summary, error)
}

// NewDockerClient constructs a Docker SDK client using environment defaults.
func NewDockerClient() (DockerClient, error) {
	return client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
}

// HasImage reports whether an image with the given reference exists locally.
// A reference without a tag matches its :latest form.
func HasImage(ctx context.Context, docker DockerClient, reference string) (bool, error) {
	images, err := docker.ImageList(ctx, image.ListOptions{All: true})
	if err != nil {
		return false, err
	}

	want := reference
	if !strings.Contains(tagPart(want), ":") {
		want += ":latest"
	}
	for _, img := range images {
		for _, tag := range img.RepoTags {
			if tag == want {
				return true, nil
			}
		}
	}
	return false, nil
}

// tagPart returns the segment of a reference that could carry a tag, so a
// registry host with a port is not mistaken for one.
func tagPart(reference string) string {
	if idx := strings.LastIndex(reference, "/"); idx >= 0 {
		return reference[idx+1:]
	}
	return reference
}
