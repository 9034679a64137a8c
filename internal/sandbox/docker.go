package sandbox

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/nat"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
)

const (
	labelManagedBy  = "agentexec.managed-by"
	managedByValue  = "agentexec"
	sandboxHTTPPort = "8080/tcp"
)

// DockerProvisioner provisions sandbox containers on a local or remote
// Docker daemon, following container/manager.go's FromEnv-then-socket-
// probing client construction and label-based container bookkeeping.
type DockerProvisioner struct {
	client *client.Client
}

// NewDockerProvisioner connects to Docker, trying the environment-derived
// configuration first and falling back to common local socket paths.
func NewDockerProvisioner() (*DockerProvisioner, error) {
	cli, err := connectDocker()
	if err != nil {
		return nil, err
	}
	return &DockerProvisioner{client: cli}, nil
}

func connectDocker() (*client.Client, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err == nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		_, pingErr := cli.Ping(ctx)
		cancel()
		if pingErr == nil {
			return cli, nil
		}
		cli.Close()
	}

	home := os.Getenv("HOME")
	candidates := []string{
		"unix://" + home + "/.docker/run/docker.sock",
		"unix:///var/run/docker.sock",
		"unix://" + home + "/.colima/docker.sock",
	}
	for _, sock := range candidates {
		cli, err := client.NewClientWithOpts(client.WithHost(sock), client.WithAPIVersionNegotiation())
		if err != nil {
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		_, pingErr := cli.Ping(ctx)
		cancel()
		if pingErr == nil {
			return cli, nil
		}
		cli.Close()
	}
	return nil, fmt.Errorf("sandbox: could not connect to a Docker daemon")
}

// Provision starts a fresh container from cfg.Image, publishing the
// sandbox's HTTP port to an ephemeral host port, and returns the
// reachable base URL and the container id.
func (p *DockerProvisioner) Provision(ctx context.Context, name string, cfg Config) (string, string, error) {
	if err := p.ensureNetwork(ctx, cfg.NetworkName); err != nil {
		return "", "", fmt.Errorf("ensure network: %w", err)
	}
	if err := p.ensureImage(ctx, cfg.Image); err != nil {
		return "", "", fmt.Errorf("pull image: %w", err)
	}

	exposed, bindings, err := nat.ParsePortSpecs([]string{sandboxHTTPPort})
	if err != nil {
		return "", "", err
	}

	containerCfg := &container.Config{
		Image: cfg.Image,
		Labels: map[string]string{
			labelManagedBy: managedByValue,
		},
		ExposedPorts: exposed,
	}
	hostCfg := &container.HostConfig{
		PortBindings: bindings,
	}

	resp, err := p.client.ContainerCreate(ctx, containerCfg, hostCfg, nil, nil, name)
	if err != nil {
		return "", "", fmt.Errorf("create container: %w", err)
	}
	if err := p.client.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		return "", "", fmt.Errorf("start container: %w", err)
	}

	inspect, err := p.client.ContainerInspect(ctx, resp.ID)
	if err != nil {
		return "", "", fmt.Errorf("inspect container: %w", err)
	}
	port, ok := inspect.NetworkSettings.Ports[nat.Port(sandboxHTTPPort)]
	if !ok || len(port) == 0 {
		return "", "", fmt.Errorf("sandbox container did not publish %s", sandboxHTTPPort)
	}

	addr := fmt.Sprintf("http://127.0.0.1:%s", port[0].HostPort)
	return addr, resp.ID, nil
}

// Remove stops and removes a provisioned container. Idempotent.
func (p *DockerProvisioner) Remove(ctx context.Context, containerID string) error {
	timeout := 5
	_ = p.client.ContainerStop(ctx, containerID, container.StopOptions{Timeout: &timeout})
	err := p.client.ContainerRemove(ctx, containerID, container.RemoveOptions{Force: true})
	if client.IsErrNotFound(err) {
		return nil
	}
	return err
}

func (p *DockerProvisioner) ensureNetwork(ctx context.Context, name string) error {
	if name == "" {
		return nil
	}
	nets, err := p.client.NetworkList(ctx, network.ListOptions{
		Filters: filters.NewArgs(filters.Arg("name", name)),
	})
	if err != nil {
		return err
	}
	if len(nets) > 0 {
		return nil
	}
	_, err = p.client.NetworkCreate(ctx, name, network.CreateOptions{
		Driver: "bridge",
		Labels: map[string]string{labelManagedBy: managedByValue},
	})
	return err
}

func (p *DockerProvisioner) ensureImage(ctx context.Context, imageName string) error {
	_, _, err := p.client.ImageInspectWithRaw(ctx, imageName)
	if err == nil {
		return nil
	}
	reader, err := p.client.ImagePull(ctx, imageName, image.PullOptions{})
	if err != nil {
		return err
	}
	defer reader.Close()
	_, err = io.Copy(io.Discard, reader)
	return err
}

// Close releases the Docker client.
func (p *DockerProvisioner) Close() error {
	return p.client.Close()
}
