package connection

// ContainerCache hands out exactly one Container per service name for
// the lifetime of one environment, so handles can be used as identities
// in wait registries and test code.
//
// Registration happens single-threaded while the environment is being
// configured; afterwards lookups are read-only map hits, safe for
// concurrent use without locking.
type ContainerCache struct {
	docker     Docker
	containers map[string]*Container
}

func NewContainerCache(docker Docker) *ContainerCache {
	return &ContainerCache{
		docker:     docker,
		containers: map[string]*Container{},
	}
}

// Container returns the handle for a service, creating it on first use.
func (c *ContainerCache) Container(name string) *Container {
	if container, ok := c.containers[name]; ok {
		return container
	}
	container := NewContainer(name, c.docker)
	c.containers[name] = container
	return container
}
