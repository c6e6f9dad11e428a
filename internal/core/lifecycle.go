package core

import (
	"context"

	"gopkg.in/yaml.v3"
)

// Configurable modules receive their section of the modules map before
// Provision. Modules without a section are not called.
type Configurable interface {
	Configure(node *yaml.Node) error
}

// Provisioner modules apply defaults, open resources and publish services
// such as "runtime" or "storage.snapshots".
type Provisioner interface {
	Provision(ctx *AppContext) error
}

// Validator modules check their provisioned configuration.
type Validator interface {
	Validate() error
}

// Starter modules launch background work: the host loop, a listener.
// Start runs after every module is provisioned, so services published by
// modules later in the load order can be looked up here.
type Starter interface {
	Start() error
}

// Stopper modules release what Provision or Start acquired. Stop runs in
// reverse load order, and also for modules that were provisioned but never
// started.
type Stopper interface {
	Stop(ctx context.Context) error
}
