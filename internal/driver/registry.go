package driver

import (
	"fmt"
	"sort"

	log "github.com/sirupsen/logrus"
)

// Registry maps power_type keys to drivers. It is built once at
// startup and read-only afterwards, so lookups need no locking.
type Registry struct {
	drivers map[string]Driver
}

func NewRegistry() *Registry {
	return &Registry{drivers: make(map[string]Driver)}
}

// Register adds a driver under its own name. Registering the same name
// twice is a programming error.
func (r *Registry) Register(d Driver) error {
	if _, ok := r.drivers[d.Name()]; ok {
		return fmt.Errorf("power driver %s already registered", d.Name())
	}
	r.drivers[d.Name()] = d
	return nil
}

// Get resolves a power type to its driver.
func (r *Registry) Get(powerType string) (Driver, error) {
	d, ok := r.drivers[powerType]
	if !ok {
		return nil, &UnknownPowerTypeError{PowerType: powerType}
	}
	return d, nil
}

// Names returns the registered power types in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.drivers))
	for name := range r.drivers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LogMissingPackages reports, once at startup, every driver whose host
// dependencies are not satisfied. Actions on such drivers will fail
// their readiness check until the packages are installed.
func (r *Registry) LogMissingPackages() {
	for _, name := range r.Names() {
		if missing := r.drivers[name].DetectMissingPackages(); len(missing) > 0 {
			log.Warnf("Power driver %s is missing packages: %v", name, missing)
		}
	}
}
