package driver

import (
	"context"
	"strings"
)

// VirshDriver powers libvirt guests on and off through the virsh
// binary. Context keys: power_address (a libvirt connection URI such
// as qemu+ssh://user@host/system) and power_id (the domain name).
type VirshDriver struct {
	ToolPath string
}

func NewVirshDriver(toolPath string) *VirshDriver {
	if toolPath == "" {
		toolPath = "virsh"
	}
	return &VirshDriver{ToolPath: toolPath}
}

func (d *VirshDriver) Name() string { return "virsh" }

func (d *VirshDriver) Queryable() bool { return true }

func (d *VirshDriver) DetectMissingPackages() []string {
	return missingTools(d.ToolPath)
}

func (d *VirshDriver) run(ctx context.Context, pctx map[string]string, action string) (string, error) {
	uri := pctx["power_address"]
	domain := pctx["power_id"]
	if uri == "" || domain == "" {
		return "", NewError(KindSetting,
			"power_address and power_id are required for virsh")
	}
	output, err := runCommand(ctx, d.ToolPath, "-c", uri, action, domain)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		lowered := strings.ToLower(string(output))
		if strings.Contains(lowered, "authentication failed") ||
			strings.Contains(lowered, "permission denied") {
			return "", NewError(KindAuth, "virsh could not authenticate to %s", uri)
		}
		if strings.Contains(lowered, "failed to connect") ||
			strings.Contains(lowered, "unable to connect") {
			return "", NewError(KindConnection, "virsh could not connect to %s", uri)
		}
		return "", NewError(KindAction, "virsh %s failed for domain %s: %v, output: %s",
			action, domain, err, strings.TrimSpace(string(output)))
	}
	return string(output), nil
}

func (d *VirshDriver) On(ctx context.Context, systemID string, pctx map[string]string) error {
	state, err := d.Query(ctx, systemID, pctx)
	if err != nil {
		return err
	}
	if state == StateOn {
		return nil
	}
	_, err = d.run(ctx, pctx, "start")
	return err
}

func (d *VirshDriver) Off(ctx context.Context, systemID string, pctx map[string]string) error {
	state, err := d.Query(ctx, systemID, pctx)
	if err != nil {
		return err
	}
	if state == StateOff {
		return nil
	}
	_, err = d.run(ctx, pctx, "destroy")
	return err
}

func (d *VirshDriver) Cycle(ctx context.Context, systemID string, pctx map[string]string) error {
	if err := d.Off(ctx, systemID, pctx); err != nil {
		return err
	}
	return d.On(ctx, systemID, pctx)
}

func (d *VirshDriver) Query(ctx context.Context, systemID string, pctx map[string]string) (State, error) {
	output, err := d.run(ctx, pctx, "domstate")
	if err != nil {
		return StateError, err
	}
	return parseVirshDomstate(output)
}

func parseVirshDomstate(output string) (State, error) {
	switch strings.TrimSpace(output) {
	case "running", "blocked", "in shutdown", "paused", "pmsuspended":
		return StateOn, nil
	case "shut off", "crashed":
		return StateOff, nil
	default:
		return StateError, NewError(KindAction,
			"unexpected virsh domain state: %s", strings.TrimSpace(output))
	}
}

var _ Driver = (*VirshDriver)(nil)
