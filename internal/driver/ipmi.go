package driver

import (
	"context"
	"strings"
)

// ipmiErrors maps fragments of ipmitool output to the error kind they
// indicate. Fragments are matched case-insensitively against the
// combined output of a failed invocation.
var ipmiErrors = []struct {
	fragment string
	kind     ErrorKind
	message  string
}{
	{"username invalid", KindAuth, "Incorrect username. Check BMC configuration and try again."},
	{"password invalid", KindAuth, "Incorrect password. Check BMC configuration and try again."},
	{"password verification timeout", KindAuth, "Password verification timed out. Check BMC configuration and try again."},
	{"k_g invalid", KindAuth, "Incorrect K_g key. Check BMC configuration and try again."},
	{"privilege level insufficient", KindAuth, "Privilege level insufficient. Check BMC configuration and try again."},
	{"authentication type unavailable", KindAuth, "Authentication type unavailable. Check BMC configuration and try again."},
	{"connection timeout", KindConnection, "Connection timed out while talking to the BMC."},
	{"session timeout", KindConnection, "Session timed out while talking to the BMC."},
	{"could not find inband device", KindConnection, "Could not find inband IPMI device."},
	{"driver timeout", KindConnection, "The BMC did not respond in time."},
}

// IPMIDriver drives BMCs over IPMI lanplus using the stock ipmitool
// binary. Context keys: power_address, power_user, power_pass and the
// optional power_interface (defaults to lanplus).
type IPMIDriver struct {
	ToolPath string
}

func NewIPMIDriver(toolPath string) *IPMIDriver {
	if toolPath == "" {
		toolPath = "ipmitool"
	}
	return &IPMIDriver{ToolPath: toolPath}
}

func (d *IPMIDriver) Name() string { return "ipmi" }

func (d *IPMIDriver) Queryable() bool { return true }

func (d *IPMIDriver) DetectMissingPackages() []string {
	return missingTools(d.ToolPath)
}

func (d *IPMIDriver) args(pctx map[string]string, action ...string) ([]string, error) {
	address := pctx["power_address"]
	user := pctx["power_user"]
	pass := pctx["power_pass"]
	if address == "" || user == "" || pass == "" {
		return nil, NewError(KindSetting,
			"power_address, power_user and power_pass are required for IPMI")
	}
	iface := pctx["power_interface"]
	if iface == "" {
		iface = "lanplus"
	}
	args := []string{"-I", iface, "-H", address, "-U", user, "-P", pass}
	return append(args, action...), nil
}

func (d *IPMIDriver) run(ctx context.Context, pctx map[string]string, action ...string) (string, error) {
	args, err := d.args(pctx, action...)
	if err != nil {
		return "", err
	}
	output, err := runCommand(ctx, d.ToolPath, args...)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", classifyIPMIFailure(string(output), err)
	}
	return string(output), nil
}

// classifyIPMIFailure translates ipmitool output into a typed driver
// error using the known BMC error fragments.
func classifyIPMIFailure(output string, err error) error {
	lowered := strings.ToLower(output)
	for _, known := range ipmiErrors {
		if strings.Contains(lowered, known.fragment) {
			return NewError(known.kind, "%s", known.message)
		}
	}
	return NewError(KindAction, "ipmitool failed: %v, output: %s",
		err, strings.TrimSpace(output))
}

func (d *IPMIDriver) On(ctx context.Context, systemID string, pctx map[string]string) error {
	output, err := d.run(ctx, pctx, "power", "on")
	if err != nil {
		return err
	}
	if !strings.Contains(output, "Up/On") {
		return NewError(KindAction, "unexpected IPMI output for power on: %s",
			strings.TrimSpace(output))
	}
	return nil
}

func (d *IPMIDriver) Off(ctx context.Context, systemID string, pctx map[string]string) error {
	output, err := d.run(ctx, pctx, "power", "off")
	if err != nil {
		return err
	}
	if !strings.Contains(output, "Down/Off") {
		return NewError(KindAction, "unexpected IPMI output for power off: %s",
			strings.TrimSpace(output))
	}
	return nil
}

func (d *IPMIDriver) Cycle(ctx context.Context, systemID string, pctx map[string]string) error {
	state, err := d.Query(ctx, systemID, pctx)
	if err != nil {
		return err
	}
	if state == StateOn {
		if err := d.Off(ctx, systemID, pctx); err != nil {
			return err
		}
	}
	return d.On(ctx, systemID, pctx)
}

func (d *IPMIDriver) Query(ctx context.Context, systemID string, pctx map[string]string) (State, error) {
	output, err := d.run(ctx, pctx, "power", "status")
	if err != nil {
		return StateError, err
	}
	return parseIPMIPowerStatus(output)
}

func parseIPMIPowerStatus(output string) (State, error) {
	switch {
	case strings.Contains(output, "Chassis Power is on"):
		return StateOn, nil
	case strings.Contains(output, "Chassis Power is off"):
		return StateOff, nil
	default:
		return StateError, NewError(KindAction,
			"unexpected IPMI output for power status: %s", strings.TrimSpace(output))
	}
}

var _ Driver = (*IPMIDriver)(nil)
