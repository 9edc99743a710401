package driver

import (
	"context"
	"os"
	"sync"

	"github.com/u-root/u-root/pkg/ipmi"
)

const (
	netfnChassis      = 0x00
	cmdChassisStatus  = 0x01
	cmdChassisControl = 0x02

	chassisControlOff   = 0x00
	chassisControlOn    = 0x01
	chassisControlCycle = 0x02
)

// LocalIPMIDriver drives the rack host's own BMC through /dev/ipmi0,
// for racks where the agent runs on the managed chassis itself. It
// needs no context parameters.
type LocalIPMIDriver struct {
	mu   sync.Mutex
	conn *ipmi.IPMI
}

func NewLocalIPMIDriver() *LocalIPMIDriver {
	return &LocalIPMIDriver{}
}

func (d *LocalIPMIDriver) Name() string { return "ipmi_local" }

func (d *LocalIPMIDriver) Queryable() bool { return true }

func (d *LocalIPMIDriver) DetectMissingPackages() []string {
	if _, err := os.Stat("/dev/ipmi0"); err != nil {
		return []string{"openipmi"}
	}
	return nil
}

func (d *LocalIPMIDriver) rawCmd(data []byte) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.conn == nil {
		conn, err := ipmi.Open(0)
		if err != nil {
			return nil, NewError(KindTool, "failed to open IPMI device: %v", err)
		}
		d.conn = conn
	}

	resp, err := d.conn.RawCmd(data)
	if err != nil {
		return nil, NewError(KindConnection, "IPMI raw command failed: %v", err)
	}
	if len(resp) < 1 {
		return nil, NewError(KindAction, "empty IPMI response")
	}
	if resp[0] != 0x00 {
		return nil, NewError(KindAction, "IPMI command completed with code 0x%02x", resp[0])
	}
	return resp, nil
}

func (d *LocalIPMIDriver) control(action byte) error {
	_, err := d.rawCmd([]byte{netfnChassis, cmdChassisControl, action})
	return err
}

func (d *LocalIPMIDriver) On(ctx context.Context, systemID string, pctx map[string]string) error {
	return d.control(chassisControlOn)
}

func (d *LocalIPMIDriver) Off(ctx context.Context, systemID string, pctx map[string]string) error {
	return d.control(chassisControlOff)
}

func (d *LocalIPMIDriver) Cycle(ctx context.Context, systemID string, pctx map[string]string) error {
	return d.control(chassisControlCycle)
}

func (d *LocalIPMIDriver) Query(ctx context.Context, systemID string, pctx map[string]string) (State, error) {
	resp, err := d.rawCmd([]byte{netfnChassis, cmdChassisStatus})
	if err != nil {
		return StateError, err
	}
	if len(resp) < 2 {
		return StateError, NewError(KindAction, "short chassis status response")
	}
	// Bit 0 of the current power state byte is "power is on".
	if resp[1]&0x01 != 0 {
		return StateOn, nil
	}
	return StateOff, nil
}

var _ Driver = (*LocalIPMIDriver)(nil)
