package driver

import (
	"context"
	"fmt"
	"net"
	"strings"
)

// WOLDriver powers nodes on by broadcasting a Wake-on-LAN magic
// packet. It cannot power nodes off and cannot observe their state, so
// it is not queryable. Context key: mac_address.
type WOLDriver struct {
	// BroadcastAddress is the UDP address the magic packet is sent to,
	// typically 255.255.255.255:9 or a subnet broadcast address.
	BroadcastAddress string
}

func NewWOLDriver(broadcastAddress string) *WOLDriver {
	if broadcastAddress == "" {
		broadcastAddress = "255.255.255.255:9"
	}
	return &WOLDriver{BroadcastAddress: broadcastAddress}
}

func (d *WOLDriver) Name() string { return "wol" }

func (d *WOLDriver) Queryable() bool { return false }

func (d *WOLDriver) DetectMissingPackages() []string { return nil }

func (d *WOLDriver) On(ctx context.Context, systemID string, pctx map[string]string) error {
	mac := pctx["mac_address"]
	packet, err := magicPacket(mac)
	if err != nil {
		return err
	}

	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "udp", d.BroadcastAddress)
	if err != nil {
		return NewError(KindConnection, "failed to open UDP socket to %s: %v",
			d.BroadcastAddress, err)
	}
	defer conn.Close()

	if _, err := conn.Write(packet); err != nil {
		return NewError(KindConnection, "failed to send WoL packet for %s: %v", mac, err)
	}
	return nil
}

func (d *WOLDriver) Off(ctx context.Context, systemID string, pctx map[string]string) error {
	return NewError(KindSetting, "Wake-on-LAN cannot power a node off")
}

func (d *WOLDriver) Cycle(ctx context.Context, systemID string, pctx map[string]string) error {
	return NewError(KindSetting, "Wake-on-LAN cannot power cycle a node")
}

func (d *WOLDriver) Query(ctx context.Context, systemID string, pctx map[string]string) (State, error) {
	return StateError, NewError(KindSetting, "Wake-on-LAN cannot query power state")
}

// magicPacket builds the 102-byte WoL frame for a colon-separated MAC
// address: 6 bytes of 0xFF followed by the MAC repeated 16 times.
func magicPacket(macAddr string) ([]byte, error) {
	parts := strings.Split(macAddr, ":")
	if len(parts) != 6 {
		return nil, NewError(KindSetting, "invalid MAC address format: %s", macAddr)
	}
	mac := make([]byte, 6)
	for i, part := range parts {
		var value byte
		if _, err := fmt.Sscanf(part, "%02x", &value); err != nil {
			return nil, NewError(KindSetting, "invalid MAC address part: %s", part)
		}
		mac[i] = value
	}

	packet := make([]byte, 102)
	for i := 0; i < 6; i++ {
		packet[i] = 0xFF
	}
	for i := 1; i <= 16; i++ {
		copy(packet[i*6:], mac)
	}
	return packet, nil
}

var _ Driver = (*WOLDriver)(nil)
