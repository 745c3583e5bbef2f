package ethercat

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/afpacket"
	"github.com/google/gopacket/layers"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("subsystem", "ethercat")

// etherCATEtherType is the reserved EtherType for EtherCAT frames
// (IEC 61158), used instead of UDP/IP so the datagram stays on the local
// segment and skips the network stack entirely.
const etherCATEtherType = 0x88a4

// AFPacketTransport exchanges EtherCAT frames over a raw AF_PACKET socket
// on a single network interface. It owns one fixed-size input and output
// process-data image per enumerated slave.
type AFPacketTransport struct {
	iface   string
	handle  *afpacket.TPacket
	srcMAC  [6]byte

	mu     sync.Mutex
	slaves []SlaveInfo
	inputs [][]byte
	outputs [][]byte
}

// Dial opens a raw socket on iface. The interface must already be up; no
// attempt is made to configure it.
func Dial(iface string) (*AFPacketTransport, error) {
	h, err := afpacket.NewTPacket(
		afpacket.OptInterface(iface),
		afpacket.OptFrameSize(2048),
		afpacket.OptBlockSize(2048*128),
		afpacket.OptNumBlocks(8),
		afpacket.OptPollTimeout(10*time.Millisecond),
	)
	if err != nil {
		return nil, fmt.Errorf("ethercat: open %s: %w", iface, err)
	}
	return &AFPacketTransport{iface: iface, handle: h}, nil
}

func (t *AFPacketTransport) Close() error {
	t.handle.Close()
	return nil
}

// EnumerateSlaves sends a broadcast identity query and collects replies
// until the poll times out. Real EtherCAT enumeration walks the physical
// ring via auto-increment addressing; that framing detail is out of scope
// here, so this records whichever slaves answer an application-layer
// identity broadcast within one poll window.
func (t *AFPacketTransport) EnumerateSlaves(ctx context.Context) ([]SlaveInfo, error) {
	frame := t.buildFrame(0, cmdEnumerate, nil)
	if err := t.handle.WritePacketData(frame); err != nil {
		return nil, fmt.Errorf("ethercat: enumerate write: %w", err)
	}

	var slaves []SlaveInfo
	deadline := time.Now().Add(200 * time.Millisecond)
	for time.Now().Before(deadline) {
		data, _, err := t.handle.ReadPacketData()
		if err != nil {
			continue
		}
		info, ok := parseEnumerateReply(data)
		if ok {
			slaves = append(slaves, info)
		}
	}

	t.mu.Lock()
	t.slaves = slaves
	t.inputs = make([][]byte, len(slaves))
	t.outputs = make([][]byte, len(slaves))
	for i := range slaves {
		t.inputs[i] = make([]byte, 1)
		t.outputs[i] = make([]byte, 1)
	}
	t.mu.Unlock()

	return slaves, nil
}

func (t *AFPacketTransport) SlaveCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.slaves)
}

func (t *AFPacketTransport) ReadNV(ctx context.Context, addr SlaveAddr, word uint16) (uint16, error) {
	payload := make([]byte, 4)
	binary.LittleEndian.PutUint16(payload[0:2], uint16(addr))
	binary.LittleEndian.PutUint16(payload[2:4], word)
	frame := t.buildFrame(addr, cmdNVRead, payload)
	if err := t.handle.WritePacketData(frame); err != nil {
		return 0, fmt.Errorf("ethercat: nv read write: %w", err)
	}
	reply, err := t.awaitReply(cmdNVRead, addr)
	if err != nil {
		return 0, err
	}
	if len(reply) < 2 {
		return 0, fmt.Errorf("ethercat: short nv read reply")
	}
	return binary.LittleEndian.Uint16(reply), nil
}

func (t *AFPacketTransport) WriteNV(ctx context.Context, addr SlaveAddr, word uint16, value uint16) error {
	payload := make([]byte, 6)
	binary.LittleEndian.PutUint16(payload[0:2], uint16(addr))
	binary.LittleEndian.PutUint16(payload[2:4], word)
	binary.LittleEndian.PutUint16(payload[4:6], value)
	frame := t.buildFrame(addr, cmdNVWrite, payload)
	if err := t.handle.WritePacketData(frame); err != nil {
		return fmt.Errorf("ethercat: nv write: %w", err)
	}
	_, err := t.awaitReply(cmdNVWrite, addr)
	return err
}

func (t *AFPacketTransport) ToPreOp(ctx context.Context) error  { return t.transition(cmdToPreOp) }
func (t *AFPacketTransport) ToSafeOp(ctx context.Context) error { return t.transition(cmdToSafeOp) }
func (t *AFPacketTransport) ToOp(ctx context.Context) error     { return t.transition(cmdToOp) }

func (t *AFPacketTransport) transition(cmd byte) error {
	frame := t.buildFrame(0, cmd, nil)
	if err := t.handle.WritePacketData(frame); err != nil {
		return fmt.Errorf("ethercat: state transition write: %w", err)
	}
	_, err := t.awaitReply(cmd, 0)
	return err
}

// TxRx exchanges one process-data frame: outputs for every slave are
// concatenated into the frame payload in enumeration order, and the
// reply's payload is split back out into each slave's input image.
func (t *AFPacketTransport) TxRx(ctx context.Context) error {
	t.mu.Lock()
	var payload []byte
	for _, out := range t.outputs {
		payload = append(payload, out...)
	}
	n := len(t.slaves)
	t.mu.Unlock()

	frame := t.buildFrame(0, cmdProcessData, payload)
	if err := t.handle.WritePacketData(frame); err != nil {
		return fmt.Errorf("ethercat: tx/rx write: %w", err)
	}
	reply, err := t.awaitReply(cmdProcessData, 0)
	if err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	off := 0
	for i := 0; i < n && i < len(t.inputs); i++ {
		ln := len(t.inputs[i])
		if off+ln > len(reply) {
			break
		}
		copy(t.inputs[i], reply[off:off+ln])
		off += ln
	}
	return nil
}

func (t *AFPacketTransport) InputsRaw(slave int) []byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.inputs[slave]
}

func (t *AFPacketTransport) OutputsRawMut(slave int) []byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.outputs[slave]
}

func (t *AFPacketTransport) awaitReply(wantCmd byte, wantAddr SlaveAddr) ([]byte, error) {
	deadline := time.Now().Add(30 * time.Millisecond)
	for time.Now().Before(deadline) {
		data, _, err := t.handle.ReadPacketData()
		if err != nil {
			continue
		}
		cmd, addr, payload, ok := parseFrame(data)
		if ok && cmd == wantCmd && (wantAddr == 0 || addr == wantAddr) {
			return payload, nil
		}
	}
	return nil, fmt.Errorf("ethercat: no reply for cmd %d", wantCmd)
}

const (
	cmdEnumerate   byte = 1
	cmdNVRead      byte = 2
	cmdNVWrite     byte = 3
	cmdToPreOp     byte = 4
	cmdToSafeOp    byte = 5
	cmdToOp        byte = 6
	cmdProcessData byte = 7
)

// buildFrame wraps payload in an Ethernet frame using the EtherCAT
// EtherType, with a one-byte command and a two-byte slave address header.
func (t *AFPacketTransport) buildFrame(addr SlaveAddr, cmd byte, payload []byte) []byte {
	eth := &layers.Ethernet{
		SrcMAC:       t.srcMAC[:],
		DstMAC:       []byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff},
		EthernetType: etherCATEtherType,
	}
	body := make([]byte, 3+len(payload))
	body[0] = cmd
	binary.LittleEndian.PutUint16(body[1:3], uint16(addr))
	copy(body[3:], payload)

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true}
	_ = gopacket.SerializeLayers(buf, opts, eth, gopacket.Payload(body))
	return buf.Bytes()
}

func parseFrame(data []byte) (cmd byte, addr SlaveAddr, payload []byte, ok bool) {
	pkt := gopacket.NewPacket(data, layers.LayerTypeEthernet, gopacket.NoCopy)
	eth, _ := pkt.Layer(layers.LayerTypeEthernet).(*layers.Ethernet)
	if eth == nil || eth.EthernetType != etherCATEtherType {
		return 0, 0, nil, false
	}
	body := eth.Payload
	if len(body) < 3 {
		return 0, 0, nil, false
	}
	return body[0], SlaveAddr(binary.LittleEndian.Uint16(body[1:3])), body[3:], true
}

func parseEnumerateReply(data []byte) (SlaveInfo, bool) {
	cmd, addr, payload, ok := parseFrame(data)
	if !ok || cmd != cmdEnumerate || len(payload) < 12 {
		return SlaveInfo{}, false
	}
	return SlaveInfo{
		Addr:      addr,
		VendorID:  binary.LittleEndian.Uint32(payload[0:4]),
		ProductID: binary.LittleEndian.Uint32(payload[4:8]),
		Revision:  binary.LittleEndian.Uint32(payload[8:12]),
	}, true
}
