package rpctunnel

import "crypto/rand"

const rtsVersion uint32 = 1

// newCookie generates a fresh 16-byte RTS cookie.
func newCookie() [16]byte {
	var c [16]byte
	_, _ = rand.Read(c[:])
	return c
}

// BuildCONNA1 builds the client's CONN/A1 PDU, sent on the OUT channel
// to open a virtual connection: version, virtual-connection cookie,
// out-channel cookie, and the client's advertised receive window.
func BuildCONNA1(vcCookie, outChannelCookie [16]byte, receiveWindow uint32) []byte {
	return EncodePDU(RTSFlagNone, []Command{
		{Type: CmdVersion, U32: rtsVersion},
		{Type: CmdCookie, Cookie: vcCookie},
		{Type: CmdCookie, Cookie: outChannelCookie},
		{Type: CmdReceiveWindowSize, U32: receiveWindow},
	})
}

// BuildCONNB1 builds the client's CONN/B1 PDU, sent on the IN channel:
// version, virtual-connection cookie, in-channel cookie, channel
// lifetime, client keep-alive interval, and association group id.
func BuildCONNB1(vcCookie, inChannelCookie [16]byte, channelLifetime, clientKeepalive, associationGroupID uint32) []byte {
	return EncodePDU(RTSFlagNone, []Command{
		{Type: CmdVersion, U32: rtsVersion},
		{Type: CmdCookie, Cookie: vcCookie},
		{Type: CmdCookie, Cookie: inChannelCookie},
		{Type: CmdChannelLifetime, U32: channelLifetime},
		{Type: CmdClientKeepalive, U32: clientKeepalive},
		{Type: CmdAssociationGroupID, U32: associationGroupID},
	})
}

// BuildFlowControlAck builds a FlowControlAck RTS PDU, sent when the
// receiver-available window drops below half of the advertised window.
func BuildFlowControlAck(bytesReceived, availableWindow uint32, channelCookie [16]byte) []byte {
	return EncodePDU(RTSFlagOtherCmd, []Command{
		{Type: CmdDestination, U32: FDOutProxy},
		{Type: CmdFlowControlAck, U32: bytesReceived, U32b: availableWindow, Cookie: channelCookie},
	})
}

// BuildKeepAlive builds a client KeepAlive RTS PDU.
func BuildKeepAlive(interval uint32) []byte {
	return EncodePDU(RTSFlagNone, []Command{
		{Type: CmdClientKeepalive, U32: interval},
	})
}

// ParseCONNA3 extracts the server-advertised connection timeout from a
// decoded CONN/A3 PDU.
func ParseCONNA3(pdu *PDU) (connectionTimeout uint32, ok bool) {
	if ClassifyPDU(pdu) != PDUCONNA3 {
		return 0, false
	}
	return pdu.Commands[0].U32, true
}

// ParseCONNC2 extracts version, receive-window size, and connection
// timeout from a decoded CONN/C2 PDU.
func ParseCONNC2(pdu *PDU) (version, receiveWindowSize, connectionTimeout uint32, ok bool) {
	if ClassifyPDU(pdu) != PDUCONNC2 {
		return 0, 0, 0, false
	}
	return pdu.Commands[0].U32, pdu.Commands[1].U32, pdu.Commands[2].U32, true
}

// VCState is the state of an RPC/RTS virtual connection.
type VCState int

const (
	VCInitial VCState = iota
	VCOutChannelWait
	VCWaitA3W
	VCWaitC2
	VCOpened
	VCFinal
)

func (s VCState) String() string {
	switch s {
	case VCInitial:
		return "INITIAL"
	case VCOutChannelWait:
		return "OUT_CHANNEL_WAIT"
	case VCWaitA3W:
		return "WAIT_A3W"
	case VCWaitC2:
		return "WAIT_C2"
	case VCOpened:
		return "OPENED"
	case VCFinal:
		return "FINAL"
	default:
		return "UNKNOWN"
	}
}

const defaultReceiveWindow uint32 = 0x10000
const defaultChannelLifetime uint32 = 0x40000000
const defaultKeepAliveInterval uint32 = 300_000 // ms, 300s
const defaultPingOriginatorTimeout uint32 = 30

// VirtualConnection tracks the client side of an RPC/RTS virtual
// connection: its cookies, per-channel flow-control windows, and the
// CONN handshake state machine.
type VirtualConnection struct {
	VCCookie          [16]byte
	InChannelCookie   [16]byte
	OutChannelCookie  [16]byte
	AssociationGroupID uint32

	ReceiveWindow      uint32
	ChannelLifetime    uint32
	KeepAliveInterval  uint32
	PingTimeout        uint32

	BytesSent             uint64
	BytesReceived         uint64
	SenderAvailableWindow uint32
	ReceiverAvailableWindow uint32

	State VCState
}

// NewVirtualConnection creates a connection with freshly generated
// cookies and the spec's default window/timeout values.
func NewVirtualConnection() *VirtualConnection {
	return &VirtualConnection{
		VCCookie:                newCookie(),
		InChannelCookie:         newCookie(),
		OutChannelCookie:        newCookie(),
		ReceiveWindow:           defaultReceiveWindow,
		ChannelLifetime:         defaultChannelLifetime,
		KeepAliveInterval:       defaultKeepAliveInterval,
		PingTimeout:             defaultPingOriginatorTimeout,
		ReceiverAvailableWindow: defaultReceiveWindow,
		State:                   VCInitial,
	}
}

// BeginHandshake transitions to OUT_CHANNEL_WAIT and returns the
// CONN/A1 PDU to send on the OUT channel.
func (vc *VirtualConnection) BeginHandshake() []byte {
	vc.State = VCOutChannelWait
	return BuildCONNA1(vc.VCCookie, vc.OutChannelCookie, vc.ReceiveWindow)
}

// SendCONNB1 transitions to WAIT_A3W and returns the CONN/B1 PDU to
// send on the IN channel.
func (vc *VirtualConnection) SendCONNB1() []byte {
	vc.State = VCWaitA3W
	return BuildCONNB1(vc.VCCookie, vc.InChannelCookie, vc.ChannelLifetime, vc.KeepAliveInterval, vc.AssociationGroupID)
}

// AcceptCONNA3 processes a CONN/A3 PDU received on the OUT channel,
// advancing to WAIT_C2.
func (vc *VirtualConnection) AcceptCONNA3(pdu *PDU) error {
	timeout, ok := ParseCONNA3(pdu)
	if !ok {
		return ErrSignatureMatch
	}
	vc.PingTimeout = timeout
	vc.State = VCWaitC2
	return nil
}

// AcceptCONNC2 processes a CONN/C2 PDU received on the OUT channel,
// completing the handshake (state OPENED).
func (vc *VirtualConnection) AcceptCONNC2(pdu *PDU) error {
	_, windowSize, timeout, ok := ParseCONNC2(pdu)
	if !ok {
		return ErrSignatureMatch
	}
	vc.SenderAvailableWindow = windowSize
	vc.PingTimeout = timeout
	vc.State = VCOpened
	return nil
}

// OnDataReceived records bytes received on the OUT channel and
// reports whether a FlowControlAck should now be sent (receiver
// window dropped below half the advertised window).
func (vc *VirtualConnection) OnDataReceived(n uint64) (needsAck bool) {
	vc.BytesReceived += n
	if uint64(vc.ReceiverAvailableWindow) > n {
		vc.ReceiverAvailableWindow -= uint32(n)
	} else {
		vc.ReceiverAvailableWindow = 0
	}
	if vc.ReceiverAvailableWindow < vc.ReceiveWindow/2 {
		return true
	}
	return false
}

// OnDataSent records bytes sent on the IN channel.
func (vc *VirtualConnection) OnDataSent(n uint64) {
	vc.BytesSent += n
}

// AckSent resets the receiver window bookkeeping after a
// FlowControlAck has been sent.
func (vc *VirtualConnection) AckSent() {
	vc.ReceiverAvailableWindow = vc.ReceiveWindow
}

// ApplyPeerFlowControlAck updates SenderAvailableWindow from a
// FlowControlAck PDU received from the server: AvailableWindow minus
// the bytes sent but not yet acknowledged as received.
func (vc *VirtualConnection) ApplyPeerFlowControlAck(bytesReceived, availableWindow uint32) {
	inFlight := vc.BytesSent - uint64(bytesReceived)
	if uint64(availableWindow) > inFlight {
		vc.SenderAvailableWindow = availableWindow - uint32(inFlight)
	} else {
		vc.SenderAvailableWindow = 0
	}
}
