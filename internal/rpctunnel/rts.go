// Package rpctunnel implements the RPC-over-HTTP ("RPC/RTS") gateway
// transport: two parallel HTTP channels (RPC_IN_DATA, RPC_OUT_DATA)
// each authenticated with NTLM-over-HTTP, a CONN/A-B-A3-C2 virtual
// connection handshake, RTS flow-control PDUs, and keep-alive pings.
// Modeled on the RTS PDU-signature dispatch table and connection
// state machine in FreeRDP's core/rts.c.
package rpctunnel

import (
	"encoding/binary"
	"errors"

	"github.com/dvorak-labs/rdpwire/internal/wire"
)

// RTS PDU header constants.
const (
	rpcVersMajor  = 5
	rpcVersMinor  = 0
	ptypeRTS      = 0x14
	pfcFirstFrag  = 0x01
	pfcLastFrag   = 0x02
	pfcFirstLast  = pfcFirstFrag | pfcLastFrag
)

var drep = [4]byte{0x10, 0x00, 0x00, 0x00}

// RTS command types (§2.2.3.5 of [MS-RPCH]).
type CommandType uint16

const (
	CmdReceiveWindowSize     CommandType = 0
	CmdFlowControlAck        CommandType = 1
	CmdConnectionTimeout     CommandType = 2
	CmdCookie                CommandType = 3
	CmdChannelLifetime       CommandType = 4
	CmdClientKeepalive       CommandType = 5
	CmdVersion               CommandType = 6
	CmdEmpty                 CommandType = 7
	CmdPadding               CommandType = 8
	CmdNegativeANCE          CommandType = 9
	CmdANCE                  CommandType = 10
	CmdClientAddress         CommandType = 11
	CmdAssociationGroupID    CommandType = 12
	CmdDestination           CommandType = 13
	CmdPingTrafficSentNotify CommandType = 14
)

// Destination values for the Destination command.
const (
	FDClient    uint32 = 0
	FDInProxy   uint32 = 1
	FDOutProxy  uint32 = 2
	FDServer    uint32 = 3
)

// RTS flag bits (header.Flags).
const (
	RTSFlagNone        uint16 = 0x0000
	RTSFlagPing        uint16 = 0x0001
	RTSFlagOtherCmd    uint16 = 0x0002
	RTSFlagRecycleChan uint16 = 0x0004
	RTSFlagInChannel   uint16 = 0x0008
	RTSFlagOutChannel  uint16 = 0x0010
	RTSFlagEOF         uint16 = 0x0020
	RTSFlagEcho        uint16 = 0x0040
)

var (
	ErrShortPDU       = errors.New("rpctunnel: RTS PDU too short")
	ErrUnknownCommand = errors.New("rpctunnel: unknown RTS command type")
	ErrSignatureMatch = errors.New("rpctunnel: no RTS PDU signature matched")
)

// Command is one decoded RTS command (tag + payload).
type Command struct {
	Type CommandType
	// Scalar fields populated according to Type; only the relevant
	// ones are meaningful for any given command.
	U32        uint32
	U32b       uint32
	Cookie     [16]byte
	AddrType   uint32
	Addr       []byte
	PaddingLen uint32
}

// PDU is a decoded RTS control-plane message.
type PDU struct {
	Flags    uint16
	Commands []Command
}

// EncodePDU serializes an RTS control PDU with the given flags and
// commands into a full 20-byte-header-prefixed wire frame.
func EncodePDU(flags uint16, cmds []Command) []byte {
	w := wire.NewWriter()
	w.WriteU8(rpcVersMajor)
	w.WriteU8(rpcVersMinor)
	w.WriteU8(ptypeRTS)
	w.WriteU8(pfcFirstLast)
	w.WriteBytes(drep[:])
	lenPos := w.Len()
	w.WriteU16(0) // frag_length placeholder
	w.WriteU16(0) // auth_length
	w.WriteU32(0) // call_id
	w.WriteU16(flags)
	w.WriteU16(uint16(len(cmds)))

	for _, c := range cmds {
		encodeCommand(w, c)
	}

	buf := w.Bytes()
	binary.LittleEndian.PutUint16(buf[lenPos:], uint16(len(buf)))
	return buf
}

func encodeCommand(w *wire.Writer, c Command) {
	w.WriteU16(uint16(c.Type))
	switch c.Type {
	case CmdReceiveWindowSize, CmdConnectionTimeout, CmdChannelLifetime,
		CmdClientKeepalive, CmdAssociationGroupID, CmdDestination,
		CmdPingTrafficSentNotify, CmdVersion:
		w.WriteU32(c.U32)
	case CmdFlowControlAck:
		w.WriteU32(c.U32)  // BytesReceived
		w.WriteU32(c.U32b) // AvailableWindow
		w.WriteBytes(c.Cookie[:])
	case CmdCookie:
		w.WriteBytes(c.Cookie[:])
	case CmdClientAddress:
		w.WriteU32(c.AddrType)
		w.WriteBytes(c.Addr)
	case CmdPadding:
		w.WriteU32(c.PaddingLen)
		w.WriteBytes(make([]byte, c.PaddingLen))
	case CmdEmpty, CmdNegativeANCE, CmdANCE:
		// no payload
	}
}

// DecodePDU parses the wire form of an RTS control PDU.
func DecodePDU(data []byte) (*PDU, error) {
	r := wire.NewReader(data)
	if r.Len() < 20 {
		return nil, ErrShortPDU
	}
	r.Skip(1) // vers
	r.Skip(1) // vers_minor
	ptype, err := r.U8()
	if err != nil {
		return nil, err
	}
	if ptype != ptypeRTS {
		return nil, errors.New("rpctunnel: not an RTS PDU")
	}
	r.Skip(1) // pfc_flags
	r.Skip(4) // drep
	if _, err := r.U16(); err != nil { // frag_length
		return nil, err
	}
	if _, err := r.U16(); err != nil { // auth_length
		return nil, err
	}
	if _, err := r.U32(); err != nil { // call_id
		return nil, err
	}
	flags, err := r.U16()
	if err != nil {
		return nil, err
	}
	numCommands, err := r.U16()
	if err != nil {
		return nil, err
	}

	pdu := &PDU{Flags: flags}
	for i := 0; i < int(numCommands); i++ {
		cmd, err := decodeCommand(r)
		if err != nil {
			return nil, err
		}
		pdu.Commands = append(pdu.Commands, cmd)
	}
	return pdu, nil
}

func decodeCommand(r *wire.Reader) (Command, error) {
	typeVal, err := r.U16()
	if err != nil {
		return Command{}, err
	}
	c := Command{Type: CommandType(typeVal)}

	switch c.Type {
	case CmdReceiveWindowSize, CmdConnectionTimeout, CmdChannelLifetime,
		CmdClientKeepalive, CmdAssociationGroupID, CmdDestination,
		CmdPingTrafficSentNotify, CmdVersion:
		c.U32, err = r.U32()
	case CmdFlowControlAck:
		c.U32, err = r.U32()
		if err == nil {
			c.U32b, err = r.U32()
		}
		if err == nil {
			var cookie []byte
			cookie, err = r.Bytes(16)
			copy(c.Cookie[:], cookie)
		}
	case CmdCookie:
		var cookie []byte
		cookie, err = r.Bytes(16)
		copy(c.Cookie[:], cookie)
	case CmdClientAddress:
		c.AddrType, err = r.U32()
		if err == nil {
			n := 4
			if c.AddrType == 0x17 { // AF_INET6
				n = 16
			}
			c.Addr, err = r.Bytes(n)
		}
	case CmdPadding:
		c.PaddingLen, err = r.U32()
		if err == nil {
			_, err = r.Bytes(int(c.PaddingLen))
		}
	case CmdEmpty, CmdNegativeANCE, CmdANCE:
		// no payload
	default:
		return Command{}, ErrUnknownCommand
	}
	return c, err
}
