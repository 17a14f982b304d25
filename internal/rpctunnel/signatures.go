package rpctunnel

// PDUKind identifies an RTS PDU subtype by its command sequence, the
// same signature-matching scheme FreeRDP's RTS_PDU_SIGNATURE_TABLE uses.
type PDUKind int

const (
	PDUUnknown PDUKind = iota
	PDUCONNA1
	PDUCONNB1
	PDUCONNA3
	PDUCONNC2
	PDUFlowControlAck
	PDUKeepAlive
	PDUPing
	PDUPingTrafficSentNotify
)

type signature struct {
	kind  PDUKind
	flags uint16
	cmds  []CommandType
}

// signatureTable enumerates the command-sequence signatures this
// tunnel recognizes. A PDU matching none of them classifies as
// PDUUnknown; nothing here logs it, and the handshake steps
// (AcceptCONNA3, AcceptCONNC2) reject it with ErrSignatureMatch.
var signatureTable = []signature{
	{PDUCONNA1, RTSFlagNone, []CommandType{CmdVersion, CmdCookie, CmdCookie, CmdReceiveWindowSize}},
	{PDUCONNB1, RTSFlagNone, []CommandType{CmdVersion, CmdCookie, CmdCookie, CmdChannelLifetime, CmdClientKeepalive, CmdAssociationGroupID}},
	{PDUCONNA3, RTSFlagNone, []CommandType{CmdConnectionTimeout}},
	{PDUCONNC2, RTSFlagNone, []CommandType{CmdVersion, CmdReceiveWindowSize, CmdConnectionTimeout}},
	{PDUFlowControlAck, RTSFlagOtherCmd, []CommandType{CmdDestination, CmdFlowControlAck}},
	{PDUKeepAlive, RTSFlagNone, []CommandType{CmdClientKeepalive}},
	{PDUPing, RTSFlagPing, nil},
	{PDUPingTrafficSentNotify, RTSFlagNone, []CommandType{CmdPingTrafficSentNotify}},
}

// ClassifyPDU matches a decoded PDU's flags and command-type sequence
// against the signature table and returns the subtype it corresponds
// to, or PDUUnknown if nothing matches.
func ClassifyPDU(pdu *PDU) PDUKind {
	for _, sig := range signatureTable {
		if sig.flags != pdu.Flags {
			continue
		}
		if !sameCommandSequence(pdu.Commands, sig.cmds) {
			continue
		}
		return sig.kind
	}
	return PDUUnknown
}

func sameCommandSequence(got []Command, want []CommandType) bool {
	if len(got) != len(want) {
		return false
	}
	for i, c := range got {
		if c.Type != want[i] {
			return false
		}
	}
	return true
}
