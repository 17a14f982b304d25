package rpctunnel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodePDU_RoundTrip(t *testing.T) {
	cookie := newCookie()
	frame := EncodePDU(RTSFlagNone, []Command{
		{Type: CmdVersion, U32: 1},
		{Type: CmdCookie, Cookie: cookie},
		{Type: CmdReceiveWindowSize, U32: 0x10000},
	})

	pdu, err := DecodePDU(frame)
	require.NoError(t, err)
	require.Len(t, pdu.Commands, 3)
	assert.Equal(t, CmdVersion, pdu.Commands[0].Type)
	assert.Equal(t, uint32(1), pdu.Commands[0].U32)
	assert.Equal(t, CmdCookie, pdu.Commands[1].Type)
	assert.Equal(t, cookie, pdu.Commands[1].Cookie)
	assert.Equal(t, CmdReceiveWindowSize, pdu.Commands[2].Type)
	assert.Equal(t, uint32(0x10000), pdu.Commands[2].U32)
}

func TestDecodePDU_ShortBuffer(t *testing.T) {
	_, err := DecodePDU([]byte{0x05, 0x00, 0x14})
	assert.ErrorIs(t, err, ErrShortPDU)
}

func TestEncodeDecodePDU_FlowControlAck(t *testing.T) {
	cookie := newCookie()
	frame := BuildFlowControlAck(1024, 0x8000, cookie)

	pdu, err := DecodePDU(frame)
	require.NoError(t, err)
	require.Len(t, pdu.Commands, 2)
	assert.Equal(t, CmdDestination, pdu.Commands[0].Type)
	assert.Equal(t, FDOutProxy, pdu.Commands[0].U32)
	assert.Equal(t, CmdFlowControlAck, pdu.Commands[1].Type)
	assert.Equal(t, uint32(1024), pdu.Commands[1].U32)
	assert.Equal(t, uint32(0x8000), pdu.Commands[1].U32b)
	assert.Equal(t, cookie, pdu.Commands[1].Cookie)
}

func TestClassifyPDU_CONNA1(t *testing.T) {
	vc := NewVirtualConnection()
	frame := vc.BeginHandshake()
	pdu, err := DecodePDU(frame)
	require.NoError(t, err)
	assert.Equal(t, PDUCONNA1, ClassifyPDU(pdu))
}

func TestClassifyPDU_CONNB1(t *testing.T) {
	vc := NewVirtualConnection()
	frame := vc.SendCONNB1()
	pdu, err := DecodePDU(frame)
	require.NoError(t, err)
	assert.Equal(t, PDUCONNB1, ClassifyPDU(pdu))
}

func TestClassifyPDU_FlowControlAck(t *testing.T) {
	frame := BuildFlowControlAck(10, 20, newCookie())
	pdu, err := DecodePDU(frame)
	require.NoError(t, err)
	assert.Equal(t, PDUFlowControlAck, ClassifyPDU(pdu))
}

func TestClassifyPDU_Unknown(t *testing.T) {
	pdu := &PDU{Flags: RTSFlagEcho, Commands: []Command{{Type: CmdEmpty}}}
	assert.Equal(t, PDUUnknown, ClassifyPDU(pdu))
}

func TestEncodeCommand_ClientAddress(t *testing.T) {
	frame := EncodePDU(RTSFlagNone, []Command{
		{Type: CmdClientAddress, AddrType: 0x0002, Addr: []byte{127, 0, 0, 1}},
	})
	pdu, err := DecodePDU(frame)
	require.NoError(t, err)
	require.Len(t, pdu.Commands, 1)
	assert.Equal(t, uint32(0x0002), pdu.Commands[0].AddrType)
	assert.Equal(t, []byte{127, 0, 0, 1}, pdu.Commands[0].Addr)
}

func TestEncodeCommand_Padding(t *testing.T) {
	frame := EncodePDU(RTSFlagNone, []Command{
		{Type: CmdPadding, PaddingLen: 8},
	})
	pdu, err := DecodePDU(frame)
	require.NoError(t, err)
	require.Len(t, pdu.Commands, 1)
	assert.Equal(t, uint32(8), pdu.Commands[0].PaddingLen)
}
