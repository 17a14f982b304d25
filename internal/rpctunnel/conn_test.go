package rpctunnel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVirtualConnection_HandshakeStates(t *testing.T) {
	vc := NewVirtualConnection()
	assert.Equal(t, VCInitial, vc.State)

	vc.BeginHandshake()
	assert.Equal(t, VCOutChannelWait, vc.State)

	vc.SendCONNB1()
	assert.Equal(t, VCWaitA3W, vc.State)

	a3 := EncodePDU(RTSFlagNone, []Command{{Type: CmdConnectionTimeout, U32: 30}})
	pdu, err := DecodePDU(a3)
	require.NoError(t, err)
	require.NoError(t, vc.AcceptCONNA3(pdu))
	assert.Equal(t, VCWaitC2, vc.State)
	assert.Equal(t, uint32(30), vc.PingTimeout)

	c2 := EncodePDU(RTSFlagNone, []Command{
		{Type: CmdVersion, U32: 1},
		{Type: CmdReceiveWindowSize, U32: 0x20000},
		{Type: CmdConnectionTimeout, U32: 60},
	})
	pdu2, err := DecodePDU(c2)
	require.NoError(t, err)
	require.NoError(t, vc.AcceptCONNC2(pdu2))
	assert.Equal(t, VCOpened, vc.State)
	assert.Equal(t, uint32(0x20000), vc.SenderAvailableWindow)
}

func TestVirtualConnection_AcceptCONNA3_WrongSignature(t *testing.T) {
	vc := NewVirtualConnection()
	wrong := EncodePDU(RTSFlagNone, []Command{{Type: CmdClientKeepalive, U32: 1}})
	pdu, err := DecodePDU(wrong)
	require.NoError(t, err)
	assert.ErrorIs(t, vc.AcceptCONNA3(pdu), ErrSignatureMatch)
}

func TestVirtualConnection_FlowControl(t *testing.T) {
	vc := NewVirtualConnection()
	vc.BytesSent = 100

	vc.ApplyPeerFlowControlAck(40, 0x10000)
	assert.Equal(t, uint32(0x10000-60), vc.SenderAvailableWindow)

	vc.ReceiverAvailableWindow = vc.ReceiveWindow/2 - 1
	assert.True(t, vc.OnDataReceived(0))
	vc.AckSent()
	assert.Equal(t, vc.ReceiveWindow, vc.ReceiverAvailableWindow)
}
