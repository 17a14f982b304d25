package rpctunnel

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"time"
)

var ErrTunnelNotOpen = errors.New("rpctunnel: virtual connection is not open")

// Tunnel drives the CONN handshake and data flow over a pair of
// authenticated IN/OUT HTTP channels.
type Tunnel struct {
	vc  *VirtualConnection
	in  *http.Client
	out *http.Client

	inURL  string
	outURL string

	outBody io.ReadCloser
	metrics *Metrics
}

// SetMetrics attaches a Metrics collector to the tunnel. Passing nil
// disables metrics recording.
func (t *Tunnel) SetMetrics(m *Metrics) {
	t.metrics = m
	t.metrics.recordState(t.vc.State)
}

// Open authenticates both channels via NTLM-over-HTTP and runs the
// CONN/A1 -> CONN/B1 -> CONN/A3 -> CONN/C2 handshake, leaving the
// tunnel in the OPENED state on success.
func Open(ctx context.Context, inCfg, outCfg ChannelConfig) (*Tunnel, error) {
	inClient, err := AuthenticateChannel(inCfg, DirectionIn)
	if err != nil {
		return nil, err
	}
	outClient, err := AuthenticateChannel(outCfg, DirectionOut)
	if err != nil {
		return nil, err
	}

	t := &Tunnel{
		vc:     NewVirtualConnection(),
		in:     inClient,
		out:    outClient,
		inURL:  inCfg.URL,
		outURL: outCfg.URL,
	}

	connA1 := t.vc.BeginHandshake()
	outResp, outBody, err := t.postOut(ctx, connA1)
	if err != nil {
		return nil, err
	}
	t.outBody = outBody
	_ = outResp

	connB1 := t.vc.SendCONNB1()
	if err := t.postIn(ctx, connB1); err != nil {
		return nil, err
	}

	a3Frame, err := t.readOutPDU(ctx)
	if err != nil {
		return nil, err
	}
	a3, err := DecodePDU(a3Frame)
	if err != nil {
		return nil, err
	}
	if err := t.vc.AcceptCONNA3(a3); err != nil {
		return nil, err
	}

	c2Frame, err := t.readOutPDU(ctx)
	if err != nil {
		return nil, err
	}
	c2, err := DecodePDU(c2Frame)
	if err != nil {
		return nil, err
	}
	if err := t.vc.AcceptCONNC2(c2); err != nil {
		return nil, err
	}
	t.metrics.recordState(t.vc.State)

	return t, nil
}

// State returns the virtual connection's current handshake state.
func (t *Tunnel) State() VCState {
	return t.vc.State
}

func (t *Tunnel) postOut(ctx context.Context, body []byte) (*http.Response, io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, DirectionOut.method(), t.outURL, bytes.NewReader(body))
	if err != nil {
		return nil, nil, err
	}
	resp, err := t.out.Do(req)
	if err != nil {
		return nil, nil, err
	}
	return resp, resp.Body, nil
}

func (t *Tunnel) postIn(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, DirectionIn.method(), t.inURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	resp, err := t.in.Do(req)
	if err != nil {
		return err
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	t.vc.OnDataSent(uint64(len(body)))
	t.metrics.recordSent(len(body))
	return nil
}

// readOutPDU reads one length-prefixed RTS PDU frame from the
// streaming OUT-channel response body.
func (t *Tunnel) readOutPDU(ctx context.Context) ([]byte, error) {
	if t.outBody == nil {
		return nil, ErrTunnelNotOpen
	}
	header := make([]byte, 20)
	if _, err := io.ReadFull(t.outBody, header); err != nil {
		return nil, err
	}
	fragLen := int(header[8]) | int(header[9])<<8
	if fragLen < 20 {
		return nil, ErrShortPDU
	}
	rest := make([]byte, fragLen-20)
	if len(rest) > 0 {
		if _, err := io.ReadFull(t.outBody, rest); err != nil {
			return nil, err
		}
	}
	frame := append(header, rest...)
	t.vc.OnDataReceived(uint64(len(frame)))
	t.metrics.recordReceived(len(frame))
	return frame, nil
}

// MaybeSendFlowControlAck sends a FlowControlAck on the IN channel if
// the receiver window has dropped below half the advertised window.
func (t *Tunnel) MaybeSendFlowControlAck(ctx context.Context) error {
	if !t.vc.OnDataReceived(0) {
		return nil
	}
	ack := BuildFlowControlAck(uint32(t.vc.BytesReceived), t.vc.ReceiveWindow, t.vc.OutChannelCookie)
	if err := t.postIn(ctx, ack); err != nil {
		return err
	}
	t.vc.AckSent()
	t.metrics.recordFlowControlAck()
	return nil
}

// SendKeepAlive emits a KeepAlive RTS PDU on the IN channel.
func (t *Tunnel) SendKeepAlive(ctx context.Context) error {
	if err := t.postIn(ctx, BuildKeepAlive(t.vc.KeepAliveInterval)); err != nil {
		return err
	}
	t.metrics.recordKeepAlive()
	return nil
}

// KeepAliveInterval returns how often SendKeepAlive should be called.
func (t *Tunnel) KeepAliveInterval() time.Duration {
	return time.Duration(t.vc.KeepAliveInterval) * time.Millisecond
}

// Close releases the OUT channel's streaming response body.
func (t *Tunnel) Close() error {
	if t.outBody != nil {
		return t.outBody.Close()
	}
	return nil
}
