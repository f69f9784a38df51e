package envelope_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kipa/internal/cryptoprovider"
	"kipa/internal/cryptoprovider/noisebox"
	"kipa/internal/envelope"
	"kipa/internal/wire"
	"kipa/internal/wirecodec/jsoncodec"
)

func keyOf(t *testing.T, p cryptoprovider.Provider) wire.Key {
	t.Helper()
	pub := p.LocalPublicKey()
	return wire.Key{Fingerprint: p.Fingerprint(pub), Raw: pub.Raw}
}

func newParty(t *testing.T) (*envelope.Envelope, wire.Key) {
	t.Helper()
	provider, err := noisebox.Generate()
	require.NoError(t, err)
	return envelope.New(provider, jsoncodec.New()), keyOf(t, provider)
}

func TestFastModeRoundTrip(t *testing.T) {
	requesterEnv, requesterKey := newParty(t)
	responderEnv, responderKey := newParty(t)

	sender := wire.SenderNode{Key: requesterKey, Port: 9001}
	reqBody := wire.RequestBody{MessageID: 42, Version: "1", Kind: wire.KindQuery, Target: &responderKey}

	req, err := requesterEnv.SealRequest(wire.ModeFast, sender, responderKey, reqBody)
	require.NoError(t, err)
	assert.Equal(t, requesterKey, req.Sender.Key)

	gotReqBody, err := responderEnv.OpenRequest(req)
	require.NoError(t, err)
	assert.Equal(t, reqBody, gotReqBody)

	respBody := wire.ResponseBody{MessageID: reqBody.MessageID, Version: "1", Kind: wire.KindQuery, Found: &wire.Node{Key: responderKey}}
	resp, err := responderEnv.SealResponse(wire.ModeFast, requesterKey, respBody)
	require.NoError(t, err)

	gotRespBody, err := requesterEnv.OpenResponse(resp, reqBody.MessageID, responderKey)
	require.NoError(t, err)
	assert.Equal(t, respBody, gotRespBody)
}

func TestPrivateModeRoundTrip(t *testing.T) {
	requesterEnv, requesterKey := newParty(t)
	responderEnv, responderKey := newParty(t)

	sender := wire.SenderNode{Key: requesterKey, Port: 9002}
	reqBody := wire.RequestBody{MessageID: 7, Version: "1", Kind: wire.KindSearch, Target: &responderKey}

	req, err := requesterEnv.SealRequest(wire.ModePrivate, sender, responderKey, reqBody)
	require.NoError(t, err)
	assert.NotEmpty(t, req.Envelope.SenderPublicKey)

	gotReqBody, err := responderEnv.OpenRequest(req)
	require.NoError(t, err)
	assert.Equal(t, reqBody, gotReqBody)

	respBody := wire.ResponseBody{MessageID: reqBody.MessageID, Version: "1", Kind: wire.KindSearch, Nodes: []wire.Node{{Key: responderKey}}}
	resp, err := responderEnv.SealResponse(wire.ModePrivate, requesterKey, respBody)
	require.NoError(t, err)

	gotRespBody, err := requesterEnv.OpenResponse(resp, reqBody.MessageID, responderKey)
	require.NoError(t, err)
	assert.Equal(t, respBody, gotRespBody)
}

func TestOpenResponseRejectsMessageIDMismatch(t *testing.T) {
	requesterEnv, requesterKey := newParty(t)
	responderEnv, responderKey := newParty(t)

	respBody := wire.ResponseBody{MessageID: 5, Version: "1", Kind: wire.KindQuery}
	resp, err := responderEnv.SealResponse(wire.ModeFast, requesterKey, respBody)
	require.NoError(t, err)

	_, err = requesterEnv.OpenResponse(resp, 6, responderKey)
	assert.ErrorIs(t, err, envelope.ErrMessageIDMismatch)
}

func TestOpenResponseRejectsSenderMismatch(t *testing.T) {
	requesterEnv, requesterKey := newParty(t)
	responderEnv, _ := newParty(t)
	_, impostorKey := newParty(t)

	respBody := wire.ResponseBody{MessageID: 1, Version: "1", Kind: wire.KindQuery}
	resp, err := responderEnv.SealResponse(wire.ModeFast, requesterKey, respBody)
	require.NoError(t, err)

	_, err = requesterEnv.OpenResponse(resp, 1, impostorKey)
	assert.ErrorIs(t, err, envelope.ErrSenderMismatch)
}

func TestOpenResponseRejectsTamperedBody(t *testing.T) {
	requesterEnv, requesterKey := newParty(t)
	responderEnv, responderKey := newParty(t)

	respBody := wire.ResponseBody{MessageID: 1, Version: "1", Kind: wire.KindQuery}
	resp, err := responderEnv.SealResponse(wire.ModeFast, requesterKey, respBody)
	require.NoError(t, err)

	resp.Envelope.Body = append([]byte(nil), resp.Envelope.Body...)
	resp.Envelope.Body[0] ^= 0xff

	_, err = requesterEnv.OpenResponse(resp, 1, responderKey)
	assert.ErrorIs(t, err, envelope.ErrSignature)
}

func TestOpenRequestRejectsSenderMismatchInPrivateMode(t *testing.T) {
	requesterEnv, _ := newParty(t)
	responderEnv, responderKey := newParty(t)
	_, impostorKey := newParty(t)

	sender := wire.SenderNode{Key: impostorKey, Port: 1}
	req, err := requesterEnv.SealRequest(wire.ModePrivate, sender, responderKey, wire.RequestBody{MessageID: 1, Kind: wire.KindQuery})
	require.NoError(t, err)

	_, err = responderEnv.OpenRequest(req)
	assert.ErrorIs(t, err, envelope.ErrSenderMismatch)
}

func TestSealRequestRejectsUnsupportedMode(t *testing.T) {
	requesterEnv, _ := newParty(t)
	_, responderKey := newParty(t)

	_, err := requesterEnv.SealRequest(wire.Mode("quantum"), wire.SenderNode{}, responderKey, wire.RequestBody{})
	assert.ErrorIs(t, err, envelope.ErrUnsupportedMode)
}
