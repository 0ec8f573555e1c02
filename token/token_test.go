package token

import (
	"encoding/base64"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetyard/provisioning-server/interfaces"
)

var testKey = []byte("0123456789abcdef0123456789abcdef")

func errCode(t *testing.T, err error) interfaces.ErrorCode {
	t.Helper()
	require.Error(t, err)
	return interfaces.AsError(err).Code
}

func TestMintVerifyRoundTrip(t *testing.T) {
	minted := Claims{
		Node:     "edge-03",
		Spec:     "edge",
		IssuedAt: 1700000000,
		Extra: map[string]json.RawMessage{
			"env": json.RawMessage(`"staging"`),
		},
	}

	tok, err := Mint(minted, testKey)
	require.NoError(t, err)

	claims, err := Verify(tok, testKey, "edge-03")
	require.NoError(t, err)

	assert.Equal(t, SupportedVersion, claims.Version)
	assert.Equal(t, "edge-03", claims.Node)
	assert.Equal(t, "edge", claims.Spec)
	assert.Equal(t, int64(1700000000), claims.IssuedAt)
	assert.Equal(t, json.RawMessage(`"staging"`), claims.Extra["env"])
}

func TestMintDefaults(t *testing.T) {
	tok, err := Mint(Claims{Node: "n1", Spec: "s1"}, testKey)
	require.NoError(t, err)

	claims, err := Verify(tok, testKey, "n1")
	require.NoError(t, err)
	assert.Equal(t, SupportedVersion, claims.Version)
	assert.NotZero(t, claims.IssuedAt)
}

func TestVerifyIdentityMismatch(t *testing.T) {
	// The signature is genuine; only the binding to the URL identity fails.
	tok, err := Mint(Claims{Node: "edge-03", Spec: "edge"}, testKey)
	require.NoError(t, err)

	_, err = Verify(tok, testKey, "edge-04")
	assert.Equal(t, interfaces.CodeInvalidSignature, errCode(t, err))
}

func TestVerifyWrongKey(t *testing.T) {
	tok, err := Mint(Claims{Node: "n1", Spec: "s1"}, testKey)
	require.NoError(t, err)

	_, err = Verify(tok, []byte("another-key-entirely-0123456789a"), "n1")
	assert.Equal(t, interfaces.CodeInvalidSignature, errCode(t, err))
}

func TestVerifyAlteredPayload(t *testing.T) {
	tok, err := Mint(Claims{Node: "n1", Spec: "s1"}, testKey)
	require.NoError(t, err)

	// Swap one payload character for a different base64url character: the
	// structure stays intact, the MAC must not.
	payloadSeg, sigSeg, ok := strings.Cut(tok, ".")
	require.True(t, ok)

	altered := []byte(payloadSeg)
	if altered[0] == 'A' {
		altered[0] = 'B'
	} else {
		altered[0] = 'A'
	}

	_, err = Verify(string(altered)+"."+sigSeg, testKey, "n1")
	assert.Equal(t, interfaces.CodeInvalidSignature, errCode(t, err))
}

func TestVerifyMalformedStructure(t *testing.T) {
	tok, err := Mint(Claims{Node: "n1", Spec: "s1"}, testKey)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
		code  interfaces.ErrorCode
	}{
		{
			name:  "no separator",
			token: strings.ReplaceAll(tok, ".", ""),
			code:  interfaces.CodeMalformedToken,
		},
		{
			name:  "three segments",
			token: tok + ".extra",
			code:  interfaces.CodeMalformedToken,
		},
		{
			name:  "empty",
			token: "",
			code:  interfaces.CodeMalformedToken,
		},
		{
			// Signature decode failures surface exactly like mismatches.
			name:  "signature not base64url",
			token: strings.Split(tok, ".")[0] + ".!!!",
			code:  interfaces.CodeInvalidSignature,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Verify(tt.token, testKey, "n1")
			assert.Equal(t, tt.code, errCode(t, err))
		})
	}
}

func TestVerifyUndecodablePayloadWithValidMAC(t *testing.T) {
	// A correctly signed segment that is not base64url of JSON: the MAC
	// passes, the decode fails, and the failure is malformed, not signature.
	payloadSeg := "%%%not-base64%%%"
	sig := computeMAC(testKey, payloadSeg)
	tok := payloadSeg + "." + base64.RawURLEncoding.EncodeToString(sig)

	_, err := Verify(tok, testKey, "n1")
	assert.Equal(t, interfaces.CodeMalformedToken, errCode(t, err))
}

func TestVerifyUnsupportedVersion(t *testing.T) {
	tok, err := Mint(Claims{Version: 2, Node: "n1", Spec: "s1"}, testKey)
	require.NoError(t, err)

	_, err = Verify(tok, testKey, "n1")
	assert.Equal(t, interfaces.CodeMalformedToken, errCode(t, err))
}

func TestVerifyMissingRequiredClaims(t *testing.T) {
	for _, tt := range []struct {
		name   string
		claims Claims
		url    string
	}{
		{name: "missing node", claims: Claims{Spec: "s1"}, url: ""},
		{name: "missing spec", claims: Claims{Node: "n1"}, url: "n1"},
	} {
		t.Run(tt.name, func(t *testing.T) {
			tok, err := Mint(tt.claims, testKey)
			require.NoError(t, err)

			_, err = Verify(tok, testKey, tt.url)
			assert.Equal(t, interfaces.CodeMalformedToken, errCode(t, err))
		})
	}
}

func TestVerifyNoSigningKey(t *testing.T) {
	tok, err := Mint(Claims{Node: "n1", Spec: "s1"}, testKey)
	require.NoError(t, err)

	_, err = Verify(tok, nil, "n1")
	assert.Equal(t, interfaces.CodeInternal, errCode(t, err))
}

func TestDecodeDoesNotVerify(t *testing.T) {
	tok, err := Mint(Claims{Node: "n1", Spec: "s1"}, testKey)
	require.NoError(t, err)

	// Corrupt the signature; Decode must still return the claims.
	payloadSeg, _, ok := strings.Cut(tok, ".")
	require.True(t, ok)

	claims, err := Decode(payloadSeg + ".AAAA")
	require.NoError(t, err)
	assert.Equal(t, "n1", claims.Node)
}

func TestDecodeEnforcesTokenStructure(t *testing.T) {
	tok, err := Mint(Claims{Node: "n1", Spec: "s1"}, testKey)
	require.NoError(t, err)

	// Decode and Verify must agree on structural rejection.
	for _, bad := range []string{tok + ".extra", "nodot", ""} {
		_, err := Decode(bad)
		assert.Equal(t, interfaces.CodeMalformedToken, errCode(t, err), "token %q", bad)

		_, err = Verify(bad, testKey, "n1")
		assert.Equal(t, interfaces.CodeMalformedToken, errCode(t, err), "token %q", bad)
	}
}

func TestInspect(t *testing.T) {
	tok, err := Mint(Claims{Node: "n1", Spec: "s1"}, testKey)
	require.NoError(t, err)

	t.Run("decode only", func(t *testing.T) {
		insp, err := Inspect(tok, nil)
		require.NoError(t, err)
		assert.False(t, insp.Verified)
		assert.Equal(t, "n1", insp.Claims.Node)
	})

	t.Run("valid signature", func(t *testing.T) {
		insp, err := Inspect(tok, testKey)
		require.NoError(t, err)
		assert.True(t, insp.Verified)
		assert.True(t, insp.Valid)
	})

	t.Run("wrong key", func(t *testing.T) {
		insp, err := Inspect(tok, []byte("another-key-entirely-0123456789a"))
		require.NoError(t, err)
		assert.True(t, insp.Verified)
		assert.False(t, insp.Valid)
	})

	t.Run("garbage token", func(t *testing.T) {
		_, err := Inspect("not-a-token", nil)
		assert.Error(t, err)
	})
}

func TestClaimsJSONRoundTrip(t *testing.T) {
	in := Claims{
		Version:  1,
		Node:     "edge-03",
		Spec:     "edge",
		IssuedAt: 42,
		Extra: map[string]json.RawMessage{
			"region": json.RawMessage(`"eu-1"`),
			"tags":   json.RawMessage(`["a","b"]`),
		},
	}

	data, err := json.Marshal(in)
	require.NoError(t, err)

	var out Claims
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, in, out)
}
