package exchange

import (
	"crypto/ecdsa"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	ethmath "github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	"perpgrid/internal/config"
	"perpgrid/pkg/types"
)

// Auth signs REST requests and WebSocket auth handshakes with HMAC-SHA256,
// the way linear-perpetual exchanges authenticate API-key trading.
//
// REST signature: HMAC_SHA256(secret, timestamp + apiKey + recvWindow + payload)
// WS signature:    HMAC_SHA256(secret, "GET/realtime" + expires)
//
// A wallet private key is optional and only used for the one-time agent
// approval signature some exchanges require before an API key is allowed
// to trade (see SignAgentApproval); day-to-day request signing never
// touches it.
type Auth struct {
	apiKey     string
	secret     string
	recvWindow string

	walletKey *ecdsa.PrivateKey
}

// NewAuth creates an Auth instance from the exchange credentials in config.
// WalletPrivateKey is optional; a malformed or empty value simply leaves
// wallet-auth disabled rather than failing construction, since most
// exchanges never need it.
func NewAuth(cfg config.Config) *Auth {
	a := &Auth{
		apiKey:     cfg.Exchange.Key,
		secret:     cfg.Exchange.Secret,
		recvWindow: "5000",
	}

	if keyHex := strings.TrimPrefix(cfg.Exchange.WalletPrivateKey, "0x"); keyHex != "" {
		if key, err := crypto.HexToECDSA(keyHex); err == nil {
			a.walletKey = key
		}
	}

	return a
}

// HasWalletKey returns whether a wallet private key was configured for
// agent approval signing.
func (a *Auth) HasWalletKey() bool {
	return a.walletKey != nil
}

// WalletAddress returns the address derived from the wallet private key,
// or the zero address if none is configured.
func (a *Auth) WalletAddress() common.Address {
	if a.walletKey == nil {
		return common.Address{}
	}
	return crypto.PubkeyToAddress(a.walletKey.PublicKey)
}

// SignAgentApproval produces an EIP-712 signature authorizing apiKey to
// trade on behalf of the wallet. Exchanges that require this call it once
// when an API key is first registered; ongoing requests are authenticated
// with RESTHeaders/WSAuthArgs instead.
func (a *Auth) SignAgentApproval(apiKey string, chainID int64) (string, error) {
	if a.walletKey == nil {
		return "", fmt.Errorf("no wallet private key configured")
	}

	domain := apitypes.TypedDataDomain{
		Name:    "AgentApproval",
		Version: "1",
		ChainId: ethmath.NewHexOrDecimal256(chainID),
	}
	types_ := apitypes.Types{
		"EIP712Domain": {
			{Name: "name", Type: "string"},
			{Name: "version", Type: "string"},
			{Name: "chainId", Type: "uint256"},
		},
		"AgentApproval": {
			{Name: "apiKey", Type: "string"},
			{Name: "wallet", Type: "address"},
		},
	}
	message := apitypes.TypedDataMessage{
		"apiKey": apiKey,
		"wallet": a.WalletAddress().Hex(),
	}

	typedData := apitypes.TypedData{
		Types:       types_,
		PrimaryType: "AgentApproval",
		Domain:      domain,
		Message:     message,
	}

	hash, _, err := apitypes.TypedDataAndHash(typedData)
	if err != nil {
		return "", fmt.Errorf("hash typed data: %w", err)
	}

	sig, err := crypto.Sign(hash, a.walletKey)
	if err != nil {
		return "", fmt.Errorf("sign typed data: %w", err)
	}
	if sig[64] < 27 {
		sig[64] += 27
	}

	return "0x" + common.Bytes2Hex(sig), nil
}

// HasCredentials returns whether API key/secret are configured.
func (a *Auth) HasCredentials() bool {
	return a.apiKey != "" && a.secret != ""
}

// RESTHeaders signs a REST request body (or query string for GETs) and
// returns the headers the exchange expects alongside it.
func (a *Auth) RESTHeaders(payload string) map[string]string {
	timestamp := strconv.FormatInt(time.Now().UnixMilli(), 10)
	signPayload := timestamp + a.apiKey + a.recvWindow + payload
	sig := a.sign(signPayload)

	return map[string]string{
		"X-BAPI-API-KEY":     a.apiKey,
		"X-BAPI-TIMESTAMP":   timestamp,
		"X-BAPI-RECV-WINDOW": a.recvWindow,
		"X-BAPI-SIGN":        sig,
	}
}

// WSAuthArgs builds the signed payload used to authenticate the private
// WebSocket feed. The signature expires 5 seconds from now, matching the
// window REST requests use.
func (a *Auth) WSAuthArgs() types.WSAuthArgs {
	expires := time.Now().Add(5*time.Second).UnixMilli()
	sig := a.sign("GET/realtime" + strconv.FormatInt(expires, 10))

	return types.WSAuthArgs{
		APIKey:    a.apiKey,
		Expires:   expires,
		Signature: sig,
	}
}

func (a *Auth) sign(payload string) string {
	mac := hmac.New(sha256.New, []byte(a.secret))
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}
