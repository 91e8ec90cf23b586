// Package model defines domain entities used by services and repositories.
package model

import (
	"time"

	"github.com/gofrs/uuid/v5"
)

// Tenant is a provisioned client account, the unit of credential and
// history isolation. The device directory is append-only except by
// explicit administrative action.
type Tenant struct {
	DomainUUID    uuid.UUID // PK
	FaxUser       string    // domain portion of the fax routing identifier, unique
	AuthToken     string    // shared secret presented on /init
	Active        bool      // toggled by an administrator
	AllFaxNumbers []string
	KnownDevices  []string // device ids seen on successful init
	CreatedAt     time.Time
}

// Envelope is the ciphertext+nonce+salt bundle produced by the vault.
// All fields are base64; decryption requires all three.
type Envelope struct {
	Ciphertext string `json:"ciphertext"`
	Nonce      string `json:"nonce"`
	Salt       string `json:"salt"`
}

// ResellerCredentials is the plaintext payload sealed inside a reseller
// envelope. The upstream token endpoint consumes both pairs in a single
// password grant (message pair as client, voice pair as resource owner).
type ResellerCredentials struct {
	MsgAPIUser       string `json:"msg_api_user"`
	MsgAPIPassword   string `json:"msg_api_password"`
	VoiceAPIUser     string `json:"voice_api_user"`
	VoiceAPIPassword string `json:"voice_api_password"`
}

// Claims are the verified contents of an access token. All fields are
// mandatory on verification.
type Claims struct {
	Issuer    string
	Audience  string
	Subject   uuid.UUID // domain_uuid
	DeviceID  string
	Scope     []string
	JTI       string
	IssuedAt  time.Time
	NotBefore time.Time
	ExpiresAt time.Time
}

// BearerRecord caches a tenant's upstream bearer token together with its
// absolute upstream expiry. Mutated only by the refresher or an on-demand
// client-triggered refresh.
type BearerRecord struct {
	FaxUser       string
	BearerToken   string
	ExpiresAt     time.Time // upstream expiry, UTC
	RetrievedAt   time.Time
	AllFaxNumbers []string
}

// UpstreamToken is a freshly minted token from the upstream telco OAuth
// endpoint.
type UpstreamToken struct {
	AccessToken string
	ExpiresAt   time.Time
}

// HistoryPage is one page of the authoritative processed-item listing.
// NextOffset is nil once the page reaches the end of the set.
type HistoryPage struct {
	IDs        []string
	Offset     int
	Limit      int
	Total      int
	NextOffset *int
}
