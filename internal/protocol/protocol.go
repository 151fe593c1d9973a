package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mitchellh/mapstructure"
)

// Application is the application identifier stamped on every request and
// checked on every login response.
const Application = "Nexus"

// Status codes used by the server's HTTP and websocket envelopes.
const (
	StatusOK           = 0
	StatusInvalidToken = 5
)

// SelfPeerID is the sentinel thread id for self-addressed messages.
const SelfPeerID int64 = -1

// Request is the outbound websocket envelope.
type Request struct {
	Application string      `json:"application"`
	Type        string      `json:"type"`
	Serial      string      `json:"serial,omitempty"`
	Timestamp   int64       `json:"timestamp"`
	Data        interface{} `json:"data,omitempty"`
}

// Response is the inbound websocket envelope. A non-empty Serial marks it as
// the reply to a correlated request; otherwise Data carries a server notice.
type Response struct {
	Status    int         `json:"status"`
	Message   string      `json:"message"`
	Type      string      `json:"type"`
	Serial    string      `json:"serial,omitempty"`
	Timestamp int64       `json:"timestamp"`
	Data      interface{} `json:"data,omitempty"`
}

// NewRequest wraps data in a request envelope. An empty serial means no reply
// is expected for this request.
func NewRequest(serial string, data interface{}) *Request {
	return &Request{
		Application: Application,
		Type:        "user",
		Serial:      serial,
		Timestamp:   time.Now().UnixMilli(),
		Data:        data,
	}
}

// Marshal converts a request to JSON bytes.
func (r *Request) Marshal() ([]byte, error) {
	return json.Marshal(r)
}

// UnmarshalResponse parses JSON bytes into a response envelope.
func UnmarshalResponse(data []byte) (*Response, error) {
	var resp Response
	err := json.Unmarshal(data, &resp)
	return &resp, err
}

// ParseData decodes the untyped data field into a specific type without a
// marshal/unmarshal round trip.
func (r *Response) ParseData(target interface{}) error {
	if r.Data == nil {
		return nil
	}
	return mapstructure.Decode(r.Data, target)
}

// Exchange names the two ends of a message. Outbound requests only carry To.
type Exchange struct {
	From int64 `json:"from,omitempty" mapstructure:"from"`
	To   int64 `json:"to" mapstructure:"to"`
}

// MessagePayload is the structured (unencrypted) form of a chat message.
type MessagePayload struct {
	MessageType string `json:"messagetype" mapstructure:"messagetype"`
	Message     string `json:"message" mapstructure:"message"`
	Timestamp   int64  `json:"timestamp" mapstructure:"timestamp"`
}

// NewTextPayload builds a text message payload stamped with the current time.
func NewTextPayload(text string) MessagePayload {
	return MessagePayload{
		MessageType: "text",
		Message:     text,
		Timestamp:   time.Now().UnixMilli(),
	}
}

// MessageSendRequest asks the server to distribute a message to a peer. Data
// holds either a MessagePayload or its ciphertext as a base64 string.
type MessageSendRequest struct {
	Type             string      `json:"type"`
	PublicKeyVersion string      `json:"publickeyversion"`
	Exchange         Exchange    `json:"exchange"`
	Data             interface{} `json:"data"`
	Sign             string      `json:"sign"`
}

// GetPublicKeyRequest asks for a peer's published public key.
type GetPublicKeyRequest struct {
	Type   string `json:"type"`
	Target int64  `json:"target"`
}

// RefreshPublicKeyRequest publishes a fresh key-exchange public key, signed
// by a separate signing keypair.
type RefreshPublicKeyRequest struct {
	Type             string `json:"type"`
	PublicKeyVersion string `json:"publickeyversion"`
	NewPublicKey     string `json:"newpublickey"`
	SignPub          string `json:"signPub"`
	Sign             string `json:"sign"`
}

// Request and notice kinds carried in data.type.
const (
	KindMessageSend         = "MessageSend"
	KindGetPublicKey        = "GetPublickey"
	KindRefreshPublicKey    = "RefreshPublickey"
	KindAliveUser           = "AliveUser"
	KindUserOnline          = "UserOnline"
	KindUserOffline         = "UserOffline"
	KindMessageDistribution = "MessageDistribution"
)

// ErrUnknownNotice marks a server notice with an unrecognized data.type. The
// connection survives it; the frame is logged and dropped.
var ErrUnknownNotice = errors.New("unknown server notice type")

// Notice is a server-initiated frame, one variant per data.type value.
type Notice interface {
	NoticeKind() string
}

// AliveUserNotice is the full presence snapshot sent after connecting.
type AliveUserNotice struct {
	Total     int
	AliveList []int64
}

// UserOnlineNotice is an incremental presence delta.
type UserOnlineNotice struct {
	UserID int64
}

// UserOfflineNotice is an incremental presence delta.
type UserOfflineNotice struct {
	UserID int64
}

// MessageDistributionNotice delivers a peer message. Data is either a
// structured payload map or a ciphertext string.
type MessageDistributionNotice struct {
	PublicKeyVersion string
	From             int64
	To               int64
	Data             interface{}
	Sign             string
}

// PublicKeyNotice is the reply body of a GetPublickey request.
type PublicKeyNotice struct {
	Target    int64
	Version   string
	PublicKey string
}

// RefreshAckNotice acknowledges a key publication.
type RefreshAckNotice struct{}

func (AliveUserNotice) NoticeKind() string           { return KindAliveUser }
func (UserOnlineNotice) NoticeKind() string          { return KindUserOnline }
func (UserOfflineNotice) NoticeKind() string         { return KindUserOffline }
func (MessageDistributionNotice) NoticeKind() string { return KindMessageDistribution }
func (PublicKeyNotice) NoticeKind() string           { return KindGetPublicKey }
func (RefreshAckNotice) NoticeKind() string          { return KindRefreshPublicKey }

type noticeHeader struct {
	Type string `mapstructure:"type"`
}

type aliveUserWire struct {
	Data struct {
		Total     int     `mapstructure:"total"`
		AliveList []int64 `mapstructure:"aliveList"`
	} `mapstructure:"data"`
}

type presenceWire struct {
	Data struct {
		UserID int64 `mapstructure:"userid"`
	} `mapstructure:"data"`
}

type distributionWire struct {
	PublicKeyVersion string      `mapstructure:"publickeyversion"`
	Exchange         Exchange    `mapstructure:"exchange"`
	Data             interface{} `mapstructure:"data"`
	Sign             string      `mapstructure:"sign"`
}

type publicKeyWire struct {
	Target    int64  `mapstructure:"target"`
	Version   string `mapstructure:"version"`
	PublicKey string `mapstructure:"publickey"`
}

// DecodeNotice turns the data field of an uncorrelated response into a typed
// notice. Unknown kinds return ErrUnknownNotice with the offending type name.
func DecodeNotice(data interface{}) (Notice, error) {
	var header noticeHeader
	if err := mapstructure.Decode(data, &header); err != nil {
		return nil, fmt.Errorf("malformed notice: %w", err)
	}

	switch header.Type {
	case KindAliveUser:
		var wire aliveUserWire
		if err := mapstructure.Decode(data, &wire); err != nil {
			return nil, fmt.Errorf("malformed AliveUser notice: %w", err)
		}
		return AliveUserNotice{Total: wire.Data.Total, AliveList: wire.Data.AliveList}, nil

	case KindUserOnline:
		var wire presenceWire
		if err := mapstructure.Decode(data, &wire); err != nil {
			return nil, fmt.Errorf("malformed UserOnline notice: %w", err)
		}
		return UserOnlineNotice{UserID: wire.Data.UserID}, nil

	case KindUserOffline:
		var wire presenceWire
		if err := mapstructure.Decode(data, &wire); err != nil {
			return nil, fmt.Errorf("malformed UserOffline notice: %w", err)
		}
		return UserOfflineNotice{UserID: wire.Data.UserID}, nil

	case KindMessageDistribution:
		var wire distributionWire
		if err := mapstructure.Decode(data, &wire); err != nil {
			return nil, fmt.Errorf("malformed MessageDistribution notice: %w", err)
		}
		return MessageDistributionNotice{
			PublicKeyVersion: wire.PublicKeyVersion,
			From:             wire.Exchange.From,
			To:               wire.Exchange.To,
			Data:             wire.Data,
			Sign:             wire.Sign,
		}, nil

	case KindGetPublicKey:
		var wire publicKeyWire
		if err := mapstructure.Decode(data, &wire); err != nil {
			return nil, fmt.Errorf("malformed GetPublickey notice: %w", err)
		}
		return PublicKeyNotice{Target: wire.Target, Version: wire.Version, PublicKey: wire.PublicKey}, nil

	case KindRefreshPublicKey:
		return RefreshAckNotice{}, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownNotice, header.Type)
	}
}

// LoginRequest is the body of the HTTP login call.
type LoginRequest struct {
	Account     string `json:"account"`
	Password    string `json:"password"`
	Application string `json:"application"`
}

// LoginResponse is the HTTP login reply envelope.
type LoginResponse struct {
	Status      int    `json:"status"`
	Message     string `json:"message"`
	Application string `json:"application,omitempty"`
	Token       string `json:"token,omitempty"`
}

// UserInfo is a directory record for one user.
type UserInfo struct {
	ID     int64  `json:"id" mapstructure:"id"`
	Name   string `json:"name" mapstructure:"name"`
	Avatar string `json:"avatar" mapstructure:"avatar"`
}

// UserInfoResponse wraps a single directory record.
type UserInfoResponse struct {
	Status  int      `json:"status"`
	Message string   `json:"message"`
	Data    UserInfo `json:"data"`
}

// UserListResponse wraps a bulk directory lookup.
type UserListResponse struct {
	Status  int        `json:"status"`
	Message string     `json:"message"`
	Data    []UserInfo `json:"data"`
}
