package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"nexuschat/internal/protocol"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoginSendsApplicationAndCredentials(t *testing.T) {
	var got protocol.LoginRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/application/login", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		json.NewEncoder(w).Encode(protocol.LoginResponse{
			Status:      protocol.StatusOK,
			Message:     "OK",
			Application: protocol.Application,
			Token:       "tok-1",
		})
	}))
	defer server.Close()

	client := NewClient(server.URL)
	resp, err := client.Login(context.Background(), "alice", "secret")
	require.NoError(t, err)

	assert.Equal(t, "alice", got.Account)
	assert.Equal(t, "secret", got.Password)
	assert.Equal(t, "Nexus", got.Application)
	assert.Equal(t, protocol.StatusOK, resp.Status)
	assert.Equal(t, "tok-1", resp.Token)
}

func TestLoginReturnsRejectionEnvelope(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(protocol.LoginResponse{Status: 1, Message: "bad credentials"})
	}))
	defer server.Close()

	// Rejections are data, not errors; the caller inspects the envelope.
	resp, err := NewClient(server.URL).Login(context.Background(), "alice", "wrong")
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Status)
	assert.Equal(t, "bad credentials", resp.Message)
	assert.Empty(t, resp.Token)
}

func TestCurrentUserInfoSendsTokenAndResolvesAvatar(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/user/userinfo", r.URL.Path)
		require.Equal(t, "tok-1", r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode(protocol.UserInfoResponse{
			Status: protocol.StatusOK,
			Data:   protocol.UserInfo{ID: 1, Name: "alice", Avatar: "/static/a.png"},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL)
	client.UpdateToken("tok-1")

	info, err := client.CurrentUserInfo(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), info.ID)
	assert.Equal(t, server.URL+"/static/a.png", info.Avatar)
}

func TestCurrentUserInfoRejectedStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(protocol.UserInfoResponse{
			Status:  protocol.StatusInvalidToken,
			Message: "invalid token",
		})
	}))
	defer server.Close()

	_, err := NewClient(server.URL).CurrentUserInfo(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid token")
}

func TestUsersInfoPreservesRequestedOrder(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/application/getusersinfo", r.URL.Path)
		var body map[string][]int64
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, []int64{9, 2, 5}, body["ids"])

		// Server replies in its own order, with one id omitted entirely.
		json.NewEncoder(w).Encode(protocol.UserListResponse{
			Status: protocol.StatusOK,
			Data: []protocol.UserInfo{
				{ID: 2, Name: "bob", Avatar: "/static/b.png"},
				{ID: 9, Name: "carol"},
			},
		})
	}))
	defer server.Close()

	infos, err := NewClient(server.URL).UsersInfo(context.Background(), []int64{9, 2, 5})
	require.NoError(t, err)

	require.Len(t, infos, 2)
	assert.Equal(t, int64(9), infos[0].ID)
	assert.Equal(t, int64(2), infos[1].ID)
	assert.Equal(t, server.URL+"/static/b.png", infos[1].Avatar)
}

func TestUsersInfoEmptyIDsSkipsNetwork(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected for an empty id list")
	}))
	defer server.Close()

	infos, err := NewClient(server.URL).UsersInfo(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, infos)
}

func TestServerUnreachable(t *testing.T) {
	client := NewClient("http://127.0.0.1:1")
	_, err := client.Login(context.Background(), "alice", "secret")
	assert.Error(t, err)
}
