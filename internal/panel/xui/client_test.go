package xui

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wiregram/wiregram-server/internal/model"
	"github.com/wiregram/wiregram-server/internal/testutil"
)

// fakePanel is an in-memory 3x-ui lookalike behind httptest.
type fakePanel struct {
	mu             sync.Mutex
	logins         int
	addClientCalls int
	nextID         int
	inbounds       []inbound

	// sessionLimit is how many API calls a login session serves before
	// the panel invalidates it. Zero means sessions never expire.
	sessionLimit int
	sessionCalls int
	// listError, when set, makes the inbound list endpoint reject every
	// request with this message.
	listError string
}

func (f *fakePanel) envelope(w http.ResponseWriter, obj any) {
	raw, _ := json.Marshal(obj)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success": true,
		"msg":     "",
		"obj":     json.RawMessage(raw),
	})
}

func (f *fakePanel) reject(w http.ResponseWriter, msg string) {
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success": false,
		"msg":     msg,
	})
}

func (f *fakePanel) findInbound(id int) *inbound {
	for i := range f.inbounds {
		if f.inbounds[i].ID == id {
			return &f.inbounds[i]
		}
	}
	return nil
}

func (f *fakePanel) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.logins++
		f.sessionCalls = 0
		f.mu.Unlock()
		f.envelope(w, nil)
	})

	mux.HandleFunc("/panel/api/inbounds/list", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.listError != "" {
			f.reject(w, f.listError)
			return
		}
		f.envelope(w, f.inbounds)
	})

	mux.HandleFunc("/panel/api/inbounds/add", func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			Remark         string `json:"remark"`
			Port           int    `json:"port"`
			Settings       string `json:"settings"`
			StreamSettings string `json:"streamSettings"`
		}
		_ = json.NewDecoder(r.Body).Decode(&payload)

		f.mu.Lock()
		f.nextID++
		f.inbounds = append(f.inbounds, inbound{
			ID:             f.nextID,
			Remark:         payload.Remark,
			Port:           payload.Port,
			Protocol:       "vless",
			Settings:       payload.Settings,
			StreamSettings: payload.StreamSettings,
		})
		f.mu.Unlock()
		f.envelope(w, nil)
	})

	mux.HandleFunc("/panel/api/inbounds/addClient", func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			ID       int    `json:"id"`
			Settings string `json:"settings"`
		}
		_ = json.NewDecoder(r.Body).Decode(&payload)

		var incoming inboundSettings
		_ = json.Unmarshal([]byte(payload.Settings), &incoming)

		f.mu.Lock()
		f.addClientCalls++
		if ib := f.findInbound(payload.ID); ib != nil {
			var current inboundSettings
			_ = json.Unmarshal([]byte(ib.Settings), &current)
			current.Clients = append(current.Clients, incoming.Clients...)
			raw, _ := json.Marshal(current)
			ib.Settings = string(raw)
		}
		f.mu.Unlock()
		f.envelope(w, nil)
	})

	mux.HandleFunc("/panel/api/inbounds/updateClient/", func(w http.ResponseWriter, r *http.Request) {
		clientID := strings.TrimPrefix(r.URL.Path, "/panel/api/inbounds/updateClient/")
		var payload struct {
			ID       int    `json:"id"`
			Settings string `json:"settings"`
		}
		_ = json.NewDecoder(r.Body).Decode(&payload)

		var incoming inboundSettings
		_ = json.Unmarshal([]byte(payload.Settings), &incoming)

		f.mu.Lock()
		if ib := f.findInbound(payload.ID); ib != nil && len(incoming.Clients) == 1 {
			var current inboundSettings
			_ = json.Unmarshal([]byte(ib.Settings), &current)
			for i := range current.Clients {
				if current.Clients[i].ID == clientID {
					current.Clients[i] = incoming.Clients[0]
				}
			}
			raw, _ := json.Marshal(current)
			ib.Settings = string(raw)
		}
		f.mu.Unlock()
		f.envelope(w, nil)
	})

	mux.HandleFunc("/panel/api/inbounds/", func(w http.ResponseWriter, r *http.Request) {
		// /panel/api/inbounds/{id}/delClient/{uuid}
		parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/panel/api/inbounds/"), "/")
		if len(parts) != 3 || parts[1] != "delClient" {
			http.NotFound(w, r)
			return
		}
		var inboundID int
		_, _ = fmt.Sscanf(parts[0], "%d", &inboundID)
		clientID := parts[2]

		f.mu.Lock()
		if ib := f.findInbound(inboundID); ib != nil {
			var current inboundSettings
			_ = json.Unmarshal([]byte(ib.Settings), &current)
			kept := current.Clients[:0]
			for _, cl := range current.Clients {
				if cl.ID != clientID {
					kept = append(kept, cl)
				}
			}
			current.Clients = kept
			raw, _ := json.Marshal(current)
			ib.Settings = string(raw)
		}
		f.mu.Unlock()
		f.envelope(w, nil)
	})

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/login" {
			f.mu.Lock()
			f.sessionCalls++
			expired := f.sessionLimit > 0 && f.sessionCalls > f.sessionLimit
			f.mu.Unlock()
			if expired {
				f.reject(w, "session expired")
				return
			}
		}
		mux.ServeHTTP(w, r)
	})
}

func newTestClient(t *testing.T, fake *fakePanel) *Client {
	t.Helper()
	srv := httptest.NewServer(fake.handler())
	t.Cleanup(srv.Close)

	client, err := NewClient(Config{
		Host:     srv.URL,
		Username: "admin",
		Password: "secret",
		BasePort: 4000,
		MaxPorts: 3,
		Timeout:  5 * time.Second,
		Reality: Reality{
			PrivateKey:  "priv",
			PublicKey:   "pub",
			Dest:        "google.com:443",
			ServerName:  "www.google.com",
			ShortID:     "33cf5dbed8e1",
			Fingerprint: "firefox",
		},
	}, testutil.MakeNoopLogger())
	require.NoError(t, err)
	return client
}

func TestClient_LoginOnce(t *testing.T) {
	fake := &fakePanel{}
	client := newTestClient(t, fake)
	ctx := context.Background()

	_, err := client.FreePort(ctx)
	require.NoError(t, err)
	_, err = client.FreePort(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, fake.logins)
}

func TestClient_ReloginAfterSessionExpiry(t *testing.T) {
	fake := &fakePanel{sessionLimit: 1}
	client := newTestClient(t, fake)
	ctx := context.Background()

	_, err := client.FreePort(ctx)
	require.NoError(t, err)

	// The panel dropped the session after one call; the client must
	// re-authenticate and the call still succeeds.
	_, err = client.FreePort(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, fake.logins)
}

func TestClient_RetriesOnceOnRejection(t *testing.T) {
	fake := &fakePanel{listError: "operation failed"}
	client := newTestClient(t, fake)

	_, err := client.FreePort(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "operation failed")
	// A failure that persists across a fresh session is surfaced after
	// a single retry, not looped on.
	assert.Equal(t, 2, fake.logins)
}

func TestClient_FreePort(t *testing.T) {
	fake := &fakePanel{
		nextID: 2,
		inbounds: []inbound{
			{ID: 1, Remark: "a", Port: 4000, Settings: "{}"},
			{ID: 2, Remark: "b", Port: 4001, Settings: "{}"},
		},
	}
	client := newTestClient(t, fake)

	port, err := client.FreePort(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4002, port)
}

func TestClient_FreePort_PoolExhausted(t *testing.T) {
	fake := &fakePanel{nextID: 4}
	for port := 4000; port <= 4003; port++ {
		fake.inbounds = append(fake.inbounds, inbound{ID: port - 3999, Port: port, Settings: "{}"})
	}
	client := newTestClient(t, fake)

	_, err := client.FreePort(context.Background())
	require.ErrorIs(t, err, model.ErrNoFreePorts)
}

func TestClient_EnsureInbound(t *testing.T) {
	fake := &fakePanel{}
	client := newTestClient(t, fake)
	ctx := context.Background()

	id, err := client.EnsureInbound(ctx, "42", 4000)
	require.NoError(t, err)
	assert.Equal(t, 1, id)

	// Same remark resolves to the existing inbound.
	again, err := client.EnsureInbound(ctx, "42", 4001)
	require.NoError(t, err)
	assert.Equal(t, id, again)
	assert.Len(t, fake.inbounds, 1)
}

func TestClient_CreateClient_Idempotent(t *testing.T) {
	fake := &fakePanel{}
	client := newTestClient(t, fake)
	ctx := context.Background()

	inboundID, err := client.EnsureInbound(ctx, "42", 4000)
	require.NoError(t, err)

	expiry := time.Now().AddDate(0, 0, 7)
	first, err := client.CreateClient(ctx, inboundID, "vless_42_1", expiry)
	require.NoError(t, err)
	assert.Equal(t, uuid.NewSHA1(uuid.NameSpaceDNS, []byte("vless_42_1")), first)

	second, err := client.CreateClient(ctx, inboundID, "vless_42_1", expiry)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, fake.addClientCalls)
}

func TestClient_ClientAndExpiry(t *testing.T) {
	fake := &fakePanel{}
	client := newTestClient(t, fake)
	ctx := context.Background()

	inboundID, err := client.EnsureInbound(ctx, "42", 4000)
	require.NoError(t, err)

	expiry := time.Now().AddDate(0, 0, 7).Truncate(time.Millisecond)
	_, err = client.CreateClient(ctx, inboundID, "vless_42_1", expiry)
	require.NoError(t, err)

	got, err := client.Client(ctx, "vless_42_1")
	require.NoError(t, err)
	assert.Equal(t, "vless_42_1", got.Email)
	assert.Equal(t, inboundID, got.InboundID)
	assert.True(t, got.Expiry.Equal(expiry))

	extended := expiry.AddDate(0, 0, 30)
	require.NoError(t, client.UpdateClientExpiry(ctx, "vless_42_1", extended))

	got, err = client.Client(ctx, "vless_42_1")
	require.NoError(t, err)
	assert.True(t, got.Expiry.Equal(extended))
}

func TestClient_ConnectionLink(t *testing.T) {
	fake := &fakePanel{}
	client := newTestClient(t, fake)
	ctx := context.Background()

	inboundID, err := client.EnsureInbound(ctx, "42", 4000)
	require.NoError(t, err)
	clientID, err := client.CreateClient(ctx, inboundID, "vless_42_1", time.Now().AddDate(0, 0, 7))
	require.NoError(t, err)

	link, err := client.ConnectionLink(ctx, "vless_42_1")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(link, "vless://"+clientID.String()+"@"))
	assert.Contains(t, link, ":4000?")
	assert.Contains(t, link, "security=reality")
	assert.Contains(t, link, "pbk=pub")
	assert.Contains(t, link, "sni=www.google.com")
	assert.Contains(t, link, "sid=33cf5dbed8e1")
	assert.Contains(t, link, "flow="+defaultFlow)
	assert.True(t, strings.HasSuffix(link, "#42-vless_42_1"))
}

func TestClient_DeleteClient(t *testing.T) {
	fake := &fakePanel{}
	client := newTestClient(t, fake)
	ctx := context.Background()

	inboundID, err := client.EnsureInbound(ctx, "42", 4000)
	require.NoError(t, err)
	_, err = client.CreateClient(ctx, inboundID, "vless_42_1", time.Now().AddDate(0, 0, 7))
	require.NoError(t, err)

	require.NoError(t, client.DeleteClient(ctx, "vless_42_1"))

	_, err = client.Client(ctx, "vless_42_1")
	require.ErrorIs(t, err, model.ErrNotFound)

	// Deleting an unknown client reports absence, not failure.
	err = client.DeleteClient(ctx, "vless_42_1")
	require.ErrorIs(t, err, model.ErrNotFound)
}
