package nodeapi

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"

	"github.com/cuemby/beacon/pkg/types"
)

func splitHostPort(t *testing.T, rawURL string) (string, int) {
	u, err := url.Parse(rawURL)
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	host, portStr, err := net.SplitHostPort(u.Host)
	if err != nil {
		t.Fatalf("split host port: %v", err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatalf("atoi port: %v", err)
	}
	return host, port
}

func TestClient_GetCluster(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/cluster/info" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`[{"id":"p1","state":"Ready"},{"id":"p2","state":"Ready"}]`))
	}))
	defer server.Close()

	host, port := splitHostPort(t, server.URL)
	c := New(nil)
	peers, errStr := c.GetCluster(context.Background(), host, port)
	if errStr != "" {
		t.Fatalf("unexpected error: %s", errStr)
	}
	if len(peers) != 2 {
		t.Fatalf("got %d peers, want 2", len(peers))
	}
}

func TestClient_GetCluster_Unreachable(t *testing.T) {
	c := New(nil)
	peers, errStr := c.GetCluster(context.Background(), "127.0.0.1", 1)
	if errStr == "" {
		t.Fatal("expected error string, got none")
	}
	if peers != nil {
		t.Errorf("expected nil peers on failure, got %v", peers)
	}
}

func TestClient_GetOrdinal_Metagraph(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ordinal": 77}`))
	}))
	defer server.Close()

	host, port := splitHostPort(t, server.URL)
	c := New(nil)
	got := c.GetOrdinal(context.Background(), host, port, types.LayerL0Metagraph)
	if got != 77 {
		t.Errorf("got %d, want 77", got)
	}
}

func TestClient_GetOrdinal_Global_FallsBackToLastSnapshot(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"state":"Ready","lastSnapshotOrdinal": 9}`))
	}))
	defer server.Close()

	host, port := splitHostPort(t, server.URL)
	c := New(nil)
	got := c.GetOrdinal(context.Background(), host, port, types.LayerL0Global)
	if got != 9 {
		t.Errorf("got %d, want 9", got)
	}
}

func TestClient_GetOrdinal_Failure(t *testing.T) {
	c := New(nil)
	got := c.GetOrdinal(context.Background(), "127.0.0.1", 1, types.LayerL0Metagraph)
	if got != -1 {
		t.Errorf("got %d, want -1", got)
	}
}

func TestClient_GetNodeInfo(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"state":"Ready","id":"n1"}`))
	}))
	defer server.Close()

	host, port := splitHostPort(t, server.URL)
	c := New(nil)
	info := c.GetNodeInfo(context.Background(), host, port)
	if info == nil || info.State != types.PeerStateReady {
		t.Fatalf("got %+v, want Ready", info)
	}
}

func TestClient_GetNodeInfo_Failure(t *testing.T) {
	c := New(nil)
	info := c.GetNodeInfo(context.Background(), "127.0.0.1", 1)
	if info != nil {
		t.Errorf("expected nil, got %+v", info)
	}
}
