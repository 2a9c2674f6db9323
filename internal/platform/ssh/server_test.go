package ssh

import (
	"bytes"
	"errors"
	"io"
	"net"
	"strconv"
	"sync"
	"testing"

	"golang.org/x/crypto/ssh"

	"github.com/minisc/minisc/internal/util/keygen"
)

// commandReply is what the test server sends back for one exec request.
type commandReply struct {
	stdout string
	stderr string
	status uint32
	// block delays the reply until the channel is closed.
	block chan struct{}
}

// testServer is an in-process SSH server that answers exec requests from a
// fixed table.
type testServer struct {
	host string
	port int

	mu       sync.Mutex
	commands []string
}

func (s *testServer) received() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.commands...)
}

func startTestServer(t *testing.T, authorized []byte, replies map[string]commandReply) *testServer {
	t.Helper()

	hostKey := generateTestKey(t)
	signer, err := ssh.ParsePrivateKey(hostKey.PrivateKey)
	if err != nil {
		t.Fatalf("failed to parse host key: %v", err)
	}
	allowed, _, _, _, err := ssh.ParseAuthorizedKey(authorized)
	if err != nil {
		t.Fatalf("failed to parse authorized key: %v", err)
	}

	cfg := &ssh.ServerConfig{
		PublicKeyCallback: func(_ ssh.ConnMetadata, key ssh.PublicKey) (*ssh.Permissions, error) {
			if bytes.Equal(key.Marshal(), allowed.Marshal()) {
				return nil, nil
			}
			return nil, errors.New("unauthorized key")
		},
	}
	cfg.AddHostKey(signer)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	t.Cleanup(func() { _ = ln.Close() })

	host, portStr, _ := net.SplitHostPort(ln.Addr().String())
	port, _ := strconv.Atoi(portStr)
	srv := &testServer{host: host, port: port}

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go srv.serve(conn, cfg, replies)
		}
	}()
	return srv
}

func (s *testServer) serve(conn net.Conn, cfg *ssh.ServerConfig, replies map[string]commandReply) {
	_, chans, reqs, err := ssh.NewServerConn(conn, cfg)
	if err != nil {
		_ = conn.Close()
		return
	}
	go ssh.DiscardRequests(reqs)

	for newCh := range chans {
		if newCh.ChannelType() != "session" {
			_ = newCh.Reject(ssh.UnknownChannelType, "only sessions")
			continue
		}
		ch, requests, err := newCh.Accept()
		if err != nil {
			continue
		}
		go s.handleSession(ch, requests, replies)
	}
}

func (s *testServer) handleSession(ch ssh.Channel, requests <-chan *ssh.Request, replies map[string]commandReply) {
	defer func() { _ = ch.Close() }()

	for req := range requests {
		if req.Type != "exec" {
			if req.WantReply {
				_ = req.Reply(false, nil)
			}
			continue
		}

		var payload struct{ Command string }
		if err := ssh.Unmarshal(req.Payload, &payload); err != nil {
			_ = req.Reply(false, nil)
			return
		}
		_ = req.Reply(true, nil)

		s.mu.Lock()
		s.commands = append(s.commands, payload.Command)
		s.mu.Unlock()

		reply, ok := replies[payload.Command]
		if !ok {
			reply = commandReply{stderr: "command not found\n", status: 127}
		}
		if reply.block != nil {
			<-reply.block
		}
		_, _ = io.WriteString(ch, reply.stdout)
		_, _ = io.WriteString(ch.Stderr(), reply.stderr)
		_, _ = ch.SendRequest("exit-status", false, ssh.Marshal(struct{ Status uint32 }{reply.status}))
		return
	}
}

// generateTestKey generates a test RSA key pair for use in tests.
func generateTestKey(t *testing.T) *keygen.KeyPair {
	t.Helper()
	keyPair, err := keygen.GenerateRSAKeyPair(2048)
	if err != nil {
		t.Fatalf("failed to generate test key: %v", err)
	}
	return keyPair
}
