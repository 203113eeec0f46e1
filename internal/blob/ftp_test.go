package blob

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"net/textproto"
	"path"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeFTPServer speaks enough FTP for the driver: login, passive data
// connections, STOR, RETR, SIZE, MDTM, DELE, MKD and LIST. Files live in
// memory keyed by absolute path.
type fakeFTPServer struct {
	listener net.Listener
	wg       sync.WaitGroup

	mu    sync.Mutex
	files map[string][]byte
}

func newFakeFTPServer(t *testing.T) *fakeFTPServer {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	s := &fakeFTPServer{listener: ln, files: make(map[string][]byte)}
	s.wg.Add(1)
	go s.serve()
	t.Cleanup(s.close)
	return s
}

func (s *fakeFTPServer) addr() string { return s.listener.Addr().String() }

func (s *fakeFTPServer) close() {
	s.listener.Close() //nolint:errcheck
	s.wg.Wait()
}

func (s *fakeFTPServer) serve() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}
		s.wg.Add(1)
		go s.handle(conn)
	}
}

// children lists the immediate files and directories below dir.
func (s *fakeFTPServer) children(dir string) (files map[string]int, dirs map[string]bool) {
	files, dirs = make(map[string]int), make(map[string]bool)
	base := strings.TrimSuffix(dir, "/") + "/"
	for p, data := range s.files {
		if !strings.HasPrefix(p, base) {
			continue
		}
		rest := strings.TrimPrefix(p, base)
		if i := strings.Index(rest, "/"); i >= 0 {
			dirs[rest[:i]] = true
			continue
		}
		files[rest] = len(data)
	}
	return files, dirs
}

func (s *fakeFTPServer) handle(conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close() //nolint:errcheck
	conn.SetDeadline(time.Now().Add(10 * time.Second)) //nolint:errcheck

	w := bufio.NewWriter(conn)
	r := bufio.NewReader(conn)
	reply := func(format string, args ...any) {
		fmt.Fprintf(w, format+"\r\n", args...) //nolint:errcheck
		w.Flush()                              //nolint:errcheck
	}
	var data net.Listener
	openData := func() (net.Conn, bool) {
		if data == nil {
			reply("425 Use EPSV first")
			return nil, false
		}
		dc, err := data.Accept()
		data.Close() //nolint:errcheck
		data = nil
		if err != nil {
			reply("425 Can't open data connection")
			return nil, false
		}
		return dc, true
	}

	reply("220 fake ftp ready")
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return
		}
		parts := strings.SplitN(strings.TrimSpace(line), " ", 2)
		cmd, arg := strings.ToUpper(parts[0]), ""
		if len(parts) > 1 {
			arg = parts[1]
		}

		switch cmd {
		case "USER", "PASS":
			reply("230 User logged in")
		case "FEAT":
			fmt.Fprintf(w, "211-Features:\r\n SIZE\r\n MDTM\r\n UTF8\r\n") //nolint:errcheck
			reply("211 End")
		case "TYPE", "OPTS":
			reply("200 OK")
		case "EPSV":
			data, err = net.Listen("tcp", "127.0.0.1:0")
			if err != nil {
				reply("425 Can't open data connection")
				continue
			}
			reply("229 Entering Extended Passive Mode (|||%d|)", data.Addr().(*net.TCPAddr).Port)
		case "MKD":
			reply("257 %q created", arg)
		case "STOR":
			reply("150 Ok to send data")
			dc, ok := openData()
			if !ok {
				continue
			}
			body, _ := io.ReadAll(dc)
			dc.Close() //nolint:errcheck
			s.mu.Lock()
			s.files[arg] = body
			s.mu.Unlock()
			reply("226 Transfer complete")
		case "RETR":
			s.mu.Lock()
			body, ok := s.files[arg]
			s.mu.Unlock()
			if !ok {
				if data != nil {
					data.Close() //nolint:errcheck
					data = nil
				}
				reply("550 File not found")
				continue
			}
			reply("150 Opening data connection")
			dc, ok := openData()
			if !ok {
				continue
			}
			dc.Write(body) //nolint:errcheck
			dc.Close()     //nolint:errcheck
			reply("226 Transfer complete")
		case "LIST":
			s.mu.Lock()
			files, dirs := s.children(arg)
			s.mu.Unlock()
			if len(files) == 0 && len(dirs) == 0 && arg != "/" {
				if data != nil {
					data.Close() //nolint:errcheck
					data = nil
				}
				reply("550 No such directory")
				continue
			}
			reply("150 Here comes the listing")
			dc, ok := openData()
			if !ok {
				continue
			}
			var names []string
			for n := range dirs {
				names = append(names, n)
			}
			sort.Strings(names)
			for _, n := range names {
				fmt.Fprintf(dc, "drwxr-xr-x 1 ftp ftp 0 Mar 01 10:00 %s\r\n", n) //nolint:errcheck
			}
			names = names[:0]
			for n := range files {
				names = append(names, n)
			}
			sort.Strings(names)
			for _, n := range names {
				fmt.Fprintf(dc, "-rw-r--r-- 1 ftp ftp %d Mar 01 10:00 %s\r\n", files[n], n) //nolint:errcheck
			}
			dc.Close() //nolint:errcheck
			reply("226 Directory send OK")
		case "SIZE":
			s.mu.Lock()
			body, ok := s.files[arg]
			s.mu.Unlock()
			if !ok {
				reply("550 Could not get file size")
				continue
			}
			reply("213 %d", len(body))
		case "MDTM":
			s.mu.Lock()
			_, ok := s.files[arg]
			s.mu.Unlock()
			if !ok {
				reply("550 Could not get modification time")
				continue
			}
			reply("213 20260301100000")
		case "DELE":
			s.mu.Lock()
			_, ok := s.files[arg]
			delete(s.files, arg)
			s.mu.Unlock()
			if !ok {
				reply("550 Delete operation failed")
				continue
			}
			reply("250 Delete operation successful")
		case "QUIT":
			reply("221 Goodbye")
			return
		default:
			reply("502 Command not implemented")
		}
	}
}

func TestFTPStore(t *testing.T) {
	srv := newFakeFTPServer(t)

	s, err := NewFTP(FTPConfig{Addr: srv.addr(), Root: "/survey", Timeout: 5 * time.Second})
	require.NoError(t, err)
	assert.Equal(t, DriverFTP, s.Driver())
	exerciseStore(t, s)

	// keys land below the configured root
	srv.mu.Lock()
	_, ok := srv.files[path.Join("/survey", "out/records.jsonl")]
	srv.mu.Unlock()
	assert.True(t, ok)

	info, err := s.Head(context.Background(), "coda/gender.json")
	require.NoError(t, err)
	assert.Equal(t, int64(2), info.Size)
	assert.Equal(t, time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC), info.LastModified)
}

func TestFTPStore_ListMissingRoot(t *testing.T) {
	srv := newFakeFTPServer(t)

	s, err := NewFTP(FTPConfig{Addr: srv.addr(), Root: "/empty", Timeout: 5 * time.Second})
	require.NoError(t, err)

	infos, err := s.List(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, infos)
}

func TestFTPStore_DeleteMissingIsNoop(t *testing.T) {
	srv := newFakeFTPServer(t)

	s, err := NewFTP(FTPConfig{Addr: srv.addr(), Timeout: 5 * time.Second})
	require.NoError(t, err)
	assert.NoError(t, s.Delete(context.Background(), "coda/absent.json"))
}

func TestFTPStore_DialFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	s, err := NewFTP(FTPConfig{Addr: addr, Timeout: time.Second})
	require.NoError(t, err)
	_, err = s.Get(context.Background(), "coda/age.json")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ftp dial")
}

func TestNewFTP(t *testing.T) {
	t.Parallel()

	_, err := NewFTP(FTPConfig{})
	assert.ErrorContains(t, err, "addr required")

	s, err := NewFTP(FTPConfig{Addr: "ftp.example.org"})
	require.NoError(t, err)
	assert.Equal(t, "ftp.example.org:21", s.cfg.Addr)
	assert.Equal(t, "anonymous", s.cfg.User)
	assert.Equal(t, "/", s.cfg.Root)
	assert.Equal(t, 30*time.Second, s.cfg.Timeout)

	_, err = s.pathFor("../etc/passwd")
	assert.ErrorContains(t, err, "escapes root")
}

func TestOpen_FTPIsRetried(t *testing.T) {
	t.Parallel()

	s, err := Open(context.Background(), Config{Driver: "ftp", MaxAttempts: 2, FTP: FTPConfig{Addr: "127.0.0.1:2121"}})
	require.NoError(t, err)
	rs, ok := s.(*RetryingStore)
	require.True(t, ok)
	assert.Equal(t, DriverFTP, rs.Driver())

	_, err = Open(context.Background(), Config{Driver: "ftp"})
	assert.ErrorContains(t, err, "addr required")
}

func TestIsTransient_FTPReplies(t *testing.T) {
	t.Parallel()

	assert.True(t, IsTransient(&textproto.Error{Code: 421, Msg: "Service not available"}))
	assert.True(t, IsTransient(&textproto.Error{Code: 450, Msg: "File busy"}))
	assert.False(t, IsTransient(&textproto.Error{Code: 550, Msg: "File not found"}))
	assert.False(t, IsTransient(&textproto.Error{Code: 530, Msg: "Not logged in"}))
}
