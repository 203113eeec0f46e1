package blob

import (
	"context"
	"errors"
	"io"
	"net"
	"net/textproto"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/jlaffaye/ftp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// FTPConfig configures the ftp driver.
type FTPConfig struct {
	Addr     string        `yaml:"addr" mapstructure:"addr"`
	User     string        `yaml:"user" mapstructure:"user"`
	Password string        `yaml:"password" mapstructure:"password"`
	Root     string        `yaml:"root" mapstructure:"root"`
	Timeout  time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// FTPStore keeps objects as files below a directory of an FTP server. Each
// operation uses its own control connection.
type FTPStore struct {
	cfg FTPConfig
}

// NewFTP returns a store for cfg. No connection is made until first use.
func NewFTP(cfg FTPConfig) (*FTPStore, error) {
	if cfg.Addr == "" {
		return nil, eris.New("blob: ftp addr required")
	}
	if _, _, err := net.SplitHostPort(cfg.Addr); err != nil {
		cfg.Addr = net.JoinHostPort(cfg.Addr, "21")
	}
	if cfg.User == "" {
		cfg.User, cfg.Password = "anonymous", "anonymous@"
	}
	if cfg.Root == "" {
		cfg.Root = "/"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &FTPStore{cfg: cfg}, nil
}

// Driver implements Store.
func (s *FTPStore) Driver() Driver { return DriverFTP }

func (s *FTPStore) dial(ctx context.Context) (*ftp.ServerConn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	conn, err := ftp.Dial(s.cfg.Addr, ftp.DialWithTimeout(s.cfg.Timeout), ftp.DialWithContext(ctx))
	if err != nil {
		return nil, eris.Wrap(err, "blob: ftp dial")
	}
	if err := conn.Login(s.cfg.User, s.cfg.Password); err != nil {
		conn.Quit() //nolint:errcheck
		return nil, eris.Wrap(err, "blob: ftp login")
	}
	return conn, nil
}

func (s *FTPStore) pathFor(key string) (string, error) {
	k, err := sanitizeKey(key)
	if err != nil {
		return "", err
	}
	return path.Join(s.cfg.Root, k), nil
}

// isUnavailable reports a 550 reply, which servers use for missing files.
func isUnavailable(err error) bool {
	var tpErr *textproto.Error
	return errors.As(err, &tpErr) && tpErr.Code == ftp.StatusFileUnavailable
}

// Put implements Store. Missing parent directories are created.
func (s *FTPStore) Put(ctx context.Context, key string, r io.Reader) (Info, error) {
	p, err := s.pathFor(key)
	if err != nil {
		return Info{}, err
	}
	conn, err := s.dial(ctx)
	if err != nil {
		return Info{}, err
	}
	defer conn.Quit() //nolint:errcheck

	dir := s.cfg.Root
	for _, part := range strings.Split(strings.TrimPrefix(path.Dir(p), s.cfg.Root), "/") {
		if part == "" {
			continue
		}
		dir = path.Join(dir, part)
		// exists already, or the Stor below reports the real problem
		_ = conn.MakeDir(dir)
	}
	if err := conn.Stor(p, r); err != nil {
		return Info{}, eris.Wrapf(err, "blob: ftp put %s", key)
	}
	return s.head(conn, key, p)
}

// Get implements Store. Closing the reader ends the connection.
func (s *FTPStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	p, err := s.pathFor(key)
	if err != nil {
		return nil, err
	}
	conn, err := s.dial(ctx)
	if err != nil {
		return nil, err
	}
	resp, err := conn.Retr(p)
	if err != nil {
		conn.Quit() //nolint:errcheck
		if isUnavailable(err) {
			return nil, eris.Wrapf(ErrNotFound, "blob: ftp get %s", key)
		}
		return nil, eris.Wrapf(err, "blob: ftp get %s", key)
	}
	return &ftpReader{resp: resp, conn: conn}, nil
}

// ftpReader releases both the data and the control connection on Close.
type ftpReader struct {
	resp *ftp.Response
	conn *ftp.ServerConn
}

func (r *ftpReader) Read(p []byte) (int, error) { return r.resp.Read(p) }

func (r *ftpReader) Close() error {
	respErr := r.resp.Close()
	quitErr := r.conn.Quit()
	if respErr != nil {
		return eris.Wrap(respErr, "blob: close ftp response")
	}
	if quitErr != nil {
		return eris.Wrap(quitErr, "blob: quit ftp connection")
	}
	return nil
}

// Head implements Store. LastModified is zero when the server lacks MDTM.
func (s *FTPStore) Head(ctx context.Context, key string) (Info, error) {
	p, err := s.pathFor(key)
	if err != nil {
		return Info{}, err
	}
	conn, err := s.dial(ctx)
	if err != nil {
		return Info{}, err
	}
	defer conn.Quit() //nolint:errcheck
	return s.head(conn, key, p)
}

func (s *FTPStore) head(conn *ftp.ServerConn, key, p string) (Info, error) {
	size, err := conn.FileSize(p)
	if isUnavailable(err) {
		return Info{}, eris.Wrapf(ErrNotFound, "blob: ftp head %s", key)
	}
	if err != nil {
		return Info{}, eris.Wrapf(err, "blob: ftp head %s", key)
	}
	info := Info{Key: key, Size: size}
	if mod, err := conn.GetTime(p); err == nil {
		info.LastModified = mod.UTC()
	} else {
		zap.L().Debug("blob: ftp modification time unavailable", zap.String("key", key), zap.Error(err))
	}
	return info, nil
}

// Delete implements Store. Deleting a missing key is not an error.
func (s *FTPStore) Delete(ctx context.Context, key string) error {
	p, err := s.pathFor(key)
	if err != nil {
		return err
	}
	conn, err := s.dial(ctx)
	if err != nil {
		return err
	}
	defer conn.Quit() //nolint:errcheck

	if err := conn.Delete(p); err != nil && !isUnavailable(err) {
		return eris.Wrapf(err, "blob: ftp delete %s", key)
	}
	return nil
}

// List implements Store by walking the directory tree below the root.
func (s *FTPStore) List(ctx context.Context, prefix string) ([]Info, error) {
	conn, err := s.dial(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Quit() //nolint:errcheck

	var infos []Info
	dirs := []string{s.cfg.Root}
	for len(dirs) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		dir := dirs[0]
		dirs = dirs[1:]

		entries, err := conn.List(dir)
		if isUnavailable(err) {
			continue
		}
		if err != nil {
			return nil, eris.Wrapf(err, "blob: ftp list %s", dir)
		}
		for _, e := range entries {
			if e.Name == "." || e.Name == ".." {
				continue
			}
			full := path.Join(dir, e.Name)
			key := strings.TrimPrefix(strings.TrimPrefix(full, s.cfg.Root), "/")
			switch e.Type {
			case ftp.EntryTypeFolder:
				// skip subtrees the prefix cannot match
				if strings.HasPrefix(key+"/", prefix) || strings.HasPrefix(prefix, key+"/") {
					dirs = append(dirs, full)
				}
			case ftp.EntryTypeFile:
				if strings.HasPrefix(key, prefix) {
					infos = append(infos, Info{Key: key, Size: int64(e.Size), LastModified: e.Time.UTC()})
				}
			}
		}
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Key < infos[j].Key })
	return infos, nil
}
